package config

import "fmt"

type ObservabilityConfig struct {
	ServiceName string         `koanf:"service_name"`
	Environment string         `koanf:"environment"`
	NewRelic    NewRelicConfig `koanf:"new_relic"`
	Metrics     MetricsConfig  `koanf:"metrics"`
}

// NewRelicConfig enables the APM agent when a license key is present.
type NewRelicConfig struct {
	LicenseKey                string `koanf:"license_key"`
	AppLogForwardingEnabled   bool   `koanf:"app_log_forwarding_enabled"`
	DistributedTracingEnabled bool   `koanf:"distributed_tracing_enabled"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		ServiceName: "twin",
		Environment: EnvDevelopment,
		NewRelic: NewRelicConfig{
			DistributedTracingEnabled: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

func (o *ObservabilityConfig) Validate() error {
	if o.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if o.Metrics.Enabled && (o.Metrics.Path == "" || o.Metrics.Path[0] != '/') {
		return fmt.Errorf("metrics path must start with '/': %q", o.Metrics.Path)
	}
	if o.NewRelic.LicenseKey != "" && len(o.NewRelic.LicenseKey) != 40 {
		return fmt.Errorf("new relic license key must be 40 characters")
	}
	return nil
}

func (o *ObservabilityConfig) NewRelicEnabled() bool {
	return o.NewRelic.LicenseKey != ""
}
