// Package observability starts the New Relic agent when a license key is configured.
package observability

import (
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/Aincrad-Flux/TWIN/internal/config"
)

const shutdownTimeout = 10 * time.Second

// NewApplication returns nil, nil when New Relic is disabled.
func NewApplication(cfg config.ObservabilityConfig) (*newrelic.Application, error) {
	if !cfg.NewRelicEnabled() {
		return nil, nil
	}
	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(appName(cfg)),
		newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(cfg.NewRelic.DistributedTracingEnabled),
		newrelic.ConfigAppLogForwardingEnabled(cfg.NewRelic.AppLogForwardingEnabled),
	)
	if err != nil {
		return nil, fmt.Errorf("new relic: %w", err)
	}
	return app, nil
}

func appName(cfg config.ObservabilityConfig) string {
	if cfg.Environment == "" {
		return cfg.ServiceName
	}
	return cfg.ServiceName + "-" + cfg.Environment
}

// Shutdown flushes pending data. Safe on a nil app.
func Shutdown(app *newrelic.Application) {
	if app == nil {
		return
	}
	app.Shutdown(shutdownTimeout)
}
