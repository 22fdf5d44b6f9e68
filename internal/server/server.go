package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Aincrad-Flux/TWIN/internal/audit"
	"github.com/Aincrad-Flux/TWIN/internal/config"
	"github.com/Aincrad-Flux/TWIN/internal/events"
	"github.com/Aincrad-Flux/TWIN/internal/handler"
	"github.com/Aincrad-Flux/TWIN/internal/logstore"
	"github.com/Aincrad-Flux/TWIN/internal/middleware"
	"github.com/Aincrad-Flux/TWIN/internal/repository"
	"github.com/Aincrad-Flux/TWIN/internal/response"
	"github.com/Aincrad-Flux/TWIN/internal/storage"
	"github.com/Aincrad-Flux/TWIN/internal/webhook"
)

// TestCapturePrefix names the records written by POST /webhooks/test.
const TestCapturePrefix = "webhook-test"

// Deps are the optional backends. Any of them may be nil.
type Deps struct {
	Pool     *pgxpool.Pool
	O3       *storage.O3Client
	NewRelic *newrelic.Application
}

// Server holds the Echo app and dependencies.
type Server struct {
	Echo       *echo.Echo
	Config     *config.Config
	Dispatcher *events.Dispatcher
	recorder   *audit.Recorder
	log        zerolog.Logger
}

// New builds the Echo server and registers routes.
func New(cfg *config.Config, log zerolog.Logger, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	s := &Server{Echo: e, Config: cfg, log: log}
	e.HTTPErrorHandler = s.handleError

	e.Use(
		echomw.Recover(),
		echomw.RequestIDWithConfig(echomw.RequestIDConfig{
			Generator: func() string { return uuid.New().String() },
		}),
		middleware.RequestLogger(component(log, "http")),
		middleware.Metrics(),
		middleware.NewRelic(deps.NewRelic),
		echomw.Secure(),
		echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.Server.CORSAllowedOrigins}),
		echomw.BodyLimit(cfg.Server.BodyLimit),
	)

	var sinks []audit.Sink
	auditH := &handler.AuditHandler{Log: component(log, "audit-api")}
	if deps.Pool != nil {
		index := repository.NewAuditIndex(deps.Pool)
		sinks = append(sinks, index)
		auditH.Index = index
	}
	if deps.O3 != nil {
		sinks = append(sinks, deps.O3)
		auditH.Archive = deps.O3
		auditH.ArchivePrefix = deps.O3.Prefix()
	}
	s.recorder = audit.NewRecorder(cfg.Logs.Dir, component(log, "audit"), audit.WithSinks(sinks...))

	mode := webhook.Relaxed
	if cfg.Strict() {
		mode = webhook.Strict
	}
	auth := webhook.NewAuthenticator(cfg.Validation(), mode, component(log, "webhook-auth"))

	s.Dispatcher = events.NewDispatcher(component(log, "dispatcher"))
	events.RegisterDefaults(s.Dispatcher, component(log, "sync"))

	webhookH := &handler.WebhookHandler{
		Recorder:   s.recorder,
		Dispatcher: s.Dispatcher,
		Prefix:     cfg.Logs.AuditPrefix,
		TestPrefix: TestCapturePrefix,
		Log:        component(log, "webhooks"),
	}
	logsH := &handler.LogHandler{
		Store: logstore.New(cfg.Logs.Dir, component(log, "logstore")),
		Log:   component(log, "logs-api"),
	}

	e.GET("/health", handler.Health)
	if cfg.Observability.Metrics.Enabled {
		e.GET(cfg.Observability.Metrics.Path, echo.WrapHandler(promhttp.Handler()))
	}

	// Jira webhooks
	hooks := e.Group("/webhooks", middleware.Capture())
	hooks.POST("/jira", webhookH.Jira, middleware.JiraWebhook(auth, component(log, "webhook-auth")))
	hooks.POST("/test", webhookH.Test)

	// Admin API
	api := e.Group("/api", middleware.AdminKey(cfg.Admin.APIKey, component(log, "admin-auth")))
	api.GET("/logs", logsH.List)
	api.GET("/logs/stats", logsH.Stats)
	api.GET("/logs/file/*", logsH.File)
	api.GET("/logs/search", logsH.Search)
	api.GET("/logs/errors", logsH.Errors)
	api.GET("/logs/combined", logsH.Combined)
	api.DELETE("/logs/cleanup", logsH.Cleanup)
	api.GET("/logs/webhooks/recent", logsH.RecentWebhooks)
	api.GET("/logs/webhooks/:date", logsH.WebhooksForDate)
	api.GET("/logs/archive", auditH.ArchiveObjects)
	api.GET("/audit/records", auditH.Records)

	log.Info().
		Str("mode", mode.String()).
		Strs("event_types", eventNames(s.Dispatcher.Registered())).
		Int("sinks", len(sinks)).
		Msg("server configured")
	return s
}

func component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

func eventNames(types []events.EventType) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}

// handleError renders errors that reach echo: unknown routes get the webhook
// style body, other HTTP errors the API envelope, anything else a generic 500.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		s.log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("unhandled error")
		_ = response.InternalError(c, "Internal server error", "InternalError")
		return
	}
	if he.Internal != nil {
		s.log.Debug().Err(he.Internal).Int("status", he.Code).Str("path", c.Request().URL.Path).Msg("request failed")
	}
	switch he.Code {
	case http.StatusNotFound:
		_ = response.Rejected(c, http.StatusNotFound, "Route not found", "")
	case http.StatusMethodNotAllowed:
		_ = response.Rejected(c, http.StatusMethodNotAllowed, "Method not allowed", "")
	default:
		_ = response.Error(c, he.Code, fmt.Sprint(he.Message), http.StatusText(he.Code))
	}
}

// Start starts the HTTP server. Blocks until the context is cancelled or the server fails.
// On context cancel, Shutdown drains in-flight requests and audit shipments.
func (s *Server) Start(ctx context.Context) error {
	read, write, idle := s.Config.Server.Timeouts()
	srv := s.Echo.Server
	srv.ReadTimeout = read
	srv.WriteTimeout = write
	srv.IdleTimeout = idle

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), write+5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.log.Error().Err(err).Msg("server shutdown")
		}
	}()

	addr := ":" + s.Config.Server.Port
	s.log.Info().Str("addr", addr).Msg("server listening")
	if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and then for
// pending audit shipments.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	s.recorder.Close()
	return err
}
