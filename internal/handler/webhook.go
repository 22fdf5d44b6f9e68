package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/Aincrad-Flux/TWIN/internal/audit"
	"github.com/Aincrad-Flux/TWIN/internal/events"
	"github.com/Aincrad-Flux/TWIN/internal/logger"
	"github.com/Aincrad-Flux/TWIN/internal/middleware"
	"github.com/Aincrad-Flux/TWIN/internal/model"
	"github.com/Aincrad-Flux/TWIN/internal/response"
)

// WebhookHandler serves /webhooks/jira and /webhooks/test. Both routes expect
// middleware.Capture to have run.
type WebhookHandler struct {
	Recorder   *audit.Recorder
	Dispatcher *events.Dispatcher
	Prefix     string
	TestPrefix string
	Log        zerolog.Logger
}

// Jira records an authenticated delivery, then dispatches it by webhookEvent.
func (h *WebhookHandler) Jira(c echo.Context) error {
	ctx := c.Request().Context()
	in := middleware.Inbound(c)
	if in == nil {
		return response.Rejected(c, http.StatusInternalServerError, "Processing error", "")
	}

	// Audit failures are logged by the recorder and never change the response.
	logFile, _ := h.Recorder.Record(ctx, in, h.Prefix)

	var payload model.JiraPayload
	if err := json.Unmarshal(in.Body, &payload); err != nil {
		h.Log.Warn().Err(err).Str("client_ip", in.ClientIP).Msg("webhook body is not valid JSON")
		return response.Rejected(c, http.StatusBadRequest, "Invalid JSON payload", "")
	}

	ev := h.Log.Info().Str("webhook_event", logger.Sanitize(payload.WebhookEvent))
	if payload.Issue != nil {
		ev = ev.Str("issue_key", payload.Issue.Key)
		if t := payload.Issue.Fields.IssueType; t != nil {
			ev = ev.Str("issue_type", t.Name)
		}
		if s := payload.Issue.Fields.Status; s != nil {
			ev = ev.Str("status", s.Name)
		}
	}
	ev.Str("log_file", logFile).Msg("webhook received")

	txn := newrelic.FromContext(ctx)
	txn.AddAttribute("webhook_event", payload.WebhookEvent)

	if err := h.Dispatcher.Dispatch(ctx, payload.WebhookEvent, &payload); err != nil {
		txn.NoticeError(err)
		h.Log.Error().Err(err).Str("webhook_event", payload.WebhookEvent).Msg("error processing webhook")
		return response.Rejected(c, http.StatusInternalServerError, "Processing error", "")
	}
	return response.Accepted(c, logFile)
}

type testCaptureResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Received  bool   `json:"received"`
	BodyType  string `json:"bodyType"`
	HasBody   bool   `json:"hasBody"`
	LogFile   string `json:"logFile,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Test stores any request without authentication. It answers 200 even when
// the record cannot be written.
func (h *WebhookHandler) Test(c echo.Context) error {
	in := middleware.Inbound(c)
	if in == nil {
		return response.Rejected(c, http.StatusInternalServerError, "Processing error", "")
	}
	out := testCaptureResponse{
		Message:   "T.W.I.N Webhooks operational",
		Timestamp: response.Now(),
		Received:  true,
		BodyType:  bodyType(in.Body),
		HasBody:   len(in.Body) > 0,
	}

	logFile, err := h.Recorder.Record(c.Request().Context(), in, h.TestPrefix)
	if err != nil {
		out.Message = "T.W.I.N Webhooks operational (with error)"
		out.Error = "Log file creation failed"
		return c.JSON(http.StatusOK, out)
	}
	h.Log.Info().Str("log_file", logFile).Msg("webhook test data saved")
	out.LogFile = logFile
	return c.JSON(http.StatusOK, out)
}

// bodyType names the JSON type of body; non-JSON bodies are "string".
func bodyType(body []byte) string {
	if len(body) == 0 {
		return "object"
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return "string"
	}
	switch v.(type) {
	case map[string]any, []any, nil:
		return "object"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return "string"
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "OK", Service: "T.W.I.N", Timestamp: response.Now()})
}
