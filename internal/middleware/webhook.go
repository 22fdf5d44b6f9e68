package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Aincrad-Flux/TWIN/internal/metrics"
	"github.com/Aincrad-Flux/TWIN/internal/response"
	"github.com/Aincrad-Flux/TWIN/internal/webhook"
)

const inboundKey = "twin.inbound"

// Capture reads the body once, restores it for later readers and stores the
// *webhook.InboundRequest snapshot on the context.
func Capture() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			var body []byte
			if req.Body != nil {
				var err error
				body, err = io.ReadAll(req.Body)
				if err != nil {
					var he *echo.HTTPError
					if errors.As(err, &he) {
						return he
					}
					return echo.NewHTTPError(http.StatusBadRequest, "unreadable request body").SetInternal(err)
				}
				req.Body.Close()
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			c.Set(inboundKey, webhook.FromHTTP(req, body, time.Now()))
			return next(c)
		}
	}
}

// Inbound returns the snapshot stored by Capture, or nil.
func Inbound(c echo.Context) *webhook.InboundRequest {
	in, _ := c.Get(inboundKey).(*webhook.InboundRequest)
	return in
}

// JiraWebhook authenticates the captured request. Must run after Capture.
func JiraWebhook(auth *webhook.Authenticator, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			in := Inbound(c)
			if in == nil {
				log.Error().Msg("webhook request reached authentication without a captured body")
				return response.Rejected(c, http.StatusInternalServerError, "Validation error", string(webhook.ReasonValidationError))
			}

			err := auth.Authenticate(in)
			if err == nil {
				return next(c)
			}

			var re *webhook.RejectError
			if !errors.As(err, &re) {
				re = &webhook.RejectError{Reason: webhook.ReasonValidationError}
			}
			metrics.WebhookRejections.WithLabelValues(string(re.Reason)).Inc()
			return response.Rejected(c, re.Status(), re.Message(), string(re.Reason))
		}
	}
}
