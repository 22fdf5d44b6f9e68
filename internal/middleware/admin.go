// Package middleware holds the echo middleware of the service: admin API key
// checks, Jira webhook authentication, metrics, access logging and APM.
package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Aincrad-Flux/TWIN/internal/logger"
	"github.com/Aincrad-Flux/TWIN/internal/response"
	"github.com/Aincrad-Flux/TWIN/internal/webhook"
)

const (
	APIKeyHeader = "X-Api-Key"
	keyLogPrefix = 8
	bearerPrefix = "Bearer "
)

// AdminKey guards the administrative API. The key is read from X-Api-Key or
// from "Authorization: Bearer <key>". An unset server key fails closed with 500.
func AdminKey(key string, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if key == "" {
				log.Error().Msg("admin API key not configured")
				return response.InternalError(c, "Server configuration error", "AdminKeyNotConfigured")
			}

			provided := providedKey(c)
			if provided == "" {
				log.Warn().
					Str("client_ip", c.RealIP()).
					Str("path", c.Request().URL.Path).
					Msg("admin request without API key")
				return response.Unauthorized(c, "API key required", "MissingAPIKey")
			}

			if !webhook.TimingSafeEqual(provided, key) {
				log.Warn().
					Str("client_ip", c.RealIP()).
					Str("path", c.Request().URL.Path).
					Str("key_prefix", logger.Truncate(logger.Sanitize(provided), keyLogPrefix)).
					Msg("admin request with invalid API key")
				return response.Forbidden(c, "Invalid API key", "InvalidAPIKey")
			}
			return next(c)
		}
	}
}

func providedKey(c echo.Context) string {
	if k := c.Request().Header.Get(APIKeyHeader); k != "" {
		return strings.TrimSpace(k)
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if rest, ok := strings.CutPrefix(auth, bearerPrefix); ok {
		return strings.TrimSpace(rest)
	}
	return ""
}
