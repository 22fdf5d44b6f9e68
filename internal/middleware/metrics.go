package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Aincrad-Flux/TWIN/internal/metrics"
)

const noRoute = "<no-route>"

// Metrics records request count and latency labelled with the route template.
// Register it after Recover so the final status is observed.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Write the error response now so the status is final; the
				// global handler skips it once committed.
				c.Error(err)
			}

			path := c.Path()
			if path == "" || (c.Response().Status == http.StatusNotFound && path == "/*") {
				path = noRoute
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)

			metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
