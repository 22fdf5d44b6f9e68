// Package response renders the JSON envelopes of the admin API and the
// bodies sent back to Jira.
package response

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIResponse wraps every successful admin API answer.
type APIResponse struct {
	Data      any    `json:"data"`
	Status    int    `json:"status"`
	Message   string `json:"message,omitempty"`
	Path      string `json:"path"`
	RequestID string `json:"requestId,omitempty"`
}

// APIError is the admin API failure body. Error is a category label such as
// "AccessDenied"; internal detail stays in the server log.
type APIError struct {
	Message   string `json:"message"`
	Error     string `json:"error"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	RequestID string `json:"requestId,omitempty"`
}

func requestMeta(c echo.Context) (path, requestID string) {
	if c == nil || c.Request() == nil {
		return "", ""
	}
	return c.Request().URL.Path, c.Response().Header().Get(echo.HeaderXRequestID)
}

// OK sends 200 with data in the envelope.
func OK(c echo.Context, data any, message string) error {
	path, id := requestMeta(c)
	return c.JSON(http.StatusOK, APIResponse{
		Data:      data,
		Status:    http.StatusOK,
		Message:   message,
		Path:      path,
		RequestID: id,
	})
}

// List sends 200 with {<key>: items, total: n} plus any extra fields.
// A nil items value is rendered as an empty list.
func List[T any](c echo.Context, key string, items []T, extra map[string]any) error {
	if items == nil {
		items = []T{}
	}
	data := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		data[k] = v
	}
	data[key] = items
	data["total"] = len(items)
	return OK(c, data, "")
}

// Error sends status with an APIError body. category is the machine readable label.
func Error(c echo.Context, status int, message, category string) error {
	path, id := requestMeta(c)
	return c.JSON(status, APIError{
		Message:   message,
		Error:     category,
		Path:      path,
		Status:    status,
		RequestID: id,
	})
}

func BadRequest(c echo.Context, message, category string) error {
	return Error(c, http.StatusBadRequest, message, category)
}

func Unauthorized(c echo.Context, message, category string) error {
	return Error(c, http.StatusUnauthorized, message, category)
}

func Forbidden(c echo.Context, message, category string) error {
	return Error(c, http.StatusForbidden, message, category)
}

func NotFound(c echo.Context, message, category string) error {
	return Error(c, http.StatusNotFound, message, category)
}

// Unprocessable is used when a stored file exists but cannot be decoded.
func Unprocessable(c echo.Context, message, category string) error {
	return Error(c, http.StatusUnprocessableEntity, message, category)
}

// ServiceUnavailable answers routes whose optional backend is not configured.
func ServiceUnavailable(c echo.Context, message, category string) error {
	return Error(c, http.StatusServiceUnavailable, message, category)
}

func InternalError(c echo.Context, message, category string) error {
	return Error(c, http.StatusInternalServerError, message, category)
}
