package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestList_NilItemsRenderEmpty(t *testing.T) {
	c, rec := newContext("/api/logs")

	var files []string
	require.NoError(t, List(c, "files", files, map[string]any{"period": "last 24 hours"}))

	var got struct {
		Data struct {
			Files  []string `json:"files"`
			Total  int      `json:"total"`
			Period string   `json:"period"`
		} `json:"data"`
		Status int    `json:"status"`
		Path   string `json:"path"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Contains(t, rec.Body.String(), `"files":[]`)
	assert.Equal(t, 0, got.Data.Total)
	assert.Equal(t, "last 24 hours", got.Data.Period)
	assert.Equal(t, http.StatusOK, got.Status)
	assert.Equal(t, "/api/logs", got.Path)
}

func TestError_CarriesCategoryAndRequestID(t *testing.T) {
	c, rec := newContext("/api/logs/file/x")
	c.Response().Header().Set(echo.HeaderXRequestID, "req-1")

	require.NoError(t, Forbidden(c, "Access denied to requested file", "AccessDenied"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var got APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, APIError{
		Message:   "Access denied to requested file",
		Error:     "AccessDenied",
		Path:      "/api/logs/file/x",
		Status:    http.StatusForbidden,
		RequestID: "req-1",
	}, got)
}

func TestRejected_WebhookBody(t *testing.T) {
	c, rec := newContext("/webhooks/jira")
	require.NoError(t, Rejected(c, http.StatusUnauthorized, "Invalid signature", "InvalidSignature"))

	var got WebhookError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Invalid signature", got.Error)
	assert.Equal(t, "InvalidSignature", got.Reason)
	assert.NotEmpty(t, got.Timestamp)
}
