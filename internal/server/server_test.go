package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aincrad-Flux/TWIN/internal/config"
	"github.com/Aincrad-Flux/TWIN/internal/webhook"
)

const (
	testSecret   = "jira-shared-secret"
	testAdminKey = "admin-key-for-tests"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	cfg := config.Default()
	cfg.Primary.Env = config.EnvTest
	cfg.Logs.Dir = t.TempDir()
	cfg.Jira.WebhookSecret = testSecret
	cfg.Admin.APIKey = testAdminKey

	s := New(cfg, zerolog.Nop(), Deps{})
	t.Cleanup(func() { s.recorder.Close() })
	return s, cfg.Logs.Dir
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func jiraRequest(body string, sign bool) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/jira", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Atlassian HttpClient/4.0")
	if sign {
		req.Header.Set("X-Hub-Signature", "sha256="+webhook.Sign([]byte(testSecret), []byte(body)))
	}
	return req
}

func adminGet(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-Api-Key", testAdminKey)
	return req
}

type listed struct {
	Data struct {
		Files []struct {
			Name          string `json:"name"`
			Type          string `json:"type"`
			Size          int64  `json:"size"`
			SizeFormatted string `json:"sizeFormatted"`
		} `json:"files"`
		Total int `json:"total"`
	} `json:"data"`
	Status int `json:"status"`
}

func webhookEntries(t *testing.T, s *Server) []string {
	t.Helper()
	rec := do(s, adminGet("/api/logs"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got listed
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	var names []string
	for _, f := range got.Data.Files {
		if f.Type == "webhook" {
			names = append(names, f.Name)
		}
	}
	return names
}

func TestJiraWebhook_EndToEnd(t *testing.T) {
	s, _ := newTestServer(t)
	before := webhookEntries(t, s)

	body := `{"webhookEvent":"comment_created","issue":{"key":"TWIN-42","fields":{"summary":"Crash on save"}},"comment":{"id":"1","body":"Repro attached"}}`
	rec := do(s, jiraRequest(body, true))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var ack struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
		LogFile   string `json:"logFile"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, "accepted", ack.Status)
	assert.NotEmpty(t, ack.Timestamp)

	after := webhookEntries(t, s)
	require.Len(t, after, len(before)+1)
	assert.Equal(t, ack.LogFile, after[0])

	rec = do(s, adminGet("/api/logs/file/"+ack.LogFile))
	require.Equal(t, http.StatusOK, rec.Code)
	var doc struct {
		Data struct {
			Method string          `json:"method"`
			URL    string          `json:"url"`
			Body   json.RawMessage `json:"body"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, http.MethodPost, doc.Data.Method)
	assert.Equal(t, "/webhooks/jira", doc.Data.URL)
	assert.JSONEq(t, body, string(doc.Data.Body))
}

func TestJiraWebhook_RejectedIsNotRecorded(t *testing.T) {
	s, _ := newTestServer(t)
	body := `{"webhookEvent":"jira:issue_created"}`

	rec := do(s, jiraRequest(body, false))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"Missing signature"`)

	req := jiraRequest(body, false)
	req.Header.Set("X-Hub-Signature", "sha256="+webhook.Sign([]byte("wrong"), []byte(body)))
	rec = do(s, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"Invalid signature"`)

	assert.Empty(t, webhookEntries(t, s))
}

func TestJiraWebhook_InvalidJSON(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(s, jiraRequest(`{"webhookEvent":`, true))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJiraWebhook_UnknownEventAccepted(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(s, jiraRequest(`{"webhookEvent":"jira:version_released"}`, true))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookTestCapture(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/test?source=manual", strings.NewReader(`{"hello":"world"}`))
	rec := do(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "T.W.I.N Webhooks operational", got["message"])
	assert.Equal(t, true, got["received"])
	assert.Equal(t, "object", got["bodyType"])
	assert.Equal(t, true, got["hasBody"])
	logFile, _ := got["logFile"].(string)
	assert.Contains(t, logFile, "/webhook-test-")

	assert.Equal(t, []string{logFile}, webhookEntries(t, s))
}

func TestHealthAndNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"OK"`)
	assert.Contains(t, rec.Body.String(), `"service":"T.W.I.N"`)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"Route not found"`)
}

func TestAdminAPI_RequiresKey(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/logs", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = do(s, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/logs/stats", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminKey)
	rec = do(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAPI_Queries(t *testing.T) {
	s, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, do(s, jiraRequest(`{"webhookEvent":"jira:issue_created","issue":{"key":"TWIN-5"}}`, true)).Code)

	tests := []struct {
		name string
		path string
		want int
		body string
	}{
		{name: "traversal", path: "/api/logs/file/../secret.log", want: http.StatusForbidden},
		{name: "encoded traversal", path: "/api/logs/file/..%2F..%2Fetc%2Fpasswd", want: http.StatusForbidden},
		{name: "missing file", path: "/api/logs/file/missing.log", want: http.StatusNotFound},
		{name: "search requires q", path: "/api/logs/search", want: http.StatusBadRequest},
		{name: "search finds key", path: "/api/logs/search?q=twin-5", want: http.StatusOK, body: `"totalResults":1`},
		{name: "search empty", path: "/api/logs/search?q=nothing-matches-this", want: http.StatusOK, body: `"results":[]`},
		{name: "bad limit", path: "/api/logs/search?q=x&limit=abc", want: http.StatusBadRequest},
		{name: "bad date", path: "/api/logs/webhooks/yesterday", want: http.StatusBadRequest},
		{name: "recent", path: "/api/logs/webhooks/recent", want: http.StatusOK, body: `"period":"last 24 hours"`},
		{name: "audit index disabled", path: "/api/audit/records", want: http.StatusServiceUnavailable},
		{name: "archive disabled", path: "/api/logs/archive", want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, adminGet(tt.path))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.body != "" {
				assert.Contains(t, rec.Body.String(), tt.body)
			}
		})
	}
}

func TestAdminAPI_Cleanup(t *testing.T) {
	s, _ := newTestServer(t)
	require.Equal(t, http.StatusOK, do(s, jiraRequest(`{"webhookEvent":"comment_created"}`, true)).Code)

	req := httptest.NewRequest(http.MethodDelete, "/api/logs/cleanup", nil)
	req.Header.Set("X-Api-Key", testAdminKey)
	rec := do(s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deletedCount":0`)
	assert.Len(t, webhookEntries(t, s), 1)

	req = httptest.NewRequest(http.MethodDelete, "/api/logs/cleanup?days=-1", nil)
	req.Header.Set("X-Api-Key", testAdminKey)
	assert.Equal(t, http.StatusBadRequest, do(s, req).Code)
}
