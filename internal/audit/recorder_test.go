package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aincrad-Flux/TWIN/internal/webhook"
)

var fixedTime = time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func inbound(body string) *webhook.InboundRequest {
	r := httptest.NewRequest(http.MethodPost, "/webhooks/jira?user_id=42&tag=a&tag=b", strings.NewReader(body))
	r.RemoteAddr = "203.0.113.5:40000"
	r.Header.Set("Content-Type", "application/json")
	r.Header.Add("X-Custom", "one")
	r.Header.Add("X-Custom", "two")
	return webhook.FromHTTP(r, []byte(body), fixedTime)
}

type recordingSink struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (s *recordingSink) Name() string { return "memory" }

func (s *recordingSink) Ship(_ context.Context, storedPath string, _ *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, storedPath)
	return s.err
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "webhook-2026-03-14T09-26-53-589Z.json", FileName("webhook", fixedTime))
	assert.Equal(t, "webhook-test-2026-03-14T09-26-53-589Z.json", FileName("webhook-test", fixedTime.In(time.FixedZone("CET", 3600))))
}

func TestRecord_WritesSnapshot(t *testing.T) {
	root := t.TempDir()
	rec := NewRecorder(root, zerolog.Nop())

	stored, err := rec.Record(context.Background(), inbound(`{"webhookEvent":"comment_created"}`), "webhook")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14/webhook-2026-03-14T09-26-53-589Z.json", stored)

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(stored)))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"timestamp\"", "pretty printed")

	var got Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "2026-03-14T09:26:53.589Z", got.Timestamp)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/webhooks/jira?user_id=42&tag=a&tag=b", got.URL)
	assert.Equal(t, "203.0.113.5", got.ClientIP)
	assert.Equal(t, "application/json", got.Headers["content-type"])
	assert.Equal(t, "one, two", got.Headers["x-custom"])
	assert.Equal(t, "42", got.QueryParams["user_id"])
	assert.Equal(t, []any{"a", "b"}, got.QueryParams["tag"])
	assert.JSONEq(t, `{"webhookEvent":"comment_created"}`, string(got.Body))
	assert.Equal(t, "comment_created", got.EventType())

	entries, err := os.ReadDir(filepath.Join(root, "2026-03-14"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestRecord_NonJSONBody(t *testing.T) {
	root := t.TempDir()
	rec := NewRecorder(root, zerolog.Nop())

	stored, err := rec.Record(context.Background(), inbound("plain=text&x=1"), "webhook-test")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(stored)))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"body": "plain=text&x=1"`)
	assert.NotContains(t, string(data), `\u0026`)

	var got Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, `"plain=text&x=1"`, string(got.Body))
	assert.Empty(t, got.EventType())
}

func TestRecord_KeepsMarkupCharactersLiteral(t *testing.T) {
	root := t.TempDir()
	rec := NewRecorder(root, zerolog.Nop())

	stored, err := rec.Record(context.Background(), inbound(`{"comment":{"body":"R&D <urgent>"}}`), "webhook")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(stored)))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"body": "R&D <urgent>"`)
	for _, escaped := range []string{`\u0026`, `\u003c`, `\u003e`} {
		assert.NotContains(t, string(data), escaped)
	}
}

func TestEncode_MatchesStoredBytes(t *testing.T) {
	root := t.TempDir()
	rec := NewRecorder(root, zerolog.Nop())
	req := inbound(`{"q":"a<b && c>d"}`)

	stored, err := rec.Record(context.Background(), req, "webhook")
	require.NoError(t, err)
	onDisk, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(stored)))
	require.NoError(t, err)

	encoded, err := Encode(NewRecord(req, fixedTime))
	require.NoError(t, err)
	assert.Equal(t, string(onDisk), string(encoded))
}

func TestRecord_EmptyBody(t *testing.T) {
	rec := NewRecord(inbound(""), fixedTime)
	assert.Equal(t, "{}", string(rec.Body))
}

func TestRecord_UsesClockWhenReceiptTimeMissing(t *testing.T) {
	root := t.TempDir()
	rec := NewRecorder(root, zerolog.Nop(), WithClock(func() time.Time { return fixedTime.Add(24 * time.Hour) }))

	req := inbound("{}")
	req.ReceivedAt = time.Time{}
	stored, err := rec.Record(context.Background(), req, "webhook")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored, "2026-03-15/"))
}

func TestEnsureDayDir_Idempotent(t *testing.T) {
	root := t.TempDir()
	rec := NewRecorder(root, zerolog.Nop())

	first, err := rec.EnsureDayDir("2026-03-14")
	require.NoError(t, err)
	second, err := rec.EnsureDayDir("2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2026-03-14", entries[0].Name())
}

func TestEnsureDayDir_Concurrent(t *testing.T) {
	rec := NewRecorder(t.TempDir(), zerolog.Nop())

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rec.EnsureDayDir("2026-03-14")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestRecord_WriteFailureIsLogged(t *testing.T) {
	// A regular file where the log root should be makes every write fail.
	root := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(root, []byte("x"), 0o644))

	var buf bytes.Buffer
	rec := NewRecorder(root, zerolog.New(&buf))

	stored, err := rec.Record(context.Background(), inbound("{}"), "webhook")
	require.Error(t, err)
	assert.Empty(t, stored)
	assert.Contains(t, buf.String(), "failed to write audit record")
}

func TestRecord_ShipsToSinks(t *testing.T) {
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("bucket unavailable")}

	var buf bytes.Buffer
	rec := NewRecorder(t.TempDir(), zerolog.New(&buf), WithSinks(ok, failing))

	stored, err := rec.Record(context.Background(), inbound("{}"), "webhook")
	require.NoError(t, err)
	rec.Close()

	assert.Equal(t, []string{stored}, ok.paths)
	assert.Equal(t, []string{stored}, failing.paths)
	assert.Contains(t, buf.String(), "audit shipment failed")
}

func TestRecord_ShipmentOutlivesRequestContext(t *testing.T) {
	sink := &ctxSink{}
	rec := NewRecorder(t.TempDir(), zerolog.Nop(), WithSinks(sink))

	ctx, cancel := context.WithCancel(context.Background())
	_, err := rec.Record(ctx, inbound("{}"), "webhook")
	cancel()
	require.NoError(t, err)
	rec.Close()

	assert.NoError(t, sink.err)
}

func TestRecord_AfterCloseIsStoredButNotShipped(t *testing.T) {
	sink := &recordingSink{}
	root := t.TempDir()
	rec := NewRecorder(root, zerolog.Nop(), WithSinks(sink))
	rec.Close()

	stored, err := rec.Record(context.Background(), inbound("{}"), "webhook")
	require.NoError(t, err)
	rec.Close()

	assert.FileExists(t, filepath.Join(root, filepath.FromSlash(stored)))
	assert.Empty(t, sink.paths)
}

func TestRecord_ConcurrentWithClose(t *testing.T) {
	sink := &recordingSink{}
	rec := NewRecorder(t.TempDir(), zerolog.Nop(), WithSinks(sink))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = rec.Record(context.Background(), inbound("{}"), "webhook")
		}()
	}
	rec.Close()
	wg.Wait()
	rec.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.LessOrEqual(t, len(sink.paths), 20)
}

type ctxSink struct{ err error }

func (s *ctxSink) Name() string { return "ctx" }

func (s *ctxSink) Ship(ctx context.Context, _ string, _ *Record) error {
	time.Sleep(10 * time.Millisecond)
	s.err = ctx.Err()
	return nil
}
