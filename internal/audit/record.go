package audit

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Aincrad-Flux/TWIN/internal/webhook"
)

// TimestampLayout is the UTC ISO-8601 form used in records and file names.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// DateLayout names the per-day folders.
const DateLayout = "2006-01-02"

// Record is the JSON document persisted for one inbound request.
type Record struct {
	Timestamp   string            `json:"timestamp"`
	Headers     map[string]string `json:"headers"`
	Body        json.RawMessage   `json:"body"`
	QueryParams map[string]any    `json:"queryParams"`
	Method      string            `json:"method"`
	URL         string            `json:"url"`
	ClientIP    string            `json:"clientIP"`
}

// NewRecord snapshots req. Header names are lower-cased and repeated values
// joined with ", ". A body that is valid JSON is embedded as is; anything else
// is stored as a JSON string. An empty body becomes {}.
func NewRecord(req *webhook.InboundRequest, at time.Time) *Record {
	return &Record{
		Timestamp:   at.UTC().Format(TimestampLayout),
		Headers:     flattenHeaders(req.Header),
		Body:        bodyJSON(req.Body),
		QueryParams: flattenQuery(req.Query),
		Method:      req.Method,
		URL:         req.URL,
		ClientIP:    req.ClientIP,
	}
}

// EventType returns the webhookEvent field of a JSON object body, if any.
func (r *Record) EventType() string {
	var probe struct {
		WebhookEvent string `json:"webhookEvent"`
	}
	if err := json.Unmarshal(r.Body, &probe); err != nil {
		return ""
	}
	return probe.WebhookEvent
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return out
}

func flattenQuery(q url.Values) map[string]any {
	out := make(map[string]any, len(q))
	for k, v := range q {
		switch len(v) {
		case 0:
			out[k] = ""
		case 1:
			out[k] = v[0]
		default:
			out[k] = v
		}
	}
	return out
}

func bodyJSON(body []byte) json.RawMessage {
	if len(strings.TrimSpace(string(body))) == 0 {
		return json.RawMessage("{}")
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(string(body)); err != nil {
		return json.RawMessage("{}")
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n"))
}

// Encode renders rec as indented JSON. Characters such as '&' and '<' are
// kept literal so the stored text matches what was received.
func Encode(rec *Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileName returns "<prefix>-<timestamp>.json" with ':' and '.' of the
// timestamp replaced by '-'.
func FileName(prefix string, at time.Time) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(at.UTC().Format(TimestampLayout))
	return prefix + "-" + ts + ".json"
}
