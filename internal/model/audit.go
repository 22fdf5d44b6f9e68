package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditIndexEntry is one row of the audit_records table: a database mirror of
// an audit record stored on disk under StoredPath.
type AuditIndexEntry struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	StoredPath string          `db:"stored_path" json:"storedPath"`
	Prefix     string          `db:"prefix" json:"prefix"`
	Method     string          `db:"method" json:"method"`
	URL        string          `db:"url" json:"url"`
	ClientIP   string          `db:"client_ip" json:"clientIP"`
	EventType  string          `db:"event_type" json:"eventType,omitempty"`
	ReceivedAt time.Time       `db:"received_at" json:"receivedAt"`
	Body       json.RawMessage `db:"body" json:"body,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}
