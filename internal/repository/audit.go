package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Aincrad-Flux/TWIN/internal/audit"
	"github.com/Aincrad-Flux/TWIN/internal/model"
)

// AuditIndex mirrors stored audit records into the audit_records table.
type AuditIndex struct {
	pool *pgxpool.Pool
}

// NewAuditIndex returns an AuditIndex using the given pool.
func NewAuditIndex(pool *pgxpool.Pool) *AuditIndex {
	return &AuditIndex{pool: pool}
}

// Name implements audit.Sink.
func (r *AuditIndex) Name() string { return "postgres" }

// Ship implements audit.Sink.
func (r *AuditIndex) Ship(ctx context.Context, storedPath string, rec *audit.Record) error {
	entry, err := EntryFromRecord(storedPath, rec)
	if err != nil {
		return err
	}
	return r.Insert(ctx, entry)
}

// EntryFromRecord builds the index row for a record stored at storedPath.
func EntryFromRecord(storedPath string, rec *audit.Record) (*model.AuditIndexEntry, error) {
	at, err := time.Parse(audit.TimestampLayout, rec.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("parse record timestamp: %w", err)
	}
	body := rec.Body
	if !json.Valid(body) {
		body = json.RawMessage("null")
	}
	return &model.AuditIndexEntry{
		StoredPath: storedPath,
		Prefix:     prefixOf(storedPath),
		Method:     rec.Method,
		URL:        rec.URL,
		ClientIP:   rec.ClientIP,
		EventType:  rec.EventType(),
		ReceivedAt: at,
		Body:       body,
	}, nil
}

// prefixOf returns "webhook" for "2026-03-14/webhook-2026-03-14T09-26-53-589Z.json".
func prefixOf(storedPath string) string {
	name := path.Base(storedPath)
	// The timestamp part is fixed width: "-YYYY-MM-DDTHH-MM-SS-mmmZ.json".
	const suffixLen = len("-2006-01-02T15-04-05-000Z.json")
	if len(name) <= suffixLen {
		return ""
	}
	return name[:len(name)-suffixLen]
}

// Insert adds one row; re-shipping the same stored path updates it in place.
func (r *AuditIndex) Insert(ctx context.Context, e *model.AuditIndexEntry) error {
	query := `
		INSERT INTO audit_records (id, stored_path, prefix, method, url, client_ip, event_type, received_at, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (stored_path) DO UPDATE SET
			method = EXCLUDED.method,
			url = EXCLUDED.url,
			client_ip = EXCLUDED.client_ip,
			event_type = EXCLUDED.event_type,
			received_at = EXCLUDED.received_at,
			body = EXCLUDED.body
		RETURNING id, created_at`
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return r.pool.QueryRow(ctx, query,
		e.ID,
		e.StoredPath,
		e.Prefix,
		e.Method,
		e.URL,
		e.ClientIP,
		e.EventType,
		e.ReceivedAt,
		e.Body,
	).Scan(&e.ID, &e.CreatedAt)
}

// ListRecent returns up to limit rows ordered by received_at descending.
func (r *AuditIndex) ListRecent(ctx context.Context, limit int) ([]model.AuditIndexEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, stored_path, prefix, method, url, client_ip, event_type, received_at, body, created_at
		FROM audit_records
		ORDER BY received_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]model.AuditIndexEntry, 0, limit)
	for rows.Next() {
		var e model.AuditIndexEntry
		if err := rows.Scan(
			&e.ID,
			&e.StoredPath,
			&e.Prefix,
			&e.Method,
			&e.URL,
			&e.ClientIP,
			&e.EventType,
			&e.ReceivedAt,
			&e.Body,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// GetByPath returns one row by stored path, or nil if not found.
func (r *AuditIndex) GetByPath(ctx context.Context, storedPath string) (*model.AuditIndexEntry, error) {
	var e model.AuditIndexEntry
	err := r.pool.QueryRow(ctx, `
		SELECT id, stored_path, prefix, method, url, client_ip, event_type, received_at, body, created_at
		FROM audit_records WHERE stored_path = $1`, storedPath).Scan(
		&e.ID,
		&e.StoredPath,
		&e.Prefix,
		&e.Method,
		&e.URL,
		&e.ClientIP,
		&e.EventType,
		&e.ReceivedAt,
		&e.Body,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}
