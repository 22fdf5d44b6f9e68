// Package audit persists a JSON snapshot of inbound requests under a per-day
// folder of the log directory and forwards each stored record to optional sinks.
package audit

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Aincrad-Flux/TWIN/internal/metrics"
	"github.com/Aincrad-Flux/TWIN/internal/webhook"
)

const defaultShipTimeout = 5 * time.Second

// Sink receives every record after it has been written to disk.
type Sink interface {
	Name() string
	Ship(ctx context.Context, storedPath string, rec *Record) error
}

type Recorder struct {
	root        string
	log         zerolog.Logger
	now         func() time.Time
	sinks       []Sink
	shipTimeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Recorder)

func WithSinks(sinks ...Sink) Option {
	return func(r *Recorder) { r.sinks = append(r.sinks, sinks...) }
}

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

func WithShipTimeout(d time.Duration) Option {
	return func(r *Recorder) { r.shipTimeout = d }
}

func NewRecorder(root string, log zerolog.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		root:        root,
		log:         log,
		now:         time.Now,
		shipTimeout: defaultShipTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) Root() string { return r.root }

// EnsureDayDir creates <root>/<date> if missing. Calling it for an existing
// folder, or from concurrent requests, is not an error.
func (r *Recorder) EnsureDayDir(date string) (string, error) {
	dir := filepath.Join(r.root, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create day dir %s: %w", date, err)
	}
	return dir, nil
}

// Record writes req as <root>/<UTC date>/<prefix>-<timestamp>.json and returns
// the path relative to root ("date/file"). Errors are logged and returned; the
// caller is expected to carry on without the record.
func (r *Recorder) Record(ctx context.Context, req *webhook.InboundRequest, prefix string) (string, error) {
	at := req.ReceivedAt
	if at.IsZero() {
		at = r.now()
	}
	at = at.UTC()

	rec := NewRecord(req, at)
	storedPath, err := r.write(rec, prefix, at)
	if err != nil {
		metrics.AuditWrites.WithLabelValues("error").Inc()
		r.log.Error().Err(err).
			Str("client_ip", req.ClientIP).
			Str("prefix", prefix).
			Msg("failed to write audit record")
		return "", err
	}
	metrics.AuditWrites.WithLabelValues("ok").Inc()
	r.log.Debug().Str("file", storedPath).Msg("audit record stored")

	r.ship(ctx, storedPath, rec)
	return storedPath, nil
}

func (r *Recorder) write(rec *Record, prefix string, at time.Time) (string, error) {
	date := at.Format(DateLayout)
	dir, err := r.EnsureDayDir(date)
	if err != nil {
		return "", err
	}

	data, err := Encode(rec)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}

	name := FileName(prefix, at)
	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close record: %w", err)
	}
	// Same-millisecond collisions overwrite: last write wins.
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename record: %w", err)
	}
	return path.Join(date, name), nil
}

func (r *Recorder) ship(ctx context.Context, storedPath string, rec *Record) {
	if len(r.sinks) == 0 {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.log.Warn().Str("file", storedPath).Msg("recorder closed, audit shipment skipped")
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	base := context.WithoutCancel(ctx)
	go func() {
		defer r.wg.Done()
		for _, s := range r.sinks {
			sctx, cancel := context.WithTimeout(base, r.shipTimeout)
			err := s.Ship(sctx, storedPath, rec)
			cancel()
			if err != nil {
				metrics.AuditShipments.WithLabelValues(s.Name(), "error").Inc()
				r.log.Warn().Err(err).Str("sink", s.Name()).Str("file", storedPath).Msg("audit shipment failed")
				continue
			}
			metrics.AuditShipments.WithLabelValues(s.Name(), "ok").Inc()
		}
	}()
}

// Close waits for in-flight sink shipments. Records written afterwards are
// still stored on disk but no longer shipped. Close may be called more than once.
func (r *Recorder) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}
