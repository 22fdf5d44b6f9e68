// Package logstore lists, reads, searches and prunes the files under the log
// directory: the plain logs written by the logger and the per-day audit records
// written by the audit recorder. Every call reads the filesystem live.
package logstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrAccessDenied = errors.New("access denied: file outside logs directory")
	ErrNotFound     = errors.New("log file not found")
	ErrMalformed    = errors.New("log file is not valid JSON")
	ErrInvalidDate  = errors.New("invalid date format, use YYYY-MM-DD")
	ErrEmptyQuery   = errors.New("search query is empty")
)

// Kind classifies an inventoried file. The values are the wire names.
type Kind string

const (
	KindPlainLog     Kind = "log"
	KindJSONSnapshot Kind = "json"
	KindWebhookAudit Kind = "webhook"
)

var dateDirPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// FileInfo describes one file. Name is relative to the log root and always
// uses forward slashes ("2026-03-14/webhook-....json" for audit records).
type FileInfo struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Kind     Kind      `json:"type"`
}

type Store struct {
	root string
	log  zerolog.Logger
	now  func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(root string, log zerolog.Logger, opts ...Option) *Store {
	s := &Store{root: filepath.Clean(root), log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Root() string { return s.root }

// List returns the inventory sorted by modification time, most recent first.
// limit <= 0 returns everything. A missing log root is an empty inventory.
func (s *Store) List(limit int) ([]FileInfo, error) {
	files, err := s.inventory()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

func (s *Store) inventory() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []FileInfo{}, nil
		}
		return nil, fmt.Errorf("read log dir: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() {
			if dateDirPattern.MatchString(name) {
				files = append(files, s.dayDir(name)...)
			}
			continue
		}
		kind, ok := topLevelKind(name)
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, FileInfo{Name: name, Size: info.Size(), Modified: info.ModTime(), Kind: kind})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].Modified.Equal(files[j].Modified) {
			return files[i].Modified.After(files[j].Modified)
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

func (s *Store) dayDir(date string) []FileInfo {
	entries, err := os.ReadDir(filepath.Join(s.root, date))
	if err != nil {
		s.log.Warn().Err(err).Str("dir", date).Msg("error reading log subdirectory")
		return nil
	}
	var files []FileInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, FileInfo{
			Name:     path.Join(date, name),
			Size:     info.Size(),
			Modified: info.ModTime(),
			Kind:     KindWebhookAudit,
		})
	}
	return files
}

func topLevelKind(name string) (Kind, bool) {
	switch {
	case strings.HasSuffix(name, ".log"):
		return KindPlainLog, true
	case strings.HasSuffix(name, ".json"):
		return KindJSONSnapshot, true
	default:
		return "", false
	}
}

// resolve maps a caller supplied name onto a path under root. Absolute names
// and names that climb out of root are rejected whether or not the target exists.
func (s *Store) resolve(name string) (string, error) {
	if name == "" {
		return "", ErrNotFound
	}
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", ErrAccessDenied
	}
	full := filepath.Join(s.root, filepath.FromSlash(name))
	rel, err := filepath.Rel(s.root, full)
	if err != nil {
		return "", ErrAccessDenied
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrAccessDenied
	}
	if rel == "." {
		return "", ErrNotFound
	}
	return s.confine(full)
}

// confine rejects a path whose symlinks lead outside root. A path that does
// not exist is returned unchanged for the caller to report as missing.
func (s *Store) confine(full string) (string, error) {
	target, err := filepath.EvalSymlinks(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return full, nil
		}
		return "", fmt.Errorf("resolve %s: %w", filepath.Base(full), err)
	}
	root, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		return "", fmt.Errorf("resolve log dir: %w", err)
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrAccessDenied
	}
	return target, nil
}
