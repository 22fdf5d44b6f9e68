package logstore

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aincrad-Flux/TWIN/internal/metrics"
)

const (
	recentActivityLen  = 5
	DefaultRecentLimit = 10
	recentWindow       = 24 * time.Hour
)

var ErrInvalidRetention = errors.New("retention days must not be negative")

type KindStats struct {
	Count int   `json:"count"`
	Size  int64 `json:"size"`
}

type RecentFile struct {
	Name     string    `json:"name"`
	Modified time.Time `json:"modified"`
	Size     int64     `json:"size"`
}

type Stats struct {
	TotalFiles     int                `json:"totalFiles"`
	TotalSize      int64              `json:"totalSize"`
	ByType         map[Kind]KindStats `json:"byType"`
	RecentActivity []RecentFile       `json:"recentActivity"`
}

func (s *Store) Stats() (*Stats, error) {
	files, err := s.inventory()
	if err != nil {
		return nil, err
	}
	st := &Stats{
		TotalFiles:     len(files),
		ByType:         make(map[Kind]KindStats),
		RecentActivity: make([]RecentFile, 0, recentActivityLen),
	}
	for i, f := range files {
		st.TotalSize += f.Size
		ks := st.ByType[f.Kind]
		ks.Count++
		ks.Size += f.Size
		st.ByType[f.Kind] = ks
		if i < recentActivityLen {
			st.RecentActivity = append(st.RecentActivity, RecentFile{Name: f.Name, Modified: f.Modified, Size: f.Size})
		}
	}
	return st, nil
}

type PruneResult struct {
	DeletedCount   int   `json:"deletedCount"`
	DeletedSize    int64 `json:"deletedSize"`
	RemainingFiles int   `json:"remainingFiles"`
	RemovedDirs    int   `json:"removedDirs"`
}

// Prune deletes every inventoried file modified strictly before now - days.
// Files that cannot be removed are logged and counted as remaining. Day
// folders left empty are removed too.
func (s *Store) Prune(days int) (*PruneResult, error) {
	if days < 0 {
		return nil, ErrInvalidRetention
	}
	files, err := s.inventory()
	if err != nil {
		return nil, err
	}
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)

	res := &PruneResult{}
	touched := make(map[string]struct{})
	for _, f := range files {
		if !f.Modified.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(f.Name))); err != nil {
			s.log.Warn().Err(err).Str("file", f.Name).Msg("error deleting log file")
			continue
		}
		res.DeletedCount++
		res.DeletedSize += f.Size
		if dir := path.Dir(f.Name); dir != "." {
			touched[dir] = struct{}{}
		}
		s.log.Info().Str("file", f.Name).Msg("deleted old log file")
	}
	res.RemainingFiles = len(files) - res.DeletedCount

	for dir := range touched {
		full := filepath.Join(s.root, dir)
		entries, err := os.ReadDir(full)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(full); err != nil {
			s.log.Warn().Err(err).Str("dir", dir).Msg("error removing empty log directory")
			continue
		}
		res.RemovedDirs++
	}

	metrics.LogsPruned.Add(float64(res.DeletedCount))
	return res, nil
}

// WebhooksForDate returns the audit records stored under the YYYY-MM-DD folder date.
func (s *Store) WebhooksForDate(date string) ([]FileInfo, error) {
	if !dateDirPattern.MatchString(date) {
		return nil, ErrInvalidDate
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, ErrInvalidDate
	}
	files, err := s.inventory()
	if err != nil {
		return nil, err
	}
	out := make([]FileInfo, 0)
	for _, f := range files {
		if f.Kind == KindWebhookAudit && strings.HasPrefix(f.Name, date+"/") {
			out = append(out, f)
		}
	}
	return out, nil
}

// RecentWebhooks returns up to limit audit records modified in the last 24 hours.
func (s *Store) RecentWebhooks(limit int) ([]FileInfo, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	files, err := s.inventory()
	if err != nil {
		return nil, err
	}
	since := s.now().Add(-recentWindow)
	out := make([]FileInfo, 0, limit)
	for _, f := range files {
		if len(out) >= limit {
			break
		}
		if f.Kind == KindWebhookAudit && f.Modified.After(since) {
			out = append(out, f)
		}
	}
	return out, nil
}
