package logstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

type ReadOptions struct {
	// Lines caps the returned lines; <= 0 returns all of them.
	Lines int
	// Tail takes the last Lines lines instead of the first.
	Tail bool
	// Filter keeps lines containing it, compared case-insensitively.
	Filter string
}

// ReadResult is the content of one file. For .json files only Filename and
// Document are set.
type ReadResult struct {
	Filename      string   `json:"filename"`
	TotalLines    int      `json:"totalLines"`
	ReturnedLines int      `json:"returnedLines"`
	Content       []string `json:"content"`
	Document      any      `json:"-"`
}

// IsDocument reports whether the result holds a parsed JSON file.
func (r *ReadResult) IsDocument() bool { return r.Document != nil }

// Read returns the content of name, resolved under the log root. TotalLines
// counts the non-empty lines of the file before filter and window apply.
func (s *Store) Read(name string, opts ReadOptions) (*ReadResult, error) {
	full, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	if strings.HasSuffix(name, ".json") {
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
			s.log.Warn().Str("file", name).Msg("log file is not valid JSON, possibly still being written")
			return nil, ErrMalformed
		}
		return &ReadResult{Filename: name, Document: doc}, nil
	}

	lines := nonEmptyLines(string(data))
	total := len(lines)

	if opts.Filter != "" {
		needle := strings.ToLower(opts.Filter)
		kept := make([]string, 0, len(lines))
		for _, l := range lines {
			if strings.Contains(strings.ToLower(l), needle) {
				kept = append(kept, l)
			}
		}
		lines = kept
	}
	if opts.Lines > 0 && len(lines) > opts.Lines {
		if opts.Tail {
			lines = lines[len(lines)-opts.Lines:]
		} else {
			lines = lines[:opts.Lines]
		}
	}

	return &ReadResult{
		Filename:      name,
		TotalLines:    total,
		ReturnedLines: len(lines),
		Content:       lines,
	}, nil
}

func nonEmptyLines(content string) []string {
	raw := strings.Split(content, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
