package logstore

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultSearchLimit = 100
	maxLineBytes       = 1 << 20
)

type SearchOptions struct {
	// FilePattern restricts the scan to files whose name contains it.
	FilePattern   string
	Limit         int
	CaseSensitive bool
}

type SearchMatch struct {
	File             string    `json:"file"`
	LineNumber       int       `json:"lineNumber"`
	LineContent      string    `json:"lineContent"`
	FileModifiedTime time.Time `json:"fileModifiedTime"`
}

type SearchResult struct {
	Query        string        `json:"query"`
	TotalResults int           `json:"totalResults"`
	Results      []SearchMatch `json:"results"`
}

// Search scans inventoried files for query taken literally. It stops as soon as
// Limit matches are collected. Files that cannot be read are logged and skipped.
func (s *Store) Search(query string, opts SearchOptions) (*SearchResult, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	pattern := regexp.QuoteMeta(query)
	if !opts.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	files, err := s.inventory()
	if err != nil {
		return nil, err
	}

	res := &SearchResult{Query: query, Results: []SearchMatch{}}
	for _, f := range files {
		if opts.FilePattern != "" && !strings.Contains(f.Name, opts.FilePattern) {
			continue
		}
		s.searchFile(f, re, limit, res)
		if len(res.Results) >= limit {
			break
		}
	}
	res.TotalResults = len(res.Results)
	return res, nil
}

func (s *Store) searchFile(f FileInfo, re *regexp.Regexp, limit int, res *SearchResult) {
	fh, err := os.Open(filepath.Join(s.root, filepath.FromSlash(f.Name)))
	if err != nil {
		s.log.Warn().Err(err).Str("file", f.Name).Msg("error searching in file")
		return
	}
	defer fh.Close()

	br := bufio.NewReaderSize(fh, 64*1024)
	var buf []byte
	for n := 1; ; n++ {
		line, overlong, err := readLine(br, maxLineBytes, buf[:0])
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Warn().Err(err).Str("file", f.Name).Msg("error searching in file")
			}
			return
		}
		buf = line
		if overlong {
			s.log.Debug().Str("file", f.Name).Int("line", n).Msg("line too long to search, skipped")
			continue
		}
		if !re.Match(line) {
			continue
		}
		res.Results = append(res.Results, SearchMatch{
			File:             f.Name,
			LineNumber:       n,
			LineContent:      strings.TrimSpace(string(line)),
			FileModifiedTime: f.Modified,
		})
		if len(res.Results) >= limit {
			return
		}
	}
}

// readLine appends the next line, without its terminator, to buf. A line
// longer than max is consumed entirely and reported as overlong with no
// content. io.EOF is returned only when no line is left.
func readLine(r *bufio.Reader, max int, buf []byte) (line []byte, overlong bool, err error) {
	started := false
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && started {
				return buf, overlong, nil
			}
			return nil, false, err
		}
		started = true
		if !overlong {
			if len(buf)+len(chunk) > max {
				overlong = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !isPrefix {
			return buf, overlong, nil
		}
	}
}
