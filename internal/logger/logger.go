// Package logger builds the process zerolog.Logger.
//
// Besides the console, every entry is appended as JSON to <dir>/combined.log and
// entries at error level or above also go to <dir>/error.log. Those two files are
// the plain logs served back by the log query API.
package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	CombinedFile = "combined.log"
	ErrorFile    = "error.log"
)

type Config struct {
	Level  string
	Format string
	// Dir receives combined.log and error.log. Empty disables file output.
	Dir string
	// Console defaults to os.Stdout.
	Console io.Writer
}

// Logger wraps the configured zerolog.Logger and the files it writes to.
type Logger struct {
	zerolog.Logger
	files []*os.File
}

func New(cfg Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}
	if cfg.Format == "console" {
		console = zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"}
	}

	l := &Logger{}
	writers := []io.Writer{console}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		combined, err := openAppend(filepath.Join(cfg.Dir, CombinedFile))
		if err != nil {
			return nil, err
		}
		errs, err := openAppend(filepath.Join(cfg.Dir, ErrorFile))
		if err != nil {
			combined.Close()
			return nil, err
		}
		l.files = append(l.files, combined, errs)
		writers = append(writers, combined, &minLevelWriter{w: errs, min: zerolog.ErrorLevel})
	}

	l.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Str("service", "twin").
		Logger()
	return l, nil
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

func (l *Logger) Close() error {
	var errs []error
	for _, f := range l.files {
		errs = append(errs, f.Close())
	}
	l.files = nil
	return errors.Join(errs...)
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// minLevelWriter drops entries below min.
type minLevelWriter struct {
	w   io.Writer
	min zerolog.Level
}

func (m *minLevelWriter) Write(p []byte) (int, error) {
	return m.w.Write(p)
}

func (m *minLevelWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < m.min {
		return len(p), nil
	}
	return m.w.Write(p)
}
