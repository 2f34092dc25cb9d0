// Package logging sets up the leveled slog output of sisweep and the
// append-only record of degenerate sweep cells.
//
// Warnings, per-cell debug lines and per-repeat trace lines go to stderr
// through NewLogger. Degenerate cells (no repeats, or no infections left
// after the transient) are also appended as Event lines to
// <output dir>/diagnostics.jsonl so a long sweep can be audited afterwards.
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace sits below Debug; the averager logs every finished repeat at it.
const LevelTrace = slog.LevelDebug - 4

// DiagnosticsFile is the name of the JSONL file written by DiagnosticLogger.
const DiagnosticsFile = "diagnostics.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "warn", "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything. Used as the default when
// callers do not inject one.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Event is one degenerate cell as written to diagnostics.jsonl.
type Event struct {
	Time            time.Time `json:"time"`
	Kind            string    `json:"kind"`
	Beta            float64   `json:"beta"`
	Mu              float64   `json:"mu"`
	Repeats         int       `json:"repeats"`
	Steps           int       `json:"steps"`
	Transient       int       `json:"transient"`
	InitialFraction float64   `json:"initial_fraction"`
}

// DiagnosticLogger appends Events to a JSONL file. It is safe for
// concurrent use, and a nil *DiagnosticLogger discards everything.
type DiagnosticLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewDiagnosticLogger opens dir/diagnostics.jsonl for append, creating dir
// if needed. Returns nil if dir is empty or the file cannot be opened.
func NewDiagnosticLogger(dir string) *DiagnosticLogger {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	path := filepath.Join(dir, DiagnosticsFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &DiagnosticLogger{file: f}
}

// Record writes ev as a single line, stamping Time when it is zero.
func (dl *DiagnosticLogger) Record(ev Event) {
	if dl == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	data = append(data, '\n')

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.file == nil {
		return
	}
	_, _ = dl.file.Write(data)
}

// Close closes the file; later Records are dropped.
func (dl *DiagnosticLogger) Close() {
	if dl == nil {
		return
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.file != nil {
		dl.file.Close()
		dl.file = nil
	}
}
