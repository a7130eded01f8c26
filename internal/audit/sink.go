package audit

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Sink receives events the Log table could not take.
//
// Write must not fail the caller: implementations swallow their own errors.
type Sink interface {
	Write(ev Event, at time.Time, cause error)
}

// NopSink drops every event.
type NopSink struct{}

// Write implements Sink.
func (NopSink) Write(Event, time.Time, error) {}

// SlogSink writes fallback events as structured warnings.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a SlogSink. A nil logger uses slog.Default().
func NewSlogSink(l *slog.Logger) *SlogSink {
	if l == nil {
		l = slog.Default()
	}
	return &SlogSink{logger: l}
}

// Write implements Sink.
func (s *SlogSink) Write(ev Event, at time.Time, cause error) {
	s.logger.Warn("audit log unavailable",
		"event", ev.EventName,
		"object", ev.Object,
		"subject", ev.Subject,
		"status", ev.Status,
		"at", at.Format(DateTimeLayout),
		"error", cause,
	)
}

// TextSink appends human-readable blocks to a line-oriented file.
// The file is opened once, in append mode, and kept for the process
// lifetime.
type TextSink struct {
	mu   sync.Mutex
	w    io.Writer
	file *os.File
}

// OpenTextSink opens (creating if needed) the side-channel file at path.
func OpenTextSink(path string) (*TextSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create text log directory %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open text log %s: %w", path, err)
	}
	return &TextSink{w: f, file: f}, nil
}

// NewTextSink writes blocks to w. Close is a no-op for sinks built this way.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

// Write implements Sink.
func (s *TextSink) Write(ev Event, at time.Time, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.w == nil {
		return
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	// Best effort: a failing side channel has nowhere left to report to
	_, _ = fmt.Fprintf(s.w,
		"Data: {\neventName = %s\nobject = %s\nsubject = %s\neventStatus = %s\neventDateTime = %s\nerror = %s\n}\n",
		ev.EventName, ev.Object, ev.Subject, ev.Status, at.Format(time.ANSIC), reason,
	)
}

// Close closes the underlying file, if the sink owns one.
func (s *TextSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.w = nil
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// MultiSink fans an event out to several sinks.
type MultiSink []Sink

// Write implements Sink.
func (m MultiSink) Write(ev Event, at time.Time, cause error) {
	for _, s := range m {
		if s != nil {
			s.Write(ev, at, cause)
		}
	}
}
