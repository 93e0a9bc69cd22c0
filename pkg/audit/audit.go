// Package audit appends governance events to a JSONL ledger, one object
// per line, rotated on size. Recording never fails the caller: a broken
// audit sink logs a warning and drops the entry.
package audit

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Event types recorded by the pipeline.
const (
	EventDecisionMade      = "DECISION_MADE"
	EventReviewOpened      = "REVIEW_OPENED"
	EventReviewClosed      = "REVIEW_CLOSED"
	EventExecuteRequest    = "EXECUTE_REQUEST"
	EventExecutionRecorded = "EXECUTION_RECORDED"
	EventTickCompleted     = "TICK_COMPLETED"
	EventTickSkipped       = "TICK_SKIPPED"
	EventReplayCompleted   = "REPLAY_COMPLETED"
)

// Entry is one audit line.
type Entry struct {
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	EventType     string         `json:"event_type"`
	DecisionID    string         `json:"decision_id,omitempty"`
	PlaybookID    string         `json:"playbook_id,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// Log is a concurrency-safe JSONL appender.
type Log struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	logger *slog.Logger

	now func() time.Time
}

// New wraps an arbitrary writer, typically for tests.
func New(w io.Writer, logger *slog.Logger) *Log {
	if logger == nil {
		panic("audit.New: nil logger")
	}
	l := &Log{w: w, logger: logger, now: time.Now}
	if c, ok := w.(io.Closer); ok {
		l.closer = c
	}
	return l
}

// Open creates a size-rotated audit log at path.
func Open(path string, logger *slog.Logger) *Log {
	return New(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}, logger)
}

// SetClock overrides the entry timestamp source. Replay pins it.
func (l *Log) SetClock(now func() time.Time) { l.now = now }

// Record appends one entry. A zero timestamp is stamped with the log
// clock. Failures are logged, never returned.
func (l *Log) Record(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now().UTC()
	}
	line, err := json.Marshal(e)
	if err != nil {
		l.logger.Warn("Audit entry not serialisable", "event_type", e.EventType, "error", err)
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(line); err != nil {
		l.logger.Warn("Audit write failed", "event_type", e.EventType, "error", err)
	}
}

// Close flushes and closes the underlying sink when it supports closing.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
