package replay

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
)

// Recorder appends replay events to a JSONL ledger, snapshot first.
// One recorder owns one file; a new recording session gets a new file
// so the snapshot/events contract of LoadLedger always holds. Recording
// never fails the caller.
type Recorder struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	logger *slog.Logger
}

// NewRecorder writes the snapshot line to w and returns a recorder for
// the events that follow.
func NewRecorder(w io.Writer, snap models.ConfigSnapshot, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		panic("replay.NewRecorder: nil logger")
	}
	r := &Recorder{w: w, logger: logger}
	if c, ok := w.(io.Closer); ok {
		r.closer = c
	}
	if err := r.writeLine(snap); err != nil {
		return nil, faults.Wrap(faults.KindUpstreamUnavailable, "replay.NewRecorder", "snapshot write failed", err)
	}
	return r, nil
}

// OpenRecorder starts a recording session in dir. The file name carries
// the session start time so successive sessions never collide.
func OpenRecorder(dir string, snap models.ConfigSnapshot, logger *slog.Logger) (*Recorder, error) {
	const op = "replay.OpenRecorder"
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, faults.Wrap(faults.KindUpstreamUnavailable, op, "ledger directory unavailable", err)
	}
	name := fmt.Sprintf("events-%s.jsonl", time.Now().UTC().Format("20060102T150405"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, faults.Wrap(faults.KindUpstreamUnavailable, op, "ledger file unavailable", err)
	}
	r, err := NewRecorder(f, snap, logger)
	if err != nil {
		f.Close()
		return nil, err
	}
	logger.Info("Replay ledger opened", "path", filepath.Join(dir, name))
	return r, nil
}

// Record appends one event. Failures are logged, never returned: losing
// a ledger line must not stall the pipeline that produced it.
func (r *Recorder) Record(ev models.ReplayEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if err := r.writeLine(ev); err != nil {
		r.logger.Warn("Replay event not recorded", "error", err)
	}
}

// Close flushes the underlying file if the recorder owns one.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func (r *Recorder) writeLine(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = r.w.Write(append(b, '\n'))
	return err
}
