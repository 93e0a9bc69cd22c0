package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
)

// maxLineBytes bounds a single ledger line. Evidence-heavy events reach
// hundreds of kilobytes; anything beyond this is a corrupt file.
const maxLineBytes = 4 * 1024 * 1024

// Ledger is a parsed replay events file: the frozen configuration
// snapshot the events were recorded under, then the events themselves.
type Ledger struct {
	Snapshot models.ConfigSnapshot
	Events   []models.ReplayEvent
}

// LoadLedger reads a JSONL events file. The first non-blank line is the
// configuration snapshot, every following line one event. Blank lines
// are ignored.
func LoadLedger(path string) (Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return Ledger{}, faults.Wrap(faults.KindValidationFailed, "replay.LoadLedger", "events file unreadable", err)
	}
	defer f.Close()
	return ReadLedger(f)
}

// ReadLedger parses ledger lines from r. See LoadLedger for the format.
func ReadLedger(r io.Reader) (Ledger, error) {
	const op = "replay.ReadLedger"
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var ledger Ledger
	haveSnapshot := false
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		if !haveSnapshot {
			if err := json.Unmarshal(raw, &ledger.Snapshot); err != nil {
				return Ledger{}, faults.Wrap(faults.KindValidationFailed, op,
					fmt.Sprintf("line %d: bad config snapshot", line), err)
			}
			if ledger.Snapshot.PolicyName == "" && ledger.Snapshot.ModelVersion == "" {
				return Ledger{}, faults.Newf(faults.KindValidationFailed, op,
					"line %d: ledger must begin with a config snapshot", line)
			}
			haveSnapshot = true
			continue
		}
		var ev models.ReplayEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return Ledger{}, faults.Wrap(faults.KindValidationFailed, op,
				fmt.Sprintf("line %d: bad event", line), err)
		}
		if ev.Timestamp.IsZero() {
			return Ledger{}, faults.Newf(faults.KindValidationFailed, op,
				"line %d: event has no timestamp", line)
		}
		ledger.Events = append(ledger.Events, ev)
	}
	if err := scanner.Err(); err != nil {
		return Ledger{}, faults.Wrap(faults.KindValidationFailed, op, "events file unreadable", err)
	}
	if !haveSnapshot {
		return Ledger{}, faults.New(faults.KindValidationFailed, op, "events file is empty")
	}
	return ledger, nil
}
