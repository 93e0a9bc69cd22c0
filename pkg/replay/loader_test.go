package replay

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
)

func ledgerLines(t *testing.T, values ...any) string {
	t.Helper()
	var b strings.Builder
	for _, v := range values {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		b.Write(raw)
		b.WriteByte('\n')
	}
	return b.String()
}

func TestLoadLedger_RoundTrip(t *testing.T) {
	snap := testSnapshot()
	base := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	events := recordOriginals(t, snap, []models.ReplayEvent{
		calmEvent(base, "fp-a"),
		calmEvent(base.Add(time.Minute), "fp-b"),
	})

	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(ledgerLines(t, snap, events[0], events[1])), 0o640))

	ledger, err := LoadLedger(path)
	require.NoError(t, err)

	assert.Equal(t, snap, ledger.Snapshot)
	require.Len(t, ledger.Events, 2)
	assert.Equal(t, "fp-a", ledger.Events[0].Alert.Fingerprint)
	assert.Equal(t, base, ledger.Events[0].Timestamp)
	require.NotNil(t, ledger.Events[0].Decision)
	assert.Equal(t, events[0].Decision.ID, ledger.Events[0].Decision.ID)
	require.Len(t, ledger.Events[1].Investigation, 1)
	assert.Equal(t, "metrics-analyst", ledger.Events[1].Investigation[0].SpecialistID)
}

func TestLoadLedger_MissingFile(t *testing.T) {
	_, err := LoadLedger(filepath.Join(t.TempDir(), "nope.jsonl"))
	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindValidationFailed))
}

func TestReadLedger_BlankLinesIgnored(t *testing.T) {
	snap := testSnapshot()
	base := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	content := "\n" + ledgerLines(t, snap) + "\n\n" + ledgerLines(t, calmEvent(base, "fp-a")) + "\n"

	ledger, err := ReadLedger(strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, snap.PolicyName, ledger.Snapshot.PolicyName)
	require.Len(t, ledger.Events, 1)
}

func TestReadLedger_Errors(t *testing.T) {
	snap := testSnapshot()
	base := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)

	t.Run("empty input", func(t *testing.T) {
		_, err := ReadLedger(strings.NewReader(""))
		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.KindValidationFailed))
		assert.ErrorContains(t, err, "empty")
	})

	t.Run("first line is not a snapshot", func(t *testing.T) {
		_, err := ReadLedger(strings.NewReader(ledgerLines(t, calmEvent(base, "fp-a"))))
		require.Error(t, err)
		assert.ErrorContains(t, err, "must begin with a config snapshot")
	})

	t.Run("broken event line is reported with its number", func(t *testing.T) {
		content := ledgerLines(t, snap) + "{not json\n"
		_, err := ReadLedger(strings.NewReader(content))
		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.KindValidationFailed))
		assert.ErrorContains(t, err, "line 2")
	})

	t.Run("event without timestamp", func(t *testing.T) {
		ev := calmEvent(base, "fp-a")
		ev.Timestamp = time.Time{}
		content := ledgerLines(t, snap, ev)
		_, err := ReadLedger(strings.NewReader(content))
		require.Error(t, err)
		assert.ErrorContains(t, err, "no timestamp")
	})
}

func TestRecorder_WritesLoadableLedger(t *testing.T) {
	snap := testSnapshot()
	base := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	rec, err := NewRecorder(&buf, snap, testLogger())
	require.NoError(t, err)

	rec.Record(calmEvent(base, "fp-a"))
	unstamped := calmEvent(base, "fp-b")
	unstamped.Timestamp = time.Time{}
	rec.Record(unstamped)
	require.NoError(t, rec.Close())

	ledger, err := ReadLedger(&buf)
	require.NoError(t, err)
	assert.Equal(t, snap, ledger.Snapshot)
	require.Len(t, ledger.Events, 2)
	assert.Equal(t, "fp-a", ledger.Events[0].Alert.Fingerprint)
	assert.False(t, ledger.Events[1].Timestamp.IsZero(), "recorder stamps events without a timestamp")
}

func TestOpenRecorder_CreatesSessionFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledgers")
	snap := testSnapshot()
	base := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)

	rec, err := OpenRecorder(dir, snap, testLogger())
	require.NoError(t, err)
	rec.Record(calmEvent(base, "fp-a"))
	require.NoError(t, rec.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "events-"))
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".jsonl"))

	ledger, err := LoadLedger(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, snap.ModelVersion, ledger.Snapshot.ModelVersion)
	require.Len(t, ledger.Events, 1)
}
