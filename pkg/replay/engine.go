// Package replay re-runs recorded incident histories through the
// decision path under a frozen configuration snapshot. Four modes share
// one engine: VALIDATION scores decision alignment against the recorded
// originals, TRAINING folds execution outcomes into playbook
// statistics, SIMULATION previews a modified snapshot, and AUDIT proves
// the replay reproduces byte for byte.
//
// Determinism is the contract. Candidate ids come from a counter that
// restarts per run, clocks are pinned to event timestamps, events are
// ordered before replaying, and the investigation roster is read from
// the events themselves, so two runs over the same events and snapshot
// emit identical decision bytes.
package replay

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/strands/pkg/audit"
	"github.com/codeready-toolchain/strands/pkg/decision"
	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/ingest"
	"github.com/codeready-toolchain/strands/pkg/models"
)

// timelineGap is the silence between consecutive events that AUDIT mode
// flags as a hole in the recorded history.
const timelineGap = time.Hour

// Alignment classifies one replayed decision against its original.
type Alignment string

const (
	// AlignMatch means decision type and risk both reproduced.
	AlignMatch Alignment = "MATCH"
	// AlignDivergenceSafe means the decisions differ without crossing
	// the auto-approval line on a high-risk incident.
	AlignDivergenceSafe Alignment = "DIVERGENCE_SAFE"
	// AlignDivergenceUnsafe means a high-risk original became
	// auto-approvable in replay, or the reverse.
	AlignDivergenceUnsafe Alignment = "DIVERGENCE_UNSAFE"
)

// Result is the aggregate verdict of a replay run.
type Result string

const (
	ResultPass Result = "PASS"
	ResultFail Result = "FAIL"
)

// BucketStats aggregates alignment for one replayed-confidence band.
type BucketStats struct {
	Total     int     `json:"total"`
	Matches   int     `json:"matches"`
	Precision float64 `json:"precision"`
}

// Report is the aggregate outcome of one replay run. Checksum covers
// the replayed decision bytes only, so two deterministic runs produce
// equal checksums even though session ids and report timestamps differ.
// Skipped counts events the mode could not use: no recorded decision to
// compare against, or no execution outcome to apply.
type Report struct {
	SessionID   string                `json:"session_id"`
	Mode        models.ReplayMode     `json:"mode"`
	Snapshot    models.ConfigSnapshot `json:"snapshot"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt time.Time             `json:"completed_at"`

	TotalEvents int `json:"total_events"`
	Replayed    int `json:"replayed"`
	Skipped     int `json:"skipped"`

	Matches           int     `json:"matches"`
	DivergencesSafe   int     `json:"divergences_safe"`
	UnsafeBypassCount int     `json:"unsafe_bypass_count"`
	AlignmentRate     float64 `json:"alignment_rate"`

	Buckets map[string]BucketStats `json:"confidence_buckets,omitempty"`

	OutcomesApplied int            `json:"outcomes_applied,omitempty"`
	TypeShifts      map[string]int `json:"type_shifts,omitempty"`
	Reproduced      int            `json:"reproduced,omitempty"`
	TimelineGaps    int            `json:"timeline_gaps,omitempty"`

	Decisions []models.DecisionCandidate `json:"decisions,omitempty"`
	Checksum  string                     `json:"checksum,omitempty"`
	Errors    []string                   `json:"errors,omitempty"`
	Result    Result                     `json:"result"`
}

// statsRecorder folds execution outcomes into playbook statistics.
type statsRecorder interface {
	RecordExecution(ctx context.Context, exec models.PlaybookExecution) error
}

// Engine replays recorded events. No live upstream is touched: the
// investigation roster comes from the events, the configuration from
// the snapshot.
type Engine struct {
	stats  statsRecorder
	trail  *audit.Log
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewEngine returns a replay engine. stats may be nil when TRAINING
// mode is never used; trail may be nil to skip audit entries.
func NewEngine(stats statsRecorder, trail *audit.Log, logger *slog.Logger) *Engine {
	if logger == nil {
		panic("replay.NewEngine: nil logger")
	}
	return &Engine{
		stats:  stats,
		trail:  trail,
		logger: logger,
		now:    time.Now,
		newID: func() string {
			return "replay_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		},
	}
}

// SetClock overrides the report wall clock.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// SetIDSource overrides session id generation.
func (e *Engine) SetIDSource(newID func() string) { e.newID = newID }

// Run replays events under the snapshot and returns the aggregate
// report. Events are ordered by timestamp, then decision id, before
// replaying, so the result never depends on input order. The returned
// error covers run-level problems only; per-event findings land in the
// report.
func (e *Engine) Run(ctx context.Context, mode models.ReplayMode, snap models.ConfigSnapshot, events []models.ReplayEvent) (Report, error) {
	const op = "replay.Run"
	if !mode.Valid() {
		return Report{}, faults.Newf(faults.KindValidationFailed, op, "unknown replay mode %q", mode)
	}
	if len(events) == 0 {
		return Report{}, faults.New(faults.KindValidationFailed, op, "no events to replay")
	}
	if mode == models.ReplayTraining && e.stats == nil {
		return Report{}, faults.New(faults.KindValidationFailed, op, "training replay needs a playbook store")
	}

	report := Report{
		SessionID:   e.newID(),
		Mode:        mode,
		Snapshot:    snap,
		StartedAt:   e.now().UTC(),
		TotalEvents: len(events),
		Buckets:     map[string]BucketStats{},
	}
	ordered := orderEvents(events)

	var err error
	if mode == models.ReplayTraining {
		err = e.train(ctx, ordered, &report)
	} else {
		err = e.redecide(ctx, mode, snap, ordered, &report)
	}
	if err != nil {
		return report, err
	}

	finish(&report, mode)
	report.CompletedAt = e.now().UTC()

	if e.trail != nil {
		e.trail.Record(audit.Entry{
			Timestamp: report.CompletedAt,
			EventType: audit.EventReplayCompleted,
			Payload: map[string]any{
				"session_id":          report.SessionID,
				"mode":                string(mode),
				"replayed":            report.Replayed,
				"matches":             report.Matches,
				"unsafe_bypass_count": report.UnsafeBypassCount,
				"result":              string(report.Result),
			},
		})
	}

	if report.UnsafeBypassCount > 0 {
		e.logger.Warn("Replay found unsafe bypasses",
			"session_id", report.SessionID, "mode", mode,
			"unsafe_bypass_count", report.UnsafeBypassCount)
	}
	e.logger.Info("Replay completed",
		"session_id", report.SessionID, "mode", mode,
		"events", report.TotalEvents, "replayed", report.Replayed,
		"matches", report.Matches, "alignment_rate", report.AlignmentRate,
		"result", report.Result)
	return report, nil
}

// redecide re-runs each event through a frozen decision engine and
// classifies the outcome against the recorded original. AUDIT mode runs
// every event twice, through two independently built engines, and
// demands identical bytes.
func (e *Engine) redecide(ctx context.Context, mode models.ReplayMode, snap models.ConfigSnapshot, events []models.ReplayEvent, report *Report) error {
	frozen, err := e.frozenEngine(snap)
	if err != nil {
		return err
	}
	var verify *decision.Engine
	if mode == models.ReplayAudit {
		if verify, err = e.frozenEngine(snap); err != nil {
			return err
		}
	}
	if mode == models.ReplaySimulation {
		report.TypeShifts = map[string]int{}
	}

	sum := sha256.New()
	var lastAt time.Time
	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return faults.Wrap(faults.KindUpstreamUnavailable, "replay.Run", "replay interrupted", err)
		}

		if mode == models.ReplayAudit && !lastAt.IsZero() && ev.Timestamp.Sub(lastAt) > timelineGap {
			report.TimelineGaps++
		}
		lastAt = ev.Timestamp

		cluster := replayCluster(ev)
		roster := orderRoster(ev.Investigation)
		pinClock(frozen, ev.Timestamp)
		replayed := frozen.Decide(cluster, roster, ev.Degraded)
		report.Replayed++
		report.Decisions = append(report.Decisions, replayed)
		writeChecksum(sum, replayed)

		if mode == models.ReplayAudit {
			pinClock(verify, ev.Timestamp)
			second := verify.Decide(cluster, roster, ev.Degraded)
			if sameBytes(replayed, second) {
				report.Reproduced++
			} else {
				report.Errors = append(report.Errors,
					fmt.Sprintf("event %d: decision does not reproduce byte for byte", i))
			}
		}

		if ev.Decision == nil {
			report.Skipped++
			report.Errors = append(report.Errors,
				fmt.Sprintf("event %d: no recorded decision to compare", i))
			continue
		}
		original := *ev.Decision

		if mode == models.ReplaySimulation && replayed.Type != original.Type {
			report.TypeShifts[string(original.Type)+"->"+string(replayed.Type)]++
		}

		bucket := confidenceBucket(replayed.Confidence)
		stats := report.Buckets[bucket]
		stats.Total++
		switch classify(original, replayed) {
		case AlignMatch:
			report.Matches++
			stats.Matches++
		case AlignDivergenceSafe:
			report.DivergencesSafe++
		case AlignDivergenceUnsafe:
			report.UnsafeBypassCount++
		}
		report.Buckets[bucket] = stats
	}
	report.Checksum = hex.EncodeToString(sum.Sum(nil))
	return nil
}

// train applies recorded outcomes to playbook statistics. Re-applying a
// ledger is harmless: execution recording is idempotent by execution id.
func (e *Engine) train(ctx context.Context, events []models.ReplayEvent, report *Report) error {
	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return faults.Wrap(faults.KindUpstreamUnavailable, "replay.Run", "replay interrupted", err)
		}
		if ev.ExecutionID == "" || ev.PlaybookID == "" || ev.Outcome == "" {
			report.Skipped++
			continue
		}
		exec := models.PlaybookExecution{
			ID:          ev.ExecutionID,
			PlaybookID:  ev.PlaybookID,
			DecisionID:  decisionID(ev),
			CompletedAt: ev.Timestamp,
			Outcome:     ev.Outcome,
			DurationS:   ev.DurationS,
		}
		if err := e.stats.RecordExecution(ctx, exec); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("event %d: %v", i, err))
			continue
		}
		report.Replayed++
		report.OutcomesApplied++
	}
	return nil
}

// frozenEngine builds a decision engine from the snapshot with a
// counter id source. The counter restarts at one per engine, which is
// what keeps independent runs byte-identical.
func (e *Engine) frozenEngine(snap models.ConfigSnapshot) (*decision.Engine, error) {
	cfg := decision.Config{
		PolicyName:        snap.PolicyName,
		DefaultAutomation: snap.DefaultAutomation,
		ModelVersion:      snap.ModelVersion,
	}
	eng, err := decision.NewEngine(cfg, e.logger)
	if err != nil {
		return nil, faults.Wrap(faults.KindValidationFailed, "replay.Run", "snapshot rejected", err)
	}
	if len(snap.Weights) > 0 {
		eng.SetWeights(snap.Weights, snap.WeightsVersion)
	}
	var n int
	eng.SetIDSource(func() string {
		n++
		return fmt.Sprintf("replay-%06d", n)
	})
	return eng, nil
}

// finish derives the aggregate fields and the verdict. SIMULATION never
// fails: a shifted distribution is the answer, not a defect.
func finish(report *Report, mode models.ReplayMode) {
	classified := report.Matches + report.DivergencesSafe + report.UnsafeBypassCount
	if classified > 0 {
		report.AlignmentRate = float64(report.Matches) / float64(classified)
	}
	for bucket, stats := range report.Buckets {
		if stats.Total > 0 {
			stats.Precision = float64(stats.Matches) / float64(stats.Total)
		}
		report.Buckets[bucket] = stats
	}

	report.Result = ResultPass
	switch mode {
	case models.ReplayValidation:
		if report.UnsafeBypassCount > 0 {
			report.Result = ResultFail
		}
	case models.ReplayTraining:
		if len(report.Errors) > 0 {
			report.Result = ResultFail
		}
	case models.ReplayAudit:
		if report.Reproduced < report.Replayed || len(report.Errors) > 0 {
			report.Result = ResultFail
		}
	}
}

// classify checks for a match first, then the unsafe boundary.
// Everything else diverges safely: the risk posture moved without
// letting a high-risk incident through the automatic gate.
func classify(original, replayed models.DecisionCandidate) Alignment {
	if replayed.Type == original.Type && replayed.Risk == original.Risk {
		return AlignMatch
	}
	if highRisk(original.Risk) && replayed.Type == models.DecisionAutoApprove {
		return AlignDivergenceUnsafe
	}
	if highRisk(replayed.Risk) && original.Type == models.DecisionAutoApprove {
		return AlignDivergenceUnsafe
	}
	return AlignDivergenceSafe
}

func highRisk(r models.RiskLevel) bool {
	return r == models.RiskHigh || r == models.RiskCritical
}

// confidenceBucket mirrors the policy thresholds so the precision table
// reads against the approval bands.
func confidenceBucket(c float64) string {
	switch {
	case c < 0.50:
		return "below_0.50"
	case c < 0.70:
		return "0.50-0.69"
	case c < 0.85:
		return "0.70-0.84"
	default:
		return "0.85-1.00"
	}
}

// orderEvents sorts a copy by timestamp, breaking ties on decision id
// then execution id.
func orderEvents(events []models.ReplayEvent) []models.ReplayEvent {
	ordered := make([]models.ReplayEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].Timestamp.Equal(ordered[j].Timestamp) {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		}
		if a, b := decisionID(ordered[i]), decisionID(ordered[j]); a != b {
			return a < b
		}
		return ordered[i].ExecutionID < ordered[j].ExecutionID
	})
	return ordered
}

func decisionID(ev models.ReplayEvent) string {
	if ev.Decision == nil {
		return ""
	}
	return ev.Decision.ID
}

// orderRoster sorts results by specialist id. The confidence fold
// depends on this order, never on how the roster was recorded.
func orderRoster(results []models.SpecialistResult) []models.SpecialistResult {
	roster := make([]models.SpecialistResult, len(results))
	copy(roster, results)
	sort.Slice(roster, func(i, j int) bool {
		return roster[i].SpecialistID < roster[j].SpecialistID
	})
	return roster
}

// replayCluster prefers the recorded cluster; without one it rebuilds a
// single-member cluster from the alert, shaped the way the collector
// would have built it.
func replayCluster(ev models.ReplayEvent) models.AlertCluster {
	if ev.Cluster != nil {
		return *ev.Cluster
	}
	id := "replay-" + ev.Alert.Fingerprint
	if ev.Decision != nil && ev.Decision.ClusterID != "" {
		id = ev.Decision.ClusterID
	}
	at := ev.Timestamp.UTC()
	return models.AlertCluster{
		ID:          id,
		Service:     ev.Alert.Service,
		ClusterType: ingest.ClusterTypeServiceWindow,
		EarliestAt:  at,
		LatestAt:    at,
		Members: []models.NormalizedAlert{{
			Alert:            ev.Alert,
			ValidationStatus: models.ValidationValid,
		}},
	}
}

func pinClock(eng *decision.Engine, at time.Time) {
	ts := at.UTC()
	eng.SetClock(func() time.Time { return ts })
}

func writeChecksum(sum hash.Hash, d models.DecisionCandidate) {
	b, _ := json.Marshal(d)
	sum.Write(b)
	sum.Write([]byte{'\n'})
}

func sameBytes(a, b models.DecisionCandidate) bool {
	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	return bytes.Equal(ab, bb)
}
