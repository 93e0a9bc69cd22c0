// Package decision fuses specialist results into one DecisionCandidate:
// weighted confidence, hypothesis selection, rule-based risk grading, the
// automation downgrade, and the threshold policy that routes the candidate
// to auto-approval, human review, or escalation.
package decision

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/strands/pkg/models"
)

// Config contains the engine settings.
type Config struct {
	// PolicyName selects the threshold policy: STRICT, BALANCED, or
	// PERMISSIVE.
	PolicyName string `yaml:"policy_name"`

	// DefaultAutomation is the automation level before the risk
	// downgrade is applied.
	DefaultAutomation models.AutomationLevel `yaml:"default_automation"`

	// ModelVersion is recorded on every candidate for auditability.
	ModelVersion string `yaml:"model_version"`

	// WeightsFile optionally overrides the built-in weight matrix and
	// is hot-reloaded when watched.
	WeightsFile string `yaml:"weights_file"`

	// DominanceThreshold is the quality score a specialist needs, while
	// strictly leading, for its hypothesis to stand alone.
	DominanceThreshold float64 `yaml:"dominance_threshold"`

	// ConflictPenalty multiplies the confidence when no specialist
	// dominates and the top-two hypotheses are merged.
	ConflictPenalty float64 `yaml:"conflict_penalty"`

	// DegradedConfidenceCap bounds the confidence of a decision fused
	// from a degraded investigation.
	DegradedConfidenceCap float64 `yaml:"degraded_confidence_cap"`

	// Budget is the soft per-decision CPU budget. Exceeding it logs a
	// warning, never cancels.
	Budget time.Duration `yaml:"budget"`
}

// DefaultConfig returns the built-in engine defaults.
func DefaultConfig() Config {
	return Config{
		PolicyName:            "BALANCED",
		DefaultAutomation:     models.AutomationAssisted,
		ModelVersion:          "dev",
		DominanceThreshold:    0.8,
		ConflictPenalty:       0.85,
		DegradedConfidenceCap: 0.3,
		Budget:                500 * time.Millisecond,
	}
}

// Engine fuses investigations into decision candidates. Safe for concurrent
// use; the weight matrix is guarded for hot reload.
type Engine struct {
	cfg    Config
	policy Policy
	logger *slog.Logger

	mu             sync.RWMutex
	weights        map[string]float64
	weightsVersion string

	watcher   *fsnotify.Watcher
	closeOnce sync.Once

	now   func() time.Time
	newID func() string
}

// NewEngine creates an engine. The policy name must resolve and, when a
// weights file is configured, it must load; both are fatal configuration
// errors. Panics if logger is nil (programming error in the wiring).
func NewEngine(cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		panic("NewEngine: nil logger")
	}
	def := DefaultConfig()
	if cfg.PolicyName == "" {
		cfg.PolicyName = def.PolicyName
	}
	if cfg.DefaultAutomation == "" {
		cfg.DefaultAutomation = def.DefaultAutomation
	}
	if cfg.ModelVersion == "" {
		cfg.ModelVersion = def.ModelVersion
	}
	if cfg.DominanceThreshold <= 0 {
		cfg.DominanceThreshold = def.DominanceThreshold
	}
	if cfg.ConflictPenalty <= 0 {
		cfg.ConflictPenalty = def.ConflictPenalty
	}
	if cfg.DegradedConfidenceCap <= 0 {
		cfg.DegradedConfidenceCap = def.DegradedConfidenceCap
	}
	if cfg.Budget <= 0 {
		cfg.Budget = def.Budget
	}

	policy, err := PolicyByName(cfg.PolicyName)
	if err != nil {
		return nil, err
	}

	weights := DefaultWeights()
	version := DefaultWeightsVersion
	if cfg.WeightsFile != "" {
		weights, version, err = LoadWeightsFile(cfg.WeightsFile)
		if err != nil {
			return nil, err
		}
	}

	return &Engine{
		cfg:            cfg,
		policy:         policy,
		logger:         logger,
		weights:        weights,
		weightsVersion: version,
		now:            time.Now,
		newID:          uuid.NewString,
	}, nil
}

// Policy returns the active threshold policy.
func (e *Engine) Policy() Policy { return e.policy }

// Snapshot freezes the engine configuration for a replay ledger. The
// given seed is recorded alongside so the session can be replayed under
// the exact matrix and policy that produced it.
func (e *Engine) Snapshot(seed int64) models.ConfigSnapshot {
	weights, version := e.Weights()
	return models.ConfigSnapshot{
		ModelVersion:      e.cfg.ModelVersion,
		WeightsVersion:    version,
		Weights:           weights,
		PolicyName:        e.policy.Name,
		DefaultAutomation: e.cfg.DefaultAutomation,
		Seed:              seed,
		TakenAt:           e.now().UTC(),
	}
}

// SetClock overrides the engine clock. Replay pins it.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// SetIDSource overrides candidate id generation. Replay pins it.
func (e *Engine) SetIDSource(newID func() string) { e.newID = newID }

// Decide fuses the specialist results for one cluster into a candidate.
// A decision is always produced, degraded investigations included.
//
// Results must arrive in specialist-id order: the confidence fold and the
// tie-breaks depend on it for deterministic replay.
func (e *Engine) Decide(cluster models.AlertCluster, results []models.SpecialistResult, degraded bool) models.DecisionCandidate {
	started := e.now()
	weights, weightsVersion := e.Weights()

	var participants []models.SpecialistResult
	for _, r := range results {
		if r.Succeeded() {
			participants = append(participants, r)
		}
	}
	if len(participants) == 0 {
		degraded = true
	}

	scores := make([]float64, len(participants))
	scoreWeights := make([]float64, len(participants))
	for i, r := range participants {
		scores[i] = r.Confidence * models.MeanQuality(r.Evidence)
		w, ok := weights[r.SpecialistID]
		if !ok {
			w = fallbackWeight
		}
		scoreWeights[i] = w
	}

	confidence := StrategyWeighted.Aggregate(scores, scoreWeights)
	consensus := StrategyConsensus.Aggregate(scores, nil)

	hypothesis, conflict, actions := e.selectHypothesis(cluster, participants, scores)
	if conflict {
		confidence *= e.cfg.ConflictPenalty
	}

	risk := gradeRisk(cluster, participants)
	automation := DowngradeAutomation(risk, e.cfg.DefaultAutomation)
	if degraded {
		automation = models.AutomationManual
		if confidence > e.cfg.DegradedConfidenceCap {
			confidence = e.cfg.DegradedConfidenceCap
		}
	}

	var decisionType models.DecisionType
	switch {
	case confidence < e.policy.MinConfidence || consensus < e.policy.MinConsensus:
		decisionType = models.DecisionEscalate
	case automation == models.AutomationFull:
		decisionType = models.DecisionAutoApprove
	default:
		decisionType = models.DecisionRequiresApproval
	}

	var evidence []models.EvidenceItem
	for _, r := range participants {
		evidence = append(evidence, r.Evidence...)
	}

	candidate := models.DecisionCandidate{
		ID:               e.newID(),
		ClusterID:        cluster.ID,
		Hypothesis:       hypothesis,
		Confidence:       confidence,
		Risk:             risk,
		Automation:       automation,
		Type:             decisionType,
		Conflict:         conflict,
		Degraded:         degraded,
		SuggestedActions: actions,
		Evidence:         evidence,
		ModelVersion:     e.cfg.ModelVersion,
		WeightsVersion:   weightsVersion,
		AuditID:          e.newID(),
		CreatedAt:        e.now().UTC(),
	}

	elapsed := e.now().Sub(started)
	if elapsed > e.cfg.Budget {
		e.logger.Warn("Decision exceeded budget",
			"cluster_id", cluster.ID, "elapsed", elapsed, "budget", e.cfg.Budget)
	}
	e.logger.Info("Decision fused",
		"decision_id", candidate.ID, "cluster_id", cluster.ID,
		"confidence", confidence, "consensus", consensus,
		"risk", risk, "automation", automation, "type", decisionType,
		"conflict", conflict, "degraded", degraded, "policy", e.policy.Name)
	return candidate
}

// selectHypothesis picks the dominant specialist's hypothesis, or merges the
// top two and flags the conflict. Suggested actions follow the selected
// hypotheses, deduplicated in specialist order.
func (e *Engine) selectHypothesis(cluster models.AlertCluster, participants []models.SpecialistResult, scores []float64) (string, bool, []string) {
	if len(participants) == 0 {
		return "investigation degraded: no specialist evidence for " + cluster.Service, false, nil
	}

	best, second := -1, -1
	for i := range participants {
		switch {
		case best < 0 || scores[i] > scores[best]:
			second = best
			best = i
		case second < 0 || scores[i] > scores[second]:
			second = i
		}
	}

	dominant := scores[best] >= e.cfg.DominanceThreshold
	for i := range participants {
		if i != best && scores[i] >= scores[best] {
			dominant = false
		}
	}

	if dominant || second < 0 {
		return participants[best].Hypothesis, false, dedupe(participants[best].SuggestedActions)
	}
	merged := participants[best].Hypothesis + " | " + participants[second].Hypothesis
	actions := dedupe(append(append([]string{}, participants[best].SuggestedActions...), participants[second].SuggestedActions...))
	return merged, true, actions
}

func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

// Keyword sets for the risk rules. Matching is case-insensitive over the
// participant hypotheses and evidence descriptions.
var (
	dataLossKeywords = []string{
		"data loss", "data corruption", "corrupted", "corruption",
		"disk failure", "volume failure", "unrecoverable",
	}
	resourceKeywords = []string{
		"memory exhaustion", "oomkilled", "out of memory",
		"cpu saturation", "resource exhaustion",
	}
	restartKeywords = []string{
		"restart loop", "crash loop", "crashloopbackoff", "crash from panic",
	}
	errorKeywords   = []string{"error burst", "5xx", "panic", "connection refused"}
	latencyKeywords = []string{"latency"}
)

// gradeRisk applies the risk rules in order.
func gradeRisk(cluster models.AlertCluster, participants []models.SpecialistResult) models.RiskLevel {
	text := riskScanText(participants)
	severity := cluster.MaxSeverity()

	mentionsData := mentionsAny(text, dataLossKeywords)
	mentionsResource := mentionsAny(text, resourceKeywords)
	mentionsRestart := mentionsAny(text, restartKeywords)
	mentionsError := mentionsAny(text, errorKeywords)
	mentionsLatency := mentionsAny(text, latencyKeywords)
	latencyOnly := mentionsLatency && !mentionsError && !mentionsResource && !mentionsRestart && !mentionsData
	stable := !mentionsLatency && !mentionsError && !mentionsResource && !mentionsRestart && !mentionsData

	switch {
	case severity == models.SeverityCritical && mentionsData:
		return models.RiskCritical
	case severity == models.SeverityCritical || mentionsResource || mentionsRestart:
		return models.RiskHigh
	case severity == models.SeverityHigh || latencyOnly:
		return models.RiskMedium
	case severity == models.SeverityWarning && stable:
		return models.RiskLow
	default:
		return models.RiskMinimal
	}
}

func riskScanText(participants []models.SpecialistResult) string {
	var b strings.Builder
	for _, r := range participants {
		b.WriteString(strings.ToLower(r.Hypothesis))
		b.WriteString("\n")
		for _, ev := range r.Evidence {
			b.WriteString(strings.ToLower(ev.Description))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func mentionsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
