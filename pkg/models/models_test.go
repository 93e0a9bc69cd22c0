package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverity_Rank(t *testing.T) {
	tests := []struct {
		name     string
		severity Severity
		want     int
	}{
		{name: "info is lowest", severity: SeverityInfo, want: 0},
		{name: "warning", severity: SeverityWarning, want: 1},
		{name: "high", severity: SeverityHigh, want: 2},
		{name: "critical is highest", severity: SeverityCritical, want: 3},
		{name: "unknown ranks below info", severity: Severity("bogus"), want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.severity.Rank())
		})
	}
}

func TestSeverity_Valid(t *testing.T) {
	for _, s := range []Severity{SeverityInfo, SeverityWarning, SeverityHigh, SeverityCritical} {
		assert.True(t, s.Valid(), "severity %q should be valid", s)
	}
	assert.False(t, Severity("fatal").Valid())
	assert.False(t, Severity("").Valid())
}

func TestAlertCluster_MaxSeverity(t *testing.T) {
	cluster := AlertCluster{
		Members: []NormalizedAlert{
			{Alert: Alert{Severity: SeverityWarning}},
			{Alert: Alert{Severity: SeverityCritical}},
			{Alert: Alert{Severity: SeverityHigh}},
		},
	}
	assert.Equal(t, SeverityCritical, cluster.MaxSeverity())

	empty := AlertCluster{}
	assert.Equal(t, SeverityInfo, empty.MaxSeverity())
}

func TestEvidenceMeanQuality(t *testing.T) {
	tests := []struct {
		name  string
		items []EvidenceItem
		want  float64
	}{
		{
			name: "averages quality across items",
			items: []EvidenceItem{
				{Kind: EvidenceMetric, Quality: 0.9},
				{Kind: EvidenceLog, Quality: 0.5},
			},
			want: 0.7,
		},
		{
			name:  "no evidence means zero quality",
			items: nil,
			want:  0,
		},
		{
			name: "single item",
			items: []EvidenceItem{
				{Kind: EvidenceGraphRelation, Quality: 0.8},
			},
			want: 0.8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MeanQuality(tt.items), 1e-9)
		})
	}
}

func TestStrengthForPosterior(t *testing.T) {
	tests := []struct {
		posterior float64
		want      CorrelationStrength
	}{
		{0.95, StrengthVeryStrong},
		{0.9, StrengthVeryStrong},
		{0.89, StrengthStrong},
		{0.7, StrengthStrong},
		{0.69, StrengthModerate},
		{0.5, StrengthModerate},
		{0.49, StrengthWeak},
		{0.3, StrengthWeak},
		{0.29, StrengthVeryWeak},
		{0.0, StrengthVeryWeak},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StrengthForPosterior(tt.posterior), "posterior %v", tt.posterior)
	}
}

func TestBandForPValue(t *testing.T) {
	tests := []struct {
		p    float64
		want SignificanceBand
	}{
		{0.001, VerySignificant},
		{0.0099, VerySignificant},
		{0.01, Significant},
		{0.049, Significant},
		{0.05, WeaklySignificant},
		{0.099, WeaklySignificant},
		{0.10, NotSignificant},
		{0.5, NotSignificant},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BandForPValue(tt.p), "p-value %v", tt.p)
	}
}

func TestPlaybookStats_Variance(t *testing.T) {
	tests := []struct {
		name  string
		stats PlaybookStats
		want  float64
	}{
		{
			name:  "zero executions",
			stats: PlaybookStats{},
			want:  0,
		},
		{
			name:  "single execution has no variance",
			stats: PlaybookStats{TotalExecutions: 1, M2Duration: 0},
			want:  0,
		},
		{
			name:  "sample variance from accumulator",
			stats: PlaybookStats{TotalExecutions: 5, M2Duration: 15.2},
			want:  3.8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.stats.Variance(), 1e-9)
		})
	}
}

func TestPlaybookStats_SuccessRate(t *testing.T) {
	assert.Equal(t, 0.0, (&PlaybookStats{}).SuccessRate())
	assert.Equal(t, 0.75, (&PlaybookStats{TotalExecutions: 4, SuccessCount: 3}).SuccessRate())
	assert.Equal(t, 1.0, (&PlaybookStats{TotalExecutions: 2, SuccessCount: 2}).SuccessRate())
}

func TestReviewState_Closed(t *testing.T) {
	assert.False(t, ReviewPending.Closed())
	assert.True(t, ReviewApproved.Closed())
	assert.True(t, ReviewRejected.Closed())
}

func TestReplayMode_Valid(t *testing.T) {
	for _, m := range []ReplayMode{ReplayValidation, ReplayTraining, ReplaySimulation, ReplayAudit} {
		assert.True(t, m.Valid(), "mode %q should be valid", m)
	}
	assert.False(t, ReplayMode("DRYRUN").Valid())
	assert.False(t, ReplayMode("").Valid())
}

func TestDecisionCandidate_JSONRoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	value := 0.92
	original := DecisionCandidate{
		ID:         "dec-7c1f",
		ClusterID:  "cluster-2201",
		Hypothesis: "payment-api pod memory exhaustion",
		Confidence: 0.8425,
		Risk:       RiskHigh,
		Automation: AutomationAssisted,
		Type:       DecisionRequiresApproval,
		Conflict:   true,
		Degraded:   false,
		SuggestedActions: []string{
			"increase memory limit on payment-api",
			"restart payment-api deployment",
		},
		Evidence: []EvidenceItem{
			{
				Kind:        EvidenceMetric,
				Source:      "metrics-specialist",
				Description: "container_memory_working_set_bytes at 97% of limit",
				Quality:     0.9,
				Timestamp:   created.Add(-2 * time.Minute),
				Value:       &value,
			},
			{
				Kind:        EvidenceLog,
				Source:      "logs-specialist",
				Description: "OOMKilled events in pod payment-api-5d9c",
				Quality:     0.85,
				Timestamp:   created.Add(-90 * time.Second),
			},
		},
		ModelVersion:   "strands-v2",
		WeightsVersion: "a3f29b01",
		AuditID:        "audit-20260314-0001",
		CreatedAt:      created,
	}

	first, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded DecisionCandidate
	require.NoError(t, json.Unmarshal(first, &decoded))
	assert.Equal(t, original, decoded)

	second, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second), "re-serialized decision must be byte-identical")
}

func TestReplayEvent_JSONRoundTrip(t *testing.T) {
	at := time.Date(2026, 1, 9, 14, 0, 0, 0, time.UTC)
	original := ReplayEvent{
		Timestamp: at,
		Alert: Alert{
			ReceivedAt:  at,
			Provider:    "prometheus",
			Fingerprint: "9f86d081884c7d65",
			Service:     "checkout",
			Severity:    SeverityHigh,
			Description: "HTTP 5xx rate above threshold",
			Labels:      map[string]string{"namespace": "shop", "pod": "checkout-0"},
			Status:      AlertFiring,
		},
		PlaybookID:      "pb-redeploy-checkout",
		PlaybookVersion: "1.2.0",
		Outcome:         OutcomeSuccess,
		DurationS:       412.5,
		ExecutionID:     "exec-884c",
	}

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded ReplayEvent
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, original, decoded)
}
