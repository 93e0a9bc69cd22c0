package models

// CorrelationType names the domains a pattern spans.
type CorrelationType string

const (
	CorrelationLogMetric     CorrelationType = "LOG_METRIC"
	CorrelationMetricMetric  CorrelationType = "METRIC_METRIC"
	CorrelationTraceEvent    CorrelationType = "TRACE_EVENT"
	CorrelationTemporal      CorrelationType = "TEMPORAL"
	CorrelationEventSequence CorrelationType = "EVENT_SEQUENCE"
)

// CorrelationStrength labels the Bayesian posterior of a pattern.
type CorrelationStrength string

const (
	StrengthVeryStrong CorrelationStrength = "VERY_STRONG" // posterior >= 0.9
	StrengthStrong     CorrelationStrength = "STRONG"      // >= 0.7
	StrengthModerate   CorrelationStrength = "MODERATE"    // >= 0.5
	StrengthWeak       CorrelationStrength = "WEAK"        // >= 0.3
	StrengthVeryWeak   CorrelationStrength = "VERY_WEAK"   // < 0.3
)

// StrengthForPosterior maps a posterior probability to its label.
func StrengthForPosterior(p float64) CorrelationStrength {
	switch {
	case p >= 0.9:
		return StrengthVeryStrong
	case p >= 0.7:
		return StrengthStrong
	case p >= 0.5:
		return StrengthModerate
	case p >= 0.3:
		return StrengthWeak
	default:
		return StrengthVeryWeak
	}
}

// SignificanceBand buckets a p-value.
type SignificanceBand string

const (
	VerySignificant   SignificanceBand = "VERY_SIGNIFICANT" // p < 0.01
	Significant       SignificanceBand = "SIGNIFICANT"      // p < 0.05
	WeaklySignificant SignificanceBand = "WEAK"             // p < 0.10
	NotSignificant    SignificanceBand = "NOT_SIGNIFICANT"
)

// BandForPValue maps a p-value to its significance band.
func BandForPValue(p float64) SignificanceBand {
	switch {
	case p < 0.01:
		return VerySignificant
	case p < 0.05:
		return Significant
	case p < 0.10:
		return WeaklySignificant
	default:
		return NotSignificant
	}
}

// CorrelationPattern is the result of one correlation analysis.
type CorrelationPattern struct {
	Type            CorrelationType     `json:"type"`
	SeriesA         string              `json:"series_a"`
	SeriesB         string              `json:"series_b"`
	PearsonR        float64             `json:"pearson_r"`
	LagOffset       int                 `json:"lag_offset"`
	SampleCount     int                 `json:"sample_count"`
	PValue          float64             `json:"p_value"`
	Significance    SignificanceBand    `json:"significance"`
	Posterior       float64             `json:"posterior"`
	Strength        CorrelationStrength `json:"strength"`
	Noisy           bool                `json:"noisy,omitempty"`
	Reason          string              `json:"reason,omitempty"`
	Evidence        []EvidenceItem      `json:"evidence,omitempty"`
	RemediationHint string              `json:"remediation_hint,omitempty"`
}
