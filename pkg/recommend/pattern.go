// Package recommend maps a fused decision to a remediation playbook:
// known ACTIVE playbooks scored adaptively, a generated draft when none
// match, and a synthetic fallback when generation fails.
package recommend

import (
	"strings"

	"github.com/codeready-toolchain/strands/pkg/models"
)

// PatternType classifies a decision into the playbook-key pattern type.
// Evidence kinds are checked before hypothesis text so the label stays
// stable across wording changes; the order below is the tie-break.
func PatternType(d models.DecisionCandidate) string {
	var logs, metrics, events int
	for _, e := range d.Evidence {
		switch e.Kind {
		case models.EvidenceLog:
			logs++
		case models.EvidenceMetric:
			metrics++
		case models.EvidenceEvent:
			events++
		}
	}
	hypothesis := strings.ToLower(d.Hypothesis)

	switch {
	case logs > 0 && metrics > 0:
		return string(models.CorrelationLogMetric)
	case containsAny(hypothesis, "cascading", "lead", "restart", "crash"):
		return string(models.CorrelationTemporal)
	case metrics >= 2 || containsAny(hypothesis, "moves with", "coupled"):
		return string(models.CorrelationMetricMetric)
	case events > 0:
		return string(models.CorrelationEventSequence)
	default:
		return "UNKNOWN"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
