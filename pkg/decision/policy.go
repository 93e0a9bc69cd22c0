package decision

import (
	"strings"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
)

// Policy is a named threshold pair the engine checks a fused decision
// against. MinConfidence bounds the weighted confidence, MinConsensus the
// agreement between specialists.
type Policy struct {
	Name          string  `yaml:"name"`
	MinConfidence float64 `yaml:"min_confidence"`
	MinConsensus  float64 `yaml:"min_consensus"`
}

// The named policies. STRICT is for clusters where an unwanted automated
// action is worse than a delayed one.
var policies = map[string]Policy{
	"STRICT":     {Name: "STRICT", MinConfidence: 0.90, MinConsensus: 0.95},
	"BALANCED":   {Name: "BALANCED", MinConfidence: 0.70, MinConsensus: 0.80},
	"PERMISSIVE": {Name: "PERMISSIVE", MinConfidence: 0.50, MinConsensus: 0.60},
}

// PolicyByName resolves a policy name, case-insensitively.
func PolicyByName(name string) (Policy, error) {
	p, ok := policies[strings.ToUpper(name)]
	if !ok {
		return Policy{}, faults.Newf(faults.KindValidationFailed, "decision.PolicyByName",
			"unknown policy %q (want STRICT, BALANCED, or PERMISSIVE)", name)
	}
	return p, nil
}

// Strategy names a way of collapsing per-specialist quality scores into a
// single number.
type Strategy string

const (
	StrategyAverage   Strategy = "average"
	StrategyWeighted  Strategy = "weighted"
	StrategyMin       Strategy = "min"
	StrategyMax       Strategy = "max"
	StrategyConsensus Strategy = "consensus"
)

// Aggregate applies the strategy. Scores and weights are aligned by index;
// only the weighted strategy reads the weights. Empty input scores zero.
//
// Consensus is the mean discounted by the score spread: specialists that
// agree score close to their average, divergent ones are pulled down.
func (s Strategy) Aggregate(scores, weights []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	switch s {
	case StrategyWeighted:
		var num, den float64
		for i, q := range scores {
			w := 1.0
			if i < len(weights) {
				w = weights[i]
			}
			num += w * q
			den += w
		}
		if den == 0 {
			return 0
		}
		return num / den
	case StrategyMin:
		min := scores[0]
		for _, q := range scores[1:] {
			if q < min {
				min = q
			}
		}
		return min
	case StrategyMax:
		max := scores[0]
		for _, q := range scores[1:] {
			if q > max {
				max = q
			}
		}
		return max
	case StrategyConsensus:
		min, max := scores[0], scores[0]
		var sum float64
		for _, q := range scores {
			sum += q
			if q < min {
				min = q
			}
			if q > max {
				max = q
			}
		}
		agreement := 1 - (max - min)
		if agreement < 0 {
			agreement = 0
		}
		return (sum / float64(len(scores))) * agreement
	default: // StrategyAverage
		var sum float64
		for _, q := range scores {
			sum += q
		}
		return sum / float64(len(scores))
	}
}

// DowngradeAutomation applies the risk bound to an automation level after
// any upstream suggestion: CRITICAL forces MANUAL, HIGH caps at ASSISTED.
func DowngradeAutomation(risk models.RiskLevel, current models.AutomationLevel) models.AutomationLevel {
	switch risk {
	case models.RiskCritical:
		return models.AutomationManual
	case models.RiskHigh:
		if current.Rank() > models.AutomationAssisted.Rank() {
			return models.AutomationAssisted
		}
		return current
	default:
		return current
	}
}
