package playbook

import (
	"encoding/json"
	"time"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
)

// nodeProps flattens a playbook into graph node properties. Step lists are
// stored as JSON; timestamps as Unix seconds with zero meaning unset.
func nodeProps(p models.Playbook) (map[string]any, error) {
	steps, err := json.Marshal(p.Steps)
	if err != nil {
		return nil, faults.Wrap(faults.KindValidationFailed, "playbook.nodeProps", "encoding steps", err)
	}
	props := map[string]any{
		"id":                 p.ID,
		"title":              p.Title,
		"description":        p.Description,
		"pattern_type":       p.PatternType,
		"service_pattern":    p.ServicePattern,
		"steps_json":         string(steps),
		"estimated_s":        p.EstimatedDuration.Seconds(),
		"automation":         string(p.Automation),
		"risk":               string(p.Risk),
		"prerequisites":      p.Prerequisites,
		"success_criteria":   p.SuccessCriteria,
		"rollback_procedure": p.RollbackProcedure,
		"source":             string(p.Source),
		"status":             string(p.Status),
		"version":            p.Version,
		"previous_version":   p.PreviousVersionID,
		"created_at":         p.CreatedAt.Unix(),
		"created_by":         p.CreatedBy,
		"updated_at":         p.UpdatedAt.Unix(),
		"updated_by":         p.UpdatedBy,
		"approved_by":        p.ApprovedBy,
		"rejection_note":     p.RejectionNote,
	}
	for k, v := range statsProps(p.Stats) {
		props[k] = v
	}
	if p.ApprovedAt != nil {
		props["approved_at"] = p.ApprovedAt.Unix()
	} else {
		props["approved_at"] = int64(0)
	}
	return props, nil
}

// statsProps flattens the execution statistics. These keys are the only
// playbook properties RecordExecution is allowed to touch.
func statsProps(s models.PlaybookStats) map[string]any {
	var last int64
	if s.LastExecutedAt != nil {
		last = s.LastExecutedAt.Unix()
	}
	return map[string]any{
		"total_executions": int64(s.TotalExecutions),
		"success_count":    int64(s.SuccessCount),
		"failure_count":    int64(s.FailureCount),
		"mean_duration_s":  s.MeanDuration,
		"m2_duration":      s.M2Duration,
		"last_executed_at": last,
	}
}

func fromProps(props map[string]any) (models.Playbook, error) {
	p := models.Playbook{
		ID:                propString(props, "id"),
		Title:             propString(props, "title"),
		Description:       propString(props, "description"),
		PatternType:       propString(props, "pattern_type"),
		ServicePattern:    propString(props, "service_pattern"),
		EstimatedDuration: time.Duration(propFloat(props, "estimated_s") * float64(time.Second)),
		Automation:        models.AutomationLevel(propString(props, "automation")),
		Risk:              models.RiskLevel(propString(props, "risk")),
		Prerequisites:     propStrings(props, "prerequisites"),
		SuccessCriteria:   propStrings(props, "success_criteria"),
		RollbackProcedure: propString(props, "rollback_procedure"),
		Source:            models.PlaybookSource(propString(props, "source")),
		Status:            models.PlaybookStatus(propString(props, "status")),
		Version:           propString(props, "version"),
		PreviousVersionID: propString(props, "previous_version"),
		CreatedAt:         time.Unix(propInt64(props, "created_at"), 0).UTC(),
		CreatedBy:         propString(props, "created_by"),
		UpdatedAt:         time.Unix(propInt64(props, "updated_at"), 0).UTC(),
		UpdatedBy:         propString(props, "updated_by"),
		ApprovedBy:        propString(props, "approved_by"),
		RejectionNote:     propString(props, "rejection_note"),
		Stats: models.PlaybookStats{
			TotalExecutions: int(propInt64(props, "total_executions")),
			SuccessCount:    int(propInt64(props, "success_count")),
			FailureCount:    int(propInt64(props, "failure_count")),
			MeanDuration:    propFloat(props, "mean_duration_s"),
			M2Duration:      propFloat(props, "m2_duration"),
		},
	}
	if raw := propString(props, "steps_json"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.Steps); err != nil {
			return models.Playbook{}, faults.Wrap(faults.KindValidationFailed, "playbook.fromProps",
				"decoding steps", err)
		}
	}
	if at := propInt64(props, "approved_at"); at > 0 {
		t := time.Unix(at, 0).UTC()
		p.ApprovedAt = &t
	}
	if at := propInt64(props, "last_executed_at"); at > 0 {
		t := time.Unix(at, 0).UTC()
		p.Stats.LastExecutedAt = &t
	}
	return p, nil
}

func propString(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func propInt64(props map[string]any, key string) int64 {
	switch v := props[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func propFloat(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func propStrings(props map[string]any, key string) []string {
	switch v := props[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}
