package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
)

// generatorIdentity is recorded as the author of drafted playbooks.
const generatorIdentity = "llm-generator"

// textGenerator is the slice of the LLM client the drafter needs.
type textGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Generator drafts playbooks from decision context via the text generator.
type Generator struct {
	llm    textGenerator
	logger *slog.Logger
}

// NewGenerator creates a playbook drafter. Panics if logger is nil.
func NewGenerator(llm textGenerator, logger *slog.Logger) *Generator {
	if logger == nil {
		panic("NewGenerator: nil logger")
	}
	return &Generator{llm: llm, logger: logger}
}

// draftStep mirrors the JSON step shape requested from the model.
type draftStep struct {
	Step            int      `json:"step"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Commands        []string `json:"commands"`
	ExpectedOutput  string   `json:"expected_output"`
	RollbackCommand string   `json:"rollback_command"`
}

type draftPlaybook struct {
	Title                string      `json:"title"`
	Description          string      `json:"description"`
	Steps                []draftStep `json:"steps"`
	EstimatedTimeMinutes int         `json:"estimated_time_minutes"`
	AutomationLevel      string      `json:"automation_level"`
	RiskLevel            string      `json:"risk_level"`
	Prerequisites        []string    `json:"prerequisites"`
	SuccessCriteria      []string    `json:"success_criteria"`
	RollbackProcedure    string      `json:"rollback_procedure"`
}

// Draft asks the text generator for a remediation playbook and maps the
// response into a PENDING_REVIEW draft. The draft is not persisted here;
// the recommender owns that step.
func (g *Generator) Draft(ctx context.Context, patternType, service string, d models.DecisionCandidate) (models.Playbook, error) {
	raw, err := g.llm.Generate(ctx, buildPrompt(patternType, service, d))
	if err != nil {
		return models.Playbook{}, err
	}

	var draft draftPlaybook
	if err := json.Unmarshal([]byte(extractJSON(raw)), &draft); err != nil {
		return models.Playbook{}, faults.Wrap(faults.KindValidationFailed, "recommend.Draft",
			"generator returned unparseable playbook", err)
	}
	if draft.Title == "" || len(draft.Steps) == 0 {
		return models.Playbook{}, faults.New(faults.KindValidationFailed, "recommend.Draft",
			"generated playbook is missing a title or steps")
	}

	steps := make([]models.PlaybookStep, 0, len(draft.Steps))
	for i, st := range draft.Steps {
		steps = append(steps, models.PlaybookStep{
			Index:           i,
			Title:           st.Title,
			Description:     st.Description,
			Commands:        st.Commands,
			ExpectedOutput:  st.ExpectedOutput,
			RollbackCommand: st.RollbackCommand,
		})
	}

	p := models.Playbook{
		Title:             draft.Title,
		Description:       draft.Description,
		PatternType:       patternType,
		ServicePattern:    service,
		Steps:             steps,
		EstimatedDuration: time.Duration(draft.EstimatedTimeMinutes) * time.Minute,
		Automation:        parseAutomation(draft.AutomationLevel),
		Risk:              parseRisk(draft.RiskLevel),
		Prerequisites:     draft.Prerequisites,
		SuccessCriteria:   draft.SuccessCriteria,
		RollbackProcedure: draft.RollbackProcedure,
		Source:            models.SourceLLMGenerated,
		Status:            models.PlaybookPendingReview,
		CreatedBy:         generatorIdentity,
	}
	g.logger.Info("Playbook drafted",
		"pattern_type", patternType, "service", service, "steps", len(steps))
	return p, nil
}

func buildPrompt(patternType, service string, d models.DecisionCandidate) string {
	var b strings.Builder
	b.WriteString("You are an expert SRE engineer. Generate a remediation playbook for the incident below.\n\n")
	fmt.Fprintf(&b, "Incident pattern: %s\n", patternType)
	fmt.Fprintf(&b, "Service: %s\n", service)
	fmt.Fprintf(&b, "Hypothesis: %s\n", d.Hypothesis)
	fmt.Fprintf(&b, "Confidence: %.2f\n", d.Confidence)
	fmt.Fprintf(&b, "Risk: %s\n\n", d.Risk)
	if len(d.Evidence) > 0 {
		b.WriteString("Evidence:\n")
		for _, e := range d.Evidence {
			fmt.Fprintf(&b, "- [%s] %s\n", e.Kind, e.Description)
		}
		b.WriteString("\n")
	}
	if len(d.SuggestedActions) > 0 {
		b.WriteString("Suggested actions:\n")
		for _, a := range d.SuggestedActions {
			fmt.Fprintf(&b, "- %s\n", a)
		}
		b.WriteString("\n")
	}
	b.WriteString(`Respond with JSON only, using this structure:
{
  "title": "Clear, descriptive title",
  "description": "What the issue is and how this playbook remediates it",
  "steps": [
    {
      "step": 1,
      "title": "Step title",
      "description": "What to do",
      "commands": ["command"],
      "expected_output": "What to expect",
      "rollback_command": "How to undo this step"
    }
  ],
  "estimated_time_minutes": 30,
  "automation_level": "MANUAL|ASSISTED|FULL",
  "risk_level": "MINIMAL|LOW|MEDIUM|HIGH|CRITICAL",
  "prerequisites": ["..."],
  "success_criteria": ["..."],
  "rollback_procedure": "How to roll back the whole playbook"
}
`)
	return b.String()
}

// extractJSON trims whatever the model wrapped around the JSON object,
// typically markdown fences.
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return raw
	}
	return raw[start : end+1]
}

func parseAutomation(s string) models.AutomationLevel {
	switch models.AutomationLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case models.AutomationAssisted:
		return models.AutomationAssisted
	case models.AutomationFull:
		return models.AutomationFull
	default:
		return models.AutomationManual
	}
}

func parseRisk(s string) models.RiskLevel {
	switch r := models.RiskLevel(strings.ToUpper(strings.TrimSpace(s))); r {
	case models.RiskMinimal, models.RiskLow, models.RiskMedium, models.RiskHigh, models.RiskCritical:
		return r
	default:
		return models.RiskMedium
	}
}
