package playbook

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
)

// seedIdentity is recorded as the author of seeded playbooks.
const seedIdentity = "config-seed"

// seedPlaybook is the YAML shape of a seed file. The domain structs carry
// json tags only, so the loader keeps its own mirror.
type seedPlaybook struct {
	ID                string     `yaml:"id"`
	Title             string     `yaml:"title"`
	Description       string     `yaml:"description"`
	PatternType       string     `yaml:"pattern_type"`
	ServicePattern    string     `yaml:"service_pattern"`
	EstimatedDuration string     `yaml:"estimated_duration"`
	Automation        string     `yaml:"automation"`
	Risk              string     `yaml:"risk"`
	Prerequisites     []string   `yaml:"prerequisites"`
	SuccessCriteria   []string   `yaml:"success_criteria"`
	RollbackProcedure string     `yaml:"rollback_procedure"`
	Steps             []seedStep `yaml:"steps"`
}

type seedStep struct {
	Title           string   `yaml:"title"`
	Description     string   `yaml:"description"`
	Commands        []string `yaml:"commands"`
	ExpectedOutput  string   `yaml:"expected_output"`
	RollbackCommand string   `yaml:"rollback_command"`
}

// Seed loads the playbook YAML files under dir into the catalog, one playbook
// per file in filename order. Seed files carry stable ids; an id already in
// the catalog is skipped, so seeding runs safely on every start. Seeded
// playbooks enter as drafts and go through the normal review flow. A missing
// directory means there is nothing to seed.
func Seed(ctx context.Context, store *Store, dir string, logger *slog.Logger) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading seed directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	seeded := 0
	for _, name := range names {
		p, err := loadSeed(filepath.Join(dir, name))
		if err != nil {
			return seeded, err
		}
		if _, err := store.Get(ctx, p.ID); err == nil {
			logger.Debug("Seed playbook already present", "playbook_id", p.ID, "file", name)
			continue
		} else if !faults.IsKind(err, faults.KindValidationFailed) {
			return seeded, err
		}
		if _, err := store.Create(ctx, p); err != nil {
			return seeded, fmt.Errorf("seeding %s: %w", name, err)
		}
		seeded++
	}
	return seeded, nil
}

func loadSeed(path string) (models.Playbook, error) {
	file := filepath.Base(path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.Playbook{}, fmt.Errorf("reading seed file %s: %w", file, err)
	}
	var s seedPlaybook
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return models.Playbook{}, faults.Wrap(faults.KindValidationFailed, "playbook.Seed",
			fmt.Sprintf("seed file %s is not valid YAML", file), err)
	}
	if s.ID == "" {
		return models.Playbook{}, faults.Newf(faults.KindValidationFailed, "playbook.Seed",
			"seed file %s needs a stable id", file)
	}

	var estimated time.Duration
	if s.EstimatedDuration != "" {
		if estimated, err = time.ParseDuration(s.EstimatedDuration); err != nil {
			return models.Playbook{}, faults.Newf(faults.KindValidationFailed, "playbook.Seed",
				"seed file %s: bad estimated_duration %q", file, s.EstimatedDuration)
		}
	}
	automation, err := seedAutomation(s.Automation)
	if err != nil {
		return models.Playbook{}, faults.Newf(faults.KindValidationFailed, "playbook.Seed",
			"seed file %s: %v", file, err)
	}
	risk, err := seedRisk(s.Risk)
	if err != nil {
		return models.Playbook{}, faults.Newf(faults.KindValidationFailed, "playbook.Seed",
			"seed file %s: %v", file, err)
	}

	steps := make([]models.PlaybookStep, 0, len(s.Steps))
	for i, st := range s.Steps {
		steps = append(steps, models.PlaybookStep{
			Index:           i,
			Title:           st.Title,
			Description:     st.Description,
			Commands:        st.Commands,
			ExpectedOutput:  st.ExpectedOutput,
			RollbackCommand: st.RollbackCommand,
		})
	}

	return models.Playbook{
		ID:                s.ID,
		Title:             s.Title,
		Description:       s.Description,
		PatternType:       s.PatternType,
		ServicePattern:    s.ServicePattern,
		Steps:             steps,
		EstimatedDuration: estimated,
		Automation:        automation,
		Risk:              risk,
		Prerequisites:     s.Prerequisites,
		SuccessCriteria:   s.SuccessCriteria,
		RollbackProcedure: s.RollbackProcedure,
		Source:            models.SourceHumanWritten,
		CreatedBy:         seedIdentity,
	}, nil
}

// Empty automation defaults to MANUAL; a non-empty value must be a known level.
func seedAutomation(s string) (models.AutomationLevel, error) {
	if s == "" {
		return models.AutomationManual, nil
	}
	a := models.AutomationLevel(strings.ToUpper(strings.TrimSpace(s)))
	if a.Rank() < 0 {
		return "", fmt.Errorf("unknown automation level %q", s)
	}
	return a, nil
}

// Empty risk defaults to MEDIUM; a non-empty value must be a known level.
func seedRisk(s string) (models.RiskLevel, error) {
	if s == "" {
		return models.RiskMedium, nil
	}
	r := models.RiskLevel(strings.ToUpper(strings.TrimSpace(s)))
	if r.Rank() < 0 {
		return "", fmt.Errorf("unknown risk level %q", s)
	}
	return r, nil
}
