package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/strands/pkg/audit"
	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/graph"
	"github.com/codeready-toolchain/strands/pkg/models"
	"github.com/codeready-toolchain/strands/pkg/playbook"
	"github.com/codeready-toolchain/strands/pkg/replay"
	"github.com/codeready-toolchain/strands/pkg/resilience"
)

func newReplayCmd(a *app) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "replay <events-file>",
		Short: "Re-run a recorded session against the current engine",
		Long: "Replay loads a recorded ledger and re-runs it under the selected mode: VALIDATION reports decision alignment, TRAINING feeds outcomes into playbook statistics, SIMULATION previews the current weights and policy, AUDIT verifies past decisions reproduce exactly.\n\n" +
			"The report is written to stdout as JSON. A FAIL verdict exits non-zero.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runReplay(cmd.Context(), args[0], mode)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(models.ReplayValidation), "replay mode: VALIDATION, TRAINING, SIMULATION, or AUDIT")
	return cmd
}

func (a *app) runReplay(ctx context.Context, path, modeFlag string) error {
	mode := models.ReplayMode(strings.ToUpper(modeFlag))
	if !mode.Valid() {
		return faults.Newf(faults.KindValidationFailed, "cli.replay", "unknown mode %q", modeFlag)
	}

	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	logger := a.newLogger(cfg.System)

	ledger, err := replay.LoadLedger(path)
	if err != nil {
		return err
	}
	logger.Info("Ledger loaded",
		"path", path,
		"events", len(ledger.Events),
		"recorded_model", ledger.Snapshot.ModelVersion,
		"recorded_policy", ledger.Snapshot.PolicyName)

	// Replay audits to the configured file; without one the report on
	// stdout is the record.
	var trail *audit.Log
	if cfg.System.AuditLogPath != "" {
		trail = audit.Open(cfg.System.AuditLogPath, logger)
		defer func() {
			if err := trail.Close(); err != nil {
				logger.Error("Error closing audit trail", "error", err)
			}
		}()
	}

	// Only TRAINING touches live state; every other mode stays offline.
	var eng *replay.Engine
	if mode == models.ReplayTraining {
		g, err := graph.NewStore(cfg.Graph, resilience.NewExecutor("neo4j", cfg.Resilience("neo4j"), logger), logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := g.Close(context.Background()); err != nil {
				logger.Error("Error closing graph store", "error", err)
			}
		}()
		if err := g.Ping(ctx); err != nil {
			return err
		}
		eng = replay.NewEngine(playbook.NewStore(g, logger), trail, logger)
	} else {
		eng = replay.NewEngine(nil, trail, logger)
	}

	report, err := eng.Run(ctx, mode, ledger.Snapshot, ledger.Events)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, string(out))

	if report.Result == replay.ResultFail {
		return exitError(exitRuntime, fmt.Errorf("replay verdict FAIL: %d unsafe bypasses, %d reproduction gaps, %d errors",
			report.UnsafeBypassCount, report.Replayed-report.Reproduced, len(report.Errors)))
	}
	return nil
}
