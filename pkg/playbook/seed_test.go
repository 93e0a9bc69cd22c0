package playbook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
)

const seedRestartLoop = `id: pb-restart-loop
title: Restart checkout pods
description: Roll the checkout deployment when pods crash loop
pattern_type: restart-loop
service_pattern: checkout
estimated_duration: 15m
automation: assisted
risk: low
prerequisites:
  - kubectl access to the shop namespace
success_criteria:
  - restart counter stops climbing
rollback_procedure: Scale back to the previous replica set
steps:
  - title: Check restart counts
    commands:
      - kubectl get pods -n shop
    expected_output: pods Running with stable restart counts
  - title: Roll the deployment
    description: Restart and watch the rollout
    commands:
      - kubectl rollout restart deploy/checkout -n shop
      - kubectl rollout status deploy/checkout -n shop
    rollback_command: kubectl rollout undo deploy/checkout -n shop
`

func minimalSeed(id string) string {
	return fmt.Sprintf(`id: %s
title: Recycle leaking workers
pattern_type: memory-leak
service_pattern: worker-*
steps:
  - title: Recycle the pool
    commands:
      - kubectl delete pods -l app=worker -n shop
`, id)
}

func writeSeedFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("seeds yaml files as drafts", func(t *testing.T) {
		dir := t.TempDir()
		writeSeedFile(t, dir, "restart-loop.yaml", seedRestartLoop)
		writeSeedFile(t, dir, "memory-leak.yml", minimalSeed("pb-memory-leak"))
		writeSeedFile(t, dir, "README.md", "not a playbook")
		require.NoError(t, os.Mkdir(filepath.Join(dir, "old.yaml"), 0o755))

		store := newTestStore(newFakeGraph())
		seeded, err := Seed(ctx, store, dir, discard)
		require.NoError(t, err)
		assert.Equal(t, 2, seeded)

		p, err := store.Get(ctx, "pb-restart-loop")
		require.NoError(t, err)
		assert.Equal(t, models.PlaybookDraft, p.Status)
		assert.Equal(t, models.SourceHumanWritten, p.Source)
		assert.Equal(t, seedIdentity, p.CreatedBy)
		assert.Equal(t, models.AutomationAssisted, p.Automation)
		assert.Equal(t, models.RiskLow, p.Risk)
		assert.Equal(t, 15*time.Minute, p.EstimatedDuration)
		require.Len(t, p.Steps, 2)
		assert.Equal(t, 0, p.Steps[0].Index)
		assert.Equal(t, 1, p.Steps[1].Index)
		assert.Equal(t, "kubectl rollout undo deploy/checkout -n shop", p.Steps[1].RollbackCommand)

		_, err = store.Get(ctx, "pb-memory-leak")
		require.NoError(t, err)
	})

	t.Run("skips playbooks already in the catalog", func(t *testing.T) {
		store := newTestStore(newFakeGraph())
		existing := basePlaybook("pb-restart-loop", models.PlaybookDraft)
		existing.Title = "Existing restart recipe"
		_, err := store.Create(ctx, existing)
		require.NoError(t, err)

		dir := t.TempDir()
		writeSeedFile(t, dir, "restart-loop.yaml", seedRestartLoop)

		seeded, err := Seed(ctx, store, dir, discard)
		require.NoError(t, err)
		assert.Zero(t, seeded)

		p, err := store.Get(ctx, "pb-restart-loop")
		require.NoError(t, err)
		assert.Equal(t, "Existing restart recipe", p.Title, "reseeding does not overwrite")
	})

	t.Run("missing directory is a no-op", func(t *testing.T) {
		seeded, err := Seed(ctx, newTestStore(newFakeGraph()), filepath.Join(t.TempDir(), "absent"), discard)
		require.NoError(t, err)
		assert.Zero(t, seeded)
	})

	t.Run("defaults automation and risk", func(t *testing.T) {
		dir := t.TempDir()
		writeSeedFile(t, dir, "minimal.yaml", minimalSeed("pb-minimal"))

		store := newTestStore(newFakeGraph())
		_, err := Seed(ctx, store, dir, discard)
		require.NoError(t, err)

		p, err := store.Get(ctx, "pb-minimal")
		require.NoError(t, err)
		assert.Equal(t, models.AutomationManual, p.Automation)
		assert.Equal(t, models.RiskMedium, p.Risk)
		assert.Zero(t, p.EstimatedDuration)
	})

	t.Run("rejects invalid seed files", func(t *testing.T) {
		cases := []struct {
			name    string
			content string
			wantErr string
		}{
			{name: "missing id", content: "title: No id\n", wantErr: "stable id"},
			{name: "malformed yaml", content: "steps: [broken", wantErr: "not valid YAML"},
			{name: "bad duration", content: "id: x\nestimated_duration: soon\n", wantErr: "estimated_duration"},
			{name: "bad automation", content: "id: x\nautomation: sometimes\n", wantErr: "unknown automation level"},
			{name: "bad risk", content: "id: x\nrisk: elevated\n", wantErr: "unknown risk level"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				dir := t.TempDir()
				writeSeedFile(t, dir, "seed.yaml", tc.content)

				seeded, err := Seed(ctx, newTestStore(newFakeGraph()), dir, discard)
				require.Error(t, err)
				assert.True(t, faults.IsKind(err, faults.KindValidationFailed))
				assert.ErrorContains(t, err, tc.wantErr)
				assert.Zero(t, seeded)
			})
		}
	})

	t.Run("stops at the first bad file", func(t *testing.T) {
		dir := t.TempDir()
		writeSeedFile(t, dir, "a-good.yaml", minimalSeed("pb-first"))
		writeSeedFile(t, dir, "b-broken.yaml", "title: no id\n")

		store := newTestStore(newFakeGraph())
		seeded, err := Seed(ctx, store, dir, discard)
		require.Error(t, err)
		assert.Equal(t, 1, seeded, "files load in name order until the failure")

		_, err = store.Get(ctx, "pb-first")
		assert.NoError(t, err)
	})

	t.Run("propagates graph errors", func(t *testing.T) {
		g := newFakeGraph()
		g.queryErr = errors.New("neo4j down")

		dir := t.TempDir()
		writeSeedFile(t, dir, "restart-loop.yaml", seedRestartLoop)

		seeded, err := Seed(ctx, newTestStore(g), dir, discard)
		require.Error(t, err)
		assert.ErrorContains(t, err, "neo4j down")
		assert.Zero(t, seeded)
	})
}
