package graph

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/resilience"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := resilience.NewExecutor("graph", resilience.DefaultConfig(), logger)
	s, err := NewStore(Config{URI: "neo4j://localhost:7687"}, exec, logger)
	require.NoError(t, err)
	return s
}

func TestNewStore_RequiresURI(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := resilience.NewExecutor("graph", resilience.DefaultConfig(), logger)

	_, err := NewStore(Config{}, exec, logger)

	require.Error(t, err)
	assert.True(t, faults.IsKind(err, faults.KindValidationFailed))
}

func TestStore_IdentifierValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("rejects malicious label", func(t *testing.T) {
		err := s.UpsertNode(ctx, "Alert) DETACH DELETE (n", "a1", nil)
		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.KindValidationFailed))
	})

	t.Run("rejects empty node id", func(t *testing.T) {
		err := s.UpsertNode(ctx, "Alert", "", nil)
		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.KindValidationFailed))
	})

	t.Run("rejects bad relation type", func(t *testing.T) {
		err := s.UpsertRelation(ctx, Relation{
			FromLabel: "Alert", FromID: "a1",
			Type:    "MEMBER OF",
			ToLabel: "AlertCluster", ToID: "c1",
		})
		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.KindValidationFailed))
	})

	t.Run("rejects bad guard field", func(t *testing.T) {
		_, err := s.CompareAndSet(ctx, "Playbook", "p1", "n = 1 RETURN n //", 0, nil)
		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.KindValidationFailed))
	})
}

func TestCheckIdent(t *testing.T) {
	assert.NoError(t, checkIdent("Playbook"))
	assert.NoError(t, checkIdent("PREVIOUS_VERSION_OF"))
	assert.NoError(t, checkIdent("total_executions"))
	assert.Error(t, checkIdent(""))
	assert.Error(t, checkIdent("1abc"))
	assert.Error(t, checkIdent("a-b"))
	assert.Error(t, checkIdent("a b"))
}
