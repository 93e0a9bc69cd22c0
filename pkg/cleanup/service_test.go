package cleanup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type pruneCall struct {
	cypher string
	params map[string]any
}

type fakePruner struct {
	mu    sync.Mutex
	calls []pruneCall
	errs  map[string]error // cypher substring -> injected error
}

func (f *fakePruner) Write(_ context.Context, cypher string, params map[string]any) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pruneCall{cypher: cypher, params: params})
	for substr, err := range f.errs {
		if strings.Contains(cypher, substr) {
			return 0, err
		}
	}
	return 2, nil
}

func (f *fakePruner) snapshot() []pruneCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]pruneCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func callFor(t *testing.T, calls []pruneCall, label string) pruneCall {
	t.Helper()
	for _, c := range calls {
		if strings.Contains(c.cypher, label) {
			return c
		}
	}
	t.Fatalf("no pruning statement touches %s", label)
	return pruneCall{}
}

func TestRunOncePrunesEachWindow(t *testing.T) {
	pruner := &fakePruner{}
	svc := NewService(Config{
		ClusterRetention:   24 * time.Hour,
		DecisionRetention:  48 * time.Hour,
		ExecutionRetention: 72 * time.Hour,
		Interval:           time.Hour,
	}, pruner, testLogger())

	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return now })

	svc.RunOnce(context.Background())

	calls := pruner.snapshot()
	require.Len(t, calls, 3)

	clusters := callFor(t, calls, "AlertCluster")
	assert.Equal(t, now.Add(-24*time.Hour).Unix(), clusters.params["cutoff"])
	assert.Equal(t, deleteBatch, clusters.params["batch"])
	assert.Contains(t, clusters.cypher, "MEMBER_OF")

	decisions := callFor(t, calls, "Decision")
	assert.Equal(t, now.Add(-48*time.Hour).Unix(), decisions.params["cutoff"])
	assert.Contains(t, decisions.cypher, "Review")

	executions := callFor(t, calls, "PlaybookExecution")
	assert.Equal(t, now.Add(-72*time.Hour).Unix(), executions.params["cutoff"])
}

func TestZeroWindowDisablesPass(t *testing.T) {
	pruner := &fakePruner{}
	svc := NewService(Config{
		ClusterRetention:   24 * time.Hour,
		ExecutionRetention: 72 * time.Hour,
		Interval:           time.Hour,
	}, pruner, testLogger())

	svc.RunOnce(context.Background())

	calls := pruner.snapshot()
	require.Len(t, calls, 2)
	for _, c := range calls {
		assert.NotContains(t, c.cypher, "(d:Decision)")
	}
}

func TestPruneErrorDoesNotAbortPass(t *testing.T) {
	pruner := &fakePruner{errs: map[string]error{
		"AlertCluster": errors.New("connection reset"),
	}}
	svc := NewService(DefaultConfig(), pruner, testLogger())

	svc.RunOnce(context.Background())

	// The failed cluster pass must not stop the later passes.
	calls := pruner.snapshot()
	require.Len(t, calls, 3)
}

func TestStartRunsInitialPassAndStops(t *testing.T) {
	pruner := &fakePruner{}
	svc := NewService(DefaultConfig(), pruner, testLogger())

	svc.Start(context.Background())
	svc.Stop()

	require.Len(t, pruner.snapshot(), 3)

	// Stop before Start is a no-op, as is a second Start/Stop cycle.
	again := NewService(DefaultConfig(), pruner, testLogger())
	again.Stop()
}

func TestNewServiceDefaultsInterval(t *testing.T) {
	svc := NewService(Config{}, &fakePruner{}, testLogger())
	assert.Equal(t, DefaultConfig().Interval, svc.cfg.Interval)

	assert.Panics(t, func() { NewService(Config{}, &fakePruner{}, nil) })
}
