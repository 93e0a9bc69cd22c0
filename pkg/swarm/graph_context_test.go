package swarm

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
)

type fakeGraphReader struct {
	neighbours   []map[string]any
	incidents    []map[string]any
	neighbourErr error
	incidentErr  error
}

func (f *fakeGraphReader) Query(_ context.Context, cypher string, _ map[string]any) ([]map[string]any, error) {
	if strings.Contains(cypher, "CORRELATES_WITH") {
		return f.neighbours, f.neighbourErr
	}
	return f.incidents, f.incidentErr
}

func TestGraphContext_Investigate(t *testing.T) {
	cluster := models.AlertCluster{
		ID:         "checkout-1700000000",
		Service:    "checkout",
		EarliestAt: time.Unix(1700000000, 0),
	}

	t.Run("known coupling drives the hypothesis", func(t *testing.T) {
		source := &fakeGraphReader{
			neighbours: []map[string]any{
				{"service": "payments", "posterior": 0.82, "lag": int64(2)},
				{"service": "db", "posterior": 0.51, "lag": int64(0)},
			},
			incidents: []map[string]any{{"n": int64(0)}},
		}
		gc := NewGraphContext(source, testLogger())

		res, err := gc.Investigate(context.Background(), cluster)

		require.NoError(t, err)
		assert.Equal(t, "known dependency coupling: checkout moves with payments (posterior 0.82)", res.Hypothesis)
		assert.InDelta(t, 0.82, res.Confidence, 1e-9)
		assert.Equal(t, []string{"Check the health of payments first"}, res.SuggestedActions)
		require.Len(t, res.Evidence, 2)
		for _, ev := range res.Evidence {
			assert.Equal(t, models.EvidenceGraphRelation, ev.Kind)
		}
	})

	t.Run("incident history alone is a weak signal", func(t *testing.T) {
		source := &fakeGraphReader{incidents: []map[string]any{{"n": int64(4)}}}
		gc := NewGraphContext(source, testLogger())

		res, err := gc.Investigate(context.Background(), cluster)

		require.NoError(t, err)
		assert.Equal(t, "recurring incident pattern for checkout (4 in 7 days)", res.Hypothesis)
		assert.InDelta(t, 0.4, res.Confidence, 1e-9)
		require.Len(t, res.Evidence, 1)
		require.NotNil(t, res.Evidence[0].Value)
		assert.InDelta(t, 4, *res.Evidence[0].Value, 1e-9)
	})

	t.Run("cold graph means low confidence", func(t *testing.T) {
		gc := NewGraphContext(&fakeGraphReader{}, testLogger())

		res, err := gc.Investigate(context.Background(), cluster)

		require.NoError(t, err)
		assert.Equal(t, "no graph context for checkout", res.Hypothesis)
		assert.InDelta(t, 0.2, res.Confidence, 1e-9)
	})

	t.Run("neighbour query failure is fatal", func(t *testing.T) {
		source := &fakeGraphReader{neighbourErr: faults.New(faults.KindUpstreamUnavailable, "graph.Query", "neo4j down")}
		gc := NewGraphContext(source, testLogger())

		_, err := gc.Investigate(context.Background(), cluster)

		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.KindUpstreamUnavailable))
	})

	t.Run("history query failure is tolerated", func(t *testing.T) {
		source := &fakeGraphReader{
			neighbours:  []map[string]any{{"service": "payments", "posterior": 0.82, "lag": int64(2)}},
			incidentErr: faults.New(faults.KindUpstreamUnavailable, "graph.Query", "neo4j flaky"),
		}
		gc := NewGraphContext(source, testLogger())

		res, err := gc.Investigate(context.Background(), cluster)

		require.NoError(t, err)
		assert.Contains(t, res.Hypothesis, "known dependency coupling")
	})
}
