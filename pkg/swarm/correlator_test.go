package swarm

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/graph"
	"github.com/codeready-toolchain/strands/pkg/models"
	"github.com/codeready-toolchain/strands/pkg/tsdb"
)

type fakeCorrGraph struct {
	peers    []map[string]any
	queryErr error
	relErr   error

	relations []graph.Relation
}

func (f *fakeCorrGraph) Query(_ context.Context, _ string, _ map[string]any) ([]map[string]any, error) {
	return f.peers, f.queryErr
}

func (f *fakeCorrGraph) UpsertRelation(_ context.Context, rel graph.Relation) error {
	f.relations = append(f.relations, rel)
	return f.relErr
}

// sinePoints builds a sine of period 20 steps, shifted right by the given
// number of steps, sampled once a minute.
func sinePoints(n, shift int) []tsdb.Point {
	t0 := time.Unix(1700000000, 0)
	pts := make([]tsdb.Point, n)
	for i := range pts {
		pts[i] = tsdb.Point{
			T: t0.Add(time.Duration(i) * time.Minute),
			V: math.Sin(2 * math.Pi * float64(i-shift) / 20),
		}
	}
	return pts
}

func TestCorrelator_Investigate(t *testing.T) {
	cluster := models.AlertCluster{ID: "checkout-1700000000", Service: "checkout", LatestAt: time.Unix(1700003600, 0)}

	t.Run("cross-service coupling writes an edge and names the leader", func(t *testing.T) {
		metrics := &fakeMetrics{byMatch: map[string][]tsdb.Series{
			`service="checkout",code`: {{Points: sinePoints(60, 0)}},
			"histogram_quantile":      flatSeries(60, 0.2, nil),
			"container_cpu":           flatSeries(60, 0.5, nil),
			`service="payments"`:      {{Points: sinePoints(60, 3)}},
		}}
		g := &fakeCorrGraph{peers: []map[string]any{{"service": "payments"}}}
		c := NewCorrelator(metrics, g, testEngine(), testLogger())

		res, err := c.Investigate(context.Background(), cluster)

		require.NoError(t, err)
		assert.Equal(t, "cascading failure: errors in checkout lead payments by 3m (posterior 0.89)", res.Hypothesis)
		assert.InDelta(t, 0.890625, res.Confidence, 1e-9)
		assert.Equal(t, []string{"Investigate checkout as the likely origin"}, res.SuggestedActions)

		require.Len(t, res.Evidence, 1)
		assert.Equal(t, models.EvidenceGraphRelation, res.Evidence[0].Kind)
		assert.InDelta(t, 0.890625, res.Evidence[0].Quality, 1e-9)

		require.Len(t, g.relations, 1)
		rel := g.relations[0]
		assert.Equal(t, "Service", rel.FromLabel)
		assert.Equal(t, "checkout", rel.FromID)
		assert.Equal(t, "CORRELATES_WITH", rel.Type)
		assert.Equal(t, "payments", rel.ToID)
		assert.Equal(t, 3, rel.Props["lag"])
		assert.InDelta(t, 0.890625, rel.Props["posterior"].(float64), 1e-9)
		assert.Equal(t, string(models.StrengthStrong), rel.Props["strength"])
	})

	t.Run("negative lag flips the edge direction", func(t *testing.T) {
		metrics := &fakeMetrics{byMatch: map[string][]tsdb.Series{
			`service="checkout",code`: {{Points: sinePoints(60, 3)}},
			`service="payments"`:      {{Points: sinePoints(60, 0)}},
		}}
		g := &fakeCorrGraph{peers: []map[string]any{{"service": "payments"}}}
		c := NewCorrelator(metrics, g, testEngine(), testLogger())

		res, err := c.Investigate(context.Background(), cluster)

		require.NoError(t, err)
		assert.Equal(t, "cascading failure: errors in payments lead checkout by 3m (posterior 0.89)", res.Hypothesis)
		assert.Equal(t, []string{"Investigate payments as the likely origin"}, res.SuggestedActions)

		require.Len(t, g.relations, 1)
		assert.Equal(t, "payments", g.relations[0].FromID)
		assert.Equal(t, "checkout", g.relations[0].ToID)
		assert.Equal(t, 3, g.relations[0].Props["lag"])
	})

	t.Run("in-service coupling without peers", func(t *testing.T) {
		metrics := &fakeMetrics{byMatch: map[string][]tsdb.Series{
			`service="checkout",code`: {{Points: sinePoints(60, 0)}},
			"histogram_quantile":      {{Points: sinePoints(60, 0)}},
		}}
		g := &fakeCorrGraph{queryErr: faults.New(faults.KindUpstreamUnavailable, "graph.Query", "neo4j down")}
		c := NewCorrelator(metrics, g, testEngine(), testLogger())

		res, err := c.Investigate(context.Background(), cluster)

		require.NoError(t, err, "peer lookup failures degrade to an empty peer set")
		assert.Contains(t, res.Hypothesis, "coupled signal regression")
		assert.Contains(t, res.Hypothesis, "checkout:latency_p95")
		require.Len(t, res.Evidence, 1)
		assert.Equal(t, models.EvidenceMetric, res.Evidence[0].Kind)
		assert.Empty(t, g.relations)
	})

	t.Run("quiet signals mean low confidence", func(t *testing.T) {
		metrics := &fakeMetrics{byMatch: map[string][]tsdb.Series{
			`service="checkout",code`: flatSeries(60, 10, nil),
			"histogram_quantile":      flatSeries(60, 0.2, nil),
			"container_cpu":           flatSeries(60, 0.5, nil),
		}}
		c := NewCorrelator(metrics, &fakeCorrGraph{}, testEngine(), testLogger())

		res, err := c.Investigate(context.Background(), cluster)

		require.NoError(t, err)
		assert.Equal(t, "no significant signal correlations for checkout", res.Hypothesis)
		assert.InDelta(t, 0.2, res.Confidence, 1e-9)
	})

	t.Run("error-rate fetch failure is fatal", func(t *testing.T) {
		metrics := &fakeMetrics{errs: map[string]error{
			`service="checkout",code`: faults.New(faults.KindUpstreamUnavailable, "tsdb.Range", "prometheus down"),
		}}
		c := NewCorrelator(metrics, &fakeCorrGraph{}, testEngine(), testLogger())

		_, err := c.Investigate(context.Background(), cluster)

		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.KindUpstreamUnavailable))
	})

	t.Run("coupling write failure does not fail the investigation", func(t *testing.T) {
		metrics := &fakeMetrics{byMatch: map[string][]tsdb.Series{
			`service="checkout",code`: {{Points: sinePoints(60, 0)}},
			`service="payments"`:      {{Points: sinePoints(60, 3)}},
		}}
		g := &fakeCorrGraph{
			peers:  []map[string]any{{"service": "payments"}},
			relErr: faults.New(faults.KindUpstreamUnavailable, "graph.UpsertRelation", "neo4j down"),
		}
		c := NewCorrelator(metrics, g, testEngine(), testLogger())

		res, err := c.Investigate(context.Background(), cluster)

		require.NoError(t, err)
		assert.Contains(t, res.Hypothesis, "cascading failure")
	})
}
