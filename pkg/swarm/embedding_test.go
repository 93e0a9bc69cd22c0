package swarm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/strands/pkg/faults"
	"github.com/codeready-toolchain/strands/pkg/models"
	"github.com/codeready-toolchain/strands/pkg/vector"
)

type fakeEmbedder struct {
	vec  []float32
	err  error
	text string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.text = text
	return f.vec, f.err
}

type fakeSearcher struct {
	hits []vector.Hit
	err  error
}

func (f *fakeSearcher) Search(_ context.Context, _ []float32, _ uint64) ([]vector.Hit, error) {
	return f.hits, f.err
}

func TestEmbeddingSimilarity_Investigate(t *testing.T) {
	cluster := models.AlertCluster{
		ID:      "checkout-1700000000",
		Service: "checkout",
		Members: []models.NormalizedAlert{
			{Alert: models.Alert{Service: "checkout", Severity: models.SeverityCritical, Description: "checkout 5xx burst"}},
			{Alert: models.Alert{Service: "checkout", Severity: models.SeverityWarning, Description: "latency over SLO"}},
		},
	}

	t.Run("strong precedent drives the hypothesis", func(t *testing.T) {
		embedder := &fakeEmbedder{vec: []float32{0.1, 0.2}}
		searcher := &fakeSearcher{hits: []vector.Hit{
			{ID: "inc-42", Score: 0.91, Payload: map[string]any{"summary": "checkout OOM after deploy", "resolution": "Roll back release 1.4.2"}},
			{ID: "inc-17", Score: 0.78, Payload: map[string]any{"summary": "checkout latency incident"}},
			{ID: "inc-03", Score: 0.40},
		}}
		es := NewEmbeddingSimilarity(embedder, searcher, testLogger())

		res, err := es.Investigate(context.Background(), cluster)

		require.NoError(t, err)
		assert.Equal(t, ClusterSummary(cluster), embedder.text)
		assert.Contains(t, res.Hypothesis, "recurrence of past incident")
		assert.Contains(t, res.Hypothesis, "checkout OOM after deploy")
		assert.InDelta(t, 0.91, res.Confidence, 1e-6)
		assert.Equal(t, []string{"Roll back release 1.4.2"}, res.SuggestedActions)

		require.Len(t, res.Evidence, 2, "hits below the score floor are dropped")
		for _, ev := range res.Evidence {
			assert.Equal(t, models.EvidenceSimilarIncident, ev.Kind)
		}
	})

	t.Run("no precedent means low confidence", func(t *testing.T) {
		es := NewEmbeddingSimilarity(&fakeEmbedder{vec: []float32{0.1}}, &fakeSearcher{}, testLogger())

		res, err := es.Investigate(context.Background(), cluster)

		require.NoError(t, err)
		assert.Equal(t, "no similar past incidents for checkout", res.Hypothesis)
		assert.InDelta(t, 0.2, res.Confidence, 1e-9)
		assert.Empty(t, res.Evidence)
	})

	t.Run("embedding failure is fatal", func(t *testing.T) {
		embedder := &fakeEmbedder{err: faults.New(faults.KindUpstreamUnavailable, "llm.Embed", "ollama down")}
		es := NewEmbeddingSimilarity(embedder, &fakeSearcher{}, testLogger())

		_, err := es.Investigate(context.Background(), cluster)

		require.Error(t, err)
		assert.True(t, faults.IsKind(err, faults.KindUpstreamUnavailable))
	})

	t.Run("search failure is fatal", func(t *testing.T) {
		searcher := &fakeSearcher{err: faults.New(faults.KindUpstreamUnavailable, "vector.Search", "qdrant down")}
		es := NewEmbeddingSimilarity(&fakeEmbedder{vec: []float32{0.1}}, searcher, testLogger())

		_, err := es.Investigate(context.Background(), cluster)

		require.Error(t, err)
	})
}

func TestClusterSummary(t *testing.T) {
	cluster := models.AlertCluster{
		Service: "checkout",
		Members: []models.NormalizedAlert{
			{Alert: models.Alert{Severity: models.SeverityCritical, Description: "first"}},
			{Alert: models.Alert{Severity: models.SeverityWarning, Description: "second"}},
			{Alert: models.Alert{Severity: models.SeverityWarning, Description: "third"}},
			{Alert: models.Alert{Severity: models.SeverityWarning, Description: "fourth"}},
		},
	}
	assert.Equal(t, "checkout critical; first; second; third", ClusterSummary(cluster))
}
