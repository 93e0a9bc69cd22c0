package swarm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codeready-toolchain/strands/pkg/models"
	"github.com/codeready-toolchain/strands/pkg/vector"
)

// embedder produces embedding vectors for incident summaries.
type embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// searcher finds nearest neighbours in the incident index.
type searcher interface {
	Search(ctx context.Context, query []float32, k uint64) ([]vector.Hit, error)
}

// EmbeddingSimilarity looks for resolved incidents that read like the
// current cluster. Only human-approved resolutions are in the index, so a
// high-score hit is a strong precedent.
type EmbeddingSimilarity struct {
	embedder embedder
	searcher searcher
	logger   *slog.Logger
	topK     uint64
	minScore float32
}

// NewEmbeddingSimilarity creates the specialist.
func NewEmbeddingSimilarity(embedder embedder, searcher searcher, logger *slog.Logger) *EmbeddingSimilarity {
	return &EmbeddingSimilarity{
		embedder: embedder,
		searcher: searcher,
		logger:   logger,
		topK:     5,
		minScore: 0.75,
	}
}

func (e *EmbeddingSimilarity) ID() string { return "embedding-similarity" }

// Investigate embeds the cluster summary and searches for precedents.
func (e *EmbeddingSimilarity) Investigate(ctx context.Context, cluster models.AlertCluster) (models.SpecialistResult, error) {
	var res models.SpecialistResult

	vec, err := e.embedder.Embed(ctx, ClusterSummary(cluster))
	if err != nil {
		return res, err
	}
	hits, err := e.searcher.Search(ctx, vec, e.topK)
	if err != nil {
		return res, err
	}

	var best *vector.Hit
	for i := range hits {
		hit := hits[i]
		if hit.Score < e.minScore {
			continue
		}
		res.Evidence = append(res.Evidence, models.EvidenceItem{
			Kind:        models.EvidenceSimilarIncident,
			Source:      hit.ID,
			Description: hitSummary(hit),
			Quality:     clamp01(float64(hit.Score)),
		})
		if best == nil || hit.Score > best.Score {
			best = &hits[i]
		}
	}

	if best == nil {
		res.Hypothesis = "no similar past incidents for " + cluster.Service
		res.Confidence = 0.2
		return res, nil
	}
	res.Hypothesis = fmt.Sprintf("recurrence of past incident: %s", hitSummary(*best))
	res.Confidence = clamp01(float64(best.Score))
	if resolution := payloadString(best.Payload, "resolution"); resolution != "" {
		res.SuggestedActions = []string{resolution}
	}
	return res, nil
}

// ClusterSummary renders a cluster into the text form used for embedding.
// The exact rendering is part of the index contract: indexing and search
// must agree on it.
func ClusterSummary(cluster models.AlertCluster) string {
	var b strings.Builder
	b.WriteString(cluster.Service)
	b.WriteString(" ")
	b.WriteString(string(cluster.MaxSeverity()))
	for i, m := range cluster.Members {
		if i >= 3 {
			break
		}
		b.WriteString("; ")
		b.WriteString(m.Description)
	}
	return b.String()
}

func hitSummary(hit vector.Hit) string {
	if s := payloadString(hit.Payload, "summary"); s != "" {
		return fmt.Sprintf("%s (score %.2f)", s, hit.Score)
	}
	return fmt.Sprintf("incident %s (score %.2f)", hit.ID, hit.Score)
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	s, _ := payload[key].(string)
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var _ Specialist = (*EmbeddingSimilarity)(nil)
