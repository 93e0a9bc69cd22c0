package models

import "time"

// EvidenceKind classifies a piece of supporting evidence.
type EvidenceKind string

const (
	EvidenceMetric          EvidenceKind = "METRIC"
	EvidenceLog             EvidenceKind = "LOG"
	EvidenceTrace           EvidenceKind = "TRACE"
	EvidenceEvent           EvidenceKind = "EVENT"
	EvidenceGraphRelation   EvidenceKind = "GRAPH_RELATION"
	EvidenceDocument        EvidenceKind = "DOCUMENT"
	EvidenceSimilarIncident EvidenceKind = "SIMILAR_INCIDENT"
)

// EvidenceItem is a single piece of support attached to a specialist result.
type EvidenceItem struct {
	Kind        EvidenceKind `json:"kind"`
	Source      string       `json:"source"`
	Description string       `json:"description"`
	Quality     float64      `json:"quality"`
	Timestamp   time.Time    `json:"timestamp"`
	Value       *float64     `json:"value,omitempty"`
}

// MeanQuality averages quality scores over a set of evidence items.
// An empty set scores zero.
func MeanQuality(items []EvidenceItem) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, it := range items {
		sum += it.Quality
	}
	return sum / float64(len(items))
}
