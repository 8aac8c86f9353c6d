package usecase

import (
	"sort"

	"github.com/cotizador/backend/internal/domain"
)

// SegmentCount is one entry of a segment listing
type SegmentCount struct {
	Segment string
	Count   int
}

// ListSegments counts catalog rows per segment, blank segment included
func ListSegments(catalog *domain.Catalog) domain.SegmentSummary {
	return catalog.SegmentCounts()
}

// SortedSegments orders a summary by segment name. The blank segment, if
// present, sorts first.
func SortedSegments(summary domain.SegmentSummary) []SegmentCount {
	out := make([]SegmentCount, 0, len(summary))
	for segment, count := range summary {
		out = append(out, SegmentCount{Segment: segment, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Segment < out[j].Segment
	})
	return out
}
