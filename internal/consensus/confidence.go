package consensus

import (
	"time"

	"uzimasmart/internal/domain"
)

// Confidence applies one score delta per event. Every result is clamped to
// [MinConfidence, MaxConfidence]; the similar path has its own lower ceiling.
type Confidence struct {
	th Thresholds
}

func NewConfidence(th Thresholds) *Confidence { return &Confidence{th: th} }

// Seed is the starting score of a newly persisted report. Linked reports are
// rows stored alongside the report they were merged into.
func (c *Confidence) Seed(linked bool) float64 {
	if linked {
		return clamp(c.th.LinkedSeedConfidence, c.th.MinConfidence, c.th.MaxConfidence)
	}
	return clamp(c.th.SeedConfidence, c.th.MinConfidence, c.th.MaxConfidence)
}

// ApplyMerge folds another submission into an existing report.
func (c *Confidence) ApplyMerge(r *domain.Report, now time.Time) {
	r.ReportCount++
	r.ConfidenceScore = clamp(r.ConfidenceScore+c.th.MergeDelta, c.th.MinConfidence, c.th.MaxConfidence)
	r.UpdatedAt = now
}

// ApplyInteraction adjusts score and count for one interaction. update
// interactions only touch UpdatedAt.
func (c *Confidence) ApplyInteraction(r *domain.Report, kind domain.InteractionType, now time.Time) {
	switch kind {
	case domain.InteractionConfirm:
		r.ConfidenceScore = clamp(r.ConfidenceScore+c.th.ConfirmDelta, c.th.MinConfidence, c.th.MaxConfidence)
	case domain.InteractionDispute:
		r.ConfidenceScore = clamp(r.ConfidenceScore-c.th.DisputeDelta, c.th.MinConfidence, c.th.MaxConfidence)
	case domain.InteractionSimilar:
		r.ReportCount++
		r.ConfidenceScore = clamp(r.ConfidenceScore+c.th.SimilarDelta, c.th.MinConfidence, c.th.SimilarMaxConfidence)
	}
	r.UpdatedAt = now
}
