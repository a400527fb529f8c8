// Package consensus holds the rules that turn community submissions and
// interactions into a confidence score, a verification status and, for
// qualifying reports, an alert. Nothing here performs I/O except the Matcher,
// which reads through a CandidateFinder.
package consensus

import (
	"math"
	"time"
)

// Thresholds collects every tunable number the rules use.
type Thresholds struct {
	MatchWindow     time.Duration
	MatchCandidates int

	SeedConfidence       float64
	LinkedSeedConfidence float64
	MinConfidence        float64
	MaxConfidence        float64
	SimilarMaxConfidence float64

	MergeDelta   float64
	ConfirmDelta float64
	DisputeDelta float64
	SimilarDelta float64

	VerifyConfirms int
	RejectDisputes int

	AlertValidity   time.Duration
	AlertSummaryLen int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MatchWindow:     24 * time.Hour,
		MatchCandidates: 5,

		SeedConfidence:       0.5,
		LinkedSeedConfidence: 0.7,
		MinConfidence:        0.1,
		MaxConfidence:        0.95,
		SimilarMaxConfidence: 0.90,

		MergeDelta:   0.1,
		ConfirmDelta: 0.1,
		DisputeDelta: 0.15,
		SimilarDelta: 0.05,

		VerifyConfirms: 3,
		RejectDisputes: 2,

		AlertValidity:   24 * time.Hour,
		AlertSummaryLen: 200,
	}
}

// clamp bounds v to [lo, hi] and rounds to two decimals so repeated 0.05
// steps do not drift.
func clamp(v, lo, hi float64) float64 {
	v = math.Round(v*100) / 100
	return math.Max(lo, math.Min(hi, v))
}
