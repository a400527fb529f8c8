package consensus

import (
	"context"
	"sort"
	"time"

	"uzimasmart/internal/domain"
)

// CandidateFinder returns non-duplicate reports for a county and event type
// created at or after since, newest first, at most limit of them.
type CandidateFinder interface {
	RecentSimilar(ctx context.Context, countyID int, eventType domain.EventType, since time.Time, limit int) ([]domain.Report, error)
}

// Matcher finds the existing report a new submission most plausibly repeats.
// Matching is exact on county and event type within the lookback window.
type Matcher struct {
	finder CandidateFinder
	th     Thresholds
}

func NewMatcher(finder CandidateFinder, th Thresholds) *Matcher {
	return &Matcher{finder: finder, th: th}
}

func (m *Matcher) Match(ctx context.Context, countyID int, eventType domain.EventType, at time.Time) (domain.Report, bool, error) {
	since := at.Add(-m.th.MatchWindow)
	candidates, err := m.finder.RecentSimilar(ctx, countyID, eventType, since, m.th.MatchCandidates)
	if err != nil {
		return domain.Report{}, false, err
	}
	// stores already order by created_at desc; do not rely on it
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})
	for _, c := range candidates {
		if c.CountyID != countyID || c.EventType != eventType {
			continue
		}
		if c.VerificationStatus == domain.StatusDuplicate || c.CreatedAt.Before(since) {
			continue
		}
		return c, true, nil
	}
	return domain.Report{}, false, nil
}
