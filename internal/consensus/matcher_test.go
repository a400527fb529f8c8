package consensus

import (
	"context"
	"errors"
	"testing"
	"time"

	"uzimasmart/internal/domain"
)

// finderFunc ignores the store-side filters so the matcher's own checks are
// what the tests observe.
type finderFunc func() ([]domain.Report, error)

func (f finderFunc) RecentSimilar(context.Context, int, domain.EventType, time.Time, int) ([]domain.Report, error) {
	return f()
}

func candidate(id string, county int, et domain.EventType, status domain.VerificationStatus, age time.Duration) domain.Report {
	return domain.Report{ID: id, CountyID: county, EventType: et, VerificationStatus: status, CreatedAt: t0.Add(-age)}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name       string
		candidates []domain.Report
		want       string // empty means no match
	}{
		{"no candidates", nil, ""},
		{"newest wins", []domain.Report{
			candidate("old", 47, domain.EventDrought, domain.StatusPending, 5*time.Hour),
			candidate("new", 47, domain.EventDrought, domain.StatusVerified, time.Hour),
		}, "new"},
		{"duplicates skipped", []domain.Report{
			candidate("dup", 47, domain.EventDrought, domain.StatusDuplicate, time.Minute),
			candidate("orig", 47, domain.EventDrought, domain.StatusPending, time.Hour),
		}, "orig"},
		{"outside window", []domain.Report{
			candidate("stale", 47, domain.EventDrought, domain.StatusPending, 25*time.Hour),
		}, ""},
		{"window edge inclusive", []domain.Report{
			candidate("edge", 47, domain.EventDrought, domain.StatusPending, 24*time.Hour),
		}, "edge"},
		{"other county or type", []domain.Report{
			candidate("c", 1, domain.EventDrought, domain.StatusPending, time.Hour),
			candidate("e", 47, domain.EventFlooding, domain.StatusPending, time.Hour),
		}, ""},
		{"rejected still matches", []domain.Report{
			candidate("rej", 47, domain.EventDrought, domain.StatusRejected, time.Hour),
		}, "rej"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(finderFunc(func() ([]domain.Report, error) { return tt.candidates, nil }), DefaultThresholds())
			got, ok, err := m.Match(context.Background(), 47, domain.EventDrought, t0)
			if err != nil {
				t.Fatal(err)
			}
			if tt.want == "" {
				if ok {
					t.Errorf("matched %s", got.ID)
				}
				return
			}
			if !ok || got.ID != tt.want {
				t.Errorf("got %q (ok=%v), want %q", got.ID, ok, tt.want)
			}
		})
	}
}

func TestMatchPropagatesStoreError(t *testing.T) {
	boom := errors.New("timeout")
	m := NewMatcher(finderFunc(func() ([]domain.Report, error) { return nil, boom }), DefaultThresholds())
	if _, _, err := m.Match(context.Background(), 47, domain.EventDrought, t0); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}
