package analytics

import (
	"context"
	"time"

	"uzimasmart/internal/domain"
	"uzimasmart/internal/ports"
)

const (
	defaultDays = 7
	maxDays     = 90
)

// Service reads the per-day submission aggregates.
type Service struct {
	repo     ports.AnalyticsRepository
	counties ports.CountyResolver
	timeout  time.Duration
	now      func() time.Time
}

func New(repo ports.AnalyticsRepository, counties ports.CountyResolver, timeout time.Duration, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, counties: counties, timeout: timeout, now: now}
}

// Daily returns rows for the last q.Days UTC days, today included.
func (s *Service) Daily(ctx context.Context, q ports.AnalyticsQuery) ([]domain.DailyAnalytics, error) {
	days := q.Days
	switch {
	case days == 0:
		days = defaultDays
	case days < 0 || days > maxDays:
		return nil, domain.Invalid("days", "must be between 1 and %d", maxDays)
	}
	f := domain.AnalyticsFilter{Since: domain.Day(s.now()).AddDate(0, 0, -(days - 1))}
	if q.EventType != "" {
		f.EventType = domain.EventType(q.EventType)
		if !f.EventType.Valid() {
			return nil, domain.Invalid("eventType", "unknown event type %q", q.EventType)
		}
	}
	if q.County != "" {
		c, err := s.counties.Resolve(ctx, "county", q.County)
		if err != nil {
			return nil, err
		}
		f.CountyID = &c.ID
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	rows, err := s.repo.Analytics(ctx, f)
	if err != nil {
		return nil, &domain.StoreError{Op: "daily analytics", Err: err}
	}
	return rows, nil
}
