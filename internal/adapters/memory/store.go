// Package memory is an in-process Event Store. A single mutex serialises
// every call, which gives UpdateReport and RecordInteraction the same
// exclusive-row semantics the SQL stores get from row locks.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"uzimasmart/internal/domain"
)

type analyticsKey struct {
	county    int
	eventType domain.EventType
	day       time.Time
}

type Store struct {
	mu           sync.Mutex
	counties     []domain.County
	reports      map[string]domain.Report
	interactions map[string][]domain.Interaction
	alerts       []domain.Alert
	subs         map[string]domain.Subscription
	analytics    map[analyticsKey]domain.DailyAnalytics
}

func New() *Store {
	return &Store{
		counties:     slices.Clone(domain.KenyaCounties),
		reports:      make(map[string]domain.Report),
		interactions: make(map[string][]domain.Interaction),
		subs:         make(map[string]domain.Subscription),
		analytics:    make(map[analyticsKey]domain.DailyAnalytics),
	}
}

func (s *Store) Migrate(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Counties

func (s *Store) CountyByName(_ context.Context, name string) (domain.County, error) {
	name = strings.TrimSpace(name)
	for _, c := range s.counties {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return domain.County{}, fmt.Errorf("county %q: %w", name, domain.ErrNotFound)
}

func (s *Store) Counties(context.Context) ([]domain.County, error) {
	return slices.Clone(s.counties), nil
}

func (s *Store) county(id int) domain.County {
	if id >= 1 && id <= len(s.counties) {
		return s.counties[id-1]
	}
	return domain.County{ID: id}
}

// Reports

func (s *Store) CreateReport(ctx context.Context, r domain.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[r.ID]; ok {
		return fmt.Errorf("report %s already exists", r.ID)
	}
	s.reports[r.ID] = cloneReport(r)
	return nil
}

func (s *Store) Report(_ context.Context, id string) (domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return domain.Report{}, domain.ErrNotFound
	}
	return s.hydrate(r), nil
}

func (s *Store) ListReports(_ context.Context, f domain.ReportFilter) ([]domain.Report, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []domain.Report
	for _, r := range s.reports {
		if !r.IsPublic {
			continue
		}
		if f.CountyID != nil && r.CountyID != *f.CountyID {
			continue
		}
		if f.EventType != "" && r.EventType != f.EventType {
			continue
		}
		if f.Status != "" && r.VerificationStatus != f.Status {
			continue
		}
		matched = append(matched, r)
	}
	sortNewestFirst(matched)
	total := len(matched)
	lo := min(f.Offset, total)
	hi := total
	if f.Limit > 0 {
		hi = min(lo+f.Limit, total)
	}
	out := make([]domain.Report, 0, hi-lo)
	for _, r := range matched[lo:hi] {
		out = append(out, s.hydrate(r))
	}
	return out, total, nil
}

func (s *Store) RecentSimilar(_ context.Context, countyID int, eventType domain.EventType, since time.Time, limit int) ([]domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Report
	for _, r := range s.reports {
		if r.CountyID == countyID && r.EventType == eventType &&
			r.VerificationStatus != domain.StatusDuplicate && !r.CreatedAt.Before(since) {
			out = append(out, s.hydrate(r))
		}
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateReport(ctx context.Context, id string, fn func(r *domain.Report) error) (domain.Report, error) {
	if err := ctx.Err(); err != nil {
		return domain.Report{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.reports[id]
	if !ok {
		return domain.Report{}, domain.ErrNotFound
	}
	next := s.hydrate(cur)
	if err := fn(&next); err != nil {
		return domain.Report{}, err
	}
	s.reports[id] = cloneReport(next)
	return s.hydrate(next), nil
}

// Interactions

func (s *Store) RecordInteraction(ctx context.Context, it domain.Interaction, fn func(r *domain.Report, tally domain.InteractionTally) error) (domain.Report, error) {
	if err := ctx.Err(); err != nil {
		return domain.Report{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.reports[it.ReportID]
	if !ok {
		return domain.Report{}, domain.ErrNotFound
	}
	var tally domain.InteractionTally
	for _, prev := range s.interactions[it.ReportID] {
		tally.Add(prev.Type, 1)
	}
	tally.Add(it.Type, 1)

	next := s.hydrate(cur)
	if err := fn(&next, tally); err != nil {
		return domain.Report{}, err
	}
	it.Metadata = maps.Clone(it.Metadata)
	s.interactions[it.ReportID] = append(s.interactions[it.ReportID], it)
	s.reports[it.ReportID] = cloneReport(next)
	return s.hydrate(next), nil
}

func (s *Store) Interactions(_ context.Context, reportID string) ([]domain.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.interactions[reportID]
	out := make([]domain.Interaction, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		it := src[i]
		it.Metadata = maps.Clone(it.Metadata)
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Alerts

func (s *Store) CreateAlert(ctx context.Context, a domain.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *Store) ListAlerts(_ context.Context, f domain.AlertFilter) ([]domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Alert
	for i := len(s.alerts) - 1; i >= 0; i-- {
		a := s.alerts[i]
		if f.CountyID != nil && a.CountyID != *f.CountyID {
			continue
		}
		if f.ActiveAt != nil && (!a.IsActive || a.ValidFrom.After(*f.ActiveAt) || !a.ValidUntil.After(*f.ActiveAt)) {
			continue
		}
		out = append(out, a)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// Subscriptions

func (s *Store) UpsertSubscription(_ context.Context, sub domain.Subscription) (domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.subs[sub.PhoneNumber]; ok {
		sub.ID = prev.ID
		sub.SubscribedAt = prev.SubscribedAt
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	s.subs[sub.PhoneNumber] = sub
	return sub, nil
}

func (s *Store) Subscription(_ context.Context, phone string) (domain.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[phone]
	if !ok {
		return domain.Subscription{}, domain.ErrNotFound
	}
	return sub, nil
}

func (s *Store) EmergencySubscribers(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for phone, sub := range s.subs {
		if sub.IsActive && sub.EmergencyAlerts {
			out = append(out, phone)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Analytics

func (s *Store) RecordSubmission(_ context.Context, countyID int, eventType domain.EventType, sev domain.Severity, day time.Time, confidence float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := analyticsKey{countyID, eventType, domain.Day(day)}
	a := s.analytics[k]
	a.CountyID, a.EventType, a.Day = k.county, k.eventType, k.day
	a.TotalReports++
	a.ConfidenceSum += confidence
	switch sev {
	case domain.SeverityLow:
		a.Low++
	case domain.SeverityModerate:
		a.Moderate++
	case domain.SeverityHigh:
		a.High++
	case domain.SeveritySevere:
		a.Severe++
	}
	s.analytics[k] = a
	return nil
}

func (s *Store) RecordVerified(_ context.Context, countyID int, eventType domain.EventType, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := analyticsKey{countyID, eventType, domain.Day(day)}
	a := s.analytics[k]
	a.CountyID, a.EventType, a.Day = k.county, k.eventType, k.day
	a.VerifiedReports++
	s.analytics[k] = a
	return nil
}

func (s *Store) Analytics(_ context.Context, f domain.AnalyticsFilter) ([]domain.DailyAnalytics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DailyAnalytics
	for k, a := range s.analytics {
		if f.CountyID != nil && k.county != *f.CountyID {
			continue
		}
		if f.EventType != "" && k.eventType != f.EventType {
			continue
		}
		if k.day.Before(domain.Day(f.Since)) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Day.Equal(out[j].Day) {
			return out[i].Day.After(out[j].Day)
		}
		if out[i].CountyID != out[j].CountyID {
			return out[i].CountyID < out[j].CountyID
		}
		return out[i].EventType < out[j].EventType
	})
	return out, nil
}

func (s *Store) hydrate(r domain.Report) domain.Report {
	r = cloneReport(r)
	r.County = s.county(r.CountyID)
	return r
}

func cloneReport(r domain.Report) domain.Report {
	r.SimilarReports = slices.Clone(r.SimilarReports)
	if r.VerifiedAt != nil {
		at := *r.VerifiedAt
		r.VerifiedAt = &at
	}
	return r
}

func sortNewestFirst(rs []domain.Report) {
	sort.SliceStable(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.After(rs[j].CreatedAt)
		}
		return rs[i].ID > rs[j].ID
	})
}
