package consensus

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"uzimasmart/internal/domain"
)

func TestAlertSeverityForIsTotal(t *testing.T) {
	tests := []struct {
		sev       domain.Severity
		emergency bool
		want      domain.AlertSeverity
		ok        bool
	}{
		{domain.SeverityLow, false, "", false},
		{domain.SeverityLow, true, domain.AlertHigh, true},
		{domain.SeverityModerate, false, "", false},
		{domain.SeverityModerate, true, domain.AlertHigh, true},
		{domain.SeverityHigh, false, "", false},
		{domain.SeverityHigh, true, domain.AlertHigh, true},
		{domain.SeveritySevere, false, domain.AlertCritical, true},
		{domain.SeveritySevere, true, domain.AlertCritical, true},
	}
	if len(tests) != len(domain.Severities)*2 {
		t.Fatalf("table does not cover every severity/emergency pair")
	}
	for _, tt := range tests {
		got, ok := AlertSeverityFor(tt.sev, tt.emergency)
		if got != tt.want || ok != tt.ok {
			t.Errorf("AlertSeverityFor(%s, %v) = (%q, %v), want (%q, %v)", tt.sev, tt.emergency, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAlertPolicyBuild(t *testing.T) {
	p := NewAlertPolicy(DefaultThresholds())
	county := domain.County{ID: 47, Code: "047", Name: "Nairobi"}
	r := domain.Report{
		ID:              "r1",
		EventType:       domain.EventExtremeWeather,
		Severity:        domain.SeveritySevere,
		Description:     strings.Repeat("a", 250),
		ConfidenceScore: 0.5,
	}
	a, ok := p.Build(r, county, t0)
	if !ok {
		t.Fatal("expected an alert for a severe report")
	}
	if a.Title != "EXTREME WEATHER Alert - Nairobi" {
		t.Errorf("title = %q", a.Title)
	}
	if a.Severity != domain.AlertCritical || a.Confidence != 0.5 || a.CountyID != 47 || a.AlertType != r.EventType {
		t.Errorf("alert = %+v", a)
	}
	if want := strings.Repeat("a", 200) + "..."; a.Description != want {
		t.Errorf("description len %d", len(a.Description))
	}
	if !a.ValidFrom.Equal(t0) || a.ValidUntil.Sub(a.ValidFrom) != 24*time.Hour {
		t.Errorf("window %v - %v", a.ValidFrom, a.ValidUntil)
	}
	if a.Source != "Community Report" || !a.IsActive {
		t.Errorf("source %q active %v", a.Source, a.IsActive)
	}

	r.Severity, r.IsEmergency = domain.SeverityLow, false
	if _, ok := p.Build(r, county, t0); ok {
		t.Error("low non-emergency report should not alert")
	}
}

func TestSummarize(t *testing.T) {
	if got := Summarize("short", 200); got != "short" {
		t.Errorf("got %q", got)
	}
	exact := strings.Repeat("x", 200)
	if got := Summarize(exact, 200); got != exact {
		t.Error("exactly n characters should not be cut")
	}
	// multi-byte text is cut on characters, not bytes
	if got := Summarize("mvua kubwa ñ", 11); got != "mvua kubwa ..." {
		t.Errorf("got %q", got)
	}
}

type fakeFinder struct {
	reports []domain.Report
	err     error
	since   time.Time
	limit   int
}

func (f *fakeFinder) RecentSimilar(_ context.Context, _ int, _ domain.EventType, since time.Time, limit int) ([]domain.Report, error) {
	f.since, f.limit = since, limit
	return f.reports, f.err
}

func TestMatcherPicksMostRecent(t *testing.T) {
	finder := &fakeFinder{reports: []domain.Report{
		{ID: "old", CountyID: 47, EventType: domain.EventDrought, CreatedAt: t0.Add(-20 * time.Hour), VerificationStatus: domain.StatusPending},
		{ID: "new", CountyID: 47, EventType: domain.EventDrought, CreatedAt: t0.Add(-1 * time.Hour), VerificationStatus: domain.StatusPending},
		{ID: "dup", CountyID: 47, EventType: domain.EventDrought, CreatedAt: t0.Add(-1 * time.Minute), VerificationStatus: domain.StatusDuplicate},
	}}
	m := NewMatcher(finder, DefaultThresholds())
	got, ok, err := m.Match(context.Background(), 47, domain.EventDrought, t0)
	if err != nil || !ok {
		t.Fatalf("Match: ok=%v err=%v", ok, err)
	}
	if got.ID != "new" {
		t.Errorf("matched %s, want new", got.ID)
	}
	if !finder.since.Equal(t0.Add(-24*time.Hour)) || finder.limit != 5 {
		t.Errorf("finder called with since=%v limit=%d", finder.since, finder.limit)
	}
}

func TestMatcherNoCandidates(t *testing.T) {
	stale := &fakeFinder{reports: []domain.Report{
		{ID: "stale", CountyID: 47, EventType: domain.EventDrought, CreatedAt: t0.Add(-25 * time.Hour)},
	}}
	if _, ok, err := NewMatcher(stale, DefaultThresholds()).Match(context.Background(), 47, domain.EventDrought, t0); ok || err != nil {
		t.Errorf("stale candidate matched: ok=%v err=%v", ok, err)
	}

	boom := errors.New("boom")
	if _, _, err := NewMatcher(&fakeFinder{err: boom}, DefaultThresholds()).Match(context.Background(), 1, domain.EventDrought, t0); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}
