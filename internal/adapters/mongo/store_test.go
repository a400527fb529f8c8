package mongo

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"uzimasmart/internal/domain"
	"uzimasmart/internal/ports"
)

var _ ports.EventStore = (*Store)(nil)

func TestReportDocKeepsFields(t *testing.T) {
	lat := 0.5
	at := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	r := domain.Report{
		ID: "r1", EventType: domain.EventFlooding, CountyID: 3, Severity: domain.SeveritySevere,
		Latitude: &lat, VerificationStatus: domain.StatusVerified, VerifiedAt: &at,
		ConfidenceScore: 0.8, ReportCount: 4, CreatedAt: at, UpdatedAt: at,
	}
	d := toReportDoc(r, 7)
	if d.Version != 7 || d.SimilarReports == nil {
		t.Errorf("doc = %+v", d)
	}
	back := d.report(domain.County{ID: 3, Name: "Kilifi"})
	if back.County.Name != "Kilifi" || *back.Latitude != lat || back.ReportCount != 4 || !back.VerifiedAt.Equal(at) {
		t.Errorf("report = %+v", back)
	}
}

func connect(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := Connect(ctx, uri, "uzima_test_"+uuid.NewString()[:8])
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = s.db.Drop(context.Background())
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestCountiesAndLookup(t *testing.T) {
	s := connect(t)
	ctx := context.Background()
	all, err := s.Counties(ctx)
	if err != nil || len(all) != 47 {
		t.Fatalf("counties = %d, err %v", len(all), err)
	}
	c, err := s.CountyByName(ctx, "kisumu")
	if err != nil || c.Name != "Kisumu" {
		t.Errorf("CountyByName = %+v, %v", c, err)
	}
	if _, err := s.CountyByName(ctx, "Atlantis"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestConcurrentCASUpdates(t *testing.T) {
	s := connect(t)
	ctx := context.Background()
	now := time.Now().UTC()
	r := domain.Report{
		ID: uuid.NewString(), EventType: domain.EventDrought, CountyID: 47, Severity: domain.SeverityLow,
		IsPublic: true, VerificationStatus: domain.StatusPending, ConfidenceScore: 0.5, ReportCount: 1,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.CreateReport(ctx, r); err != nil {
		t.Fatal(err)
	}
	const n = 6
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			it := domain.Interaction{ID: uuid.NewString(), ReportID: r.ID, Type: domain.InteractionSimilar, PhoneNumber: "+254712345678", CreatedAt: time.Now()}
			if _, err := s.RecordInteraction(ctx, it, func(rep *domain.Report, _ domain.InteractionTally) error {
				rep.ReportCount++
				return nil
			}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	got, _ := s.Report(ctx, r.ID)
	if got.ReportCount != n+1 || got.County.Name != "Nairobi" {
		t.Errorf("report = %+v", got)
	}
	if _, err := s.Report(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
}
