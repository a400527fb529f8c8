package analytics

import (
	"context"
	"testing"
	"time"

	"uzimasmart/internal/adapters/memory"
	"uzimasmart/internal/domain"
	"uzimasmart/internal/ports"
	"uzimasmart/internal/services/counties"
)

var _ ports.Analytics = (*Service)(nil)

func TestDaily(t *testing.T) {
	now := time.Date(2025, 6, 15, 18, 30, 0, 0, time.UTC)
	store := memory.New()
	ctx := context.Background()
	for _, rec := range []struct {
		county int
		et     domain.EventType
		ago    int
	}{
		{47, domain.EventDrought, 0},
		{47, domain.EventDrought, 6},
		{47, domain.EventDrought, 7},
		{42, domain.EventFlooding, 1},
	} {
		day := now.AddDate(0, 0, -rec.ago)
		if err := store.RecordSubmission(ctx, rec.county, rec.et, domain.SeverityHigh, day, 0.5); err != nil {
			t.Fatal(err)
		}
	}
	svc := New(store, counties.New(store, 0), 0, func() time.Time { return now })

	tests := map[string]struct {
		q    ports.AnalyticsQuery
		want int
	}{
		"default week":    {ports.AnalyticsQuery{}, 3},
		"one day":         {ports.AnalyticsQuery{Days: 1}, 1},
		"longer window":   {ports.AnalyticsQuery{Days: 30}, 4},
		"by county":       {ports.AnalyticsQuery{County: "nairobi"}, 2},
		"by event type":   {ports.AnalyticsQuery{EventType: "flooding"}, 1},
		"county and type": {ports.AnalyticsQuery{County: "Kisumu", EventType: "drought"}, 0},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rows, err := svc.Daily(ctx, tt.q)
			if err != nil {
				t.Fatal(err)
			}
			if len(rows) != tt.want {
				t.Errorf("got %d rows, want %d: %+v", len(rows), tt.want, rows)
			}
		})
	}

	for _, q := range []ports.AnalyticsQuery{{Days: 91}, {Days: -1}, {County: "Atlantis"}, {EventType: "volcano"}} {
		if _, err := svc.Daily(ctx, q); !domain.IsValidation(err) {
			t.Errorf("Daily(%+v) err = %v", q, err)
		}
	}
}
