package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"uzimasmart/internal/adapters/memory"
	"uzimasmart/internal/consensus"
	"uzimasmart/internal/domain"
	"uzimasmart/internal/logging"
	"uzimasmart/internal/ports"
	"uzimasmart/internal/services/counties"
	"uzimasmart/internal/workers/notifier"
)

var _ ports.Alerts = (*Service)(nil)

type batchRecorder struct {
	mu      sync.Mutex
	batches [][]string
	msg     string
}

func (b *batchRecorder) Send(_ context.Context, to []string, msg string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches = append(b.batches, append([]string(nil), to...))
	b.msg = msg
	return nil
}

type publishRecorder struct {
	mu        sync.Mutex
	published []domain.Alert
	err       error
}

func (p *publishRecorder) PublishAlert(_ context.Context, a domain.Alert, _ domain.County) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, a)
	return nil
}

// failingStore refuses every alert write.
type failingStore struct{ *memory.Store }

func (failingStore) CreateAlert(context.Context, domain.Alert) error {
	return errors.New("disk full")
}

var now = time.Date(2025, 4, 20, 6, 0, 0, 0, time.UTC)

func newService(store Store, sms ports.SMSSender, pub ports.AlertPublisher, tasks ports.PostCommit) *Service {
	return New(store, counties.New(memory.New(), 0), sms, pub, tasks, logging.Discard(), Options{
		Thresholds: consensus.DefaultThresholds(),
		BatchSize:  2,
		Now:        func() time.Time { return now },
	})
}

func severeReport() (domain.Report, domain.County) {
	county := domain.County{ID: 47, Code: "047", Name: "Nairobi"}
	return domain.Report{
		ID:          "r1",
		EventType:   domain.EventFlooding,
		CountyID:    county.ID,
		Severity:    domain.SeveritySevere,
		Description: "Ngong river overflowing near the market",
		CreatedAt:   now,
	}, county
}

func TestDispatchStoresAndFansOut(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	for i, active := range []bool{true, true, true, false, true} {
		_, err := store.UpsertSubscription(ctx, domain.Subscription{
			ID:              fmt.Sprint(i),
			PhoneNumber:     fmt.Sprintf("+25471000000%d", i),
			EmergencyAlerts: true,
			IsActive:        active,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	sms := &batchRecorder{}
	pub := &publishRecorder{}
	svc := newService(store, sms, pub, notifier.Inline{})

	r, county := severeReport()
	a := svc.Dispatch(ctx, r, county)
	if a == nil {
		t.Fatal("no alert")
	}
	if a.Severity != domain.AlertCritical || a.ReportID != r.ID || !a.ValidUntil.Equal(now.Add(24*time.Hour)) {
		t.Errorf("alert = %+v", a)
	}
	stored, _ := store.ListAlerts(ctx, domain.AlertFilter{})
	if len(stored) != 1 || stored[0].ID != a.ID {
		t.Errorf("stored = %+v", stored)
	}

	if len(sms.batches) != 2 || len(sms.batches[0]) != 2 || len(sms.batches[1]) != 2 {
		t.Errorf("batches = %v", sms.batches)
	}
	if !strings.HasPrefix(sms.msg, "EMERGENCY CLIMATE ALERT\n") || !strings.Contains(sms.msg, "Location: Nairobi\nSeverity: critical") {
		t.Errorf("message = %q", sms.msg)
	}
	if len(pub.published) != 1 || pub.published[0].ID != a.ID {
		t.Errorf("published = %+v", pub.published)
	}
}

func TestDispatchNoAlert(t *testing.T) {
	sms := &batchRecorder{}
	svc := newService(memory.New(), sms, nil, notifier.Inline{})
	r, county := severeReport()
	r.Severity = domain.SeverityModerate
	if a := svc.Dispatch(context.Background(), r, county); a != nil {
		t.Errorf("alert = %+v", a)
	}
	if len(sms.batches) != 0 {
		t.Errorf("sent %v", sms.batches)
	}
}

func TestDispatchFailuresAreSwallowed(t *testing.T) {
	var outcomes []notifier.Outcome
	tasks := notifier.Inline{OnOutcome: func(o notifier.Outcome) { outcomes = append(outcomes, o) }}
	r, county := severeReport()

	svc := newService(failingStore{memory.New()}, &batchRecorder{}, &publishRecorder{}, tasks)
	if a := svc.Dispatch(context.Background(), r, county); a != nil {
		t.Errorf("alert returned although the store failed: %+v", a)
	}
	if len(outcomes) != 0 {
		t.Errorf("fan-out ran for an unstored alert: %+v", outcomes)
	}

	svc = newService(memory.New(), &batchRecorder{}, &publishRecorder{err: errors.New("broker down")}, tasks)
	if a := svc.Dispatch(context.Background(), r, county); a == nil {
		t.Fatal("publish failure lost the alert")
	}
	var failed []string
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o.Task)
		}
	}
	if len(failed) != 1 || failed[0] != "alert-publish" {
		t.Errorf("failed tasks = %v", failed)
	}
}

func TestListActiveOnly(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	old := domain.Alert{ID: "old", CountyID: 47, IsActive: true, ValidFrom: now.Add(-48 * time.Hour), ValidUntil: now.Add(-24 * time.Hour)}
	cur := domain.Alert{ID: "cur", CountyID: 47, IsActive: true, ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour)}
	other := domain.Alert{ID: "other", CountyID: 1, IsActive: true, ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour)}
	for _, a := range []domain.Alert{old, cur, other} {
		if err := store.CreateAlert(ctx, a); err != nil {
			t.Fatal(err)
		}
	}
	svc := New(store, counties.New(store, 0), &batchRecorder{}, nil, notifier.Inline{}, logging.Discard(), Options{Now: func() time.Time { return now }})

	tests := map[string]struct {
		q    ports.AlertQuery
		want []string
	}{
		"all":              {ports.AlertQuery{}, []string{"other", "cur", "old"}},
		"active":           {ports.AlertQuery{ActiveOnly: true}, []string{"other", "cur"}},
		"county":           {ports.AlertQuery{County: "nairobi"}, []string{"cur", "old"}},
		"county and limit": {ports.AlertQuery{County: "Nairobi", Limit: 1}, []string{"cur"}},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := svc.List(ctx, tt.q)
			if err != nil {
				t.Fatal(err)
			}
			var ids []string
			for _, a := range got {
				ids = append(ids, a.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", ids, tt.want)
			}
		})
	}

	if _, err := svc.List(ctx, ports.AlertQuery{Limit: 500}); !domain.IsValidation(err) {
		t.Errorf("limit 500: %v", err)
	}
	if _, err := svc.List(ctx, ports.AlertQuery{County: "Atlantis"}); !domain.IsValidation(err) {
		t.Errorf("unknown county: %v", err)
	}
}
