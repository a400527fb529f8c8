package interactions

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"uzimasmart/internal/adapters/memory"
	"uzimasmart/internal/consensus"
	"uzimasmart/internal/domain"
	"uzimasmart/internal/logging"
	"uzimasmart/internal/ports"
	"uzimasmart/internal/workers/notifier"
)

var _ ports.Interactions = (*Service)(nil)

var created = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *memory.Store, string) {
	t.Helper()
	store := memory.New()
	r := domain.Report{
		ID:                 "r1",
		EventType:          domain.EventFlooding,
		CountyID:           42,
		Severity:           domain.SeverityModerate,
		Description:        "river burst its banks",
		IsPublic:           true,
		VerificationStatus: domain.StatusPending,
		ConfidenceScore:    0.5,
		ReportCount:        1,
		CreatedAt:          created,
		UpdatedAt:          created,
	}
	if err := store.CreateReport(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	svc := New(store, notifier.Inline{}, logging.Discard(), Options{
		Thresholds: consensus.DefaultThresholds(),
		Now:        func() time.Time { return created.Add(time.Hour) },
	})
	return svc, store, r.ID
}

func record(t *testing.T, svc *Service, id string, kind domain.InteractionType, n int) domain.Report {
	t.Helper()
	var r domain.Report
	for i := 0; i < n; i++ {
		var err error
		_, r, err = svc.Record(context.Background(), domain.InteractionInput{
			ReportID:        id,
			InteractionType: string(kind),
			PhoneNumber:     fmt.Sprintf("07%08d", i),
		})
		if err != nil {
			t.Fatalf("Record %s #%d: %v", kind, i, err)
		}
	}
	return r
}

func TestConfirmThreshold(t *testing.T) {
	svc, store, id := setup(t)
	r := record(t, svc, id, domain.InteractionConfirm, 2)
	if r.VerificationStatus != domain.StatusPending {
		t.Fatalf("verified after 2 confirms")
	}
	r = record(t, svc, id, domain.InteractionConfirm, 1)
	if r.VerificationStatus != domain.StatusVerified || r.VerifiedBy != consensus.VerifiedByConsensus || r.VerifiedAt == nil {
		t.Errorf("after 3 confirms: %s by %q", r.VerificationStatus, r.VerifiedBy)
	}
	if r.ConfidenceScore != 0.8 {
		t.Errorf("confidence = %v", r.ConfidenceScore)
	}

	rows, err := store.Analytics(context.Background(), domain.AnalyticsFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].VerifiedReports != 1 || !rows[0].Day.Equal(domain.Day(created)) {
		t.Errorf("analytics = %+v", rows)
	}
}

func TestDisputeThreshold(t *testing.T) {
	svc, _, id := setup(t)
	r := record(t, svc, id, domain.InteractionConfirm, 2)
	r = record(t, svc, id, domain.InteractionDispute, 1)
	if r.VerificationStatus != domain.StatusPending {
		t.Fatalf("rejected after 1 dispute")
	}
	r = record(t, svc, id, domain.InteractionDispute, 1)
	if r.VerificationStatus != domain.StatusRejected || r.VerifiedBy != consensus.VerifiedByDispute {
		t.Errorf("after 2 disputes: %s by %q", r.VerificationStatus, r.VerifiedBy)
	}
}

func TestTerminalStatusIsStable(t *testing.T) {
	svc, _, id := setup(t)
	record(t, svc, id, domain.InteractionConfirm, 3)
	before := record(t, svc, id, domain.InteractionUpdate, 1)
	after := record(t, svc, id, domain.InteractionDispute, 5)
	if after.VerificationStatus != domain.StatusVerified {
		t.Errorf("status moved to %s", after.VerificationStatus)
	}
	if after.ConfidenceScore >= before.ConfidenceScore {
		t.Errorf("disputes did not lower confidence: %v -> %v", before.ConfidenceScore, after.ConfidenceScore)
	}
}

func TestUpdateOnlyTouchesTimestamp(t *testing.T) {
	svc, _, id := setup(t)
	r := record(t, svc, id, domain.InteractionUpdate, 4)
	if r.ConfidenceScore != 0.5 || r.ReportCount != 1 || r.VerificationStatus != domain.StatusPending {
		t.Errorf("update changed %+v", r)
	}
	if !r.UpdatedAt.Equal(created.Add(time.Hour)) {
		t.Errorf("updatedAt = %v", r.UpdatedAt)
	}
}

func TestSimilarBumpsCountUnderLowerCap(t *testing.T) {
	svc, _, id := setup(t)
	r := record(t, svc, id, domain.InteractionSimilar, 12)
	if r.ReportCount != 13 || r.ConfidenceScore != 0.9 {
		t.Errorf("count %d confidence %v", r.ReportCount, r.ConfidenceScore)
	}
}

func TestConfidenceStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 20; run++ {
		svc, _, id := setup(t)
		for i := 0; i < 40; i++ {
			kind := domain.InteractionTypes[rng.Intn(len(domain.InteractionTypes))]
			r := record(t, svc, id, kind, 1)
			if r.ConfidenceScore < 0.1 || r.ConfidenceScore > 0.95 {
				t.Fatalf("run %d step %d: confidence %v", run, i, r.ConfidenceScore)
			}
		}
	}
}

func TestRecordErrors(t *testing.T) {
	svc, _, id := setup(t)
	ctx := context.Background()

	_, _, err := svc.Record(ctx, domain.InteractionInput{ReportID: "nope", InteractionType: "confirm", PhoneNumber: "0712345678"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown report: %v", err)
	}
	bad := []domain.InteractionInput{
		{ReportID: id, InteractionType: "like", PhoneNumber: "0712345678"},
		{ReportID: id, InteractionType: "confirm"},
		{ReportID: id, InteractionType: "confirm", PhoneNumber: "555-0100"},
		{InteractionType: "confirm", PhoneNumber: "0712345678"},
	}
	for _, in := range bad {
		if _, _, err := svc.Record(ctx, in); !domain.IsValidation(err) {
			t.Errorf("Record(%+v) err = %v", in, err)
		}
	}
}

func TestListGroupsAndTallies(t *testing.T) {
	svc, _, id := setup(t)
	record(t, svc, id, domain.InteractionConfirm, 2)
	record(t, svc, id, domain.InteractionSimilar, 1)

	sum, err := svc.List(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Tally.Total() != len(sum.Interactions) || len(sum.Interactions) != 3 {
		t.Errorf("tally %+v for %d interactions", sum.Tally, len(sum.Interactions))
	}
	if len(sum.Grouped) != 4 || len(sum.Grouped[domain.InteractionConfirm]) != 2 || len(sum.Grouped[domain.InteractionDispute]) != 0 {
		t.Errorf("grouped = %v", sum.Grouped)
	}
	if sum.Grouped[domain.InteractionDispute] == nil {
		t.Error("empty group is nil")
	}

	if _, err := svc.List(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown report: %v", err)
	}
}

func TestConcurrentConfirmsVerifyOnce(t *testing.T) {
	svc, store, id := setup(t)
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		transitions int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, r, err := svc.Record(context.Background(), domain.InteractionInput{
				ReportID:        id,
				InteractionType: "confirm",
				PhoneNumber:     fmt.Sprintf("07%08d", i),
			})
			if err != nil {
				t.Error(err)
				return
			}
			if r.VerificationStatus == domain.StatusVerified && r.VerifiedAt != nil {
				mu.Lock()
				transitions++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	sum, err := svc.List(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Tally.Confirms != 20 {
		t.Errorf("confirms = %d", sum.Tally.Confirms)
	}
	r, _ := store.Report(context.Background(), id)
	if r.ConfidenceScore != 0.95 || r.VerificationStatus != domain.StatusVerified {
		t.Errorf("final report %v %s", r.ConfidenceScore, r.VerificationStatus)
	}
	rows, _ := store.Analytics(context.Background(), domain.AnalyticsFilter{})
	if len(rows) != 1 || rows[0].VerifiedReports != 1 {
		t.Errorf("verified counted %+v", rows)
	}
	if transitions < 18 {
		t.Errorf("only %d responses saw the verified status", transitions)
	}
}
