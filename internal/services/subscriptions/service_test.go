package subscriptions

import (
	"context"
	"testing"
	"time"

	"uzimasmart/internal/adapters/memory"
	"uzimasmart/internal/domain"
	"uzimasmart/internal/logging"
	"uzimasmart/internal/ports"
)

var _ ports.Subscriptions = (*Service)(nil)

func ptr(b bool) *bool { return &b }

func TestUpsert(t *testing.T) {
	now := time.Date(2025, 5, 2, 12, 0, 0, 0, time.UTC)
	store := memory.New()
	svc := New(store, logging.Discard(), 0, func() time.Time { return now })
	ctx := context.Background()

	first, err := svc.Upsert(ctx, domain.SubscriptionInput{PhoneNumber: "0712 345678", WeatherAlerts: ptr(false)})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if first.PhoneNumber != "+254712345678" || first.WeatherAlerts || !first.EmergencyAlerts || !first.ReportConfirmations || !first.IsActive {
		t.Errorf("new subscription = %+v", first)
	}

	now = now.Add(time.Hour)
	second, err := svc.Upsert(ctx, domain.SubscriptionInput{PhoneNumber: "+254712345678", ReportConfirmations: ptr(false)})
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID || !second.SubscribedAt.Equal(first.SubscribedAt) {
		t.Errorf("identity changed: %+v -> %+v", first, second)
	}
	if second.WeatherAlerts || second.ReportConfirmations || !second.EmergencyAlerts {
		t.Errorf("preferences = %+v", second)
	}
	if !second.UpdatedAt.Equal(now) {
		t.Errorf("updatedAt = %v", second.UpdatedAt)
	}

	if _, err := svc.Upsert(ctx, domain.SubscriptionInput{PhoneNumber: "+254712345678", Active: ptr(false)}); err != nil {
		t.Fatal(err)
	}
	phones, _ := store.EmergencySubscribers(ctx)
	if len(phones) != 0 {
		t.Errorf("inactive number still subscribed: %v", phones)
	}
}

func TestUpsertRejectsBadPhone(t *testing.T) {
	svc := New(memory.New(), logging.Discard(), 0, nil)
	for _, phone := range []string{"", "12345", "+1 202 555 0100"} {
		if _, err := svc.Upsert(context.Background(), domain.SubscriptionInput{PhoneNumber: phone}); !domain.IsValidation(err) {
			t.Errorf("phone %q: err = %v", phone, err)
		}
	}
}
