package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"uzimasmart/internal/domain"
	"uzimasmart/internal/ports"
)

type Service struct {
	repo    ports.SubscriptionRepository
	log     *log.Logger
	timeout time.Duration
	now     func() time.Time
}

func New(repo ports.SubscriptionRepository, logger *log.Logger, timeout time.Duration, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, log: logger, timeout: timeout, now: now}
}

// Upsert creates or updates the subscription for a phone number. Preferences
// left out of the input keep their stored value, or default to on for a new
// number.
func (s *Service) Upsert(ctx context.Context, in domain.SubscriptionInput) (domain.Subscription, error) {
	in.Normalize()
	if err := domain.Validate(&in); err != nil {
		return domain.Subscription{}, err
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now().UTC()
	sub, err := s.repo.Subscription(ctx, in.PhoneNumber)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		sub = domain.Subscription{
			ID:                  uuid.NewString(),
			PhoneNumber:         in.PhoneNumber,
			WeatherAlerts:       true,
			EmergencyAlerts:     true,
			ReportConfirmations: true,
			IsActive:            true,
			SubscribedAt:        now,
		}
	case err != nil:
		return domain.Subscription{}, &domain.StoreError{Op: "get subscription", Err: err}
	}
	apply(&sub.WeatherAlerts, in.WeatherAlerts)
	apply(&sub.EmergencyAlerts, in.EmergencyAlerts)
	apply(&sub.ReportConfirmations, in.ReportConfirmations)
	apply(&sub.IsActive, in.Active)
	sub.UpdatedAt = now

	out, err := s.repo.UpsertSubscription(ctx, sub)
	if err != nil {
		return domain.Subscription{}, &domain.StoreError{Op: "upsert subscription", Err: err}
	}
	s.log.Info("subscription saved", "subscription_id", out.ID, "active", out.IsActive, "emergency", out.EmergencyAlerts)
	return out, nil
}

func apply(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
