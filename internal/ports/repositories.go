package ports

import (
	"context"
	"time"

	"uzimasmart/internal/domain"
)

// Event Store ports. Lookups that miss return an error matching
// domain.ErrNotFound.

// CountyRepository reads the fixed county table.
type CountyRepository interface {
	CountyByName(ctx context.Context, name string) (domain.County, error)
	Counties(ctx context.Context) ([]domain.County, error)
}

// ReportRepository persists reports. UpdateReport is the only mutation path
// for an existing report: fn runs against the current row while the store
// holds it exclusively, and its changes are written before the lock is
// released. fn may be called more than once by optimistic stores.
type ReportRepository interface {
	CreateReport(ctx context.Context, r domain.Report) error
	Report(ctx context.Context, id string) (domain.Report, error)
	ListReports(ctx context.Context, f domain.ReportFilter) (reports []domain.Report, total int, err error)
	RecentSimilar(ctx context.Context, countyID int, eventType domain.EventType, since time.Time, limit int) ([]domain.Report, error)
	UpdateReport(ctx context.Context, id string, fn func(r *domain.Report) error) (domain.Report, error)
}

// InteractionRepository records interactions. RecordInteraction stores it,
// tallies the report's interactions (including it) and applies fn to the
// report under the same exclusive hold as UpdateReport.
type InteractionRepository interface {
	RecordInteraction(ctx context.Context, it domain.Interaction, fn func(r *domain.Report, tally domain.InteractionTally) error) (domain.Report, error)
	Interactions(ctx context.Context, reportID string) ([]domain.Interaction, error)
}

// AlertRepository stores write-once alerts.
type AlertRepository interface {
	CreateAlert(ctx context.Context, a domain.Alert) error
	ListAlerts(ctx context.Context, f domain.AlertFilter) ([]domain.Alert, error)
}

type SubscriptionRepository interface {
	UpsertSubscription(ctx context.Context, s domain.Subscription) (domain.Subscription, error)
	Subscription(ctx context.Context, phone string) (domain.Subscription, error)
	EmergencySubscribers(ctx context.Context) ([]string, error)
}

type AnalyticsRepository interface {
	RecordSubmission(ctx context.Context, countyID int, eventType domain.EventType, sev domain.Severity, day time.Time, confidence float64) error
	RecordVerified(ctx context.Context, countyID int, eventType domain.EventType, day time.Time) error
	Analytics(ctx context.Context, f domain.AnalyticsFilter) ([]domain.DailyAnalytics, error)
}

// EventStore is everything a storage adapter provides.
type EventStore interface {
	CountyRepository
	ReportRepository
	InteractionRepository
	AlertRepository
	SubscriptionRepository
	AnalyticsRepository
	Migrate(ctx context.Context) error
	Close() error
}
