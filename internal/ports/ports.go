package ports

import (
	"context"

	"uzimasmart/internal/domain"
)

// Reports accepts community submissions and serves the public listing.
type Reports interface {
	Submit(ctx context.Context, in domain.Submission) (SubmitResult, error)
	Get(ctx context.Context, id string) (domain.Report, error)
	List(ctx context.Context, q ReportQuery) (ReportPage, error)
}

// Interactions records community confirm/dispute/update/similar actions.
type Interactions interface {
	Record(ctx context.Context, in domain.InteractionInput) (domain.Interaction, domain.Report, error)
	List(ctx context.Context, reportID string) (InteractionSummary, error)
}

type Alerts interface {
	List(ctx context.Context, q AlertQuery) ([]domain.Alert, error)
}

type Analytics interface {
	Daily(ctx context.Context, q AnalyticsQuery) ([]domain.DailyAnalytics, error)
}

type Counties interface {
	List(ctx context.Context) ([]domain.County, error)
}

// CountyResolver maps a user-supplied county name to a County. Unknown names
// are reported as a validation error on field.
type CountyResolver interface {
	Resolve(ctx context.Context, field, name string) (domain.County, error)
}

type Subscriptions interface {
	Upsert(ctx context.Context, in domain.SubscriptionInput) (domain.Subscription, error)
}

type SubmitResult struct {
	Report     domain.Report
	Merged     bool
	MergedInto string
	Alert      *domain.Alert
}

type ReportQuery struct {
	County    string
	EventType string
	Status    string
	Limit     int
	Offset    int
}

type ReportPage struct {
	Reports []domain.Report
	Total   int
	Limit   int
	Offset  int
}

func (p ReportPage) HasMore() bool { return p.Offset+p.Limit < p.Total }

type InteractionSummary struct {
	Interactions []domain.Interaction
	Grouped      map[domain.InteractionType][]domain.Interaction
	Tally        domain.InteractionTally
}

type AlertQuery struct {
	County     string
	ActiveOnly bool
	Limit      int
}

type AnalyticsQuery struct {
	County    string
	EventType string
	Days      int
}
