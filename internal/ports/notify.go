package ports

import (
	"context"

	"uzimasmart/internal/domain"
)

// SMSSender delivers one message to a batch of E.164 numbers.
type SMSSender interface {
	Send(ctx context.Context, to []string, message string) error
}

// AlertPublisher fans a stored alert out to downstream consumers.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, a domain.Alert, county domain.County) error
}

// PostCommit runs side effects after the primary mutation has committed.
// Submit never blocks; it reports false when the task was not accepted.
// Task errors are handled by the implementation and never returned here.
type PostCommit interface {
	Submit(task string, fn func(ctx context.Context) error) bool
}
