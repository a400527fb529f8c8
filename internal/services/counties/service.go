package counties

import (
	"context"
	"errors"
	"strings"
	"time"

	"uzimasmart/internal/domain"
	"uzimasmart/internal/ports"
)

// Service serves the fixed county table and turns user-supplied county names
// into County records.
type Service struct {
	repo    ports.CountyRepository
	timeout time.Duration
}

func New(repo ports.CountyRepository, timeout time.Duration) *Service {
	return &Service{repo: repo, timeout: timeout}
}

func (s *Service) List(ctx context.Context) ([]domain.County, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	out, err := s.repo.Counties(ctx)
	if err != nil {
		return nil, &domain.StoreError{Op: "list counties", Err: err}
	}
	return out, nil
}

// Resolve looks a county up by name, ignoring case and surrounding space.
// An unknown name is a validation error on field.
func (s *Service) Resolve(ctx context.Context, field, name string) (domain.County, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.County{}, domain.Invalid(field, "is required")
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	c, err := s.repo.CountyByName(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.County{}, domain.Invalid(field, "unknown county %q", name)
	}
	if err != nil {
		return domain.County{}, &domain.StoreError{Op: "county lookup", Err: err}
	}
	return c, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
