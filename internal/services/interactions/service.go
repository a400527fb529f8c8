package interactions

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"uzimasmart/internal/consensus"
	"uzimasmart/internal/domain"
	"uzimasmart/internal/ports"
)

type Store interface {
	ports.ReportRepository
	ports.InteractionRepository
	ports.AnalyticsRepository
}

type Options struct {
	StoreTimeout time.Duration
	Thresholds   consensus.Thresholds
	Now          func() time.Time
}

// Service records community interactions. Score, count and status changes
// are applied inside the store's per-report critical section.
type Service struct {
	store   Store
	rules   consensus.Rules
	tasks   ports.PostCommit
	log     *log.Logger
	timeout time.Duration
	now     func() time.Time
}

func New(store Store, tasks ports.PostCommit, logger *log.Logger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:   store,
		rules:   consensus.NewRules(opts.Thresholds),
		tasks:   tasks,
		log:     logger,
		timeout: opts.StoreTimeout,
		now:     opts.Now,
	}
}

func (s *Service) Record(ctx context.Context, in domain.InteractionInput) (domain.Interaction, domain.Report, error) {
	in.Normalize()
	if in.ReportID == "" {
		return domain.Interaction{}, domain.Report{}, domain.Invalid("reportId", "is required")
	}
	if err := domain.Validate(&in); err != nil {
		return domain.Interaction{}, domain.Report{}, err
	}
	now := s.now().UTC()
	it := domain.Interaction{
		ID:          uuid.NewString(),
		ReportID:    in.ReportID,
		Type:        domain.InteractionType(in.InteractionType),
		PhoneNumber: in.PhoneNumber,
		Details:     in.Details,
		Metadata:    in.Metadata,
		CreatedAt:   now,
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	// fn may be retried by optimistic stores; keep the outcome of the last run
	var tr consensus.Transition
	r, err := s.store.RecordInteraction(ctx, it, func(r *domain.Report, tally domain.InteractionTally) error {
		tr = s.rules.ApplyInteraction(r, it.Type, tally, now)
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Interaction{}, domain.Report{}, &domain.NotFoundError{Resource: "report", ID: in.ReportID}
	}
	if err != nil {
		return domain.Interaction{}, domain.Report{}, &domain.StoreError{Op: "record interaction", Err: err}
	}

	s.log.Info("interaction recorded", "report_id", r.ID, "type", it.Type, "confidence", r.ConfidenceScore, "status", r.VerificationStatus)
	if tr.Changed() {
		s.log.Info("report status changed", "report_id", r.ID, "from", tr.From, "to", tr.To, "by", tr.By)
		if tr.To == domain.StatusVerified {
			s.tasks.Submit("analytics-verified", func(ctx context.Context) error {
				return s.store.RecordVerified(ctx, r.CountyID, r.EventType, r.CreatedAt)
			})
		}
	}
	return it, r, nil
}

// List returns a report's interactions newest first, grouped by type with a
// per-type tally. Every type has an entry in Grouped.
func (s *Service) List(ctx context.Context, reportID string) (ports.InteractionSummary, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.store.Report(ctx, reportID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ports.InteractionSummary{}, &domain.NotFoundError{Resource: "report", ID: reportID}
		}
		return ports.InteractionSummary{}, &domain.StoreError{Op: "get report", Err: err}
	}
	list, err := s.store.Interactions(ctx, reportID)
	if err != nil {
		return ports.InteractionSummary{}, &domain.StoreError{Op: "list interactions", Err: err}
	}

	sum := ports.InteractionSummary{
		Interactions: list,
		Grouped:      make(map[domain.InteractionType][]domain.Interaction, len(domain.InteractionTypes)),
	}
	for _, kind := range domain.InteractionTypes {
		sum.Grouped[kind] = []domain.Interaction{}
	}
	for _, it := range list {
		sum.Grouped[it.Type] = append(sum.Grouped[it.Type], it)
		sum.Tally.Add(it.Type, 1)
	}
	return sum, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
