package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"uzimasmart/internal/consensus"
	"uzimasmart/internal/domain"
	"uzimasmart/internal/ports"
)

type Store interface {
	ports.AlertRepository
	ports.SubscriptionRepository
}

type Options struct {
	StoreTimeout time.Duration
	Thresholds   consensus.Thresholds
	// BatchSize and BatchPause pace the emergency SMS fan-out.
	BatchSize  int
	BatchPause time.Duration
	Now        func() time.Time
}

// Service raises alerts for newly created reports, fans them out and lists
// them. Publisher may be nil when no broker is configured.
type Service struct {
	store     Store
	counties  ports.CountyResolver
	sms       ports.SMSSender
	publisher ports.AlertPublisher
	tasks     ports.PostCommit
	policy    *consensus.AlertPolicy
	log       *log.Logger

	timeout    time.Duration
	batchSize  int
	batchPause time.Duration
	now        func() time.Time
}

func New(store Store, counties ports.CountyResolver, sms ports.SMSSender, publisher ports.AlertPublisher, tasks ports.PostCommit, logger *log.Logger, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:      store,
		counties:   counties,
		sms:        sms,
		publisher:  publisher,
		tasks:      tasks,
		policy:     consensus.NewAlertPolicy(opts.Thresholds),
		log:        logger,
		timeout:    opts.StoreTimeout,
		batchSize:  opts.BatchSize,
		batchPause: opts.BatchPause,
		now:        opts.Now,
	}
}

// Dispatch stores the alert r warrants, if any, and queues its fan-out. It
// runs after r has been committed: a failure is logged and yields nil, never
// an error for the caller.
func (s *Service) Dispatch(ctx context.Context, r domain.Report, county domain.County) *domain.Alert {
	a, ok := s.policy.Build(r, county, r.CreatedAt)
	if !ok {
		return nil
	}
	a.ID = uuid.NewString()

	sctx, cancel := withTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.store.CreateAlert(sctx, a); err != nil {
		s.log.Error("alert not stored", "report_id", r.ID, "err", &domain.NotificationError{Task: "alert-store", Err: err})
		return nil
	}
	s.log.Info("alert raised", "alert_id", a.ID, "report_id", r.ID, "severity", a.Severity, "county", county.Name)

	s.tasks.Submit("alert-sms", func(ctx context.Context) error {
		return s.broadcast(ctx, a, county)
	})
	if s.publisher != nil {
		s.tasks.Submit("alert-publish", func(ctx context.Context) error {
			return s.publisher.PublishAlert(ctx, a, county)
		})
	}
	return &a
}

// broadcast texts every active emergency subscriber in paced batches.
func (s *Service) broadcast(ctx context.Context, a domain.Alert, county domain.County) error {
	phones, err := s.store.EmergencySubscribers(ctx)
	if err != nil {
		return fmt.Errorf("load subscribers: %w", err)
	}
	var valid []string
	for _, p := range phones {
		if domain.ValidPhone(p) {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		s.log.Debug("no emergency subscribers", "alert_id", a.ID)
		return nil
	}
	msg := EmergencyMessage(a, county)
	for i := 0; i < len(valid); i += s.batchSize {
		if i > 0 && s.batchPause > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.batchPause):
			}
		}
		batch := valid[i:min(i+s.batchSize, len(valid))]
		if err := s.sms.Send(ctx, batch, msg); err != nil {
			return fmt.Errorf("batch %d: %w", i/s.batchSize, err)
		}
	}
	s.log.Info("emergency alert sent", "alert_id", a.ID, "recipients", len(valid))
	return nil
}

func EmergencyMessage(a domain.Alert, county domain.County) string {
	return "EMERGENCY CLIMATE ALERT\n" +
		a.Title + "\n\n" +
		"Location: " + county.Name + "\n" +
		"Severity: " + string(a.Severity) + "\n\n" +
		a.Description + "\n\n" +
		"Take necessary precautions. Stay safe!\n\n" +
		"UzimaSmart Climate System"
}

func (s *Service) List(ctx context.Context, q ports.AlertQuery) ([]domain.Alert, error) {
	f := domain.AlertFilter{Limit: q.Limit}
	switch {
	case f.Limit == 0:
		f.Limit = 20
	case f.Limit < 0 || f.Limit > 100:
		return nil, domain.Invalid("limit", "must be between 1 and 100")
	}
	if q.County != "" {
		c, err := s.counties.Resolve(ctx, "county", q.County)
		if err != nil {
			return nil, err
		}
		f.CountyID = &c.ID
	}
	if q.ActiveOnly {
		now := s.now()
		f.ActiveAt = &now
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	out, err := s.store.ListAlerts(ctx, f)
	if err != nil {
		return nil, &domain.StoreError{Op: "list alerts", Err: err}
	}
	return out, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
