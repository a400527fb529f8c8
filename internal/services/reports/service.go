package reports

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

const (
	MergeFold = "fold"
	MergeLink = "link"
)

type Store interface {
	ports.ReportRepository
	ports.SubscriptionRepository
	ports.AnalyticsRepository
}

// AlertDispatcher raises the alert for a newly created report. It never
// fails the submission; nil means no alert was stored.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, r domain.Report, county domain.County) *domain.Alert
}

type Options struct {
	// MergeMode is fold (update the matched report only) or link (also keep
	// the submission as a duplicate row).
	MergeMode    string
	StoreTimeout time.Duration
	Thresholds   consensus.Thresholds
	Now          func() time.Time
}

type Service struct {
	store    Store
	counties ports.CountyResolver
	alerts   AlertDispatcher
	sms      ports.SMSSender
	tasks    ports.PostCommit
	log      *log.Logger

	matcher      *consensus.Matcher
	confidence   *consensus.Confidence
	verification *consensus.Verification

	mode    string
	timeout time.Duration
	now     func() time.Time
}

func New(store Store, counties ports.CountyResolver, alerts AlertDispatcher, sms ports.SMSSender, tasks ports.PostCommit, logger *log.Logger, opts Options) *Service {
	if opts.MergeMode == "" {
		opts.MergeMode = MergeFold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:        store,
		counties:     counties,
		alerts:       alerts,
		sms:          sms,
		tasks:        tasks,
		log:          logger,
		matcher:      consensus.NewMatcher(store, opts.Thresholds),
		confidence:   consensus.NewConfidence(opts.Thresholds),
		verification: consensus.NewVerification(opts.Thresholds),
		mode:         opts.MergeMode,
		timeout:      opts.StoreTimeout,
		now:          opts.Now,
	}
}

// Submit validates a community report and either folds it into a recent
// report of the same county and event type or stores it as a new report.
// Notifications and analytics run after the store write and cannot fail it.
func (s *Service) Submit(ctx context.Context, in domain.Submission) (ports.SubmitResult, error) {
	in.Normalize()
	if err := domain.Validate(&in); err != nil {
		return ports.SubmitResult{}, err
	}
	county, err := s.counties.Resolve(ctx, "county", in.County)
	if err != nil {
		return ports.SubmitResult{}, err
	}
	now := s.now().UTC()

	mctx, cancel := withTimeout(ctx, s.timeout)
	matched, found, err := s.matcher.Match(mctx, county.ID, domain.EventType(in.EventType), now)
	cancel()
	if err != nil {
		return ports.SubmitResult{}, &domain.StoreError{Op: "match similar reports", Err: err}
	}

	var res ports.SubmitResult
	if found {
		res, err = s.merge(ctx, matched, in, county, now)
	} else {
		res, err = s.create(ctx, in, county, now)
	}
	if err != nil {
		return ports.SubmitResult{}, err
	}
	s.afterCommit(in, res, county, now)
	return res, nil
}

func (s *Service) newReport(in domain.Submission, county domain.County, now time.Time) domain.Report {
	return domain.Report{
		ID:                 uuid.NewString(),
		EventType:          domain.EventType(in.EventType),
		CountyID:           county.ID,
		County:             county,
		Severity:           domain.Severity(in.Severity),
		Description:        in.Description,
		Latitude:           in.Latitude,
		Longitude:          in.Longitude,
		LocationDetails:    in.LocationDetails,
		ContactNumber:      in.ContactNumber,
		ReporterName:       in.ReporterName,
		IsEmergency:        in.IsEmergency,
		IsPublic:           true,
		VerificationStatus: domain.StatusPending,
		ConfidenceScore:    s.confidence.Seed(false),
		ReportCount:        1,
		SimilarReports:     []string{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (s *Service) create(ctx context.Context, in domain.Submission, county domain.County, now time.Time) (ports.SubmitResult, error) {
	r := s.newReport(in, county, now)
	sctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.CreateReport(sctx, r); err != nil {
		return ports.SubmitResult{}, &domain.StoreError{Op: "create report", Err: err}
	}
	s.log.Info("report created", "report_id", r.ID, "county", county.Name, "event_type", r.EventType, "severity", r.Severity)
	return ports.SubmitResult{Report: r, Alert: s.alerts.Dispatch(ctx, r, county)}, nil
}

// merge folds the submission into matched. In link mode the submission is
// also stored as its own duplicate row after the merge commits; the two
// writes are not atomic.
func (s *Service) merge(ctx context.Context, matched domain.Report, in domain.Submission, county domain.County, now time.Time) (ports.SubmitResult, error) {
	sctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	updated, err := s.store.UpdateReport(sctx, matched.ID, func(r *domain.Report) error {
		s.confidence.ApplyMerge(r, now)
		return nil
	})
	if err != nil {
		return ports.SubmitResult{}, &domain.StoreError{Op: "merge report", Err: err}
	}
	s.log.Info("report merged", "report_id", updated.ID, "report_count", updated.ReportCount, "confidence", updated.ConfidenceScore)
	res := ports.SubmitResult{Report: updated, Merged: true, MergedInto: matched.ID}
	if s.mode != MergeLink {
		return res, nil
	}

	dup := s.newReport(in, county, now)
	dup.ConfidenceScore = s.confidence.Seed(true)
	s.verification.MarkDuplicate(&dup, matched.ID)
	lctx, lcancel := withTimeout(ctx, s.timeout)
	defer lcancel()
	if err := s.store.CreateReport(lctx, dup); err != nil {
		return ports.SubmitResult{}, &domain.StoreError{Op: "create linked report", Err: err}
	}
	res.Report = dup
	return res, nil
}

func (s *Service) afterCommit(in domain.Submission, res ports.SubmitResult, county domain.County, now time.Time) {
	r := res.Report
	s.tasks.Submit("analytics", func(ctx context.Context) error {
		return s.store.RecordSubmission(ctx, county.ID, r.EventType, domain.Severity(in.Severity), now, r.ConfidenceScore)
	})
	if in.ContactNumber == "" {
		return
	}
	phone := in.ContactNumber
	s.tasks.Submit("confirmation-sms", func(ctx context.Context) error {
		sub, err := s.store.Subscription(ctx, phone)
		switch {
		case err == nil && !sub.ReportConfirmations:
			return nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return err
		}
		return s.sms.Send(ctx, []string{phone}, ConfirmationMessage(r, county, domain.Severity(in.Severity)))
	})
}

// ConfirmationMessage is texted to the reporter once the submission is stored.
func ConfirmationMessage(r domain.Report, county domain.County, sev domain.Severity) string {
	return "Report Confirmed!\n" +
		"Event: " + string(r.EventType) + "\n" +
		"Location: " + county.Name + "\n" +
		"Severity: " + string(sev) + "\n" +
		"Report ID: " + r.ID + "\n\n" +
		"Thank you for using UzimaSmart. We'll keep you updated."
}

func (s *Service) Get(ctx context.Context, id string) (domain.Report, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	r, err := s.store.Report(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Report{}, &domain.NotFoundError{Resource: "report", ID: id}
	}
	if err != nil {
		return domain.Report{}, &domain.StoreError{Op: "get report", Err: err}
	}
	return r, nil
}

func (s *Service) List(ctx context.Context, q ports.ReportQuery) (ports.ReportPage, error) {
	f := domain.ReportFilter{Limit: q.Limit, Offset: q.Offset}
	switch {
	case f.Limit == 0:
		f.Limit = 20
	case f.Limit < 0 || f.Limit > 100:
		return ports.ReportPage{}, domain.Invalid("limit", "must be between 1 and 100")
	}
	if f.Offset < 0 {
		return ports.ReportPage{}, domain.Invalid("offset", "must not be negative")
	}
	if q.EventType != "" {
		f.EventType = domain.EventType(q.EventType)
		if !f.EventType.Valid() {
			return ports.ReportPage{}, domain.Invalid("eventType", "unknown event type %q", q.EventType)
		}
	}
	if q.Status != "" {
		f.Status = domain.VerificationStatus(q.Status)
		if !f.Status.Valid() {
			return ports.ReportPage{}, domain.Invalid("status", "unknown status %q", q.Status)
		}
	}
	if q.County != "" {
		c, err := s.counties.Resolve(ctx, "county", q.County)
		if err != nil {
			return ports.ReportPage{}, err
		}
		f.CountyID = &c.ID
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	list, total, err := s.store.ListReports(ctx, f)
	if err != nil {
		return ports.ReportPage{}, &domain.StoreError{Op: "list reports", Err: err}
	}
	return ports.ReportPage{Reports: list, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
