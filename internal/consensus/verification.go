package consensus

import (
	"time"

	"uzimasmart/internal/domain"
)

const (
	VerifiedByConsensus = "Community Consensus"
	VerifiedByDispute   = "Community Dispute"
)

// Transition describes the outcome of evaluating a report's status. From ==
// To means nothing changed.
type Transition struct {
	From domain.VerificationStatus
	To   domain.VerificationStatus
	By   string
}

func (t Transition) Changed() bool { return t.From != t.To }

// Verification moves pending reports to verified or rejected once the
// community tallies cross their thresholds. Only pending reports move.
type Verification struct {
	th Thresholds
}

func NewVerification(th Thresholds) *Verification { return &Verification{th: th} }

// Evaluate must be called with the tally that already includes the
// interaction being applied, under the same per-report lock as the write.
func (v *Verification) Evaluate(r *domain.Report, kind domain.InteractionType, tally domain.InteractionTally, now time.Time) Transition {
	t := Transition{From: r.VerificationStatus, To: r.VerificationStatus}
	if r.VerificationStatus != domain.StatusPending {
		return t
	}
	switch {
	case kind == domain.InteractionConfirm && tally.Confirms >= v.th.VerifyConfirms:
		t.To, t.By = domain.StatusVerified, VerifiedByConsensus
	case kind == domain.InteractionDispute && tally.Disputes >= v.th.RejectDisputes:
		t.To, t.By = domain.StatusRejected, VerifiedByDispute
	default:
		return t
	}
	r.VerificationStatus = t.To
	r.VerifiedBy = t.By
	at := now
	r.VerifiedAt = &at
	r.UpdatedAt = now
	return t
}

// MarkDuplicate flags a freshly built report as a linked copy of matchedID.
// It is only valid before the report is first stored.
func (v *Verification) MarkDuplicate(r *domain.Report, matchedID string) {
	r.VerificationStatus = domain.StatusDuplicate
	r.SimilarReports = append(r.SimilarReports, matchedID)
}

// Rules bundles the confidence engine and the state machine so callers apply
// an interaction in one step.
type Rules struct {
	Confidence   *Confidence
	Verification *Verification
}

func NewRules(th Thresholds) Rules {
	return Rules{Confidence: NewConfidence(th), Verification: NewVerification(th)}
}

func (r Rules) ApplyInteraction(rep *domain.Report, kind domain.InteractionType, tally domain.InteractionTally, now time.Time) Transition {
	r.Confidence.ApplyInteraction(rep, kind, now)
	return r.Verification.Evaluate(rep, kind, tally, now)
}
