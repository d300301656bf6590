package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oks-citadel/apply-sla/model"
	"github.com/oks-citadel/apply-sla/pkg/logger"
)

// RemedyExecutor drives the remedy state machine:
// pending -> (approval gate) -> in_progress -> completed | failed.
// There is no automatic retry; a failed remedy stays failed until someone
// looks at it. Approved-but-pending remedies are picked up again by the
// sweep's re-drive pass, so execution is safe to run more than once per
// remedy lifetime but never double-applies: only a pending remedy can be
// moved to in_progress.
type RemedyExecutor struct {
	store     *ContractStore
	contracts *ContractService
	payments  PaymentGateway
	now       func() time.Time
}

func NewRemedyExecutor(store *ContractStore, contracts *ContractService, payments PaymentGateway) *RemedyExecutor {
	return &RemedyExecutor{
		store:     store,
		contracts: contracts,
		payments:  payments,
		now:       time.Now,
	}
}

// Approve clears the approval gate. It does not execute; the caller (or
// the next sweep) drives execution separately.
func (e *RemedyExecutor) Approve(ctx context.Context, remedyID, approvedBy, notes string) (*model.SLARemedy, error) {
	now := e.now()
	r, err := e.store.UpdateRemedy(remedyID, func(r *model.SLARemedy) error {
		if r.Status != model.RemedyPending {
			return fmt.Errorf("cannot approve remedy in status %s", r.Status)
		}
		r.IsApproved = true
		r.ApprovedBy = approvedBy
		r.ApprovedAt = &now
		r.ApprovalNotes = notes
		r.AppendLog(now, "approve", "approved", fmt.Sprintf("approved by %s", approvedBy))
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "remedy approved", "remedy_id", remedyID, "approved_by", approvedBy)
	return r, nil
}

// Reject closes an approval-gated remedy without executing it.
func (e *RemedyExecutor) Reject(ctx context.Context, remedyID, rejectedBy, reason string) (*model.SLARemedy, error) {
	now := e.now()
	r, err := e.store.UpdateRemedy(remedyID, func(r *model.SLARemedy) error {
		if r.Status != model.RemedyPending {
			return fmt.Errorf("cannot reject remedy in status %s", r.Status)
		}
		r.Status = model.RemedyRejected
		r.RejectedBy = rejectedBy
		r.RejectedAt = &now
		r.RejectionReason = reason
		r.AppendLog(now, "reject", "rejected", reason)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "remedy rejected", "remedy_id", remedyID, "rejected_by", rejectedBy)
	return r, nil
}

// Execute runs the remedy's side effect. The pending -> in_progress
// transition is persisted before the side effect starts; completion or
// failure is persisted after, with the outcome appended to the execution
// log.
func (e *RemedyExecutor) Execute(ctx context.Context, remedyID string) error {
	now := e.now()

	// Claim the remedy. Only one caller can win this transition.
	r, err := e.store.UpdateRemedy(remedyID, func(r *model.SLARemedy) error {
		if !r.CanExecute() {
			return ErrRemedyNotExecutable
		}
		r.Status = model.RemedyInProgress
		r.AppendLog(now, "execute", "started", "")
		return nil
	})
	if err != nil {
		return err
	}

	detail, execErr := e.apply(ctx, r)

	finished := e.now()
	if execErr != nil {
		_, updateErr := e.store.UpdateRemedy(remedyID, func(r *model.SLARemedy) error {
			r.Status = model.RemedyFailed
			r.FailureReason = execErr.Error()
			r.AppendLog(finished, "execute", "failed", execErr.Error())
			return nil
		})
		if updateErr != nil {
			return updateErr
		}
		logger.Error(ctx, "remedy execution failed",
			"remedy_id", remedyID,
			"type", string(r.Type),
			"error", execErr,
		)
		return fmt.Errorf("remedy execution failed: %w", execErr)
	}

	if _, err := e.store.UpdateRemedy(remedyID, func(r *model.SLARemedy) error {
		r.Status = model.RemedyCompleted
		r.AppendLog(finished, "execute", "completed", detail)
		return nil
	}); err != nil {
		return err
	}

	e.resolveViolation(ctx, r, detail)

	logger.Info(ctx, "remedy executed",
		"remedy_id", remedyID,
		"type", string(r.Type),
		"detail", detail,
	)
	return nil
}

// apply dispatches to the type-specific side effect and returns a
// human-readable completion detail for the execution log.
func (e *RemedyExecutor) apply(ctx context.Context, r *model.SLARemedy) (string, error) {
	switch r.Type {
	case model.RemedyServiceExtension:
		c, err := e.contracts.Extend(ctx, r.ContractID, r.Details.ExtensionDays, "sla remedy "+r.ID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("contract extended %d days to %s",
			r.Details.ExtensionDays, c.EffectiveEndDate().Format(time.RFC3339)), nil

	case model.RemedyHumanEscalation:
		ticket := "ESC-" + strings.ToUpper(uuid.New().String()[:8])
		now := e.now()
		if _, err := e.store.UpdateRemedy(r.ID, func(r *model.SLARemedy) error {
			r.Details.TicketRef = ticket
			return nil
		}); err != nil {
			return "", err
		}
		if _, err := e.store.UpdateViolation(r.ViolationID, func(v *model.SLAViolation) error {
			v.Escalated = true
			v.EscalatedTo = "sla-support"
			v.EscalatedAt = &now
			return nil
		}); err != nil {
			return "", err
		}
		return fmt.Sprintf("escalation ticket %s opened at level %s", ticket, r.Details.EscalationLevel), nil

	case model.RemedyServiceCredit:
		code := "CR-" + strings.ToUpper(uuid.New().String()[:8])
		expires := e.now().AddDate(0, 0, 90)
		if r.Details.CreditExpiresAt != nil {
			expires = *r.Details.CreditExpiresAt
		}
		if err := e.payments.IssueCredit(ctx, r.UserID, r.Details.CreditAmount, code, expires); err != nil {
			return "", err
		}
		if _, err := e.store.UpdateRemedy(r.ID, func(r *model.SLARemedy) error {
			r.Details.CreditCode = code
			return nil
		}); err != nil {
			return "", err
		}
		return fmt.Sprintf("credit %s for %.2f issued", code, r.Details.CreditAmount), nil

	case model.RemedyPartialRefund:
		if err := e.payments.Refund(ctx, r.UserID, r.ContractID, r.Details.RefundAmount, r.ID); err != nil {
			return "", err
		}
		return fmt.Sprintf("refunded %.2f (%.0f%%)", r.Details.RefundAmount, r.Details.RefundPercentage), nil

	case model.RemedyFullRefund:
		if err := e.payments.Refund(ctx, r.UserID, r.ContractID, r.Details.RefundAmount, r.ID); err != nil {
			return "", err
		}
		// A fully refunded contract is closed out; this is the one remedy
		// that touches contract status.
		if _, err := e.store.UpdateContract(r.ContractID, func(c *model.SLAContract) error {
			c.Status = model.ContractCancelled
			return nil
		}); err != nil {
			return "", err
		}
		return fmt.Sprintf("refunded %.2f in full, contract cancelled", r.Details.RefundAmount), nil
	}

	return "", fmt.Errorf("unknown remedy type %q", r.Type)
}

// resolveViolation marks the parent violation resolved once a remedy that
// cures the breach completes: an extension moves the deadline, a full
// refund closes the contract. Credits and partial refunds compensate for a
// breach that still stands and escalations belong to the human who takes
// the ticket; those leave the violation open, which is what keeps the next
// sweep from recording a second violation for the same missed deadline.
func (e *RemedyExecutor) resolveViolation(ctx context.Context, r *model.SLARemedy, detail string) {
	if r.Type != model.RemedyServiceExtension && r.Type != model.RemedyFullRefund {
		return
	}
	now := e.now()
	_, err := e.store.UpdateViolation(r.ViolationID, func(v *model.SLAViolation) error {
		if v.Resolved {
			return nil
		}
		v.Resolved = true
		v.ResolvedAt = &now
		v.ResolutionNotes = fmt.Sprintf("resolved by %s remedy: %s", r.Type, detail)
		return nil
	})
	if err != nil {
		logger.Warn(ctx, "failed to mark violation resolved",
			"violation_id", r.ViolationID,
			"error", err,
		)
	}
}
