package service

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/oks-citadel/apply-sla/model"
)

// RemedyCalculator maps a violation to remedy recommendations and their
// type-specific parameters. All calculation methods are pure: identical
// inputs yield identical outputs. References minted at execution time
// (ticket numbers, credit codes) are deliberately absent from the details.
type RemedyCalculator struct {
	policy Policy
}

func NewRemedyCalculator(policy Policy) *RemedyCalculator {
	return &RemedyCalculator{policy: policy}
}

// RecommendedRemedies evaluates the rule table. Rules are independent and
// non-exclusive; several may fire for one violation. Duplicates (two rules
// recommending an extension) collapse to one.
func (rc *RemedyCalculator) RecommendedRemedies(v *model.SLAViolation) []model.RemedyType {
	var types []model.RemedyType
	seen := make(map[model.RemedyType]bool)
	add := func(t model.RemedyType) {
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}

	if v.Shortfall <= rc.policy.ExtensionShortfallMax {
		add(model.RemedyServiceExtension)
	}
	if v.Shortfall > rc.policy.ExtensionShortfallMax || v.DaysOverDeadline > rc.policy.EscalationDaysOver {
		add(model.RemedyHumanEscalation)
	}
	if v.ResponseRate < rc.policy.CreditResponseRate {
		add(model.RemedyServiceCredit)
	}
	if v.GuaranteedInterviews > 0 && float64(v.Shortfall) >= float64(v.GuaranteedInterviews)/2 {
		add(model.RemedyPartialRefund)
	}
	if v.ApplicationsSent < rc.policy.MinApplications {
		add(model.RemedyServiceExtension)
	}

	return types
}

// CalculateDetails computes the type-specific payload and the remedy's
// financial impact. Deterministic for a given (violation, contract) pair;
// time-derived fields anchor on the violation's detection time.
func (rc *RemedyCalculator) CalculateDetails(t model.RemedyType, v *model.SLAViolation, c *model.SLAContract) (model.RemedyDetails, float64) {
	switch t {
	case model.RemedyServiceExtension:
		days := int(math.Ceil(float64(c.DeadlineDays) * rc.policy.ExtensionFactor))
		if days > rc.policy.MaxExtensionDays {
			days = rc.policy.MaxExtensionDays
		}
		newEnd := c.EffectiveEndDate().AddDate(0, 0, days)
		return model.RemedyDetails{ExtensionDays: days, NewEndDate: &newEnd}, 0

	case model.RemedyHumanEscalation:
		return model.RemedyDetails{EscalationLevel: v.Severity()}, 0

	case model.RemedyServiceCredit:
		amount := round2(c.Price * rc.policy.CreditRate)
		expires := v.DetectedAt.AddDate(0, 0, rc.policy.CreditExpiryDays)
		return model.RemedyDetails{CreditAmount: amount, CreditExpiresAt: &expires}, amount

	case model.RemedyPartialRefund:
		pct := float64(0)
		if v.GuaranteedInterviews > 0 {
			pct = float64(v.Shortfall) / float64(v.GuaranteedInterviews) * 100
		}
		pct = math.Min(pct, rc.policy.RefundCapPercent)
		amount := round2(c.Price * pct / 100)
		return model.RemedyDetails{RefundAmount: amount, RefundPercentage: pct}, amount

	case model.RemedyFullRefund:
		return model.RemedyDetails{RefundAmount: c.Price, RefundPercentage: 100}, c.Price
	}

	return model.RemedyDetails{}, 0
}

// RequiresApproval applies the approval gate rules: refunds always, credits
// only above the cutoff.
func (rc *RemedyCalculator) RequiresApproval(t model.RemedyType, details model.RemedyDetails) bool {
	switch t {
	case model.RemedyPartialRefund, model.RemedyFullRefund:
		return true
	case model.RemedyServiceCredit:
		return details.CreditAmount > rc.policy.CreditApprovalCutoff
	}
	return false
}

// BuildRemedies turns the recommendations for a violation into pending
// remedy records.
func (rc *RemedyCalculator) BuildRemedies(v *model.SLAViolation, c *model.SLAContract, now time.Time) []*model.SLARemedy {
	types := rc.RecommendedRemedies(v)
	remedies := make([]*model.SLARemedy, 0, len(types))
	for _, t := range types {
		details, impact := rc.CalculateDetails(t, v, c)
		remedies = append(remedies, &model.SLARemedy{
			ID:               uuid.New().String(),
			ViolationID:      v.ID,
			ContractID:       c.ID,
			UserID:           c.UserID,
			Type:             t,
			Status:           model.RemedyPending,
			RequiresApproval: rc.RequiresApproval(t, details),
			FinancialImpact:  impact,
			Details:          details,
			CreatedAt:        now,
		})
	}
	return remedies
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
