package model

import (
	"math"
	"time"
)

// Tier identifies a guarantee tier. Higher tiers carry more guaranteed
// interviews, longer deadlines and stricter eligibility minimums.
type Tier string

const (
	TierProfessional Tier = "professional"
	TierPremium      Tier = "premium"
	TierElite        Tier = "elite"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierProfessional, TierPremium, TierElite:
		return true
	}
	return false
}

// ContractStatus constants
type ContractStatus string

const (
	ContractActive    ContractStatus = "active"
	ContractPaused    ContractStatus = "paused"
	ContractCompleted ContractStatus = "completed"
	ContractViolated  ContractStatus = "violated"
	ContractCancelled ContractStatus = "cancelled"
)

// ProgressCounters is the denormalized projection of the progress ledger,
// maintained transactionally with each append and correctable by
// reconciliation.
type ProgressCounters struct {
	ApplicationsSent    int `json:"applications_sent"`
	EmployerResponses   int `json:"employer_responses"`
	InterviewsScheduled int `json:"interviews_scheduled"`
	InterviewsCompleted int `json:"interviews_completed"`
	OffersReceived      int `json:"offers_received"`
}

// SLAContract is a paid interview-guarantee agreement: N interviews within
// D days or a remedy is owed.
type SLAContract struct {
	ID                     string            `json:"id"`
	UserID                 string            `json:"user_id"`
	Tier                   Tier              `json:"tier"`
	Status                 ContractStatus    `json:"status"`
	GuaranteedInterviews   int               `json:"guaranteed_interviews"`
	DeadlineDays           int               `json:"deadline_days"`
	MinConfidenceThreshold float64           `json:"min_confidence_threshold"`
	Price                  float64           `json:"price"`
	PaymentRef             string            `json:"payment_ref,omitempty"`
	StartDate              time.Time         `json:"start_date"`
	EndDate                time.Time         `json:"end_date"`
	ExtensionDays          int               `json:"extension_days"`
	ExtendedEndDate        *time.Time        `json:"extended_end_date,omitempty"`
	Eligibility            EligibilityResult `json:"eligibility_snapshot"`
	Counters               ProgressCounters  `json:"counters"`
	CreatedAt              time.Time         `json:"created_at"`
	UpdatedAt              time.Time         `json:"updated_at"`
}

// EffectiveEndDate is the extended end date when an extension has been
// granted, otherwise the original end date.
func (c *SLAContract) EffectiveEndDate() time.Time {
	if c.ExtendedEndDate != nil {
		return *c.ExtendedEndDate
	}
	return c.EndDate
}

// IsExpired reports whether the effective deadline has passed.
func (c *SLAContract) IsExpired(now time.Time) bool {
	return now.After(c.EffectiveEndDate())
}

// IsGuaranteeMet reports whether enough counting interviews have been
// scheduled. InterviewsScheduled only reflects events that are verified and
// meet the confidence threshold.
func (c *SLAContract) IsGuaranteeMet() bool {
	return c.Counters.InterviewsScheduled >= c.GuaranteedInterviews
}

// DaysRemaining returns whole days until the effective deadline, never
// negative.
func (c *SLAContract) DaysRemaining(now time.Time) int {
	remaining := c.EffectiveEndDate().Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}

// DaysOverDeadline returns whole days past the effective deadline, clamped
// to zero.
func (c *SLAContract) DaysOverDeadline(now time.Time) int {
	over := now.Sub(c.EffectiveEndDate())
	if over <= 0 {
		return 0
	}
	return int(math.Ceil(over.Hours() / 24))
}

// ProgressPercentage is interviews scheduled against the guarantee, capped
// at 100.
func (c *SLAContract) ProgressPercentage() float64 {
	if c.GuaranteedInterviews == 0 {
		return 0
	}
	pct := float64(c.Counters.InterviewsScheduled) / float64(c.GuaranteedInterviews) * 100
	return math.Min(pct, 100)
}

// ResponseRate is employer responses per application sent, 0 when nothing
// has been sent.
func (c *SLAContract) ResponseRate() float64 {
	if c.Counters.ApplicationsSent == 0 {
		return 0
	}
	return float64(c.Counters.EmployerResponses) / float64(c.Counters.ApplicationsSent)
}

// InterviewRate is interviews scheduled per application sent.
func (c *SLAContract) InterviewRate() float64 {
	if c.Counters.ApplicationsSent == 0 {
		return 0
	}
	return float64(c.Counters.InterviewsScheduled) / float64(c.Counters.ApplicationsSent)
}
