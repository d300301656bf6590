package service

import (
	"github.com/oks-citadel/apply-sla/config"
	"github.com/oks-citadel/apply-sla/model"
)

// TierPolicy holds the per-tier contract terms and eligibility minimums.
type TierPolicy struct {
	GuaranteedInterviews   int
	DeadlineDays           int
	MinConfidenceThreshold float64
	Price                  float64
	MinResumeScore         float64
	MinExperienceMonths    int
	RequireApprovedResume  bool
	RequiredProfileFields  []string
}

// Policy is the injectable rule table for the whole guarantee lifecycle.
// Every threshold the detector, calculator and executor consult lives here
// so boundary values can be configured and tested without code change.
type Policy struct {
	Tiers map[model.Tier]TierPolicy

	// Eligibility
	MinProfileCompleteness float64

	// Remedy rules
	ExtensionShortfallMax int     // shortfall at most this -> extension
	EscalationDaysOver    int     // days over deadline beyond this -> escalation
	CreditResponseRate    float64 // response rate below this -> credit
	MinApplications       int     // fewer applications than this -> extension
	ExtensionFactor       float64 // extensionDays = deadlineDays * factor
	MaxExtensionDays      int
	CreditRate            float64 // creditAmount = price * rate
	CreditExpiryDays      int
	CreditApprovalCutoff  float64 // credits above this need approval
	RefundCapPercent      float64

	// Root-cause heuristics
	LowVolumeFactor   float64 // expected = deadlineDays * 2; low if below factor * expected
	LowResponseRate   float64
	MinActivityPerDay float64
}

// DefaultPolicy returns the built-in rule table.
func DefaultPolicy() Policy {
	return Policy{
		Tiers: map[model.Tier]TierPolicy{
			model.TierProfessional: {
				GuaranteedInterviews:   3,
				DeadlineDays:           60,
				MinConfidenceThreshold: 0.65,
				Price:                  89.99,
				MinResumeScore:         70,
				MinExperienceMonths:    6,
				RequireApprovedResume:  false,
				RequiredProfileFields:  []string{"headline", "summary", "skills", "location"},
			},
			model.TierPremium: {
				GuaranteedInterviews:   5,
				DeadlineDays:           90,
				MinConfidenceThreshold: 0.70,
				Price:                  149.99,
				MinResumeScore:         75,
				MinExperienceMonths:    12,
				RequireApprovedResume:  true,
				RequiredProfileFields:  []string{"headline", "summary", "skills", "location", "work_history"},
			},
			model.TierElite: {
				GuaranteedInterviews:   8,
				DeadlineDays:           120,
				MinConfidenceThreshold: 0.75,
				Price:                  299.99,
				MinResumeScore:         80,
				MinExperienceMonths:    24,
				RequireApprovedResume:  true,
				RequiredProfileFields:  []string{"headline", "summary", "skills", "location", "work_history", "education", "certifications"},
			},
		},
		MinProfileCompleteness: 0.80,
		ExtensionShortfallMax:  2,
		EscalationDaysOver:     7,
		CreditResponseRate:     0.05,
		MinApplications:        10,
		ExtensionFactor:        0.5,
		MaxExtensionDays:       30,
		CreditRate:             0.25,
		CreditExpiryDays:       90,
		CreditApprovalCutoff:   50,
		RefundCapPercent:       50,
		LowVolumeFactor:        0.5,
		LowResponseRate:        0.10,
		MinActivityPerDay:      1.0,
	}
}

// PolicyFromConfig starts from the defaults and applies tier overrides from
// the config file. Zero-valued override fields leave the default in place.
func PolicyFromConfig(tiers []config.TierConfig) Policy {
	p := DefaultPolicy()
	for _, tc := range tiers {
		tier := model.Tier(tc.Name)
		tp, ok := p.Tiers[tier]
		if !ok {
			continue
		}
		if tc.GuaranteedInterviews > 0 {
			tp.GuaranteedInterviews = tc.GuaranteedInterviews
		}
		if tc.DeadlineDays > 0 {
			tp.DeadlineDays = tc.DeadlineDays
		}
		if tc.MinConfidenceThreshold > 0 {
			tp.MinConfidenceThreshold = tc.MinConfidenceThreshold
		}
		if tc.Price > 0 {
			tp.Price = tc.Price
		}
		p.Tiers[tier] = tp
	}
	return p
}
