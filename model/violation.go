package model

import (
	"strings"
	"time"
)

// ViolationType identifies why a violation was recorded.
type ViolationType string

const (
	// ViolationGuaranteeNotMet is recorded when a contract passes its
	// effective deadline with fewer counting interviews than guaranteed.
	ViolationGuaranteeNotMet ViolationType = "guarantee_not_met"
)

// Severity levels for a violation, driven by the interview shortfall.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// RootCauseFactors is the set of boolean tags produced by the root-cause
// predicates at detection time.
type RootCauseFactors struct {
	LowApplicationVolume bool `json:"low_application_volume"`
	LowResponseRate      bool `json:"low_response_rate"`
	ProfileIssues        bool `json:"profile_issues"`
	UserInactivity       bool `json:"user_inactivity"`
}

// Tags returns the triggered factor names.
func (f RootCauseFactors) Tags() []string {
	var tags []string
	if f.LowApplicationVolume {
		tags = append(tags, "low_application_volume")
	}
	if f.LowResponseRate {
		tags = append(tags, "low_response_rate")
	}
	if f.ProfileIssues {
		tags = append(tags, "profile_issues")
	}
	if f.UserInactivity {
		tags = append(tags, "user_inactivity")
	}
	return tags
}

func (f RootCauseFactors) String() string {
	tags := f.Tags()
	if len(tags) == 0 {
		return "none"
	}
	return strings.Join(tags, ",")
}

// SLAViolation records that a contract's deadline passed unmet, together
// with a snapshot of progress rates at detection time. At most one
// unresolved violation exists per contract.
type SLAViolation struct {
	ID                   string           `json:"id"`
	ContractID           string           `json:"contract_id"`
	UserID               string           `json:"user_id"`
	Type                 ViolationType    `json:"type"`
	DetectedAt           time.Time        `json:"detected_at"`
	GuaranteedInterviews int              `json:"guaranteed_interviews"`
	ActualInterviews     int              `json:"actual_interviews"`
	Shortfall            int              `json:"shortfall"`
	DaysOverDeadline     int              `json:"days_over_deadline"`
	ApplicationsSent     int              `json:"applications_sent"`
	ResponseRate         float64          `json:"response_rate"`
	InterviewRate        float64          `json:"interview_rate"`
	RootCauses           RootCauseFactors `json:"root_cause_factors"`
	AnalysisNotes        string           `json:"analysis_notes,omitempty"`
	ReportObject         string           `json:"report_object,omitempty"`
	Escalated            bool             `json:"escalated"`
	EscalatedTo          string           `json:"escalated_to,omitempty"`
	EscalatedAt          *time.Time       `json:"escalated_at,omitempty"`
	Resolved             bool             `json:"resolved"`
	ResolvedAt           *time.Time       `json:"resolved_at,omitempty"`
	ResolutionNotes      string           `json:"resolution_notes,omitempty"`
}

// Severity classifies the violation by shortfall.
func (v *SLAViolation) Severity() string {
	switch {
	case v.Shortfall >= 5:
		return SeverityCritical
	case v.Shortfall >= 3:
		return SeverityHigh
	case v.Shortfall >= 2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
