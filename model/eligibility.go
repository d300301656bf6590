package model

import "time"

// EligibilityResult is the outcome of the pre-purchase eligibility check,
// snapshotted onto the contract at creation time.
type EligibilityResult struct {
	IsEligible           bool      `json:"is_eligible"`
	PassedFields         []string  `json:"passed_fields,omitempty"`
	FailedFields         []string  `json:"failed_fields,omitempty"`
	ProfileCompleteness  float64   `json:"profile_completeness"`
	ResumeScore          float64   `json:"resume_score"`
	WorkExperienceMonths int       `json:"work_experience_months"`
	HasApprovedResume    bool      `json:"has_approved_resume"`
	Recommendations      []string  `json:"recommendations,omitempty"`
	CheckedAt            time.Time `json:"checked_at"`
}
