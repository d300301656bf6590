package model

import "time"

// ProgressEventType identifies a progress ledger entry kind.
type ProgressEventType string

const (
	EventApplicationSent    ProgressEventType = "application_sent"
	EventEmployerResponse   ProgressEventType = "employer_response"
	EventInterviewScheduled ProgressEventType = "interview_scheduled"
	EventInterviewCompleted ProgressEventType = "interview_completed"
	EventOfferReceived      ProgressEventType = "offer_received"
)

// IsInterview reports whether the event type counts toward the interview
// guarantee projection.
func (t ProgressEventType) IsInterview() bool {
	return t == EventInterviewScheduled
}

// SLAProgressEvent is a single append-only ledger entry. Contract counters
// are a materialized projection over these entries; verification flips may
// later correct the projection.
type SLAProgressEvent struct {
	ID                       string            `json:"id"`
	ContractID               string            `json:"contract_id"`
	UserID                   string            `json:"user_id"`
	Type                     ProgressEventType `json:"type"`
	ApplicationID            string            `json:"application_id,omitempty"`
	Company                  string            `json:"company,omitempty"`
	JobTitle                 string            `json:"job_title,omitempty"`
	InterviewType            string            `json:"interview_type,omitempty"`
	ScheduledAt              *time.Time        `json:"scheduled_at,omitempty"`
	ConfidenceScore          *float64          `json:"confidence_score,omitempty"`
	MeetsConfidenceThreshold bool              `json:"meets_confidence_threshold"`
	IsVerified               bool              `json:"is_verified"`
	VerifiedBy               string            `json:"verified_by,omitempty"`
	VerificationNotes        string            `json:"verification_notes,omitempty"`
	Source                   string            `json:"source,omitempty"`
	CreatedAt                time.Time         `json:"created_at"`
}

// CountsTowardGuarantee reports whether this entry contributes to the
// interviews-scheduled projection.
func (e *SLAProgressEvent) CountsTowardGuarantee() bool {
	return e.Type.IsInterview() && e.IsVerified && e.MeetsConfidenceThreshold
}
