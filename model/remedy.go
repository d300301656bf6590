package model

import "time"

// RemedyType identifies a compensating action for a violation.
type RemedyType string

const (
	RemedyServiceExtension RemedyType = "service_extension"
	RemedyHumanEscalation  RemedyType = "human_escalation"
	RemedyServiceCredit    RemedyType = "service_credit"
	RemedyPartialRefund    RemedyType = "partial_refund"
	RemedyFullRefund       RemedyType = "full_refund"
)

// RemedyStatus constants. The workflow is
// pending -> (approval gate) -> in_progress -> completed | failed,
// with rejected as the terminal state of a denied approval.
type RemedyStatus string

const (
	RemedyPending    RemedyStatus = "pending"
	RemedyInProgress RemedyStatus = "in_progress"
	RemedyCompleted  RemedyStatus = "completed"
	RemedyFailed     RemedyStatus = "failed"
	RemedyRejected   RemedyStatus = "rejected"
)

// ExecutionLogEntry is one append-only line of a remedy's execution history.
type ExecutionLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Result    string    `json:"result"`
	Details   string    `json:"details,omitempty"`
}

// RemedyDetails is the type-specific payload computed by the calculator.
// Only the fields for the remedy's type are populated; references minted at
// execution time (ticket ref, credit code) are filled in by the executor.
type RemedyDetails struct {
	ExtensionDays    int        `json:"extension_days,omitempty"`
	NewEndDate       *time.Time `json:"new_end_date,omitempty"`
	EscalationLevel  string     `json:"escalation_level,omitempty"`
	TicketRef        string     `json:"ticket_ref,omitempty"`
	CreditAmount     float64    `json:"credit_amount,omitempty"`
	CreditCode       string     `json:"credit_code,omitempty"`
	CreditExpiresAt  *time.Time `json:"credit_expires_at,omitempty"`
	RefundAmount     float64    `json:"refund_amount,omitempty"`
	RefundPercentage float64    `json:"refund_percentage,omitempty"`
}

// SLARemedy is a compensating action issued for a violation.
type SLARemedy struct {
	ID               string              `json:"id"`
	ViolationID      string              `json:"violation_id"`
	ContractID       string              `json:"contract_id"`
	UserID           string              `json:"user_id"`
	Type             RemedyType          `json:"type"`
	Status           RemedyStatus        `json:"status"`
	RequiresApproval bool                `json:"requires_approval"`
	IsApproved       bool                `json:"is_approved"`
	ApprovedBy       string              `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time          `json:"approved_at,omitempty"`
	ApprovalNotes    string              `json:"approval_notes,omitempty"`
	RejectedBy       string              `json:"rejected_by,omitempty"`
	RejectedAt       *time.Time          `json:"rejected_at,omitempty"`
	RejectionReason  string              `json:"rejection_reason,omitempty"`
	FinancialImpact  float64             `json:"financial_impact"`
	Details          RemedyDetails       `json:"remedy_details"`
	ExecutionLog     []ExecutionLogEntry `json:"execution_log,omitempty"`
	FailureReason    string              `json:"failure_reason,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// CanExecute reports whether the remedy may be (re-)driven: it must still be
// pending and, when approval-gated, approved.
func (r *SLARemedy) CanExecute() bool {
	return r.Status == RemedyPending && (!r.RequiresApproval || r.IsApproved)
}

// AppendLog adds an execution log entry stamped with now.
func (r *SLARemedy) AppendLog(now time.Time, action, result, details string) {
	r.ExecutionLog = append(r.ExecutionLog, ExecutionLogEntry{
		Timestamp: now,
		Action:    action,
		Result:    result,
		Details:   details,
	})
}
