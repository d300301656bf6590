package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oks-citadel/apply-sla/model"
	"github.com/oks-citadel/apply-sla/pkg/logger"
)

// ApplicationMeta describes the job application a progress event links to.
type ApplicationMeta struct {
	ApplicationID string `json:"application_id"`
	Company       string `json:"company,omitempty"`
	JobTitle      string `json:"job_title,omitempty"`
	Source        string `json:"source,omitempty"`
}

// ProgressSummary is returned by tracking calls: the appended event plus
// the updated counter projection.
type ProgressSummary struct {
	Event          *model.SLAProgressEvent `json:"event"`
	Counters       model.ProgressCounters  `json:"counters"`
	IsGuaranteeMet bool                    `json:"is_guarantee_met"`
	Message        string                  `json:"message,omitempty"`
}

// ProgressTracker appends ledger events and maintains the contract's
// denormalized counters.
type ProgressTracker struct {
	store *ContractStore
	now   func() time.Time
}

func NewProgressTracker(store *ContractStore) *ProgressTracker {
	return &ProgressTracker{store: store, now: time.Now}
}

// TrackApplication records an application_sent event. Applications always
// count regardless of confidence; only interview counting is gated on the
// threshold.
func (t *ProgressTracker) TrackApplication(ctx context.Context, contractID string, meta ApplicationMeta, confidenceScore float64) (*ProgressSummary, error) {
	c, err := t.store.GetContract(contractID)
	if err != nil {
		return nil, err
	}

	score := confidenceScore
	event := &model.SLAProgressEvent{
		ID:                       uuid.New().String(),
		ContractID:               contractID,
		UserID:                   c.UserID,
		Type:                     model.EventApplicationSent,
		ApplicationID:            meta.ApplicationID,
		Company:                  meta.Company,
		JobTitle:                 meta.JobTitle,
		Source:                   meta.Source,
		ConfidenceScore:          &score,
		MeetsConfidenceThreshold: confidenceScore >= c.MinConfidenceThreshold,
		IsVerified:               true,
		CreatedAt:                t.now(),
	}

	var counters model.ProgressCounters
	err = t.store.ApplyProgress(contractID, event, func(c *model.SLAContract) {
		c.Counters.ApplicationsSent++
		counters = c.Counters
	})
	if err != nil {
		return nil, err
	}

	msg := "application recorded"
	if !event.MeetsConfidenceThreshold {
		msg = "application recorded; confidence below threshold, an eventual interview will not count toward the guarantee"
	}

	logger.Debug(ctx, "application tracked",
		"contract_id", contractID,
		"application_id", meta.ApplicationID,
		"confidence", confidenceScore,
		"meets_threshold", event.MeetsConfidenceThreshold,
	)
	return &ProgressSummary{Event: event, Counters: counters, IsGuaranteeMet: counters.InterviewsScheduled >= c.GuaranteedInterviews, Message: msg}, nil
}

// TrackResponse records an employer_response event and increments the
// response counter unconditionally.
func (t *ProgressTracker) TrackResponse(ctx context.Context, contractID string, meta ApplicationMeta, responseType string) (*ProgressSummary, error) {
	c, err := t.store.GetContract(contractID)
	if err != nil {
		return nil, err
	}

	event := &model.SLAProgressEvent{
		ID:            uuid.New().String(),
		ContractID:    contractID,
		UserID:        c.UserID,
		Type:          model.EventEmployerResponse,
		ApplicationID: meta.ApplicationID,
		Company:       meta.Company,
		Source:        responseType,
		IsVerified:    true,
		CreatedAt:     t.now(),
	}

	var counters model.ProgressCounters
	err = t.store.ApplyProgress(contractID, event, func(c *model.SLAContract) {
		c.Counters.EmployerResponses++
		counters = c.Counters
	})
	if err != nil {
		return nil, err
	}

	return &ProgressSummary{Event: event, Counters: counters, IsGuaranteeMet: counters.InterviewsScheduled >= c.GuaranteedInterviews, Message: "response recorded"}, nil
}

// TrackInterview records an interview_scheduled event. The event inherits
// the confidence score of the originating application; the interview
// counter is incremented only when that score meets the contract's
// threshold.
func (t *ProgressTracker) TrackInterview(ctx context.Context, contractID, applicationID string, scheduledAt time.Time, interviewType string) (*ProgressSummary, error) {
	c, err := t.store.GetContract(contractID)
	if err != nil {
		return nil, err
	}

	// Inherit from the originating application; unknown applications are
	// given the benefit of the doubt.
	meetsThreshold := true
	var score *float64
	if origin := t.store.FindApplicationEvent(contractID, applicationID); origin != nil {
		meetsThreshold = origin.MeetsConfidenceThreshold
		score = origin.ConfidenceScore
	}

	event := &model.SLAProgressEvent{
		ID:                       uuid.New().String(),
		ContractID:               contractID,
		UserID:                   c.UserID,
		Type:                     model.EventInterviewScheduled,
		ApplicationID:            applicationID,
		InterviewType:            interviewType,
		ScheduledAt:              &scheduledAt,
		ConfidenceScore:          score,
		MeetsConfidenceThreshold: meetsThreshold,
		IsVerified:               true,
		CreatedAt:                t.now(),
	}

	var counters model.ProgressCounters
	err = t.store.ApplyProgress(contractID, event, func(c *model.SLAContract) {
		if meetsThreshold {
			c.Counters.InterviewsScheduled++
		}
		counters = c.Counters
	})
	if err != nil {
		return nil, err
	}

	msg := "interview recorded"
	if !meetsThreshold {
		msg = "interview recorded but does not count toward the guarantee: originating application was below the confidence threshold"
	}

	logger.Info(ctx, "interview tracked",
		"contract_id", contractID,
		"application_id", applicationID,
		"counts", meetsThreshold,
		"interviews_scheduled", counters.InterviewsScheduled,
	)
	return &ProgressSummary{Event: event, Counters: counters, IsGuaranteeMet: counters.InterviewsScheduled >= c.GuaranteedInterviews, Message: msg}, nil
}

// TrackOutcome records a post-interview outcome (interview_completed or
// offer_received) and bumps the matching counter.
func (t *ProgressTracker) TrackOutcome(ctx context.Context, contractID, applicationID string, outcome model.ProgressEventType) (*ProgressSummary, error) {
	if outcome != model.EventInterviewCompleted && outcome != model.EventOfferReceived {
		return nil, fmt.Errorf("unsupported outcome type %q", outcome)
	}

	c, err := t.store.GetContract(contractID)
	if err != nil {
		return nil, err
	}

	event := &model.SLAProgressEvent{
		ID:            uuid.New().String(),
		ContractID:    contractID,
		UserID:        c.UserID,
		Type:          outcome,
		ApplicationID: applicationID,
		IsVerified:    true,
		CreatedAt:     t.now(),
	}

	var counters model.ProgressCounters
	err = t.store.ApplyProgress(contractID, event, func(c *model.SLAContract) {
		switch outcome {
		case model.EventInterviewCompleted:
			c.Counters.InterviewsCompleted++
		case model.EventOfferReceived:
			c.Counters.OffersReceived++
		}
		counters = c.Counters
	})
	if err != nil {
		return nil, err
	}

	return &ProgressSummary{Event: event, Counters: counters, IsGuaranteeMet: counters.InterviewsScheduled >= c.GuaranteedInterviews, Message: "outcome recorded"}, nil
}

// VerifyProgress flips an event's verification flag. For interview events
// the interviews-scheduled counter is recomputed from the ledger, since a
// flip can move the projection in either direction. This recount is the
// correction path for the guarantee-bearing counter.
func (t *ProgressTracker) VerifyProgress(ctx context.Context, progressID string, verified bool, verifiedBy, notes string) (*ProgressSummary, error) {
	var counters model.ProgressCounters
	var guaranteed int

	event, err := t.store.UpdateEvent(progressID, func(e *model.SLAProgressEvent, c *model.SLAContract, ledger []*model.SLAProgressEvent) error {
		e.IsVerified = verified
		e.VerifiedBy = verifiedBy
		e.VerificationNotes = notes

		if e.Type.IsInterview() {
			count := 0
			for _, ev := range ledger {
				if ev.CountsTowardGuarantee() {
					count++
				}
			}
			c.Counters.InterviewsScheduled = count
		}
		counters = c.Counters
		guaranteed = c.GuaranteedInterviews
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "progress verification updated",
		"progress_id", progressID,
		"verified", verified,
		"verified_by", verifiedBy,
		"interviews_scheduled", counters.InterviewsScheduled,
	)
	return &ProgressSummary{Event: event, Counters: counters, IsGuaranteeMet: counters.InterviewsScheduled >= guaranteed, Message: "verification updated"}, nil
}

// Reconcile recomputes every counter from the ledger, healing drift left by
// partial failures. Returns the corrected counters.
func (t *ProgressTracker) Reconcile(ctx context.Context, contractID string) (model.ProgressCounters, error) {
	ledger := t.store.EventsByContract(contractID)

	var fresh model.ProgressCounters
	for _, e := range ledger {
		if !e.IsVerified {
			continue
		}
		switch e.Type {
		case model.EventApplicationSent:
			fresh.ApplicationsSent++
		case model.EventEmployerResponse:
			fresh.EmployerResponses++
		case model.EventInterviewScheduled:
			if e.MeetsConfidenceThreshold {
				fresh.InterviewsScheduled++
			}
		case model.EventInterviewCompleted:
			fresh.InterviewsCompleted++
		case model.EventOfferReceived:
			fresh.OffersReceived++
		}
	}

	c, err := t.store.UpdateContract(contractID, func(c *model.SLAContract) error {
		if c.Counters != fresh {
			logger.Warn(ctx, "counter drift corrected",
				"contract_id", contractID,
				"before", fmt.Sprintf("%+v", c.Counters),
				"after", fmt.Sprintf("%+v", fresh),
			)
		}
		c.Counters = fresh
		return nil
	})
	if err != nil {
		return model.ProgressCounters{}, err
	}
	return c.Counters, nil
}
