package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oks-citadel/apply-sla/model"
)

func newTrackedContract(t *testing.T, store *ContractStore) *model.SLAContract {
	t.Helper()
	c := testContract("user-1", 5)
	if err := store.CreateContract(c); err != nil {
		t.Fatalf("CreateContract: %v", err)
	}
	return c
}

func TestTrackApplication(t *testing.T) {
	store := NewContractStore()
	tracker := NewProgressTracker(store)
	c := newTrackedContract(t, store)

	tests := []struct {
		name           string
		confidence     float64
		wantsThreshold bool
	}{
		{"above threshold", 0.80, true},
		{"at threshold", 0.65, true},
		{"below threshold", 0.50, false},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := tracker.TrackApplication(context.Background(), c.ID,
				ApplicationMeta{ApplicationID: "app-" + tt.name, Company: "Acme"}, tt.confidence)
			if err != nil {
				t.Fatalf("TrackApplication: %v", err)
			}
			if summary.Event.MeetsConfidenceThreshold != tt.wantsThreshold {
				t.Errorf("MeetsConfidenceThreshold = %v, want %v", summary.Event.MeetsConfidenceThreshold, tt.wantsThreshold)
			}
			// Applications count regardless of confidence.
			if summary.Counters.ApplicationsSent != i+1 {
				t.Errorf("Expected %d applications sent, got %d", i+1, summary.Counters.ApplicationsSent)
			}
		})
	}

	if _, err := tracker.TrackApplication(context.Background(), "missing", ApplicationMeta{ApplicationID: "x"}, 0.9); !errors.Is(err, ErrContractNotFound) {
		t.Errorf("Expected ErrContractNotFound, got %v", err)
	}
}

func TestTrackInterviewInheritsConfidence(t *testing.T) {
	store := NewContractStore()
	tracker := NewProgressTracker(store)
	c := newTrackedContract(t, store)
	ctx := context.Background()

	if _, err := tracker.TrackApplication(ctx, c.ID, ApplicationMeta{ApplicationID: "app-high"}, 0.90); err != nil {
		t.Fatalf("TrackApplication: %v", err)
	}
	if _, err := tracker.TrackApplication(ctx, c.ID, ApplicationMeta{ApplicationID: "app-low"}, 0.40); err != nil {
		t.Fatalf("TrackApplication: %v", err)
	}

	scheduled := time.Now().AddDate(0, 0, 3)

	// Interview from the high-confidence application counts.
	summary, err := tracker.TrackInterview(ctx, c.ID, "app-high", scheduled, "phone_screen")
	if err != nil {
		t.Fatalf("TrackInterview: %v", err)
	}
	if summary.Counters.InterviewsScheduled != 1 {
		t.Errorf("Expected 1 interview scheduled, got %d", summary.Counters.InterviewsScheduled)
	}
	if !summary.Event.MeetsConfidenceThreshold {
		t.Error("Interview from a high-confidence application must count")
	}

	// Interview from the low-confidence application is recorded but does
	// not move the guarantee counter.
	summary, err = tracker.TrackInterview(ctx, c.ID, "app-low", scheduled, "onsite")
	if err != nil {
		t.Fatalf("TrackInterview: %v", err)
	}
	if summary.Counters.InterviewsScheduled != 1 {
		t.Errorf("Below-threshold interview must not count, got %d", summary.Counters.InterviewsScheduled)
	}
	if summary.Event.MeetsConfidenceThreshold {
		t.Error("Interview must inherit the application's below-threshold flag")
	}
	if len(store.EventsByContract(c.ID)) != 4 {
		t.Errorf("Expected 4 ledger entries, got %d", len(store.EventsByContract(c.ID)))
	}

	// Unknown application id gets the benefit of the doubt.
	summary, err = tracker.TrackInterview(ctx, c.ID, "app-unknown", scheduled, "phone_screen")
	if err != nil {
		t.Fatalf("TrackInterview: %v", err)
	}
	if summary.Counters.InterviewsScheduled != 2 {
		t.Errorf("Expected interview from unknown application to count, got %d", summary.Counters.InterviewsScheduled)
	}
}

func TestTrackOutcome(t *testing.T) {
	store := NewContractStore()
	tracker := NewProgressTracker(store)
	c := newTrackedContract(t, store)
	ctx := context.Background()

	summary, err := tracker.TrackOutcome(ctx, c.ID, "app-1", model.EventOfferReceived)
	if err != nil {
		t.Fatalf("TrackOutcome: %v", err)
	}
	if summary.Counters.OffersReceived != 1 {
		t.Errorf("Expected 1 offer received, got %d", summary.Counters.OffersReceived)
	}

	if _, err := tracker.TrackOutcome(ctx, c.ID, "app-1", model.EventApplicationSent); err == nil {
		t.Error("Expected error for non-outcome event type")
	}
}

func TestVerifyProgressRecountsInterviews(t *testing.T) {
	store := NewContractStore()
	tracker := NewProgressTracker(store)
	c := newTrackedContract(t, store)
	ctx := context.Background()

	if _, err := tracker.TrackApplication(ctx, c.ID, ApplicationMeta{ApplicationID: "app-1"}, 0.90); err != nil {
		t.Fatalf("TrackApplication: %v", err)
	}
	summary, err := tracker.TrackInterview(ctx, c.ID, "app-1", time.Now().AddDate(0, 0, 1), "phone_screen")
	if err != nil {
		t.Fatalf("TrackInterview: %v", err)
	}
	if summary.Counters.InterviewsScheduled != 1 {
		t.Fatalf("Expected 1 interview scheduled, got %d", summary.Counters.InterviewsScheduled)
	}
	interviewID := summary.Event.ID

	// Unverifying the interview removes it from the projection.
	summary, err = tracker.VerifyProgress(ctx, interviewID, false, "ops", "could not confirm with employer")
	if err != nil {
		t.Fatalf("VerifyProgress: %v", err)
	}
	if summary.Counters.InterviewsScheduled != 0 {
		t.Errorf("Expected recount to 0 after unverify, got %d", summary.Counters.InterviewsScheduled)
	}
	if summary.Event.IsVerified {
		t.Error("Event must be flagged unverified")
	}
	if summary.Event.VerifiedBy != "ops" {
		t.Errorf("Expected verified_by ops, got %s", summary.Event.VerifiedBy)
	}

	// Re-verifying restores it.
	summary, err = tracker.VerifyProgress(ctx, interviewID, true, "ops", "confirmed")
	if err != nil {
		t.Fatalf("VerifyProgress: %v", err)
	}
	if summary.Counters.InterviewsScheduled != 1 {
		t.Errorf("Expected recount to 1 after re-verify, got %d", summary.Counters.InterviewsScheduled)
	}

	if _, err := tracker.VerifyProgress(ctx, "missing", true, "ops", ""); !errors.Is(err, ErrProgressNotFound) {
		t.Errorf("Expected ErrProgressNotFound, got %v", err)
	}
}

func TestReconcile(t *testing.T) {
	store := NewContractStore()
	tracker := NewProgressTracker(store)
	c := newTrackedContract(t, store)
	ctx := context.Background()

	if _, err := tracker.TrackApplication(ctx, c.ID, ApplicationMeta{ApplicationID: "app-1"}, 0.90); err != nil {
		t.Fatalf("TrackApplication: %v", err)
	}
	if _, err := tracker.TrackResponse(ctx, c.ID, ApplicationMeta{ApplicationID: "app-1"}, "interview_request"); err != nil {
		t.Fatalf("TrackResponse: %v", err)
	}
	if _, err := tracker.TrackInterview(ctx, c.ID, "app-1", time.Now().AddDate(0, 0, 1), "phone_screen"); err != nil {
		t.Fatalf("TrackInterview: %v", err)
	}

	// Inject drift into the projection.
	_, err := store.UpdateContract(c.ID, func(c *model.SLAContract) error {
		c.Counters.ApplicationsSent = 99
		c.Counters.InterviewsScheduled = 0
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateContract: %v", err)
	}

	counters, err := tracker.Reconcile(ctx, c.ID)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	want := model.ProgressCounters{
		ApplicationsSent:    1,
		EmployerResponses:   1,
		InterviewsScheduled: 1,
	}
	if counters != want {
		t.Errorf("Reconcile = %+v, want %+v", counters, want)
	}
}

func TestBulkTrackPartialFailure(t *testing.T) {
	store := NewContractStore()
	tracker := NewProgressTracker(store)
	c := newTrackedContract(t, store)

	input := BulkInput{
		Applications: []BulkApplicationItem{
			{Meta: ApplicationMeta{ApplicationID: "app-1", Company: "Acme"}, ConfidenceScore: 0.80},
			{Meta: ApplicationMeta{ApplicationID: "app-2"}, ConfidenceScore: 0.70},
			{Meta: ApplicationMeta{}, ConfidenceScore: 0.90}, // missing application_id
		},
		Interviews: []BulkInterviewItem{
			{ApplicationID: "app-1"}, // missing scheduled_at
		},
	}

	result := tracker.BulkTrack(context.Background(), c.ID, input)

	if result.Processed != 2 {
		t.Errorf("Expected 2 processed, got %d", result.Processed)
	}
	if result.Failed != 2 {
		t.Errorf("Expected 2 failed, got %d", result.Failed)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("Expected 2 errors, got %d", len(result.Errors))
	}
	if result.Errors[0].Type != "application" || result.Errors[0].Index != 2 {
		t.Errorf("Unexpected first error %+v", result.Errors[0])
	}
	if result.Errors[1].Type != "interview" || result.Errors[1].Index != 0 {
		t.Errorf("Unexpected second error %+v", result.Errors[1])
	}

	// The valid items landed despite the failures.
	got, err := store.GetContract(c.ID)
	if err != nil {
		t.Fatalf("GetContract: %v", err)
	}
	if got.Counters.ApplicationsSent != 2 {
		t.Errorf("Expected 2 applications sent, got %d", got.Counters.ApplicationsSent)
	}
}
