package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oks-citadel/apply-sla/service"
)

func TestTrackApplicationEndpoint(t *testing.T) {
	env := newTestEnv(nil)

	// No active contract yet.
	w := env.do(t, "POST", "/api/progress/application", gin.H{"application_id": "app-1"})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without an active contract, got %d", w.Code)
	}

	env.seedContract(t, 5)

	w = env.do(t, "POST", "/api/progress/application", gin.H{
		"application_id":   "app-1",
		"company":          "Acme",
		"job_title":        "Backend Engineer",
		"confidence_score": 0.85,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var summary service.ProgressSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if summary.Counters.ApplicationsSent != 1 {
		t.Errorf("Expected 1 application sent, got %d", summary.Counters.ApplicationsSent)
	}
	if !summary.Event.MeetsConfidenceThreshold {
		t.Error("Expected 0.85 to meet the 0.65 threshold")
	}

	// Missing application_id fails binding.
	w = env.do(t, "POST", "/api/progress/application", gin.H{"company": "Acme"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing application_id, got %d", w.Code)
	}
}

func TestTrackInterviewEndpoint(t *testing.T) {
	env := newTestEnv(nil)
	env.seedContract(t, 5)

	w := env.do(t, "POST", "/api/progress/application", gin.H{
		"application_id":   "app-1",
		"confidence_score": 0.50,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	// Interview from a below-threshold application is recorded but does
	// not count.
	w = env.do(t, "POST", "/api/progress/interview", gin.H{
		"application_id": "app-1",
		"scheduled_at":   time.Now().AddDate(0, 0, 3).Format(time.RFC3339),
		"interview_type": "phone_screen",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var summary service.ProgressSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if summary.Counters.InterviewsScheduled != 0 {
		t.Errorf("Below-threshold interview must not count, got %d", summary.Counters.InterviewsScheduled)
	}
	if summary.Message == "" {
		t.Error("Expected an explanatory message")
	}

	// Missing scheduled_at fails binding.
	w = env.do(t, "POST", "/api/progress/interview", gin.H{"application_id": "app-1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing scheduled_at, got %d", w.Code)
	}
}

func TestBulkTrackEndpoint(t *testing.T) {
	env := newTestEnv(nil)
	env.seedContract(t, 5)

	w := env.do(t, "POST", "/api/progress/bulk", gin.H{
		"applications": []gin.H{
			{"application": gin.H{"application_id": "app-1"}, "confidence_score": 0.80},
			{"application": gin.H{"application_id": "app-2"}, "confidence_score": 0.75},
			{"application": gin.H{}, "confidence_score": 0.90},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result service.BulkResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if result.Processed != 2 || result.Failed != 1 {
		t.Errorf("Expected 2 processed / 1 failed, got %d / %d", result.Processed, result.Failed)
	}
	if len(result.Errors) != 1 || result.Errors[0].Index != 2 {
		t.Errorf("Unexpected errors %+v", result.Errors)
	}
}

func TestVerifyProgressEndpoint(t *testing.T) {
	env := newTestEnv(nil)
	c := env.seedContract(t, 5)

	w := env.do(t, "POST", "/api/progress/unknown-id/verify", gin.H{
		"verified":    false,
		"verified_by": "ops",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown event, got %d", w.Code)
	}

	w = env.do(t, "POST", "/api/progress/application", gin.H{
		"application_id":   "app-1",
		"confidence_score": 0.85,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	events := env.store.EventsByContract(c.ID)
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}

	// verified=false must survive binding; a bare bool false would fail a
	// required check, hence the pointer field.
	w = env.do(t, "POST", "/api/progress/"+events[0].ID+"/verify", gin.H{
		"verified":    false,
		"verified_by": "ops",
		"notes":       "could not confirm",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var summary service.ProgressSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if summary.Event.IsVerified {
		t.Error("Expected event unverified")
	}

	// Missing verified_by fails binding.
	w = env.do(t, "POST", "/api/progress/"+events[0].ID+"/verify", gin.H{"verified": true})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing verified_by, got %d", w.Code)
	}
}
