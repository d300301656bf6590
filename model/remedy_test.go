package model

import (
	"testing"
	"time"
)

func TestRemedyCanExecute(t *testing.T) {
	tests := []struct {
		name     string
		status   RemedyStatus
		requires bool
		approved bool
		want     bool
	}{
		{"pending without approval gate", RemedyPending, false, false, true},
		{"pending gated unapproved", RemedyPending, true, false, false},
		{"pending gated approved", RemedyPending, true, true, true},
		{"already in progress", RemedyInProgress, false, false, false},
		{"completed", RemedyCompleted, false, false, false},
		{"rejected", RemedyRejected, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &SLARemedy{
				Status:           tt.status,
				RequiresApproval: tt.requires,
				IsApproved:       tt.approved,
			}
			if got := r.CanExecute(); got != tt.want {
				t.Errorf("CanExecute = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRemedyAppendLog(t *testing.T) {
	r := &SLARemedy{}
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	r.AppendLog(now, "execute", "started", "")
	r.AppendLog(now.Add(time.Second), "execute", "completed", "extension applied")

	if len(r.ExecutionLog) != 2 {
		t.Fatalf("Expected 2 log entries, got %d", len(r.ExecutionLog))
	}
	if r.ExecutionLog[0].Result != "started" {
		t.Errorf("Expected first entry result 'started', got %q", r.ExecutionLog[0].Result)
	}
	if !r.ExecutionLog[1].Timestamp.After(r.ExecutionLog[0].Timestamp) {
		t.Error("Expected log entries in append order")
	}
}

func TestViolationSeverity(t *testing.T) {
	tests := []struct {
		shortfall int
		want      string
	}{
		{0, SeverityLow},
		{1, SeverityLow},
		{2, SeverityMedium},
		{3, SeverityHigh},
		{4, SeverityHigh},
		{5, SeverityCritical},
		{8, SeverityCritical},
	}

	for _, tt := range tests {
		v := &SLAViolation{Shortfall: tt.shortfall}
		if got := v.Severity(); got != tt.want {
			t.Errorf("Severity(shortfall=%d) = %s, want %s", tt.shortfall, got, tt.want)
		}
	}
}

func TestRootCauseTags(t *testing.T) {
	f := RootCauseFactors{}
	if len(f.Tags()) != 0 {
		t.Error("Expected no tags when no factors triggered")
	}
	if f.String() != "none" {
		t.Errorf("Expected 'none', got %q", f.String())
	}

	f = RootCauseFactors{LowApplicationVolume: true, UserInactivity: true}
	tags := f.Tags()
	if len(tags) != 2 {
		t.Fatalf("Expected 2 tags, got %d", len(tags))
	}
	if tags[0] != "low_application_volume" || tags[1] != "user_inactivity" {
		t.Errorf("Unexpected tags: %v", tags)
	}
}
