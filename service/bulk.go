package service

import (
	"context"
	"fmt"
	"time"
)

// BulkApplicationItem is one application entry in a bulk tracking request.
type BulkApplicationItem struct {
	Meta            ApplicationMeta `json:"application"`
	ConfidenceScore float64         `json:"confidence_score"`
}

// BulkResponseItem is one employer-response entry in a bulk request.
type BulkResponseItem struct {
	Meta         ApplicationMeta `json:"application"`
	ResponseType string          `json:"response_type"`
}

// BulkInterviewItem is one interview entry in a bulk request.
type BulkInterviewItem struct {
	ApplicationID string    `json:"application_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	InterviewType string    `json:"interview_type"`
}

// BulkInput groups the three event batches of a bulk tracking call.
type BulkInput struct {
	Applications []BulkApplicationItem `json:"applications"`
	Responses    []BulkResponseItem    `json:"responses"`
	Interviews   []BulkInterviewItem   `json:"interviews"`
}

// BulkError reports one failed item; the rest of the batch is unaffected.
type BulkError struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BulkResult summarizes a bulk tracking call.
type BulkResult struct {
	Processed int                `json:"processed"`
	Failed    int                `json:"failed"`
	Summaries []*ProgressSummary `json:"results"`
	Errors    []BulkError        `json:"errors"`
}

// BulkTrack processes each item independently; a bad item is reported and
// skipped, never fatal to the batch.
func (t *ProgressTracker) BulkTrack(ctx context.Context, contractID string, input BulkInput) *BulkResult {
	result := &BulkResult{}

	record := func(kind string, index int, summary *ProgressSummary, err error) {
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BulkError{Type: kind, Index: index, Error: err.Error()})
			return
		}
		result.Processed++
		result.Summaries = append(result.Summaries, summary)
	}

	for i, item := range input.Applications {
		if item.Meta.ApplicationID == "" {
			record("application", i, nil, fmt.Errorf("missing application_id"))
			continue
		}
		summary, err := t.TrackApplication(ctx, contractID, item.Meta, item.ConfidenceScore)
		record("application", i, summary, err)
	}

	for i, item := range input.Responses {
		if item.Meta.ApplicationID == "" {
			record("response", i, nil, fmt.Errorf("missing application_id"))
			continue
		}
		summary, err := t.TrackResponse(ctx, contractID, item.Meta, item.ResponseType)
		record("response", i, summary, err)
	}

	for i, item := range input.Interviews {
		if item.ApplicationID == "" {
			record("interview", i, nil, fmt.Errorf("missing application_id"))
			continue
		}
		if item.ScheduledAt.IsZero() {
			record("interview", i, nil, fmt.Errorf("missing scheduled_at"))
			continue
		}
		summary, err := t.TrackInterview(ctx, contractID, item.ApplicationID, item.ScheduledAt, item.InterviewType)
		record("interview", i, summary, err)
	}

	return result
}
