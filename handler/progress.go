package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oks-citadel/apply-sla/middleware"
	"github.com/oks-citadel/apply-sla/service"
)

type ProgressHandler struct {
	store   *service.ContractStore
	tracker *service.ProgressTracker
}

func NewProgressHandler(store *service.ContractStore, tracker *service.ProgressTracker) *ProgressHandler {
	return &ProgressHandler{store: store, tracker: tracker}
}

// activeContractID resolves the caller's active contract or writes a 404.
func (h *ProgressHandler) activeContractID(c *gin.Context) (string, bool) {
	contract, err := h.store.ActiveContractByUser(middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active contract for user"})
		return "", false
	}
	return contract.ID, true
}

type TrackApplicationRequest struct {
	ApplicationID   string  `json:"application_id" binding:"required"`
	Company         string  `json:"company"`
	JobTitle        string  `json:"job_title"`
	Source          string  `json:"source"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// TrackApplication records an application submission.
func (h *ProgressHandler) TrackApplication(c *gin.Context) {
	contractID, ok := h.activeContractID(c)
	if !ok {
		return
	}

	var req TrackApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	meta := service.ApplicationMeta{
		ApplicationID: req.ApplicationID,
		Company:       req.Company,
		JobTitle:      req.JobTitle,
		Source:        req.Source,
	}
	summary, err := h.tracker.TrackApplication(c.Request.Context(), contractID, meta, req.ConfidenceScore)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to track application: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

type TrackResponseRequest struct {
	ApplicationID string `json:"application_id" binding:"required"`
	Company       string `json:"company"`
	ResponseType  string `json:"response_type"`
}

// TrackResponse records an employer response.
func (h *ProgressHandler) TrackResponse(c *gin.Context) {
	contractID, ok := h.activeContractID(c)
	if !ok {
		return
	}

	var req TrackResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	meta := service.ApplicationMeta{ApplicationID: req.ApplicationID, Company: req.Company}
	summary, err := h.tracker.TrackResponse(c.Request.Context(), contractID, meta, req.ResponseType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to track response: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

type TrackInterviewRequest struct {
	ApplicationID string    `json:"application_id" binding:"required"`
	ScheduledAt   time.Time `json:"scheduled_at" binding:"required"`
	InterviewType string    `json:"interview_type"`
}

// TrackInterview records a scheduled interview.
func (h *ProgressHandler) TrackInterview(c *gin.Context) {
	contractID, ok := h.activeContractID(c)
	if !ok {
		return
	}

	var req TrackInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	summary, err := h.tracker.TrackInterview(c.Request.Context(), contractID, req.ApplicationID, req.ScheduledAt, req.InterviewType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to track interview: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// BulkTrack processes batched events; bad items are reported per item, not
// fatal.
func (h *ProgressHandler) BulkTrack(c *gin.Context) {
	contractID, ok := h.activeContractID(c)
	if !ok {
		return
	}

	var input service.BulkInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result := h.tracker.BulkTrack(c.Request.Context(), contractID, input)
	c.JSON(http.StatusOK, result)
}

type VerifyProgressRequest struct {
	Verified   *bool  `json:"verified" binding:"required"`
	VerifiedBy string `json:"verified_by" binding:"required"`
	Notes      string `json:"notes"`
}

// Verify flips an event's verification flag and reconciles the guarantee
// counter when needed.
func (h *ProgressHandler) Verify(c *gin.Context) {
	progressID := c.Param("id")

	var req VerifyProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	summary, err := h.tracker.VerifyProgress(c.Request.Context(), progressID, *req.Verified, req.VerifiedBy, req.Notes)
	if err != nil {
		if errors.Is(err, service.ErrProgressNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Progress event not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify progress: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}
