package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oks-citadel/apply-sla/middleware"
	"github.com/oks-citadel/apply-sla/service"
)

type RemedyHandler struct {
	store    *service.ContractStore
	executor *service.RemedyExecutor
	detector *service.ViolationDetector
}

func NewRemedyHandler(store *service.ContractStore, executor *service.RemedyExecutor, detector *service.ViolationDetector) *RemedyHandler {
	return &RemedyHandler{store: store, executor: executor, detector: detector}
}

// ListViolations returns the violations recorded for a contract.
func (h *RemedyHandler) ListViolations(c *gin.Context) {
	contractID := c.Query("contract_id")
	if contractID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "contract_id is required"})
		return
	}

	contract, err := h.store.GetContract(contractID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contract not found"})
		return
	}
	// Non-admins only see their own contract; a foreign ID looks absent.
	if middleware.GetRole(c) != "admin" && contract.UserID != middleware.GetUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contract not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"violations": h.store.ViolationsByContract(contractID)})
}

// ListRemedies returns the remedies issued for a violation.
func (h *RemedyHandler) ListRemedies(c *gin.Context) {
	violationID := c.Param("id")

	violation, err := h.store.GetViolation(violationID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Violation not found"})
		return
	}
	if middleware.GetRole(c) != "admin" && violation.UserID != middleware.GetUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Violation not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"remedies": h.store.RemediesByViolation(violationID)})
}

type ApproveRemedyRequest struct {
	Notes string `json:"notes"`
}

// Approve clears a remedy's approval gate. Execution happens on the next
// sweep or an explicit execute call, not here.
func (h *RemedyHandler) Approve(c *gin.Context) {
	remedyID := c.Param("id")

	// Notes are optional; an empty body is fine.
	var req ApproveRemedyRequest
	_ = c.ShouldBindJSON(&req)

	remedy, err := h.executor.Approve(c.Request.Context(), remedyID, middleware.GetUsername(c), req.Notes)
	if err != nil {
		if errors.Is(err, service.ErrRemedyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Remedy not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, remedy)
}

type RejectRemedyRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Reject closes an approval-gated remedy without executing it.
func (h *RemedyHandler) Reject(c *gin.Context) {
	remedyID := c.Param("id")

	var req RejectRemedyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: reason is required"})
		return
	}

	remedy, err := h.executor.Reject(c.Request.Context(), remedyID, middleware.GetUsername(c), req.Reason)
	if err != nil {
		if errors.Is(err, service.ErrRemedyNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Remedy not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, remedy)
}

// TriggerSweep runs a violation sweep now. Safe to race the scheduled run:
// the sweep lock and the violation idempotency guard make the overlap
// harmless.
func (h *RemedyHandler) TriggerSweep(c *gin.Context) {
	result, err := h.detector.RunSweep(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sweep failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
