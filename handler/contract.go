package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oks-citadel/apply-sla/middleware"
	"github.com/oks-citadel/apply-sla/model"
	"github.com/oks-citadel/apply-sla/service"
)

type ContractHandler struct {
	contracts *service.ContractService
	dashboard *service.DashboardService
}

func NewContractHandler(contracts *service.ContractService, dashboard *service.DashboardService) *ContractHandler {
	return &ContractHandler{contracts: contracts, dashboard: dashboard}
}

type CreateContractRequest struct {
	Tier       string `json:"tier" binding:"required"`
	PaymentRef string `json:"payment_ref"`
}

// Create purchases a guarantee contract for the authenticated user.
func (h *ContractHandler) Create(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	tier := model.Tier(req.Tier)
	if !tier.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown tier: " + req.Tier})
		return
	}

	contract, err := h.contracts.CreateContract(c.Request.Context(), userID, tier, req.PaymentRef)
	if err != nil {
		var ineligible *service.IneligibleError
		switch {
		case errors.As(err, &ineligible):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":           "User is not eligible for this tier",
				"failed_fields":   ineligible.Result.FailedFields,
				"recommendations": ineligible.Result.Recommendations,
			})
		case errors.Is(err, service.ErrDuplicateActiveContract):
			c.JSON(http.StatusBadRequest, gin.H{"error": "An active contract already exists for this user"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create contract: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, h.contracts.View(contract))
}

// Status returns the derived contract view for the authenticated user.
func (h *ContractHandler) Status(c *gin.Context) {
	userID := middleware.GetUserID(c)

	view, err := h.contracts.StatusView(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No contract found for user"})
		return
	}

	c.JSON(http.StatusOK, view)
}

// Dashboard returns the aggregated dashboard view.
func (h *ContractHandler) Dashboard(c *gin.Context) {
	userID := middleware.GetUserID(c)

	view, err := h.dashboard.Build(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No contract found for user"})
		return
	}

	c.JSON(http.StatusOK, view)
}

type ExtendContractRequest struct {
	Days   int    `json:"days" binding:"required"`
	Reason string `json:"reason"`
}

// Extend pushes out the authenticated user's contract deadline.
func (h *ContractHandler) Extend(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req ExtendContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	contract, err := h.contracts.ExtendForUser(c.Request.Context(), userID, req.Days, req.Reason)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveContract) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No active contract for user"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.contracts.View(contract))
}
