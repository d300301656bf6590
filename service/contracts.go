package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oks-citadel/apply-sla/model"
	"github.com/oks-citadel/apply-sla/pkg/logger"
)

// EligibilityGate is the external pre-purchase check consumed by the core.
type EligibilityGate interface {
	Check(ctx context.Context, userID string, tier model.Tier) (model.EligibilityResult, error)
}

// ContractView is the derived read model for a contract, computed on read.
type ContractView struct {
	ID                   string                 `json:"id"`
	UserID               string                 `json:"user_id"`
	Tier                 model.Tier             `json:"tier"`
	Status               model.ContractStatus   `json:"status"`
	GuaranteedInterviews int                    `json:"guaranteed_interviews"`
	DeadlineDays         int                    `json:"deadline_days"`
	Price                float64                `json:"price"`
	StartDate            time.Time              `json:"start_date"`
	EndDate              time.Time              `json:"end_date"`
	EffectiveEndDate     time.Time              `json:"effective_end_date"`
	ExtensionDays        int                    `json:"extension_days"`
	DaysRemaining        int                    `json:"days_remaining"`
	ProgressPercentage   float64                `json:"progress_percentage"`
	ResponseRate         float64                `json:"response_rate"`
	InterviewRate        float64                `json:"interview_rate"`
	IsGuaranteeMet       bool                   `json:"is_guarantee_met"`
	Counters             model.ProgressCounters `json:"counters"`
}

// ContractService owns the contract lifecycle: eligibility-gated creation,
// extension, and the derived status view.
type ContractService struct {
	store  *ContractStore
	gate   EligibilityGate
	policy Policy
	now    func() time.Time
}

func NewContractService(store *ContractStore, gate EligibilityGate, policy Policy) *ContractService {
	return &ContractService{
		store:  store,
		gate:   gate,
		policy: policy,
		now:    time.Now,
	}
}

// CreateContract runs the eligibility gate, enforces contract uniqueness and
// persists a new active contract built from the tier policy.
func (s *ContractService) CreateContract(ctx context.Context, userID string, tier model.Tier, paymentRef string) (*model.SLAContract, error) {
	tp, ok := s.policy.Tiers[tier]
	if !ok {
		return nil, fmt.Errorf("unknown tier %q", tier)
	}

	// Fail fast on a duplicate before the upstream round trip. The store
	// re-checks under its lock at insert time.
	if _, err := s.store.ActiveContractByUser(userID); err == nil {
		return nil, ErrDuplicateActiveContract
	}

	result, err := s.gate.Check(ctx, userID, tier)
	if err != nil {
		return nil, fmt.Errorf("eligibility check failed: %w", err)
	}
	if !result.IsEligible {
		logger.Info(ctx, "contract creation blocked by eligibility",
			"user_id", userID,
			"tier", string(tier),
			"failed_fields", result.FailedFields,
		)
		return nil, &IneligibleError{Result: result}
	}

	now := s.now()
	contract := &model.SLAContract{
		ID:                     uuid.New().String(),
		UserID:                 userID,
		Tier:                   tier,
		Status:                 model.ContractActive,
		GuaranteedInterviews:   tp.GuaranteedInterviews,
		DeadlineDays:           tp.DeadlineDays,
		MinConfidenceThreshold: tp.MinConfidenceThreshold,
		Price:                  tp.Price,
		PaymentRef:             paymentRef,
		StartDate:              now,
		EndDate:                now.AddDate(0, 0, tp.DeadlineDays),
		Eligibility:            result,
		CreatedAt:              now,
	}

	if err := s.store.CreateContract(contract); err != nil {
		return nil, err
	}

	logger.Info(ctx, "contract created",
		"contract_id", contract.ID,
		"user_id", userID,
		"tier", string(tier),
		"end_date", contract.EndDate,
	)
	return contract, nil
}

// Extend pushes the effective end date out by days. Used both for user
// purchases of extra time and for service-extension remedies.
func (s *ContractService) Extend(ctx context.Context, contractID string, days int, reason string) (*model.SLAContract, error) {
	if days <= 0 {
		return nil, fmt.Errorf("extension days must be positive, got %d", days)
	}

	c, err := s.store.UpdateContract(contractID, func(c *model.SLAContract) error {
		newEnd := c.EffectiveEndDate().AddDate(0, 0, days)
		c.ExtendedEndDate = &newEnd
		c.ExtensionDays += days
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "contract extended",
		"contract_id", contractID,
		"days", days,
		"reason", reason,
		"effective_end_date", c.EffectiveEndDate(),
	)
	return c, nil
}

// ExtendForUser extends the user's active contract.
func (s *ContractService) ExtendForUser(ctx context.Context, userID string, days int, reason string) (*model.SLAContract, error) {
	c, err := s.store.ActiveContractByUser(userID)
	if err != nil {
		return nil, err
	}
	return s.Extend(ctx, c.ID, days, reason)
}

// StatusView returns the derived read model for the user's most recent
// contract.
func (s *ContractService) StatusView(userID string) (*ContractView, error) {
	c, err := s.store.ContractByUser(userID)
	if err != nil {
		return nil, err
	}
	return s.View(c), nil
}

// View computes the derived fields for a contract.
func (s *ContractService) View(c *model.SLAContract) *ContractView {
	now := s.now()
	return &ContractView{
		ID:                   c.ID,
		UserID:               c.UserID,
		Tier:                 c.Tier,
		Status:               c.Status,
		GuaranteedInterviews: c.GuaranteedInterviews,
		DeadlineDays:         c.DeadlineDays,
		Price:                c.Price,
		StartDate:            c.StartDate,
		EndDate:              c.EndDate,
		EffectiveEndDate:     c.EffectiveEndDate(),
		ExtensionDays:        c.ExtensionDays,
		DaysRemaining:        c.DaysRemaining(now),
		ProgressPercentage:   c.ProgressPercentage(),
		ResponseRate:         c.ResponseRate(),
		InterviewRate:        c.InterviewRate(),
		IsGuaranteeMet:       c.IsGuaranteeMet(),
		Counters:             c.Counters,
	}
}
