package service

import (
	"context"
	"time"

	"github.com/oks-citadel/apply-sla/pkg/logger"
)

// PaymentGateway moves money for refund and credit remedies. The real
// integration lives outside this service; the executor only depends on
// this interface.
type PaymentGateway interface {
	Refund(ctx context.Context, userID, contractID string, amount float64, reference string) error
	IssueCredit(ctx context.Context, userID string, amount float64, code string, expiresAt time.Time) error
}

// LoggingGateway is the reference gateway: it records the instruction and
// reports success without moving money.
type LoggingGateway struct{}

func NewLoggingGateway() *LoggingGateway {
	return &LoggingGateway{}
}

func (g *LoggingGateway) Refund(ctx context.Context, userID, contractID string, amount float64, reference string) error {
	logger.Info(ctx, "refund instructed",
		"user_id", userID,
		"contract_id", contractID,
		"amount", amount,
		"reference", reference,
	)
	return nil
}

func (g *LoggingGateway) IssueCredit(ctx context.Context, userID string, amount float64, code string, expiresAt time.Time) error {
	logger.Info(ctx, "service credit issued",
		"user_id", userID,
		"amount", amount,
		"code", code,
		"expires_at", expiresAt,
	)
	return nil
}
