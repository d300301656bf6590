package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oks-citadel/apply-sla/model"
)

var (
	// ErrDuplicateActiveContract is returned when a user who already has an
	// active contract tries to buy another one.
	ErrDuplicateActiveContract = errors.New("user already has an active contract")

	// ErrContractNotFound is returned by lookups and tracking calls against
	// a user or id with no matching contract.
	ErrContractNotFound = errors.New("contract not found")

	// ErrNoActiveContract is returned by tracking calls when the user has no
	// active contract to track against.
	ErrNoActiveContract = errors.New("no active contract for user")

	// ErrProgressNotFound is returned by verification against an unknown
	// progress event.
	ErrProgressNotFound = errors.New("progress event not found")

	ErrViolationNotFound = errors.New("violation not found")
	ErrRemedyNotFound    = errors.New("remedy not found")

	// ErrRemedyNotExecutable is returned when execute is invoked on a remedy
	// that is not pending or still awaits approval.
	ErrRemedyNotExecutable = errors.New("remedy is not executable")
)

// IneligibleError blocks contract creation and carries the failed check so
// callers can surface recommendations to the user.
type IneligibleError struct {
	Result model.EligibilityResult
}

func (e *IneligibleError) Error() string {
	if len(e.Result.FailedFields) == 0 {
		return "user is not eligible for this tier"
	}
	return fmt.Sprintf("user is not eligible for this tier: failed %s",
		strings.Join(e.Result.FailedFields, ", "))
}
