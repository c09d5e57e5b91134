// Package dunning implements the pure decision function (C3) that
// classifies a failed charge into a follow-up action. No I/O: every
// field it needs is passed in, and every result is just data for the
// caller (OrderProcessor) to act on.
package dunning

import (
	"time"

	"github.com/basesub/subscriptions/internal/domain"
)

// MaxAttempts is the number of retry attempts allowed before a
// retryable failure is treated as exhausted.
const MaxAttempts = 4

// RetryIntervalDays is the cumulative-days-from-first-failure retry
// schedule. Index i is the delay applied for the (i+1)th attempt.
var RetryIntervalDays = [MaxAttempts]int{2, 7, 14, 21}

var retryAttemptLabels = [MaxAttempts]string{"First retry", "Second retry", "Third retry", "Final retry"}

// ActionType is the kind of follow-up DunningPolicy.Decide prescribes.
type ActionType string

const (
	ActionTerminal            ActionType = "terminal"
	ActionRetry               ActionType = "retry"
	ActionMaxRetriesExhausted ActionType = "max_retries_exhausted"
	ActionUpstreamError       ActionType = "upstream_error"
	ActionUserOperationFailed ActionType = "user_operation_failed"
	ActionOther               ActionType = "other_error"
)

// Action is the decision returned by Decide.
type Action struct {
	Type            ActionType
	Status          domain.SubscriptionStatus
	ScheduleRetry   bool
	CreateNextOrder bool
	NextRetryAt     time.Time
	AttemptNumber   int32
	AttemptLabel    string
	IsUpstreamError bool
}

// Input is everything Decide needs to classify one failed charge.
type Input struct {
	Error           *domain.HTTPError
	CurrentAttempts int32
	FailureDate     time.Time
}

// Decide classifies a failed charge attempt into the follow-up action
// the processor must take. Classification order is significant —
// first match wins (spec §4.3).
func Decide(in Input) Action {
	code := in.Error.Code

	switch code {
	case domain.ErrPermissionRevoked, domain.ErrPermissionExpired:
		return Action{Type: ActionTerminal, Status: domain.SubscriptionCanceled, ScheduleRetry: false, CreateNextOrder: false}

	case domain.ErrInsufficientBalance, domain.ErrInsufficientSpendingAllowance:
		if in.CurrentAttempts < MaxAttempts {
			days := RetryIntervalDays[in.CurrentAttempts]
			return Action{
				Type:          ActionRetry,
				Status:        domain.SubscriptionPastDue,
				ScheduleRetry: true,
				NextRetryAt:   in.FailureDate.Add(time.Duration(days) * 24 * time.Hour),
				AttemptNumber: in.CurrentAttempts + 1,
				AttemptLabel:  retryAttemptLabels[in.CurrentAttempts],
			}
		}
		return Action{Type: ActionMaxRetriesExhausted, Status: domain.SubscriptionUnpaid}

	case domain.ErrUpstreamServiceError:
		return Action{Type: ActionUpstreamError, Status: domain.SubscriptionActive, IsUpstreamError: true}

	case domain.ErrUserOperationFailed:
		return Action{Type: ActionUserOperationFailed, Status: domain.SubscriptionActive, CreateNextOrder: false}

	default:
		return Action{Type: ActionOther, Status: domain.SubscriptionActive, CreateNextOrder: true}
	}
}
