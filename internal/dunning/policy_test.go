package dunning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/basesub/subscriptions/internal/domain"
)

func TestDecide_TerminalErrorsCancelImmediately(t *testing.T) {
	for _, code := range []domain.ErrorCode{domain.ErrPermissionRevoked, domain.ErrPermissionExpired} {
		action := Decide(Input{Error: domain.NewHTTPError(402, code, "x"), CurrentAttempts: 0, FailureDate: time.Now()})
		assert.Equal(t, ActionTerminal, action.Type)
		assert.Equal(t, domain.SubscriptionCanceled, action.Status)
		assert.False(t, action.ScheduleRetry)
	}
}

func TestDecide_RetryableSchedulesNextAttempt(t *testing.T) {
	failureDate := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	action := Decide(Input{
		Error:           domain.NewHTTPError(402, domain.ErrInsufficientBalance, "x"),
		CurrentAttempts: 0,
		FailureDate:     failureDate,
	})
	assert.Equal(t, ActionRetry, action.Type)
	assert.Equal(t, domain.SubscriptionPastDue, action.Status)
	assert.Equal(t, int32(1), action.AttemptNumber)
	assert.Equal(t, "First retry", action.AttemptLabel)
	assert.Equal(t, failureDate.Add(2*24*time.Hour), action.NextRetryAt)
}

func TestDecide_RetryableExhaustedGoesUnpaid(t *testing.T) {
	action := Decide(Input{
		Error:           domain.NewHTTPError(402, domain.ErrInsufficientSpendingAllowance, "x"),
		CurrentAttempts: MaxAttempts,
		FailureDate:     time.Now(),
	})
	assert.Equal(t, ActionMaxRetriesExhausted, action.Type)
	assert.Equal(t, domain.SubscriptionUnpaid, action.Status)
}

func TestDecide_UpstreamErrorDefersWithoutSideEffects(t *testing.T) {
	action := Decide(Input{Error: domain.NewHTTPError(503, domain.ErrUpstreamServiceError, "x"), FailureDate: time.Now()})
	assert.Equal(t, ActionUpstreamError, action.Type)
	assert.True(t, action.IsUpstreamError)
	assert.Equal(t, domain.SubscriptionActive, action.Status)
}

func TestDecide_UserOperationFailedDoesNotCreateNextOrder(t *testing.T) {
	action := Decide(Input{Error: domain.NewHTTPError(402, domain.ErrUserOperationFailed, "x"), FailureDate: time.Now()})
	assert.Equal(t, ActionUserOperationFailed, action.Type)
	assert.False(t, action.CreateNextOrder)
}

func TestDecide_OtherErrorKeepsSubscriptionAliveAndAdvancesCycle(t *testing.T) {
	action := Decide(Input{Error: domain.NewHTTPError(500, domain.ErrUnknownPaymentError, "x"), FailureDate: time.Now()})
	assert.Equal(t, ActionOther, action.Type)
	assert.True(t, action.CreateNextOrder)
	assert.Equal(t, domain.SubscriptionActive, action.Status)
}

func TestRetryIntervalDays_MatchesFixedSchedule(t *testing.T) {
	assert.Equal(t, [MaxAttempts]int{2, 7, 14, 21}, RetryIntervalDays)
}
