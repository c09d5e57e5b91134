package domain

import "fmt"

// ErrorCode is the taxonomy used consistently across the core: stored
// in Order.FailureReason, surfaced verbatim (when exposable) in
// webhook error.code, and mapped to an HTTP status at the API
// boundary.
type ErrorCode string

const (
	// Client validation. Rejected at the boundary; never reach the processor.
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrInvalidFormat  ErrorCode = "INVALID_FORMAT"

	// Auth/ownership. Rejected at the boundary.
	ErrInvalidAPIKey ErrorCode = "INVALID_API_KEY"
	ErrForbidden     ErrorCode = "FORBIDDEN"
	ErrNotFound      ErrorCode = "NOT_FOUND"

	// State conflict. Reported to caller; no retry.
	ErrSubscriptionExists    ErrorCode = "SUBSCRIPTION_EXISTS"
	ErrAccountExists         ErrorCode = "ACCOUNT_EXISTS"
	ErrSubscriptionNotActive ErrorCode = "SUBSCRIPTION_NOT_ACTIVE"
	ErrPermissionNotFound    ErrorCode = "PERMISSION_NOT_FOUND"

	// Payment — retryable. Dunning retry / max_retries_exhausted.
	ErrInsufficientBalance           ErrorCode = "INSUFFICIENT_BALANCE"
	ErrInsufficientSpendingAllowance ErrorCode = "INSUFFICIENT_SPENDING_ALLOWANCE"

	// Payment — terminal. Dunning terminal => canceled.
	ErrPermissionRevoked ErrorCode = "PERMISSION_REVOKED"
	ErrPermissionExpired ErrorCode = "PERMISSION_EXPIRED"

	// Payment — opaque. Dunning other_error => keep active, advance cycle.
	ErrPaymentFailed          ErrorCode = "PAYMENT_FAILED"
	ErrGenericPermissionError ErrorCode = "GENERIC_PERMISSION_ERROR"
	ErrUnknownPaymentError    ErrorCode = "UNKNOWN_PAYMENT_ERROR"

	// Bundler. Dunning user_operation_failed => no next order.
	ErrUserOperationFailed ErrorCode = "USER_OPERATION_FAILED"

	// Upstream. Retried via queue backoff, not dunning.
	ErrUpstreamServiceError ErrorCode = "UPSTREAM_SERVICE_ERROR"

	// Internal. Hidden from webhooks (replaced with a generic message).
	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

// ReasonSubscriptionCanceled is the Order.FailureReason stored on
// every non-terminal order CancelPendingOrders marks failed — not a
// payment-error taxonomy code, just the fixed reason spec §4.1
// prescribes for orders orphaned by a revoke.
const ReasonSubscriptionCanceled ErrorCode = "Subscription canceled"

// HTTPError is the typed error the core raises. The API layer maps it
// to an HTTP response; the webhook emitter sanitises non-exposable
// errors before delivery.
type HTTPError struct {
	Status  int
	Code    ErrorCode
	Message string
	Details map[string]any
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewHTTPError constructs an HTTPError with no details.
func NewHTTPError(status int, code ErrorCode, message string) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message}
}

// Exposable reports whether this error's code/message may be surfaced
// verbatim to a merchant (in an HTTP response or webhook payload).
// Only the payment classes (402) are exposable; everything else,
// especially INTERNAL_ERROR, is sanitised before it leaves the core.
func (e *HTTPError) Exposable() bool {
	return e.Status == 402
}

// genericInternalError is substituted for any non-exposable error
// before it is placed in a webhook payload. Its code is the literal
// "internal_error" spec §4.6 step 3 mandates for this substitution —
// distinct from the general ErrInternal taxonomy code, which API
// responses elsewhere in the core still report as INTERNAL_ERROR.
var genericInternalError = &HTTPError{
	Status:  500,
	Code:    "internal_error",
	Message: "An internal error occurred",
}

// Sanitize returns err unchanged if it is exposable, otherwise the
// generic internal-error stand-in (spec §4.6 step 3 / §7).
func Sanitize(err *HTTPError) *HTTPError {
	if err.Exposable() {
		return err
	}
	return genericInternalError
}
