package provider

import (
	"strings"

	"github.com/basesub/subscriptions/internal/domain"
)

// pattern is one substring → ErrorCode rule. Checked in order; first
// match wins. This is the one place in the system where dynamic,
// string-matching classification of vendor errors lives — every other
// component sees only domain.ErrorCode (spec §9).
type pattern struct {
	substr string
	status int
	code   domain.ErrorCode
}

var vendorPatterns = []pattern{
	{"transfer amount exceeds balance", 402, domain.ErrInsufficientBalance},
	{"insufficient balance", 402, domain.ErrInsufficientBalance},
	{"exceeds allowance", 402, domain.ErrInsufficientSpendingAllowance},
	{"insufficient spending allowance", 402, domain.ErrInsufficientSpendingAllowance},
	{"spend permission revoked", 402, domain.ErrPermissionRevoked},
	{"permission revoked", 402, domain.ErrPermissionRevoked},
	{"spend permission expired", 402, domain.ErrPermissionExpired},
	{"permission expired", 402, domain.ErrPermissionExpired},
	{"permission not found", 404, domain.ErrPermissionNotFound},
	{"user operation failed", 409, domain.ErrUserOperationFailed},
	{"user operation reverted", 409, domain.ErrUserOperationFailed},
	{"bundler rejected", 409, domain.ErrUserOperationFailed},
	{"service unavailable", 503, domain.ErrUpstreamServiceError},
	{"timeout", 503, domain.ErrUpstreamServiceError},
	{"timed out", 503, domain.ErrUpstreamServiceError},
	{"gateway timeout", 503, domain.ErrUpstreamServiceError},
	{"rate limit", 503, domain.ErrUpstreamServiceError},
}

// ClassifyVendorError maps a raw vendor message (and, when available,
// an HTTP status the vendor returned) to a domain.HTTPError. Unmatched
// messages fall back by status: 503/504 to UPSTREAM_SERVICE_ERROR, no
// status (0) to GENERIC_PERMISSION_ERROR, anything else to the opaque
// PAYMENT_FAILED class, rather than leaking vendor text as a specific
// code.
func ClassifyVendorError(vendorMessage string, vendorStatus int) *domain.HTTPError {
	lower := strings.ToLower(vendorMessage)
	for _, p := range vendorPatterns {
		if strings.Contains(lower, p.substr) {
			return domain.NewHTTPError(p.status, p.code, vendorMessage)
		}
	}
	if vendorStatus == 503 || vendorStatus == 504 {
		return domain.NewHTTPError(503, domain.ErrUpstreamServiceError, vendorMessage)
	}
	if vendorStatus == 0 {
		return domain.NewHTTPError(500, domain.ErrGenericPermissionError, vendorMessage)
	}
	return domain.NewHTTPError(402, domain.ErrPaymentFailed, vendorMessage)
}
