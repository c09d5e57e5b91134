package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/basesub/subscriptions/internal/domain"
)

func TestClassifyVendorError(t *testing.T) {
	cases := []struct {
		name    string
		message string
		status  int
		want    domain.ErrorCode
	}{
		{"balance", "Transfer amount exceeds balance of wallet", 402, domain.ErrInsufficientBalance},
		{"allowance", "spend exceeds allowance for this period", 402, domain.ErrInsufficientSpendingAllowance},
		{"revoked", "Spend permission revoked by owner", 402, domain.ErrPermissionRevoked},
		{"expired", "Spend permission expired", 402, domain.ErrPermissionExpired},
		{"bundler", "user operation failed during simulation", 402, domain.ErrUserOperationFailed},
		{"upstream", "service unavailable, please retry", 503, domain.ErrUpstreamServiceError},
		{"unmatched", "something the vendor made up", 402, domain.ErrPaymentFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyVendorError(tc.message, tc.status)
			assert.Equal(t, tc.want, got.Code)
		})
	}
}

func TestClassifyVendorError_NoStatusUnmatchedIsGenericPermissionError(t *testing.T) {
	got := ClassifyVendorError("dial tcp: connection refused", 0)
	assert.Equal(t, domain.ErrGenericPermissionError, got.Code)
}
