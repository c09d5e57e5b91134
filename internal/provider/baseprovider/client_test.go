package baseprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basesub/subscriptions/internal/domain"
	"github.com/basesub/subscriptions/internal/provider"
)

func TestValidateID(t *testing.T) {
	c := New("base-mainnet", "https://example.invalid", "key")
	assert.True(t, c.ValidateID("0x"+strings.Repeat("0", 64)))
	assert.False(t, c.ValidateID("not-an-id"))
}

func TestCharge_RejectsInvalidRecipient(t *testing.T) {
	c := New("base-mainnet", "https://example.invalid", "key")
	_, err := c.Charge(context.Background(), provider.ChargeInput{Recipient: "not-an-address"})
	require.Error(t, err)
	var httpErr *domain.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, domain.ErrInvalidFormat, httpErr.Code)
}

func TestCharge_MapsVendorErrorToDomainCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "transfer amount exceeds balance"})
	}))
	defer srv.Close()

	c := New("base-mainnet", srv.URL, "secret")
	var id domain.SubscriptionID
	_, err := c.Charge(context.Background(), provider.ChargeInput{
		SubscriptionID: id,
		Amount:         "1000000",
		Recipient:      "0x000000000000000000000000000000000000dEaD",
		Testnet:        true,
	})
	require.Error(t, err)
	var httpErr *domain.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, domain.ErrInsufficientBalance, httpErr.Code)
}

func TestGetStatus_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"permissionExists": true,
			"isSubscribed":     true,
			"recurringCharge":  "5000000",
			"periodInDays":     30,
		})
	}))
	defer srv.Close()

	c := New("base-mainnet", srv.URL, "secret")
	var id domain.SubscriptionID
	status, err := c.GetStatus(context.Background(), id, false)
	require.NoError(t, err)
	assert.True(t, status.IsSubscribed)
	assert.Equal(t, int64(30*86400), status.PeriodInSeconds())
}
