// Package baseprovider is the HTTP-backed SubscriptionProvider for a
// single spend-permission network: a thin x-api-key client in the
// shape of the pack's actalink client, wired to the domain error
// taxonomy instead of returning raw vendor errors.
package baseprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/basesub/subscriptions/internal/domain"
	"github.com/basesub/subscriptions/internal/provider"
)

// Client is a SubscriptionProvider backed by one vendor's REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	name       string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default *http.Client (e.g. for custom
// timeouts or transport-level tracing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New builds a Client for baseURL, identified in Subscription.Provider
// as name (e.g. "base-mainnet").
func New(name, baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		apiKey:     apiKey,
		name:       name,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return c.name }

// ValidateID is a format-only check — no network call, per §4.2.
func (c *Client) ValidateID(id string) bool {
	_, ok := domain.ParseSubscriptionID(id)
	return ok
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		buf = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, domain.NewHTTPError(503, domain.ErrUpstreamServiceError, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		vendorMessage := "unknown error occurred"
		if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr == nil && errResp.Error != "" {
			vendorMessage = errResp.Error
		}
		return nil, resp.StatusCode, provider.ClassifyVendorError(vendorMessage, resp.StatusCode)
	}

	return respBody, resp.StatusCode, nil
}

type statusResponse struct {
	PermissionExists        bool   `json:"permissionExists"`
	IsSubscribed            bool   `json:"isSubscribed"`
	SubscriptionOwner       string `json:"subscriptionOwner"`
	RecurringCharge         string `json:"recurringCharge"`
	RemainingChargeInPeriod string `json:"remainingChargeInPeriod"`
	CurrentPeriodStart      int64  `json:"currentPeriodStart"`
	NextPeriodStart         *int64 `json:"nextPeriodStart"`
	PeriodInDays            int32  `json:"periodInDays"`
}

func (c *Client) GetStatus(ctx context.Context, id domain.SubscriptionID, testnet bool) (*provider.Status, error) {
	path := fmt.Sprintf("/api/subscription/%s/status?testnet=%t", id.String(), testnet)
	body, _, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var sr statusResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &provider.Status{
		PermissionExists:        sr.PermissionExists,
		IsSubscribed:            sr.IsSubscribed,
		SubscriptionOwner:       sr.SubscriptionOwner,
		RecurringCharge:         sr.RecurringCharge,
		RemainingChargeInPeriod: sr.RemainingChargeInPeriod,
		CurrentPeriodStart:      sr.CurrentPeriodStart,
		NextPeriodStart:         sr.NextPeriodStart,
		PeriodInDays:            sr.PeriodInDays,
	}, nil
}

type chargeRequest struct {
	SubscriptionID string `json:"subscriptionId"`
	Amount         string `json:"amount"`
	Recipient      string `json:"recipient"`
	Testnet        bool   `json:"testnet"`
}

type chargeResponse struct {
	TransactionHash string `json:"transactionHash"`
	GasUsed         *int64 `json:"gasUsed"`
}

func (c *Client) Charge(ctx context.Context, in provider.ChargeInput) (*provider.ChargeResult, error) {
	if !common.IsHexAddress(in.Recipient) {
		return nil, domain.NewHTTPError(400, domain.ErrInvalidFormat, "recipient is not a valid hex address")
	}
	recipient := common.HexToAddress(in.Recipient).Hex()

	body, _, err := c.doRequest(ctx, http.MethodPost, "/api/charge", chargeRequest{
		SubscriptionID: in.SubscriptionID.String(),
		Amount:         in.Amount,
		Recipient:      recipient,
		Testnet:        in.Testnet,
	})
	if err != nil {
		return nil, err
	}
	var cr chargeResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("decode charge response: %w", err)
	}
	return &provider.ChargeResult{TransactionHash: cr.TransactionHash, GasUsed: cr.GasUsed}, nil
}

type revokeRequest struct {
	SubscriptionID string `json:"subscriptionId"`
	Testnet        bool   `json:"testnet"`
}

type revokeResponse struct {
	TransactionHash string `json:"transactionHash"`
}

func (c *Client) Revoke(ctx context.Context, id domain.SubscriptionID, testnet bool) (*provider.RevokeResult, error) {
	body, _, err := c.doRequest(ctx, http.MethodPost, "/api/revoke", revokeRequest{
		SubscriptionID: id.String(),
		Testnet:        testnet,
	})
	if err != nil {
		return nil, err
	}
	var rr revokeResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, fmt.Errorf("decode revoke response: %w", err)
	}
	return &provider.RevokeResult{TransactionHash: rr.TransactionHash}, nil
}

var _ provider.SubscriptionProvider = (*Client)(nil)
