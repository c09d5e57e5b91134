// Package provider defines the pluggable on-chain capability (C2):
// one vendor integration per network, translating every vendor error
// to the domain.ErrorCode taxonomy before it reaches the core.
package provider

import (
	"context"

	"github.com/basesub/subscriptions/internal/domain"
)

// Status is the permission state reported by the indexer for one
// subscription id.
type Status struct {
	PermissionExists bool
	IsSubscribed     bool

	// SubscriptionOwner is advisory/logging-only — never enforced
	// against the stored account wallet.
	SubscriptionOwner string

	RecurringCharge         string
	RemainingChargeInPeriod string
	CurrentPeriodStart      int64
	NextPeriodStart         *int64
	PeriodInDays            int32
}

// PeriodInSeconds converts PeriodInDays to integer seconds, floored,
// per §4.2.
func (s Status) PeriodInSeconds() int64 {
	return int64(s.PeriodInDays) * 86400
}

// ChargeInput is the argument to Charge. Recipient is always the
// subscription's beneficiary address — callers must not override it.
type ChargeInput struct {
	SubscriptionID domain.SubscriptionID
	Amount         string
	Recipient      string
	Testnet        bool
}

// ChargeResult is returned on a successful on-chain charge.
type ChargeResult struct {
	TransactionHash string
	GasUsed         *int64
}

// RevokeResult is returned on a successful on-chain revocation.
type RevokeResult struct {
	TransactionHash string
}

// SubscriptionProvider is the capability one on-chain network exposes
// to the core. Implementations MUST translate every vendor error into
// a *domain.HTTPError carrying a domain.ErrorCode — no raw vendor
// error may escape to the processor.
type SubscriptionProvider interface {
	// ValidateID is a format-only check, no network call.
	ValidateID(id string) bool

	GetStatus(ctx context.Context, id domain.SubscriptionID, testnet bool) (*Status, error)

	Charge(ctx context.Context, in ChargeInput) (*ChargeResult, error)

	// Revoke is idempotent: a caller that sees getStatus.IsSubscribed
	// already false is expected to skip calling it at all.
	Revoke(ctx context.Context, id domain.SubscriptionID, testnet bool) (*RevokeResult, error)

	// Name identifies this provider in Subscription.Provider.
	Name() string
}
