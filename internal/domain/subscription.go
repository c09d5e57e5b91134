package domain

import (
	"encoding/hex"
	"time"
)

// SubscriptionID is the 32-byte on-chain permission hash identifying a
// subscription.
type SubscriptionID [32]byte

// String renders the id as a lowercase 0x-prefixed hex string.
func (id SubscriptionID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// ParseSubscriptionID parses a 0x-prefixed or bare 64-char hex string
// into a SubscriptionID. Format validation only — no network calls;
// this is the core half of Provider.ValidateID (§4.2).
func ParseSubscriptionID(s string) (SubscriptionID, bool) {
	var id SubscriptionID
	if len(s) == 66 && s[0:2] == "0x" {
		s = s[2:]
	}
	if len(s) != 64 {
		return id, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, false
	}
	copy(id[:], b)
	return id, true
}

// SubscriptionStatus is one state in the lifecycle state machine of
// spec §3.
type SubscriptionStatus string

const (
	SubscriptionProcessing SubscriptionStatus = "processing"
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionPastDue    SubscriptionStatus = "past_due"
	SubscriptionCanceled   SubscriptionStatus = "canceled"
	SubscriptionUnpaid     SubscriptionStatus = "unpaid"
	SubscriptionIncomplete SubscriptionStatus = "incomplete"
)

// Terminal reports whether no further transition is possible.
func (s SubscriptionStatus) Terminal() bool {
	switch s {
	case SubscriptionCanceled, SubscriptionUnpaid, SubscriptionIncomplete:
		return true
	default:
		return false
	}
}

// Revocable reports whether RevokeSubscription (§4.7) may act on a
// subscription in this status.
func (s SubscriptionStatus) Revocable() bool {
	switch s {
	case SubscriptionProcessing, SubscriptionActive, SubscriptionPastDue, SubscriptionIncomplete:
		return true
	default:
		return false
	}
}

// Chargeable reports whether OrderProcessor may attempt a charge
// against a subscription in this status (§4.5 step 2).
func (s SubscriptionStatus) Chargeable() bool {
	return s == SubscriptionActive || s == SubscriptionPastDue
}

// Subscription is keyed by the on-chain permission hash (SubscriptionID).
type Subscription struct {
	ID                 SubscriptionID
	Status             SubscriptionStatus
	AccountID          int64
	BeneficiaryAddress string
	Provider           string
	Testnet            bool
	CreatedAt          time.Time
	ModifiedAt         time.Time
}
