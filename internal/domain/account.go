package domain

import "time"

// Account identifies a merchant. Keyed by a monotonic internal id and
// a secondary checksummed wallet address; never destroyed by the
// core.
type Account struct {
	ID                     int64
	WalletAddress          string // checksummed 20-byte EVM address
	ExternalAuthUserID     *string
	SubscriptionOwnerWallet *string // set-once after creation
	CreatedAt              time.Time
}
