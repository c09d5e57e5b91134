package domain

import "time"

// Webhook is the at-most-one-per-account destination for
// subscription.updated deliveries.
type Webhook struct {
	AccountID  int64 // primary key
	URL        string
	Secret     string
	Enabled    bool
	DeletedAt  *time.Time
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// Deleted reports whether this webhook has been soft-deleted.
func (w *Webhook) Deleted() bool { return w.DeletedAt != nil }
