// Package scheduler defines the per-order durable timer (C4): exactly
// one fire at dueAt per order, re-armable, crash-recoverable.
package scheduler

import (
	"context"
	"time"
)

// DueOrder is the payload handed to the process-order entry point
// when a timer fires.
type DueOrder struct {
	OrderID  int64
	Provider string
}

// Scheduler arms, re-arms, and cancels per-order timers. On fire, it
// invokes Handler with the order id. If the process loses the firing
// (crash), implementations MUST re-fire on recovery at-least-once —
// processing is expected to be idempotent (spec §4.5).
type Scheduler interface {
	// Set arms exactly one fire for orderID at dueAt. Re-arming (a
	// second Set for the same orderID) replaces the prior schedule
	// atomically.
	Set(ctx context.Context, orderID int64, dueAt time.Time, providerName string) error

	// Update is Set for an already-armed order.
	Update(ctx context.Context, orderID int64, dueAt time.Time, providerName string) error

	// Delete cancels the timer. Idempotent.
	Delete(ctx context.Context, orderID int64) error
}

// Handler processes one fired order. Implementations of Scheduler
// call it exactly once per fire (at-least-once across crashes).
type Handler func(ctx context.Context, due DueOrder) error
