package delivery

import (
	"context"

	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/webhook/queue"
)

// DLQConsumer drains the dead-letter queue: per spec §4.6, it logs
// and acknowledges — no automatic reprocessing.
type DLQConsumer struct {
	logger *zap.Logger
}

// NewDLQConsumer builds a DLQConsumer.
func NewDLQConsumer(logger *zap.Logger) *DLQConsumer {
	return &DLQConsumer{logger: logger}
}

// Handle logs a permanently-failed delivery. The caller acks the
// underlying transport message regardless of the return value here —
// Handle never itself fails.
func (c *DLQConsumer) Handle(_ context.Context, d queue.Delivery, lastError string) {
	c.logger.Error("webhook delivery permanently failed",
		zap.String("subscription_id", d.SubscriptionID),
		zap.String("url", d.URL),
		zap.Int("attempts", d.Attempt+1),
		zap.String("last_error", lastError))
}
