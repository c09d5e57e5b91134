// Package redisalarm implements scheduler.Scheduler as a Redis sorted
// set: members are order ids scored by due-at unix seconds, with a
// parallel hash carrying each order's provider tag. A dispatcher
// polling loop claims due members one at a time (ZRANGEBYSCORE, then
// ZREM; only the caller whose ZREM removes the member proceeds) and
// invokes the handler at-least-once.
package redisalarm

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/logger"
	"github.com/basesub/subscriptions/internal/metrics"
	"github.com/basesub/subscriptions/internal/scheduler"
)

const (
	defaultZSetKey    = "order_schedule:due"
	defaultProviderHK = "order_schedule:provider"
)

// Scheduler is the Redis-backed scheduler.Scheduler.
type Scheduler struct {
	client     *redis.Client
	zsetKey    string
	providerHK string
}

// New builds a Scheduler against an already-configured redis.Client.
func New(client *redis.Client) *Scheduler {
	return &Scheduler{client: client, zsetKey: defaultZSetKey, providerHK: defaultProviderHK}
}

func orderMember(orderID int64) string { return strconv.FormatInt(orderID, 10) }

func (s *Scheduler) Set(ctx context.Context, orderID int64, dueAt time.Time, providerName string) error {
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, s.zsetKey, redis.Z{Score: float64(dueAt.Unix()), Member: orderMember(orderID)})
	pipe.HSet(ctx, s.providerHK, orderMember(orderID), providerName)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("arm order timer: %w", err)
	}
	return nil
}

// Update is Set for an already-armed order — ZAdd on an existing
// member atomically replaces its score.
func (s *Scheduler) Update(ctx context.Context, orderID int64, dueAt time.Time, providerName string) error {
	return s.Set(ctx, orderID, dueAt, providerName)
}

func (s *Scheduler) Delete(ctx context.Context, orderID int64) error {
	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, s.zsetKey, orderMember(orderID))
	pipe.HDel(ctx, s.providerHK, orderMember(orderID))
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("cancel order timer: %w", err)
	}
	return nil
}

var _ scheduler.Scheduler = (*Scheduler)(nil)

// Dispatcher polls the sorted set and invokes handler for every order
// whose score (dueAt) has passed. Intended to run as the single
// process behind cmd/scheduler, polling on a short interval.
type Dispatcher struct {
	sched    *Scheduler
	handler  scheduler.Handler
	interval time.Duration
	batch    int64
}

// NewDispatcher builds a Dispatcher polling every interval, claiming
// up to batch due orders per poll.
func NewDispatcher(sched *Scheduler, handler scheduler.Handler, interval time.Duration, batch int64) *Dispatcher {
	return &Dispatcher{sched: sched, handler: handler, interval: interval, batch: batch}
}

// Run blocks, polling until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pollOnce(ctx)
		}
	}
}

// pollOnce claims due members one at a time (ZRANGEBYSCORE for the
// earliest due member, then ZREM) so a crash between claim and handler
// invocation only loses that single order's
// timer — the order itself re-fires from the scheduler's caller
// (a fresh Set) since processing is idempotent.
func (d *Dispatcher) pollOnce(ctx context.Context) {
	now := float64(time.Now().Unix())
	for i := int64(0); i < d.batch; i++ {
		members, err := d.sched.client.ZRangeByScoreWithScores(ctx, d.sched.zsetKey, &redis.ZRangeBy{
			Min: "-inf", Max: fmt.Sprintf("%f", now), Offset: 0, Count: 1,
		}).Result()
		if err != nil {
			logger.Error("dispatcher: zrangebyscore failed", zap.Error(err))
			return
		}
		if len(members) == 0 {
			return
		}
		member := members[0].Member.(string)

		removed, err := d.sched.client.ZRem(ctx, d.sched.zsetKey, member).Result()
		if err != nil {
			logger.Error("dispatcher: zrem failed", zap.Error(err))
			return
		}
		if removed == 0 {
			continue // another dispatcher instance claimed it first
		}

		orderID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			logger.Error("dispatcher: malformed order member", zap.String("member", member))
			continue
		}
		providerName, err := d.sched.client.HGet(ctx, d.sched.providerHK, member).Result()
		if err != nil && err != redis.Nil {
			logger.Error("dispatcher: hget provider failed", zap.Error(err))
		}
		d.sched.client.HDel(ctx, d.sched.providerHK, member)
		metrics.SchedulerClaimedOrders.Inc()

		if err := d.handler(ctx, scheduler.DueOrder{OrderID: orderID, Provider: providerName}); err != nil {
			logger.Error("dispatcher: handler failed", zap.Int64("order_id", orderID), zap.Error(err))
		}
	}
}
