package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/google/uuid"
)

// Tracker keeps the ephemeral per-request bookkeeping the settlement flow
// needs for alerting: which orders have an outstanding payment link, and how
// many gateway failures a user has accumulated. It is redis-backed so the
// data survives process restarts and scale-out; TTLs are the eviction policy.
type Tracker struct {
	client     *redis.Client
	pendingTTL time.Duration
	failureTTL time.Duration
}

func New(client *redis.Client) *Tracker {
	return &Tracker{
		client:     client,
		pendingTTL: 30 * time.Minute,
		failureTTL: 24 * time.Hour,
	}
}

func pendingKey(orderID uuid.UUID) string {
	return fmt.Sprintf("pending-order:%s", orderID)
}

func failureKey(userID uuid.UUID) string {
	return fmt.Sprintf("payment-failures:%s", userID)
}

// TrackPending records an order as awaiting payment. The TTL matches the
// payment link lifetime, so abandoned orders evict themselves.
func (t *Tracker) TrackPending(ctx context.Context, orderID uuid.UUID) error {
	if err := t.client.Set(ctx, pendingKey(orderID), time.Now().Unix(), t.pendingTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (t *Tracker) ClearPending(ctx context.Context, orderID uuid.UUID) error {
	if err := t.client.Del(ctx, pendingKey(orderID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (t *Tracker) IsPending(ctx context.Context, orderID uuid.UUID) (bool, error) {
	err := t.client.Get(ctx, pendingKey(orderID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}
	return true, nil
}

// RecordFailure bumps the user's failure counter and returns the new count.
func (t *Tracker) RecordFailure(ctx context.Context, userID uuid.UUID) (int64, error) {
	key := failureKey(userID)
	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr failed: %w", err)
	}
	if count == 1 {
		if err := t.client.Expire(ctx, key, t.failureTTL).Err(); err != nil {
			return count, fmt.Errorf("redis expire failed: %w", err)
		}
	}
	return count, nil
}

func (t *Tracker) FailureCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := t.client.Get(ctx, failureKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get failed: %w", err)
	}
	return count, nil
}
