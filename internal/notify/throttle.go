package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bloodbank/internal/core"
)

const throttleKeyPrefix = "lowstock:alerted:"

// Throttle suppresses repeated low-stock alerts for the same blood type
// within a time window, so a run of issuances below the threshold produces
// one notification instead of one per issuance. The window claim is a
// SETNX with TTL, atomic across processes.
type Throttle struct {
	next   Notifier
	client *redis.Client
	window time.Duration
}

func NewThrottle(next Notifier, client *redis.Client, window time.Duration) *Throttle {
	return &Throttle{next: next, client: client, window: window}
}

func (t *Throttle) NotifyLowStock(ctx context.Context, bt core.BloodType, remaining int) error {
	key := throttleKeyPrefix + string(bt)
	ok, err := t.client.SetNX(ctx, key, 1, t.window).Result()
	if err != nil {
		// Throttle store down: fail open and deliver the alert.
		return t.next.NotifyLowStock(ctx, bt, remaining)
	}
	if !ok {
		return nil
	}
	if err := t.next.NotifyLowStock(ctx, bt, remaining); err != nil {
		// Release the claim so the next trigger retries delivery.
		t.client.Del(ctx, key)
		return fmt.Errorf("throttled notify: %w", err)
	}
	return nil
}
