package exchange

import (
	"context"
	"time"

	"github.com/exbridge/exbridge/internal/schema"
)

// DefaultConfirmationDelay is how long to let a market order settle
// before fetching its detail. Venues acknowledge placement before the
// fill figures are queryable; reading too early returns zero executed
// quantities.
const DefaultConfirmationDelay = 500 * time.Millisecond

// ConfirmOrder waits the bounded post-submit delay, then fetches the
// order detail. The wait is cancellable through ctx.
func ConfirmOrder(ctx context.Context, delay time.Duration, fetch func(ctx context.Context) (schema.Order, error)) (schema.Order, error) {
	if delay <= 0 {
		delay = DefaultConfirmationDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return schema.Order{}, ctx.Err()
	case <-timer.C:
	}
	return fetch(ctx)
}
