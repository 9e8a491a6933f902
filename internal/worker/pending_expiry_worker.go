package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const expiryBatchSize = 200

// PendingOrderExpirer cancels pending orders older than a TTL.
type PendingOrderExpirer interface {
	ExpireStalePending(ctx context.Context, ttl time.Duration, limit int) (int, error)
}

// PendingExpiryWorker cancels pending orders nobody paid for.
type PendingExpiryWorker struct {
	orders   PendingOrderExpirer
	ttl      time.Duration
	interval time.Duration
}

// NewPendingExpiryWorker constructs a PendingExpiryWorker.
func NewPendingExpiryWorker(orders PendingOrderExpirer, ttl, interval time.Duration) *PendingExpiryWorker {
	return &PendingExpiryWorker{
		orders:   orders,
		ttl:      ttl,
		interval: interval,
	}
}

// Start begins the periodic expiry loop until context is canceled.
func (w *PendingExpiryWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Dur("ttl", w.ttl).Msg("Starting pending order expiry worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Pending order expiry worker stopped")
			return
		}
	}
}

func (w *PendingExpiryWorker) run(ctx context.Context) {
	for {
		n, err := w.orders.ExpireStalePending(ctx, w.ttl, expiryBatchSize)
		if err != nil {
			log.Error().Err(err).Msg("Failed to expire pending orders")
			return
		}
		if n > 0 {
			log.Info().Int("expired", n).Msg("Cancelled stale pending orders")
		}
		// A short batch means the backlog is drained.
		if n < expiryBatchSize || ctx.Err() != nil {
			return
		}
	}
}
