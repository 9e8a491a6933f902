package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const deliveryBatchSize = 50

// PaidOrderDeliverer delivers paid orders that are still waiting for stock.
type PaidOrderDeliverer interface {
	DeliverPaid(ctx context.Context, limit int) (int, error)
}

// DeliveryWorker periodically retries fulfillment of paid, undelivered
// orders. Orders that are still out of stock stay paid for the next tick.
type DeliveryWorker struct {
	orders   PaidOrderDeliverer
	interval time.Duration
}

// NewDeliveryWorker constructs a DeliveryWorker.
func NewDeliveryWorker(orders PaidOrderDeliverer, interval time.Duration) *DeliveryWorker {
	return &DeliveryWorker{
		orders:   orders,
		interval: interval,
	}
}

// Start begins the periodic retry loop until context is canceled.
func (w *DeliveryWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting delivery retry worker")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Delivery retry worker stopped")
			return
		}
	}
}

func (w *DeliveryWorker) run(ctx context.Context) {
	delivered, err := w.orders.DeliverPaid(ctx, deliveryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Failed to retry paid order deliveries")
		return
	}
	if delivered > 0 {
		log.Info().Int("delivered", delivered).Msg("Delivered waiting paid orders")
	}
}
