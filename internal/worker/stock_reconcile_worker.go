package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/onhand_api/internal/models"
)

// StockReconciler corrects stock counters that drifted from a recount.
type StockReconciler interface {
	ReconcileStock(ctx context.Context) ([]models.StockCorrection, error)
}

// StockReconcileWorker periodically recounts stock.
type StockReconcileWorker struct {
	inventory StockReconciler
	interval  time.Duration
}

// NewStockReconcileWorker constructs a StockReconcileWorker.
func NewStockReconcileWorker(inventory StockReconciler, interval time.Duration) *StockReconcileWorker {
	return &StockReconcileWorker{
		inventory: inventory,
		interval:  interval,
	}
}

// Start begins the periodic reconcile loop and listens for context cancellation.
func (w *StockReconcileWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting stock reconcile worker")

	// Run immediately on start
	w.run(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Stock reconcile worker stopped")
			return
		}
	}
}

func (w *StockReconcileWorker) run(ctx context.Context) {
	start := time.Now()
	corrections, err := w.inventory.ReconcileStock(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to reconcile stock")
		return
	}
	log.Debug().Int("corrected", len(corrections)).Dur("duration", time.Since(start)).Msg("Stock reconcile completed")
}
