package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/onhand_api/internal/models"
	"github.com/GTDGit/onhand_api/internal/sse"
)

const publishTimeout = 5 * time.Second

// OrderNotifier publishes order events through a Publisher from a single
// background goroutine, so request paths never wait on the broker. Events are
// keyed by order id to keep each order's events in order.
type OrderNotifier struct {
	pub    Publisher
	queue  chan *sse.OrderEvent
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewOrderNotifier starts the publishing loop. Call Close to drain it.
func NewOrderNotifier(pub Publisher, buffer int) *OrderNotifier {
	if buffer <= 0 {
		buffer = 256
	}
	n := &OrderNotifier{
		pub:   pub,
		queue: make(chan *sse.OrderEvent, buffer),
	}
	n.wg.Add(1)
	go n.run()
	return n
}

func (n *OrderNotifier) NotifyOrderCreated(o *models.Order) {
	n.enqueue(sse.NewOrderEvent(sse.EventOrderCreated, o))
}

func (n *OrderNotifier) NotifyOrderStatusChanged(o *models.Order) {
	n.enqueue(sse.NewOrderEvent(sse.EventOrderStatusChanged, o))
}

func (n *OrderNotifier) NotifyOrderDelivered(o *models.Order) {
	n.enqueue(sse.NewOrderEvent(sse.EventOrderDelivered, o))
}

func (n *OrderNotifier) enqueue(ev *sse.OrderEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- ev:
	default:
		log.Warn().Str("order_id", ev.OrderID).Str("event", string(ev.Event)).Msg("order event queue full, dropping event")
	}
}

func (n *OrderNotifier) run() {
	defer n.wg.Done()
	for ev := range n.queue {
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Error().Err(err).Str("order_id", ev.OrderID).Msg("failed to marshal order event")
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err = n.pub.Publish(ctx, string(ev.Event), payload, ev.OrderID)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("order_id", ev.OrderID).Str("event", string(ev.Event)).Msg("failed to publish order event")
		}
	}
}

// Close stops accepting events, publishes what is queued and closes the publisher.
func (n *OrderNotifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	n.wg.Wait()
	return n.pub.Close()
}
