package sse

import (
	"time"

	"github.com/GTDGit/onhand_api/internal/models"
)

// OrderNotifier is the interface services use to emit order events.
// Implementations must not block the caller for long.
type OrderNotifier interface {
	NotifyOrderCreated(o *models.Order)
	NotifyOrderStatusChanged(o *models.Order)
	NotifyOrderDelivered(o *models.Order)
}

// NewOrderEvent builds the outbound event for an order.
func NewOrderEvent(eventType EventType, o *models.Order) *OrderEvent {
	return &OrderEvent{
		Event:         eventType,
		OrderID:       o.ID,
		ProductID:     o.ProductID,
		ProductName:   o.ProductName,
		CustomerEmail: o.CustomerEmail,
		Status:        string(o.Status),
		Price:         o.Price.StringFixed(2),
		PaymentMethod: o.PaymentMethod,
		PaymentRef:    o.PaymentRef,
		CancelReason:  o.CancelReason,
		DeliveredAt:   o.DeliveredAt,
		Timestamp:     time.Now().UTC(),
	}
}

// HubNotifier implements OrderNotifier using the SSE Hub.
type HubNotifier struct {
	hub *Hub
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyOrderCreated(o *models.Order) {
	n.broadcast(EventOrderCreated, o)
}

func (n *HubNotifier) NotifyOrderStatusChanged(o *models.Order) {
	n.broadcast(EventOrderStatusChanged, o)
}

func (n *HubNotifier) NotifyOrderDelivered(o *models.Order) {
	n.broadcast(EventOrderDelivered, o)
}

func (n *HubNotifier) broadcast(eventType EventType, o *models.Order) {
	if n.hub.ClientCount() == 0 {
		return
	}
	n.hub.Broadcast(NewOrderEvent(eventType, o))
}

// MultiNotifier fans events out to several notifiers in order.
type MultiNotifier []OrderNotifier

func (m MultiNotifier) NotifyOrderCreated(o *models.Order) {
	for _, n := range m {
		n.NotifyOrderCreated(o)
	}
}

func (m MultiNotifier) NotifyOrderStatusChanged(o *models.Order) {
	for _, n := range m {
		n.NotifyOrderStatusChanged(o)
	}
}

func (m MultiNotifier) NotifyOrderDelivered(o *models.Order) {
	for _, n := range m {
		n.NotifyOrderDelivered(o)
	}
}

// NopNotifier is a no-op implementation for when no one listens.
type NopNotifier struct{}

func (NopNotifier) NotifyOrderCreated(o *models.Order)       {}
func (NopNotifier) NotifyOrderStatusChanged(o *models.Order) {}
func (NopNotifier) NotifyOrderDelivered(o *models.Order)     {}
