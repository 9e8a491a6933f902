package sse

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/onhand_api/internal/models"
)

func testOrder() *models.Order {
	now := time.Now().UTC()
	return &models.Order{
		ID:            "order-1",
		ProductID:     3,
		ProductName:   "Netflix",
		Price:         decimal.RequireFromString("89.4"),
		CustomerEmail: "a@example.com",
		Status:        models.OrderCompleted,
		DeliveredAt:   &now,
		DropPayload:   &models.DropPayload{CredentialID: 9, Username: "user", Secret: "hunter2"},
	}
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	h := NewHub()
	a := h.Register("a")
	b := h.Register("b")
	assert.Equal(t, 2, h.ClientCount())

	h.Broadcast(NewOrderEvent(EventOrderDelivered, testOrder()))

	for _, c := range []*Client{a, b} {
		select {
		case data := <-c.Events:
			var ev OrderEvent
			require.NoError(t, json.Unmarshal(data, &ev))
			assert.Equal(t, EventOrderDelivered, ev.Event)
			assert.Equal(t, "order-1", ev.OrderID)
			assert.Equal(t, "89.40", ev.Price)
		default:
			t.Fatalf("client %s got no event", c.ID)
		}
	}

	h.Unregister("a")
	h.Unregister("a")
	assert.Equal(t, 1, h.ClientCount())
	_, open := <-a.Events
	assert.False(t, open)
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	h := NewHub()
	c := h.Register("slow")
	for i := 0; i < cap(c.Events)+10; i++ {
		h.Broadcast(NewOrderEvent(EventOrderCreated, testOrder()))
	}
	assert.Len(t, c.Events, cap(c.Events))
}

func TestOrderEvent_NeverCarriesCredential(t *testing.T) {
	data, err := json.Marshal(NewOrderEvent(EventOrderDelivered, testOrder()))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
	assert.NotContains(t, string(data), "credentialId")
}

type countingNotifier struct{ created, changed, delivered int }

func (c *countingNotifier) NotifyOrderCreated(*models.Order)       { c.created++ }
func (c *countingNotifier) NotifyOrderStatusChanged(*models.Order) { c.changed++ }
func (c *countingNotifier) NotifyOrderDelivered(*models.Order)     { c.delivered++ }

func TestMultiNotifier(t *testing.T) {
	h := NewHub()
	client := h.Register("admin")
	counter := &countingNotifier{}
	n := MultiNotifier{NewHubNotifier(h), counter, NopNotifier{}}

	o := testOrder()
	n.NotifyOrderCreated(o)
	n.NotifyOrderStatusChanged(o)
	n.NotifyOrderDelivered(o)

	assert.Equal(t, countingNotifier{1, 1, 1}, *counter)
	assert.Len(t, client.Events, 3)
}
