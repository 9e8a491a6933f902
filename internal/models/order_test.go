package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatus_Transitions(t *testing.T) {
	all := []OrderStatus{OrderPending, OrderPaid, OrderCompleted, OrderCancelled}
	allowed := map[OrderStatus][]OrderStatus{
		OrderPending: {OrderPaid, OrderCancelled},
		OrderPaid:    {OrderCancelled},
	}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, OrderPending.Fulfillable())
	assert.True(t, OrderPaid.Fulfillable())
	assert.False(t, OrderCancelled.Fulfillable())
	assert.True(t, OrderCompleted.Terminal())
	assert.False(t, OrderStatus("refunded").Valid())
}

func TestDropPayload_SnapshotAndScan(t *testing.T) {
	assigned := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("PHT", 8*3600))
	expires := assigned.AddDate(0, 0, 30)
	p := NewDropPayload(&InventoryCredential{
		ID: 4, Username: "u", Secret: "s", OwnershipKind: OwnershipShared, CredKind: CredProfile,
		DurationDays: 30, AssignedAt: &assigned, ExpiresAt: &expires,
	})
	assert.Equal(t, time.UTC, p.ExpiryAt.Location())
	assert.True(t, p.ExpiryAt.Equal(expires))

	v, err := p.Value()
	require.NoError(t, err)

	var fromText, fromBytes DropPayload
	require.NoError(t, fromText.Scan(v))
	require.NoError(t, fromBytes.Scan([]byte(v.(string))))
	assert.Equal(t, *p, fromText)
	assert.Equal(t, *p, fromBytes)

	assert.Error(t, (&DropPayload{}).Scan(42))
}
