package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// Fulfillable reports whether an order in status s may receive a credential.
func (s OrderStatus) Fulfillable() bool {
	return s == OrderPending || s == OrderPaid
}

// CanTransitionTo reports whether an operator may move an order from s to next.
// Completion is reserved for the allocator and is never a manual transition.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderPending:
		return next == OrderPaid || next == OrderCancelled
	case OrderPaid:
		return next == OrderCancelled
	}
	return false
}

// Order is a customer purchase. Product name and prices are snapshots taken
// at placement. DeliveredAt and DropPayload are set together, once, when a
// credential is allocated.
type Order struct {
	ID            string          `db:"id" json:"id"`
	ProductID     int             `db:"product_id" json:"productId"`
	ProductName   string          `db:"product_name" json:"productName"`
	UnitPrice     decimal.Decimal `db:"unit_price" json:"unitPrice"`
	Price         decimal.Decimal `db:"price" json:"price"`
	DurationDays  int             `db:"duration_days" json:"durationDays"`
	OwnershipKind OwnershipKind   `db:"ownership_kind" json:"ownershipKind"`
	CredKind      CredKind        `db:"cred_kind" json:"credKind"`
	CustomerID    *int            `db:"customer_id" json:"customerId,omitempty"`
	CustomerName  string          `db:"customer_name" json:"customerName"`
	CustomerEmail string          `db:"customer_email" json:"customerEmail"`
	PaymentMethod string          `db:"payment_method" json:"paymentMethod"`
	PaymentRef    string          `db:"payment_ref" json:"paymentRef"`
	ReceiptURL    string          `db:"receipt_url" json:"receiptUrl"`
	PaymentSentAt *time.Time      `db:"payment_sent_at" json:"paymentSentAt,omitempty"`
	Status        OrderStatus     `db:"status" json:"status"`
	CancelReason  string          `db:"cancel_reason" json:"cancelReason,omitempty"`
	DeliveredAt   *time.Time      `db:"delivered_at" json:"deliveredAt,omitempty"`
	DropPayload   *DropPayload    `db:"drop_payload" json:"dropPayload,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
}

// Delivered reports whether a credential has been dropped to this order.
func (o *Order) Delivered() bool {
	return o.DeliveredAt != nil
}

// DropPayload is the snapshot of the credential revealed to the customer.
// It is copied from the credential at allocation time and never changes.
type DropPayload struct {
	CredentialID  int           `json:"credentialId"`
	Username      string        `json:"username"`
	Secret        string        `json:"secret"`
	Notes         string        `json:"notes,omitempty"`
	OwnershipKind OwnershipKind `json:"ownershipKind"`
	CredKind      CredKind      `json:"credKind"`
	DurationDays  int           `json:"durationDays"`
	AssignedAt    time.Time     `json:"assignedAt"`
	ExpiryAt      time.Time     `json:"expiryAt"`
}

// NewDropPayload builds the payload for a freshly assigned credential.
func NewDropPayload(c *InventoryCredential) *DropPayload {
	p := &DropPayload{
		CredentialID:  c.ID,
		Username:      c.Username,
		Secret:        c.Secret,
		Notes:         c.Notes,
		OwnershipKind: c.OwnershipKind,
		CredKind:      c.CredKind,
		DurationDays:  c.DurationDays,
	}
	if c.AssignedAt != nil {
		p.AssignedAt = c.AssignedAt.UTC()
	}
	if c.ExpiresAt != nil {
		p.ExpiryAt = c.ExpiresAt.UTC()
	}
	return p
}

// Value implements driver.Valuer. Stored as JSON text.
func (p DropPayload) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSON, JSONB and TEXT columns.
func (p *DropPayload) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("drop payload: unsupported source type %T", src)
	}
}
