package models

import "time"

// OwnershipKind tells whether a credential is an exclusive or shared slot.
type OwnershipKind string

// CredKind tells whether a credential is a whole account or a single profile.
type CredKind string

const (
	OwnershipSolo   OwnershipKind = "solo"
	OwnershipShared OwnershipKind = "shared"
)

const (
	CredAccount CredKind = "account"
	CredProfile CredKind = "profile"
)

// Valid reports whether k is a known ownership kind.
func (k OwnershipKind) Valid() bool {
	return k == OwnershipSolo || k == OwnershipShared
}

// Valid reports whether k is a known credential kind.
func (k CredKind) Valid() bool {
	return k == CredAccount || k == CredProfile
}

// InventoryCredential is one on-hand login held for a product.
// It is created unassigned and flips to assigned exactly once, when the
// allocator binds it to an order. Assigned rows are never deleted.
type InventoryCredential struct {
	ID            int           `db:"id" json:"id"`
	ProductID     int           `db:"product_id" json:"productId"`
	Username      string        `db:"username" json:"username"`
	Secret        string        `db:"secret" json:"secret"`
	Notes         string        `db:"notes" json:"notes"`
	OwnershipKind OwnershipKind `db:"ownership_kind" json:"ownershipKind"`
	CredKind      CredKind      `db:"cred_kind" json:"credKind"`
	DurationDays  int           `db:"duration_days" json:"durationDays"`
	Assigned      bool          `db:"assigned" json:"assigned"`
	AssignedAt    *time.Time    `db:"assigned_at" json:"assignedAt,omitempty"`
	ExpiresAt     *time.Time    `db:"expires_at" json:"expiresAt,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`

	// Joined from products
	ProductName string `db:"product_name" json:"productName,omitempty"`
}

// OnHandItem is the public view of an unassigned credential.
// The username is masked and the secret is never selected.
type OnHandItem struct {
	ID            int           `db:"id" json:"id"`
	ProductID     int           `db:"product_id" json:"productId"`
	ProductName   string        `db:"product_name" json:"productName"`
	Username      string        `db:"username" json:"username"`
	Notes         string        `db:"notes" json:"notes"`
	OwnershipKind OwnershipKind `db:"ownership_kind" json:"ownershipKind"`
	CredKind      CredKind      `db:"cred_kind" json:"credKind"`
	DurationDays  int           `db:"duration_days" json:"durationDays"`
	CreatedAt     time.Time     `db:"created_at" json:"createdAt"`
}
