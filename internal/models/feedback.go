package models

import "time"

// Feedback is an anonymous message left on the storefront.
type Feedback struct {
	ID        int       `db:"id" json:"id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
