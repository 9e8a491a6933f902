package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a subscription offering in the catalog.
// Price is per 30 days of a solo slot; AvailableStock is maintained by the
// stock counter and always equals the number of unassigned credentials.
type Product struct {
	ID             int             `db:"id" json:"id"`
	CategoryID     *int            `db:"category_id" json:"categoryId,omitempty"`
	Name           string          `db:"name" json:"name"`
	Description    string          `db:"description" json:"description"`
	Price          decimal.Decimal `db:"price" json:"price"`
	Available      bool            `db:"available" json:"available"`
	AvailableStock int             `db:"available_stock" json:"availableStock"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`

	// Joined from categories
	CategoryName *string `db:"category_name" json:"category,omitempty"`
}

// StockCorrection records a stock counter that disagreed with a recount.
type StockCorrection struct {
	ProductID int    `db:"product_id" json:"productId"`
	Name      string `db:"name" json:"name"`
	Counter   int    `db:"available_stock" json:"counter"`
	Recount   int    `db:"recount" json:"recount"`
}
