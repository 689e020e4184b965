package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable item. The aggregate stock counter is authoritative
// for sale admission; per-lot quantities live in ProductBatch rows and are
// reconciled FIFO at deduction time.
type Product struct {
	ID         int64            `json:"id"`
	Name       string           `json:"name"`
	Barcode    string           `json:"barcode"`
	Price      decimal.Decimal  `json:"price"`
	Stock      int64            `json:"stock"`
	GSTPercent decimal.Decimal  `json:"gst_percent"`
	IsWeighed  bool             `json:"is_weighed"`
	PricePerKg *decimal.Decimal `json:"price_per_kg,omitempty"`
	IsActive   bool             `json:"is_active"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// LowStockThreshold is the reorder warning level used by listings.
const LowStockThreshold = 5

// IsLowStock reports whether the product is at or below the reorder level.
func (p Product) IsLowStock() bool {
	return p.Stock <= LowStockThreshold
}

// PriceWithGST returns the unit price inclusive of GST.
func (p Product) PriceWithGST() decimal.Decimal {
	rate := p.GSTPercent.Div(decimal.NewFromInt(100))
	return p.Price.Mul(decimal.NewFromInt(1).Add(rate)).Round(2)
}

// ProductBatch is one inventory lot. A nil ExpiryDate means indefinite
// shelf life; such lots are consumed after every dated lot.
type ProductBatch struct {
	ID          int64            `json:"id"`
	ProductID   int64            `json:"product_id"`
	BatchNumber string           `json:"batch_number"`
	ExpiryDate  *time.Time       `json:"expiry_date,omitempty"`
	Quantity    int64            `json:"quantity"`
	CostPrice   *decimal.Decimal `json:"cost_price,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// IsExpired reports whether the lot's expiry date has passed.
func (b ProductBatch) IsExpired(today time.Time) bool {
	return b.ExpiryDate != nil && b.ExpiryDate.Before(today.Truncate(24*time.Hour))
}

// ErrProductNotFound indicates a missing or vanished product row.
var ErrProductNotFound = errors.New("catalog: product not found")
