// Package cart holds the in-progress sale for a till. The cart lives in
// redis keyed by drawer, survives process restarts, and is handed to
// billing as an untrusted snapshot that billing re-verifies under row
// locks.
package cart

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/martpos/martpos/internal/shared"
)

// Line is one cart entry. Prices are snapshotted at scan time; billing
// charges these values, not the live catalog price.
type Line struct {
	ProductID  int64            `json:"product_id"`
	Name       string           `json:"name"`
	UnitPrice  decimal.Decimal  `json:"unit_price"`
	GSTPercent decimal.Decimal  `json:"gst_percent"`
	Quantity   int64            `json:"quantity"`
	IsWeighed  bool             `json:"is_weighed"`
	Weight     *decimal.Decimal `json:"weight,omitempty"`
}

// Subtotal returns the pre-tax value of the line, rounded to 2dp.
func (l Line) Subtotal() decimal.Decimal {
	if l.IsWeighed && l.Weight != nil {
		return shared.Round2(l.UnitPrice.Mul(*l.Weight))
	}
	return shared.Round2(l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity)))
}

// Snapshot is the cart contents keyed by product id.
type Snapshot map[int64]Line

// State is the full per-till cart: lines plus the optionally attached
// loyalty customer.
type State struct {
	Lines      Snapshot `json:"lines"`
	CustomerID *int64   `json:"customer_id,omitempty"`
}

// Empty reports whether the cart has no lines.
func (s State) Empty() bool { return len(s.Lines) == 0 }

var (
	ErrLineNotFound   = errors.New("cart: line not found")
	ErrInvalidLine    = errors.New("cart: invalid line")
	ErrInvalidWeight  = errors.New("cart: weight must be positive")
	ErrNotWeighedItem = errors.New("cart: product is not sold by weight")
)
