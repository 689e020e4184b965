package returns

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Return is one processed refund against a sale.
type Return struct {
	ID           int64           `json:"id"`
	SaleID       int64           `json:"sale_id"`
	RefundMethod string          `json:"refund_method"`
	RefundTotal  decimal.Decimal `json:"refund_total"`
	ProcessedBy  int64           `json:"processed_by"`
	Items        []ReturnItem    `json:"items"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ReturnItem is one returned line. RefundAmount is the GST-inclusive
// share of the original line value for the returned quantity.
type ReturnItem struct {
	ID           int64           `json:"id"`
	ReturnID     int64           `json:"return_id"`
	SaleItemID   int64           `json:"sale_item_id"`
	ProductID    int64           `json:"product_id"`
	Quantity     int64           `json:"quantity"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
}

var (
	// ErrNothingToReturn indicates a request with no returnable lines.
	ErrNothingToReturn = errors.New("returns: nothing to return")

	// ErrUnknownSaleItem indicates a line that does not belong to the sale.
	ErrUnknownSaleItem = errors.New("returns: sale item not on this sale")
)

// ExcessiveReturnError rejects a quantity above what the sale can still
// refund. Any single bad line fails the whole request.
type ExcessiveReturnError struct {
	SaleItemID int64
	Remaining  int64
	Requested  int64
}

func (e *ExcessiveReturnError) Error() string {
	return fmt.Sprintf("returns: sale item %d has %d returnable, requested %d",
		e.SaleItemID, e.Remaining, e.Requested)
}
