package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Audit reasons written by the ledger.
const (
	ReasonSaleDeduction = "Sale Deduction"
	ReasonReturnRestock = "Return Restock"
	ReasonGoodsReceipt  = "Goods Receipt"
	ReasonAdjustment    = "Manual Adjustment"
)

// AuditEntry is one record of the append-only stock audit stream.
type AuditEntry struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	OldStock  int64     `json:"old_stock"`
	NewStock  int64     `json:"new_stock"`
	Actor     int64     `json:"actor"`
	Reason    string    `json:"reason"`
	Ref       string    `json:"ref,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrInsufficientStock is the sentinel for aggregate stock shortfalls.
var ErrInsufficientStock = errors.New("insufficient stock")

// InsufficientStockError names the product and quantities involved so the
// cashier sees exactly what is missing.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int64
	Requested   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: available %d, requested %d", e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// IncrementInput describes the lot a stock increase belongs to. An empty
// BatchNumber merges nothing and only moves the aggregate counter.
type IncrementInput struct {
	BatchNumber string
	ExpiryDate  *time.Time
	CostPrice   *decimal.Decimal
}
