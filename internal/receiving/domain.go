package receiving

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// GoodsReceipt records one delivery booked into stock. Ref is a
// generated identifier stamped on the stock audit rows it produces.
type GoodsReceipt struct {
	ID         int64         `json:"id"`
	Ref        string        `json:"ref"`
	Supplier   string        `json:"supplier,omitempty"`
	ReceivedBy int64         `json:"received_by"`
	Items      []ReceiptItem `json:"items"`
	CreatedAt  time.Time     `json:"created_at"`
}

// ReceiptItem is one received lot.
type ReceiptItem struct {
	ID          int64            `json:"id"`
	ReceiptID   int64            `json:"receipt_id"`
	ProductID   int64            `json:"product_id"`
	BatchNumber string           `json:"batch_number"`
	ExpiryDate  *time.Time       `json:"expiry_date,omitempty"`
	Quantity    int64            `json:"quantity"`
	CostPrice   *decimal.Decimal `json:"cost_price,omitempty"`
}

// ErrEmptyReceipt rejects a receipt with no lines.
var ErrEmptyReceipt = errors.New("receiving: receipt has no items")
