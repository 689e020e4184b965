package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is one committed invoice with its lines, tender legs and the
// promotion snapshot taken at completion time.
type Sale struct {
	ID           int64              `json:"id"`
	InvoiceNo    string             `json:"invoice_no"`
	CashierID    int64              `json:"cashier_id"`
	CustomerID   *int64             `json:"customer_id,omitempty"`
	Subtotal     decimal.Decimal    `json:"subtotal"`
	Discount     decimal.Decimal    `json:"discount"`
	GSTAmount    decimal.Decimal    `json:"gst_amount"`
	GrandTotal   decimal.Decimal    `json:"grand_total"`
	PointsEarned int64              `json:"points_earned"`
	Printed      bool               `json:"printed"`
	Items        []SaleItem         `json:"items"`
	Payments     []SalePayment      `json:"payments"`
	Promotions   []AppliedPromotion `json:"promotions,omitempty"`
	Receipt      string             `json:"receipt,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// SaleItem is one invoice line. All amounts are snapshots of what was
// charged, never live catalog prices.
type SaleItem struct {
	ID         int64            `json:"id"`
	SaleID     int64            `json:"sale_id"`
	ProductID  int64            `json:"product_id"`
	Name       string           `json:"name"`
	UnitPrice  decimal.Decimal  `json:"unit_price"`
	Quantity   int64            `json:"quantity"`
	Weight     *decimal.Decimal `json:"weight,omitempty"`
	GSTPercent decimal.Decimal  `json:"gst_percent"`
	Subtotal   decimal.Decimal  `json:"subtotal"`
	GSTAmount  decimal.Decimal  `json:"gst_amount"`
	Total      decimal.Decimal  `json:"total"`
}

// SalePayment is one tender leg of a sale.
type SalePayment struct {
	ID           int64           `json:"id"`
	SaleID       int64           `json:"sale_id"`
	Method       string          `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	GiftCardCode string          `json:"gift_card_code,omitempty"`
}

// Tender methods.
const (
	MethodCash    = "cash"
	MethodCard    = "card"
	MethodUPI     = "upi"
	MethodLoyalty = "loyalty"
	MethodGift    = "gift"
)

// AppliedPromotion snapshots a promotion's contribution to a sale so the
// invoice stays explainable after the promotion is edited or removed.
type AppliedPromotion struct {
	ID          int64           `json:"id"`
	SaleID      int64           `json:"sale_id"`
	PromotionID int64           `json:"promotion_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Discount    decimal.Decimal `json:"discount"`
}

// TenderAmounts is the cashier-entered split of the payment.
type TenderAmounts struct {
	Cash         decimal.Decimal `json:"cash"`
	Card         decimal.Decimal `json:"card"`
	UPI          decimal.Decimal `json:"upi"`
	Loyalty      decimal.Decimal `json:"loyalty"`
	Gift         decimal.Decimal `json:"gift"`
	GiftCardCode string          `json:"gift_card_code,omitempty"`
}

// Total sums all legs.
func (t TenderAmounts) Total() decimal.Decimal {
	return t.Cash.Add(t.Card).Add(t.UPI).Add(t.Loyalty).Add(t.Gift)
}

// AllZero reports whether no leg was entered; the whole bill then
// defaults to cash.
func (t TenderAmounts) AllZero() bool {
	return t.Total().IsZero()
}

// NonCash sums every leg except cash.
func (t TenderAmounts) NonCash() decimal.Decimal {
	return t.Card.Add(t.UPI).Add(t.Loyalty).Add(t.Gift)
}

// CashDrawer tracks a till session's expected cash position.
type CashDrawer struct {
	ID           int64            `json:"id"`
	OpenedBy     int64            `json:"opened_by"`
	OpeningFloat decimal.Decimal  `json:"opening_float"`
	SystemTotal  decimal.Decimal  `json:"system_total"`
	Status       string           `json:"status"`
	CountedTotal *decimal.Decimal `json:"counted_total,omitempty"`
	Discrepancy  *decimal.Decimal `json:"discrepancy,omitempty"`
	OpenedAt     time.Time        `json:"opened_at"`
	ClosedAt     *time.Time       `json:"closed_at,omitempty"`
}

// Drawer statuses.
const (
	DrawerOpen   = "open"
	DrawerClosed = "closed"
)
