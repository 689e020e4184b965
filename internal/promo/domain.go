package promo

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/martpos/martpos/internal/shared"
)

// Kind enumerates the closed set of promotion rule kinds.
type Kind string

const (
	KindPercentItems Kind = "percent_items"
	KindFixedItems   Kind = "fixed_items"
	KindBillPercent  Kind = "bill_percent"
	KindBuyXGetY     Kind = "buy_x_get_y"
)

// Line is one cart line as seen by the engine: a price/quantity snapshot.
type Line struct {
	UnitPrice  decimal.Decimal
	Quantity   int64
	GSTPercent decimal.Decimal
}

// Cart maps product id to its snapshot line.
type Cart map[int64]Line

// Subtotal returns the line's goods value, rounded per line.
func (l Line) Subtotal() decimal.Decimal {
	return shared.Round2(l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity)))
}

// Rule computes the discount a promotion yields against a cart.
// Implementations are pure; Evaluate never mutates its inputs.
type Rule interface {
	Kind() Kind
	Discount(cart Cart, subtotal decimal.Decimal) decimal.Decimal
	Describe() string
}

// ErrInvalidRule reports a rule rejected at construction time.
var ErrInvalidRule = errors.New("promo: invalid rule")

// PercentItemsRule discounts selected products by a percentage.
type PercentItemsRule struct {
	ProductIDs []int64
	Percent    decimal.Decimal
}

// NewPercentItemsRule validates and builds a PercentItemsRule.
func NewPercentItemsRule(productIDs []int64, percent decimal.Decimal) (*PercentItemsRule, error) {
	if len(productIDs) == 0 {
		return nil, fmt.Errorf("%w: percent_items requires product ids", ErrInvalidRule)
	}
	if percent.LessThanOrEqual(decimal.Zero) || percent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%w: percent must be in (0,100]", ErrInvalidRule)
	}
	return &PercentItemsRule{ProductIDs: productIDs, Percent: percent}, nil
}

func (r *PercentItemsRule) Kind() Kind { return KindPercentItems }

func (r *PercentItemsRule) Discount(cart Cart, _ decimal.Decimal) decimal.Decimal {
	discount := decimal.Zero
	for _, pid := range shared.SortedIDs(r.ProductIDs) {
		line, ok := cart[pid]
		if !ok {
			continue
		}
		discount = discount.Add(shared.Percent(line.Subtotal(), r.Percent))
	}
	return discount
}

func (r *PercentItemsRule) Describe() string {
	return fmt.Sprintf("%s%% off selected item(s)", r.Percent.String())
}

// FixedItemsRule discounts selected products by a fixed amount per line,
// capped at the line subtotal so a line never goes negative.
type FixedItemsRule struct {
	ProductIDs []int64
	Amount     decimal.Decimal
}

// NewFixedItemsRule validates and builds a FixedItemsRule.
func NewFixedItemsRule(productIDs []int64, amount decimal.Decimal) (*FixedItemsRule, error) {
	if len(productIDs) == 0 {
		return nil, fmt.Errorf("%w: fixed_items requires product ids", ErrInvalidRule)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRule)
	}
	return &FixedItemsRule{ProductIDs: productIDs, Amount: amount}, nil
}

func (r *FixedItemsRule) Kind() Kind { return KindFixedItems }

func (r *FixedItemsRule) Discount(cart Cart, _ decimal.Decimal) decimal.Decimal {
	discount := decimal.Zero
	for _, pid := range shared.SortedIDs(r.ProductIDs) {
		line, ok := cart[pid]
		if !ok {
			continue
		}
		sub := line.Subtotal()
		if r.Amount.LessThan(sub) {
			discount = discount.Add(r.Amount)
		} else {
			discount = discount.Add(sub)
		}
	}
	return discount
}

func (r *FixedItemsRule) Describe() string {
	return fmt.Sprintf("%s off selected item(s)", r.Amount.StringFixed(2))
}

// BillPercentRule discounts the whole bill subtotal by a percentage.
type BillPercentRule struct {
	Percent decimal.Decimal
}

// NewBillPercentRule validates and builds a BillPercentRule.
func NewBillPercentRule(percent decimal.Decimal) (*BillPercentRule, error) {
	if percent.LessThanOrEqual(decimal.Zero) || percent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%w: percent must be in (0,100]", ErrInvalidRule)
	}
	return &BillPercentRule{Percent: percent}, nil
}

func (r *BillPercentRule) Kind() Kind { return KindBillPercent }

func (r *BillPercentRule) Discount(_ Cart, subtotal decimal.Decimal) decimal.Decimal {
	return shared.Percent(subtotal, r.Percent)
}

func (r *BillPercentRule) Describe() string {
	return fmt.Sprintf("%s%% off entire bill", r.Percent.String())
}

// BuyXGetYRule grants free units of one product: for every buy+free units
// in the cart, free units are discounted at unit price.
type BuyXGetYRule struct {
	ProductID int64
	BuyQty    int64
	FreeQty   int64
}

// NewBuyXGetYRule validates and builds a BuyXGetYRule.
func NewBuyXGetYRule(productID, buyQty, freeQty int64) (*BuyXGetYRule, error) {
	if productID <= 0 {
		return nil, fmt.Errorf("%w: buy_x_get_y requires a product id", ErrInvalidRule)
	}
	if buyQty < 1 || freeQty < 1 {
		return nil, fmt.Errorf("%w: buy and free quantities must be at least 1", ErrInvalidRule)
	}
	return &BuyXGetYRule{ProductID: productID, BuyQty: buyQty, FreeQty: freeQty}, nil
}

func (r *BuyXGetYRule) Kind() Kind { return KindBuyXGetY }

func (r *BuyXGetYRule) Discount(cart Cart, _ decimal.Decimal) decimal.Decimal {
	line, ok := cart[r.ProductID]
	if !ok {
		return decimal.Zero
	}
	cycle := r.BuyQty + r.FreeQty
	freeUnits := (line.Quantity / cycle) * r.FreeQty
	if freeUnits <= 0 {
		return decimal.Zero
	}
	return shared.Round2(line.UnitPrice.Mul(decimal.NewFromInt(freeUnits)))
}

func (r *BuyXGetYRule) Describe() string {
	return fmt.Sprintf("Buy %d Get %d Free", r.BuyQty, r.FreeQty)
}

// Promotion is one configured discount rule plus its validity window.
type Promotion struct {
	ID          int64
	Name        string
	Rule        Rule
	StartDate   *time.Time
	EndDate     *time.Time
	Active      bool
	MaxUses     *int64
	CurrentUses int64
	Stackable   bool
}

// ValidOn reports whether the promotion may be applied on the given day.
// Open-ended on either side when the corresponding date is nil.
func (p Promotion) ValidOn(today time.Time) bool {
	if !p.Active {
		return false
	}
	if p.MaxUses != nil && p.CurrentUses >= *p.MaxUses {
		return false
	}
	day := today.Truncate(24 * time.Hour)
	if p.StartDate != nil && day.Before(p.StartDate.Truncate(24*time.Hour)) {
		return false
	}
	if p.EndDate != nil && day.After(p.EndDate.Truncate(24*time.Hour)) {
		return false
	}
	return true
}
