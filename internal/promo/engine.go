package promo

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/martpos/martpos/internal/shared"
)

// Applied records one promotion chosen for a sale, with snapshots that
// survive later edits or deletion of the promotion row.
type Applied struct {
	PromotionID int64
	Name        string
	Description string
	Discount    decimal.Decimal
	Stackable   bool
}

// Result is the outcome of evaluating promotions against a cart.
type Result struct {
	Applied         []Applied
	TotalDiscount   decimal.Decimal
	OriginalTotal   decimal.Decimal
	DiscountedTotal decimal.Decimal
}

// Evaluate applies the stacking policy to all promotions valid on today:
// stackable discounts sum; non-stackable discounts compete, and only the
// single best one can win, and only when it beats the whole stackable sum.
// The two sets are never combined. The total is capped at the cart
// subtotal. Pure: identical inputs yield identical results.
func Evaluate(cart Cart, promotions []Promotion, today time.Time) Result {
	subtotal := decimal.Zero
	for _, pid := range cartIDs(cart) {
		subtotal = subtotal.Add(cart[pid].Subtotal())
	}

	result := Result{
		OriginalTotal:   subtotal,
		DiscountedTotal: subtotal,
		TotalDiscount:   decimal.Zero,
	}
	if len(cart) == 0 || len(promotions) == 0 {
		return result
	}

	var stackable []Applied
	var best *Applied
	for _, p := range promotions {
		if !p.ValidOn(today) || p.Rule == nil {
			continue
		}
		discount := p.Rule.Discount(cart, subtotal)
		if discount.LessThanOrEqual(decimal.Zero) {
			continue
		}
		entry := Applied{
			PromotionID: p.ID,
			Name:        p.Name,
			Description: p.Rule.Describe(),
			Discount:    shared.Round2(discount),
			Stackable:   p.Stackable,
		}
		if p.Stackable {
			stackable = append(stackable, entry)
			continue
		}
		// Ties between equal non-stackable discounts break toward the
		// lowest promotion id so repeated evaluation stays deterministic.
		if best == nil || entry.Discount.GreaterThan(best.Discount) ||
			(entry.Discount.Equal(best.Discount) && entry.PromotionID < best.PromotionID) {
			e := entry
			best = &e
		}
	}

	stackTotal := decimal.Zero
	for _, e := range stackable {
		stackTotal = stackTotal.Add(e.Discount)
	}

	var chosen []Applied
	if best != nil && best.Discount.GreaterThan(stackTotal) {
		chosen = []Applied{*best}
	} else {
		chosen = stackable
	}

	total := decimal.Zero
	for _, e := range chosen {
		total = total.Add(e.Discount)
	}
	if total.GreaterThan(subtotal) {
		total = subtotal
	}

	result.Applied = chosen
	result.TotalDiscount = shared.Round2(total)
	result.DiscountedTotal = shared.Round2(subtotal.Sub(result.TotalDiscount))
	return result
}

func cartIDs(cart Cart) []int64 {
	ids := make([]int64, 0, len(cart))
	for id := range cart {
		ids = append(ids, id)
	}
	return shared.SortedIDs(ids)
}
