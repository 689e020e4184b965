package promo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustRule(r Rule, err error) Rule {
	if err != nil {
		panic(err)
	}
	return r
}

func today() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }

func TestPercentItemsDiscount(t *testing.T) {
	cart := Cart{1: {UnitPrice: d("100.00"), Quantity: 4, GSTPercent: d("5")}}
	rule := mustRule(NewPercentItemsRule([]int64{1}, d("10")))
	promos := []Promotion{{ID: 1, Name: "Ten Off", Rule: rule, Active: true, Stackable: true}}

	res := Evaluate(cart, promos, today())
	require.True(t, res.TotalDiscount.Equal(d("40.00")), res.TotalDiscount.String())
	require.True(t, res.DiscountedTotal.Equal(d("360.00")))
	require.Len(t, res.Applied, 1)
}

func TestFixedItemsCappedAtLineSubtotal(t *testing.T) {
	cart := Cart{2: {UnitPrice: d("30.00"), Quantity: 1}}
	rule := mustRule(NewFixedItemsRule([]int64{2}, d("50.00")))
	promos := []Promotion{{ID: 1, Name: "Fifty Off", Rule: rule, Active: true, Stackable: true}}

	res := Evaluate(cart, promos, today())
	require.True(t, res.TotalDiscount.Equal(d("30.00")))
	require.True(t, res.DiscountedTotal.Equal(d("0.00")))
}

func TestBuyTwoGetOneFree(t *testing.T) {
	cart := Cart{3: {UnitPrice: d("100.00"), Quantity: 3}}
	rule := mustRule(NewBuyXGetYRule(3, 2, 1))
	promos := []Promotion{{ID: 1, Name: "BOGOF", Rule: rule, Active: true, Stackable: true}}

	res := Evaluate(cart, promos, today())
	require.True(t, res.TotalDiscount.Equal(d("100.00")))
	require.True(t, res.DiscountedTotal.Equal(d("200.00")))
}

func TestBuyXGetYTwoCycles(t *testing.T) {
	cart := Cart{3: {UnitPrice: d("50.00"), Quantity: 7}}
	rule := mustRule(NewBuyXGetYRule(3, 2, 1))
	promos := []Promotion{{ID: 1, Name: "BOGOF", Rule: rule, Active: true, Stackable: true}}

	// 7 units = 2 full cycles of 3; the leftover unit earns nothing.
	res := Evaluate(cart, promos, today())
	require.True(t, res.TotalDiscount.Equal(d("100.00")))
}

func TestStackableSetSums(t *testing.T) {
	cart := Cart{
		1: {UnitPrice: d("100.00"), Quantity: 2},
	}
	itemRule := mustRule(NewPercentItemsRule([]int64{1}, d("10")))
	billRule := mustRule(NewBillPercentRule(d("5")))
	promos := []Promotion{
		{ID: 1, Name: "Item 10%", Rule: itemRule, Active: true, Stackable: true},
		{ID: 2, Name: "Bill 5%", Rule: billRule, Active: true, Stackable: true},
	}

	res := Evaluate(cart, promos, today())
	require.True(t, res.TotalDiscount.Equal(d("30.00")), res.TotalDiscount.String())
	require.Len(t, res.Applied, 2)
}

func TestBestNonStackableWinsAlone(t *testing.T) {
	cart := Cart{1: {UnitPrice: d("100.00"), Quantity: 2}}
	small := mustRule(NewBillPercentRule(d("5")))
	big := mustRule(NewBillPercentRule(d("20")))
	promos := []Promotion{
		{ID: 1, Name: "Small", Rule: small, Active: true, Stackable: false},
		{ID: 2, Name: "Big", Rule: big, Active: true, Stackable: false},
	}

	res := Evaluate(cart, promos, today())
	require.True(t, res.TotalDiscount.Equal(d("40.00")))
	require.Len(t, res.Applied, 1)
	require.Equal(t, "Big", res.Applied[0].Name)
}

func TestNonStackableNeverCombinesWithStackables(t *testing.T) {
	cart := Cart{1: {UnitPrice: d("100.00"), Quantity: 2}}
	stack := mustRule(NewBillPercentRule(d("15")))
	solo := mustRule(NewBillPercentRule(d("10")))
	promos := []Promotion{
		{ID: 1, Name: "Stack", Rule: stack, Active: true, Stackable: true},
		{ID: 2, Name: "Solo", Rule: solo, Active: true, Stackable: false},
	}

	// Stackable set (30.00) beats the lone non-stackable (20.00): the
	// non-stackable is discarded entirely, not added on top.
	res := Evaluate(cart, promos, today())
	require.True(t, res.TotalDiscount.Equal(d("30.00")))
	require.Len(t, res.Applied, 1)
	require.Equal(t, "Stack", res.Applied[0].Name)
}

func TestNonStackableTieBreaksOnLowestID(t *testing.T) {
	cart := Cart{1: {UnitPrice: d("100.00"), Quantity: 1}}
	a := mustRule(NewBillPercentRule(d("10")))
	b := mustRule(NewBillPercentRule(d("10")))
	promos := []Promotion{
		{ID: 7, Name: "Later", Rule: a, Active: true, Stackable: false},
		{ID: 3, Name: "Earlier", Rule: b, Active: true, Stackable: false},
	}

	res := Evaluate(cart, promos, today())
	require.Len(t, res.Applied, 1)
	require.Equal(t, int64(3), res.Applied[0].PromotionID)
}

func TestValidityWindowAndUsage(t *testing.T) {
	cart := Cart{1: {UnitPrice: d("100.00"), Quantity: 1}}
	rule := mustRule(NewBillPercentRule(d("10")))

	past := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	maxUses := int64(5)
	promos := []Promotion{
		{ID: 1, Name: "Inactive", Rule: rule, Active: false},
		{ID: 2, Name: "Expired", Rule: rule, Active: true, EndDate: &past},
		{ID: 3, Name: "Exhausted", Rule: rule, Active: true, MaxUses: &maxUses, CurrentUses: 5},
	}

	res := Evaluate(cart, promos, today())
	require.True(t, res.TotalDiscount.IsZero())
	require.Empty(t, res.Applied)
}

func TestDiscountCappedAtSubtotal(t *testing.T) {
	cart := Cart{1: {UnitPrice: d("10.00"), Quantity: 1}}
	fixed := mustRule(NewFixedItemsRule([]int64{1}, d("8.00")))
	bill := mustRule(NewBillPercentRule(d("50")))
	promos := []Promotion{
		{ID: 1, Name: "A", Rule: fixed, Active: true, Stackable: true},
		{ID: 2, Name: "B", Rule: bill, Active: true, Stackable: true},
	}

	res := Evaluate(cart, promos, today())
	require.True(t, res.TotalDiscount.Equal(d("10.00")))
	require.True(t, res.DiscountedTotal.IsZero())
}

func TestEvaluateIsPure(t *testing.T) {
	cart := Cart{
		1: {UnitPrice: d("100.00"), Quantity: 2},
		2: {UnitPrice: d("45.50"), Quantity: 3},
	}
	itemRule := mustRule(NewPercentItemsRule([]int64{1, 2}, d("12.5")))
	promos := []Promotion{{ID: 1, Name: "Mixed", Rule: itemRule, Active: true, Stackable: true}}

	first := Evaluate(cart, promos, today())
	second := Evaluate(cart, promos, today())
	require.Equal(t, first, second)
}

func TestRuleConstructionRejectsBadParams(t *testing.T) {
	_, err := NewPercentItemsRule(nil, d("10"))
	require.ErrorIs(t, err, ErrInvalidRule)
	_, err = NewPercentItemsRule([]int64{1}, d("120"))
	require.ErrorIs(t, err, ErrInvalidRule)
	_, err = NewFixedItemsRule([]int64{1}, d("-5"))
	require.ErrorIs(t, err, ErrInvalidRule)
	_, err = NewBillPercentRule(d("0"))
	require.ErrorIs(t, err, ErrInvalidRule)
	_, err = NewBuyXGetYRule(0, 2, 1)
	require.ErrorIs(t, err, ErrInvalidRule)
	_, err = NewBuyXGetYRule(1, 0, 1)
	require.ErrorIs(t, err, ErrInvalidRule)
}
