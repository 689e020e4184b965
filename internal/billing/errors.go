package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyCart rejects checkout with nothing in the cart. Nothing is
	// written and no invoice number is consumed.
	ErrEmptyCart = errors.New("billing: cart is empty")

	// ErrProductVanished indicates a cart line whose product row no
	// longer exists at lock time.
	ErrProductVanished = errors.New("billing: product no longer exists")

	// ErrInsufficientLoyaltyPoints rejects a loyalty leg the attached
	// customer cannot cover.
	ErrInsufficientLoyaltyPoints = errors.New("billing: insufficient loyalty points")

	// ErrNoCustomerForLoyalty rejects a loyalty leg with no customer
	// attached to the sale.
	ErrNoCustomerForLoyalty = errors.New("billing: loyalty payment requires an attached customer")

	// ErrInvalidGiftCard rejects an unknown or inactive gift card.
	ErrInvalidGiftCard = errors.New("billing: invalid gift card")

	// ErrInsufficientGiftCardBalance rejects a gift leg above the card's
	// balance.
	ErrInsufficientGiftCardBalance = errors.New("billing: insufficient gift card balance")

	// ErrDrawerNotOpen rejects sales against a closed till.
	ErrDrawerNotOpen = errors.New("billing: cash drawer is not open")
)

// InsufficientPaymentError reports tendered amounts short of the grand
// total beyond the accepted tolerance.
type InsufficientPaymentError struct {
	Paid     decimal.Decimal
	Required decimal.Decimal
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("billing: payment %s short of total %s", e.Paid.StringFixed(2), e.Required.StringFixed(2))
}

// OvertenderError rejects non-cash legs that sum past the grand total.
// Only cash may be overtendered; the excess is change. Accepting an
// oversized gift or loyalty leg would debit the customer past the sale
// value.
type OvertenderError struct {
	NonCash    decimal.Decimal
	GrandTotal decimal.Decimal
}

func (e *OvertenderError) Error() string {
	return fmt.Sprintf("billing: non-cash tender %s exceeds total %s", e.NonCash.StringFixed(2), e.GrandTotal.StringFixed(2))
}
