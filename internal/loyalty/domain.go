package loyalty

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a loyalty program member. Points redeem at one currency
// unit per point.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	Points    int64     `json:"points"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AccrualDivisor converts a sale's grand total into earned points:
// one point per full hundred spent.
var AccrualDivisor = decimal.NewFromInt(100)

// PointsEarned returns the loyalty points accrued on grandTotal.
func PointsEarned(grandTotal decimal.Decimal) int64 {
	if grandTotal.Sign() <= 0 {
		return 0
	}
	return grandTotal.Div(AccrualDivisor).IntPart()
}

// GiftCard is a stored-value card redeemable at checkout.
type GiftCard struct {
	ID        int64           `json:"id"`
	Code      string          `json:"code"`
	Balance   decimal.Decimal `json:"balance"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
}

var (
	ErrCustomerNotFound = errors.New("loyalty: customer not found")
	ErrGiftCardNotFound = errors.New("loyalty: gift card not found")
)
