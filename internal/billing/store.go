package billing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/martpos/martpos/internal/catalog"
	"github.com/martpos/martpos/internal/ledger"
	"github.com/martpos/martpos/internal/loyalty"
)

// Store opens one transactional unit of work for a sale. Everything
// inside fn commits or rolls back atomically.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transactional surface the orchestrator drives. Lock methods
// take FOR UPDATE row locks that are held until the unit commits.
type Tx interface {
	// LockProducts locks the given product rows in ascending id order
	// and returns them keyed by id. A missing id yields
	// catalog.ErrProductNotFound.
	LockProducts(ctx context.Context, ids []int64) (map[int64]*catalog.Product, error)

	// LedgerStore exposes the stock ledger bound to this transaction.
	LedgerStore() ledger.Store

	// AllocateInvoice reserves the next invoice number for year.
	AllocateInvoice(ctx context.Context, year int) (string, error)

	LockCustomer(ctx context.Context, id int64) (*loyalty.Customer, error)
	AdjustPoints(ctx context.Context, customerID, delta int64) error

	LockGiftCard(ctx context.Context, code string) (*loyalty.GiftCard, error)
	DebitGiftCard(ctx context.Context, cardID int64, amount decimal.Decimal) error

	IncrementPromotionUsage(ctx context.Context, promotionIDs []int64) error

	// InsertSale persists the sale header with its items, payments and
	// applied promotions, filling in the generated ids.
	InsertSale(ctx context.Context, sale *Sale) error

	// LockDrawer returns the drawer row FOR UPDATE.
	LockDrawer(ctx context.Context, drawerID int64) (*CashDrawer, error)

	// AddToDrawer grows the drawer's running system total.
	AddToDrawer(ctx context.Context, drawerID int64, amount decimal.Decimal) error
}
