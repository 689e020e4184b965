package returns

import (
	"context"

	"github.com/martpos/martpos/internal/billing"
	"github.com/martpos/martpos/internal/catalog"
	"github.com/martpos/martpos/internal/ledger"
)

// Store opens one transactional unit of work for a return.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transactional surface the processor drives.
type Tx interface {
	// LockSale returns the sale with its items, holding a row lock on
	// the sale header so concurrent returns against it serialise.
	LockSale(ctx context.Context, saleID int64) (*billing.Sale, error)

	// ReturnedQuantities sums prior returns per sale item.
	ReturnedQuantities(ctx context.Context, saleID int64) (map[int64]int64, error)

	// LockProducts locks the given product rows in ascending id order.
	// Ids with no surviving row are omitted from the result, not errors:
	// a refund must not fail because the product was since deleted.
	LockProducts(ctx context.Context, ids []int64) (map[int64]*catalog.Product, error)
	LedgerStore() ledger.Store

	// InsertReturn persists the header and its items, filling ids.
	InsertReturn(ctx context.Context, ret *Return) error
}
