package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/martpos/martpos/internal/catalog"
	"github.com/martpos/martpos/internal/platform/db"
)

// Adjuster applies manual stock corrections outside of a sale: stocktake
// write-offs, damage, found stock. Positive deltas hit the aggregate only;
// negative deltas drain batches the same way a sale does.
type Adjuster struct {
	pool   *pgxpool.Pool
	ledger *Ledger
}

// NewAdjuster constructs an Adjuster.
func NewAdjuster(pool *pgxpool.Pool, ledger *Ledger) *Adjuster {
	return &Adjuster{pool: pool, ledger: ledger}
}

// Adjust changes the product's aggregate stock by delta and records the
// audit entry under the manual-adjustment reason. Delta must be non-zero.
func (a *Adjuster) Adjust(ctx context.Context, productID, delta, actor int64, note string) (*catalog.Product, error) {
	if delta == 0 {
		return nil, fmt.Errorf("ledger: adjustment delta must be non-zero")
	}
	var adjusted *catalog.Product
	err := db.WithTx(ctx, a.pool, func(tx pgx.Tx) error {
		products, err := catalog.LockProducts(ctx, tx, []int64{productID})
		if err != nil {
			return err
		}
		p := products[productID]
		store := NewTxStore(tx)
		if delta > 0 {
			if err := a.ledger.Increment(ctx, store, p, delta, actor, ReasonAdjustment, note, nil); err != nil {
				return err
			}
		} else {
			if err := a.ledger.Decrement(ctx, store, p, -delta, actor, ReasonAdjustment, note); err != nil {
				return err
			}
		}
		adjusted = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return adjusted, nil
}
