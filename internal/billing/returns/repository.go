package returns

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/martpos/martpos/internal/billing"
	"github.com/martpos/martpos/internal/catalog"
	"github.com/martpos/martpos/internal/ledger"
	"github.com/martpos/martpos/internal/platform/db"
)

// PgStore implements Store on a pgx pool.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockSale(ctx context.Context, saleID int64) (*billing.Sale, error) {
	var s billing.Sale
	err := t.tx.QueryRow(ctx, `SELECT id, invoice_no, cashier_id, customer_id, subtotal, discount, gst_amount, grand_total, points_earned, created_at
FROM sales WHERE id=$1 FOR UPDATE`, saleID).Scan(
		&s.ID, &s.InvoiceNo, &s.CashierID, &s.CustomerID,
		&s.Subtotal, &s.Discount, &s.GSTAmount, &s.GrandTotal,
		&s.PointsEarned, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.ErrSaleNotFound
		}
		return nil, err
	}

	rows, err := t.tx.Query(ctx, `SELECT id, sale_id, product_id, name, unit_price, quantity, weight, gst_percent, subtotal, gst_amount, total
FROM sale_items WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it billing.SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Name, &it.UnitPrice,
			&it.Quantity, &it.Weight, &it.GSTPercent, &it.Subtotal, &it.GSTAmount, &it.Total); err != nil {
			return nil, err
		}
		s.Items = append(s.Items, it)
	}
	return &s, rows.Err()
}

func (t *pgTx) ReturnedQuantities(ctx context.Context, saleID int64) (map[int64]int64, error) {
	rows, err := t.tx.Query(ctx, `SELECT ri.sale_item_id, COALESCE(SUM(ri.quantity), 0)
FROM return_items ri JOIN returns r ON r.id = ri.return_id
WHERE r.sale_id=$1 GROUP BY ri.sale_item_id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]int64)
	for rows.Next() {
		var itemID, qty int64
		if err := rows.Scan(&itemID, &qty); err != nil {
			return nil, err
		}
		out[itemID] = qty
	}
	return out, rows.Err()
}

func (t *pgTx) LockProducts(ctx context.Context, ids []int64) (map[int64]*catalog.Product, error) {
	return catalog.LockExistingProducts(ctx, t.tx, ids)
}

func (t *pgTx) LedgerStore() ledger.Store {
	return ledger.NewTxStore(t.tx)
}

func (t *pgTx) InsertReturn(ctx context.Context, ret *Return) error {
	ret.CreatedAt = time.Now().UTC()
	err := t.tx.QueryRow(ctx, `INSERT INTO returns
(sale_id, refund_method, refund_total, processed_by, created_at)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		ret.SaleID, ret.RefundMethod, ret.RefundTotal, ret.ProcessedBy, ret.CreatedAt).Scan(&ret.ID)
	if err != nil {
		return err
	}
	for i := range ret.Items {
		item := &ret.Items[i]
		item.ReturnID = ret.ID
		err := t.tx.QueryRow(ctx, `INSERT INTO return_items
(return_id, sale_item_id, product_id, quantity, refund_amount)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			item.ReturnID, item.SaleItemID, item.ProductID, item.Quantity, item.RefundAmount).Scan(&item.ID)
		if err != nil {
			return err
		}
	}
	return nil
}
