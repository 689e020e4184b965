package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/martpos/martpos/internal/catalog"
)

// Store is the transactional surface the ledger mutates. The orchestrator
// supplies an implementation bound to its own open transaction so every
// ledger write commits or rolls back with the sale.
type Store interface {
	SetProductStock(ctx context.Context, productID, newStock int64) error
	BatchesForUpdate(ctx context.Context, productID int64) ([]catalog.ProductBatch, error)
	SetBatchQuantity(ctx context.Context, batchID, quantity int64) error
	FindBatchForUpdate(ctx context.Context, productID int64, batchNumber string) (*catalog.ProductBatch, error)
	InsertBatch(ctx context.Context, b catalog.ProductBatch) (int64, error)
	AppendAudit(ctx context.Context, e AuditEntry) error
}

// ErrBatchNotFound indicates no lot matches a (product, batch) key.
var ErrBatchNotFound = errors.New("ledger: batch not found")

// TxStore implements Store against an open pgx transaction.
type TxStore struct {
	tx pgx.Tx
}

// NewTxStore wraps tx.
func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx}
}

func (s *TxStore) SetProductStock(ctx context.Context, productID, newStock int64) error {
	_, err := s.tx.Exec(ctx, `UPDATE products SET stock=$2, updated_at=NOW() WHERE id=$1`, productID, newStock)
	return err
}

// BatchesForUpdate locks and returns the product's non-empty lots in FIFO
// order: dated lots by ascending expiry first, indefinite lots last.
func (s *TxStore) BatchesForUpdate(ctx context.Context, productID int64) ([]catalog.ProductBatch, error) {
	rows, err := s.tx.Query(ctx, `SELECT id, product_id, batch_number, expiry_date, quantity, cost_price, created_at
FROM product_batches
WHERE product_id=$1 AND quantity > 0
ORDER BY (expiry_date IS NULL), expiry_date ASC, id ASC
FOR UPDATE`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []catalog.ProductBatch
	for rows.Next() {
		var b catalog.ProductBatch
		if err := rows.Scan(&b.ID, &b.ProductID, &b.BatchNumber, &b.ExpiryDate, &b.Quantity, &b.CostPrice, &b.CreatedAt); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (s *TxStore) SetBatchQuantity(ctx context.Context, batchID, quantity int64) error {
	_, err := s.tx.Exec(ctx, `UPDATE product_batches SET quantity=$2 WHERE id=$1`, batchID, quantity)
	return err
}

func (s *TxStore) FindBatchForUpdate(ctx context.Context, productID int64, batchNumber string) (*catalog.ProductBatch, error) {
	var b catalog.ProductBatch
	err := s.tx.QueryRow(ctx, `SELECT id, product_id, batch_number, expiry_date, quantity, cost_price, created_at
FROM product_batches WHERE product_id=$1 AND batch_number=$2 FOR UPDATE`, productID, batchNumber).
		Scan(&b.ID, &b.ProductID, &b.BatchNumber, &b.ExpiryDate, &b.Quantity, &b.CostPrice, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *TxStore) InsertBatch(ctx context.Context, b catalog.ProductBatch) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO product_batches (product_id, batch_number, expiry_date, quantity, cost_price, created_at)
VALUES ($1,$2,$3,$4,$5,NOW()) RETURNING id`,
		b.ProductID, b.BatchNumber, b.ExpiryDate, b.Quantity, b.CostPrice).Scan(&id)
	return id, err
}

func (s *TxStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	at := e.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.tx.Exec(ctx, `INSERT INTO stock_audit (product_id, old_stock, new_stock, actor, reason, ref, at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, e.ProductID, e.OldStock, e.NewStock, nullActor(e.Actor), e.Reason, e.Ref, at)
	return err
}

func nullActor(actor int64) any {
	if actor == 0 {
		return nil
	}
	return actor
}
