package receiving

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/martpos/martpos/internal/catalog"
	"github.com/martpos/martpos/internal/ledger"
	"github.com/martpos/martpos/internal/platform/db"
	"github.com/martpos/martpos/internal/shared"
)

// ReceiptInput is one delivery to book in.
type ReceiptInput struct {
	Supplier string      `json:"supplier,omitempty"`
	Items    []ItemInput `json:"items"`
}

// ItemInput is one lot of the delivery.
type ItemInput struct {
	ProductID   int64      `json:"product_id"`
	BatchNumber string     `json:"batch_number"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	Quantity    int64      `json:"quantity"`
	CostPrice   string     `json:"cost_price,omitempty"`
}

// Service books goods receipts: every line grows the product's stock
// through the ledger, merging into existing lots by batch number.
type Service struct {
	pool   *pgxpool.Pool
	ledger *ledger.Ledger
	logger *slog.Logger
}

func NewService(pool *pgxpool.Pool, ldg *ledger.Ledger, logger *slog.Logger) *Service {
	return &Service{pool: pool, ledger: ldg, logger: logger}
}

// Book validates and commits one receipt atomically.
func (s *Service) Book(ctx context.Context, input ReceiptInput, receivedBy int64) (*GoodsReceipt, error) {
	if len(input.Items) == 0 {
		return nil, ErrEmptyReceipt
	}

	ids := make([]int64, 0, len(input.Items))
	parsed := make([]ReceiptItem, 0, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == 0 || item.Quantity <= 0 {
			return nil, fmt.Errorf("receiving: product %d: quantity must be positive", item.ProductID)
		}
		var cost *decimal.Decimal
		if item.CostPrice != "" {
			c, err := decimal.NewFromString(item.CostPrice)
			if err != nil || c.Sign() < 0 {
				return nil, fmt.Errorf("receiving: product %d: invalid cost price", item.ProductID)
			}
			rounded := c.Round(2)
			cost = &rounded
		}
		ids = append(ids, item.ProductID)
		parsed = append(parsed, ReceiptItem{
			ProductID:   item.ProductID,
			BatchNumber: item.BatchNumber,
			ExpiryDate:  item.ExpiryDate,
			Quantity:    item.Quantity,
			CostPrice:   cost,
		})
	}

	receipt := &GoodsReceipt{
		Ref:        uuid.NewString(),
		Supplier:   input.Supplier,
		ReceivedBy: receivedBy,
		Items:      parsed,
		CreatedAt:  time.Now().UTC(),
	}

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		products, err := catalog.LockProducts(ctx, tx, shared.SortedIDs(ids))
		if err != nil {
			return err
		}

		ledgerStore := ledger.NewTxStore(tx)
		for _, item := range receipt.Items {
			var opts *ledger.IncrementInput
			if item.BatchNumber != "" {
				opts = &ledger.IncrementInput{
					BatchNumber: item.BatchNumber,
					ExpiryDate:  item.ExpiryDate,
					CostPrice:   item.CostPrice,
				}
			}
			if err := s.ledger.Increment(ctx, ledgerStore, products[item.ProductID],
				item.Quantity, receivedBy, ledger.ReasonGoodsReceipt, receipt.Ref, opts); err != nil {
				return err
			}
		}

		return insertReceipt(ctx, tx, receipt)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func insertReceipt(ctx context.Context, tx pgx.Tx, receipt *GoodsReceipt) error {
	var supplier any
	if receipt.Supplier != "" {
		supplier = receipt.Supplier
	}
	err := tx.QueryRow(ctx, `INSERT INTO goods_receipts
(ref, supplier, received_by, created_at)
VALUES ($1,$2,$3,$4) RETURNING id`,
		receipt.Ref, supplier, receipt.ReceivedBy, receipt.CreatedAt).Scan(&receipt.ID)
	if err != nil {
		return err
	}
	for i := range receipt.Items {
		item := &receipt.Items[i]
		item.ReceiptID = receipt.ID
		var batch any
		if item.BatchNumber != "" {
			batch = item.BatchNumber
		}
		err := tx.QueryRow(ctx, `INSERT INTO goods_receipt_items
(receipt_id, product_id, batch_number, expiry_date, quantity, cost_price)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
			item.ReceiptID, item.ProductID, batch, item.ExpiryDate, item.Quantity, item.CostPrice).Scan(&item.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// Get loads one receipt with its items.
func (s *Service) Get(ctx context.Context, id int64) (*GoodsReceipt, error) {
	var r GoodsReceipt
	err := s.pool.QueryRow(ctx, `SELECT id, ref, COALESCE(supplier, ''), received_by, created_at
FROM goods_receipts WHERE id=$1`, id).
		Scan(&r.ID, &r.Ref, &r.Supplier, &r.ReceivedBy, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT id, receipt_id, product_id, COALESCE(batch_number, ''), expiry_date, quantity, cost_price
FROM goods_receipt_items WHERE receipt_id=$1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item ReceiptItem
		if err := rows.Scan(&item.ID, &item.ReceiptID, &item.ProductID, &item.BatchNumber,
			&item.ExpiryDate, &item.Quantity, &item.CostPrice); err != nil {
			return nil, err
		}
		r.Items = append(r.Items, item)
	}
	return &r, rows.Err()
}
