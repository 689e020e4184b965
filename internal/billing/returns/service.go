package returns

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/martpos/martpos/internal/billing"
	"github.com/martpos/martpos/internal/ledger"
	"github.com/martpos/martpos/internal/shared"
)

// Service processes refunds against committed sales.
type Service struct {
	store  Store
	ledger *ledger.Ledger
	logger *slog.Logger
}

func NewService(store Store, ldg *ledger.Ledger, logger *slog.Logger) *Service {
	return &Service{store: store, ledger: ldg, logger: logger}
}

// Process refunds the given quantities, keyed by sale item id, against
// one sale. Validation is all-or-nothing: a single line over its
// remaining returnable quantity rejects the whole request with no
// writes. Restock is aggregate-only; consumed lots are not recreated.
func (s *Service) Process(ctx context.Context, saleID int64, quantities map[int64]int64, refundMethod string, actor int64) (*Return, error) {
	requested := make(map[int64]int64, len(quantities))
	for itemID, qty := range quantities {
		if qty > 0 {
			requested[itemID] = qty
		}
	}
	if len(requested) == 0 {
		s.logger.Warn("return request with no returnable lines", "sale_id", saleID)
		return nil, ErrNothingToReturn
	}

	var ret *Return
	err := s.store.WithTx(ctx, func(tx Tx) error {
		sale, err := tx.LockSale(ctx, saleID)
		if err != nil {
			return err
		}
		itemsByID := make(map[int64]*billing.SaleItem, len(sale.Items))
		for i := range sale.Items {
			itemsByID[sale.Items[i].ID] = &sale.Items[i]
		}

		returned, err := tx.ReturnedQuantities(ctx, saleID)
		if err != nil {
			return fmt.Errorf("returns: prior returns for sale %d: %w", saleID, err)
		}

		var lines []ReturnItem
		total := decimal.Zero
		for itemID, qty := range requested {
			item, ok := itemsByID[itemID]
			if !ok {
				return fmt.Errorf("%w: %d", ErrUnknownSaleItem, itemID)
			}
			remaining := item.Quantity - returned[itemID]
			if qty > remaining {
				return &ExcessiveReturnError{SaleItemID: itemID, Remaining: remaining, Requested: qty}
			}
			refund := refundFor(item, qty)
			total = total.Add(refund)
			lines = append(lines, ReturnItem{
				SaleItemID:   itemID,
				ProductID:    item.ProductID,
				Quantity:     qty,
				RefundAmount: refund,
			})
		}

		if err := s.restock(ctx, tx, itemsByID, lines, sale.InvoiceNo, actor); err != nil {
			return err
		}

		ret = &Return{
			SaleID:       saleID,
			RefundMethod: refundMethod,
			RefundTotal:  total,
			ProcessedBy:  actor,
			Items:        lines,
		}
		return tx.InsertReturn(ctx, ret)
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// refundFor computes the GST-inclusive refund for qty units of a line:
// the per-unit share of the charged line total, rounded at the line.
func refundFor(item *billing.SaleItem, qty int64) decimal.Decimal {
	perUnit := item.Total.Div(decimal.NewFromInt(item.Quantity))
	return shared.Round2(perUnit.Mul(decimal.NewFromInt(qty)))
}

// restock puts returned units back on the shelf. Weighed lines carry no
// unit stock and are skipped.
func (s *Service) restock(ctx context.Context, tx Tx, itemsByID map[int64]*billing.SaleItem, lines []ReturnItem, invoiceNo string, actor int64) error {
	perProduct := make(map[int64]int64)
	for _, line := range lines {
		if itemsByID[line.SaleItemID].Weight != nil {
			continue
		}
		perProduct[line.ProductID] += line.Quantity
	}
	if len(perProduct) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(perProduct))
	for id := range perProduct {
		ids = append(ids, id)
	}
	products, err := tx.LockProducts(ctx, shared.SortedIDs(ids))
	if err != nil {
		return fmt.Errorf("returns: lock products: %w", err)
	}

	ledgerStore := tx.LedgerStore()
	for _, id := range shared.SortedIDs(ids) {
		p, ok := products[id]
		if !ok {
			// Product deleted since the sale; refund proceeds, the
			// stock simply has nowhere to go.
			s.logger.Warn("returned product no longer exists", "product_id", id)
			continue
		}
		if err := s.ledger.Increment(ctx, ledgerStore, p, perProduct[id],
			actor, ledger.ReasonReturnRestock, invoiceNo, nil); err != nil {
			return err
		}
	}
	return nil
}
