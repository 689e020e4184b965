package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/martpos/martpos/internal/catalog"
)

// Ledger applies stock mutations through a Store while keeping the
// aggregate product counter, the per-lot quantities and the audit trail
// consistent with each other inside one transaction.
type Ledger struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Ledger {
	return &Ledger{log: log}
}

// Decrement consumes qty units of p. The caller must already hold a row
// lock on the product. The aggregate counter is authoritative: if it
// cannot cover qty the call fails with InsufficientStockError and nothing
// is written. Lots are then drained oldest-expiry-first; if the lots sum
// to less than qty the difference is logged as a shortfall and the
// aggregate is still reduced by the full qty, so lot drift never blocks a
// sale.
func (l *Ledger) Decrement(ctx context.Context, store Store, p *catalog.Product, qty, actor int64, reason, ref string) error {
	if qty <= 0 {
		return fmt.Errorf("ledger: decrement quantity must be positive, got %d", qty)
	}
	if p.Stock < qty {
		return &InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Available:   p.Stock,
			Requested:   qty,
		}
	}

	batches, err := store.BatchesForUpdate(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("ledger: lock batches for product %d: %w", p.ID, err)
	}

	remaining := qty
	for _, b := range batches {
		if remaining == 0 {
			break
		}
		take := b.Quantity
		if take > remaining {
			take = remaining
		}
		if err := store.SetBatchQuantity(ctx, b.ID, b.Quantity-take); err != nil {
			return fmt.Errorf("ledger: drain batch %d: %w", b.ID, err)
		}
		remaining -= take
	}
	if remaining > 0 {
		l.log.Warn("batch quantities short of aggregate stock",
			"product_id", p.ID,
			"product", p.Name,
			"shortfall", remaining)
	}

	oldStock := p.Stock
	p.Stock -= qty
	if err := store.SetProductStock(ctx, p.ID, p.Stock); err != nil {
		return fmt.Errorf("ledger: update stock for product %d: %w", p.ID, err)
	}
	if err := store.AppendAudit(ctx, AuditEntry{
		ProductID: p.ID,
		OldStock:  oldStock,
		NewStock:  p.Stock,
		Actor:     actor,
		Reason:    reason,
		Ref:       ref,
	}); err != nil {
		return fmt.Errorf("ledger: append audit for product %d: %w", p.ID, err)
	}
	return nil
}

// Increment adds qty units of p. When input carries a batch number the
// quantity merges into the existing (product, batch) lot, or creates the
// lot if it does not exist yet; without a batch number only the aggregate
// moves, which is how return restocks behave.
func (l *Ledger) Increment(ctx context.Context, store Store, p *catalog.Product, qty, actor int64, reason, ref string, input *IncrementInput) error {
	if qty <= 0 {
		return fmt.Errorf("ledger: increment quantity must be positive, got %d", qty)
	}

	if input != nil && input.BatchNumber != "" {
		existing, err := store.FindBatchForUpdate(ctx, p.ID, input.BatchNumber)
		switch {
		case err == nil:
			if err := store.SetBatchQuantity(ctx, existing.ID, existing.Quantity+qty); err != nil {
				return fmt.Errorf("ledger: grow batch %d: %w", existing.ID, err)
			}
		case err == ErrBatchNotFound:
			if _, err := store.InsertBatch(ctx, catalog.ProductBatch{
				ProductID:   p.ID,
				BatchNumber: input.BatchNumber,
				ExpiryDate:  input.ExpiryDate,
				Quantity:    qty,
				CostPrice:   input.CostPrice,
			}); err != nil {
				return fmt.Errorf("ledger: create batch %q for product %d: %w", input.BatchNumber, p.ID, err)
			}
		default:
			return fmt.Errorf("ledger: find batch %q for product %d: %w", input.BatchNumber, p.ID, err)
		}
	}

	oldStock := p.Stock
	p.Stock += qty
	if err := store.SetProductStock(ctx, p.ID, p.Stock); err != nil {
		return fmt.Errorf("ledger: update stock for product %d: %w", p.ID, err)
	}
	if err := store.AppendAudit(ctx, AuditEntry{
		ProductID: p.ID,
		OldStock:  oldStock,
		NewStock:  p.Stock,
		Actor:     actor,
		Reason:    reason,
		Ref:       ref,
	}); err != nil {
		return fmt.Errorf("ledger: append audit for product %d: %w", p.ID, err)
	}
	return nil
}
