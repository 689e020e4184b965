package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/martpos/martpos/internal/catalog"
)

type memStore struct {
	stock   map[int64]int64
	batches map[int64]*catalog.ProductBatch
	audit   []AuditEntry
	nextID  int64
}

func newMemStore() *memStore {
	return &memStore{
		stock:   make(map[int64]int64),
		batches: make(map[int64]*catalog.ProductBatch),
		nextID:  1,
	}
}

func (m *memStore) addBatch(productID int64, number string, expiry *time.Time, qty int64) int64 {
	id := m.nextID
	m.nextID++
	m.batches[id] = &catalog.ProductBatch{
		ID:          id,
		ProductID:   productID,
		BatchNumber: number,
		ExpiryDate:  expiry,
		Quantity:    qty,
	}
	return id
}

func (m *memStore) SetProductStock(_ context.Context, productID, newStock int64) error {
	m.stock[productID] = newStock
	return nil
}

func (m *memStore) BatchesForUpdate(_ context.Context, productID int64) ([]catalog.ProductBatch, error) {
	var out []catalog.ProductBatch
	for _, b := range m.batches {
		if b.ProductID == productID && b.Quantity > 0 {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		bi, bj := out[i], out[j]
		if (bi.ExpiryDate == nil) != (bj.ExpiryDate == nil) {
			return bj.ExpiryDate == nil
		}
		if bi.ExpiryDate != nil && !bi.ExpiryDate.Equal(*bj.ExpiryDate) {
			return bi.ExpiryDate.Before(*bj.ExpiryDate)
		}
		return bi.ID < bj.ID
	})
	return out, nil
}

func (m *memStore) SetBatchQuantity(_ context.Context, batchID, quantity int64) error {
	b, ok := m.batches[batchID]
	if !ok {
		return errors.New("no such batch")
	}
	b.Quantity = quantity
	return nil
}

func (m *memStore) FindBatchForUpdate(_ context.Context, productID int64, batchNumber string) (*catalog.ProductBatch, error) {
	for _, b := range m.batches {
		if b.ProductID == productID && b.BatchNumber == batchNumber {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrBatchNotFound
}

func (m *memStore) InsertBatch(_ context.Context, b catalog.ProductBatch) (int64, error) {
	id := m.nextID
	m.nextID++
	b.ID = id
	m.batches[id] = &b
	return id, nil
}

func (m *memStore) AppendAudit(_ context.Context, e AuditEntry) error {
	e.ID = int64(len(m.audit) + 1)
	m.audit = append(m.audit, e)
	return nil
}

func testLedger() *Ledger {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func datePtr(t time.Time) *time.Time { return &t }

func TestDecrementConsumesEarliestExpiryFirst(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	b1 := store.addBatch(1, "B1", datePtr(now.AddDate(0, 0, 10)), 10)
	b2 := store.addBatch(1, "B2", datePtr(now.AddDate(0, 0, 20)), 10)

	p := &catalog.Product{ID: 1, Name: "Milk", Stock: 20}
	err := testLedger().Decrement(context.Background(), store, p, 15, 7, ReasonSaleDeduction, "2026-0001")
	require.NoError(t, err)

	require.Equal(t, int64(0), store.batches[b1].Quantity)
	require.Equal(t, int64(5), store.batches[b2].Quantity)
	require.Equal(t, int64(5), p.Stock)
	require.Equal(t, int64(5), store.stock[1])

	require.Len(t, store.audit, 1)
	require.Equal(t, int64(20), store.audit[0].OldStock)
	require.Equal(t, int64(5), store.audit[0].NewStock)
	require.Equal(t, ReasonSaleDeduction, store.audit[0].Reason)
	require.Equal(t, int64(7), store.audit[0].Actor)
}

func TestDecrementIndefiniteBatchesDrainLast(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	noExpiry := store.addBatch(1, "NE", nil, 10)
	dated := store.addBatch(1, "D", datePtr(now.AddDate(0, 1, 0)), 10)

	p := &catalog.Product{ID: 1, Name: "Rice", Stock: 20}
	require.NoError(t, testLedger().Decrement(context.Background(), store, p, 12, 1, ReasonSaleDeduction, ""))

	require.Equal(t, int64(0), store.batches[dated].Quantity)
	require.Equal(t, int64(8), store.batches[noExpiry].Quantity)
}

func TestDecrementInsufficientAggregateStock(t *testing.T) {
	store := newMemStore()
	store.addBatch(1, "B1", nil, 3)

	p := &catalog.Product{ID: 1, Name: "Soap", Stock: 3}
	err := testLedger().Decrement(context.Background(), store, p, 4, 1, ReasonSaleDeduction, "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInsufficientStock)

	var detail *InsufficientStockError
	require.ErrorAs(t, err, &detail)
	require.Equal(t, int64(3), detail.Available)
	require.Equal(t, int64(4), detail.Requested)

	require.Equal(t, int64(3), p.Stock)
	require.Empty(t, store.audit)
	require.Empty(t, store.stock)
}

func TestDecrementToleratesBatchShortfall(t *testing.T) {
	// Aggregate says 10 but lots only hold 6; the sale still goes through.
	store := newMemStore()
	b1 := store.addBatch(1, "B1", nil, 6)

	p := &catalog.Product{ID: 1, Name: "Sugar", Stock: 10}
	require.NoError(t, testLedger().Decrement(context.Background(), store, p, 8, 1, ReasonSaleDeduction, ""))

	require.Equal(t, int64(0), store.batches[b1].Quantity)
	require.Equal(t, int64(2), p.Stock)
	require.Equal(t, int64(2), store.stock[1])
	require.Len(t, store.audit, 1)
}

func TestDecrementRejectsNonPositiveQuantity(t *testing.T) {
	p := &catalog.Product{ID: 1, Name: "Salt", Stock: 5}
	err := testLedger().Decrement(context.Background(), newMemStore(), p, 0, 1, ReasonSaleDeduction, "")
	require.Error(t, err)
}

func TestIncrementMergesIntoExistingBatch(t *testing.T) {
	store := newMemStore()
	id := store.addBatch(1, "LOT-A", nil, 4)

	p := &catalog.Product{ID: 1, Name: "Tea", Stock: 4}
	err := testLedger().Increment(context.Background(), store, p, 6, 2, ReasonGoodsReceipt, "GR-1", &IncrementInput{BatchNumber: "LOT-A"})
	require.NoError(t, err)

	require.Equal(t, int64(10), store.batches[id].Quantity)
	require.Equal(t, int64(10), p.Stock)
	require.Len(t, store.audit, 1)
	require.Equal(t, ReasonGoodsReceipt, store.audit[0].Reason)
}

func TestIncrementCreatesNewBatch(t *testing.T) {
	store := newMemStore()
	expiry := datePtr(time.Now().AddDate(1, 0, 0))

	p := &catalog.Product{ID: 1, Name: "Tea", Stock: 0}
	err := testLedger().Increment(context.Background(), store, p, 5, 2, ReasonGoodsReceipt, "GR-2", &IncrementInput{BatchNumber: "LOT-B", ExpiryDate: expiry})
	require.NoError(t, err)

	b, err := store.FindBatchForUpdate(context.Background(), 1, "LOT-B")
	require.NoError(t, err)
	require.Equal(t, int64(5), b.Quantity)
	require.Equal(t, expiry, b.ExpiryDate)
	require.Equal(t, int64(5), p.Stock)
}

func TestIncrementWithoutBatchTouchesAggregateOnly(t *testing.T) {
	store := newMemStore()
	p := &catalog.Product{ID: 1, Name: "Tea", Stock: 3}
	err := testLedger().Increment(context.Background(), store, p, 2, 2, ReasonReturnRestock, "RET-1", nil)
	require.NoError(t, err)

	require.Equal(t, int64(5), p.Stock)
	require.Empty(t, store.batches)
	require.Len(t, store.audit, 1)
	require.Equal(t, ReasonReturnRestock, store.audit[0].Reason)
}
