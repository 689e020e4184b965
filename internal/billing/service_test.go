package billing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/martpos/martpos/internal/cart"
	"github.com/martpos/martpos/internal/catalog"
	"github.com/martpos/martpos/internal/ledger"
	"github.com/martpos/martpos/internal/loyalty"
	"github.com/martpos/martpos/internal/promo"
	"github.com/martpos/martpos/internal/shared"
)

// memStore emulates the database for the orchestrator: WithTx serialises
// units of work the way row locks would, and writes only land on commit.
type memStore struct {
	mu        sync.Mutex
	products  map[int64]*catalog.Product
	batches   map[int64]*catalog.ProductBatch
	customers map[int64]*loyalty.Customer
	cards     map[string]*loyalty.GiftCard
	drawers   map[int64]*CashDrawer
	seq       map[int]int64
	sales     []*Sale
	promoUses map[int64]int64
	audit     []ledger.AuditEntry
}

func newMemStore() *memStore {
	return &memStore{
		products:  make(map[int64]*catalog.Product),
		batches:   make(map[int64]*catalog.ProductBatch),
		customers: make(map[int64]*loyalty.Customer),
		cards:     make(map[string]*loyalty.GiftCard),
		drawers:   make(map[int64]*CashDrawer),
		seq:       make(map[int]int64),
		promoUses: make(map[int64]int64),
	}
}

func (m *memStore) WithTx(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		store:     m,
		products:  make(map[int64]*catalog.Product, len(m.products)),
		batches:   make(map[int64]*catalog.ProductBatch, len(m.batches)),
		customers: make(map[int64]*loyalty.Customer, len(m.customers)),
		cards:     make(map[string]*loyalty.GiftCard, len(m.cards)),
		drawers:   make(map[int64]*CashDrawer, len(m.drawers)),
		seq:       make(map[int]int64, len(m.seq)),
		promoUses: make(map[int64]int64, len(m.promoUses)),
	}
	for k, v := range m.products {
		cp := *v
		tx.products[k] = &cp
	}
	for k, v := range m.batches {
		cp := *v
		tx.batches[k] = &cp
	}
	for k, v := range m.customers {
		cp := *v
		tx.customers[k] = &cp
	}
	for k, v := range m.cards {
		cp := *v
		tx.cards[k] = &cp
	}
	for k, v := range m.drawers {
		cp := *v
		tx.drawers[k] = &cp
	}
	for k, v := range m.seq {
		tx.seq[k] = v
	}
	for k, v := range m.promoUses {
		tx.promoUses[k] = v
	}

	if err := fn(tx); err != nil {
		return err
	}

	m.products = tx.products
	m.batches = tx.batches
	m.customers = tx.customers
	m.cards = tx.cards
	m.drawers = tx.drawers
	m.seq = tx.seq
	m.promoUses = tx.promoUses
	m.sales = append(m.sales, tx.sales...)
	m.audit = append(m.audit, tx.audit...)
	return nil
}

type memTx struct {
	store     *memStore
	products  map[int64]*catalog.Product
	batches   map[int64]*catalog.ProductBatch
	customers map[int64]*loyalty.Customer
	cards     map[string]*loyalty.GiftCard
	drawers   map[int64]*CashDrawer
	seq       map[int]int64
	promoUses map[int64]int64
	sales     []*Sale
	audit     []ledger.AuditEntry
}

func (t *memTx) LockProducts(_ context.Context, ids []int64) (map[int64]*catalog.Product, error) {
	out := make(map[int64]*catalog.Product, len(ids))
	for _, id := range shared.SortedIDs(ids) {
		p, ok := t.products[id]
		if !ok {
			return nil, catalog.ErrProductNotFound
		}
		out[id] = p
	}
	return out, nil
}

func (t *memTx) LedgerStore() ledger.Store { return (*memLedger)(t) }

func (t *memTx) AllocateInvoice(_ context.Context, year int) (string, error) {
	t.seq[year]++
	return fmt.Sprintf("%d-%04d", year, t.seq[year]), nil
}

func (t *memTx) LockCustomer(_ context.Context, id int64) (*loyalty.Customer, error) {
	c, ok := t.customers[id]
	if !ok {
		return nil, loyalty.ErrCustomerNotFound
	}
	return c, nil
}

func (t *memTx) AdjustPoints(_ context.Context, customerID, delta int64) error {
	c, ok := t.customers[customerID]
	if !ok {
		return loyalty.ErrCustomerNotFound
	}
	c.Points += delta
	return nil
}

func (t *memTx) LockGiftCard(_ context.Context, code string) (*loyalty.GiftCard, error) {
	g, ok := t.cards[code]
	if !ok {
		return nil, loyalty.ErrGiftCardNotFound
	}
	return g, nil
}

func (t *memTx) DebitGiftCard(_ context.Context, cardID int64, amount decimal.Decimal) error {
	for _, g := range t.cards {
		if g.ID == cardID {
			g.Balance = g.Balance.Sub(amount)
			return nil
		}
	}
	return loyalty.ErrGiftCardNotFound
}

func (t *memTx) IncrementPromotionUsage(_ context.Context, promotionIDs []int64) error {
	for _, id := range promotionIDs {
		t.promoUses[id]++
	}
	return nil
}

func (t *memTx) InsertSale(_ context.Context, sale *Sale) error {
	sale.ID = int64(len(t.store.sales)+len(t.sales)) + 1
	sale.CreatedAt = time.Now()
	t.sales = append(t.sales, sale)
	return nil
}

func (t *memTx) LockDrawer(_ context.Context, drawerID int64) (*CashDrawer, error) {
	d, ok := t.drawers[drawerID]
	if !ok {
		return nil, ErrDrawerNotOpen
	}
	return d, nil
}

func (t *memTx) AddToDrawer(_ context.Context, drawerID int64, amount decimal.Decimal) error {
	d, ok := t.drawers[drawerID]
	if !ok {
		return ErrDrawerNotOpen
	}
	d.SystemTotal = d.SystemTotal.Add(amount)
	return nil
}

// memLedger adapts memTx to the ledger's store surface.
type memLedger memTx

func (m *memLedger) SetProductStock(_ context.Context, productID, newStock int64) error {
	p, ok := m.products[productID]
	if !ok {
		return catalog.ErrProductNotFound
	}
	p.Stock = newStock
	return nil
}

func (m *memLedger) BatchesForUpdate(_ context.Context, productID int64) ([]catalog.ProductBatch, error) {
	var out []catalog.ProductBatch
	for _, b := range m.batches {
		if b.ProductID == productID && b.Quantity > 0 {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memLedger) SetBatchQuantity(_ context.Context, batchID, quantity int64) error {
	if b, ok := m.batches[batchID]; ok {
		b.Quantity = quantity
	}
	return nil
}

func (m *memLedger) FindBatchForUpdate(_ context.Context, productID int64, batchNumber string) (*catalog.ProductBatch, error) {
	for _, b := range m.batches {
		if b.ProductID == productID && b.BatchNumber == batchNumber {
			return b, nil
		}
	}
	return nil, ledger.ErrBatchNotFound
}

func (m *memLedger) InsertBatch(_ context.Context, b catalog.ProductBatch) (int64, error) {
	b.ID = int64(len(m.batches) + 1)
	m.batches[b.ID] = &b
	return b.ID, nil
}

func (m *memLedger) AppendAudit(_ context.Context, e ledger.AuditEntry) error {
	m.audit = append(m.audit, e)
	return nil
}

// memCarts is an in-memory CartStore.
type memCarts struct {
	mu     sync.Mutex
	states map[int64]cart.State
}

func newMemCarts() *memCarts { return &memCarts{states: make(map[int64]cart.State)} }

func (c *memCarts) Load(_ context.Context, drawerID int64) (cart.State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[drawerID]
	if !ok {
		return cart.State{Lines: cart.Snapshot{}}, nil
	}
	return st, nil
}

func (c *memCarts) Clear(_ context.Context, drawerID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, drawerID)
	return nil
}

type memPromos struct{ promos []promo.Promotion }

func (p *memPromos) ListCandidates(context.Context) ([]promo.Promotion, error) {
	return p.promos, nil
}

type fixture struct {
	store  *memStore
	carts  *memCarts
	promos *memPromos
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		store:  newMemStore(),
		carts:  newMemCarts(),
		promos: &memPromos{},
	}
	f.svc = NewService(f.store, f.carts, f.promos, ledger.New(logger), nil, nil, nil, logger)
	f.svc.now = func() time.Time { return time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC) }
	f.store.drawers[1] = &CashDrawer{ID: 1, OpenedBy: 7, Status: DrawerOpen,
		OpeningFloat: decimal.NewFromInt(1000), SystemTotal: decimal.Zero, OpenedAt: time.Now()}
	return f
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) addProduct(id int64, name, price, gst string, stock int64) {
	f.store.products[id] = &catalog.Product{
		ID: id, Name: name, Price: dec(price), GSTPercent: dec(gst),
		Stock: stock, IsActive: true,
	}
}

func (f *fixture) setCart(drawerID int64, customerID *int64, lines ...cart.Line) {
	snap := cart.Snapshot{}
	for _, l := range lines {
		snap[l.ProductID] = l
	}
	f.carts.states[drawerID] = cart.State{Lines: snap, CustomerID: customerID}
}

func cartLine(f *fixture, productID, qty int64) cart.Line {
	p := f.store.products[productID]
	return cart.Line{
		ProductID:  productID,
		Name:       p.Name,
		UnitPrice:  p.Price,
		GSTPercent: p.GSTPercent,
		Quantity:   qty,
	}
}

func sessionFor(drawer int64) shared.Session {
	return shared.Session{CashierID: 7, DrawerID: drawer}
}

func TestCompleteEmptyCartIsNoOp(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Complete(context.Background(), CompleteSaleInput{Session: sessionFor(1)})
	require.ErrorIs(t, err, ErrEmptyCart)
	require.Empty(t, f.store.sales)
	require.Empty(t, f.store.seq)
}

func TestCompleteCashSale(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "Milk 1L", "60.00", "5", 10)
	f.addProduct(2, "Bread", "40.00", "0", 10)
	f.setCart(1, nil, cartLine(f, 1, 2), cartLine(f, 2, 1))

	sale, err := f.svc.Complete(context.Background(), CompleteSaleInput{
		Session: sessionFor(1),
		Tender:  TenderAmounts{Cash: dec("200.00")},
	})
	require.NoError(t, err)

	// 120.00 + 40.00 goods, 6.00 GST on milk
	require.Equal(t, "2026-0001", sale.InvoiceNo)
	require.Equal(t, "160.00", sale.Subtotal.StringFixed(2))
	require.Equal(t, "6.00", sale.GSTAmount.StringFixed(2))
	require.Equal(t, "166.00", sale.GrandTotal.StringFixed(2))

	require.Len(t, sale.Payments, 1)
	require.Equal(t, MethodCash, sale.Payments[0].Method)
	require.Equal(t, "166.00", sale.Payments[0].Amount.StringFixed(2))

	require.Equal(t, int64(8), f.store.products[1].Stock)
	require.Equal(t, int64(9), f.store.products[2].Stock)
	require.Equal(t, "166.00", f.store.drawers[1].SystemTotal.StringFixed(2))
	require.Len(t, f.store.audit, 2)
	require.Equal(t, ledger.ReasonSaleDeduction, f.store.audit[0].Reason)
	require.Equal(t, "2026-0001", f.store.audit[0].Ref)

	// cart cleared on success
	st, err := f.carts.Load(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, st.Empty())
}

func TestCompleteAllZeroTenderDefaultsToCash(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "Milk 1L", "60.00", "0", 10)
	f.setCart(1, nil, cartLine(f, 1, 1))

	sale, err := f.svc.Complete(context.Background(), CompleteSaleInput{Session: sessionFor(1)})
	require.NoError(t, err)
	require.Len(t, sale.Payments, 1)
	require.Equal(t, MethodCash, sale.Payments[0].Method)
	require.Equal(t, sale.GrandTotal.StringFixed(2), sale.Payments[0].Amount.StringFixed(2))
}

func TestCompletePaymentWithinTolerance(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "Milk 1L", "60.00", "0", 10)
	f.setCart(1, nil, cartLine(f, 1, 1))

	// 0.05 short is accepted; legs still sum to the grand total.
	sale, err := f.svc.Complete(context.Background(), CompleteSaleInput{
		Session: sessionFor(1),
		Tender:  TenderAmounts{Cash: dec("59.95")},
	})
	require.NoError(t, err)

	legSum := decimal.Zero
	for _, p := range sale.Payments {
		legSum = legSum.Add(p.Amount)
	}
	require.True(t, legSum.Equal(sale.GrandTotal))
}

func TestCompletePaymentShortBeyondTolerance(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "Milk 1L", "60.00", "0", 10)
	f.setCart(1, nil, cartLine(f, 1, 1))

	_, err := f.svc.Complete(context.Background(), CompleteSaleInput{
		Session: sessionFor(1),
		Tender:  TenderAmounts{Cash: dec("59.94")},
	})
	var short *InsufficientPaymentError
	require.ErrorAs(t, err, &short)
	require.Equal(t, "59.94", short.Paid.StringFixed(2))

	// nothing committed, cart retained
	require.Empty(t, f.store.sales)
	require.Equal(t, int64(10), f.store.products[1].Stock)
	require.Empty(t, f.store.seq)
	st, _ := f.carts.Load(context.Background(), 1)
	require.False(t, st.Empty())
}

func TestCompleteInsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "Milk 1L", "60.00", "0", 1)
	f.setCart(1, nil, cartLine(f, 1, 2))

	_, err := f.svc.Complete(context.Background(), CompleteSaleInput{Session: sessionFor(1)})
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)
	require.Empty(t, f.store.sales)
	require.Equal(t, int64(1), f.store.products[1].Stock)
}

func TestCompleteConcurrentLastUnit(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "Milk 1L", "60.00", "0", 1)
	f.store.drawers[2] = &CashDrawer{ID: 2, OpenedBy: 8, Status: DrawerOpen,
		OpeningFloat: decimal.Zero, SystemTotal: decimal.Zero, OpenedAt: time.Now()}
	f.setCart(1, nil, cartLine(f, 1, 1))
	f.setCart(2, nil, cartLine(f, 1, 1))

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, drawer := range []int64{1, 2} {
		wg.Add(1)
		go func(d int64) {
			defer wg.Done()
			_, err := f.svc.Complete(context.Background(), CompleteSaleInput{
				Session: shared.Session{CashierID: d, DrawerID: d},
			})
			errs <- err
		}(drawer)
	}
	wg.Wait()
	close(errs)

	var failures []error
	for err := range errs {
		if err != nil {
			failures = append(failures, err)
		}
	}
	require.Len(t, failures, 1)
	require.ErrorIs(t, failures[0], ledger.ErrInsufficientStock)
	require.Len(t, f.store.sales, 1)
	require.Equal(t, int64(0), f.store.products[1].Stock)
	require.Equal(t, int64(1), f.store.seq[2026])
}

func TestCompleteAppliesPromotionsAndUsage(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "Milk 1L", "100.00", "0", 10)
	f.setCart(1, nil, cartLine(f, 1, 4))

	rule, err := promo.NewPercentItemsRule([]int64{1}, dec("10"))
	require.NoError(t, err)
	f.promos.promos = []promo.Promotion{{
		ID: 3, Name: "Milk Madness", Rule: rule, Active: true, Stackable: true,
	}}

	sale, err := f.svc.Complete(context.Background(), CompleteSaleInput{
		Session: sessionFor(1),
		Tender:  TenderAmounts{Cash: dec("400.00")},
	})
	require.NoError(t, err)

	require.Equal(t, "40.00", sale.Discount.StringFixed(2))
	require.Equal(t, "360.00", sale.GrandTotal.StringFixed(2))
	require.Len(t, sale.Promotions, 1)
	require.Equal(t, int64(3), sale.Promotions[0].PromotionID)
	require.Equal(t, int64(1), f.store.promoUses[3])
}

func TestCompleteLoyaltyRedemptionAndAccrual(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "Hamper", "500.00", "0", 10)
	customerID := int64(42)
	f.store.customers[customerID] = &loyalty.Customer{ID: customerID, Name: "Asha", Points: 100}
	f.setCart(1, &customerID, cartLine(f, 1, 1))

	sale, err := f.svc.Complete(context.Background(), CompleteSaleInput{
		Session: sessionFor(1),
		Tender:  TenderAmounts{Cash: dec("450.00"), Loyalty: dec("50.00")},
	})
	require.NoError(t, err)

	// 100 - 50 redeemed + 5 earned on 500.00
	require.Equal(t, int64(5), sale.PointsEarned)
	require.Equal(t, int64(55), f.store.customers[customerID].Points)

	methods := map[string]string{}
	for _, p := range sale.Payments {
		methods[p.Method] = p.Amount.StringFixed(2)
	}
	require.Equal(t, "50.00", methods[MethodLoyalty])
	require.Equal(t, "450.00", methods[MethodCash])
}

func TestCompleteLoyaltyRequiresCustomerAndPoints(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "Hamper", "500.00", "0", 10)
	f.setCart(1, nil, cartLine(f, 1, 1))

	_, err := f.svc.Complete(context.Background(), CompleteSaleInput{
		Session: sessionFor(1),
		Tender:  TenderAmounts{Cash: dec("450.00"), Loyalty: dec("50.00")},
	})
	require.ErrorIs(t, err, ErrNoCustomerForLoyalty)

	customerID := int64(42)
	f.store.customers[customerID] = &loyalty.Customer{ID: customerID, Points: 10}
	f.setCart(1, &customerID, cartLine(f, 1, 1))

	_, err = f.svc.Complete(context.Background(), CompleteSaleInput{
		Session: sessionFor(1),
		Tender:  TenderAmounts{Cash: dec("450.00"), Loyalty: dec("50.00")},
	})
	require.ErrorIs(t, err, ErrInsufficientLoyaltyPoints)
	require.Equal(t, int64(10), f.store.customers[customerID].Points)
}

func TestCompleteGiftCardChecks(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "Hamper", "500.00", "0", 10)
	f.setCart(1, nil, cartLine(f, 1, 1))

	_, err := f.svc.Complete(context.Background(), CompleteSaleInput{
		Session: sessionFor(1),
		Tender:  TenderAmounts{Cash: dec("400.00"), Gift: dec("100.00"), GiftCardCode: "NOPE"},
	})
	require.ErrorIs(t, err, ErrInvalidGiftCard)

	f.store.cards["GC-1"] = &loyalty.GiftCard{ID: 1, Code: "GC-1", Balance: dec("60.00"), IsActive: true}
	f.setCart(1, nil, cartLine(f, 1, 1))
	_, err = f.svc.Complete(context.Background(), CompleteSaleInput{
		Session: sessionFor(1),
		Tender:  TenderAmounts{Cash: dec("400.00"), Gift: dec("100.00"), GiftCardCode: "GC-1"},
	})
	require.ErrorIs(t, err, ErrInsufficientGiftCardBalance)
	require.Equal(t, "60.00", f.store.cards["GC-1"].Balance.StringFixed(2))

	f.setCart(1, nil, cartLine(f, 1, 1))
	sale, err := f.svc.Complete(context.Background(), CompleteSaleInput{
		Session: sessionFor(1),
		Tender:  TenderAmounts{Cash: dec("440.00"), Gift: dec("60.00"), GiftCardCode: "GC-1"},
	})
	require.NoError(t, err)
	require.Equal(t, "0.00", f.store.cards["GC-1"].Balance.StringFixed(2))

	var giftLeg *SalePayment
	for i := range sale.Payments {
		if sale.Payments[i].Method == MethodGift {
			giftLeg = &sale.Payments[i]
		}
	}
	require.NotNil(t, giftLeg)
	require.Equal(t, "GC-1", giftLeg.GiftCardCode)
}

func TestCompleteRejectsNonCashOvertender(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "Soap Bar", "50.00", "0", 10)
	f.store.cards["GC-9"] = &loyalty.GiftCard{ID: 9, Code: "GC-9", Balance: dec("100.00"), IsActive: true}
	f.setCart(1, nil, cartLine(f, 1, 1))

	// A 100.00 gift leg against a 50.00 sale must not debit the card
	// past the sale value; only cash overtender is change.
	_, err := f.svc.Complete(context.Background(), CompleteSaleInput{
		Session: sessionFor(1),
		Tender:  TenderAmounts{Gift: dec("100.00"), GiftCardCode: "GC-9"},
	})
	var over *OvertenderError
	require.ErrorAs(t, err, &over)
	require.Equal(t, "100.00", over.NonCash.StringFixed(2))
	require.Equal(t, "50.00", over.GrandTotal.StringFixed(2))

	require.Equal(t, "100.00", f.store.cards["GC-9"].Balance.StringFixed(2))
	require.Empty(t, f.store.sales)
	require.Equal(t, int64(10), f.store.products[1].Stock)

	// An exact gift leg settles with a single recorded leg.
	sale, err := f.svc.Complete(context.Background(), CompleteSaleInput{
		Session: sessionFor(1),
		Tender:  TenderAmounts{Gift: dec("50.00"), GiftCardCode: "GC-9"},
	})
	require.NoError(t, err)
	require.Equal(t, "50.00", f.store.cards["GC-9"].Balance.StringFixed(2))

	legSum := decimal.Zero
	for _, p := range sale.Payments {
		legSum = legSum.Add(p.Amount)
	}
	require.True(t, legSum.Equal(sale.GrandTotal))
}

func TestCompleteDrawerMustBeOpen(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "Milk 1L", "60.00", "0", 10)
	f.setCart(1, nil, cartLine(f, 1, 1))
	f.store.drawers[1].Status = DrawerClosed

	_, err := f.svc.Complete(context.Background(), CompleteSaleInput{Session: sessionFor(1)})
	require.ErrorIs(t, err, ErrDrawerNotOpen)
	require.Empty(t, f.store.sales)
}

func TestCompleteProductVanished(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "Milk 1L", "60.00", "0", 10)
	f.setCart(1, nil, cartLine(f, 1, 1))
	delete(f.store.products, 1)

	_, err := f.svc.Complete(context.Background(), CompleteSaleInput{Session: sessionFor(1)})
	require.ErrorIs(t, err, ErrProductVanished)
}

func TestCompleteInvoiceNumbersAreGapless(t *testing.T) {
	f := newFixture(t)
	f.addProduct(1, "Milk 1L", "60.00", "0", 100)

	// a failed attempt between two successes must not consume a number
	f.setCart(1, nil, cartLine(f, 1, 1))
	first, err := f.svc.Complete(context.Background(), CompleteSaleInput{Session: sessionFor(1)})
	require.NoError(t, err)

	f.setCart(1, nil, cartLine(f, 1, 1))
	_, err = f.svc.Complete(context.Background(), CompleteSaleInput{
		Session: sessionFor(1),
		Tender:  TenderAmounts{Card: dec("1.00")},
	})
	require.Error(t, err)

	f.setCart(1, nil, cartLine(f, 1, 1))
	second, err := f.svc.Complete(context.Background(), CompleteSaleInput{Session: sessionFor(1)})
	require.NoError(t, err)

	require.Equal(t, "2026-0001", first.InvoiceNo)
	require.Equal(t, "2026-0002", second.InvoiceNo)
}

func TestCompleteWeighedLine(t *testing.T) {
	f := newFixture(t)
	perKg := dec("120.00")
	f.store.products[2] = &catalog.Product{
		ID: 2, Name: "Apples", Price: perKg, PricePerKg: &perKg,
		GSTPercent: decimal.Zero, Stock: 0, IsWeighed: true, IsActive: true,
	}
	weight := dec("0.750")
	f.setCart(1, nil, cart.Line{
		ProductID: 2, Name: "Apples", UnitPrice: perKg,
		IsWeighed: true, Weight: &weight, Quantity: 1,
	})

	sale, err := f.svc.Complete(context.Background(), CompleteSaleInput{Session: sessionFor(1)})
	require.NoError(t, err)
	require.Equal(t, "90.00", sale.GrandTotal.StringFixed(2))
	require.NotNil(t, sale.Items[0].Weight)
	// weighed lines do not pass through the unit ledger
	require.Empty(t, f.store.audit)
}
