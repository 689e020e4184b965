package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/martpos/martpos/internal/cart"
	"github.com/martpos/martpos/internal/catalog"
	"github.com/martpos/martpos/internal/ledger"
	"github.com/martpos/martpos/internal/loyalty"
	"github.com/martpos/martpos/internal/promo"
	"github.com/martpos/martpos/internal/shared"
)

// CartStore is the slice of the cart package the orchestrator needs.
type CartStore interface {
	Load(ctx context.Context, drawerID int64) (cart.State, error)
	Clear(ctx context.Context, drawerID int64) error
}

// PromotionSource lists the promotions eligible for evaluation.
type PromotionSource interface {
	ListCandidates(ctx context.Context) ([]promo.Promotion, error)
}

// ReceiptQueue enqueues post-commit receipt rendering.
type ReceiptQueue interface {
	EnqueueRender(ctx context.Context, saleID int64) error
}

// ReceiptRenderer renders and stores a receipt inline, used as the
// fallback when the queue is unavailable.
type ReceiptRenderer interface {
	RenderAndStore(ctx context.Context, saleID int64) error
}

// IdempotencyGuard deduplicates checkout submissions.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// CompleteSaleInput is one checkout attempt.
type CompleteSaleInput struct {
	Session        shared.Session
	Tender         TenderAmounts
	IdempotencyKey string
}

// Service is the sale completion orchestrator. One call to Complete
// produces either a fully committed sale or exactly one error with no
// partial writes; the cart is only cleared on success.
type Service struct {
	store    Store
	carts    CartStore
	promos   PromotionSource
	ledger   *ledger.Ledger
	queue    ReceiptQueue
	renderer ReceiptRenderer
	idem     IdempotencyGuard
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the orchestrator. queue, renderer and idem may be nil
// when the corresponding facility is not deployed.
func NewService(store Store, carts CartStore, promos PromotionSource, ldg *ledger.Ledger,
	queue ReceiptQueue, renderer ReceiptRenderer, idem IdempotencyGuard, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		carts:    carts,
		promos:   promos,
		ledger:   ldg,
		queue:    queue,
		renderer: renderer,
		idem:     idem,
		logger:   logger,
		now:      time.Now,
	}
}

// Complete turns the drawer's cart into a committed sale.
func (s *Service) Complete(ctx context.Context, input CompleteSaleInput) (*Sale, error) {
	if input.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, input.IdempotencyKey, "billing"); err != nil {
			return nil, err
		}
	}

	sale, err := s.complete(ctx, input)
	if err != nil {
		if input.IdempotencyKey != "" && s.idem != nil {
			if derr := s.idem.Delete(ctx, input.IdempotencyKey); derr != nil {
				s.logger.Error("release idempotency key", slog.Any("error", derr))
			}
		}
		return nil, err
	}

	s.afterCommit(ctx, sale, input.Session.DrawerID)
	return sale, nil
}

func (s *Service) complete(ctx context.Context, input CompleteSaleInput) (*Sale, error) {
	drawerID := input.Session.DrawerID
	state, err := s.carts.Load(ctx, drawerID)
	if err != nil {
		return nil, err
	}
	if state.Empty() {
		return nil, ErrEmptyCart
	}

	candidates, err := s.promos.ListCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("billing: list promotions: %w", err)
	}

	ids := make([]int64, 0, len(state.Lines))
	for id := range state.Lines {
		ids = append(ids, id)
	}
	ids = shared.SortedIDs(ids)

	now := s.now()
	var sale *Sale
	err = s.store.WithTx(ctx, func(tx Tx) error {
		drawer, err := tx.LockDrawer(ctx, drawerID)
		if err != nil {
			return err
		}
		if drawer.Status != DrawerOpen {
			return ErrDrawerNotOpen
		}

		products, err := tx.LockProducts(ctx, ids)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				return fmt.Errorf("%w: %v", ErrProductVanished, err)
			}
			return err
		}

		items, promoCart, err := buildItems(state.Lines, products)
		if err != nil {
			return err
		}

		subtotal, gstTotal := decimal.Zero, decimal.Zero
		for _, it := range items {
			subtotal = subtotal.Add(it.Subtotal)
			gstTotal = gstTotal.Add(it.GSTAmount)
		}

		result := promo.Evaluate(promoCart, candidates, now)
		discount := result.TotalDiscount
		grand := subtotal.Sub(discount).Add(gstTotal)

		invoiceNo, err := tx.AllocateInvoice(ctx, now.Year())
		if err != nil {
			return err
		}

		ledgerStore := tx.LedgerStore()
		for _, it := range items {
			if it.Weight != nil {
				continue
			}
			p := products[it.ProductID]
			if err := s.ledger.Decrement(ctx, ledgerStore, p, it.Quantity,
				input.Session.CashierID, ledger.ReasonSaleDeduction, invoiceNo); err != nil {
				return err
			}
		}

		payments, err := s.settle(ctx, tx, input.Tender, grand, state.CustomerID)
		if err != nil {
			return err
		}

		earned := int64(0)
		if state.CustomerID != nil {
			earned = loyalty.PointsEarned(grand)
			if earned > 0 {
				if err := tx.AdjustPoints(ctx, *state.CustomerID, earned); err != nil {
					return fmt.Errorf("billing: accrue points: %w", err)
				}
			}
		}

		sale = &Sale{
			InvoiceNo:    invoiceNo,
			CashierID:    input.Session.CashierID,
			CustomerID:   state.CustomerID,
			Subtotal:     subtotal,
			Discount:     discount,
			GSTAmount:    gstTotal,
			GrandTotal:   grand,
			PointsEarned: earned,
			Items:        items,
			Payments:     payments,
			Promotions:   appliedSnapshots(result.Applied),
		}
		if err := tx.InsertSale(ctx, sale); err != nil {
			return fmt.Errorf("billing: persist sale: %w", err)
		}

		if len(result.Applied) > 0 {
			usedIDs := make([]int64, 0, len(result.Applied))
			for _, a := range result.Applied {
				usedIDs = append(usedIDs, a.PromotionID)
			}
			if err := tx.IncrementPromotionUsage(ctx, usedIDs); err != nil {
				return fmt.Errorf("billing: record promotion usage: %w", err)
			}
		}

		return tx.AddToDrawer(ctx, drawerID, grand)
	})
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// buildItems prices the sale from the cart snapshot, validating counted
// quantities against the locked stock. Weighed lines are priced by
// weight and do not pass through the unit ledger.
func buildItems(lines cart.Snapshot, products map[int64]*catalog.Product) ([]SaleItem, promo.Cart, error) {
	ids := make([]int64, 0, len(lines))
	for id := range lines {
		ids = append(ids, id)
	}
	ids = shared.SortedIDs(ids)

	items := make([]SaleItem, 0, len(ids))
	promoCart := promo.Cart{}
	for _, id := range ids {
		line := lines[id]
		p, ok := products[id]
		if !ok {
			return nil, nil, fmt.Errorf("%w: product %d", ErrProductVanished, id)
		}

		item := SaleItem{
			ProductID:  id,
			Name:       line.Name,
			UnitPrice:  line.UnitPrice,
			Quantity:   line.Quantity,
			GSTPercent: line.GSTPercent,
		}
		if line.IsWeighed && line.Weight != nil {
			w := shared.Round3(*line.Weight)
			item.Weight = &w
			item.Quantity = 1
			item.Subtotal = shared.Round2(line.UnitPrice.Mul(w))
		} else {
			if p.Stock < line.Quantity {
				return nil, nil, &ledger.InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Available:   p.Stock,
					Requested:   line.Quantity,
				}
			}
			item.Subtotal = shared.Round2(line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity)))
		}
		item.GSTAmount = shared.Percent(item.Subtotal, line.GSTPercent)
		item.Total = item.Subtotal.Add(item.GSTAmount)
		items = append(items, item)

		promoLine := promo.Line{
			UnitPrice:  line.UnitPrice,
			Quantity:   item.Quantity,
			GSTPercent: line.GSTPercent,
		}
		if item.Weight != nil {
			// Weighed lines enter the engine as one unit at the
			// already-computed line value.
			promoLine.UnitPrice = item.Subtotal
		}
		promoCart[id] = promoLine
	}
	return items, promoCart, nil
}

// settle reconciles the tendered amounts against the grand total and
// applies the loyalty and gift card side effects. The recorded legs
// always sum exactly to the grand total: overtendered cash is change,
// never revenue, and a non-cash sum past the grand total is rejected
// before any card or points are debited.
func (s *Service) settle(ctx context.Context, tx Tx, tender TenderAmounts, grand decimal.Decimal, customerID *int64) ([]SalePayment, error) {
	if tender.AllZero() {
		tender.Cash = grand
	}

	paid := tender.Total()
	if paid.LessThan(grand.Sub(shared.PaymentTolerance)) {
		return nil, &InsufficientPaymentError{Paid: paid, Required: grand}
	}
	if nonCash := tender.NonCash(); nonCash.GreaterThan(grand) {
		return nil, &OvertenderError{NonCash: nonCash, GrandTotal: grand}
	}

	if tender.Loyalty.Sign() > 0 {
		if customerID == nil {
			return nil, ErrNoCustomerForLoyalty
		}
		customer, err := tx.LockCustomer(ctx, *customerID)
		if err != nil {
			return nil, err
		}
		pointsNeeded := tender.Loyalty.Ceil().IntPart()
		if customer.Points < pointsNeeded {
			return nil, ErrInsufficientLoyaltyPoints
		}
		if err := tx.AdjustPoints(ctx, customer.ID, -pointsNeeded); err != nil {
			return nil, fmt.Errorf("billing: redeem points: %w", err)
		}
	}

	if tender.Gift.Sign() > 0 {
		if tender.GiftCardCode == "" {
			return nil, ErrInvalidGiftCard
		}
		card, err := tx.LockGiftCard(ctx, tender.GiftCardCode)
		if err != nil {
			if errors.Is(err, loyalty.ErrGiftCardNotFound) {
				return nil, ErrInvalidGiftCard
			}
			return nil, err
		}
		if !card.IsActive {
			return nil, ErrInvalidGiftCard
		}
		if card.Balance.LessThan(tender.Gift) {
			return nil, ErrInsufficientGiftCardBalance
		}
		if err := tx.DebitGiftCard(ctx, card.ID, tender.Gift); err != nil {
			return nil, fmt.Errorf("billing: debit gift card: %w", err)
		}
	}

	cashLeg := grand.Sub(tender.NonCash())

	var payments []SalePayment
	add := func(method string, amount decimal.Decimal, code string) {
		if amount.Sign() > 0 {
			payments = append(payments, SalePayment{Method: method, Amount: amount, GiftCardCode: code})
		}
	}
	add(MethodCash, cashLeg, "")
	add(MethodCard, tender.Card, "")
	add(MethodUPI, tender.UPI, "")
	add(MethodLoyalty, tender.Loyalty, "")
	add(MethodGift, tender.Gift, tender.GiftCardCode)
	return payments, nil
}

func appliedSnapshots(applied []promo.Applied) []AppliedPromotion {
	if len(applied) == 0 {
		return nil
	}
	out := make([]AppliedPromotion, 0, len(applied))
	for _, a := range applied {
		out = append(out, AppliedPromotion{
			PromotionID: a.PromotionID,
			Name:        a.Name,
			Description: a.Description,
			Discount:    a.Discount,
		})
	}
	return out
}

// afterCommit runs the non-transactional tail of a successful sale:
// receipt snapshot and cart teardown. Failures here are logged, never
// surfaced; the sale is already committed.
func (s *Service) afterCommit(ctx context.Context, sale *Sale, drawerID int64) {
	switch {
	case s.queue != nil:
		if err := s.queue.EnqueueRender(ctx, sale.ID); err != nil {
			s.logger.Warn("enqueue receipt render, falling back inline",
				"sale_id", sale.ID, "error", err)
			s.renderInline(ctx, sale.ID)
		}
	case s.renderer != nil:
		s.renderInline(ctx, sale.ID)
	}

	if err := s.carts.Clear(ctx, drawerID); err != nil {
		s.logger.Error("clear cart after sale", "drawer_id", drawerID, "error", err)
	}
}

func (s *Service) renderInline(ctx context.Context, saleID int64) {
	if s.renderer == nil {
		return
	}
	if err := s.renderer.RenderAndStore(ctx, saleID); err != nil {
		s.logger.Warn("inline receipt render", "sale_id", saleID, "error", err)
	}
}
