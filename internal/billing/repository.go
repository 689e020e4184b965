package billing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/martpos/martpos/internal/billing/sequence"
	"github.com/martpos/martpos/internal/catalog"
	"github.com/martpos/martpos/internal/ledger"
	"github.com/martpos/martpos/internal/loyalty"
	"github.com/martpos/martpos/internal/platform/db"
	"github.com/martpos/martpos/internal/promo"
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

func (t *pgTx) LockProducts(ctx context.Context, ids []int64) (map[int64]*catalog.Product, error) {
	return catalog.LockProducts(ctx, t.tx, ids)
}

func (t *pgTx) LedgerStore() ledger.Store {
	return ledger.NewTxStore(t.tx)
}

func (t *pgTx) AllocateInvoice(ctx context.Context, year int) (string, error) {
	return sequence.Allocate(ctx, t.tx, year)
}

func (t *pgTx) LockCustomer(ctx context.Context, id int64) (*loyalty.Customer, error) {
	return loyalty.CustomerForUpdate(ctx, t.tx, id)
}

func (t *pgTx) AdjustPoints(ctx context.Context, customerID, delta int64) error {
	return loyalty.AdjustPoints(ctx, t.tx, customerID, delta)
}

func (t *pgTx) LockGiftCard(ctx context.Context, code string) (*loyalty.GiftCard, error) {
	return loyalty.GiftCardForUpdate(ctx, t.tx, code)
}

func (t *pgTx) DebitGiftCard(ctx context.Context, cardID int64, amount decimal.Decimal) error {
	return loyalty.DebitGiftCard(ctx, t.tx, cardID, amount)
}

func (t *pgTx) IncrementPromotionUsage(ctx context.Context, promotionIDs []int64) error {
	return promo.IncrementUsage(ctx, t.tx, promotionIDs)
}

func (t *pgTx) InsertSale(ctx context.Context, sale *Sale) error {
	now := time.Now().UTC()
	sale.CreatedAt = now
	err := t.tx.QueryRow(ctx, `INSERT INTO sales
(invoice_no, cashier_id, customer_id, subtotal, discount, gst_amount, grand_total, points_earned, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		sale.InvoiceNo, sale.CashierID, sale.CustomerID,
		sale.Subtotal, sale.Discount, sale.GSTAmount, sale.GrandTotal,
		sale.PointsEarned, now).Scan(&sale.ID)
	if err != nil {
		return err
	}

	for i := range sale.Items {
		item := &sale.Items[i]
		item.SaleID = sale.ID
		err := t.tx.QueryRow(ctx, `INSERT INTO sale_items
(sale_id, product_id, name, unit_price, quantity, weight, gst_percent, subtotal, gst_amount, total)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
			item.SaleID, item.ProductID, item.Name, item.UnitPrice, item.Quantity,
			item.Weight, item.GSTPercent, item.Subtotal, item.GSTAmount, item.Total).Scan(&item.ID)
		if err != nil {
			return err
		}
	}

	for i := range sale.Payments {
		p := &sale.Payments[i]
		p.SaleID = sale.ID
		var code any
		if p.GiftCardCode != "" {
			code = p.GiftCardCode
		}
		err := t.tx.QueryRow(ctx, `INSERT INTO sale_payments
(sale_id, method, amount, gift_card_code)
VALUES ($1,$2,$3,$4) RETURNING id`,
			p.SaleID, p.Method, p.Amount, code).Scan(&p.ID)
		if err != nil {
			return err
		}
	}

	for i := range sale.Promotions {
		ap := &sale.Promotions[i]
		ap.SaleID = sale.ID
		err := t.tx.QueryRow(ctx, `INSERT INTO applied_promotions
(sale_id, promotion_id, name, description, discount)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			ap.SaleID, ap.PromotionID, ap.Name, ap.Description, ap.Discount).Scan(&ap.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) LockDrawer(ctx context.Context, drawerID int64) (*CashDrawer, error) {
	return scanDrawer(t.tx.QueryRow(ctx,
		`SELECT `+drawerColumns+` FROM cash_drawers WHERE id=$1 FOR UPDATE`, drawerID))
}

func (t *pgTx) AddToDrawer(ctx context.Context, drawerID int64, amount decimal.Decimal) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE cash_drawers SET system_total = system_total + $2 WHERE id=$1`, drawerID, amount)
	return err
}

const drawerColumns = `id, opened_by, opening_float, system_total, status, counted_total, discrepancy, opened_at, closed_at`

func scanDrawer(row pgx.Row) (*CashDrawer, error) {
	var d CashDrawer
	err := row.Scan(&d.ID, &d.OpenedBy, &d.OpeningFloat, &d.SystemTotal, &d.Status,
		&d.CountedTotal, &d.Discrepancy, &d.OpenedAt, &d.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDrawerNotOpen
		}
		return nil, err
	}
	return &d, nil
}

// Repository reads sales and manages drawers on the pool, outside the
// sale transaction.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ErrSaleNotFound indicates no sale matches the lookup.
var ErrSaleNotFound = errors.New("billing: sale not found")

const saleColumns = `id, invoice_no, cashier_id, customer_id, subtotal, discount, gst_amount, grand_total, points_earned, is_printed, COALESCE(receipt, ''), created_at`

func (r *Repository) GetSale(ctx context.Context, id int64) (*Sale, error) {
	return r.loadSale(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1`, id)
}

func (r *Repository) GetSaleByInvoice(ctx context.Context, invoiceNo string) (*Sale, error) {
	return r.loadSale(ctx, `SELECT `+saleColumns+` FROM sales WHERE invoice_no=$1`, invoiceNo)
}

func (r *Repository) loadSale(ctx context.Context, query string, arg any) (*Sale, error) {
	var s Sale
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&s.ID, &s.InvoiceNo, &s.CashierID, &s.CustomerID,
		&s.Subtotal, &s.Discount, &s.GSTAmount, &s.GrandTotal,
		&s.PointsEarned, &s.Printed, &s.Receipt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}

	items, err := r.pool.Query(ctx, `SELECT id, sale_id, product_id, name, unit_price, quantity, weight, gst_percent, subtotal, gst_amount, total
FROM sale_items WHERE sale_id=$1 ORDER BY id`, s.ID)
	if err != nil {
		return nil, err
	}
	defer items.Close()
	for items.Next() {
		var it SaleItem
		if err := items.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Name, &it.UnitPrice,
			&it.Quantity, &it.Weight, &it.GSTPercent, &it.Subtotal, &it.GSTAmount, &it.Total); err != nil {
			return nil, err
		}
		s.Items = append(s.Items, it)
	}
	if err := items.Err(); err != nil {
		return nil, err
	}

	pays, err := r.pool.Query(ctx, `SELECT id, sale_id, method, amount, COALESCE(gift_card_code, '')
FROM sale_payments WHERE sale_id=$1 ORDER BY id`, s.ID)
	if err != nil {
		return nil, err
	}
	defer pays.Close()
	for pays.Next() {
		var p SalePayment
		if err := pays.Scan(&p.ID, &p.SaleID, &p.Method, &p.Amount, &p.GiftCardCode); err != nil {
			return nil, err
		}
		s.Payments = append(s.Payments, p)
	}
	if err := pays.Err(); err != nil {
		return nil, err
	}

	promos, err := r.pool.Query(ctx, `SELECT id, sale_id, promotion_id, name, description, discount
FROM applied_promotions WHERE sale_id=$1 ORDER BY id`, s.ID)
	if err != nil {
		return nil, err
	}
	defer promos.Close()
	for promos.Next() {
		var ap AppliedPromotion
		if err := promos.Scan(&ap.ID, &ap.SaleID, &ap.PromotionID, &ap.Name, &ap.Description, &ap.Discount); err != nil {
			return nil, err
		}
		s.Promotions = append(s.Promotions, ap)
	}
	return &s, promos.Err()
}

// SetReceipt stores the rendered receipt snapshot.
func (r *Repository) SetReceipt(ctx context.Context, saleID int64, receipt string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sales SET receipt=$2 WHERE id=$1`, saleID, receipt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleNotFound
	}
	return nil
}

// MarkPrinted flags the sale once its receipt has been handed out.
func (r *Repository) MarkPrinted(ctx context.Context, saleID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sales SET is_printed=TRUE WHERE id=$1`, saleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSaleNotFound
	}
	return nil
}

// OpenDrawer starts a till session with an opening cash float.
func (r *Repository) OpenDrawer(ctx context.Context, openedBy int64, openingFloat decimal.Decimal) (*CashDrawer, error) {
	d := CashDrawer{
		OpenedBy:     openedBy,
		OpeningFloat: openingFloat,
		SystemTotal:  decimal.Zero,
		Status:       DrawerOpen,
		OpenedAt:     time.Now().UTC(),
	}
	err := r.pool.QueryRow(ctx, `INSERT INTO cash_drawers
(opened_by, opening_float, system_total, status, opened_at)
VALUES ($1,$2,0,$3,$4) RETURNING id`,
		d.OpenedBy, d.OpeningFloat, d.Status, d.OpenedAt).Scan(&d.ID)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CloseDrawer records the counted cash and the discrepancy against the
// expected float plus sales.
func (r *Repository) CloseDrawer(ctx context.Context, drawerID int64, countedTotal decimal.Decimal) (*CashDrawer, error) {
	var d *CashDrawer
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		locked, err := scanDrawer(tx.QueryRow(ctx,
			`SELECT `+drawerColumns+` FROM cash_drawers WHERE id=$1 FOR UPDATE`, drawerID))
		if err != nil {
			return err
		}
		if locked.Status != DrawerOpen {
			return ErrDrawerNotOpen
		}
		expected := locked.OpeningFloat.Add(locked.SystemTotal)
		discrepancy := countedTotal.Sub(expected)
		closedAt := time.Now().UTC()
		if _, err := tx.Exec(ctx, `UPDATE cash_drawers
SET status=$2, counted_total=$3, discrepancy=$4, closed_at=$5 WHERE id=$1`,
			drawerID, DrawerClosed, countedTotal, discrepancy, closedAt); err != nil {
			return err
		}
		locked.Status = DrawerClosed
		locked.CountedTotal = &countedTotal
		locked.Discrepancy = &discrepancy
		locked.ClosedAt = &closedAt
		d = locked
		return nil
	})
	return d, err
}

// GetDrawer reads a drawer without locking.
func (r *Repository) GetDrawer(ctx context.Context, drawerID int64) (*CashDrawer, error) {
	return scanDrawer(r.pool.QueryRow(ctx,
		`SELECT `+drawerColumns+` FROM cash_drawers WHERE id=$1`, drawerID))
}
