package promo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/martpos/martpos/internal/shared"
)

// Repository persists promotions in PostgreSQL. Rule parameters are stored
// as a JSON document but always round-trip through the typed constructors,
// so an invalid rule can never be written.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, logger *slog.Logger) *Repository {
	return &Repository{pool: pool, logger: logger}
}

type ruleParams struct {
	ProductIDs []int64 `json:"product_ids,omitempty"`
	ProductID  int64   `json:"product_id,omitempty"`
	Percent    string  `json:"percent,omitempty"`
	Amount     string  `json:"amount,omitempty"`
	BuyQty     int64   `json:"buy_qty,omitempty"`
	FreeQty    int64   `json:"free_qty,omitempty"`
}

func encodeRule(rule Rule) (string, []byte, error) {
	var p ruleParams
	switch r := rule.(type) {
	case *PercentItemsRule:
		p = ruleParams{ProductIDs: r.ProductIDs, Percent: r.Percent.String()}
	case *FixedItemsRule:
		p = ruleParams{ProductIDs: r.ProductIDs, Amount: r.Amount.String()}
	case *BillPercentRule:
		p = ruleParams{Percent: r.Percent.String()}
	case *BuyXGetYRule:
		p = ruleParams{ProductID: r.ProductID, BuyQty: r.BuyQty, FreeQty: r.FreeQty}
	default:
		return "", nil, fmt.Errorf("%w: unknown rule type %T", ErrInvalidRule, rule)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", nil, err
	}
	return string(rule.Kind()), data, nil
}

func decodeRule(kind string, raw []byte) (Rule, error) {
	var p ruleParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	switch Kind(kind) {
	case KindPercentItems:
		percent, err := decimal.NewFromString(p.Percent)
		if err != nil {
			return nil, fmt.Errorf("%w: bad percent %q", ErrInvalidRule, p.Percent)
		}
		return NewPercentItemsRule(p.ProductIDs, percent)
	case KindFixedItems:
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: bad amount %q", ErrInvalidRule, p.Amount)
		}
		return NewFixedItemsRule(p.ProductIDs, amount)
	case KindBillPercent:
		percent, err := decimal.NewFromString(p.Percent)
		if err != nil {
			return nil, fmt.Errorf("%w: bad percent %q", ErrInvalidRule, p.Percent)
		}
		return NewBillPercentRule(percent)
	case KindBuyXGetY:
		return NewBuyXGetYRule(p.ProductID, p.BuyQty, p.FreeQty)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRule, kind)
	}
}

// Create inserts a promotion and returns its id.
func (r *Repository) Create(ctx context.Context, p Promotion, createdBy int64) (int64, error) {
	kind, params, err := encodeRule(p.Rule)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.pool.QueryRow(ctx, `INSERT INTO promotions (name, promo_type, params, start_date, end_date, is_active, max_uses, current_uses, stackable, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,0,$8,$9,NOW()) RETURNING id`,
		p.Name, kind, params, p.StartDate, p.EndDate, p.Active, p.MaxUses, p.Stackable, nullID(createdBy)).Scan(&id)
	if err != nil {
		return 0, shared.ClassifyPgError(err)
	}
	return id, nil
}

// Get loads one promotion by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Promotion, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, promo_type, params, start_date, end_date, is_active, max_uses, current_uses, stackable
FROM promotions WHERE id=$1`, id)
	p, err := scanPromotion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// SetActive toggles the active flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE promotions SET is_active=$2 WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// List returns all promotions, newest first.
func (r *Repository) List(ctx context.Context) ([]Promotion, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, promo_type, params, start_date, end_date, is_active, max_uses, current_uses, stackable
FROM promotions ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

// ListCandidates returns promotions currently flagged active. Date-window
// and usage checks stay in the engine so evaluation remains pure.
func (r *Repository) ListCandidates(ctx context.Context) ([]Promotion, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, promo_type, params, start_date, end_date, is_active, max_uses, current_uses, stackable
FROM promotions WHERE is_active ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

// IncrementUsage bumps usage counters for applied promotions inside the
// caller's sale transaction.
func IncrementUsage(ctx context.Context, tx pgx.Tx, ids []int64) error {
	for _, id := range shared.SortedIDs(ids) {
		if _, err := tx.Exec(ctx, `UPDATE promotions SET current_uses = current_uses + 1 WHERE id=$1`, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) collect(rows pgx.Rows) ([]Promotion, error) {
	var promos []Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			if errors.Is(err, ErrInvalidRule) {
				// A malformed legacy row must not block checkout.
				if r.logger != nil {
					r.logger.Warn("skipping malformed promotion", slog.Any("error", err))
				}
				continue
			}
			return nil, err
		}
		promos = append(promos, *p)
	}
	return promos, rows.Err()
}

func scanPromotion(row pgx.Row) (*Promotion, error) {
	var (
		p      Promotion
		kind   string
		params []byte
		start  *time.Time
		end    *time.Time
	)
	if err := row.Scan(&p.ID, &p.Name, &kind, &params, &start, &end, &p.Active, &p.MaxUses, &p.CurrentUses, &p.Stackable); err != nil {
		return nil, err
	}
	p.StartDate = start
	p.EndDate = end
	rule, err := decodeRule(kind, params)
	if err != nil {
		return nil, fmt.Errorf("promotion %d: %w", p.ID, err)
	}
	p.Rule = rule
	return &p, nil
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
