package loyalty

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const customerColumns = `id, name, phone, COALESCE(email, ''), points, created_at, updated_at`

// Repository reads and writes customers and gift cards on the pool.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Points, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*Customer, error) {
	return scanCustomer(r.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id=$1`, id))
}

func (r *Repository) GetByPhone(ctx context.Context, phone string) (*Customer, error) {
	return scanCustomer(r.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE phone=$1`, phone))
}

// Search matches name prefix or phone substring, most recent first.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]Customer, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	pattern := "%" + strings.TrimSpace(query) + "%"
	rows, err := r.pool.Query(ctx,
		`SELECT `+customerColumns+` FROM customers
WHERE name ILIKE $1 OR phone LIKE $1
ORDER BY updated_at DESC LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Points, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) Create(ctx context.Context, c *Customer) (int64, error) {
	var email any
	if c.Email != "" {
		email = c.Email
	}
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO customers (name, phone, email, points, created_at, updated_at)
VALUES ($1,$2,$3,0,NOW(),NOW()) RETURNING id`, c.Name, c.Phone, email).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("loyalty: create customer: %w", err)
	}
	return id, nil
}

func (r *Repository) Update(ctx context.Context, c *Customer) error {
	var email any
	if c.Email != "" {
		email = c.Email
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE customers SET name=$2, phone=$3, email=$4, updated_at=NOW() WHERE id=$1`,
		c.ID, c.Name, c.Phone, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

func (r *Repository) GetGiftCard(ctx context.Context, code string) (*GiftCard, error) {
	var g GiftCard
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, balance, is_active, created_at FROM gift_cards WHERE code=$1`, code).
		Scan(&g.ID, &g.Code, &g.Balance, &g.IsActive, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGiftCardNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (r *Repository) CreateGiftCard(ctx context.Context, g *GiftCard) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO gift_cards (code, balance, is_active, created_at)
VALUES ($1,$2,TRUE,NOW()) RETURNING id`, g.Code, g.Balance).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("loyalty: create gift card: %w", err)
	}
	return id, nil
}

// CustomerForUpdate locks a customer's row inside tx so concurrent sales
// cannot double-spend points.
func CustomerForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*Customer, error) {
	return scanCustomer(tx.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id=$1 FOR UPDATE`, id))
}

// AdjustPoints applies delta to a locked customer's balance.
func AdjustPoints(ctx context.Context, tx pgx.Tx, id, delta int64) error {
	tag, err := tx.Exec(ctx,
		`UPDATE customers SET points = points + $2, updated_at=NOW() WHERE id=$1`, id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// GiftCardForUpdate locks an active gift card by code inside tx.
func GiftCardForUpdate(ctx context.Context, tx pgx.Tx, code string) (*GiftCard, error) {
	var g GiftCard
	err := tx.QueryRow(ctx,
		`SELECT id, code, balance, is_active, created_at FROM gift_cards WHERE code=$1 FOR UPDATE`, code).
		Scan(&g.ID, &g.Code, &g.Balance, &g.IsActive, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGiftCardNotFound
		}
		return nil, err
	}
	return &g, nil
}

// DebitGiftCard reduces a locked card's balance.
func DebitGiftCard(ctx context.Context, tx pgx.Tx, id int64, amount decimal.Decimal) error {
	_, err := tx.Exec(ctx,
		`UPDATE gift_cards SET balance = balance - $2 WHERE id=$1`, id, amount)
	return err
}
