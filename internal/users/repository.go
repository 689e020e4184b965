package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/martpos/martpos/internal/shared"
)

const userColumns = `id, username, name, role, is_active, password_hash, created_at, updated_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all accounts.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Name, &u.Role, &u.IsActive, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetByUsername loads one account.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username).
		Scan(&u.ID, &u.Username, &u.Name, &u.Role, &u.IsActive, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// RoleByID reports the role of an active account. It backs the route guard
// for manager-only endpoints.
func (r *Repository) RoleByID(ctx context.Context, id int64) (string, error) {
	var role string
	var active bool
	err := r.pool.QueryRow(ctx, `SELECT role, is_active FROM users WHERE id=$1`, id).Scan(&role, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", err
	}
	if !active {
		return "", shared.ErrNotFound
	}
	return role, nil
}

// Create inserts an account.
func (r *Repository) Create(ctx context.Context, u *User) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO users
(username, name, role, is_active, password_hash, created_at, updated_at)
VALUES ($1,$2,$3,TRUE,$4,NOW(),NOW()) RETURNING id`,
		u.Username, u.Name, u.Role, u.PasswordHash).Scan(&id)
	if err != nil {
		return 0, shared.ClassifyPgError(err)
	}
	return id, nil
}

// SetActive enables or disables an account.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_active=$2, updated_at=NOW() WHERE id=$1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
