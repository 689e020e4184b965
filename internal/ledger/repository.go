package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the audit trail outside of any sale transaction.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AuditFilter narrows ListAudit. Zero values mean "no filter".
type AuditFilter struct {
	ProductID int64
	Reason    string
	Limit     int
	Offset    int
}

func (r *Repository) ListAudit(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT id, product_id, old_stock, new_stock, COALESCE(actor, 0), reason, COALESCE(ref, ''), at
FROM stock_audit WHERE 1=1`
	var args []any
	if f.ProductID != 0 {
		args = append(args, f.ProductID)
		query += fmt.Sprintf(" AND product_id=$%d", len(args))
	}
	if f.Reason != "" {
		args = append(args, f.Reason)
		query += fmt.Sprintf(" AND reason=$%d", len(args))
	}
	args = append(args, limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]AuditEntry, 0, limit)
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.OldStock, &e.NewStock, &e.Actor, &e.Reason, &e.Ref, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountAudit returns the number of entries matching the filter, ignoring
// limit and offset. Used for listing pagination.
func (r *Repository) CountAudit(ctx context.Context, f AuditFilter) (int, error) {
	query := `SELECT COUNT(*) FROM stock_audit WHERE 1=1`
	var args []any
	if f.ProductID != 0 {
		args = append(args, f.ProductID)
		query += fmt.Sprintf(" AND product_id=$%d", len(args))
	}
	if f.Reason != "" {
		args = append(args, f.Reason)
		query += fmt.Sprintf(" AND reason=$%d", len(args))
	}
	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
