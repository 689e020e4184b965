// Package sequence hands out gapless, year-scoped invoice numbers.
//
// Each calendar year owns one counter row. Allocation locks the row with
// SELECT ... FOR UPDATE inside the caller's sale transaction, so the
// number is only consumed if the sale commits and two concurrent
// checkouts can never receive the same value.
package sequence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the slice of pgx.Tx the allocator needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Allocate reserves the next invoice number for year and returns it
// formatted as "YYYY-NNNN" (zero-padded to four digits, growing past
// 9999 naturally). The first allocation for a year lazily creates the
// counter row; on a concurrent create the insert is a no-op and the
// relock picks up the winner's row.
func Allocate(ctx context.Context, tx Querier, year int) (string, error) {
	seq, err := nextValue(ctx, tx, year)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%04d", year, seq), nil
}

func nextValue(ctx context.Context, tx Querier, year int) (int64, error) {
	var current int64
	err := tx.QueryRow(ctx,
		`SELECT last_value FROM invoice_sequences WHERE year=$1 FOR UPDATE`, year).Scan(&current)
	if err == pgx.ErrNoRows {
		if _, err := tx.Exec(ctx,
			`INSERT INTO invoice_sequences (year, last_value) VALUES ($1, 0) ON CONFLICT (year) DO NOTHING`, year); err != nil {
			return 0, fmt.Errorf("sequence: create counter for %d: %w", year, err)
		}
		err = tx.QueryRow(ctx,
			`SELECT last_value FROM invoice_sequences WHERE year=$1 FOR UPDATE`, year).Scan(&current)
	}
	if err != nil {
		return 0, fmt.Errorf("sequence: lock counter for %d: %w", year, err)
	}

	next := current + 1
	if _, err := tx.Exec(ctx,
		`UPDATE invoice_sequences SET last_value=$2 WHERE year=$1`, year, next); err != nil {
		return 0, fmt.Errorf("sequence: advance counter for %d: %w", year, err)
	}
	return next, nil
}
