package shared

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrIntegrityViolation wraps database constraint failures. These are
	// system faults: logged in full, reported to users generically.
	ErrIntegrityViolation = errors.New("integrity violation")
)

// ClassifyPgError maps PostgreSQL integrity-class errors (unique key,
// foreign key, check constraint) onto ErrIntegrityViolation so callers can
// report them without leaking schema detail. Other errors pass through.
func ClassifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return errors.Join(ErrIntegrityViolation, err)
	}
	return err
}
