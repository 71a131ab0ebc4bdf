package database

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the store layer reacts to.
const (
	CodeUniqueViolation     = "23505"
	CodeCheckViolation      = "23514"
	CodeForeignKeyViolation = "23503"
)

// Constraint returns the SQLSTATE code and constraint name of a Postgres error.
func Constraint(err error) (code, name string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", "", false
	}
	return pgErr.Code, pgErr.ConstraintName, true
}

// IsUniqueViolation reports a unique violation, optionally on a specific constraint or index.
func IsUniqueViolation(err error, constraint string) bool {
	code, name, ok := Constraint(err)
	return ok && code == CodeUniqueViolation && (constraint == "" || name == constraint)
}

// IsCheckViolation reports a CHECK violation, optionally on a specific constraint.
func IsCheckViolation(err error, constraint string) bool {
	code, name, ok := Constraint(err)
	return ok && code == CodeCheckViolation && (constraint == "" || name == constraint)
}

// IsForeignKeyViolation reports a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	code, _, ok := Constraint(err)
	return ok && code == CodeForeignKeyViolation
}

// IsUnavailable reports errors caused by the database being unreachable or
// overloaded rather than by the statement itself.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 connection exceptions, 53 insufficient resources, 57P admin shutdown.
		switch {
		case len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "53"):
			return true
		case len(pgErr.Code) >= 3 && pgErr.Code[:3] == "57P":
			return true
		}
	}
	return false
}
