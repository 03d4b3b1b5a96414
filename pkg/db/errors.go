package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation from
// Postgres or SQLite. With constraints given, the violation must name one of
// them; SQLite reports table.column instead of a constraint name.
func IsUniqueViolation(err error, constraints ...string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation && matchesAny(pgErr.ConstraintName, constraints)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if liteErr.ExtendedCode != sqlite3.ErrConstraintUnique && liteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
			return false
		}
		return containsAny(liteErr.Error(), constraints)
	}

	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return containsAny(msg, constraints)
}

func matchesAny(name string, constraints []string) bool {
	if len(constraints) == 0 {
		return true
	}
	for _, c := range constraints {
		if c == name {
			return true
		}
	}
	return false
}

func containsAny(msg string, constraints []string) bool {
	if len(constraints) == 0 {
		return true
	}
	for _, c := range constraints {
		if c != "" && strings.Contains(msg, c) {
			return true
		}
	}
	return false
}
