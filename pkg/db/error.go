package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// Driver messages for a unique violation when no typed error is available.
var duplicateKeyMessages = []string{
	"duplicate key value violates unique constraint", // postgres
	"UNIQUE constraint failed",                       // sqlite
	"Error 1062",                                     // mysql
}

// IsDuplicateKeyErr reports a unique-constraint violation from any supported
// driver, including gorm's translated ErrDuplicatedKey.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	if code, _ := pgErrorInfo(err); code != "" {
		return code == pgUniqueViolation
	}
	msg := err.Error()
	for _, m := range duplicateKeyMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// ViolatedConstraint names the postgres constraint behind err, or "" when
// the driver did not report one.
func ViolatedConstraint(err error) string {
	_, constraint := pgErrorInfo(err)
	return constraint
}

func pgErrorInfo(err error) (code, constraint string) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code, pgxErr.ConstraintName
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint
	}
	return "", ""
}
