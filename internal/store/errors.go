package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrNotFoundOrAlreadyAnswered does not say which: the row is missing,
	// belongs to someone else, or is no longer editable.
	ErrNotFoundOrAlreadyAnswered = errors.New("question not found or already answered")
	ErrAlreadyAnswered           = errors.New("question already answered")
	ErrCategoryMismatch          = errors.New("category is not part of the question")
	ErrEmailTaken                = errors.New("email already registered")
)

const (
	pgUniqueViolation   = "23505"
	pgInvalidTextFormat = "22P02"
)

func pgErrorCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func isUniqueViolation(err error) bool {
	code, _ := pgErrorCode(err)
	return code == pgUniqueViolation
}

func isUniqueViolationOn(err error, constraint string) bool {
	code, name := pgErrorCode(err)
	return code == pgUniqueViolation && name == constraint
}

// isInvalidInput covers malformed uuids reaching the database.
func isInvalidInput(err error) bool {
	code, _ := pgErrorCode(err)
	return code == pgInvalidTextFormat
}
