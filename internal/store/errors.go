package store

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"qrattendance/internal/apperr"
)

// Postgres SQLSTATE codes the repositories react to.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeExclusionViolation  = "23P01"
	CodeInvalidText         = "22P02"
)

// PgError returns the Postgres error in err's chain, if any.
func PgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// IsViolation reports whether err is a Postgres error with the given code.
// A non-empty constraint must also match the violated constraint name.
func IsViolation(err error, code, constraint string) bool {
	pgErr, ok := PgError(err)
	if !ok || pgErr.Code != code {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsNotFound reports whether err means the query matched no row.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsTransient reports whether err is a timeout or connectivity failure the
// caller may retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Classify wraps err with the operation name, marking transient failures so
// the HTTP layer answers 503 without leaking driver text.
func Classify(err error, op string) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", op, err)
	if IsTransient(err) {
		return apperr.Transient(wrapped)
	}
	if IsViolation(err, CodeInvalidText, "") {
		// malformed uuid in a path or body
		e := apperr.Validation("malformed identifier")
		e.Err = wrapped
		return e
	}
	return wrapped
}
