package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"ideaflow/pkg/circuitbreaker"
)

// NonRetryable marks an error that will never succeed on redelivery
// (bad payload, missing entity, rule violation).
type NonRetryable struct {
	Err error
}

func (e *NonRetryable) Error() string { return e.Err.Error() }
func (e *NonRetryable) Unwrap() error { return e.Err }

// Permanent wraps err as NonRetryable; nil stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryable{Err: err}
}

// IsUniqueViolation reports a PostgreSQL unique constraint violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsRetryableError determines if an error is retryable
// Returns: (isRetryable, errorType)
func IsRetryableError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	var permanent *NonRetryable
	if errors.As(err, &permanent) {
		return false, "permanent"
	}

	// malformed JSON never parses on retry
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false, "json_decode_error"
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return false, "not_found"
	}
	if IsUniqueViolation(err) {
		// duplicate write, already applied
		return false, "duplicate_key"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08xxx connection, 40xxx rollback (deadlock, serialization), 57P01 admin shutdown
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "40") || pgErr.Code == "57P01" {
			return true, "db_transient_error"
		}
		return false, "db_error"
	}
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return true, "circuit_open"
	}

	// check context errors before net.Error: DeadlineExceeded implements net.Error too
	if errors.Is(err, context.DeadlineExceeded) {
		return true, "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return false, "context_canceled"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, "network_timeout"
		}
		return true, "network_error"
	}

	if pgconn.SafeToRetry(err) {
		return true, "db_connection_error"
	}

	// unknown: retry a bounded number of times, then DLQ
	return true, "unknown_error"
}

// Retryable adapts IsRetryableError to a plain predicate.
func Retryable(err error) bool {
	ok, _ := IsRetryableError(err)
	return ok
}
