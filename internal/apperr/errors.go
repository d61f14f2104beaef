// Package apperr implements the error taxonomy used across the indexer
// fleet and the HTTP facade: each category carries enough structure for a
// caller to decide whether to retry, skip, or surface the failure to a user.
package apperr

import (
	"errors"
	"fmt"
)

// Category classifies an error per the propagation policy: transient errors
// are retried locally, decode/price/deposit errors are logged and persisted,
// auth/rate-limit/internal errors become HTTP status codes.
type Category int

const (
	CategoryTransientRPC Category = iota
	CategoryDecode
	CategoryUniquenessConflict
	CategoryPriceUnknown
	CategoryDepositMismatch
	CategoryAuth
	CategoryRateLimit
	CategoryInternal
)

func (c Category) String() string {
	switch c {
	case CategoryTransientRPC:
		return "transient_rpc"
	case CategoryDecode:
		return "decode"
	case CategoryUniquenessConflict:
		return "uniqueness_conflict"
	case CategoryPriceUnknown:
		return "price_unknown"
	case CategoryDepositMismatch:
		return "deposit_mismatch"
	case CategoryAuth:
		return "auth"
	case CategoryRateLimit:
		return "rate_limit"
	case CategoryInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// AppError wraps a cause with a category and short, user-safe reason. The
// cause is kept for server-side logs but never rendered to a client.
type AppError struct {
	Category Category
	Reason   string
	Cause    error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Reason)
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(cat Category, reason string, cause error) *AppError {
	return &AppError{Category: cat, Reason: reason, Cause: cause}
}

// RpcError is returned by the chain client when a log-query slice exhausts
// its retry budget. It carries the exact range so the caller (an indexer
// worker) can resume at the failed slice's start rather than the whole scan.
type RpcError struct {
	FromBlock uint64
	ToBlock   uint64
	Cause     error
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("rpc error in range [%d,%d]: %v", e.FromBlock, e.ToBlock, e.Cause)
}

func (e *RpcError) Unwrap() error { return e.Cause }

// IsUniquenessConflict reports whether err represents an expected
// (txHash, logIndex) duplicate-key conflict from the underlying store. It is
// treated as a no-op by ingest callers, never as a failure.
func IsUniquenessConflict(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Category == CategoryUniquenessConflict
	}
	return false
}

// AsCategory extracts the category of err, defaulting to CategoryInternal
// for errors that were never classified.
func AsCategory(err error) Category {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return CategoryInternal
}
