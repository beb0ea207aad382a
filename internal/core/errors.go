package core

import "errors"

// Error taxonomy for stock operations. Handlers map these to HTTP statuses;
// anything not matching a sentinel is treated as a persistence failure and
// surfaces as a retryable 5xx.
var (
	// ErrValidation marks missing, malformed, or non-positive input.
	// Always detected before any write.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientStock means the aggregate holds fewer units than requested.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInsufficientSelection means the selected ledger entries do not cover
	// the requested quantity, or contain unavailable or foreign entries.
	// Other unselected entries are never substituted silently.
	ErrInsufficientSelection = errors.New("selected entries do not cover the requested quantity")

	// ErrConflict means a concurrent deduction raced past the available
	// quantity on a specific entry or aggregate. The client may retry with a
	// refreshed entry list.
	ErrConflict = errors.New("concurrent stock update conflict")

	// ErrNotFound means no aggregate record exists for the blood type.
	ErrNotFound = errors.New("stock record not found")
)
