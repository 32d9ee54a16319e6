package shared

import "errors"

// Error categories shared across modules. Domain packages wrap these into
// their own sentinels so callers can dispatch on either the specific error
// or the category.
var (
	// ErrNotFound indicates a referenced entity is absent.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration indicates missing or ambiguous reference data
	// (posting rules, number series). Requires an operator fix, never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvariant indicates a broken business invariant (unbalanced voucher,
	// schedule regeneration, negative residual). Never retried automatically.
	ErrInvariant = errors.New("invariant violation")
	// ErrConflict indicates a business-level rejection of an otherwise valid
	// request (closed period, insufficient stock).
	ErrConflict = errors.New("conflict")
)
