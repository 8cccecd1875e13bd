package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound = errors.New("not_found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
	// ErrMissingAccount indicates a referenced account or cash account could
	// not be resolved. Fatal: the operation aborts with no effects applied.
	ErrMissingAccount = errors.New("missing_account")
	// ErrSystemManagedEntry indicates a direct edit/delete of a ledger row
	// owned by a transaction; mutate the owning transaction instead.
	ErrSystemManagedEntry = errors.New("system_managed_entry")
	// ErrCompensation indicates the revert-then-reapply sequence could not
	// restore the original state. Programming-error class, not recoverable.
	ErrCompensation = errors.New("compensation_failure")
)
