package identity

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrIntegrity marks a stored cluster that violates the link invariants,
	// such as a secondary whose linked contact is missing. Never retried.
	ErrIntegrity = errors.New("contact integrity fault")

	// ErrConflict marks a transient clash with a concurrent reconciliation.
	// The reconciliation is re-run from scratch.
	ErrConflict = errors.New("concurrent reconciliation conflict")

	// ErrInvalidRequest is returned when neither identifier is present.
	ErrInvalidRequest = errors.New("at least one of email or phoneNumber must be provided")
)

// IsIntegrity reports whether err is a data-integrity fault
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrIntegrity)
}

// IsConflict reports whether err is a retryable concurrency conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// Conflict marks err as a retryable conflict while keeping its message and cause
func Conflict(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrConflict)
}

func integrityf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrIntegrity)
}
