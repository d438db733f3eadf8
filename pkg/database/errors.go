package database

import (
	"errors"

	"github.com/lib/pq"
)

// Postgres SQLSTATE codes that mean "another writer got there first" and are
// safe to retry from the top of the transaction.
const (
	CodeUniqueViolation      = pq.ErrorCode("23505")
	CodeSerializationFailure = pq.ErrorCode("40001")
	CodeDeadlockDetected     = pq.ErrorCode("40P01")
	CodeLockNotAvailable     = pq.ErrorCode("55P03")
)

// PQCode returns the SQLSTATE of a Postgres error, or "" for anything else.
func PQCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

// IsConflict reports whether err is a transient concurrency conflict.
func IsConflict(err error) bool {
	switch PQCode(err) {
	case CodeUniqueViolation, CodeSerializationFailure, CodeDeadlockDetected, CodeLockNotAvailable:
		return true
	}
	return false
}
