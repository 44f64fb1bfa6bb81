package store

import (
	"errors"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional update matched no row
// because the record is no longer in the expected state.
var ErrConflict = errors.New("conflict")

// ErrPetUnavailable is returned when a request is created for a pet that
// is not accepting adoption requests.
var ErrPetUnavailable = errors.New("pet unavailable")

// ErrDuplicateEmail is returned when an email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

const uniqueViolation = pq.ErrorCode("23505")

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
