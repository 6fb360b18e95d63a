package store

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors the engine and API layer branch on (§4.2, §7). Concrete
// driver errors never escape this package; every exported method translates
// *pq.Error into one of these before returning.
var (
	// ErrNotFound means the referenced row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict means a uniqueness or foreign-key constraint was violated.
	ErrConflict = errors.New("store: conflict")
	// ErrAborted means the transaction lost a serialization race and must be
	// retried from scratch by the caller (§5).
	ErrAborted = errors.New("store: aborted, retry")
)

// postgres error codes relevant to the mapping above. See
// https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pqUniqueViolation        = "23505"
	pqForeignKeyViolation    = "23503"
	pqSerializationFailure   = "40001"
	pqDeadlockDetected       = "40P01"
)

// translate maps a raw driver/sql error to one of this package's sentinel
// errors, leaving unrecognized errors (including sql.ErrNoRows handled by
// callers directly) untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation, pqForeignKeyViolation:
			return ErrConflict
		case pqSerializationFailure, pqDeadlockDetected:
			return ErrAborted
		}
	}
	return err
}
