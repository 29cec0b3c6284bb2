package store

import (
	"errors"
	"fmt"
)

// ErrStorageUnavailable is returned (wrapped) whenever the persistence medium
// cannot be read or written. It is fatal to the operation that hit it.
var ErrStorageUnavailable = errors.New("storage unavailable")

// ErrEmptyKey is returned when an operation is called with an empty key.
var ErrEmptyKey = errors.New("empty storage key")

// Low-level database operation errors. They are always wrapped together with
// [ErrStorageUnavailable] and the driver error.
var (
	// ErrBuildingSQLQuery is returned when constructing a SQL query fails.
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a SELECT fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrBeginningTransaction is returned when the driver cannot start a
	// transaction.
	ErrBeginningTransaction = errors.New("failed to begin transaction")

	// ErrCommitingTransaction is returned when committing a transaction fails.
	// The transaction is considered rolled back at this point.
	ErrCommitingTransaction = errors.New("failed to commit transaction")

	// ErrExecutingStatement is returned when an INSERT or DELETE fails.
	ErrExecutingStatement = errors.New("failed to executing statement")

	// ErrScanningRows is returned when scanning result rows fails.
	ErrScanningRows = errors.New("failed to scan kv rows")
)

func storageError(op, err error) error {
	return fmt.Errorf("%w: %w: %w", ErrStorageUnavailable, op, err)
}
