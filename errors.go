package addressd

import "errors"

var (
	// ErrNotFound is returned when a batch does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an operation is refused because the batch
	// is currently being processed, e.g. requeueing in-flight work.
	ErrConflict = errors.New("conflict")

	// ErrNoTransaction is returned when a row lock is requested outside a
	// session. FOR UPDATE locks only live for the duration of a transaction.
	ErrNoTransaction = errors.New("not in a transaction")
)
