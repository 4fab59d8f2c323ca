package store

import "errors"

var (
	// ErrNotFound is returned when an entity doesn't exist or is deleted.
	ErrNotFound = errors.New("ledger: entity not found")

	// ErrParentNotFound is returned when a referenced parent row doesn't exist.
	ErrParentNotFound = errors.New("ledger: parent entity not found")

	// ErrStaleParentReference is returned when the referenced parent exists but
	// its partition-key column doesn't match the value supplied by the caller.
	ErrStaleParentReference = errors.New("ledger: parent partition key mismatch")

	// ErrAlreadyExists is returned when creating an entity with an existing ID.
	ErrAlreadyExists = errors.New("ledger: entity already exists")

	// ErrDuplicateValue is returned when a unique constraint is violated
	// (email, username, sku, category or gateway name).
	ErrDuplicateValue = errors.New("ledger: duplicate value for unique field")

	// ErrInsufficientInventory is returned when a decrement would drive the
	// on-hand quantity below zero. The enclosing transaction is aborted.
	ErrInsufficientInventory = errors.New("ledger: insufficient inventory")

	// ErrPartitionOutOfRange is returned when a timestamp falls outside every
	// configured range window. Configuration error, fatal, never retried.
	ErrPartitionOutOfRange = errors.New("ledger: partition key outside configured windows")

	// ErrValidation is returned for malformed input (quantity, rating, price,
	// status, or a category parent update that would form a cycle).
	ErrValidation = errors.New("ledger: validation failed")

	// ErrConcurrentModification is returned when optimistic locking fails.
	ErrConcurrentModification = errors.New("ledger: entity was modified concurrently")
)
