package dataset

import "errors"

var (
	// ErrNotFound is returned when no dataset row exists for the identifier.
	ErrNotFound = errors.New("dataset: not found")
	// ErrDuplicateName signals a dataset with the same name already exists for the owner.
	ErrDuplicateName = errors.New("dataset: name already exists for owner")
	// ErrInvalidInput rejects missing or malformed fields before any side effect.
	ErrInvalidInput = errors.New("dataset: invalid input")
	// ErrPoolIDConflict signals the uniqueness-checked pool-id update hit an
	// existing row holding that id.
	ErrPoolIDConflict = errors.New("dataset: pool id already assigned to another dataset")
	// ErrAlreadyLinked signals the record already carries a pool id.
	ErrAlreadyLinked = errors.New("dataset: already linked to a pool")
	// ErrReconciliationConflict is fatal: the corrective retry also collided.
	// It indicates a registry-integrity issue requiring operator intervention,
	// not a transient fault.
	ErrReconciliationConflict = errors.New("dataset: pool id conflict unresolved after corrective retry")
)
