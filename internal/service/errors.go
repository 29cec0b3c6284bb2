package service

import "errors"

var (
	// ErrNotInitialized is returned by secure store and sync engine operations
	// called before Init or Start.
	ErrNotInitialized = errors.New("not initialized")

	// ErrTransientSyncFailure wraps failures of one mutation send or of the
	// remote pull. The mutation stays queued.
	ErrTransientSyncFailure = errors.New("transient sync failure")

	ErrEntityNotFound = errors.New("entity not found")
	ErrInvalidEntity  = errors.New("entity has no id")

	// ErrInvalidEvaluation wraps the validators error that rejected a save.
	ErrInvalidEvaluation = errors.New("invalid evaluation")

	ErrInvalidNamespace = errors.New("invalid namespace")
	ErrEmptyKey         = errors.New("empty key")
	ErrEngineClosed     = errors.New("sync engine is shut down")
)
