package service

import (
	"context"

	"github.com/MKhiriev/go-care-keeper/models"
)

//go:generate mockgen -source=client_interfaces.go -destination=../mock/servicemock/service_mock.go -package=servicemock

// SecureStore is an encrypted key-value store scoped under a namespace.
// Values are JSON-serialized, encrypted with the device secret and stored as
// [models.StoredRecord] in the underlying persistence medium.
type SecureStore interface {
	// Init derives and memoizes the device secret. Concurrent callers share a
	// single derivation. Every other operation fails with ErrNotInitialized
	// until Init returns successfully.
	Init(ctx context.Context) error

	// Shutdown forgets the memoized secret. Views created with WithNamespace
	// are shut down too.
	Shutdown()

	// Initialized reports whether Init has completed.
	Initialized() bool

	// DeviceSecret returns the memoized secret.
	DeviceSecret() (string, error)

	// Set encrypts value and stores it under key.
	Set(ctx context.Context, key string, value any) error

	// Get decrypts the value stored under key into target.
	// Corrupted or tampered records are purged and reported as not found.
	Get(ctx context.Context, key string, target any) (found bool, err error)

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Has reports whether key is present, without decrypting it.
	Has(ctx context.Context, key string) (bool, error)

	// ListKeys returns the keys of the namespace without the prefix, sorted.
	ListKeys(ctx context.Context) ([]string, error)

	// Commit applies every change in one atomic medium write.
	Commit(ctx context.Context, changes ...Change) error

	// WithNamespace returns a view over the same medium and secret that
	// prefixes keys with ns instead. ns must be non-empty and free of ':'.
	WithNamespace(ns string) (SecureStore, error)
}

// FieldCodec encrypts and decrypts individual string fields of an entity.
type FieldCodec interface {
	// EncryptFields returns a copy of entity where every named non-empty
	// string field holds a serialized [models.EncryptedPayload].
	EncryptFields(ctx context.Context, entity models.Entity, fields []string) (models.Entity, error)

	// DecryptFields returns a copy of entity where every named field that
	// holds an encrypted payload is replaced by its plaintext. Plain values
	// and payloads that fail to decrypt are returned unchanged.
	DecryptFields(ctx context.Context, entity models.Entity, fields []string) (models.Entity, error)
}

// SyncEngine keeps the local copy of entities and replicates local mutations
// to the remote authority.
type SyncEngine interface {
	// Start rebuilds the in-memory queue and metadata from the secure store.
	Start(ctx context.Context) error

	// Shutdown stops accepting background syncs and waits for running ones.
	Shutdown()

	// SaveLocal persists entity and enqueues a create or update mutation.
	SaveLocal(ctx context.Context, entity models.Entity) (models.Entity, error)

	// DeleteLocal enqueues a delete mutation. The entity stays stored until the
	// remote authority acknowledges the delete.
	DeleteLocal(ctx context.Context, id string) error

	// Get returns the local copy of the entity with the given id.
	Get(ctx context.Context, id string) (models.Entity, error)

	// List returns every local entity not pending deletion, ordered by id.
	List(ctx context.Context) ([]models.Entity, error)

	// Meta returns the sync metadata of one entity.
	Meta(id string) (models.LocalRecordMeta, bool)

	// Sync runs one sync cycle. It is a no-op when offline or when a cycle is
	// already running.
	Sync(ctx context.Context)

	// SyncIfIdle runs Sync unless a cycle is already running or the engine is
	// offline. A previous error does not prevent the next cycle.
	SyncIfIdle(ctx context.Context)

	// SetOnline records a connectivity change. Going online triggers a sync.
	SetOnline(ctx context.Context, online bool)

	// Subscribe registers fn for state transitions and delivers the current
	// state immediately. fn runs outside engine locks and may call back into
	// the engine. The returned func unsubscribes.
	Subscribe(fn func(models.SyncState)) (unsubscribe func())

	// State returns the current state snapshot.
	State() models.SyncState

	// FailedEntries returns queue entries that exhausted their retries.
	FailedEntries() []models.SyncQueueEntry

	// RetryFailed resets failed entries so they are sent again and returns
	// how many were reset.
	RetryFailed(ctx context.Context) (int, error)
}

// EvaluationService is the domain facade over the sync engine for home-care
// evaluations. Sensitive fields never reach the engine in plaintext.
type EvaluationService interface {
	Save(ctx context.Context, evaluation models.Evaluation) (models.Evaluation, error)
	Get(ctx context.Context, id string) (models.Evaluation, error)
	List(ctx context.Context) ([]models.Evaluation, error)
	Summaries(ctx context.Context) ([]models.EvaluationSummary, error)
	Delete(ctx context.Context, id string) error
}

// ClientSyncJob defines the contract for a background worker that
// periodically asks the sync engine to sync.
type ClientSyncJob interface {
	// Start launches the background goroutine. Any previously running job is
	// stopped before the new one begins.
	Start(ctx context.Context)

	// Stop signals the background goroutine to exit and blocks until it has
	// fully terminated.
	Stop()
}

// ConnectivityMonitor probes the remote authority and reports connectivity
// changes to the sync engine.
type ConnectivityMonitor interface {
	Start(ctx context.Context)
	Stop()

	// Online returns the last probe result. Before the first probe the
	// remote authority is assumed reachable.
	Online() bool
}

// IDGenerator produces unique queue entry identifiers.
type IDGenerator interface {
	Generate() string
}
