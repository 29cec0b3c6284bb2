// Package store implements the durable key-value persistence medium the
// encrypted data layer is built on.
//
// Values are opaque bytes. Two implementations are provided: a SQLite-backed
// medium for the client device ([NewLocalKVRepository]) and an in-memory
// medium ([NewMemoryMedium]) used for ephemeral sessions and tests.
package store

import (
	"context"
)

//go:generate mockgen -source=client_interfaces.go -destination=../mock/medium_mock.go -package=mock

// Medium is a durable key-value byte store. Every failure of the underlying
// storage is reported wrapped in [ErrStorageUnavailable].
type Medium interface {
	// Get returns the value stored under key. found is false when the key
	// does not exist.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// ListKeys returns all keys starting with prefix in ascending order.
	ListKeys(ctx context.Context, prefix string) ([]string, error)

	// Apply executes all ops atomically: either every op is persisted or
	// none is.
	Apply(ctx context.Context, ops ...Op) error

	// Close releases the underlying resources.
	Close() error
}

// Op is a single write inside an atomic [Medium.Apply] batch.
type Op struct {
	Key    string
	Value  []byte
	Delete bool
}

// PutOp returns an [Op] storing value under key.
func PutOp(key string, value []byte) Op {
	return Op{Key: key, Value: value}
}

// DeleteOp returns an [Op] removing key.
func DeleteOp(key string) Op {
	return Op{Key: key, Delete: true}
}
