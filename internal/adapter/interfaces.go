// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package adapter provides transport-layer abstractions for communicating with
// the remote authority that owns the canonical copy of synced records.
//
// The primary abstraction is [RemoteAuthority], which decouples the sync engine
// from the underlying protocol. The package ships an HTTP/REST implementation
// ([NewHTTPRemoteAuthority]).
//
// Error values defined in errors.go are mapped from HTTP status codes by
// mapHTTPError so that callers can use [errors.Is] for transport-agnostic error
// handling (e.g. [ErrUnauthorized] for 401). A 409 on the mutation endpoint is
// not an error: it is decoded into a conflict [models.MutationResult].
package adapter

import (
	"context"
	"time"

	"github.com/MKhiriev/go-care-keeper/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/remote_authority_mock.go -package=mock

// RemoteAuthority is the "send mutation, receive outcome" contract of the
// sync engine.
type RemoteAuthority interface {
	// Send pushes one queued mutation. It returns either an acknowledged
	// result (Success with ServerVersion) or a conflict result carrying the
	// server's current record. Any returned error is a transient failure.
	Send(ctx context.Context, req models.MutationRequest) (models.MutationResult, error)

	// PullSince returns the remote changes made after since. A zero since
	// asks for everything.
	PullSince(ctx context.Context, since time.Time) ([]models.RemoteEntity, error)

	// Ping reports whether the remote authority is reachable.
	Ping(ctx context.Context) error
}
