// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"time"
)

// MutationRequest is a single mutation sent to the remote authority.
type MutationRequest struct {
	EvaluationID string          `json:"evaluationId"`
	Action       SyncAction      `json:"action"`
	Data         json.RawMessage `json:"data,omitempty"`

	// BaseVersion is the server version the mutation was made against.
	BaseVersion *int64 `json:"baseVersion,omitempty"`

	// Hash is the transport integrity hash of Data.
	Hash string `json:"hash,omitempty"`
}

// ServerRecord is the remote copy returned with a conflict.
type ServerRecord struct {
	Payload   Entity    `json:"payload"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   *int64    `json:"version,omitempty"`
}

// MutationResult is the outcome of a [MutationRequest] that reached the
// remote authority. Transport and server failures are returned as errors
// instead.
type MutationResult struct {
	Success       bool          `json:"success"`
	ServerVersion int64         `json:"serverVersion,omitempty"`
	Conflict      bool          `json:"conflict,omitempty"`
	ServerRecord  *ServerRecord `json:"serverRecord,omitempty"`
}

// RemoteEntity is one entry returned by a pull of remote changes.
type RemoteEntity struct {
	ID        string    `json:"id"`
	Payload   Entity    `json:"payload,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int64     `json:"version"`
	Deleted   bool      `json:"deleted"`
}
