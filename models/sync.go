// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"time"
)

// SyncAction is the kind of mutation carried by a [SyncQueueEntry].
type SyncAction string

const (
	ActionCreate SyncAction = "create"
	ActionUpdate SyncAction = "update"
	ActionDelete SyncAction = "delete"
)

// RecordSyncStatus is the per-entity synchronization status.
type RecordSyncStatus string

const (
	RecordSynced  RecordSyncStatus = "synced"
	RecordPending RecordSyncStatus = "pending"
	RecordError   RecordSyncStatus = "error"
)

// SyncStatus is the state of the sync engine as a whole.
type SyncStatus string

const (
	StatusIdle    SyncStatus = "idle"
	StatusSyncing SyncStatus = "syncing"
	StatusOffline SyncStatus = "offline"
	StatusError   SyncStatus = "error"
)

// LocalRecordMeta tracks the local and remote versions of one entity.
type LocalRecordMeta struct {
	ID string `json:"id"`

	// Version is a local monotonic counter, incremented on every local edit.
	Version int64 `json:"version"`

	// ServerVersion is the last version acknowledged by the remote authority.
	ServerVersion *int64 `json:"serverVersion,omitempty"`

	SyncStatus RecordSyncStatus `json:"syncStatus"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// SyncQueueEntry is one queued local mutation. The JSON shape is persisted and
// must stay stable.
type SyncQueueEntry struct {
	ID           string          `json:"id"`
	EvaluationID string          `json:"evaluationId"`
	Action       SyncAction      `json:"action"`
	Data         json.RawMessage `json:"data"`
	Timestamp    time.Time       `json:"timestamp"`
	RetryCount   int             `json:"retryCount"`
}

// SyncState is published to sync engine subscribers on every transition.
type SyncState struct {
	Status       SyncStatus `json:"status"`
	LastSyncAt   *time.Time `json:"lastSyncAt,omitempty"`
	PendingCount int        `json:"pendingCount"`
	FailedCount  int        `json:"failedCount"`
	Error        string     `json:"error,omitempty"`
}
