// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

const (
	kvTable       = "kv_entries"
	kvKeyColumn   = "entry_key"
	kvValueColumn = "entry_value"

	upsertValue = `
		INSERT INTO kv_entries (
			entry_key,
			entry_value,
			updated_at
		) VALUES (?, ?, ?)
		ON CONFLICT(entry_key) DO UPDATE SET
			entry_value = excluded.entry_value,
			updated_at  = excluded.updated_at;`

	deleteValue = `
		DELETE FROM kv_entries
		WHERE entry_key = ?;`
)
