// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "time"

// StoredRecordVersion is the schema version written into every new
// [StoredRecord].
const StoredRecordVersion = 1

// EncryptedPayload is the output of one encryption call.
// Byte fields are serialized as standard base64 strings.
type EncryptedPayload struct {
	// Ciphertext holds the AES-GCM output with the authentication tag appended.
	Ciphertext []byte `json:"ciphertext"`

	// IV is the 96-bit nonce used for this encryption only.
	IV []byte `json:"iv"`

	// Salt is the 128-bit salt the one-time key was stretched with.
	Salt []byte `json:"salt"`
}

// StoredRecord wraps one logical value at rest.
//
// Hash is the digest of the plaintext serialization; it is recomputed after
// decryption and a mismatch invalidates the record.
type StoredRecord struct {
	Encrypted EncryptedPayload `json:"encrypted"`
	Hash      []byte           `json:"hash"`
	Timestamp time.Time        `json:"timestamp"`
	Version   int              `json:"version"`
}
