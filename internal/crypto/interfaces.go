// Package crypto holds the client-side key material handling: deriving the
// per-device secret and encrypting byte payloads with it.
package crypto

import (
	"context"

	"github.com/MKhiriev/go-care-keeper/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/crypto_mock.go -package=mock

// KeyChainService отвечает за получение секрета устройства.
// Секрет нигде не хранится: он заново вычисляется в каждой сессии из
// отпечатка устройства, соли установки и идентификатора пользователя.
type KeyChainService interface {
	// DeriveDeviceSecret returns hex(SHA-256(fingerprint ‖ installSalt ‖ userID)).
	// An empty userID is replaced by [AnonymousUser]. The install salt is
	// created on first use and persisted; if it cannot be read or written the
	// error wraps store.ErrStorageUnavailable.
	DeriveDeviceSecret(ctx context.Context, userID string) (string, error)
}

// CipherService encrypts and decrypts byte payloads with a device secret.
type CipherService interface {
	// Encrypt derives a one-time key from secret and a fresh salt and seals
	// plaintext with AES-256-GCM under a fresh nonce.
	Encrypt(plaintext []byte, secret string) (models.EncryptedPayload, error)

	// Decrypt reverses Encrypt. Any malformed or tampered payload fails with
	// [ErrDecrypt].
	Decrypt(payload models.EncryptedPayload, secret string) ([]byte, error)

	// GenerateHash returns the SHA-256 digest of plaintext.
	GenerateHash(plaintext []byte) []byte

	// VerifyIntegrity reports whether digest matches plaintext.
	VerifyIntegrity(plaintext, digest []byte) bool
}
