package crypto

import (
	"errors"
	"fmt"

	"github.com/MKhiriev/go-care-keeper/internal/store"
)

var (
	// ErrDecrypt is returned when a payload cannot be decrypted: wrong key,
	// wrong iv or salt length, or an authentication tag mismatch. It is not
	// retryable.
	ErrDecrypt = errors.New("decryption failed")

	// ErrIntegrity is returned when a decrypted plaintext does not match its
	// stored digest.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrEmptySecret is returned when Encrypt or Decrypt is called without
	// key material.
	ErrEmptySecret = errors.New("empty device secret")
)

// asStorageError makes sure err matches store.ErrStorageUnavailable.
func asStorageError(err error) error {
	if errors.Is(err, store.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", store.ErrStorageUnavailable, err)
}
