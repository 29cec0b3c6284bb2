// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"github.com/MKhiriev/go-care-keeper/internal/logger"
	"github.com/MKhiriev/go-care-keeper/internal/store"
)

const (
	// InstallSaltKey is the reserved medium key of the install salt. It has
	// no namespace separator so it can never collide with a namespaced key.
	InstallSaltKey = "device_install_salt"

	// AnonymousUser is mixed into the secret when no user id is given.
	AnonymousUser = "anonymous"

	installSaltLength = 32
)

// keyChainService is the private implementation of [KeyChainService].
type keyChainService struct {
	medium      store.Medium
	fingerprint FingerprintFunc
	logger      *logger.Logger

	// serializes first-run salt creation
	mu sync.Mutex
}

// NewKeyChainService constructs a [KeyChainService] that persists the install
// salt in medium. A nil fingerprint uses [SystemFingerprint].
func NewKeyChainService(medium store.Medium, fingerprint FingerprintFunc, logger *logger.Logger) KeyChainService {
	if fingerprint == nil {
		fingerprint = SystemFingerprint
	}
	return &keyChainService{
		medium:      medium,
		fingerprint: fingerprint,
		logger:      logger,
	}
}

// DeriveDeviceSecret implements [KeyChainService].
func (k *keyChainService) DeriveDeviceSecret(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		userID = AnonymousUser
	}

	fp, err := k.fingerprint()
	if err != nil {
		k.logger.Err(err).Str("func", "keyChainService.DeriveDeviceSecret").Msg("failed to compute device fingerprint")
		return "", fmt.Errorf("compute fingerprint: %w", err)
	}

	salt, err := k.installSalt(ctx)
	if err != nil {
		k.logger.Err(err).Str("func", "keyChainService.DeriveDeviceSecret").Msg("install salt unavailable")
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(fp))
	h.Write(salt)
	h.Write([]byte(userID))

	return hex.EncodeToString(h.Sum(nil)), nil
}

// installSalt reads the persisted salt, creating it on first use. A stored
// salt that cannot be decoded is reported as unavailable storage and is
// never replaced, since a new salt would orphan every existing record.
func (k *keyChainService) installSalt(ctx context.Context) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	raw, found, err := k.medium.Get(ctx, InstallSaltKey)
	if err != nil {
		return nil, fmt.Errorf("read install salt: %w", asStorageError(err))
	}

	if found {
		salt, err := base64.StdEncoding.DecodeString(string(raw))
		if err != nil || len(salt) != installSaltLength {
			return nil, fmt.Errorf("%w: install salt is malformed", store.ErrStorageUnavailable)
		}
		return salt, nil
	}

	salt := make([]byte, installSaltLength)
	if _, err = io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate install salt: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(salt)
	if err = k.medium.Set(ctx, InstallSaltKey, []byte(encoded)); err != nil {
		return nil, fmt.Errorf("persist install salt: %w", asStorageError(err))
	}
	k.logger.Info().Str("func", "keyChainService.installSalt").Msg("generated new install salt")

	return salt, nil
}
