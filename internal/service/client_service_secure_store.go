// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MKhiriev/go-care-keeper/internal/crypto"
	"github.com/MKhiriev/go-care-keeper/internal/logger"
	"github.com/MKhiriev/go-care-keeper/internal/store"
	"github.com/MKhiriev/go-care-keeper/models"
)

const namespaceSeparator = ":"

// Change is one write applied by [SecureStore.Commit].
type Change struct {
	Key    string
	Value  any
	Remove bool
}

// PutChange stores value under key.
func PutChange(key string, value any) Change {
	return Change{Key: key, Value: value}
}

// RemoveChange deletes key.
func RemoveChange(key string) Change {
	return Change{Key: key, Remove: true}
}

// secretState is shared by a store and all of its namespace views.
type secretState struct {
	group singleflight.Group

	mu     sync.RWMutex
	secret string
}

func (s *secretState) get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.secret
}

func (s *secretState) set(secret string) {
	s.mu.Lock()
	s.secret = secret
	s.mu.Unlock()
}

type secureStore struct {
	medium   store.Medium
	keychain crypto.KeyChainService
	cipher   crypto.CipherService

	userID    string
	namespace string
	state     *secretState

	logger *logger.Logger
	now    func() time.Time
}

// NewSecureStore creates a secure store over medium. Keys are prefixed with
// namespace and the device secret is derived for userID on Init.
func NewSecureStore(medium store.Medium, keychain crypto.KeyChainService, cipher crypto.CipherService, userID, namespace string, logger *logger.Logger) (SecureStore, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}

	return &secureStore{
		medium:    medium,
		keychain:  keychain,
		cipher:    cipher,
		userID:    userID,
		namespace: namespace,
		state:     &secretState{},
		logger:    logger,
		now:       time.Now,
	}, nil
}

func validateNamespace(ns string) error {
	if ns == "" || strings.Contains(ns, namespaceSeparator) {
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, ns)
	}
	return nil
}

func (s *secureStore) Init(ctx context.Context) error {
	if s.state.get() != "" {
		return nil
	}

	_, err, _ := s.state.group.Do("init", func() (any, error) {
		if s.state.get() != "" {
			return nil, nil
		}

		secret, err := s.keychain.DeriveDeviceSecret(ctx, s.userID)
		if err != nil {
			return nil, err
		}
		s.state.set(secret)
		return nil, nil
	})
	if err != nil {
		s.logger.Err(err).Str("func", "secureStore.Init").Msg("failed to derive device secret")
		return fmt.Errorf("init secure store: %w", err)
	}

	return nil
}

func (s *secureStore) Shutdown() {
	s.state.set("")
}

func (s *secureStore) Initialized() bool {
	return s.state.get() != ""
}

func (s *secureStore) DeviceSecret() (string, error) {
	secret := s.state.get()
	if secret == "" {
		return "", ErrNotInitialized
	}
	return secret, nil
}

func (s *secureStore) WithNamespace(ns string) (SecureStore, error) {
	if err := validateNamespace(ns); err != nil {
		return nil, err
	}

	view := *s
	view.namespace = ns
	return &view, nil
}

func (s *secureStore) fullKey(key string) string {
	return s.namespace + namespaceSeparator + key
}

func (s *secureStore) Set(ctx context.Context, key string, value any) error {
	return s.Commit(ctx, PutChange(key, value))
}

func (s *secureStore) Remove(ctx context.Context, key string) error {
	return s.Commit(ctx, RemoveChange(key))
}

func (s *secureStore) Commit(ctx context.Context, changes ...Change) error {
	secret, err := s.DeviceSecret()
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}

	ops := make([]store.Op, 0, len(changes))
	for _, change := range changes {
		if change.Key == "" {
			return ErrEmptyKey
		}
		if change.Remove {
			ops = append(ops, store.DeleteOp(s.fullKey(change.Key)))
			continue
		}

		raw, err := s.seal(change.Value, secret)
		if err != nil {
			return fmt.Errorf("seal %q: %w", change.Key, err)
		}
		ops = append(ops, store.PutOp(s.fullKey(change.Key), raw))
	}

	return s.medium.Apply(ctx, ops...)
}

// seal serializes value into a StoredRecord.
func (s *secureStore) seal(value any, secret string) ([]byte, error) {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}

	payload, err := s.cipher.Encrypt(plaintext, secret)
	if err != nil {
		return nil, err
	}

	return json.Marshal(models.StoredRecord{
		Encrypted: payload,
		Hash:      s.cipher.GenerateHash(plaintext),
		Timestamp: s.now().UTC(),
		Version:   models.StoredRecordVersion,
	})
}

func (s *secureStore) Get(ctx context.Context, key string, target any) (bool, error) {
	log := logger.FromContext(ctx)

	secret, err := s.DeviceSecret()
	if err != nil {
		return false, err
	}
	if key == "" {
		return false, ErrEmptyKey
	}

	raw, found, err := s.medium.Get(ctx, s.fullKey(key))
	if err != nil || !found {
		return false, err
	}

	plaintext, reason := s.open(raw, secret)
	if reason != nil {
		log.Warn().
			Err(reason).
			Str("func", "secureStore.Get").
			Str("key", key).
			Msg("purging unreadable record")

		if err = s.medium.Remove(ctx, s.fullKey(key)); err != nil {
			return false, err
		}
		return false, nil
	}

	if err = json.Unmarshal(plaintext, target); err != nil {
		return false, fmt.Errorf("unmarshal %q: %w", key, err)
	}
	return true, nil
}

// open returns the plaintext of a StoredRecord, or the reason it cannot be
// trusted.
func (s *secureStore) open(raw []byte, secret string) ([]byte, error) {
	var record models.StoredRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("%w: malformed record: %w", crypto.ErrDecrypt, err)
	}

	plaintext, err := s.cipher.Decrypt(record.Encrypted, secret)
	if err != nil {
		return nil, err
	}

	if !s.cipher.VerifyIntegrity(plaintext, record.Hash) {
		return nil, crypto.ErrIntegrity
	}
	return plaintext, nil
}

func (s *secureStore) Has(ctx context.Context, key string) (bool, error) {
	if _, err := s.DeviceSecret(); err != nil {
		return false, err
	}
	if key == "" {
		return false, ErrEmptyKey
	}

	_, found, err := s.medium.Get(ctx, s.fullKey(key))
	return found, err
}

func (s *secureStore) ListKeys(ctx context.Context) ([]string, error) {
	if _, err := s.DeviceSecret(); err != nil {
		return nil, err
	}

	prefix := s.namespace + namespaceSeparator
	keys, err := s.medium.ListKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, strings.TrimPrefix(key, prefix))
	}
	return out, nil
}
