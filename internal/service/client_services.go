package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/MKhiriev/go-care-keeper/internal/adapter"
	"github.com/MKhiriev/go-care-keeper/internal/config"
	"github.com/MKhiriev/go-care-keeper/internal/crypto"
	"github.com/MKhiriev/go-care-keeper/internal/logger"
	"github.com/MKhiriev/go-care-keeper/internal/metrics"
	"github.com/MKhiriev/go-care-keeper/internal/store"
	"github.com/MKhiriev/go-care-keeper/internal/utils"
	"github.com/MKhiriev/go-care-keeper/internal/validators"
)

type ClientServices struct {
	Store        SecureStore
	Codec        FieldCodec
	SyncEngine   SyncEngine
	Evaluations  EvaluationService
	SyncJob      ClientSyncJob
	Connectivity ConnectivityMonitor
}

// NewClientServices wires the data layer on top of medium and remote. Nothing
// touches storage or the network until Start is called.
func NewClientServices(cfg *config.ClientConfig, medium store.Medium, remote adapter.RemoteAuthority, m metrics.SyncMetrics, logger *logger.Logger) (*ClientServices, error) {
	userID := ResolveUserID(cfg.App, logger)
	if err := validateNamespace(cfg.App.Namespace); err != nil {
		return nil, fmt.Errorf("create secure store: %w", err)
	}

	secureStore, err := NewSecureStore(
		medium,
		crypto.NewKeyChainService(medium, crypto.SystemFingerprint, logger),
		crypto.NewCipherService(),
		userID,
		UserNamespace(cfg.App.Namespace, userID),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("create secure store: %w", err)
	}

	codec := NewFieldCodec(secureStore, crypto.NewCipherService(), logger)
	engine := NewSyncEngine(secureStore, remote, m, logger)

	return &ClientServices{
		Store:        secureStore,
		Codec:        codec,
		SyncEngine:   engine,
		Evaluations:  NewEvaluationService(engine, codec, utils.NewUUIDGenerator(), validators.NewEvaluationValidator(), logger),
		SyncJob:      NewClientSyncJob(engine, cfg.Workers.SyncInterval),
		Connectivity: NewConnectivityMonitor(remote, engine, cfg.Workers.ProbeInterval, cfg.Adapter.RequestTimeout, logger),
	}, nil
}

// Start derives the device secret and restores the sync engine state.
// Background workers are started separately.
func (s *ClientServices) Start(ctx context.Context) error {
	if err := s.Store.Init(ctx); err != nil {
		return err
	}
	return s.SyncEngine.Start(ctx)
}

// Shutdown waits for running syncs and forgets the device secret.
func (s *ClientServices) Shutdown() {
	s.SyncEngine.Shutdown()
	s.Store.Shutdown()
}

// UserNamespace scopes ns to userID. Records sealed under one user's secret
// live under a different prefix than another user's, so a user's Start never
// reads, and purges, records it cannot decrypt.
func UserNamespace(ns, userID string) string {
	if userID == "" {
		userID = crypto.AnonymousUser
	}
	sum := sha256.Sum256([]byte(userID))
	return ns + "." + hex.EncodeToString(sum[:6])
}

// ResolveUserID returns the configured user id, falling back to the subject of
// the bearer token. An empty result derives the anonymous device secret.
func ResolveUserID(app config.ClientApp, logger *logger.Logger) string {
	if id := strings.TrimSpace(app.UserID); id != "" {
		return id
	}
	if app.Token == "" {
		return ""
	}

	sub, err := utils.SubjectFromJWT(app.Token)
	if err != nil {
		logger.Warn().Err(err).Str("func", "ResolveUserID").Msg("cannot read user id from token")
		return ""
	}
	return sub
}
