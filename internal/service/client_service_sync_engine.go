// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MKhiriev/go-care-keeper/internal/adapter"
	"github.com/MKhiriev/go-care-keeper/internal/logger"
	"github.com/MKhiriev/go-care-keeper/internal/metrics"
	"github.com/MKhiriev/go-care-keeper/internal/utils"
	"github.com/MKhiriev/go-care-keeper/models"
)

// MaxRetries is the number of failed sends after which a queue entry is
// permanently failed and no longer sent automatically.
const MaxRetries = 3

// Secure store keys used by the engine.
const (
	entityKeyPrefix = "entity:"
	metaKeyPrefix   = "meta:"
	queueKey        = "queue"
	lastSyncAtKey   = "lastSyncAt"
)

func entityKey(id string) string { return entityKeyPrefix + id }
func metaKey(id string) string   { return metaKeyPrefix + id }

type syncEngine struct {
	store   SecureStore
	remote  adapter.RemoteAuthority
	metrics metrics.SyncMetrics
	logger  *logger.Logger

	ids IDGenerator
	now func() time.Time

	// mu guards everything below. It is never held across a remote call.
	mu         sync.Mutex
	metas      map[string]models.LocalRecordMeta
	queue      []models.SyncQueueEntry
	lastSyncAt *time.Time
	status     models.SyncStatus
	lastError  string
	online     bool
	syncing    bool
	started    bool
	closed     bool

	notifyMu    sync.Mutex
	subscribers map[int]func(models.SyncState)
	nextSubID   int
	published   *models.SyncState
	deliveries  []delivery
	delivering  bool

	wg sync.WaitGroup
}

// NewSyncEngine creates an engine over store and remote. The engine assumes
// connectivity until told otherwise through SetOnline and does nothing until
// Start is called.
func NewSyncEngine(store SecureStore, remote adapter.RemoteAuthority, m metrics.SyncMetrics, logger *logger.Logger) SyncEngine {
	if m == nil {
		m = metrics.Nop()
	}

	return &syncEngine{
		store:       store,
		remote:      remote,
		metrics:     m,
		logger:      logger,
		ids:         utils.NewUUIDGenerator(),
		now:         time.Now,
		metas:       make(map[string]models.LocalRecordMeta),
		status:      models.StatusIdle,
		online:      true,
		subscribers: make(map[int]func(models.SyncState)),
	}
}

func (e *syncEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.started {
		e.mu.Unlock()
		return nil
	}

	if err := e.loadLocked(ctx); err != nil {
		e.mu.Unlock()
		e.logger.Err(err).Str("func", "syncEngine.Start").Msg("failed to restore sync state")
		return fmt.Errorf("restore sync state: %w", err)
	}

	e.started = true
	if e.online {
		e.status = models.StatusIdle
	} else {
		e.status = models.StatusOffline
	}
	entities, queued := len(e.metas), len(e.queue)
	e.mu.Unlock()

	e.logger.Info().
		Int("entities", entities).
		Int("queued", queued).
		Msg("sync engine started")

	e.publish()
	return nil
}

// loadLocked rebuilds metas, queue and lastSyncAt from the store.
func (e *syncEngine) loadLocked(ctx context.Context) error {
	keys, err := e.store.ListKeys(ctx)
	if err != nil {
		return err
	}

	metas := make(map[string]models.LocalRecordMeta)
	for _, key := range keys {
		if !strings.HasPrefix(key, metaKeyPrefix) {
			continue
		}

		var meta models.LocalRecordMeta
		found, err := e.store.Get(ctx, key, &meta)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if meta.ID == "" {
			meta.ID = strings.TrimPrefix(key, metaKeyPrefix)
		}
		metas[meta.ID] = meta
	}

	var queue []models.SyncQueueEntry
	if _, err = e.store.Get(ctx, queueKey, &queue); err != nil {
		return err
	}
	for i := range queue {
		if string(queue[i].Data) == "null" {
			queue[i].Data = nil
		}
	}

	var lastSyncAt time.Time
	found, err := e.store.Get(ctx, lastSyncAtKey, &lastSyncAt)
	if err != nil {
		return err
	}

	e.metas = metas
	e.queue = queue
	e.lastSyncAt = nil
	if found {
		e.lastSyncAt = &lastSyncAt
	}
	return nil
}

func (e *syncEngine) Shutdown() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.wg.Wait()
}

func (e *syncEngine) SaveLocal(ctx context.Context, entity models.Entity) (models.Entity, error) {
	id := entity.ID()
	if id == "" {
		return nil, ErrInvalidEntity
	}

	now := e.now().UTC()
	saved := entity.Clone()
	if _, ok := saved.UpdatedAt(); !ok {
		saved.SetUpdatedAt(now)
	}

	data, err := json.Marshal(saved)
	if err != nil {
		return nil, fmt.Errorf("marshal entity %q: %w", id, err)
	}

	e.mu.Lock()
	if err = e.readyLocked(); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	meta, exists := e.metas[id]
	action := models.ActionUpdate
	if !exists {
		action = models.ActionCreate
		meta = models.LocalRecordMeta{ID: id}
	}
	// the server forgets the record once the queued delete lands
	if pendingDelete(e.queue, id) {
		action = models.ActionCreate
	}

	queue := append(slices.Clone(e.queue), models.SyncQueueEntry{
		ID:           e.ids.Generate(),
		EvaluationID: id,
		Action:       action,
		Data:         data,
		Timestamp:    now,
	})

	meta.Version++
	meta.SyncStatus = recordStatus(queue, id)
	meta.UpdatedAt = now

	err = e.store.Commit(ctx,
		PutChange(entityKey(id), saved),
		PutChange(metaKey(id), meta),
		PutChange(queueKey, queue),
	)
	if err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("save %q: %w", id, err)
	}

	e.metas[id] = meta
	e.queue = queue
	e.mu.Unlock()

	e.metrics.MutationEnqueued(string(action))
	e.publish()
	e.triggerSync(ctx)

	return saved.Clone(), nil
}

func (e *syncEngine) DeleteLocal(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidEntity
	}

	now := e.now().UTC()

	e.mu.Lock()
	if err := e.readyLocked(); err != nil {
		e.mu.Unlock()
		return err
	}

	meta, exists := e.metas[id]
	if !exists || pendingDelete(e.queue, id) {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}

	queue := append(slices.Clone(e.queue), models.SyncQueueEntry{
		ID:           e.ids.Generate(),
		EvaluationID: id,
		Action:       models.ActionDelete,
		Timestamp:    now,
	})

	meta.SyncStatus = recordStatus(queue, id)
	meta.UpdatedAt = now

	err := e.store.Commit(ctx,
		PutChange(metaKey(id), meta),
		PutChange(queueKey, queue),
	)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("delete %q: %w", id, err)
	}

	e.metas[id] = meta
	e.queue = queue
	e.mu.Unlock()

	e.metrics.MutationEnqueued(string(models.ActionDelete))
	e.publish()
	e.triggerSync(ctx)

	return nil
}

func (e *syncEngine) Get(ctx context.Context, id string) (models.Entity, error) {
	e.mu.Lock()
	if err := e.readyLocked(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	hidden := pendingDelete(e.queue, id)
	e.mu.Unlock()

	if hidden {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}

	var entity models.Entity
	found, err := e.store.Get(ctx, entityKey(id), &entity)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	return entity, nil
}

func (e *syncEngine) List(ctx context.Context) ([]models.Entity, error) {
	e.mu.Lock()
	if err := e.readyLocked(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	ids := make([]string, 0, len(e.metas))
	for id := range e.metas {
		if !pendingDelete(e.queue, id) {
			ids = append(ids, id)
		}
	}
	e.mu.Unlock()

	sort.Strings(ids)

	entities := make([]models.Entity, 0, len(ids))
	for _, id := range ids {
		var entity models.Entity
		found, err := e.store.Get(ctx, entityKey(id), &entity)
		if err != nil {
			return nil, err
		}
		if found {
			entities = append(entities, entity)
		}
	}
	return entities, nil
}

func (e *syncEngine) Meta(id string) (models.LocalRecordMeta, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	meta, ok := e.metas[id]
	if ok && meta.ServerVersion != nil {
		v := *meta.ServerVersion
		meta.ServerVersion = &v
	}
	return meta, ok
}

func (e *syncEngine) readyLocked() error {
	if e.closed {
		return ErrEngineClosed
	}
	if !e.started {
		return ErrNotInitialized
	}
	return nil
}

// triggerSync starts a background cycle when the engine is online.
func (e *syncEngine) triggerSync(ctx context.Context) {
	e.mu.Lock()
	if e.closed || !e.started || !e.online || e.syncing {
		e.mu.Unlock()
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		e.Sync(context.WithoutCancel(ctx))
	}()
}

// ── queue helpers ───────────────────────────────────────────────────────────

func indexOfEntry(queue []models.SyncQueueEntry, entryID string) int {
	return slices.IndexFunc(queue, func(q models.SyncQueueEntry) bool { return q.ID == entryID })
}

func hasEntriesFor(queue []models.SyncQueueEntry, id string) bool {
	return slices.ContainsFunc(queue, func(q models.SyncQueueEntry) bool { return q.EvaluationID == id })
}

// pendingDelete reports whether the newest queued mutation of id is a delete.
func pendingDelete(queue []models.SyncQueueEntry, id string) bool {
	for i := len(queue) - 1; i >= 0; i-- {
		if queue[i].EvaluationID == id {
			return queue[i].Action == models.ActionDelete
		}
	}
	return false
}

// recordStatus derives the per-entity status from the entries still queued.
func recordStatus(queue []models.SyncQueueEntry, id string) models.RecordSyncStatus {
	status := models.RecordSynced
	for _, q := range queue {
		if q.EvaluationID != id {
			continue
		}
		if q.RetryCount >= MaxRetries {
			return models.RecordError
		}
		status = models.RecordPending
	}
	return status
}

func countEntries(queue []models.SyncQueueEntry) (pending, failed int) {
	for _, q := range queue {
		if q.RetryCount >= MaxRetries {
			failed++
		} else {
			pending++
		}
	}
	return pending, failed
}
