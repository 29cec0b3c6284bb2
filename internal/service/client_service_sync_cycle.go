package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/MKhiriev/go-care-keeper/internal/logger"
	"github.com/MKhiriev/go-care-keeper/internal/metrics"
	"github.com/MKhiriev/go-care-keeper/models"
)

func (e *syncEngine) SyncIfIdle(ctx context.Context) {
	e.mu.Lock()
	idle := e.status == models.StatusIdle || e.status == models.StatusError
	e.mu.Unlock()

	if idle {
		e.Sync(ctx)
	}
}

func (e *syncEngine) Sync(ctx context.Context) {
	e.mu.Lock()
	if !e.started || e.closed || !e.online || e.syncing {
		e.mu.Unlock()
		return
	}
	e.syncing = true
	e.status = models.StatusSyncing
	e.lastError = ""
	e.mu.Unlock()
	e.publish()

	cycleStart := e.now().UTC()

	err := e.drainQueue(ctx)
	if pullErr := e.pull(ctx, cycleStart); pullErr != nil {
		err = errors.Join(err, pullErr)
	}

	e.mu.Lock()
	e.syncing = false
	switch {
	case !e.online:
		e.status = models.StatusOffline
	case err != nil:
		e.status = models.StatusError
		e.lastError = err.Error()
	default:
		e.status = models.StatusIdle
	}
	e.mu.Unlock()

	if err != nil {
		e.metrics.CycleFinished(metrics.ResultError)
	} else {
		e.metrics.CycleFinished(metrics.ResultOK)
	}
	e.publish()
}

// drainQueue sends queued mutations oldest first, one at a time. An entity
// whose entry failed or was deferred is skipped for the rest of the cycle so
// that its later mutations never overtake it.
func (e *syncEngine) drainQueue(ctx context.Context) error {
	blocked := make(map[string]bool)
	var errs []error

	for {
		e.mu.Lock()
		if !e.online || e.closed {
			e.mu.Unlock()
			break
		}
		entry, ok := nextEntry(e.queue, blocked)
		var baseVersion *int64
		if meta, exists := e.metas[entry.EvaluationID]; ok && exists {
			baseVersion = meta.ServerVersion
		}
		e.mu.Unlock()

		if !ok {
			break
		}

		res, err := e.remote.Send(ctx, models.MutationRequest{
			EvaluationID: entry.EvaluationID,
			Action:       entry.Action,
			Data:         entry.Data,
			BaseVersion:  baseVersion,
		})

		switch {
		case err != nil:
			blocked[entry.EvaluationID] = true
			errs = append(errs, e.recordFailure(ctx, entry, err))
		case res.Conflict && res.ServerRecord != nil:
			deferred, err := e.resolveConflict(ctx, entry, *res.ServerRecord)
			if deferred {
				blocked[entry.EvaluationID] = true
			}
			if err != nil {
				errs = append(errs, err)
			}
		case res.Success:
			if err = e.acknowledge(ctx, entry, res.ServerVersion); err != nil {
				blocked[entry.EvaluationID] = true
				errs = append(errs, err)
			}
		default:
			blocked[entry.EvaluationID] = true
			errs = append(errs, e.recordFailure(ctx, entry, errors.New("remote returned neither acknowledgement nor conflict")))
		}
	}

	return errors.Join(errs...)
}

// nextEntry returns the oldest sendable entry.
func nextEntry(queue []models.SyncQueueEntry, blocked map[string]bool) (models.SyncQueueEntry, bool) {
	for _, q := range queue {
		if blocked[q.EvaluationID] {
			continue
		}
		if q.RetryCount >= MaxRetries {
			blocked[q.EvaluationID] = true
			continue
		}
		return q, true
	}
	return models.SyncQueueEntry{}, false
}

func (e *syncEngine) acknowledge(ctx context.Context, entry models.SyncQueueEntry, serverVersion int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := indexOfEntry(e.queue, entry.ID)
	if idx < 0 {
		return nil
	}

	id := entry.EvaluationID
	queue := slices.Delete(slices.Clone(e.queue), idx, idx+1)
	remaining := hasEntriesFor(queue, id)
	meta, hasMeta := e.metas[id]

	changes := []Change{PutChange(queueKey, queue)}
	dropRecord := entry.Action == models.ActionDelete && !remaining
	if dropRecord {
		changes = append(changes, RemoveChange(entityKey(id)), RemoveChange(metaKey(id)))
	} else if hasMeta {
		v := serverVersion
		meta.ServerVersion = &v
		meta.SyncStatus = recordStatus(queue, id)
		changes = append(changes, PutChange(metaKey(id), meta))
	}

	if err := e.store.Commit(ctx, changes...); err != nil {
		e.logger.Err(err).
			Str("func", "syncEngine.acknowledge").
			Str("evaluation_id", id).
			Msg("failed to persist acknowledgement")
		return fmt.Errorf("persist acknowledgement of %q: %w", id, err)
	}

	e.queue = queue
	switch {
	case dropRecord:
		delete(e.metas, id)
	case hasMeta:
		e.metas[id] = meta
	}

	e.metrics.MutationAcknowledged()
	return nil
}

// resolveConflict applies last-write-wins between the queued mutation and the
// server record. It reports whether the entry stays queued.
func (e *syncEngine) resolveConflict(ctx context.Context, entry models.SyncQueueEntry, record models.ServerRecord) (deferred bool, err error) {
	log := logger.FromContext(ctx)

	localAt := entryTime(entry)
	localWins := !localAt.Before(record.UpdatedAt)

	e.mu.Lock()
	defer e.mu.Unlock()

	idx := indexOfEntry(e.queue, entry.ID)
	if idx < 0 {
		return false, nil
	}

	id := entry.EvaluationID
	queue := slices.Clone(e.queue)
	meta, hasMeta := e.metas[id]
	if !hasMeta {
		meta = models.LocalRecordMeta{ID: id, Version: 1}
	}
	if record.Version != nil {
		v := *record.Version
		meta.ServerVersion = &v
	}

	var changes []Change
	var payload models.Entity
	dropRecord := false

	if localWins {
		queue[idx].RetryCount = 0
		meta.SyncStatus = recordStatus(queue, id)
		changes = append(changes, PutChange(queueKey, queue), PutChange(metaKey(id), meta))
	} else {
		queue = slices.Delete(queue, idx, idx+1)
		changes = append(changes, PutChange(queueKey, queue))

		switch {
		case hasEntriesFor(queue, id):
			meta.SyncStatus = recordStatus(queue, id)
			changes = append(changes, PutChange(metaKey(id), meta))
		case record.Payload == nil:
			dropRecord = true
			changes = append(changes, RemoveChange(entityKey(id)), RemoveChange(metaKey(id)))
		default:
			payload = remotePayload(id, record.Payload, record.UpdatedAt)
			meta.SyncStatus = models.RecordSynced
			meta.UpdatedAt = e.now().UTC()
			changes = append(changes, PutChange(entityKey(id), payload), PutChange(metaKey(id), meta))
		}
	}

	if err = e.store.Commit(ctx, changes...); err != nil {
		log.Err(err).
			Str("func", "syncEngine.resolveConflict").
			Str("evaluation_id", id).
			Msg("failed to persist conflict resolution")
		return true, fmt.Errorf("persist conflict resolution of %q: %w", id, err)
	}

	e.queue = queue
	if dropRecord {
		delete(e.metas, id)
	} else {
		e.metas[id] = meta
	}

	winner := metrics.WinnerServer
	if localWins {
		winner = metrics.WinnerLocal
	}
	e.metrics.Conflict(winner)

	log.Info().
		Str("evaluation_id", id).
		Str("action", string(entry.Action)).
		Time("local_updated_at", localAt).
		Time("server_updated_at", record.UpdatedAt).
		Str("winner", winner).
		Msg("sync conflict resolved")

	return localWins, nil
}

// entryTime is the local modification time of a queued mutation: the
// entity's updatedAt for writes, the enqueue time for deletes.
func entryTime(entry models.SyncQueueEntry) time.Time {
	if entry.Action == models.ActionDelete || len(entry.Data) == 0 {
		return entry.Timestamp
	}

	var entity models.Entity
	if err := json.Unmarshal(entry.Data, &entity); err != nil {
		return entry.Timestamp
	}
	if t, ok := entity.UpdatedAt(); ok {
		return t
	}
	return entry.Timestamp
}

func remotePayload(id string, payload models.Entity, updatedAt time.Time) models.Entity {
	out := payload.Clone()
	if out == nil {
		out = models.Entity{}
	}
	if out.ID() == "" {
		out[models.EntityIDField] = id
	}
	if _, ok := out.UpdatedAt(); !ok && !updatedAt.IsZero() {
		out.SetUpdatedAt(updatedAt)
	}
	return out
}

// recordFailure increments the retry counter of entry and returns the cause
// wrapped in ErrTransientSyncFailure.
func (e *syncEngine) recordFailure(ctx context.Context, entry models.SyncQueueEntry, cause error) error {
	log := logger.FromContext(ctx)
	failure := fmt.Errorf("%w: %s %s: %w", ErrTransientSyncFailure, entry.Action, entry.EvaluationID, cause)

	e.mu.Lock()
	idx := indexOfEntry(e.queue, entry.ID)
	if idx < 0 {
		e.mu.Unlock()
		return failure
	}

	id := entry.EvaluationID
	queue := slices.Clone(e.queue)
	queue[idx].RetryCount++
	retries := queue[idx].RetryCount

	changes := []Change{PutChange(queueKey, queue)}
	meta, hasMeta := e.metas[id]
	if hasMeta {
		meta.SyncStatus = recordStatus(queue, id)
		changes = append(changes, PutChange(metaKey(id), meta))
	}

	if err := e.store.Commit(ctx, changes...); err != nil {
		e.mu.Unlock()
		log.Err(err).
			Str("func", "syncEngine.recordFailure").
			Str("evaluation_id", id).
			Msg("failed to persist retry counter")
		return errors.Join(failure, err)
	}

	e.queue = queue
	if hasMeta {
		e.metas[id] = meta
	}
	e.mu.Unlock()

	if retries >= MaxRetries {
		e.metrics.PermanentFailure()
		log.Error().
			Err(cause).
			Str("evaluation_id", id).
			Str("entry_id", entry.ID).
			Str("action", string(entry.Action)).
			Int("retry_count", retries).
			Msg("mutation permanently failed")
	} else {
		e.metrics.TransientFailure()
		log.Warn().
			Err(cause).
			Str("evaluation_id", id).
			Str("entry_id", entry.ID).
			Int("retry_count", retries).
			Msg("mutation send failed, will retry")
	}

	return failure
}

// pull applies remote changes made since the last successful pull to every
// entity that has no queued local mutation.
func (e *syncEngine) pull(ctx context.Context, cycleStart time.Time) error {
	e.mu.Lock()
	if !e.online || e.closed {
		e.mu.Unlock()
		return nil
	}
	var since time.Time
	if e.lastSyncAt != nil {
		since = *e.lastSyncAt
	}
	e.mu.Unlock()

	items, err := e.remote.PullSince(ctx, since)
	if err != nil {
		e.logger.Warn().Err(err).Str("func", "syncEngine.pull").Msg("failed to pull remote changes")
		return fmt.Errorf("%w: pull: %w", ErrTransientSyncFailure, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()
	updated := make(map[string]models.LocalRecordMeta)
	removed := make(map[string]bool)
	var changes []Change

	for _, item := range items {
		if item.ID == "" || hasEntriesFor(e.queue, item.ID) {
			continue
		}

		if item.Deleted {
			if _, exists := e.metas[item.ID]; !exists {
				continue
			}
			removed[item.ID] = true
			delete(updated, item.ID)
			changes = append(changes, RemoveChange(entityKey(item.ID)), RemoveChange(metaKey(item.ID)))
			continue
		}

		meta, exists := e.metas[item.ID]
		if !exists {
			meta = models.LocalRecordMeta{ID: item.ID, Version: 1}
		}
		v := item.Version
		meta.ServerVersion = &v
		meta.SyncStatus = models.RecordSynced
		meta.UpdatedAt = now

		delete(removed, item.ID)
		updated[item.ID] = meta
		changes = append(changes,
			PutChange(entityKey(item.ID), remotePayload(item.ID, item.Payload, item.UpdatedAt)),
			PutChange(metaKey(item.ID), meta),
		)
	}

	changes = append(changes, PutChange(lastSyncAtKey, cycleStart))
	if err = e.store.Commit(ctx, changes...); err != nil {
		e.logger.Err(err).Str("func", "syncEngine.pull").Msg("failed to persist remote changes")
		return fmt.Errorf("persist remote changes: %w", err)
	}

	for id := range removed {
		delete(e.metas, id)
	}
	for id, meta := range updated {
		e.metas[id] = meta
	}
	ts := cycleStart
	e.lastSyncAt = &ts

	if applied := len(updated) + len(removed); applied > 0 {
		e.metrics.EntitiesPulled(applied)
	}
	return nil
}

func (e *syncEngine) RetryFailed(ctx context.Context) (int, error) {
	e.mu.Lock()
	if err := e.readyLocked(); err != nil {
		e.mu.Unlock()
		return 0, err
	}

	queue := slices.Clone(e.queue)
	touched := make(map[string]bool)
	for i := range queue {
		if queue[i].RetryCount >= MaxRetries {
			queue[i].RetryCount = 0
			touched[queue[i].EvaluationID] = true
		}
	}
	if len(touched) == 0 {
		e.mu.Unlock()
		return 0, nil
	}

	reset := 0
	for _, q := range e.queue {
		if q.RetryCount >= MaxRetries {
			reset++
		}
	}

	changes := []Change{PutChange(queueKey, queue)}
	metas := make(map[string]models.LocalRecordMeta, len(touched))
	for id := range touched {
		meta, ok := e.metas[id]
		if !ok {
			continue
		}
		meta.SyncStatus = recordStatus(queue, id)
		metas[id] = meta
		changes = append(changes, PutChange(metaKey(id), meta))
	}

	if err := e.store.Commit(ctx, changes...); err != nil {
		e.mu.Unlock()
		return 0, fmt.Errorf("reset failed entries: %w", err)
	}

	e.queue = queue
	for id, meta := range metas {
		e.metas[id] = meta
	}
	e.mu.Unlock()

	e.logger.Info().Int("entries", reset).Msg("failed mutations reset for retry")

	e.publish()
	e.triggerSync(ctx)
	return reset, nil
}
