package service

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/MKhiriev/go-care-keeper/models"
)

func (e *syncEngine) SetOnline(ctx context.Context, online bool) {
	e.mu.Lock()
	changed := e.online != online
	e.online = online
	if e.started && !e.syncing {
		switch {
		case !online:
			e.status = models.StatusOffline
		case e.status == models.StatusOffline:
			e.status = models.StatusIdle
		}
	}
	e.mu.Unlock()

	if changed {
		e.logger.Info().Bool("online", online).Msg("connectivity changed")
	}

	e.publish()
	if online {
		e.triggerSync(ctx)
	}
}

func (e *syncEngine) State() models.SyncState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *syncEngine) stateLocked() models.SyncState {
	pending, failed := countEntries(e.queue)

	state := models.SyncState{
		Status:       e.status,
		PendingCount: pending,
		FailedCount:  failed,
		Error:        e.lastError,
	}
	if e.lastSyncAt != nil {
		t := *e.lastSyncAt
		state.LastSyncAt = &t
	}
	return state
}

func (e *syncEngine) FailedEntries() []models.SyncQueueEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	failed := make([]models.SyncQueueEntry, 0)
	for _, q := range e.queue {
		if q.RetryCount >= MaxRetries {
			failed = append(failed, q)
		}
	}
	return failed
}

// delivery is one state to hand to a set of subscribers.
type delivery struct {
	fns   []func(models.SyncState)
	state models.SyncState
}

// Subscribe registers fn and delivers the current state to it. Callbacks run
// outside engine locks, in publish order, so fn may call back into the engine.
// If another goroutine is delivering when Subscribe is called, the initial
// state is queued behind it and may arrive after Subscribe returns.
func (e *syncEngine) Subscribe(fn func(models.SyncState)) func() {
	e.notifyMu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.subscribers[id] = fn
	e.deliveries = append(e.deliveries, delivery{fns: []func(models.SyncState){fn}, state: e.State()})
	e.notifyMu.Unlock()

	e.deliver()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.notifyMu.Lock()
			delete(e.subscribers, id)
			e.notifyMu.Unlock()
		})
	}
}

// publish notifies subscribers when the state differs from the last one
// published.
func (e *syncEngine) publish() {
	e.notifyMu.Lock()
	state := e.State()
	e.metrics.SetPending(state.PendingCount)
	e.metrics.SetFailed(state.FailedCount)

	if e.published != nil && sameState(*e.published, state) {
		e.notifyMu.Unlock()
		return
	}
	e.published = &state

	fns := make([]func(models.SyncState), 0, len(e.subscribers))
	for _, id := range slices.Sorted(maps.Keys(e.subscribers)) {
		fns = append(fns, e.subscribers[id])
	}
	e.deliveries = append(e.deliveries, delivery{fns: fns, state: state})
	e.notifyMu.Unlock()

	e.deliver()
}

// deliver drains queued deliveries unless another goroutine, or an outer
// frame of this one, is already draining them.
func (e *syncEngine) deliver() {
	e.notifyMu.Lock()
	if e.delivering {
		e.notifyMu.Unlock()
		return
	}
	e.delivering = true

	for len(e.deliveries) > 0 {
		d := e.deliveries[0]
		e.deliveries = e.deliveries[1:]
		e.notifyMu.Unlock()

		for _, fn := range d.fns {
			fn(d.state)
		}

		e.notifyMu.Lock()
	}

	e.delivering = false
	e.notifyMu.Unlock()
}

func sameState(a, b models.SyncState) bool {
	if a.Status != b.Status || a.PendingCount != b.PendingCount ||
		a.FailedCount != b.FailedCount || a.Error != b.Error {
		return false
	}
	if a.LastSyncAt == nil || b.LastSyncAt == nil {
		return a.LastSyncAt == b.LastSyncAt
	}
	return a.LastSyncAt.Equal(*b.LastSyncAt)
}
