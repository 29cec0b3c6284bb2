// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MKhiriev/go-care-keeper/internal/logger"
	"github.com/MKhiriev/go-care-keeper/internal/metrics"
	"github.com/MKhiriev/go-care-keeper/internal/mock"
	"github.com/MKhiriev/go-care-keeper/internal/store"
	"github.com/MKhiriev/go-care-keeper/models"
)

var errNetwork = errors.New("connection refused")

type engineFixture struct {
	engine *syncEngine
	store  *fakeSecureStore
	remote *mock.MockRemoteAuthority
	clock  *testClock
}

// newEngineFixture создаёт запущенный engine в режиме offline, чтобы
// SaveLocal не запускал фоновую синхронизацию. Тест сам вызывает goOnline и Sync.
func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	f := &engineFixture{
		store:  newFakeSecureStore(),
		remote: mock.NewMockRemoteAuthority(ctrl),
		clock:  newTestClock(),
	}
	f.engine = f.newEngine(t)
	return f
}

func (f *engineFixture) newEngine(t *testing.T) *syncEngine {
	t.Helper()

	e := NewSyncEngine(f.store, f.remote, metrics.Nop(), logger.Nop()).(*syncEngine)
	e.now = f.clock.Now
	e.ids = &sequentialIDs{}
	e.online = false
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(e.Shutdown)
	return e
}

// goOnline включает сеть без запуска фоновой синхронизации.
func (f *engineFixture) goOnline() {
	f.engine.mu.Lock()
	f.engine.online = true
	f.engine.status = models.StatusIdle
	f.engine.mu.Unlock()
}

// goOffline выключает сеть, чтобы следующие SaveLocal не запускали фоновый цикл.
func (f *engineFixture) goOffline() {
	f.engine.mu.Lock()
	f.engine.online = false
	f.engine.status = models.StatusOffline
	f.engine.mu.Unlock()
}

func (f *engineFixture) save(t *testing.T, id, status string) models.Entity {
	t.Helper()
	saved, err := f.engine.SaveLocal(context.Background(), models.Entity{"id": id, "status": status})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return saved
}

func (f *engineFixture) expectEmptyPull() *gomock.Call {
	return f.remote.EXPECT().PullSince(gomock.Any(), gomock.Any()).Return(nil, nil)
}

func version(v int64) *int64 { return &v }

func ack(v int64) models.MutationResult {
	return models.MutationResult{Success: true, ServerVersion: v}
}

// ── Start / lifecycle ───────────────────────────────────────────────────────

func TestSyncEngine_NotStarted(t *testing.T) {
	e := NewSyncEngine(newFakeSecureStore(), nil, nil, logger.Nop())
	ctx := context.Background()

	_, err := e.SaveLocal(ctx, models.Entity{"id": "a"})
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, e.DeleteLocal(ctx, "a"), ErrNotInitialized)
	_, err = e.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = e.List(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = e.RetryFailed(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)

	// Sync до Start: no-op без обращения к remote (nil)
	assert.NotPanics(t, func() { e.Sync(ctx) })
}

func TestSyncEngine_Start_InitialStatus(t *testing.T) {
	online := NewSyncEngine(newFakeSecureStore(), nil, nil, logger.Nop())
	require.NoError(t, online.Start(context.Background()))
	assert.Equal(t, models.StatusIdle, online.State().Status)

	f := newEngineFixture(t)
	assert.Equal(t, models.StatusOffline, f.engine.State().Status)
}

func TestSyncEngine_Start_StoreNotInitialized(t *testing.T) {
	s := newFakeSecureStore()
	s.Shutdown()

	e := NewSyncEngine(&notInitializedStore{s}, nil, nil, logger.Nop())
	err := e.Start(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

// notInitializedStore отвечает ErrNotInitialized на ListKeys.
type notInitializedStore struct{ *fakeSecureStore }

func (n *notInitializedStore) ListKeys(context.Context) ([]string, error) {
	return nil, ErrNotInitialized
}

func TestSyncEngine_ShutdownRejectsWrites(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.Shutdown()

	_, err := f.engine.SaveLocal(context.Background(), models.Entity{"id": "a"})
	assert.ErrorIs(t, err, ErrEngineClosed)
	assert.ErrorIs(t, f.engine.Start(context.Background()), ErrEngineClosed)
}

// ── SaveLocal / DeleteLocal ─────────────────────────────────────────────────

func TestSyncEngine_SaveLocal_Create(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	saved, err := f.engine.SaveLocal(ctx, models.Entity{"id": "a", "status": "draft"})
	require.NoError(t, err)

	updatedAt, ok := saved.UpdatedAt()
	require.True(t, ok, "updatedAt must be stamped")
	assert.True(t, updatedAt.Equal(f.clock.Now()))

	meta, ok := f.engine.Meta("a")
	require.True(t, ok)
	assert.EqualValues(t, 1, meta.Version)
	assert.Equal(t, models.RecordPending, meta.SyncStatus)
	assert.Nil(t, meta.ServerVersion)

	require.Len(t, f.engine.queue, 1)
	entry := f.engine.queue[0]
	assert.Equal(t, "q-1", entry.ID)
	assert.Equal(t, models.ActionCreate, entry.Action)
	assert.Equal(t, "a", entry.EvaluationID)
	assert.Zero(t, entry.RetryCount)

	var data models.Entity
	require.NoError(t, json.Unmarshal(entry.Data, &data))
	assert.Equal(t, "draft", data["status"])

	// entity, meta и queue записаны одним commit
	assert.Equal(t, 1, f.store.commits)
	assert.Equal(t, []string{"entity:a"}, f.store.keysWithPrefix("entity:"))
	assert.Equal(t, []string{"meta:a"}, f.store.keysWithPrefix("meta:"))

	state := f.engine.State()
	assert.Equal(t, 1, state.PendingCount)
}

func TestSyncEngine_SaveLocal_KeepsCallerUpdatedAt(t *testing.T) {
	f := newEngineFixture(t)

	saved, err := f.engine.SaveLocal(context.Background(), models.Entity{"id": "a", "updatedAt": "2025-01-01T00:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01T00:00:00Z", saved["updatedAt"])
}

func TestSyncEngine_SaveLocal_Update(t *testing.T) {
	f := newEngineFixture(t)

	f.save(t, "a", "draft")
	f.save(t, "a", "completed")

	meta, _ := f.engine.Meta("a")
	assert.EqualValues(t, 2, meta.Version)
	require.Len(t, f.engine.queue, 2)
	assert.Equal(t, models.ActionCreate, f.engine.queue[0].Action)
	assert.Equal(t, models.ActionUpdate, f.engine.queue[1].Action)

	got, err := f.engine.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "completed", got["status"])
}

func TestSyncEngine_SaveLocal_InvalidEntity(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.SaveLocal(context.Background(), models.Entity{"status": "draft"})
	assert.ErrorIs(t, err, ErrInvalidEntity)
}

func TestSyncEngine_SaveLocal_StorageFailure(t *testing.T) {
	f := newEngineFixture(t)
	f.store.setCommitErr(store.ErrStorageUnavailable)

	_, err := f.engine.SaveLocal(context.Background(), models.Entity{"id": "a"})

	assert.ErrorIs(t, err, store.ErrStorageUnavailable)
	_, ok := f.engine.Meta("a")
	assert.False(t, ok)
	assert.Empty(t, f.engine.queue)
}

func TestSyncEngine_SaveLocal_DoesNotMutateInput(t *testing.T) {
	f := newEngineFixture(t)
	in := models.Entity{"id": "a"}

	_, err := f.engine.SaveLocal(context.Background(), in)
	require.NoError(t, err)
	assert.NotContains(t, in, "updatedAt")
}

func TestSyncEngine_DeleteLocal(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.save(t, "a", "draft")
	f.save(t, "b", "draft")

	require.NoError(t, f.engine.DeleteLocal(ctx, "a"))

	require.Len(t, f.engine.queue, 3)
	last := f.engine.queue[2]
	assert.Equal(t, models.ActionDelete, last.Action)
	assert.Empty(t, last.Data)

	_, err := f.engine.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrEntityNotFound)

	list, err := f.engine.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID())

	// сама запись остаётся до подтверждения удаления
	has, err := f.store.Has(ctx, "entity:a")
	require.NoError(t, err)
	assert.True(t, has)

	assert.ErrorIs(t, f.engine.DeleteLocal(ctx, "a"), ErrEntityNotFound, "second delete")
	assert.ErrorIs(t, f.engine.DeleteLocal(ctx, "zzz"), ErrEntityNotFound)
}

func TestSyncEngine_SaveLocal_AfterDeleteIsCreate(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.save(t, "a", "draft")
	require.NoError(t, f.engine.DeleteLocal(ctx, "a"))
	f.save(t, "a", "restored")

	require.Len(t, f.engine.queue, 3)
	assert.Equal(t, models.ActionDelete, f.engine.queue[1].Action)
	assert.Equal(t, models.ActionCreate, f.engine.queue[2].Action, "повторное сохранение после удаления создаёт запись заново")

	got, err := f.engine.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "restored", got["status"])

	// после подтверждения удаления запись остаётся, create отправляется следом
	f.goOnline()
	var actions []models.SyncAction
	f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req models.MutationRequest) (models.MutationResult, error) {
			actions = append(actions, req.Action)
			return ack(int64(len(actions))), nil
		}).Times(3)
	f.expectEmptyPull()

	f.engine.Sync(ctx)

	assert.Equal(t, []models.SyncAction{models.ActionCreate, models.ActionDelete, models.ActionCreate}, actions)
	assert.Empty(t, f.engine.queue)
	meta, ok := f.engine.Meta("a")
	require.True(t, ok)
	assert.Equal(t, models.RecordSynced, meta.SyncStatus)
	_, err = f.engine.Get(ctx, "a")
	assert.NoError(t, err)
}

// ── Sync: acknowledgements ──────────────────────────────────────────────────

func TestSyncEngine_Sync_FIFOAndAcknowledge(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.save(t, "a", "draft")
	f.save(t, "b", "draft")
	f.save(t, "a", "completed")
	f.goOnline()

	var sent []string
	record := func(res models.MutationResult) func(context.Context, models.MutationRequest) (models.MutationResult, error) {
		return func(_ context.Context, req models.MutationRequest) (models.MutationResult, error) {
			sent = append(sent, req.EvaluationID+":"+string(req.Action))
			return res, nil
		}
	}

	gomock.InOrder(
		f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(record(ack(1))),
		f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(record(ack(1))),
		f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(record(ack(2))),
		f.remote.EXPECT().PullSince(gomock.Any(), time.Time{}).Return(nil, nil),
	)

	cycleStart := f.clock.Now()
	f.engine.Sync(ctx)

	assert.Equal(t, []string{"a:create", "b:create", "a:update"}, sent)
	assert.Empty(t, f.engine.queue)

	metaA, _ := f.engine.Meta("a")
	assert.Equal(t, models.RecordSynced, metaA.SyncStatus)
	require.NotNil(t, metaA.ServerVersion)
	assert.EqualValues(t, 2, *metaA.ServerVersion)

	state := f.engine.State()
	assert.Equal(t, models.StatusIdle, state.Status)
	assert.Zero(t, state.PendingCount)
	require.NotNil(t, state.LastSyncAt)
	assert.True(t, state.LastSyncAt.Equal(cycleStart))
}

func TestSyncEngine_Sync_SendsBaseVersion(t *testing.T) {
	f := newEngineFixture(t)
	f.save(t, "a", "draft")
	f.goOnline()

	f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).Return(ack(5), nil)
	f.expectEmptyPull()
	f.engine.Sync(context.Background())

	f.goOffline()
	f.save(t, "a", "completed")
	f.goOnline()

	f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req models.MutationRequest) (models.MutationResult, error) {
			require.NotNil(t, req.BaseVersion)
			assert.EqualValues(t, 5, *req.BaseVersion)
			return ack(6), nil
		})
	f.remote.EXPECT().PullSince(gomock.Any(), gomock.Any()).Return(nil, nil)
	f.engine.Sync(context.Background())
}

func TestSyncEngine_Sync_PendingUntilLastEntryAcknowledged(t *testing.T) {
	f := newEngineFixture(t)

	f.save(t, "a", "draft")
	f.save(t, "a", "completed")
	f.goOnline()

	gomock.InOrder(
		f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).Return(ack(1), nil),
		f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, models.MutationRequest) (models.MutationResult, error) {
				meta, _ := f.engine.Meta("a")
				assert.Equal(t, models.RecordPending, meta.SyncStatus, "still pending while an entry remains")
				return ack(2), nil
			}),
		f.expectEmptyPull(),
	)

	f.engine.Sync(context.Background())

	meta, _ := f.engine.Meta("a")
	assert.Equal(t, models.RecordSynced, meta.SyncStatus)
}

func TestSyncEngine_Sync_AcknowledgedDeleteRemovesEntity(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.save(t, "a", "draft")
	require.NoError(t, f.engine.DeleteLocal(ctx, "a"))
	f.goOnline()

	f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).Return(ack(1), nil).Times(2)
	f.expectEmptyPull()

	f.engine.Sync(ctx)

	_, ok := f.engine.Meta("a")
	assert.False(t, ok)
	assert.Empty(t, f.store.keysWithPrefix("entity:"))
	assert.Empty(t, f.store.keysWithPrefix("meta:"))
}

func TestSyncEngine_Sync_OfflineIsNoop(t *testing.T) {
	f := newEngineFixture(t)
	f.save(t, "a", "draft")

	// remote без ожиданий: любой вызов провалит тест
	f.engine.Sync(context.Background())

	assert.Equal(t, models.StatusOffline, f.engine.State().Status)
	assert.Len(t, f.engine.queue, 1)
}

func TestSyncEngine_Sync_SingleFlight(t *testing.T) {
	f := newEngineFixture(t)
	f.save(t, "a", "draft")
	f.goOnline()

	entered := make(chan struct{})
	release := make(chan struct{})

	f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, models.MutationRequest) (models.MutationResult, error) {
			close(entered)
			<-release
			return ack(1), nil
		}).
		Times(1)
	f.expectEmptyPull().Times(1)

	done := make(chan struct{})
	go func() {
		f.engine.Sync(context.Background())
		close(done)
	}()

	<-entered
	assert.Equal(t, models.StatusSyncing, f.engine.State().Status)

	// повторный вызов во время цикла: no-op
	f.engine.Sync(context.Background())
	f.engine.SyncIfIdle(context.Background())

	close(release)
	<-done
	assert.Equal(t, models.StatusIdle, f.engine.State().Status)
}

// ── Sync: conflicts ─────────────────────────────────────────────────────────

func TestSyncEngine_Sync_ConflictResolution(t *testing.T) {
	localAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		serverAt  time.Time
		localWins bool
	}{
		{name: "local newer", serverAt: localAt.Add(-time.Minute), localWins: true},
		{name: "equal timestamps", serverAt: localAt, localWins: true},
		{name: "server newer", serverAt: localAt.Add(time.Minute), localWins: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t)
			ctx := context.Background()

			_, err := f.engine.SaveLocal(ctx, models.Entity{
				"id":        "a",
				"status":    "local",
				"updatedAt": localAt.Format(time.RFC3339Nano),
			})
			require.NoError(t, err)
			f.goOnline()

			f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).Return(models.MutationResult{
				Conflict: true,
				ServerRecord: &models.ServerRecord{
					Payload:   models.Entity{"id": "a", "status": "server"},
					UpdatedAt: tt.serverAt,
					Version:   version(9),
				},
			}, nil)
			f.expectEmptyPull()

			f.engine.Sync(ctx)

			meta, ok := f.engine.Meta("a")
			require.True(t, ok)
			require.NotNil(t, meta.ServerVersion)
			assert.EqualValues(t, 9, *meta.ServerVersion)

			got, err := f.engine.Get(ctx, "a")
			require.NoError(t, err)

			if tt.localWins {
				require.Len(t, f.engine.queue, 1, "entry is kept for the next cycle")
				assert.Zero(t, f.engine.queue[0].RetryCount)
				assert.Equal(t, models.RecordPending, meta.SyncStatus)
				assert.Equal(t, "local", got["status"])
			} else {
				assert.Empty(t, f.engine.queue)
				assert.Equal(t, models.RecordSynced, meta.SyncStatus)
				assert.Equal(t, "server", got["status"])
			}

			// конфликт: не ошибка цикла
			assert.Equal(t, models.StatusIdle, f.engine.State().Status)
		})
	}
}

func TestSyncEngine_Sync_LocalWinRepushedWithServerVersion(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.save(t, "a", "draft")
	f.goOnline()

	f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).Return(models.MutationResult{
		Conflict:     true,
		ServerRecord: &models.ServerRecord{Payload: models.Entity{"id": "a"}, UpdatedAt: time.Unix(0, 0), Version: version(3)},
	}, nil)
	f.expectEmptyPull()
	f.engine.Sync(ctx)

	f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req models.MutationRequest) (models.MutationResult, error) {
			require.NotNil(t, req.BaseVersion)
			assert.EqualValues(t, 3, *req.BaseVersion)
			return ack(4), nil
		})
	f.expectEmptyPull()
	f.engine.Sync(ctx)

	assert.Empty(t, f.engine.queue)
}

func TestSyncEngine_Sync_DeleteConflictUsesEntryTimestamp(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.save(t, "a", "draft")
	f.goOnline()
	f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).Return(ack(1), nil)
	f.expectEmptyPull()
	f.engine.Sync(ctx)

	f.goOffline()
	f.clock.Advance(time.Hour)
	require.NoError(t, f.engine.DeleteLocal(ctx, "a"))
	deletedAt := f.clock.Now()
	f.goOnline()

	// сервер изменил запись позже локального удаления: сервер побеждает
	f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).Return(models.MutationResult{
		Conflict: true,
		ServerRecord: &models.ServerRecord{
			Payload:   models.Entity{"id": "a", "status": "reopened"},
			UpdatedAt: deletedAt.Add(time.Second),
			Version:   version(2),
		},
	}, nil)
	f.expectEmptyPull()
	f.engine.Sync(ctx)

	got, err := f.engine.Get(ctx, "a")
	require.NoError(t, err, "entity restored from the server")
	assert.Equal(t, "reopened", got["status"])
	assert.Empty(t, f.engine.queue)
}

// ── Sync: transient failures ────────────────────────────────────────────────

func TestSyncEngine_Sync_RetryBound(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.save(t, "a", "draft")
	f.goOnline()

	f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).Return(models.MutationResult{}, errNetwork).Times(MaxRetries)
	f.remote.EXPECT().PullSince(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

	for i := 1; i <= MaxRetries+2; i++ {
		f.engine.SyncIfIdle(ctx)
	}

	require.Len(t, f.engine.queue, 1)
	assert.Equal(t, MaxRetries, f.engine.queue[0].RetryCount)

	meta, _ := f.engine.Meta("a")
	assert.Equal(t, models.RecordError, meta.SyncStatus)

	failed := f.engine.FailedEntries()
	require.Len(t, failed, 1)
	assert.Equal(t, "a", failed[0].EvaluationID)

	state := f.engine.State()
	assert.Equal(t, 1, state.FailedCount)
	assert.Zero(t, state.PendingCount)
}

func TestSyncEngine_Sync_TransientFailureSetsError(t *testing.T) {
	f := newEngineFixture(t)
	f.save(t, "a", "draft")
	f.goOnline()

	f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).Return(models.MutationResult{}, errNetwork)
	f.expectEmptyPull()

	f.engine.Sync(context.Background())

	state := f.engine.State()
	assert.Equal(t, models.StatusError, state.Status)
	assert.Contains(t, state.Error, errNetwork.Error())
	assert.Equal(t, 1, f.engine.queue[0].RetryCount)

	meta, _ := f.engine.Meta("a")
	assert.Equal(t, models.RecordPending, meta.SyncStatus)
}

func TestSyncEngine_Sync_PerEntityOrdering(t *testing.T) {
	f := newEngineFixture(t)

	f.save(t, "a", "v1")
	f.save(t, "b", "v1")
	f.save(t, "a", "v2")
	f.goOnline()

	var sent []string
	f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req models.MutationRequest) (models.MutationResult, error) {
			sent = append(sent, req.EvaluationID+":"+string(req.Action))
			if req.EvaluationID == "a" {
				return models.MutationResult{}, errNetwork
			}
			return ack(1), nil
		}).
		Times(2)
	f.expectEmptyPull()

	f.engine.Sync(context.Background())

	// a:update не отправлен, пока a:create не подтверждён
	assert.Equal(t, []string{"a:create", "b:create"}, sent)
	require.Len(t, f.engine.queue, 2)
	assert.Equal(t, models.ActionCreate, f.engine.queue[0].Action)
	assert.Equal(t, models.ActionUpdate, f.engine.queue[1].Action)
}

func TestSyncEngine_Sync_NeitherAckNorConflict(t *testing.T) {
	f := newEngineFixture(t)
	f.save(t, "a", "draft")
	f.goOnline()

	f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).Return(models.MutationResult{}, nil)
	f.expectEmptyPull()

	f.engine.Sync(context.Background())

	assert.Equal(t, 1, f.engine.queue[0].RetryCount)
	assert.Equal(t, models.StatusError, f.engine.State().Status)
}

func TestSyncEngine_RetryFailed(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.save(t, "a", "draft")
	f.engine.mu.Lock()
	f.engine.queue[0].RetryCount = MaxRetries
	f.engine.mu.Unlock()

	n, err := f.engine.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, f.engine.FailedEntries())
	assert.Zero(t, f.engine.queue[0].RetryCount)

	meta, _ := f.engine.Meta("a")
	assert.Equal(t, models.RecordPending, meta.SyncStatus)

	n, err = f.engine.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// ── Pull ────────────────────────────────────────────────────────────────────

func TestSyncEngine_Pull(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// "synced" уже подтверждён, "dirty" имеет локальную мутацию в очереди
	f.save(t, "synced", "old")
	f.save(t, "gone", "old")
	f.goOnline()
	f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).Return(ack(1), nil).Times(2)
	f.expectEmptyPull()
	f.engine.Sync(ctx)

	f.goOffline()
	f.save(t, "dirty", "local")
	f.goOnline()

	f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).Return(models.MutationResult{}, errNetwork)
	f.remote.EXPECT().PullSince(gomock.Any(), gomock.Not(time.Time{})).Return([]models.RemoteEntity{
		{ID: "synced", Payload: models.Entity{"status": "remote"}, UpdatedAt: f.clock.Now(), Version: 4},
		{ID: "dirty", Payload: models.Entity{"id": "dirty", "status": "remote"}, Version: 4},
		{ID: "gone", Deleted: true, Version: 5},
		{ID: "fresh", Payload: models.Entity{"id": "fresh", "status": "remote"}, Version: 1},
	}, nil)

	f.engine.Sync(ctx)

	got, err := f.engine.Get(ctx, "synced")
	require.NoError(t, err)
	assert.Equal(t, "remote", got["status"])
	assert.Equal(t, "synced", got.ID(), "id filled from the remote entry")

	got, err = f.engine.Get(ctx, "dirty")
	require.NoError(t, err)
	assert.Equal(t, "local", got["status"], "entities with queued mutations are not overwritten")

	_, err = f.engine.Get(ctx, "gone")
	assert.ErrorIs(t, err, ErrEntityNotFound)
	_, ok := f.engine.Meta("gone")
	assert.False(t, ok)

	fresh, ok := f.engine.Meta("fresh")
	require.True(t, ok)
	assert.Equal(t, models.RecordSynced, fresh.SyncStatus)
	assert.EqualValues(t, 1, *fresh.ServerVersion)
}

func TestSyncEngine_Pull_ItemWithoutPayload(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.goOnline()

	// сервер вправе опустить payload у неудалённой записи
	f.remote.EXPECT().PullSince(gomock.Any(), gomock.Any()).Return([]models.RemoteEntity{
		{ID: "no-payload", UpdatedAt: f.clock.Now(), Version: 2},
	}, nil)

	require.NotPanics(t, func() { f.engine.Sync(ctx) })

	state := f.engine.State()
	assert.Equal(t, models.StatusIdle, state.Status)
	assert.False(t, f.engine.syncing)

	got, err := f.engine.Get(ctx, "no-payload")
	require.NoError(t, err)
	assert.Equal(t, "no-payload", got.ID())
	meta, ok := f.engine.Meta("no-payload")
	require.True(t, ok)
	assert.EqualValues(t, 2, *meta.ServerVersion)
}

func TestSyncEngine_Pull_FailureKeepsLastSyncAt(t *testing.T) {
	f := newEngineFixture(t)
	f.goOnline()

	f.remote.EXPECT().PullSince(gomock.Any(), gomock.Any()).Return(nil, errNetwork)
	f.engine.Sync(context.Background())

	state := f.engine.State()
	assert.Equal(t, models.StatusError, state.Status)
	assert.Nil(t, state.LastSyncAt)
	assert.Contains(t, state.Error, "pull")
}

// ── connectivity and observers ──────────────────────────────────────────────

func TestSyncEngine_OfflineToOnline(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.save(t, "a", "draft")
	f.save(t, "b", "draft")

	f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).Return(ack(1), nil).Times(2)
	f.remote.EXPECT().PullSince(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

	synced := make(chan struct{})
	var once sync.Once
	unsubscribe := f.engine.Subscribe(func(s models.SyncState) {
		if s.Status == models.StatusIdle && s.PendingCount == 0 && s.LastSyncAt != nil {
			once.Do(func() { close(synced) })
		}
	})
	defer unsubscribe()

	f.engine.SetOnline(ctx, true)

	select {
	case <-synced:
	case <-time.After(2 * time.Second):
		t.Fatal("sync did not complete after going online")
	}

	assert.Empty(t, f.engine.queue)
}

func TestSyncEngine_SetOnline_StatusTransitions(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.remote.EXPECT().PullSince(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

	f.engine.SetOnline(ctx, true)
	f.engine.Shutdown() // дожидаемся фоновой синхронизации
	assert.Equal(t, models.StatusIdle, f.engine.State().Status)

	f.engine.SetOnline(ctx, false)
	assert.Equal(t, models.StatusOffline, f.engine.State().Status)
}

func TestSyncEngine_Subscribe(t *testing.T) {
	f := newEngineFixture(t)

	var mu sync.Mutex
	var states []models.SyncState
	unsubscribe := f.engine.Subscribe(func(s models.SyncState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	require.Len(t, states, 1, "current state delivered immediately")
	assert.Equal(t, models.StatusOffline, states[0].Status)

	f.save(t, "a", "draft")
	require.Len(t, states, 2)
	assert.Equal(t, 1, states[1].PendingCount)

	// одинаковое состояние повторно не публикуется
	f.engine.publish()
	assert.Len(t, states, 2)

	unsubscribe()
	unsubscribe()
	f.save(t, "b", "draft")
	assert.Len(t, states, 2)
}

func TestSyncEngine_Subscribe_CallbackMayCallEngine(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	var mu sync.Mutex
	var pending []int
	saved := false
	unsubscribe := f.engine.Subscribe(func(s models.SyncState) {
		mu.Lock()
		pending = append(pending, s.PendingCount)
		again := s.PendingCount == 1 && !saved
		saved = saved || again
		mu.Unlock()

		// подписчик сам пишет в engine из колбэка
		if again {
			_, err := f.engine.SaveLocal(ctx, models.Entity{"id": "from-subscriber"})
			assert.NoError(t, err)
		}
	})
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := f.engine.SaveLocal(ctx, models.Entity{"id": "a", "status": "draft"})
		assert.NoError(t, err)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SaveLocal from a subscriber deadlocked")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2}, pending, "состояния доставляются по порядку")
	_, ok := f.engine.Meta("from-subscriber")
	assert.True(t, ok)
}

// ── restart ─────────────────────────────────────────────────────────────────

func TestSyncEngine_RestoresStateOnStart(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	f.save(t, "a", "draft")
	f.goOnline()
	f.remote.EXPECT().Send(gomock.Any(), gomock.Any()).Return(ack(1), nil)
	f.expectEmptyPull()
	f.engine.Sync(ctx)

	f.goOffline()
	f.save(t, "b", "draft")
	require.NoError(t, f.engine.DeleteLocal(ctx, "a"))
	lastSyncAt := f.engine.State().LastSyncAt

	restarted := f.newEngine(t)

	assert.Equal(t, f.engine.queue, restarted.queue)
	assert.Equal(t, f.engine.metas, restarted.metas)
	require.NotNil(t, restarted.lastSyncAt)
	assert.True(t, restarted.lastSyncAt.Equal(*lastSyncAt))

	_, err := restarted.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrEntityNotFound, "pending delete survives restart")
}
