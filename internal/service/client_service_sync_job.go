package service

import (
	"context"
	"sync"
	"time"
)

// DefaultSyncInterval is used when the job is created with a non-positive
// interval.
const DefaultSyncInterval = 30 * time.Second

type idleSyncer interface {
	SyncIfIdle(ctx context.Context)
}

type clientSyncJob struct {
	engine   idleSyncer
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClientSyncJob creates a clientSyncJob that calls engine.SyncIfIdle on a
// ticker. If interval is zero or negative it defaults to
// [DefaultSyncInterval]. The job is idle until Start is called.
func NewClientSyncJob(engine idleSyncer, interval time.Duration) ClientSyncJob {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &clientSyncJob{engine: engine, interval: interval}
}

// Start implements ClientSyncJob. It stops any previously running job, then
// launches a background goroutine that calls SyncIfIdle every interval. The
// goroutine exits when ctx is cancelled or Stop is called.
func (j *clientSyncJob) Start(ctx context.Context) {
	j.Stop()

	j.mu.Lock()
	jobCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.wg.Add(1)
	j.mu.Unlock()

	go func() {
		defer j.wg.Done()
		t := time.NewTicker(j.interval)
		defer t.Stop()

		for {
			select {
			case <-jobCtx.Done():
				return
			case <-t.C:
				j.engine.SyncIfIdle(jobCtx)
			}
		}
	}()
}

// Stop implements ClientSyncJob. It cancels the background goroutine's context and
// blocks until the goroutine has fully exited. Safe to call when the job is not
// running (no-op in that case).
func (j *clientSyncJob) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	j.wg.Wait()
}
