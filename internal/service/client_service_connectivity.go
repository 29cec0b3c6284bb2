package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MKhiriev/go-care-keeper/internal/logger"
)

// DefaultProbeInterval is used when the monitor is created with a
// non-positive interval.
const DefaultProbeInterval = 10 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type onlineSetter interface {
	SetOnline(ctx context.Context, online bool)
}

type connectivityMonitor struct {
	remote   pinger
	engine   onlineSetter
	interval time.Duration
	timeout  time.Duration
	logger   *logger.Logger

	online atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConnectivityMonitor creates a monitor that pings remote every interval
// and reports changes to engine. Each probe is bounded by timeout when it is
// positive.
func NewConnectivityMonitor(remote pinger, engine onlineSetter, interval, timeout time.Duration, logger *logger.Logger) ConnectivityMonitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}

	m := &connectivityMonitor{
		remote:   remote,
		engine:   engine,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
	}
	m.online.Store(true)
	return m
}

func (m *connectivityMonitor) Online() bool {
	return m.online.Load()
}

// Start probes once immediately and then on every tick until ctx is
// cancelled or Stop is called.
func (m *connectivityMonitor) Start(ctx context.Context) {
	m.Stop()

	m.mu.Lock()
	monitorCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		t := time.NewTicker(m.interval)
		defer t.Stop()

		m.probe(monitorCtx)
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-t.C:
				m.probe(monitorCtx)
			}
		}
	}()
}

func (m *connectivityMonitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *connectivityMonitor) probe(ctx context.Context) {
	probeCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	err := m.remote.Ping(probeCtx)
	if ctx.Err() != nil {
		return
	}

	online := err == nil
	if m.online.Swap(online) == online {
		return
	}

	if err != nil {
		m.logger.Warn().Err(err).Msg("remote authority unreachable")
	}
	m.engine.SetOnline(ctx, online)
}
