package client

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/MKhiriev/go-care-keeper/internal/adapter"
	"github.com/MKhiriev/go-care-keeper/internal/config"
	handler "github.com/MKhiriev/go-care-keeper/internal/handler/http"
	"github.com/MKhiriev/go-care-keeper/internal/logger"
	"github.com/MKhiriev/go-care-keeper/internal/metrics"
	"github.com/MKhiriev/go-care-keeper/internal/server"
	"github.com/MKhiriev/go-care-keeper/internal/service"
	"github.com/MKhiriev/go-care-keeper/internal/store"
	"github.com/MKhiriev/go-care-keeper/internal/workers"
	"github.com/MKhiriev/go-care-keeper/models"
)

type App struct {
	storages *store.ClientStorages
	services *service.ClientServices
	workers  *workers.Workers
	status   server.Server

	logger *logger.Logger
}

// NewApp opens local storage and wires every component from cfg. The status
// server is skipped when cfg.Status.Address is empty.
func NewApp(ctx context.Context, cfg *config.ClientConfig, logger *logger.Logger) (*App, error) {
	remote, err := adapter.NewHTTPRemoteAuthority(cfg.Adapter, cfg.App, logger)
	if err != nil {
		return nil, fmt.Errorf("create remote adapter: %w", err)
	}

	storages, err := store.NewClientStorages(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	services, err := service.NewClientServices(cfg, storages.Medium, remote, metrics.NewSync(registry), logger)
	if err != nil {
		_ = storages.Close()
		return nil, fmt.Errorf("create client services: %w", err)
	}

	app := &App{
		storages: storages,
		services: services,
		workers:  workers.NewWorkers(services.Connectivity, services.SyncJob),
		logger:   logger,
	}

	if cfg.Status.Address != "" {
		h := handler.NewHandler(services.SyncEngine, registry, logger)
		app.status, err = server.NewServer(h.Init(), cfg.Status, logger)
		if err != nil {
			_ = storages.Close()
			return nil, fmt.Errorf("create status server: %w", err)
		}
	}

	return app, nil
}

// Run unlocks the data layer, starts the workers and the status server and
// blocks until ctx is done or SIGTERM, SIGINT or SIGQUIT arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()
	ctx = a.logger.WithContext(ctx)

	defer a.close()

	if err := a.services.Start(ctx); err != nil {
		return fmt.Errorf("start data layer: %w", err)
	}
	defer a.services.Shutdown()

	unsubscribe := a.services.SyncEngine.Subscribe(a.logState)
	defer unsubscribe()

	a.workers.Start(ctx)
	defer a.workers.Stop()

	if a.status == nil {
		<-ctx.Done()
		a.logger.Info().Msg("client stopped")
		return nil
	}

	if err := a.status.Run(ctx); err != nil {
		return fmt.Errorf("status server: %w", err)
	}
	a.logger.Info().Msg("client stopped")
	return nil
}

func (a *App) logState(state models.SyncState) {
	event := a.logger.Info()
	if state.Status == models.StatusError {
		event = a.logger.Warn().Str("error", state.Error)
	}
	event.
		Str("status", string(state.Status)).
		Int("pending", state.PendingCount).
		Int("failed", state.FailedCount).
		Msg("sync state changed")
}

func (a *App) close() {
	if err := a.storages.Close(); err != nil {
		a.logger.Err(err).Str("func", "*App.close").Msg("failed to close local storage")
	}
}
