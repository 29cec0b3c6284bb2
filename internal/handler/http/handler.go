package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MKhiriev/go-care-keeper/internal/logger"
	"github.com/MKhiriev/go-care-keeper/internal/service"
)

type Handler struct {
	engine  service.SyncEngine
	metrics http.Handler

	logger *logger.Logger
}

// NewHandler returns a status handler over engine. Metrics are served from
// gatherer; a nil gatherer serves the default registry.
func NewHandler(engine service.SyncEngine, gatherer prometheus.Gatherer, logger *logger.Logger) *Handler {
	metrics := promhttp.Handler()
	if gatherer != nil {
		metrics = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}

	logger.Info().Msg("http status handler created")
	return &Handler{
		engine:  engine,
		metrics: metrics,
		logger:  logger,
	}
}
