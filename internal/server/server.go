package server

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/MKhiriev/go-care-keeper/internal/config"
	"github.com/MKhiriev/go-care-keeper/internal/logger"
)

type server struct {
	httpServer *httpServer
	addr       string
	logger     *logger.Logger

	// listening receives the bound address once the listener is open.
	listening chan net.Addr
}

// NewServer returns the status server for handler listening on cfg.Address.
func NewServer(handler http.Handler, cfg config.ClientStatus, logger *logger.Logger) (Server, error) {
	if cfg.Address == "" {
		return nil, errNoAddress
	}
	if handler == nil {
		return nil, errNoHandler
	}

	logger.Info().Str("addr", cfg.Address).Msg("creating status server...")
	return &server{
		httpServer: newHTTPServer(handler, cfg.Address, logger),
		addr:       cfg.Address,
		logger:     logger,
		listening:  make(chan net.Addr, 1),
	}, nil
}

func (s *server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listening <- ln.Addr()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.serve(ln)
	}()

	select {
	case <-ctx.Done():
		s.httpServer.shutdown()
		<-serveErr
		s.logger.Info().Msg("status server shutdown gracefully")
		return nil
	case err = <-serveErr:
		return err
	}
}
