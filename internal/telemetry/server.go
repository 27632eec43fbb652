package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	moorerr "github.com/akodra/mooring/pkg/errors"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownGrace     = 5 * time.Second
)

// Server is the diagnostics listener: /metrics in Prometheus exposition
// format and /healthz for liveness probes.
type Server struct {
	listener net.Listener
	srv      *http.Server
	errCh    chan error
	log      zerolog.Logger
}

// NewServer returns an unstarted server.
func NewServer(log zerolog.Logger) *Server {
	return &Server{
		log: log.With().Str("component", "telemetry").Logger(),
	}
}

// Start binds addr and begins serving in the background. Use an addr with
// port zero to let the kernel pick; Addr reports the bound address.
func (s *Server) Start(addr string) error {
	Register()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return moorerr.Wrap(err, "binding telemetry listener on %s", addr)
	}
	s.listener = listener

	s.srv = &http.Server{
		Handler:           newHandler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.errCh = make(chan error, 1)
	go func() {
		serveErr := s.srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.errCh <- serveErr
		}
		close(s.errCh)
	}()

	s.log.Info().Str("addr", s.Addr()).Msg("telemetry listener started")
	return nil
}

// Addr returns the bound listen address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return moorerr.Wrap(err, "stopping telemetry listener")
	}
	if err, ok := <-s.errCh; ok && err != nil {
		return moorerr.Wrap(err, "telemetry listener failed")
	}
	s.log.Info().Msg("telemetry listener stopped")
	return nil
}

// Serve runs the diagnostics listener on addr until ctx ends, then shuts
// down gracefully. Serve failures surface immediately.
func Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	s := NewServer(log)
	if err := s.Start(addr); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-s.errCh:
		if err != nil {
			return moorerr.Wrap(err, "telemetry listener failed")
		}
		return nil
	}
}

// newHandler builds the route mux.
func newHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}
