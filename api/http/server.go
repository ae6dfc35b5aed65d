// Package http serves the optional debug listener (spec §4.7 "an
// off-by-default HTTP endpoint exposing /metrics and a liveness
// probe"): Prometheus metrics plus /healthz and /readyz.
package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ReadinessCheck reports whether the daemon considers itself ready to
// serve traffic; main wires this to "at least one peer Established".
type ReadinessCheck func() bool

type Server struct {
	srv   *http.Server
	ready ReadinessCheck
	log   *zap.Logger
}

// NewServer builds (but does not start) a debug HTTP server bound to
// addr. ready may be nil, in which case /readyz always reports ready.
func NewServer(addr string, ready ReadinessCheck, log *zap.Logger) *Server {
	s := &Server{ready: ready, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start binds the listener and serves in the background. A server
// error after a clean Shutdown is not logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.log.Info("debug HTTP server listening", zap.String("addr", s.srv.Addr))
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("debug HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	ready := s.ready == nil || s.ready()
	w.Header().Set("Content-Type", "application/json")
	status := "ready"
	httpStatus := http.StatusOK
	if !ready {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
