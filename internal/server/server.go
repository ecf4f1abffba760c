// Package server implements C10's HTTP listener lifecycle: binding the
// configured address, serving until asked to stop, and draining in-flight
// requests on shutdown. Adapted from the gateway's HTTPListener, with TLS
// termination dropped (an explicit non-goal here) and the ad hoc
// ConnState connection counter dropped in favor of the metrics package's
// kansas_open_connections_total gauge, which already tracks the same thing
// at a more useful granularity (in-flight requests, not raw TCP conns).
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Server binds a listen address and serves a handler until stopped.
type Server struct {
	addr     string
	handler  http.Handler
	server   *http.Server
	listener net.Listener
}

// Config configures a Server.
type Config struct {
	Addr    string
	Handler http.Handler
}

// New builds a Server from cfg.
func New(cfg Config) *Server {
	return &Server{addr: cfg.Addr, handler: cfg.Handler}
}

// Start binds the listen address and begins serving in the background. It
// returns once the listener is bound, so the caller can rely on Addr()
// immediately afterward; serve errors other than a clean shutdown are
// reported asynchronously via errCh.
func (s *Server) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		close(errCh)
	}()

	return errCh, nil
}

// Stop gracefully shuts down the server, waiting for in-flight requests to
// complete or ctx to expire, whichever comes first.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Addr returns the actual bound address, which differs from the configured
// one when the configured port is 0.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
