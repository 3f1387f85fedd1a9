// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package statusapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/rigrec/internal/log"
	"github.com/rs/zerolog"
)

// ErrServerNotStarted is returned by Shutdown before Start.
var ErrServerNotStarted = errors.New("status server not started")

// ShutdownTimeout bounds Shutdown when the caller's context has no deadline.
const ShutdownTimeout = 5 * time.Second

// Server runs the status API on one listen address.
type Server struct {
	addr   string
	srv    *http.Server
	logger zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	errCh    chan error
	stopping bool
}

// NewServer creates a server for handler on addr. Port 0 picks a free port.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		addr: addr,
		srv: &http.Server{
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: log.WithComponent("statusapi"),
		errCh:  make(chan error, 1),
	}
}

// Start binds the listen address and serves in the background. Bind errors
// are returned; later serve errors arrive on Err.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return errors.New("status server already started")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("status server listen %s: %w", s.addr, err)
	}
	s.listener = ln

	s.logger.Info().
		Str(log.FieldEvent, "statusapi.listening").
		Str("addr", ln.Addr().String()).
		Msg("status API listening")

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Str(log.FieldEvent, "statusapi.failed").Msg("status API failed")
			s.errCh <- err
		}
		close(s.errCh)
	}()
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Err delivers a serve failure and is closed when serving ends.
func (s *Server) Err() <-chan error { return s.errCh }

// Shutdown gracefully stops the server. A second call is a no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.listener == nil {
		s.mu.Unlock()
		return ErrServerNotStarted
	}
	if s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	s.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ShutdownTimeout)
		defer cancel()
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	s.logger.Debug().Str(log.FieldEvent, "statusapi.stopped").Msg("status API stopped")
	return nil
}
