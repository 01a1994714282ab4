// Presenca - RFID Classroom Attendance Backend
// Copyright 2026 Presenca Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/presenca-io/presenca

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/presenca-io/presenca/internal/logging"
)

// Service runs the HTTP server under supervision. It implements
// suture.Service: Serve blocks until the listener fails or the context
// is canceled, then shuts down gracefully.
type Service struct {
	addr    string
	handler http.Handler
	timeout time.Duration
}

// NewService creates the HTTP service.
func NewService(host string, port int, timeout time.Duration, handler http.Handler) *Service {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		addr:    net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		handler: handler,
		timeout: timeout,
	}
}

// Serve starts the listener and blocks until ctx is canceled.
func (s *Service) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.timeout,
		WriteTimeout:      s.timeout,
		IdleTimeout:       2 * s.timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return ctx.Err()
	}
}

func (s *Service) String() string {
	return "http-server"
}
