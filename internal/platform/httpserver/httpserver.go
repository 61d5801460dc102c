// Package httpserver owns the HTTP server lifecycle.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"custodia/internal/platform/config"
)

// New builds an HTTP server from config with sane protocol-level defaults.
// Per-request timeouts are middleware concerns; only header reading and idle
// keep-alives are bounded here.
func New(cfg config.HTTP, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Serve runs the server until ctx is cancelled, then shuts down gracefully
// within the configured timeout. It returns the first serve or shutdown
// error; a clean shutdown returns nil.
func Serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
