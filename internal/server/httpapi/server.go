// Package httpapi exposes the server's functionality over HTTP. Handlers are
// thin: they decode requests, call services and translate errors to statuses.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anpetrov/filegate/internal/logging"
	"github.com/anpetrov/filegate/internal/server/auth"
	"github.com/anpetrov/filegate/internal/server/services"
)

type Server struct {
	address         string
	shutdownTimeout time.Duration
	logger          logging.Logger
	signer          *auth.Signer
	servers         *services.ServerService
	users           *services.UserService
	files           *services.FileService
}

func NewServer(address string, shutdownTimeout time.Duration, l logging.Logger, signer *auth.Signer,
	servers *services.ServerService, users *services.UserService, files *services.FileService) *Server {
	return &Server{
		address:         address,
		shutdownTimeout: shutdownTimeout,
		logger:          l.With("module", "http_server"),
		signer:          signer,
		servers:         servers,
		users:           users,
		files:           files,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests within
// the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:    s.address,
		Handler: s.routes(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
