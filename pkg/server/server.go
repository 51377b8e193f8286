// Package server implements the NT view REST API on top of a relational
// store and local artifact storage. It backs `ntview serve` and the
// end-to-end tests of the client data layer.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethpandaops/ntview/pkg/config"
	"github.com/ethpandaops/ntview/pkg/server/blobs"
	"github.com/ethpandaops/ntview/pkg/server/db"
	"github.com/sirupsen/logrus"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
	// Addr returns the bound listen address once started.
	Addr() string
}

// Ensure interface compliance.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.ServerConfig
	store      db.Store
	blobs      blobs.Store
	httpServer *http.Server
	addr       string
	wg         sync.WaitGroup
	done       chan struct{}
	now        func() time.Time
}

// NewServer creates a new API server.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.ServerConfig,
) Server {
	return &server{
		log:  log.WithField("component", "server"),
		cfg:  cfg,
		done: make(chan struct{}),
		now:  time.Now,
	}
}

// Start opens the store and artifact storage, then starts the HTTP server.
func (s *server) Start(ctx context.Context) error {
	if err := s.prepare(ctx); err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}

	s.addr = ln.Addr().String()

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.addr).Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// prepare opens the database and the artifact storage.
func (s *server) prepare(ctx context.Context) error {
	s.store = db.NewStore(s.log, &s.cfg.Database)
	if err := s.store.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	b, err := blobs.NewLocalStore(s.log, s.cfg.Storage.Path, s.cfg.Storage.Owner)
	if err != nil {
		return fmt.Errorf("opening artifact storage: %w", err)
	}

	s.blobs = b

	return nil
}

// Addr returns the bound listen address.
func (s *server) Addr() string {
	return s.addr
}

// Stop gracefully shuts down the HTTP server and closes the store.
func (s *server) Stop() error {
	close(s.done)

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if s.store != nil {
		if err := s.store.Stop(); err != nil {
			return fmt.Errorf("stopping store: %w", err)
		}
	}

	s.log.Info("API server stopped")

	return nil
}
