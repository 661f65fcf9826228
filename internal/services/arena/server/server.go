// Package server wires the arena runtime: catalog, engine, storage, the HTTP
// and gRPC surfaces and the timeout sweeper.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/monarena/internal/platform/timeouts"
	"github.com/louisbranch/monarena/internal/services/arena/api/grpc/query"
	httpapi "github.com/louisbranch/monarena/internal/services/arena/api/http"
	"github.com/louisbranch/monarena/internal/services/arena/app"
	"github.com/louisbranch/monarena/internal/services/arena/catalog"
	"github.com/louisbranch/monarena/internal/services/arena/domain/engine"
	arenasqlite "github.com/louisbranch/monarena/internal/services/arena/storage/sqlite"
)

// Config holds everything the server needs to start.
type Config struct {
	HTTPAddr      string
	GRPCAddr      string
	DBPath        string
	CatalogPath   string
	TurnTimeout   time.Duration
	SweepInterval time.Duration
	JWTSecret     string
	JWTIssuer     string
	Authority     string
}

// Server hosts the arena HTTP and gRPC APIs and their storage.
type Server struct {
	httpListener net.Listener
	httpServer   *http.Server
	grpcListener net.Listener
	grpcServer   *grpc.Server
	health       *health.Server
	store        *arenasqlite.Store
	svc          *app.Service
	sweep        time.Duration
}

// New builds a server and binds its listeners.
func New(cfg Config) (*Server, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	verifier, err := httpapi.NewVerifier(httpapi.VerifierConfig{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer})
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	eng := engine.New(cat,
		engine.WithRuleset(cat),
		engine.WithAuthority(cfg.Authority),
		engine.WithTurnTimeout(cfg.TurnTimeout),
	)
	svc := app.New(eng, store)

	s := &Server{store: store, svc: svc, sweep: cfg.SweepInterval}
	if s.sweep <= 0 {
		s.sweep = timeouts.Sweep
	}

	s.httpListener, err = net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	s.grpcListener, err = net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}

	s.httpServer = &http.Server{
		Handler:           httpapi.NewHandler(svc, verifier),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	s.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	query.Register(s.grpcServer, query.NewService(svc))
	s.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(query.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return s, nil
}

// HTTPAddr returns the HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the gRPC listener address.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Run creates and serves a server until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	s, err := New(cfg)
	if err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve runs both surfaces and the sweeper until ctx is done or one surface
// fails.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	defer s.Close()

	log.Printf("arena http listening at %v", s.httpListener.Addr())
	log.Printf("arena grpc listening at %v", s.grpcListener.Addr())

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.svc.RunSweeper(sweepCtx, s.sweep)

	serveErr := make(chan error, 2)
	go func() {
		if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("serve HTTP: %w", err)
			return
		}
		serveErr <- nil
	}()
	go func() {
		if err := s.grpcServer.Serve(s.grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr <- fmt.Errorf("serve gRPC: %w", err)
			return
		}
		serveErr <- nil
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}
	s.shutdown()
	return err
}

func (s *Server) shutdown() {
	if s.health != nil {
		s.health.Shutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("arena http shutdown: %v", err)
		}
	}
	if s.grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			s.grpcServer.Stop()
		}
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.httpListener != nil {
		_ = s.httpListener.Close()
	}
	if s.grpcListener != nil {
		_ = s.grpcListener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close arena store: %v", err)
		}
		s.store = nil
	}
}

func openStore(path string) (*arenasqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := arenasqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open arena sqlite store: %w", err)
	}
	return store, nil
}
