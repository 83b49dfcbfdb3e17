// Package server assembles the procurement assistant: session store, NATS subjects,
// workers, router, orchestrator and the HTTP surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/procurement-assistant/internal/config"
	"github.com/morezero/procurement-assistant/pkg/commsutil"
	"github.com/morezero/procurement-assistant/pkg/db"
	"github.com/morezero/procurement-assistant/pkg/events"
	"github.com/morezero/procurement-assistant/pkg/session"
)

const logPrefix = "server:server"

// Server is a running assistant.
type Server struct {
	cfg        *config.Config
	app        *App
	nc         *comms.Conn
	subs       []*comms.Subscription
	pool       *pgxpool.Pool
	cache      *session.CachedStore
	httpServer *http.Server
	listener   net.Listener
	cancel     context.CancelFunc
}

// SetupLogging installs the default slog handler at level ("debug", "info", "warn", "error").
func SetupLogging(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	SetupLogging(cfg.LogLevel)
	slog.Info(fmt.Sprintf("%s - Starting procurement-assistant", logPrefix))

	s, err := Start(context.Background(), cfg)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()
	s.Shutdown(shutdownCtx)
	return nil
}

// Start connects the store and NATS, assembles the App and begins serving HTTP. The
// returned Server must be shut down by the caller.
func Start(ctx context.Context, cfg *config.Config) (*Server, error) {
	ctx, cancel := context.WithCancel(ctx)
	s := &Server{cfg: cfg, cancel: cancel}

	// Step 1: Session store
	store, storeCheck, err := s.openStore(ctx)
	if err != nil {
		s.Shutdown(ctx)
		return nil, err
	}

	// Step 2: NATS (optional)
	var publisher events.EventPublisher
	if cfg.COMMSURL != "" {
		nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName, nil)
		if err != nil {
			s.Shutdown(ctx)
			return nil, fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
		}
		s.nc = nc
		publisher = events.NewCommsPublisher(nc, &events.CommsPublisherOpts{GlobalSubject: cfg.EventSubject})
	} else {
		slog.Info(fmt.Sprintf("%s - COMMS_URL not set, serving HTTP only", logPrefix))
	}

	// Step 3: Components
	app, err := NewApp(cfg, AppOptions{Store: store, StoreCheck: storeCheck, Publisher: publisher})
	if err != nil {
		s.Shutdown(ctx)
		return nil, err
	}
	s.app = app

	// Step 4: Subjects
	if s.nc != nil {
		subs, err := app.Subscribe(ctx, s.nc)
		if err != nil {
			s.Shutdown(ctx)
			return nil, err
		}
		s.subs = subs
	}

	// Step 5: HTTP
	ln, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		s.Shutdown(ctx)
		return nil, fmt.Errorf("%s - failed to listen on %s: %w", logPrefix, cfg.ListenAddr(), err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, ln.Addr()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - Procurement assistant is ready", logPrefix))
	return s, nil
}

// Addr returns the HTTP listen address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// App returns the assembled components.
func (s *Server) App() *App { return s.app }

// Shutdown stops serving and releases every connection. It is safe on a partially
// started Server.
func (s *Server) Shutdown(ctx context.Context) {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - HTTP shutdown: %v", logPrefix, err))
		}
	}
	if s.app != nil {
		s.app.Close()
	}
	if s.nc != nil {
		s.nc.Drain()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	s.cancel()
	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
}

// openStore returns the Postgres-backed cached store when DATABASE_URL is set and the
// in-memory store otherwise.
func (s *Server) openStore(ctx context.Context) (session.Store, func(context.Context) error, error) {
	if s.cfg.DatabaseURL == "" {
		slog.Info(fmt.Sprintf("%s - DATABASE_URL not set, sessions are kept in memory", logPrefix))
		return session.NewMemoryStore(), nil, nil
	}

	if s.cfg.RunMigrations {
		if err := db.EnsureDatabase(ctx, s.cfg.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("%s - failed to ensure database: %w", logPrefix, err)
		}
	}
	pool, err := db.NewPool(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
	}
	s.pool = pool

	if s.cfg.RunMigrations {
		files, err := db.LoadMigrationFiles(s.cfg.MigrationPath)
		if err != nil {
			return nil, nil, fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
		}
		if err := db.RunMigrations(ctx, pool, files); err != nil {
			return nil, nil, fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
		}
	}

	repo := db.NewStateRepository(pool)
	cache, err := session.NewCachedStore(session.NewPostgresStore(repo), s.cfg.SessionCacheMaxCost, s.cfg.SessionCacheTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("%s - failed to create session cache: %w", logPrefix, err)
	}
	s.cache = cache
	slog.Info(fmt.Sprintf("%s - Sessions persisted to PostgreSQL", logPrefix))
	return cache, repo.Ping, nil
}
