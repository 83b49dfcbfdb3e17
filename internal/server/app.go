package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/procurement-assistant/internal/config"
	"github.com/morezero/procurement-assistant/pkg/cards"
	"github.com/morezero/procurement-assistant/pkg/events"
	"github.com/morezero/procurement-assistant/pkg/hitl"
	"github.com/morezero/procurement-assistant/pkg/orchestrator"
	"github.com/morezero/procurement-assistant/pkg/router"
	"github.com/morezero/procurement-assistant/pkg/session"
	"github.com/morezero/procurement-assistant/pkg/validation"
	"github.com/morezero/procurement-assistant/pkg/worker"
	"github.com/morezero/procurement-assistant/pkg/workers"
)

const appLogPrefix = "server:app"

// AppOptions supplies the pieces that depend on external connections.
type AppOptions struct {
	// Store persists sessions; nil keeps them in memory.
	Store session.Store
	// StoreCheck probes the store for /health; nil reports the store as healthy.
	StoreCheck func(ctx context.Context) error
	// Publisher receives route and turn events besides the WebSocket hub.
	Publisher events.EventPublisher
}

// App is the assembled assistant: cards, reference workers, router, orchestrator and
// sessions. It has no transport of its own.
type App struct {
	cfg        *config.Config
	cards      *cards.Registry
	catalog    *workers.Catalog
	workers    *workers.Set
	router     *router.Router
	clients    *worker.ClientPool
	servers    map[string]*worker.Server
	orch       *orchestrator.Orchestrator
	sessions   *session.Service
	hub        *events.Hub
	storeCheck func(ctx context.Context) error
	started    time.Time
}

// NewApp wires every component from cfg.
func NewApp(cfg *config.Config, opts AppOptions) (*App, error) {
	reg, err := loadCards(cfg.CardsDir)
	if err != nil {
		return nil, err
	}
	catalog, err := workers.LoadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to load catalog: %w", appLogPrefix, err)
	}

	hub := events.NewHub()
	var publisher events.EventPublisher = hub
	if opts.Publisher != nil {
		publisher = events.MultiPublisher{hub, opts.Publisher}
	}

	metrics, err := router.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create router metrics: %w", appLogPrefix, err)
	}
	r := router.NewRouter(router.NewRouterParams{Cards: reg, Publisher: publisher, Metrics: metrics})

	pool := validation.NewPool(validation.PoolConfig{
		MaxConcurrent:      cfg.ValidationMaxConcurrent,
		Timeout:            cfg.ValidationTimeout,
		HighValueThreshold: cfg.ValidationThreshold,
	}, nil)
	set := workers.NewSet(catalog, workers.Options{PO: workers.POWorkerOptions{Pool: pool, OutputDir: cfg.POOutputDir}})
	if err := set.Register(r); err != nil {
		return nil, fmt.Errorf("%s - failed to register workers: %w", appLogPrefix, err)
	}

	clients := worker.NewClientPool(r)
	orch := orchestrator.NewOrchestrator(orchestrator.NewOrchestratorParams{
		Client:    clients.Client(cards.Orchestrator),
		Publisher: publisher,
	})
	servers := make(map[string]*worker.Server)
	for _, srv := range set.Servers() {
		servers[srv.ID()] = srv
	}
	if reg.Has(cards.Orchestrator) {
		ow := orchestrator.NewWorker(orch)
		if err := r.RegisterWorker(cards.Orchestrator, ow); err != nil {
			return nil, fmt.Errorf("%s - failed to register orchestrator: %w", appLogPrefix, err)
		}
		servers[cards.Orchestrator] = ow
	}

	sessions, err := session.NewService(session.ServiceOptions{
		Store:        opts.Store,
		Orchestrator: orch,
		GateConfigs:  gateConfigs(cfg),
		DisableGates: !cfg.GatesEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create session service: %w", appLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Assembled %d cards, %d handlers, %d catalog items",
		appLogPrefix, reg.Len(), r.HandlerCount(), len(catalog.Inventory())))
	return &App{
		cfg:        cfg,
		cards:      reg,
		catalog:    catalog,
		workers:    set,
		router:     r,
		clients:    clients,
		servers:    servers,
		orch:       orch,
		sessions:   sessions,
		hub:        hub,
		storeCheck: opts.StoreCheck,
		started:    time.Now().UTC(),
	}, nil
}

// Router returns the request router.
func (a *App) Router() *router.Router { return a.router }

// Sessions returns the session service.
func (a *App) Sessions() *session.Service { return a.sessions }

// Close releases the WebSocket hub.
func (a *App) Close() {
	a.hub.Close()
}

func loadCards(dir string) (*cards.Registry, error) {
	if dir == "" {
		reg, err := cards.NewDefaultRegistry()
		if err != nil {
			return nil, fmt.Errorf("%s - failed to build default cards: %w", appLogPrefix, err)
		}
		return reg, nil
	}
	reg := cards.NewRegistry()
	n, err := reg.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to load cards from %s: %w", appLogPrefix, dir, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%s - no agent cards found in %s", appLogPrefix, dir)
	}
	slog.Info(fmt.Sprintf("%s - Loaded %d cards from %s", appLogPrefix, n, dir))
	return reg, nil
}

func gateConfigs(cfg *config.Config) map[hitl.Kind]hitl.GateConfig {
	defaults := hitl.DefaultConfigs()
	hv := defaults[hitl.KindHighValueApproval]
	if cfg.HighValueThreshold > 0 {
		hv.Threshold = cfg.HighValueThreshold
	}
	return map[hitl.Kind]hitl.GateConfig{hitl.KindHighValueApproval: hv}
}
