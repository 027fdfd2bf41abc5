package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/peai-backend/internal/data/db"
	"github.com/yungbote/peai-backend/internal/data/repos"
	apphttp "github.com/yungbote/peai-backend/internal/http"
	"github.com/yungbote/peai-backend/internal/observability"
	"github.com/yungbote/peai-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    repos.Repos
	Clients  Clients
	Services Services
	Server   *apphttp.Server
	Metrics  *observability.Metrics

	dbService    *db.Service
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig(nil)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log.Info("Configuration loaded", "db_driver", cfg.DB.Driver, "genai_provider", cfg.LLM.Provider, "port", cfg.Port)

	dbs, err := db.Open(log, cfg.DB)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init db: %w", err)
	}
	if err := dbs.AutoMigrateAll(); err != nil {
		_ = dbs.Close()
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := dbs.DB()

	metrics := observability.Init(log)
	shutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})

	reposet := repos.New(theDB, log)

	clients, err := wireClients(ctx, log, cfg, metrics)
	if err != nil {
		_ = dbs.Close()
		log.Sync()
		return nil, err
	}

	serviceset, err := wireServices(theDB, log, cfg, reposet, clients, metrics)
	if err != nil {
		clients.Close()
		_ = dbs.Close()
		log.Sync()
		return nil, err
	}

	server := apphttp.NewServer(wireRouterConfig(theDB, log, cfg, serviceset, metrics))

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		Server:       server,
		Metrics:      metrics,
		dbService:    dbs,
		otelShutdown: shutdown,
	}, nil
}

// Run serves HTTP, drains the job queue and sweeps plan validity until ctx
// is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Server.Run(gctx, ":"+a.Cfg.Port)
	})
	g.Go(func() error {
		return a.Services.JobWorker.Run(gctx)
	})
	g.Go(func() error {
		a.sweepLoop(gctx)
		return nil
	})
	if a.Metrics != nil {
		a.Metrics.StartJobQueueCollector(gctx, a.Log, a.DB)
	}
	return g.Wait()
}

func (a *App) sweepLoop(ctx context.Context) {
	interval := a.Cfg.SweepInterval
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		a.sweepOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (a *App) sweepOnce(ctx context.Context) {
	res, err := a.Services.PEIs.SweepExpiring(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.Log.Warn("Validity sweep failed", "error", err)
		}
		return
	}
	a.Log.Info("Validity sweep done", "notified", res.Notified, "expired", res.Expired)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	a.Clients.Close()
	if a.dbService != nil {
		_ = a.dbService.Close()
	}
	a.Log.Sync()
}
