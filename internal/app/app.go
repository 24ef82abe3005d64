// Package app wires configuration, storage, services, the scheduler, and the
// HTTP surface into one runnable unit.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/madpin/Neureed-sub002/internal/cache"
	"github.com/madpin/Neureed-sub002/internal/config"
	"github.com/madpin/Neureed-sub002/internal/database"
	"github.com/madpin/Neureed-sub002/internal/dedup"
	"github.com/madpin/Neureed-sub002/internal/embeddings"
	"github.com/madpin/Neureed-sub002/internal/httpapi"
	"github.com/madpin/Neureed-sub002/internal/jobs"
	"github.com/madpin/Neureed-sub002/internal/logging"
	"github.com/madpin/Neureed-sub002/internal/ratelimit"
	"github.com/madpin/Neureed-sub002/internal/refresh"
	"github.com/madpin/Neureed-sub002/internal/retention"
	"github.com/madpin/Neureed-sub002/internal/sources"
	"github.com/madpin/Neureed-sub002/internal/tagging"
)

// App holds all application dependencies.
type App struct {
	Config     *config.Config
	Logger     *logging.Logger
	Cache      cache.Cache
	Scheduler  *jobs.Scheduler
	HTTPServer *httpapi.Server

	db             *database.DB
	triggerLimiter ratelimit.RateLimiter
}

// New creates and initializes the application. A reachable PostgreSQL is
// required; the ingestion pipeline has nowhere else to put its state.
func New(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	app.Logger = app.initLogger()
	app.Cache = app.initCache()

	db, err := database.New(database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	app.db = db
	app.Logger.Info("Connected to PostgreSQL", logging.WithField("database", cfg.Database.Database))

	// Stores.
	feedStore := database.NewFeedStore(db)
	articleStore := database.NewArticleStore(db)
	subscriptionStore := database.NewSubscriptionStore(db)
	jobRunStore := database.NewJobRunStore(db)
	costLedgerStore := database.NewCostLedgerStore(db)

	// Fetch side: per-host politeness shared by parser and extractor.
	hostLimiter := ratelimit.New(time.Second)
	fetchConfig := sources.DefaultConfig()
	parser := sources.NewFeedParser(hostLimiter, fetchConfig)
	extractor := sources.NewPageExtractor(hostLimiter, fetchConfig)

	// Ingestion services.
	dedupEngine := dedup.NewEngine(articleStore, tagging.New(), app.Logger)
	retentionEngine := retention.NewEngine(articleStore, app.Logger)
	retentionSvc := retention.NewService(retentionEngine, feedStore, subscriptionStore, app.Logger)
	embeddingSvc := embeddings.NewService(
		app.initEmbeddingBackend(),
		articleStore,
		costLedgerStore,
		app.Logger,
		cfg.Embeddings.PacingDelay,
	)

	orchestrator := refresh.NewOrchestrator(
		feedStore,
		subscriptionStore,
		parser,
		extractor,
		dedupEngine,
		retentionEngine,
		embeddingSvc,
		app.Logger,
		cfg.Scheduler.AutoEmbeddings,
	)
	driver := refresh.NewDriver(orchestrator, feedStore, subscriptionStore, app.Logger, cfg.Scheduler.Workers)

	// Scheduler.
	executor := jobs.NewExecutor(jobRunStore, app.Logger)
	app.Scheduler = jobs.NewScheduler(
		executor,
		driver,
		orchestrator,
		retentionSvc,
		embeddingSvc,
		app.Logger,
		jobs.Config{
			Enabled:             cfg.Scheduler.Enabled,
			RefreshCron:         cfg.Scheduler.RefreshCron,
			CleanupCron:         cfg.Scheduler.CleanupCron,
			EmbeddingBatchSize:  cfg.Embeddings.BatchSize,
			EmbeddingMaxBatches: cfg.Embeddings.MaxBatches,
		},
	)

	// HTTP surface.
	jobsAPI := httpapi.NewJobsAPI(app.Scheduler, jobRunStore, costLedgerStore, feedStore, app.Cache, app.triggerLimiter, app.Logger)
	app.HTTPServer = httpapi.New(jobsAPI, app.Logger)

	return app, nil
}

// Run starts the scheduler and serves HTTP until the server stops.
func (a *App) Run(ctx context.Context) error {
	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	a.Logger.Info("Starting HTTP server", logging.WithField("addr", a.Config.Server.HTTPAddr))
	return a.HTTPServer.Start(a.Config.Server.HTTPAddr)
}

// Shutdown stops the scheduler, the HTTP server, and storage, in that order.
func (a *App) Shutdown(ctx context.Context) error {
	a.Scheduler.Stop()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTP server shutdown error", logging.WithField("error", err.Error()))
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error("Database close error", logging.WithField("error", err.Error()))
		}
	}

	return nil
}

func (a *App) initLogger() *logging.Logger {
	level := logging.LevelInfo
	switch a.Config.Logging.Level {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	return logging.New(level)
}

func (a *App) initCache() cache.Cache {
	cooldown := a.Config.Server.TriggerCooldown

	switch a.Config.Cache.Backend {
	case "redis":
		a.Logger.Info("Using Redis cache backend", logging.WithField("addr", a.Config.Cache.RedisAddr))
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Addr: a.Config.Cache.RedisAddr,
		}, a.Config.Cache.TTL)
		if err != nil {
			a.Logger.Error("Failed to connect to Redis, falling back to memory cache", logging.WithField("error", err.Error()))
			a.triggerLimiter = ratelimit.New(cooldown)
			return cache.NewMemory(a.Config.Cache.TTL)
		}
		// Redis makes the manual-trigger cooldown hold across instances.
		a.triggerLimiter = ratelimit.NewRedis(redisCache.Client(), "ratelimit:trigger:", cooldown)
		a.Logger.Info("Using Redis for distributed trigger rate limiting")
		return redisCache
	default:
		a.Logger.Info("Using in-memory cache backend")
		a.triggerLimiter = ratelimit.New(cooldown)
		return cache.NewMemory(a.Config.Cache.TTL)
	}
}

func (a *App) initEmbeddingBackend() embeddings.Backend {
	cfg := a.Config.Embeddings
	a.Logger.Info("Using embedding backend",
		logging.WithField("provider", cfg.Provider),
		logging.WithField("model", cfg.Model),
		logging.WithField("base_url", cfg.BaseURL))

	switch cfg.Provider {
	case embeddings.SelfHostedProvider:
		return embeddings.NewSelfHosted(cfg.Model, cfg.BaseURL)
	case "openai":
		return embeddings.NewOpenAI(cfg.Model, cfg.BaseURL, cfg.APIKey)
	default:
		return embeddings.NewHTTPBackend(cfg.Provider, cfg.Model, cfg.BaseURL, cfg.APIKey)
	}
}
