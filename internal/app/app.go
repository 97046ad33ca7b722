package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/georegistry/internal/config"
	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/httpserver"
	"github.com/MrSnakeDoc/georegistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/georegistry/internal/index"
	"github.com/MrSnakeDoc/georegistry/internal/logger"
	"github.com/MrSnakeDoc/georegistry/internal/metrics"
	"github.com/MrSnakeDoc/georegistry/internal/redis"
	"github.com/MrSnakeDoc/georegistry/internal/scheduler"
	"github.com/MrSnakeDoc/georegistry/internal/search"
	"github.com/MrSnakeDoc/georegistry/internal/search/elastic"
	"github.com/MrSnakeDoc/georegistry/internal/search/solr"
	"github.com/MrSnakeDoc/georegistry/internal/sources"
	"github.com/MrSnakeDoc/georegistry/internal/sources/epsg"
	"github.com/MrSnakeDoc/georegistry/internal/sources/fetch"
	"github.com/MrSnakeDoc/georegistry/internal/sources/ogc"
	redisstore "github.com/MrSnakeDoc/georegistry/internal/store/redis"
	"github.com/MrSnakeDoc/georegistry/internal/tasks"
	"github.com/MrSnakeDoc/georegistry/internal/version"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// App wires the catalog, the harvesters, the search engines and the task
// runner. The CLI commands and the HTTP server share one App.
type App struct {
	cfg         *config.Config
	logger      logger.Logger
	redisClient *goredis.Client
	repo        domain.Repository
	backend     string
	engines     *search.Set
	metrics     *metrics.Metrics
	runner      *tasks.Runner
}

// New builds the application from cfg. Redis is dialled with retries when
// configured; otherwise the catalog lives in memory.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	loggerClient := logger.NewWithFile(cfg.LogLevel, cfg.PrettyLog, logger.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})

	a := &App{cfg: cfg, logger: loggerClient, backend: BackendMemory}

	// The EPSG cache stays nil (in-process) unless Redis is available
	var epsgCache epsg.Cache
	if cfg.RedisAddr != "" {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		redisClient, err := redis.New(ctx, redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		store := redisstore.NewStore(redisClient)
		a.redisClient = redisClient
		a.repo = store
		a.backend = BackendRedis
		epsgCache = store.NewCache("epsg", cfg.EPSGCacheTTL)
		loggerClient.Info("Redis initialized successfully")
	} else {
		a.repo = index.NewMemoryIndex()
		loggerClient.Warn("no redis address configured, catalog is kept in memory only")
	}

	client := fetch.New(fetch.Options{
		Timeout:       cfg.HarvestTimeout,
		RatePerSecond: cfg.FetchRate,
		Burst:         cfg.FetchBurst,
		UserAgent:     cfg.UserAgent,
	})
	resolver := epsg.NewResolver(client, cfg.EPSGLookupURL, epsgCache)
	harvester := sources.NewHarvester(a.repo, client, ogc.NewHTTPReader(client), resolver, loggerClient)
	harvester.SetDetectTimeout(cfg.DetectTimeout)

	engines, err := search.NewSet(search.Options{
		Default: cfg.SearchEngine,
		Solr: solr.Options{
			URL:          cfg.SolrURL,
			Core:         cfg.SolrCore,
			QueryTimeout: cfg.QueryTimeout,
			IndexTimeout: cfg.IndexTimeout,
		},
		Elastic: elastic.Options{
			URL:          cfg.ElasticURL,
			Precision:    cfg.ElasticPrecision,
			BulkSize:     cfg.ElasticBulkSize,
			QueryTimeout: cfg.QueryTimeout,
			IndexTimeout: cfg.IndexTimeout,
		},
	}, loggerClient)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to configure search: %w", err)
	}
	a.engines = engines
	a.metrics = metrics.New()

	a.runner = tasks.New(tasks.Deps{
		Repo:      a.repo,
		Harvester: harvester,
		Registry:  sources.NewRegistry(harvester),
		Engines:   engines,
		Client:    client,
		Metrics:   a.metrics,
		Logger:    loggerClient,
	}, tasks.Options{
		Concurrency:       cfg.Concurrency,
		HarvestTimeout:    cfg.HarvestTimeout,
		CheckTimeout:      cfg.CheckTimeout,
		IndexTimeout:      cfg.IndexTimeout,
		LocalOrganization: cfg.LocalOrganization,
	})

	loggerClient.Info("application initialized",
		logger.String("backend", a.backend),
		logger.String("search_engine", engines.Default().Name()),
		logger.Strings("engines", engines.Names()))
	return a, nil
}

// Logger returns the application logger.
func (a *App) Logger() logger.Logger { return a.logger }

// Runner returns the task runner used by the CLI commands.
func (a *App) Runner() *tasks.Runner { return a.runner }

// Repo returns the catalog repository.
func (a *App) Repo() domain.Repository { return a.repo }

// SyncSeed registers the seed file services, if a seed file is configured.
func (a *App) SyncSeed(ctx context.Context) error {
	if a.cfg.SeedFile == "" {
		a.logger.Debug("no seed file configured")
		return nil
	}
	syncer := scheduler.NewSeedSyncer(a.cfg.SeedFile, a.cfg.DefaultCatalog, a.runner, a.logger)
	_, err := syncer.Sync(ctx)
	return err
}

// Serve runs the HTTP API and the harvest scheduler until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	a.logger.Infof("🚀 Starting georegistry %s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("georegistry %s", version.String())

	// A broken seed file must not keep the API down
	if err := a.SyncSeed(ctx); err != nil {
		a.logger.Warn("seed sync failed", logger.Error(err))
	}

	harvestTrigger := make(chan struct{}, 1)
	sched := scheduler.NewHarvestScheduler(a.runner, a.logger, a.cfg.HarvestInterval, a.cfg.CheckLayers, harvestTrigger)
	sched.Start(ctx, a.cfg.HarvestOnStart)
	a.logger.Info("harvest scheduler started",
		logger.Duration("interval", a.cfg.HarvestInterval),
		logger.Bool("check_layers", a.cfg.CheckLayers))

	d := deps.Deps{
		Logger:           a.logger,
		StartTime:        time.Now(),
		Version:          version.Version,
		Commit:           version.Commit,
		BuildDate:        version.BuildDate,
		GoVersion:        version.GoVersion,
		TimeNow:          time.Now,
		AllowedCIDRS:     a.cfg.AllowedCIDRS,
		TrustProxy:       a.cfg.TrustProxy,
		CORSOrigins:      a.cfg.CORSOrigins,
		SearchRatePerMin: a.cfg.SearchRatePerMin,
		SearchRateBurst:  a.cfg.SearchRateBurst,
		RequestTimeout:   a.cfg.RequestTimeout,
		Repo:             a.repo,
		DefaultCatalog:   a.cfg.DefaultCatalog,
		Backend:          a.backend,
		RedisClient:      a.redisClient,
		Engines:          a.engines,
		Metrics:          a.metrics,
		Scheduler:        sched,
		HarvestTrigger:   harvestTrigger,
	}
	server := httpserver.New(a.cfg.ListenPort, a.logger, d)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	if runErr == nil {
		a.logger.Info("✅ georegistry stopped cleanly")
	}
	return runErr
}

// Close releases the Redis connection and flushes the logger.
func (a *App) Close() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}
	_ = a.logger.Sync()
}
