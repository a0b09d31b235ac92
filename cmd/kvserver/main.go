package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rohansen856/database-layering/internal/breaker"
	"github.com/rohansen856/database-layering/internal/cache"
	"github.com/rohansen856/database-layering/internal/config"
	apierrors "github.com/rohansen856/database-layering/internal/errors"
	"github.com/rohansen856/database-layering/internal/handler"
	"github.com/rohansen856/database-layering/internal/health"
	"github.com/rohansen856/database-layering/internal/metrics"
	"github.com/rohansen856/database-layering/internal/ratelimit"
	"github.com/rohansen856/database-layering/internal/router"
	"github.com/rohansen856/database-layering/internal/server"
	"github.com/rohansen856/database-layering/internal/service"
	"github.com/rohansen856/database-layering/internal/store"
)

const (
	version           = "1.0.0"
	defaultConfigPath = "./config.yaml"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "kvserver",
		Short: "layered key-value storage service",
		Long: fmt.Sprintf(`kvserver (v%s)

A partitioned key-value storage service with tiered caching, circuit
breakers, rate limiting, buffered writes and an event-sourced read model.`, version),
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the storage service",
		RunE:  runServe,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kvserver",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kvserver v%s\n", version)
		},
	}
)

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "",
		"path to the YAML config file (falls back to CONFIG_PATH, then "+defaultConfigPath+")")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync()

	run(cfg, logger)
	return nil
}

// run builds the full service stack from the configuration and blocks until
// a shutdown signal arrives or the HTTP server fails.
func run(cfg *config.Config, logger *zap.Logger) {
	logger.Info("Starting kvserver",
		zap.String("version", version),
		zap.String("routing_mode", cfg.Routing.Mode),
		zap.Int("partitions", len(cfg.Partitions)))

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(promRegistry)

	checker := health.NewChecker(logger)

	backends := make(map[string]store.Store, len(cfg.Partitions))
	defer func() {
		for _, backend := range backends {
			backend.Close()
		}
	}()

	partitions := make([]router.Partition, 0, len(cfg.Partitions))
	for _, p := range cfg.Partitions {
		backend, err := newBackend(p, logger)
		if err != nil {
			logger.Fatal("Failed to connect partition backend",
				zap.String("partition", p.Name),
				zap.String("driver", p.Driver),
				zap.Error(err))
		}
		backends[p.Name] = backend
		partitions = append(partitions, router.Partition{Name: p.Name, Region: p.Region, Driver: p.Driver})
		checker.AddPartition(p.Name, backend.Ping)
		logger.Info("Partition backend connected",
			zap.String("partition", p.Name),
			zap.String("region", p.Region),
			zap.String("driver", p.Driver))
	}

	rt, err := router.New(router.Mode(cfg.Routing.Mode), partitions, cfg.Routing.DefaultRegion, logger)
	if err != nil {
		logger.Fatal("Failed to initialize router", zap.Error(err))
	}

	breakers := breaker.NewRegistry(breaker.Config{
		Threshold:     cfg.Breaker.Threshold,
		Cooldown:      cfg.Breaker.Cooldown,
		OnStateChange: m.RecordBreakerTransition,
	}, logger)

	l1 := cache.NewL1(cfg.Cache.L1.MaxEntries, cfg.Cache.L1.TTL, logger)
	var l2 store.Cache
	if cfg.Cache.L2.Enabled {
		redisCache, err := store.NewRedisCache(cfg.Cache.L2.Redis.Addr, cfg.Cache.L2.Redis.Password, cfg.Cache.L2.Redis.DB, logger)
		if err != nil {
			logger.Fatal("Failed to connect L2 cache",
				zap.String("addr", cfg.Cache.L2.Redis.Addr),
				zap.Error(err))
		}
		defer redisCache.Close()
		checker.AddComponent("cache_l2", redisCache.Ping)
		l2 = redisCache
	}
	tiered := cache.NewTiered(l1, l2, cfg.Cache.L2.TTL, logger)
	logger.Info("Tiered cache initialized",
		zap.Int("l1_max_entries", cfg.Cache.L1.MaxEntries),
		zap.Bool("l2_enabled", cfg.Cache.L2.Enabled))

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		var window store.Window
		if cfg.RateLimit.Backend == "redis" {
			redisWindow, err := store.NewRedisWindow(cfg.RateLimit.Redis.Addr, cfg.RateLimit.Redis.Password, cfg.RateLimit.Redis.DB, logger)
			if err != nil {
				logger.Fatal("Failed to connect rate limit backend",
					zap.String("addr", cfg.RateLimit.Redis.Addr),
					zap.Error(err))
			}
			defer redisWindow.Close()
			window = redisWindow
		} else {
			window = store.NewMemoryWindow()
		}
		limiter = ratelimit.New(window, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, logger)
		checker.AddComponent("rate_limit", limiter.Ping)
		logger.Info("Rate limiter initialized",
			zap.String("backend", cfg.RateLimit.Backend),
			zap.Int("max_requests", cfg.RateLimit.MaxRequests),
			zap.Duration("window", cfg.RateLimit.Window))
	}

	var events store.EventLog
	if cfg.Events.Enabled {
		eventLog, err := store.NewRedisEventLog(cfg.Events.Redis.Addr, cfg.Events.Redis.Password, cfg.Events.Redis.DB, cfg.Events.Stream, logger)
		if err != nil {
			logger.Fatal("Failed to connect event log",
				zap.String("stream", cfg.Events.Stream),
				zap.Error(err))
		}
		defer eventLog.Close()
		checker.AddComponent("events", eventLog.Ping)
		events = eventLog
	}

	var queue store.Queue
	if cfg.WriteBuffer.Enabled {
		redisQueue, err := store.NewRedisQueue(cfg.WriteBuffer.Redis.Addr, cfg.WriteBuffer.Redis.Password, cfg.WriteBuffer.Redis.DB, cfg.WriteBuffer.Queue, logger)
		if err != nil {
			logger.Fatal("Failed to connect write buffer queue",
				zap.String("queue", cfg.WriteBuffer.Queue),
				zap.Error(err))
		}
		defer redisQueue.Close()
		checker.AddComponent("write_buffer", redisQueue.Ping)
		queue = redisQueue
	}

	var readModel store.ReadModel
	if cfg.ReadModel.Enabled {
		readModel, err = newReadModel(cfg.ReadModel, logger)
		if err != nil {
			logger.Fatal("Failed to connect read model",
				zap.String("driver", cfg.ReadModel.Driver),
				zap.Error(err))
		}
		defer readModel.Close()
		checker.AddComponent("read_model", readModel.Ping)
	}

	svc := service.NewStorageService(backends, rt, breakers, tiered, events, queue, readModel,
		cfg.Routing.ReplicationEnabled, m, logger)
	logger.Info("Storage service initialized",
		zap.Bool("replication", cfg.Routing.ReplicationEnabled),
		zap.Bool("events", cfg.Events.Enabled),
		zap.Bool("buffered_writes", cfg.WriteBuffer.Enabled))

	var worker *service.WorkerService
	if queue != nil {
		worker = service.NewWorkerService(queue, svc, cfg.WriteBuffer.BatchSize, cfg.WriteBuffer.PollInterval, m, logger)
		worker.Start()
	}

	var projector *service.ProjectorService
	if readModel != nil && events != nil {
		projector = service.NewProjectorService(events, readModel, cfg.Events.BatchSize, cfg.Events.PollInterval, m, logger)
		projector.Start()
	}

	handlers := handler.NewHandlers(svc, tiered, limiter, breakers, worker, projector, events, checker,
		apierrors.NewHandler(logger), logger)

	srv := server.NewServer(cfg, handlers, limiter, m, promRegistry, logger)
	srv.SetupRoutes()

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()
	logger.Info("HTTP server listening",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("auth", cfg.Auth.Enabled),
		zap.Bool("metrics", cfg.Metrics.Enabled))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}

	if worker != nil {
		worker.Stop()
	}
	if projector != nil {
		projector.Stop()
	}

	logger.Info("kvserver stopped")
}

func newBackend(p config.PartitionConfig, logger *zap.Logger) (store.Store, error) {
	switch p.Driver {
	case "postgres":
		return store.NewPostgresStore(p.Postgres.Host, p.Postgres.Port, p.Postgres.Database,
			p.Postgres.User, p.Postgres.Password, p.Postgres.MaxConns, p.Postgres.MinConns, logger)
	case "mongo":
		return store.NewMongoStore(p.Mongo.URI, p.Mongo.Database, p.Mongo.MaxPoolSize, logger)
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", p.Driver)
	}
}

func newReadModel(cfg config.ReadModelConfig, logger *zap.Logger) (store.ReadModel, error) {
	if cfg.Driver == "postgres" {
		return store.NewPostgresReadModel(cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Database,
			cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.MaxConns, cfg.Postgres.MinConns, logger)
	}
	return store.NewMemoryReadModel(), nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
