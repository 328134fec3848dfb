package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/cartstate"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/media"
	"github.com/utafrali/storefront/internal/oracle"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/repository/postgres"
	redisrepo "github.com/utafrali/storefront/internal/repository/redis"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/migrations"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

// App wires together all dependencies and runs the storefront.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	registry       *cartstate.Registry
	cartLimiter    *middleware.KeyedLimiter
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "storefront",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTelEndpoint,
		SampleRate:     cfg.OTelSampleRate,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Session store. An unreachable Redis is not fatal: sessions live in
	// memory and write-back resumes once the store answers again.
	rdb, err := database.NewRedisClient(ctx, database.RedisConfig{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPass,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		DialTimeout:  time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	if err != nil {
		logger.Warn("redis unreachable, sessions will be memory-only until it recovers",
			slog.String("addr", cfg.RedisAddr),
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
	}

	// Catalog database.
	pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		DBName:          cfg.DBName,
		SSLMode:         cfg.DBSSLMode,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}, logger)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
	)

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if err := prometheus.Register(database.NewPoolStatsCollector(pool, "storefront")); err != nil {
		logger.Warn("pool stats collector not registered", slog.String("error", err.Error()))
	}
	if cfg.SlowQueryMS > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryMS)*time.Millisecond, logger)
	}

	// Kafka producer. Events are best effort, so a missing broker only degrades.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	kafkaCfg.Async = cfg.KafkaAsync
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	if err := pingKafkaWithRetry(ctx, producer, logger); err != nil {
		logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("kafka producer initialized",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.Bool("async", cfg.KafkaAsync),
		)
	}

	storage, err := newMediaStorage(ctx, cfg)
	if err != nil {
		_ = producer.Close()
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("init media storage: %w", err)
	}

	// Build the dependency graph.
	products := postgres.NewProductRepository(pool)
	categories := postgres.NewCategoryRepository(pool)
	stock := newStockOracle(cfg, products, logger)
	eventProducer := event.NewProducer(producer, logger)
	sessions := redisrepo.NewSessionStore(rdb, cfg.SessionTTLDuration(), logger)
	registry := cartstate.NewRegistry(sessions, cfg.SessionIdleEvictDuration(), logger)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiry())
	maxUpload := int64(cfg.MaxUploadMB) << 20

	services := handler.Services{
		Cart: service.NewCartService(registry, stock, eventProducer, service.CartServiceConfig{
			SerializeProductMutations: cfg.SerializeProductMutations,
		}, logger),
		Session:  service.NewSessionService(registry, jwtManager.Validate, eventProducer, cfg.ClearCartOnLogout, logger),
		Checkout: service.NewCheckoutService(registry, stock, eventProducer, logger),
		Catalog:  service.NewCatalogService(products, categories, logger),
		Admin:    service.NewAdminService(products, storage, eventProducer, maxUpload, logger),
	}

	// Health checks. The session store is optional: carts keep working in
	// memory while it is down.
	healthHandler := health.NewHandler(2 * time.Second)
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterOptional("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthHandler.RegisterOptional("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSOrigins
	cartLimiter := middleware.NewKeyedLimiter(cfg.CartRateLimitRPS, cfg.CartRateLimitBurst, 10*time.Minute)

	routerCfg := handler.RouterConfig{
		Logger:         logger,
		CORS:           cors,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		CookieSecure:   cfg.CookieSecure,
		SessionTTL:     cfg.SessionTTLDuration(),
		CartLimiter:    cartLimiter,
		ValidateToken:  jwtManager.Validate,
		MaxUploadBytes: maxUpload,
	}
	if mem, ok := storage.(*media.MemoryStorage); ok {
		routerCfg.Media = mem
	}

	router := handler.NewRouter(services, healthHandler, routerCfg)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		rdb:            rdb,
		pool:           pool,
		producer:       producer,
		registry:       registry,
		cartLimiter:    cartLimiter,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and background sweepers, then blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	go a.registry.Run(ctx)
	go a.cartLimiter.Run(ctx)

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight requests)
// 2. Live sessions (write back to Redis)
// 3. Tracer
// 4. Kafka producer
// 5. PostgreSQL pool
// 6. Redis client
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// Sessions whose last save failed get a final write-back attempt.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if n := a.registry.FlushAll(flushCtx); n > 0 {
		a.logger.Warn("sessions not written back before shutdown", slog.Int("count", n))
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// newStockOracle returns the remote inventory oracle when a base URL is
// configured and falls back to the catalog's own stock column otherwise.
func newStockOracle(cfg *config.Config, products repository.ProductRepository, logger *slog.Logger) service.StockOracle {
	if cfg.OracleBaseURL == "" {
		logger.Info("stock oracle reads the catalog table")
		return oracle.NewCatalogOracle(products, cfg.OracleTimeout())
	}

	client := httpclient.New(httpclient.Config{
		Timeout:         cfg.OracleTimeout(),
		MaxRetries:      cfg.OracleRetries,
		RetryWaitMin:    100 * time.Millisecond,
		RetryWaitMax:    500 * time.Millisecond,
		MaxConnsPerHost: 50,
	})
	cb := httpclient.NewCircuitBreakerClient(client, httpclient.CircuitBreakerConfig{
		Name:         "inventory-oracle",
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}, logger)
	logger.Info("stock oracle uses inventory service", slog.String("base_url", cfg.OracleBaseURL))
	return oracle.NewHTTPOracle(cb, cfg.OracleBaseURL, cfg.OracleTimeout())
}

// newMediaStorage picks S3 when a bucket is configured and process memory
// otherwise.
func newMediaStorage(ctx context.Context, cfg *config.Config) (media.Storage, error) {
	if cfg.S3Bucket == "" {
		return media.NewMemoryStorage(""), nil
	}
	return media.NewS3Storage(ctx, media.S3Config{
		Bucket:        cfg.S3Bucket,
		Region:        cfg.S3Region,
		Endpoint:      cfg.S3Endpoint,
		PublicBaseURL: cfg.S3PublicBaseURL,
	})
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s with ±25% jitter).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		lastErr = producer.Ping(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == 2 {
			break
		}
		base := time.Duration(1<<uint(attempt)) * time.Second
		jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- retry jitter
		wait := base + jitter
		logger.Warn("kafka producer ping failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", wait),
			slog.String("error", lastErr.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("kafka producer ping failed after 3 attempts: %w", lastErr)
}
