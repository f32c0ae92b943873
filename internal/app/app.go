// Package app wires the session service together and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/sessionauth/internal/auth"
	"github.com/utafrali/sessionauth/internal/config"
	"github.com/utafrali/sessionauth/internal/event"
	handler "github.com/utafrali/sessionauth/internal/handler/http"
	"github.com/utafrali/sessionauth/internal/repository/postgres"
	redisrepo "github.com/utafrali/sessionauth/internal/repository/redis"
	"github.com/utafrali/sessionauth/internal/service"
	"github.com/utafrali/sessionauth/internal/transport"
	"github.com/utafrali/sessionauth/migrations"
	"github.com/utafrali/sessionauth/pkg/database"
	"github.com/utafrali/sessionauth/pkg/health"
	pkgkafka "github.com/utafrali/sessionauth/pkg/kafka"
	"github.com/utafrali/sessionauth/pkg/middleware"
	"github.com/utafrali/sessionauth/pkg/tracing"
)

// App wires together all dependencies and runs the session service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Token configuration is checked before any connection is opened.
	minter, err := auth.NewMinter(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.TokenTTL())
	if err != nil {
		return nil, fmt.Errorf("init token minter: %w", err)
	}

	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, tracerShutdown: tracerShutdown}

	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, a.pool, migrations.FS, logger); err != nil {
		a.closeAll()
		return nil, err
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	redisCfg := cfg.Redis()
	a.redis, err = database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		a.closeAll()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", redisCfg.Addr()))

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, a.pool, a.redis, cfg.ServiceName); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}

	var events service.EventPublisher = event.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		events = event.NewProducer(a.producer, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Warn("no kafka brokers configured, session events are not published")
	}

	// Build the dependency graph.
	breaker := database.NewBreaker(cfg.RedisBreaker(), logger)
	userRepo := postgres.NewUserRepository(a.pool)
	tokenStore := redisrepo.NewRefreshTokenStore(a.redis, minter.TTL().Refresh, breaker)
	sessionService := service.NewSessionService(userRepo, tokenStore, minter, events, cfg.BcryptCost, logger)
	cookies := transport.NewCookies(minter.TTL(), cfg.SecureCookies())

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return a.pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return a.redis.Ping(ctx).Err()
	})
	if a.producer != nil {
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
	}

	router := handler.NewRouter(sessionService, minter, cookies, healthHandler, logger, handler.RouterConfig{
		ServiceName:       cfg.ServiceName,
		CORS:              middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins),
		RateLimit:         cfg.AuthRateLimit(),
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown drains HTTP requests first, then flushes spans and closes the
// backing connections.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	errs = append(errs, a.closeAll())

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeAll releases everything except the HTTP server. It tolerates
// components that were never initialized.
func (a *App) closeAll() error {
	var errs []error

	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.pool != nil {
		a.pool.Close()
	}

	return errors.Join(errs...)
}
