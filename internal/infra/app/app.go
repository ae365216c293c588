package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/THEROER/DoubleLife/internal/core/port"
	"github.com/THEROER/DoubleLife/internal/infra/bridge"
	"github.com/THEROER/DoubleLife/internal/infra/clock"
	"github.com/THEROER/DoubleLife/internal/infra/config"
	"github.com/THEROER/DoubleLife/internal/infra/database"
	kafkainfra "github.com/THEROER/DoubleLife/internal/infra/kafka"
	"github.com/THEROER/DoubleLife/internal/infra/logger"
	"github.com/THEROER/DoubleLife/internal/infra/luckperms"
	redisinfra "github.com/THEROER/DoubleLife/internal/infra/redis"
	"github.com/THEROER/DoubleLife/internal/infra/telemetry"
	"github.com/THEROER/DoubleLife/internal/infra/webhook"
	postgresrepo "github.com/THEROER/DoubleLife/internal/repository/postgres"
	redisrepo "github.com/THEROER/DoubleLife/internal/repository/redis"
	"github.com/THEROER/DoubleLife/internal/transport/http/middleware"
	"github.com/THEROER/DoubleLife/internal/transport/http/routes"
	"github.com/THEROER/DoubleLife/internal/usecase"
)

const (
	shutdownTimeout     = 10 * time.Second
	notifierDrainWindow = 5 * time.Second
)

type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	lifecycle  *usecase.LifecycleManager
	dispatcher *usecase.Dispatcher
	pool       *pgxpool.Pool
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	tracing    *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	if err := a.build(ctx); err != nil {
		a.closeResources(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *Application) build(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sessionMetrics, err := telemetry.NewSessionMetrics(registry)
	if err != nil {
		return fmt.Errorf("init session metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}

	var tracer trace.Tracer
	if cfg.Telemetry.OTLPEndpoint != "" {
		tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, cfg.App.ServerName, log)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		a.tracing = tp
		tracer = tp.Tracer("github.com/THEROER/DoubleLife/internal/usecase")
	}

	store, err := a.sessionStore(ctx)
	if err != nil {
		return err
	}
	grants, err := a.grantClient(ctx)
	if err != nil {
		return err
	}

	var events port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			events = kafkainfra.NewStubPublisher(log)
		} else {
			a.producer = producer
			events = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		events = kafkainfra.NewStubPublisher(log)
	}

	clk := clock.Real()
	a.dispatcher = usecase.NewDispatcher(webhook.NewClient(cfg.Webhook, log), cfg.Webhook, clk, sessionMetrics, log)
	a.lifecycle = usecase.NewLifecycleManager(cfg.DoubleLife, usecase.LifecycleDeps{
		Grants:   grants,
		Store:    store,
		Gateway:  bridge.NewGateway(cfg.Bridge, log),
		Events:   events,
		Notifier: a.dispatcher,
		Metrics:  sessionMetrics,
		Clock:    clk,
		Tracer:   tracer,
		Logger:   log,
	})

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Lifecycle:   a.lifecycle,
		Clock:       clk,
		HTTPMetrics: httpMetrics,
		Gatherer:    registry,
	}
	if a.pool != nil {
		deps.Database = a.pool
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	return nil
}

func (a *Application) sessionStore(ctx context.Context) (port.SessionStore, error) {
	switch a.cfg.Store.Driver {
	case "", "redis":
		client, err := redisinfra.NewClient(ctx, a.cfg.Redis, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.redis = client
		return redisrepo.NewSessionStore(client.Client(), a.cfg.Redis.SessionPrefix), nil
	case "postgres":
		pool, err := a.postgres(ctx)
		if err != nil {
			return nil, err
		}
		return postgresrepo.NewSessionStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
}

func (a *Application) grantClient(ctx context.Context) (port.GrantClient, error) {
	switch a.cfg.Grants.Driver {
	case "", "luckperms":
		return luckperms.NewClient(a.cfg.Grants.LuckPerms, a.logger), nil
	case "postgres":
		pool, err := a.postgres(ctx)
		if err != nil {
			return nil, err
		}
		return postgresrepo.NewGrantRepository(pool), nil
	default:
		return nil, fmt.Errorf("unknown grants driver %q", a.cfg.Grants.Driver)
	}
}

// postgres opens the pool on first use; the store and the grant repository may share it.
func (a *Application) postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if a.pool != nil {
		return a.pool, nil
	}
	pool, err := database.NewPostgresPool(ctx, a.cfg.Postgres, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool
	if err := postgresrepo.EnsureSchema(ctx, pool); err != nil {
		return nil, err
	}
	return pool, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting DoubleLife API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.String("server_name", a.cfg.App.ServerName),
		zap.Bool("enabled", a.cfg.DoubleLife.Enabled),
	)
	if err := a.dispatcher.SystemEnabled(a.cfg.App.ServerName); err != nil {
		a.logger.Warn("system enabled notification failed", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.lifecycle.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	})

	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.stop(shutdownCtx)

	return runErr
}

func (a *Application) stop(ctx context.Context) {
	if err := a.dispatcher.SystemDisabled(a.cfg.App.ServerName); err != nil {
		a.logger.Warn("system disabled notification failed", zap.Error(err))
	}
	a.lifecycle.Shutdown(ctx)

	select {
	case <-a.dispatcher.Done():
	case <-time.After(notifierDrainWindow):
		a.logger.Warn("notification queue not drained before shutdown")
	case <-ctx.Done():
	}

	a.closeResources(ctx)
}

func (a *Application) closeResources(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer failed", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracing != nil {
		if err := a.tracing.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer failed", zap.Error(err))
		}
	}
}
