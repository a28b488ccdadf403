package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/RicardoRB/socialstats/internal/config"
	"github.com/RicardoRB/socialstats/pkg/database"
	"github.com/RicardoRB/socialstats/pkg/observability"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

type Infrastructure interface {
	Postgres() *database.Postgres
	Redis() *database.Redis
	Logger() *zap.Logger
	MetricsHandler() http.Handler
	MeterProvider() *metric.MeterProvider

	Shutdown(ctx context.Context) error
}

type infrastructure struct {
	postgres       *database.Postgres
	redis          *database.Redis
	logger         *zap.Logger
	metricsHandler http.Handler
	meterProvider  *metric.MeterProvider
}

var _ Infrastructure = &infrastructure{}

func NewInfrastructure(_ context.Context, cfg config.Config) (*infrastructure, error) {
	logger, err := observability.InitLogger(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	var closers []func() error
	fail := func(err error) (*infrastructure, error) {
		for _, close := range closers {
			_ = close()
		}
		return nil, err
	}

	postgres, err := database.NewPostgres(cfg.Postgres.DSN())
	if err != nil {
		return fail(fmt.Errorf("failed to connect to PostgreSQL: %w", err))
	}
	closers = append(closers, postgres.Close)

	redis, err := database.NewRedis(cfg.Redis.Address(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fail(fmt.Errorf("failed to connect to Redis: %w", err))
	}
	closers = append(closers, redis.Close)

	meterProvider, metricsHandler, err := observability.InitTelemetry("socialstats")
	if err != nil {
		return fail(fmt.Errorf("failed to initialize telemetry: %w", err))
	}

	return &infrastructure{
		postgres:       postgres,
		redis:          redis,
		logger:         logger,
		metricsHandler: metricsHandler,
		meterProvider:  meterProvider,
	}, nil
}

func (i *infrastructure) Postgres() *database.Postgres {
	return i.postgres
}

func (i *infrastructure) Redis() *database.Redis {
	return i.redis
}

func (i *infrastructure) Logger() *zap.Logger {
	return i.logger
}

func (i *infrastructure) MetricsHandler() http.Handler {
	return i.metricsHandler
}

func (i *infrastructure) MeterProvider() *metric.MeterProvider {
	return i.meterProvider
}

func (i *infrastructure) Shutdown(ctx context.Context) error {
	errs := make(chan error, 4)

	go func() { errs <- i.postgres.Close() }()
	go func() { errs <- i.redis.Close() }()
	go func() { errs <- i.logger.Sync() }()
	go func() { errs <- observability.Shutdown(ctx, i.meterProvider, i.logger) }()

	return errors.Join(<-errs, <-errs, <-errs, <-errs)
}
