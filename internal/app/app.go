package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/RicardoRB/socialstats/internal/config"
	"github.com/RicardoRB/socialstats/internal/handler"
	"github.com/RicardoRB/socialstats/internal/oauth"
	"github.com/RicardoRB/socialstats/internal/provider"
	"github.com/RicardoRB/socialstats/internal/repository"
	"github.com/RicardoRB/socialstats/internal/service"
	"github.com/RicardoRB/socialstats/internal/utils"
	"github.com/RicardoRB/socialstats/pkg/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra  Infrastructure
	config *config.Config
	router *gin.Engine
	server *http.Server
}

func NewApp(infra Infrastructure, cfg *config.Config) *App {
	repos := repository.NewRepositories(infra.Postgres())

	jwtManager := utils.NewJWTManager(cfg.Session.JWTSecret)
	signer := oauth.NewStateSigner(cfg.OAuth.StateSecret, cfg.OAuth.StateTTL.Duration)

	httpClient := &http.Client{Timeout: cfg.Sync.HTTPTimeout.Duration}
	exchanger := oauth.NewExchanger(cfg.OAuth.BaseURL, httpClient)

	registry := provider.NewRegistry(cfg.Providers, provider.Deps{
		Exchanger: exchanger,
		Accounts:  repos.Accounts,
		Client:    httpClient,
		Logger:    infra.Logger(),
	})

	nonceGuard := service.NewNonceGuard(infra.Redis())
	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(infra)

	oauthService := service.NewOAuthService(signer, exchanger, registry, repos.Accounts, nonceGuard, infra.Logger())
	syncService := service.NewSyncService(registry, repos, cfg.Sync.Throttle.Duration, infra.Logger())
	metricsService := service.NewMetricsService(repos.Metrics)
	accountService := service.NewAccountService(repos.Accounts)

	oauthHandler := handler.NewOAuthHandler(oauthService)
	syncHandler := handler.NewSyncHandler(syncService, cfg.Sync.DefaultWindow.Duration)
	metricsHandler := handler.NewMetricsHandler(metricsService, accountService)

	router := gin.Default()
	router.Use(otelgin.Middleware("socialstats"))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, cfg, oauthHandler, syncHandler, metricsHandler, jwtManager, rateLimiter, healthChecker, infra.MetricsHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:  infra,
		config: cfg,
		router: router,
		server: srv,
	}
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	oauthHandler *handler.OAuthHandler,
	syncHandler *handler.SyncHandler,
	metricsHandler *handler.MetricsHandler,
	jwtManager *utils.JWTManager,
	rateLimiter *service.RateLimiter,
	healthChecker *HealthChecker,
	promHandler http.Handler,
) {
	router.GET("/metrics", observability.PrometheusHandler(promHandler))
	router.GET("/health", healthChecker.Handler)

	api := router.Group("/api")
	api.Use(handler.AuthMiddleware(jwtManager))
	{
		auth := api.Group("/auth")
		{
			auth.GET("/:provider/start", oauthHandler.Start)
			auth.GET("/:provider/callback", oauthHandler.Callback)
		}

		api.POST("/sync/:provider",
			handler.RateLimitMiddleware(rateLimiter, cfg.Sync.RateLimitRequests, cfg.Sync.RateLimitWindow.Duration, handler.UserBasedKey),
			syncHandler.Trigger,
		)

		api.GET("/metrics/overview", metricsHandler.Overview)
		api.GET("/social-accounts", metricsHandler.Accounts)
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
