package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/temcen/glowrank/internal/config"
	"github.com/temcen/glowrank/internal/database"
	"github.com/temcen/glowrank/internal/handlers"
	"github.com/temcen/glowrank/internal/middleware"
	"github.com/temcen/glowrank/internal/repository"
	"github.com/temcen/glowrank/internal/services"
	"github.com/temcen/glowrank/internal/validation"
)

type App struct {
	config    *config.Config
	logger    *logrus.Logger
	db        *database.Database
	services  *services.Services
	handlers  *handlers.Handlers
	validator *validation.SchemaValidator
	router    *gin.Engine

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	validator, err := validation.NewSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to load request schemas: %w", err)
	}
	app.validator = validator

	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if cfg.Database.Migrate {
		if err := repository.New(db.PG, app.logger).Migrate(context.Background()); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	svc, err := services.New(cfg, app.logger, db, prometheus.DefaultRegisterer)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = svc

	app.handlers = handlers.New(app.logger, svc.Health, svc.Recommendation, svc.Preferences, svc.Indexer, cfg.Ranking)
	app.setupRouter()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// Start fits the initial index and, when Kafka is enabled, starts the
// catalog event consumer. A failed initial fit is logged; the index is
// built lazily on the first request instead.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	if _, err := a.services.Indexer.Reindex(ctx); err != nil {
		a.logger.WithError(err).Warn("Initial catalog index failed")
	}

	bus := a.services.EventBus
	if bus == nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := bus.Consume(ctx, a.services.Indexer.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.WithError(err).Error("Catalog event consumer stopped")
		}
	}()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("Timed out waiting for catalog event consumer")
	}

	if err := a.closeResources(); err != nil {
		a.logger.WithError(err).Error("Error closing connections")
		return err
	}
	return nil
}

func (a *App) closeResources() error {
	return errors.Join(a.services.Close(), a.db.Close())
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(a.config.Security.CORS))

	router.GET("/health", a.handlers.Health.Check)
	if a.config.Monitoring.Enabled {
		router.GET(a.config.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	vm := middleware.NewValidationMiddleware(a.validator)

	api := router.Group("/api/v1")
	{
		recommendations := api.Group("/recommendations")
		{
			recommendations.GET("/:userId", a.handlers.Recommendation.Get)
			recommendations.GET("/:userId/items/:itemId/score", a.handlers.Recommendation.Score)
		}

		api.GET("/items/:itemId/similar", a.handlers.Recommendation.Similar)

		api.PUT("/users/:userId/preferences", vm.ValidatePreferenceAnswers(), a.handlers.User.SavePreferences)

		catalog := api.Group("/catalog")
		{
			catalog.POST("/events", vm.ValidateCatalogEvent(), a.handlers.Catalog.SubmitEvent)
			catalog.POST("/reindex", a.handlers.Catalog.Reindex)
		}
	}

	a.router = router
}
