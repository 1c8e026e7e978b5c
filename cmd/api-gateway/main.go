package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-adp-planner/api/swagger"
	"github.com/noah-isme/sma-adp-planner/internal/handler"
	"github.com/noah-isme/sma-adp-planner/internal/middleware"
	"github.com/noah-isme/sma-adp-planner/internal/repository"
	"github.com/noah-isme/sma-adp-planner/internal/service"
	"github.com/noah-isme/sma-adp-planner/pkg/cache"
	"github.com/noah-isme/sma-adp-planner/pkg/config"
	"github.com/noah-isme/sma-adp-planner/pkg/database"
	"github.com/noah-isme/sma-adp-planner/pkg/jobs"
	"github.com/noah-isme/sma-adp-planner/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-adp-planner/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-adp-planner/pkg/middleware/requestid"
	"github.com/noah-isme/sma-adp-planner/pkg/storage"
)

// @title Weekly Planner API
// @version 1.0.0
// @description Ranks conflict-minimizing weekly timetables from a catalog of course sections
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Warn("postgres unavailable, plan runs cannot be saved", zap.Error(err))
		db = nil
	} else {
		defer db.Close() //nolint:errcheck
	}

	cacheSvc, closeCache := newCacheService(ctx, cfg, metricsSvc, logr)
	defer closeCache()

	planner := newPlannerService(cfg, db, cacheSvc, metricsSvc, validate, logr)
	worker := service.NewPlanWorker(planner, cfg.Planner.QueueRetries, logr.Named("plan_worker"))
	queue := jobs.NewQueue("plans", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Planner.QueueConcurrency,
		MaxRetries: cfg.Planner.QueueRetries,
		RetryDelay: 2 * time.Second,
		Retryable:  service.IsRetryable,
		Logger:     logr.Named("queue"),
	})
	queue.Start(ctx)
	defer queue.Stop()
	planner.UseQueue(queue)

	var exportSvc *service.ExportService
	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Warn("export storage unavailable, exports disabled", zap.Error(err))
	} else {
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc = service.NewExportService(planner, files, signer, service.ExportConfig{
			APIPrefix:       cfg.APIPrefix,
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
		}, logr.Named("exports"))
		exportSvc.StartCleanup(ctx)
	}

	authSvc := service.NewAuthService(validate, logr.Named("auth"), service.AuthConfig{
		Username:          cfg.Auth.Username,
		PasswordHash:      cfg.Auth.PasswordHash,
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "weekly-planner",
	})
	if !authSvc.Enabled() {
		logr.Warn("operator password not configured, saving plan runs is disabled")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if db != nil {
			if err := db.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "queue_pending": queue.Pending(), "persistence": db != nil})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	plannerHandler := handler.NewPlannerHandler(planner, nil)
	if exportSvc != nil {
		plannerHandler = handler.NewPlannerHandler(planner, exportSvc)
	}
	authHandler := handler.NewAuthHandler(authSvc)

	api := r.Group(cfg.APIPrefix)
	api.GET("/metrics/summary", metricsHandler.Snapshot)
	api.POST("/auth/login", authHandler.Login)

	plans := api.Group("/plans", middleware.OptionalJWT(authSvc))
	plans.POST("", plannerHandler.Plan)
	plans.POST("/async", plannerHandler.Submit)
	plans.GET("/proposals/:id", plannerHandler.Proposal)
	plans.GET("/proposals/:id/export", plannerHandler.Export)
	plans.POST("/save", middleware.JWT(authSvc), plannerHandler.Save)

	api.GET("/exports/:token", plannerHandler.Download)

	runs := api.Group("/plan-runs")
	runs.GET("", plannerHandler.List)
	runs.GET("/:id/entries", plannerHandler.Entries)
	runs.DELETE("/:id", middleware.JWT(authSvc), plannerHandler.Delete)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}

func newCacheService(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (*service.CacheService, func()) {
	noop := func() {}
	if !cfg.Cache.Enabled {
		return service.NewCacheService(nil, metrics, cfg.Cache.TTL, logr, false), noop
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, plan cache disabled", zap.Error(err))
		return service.NewCacheService(nil, metrics, cfg.Cache.TTL, logr, false), noop
	}
	repo := repository.NewCacheRepository(client, logr.Named("cache"))
	return service.NewCacheService(repo, metrics, cfg.Cache.TTL, logr.Named("cache"), true), func() {
		if err := repo.Close(); err != nil {
			logr.Warn("failed to close redis client", zap.Error(err))
		}
	}
}

func newPlannerService(cfg *config.Config, db *sqlx.DB, cacheSvc *service.CacheService, metrics *service.MetricsService, validate *validator.Validate, logr *zap.Logger) *service.PlannerService {
	plannerCfg := service.PlannerServiceConfig{Engine: cfg.Planner, CacheTTL: cfg.Cache.TTL}
	if db == nil {
		return service.NewPlannerService(nil, nil, nil, cacheSvc, metrics, validate, logr.Named("planner"), plannerCfg)
	}
	return service.NewPlannerService(
		repository.NewPlanRunRepository(db),
		repository.NewPlanRunEntryRepository(db),
		db,
		cacheSvc,
		metrics,
		validate,
		logr.Named("planner"),
		plannerCfg,
	)
}
