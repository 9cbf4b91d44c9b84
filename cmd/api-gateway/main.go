package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/crime-report-api/api/swagger"
	"github.com/noah-isme/crime-report-api/internal/handler"
	"github.com/noah-isme/crime-report-api/internal/middleware"
	"github.com/noah-isme/crime-report-api/internal/repository"
	"github.com/noah-isme/crime-report-api/internal/service"
	"github.com/noah-isme/crime-report-api/pkg/cache"
	"github.com/noah-isme/crime-report-api/pkg/config"
	"github.com/noah-isme/crime-report-api/pkg/database"
	appErrors "github.com/noah-isme/crime-report-api/pkg/errors"
	"github.com/noah-isme/crime-report-api/pkg/jobs"
	"github.com/noah-isme/crime-report-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/crime-report-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/crime-report-api/pkg/middleware/requestid"
	securemiddleware "github.com/noah-isme/crime-report-api/pkg/middleware/secure"
	"github.com/noah-isme/crime-report-api/pkg/response"
	"github.com/noah-isme/crime-report-api/pkg/storage"
)

// @title Crime Report API
// @version 1.0.0
// @description Citizen crime reporting with role-gated triage and an audit trail
// @BasePath /api/v1
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()

	users := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	reports := repository.NewReportRepository(db)
	history := repository.NewStatusHistoryRepository(db)
	requests := repository.NewAdminRequestRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, report list cache disabled", zap.Error(err))
		} else {
			defer client.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(client, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.ReportListTTL, logr, cacheRepo != nil)

	limits := service.PageLimits{Default: cfg.Pagination.DefaultLimit, Max: cfg.Pagination.MaxLimit}
	auditLimits := service.PageLimits{Default: cfg.Pagination.AuditDefaultLimit, Max: cfg.Pagination.AuditMaxLimit}

	auditSvc := service.NewAuditService(auditRepo, users, metrics, logr, auditLimits)
	sessions := service.NewSessionService(sessionRepo, users, metrics, logr, service.SessionConfig{
		TTL:              cfg.Session.TTL,
		CleanupInterval:  cfg.Session.CleanupInterval,
		CleanupRetention: cfg.Session.CleanupRetention,
	})
	authSvc := service.NewAuthService(db, users, sessions, service.NewBcryptHasher(0), auditSvc, validate, logr)
	reportSvc := service.NewReportService(db, reports, history, users, auditSvc, cacheSvc, validate, logr, service.ReportServiceConfig{
		Limits:   limits,
		CacheTTL: cfg.Cache.ReportListTTL,
	})
	adminSvc := service.NewAdminService(db, requests, users, auditSvc, validate, logr, limits)

	sessions.StartReaper(ctx)

	handlers := handler.Handlers{
		Auth:    handler.NewAuthHandler(authSvc),
		Users:   handler.NewUserHandler(authSvc, adminSvc),
		Reports: handler.NewReportHandler(reportSvc),
		Admin:   handler.NewAdminHandler(adminSvc),
		Audit:   handler.NewAuditHandler(auditSvc),
	}

	if cfg.Exports.Enabled {
		exportSvc, queue, err := buildExports(ctx, cfg, db, reports, auditSvc, metrics, validate, logr)
		if err != nil {
			return err
		}
		defer queue.Stop()
		handlers.Exports = handler.NewExportHandler(exportSvc)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		response.Error(c, appErrors.Internal(fmt.Errorf("panic: %v", recovered), "unexpected failure"))
		c.Abort()
	}))
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(securemiddleware.Headers())
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(response.ErrorDetail(cfg.ExposeInternalErrors()))
	r.Use(middleware.WithResponseMeta())

	ops := handler.NewMetricsHandler(metrics, db, cfg.Env)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handlers, sessions)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildExports(ctx context.Context, cfg *config.Config, db *sqlx.DB, reports *repository.ReportRepository, audit *service.AuditService, metrics *service.MetricsService, validate *validator.Validate, logr *zap.Logger) (*service.ExportService, *jobs.Queue, error) {
	if cfg.Exports.SignedURLSecret == "" {
		return nil, nil, errors.New("EXPORTS_SIGNED_URL_SECRET is required when exports are enabled")
	}
	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, nil, fmt.Errorf("init export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportJobs := repository.NewExportJobRepository(db)

	worker := service.NewExportWorker(exportJobs, reports, files, signer, metrics, logr, service.ExportWorkerConfig{APIPrefix: cfg.APIPrefix})
	queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:     cfg.Exports.WorkerConcurrency,
		MaxRetries:  cfg.Exports.WorkerRetries,
		RetryDelay:  2 * time.Second,
		OnExhausted: worker.MarkExhausted,
		Logger:      logr,
	})
	queue.Start(ctx)

	exportSvc := service.NewExportService(db, exportJobs, queue, files, signer, audit, metrics, validate, logr, service.ExportServiceConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	exportSvc.RecoverPendingJobs(ctx)
	exportSvc.StartCleanup(ctx)
	return exportSvc, queue, nil
}
