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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/bav-systems/visitas-api/api/swagger"
	"github.com/bav-systems/visitas-api/internal/handler"
	"github.com/bav-systems/visitas-api/internal/middleware"
	"github.com/bav-systems/visitas-api/internal/repository"
	"github.com/bav-systems/visitas-api/internal/service"
	"github.com/bav-systems/visitas-api/pkg/cache"
	"github.com/bav-systems/visitas-api/pkg/config"
	"github.com/bav-systems/visitas-api/pkg/database"
	"github.com/bav-systems/visitas-api/pkg/logger"
	corsmiddleware "github.com/bav-systems/visitas-api/pkg/middleware/cors"
	reqidmiddleware "github.com/bav-systems/visitas-api/pkg/middleware/requestid"
	"github.com/bav-systems/visitas-api/pkg/storage"
)

// @title Visitas API
// @version 1.0.0
// @description Visitor registry with IP-gated, single-session login and an immutable bitácora
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The dashboard cache is an optimization; the API runs without it.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	visitorRepo := repository.NewVisitorRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	ipPolicyRepo := repository.NewIPPolicyRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	lockoutRepo := repository.NewLockoutRepository(db)
	backupRepo := repository.NewBackupRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	auditSvc := service.NewAuditService(auditRepo, logr)
	sessionSvc := service.NewSessionService(sessionRepo, logr, service.SessionConfig{
		TTL:             cfg.Security.SessionTTL,
		SignatureMaxLen: cfg.Security.SignatureMaxLen,
	})
	lockoutSvc := service.NewLockoutService(lockoutRepo, logr, cfg.Security.MaxLoginAttempts)
	ipPolicySvc := service.NewIPPolicyService(ipPolicyRepo, auditSvc, validate, logr, cfg.Security.BlockedIPs)
	authSvc := service.NewAuthService(userRepo, ipPolicySvc, sessionSvc, lockoutSvc, auditSvc, metricsSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "visitas-api",
	})
	visitorSvc := service.NewVisitorService(visitorRepo, auditSvc, validate, logr)
	exportSvc := service.NewExportService(auditRepo, auditSvc, logr)

	archiveStore, err := storage.NewLocalStorage(cfg.Backup.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare backup storage", "error", err)
	}
	archiveSvc := service.NewArchiveService(archiveStore, logr, service.ArchiveServiceConfig{Retention: cfg.Backup.Retention})
	archiveSvc.Start(ctx)
	defer archiveSvc.Stop()

	backupSvc := service.NewBackupService(backupRepo, auditSvc, archiveSvc, logr)
	userSvc := service.NewUserService(userRepo, lockoutSvc, auditSvc, validate, logr)
	dashboardSvc := service.NewDashboardService(visitorRepo, auditRepo, cacheRepo, metricsSvc, logr, service.DashboardServiceConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	visitorHandler := handler.NewVisitorHandler(visitorSvc)
	auditHandler := handler.NewAuditHandler(auditSvc, exportSvc)
	ipHandler := handler.NewIPHandler(ipPolicySvc, sessionSvc)
	userHandler := handler.NewUserHandler(userSvc)
	backupHandler := handler.NewBackupHandler(backupSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	// Runs on all traffic, authenticated or not: every request refreshes the
	// caller's slot and sweeps stale ones, so a vanished holder is reclaimed
	// by the contender's own login attempt.
	r.Use(middleware.ActiveIP(sessionSvc, logr))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.Use(middleware.OptionalJWT(authSvc))
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authHandler.Logout)
		auth.POST("/warn", authHandler.Warn)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	{
		protected.GET("/auth/me", authHandler.Me)
		protected.POST("/auth/change-password", authHandler.ChangePassword)

		protected.POST("/visitors/check-in", visitorHandler.CheckIn)
		protected.POST("/visitors/check-out/:cedula", visitorHandler.CheckOut)
		protected.GET("/visitors", visitorHandler.List)
		protected.PUT("/visitors/:id", visitorHandler.Update)
		protected.DELETE("/visitors/:id", visitorHandler.Delete)
		protected.GET("/visits", visitorHandler.Visits)
		protected.GET("/visits/active", visitorHandler.Active)

		protected.GET("/audit", auditHandler.List)
		protected.GET("/audit/export/pdf", auditHandler.ExportPDF)
		protected.GET("/audit/export/txt", auditHandler.ExportTXT)

		if cfg.Dashboard.Enabled {
			protected.GET("/dashboard", dashboardHandler.Stats)
		}
	}

	admin := protected.Group("")
	admin.Use(middleware.RequireSuperuser())
	{
		admin.POST("/users", userHandler.Create)
		admin.GET("/users", userHandler.List)
		admin.GET("/users/:id", userHandler.Get)
		admin.PUT("/users/:id", userHandler.Update)
		admin.DELETE("/users/:id", userHandler.Delete)
		admin.POST("/users/:id/reactivate", userHandler.Reactivate)

		admin.GET("/ips", ipHandler.List)
		admin.PUT("/ips", ipHandler.Upsert)
		admin.GET("/ips/active", ipHandler.ActiveDevices)
		admin.PATCH("/ips/:address", ipHandler.SetAllowed)
		admin.DELETE("/ips/:address", ipHandler.Delete)

		if cfg.Backup.Enabled {
			admin.GET("/backup", backupHandler.Export)
			admin.POST("/backup/restore", backupHandler.Restore)
		}
	}

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
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
