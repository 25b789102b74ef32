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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-electives-api/api/swagger"
	"github.com/noah-isme/sma-electives-api/internal/handler"
	"github.com/noah-isme/sma-electives-api/internal/middleware"
	"github.com/noah-isme/sma-electives-api/internal/models"
	"github.com/noah-isme/sma-electives-api/internal/repository"
	"github.com/noah-isme/sma-electives-api/internal/service"
	"github.com/noah-isme/sma-electives-api/pkg/cache"
	"github.com/noah-isme/sma-electives-api/pkg/config"
	"github.com/noah-isme/sma-electives-api/pkg/database"
	"github.com/noah-isme/sma-electives-api/pkg/jobs"
	"github.com/noah-isme/sma-electives-api/pkg/logger"
	"github.com/noah-isme/sma-electives-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/sma-electives-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-electives-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-electives-api/pkg/ratelimit"
)

// @title SMA Electives API
// @version 1.0.0
// @description Elective enrollment for upper secondary students
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	location, err := time.LoadLocation(cfg.Enrollment.Timezone)
	if err != nil {
		logr.Warn("unknown enrollment timezone, using UTC", zap.String("timezone", cfg.Enrollment.Timezone), zap.Error(err))
		location = time.UTC
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	var store repository.CacheStore
	if redisClient != nil {
		store = cache.NewRedisStore(redisClient, "electives:")
	} else {
		memory := cache.NewMemoryStore()
		go sweep(ctx, memory, cfg.Enrollment.LookupCacheTTL)
		store = memory
	}
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(store, logr), metrics, cfg.Enrollment.LookupCacheTTL, logr, true)

	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	electiveRepo := repository.NewElectiveRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	userRepo := repository.NewUserRepository(db)

	identitySvc := service.NewIdentityService(studentRepo, cacheSvc, logr)
	catalogSvc := service.NewCatalogService(classRepo, electiveRepo, cacheSvc, logr)
	limits := service.CapacityLimits{Elective: cfg.Enrollment.ElectiveCapacity, GE: cfg.Enrollment.GECapacity}
	window := service.AdmissionWindow{ProcessYear: cfg.Enrollment.ProcessYear, Level: cfg.Enrollment.Level}

	smtp := mailer.NewSMTPMailer(cfg.Mail)
	notifier := service.NewNotificationService(smtp, location, metrics, logr)
	retryQueue := jobs.NewQueue[mailer.Message]("confirmation-email", notifier.Deliver, jobs.QueueConfig{
		Workers:    cfg.Mail.RetryWorkers,
		MaxRetries: cfg.Mail.RetryMax,
		RetryDelay: cfg.Mail.RetryDelay,
		Logger:     logr,
		OnDrop: func(jobID string, err error) {
			logr.Error("confirmation email abandoned", zap.String("job_id", jobID), zap.Error(err))
		},
	})
	if smtp.Enabled() {
		retryQueue.Start(ctx)
		defer retryQueue.Stop()
		notifier.UseRetryQueue(retryQueue)
	} else {
		logr.Warn("smtp not configured, confirmation emails disabled")
	}

	engine := service.NewRulesEngine(identitySvc, catalogSvc, limits)
	admissionSvc := service.NewAdmissionService(engine, enrollmentRepo, notifier, window, metrics, logr)
	rosterSvc := service.NewRosterService(enrollmentRepo, window, limits, location, logr, nil, nil)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	var limiter middleware.Limiter
	if cfg.RateLimit.Enabled {
		if redisClient == nil {
			logr.Warn("rate limiting requires redis, submissions are not throttled")
		} else {
			limiter = ratelimit.NewRedisLimiter(redisClient, "electives:ratelimit:", cfg.RateLimit.Submissions, cfg.RateLimit.Window)
		}
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics"))

	metricsHandler := handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient))
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	enrollmentHandler := handler.NewEnrollmentHandler(admissionSvc, catalogSvc, validate)
	authHandler := handler.NewAuthHandler(authSvc)
	adminHandler := handler.NewAdminHandler(rosterSvc, metrics, logr, catalogSvc, identitySvc)

	api := r.Group(cfg.APIPrefix)
	enrollment := api.Group("/enrollment")
	enrollment.GET("/form", enrollmentHandler.Form)
	enrollment.POST("/validate", enrollmentHandler.Validate)
	enrollment.POST("/submissions", middleware.RateLimit(limiter, logr), enrollmentHandler.Submit)

	api.POST("/auth/login", authHandler.Login)
	api.GET("/auth/me", middleware.JWT(authSvc), authHandler.Me)

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	admin.GET("/enrollments", adminHandler.Enrollments)
	admin.GET("/enrollments/export", adminHandler.Export)
	admin.GET("/capacity", adminHandler.Capacity)
	admin.GET("/metrics", adminHandler.Metrics)
	admin.POST("/cache/invalidate", adminHandler.InvalidateCache)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.Int("process_year", window.ProcessYear),
			zap.String("enrollment_level", window.Level),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}

func sweep(ctx context.Context, store *cache.MemoryStore, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Sweep()
		}
	}
}
