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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/campus-voice-api/api/swagger"
	"github.com/noah-isme/campus-voice-api/internal/anonymizer"
	"github.com/noah-isme/campus-voice-api/internal/handler"
	"github.com/noah-isme/campus-voice-api/internal/hierarchy"
	"github.com/noah-isme/campus-voice-api/internal/middleware"
	"github.com/noah-isme/campus-voice-api/internal/models"
	"github.com/noah-isme/campus-voice-api/internal/moderation"
	"github.com/noah-isme/campus-voice-api/internal/repository"
	"github.com/noah-isme/campus-voice-api/internal/service"
	"github.com/noah-isme/campus-voice-api/pkg/cache"
	"github.com/noah-isme/campus-voice-api/pkg/config"
	"github.com/noah-isme/campus-voice-api/pkg/database"
	"github.com/noah-isme/campus-voice-api/pkg/jobs"
	"github.com/noah-isme/campus-voice-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-voice-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-voice-api/pkg/middleware/requestid"
	"github.com/noah-isme/campus-voice-api/pkg/storage"
)

// @title Campus Voice API
// @version 0.1.0
// @description Anonymous grievance intake, escalation, and tracking
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard cache disabled", "error", err)
		redisClient = nil
	}

	evidenceStore, err := storage.NewLocalStore(cfg.Evidence.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init evidence storage", "error", err)
	}

	userRepo := repository.NewUserRepository(db)
	issueRepo := repository.NewIssueRepository(db)
	updateRepo := repository.NewUpdateRepository(db)
	saltRepo := repository.NewSaltRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	tokens := anonymizer.New(saltRepo)
	moderator := moderation.NewClient(cfg.Moderation.BaseURL, cfg.Moderation.Model, cfg.Moderation.Timeout)
	table, err := hierarchy.FromConfig(cfg.Escalation.ChainOverrides)
	if err != nil {
		logr.Sugar().Fatalw("invalid escalation chain override", "error", err)
	}
	metrics := service.NewMetricsService()

	authService := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	feedbackService := service.NewFeedbackService(issueRepo, moderator, tokens, table, metrics, nil, logr, service.FeedbackServiceConfig{
		SLAWindow:           cfg.Escalation.SLAWindow,
		SimilarityThreshold: cfg.Dedup.SimilarityThreshold,
		CandidateLimit:      cfg.Dedup.CandidateLimit,
	})
	issueService := service.NewIssueService(issueRepo, updateRepo, tokens, table, metrics, nil, logr, service.IssueServiceConfig{
		SLAWindow: cfg.Escalation.SLAWindow,
	})
	statsService := service.NewStatsService(issueRepo, updateRepo, cacheRepo, logr, service.StatsServiceConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
	})
	evidenceSigner := storage.NewSignedURLSigner(cfg.Evidence.SignedURLSecret, cfg.Evidence.SignedURLTTL)
	evidenceService := service.NewEvidenceService(evidenceStore, evidenceSigner, logr, service.EvidenceServiceConfig{
		MaxFileSizeBytes: cfg.Evidence.MaxFileSizeBytes,
	})

	authHandler := handler.NewAuthHandler(authService)
	feedbackHandler := handler.NewFeedbackHandler(feedbackService)
	issueHandler := handler.NewIssueHandler(issueService)
	statsHandler := handler.NewStatsHandler(statsService)
	evidenceHandler := handler.NewEvidenceHandler(evidenceService)
	cronHandler := handler.NewCronHandler(issueService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)

		authed := api.Group("")
		authed.Use(middleware.JWT(authService))

		authed.POST("/feedback", middleware.RequireRoles(models.RoleStudent), feedbackHandler.Submit)
		authed.GET("/issues", issueHandler.List)
		authed.GET("/issues/:id", issueHandler.Get)
		authed.POST("/evidence", evidenceHandler.Upload)
		authed.GET("/evidence/download", evidenceHandler.Download)

		staff := authed.Group("")
		staff.Use(middleware.RequireStaff())
		staff.POST("/issues/:id/updates", issueHandler.AddUpdate)
		staff.POST("/issues/:id/escalate", issueHandler.Escalate)
		staff.POST("/issues/:id/resolve", issueHandler.Resolve)

		oversight := authed.Group("")
		oversight.Use(middleware.RequireRoles(models.RoleAdmin, models.RolePrincipal))
		oversight.GET("/issues/all", issueHandler.ListAll)
		oversight.GET("/stats/dashboard", statsHandler.Dashboard)
		if cfg.Exports.Enabled {
			oversight.GET("/stats/export", statsHandler.Export)
		}
		oversight.POST("/cron/check-escalation", cronHandler.CheckEscalation)
	}

	var sweeper *jobs.Scheduler
	if cfg.Escalation.SweepEnabled {
		sweeper = jobs.NewScheduler("sla-sweep", func(ctx context.Context, now time.Time) error {
			_, _, err := issueService.TrySweep(ctx, now)
			return err
		}, jobs.SchedulerConfig{Interval: cfg.Escalation.SweepInterval, Logger: logr})
		sweeper.Start(context.Background())
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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("shutting down")
	if sweeper != nil {
		sweeper.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
