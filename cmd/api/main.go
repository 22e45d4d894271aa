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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/volunteer-hub-api/api/swagger"
	"github.com/noah-isme/volunteer-hub-api/internal/handler"
	"github.com/noah-isme/volunteer-hub-api/internal/middleware"
	"github.com/noah-isme/volunteer-hub-api/internal/models"
	"github.com/noah-isme/volunteer-hub-api/internal/repository"
	"github.com/noah-isme/volunteer-hub-api/internal/service"
	"github.com/noah-isme/volunteer-hub-api/pkg/cache"
	"github.com/noah-isme/volunteer-hub-api/pkg/config"
	"github.com/noah-isme/volunteer-hub-api/pkg/database"
	"github.com/noah-isme/volunteer-hub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/volunteer-hub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/volunteer-hub-api/pkg/middleware/requestid"
)

// @title Volunteer Hub API
// @version 0.1.0
// @description Attendance verification and rewards settlement for volunteer activities
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	signupRepo := repository.NewSignupRepository(db)
	pointsRepo := repository.NewPointsRepository(db)
	recordRepo := repository.NewRecordRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	tokenRepo := repository.NewCheckTokenRepository(redisClient)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, cfg.JWT)
	notificationSvc := service.NewNotificationService(notificationRepo, cfg.Notifications, metricsSvc, logr)
	tokenSvc := service.NewCheckTokenService(tokenRepo, cfg.CheckTokens, logr)
	checkSvc := service.NewCheckService(activityRepo, signupRepo, tokenSvc, notificationSvc, metricsSvc, validate, logr)
	signupSvc := service.NewSignupService(signupRepo, activityRepo, notificationSvc, validate, logr)
	pointsSvc := service.NewPointsService(pointsRepo, userRepo, recordRepo, validate, logr)
	recordSvc := service.NewRecordService(recordRepo, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	checkHandler := handler.NewCheckHandler(checkSvc)
	signupHandler := handler.NewSignupHandler(signupSvc)
	pointsHandler := handler.NewPointsHandler(pointsSvc)
	recordHandler := handler.NewRecordHandler(recordSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Profile)

	students := authed.Group("")
	students.Use(middleware.RequireRoles(models.RoleStudent))
	students.POST("/signups", signupHandler.Create)
	students.DELETE("/signups/:id", signupHandler.Delete)
	students.POST("/checks/in", checkHandler.CheckIn)
	students.POST("/checks/out", checkHandler.CheckOut)
	students.GET("/records/mine", recordHandler.ListMine)
	students.GET("/records/stats", recordHandler.Stats)
	students.GET("/records/export", recordHandler.Export)
	students.GET("/points/me", pointsHandler.MyStats)
	students.GET("/points/me/ledger", pointsHandler.MyLedger)

	authed.GET("/signups/mine", signupHandler.ListMine)
	authed.GET("/points/ranking", pointsHandler.Ranking)
	authed.GET("/records/:id", recordHandler.Get)
	authed.GET("/notifications", notificationHandler.List)
	authed.GET("/notifications/unread-count", notificationHandler.UnreadCount)
	authed.PUT("/notifications/:id/read", notificationHandler.MarkRead)

	organizers := authed.Group("")
	organizers.Use(middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin))
	organizers.GET("/activities/:id/signups", signupHandler.ListForActivity)
	organizers.PUT("/signups/:id/approve", signupHandler.Approve)
	organizers.PUT("/signups/:id/reject", signupHandler.Reject)
	organizers.POST("/activities/:id/tokens/check-in", checkHandler.CreateCheckInToken)
	organizers.POST("/activities/:id/tokens/check-out", checkHandler.CreateCheckOutToken)
	organizers.GET("/activities/:id/pending-check-ins", checkHandler.PendingCheckIn)
	organizers.GET("/activities/:id/pending-check-outs", checkHandler.PendingCheckOut)
	organizers.GET("/reviews", checkHandler.SearchReviews)
	organizers.PUT("/reviews/:id", checkHandler.Review)
	organizers.GET("/records/managed", recordHandler.ListManaged)

	admins := authed.Group("")
	admins.Use(middleware.RequireRoles(models.RoleAdmin))
	admins.POST("/points/adjustments", pointsHandler.Adjust)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
