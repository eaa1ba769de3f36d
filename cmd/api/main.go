package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/unifyp/fyp-api/api/swagger"
	"github.com/unifyp/fyp-api/internal/handler"
	"github.com/unifyp/fyp-api/internal/middleware"
	"github.com/unifyp/fyp-api/internal/models"
	"github.com/unifyp/fyp-api/internal/repository"
	"github.com/unifyp/fyp-api/internal/service"
	"github.com/unifyp/fyp-api/pkg/cache"
	"github.com/unifyp/fyp-api/pkg/config"
	"github.com/unifyp/fyp-api/pkg/database"
	"github.com/unifyp/fyp-api/pkg/logger"
	"github.com/unifyp/fyp-api/pkg/middleware/cors"
	"github.com/unifyp/fyp-api/pkg/middleware/requestid"
	"github.com/unifyp/fyp-api/pkg/storage"
)

// @title FYP Platform API
// @version 1.0.0
// @description Final-year-project topic application and supervision API.
// @BasePath /api/v1
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}

	log, err := logger.New(cfg)
	if err != nil {
		panic(fmt.Sprintf("init logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	topicRepo := repository.NewTopicRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Metrics and cache. Redis being down degrades the dashboard cache
	// to a pass-through rather than failing startup.
	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, caching disabled", zap.Error(err))
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Dashboard.CacheTTL, log, false)
	} else {
		defer func() { _ = redisClient.Close() }()
		cacheRepo := repository.NewCacheRepository(redisClient, log)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, log, true)
	}

	// Document storage and signed downloads.
	store, err := storage.NewLocalStorage(cfg.Submissions.StorageDir)
	if err != nil {
		log.Fatal("init submission storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Submissions.SignedURLSecret, cfg.Submissions.SignedURLTTL)

	// Services.
	authSvc := service.NewAuthService(userRepo, auditRepo, validate, log, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "fyp-api",
		Audience:           []string{"fyp-platform"},
	})
	topicSvc := service.NewTopicService(topicRepo, auditRepo, validate, log)
	applicationSvc := service.NewApplicationService(applicationRepo, topicRepo, assignmentRepo, auditRepo, validate, log, service.ApplicationServiceConfig{
		MaxPending: cfg.Applications.MaxPending,
	})
	assignmentSvc := service.NewAssignmentService(assignmentRepo, topicRepo, auditRepo, validate, log)
	submissionSvc := service.NewSubmissionService(submissionRepo, assignmentRepo, store, signer, auditRepo, validate, log, service.SubmissionServiceConfig{
		MaxFileSizeBytes: cfg.Submissions.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Submissions.AllowedMIMEs,
	})
	feedbackSvc := service.NewFeedbackService(feedbackRepo, submissionRepo, auditRepo, validate, log)
	activitySvc := service.NewActivityService(auditRepo, log)
	userSvc := service.NewUserService(userRepo, log)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Users:        userRepo,
		Topics:       topicRepo,
		Applications: applicationRepo,
		Assignments:  assignmentRepo,
		Submissions:  submissionRepo,
		Cache:        cacheSvc,
		Logger:       log,
		Config:       service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	topicHandler := handler.NewTopicHandler(topicSvc)
	applicationHandler := handler.NewApplicationHandler(applicationSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc)
	feedbackHandler := handler.NewFeedbackHandler(feedbackSvc)
	activityHandler := handler.NewActivityHandler(activitySvc)
	userHandler := handler.NewUserHandler(userSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc, metricsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.New())
	r.Use(logger.GinMiddleware(log))
	r.Use(cors.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	// Signed token downloads carry their own authorization.
	api.GET("/submissions/download",
		middleware.Audit(auditRepo, "SUBMISSION_DOWNLOAD", "submissions"),
		submissionHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	topics := protected.Group("/topics")
	{
		topics.GET("", topicHandler.List)
		topics.GET("/:id", topicHandler.Get)
		topics.POST("", middleware.RequireRoles(models.RoleSupervisor), topicHandler.Create)
		topics.PUT("/:id", middleware.RequireRoles(models.RoleSupervisor), topicHandler.Update)
		topics.POST("/:id/publish", middleware.RequireRoles(models.RoleSupervisor), topicHandler.Publish)
		topics.POST("/:id/archive", middleware.RequireRoles(models.RoleSupervisor), topicHandler.Archive)
	}

	applications := protected.Group("/applications")
	{
		applications.GET("", applicationHandler.List)
		applications.POST("", middleware.RequireRoles(models.RoleStudent), applicationHandler.Apply)
		applications.POST("/:id/approve", middleware.RequireRoles(models.RoleSupervisor), applicationHandler.Approve)
		applications.POST("/:id/reject", middleware.RequireRoles(models.RoleSupervisor), applicationHandler.Reject)
		applications.DELETE("/:id", middleware.RequireRoles(models.RoleStudent), applicationHandler.Withdraw)
	}

	assignments := protected.Group("/assignments")
	{
		assignments.GET("", assignmentHandler.List)
		assignments.POST("/:id/complete", middleware.RequireRoles(models.RoleSupervisor), assignmentHandler.Complete)
		assignments.POST("/:id/reassign", middleware.RequireRoles(models.RoleAdmin), assignmentHandler.Reassign)
		assignments.GET("/:id/submissions", submissionHandler.ListByAssignment)
		assignments.POST("/:id/submissions", middleware.RequireRoles(models.RoleSupervisor), submissionHandler.Schedule)
	}

	submissions := protected.Group("/submissions")
	{
		submissions.POST("/:id/upload", middleware.RequireRoles(models.RoleStudent), submissionHandler.Upload)
		submissions.GET("/:id/download", submissionHandler.GrantDownload)
		submissions.POST("/:id/feedback", middleware.RequireRoles(models.RoleSupervisor), feedbackHandler.Create)
		submissions.GET("/:id/feedback", feedbackHandler.ListBySubmission)
	}

	users := protected.Group("/users")
	users.Use(middleware.RequireRoles(models.RoleAdmin))
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
	}

	activity := protected.Group("/activity")
	activity.Use(middleware.RequireRoles(models.RoleAdmin))
	{
		activity.GET("", activityHandler.List)
		activity.GET("/export",
			middleware.Audit(auditRepo, "ACTIVITY_EXPORT", "activity"),
			activityHandler.Export)
	}

	if cfg.Dashboard.Enabled {
		dashboard := protected.Group("/dashboard")
		dashboard.Use(middleware.RequireRoles(models.RoleAdmin))
		{
			dashboard.GET("", dashboardHandler.Summary)
			dashboard.GET("/system", dashboardHandler.System)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Info("starting api server",
		zap.String("addr", addr),
		zap.String("env", cfg.Env),
		zap.Duration("jwt_expiry", cfg.JWT.Expiration),
		zap.Bool("dashboard", cfg.Dashboard.Enabled),
	)

	if err := r.Run(addr); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
