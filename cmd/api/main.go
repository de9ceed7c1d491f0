package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ugel-puno/certificados-api/api/swagger"
	"github.com/ugel-puno/certificados-api/internal/handler"
	"github.com/ugel-puno/certificados-api/internal/middleware"
	"github.com/ugel-puno/certificados-api/internal/models"
	"github.com/ugel-puno/certificados-api/internal/repository"
	"github.com/ugel-puno/certificados-api/internal/service"
	"github.com/ugel-puno/certificados-api/pkg/cache"
	"github.com/ugel-puno/certificados-api/pkg/config"
	"github.com/ugel-puno/certificados-api/pkg/database"
	"github.com/ugel-puno/certificados-api/pkg/export"
	"github.com/ugel-puno/certificados-api/pkg/jobs"
	"github.com/ugel-puno/certificados-api/pkg/logger"
	corsmiddleware "github.com/ugel-puno/certificados-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ugel-puno/certificados-api/pkg/middleware/requestid"
	"github.com/ugel-puno/certificados-api/pkg/qr"
	"github.com/ugel-puno/certificados-api/pkg/storage"
)

// @title Certificados UGEL Puno API
// @version 1.0.0
// @description Issuance and public verification of official study certificates
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
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, stats caching and rate limiting disabled", "error", err)
		redisClient = nil
	}

	files, err := storage.NewLocalStorage(cfg.Storage.BaseDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init file storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
	qrGenerator := qr.NewGenerator(cfg.Verification.BaseURL, 200)

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	actaRepo := repository.NewActaRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	certRepo := repository.NewCertificateRepository(db)
	verificationRepo := repository.NewVerificationRepository(db)
	academicRepo := repository.NewAcademicRepository(db)

	// Background notifications. The enqueuer stays nil when disabled so the
	// services skip dispatch entirely.
	var notifications service.NotificationEnqueuer
	if cfg.Notifications.Enabled {
		queue := jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
			logr.Sugar().Infow("notification dispatched", "type", job.Type, "job_id", job.ID, "payload", job.Payload)
			return nil
		}, jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			BufferSize: cfg.Notifications.BufferSize,
			Logger:     logr,
		})
		queue.Start(context.Background())
		defer queue.Stop()
		notifications = queue
	}

	// Services.
	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "certificados-api",
		Audience:           []string{"certificados-web"},
	})
	actaService := service.NewActaService(actaRepo, academicRepo, files, signer, export.NewRosterExporter(), userRepo, notifications, validate, logr, service.ActaServiceConfig{
		MaxScanSize:  cfg.Storage.MaxScanSizeBytes,
		AllowedMIMEs: cfg.Storage.AllowedMIMEs,
		APIPrefix:    cfg.APIPrefix,
	})
	certService := service.NewCertificateService(certRepo, studentRepo, academicRepo, export.NewCSVExporter(), userRepo, notifications, metricsService, validate, logr, service.CertificateServiceConfig{})
	ocrService := service.NewOCRService(actaRepo, studentRepo, certService, certRepo, academicRepo, userRepo, metricsService, validate, logr)
	documentService := service.NewDocumentService(certService, certRepo, qrGenerator, export.NewCertificatePDF(), files, userRepo, metricsService, logr)
	signatureService := service.NewSignatureService(certRepo, certService, files, userRepo, notifications, metricsService, logr)
	verificationService := service.NewVerificationService(certRepo, certService, verificationRepo, redisClient, metricsService, logr, service.VerificationServiceConfig{
		StatsTTL: cfg.Verification.StatsCacheTTL,
	})

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	actaHandler := handler.NewActaHandler(actaService, ocrService)
	certHandler := handler.NewCertificateHandler(certService, documentService, signatureService)
	verificationHandler := handler.NewVerificationHandler(verificationService)
	academicHandler := handler.NewAcademicHandler(academicRepo)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	// Public verification surface, rate limited per client IP.
	public := api.Group("/verificar")
	public.Use(middleware.RateLimit(redisClient, 30, time.Minute))
	{
		public.GET("", verificationHandler.VerifyByHash)
		public.GET("/stats", verificationHandler.Stats)
		public.GET("/:codigo", verificationHandler.VerifyByCode)
	}

	staff := api.Group("")
	staff.Use(middleware.JWT(authService))
	{
		actas := staff.Group("/actas")
		{
			actas.GET("", actaHandler.List)
			actas.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleEditor, models.RoleMesaPartes), actaHandler.Register)
			actas.GET("/:id", actaHandler.Get)
			actas.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleEditor), actaHandler.Update)
			actas.PATCH("/:id/estado", middleware.RequireRoles(models.RoleAdmin, models.RoleEditor), actaHandler.ChangeState)
			actas.POST("/:id/ocr", middleware.RequireRoles(models.RoleAdmin, models.RoleEditor), actaHandler.IngestOCR)
			actas.POST("/:id/validar", middleware.RequireRoles(models.RoleAdmin, models.RoleEditor), actaHandler.Validate)
			actas.GET("/:id/comparar", actaHandler.Compare)
			actas.POST("/:id/nomina", actaHandler.ExportRoster)
			actas.GET("/:id/scan-url", actaHandler.ScanURL)
		}

		certs := staff.Group("/certificados")
		{
			certs.GET("", certHandler.List)
			certs.GET("/export", certHandler.ExportCSV)
			certs.GET("/:id", certHandler.Get)
			certs.POST("/:id/anular", middleware.RequireRoles(models.RoleAdmin, models.RoleDirector), certHandler.Annul)
			certs.POST("/:id/rectificar", middleware.RequireRoles(models.RoleAdmin, models.RoleDirector), certHandler.Rectify)
			certs.POST("/:id/documentos", middleware.RequireRoles(models.RoleAdmin, models.RoleEditor, models.RoleDirector), certHandler.GenerateDocuments)
			certs.POST("/:id/firmar", middleware.RequireRoles(models.RoleAdmin, models.RoleDirector), certHandler.Sign)
			certs.POST("/:id/firma-escaneada", middleware.RequireRoles(models.RoleAdmin, models.RoleDirector), certHandler.UploadSignedScan)
			certs.GET("/:id/firma", certHandler.SignatureStatus)
		}

		academic := staff.Group("/academico")
		{
			academic.GET("/anios", academicHandler.SchoolYears)
			academic.GET("/grados", academicHandler.Grades)
			academic.GET("/areas", academicHandler.Areas)
			academic.GET("/plantilla", academicHandler.Template)
			academic.GET("/institucion", academicHandler.Institution)
		}
	}

	// Scan download authenticates through its signed token instead of a JWT
	// so links can be opened from the browser directly.
	api.GET("/actas/:id/scan", actaHandler.DownloadScan)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
