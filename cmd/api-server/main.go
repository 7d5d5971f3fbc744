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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/school-site-api/api/swagger"
	"github.com/noah-isme/school-site-api/internal/handler"
	"github.com/noah-isme/school-site-api/internal/middleware"
	"github.com/noah-isme/school-site-api/internal/models"
	"github.com/noah-isme/school-site-api/internal/repository"
	"github.com/noah-isme/school-site-api/internal/service"
	"github.com/noah-isme/school-site-api/pkg/cache"
	"github.com/noah-isme/school-site-api/pkg/config"
	"github.com/noah-isme/school-site-api/pkg/database"
	"github.com/noah-isme/school-site-api/pkg/export"
	"github.com/noah-isme/school-site-api/pkg/jobs"
	"github.com/noah-isme/school-site-api/pkg/logger"
	"github.com/noah-isme/school-site-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/school-site-api/pkg/middleware/cors"
	ratelimitmiddleware "github.com/noah-isme/school-site-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/school-site-api/pkg/middleware/requestid"
	"github.com/noah-isme/school-site-api/pkg/storage"
)

// @title School Site API
// @version 1.0.0
// @description Content and communication backend for the school website
// @BasePath /
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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare upload storage", "error", err)
	}

	app, err := buildApplication(cfg, logr, db, redisClient, store)
	if err != nil {
		logr.Sugar().Fatalw("failed to build application", "error", err)
	}

	queueCtx, queueCancel := context.WithCancel(context.Background())
	app.queue.Start(queueCtx)

	router := buildRouter(cfg, logr, app)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}

	// Let in-flight newsletter dispatches drain before the queue stops.
	app.queue.Stop()
	queueCancel()
}

// application bundles the wired handlers and the background queue.
type application struct {
	queue *jobs.Queue

	metricsService *service.MetricsService
	contentCache   *service.ContentCacheService
	authService    *service.AuthService
	userRepo       *repository.UserRepository

	auth       *handler.AuthHandler
	documents  *handler.DocumentHandler
	staff      *handler.StaffHandler
	gallery    *handler.GalleryHandler
	terms      *handler.TermHandler
	calendar   *handler.CalendarHandler
	newsletter *handler.NewsletterHandler
	family     *handler.FamilyHandler
	news       *handler.NewsHandler
	events     *handler.EventHandler
	site       *handler.SiteHandler
	metrics    *handler.MetricsHandler
}

func buildApplication(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client, store *storage.LocalStorage) (*application, error) {
	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	galleryRepo := repository.NewGalleryRepository(db)
	termRepo := repository.NewTermRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	newsletterRepo := repository.NewNewsletterRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	newsRepo := repository.NewNewsRepository(db)
	eventRepo := repository.NewEventRepository(db)
	siteRepo := repository.NewSiteRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsService := service.NewMetricsService()
	contentCache := service.NewContentCacheService(cacheRepo, metricsService, cfg.SiteCache.TTL, logr, cfg.SiteCache.Enabled)

	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)
	limits := service.UploadLimits{
		MaxDocumentBytes: cfg.Uploads.MaxDocumentBytes,
		MaxImageBytes:    cfg.Uploads.MaxImageBytes,
		DocumentMIMEs:    cfg.Uploads.DocumentMIMEs,
		ImageMIMEs:       cfg.Uploads.ImageMIMEs,
	}

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	documentService := service.NewDocumentService(documentRepo, store, signer, userRepo, validate, logr, limits)
	staffService := service.NewStaffService(staffRepo, store, validate, logr, limits)
	galleryService := service.NewGalleryService(galleryRepo, store, validate, logr, limits)
	termService := service.NewTermService(termRepo, validate, logr)
	calendarService := service.NewCalendarService(calendarRepo, termRepo, export.NewPDFExporter(), validate, logr)
	familyService := service.NewFamilyService(familyRepo, validate, logr)
	newsService := service.NewNewsService(newsRepo, validate, logr)
	eventService := service.NewEventService(eventRepo, validate, logr)
	siteService := service.NewSiteService(siteRepo, validate, logr)

	mail := mailer.New(cfg.Mailer, logr)

	queue := jobs.NewQueue("newsletter", nil, jobs.QueueConfig{
		Workers:    1,
		BufferSize: cfg.Newsletter.BufferSize,
		Logger:     logr,
	})
	newsletterService := service.NewNewsletterService(
		newsletterRepo, familyRepo, queue, mail, store, userRepo, validate, logr, cfg.Newsletter.Workers,
	).WithMetrics(metricsService)
	queue.SetHandler(newsletterService.DispatchHandler)

	return &application{
		queue:          queue,
		metricsService: metricsService,
		contentCache:   contentCache,
		authService:    authService,
		userRepo:       userRepo,

		auth:       handler.NewAuthHandler(authService),
		documents:  handler.NewDocumentHandler(documentService, metricsService),
		staff:      handler.NewStaffHandler(staffService),
		gallery:    handler.NewGalleryHandler(galleryService),
		terms:      handler.NewTermHandler(termService),
		calendar:   handler.NewCalendarHandler(calendarService),
		newsletter: handler.NewNewsletterHandler(newsletterService),
		family:     handler.NewFamilyHandler(familyService),
		news:       handler.NewNewsHandler(newsService),
		events:     handler.NewEventHandler(eventService),
		site:       handler.NewSiteHandler(siteService),
		metrics:    handler.NewMetricsHandler(metricsService, db, redisClient),
	}, nil
}

func buildRouter(cfg *config.Config, logr *zap.Logger, app *application) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(app.metricsService))

	generalLimiter := ratelimitmiddleware.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	strictLimiter := ratelimitmiddleware.PerMinute(cfg.RateLimit.StrictPerMinute, cfg.RateLimit.StrictBurst)
	r.Use(generalLimiter.Middleware())

	r.GET("/health", app.metrics.Health)
	r.GET("/ready", app.metrics.Ready)
	r.GET("/metrics", app.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.Static("/uploads", cfg.Uploads.StorageDir)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.Use(strictLimiter.Middleware())
	{
		auth.GET("/setup", app.auth.SetupStatus)
		auth.POST("/setup", app.auth.Setup)
		auth.POST("/login", app.auth.Login)
		auth.GET("/me", middleware.JWT(app.authService), app.auth.Me)
		auth.POST("/change-password", middleware.JWT(app.authService), app.auth.ChangePassword)
	}

	public := api.Group("")
	public.Use(middleware.CachePublic(app.contentCache))
	{
		public.GET("/documents", app.documents.ListPublic)
		public.GET("/documents/:id", app.documents.GetPublic)
		public.GET("/staff", app.staff.ListPublic)
		public.GET("/gallery", app.gallery.ListPublic)
		public.GET("/gallery/albums", app.gallery.Albums)
		public.GET("/news", app.news.ListPublic)
		public.GET("/news/:id", app.news.GetPublic)
		public.GET("/events", app.events.Upcoming)
		public.GET("/board", app.site.ListBoard)
		public.GET("/settings", app.site.Settings)
		public.GET("/terms", app.terms.List)
		public.GET("/terms/active", app.terms.GetActive)
		public.GET("/calendar", app.calendar.ListPublic)
	}

	// Signed downloads and the PDF export stream binary payloads, so they
	// stay out of the JSON response cache.
	api.GET("/documents/download/:token", app.documents.Download)
	api.GET("/documents/:id/signed-url", app.documents.SignedURL)
	api.GET("/calendar/export", app.calendar.ExportPDF)

	admin := api.Group("/admin")
	admin.Use(middleware.JWT(app.authService))
	admin.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleEditor))
	admin.Use(middleware.InvalidatePublicCache(app.contentCache))
	{
		admin.POST("/auth/register", middleware.RequireRoles(models.RoleSuperAdmin), app.auth.Register)

		admin.POST("/documents", strictLimiter.Middleware(), app.documents.Upload)
		admin.GET("/documents", app.documents.List)
		admin.GET("/documents/categories", app.documents.Categories)
		admin.GET("/documents/stats", app.documents.Stats)
		admin.GET("/documents/:id", app.documents.Get)
		admin.PUT("/documents/:id", app.documents.Update)
		admin.PATCH("/documents/:id/publish", app.documents.Publish)
		admin.DELETE("/documents/:id", app.documents.Delete)

		content := admin.Group("")
		content.Use(middleware.Audit(app.userRepo, models.AuditActionContentMutation, "content"))
		{
			content.GET("/staff", app.staff.List)
			content.POST("/staff", app.staff.Create)
			content.GET("/staff/:id", app.staff.Get)
			content.PUT("/staff/:id", app.staff.Update)
			content.PUT("/staff/:id/photo", strictLimiter.Middleware(), app.staff.SetPhoto)
			content.DELETE("/staff/:id", app.staff.Delete)

			content.GET("/gallery", app.gallery.List)
			content.POST("/gallery", strictLimiter.Middleware(), app.gallery.Upload)
			content.GET("/gallery/:id", app.gallery.Get)
			content.PUT("/gallery/:id", app.gallery.Update)
			content.DELETE("/gallery/:id", app.gallery.Delete)

			content.GET("/news", app.news.List)
			content.POST("/news", app.news.Create)
			content.GET("/news/:id", app.news.Get)
			content.PUT("/news/:id", app.news.Update)
			content.DELETE("/news/:id", app.news.Delete)

			content.GET("/events", app.events.List)
			content.POST("/events", app.events.Create)
			content.GET("/events/:id", app.events.Get)
			content.PUT("/events/:id", app.events.Update)
			content.DELETE("/events/:id", app.events.Delete)

			content.POST("/board", app.site.CreateBoardMember)
			content.PUT("/board/:id", app.site.UpdateBoardMember)
			content.DELETE("/board/:id", app.site.DeleteBoardMember)

			content.GET("/settings", app.site.Settings)
			content.GET("/settings/:key", app.site.Setting)
			content.PUT("/settings", app.site.PutSetting)
			content.DELETE("/settings/:key", app.site.DeleteSetting)
		}

		calendarAdmin := admin.Group("")
		calendarAdmin.Use(middleware.Audit(app.userRepo, models.AuditActionCalendarMutation, "calendar"))
		{
			calendarAdmin.POST("/terms", app.terms.Create)
			calendarAdmin.GET("/terms/:id", app.terms.Get)
			calendarAdmin.PUT("/terms/:id", app.terms.Update)
			calendarAdmin.PATCH("/terms/:id/activate", app.terms.SetActive)
			calendarAdmin.DELETE("/terms/:id", app.terms.Delete)

			calendarAdmin.GET("/calendar", app.calendar.List)
			calendarAdmin.POST("/calendar", app.calendar.Create)
			calendarAdmin.GET("/calendar/:id", app.calendar.Get)
			calendarAdmin.PUT("/calendar/:id", app.calendar.Update)
			calendarAdmin.DELETE("/calendar/:id", app.calendar.Delete)
		}

		admin.GET("/parents", app.family.ListParents)
		admin.POST("/parents", app.family.CreateParent)
		admin.GET("/parents/:id", app.family.GetParent)
		admin.PUT("/parents/:id", app.family.UpdateParent)
		admin.DELETE("/parents/:id", app.family.DeleteParent)
		admin.GET("/parents/:id/students", app.family.Students)
		admin.POST("/parents/:id/students", app.family.AddStudent)
		admin.PUT("/parents/:id/students/:studentId", app.family.UpdateStudent)
		admin.DELETE("/parents/:id/students/:studentId", app.family.RemoveStudent)

		admin.GET("/newsletters", app.newsletter.List)
		admin.POST("/newsletters", app.newsletter.Create)
		admin.GET("/newsletters/:id", app.newsletter.Get)
		admin.PUT("/newsletters/:id", app.newsletter.Update)
		admin.DELETE("/newsletters/:id", app.newsletter.Delete)
		admin.POST("/newsletters/:id/send", app.newsletter.Send)
		admin.GET("/newsletters/:id/recipients", app.newsletter.Recipients)
	}

	return r
}
