// Package main runs the event registration HTTP server with WebSocket capacity feed and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eventlane/backend/config"
	"github.com/eventlane/backend/internal/accessitems"
	"github.com/eventlane/backend/internal/auth"
	"github.com/eventlane/backend/internal/emaillogs"
	"github.com/eventlane/backend/internal/engine"
	"github.com/eventlane/backend/internal/events"
	"github.com/eventlane/backend/internal/exports"
	"github.com/eventlane/backend/internal/middleware"
	"github.com/eventlane/backend/internal/organizations"
	"github.com/eventlane/backend/internal/payments"
	"github.com/eventlane/backend/internal/pricingrules"
	"github.com/eventlane/backend/internal/realtime"
	"github.com/eventlane/backend/internal/registrations"
	"github.com/eventlane/backend/internal/sponsorships"
	"github.com/eventlane/backend/internal/worker"
	"github.com/eventlane/backend/pkg/database"
	"github.com/eventlane/backend/pkg/queue"
	"github.com/eventlane/backend/pkg/redis"
	"github.com/eventlane/backend/pkg/response"
	"github.com/eventlane/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Redis backs the job queue and the cross-instance capacity feed. The
	// server still boots without it: emails and exports queue nowhere and
	// the WebSocket feed stays single-instance.
	var jobQueue *queue.Queue
	var redisPubSub *realtime.RedisPubSub
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		jobQueue = queue.NewQueue(rdb.Client, logger)
		redisPubSub = realtime.NewRedisPubSub(rdb.Client, logger)
	}

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	var hub *realtime.Hub
	if redisPubSub != nil {
		hub = realtime.NewHub(logger, redisPubSub, redisPubSub)
	} else {
		hub = realtime.NewHub(logger, nil, nil)
	}

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Organizations
	orgRepo := organizations.NewRepository(pool)
	orgHandler := organizations.NewHandler(orgRepo)

	// Events
	eventRepo := events.NewRepository(pool)
	eventHandler := events.NewHandler(eventRepo, orgRepo)

	// Access items, pricing rules, sponsorship codes
	itemRepo := accessitems.NewRepository(pool)
	ruleRepo := pricingrules.NewRepository(pool)
	sponsorshipRepo := sponsorships.NewRepository(pool)

	// Registration engine: selection validation, pricing, capacity, amendments
	registrationRepo := registrations.NewRepository(pool)
	eng := engine.New(eventRepo, itemRepo, ruleRepo, sponsorshipRepo, registrationRepo, logger)

	itemHandler := accessitems.NewHandler(itemRepo, eventRepo, orgRepo, eng, logger)
	ruleHandler := pricingrules.NewHandler(ruleRepo, eventRepo, orgRepo)
	sponsorshipHandler := sponsorships.NewHandler(sponsorshipRepo, eventRepo, orgRepo, logger)
	registrationHandler := registrations.NewHandler(registrationRepo, eng, eventRepo, itemRepo, orgRepo, jobQueue, hub, logger)

	// Payments
	paymentRepo := payments.NewRepository(pool)
	paymentHandler := payments.NewHandler(paymentRepo, registrationRepo, eventRepo, orgRepo, jobQueue, logger)
	stripeWebhook := payments.NewWebhookHandler(paymentRepo, registrationRepo, cfg.Stripe.WebhookSecret, logger)

	// Roster exports
	exportRepo := exports.NewRepository(pool)
	exportHandler := exports.NewHandler(exportRepo, eventRepo, orgRepo, jobQueue, s3Client, logger)

	// Email logs
	emailLogRepo := emaillogs.NewRepository(pool)
	emailLogHandler := emaillogs.NewHandler(emailLogRepo, eventRepo, orgRepo, jobQueue, logger)

	// Capacity snapshot sent on WebSocket connect
	snapshot := func(ctx context.Context, eventID uuid.UUID) (interface{}, error) {
		return registrations.CapacitySnapshot(ctx, eventRepo, itemRepo, eventID)
	}

	// In-process job worker (emails, roster exports). The dedicated worker
	// binary runs the same processors; the Redis list hands each job to one
	// consumer.
	var jobWorker *worker.Worker
	if jobQueue != nil {
		var sender worker.Sender
		if cfg.Email.SMTPHost != "" {
			sender = worker.NewSMTPSender(cfg.Email)
		} else {
			sender = worker.NewLogSender(logger)
		}
		emailProcessor := worker.NewEmailProcessor(emailLogRepo, sender, logger)
		exportProcessor := worker.NewExportProcessor(exportRepo, registrationRepo, s3Client, logger)
		jobWorker = worker.New(jobQueue, emailProcessor, exportProcessor, logger)
	}

	orgAccess := events.RequireEventOrgAccess(eventRepo, orgRepo)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public attendee surface. OptionalJWT lets organizers see their drafts
	// through the same routes; a registration's UUID acts as its access key.
	public := router.Group("")
	public.Use(middleware.OptionalJWT(jwtService))
	{
		public.GET("/events", eventHandler.List)
		public.GET("/events/:id", eventHandler.GetByID)
		public.GET("/events/:id/access-items", itemHandler.ListGrouped)
		public.POST("/events/:id/price-quote", registrationHandler.Quote)
		public.POST("/events/:id/registrations", registrationHandler.Create)
		public.GET("/registrations/:id", registrationHandler.GetByID)
		public.PATCH("/registrations/:id", registrationHandler.Amend)
		public.GET("/registrations/:id/amendments", registrationHandler.ListAmendments)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users (admin only; for org member management)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)

		// Organizations
		api.GET("/organizations", orgHandler.ListMyOrganizations)
		api.POST("/organizations", orgHandler.CreateOrganization)
		api.POST("/organizations/join", orgHandler.JoinOrganization)
		api.GET("/organizations/:id/members", orgHandler.ListMembers)

		// Events
		api.POST("/events", eventHandler.Create)
		api.PATCH("/events/:id", eventHandler.Update)
		api.PATCH("/events/:id/status", eventHandler.UpdateStatus)
		api.DELETE("/events/:id", eventHandler.Delete)
		api.GET("/events/:id/stats", eventHandler.GetStats)

		// Event-scoped organizer resources
		api.POST("/events/:id/access-items", orgAccess, itemHandler.Create)
		api.GET("/events/:id/access-items/all", orgAccess, itemHandler.ListAll)
		api.POST("/events/:id/pricing-rules", orgAccess, ruleHandler.Create)
		api.GET("/events/:id/pricing-rules", orgAccess, ruleHandler.ListByEvent)
		api.POST("/events/:id/sponsorship-codes", orgAccess, sponsorshipHandler.Create)
		api.GET("/events/:id/sponsorship-codes", orgAccess, sponsorshipHandler.ListByEvent)
		api.GET("/events/:id/registrations", orgAccess, registrationHandler.ListByEvent)
		api.GET("/events/:id/payments", orgAccess, paymentHandler.ListByEvent)
		api.POST("/events/:id/exports", orgAccess, exportHandler.Create)
		api.GET("/events/:id/exports", orgAccess, exportHandler.ListByEvent)
		api.GET("/events/:id/email-logs", orgAccess, emailLogHandler.ListByEvent)

		// Access items
		api.GET("/access-items/:id", itemHandler.GetByID)
		api.PATCH("/access-items/:id", itemHandler.Update)
		api.DELETE("/access-items/:id", itemHandler.Delete)
		api.PUT("/access-items/:id/requirements", itemHandler.SetRequirements)

		// Pricing rules
		api.PATCH("/pricing-rules/:id", ruleHandler.Update)
		api.DELETE("/pricing-rules/:id", ruleHandler.Delete)

		// Sponsorship codes
		api.PATCH("/sponsorship-codes/:id", sponsorshipHandler.Update)
		api.DELETE("/sponsorship-codes/:id", sponsorshipHandler.Delete)

		// Registrations (organizer actions)
		api.POST("/registrations/:id/check-in", registrationHandler.CheckIn)
		api.DELETE("/registrations/:id", registrationHandler.Delete)
		api.POST("/registrations/:id/payments", paymentHandler.Charge)
		api.GET("/registrations/:id/payments", paymentHandler.ListByRegistration)
		api.POST("/registrations/:id/refund", paymentHandler.Refund)

		// Roster exports
		api.GET("/exports/:id", exportHandler.GetByID)
		api.GET("/exports/:id/download-url", exportHandler.DownloadURL)
		api.DELETE("/exports/:id", exportHandler.Delete)

		// Email logs
		api.POST("/email-logs/:id/resend", emailLogHandler.Resend)
	}

	// Webhooks (no JWT; signature validated in handler when configured)
	router.POST("/webhooks/stripe", stripeWebhook.HandleStripe)

	// WebSocket capacity feed (public; event ID in query)
	router.GET("/ws", realtime.ServeWs(hub, snapshot, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if jobWorker != nil {
		go jobWorker.Run(workerCtx)
		logger.Info("job worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
