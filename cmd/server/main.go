// Package main runs the event invitation HTTP server with the live dashboard and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-events/backend/config"
	"github.com/aura-events/backend/internal/approvals"
	"github.com/aura-events/backend/internal/attendance"
	"github.com/aura-events/backend/internal/auditlog"
	"github.com/aura-events/backend/internal/auth"
	"github.com/aura-events/backend/internal/checkin"
	"github.com/aura-events/backend/internal/events"
	"github.com/aura-events/backend/internal/groups"
	"github.com/aura-events/backend/internal/invitees"
	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/livedashboard"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/internal/models"
	"github.com/aura-events/backend/internal/notifications"
	"github.com/aura-events/backend/internal/reports"
	"github.com/aura-events/backend/pkg/database"
	"github.com/aura-events/backend/pkg/queue"
	"github.com/aura-events/backend/pkg/redis"
	"github.com/aura-events/backend/pkg/response"
	"github.com/aura-events/backend/pkg/storage"
)

const (
	admin     = models.RoleAdmin
	director  = models.RoleDirector
	organizer = models.RoleOrganizer
	attendant = models.RoleCheckInAttendant
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AssetsBucket:         cfg.AWS.AssetsBucket,
			ExportsBucket:        cfg.AWS.ExportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		}
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	auditRepo := auditlog.NewRepository(pool)

	// Live dashboard
	redisPubSub := livedashboard.NewRedisPubSub(rdb.Client, logger)
	hub := livedashboard.NewHub(logger, redisPubSub, redisPubSub)

	// Lifecycle
	mgr := lifecycle.NewManager(lifecycle.NewRepository(pool), logger)
	mgr.SetNotifier(notifications.NewQueueNotifier(jobQueue, logger))
	mgr.SetAuditor(auditRepo)
	mgr.SetPublisher(hub)

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Events and check-in PINs
	eventRepo := events.NewRepository(pool)
	pins := checkin.NewService(eventRepo, checkin.NewConsoleTokens(cfg.JWT.Secret, cfg.CheckIn.ConsoleTokenHours), logger)
	pins.SetAuditor(auditRepo)
	eventHandler := events.NewHandler(eventRepo, pins, mgr, s3Client, logger)
	checkinHandler := checkin.NewHandler(pins, mgr, logger)

	// Groups and contacts
	groupRepo := groups.NewRepository(pool)
	groupHandler := groups.NewHandler(groupRepo, authRepo, logger)
	inviteeRepo := invitees.NewRepository(pool)
	inviteeHandler := invitees.NewHandler(inviteeRepo, invitees.NewImporter(inviteeRepo, auditRepo, logger), logger)

	approvalHandler := approvals.NewHandler(mgr, logger)
	attendanceHandler := attendance.NewHandler(mgr, eventRepo, jobQueue, cfg.Server.PublicBaseURL, logger)
	liveHandler := livedashboard.NewHandler(eventRepo, mgr, hub, logger)
	notificationHandler := notifications.NewHandler(notifications.NewRepository(pool), logger)
	auditHandler := auditlog.NewHandler(auditRepo, logger)
	reportHandler := reports.NewHandler(reports.NewRepository(pool), eventRepo, groupRepo, mgr, logger)

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logger.Fatal("trusted proxies", zap.Error(err))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if err := rdb.Healthy(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok", "live_viewers": hub.TotalViewers()})
	})

	// Public: login, invitee portal, live dashboard
	router.POST("/auth/login", authHandler.Login)
	router.POST("/portal/verify-code", attendanceHandler.VerifyCode)
	router.POST("/portal/verify-phone", attendanceHandler.VerifyPhone)
	router.POST("/portal/confirm", attendanceHandler.PortalConfirm)
	router.GET("/portal/qr/:code", attendanceHandler.QRCode)
	live := router.Group("/live/:code")
	{
		live.GET("", liveHandler.Info)
		live.GET("/stats", liveHandler.Stats)
		live.GET("/recent", liveHandler.Recent)
		live.GET("/ws", liveHandler.Serve)
	}

	// Check-in console (event PIN, no user login)
	router.GET("/checkin/:code/info", checkinHandler.Info)
	router.POST("/checkin/:code/verify-pin", checkinHandler.VerifyPin)
	console := router.Group("/checkin/:code")
	console.Use(checkinHandler.ConsoleAuth())
	{
		console.POST("/logout", checkinHandler.Logout)
		console.GET("/stats", checkinHandler.Stats)
		console.GET("/attendees", checkinHandler.Attendees)
		console.GET("/search", checkinHandler.Search)
		console.POST("/check-in", checkinHandler.CheckIn)
		console.POST("/undo-check-in/:id", checkinHandler.UndoCheckIn)
		console.GET("/recent-checkins", checkinHandler.Recent)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)
		api.GET("/users", middleware.RequireRole(admin, director), authHandler.List)
		api.POST("/users", middleware.RequireRole(admin), authHandler.Create)
		api.PATCH("/users/:id", middleware.RequireRole(admin), authHandler.Update)

		// Events
		api.GET("/events", eventHandler.List)
		api.POST("/events", middleware.RequireRole(admin), eventHandler.Create)
		api.GET("/events/:id", eventHandler.GetByID)
		api.PATCH("/events/:id", middleware.RequireRole(admin), eventHandler.Update)
		api.PATCH("/events/:id/status", middleware.RequireRole(admin), eventHandler.SetStatus)
		api.DELETE("/events/:id", middleware.RequireRole(admin), eventHandler.Delete)
		api.GET("/events/:id/quotas", eventHandler.Quotas)
		api.GET("/events/:id/quotas/:groupId", eventHandler.GroupQuota)
		api.PUT("/events/:id/quotas", middleware.RequireRole(admin), eventHandler.SetQuotas)
		api.POST("/events/:id/logo", middleware.RequireRole(admin), eventHandler.UploadLogo)
		api.GET("/events/:id/logo", eventHandler.Logo)
		api.GET("/events/:id/checkin-pin", middleware.RequireRole(admin), checkinHandler.GetPin)
		api.POST("/events/:id/checkin-pin", middleware.RequireRole(admin), checkinHandler.GeneratePin)
		api.POST("/events/:id/checkin-pin/toggle", middleware.RequireRole(admin), checkinHandler.TogglePin)
		api.PUT("/events/:id/checkin-pin/settings", middleware.RequireRole(admin), checkinHandler.UpdateSettings)

		// Groups and inviters
		api.GET("/groups", groupHandler.List)
		api.POST("/groups", middleware.RequireRole(admin), groupHandler.Create)
		api.GET("/groups/:id", groupHandler.GetByID)
		api.PATCH("/groups/:id", middleware.RequireRole(admin), groupHandler.Update)
		api.DELETE("/groups/:id", middleware.RequireRole(admin), groupHandler.Delete)
		api.GET("/groups/:id/members", groupHandler.Members)
		api.GET("/groups/:id/inviters", groupHandler.Inviters)
		api.POST("/groups/:id/inviters", middleware.RequireRole(admin, director), groupHandler.CreateInviter)
		api.PATCH("/inviters/:inviterId", middleware.RequireRole(admin, director), groupHandler.UpdateInviter)
		api.DELETE("/inviters/:inviterId", middleware.RequireRole(admin, director), groupHandler.DeleteInviter)

		// Contacts
		contacts := api.Group("", middleware.RequireRole(admin, director, organizer))
		contacts.GET("/invitees", inviteeHandler.List)
		contacts.POST("/invitees", inviteeHandler.Create)
		contacts.POST("/invitees/import", inviteeHandler.Import)
		contacts.GET("/invitees/:id", inviteeHandler.GetByID)
		contacts.PATCH("/invitees/:id", inviteeHandler.Update)
		contacts.DELETE("/invitees/:id", inviteeHandler.Delete)
		contacts.GET("/invitees/:id/history", approvalHandler.History)
		contacts.GET("/categories", inviteeHandler.Categories)
		api.POST("/categories", middleware.RequireRole(admin), inviteeHandler.CreateCategory)
		api.DELETE("/categories/:id", middleware.RequireRole(admin), inviteeHandler.DeleteCategory)

		// Submission and approvals
		contacts.POST("/events/:id/invitees", approvalHandler.Submit)
		contacts.GET("/events/:id/my-quota", approvalHandler.MyQuota)
		contacts.POST("/approvals/:id/resubmit", approvalHandler.Resubmit)
		contacts.GET("/approvals/pending", approvalHandler.Pending)
		contacts.GET("/approvals/approved", approvalHandler.Approved)
		deciders := api.Group("/approvals", middleware.RequireRole(admin, director))
		deciders.POST("/approve", approvalHandler.Approve)
		deciders.POST("/reject", approvalHandler.Reject)
		deciders.POST("/cancel", approvalHandler.Cancel)

		// Attendance
		staff := api.Group("", middleware.RequireRole(admin, director, organizer, attendant))
		staff.GET("/events/:id/attendance/stats", attendanceHandler.Stats)
		staff.GET("/events/:id/attendance/attendees", attendanceHandler.Attendees)
		staff.GET("/events/:id/attendance/recent", attendanceHandler.Recent)
		staff.POST("/attendance/check-in", attendanceHandler.CheckIn)
		staff.POST("/attendance/:id/undo-check-in", attendanceHandler.UndoCheckIn)
		managers := api.Group("", middleware.RequireRole(admin, director, organizer))
		managers.POST("/events/:id/attendance/generate-codes", middleware.RequireRole(admin), attendanceHandler.GenerateCodes)
		managers.POST("/attendance/mark-sent", attendanceHandler.MarkSent)
		managers.POST("/attendance/undo-sent", attendanceHandler.UndoSent)
		managers.POST("/attendance/confirm", attendanceHandler.Confirm)
		managers.POST("/attendance/reset-confirmation", attendanceHandler.ResetConfirmation)
		managers.GET("/events/:id/attendance/export", attendanceHandler.Export)
		managers.POST("/events/:id/attendance/export", attendanceHandler.ExportAsync)

		// Notifications
		api.GET("/notifications", notificationHandler.List)
		api.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		api.POST("/notifications/read-all", notificationHandler.ReadAll)
		api.POST("/notifications/:id/read", notificationHandler.MarkRead)
		api.DELETE("/notifications/:id", notificationHandler.Delete)

		// Reports
		api.GET("/reports/activity-log", middleware.RequireRole(admin), auditHandler.List)
		api.GET("/reports/activity-log/actions", middleware.RequireRole(admin), auditHandler.Actions)
		managers.GET("/reports/events/:id", reportHandler.Event)
		managers.GET("/reports/groups/:id", reportHandler.Group)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// PIN reconciler
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	go pins.RunReconciler(bgCtx, cfg.CheckIn.ReconcileInterval)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	bgCancel()
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
