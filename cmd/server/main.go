// Package main runs the event management HTTP server with websocket push and graceful shutdown.
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

	"github.com/unievents/backend/config"
	"github.com/unievents/backend/internal/analytics"
	"github.com/unievents/backend/internal/app"
	"github.com/unievents/backend/internal/auth"
	"github.com/unievents/backend/internal/emailsettings"
	"github.com/unievents/backend/internal/events"
	"github.com/unievents/backend/internal/meetings"
	"github.com/unievents/backend/internal/middleware"
	"github.com/unievents/backend/internal/models"
	"github.com/unievents/backend/internal/notifications"
	"github.com/unievents/backend/internal/realtime"
	"github.com/unievents/backend/internal/registrations"
	"github.com/unievents/backend/internal/reports"
	"github.com/unievents/backend/internal/resourcerequests"
	"github.com/unievents/backend/internal/resources"
	"github.com/unievents/backend/internal/users"
	"github.com/unievents/backend/pkg/response"
)

const (
	admin     = models.RoleAdmin
	organizer = models.RoleOrganizer
)

func main() {
	logger := app.NewLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	deps, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup", zap.Error(err))
	}
	defer deps.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(deps.Redis.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	dispatcher := deps.Dispatcher(hub)

	var (
		images  events.ImageStore
		archive reports.Archiver
	)
	if deps.S3 != nil {
		images, archive = deps.S3, deps.S3
	}

	// Auth
	authHandler := auth.NewHandler(deps.Users, jwtService, logger)

	// Scheduling core
	eventSvc := events.NewService(deps.Store, dispatcher, logger)
	eventHandler := events.NewHandler(eventSvc, images, logger)
	resourceHandler := resources.NewHandler(resources.NewService(deps.Store, logger))
	requestHandler := resourcerequests.NewHandler(resourcerequests.NewService(deps.Store, logger))
	registrationHandler := registrations.NewHandler(registrations.NewService(deps.Store, dispatcher, logger))

	// Collaboration and notifications
	meetingHandler := meetings.NewHandler(meetings.NewService(deps.Meetings, dispatcher, logger))
	notificationHandler := notifications.NewHandler(deps.Inbox)
	emailHandler := emailsettings.NewHandler(deps.Email)
	userHandler := users.NewHandler(users.NewService(deps.Users, dispatcher, logger))

	// Reporting
	reportHandler := reports.NewHandler(reports.NewService(reports.NewRepository(deps.Pool), archive, logger))
	analyticsHandler := analytics.NewHandler(analytics.NewRepository(deps.Pool))

	jwtValidate := func(token string) (uuid.UUID, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, err
		}
		return claims.UserID, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public, rate limited)
	authGroup := router.Group("/auth")
	authGroup.Use(middleware.RateLimit(cfg.RateLimit.AuthPerMinute))
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Events
		api.GET("/events", eventHandler.List)
		api.POST("/events", middleware.RequireRole(organizer, admin), eventHandler.Create)
		api.GET("/events/conflicts", eventHandler.CheckConflict)
		api.GET("/events/:id", eventHandler.GetByID)
		api.PATCH("/events/:id", eventHandler.Update)
		api.DELETE("/events/:id", eventHandler.Delete)
		api.PATCH("/events/:id/status", middleware.RequireRole(admin), eventHandler.SetStatus)
		api.POST("/events/:id/cancel", eventHandler.Cancel)
		api.POST("/events/:id/image", eventHandler.UploadImage)

		// Resources and allocations
		api.GET("/resources", resourceHandler.ListTypes)
		api.GET("/resources/:id", resourceHandler.GetType)
		api.POST("/resources", middleware.RequireRole(admin), resourceHandler.CreateType)
		api.PATCH("/resources/:id", middleware.RequireRole(admin), resourceHandler.UpdateType)
		api.GET("/events/:id/resources", resourceHandler.ListAllocations)
		api.POST("/events/:id/resources", middleware.RequireRole(admin), resourceHandler.Allocate)
		api.DELETE("/allocations/:id", middleware.RequireRole(admin), resourceHandler.Deallocate)

		// Resource requests
		api.GET("/resource-requests", middleware.RequireRole(admin), requestHandler.ListAll)
		api.GET("/events/:id/resource-requests", requestHandler.ListByEvent)
		api.POST("/events/:id/resource-requests", middleware.RequireRole(organizer, admin), requestHandler.Submit)
		api.PATCH("/resource-requests/:id", middleware.RequireRole(admin), requestHandler.Review)

		// Registrations and attendance
		api.POST("/events/:id/register", registrationHandler.Register)
		api.DELETE("/events/:id/register", registrationHandler.Cancel)
		api.GET("/registrations/me", registrationHandler.ListMine)
		api.GET("/events/:id/registrations", middleware.RequireRole(organizer, admin), registrationHandler.ListByEvent)
		api.PATCH("/registrations/:id/attendance", middleware.RequireRole(organizer, admin), registrationHandler.SetAttendance)
		api.POST("/events/:id/check-in", middleware.RequireRole(organizer, admin), registrationHandler.CheckIn)

		// Meetings
		api.GET("/meetings", meetingHandler.List)
		api.GET("/meetings/me", meetingHandler.ListMine)
		api.POST("/meetings", meetingHandler.Create)
		api.GET("/meetings/:id", meetingHandler.Get)
		api.PATCH("/meetings/:id", meetingHandler.Update)
		api.DELETE("/meetings/:id", meetingHandler.Delete)
		api.GET("/meetings/:id/participants", meetingHandler.Participants)
		api.POST("/meetings/:id/participants", meetingHandler.Invite)
		api.PATCH("/meetings/:id/response", meetingHandler.Respond)
		api.POST("/meetings/:id/join", meetingHandler.Join)
		api.POST("/meetings/:id/leave", meetingHandler.Leave)

		// Notifications
		api.GET("/notifications", notificationHandler.List)
		api.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		api.PATCH("/notifications/:id/read", notificationHandler.MarkRead)
		api.POST("/notifications/read-all", notificationHandler.MarkAllRead)

		// Email settings, preferences and delivery log
		api.GET("/email/settings", emailHandler.ListSettings)
		api.PATCH("/email/settings/:type", middleware.RequireRole(admin), emailHandler.SetSetting)
		api.GET("/email/preferences", emailHandler.ListPreferences)
		api.PUT("/email/preferences/:type", emailHandler.SetPreference)
		api.GET("/email/logs", emailHandler.ListLogs)

		// Users (admin only)
		userGroup := api.Group("/users", middleware.RequireRole(admin))
		userGroup.GET("", userHandler.List)
		userGroup.POST("", userHandler.Create)
		userGroup.PATCH("/:id/role", userHandler.SetRole)
		userGroup.DELETE("/:id", userHandler.Delete)

		// Reports and analytics
		api.GET("/reports/events", middleware.RequireRole(organizer, admin), reportHandler.Events)
		api.GET("/analytics/dashboard", middleware.RequireRole(organizer, admin), analyticsHandler.Dashboard)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, jwtValidate, cfg.Server.AllowedOrigins(), logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
