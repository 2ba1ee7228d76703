package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/pawhaven/pawhaven/internal/auth"
	"github.com/pawhaven/pawhaven/internal/handlers"
	"github.com/pawhaven/pawhaven/internal/middleware"
	"github.com/pawhaven/pawhaven/internal/services"
)

// Dependencies bundles everything the router needs to wire the HTTP surface.
type Dependencies struct {
	DB  *gorm.DB
	JWT *iauth.JWTService

	Users         *services.UserService
	Verification  *services.VerificationService
	Notifications *services.NotificationService
	Actions       *services.ActionService
	Cities        *services.CityService
	Telegram      *services.TelegramService

	// TelegramBotName builds t.me deep links on the linking endpoint.
	TelegramBotName string
}

// NewRouter builds the Gin engine, wires middleware, and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	r.NoRoute(middleware.NotFoundHandler)

	r.GET("/health", handlers.NewHealthHandler(deps.DB).Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler, err := handlers.NewAuthHandler(deps.Users, deps.Verification, deps.JWT)
	if err != nil {
		return nil, err
	}
	notificationHandler, err := handlers.NewNotificationHandler(deps.Notifications, deps.Actions)
	if err != nil {
		return nil, err
	}
	cityHandler, err := handlers.NewCityHandler(deps.Cities)
	if err != nil {
		return nil, err
	}
	webhookHandler, err := handlers.NewWebhookHandler(deps.Telegram)
	if err != nil {
		return nil, err
	}
	telegramHandler, err := handlers.NewTelegramHandler(deps.Telegram, deps.TelegramBotName)
	if err != nil {
		return nil, err
	}

	// Public routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/verify-email", authHandler.VerifyEmail)
	}
	r.POST("/api/webhooks/telegram", webhookHandler.Telegram)

	// Protected routes
	requireAuth := middleware.Auth(deps.JWT)
	api := r.Group("/api")
	api.Use(requireAuth)

	api.POST("/auth/resend-verification", authHandler.ResendVerification)
	api.POST("/telegram/link", telegramHandler.BeginLink)

	notifications := api.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.POST("/mark-as-read", notificationHandler.MarkAsRead)
		notifications.GET("/unified", notificationHandler.Unified)
		notifications.POST("/mark-all-read", notificationHandler.MarkAllRead)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
		notifications.POST("/:id/actions/:action", notificationHandler.ExecuteAction)
	}

	cities := api.Group("/cities")
	{
		cities.GET("", cityHandler.List)
		cities.POST("", middleware.RequireAdmin(), cityHandler.Create)
	}

	return r, nil
}
