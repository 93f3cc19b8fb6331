package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soul-service/soul_service/internal/api/handlers"
	"github.com/soul-service/soul_service/internal/api/middleware"
	"github.com/soul-service/soul_service/internal/infrastructure/config"
	"github.com/soul-service/soul_service/pkg/logger"
)

// Handlers bundles the HTTP handlers wired by main.
type Handlers struct {
	Wallet      *handlers.WalletHandler
	Transaction *handlers.TransactionHandler
	User        *handlers.UserHandler
	Event       *handlers.EventHandler
	Health      *handlers.HealthHandler
}

// SetupRoutes configures all application routes
func SetupRoutes(cfg *config.Config, log *logger.Logger, h *Handlers) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestSizeLimit())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))

	router.GET("/health", h.Health.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		// Registration happens before the user has a token
		v1.POST("/users", h.User.Register)

		authed := v1.Group("")
		authed.Use(middleware.Auth(cfg.JWT))
		{
			authed.GET("/users/me", h.User.GetMe)
			authed.GET("/wallets/:id", h.Wallet.GetWallet)
			authed.POST("/transfers", h.Wallet.Transfer)
			authed.GET("/transactions", h.Transaction.ListTransactions)
			authed.GET("/transactions/:id", h.Transaction.GetTransaction)
			authed.POST("/events", h.Event.CreateEvent)
			authed.GET("/events/:id", h.Event.GetEvent)
			authed.POST("/events/:id/join", h.Event.JoinEvent)
			authed.POST("/activities/:id/confirm", h.Event.ConfirmActivity)
		}
	}

	return router
}
