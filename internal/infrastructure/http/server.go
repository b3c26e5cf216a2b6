package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	handlers "github.com/jobdeck/billing/internal/adapter/handler/http"
	"github.com/jobdeck/billing/internal/config"
	"github.com/jobdeck/billing/internal/domain/plan"
	"github.com/jobdeck/billing/internal/infrastructure/database"
	"github.com/jobdeck/billing/internal/middleware/auth"
	"github.com/jobdeck/billing/internal/usecase"
)

type Server struct {
	config    *config.Config
	logger    *zap.Logger
	echo      *echo.Echo
	repos     *database.Repositories
	catalog   *plan.Catalog
	lifecycle *usecase.LifecycleService
	usage     *usecase.UsageService
}

func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	repos *database.Repositories,
	catalog *plan.Catalog,
	lifecycle *usecase.LifecycleService,
	usage *usecase.UsageService,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewRequestValidator()

	// Initialize Stripe
	stripe.Key = cfg.Service.StripeSecretKey

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Service.ClientURL},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
	}))

	return &Server{
		config:    cfg,
		logger:    logger,
		echo:      e,
		repos:     repos,
		catalog:   catalog,
		lifecycle: lifecycle,
		usage:     usage,
	}
}

func (s *Server) Start() error {
	// Setup routes
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	// Initialize handlers
	plansHandler := handlers.NewPlansHandler(s.logger, s.catalog)
	subscriptionHandler := handlers.NewSubscriptionHandler(s.logger, s.lifecycle, s.config.Service.ClientURL)
	usageHandler := handlers.NewUsageHandler(s.logger, s.usage)
	webhookHandler := handlers.NewWebhookHandler(s.logger, s.config.Service.StripeWebhookSecret, s.repos.Webhook, s.lifecycle)

	// JWT middleware configuration
	jwtConfig := auth.JWTConfig{
		Secret: s.config.Service.JWTSecret,
		Logger: s.logger,
		SkipPaths: []string{
			"/health",
			"/webhook",
			"/api/v1/plans",
		},
	}

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Public routes (no authentication required)
	// Plans & Pricing - public for browsing
	v1.GET("/plans", plansHandler.GetPlans)

	// Protected routes (require JWT authentication)
	protected := v1.Group("", auth.JWTMiddleware(jwtConfig))

	subscription := protected.Group("/subscription")
	subscription.GET("", subscriptionHandler.GetSubscription)
	subscription.POST("/checkout", subscriptionHandler.CreateCheckout)
	subscription.DELETE("", subscriptionHandler.CancelSubscription)
	subscription.POST("/reactivate", subscriptionHandler.ReactivateSubscription)
	subscription.POST("/portal", subscriptionHandler.CreatePortalSession)
	subscription.GET("/usage", subscriptionHandler.GetUsage)
	subscription.GET("/usage/history", subscriptionHandler.GetUsageHistory)

	// Metered consumption, called by the application-tracking service
	protected.POST("/usage", usageHandler.IncrementUsage)

	// Webhook route (outside API versioning)
	s.echo.POST("/webhook", webhookHandler.HandleWebhook)
}
