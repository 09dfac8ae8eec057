package handler

import (
	"courier-dispatch/internal/adapter/http/middleware"
	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	WalletSvc      ports.WalletService
	QuoteSvc       ports.QuoteService
	BookingSvc     ports.BookingService
	DeliverySvc    ports.DeliveryService
	InsightSvc     ports.InsightService
	Events         EventSource
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	MaxBodyBytes   int64
	Mode           string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = 1 << 20
	}
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(deps.MaxBodyBytes))

	// Health check (deep: every configured backend)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/signup", rl("auth_signup"), authHandler.Signup)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- Authenticated routes ---
	authed := v1.Group("", middleware.JWTAuth(deps.AuthSvc, deps.Logger))
	authed.GET("/me", rl("read"), authHandler.Me)
	authed.PATCH("/me", rl("profile"), authHandler.UpdateMe)

	senderOnly := middleware.RequireRole(domain.RoleSender)
	riderOnly := middleware.RequireRole(domain.RoleRider)

	walletHandler := NewWalletHandler(deps.WalletSvc)
	wallet := authed.Group("/wallet", senderOnly)
	{
		wallet.GET("", rl("read"), walletHandler.Get)
		wallet.POST("/fund", rl("wallet_fund"), walletHandler.Fund)
	}

	quoteHandler := NewQuoteHandler(deps.QuoteSvc)
	authed.POST("/quotes", senderOnly, rl("quotes"), quoteHandler.Request)

	deliveryHandler := NewDeliveryHandler(deps.DeliverySvc, deps.BookingSvc)
	deliveries := authed.Group("/deliveries")
	{
		deliveries.POST("", senderOnly, rl("bookings"), deliveryHandler.Book)
		deliveries.GET("", senderOnly, rl("read"), deliveryHandler.ListMine)
		deliveries.GET("/:id", rl("read"), deliveryHandler.Get)
		deliveries.POST("/:id/cancel", senderOnly, rl("bookings"), deliveryHandler.Cancel)
		if deps.Events != nil {
			streamHandler := NewStreamHandler(deps.DeliverySvc, deps.Events, deps.Logger)
			deliveries.GET("/:id/stream", rl("read"), streamHandler.Stream)
		}
	}

	riderHandler := NewRiderHandler(deps.DeliverySvc, deps.InsightSvc)
	rider := authed.Group("/rider", riderOnly)
	{
		rider.GET("/jobs", rl("rider"), riderHandler.Jobs)
		rider.POST("/jobs/:id/advance", rl("rider"), riderHandler.Advance)
		rider.GET("/summary", rl("rider"), riderHandler.Summary)
		rider.GET("/insights", rl("rider"), riderHandler.Insights)
		rider.POST("/availability", rl("profile"), authHandler.SetAvailability)
	}

	return r
}
