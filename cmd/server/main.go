package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/azabchk/zappppppix/internal/auth"
	"github.com/azabchk/zappppppix/internal/config"
	"github.com/azabchk/zappppppix/internal/database"
	"github.com/azabchk/zappppppix/internal/instruments"
	"github.com/azabchk/zappppppix/internal/ledger"
	"github.com/azabchk/zappppppix/internal/trading"
	"github.com/azabchk/zappppppix/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the exchange API server with graceful
// shutdown support. It sets up the database, the shared settlement gate,
// all services and the API routes.
func main() {
	cfg := config.Load()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.DatabaseDSN)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Seed quote currency, default instruments and the admin account
	if err := database.Bootstrap(db, cfg); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to bootstrap database")
	}

	// Initialize router
	router := gin.Default()

	// One gate serialises every balance mutation in the process
	gate := ledger.NewGate()

	// Initialize services and handlers
	authService := auth.NewService(db, cfg.JWTSecret, gate)
	authHandlers := auth.NewGinHandlers(authService)

	ledgerService := ledger.NewService(db, gate)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)

	instrumentService := instruments.NewService(db, gate)
	instrumentHandlers := instruments.NewGinHandlers(instrumentService)

	tradingService := trading.NewService(db, ledgerService.Store(), gate)
	tradingHandlers := trading.NewGinHandlers(tradingService)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(cfg, router, authHandlers, tradingHandlers, ledgerHandlers, instrumentHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Public routes: registration and market data, rate limited only
// - Auth routes: api key to JWT exchange
// - Order and balance routes: protected by JWT authentication
// - Admin routes: protected by JWT authentication plus the ADMIN role
func setupRoutes(
	cfg *config.Config,
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	tradingHandlers *trading.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	instrumentHandlers *instruments.GinHandlers,
) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("/public")
		{
			public.POST("/register", authHandlers.RegisterHandler())
			public.GET("/instrument", instrumentHandlers.ListHandler())
			public.GET("/orderbook/:ticker", tradingHandlers.OrderBookHandler())
			public.GET("/transactions/:ticker", tradingHandlers.TransactionsHandler())
		}

		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Order and balance routes
		orders := v1.Group("")
		orders.Use(middleware.JWTAuth(cfg.JWTSecret))
		{
			orders.POST("/order", tradingHandlers.PlaceOrderHandler())
			orders.GET("/order", tradingHandlers.ListOrdersHandler())
			orders.GET("/order/:order_id", tradingHandlers.GetOrderHandler())
			orders.DELETE("/order/:order_id", tradingHandlers.CancelOrderHandler())
			orders.GET("/balance", ledgerHandlers.BalancesHandler())
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(cfg.JWTSecret))
		{
			admin.POST("/balance/deposit", ledgerHandlers.DepositHandler())
			admin.POST("/balance/withdraw", ledgerHandlers.WithdrawHandler())
			admin.POST("/instrument", instrumentHandlers.CreateHandler())
			admin.DELETE("/instrument/:ticker", instrumentHandlers.DeleteHandler())
			admin.DELETE("/user/:user_id", authHandlers.DeleteUserHandler())
		}
	}
}
