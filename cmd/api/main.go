package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/onhand_api/internal/cache"
	"github.com/GTDGit/onhand_api/internal/config"
	"github.com/GTDGit/onhand_api/internal/database"
	"github.com/GTDGit/onhand_api/internal/events"
	"github.com/GTDGit/onhand_api/internal/handler"
	"github.com/GTDGit/onhand_api/internal/metrics"
	"github.com/GTDGit/onhand_api/internal/middleware"
	"github.com/GTDGit/onhand_api/internal/models"
	"github.com/GTDGit/onhand_api/internal/repository"
	"github.com/GTDGit/onhand_api/internal/service"
	"github.com/GTDGit/onhand_api/internal/sse"
	"github.com/GTDGit/onhand_api/internal/utils"
	"github.com/GTDGit/onhand_api/internal/worker"
)

// main is the application entrypoint for the on-hand shop API.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Str("db_driver", cfg.DB.Driver).Msg("starting onhand api")

	// 3. Connect database
	db, err := database.Open(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := database.Migrate(db); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Catalog cache (Redis or in-process)
	var store cache.Cache
	if cfg.Cache.Type == "redis" {
		redisClient, err := cache.NewRedisClient(&cfg.Redis)
		if err != nil {
			log.Error().Err(err).Msg("redis connection failed")
			fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
			os.Exit(1)
		}
		store = redisClient
		log.Info().Msg("redis connected successfully")
	} else {
		store = cache.NewMemoryCache()
	}
	defer store.Close()
	catalogCache := cache.NewCatalogCache(store, cfg.Cache.TTL)

	// 4. Auth, metrics and order event fan-out
	utils.SetJWTConfig(cfg.JWTSecret, cfg.JWTTTL)
	m := metrics.New()

	hub := sse.NewHub()
	notifiers := sse.MultiNotifier{sse.NewHubNotifier(hub)}
	var kafkaNotifier *events.OrderNotifier
	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic, nil)
		if err != nil {
			log.Warn().Err(err).Msg("Kafka publisher initialization failed - order events will not be published")
		} else {
			kafkaNotifier = events.NewOrderNotifier(pub, 0)
			notifiers = append(notifiers, kafkaNotifier)
			log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.OrdersTopic).Msg("Kafka order events enabled")
		}
	}

	// 4a. Receipt storage
	var receipts service.ReceiptStore
	s3Store, err := service.NewS3ReceiptStore(context.Background(), &cfg.S3)
	if err != nil {
		log.Warn().Err(err).Msg("S3 receipt store initialization failed - receipt upload will be disabled")
	} else {
		receipts = s3Store
	}

	// 5. Initialize repositories
	userRepo := repository.NewUserRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	productRepo := repository.NewProductRepository(db)
	inventoryRepo := repository.NewInventoryRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)

	// 6. Initialize services
	authSvc := service.NewAuthService(userRepo)
	catalogSvc := service.NewCatalogService(categoryRepo, productRepo, catalogCache)
	inventorySvc := service.NewInventoryService(db, inventoryRepo, productRepo, catalogCache, m)
	fulfillmentSvc := service.NewFulfillmentService(db, orderRepo, inventoryRepo, productRepo, catalogCache, notifiers, m, cfg.Fulfillment.MaxAttempts)
	orderSvc := service.NewOrderService(orderRepo, productRepo, fulfillmentSvc, receipts, notifiers, m, cfg.Shop)
	statsSvc := service.NewStatsService(orderRepo, productRepo, cfg.Shop.Currency)
	feedbackSvc := service.NewFeedbackService(feedbackRepo)

	// 7. Initialize handlers
	handlers := &Handlers{
		Health:      handler.NewHealthHandler(db, store),
		Auth:        handler.NewAuthHandler(authSvc),
		Catalog:     handler.NewCatalogHandler(catalogSvc),
		Inventory:   handler.NewInventoryHandler(inventorySvc),
		Order:       handler.NewOrderHandler(orderSvc),
		Fulfillment: handler.NewFulfillmentHandler(fulfillmentSvc),
		Stats:       handler.NewStatsHandler(statsSvc),
		Feedback:    handler.NewFeedbackHandler(feedbackSvc),
		SSE:         handler.NewSSEHandler(hub),
	}

	// 8. Initialize middleware
	jwtMw := middleware.NewJWTMiddleware()
	loginLimiter := middleware.NewFailedLoginRateLimiter()
	defer loginLimiter.Close()

	// 9. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.MaxMultipartMemory = cfg.Shop.ReceiptMaxBytes
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware(cfg.CORSHosts...))
	router.Use(middleware.LoggingMiddleware())
	router.GET("/metrics", gin.WrapH(m.Handler()))
	setupRoutes(router, handlers, jwtMw, loginLimiter)

	// 10. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 11. Start workers
	var workers sync.WaitGroup
	startWorker := func(start func(context.Context)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			start(ctx)
		}()
	}
	startWorker(worker.NewDeliveryWorker(orderSvc, cfg.Worker.DeliveryRetryInterval).Start)
	startWorker(worker.NewStockReconcileWorker(inventorySvc, cfg.Worker.StockReconcileInterval).Start)
	startWorker(worker.NewPendingExpiryWorker(orderSvc, cfg.Worker.PendingOrderTTL, cfg.Worker.PendingExpiryInterval).Start)

	// 12. Start HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 13. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 14. Cancel context to stop workers
	cancel()

	// 15. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	workers.Wait()

	// 16. Flush queued order events
	if kafkaNotifier != nil {
		if err := kafkaNotifier.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Kafka publisher")
		}
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health      *handler.HealthHandler
	Auth        *handler.AuthHandler
	Catalog     *handler.CatalogHandler
	Inventory   *handler.InventoryHandler
	Order       *handler.OrderHandler
	Fulfillment *handler.FulfillmentHandler
	Stats       *handler.StatsHandler
	Feedback    *handler.FeedbackHandler
	SSE         *handler.SSEHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, jwtMiddleware *middleware.JWTMiddleware, loginLimiter *middleware.FailedLoginRateLimiter) {
	v1 := router.Group("/v1")

	// Public storefront
	v1.GET("/health", handlers.Health.GetHealth)
	v1.GET("/categories", handlers.Catalog.ListCategories)
	v1.GET("/products", handlers.Catalog.ListProducts)
	v1.GET("/onhand", handlers.Inventory.ListOnHand)
	v1.GET("/feedback", handlers.Feedback.List)
	v1.POST("/feedback", handlers.Feedback.Post)

	// Accounts
	v1.POST("/auth/signup", handlers.Auth.Signup)
	v1.POST("/auth/login", loginLimiter.Handle(), handlers.Auth.Login)

	// Checkout (guest or signed in)
	v1.POST("/orders", jwtMiddleware.Optional(), handlers.Order.PlaceOrder)

	// Customer portal
	customer := v1.Group("")
	customer.Use(jwtMiddleware.Handle())
	{
		customer.GET("/me/orders", handlers.Order.ListMyOrders)
		customer.POST("/orders/:id/receipt", handlers.Order.UploadReceipt)
	}

	// SSE authenticates through the query string
	v1.GET("/admin/sse", handlers.SSE.Stream)

	// Admin console
	admin := v1.Group("/admin")
	admin.Use(jwtMiddleware.Handle(), jwtMiddleware.RequireRole(models.RoleAdmin))
	{
		// Catalog
		admin.POST("/categories", handlers.Catalog.CreateCategory)
		admin.PUT("/categories/:id", handlers.Catalog.UpdateCategory)
		admin.DELETE("/categories/:id", handlers.Catalog.DeleteCategory)
		admin.GET("/products", handlers.Catalog.AdminListProducts)
		admin.POST("/products", handlers.Catalog.CreateProduct)
		admin.PUT("/products/:id", handlers.Catalog.UpdateProduct)
		admin.POST("/products/:id/toggle", handlers.Catalog.ToggleProduct)
		admin.DELETE("/products/:id", handlers.Catalog.DeleteProduct)

		// Inventory
		admin.POST("/inventory", handlers.Inventory.StockCredential)
		admin.GET("/inventory", handlers.Inventory.ListCredentials)
		admin.DELETE("/inventory/:id", handlers.Inventory.DeleteCredential)
		admin.POST("/stock/reconcile", handlers.Inventory.ReconcileStock)

		// Orders
		admin.GET("/orders", handlers.Order.ListOrders)
		admin.GET("/orders/export", handlers.Stats.ExportOrders)
		admin.GET("/orders/:id", handlers.Order.GetOrder)
		admin.PUT("/orders/:id/status", handlers.Order.UpdateStatus)
		admin.POST("/orders/:id/fulfill", handlers.Fulfillment.Fulfill)
		admin.POST("/orders/:id/confirm", handlers.Order.ConfirmAndFulfill)

		// Dashboard
		admin.GET("/stats", handlers.Stats.GetStats)
	}
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
