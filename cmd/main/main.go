package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/clients"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/config"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/events"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/handlers"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/middleware"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/models"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/repository"
	"github.com/LordNtlaloe/td-holdings-backend-sub001/internal/services"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/Tesseract-Nexus/go-shared/rbac"
	"github.com/Tesseract-Nexus/go-shared/tracing"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Auto-migrate models
	if err := db.AutoMigrate(
		&models.Inventory{},
		&models.InventoryHistory{},
		&models.StockReservation{},
		&models.ProductTransfer{},
		&models.Sale{},
		&models.SaleItem{},
		&models.VoidedSale{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Initialize logrus logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize NATS event publisher (optional - graceful degradation if NATS unavailable)
	var eventPublisher *events.StockEventPublisher
	if cfg.NATSURL != "" {
		eventPublisher, err = events.NewStockEventPublisher(cfg.NATSURL, logger)
		if err != nil {
			log.Printf("Warning: Failed to initialize NATS event publisher: %v", err)
			log.Println("Continuing without event publishing...")
			eventPublisher = nil
		} else {
			log.Println("✓ Connected to NATS JetStream for event publishing")
			defer eventPublisher.Close()
		}
	} else {
		log.Println("NATS_URL not configured, event publishing disabled")
	}

	// Initialize Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// Initialize repositories
	inventoryRepo := repository.NewInventoryRepository(db, redisClient)
	transferRepo := repository.NewTransferRepository(db)
	salesRepo := repository.NewSalesRepository(db)

	// Initialize downstream service clients
	productsClient := clients.NewProductsClient(cfg.ProductsServiceURL)
	storesClient := clients.NewStoresClient(cfg.StoresServiceURL)
	staffClient := clients.NewStaffClient(cfg.StaffServiceURL)
	activityClient := clients.NewActivityClient(cfg.ActivityServiceURL)

	// Initialize services
	stockService := services.NewStockService(
		inventoryRepo,
		productsClient,
		storesClient,
		activityClient,
		eventPublisher,
		logger,
		time.Duration(cfg.ReservationTTLMinutes)*time.Minute,
	)
	transferService := services.NewTransferService(transferRepo, stockService, logger)
	salesService := services.NewSalesService(salesRepo, stockService, staffClient, logger, cfg.TaxRate, cfg.VoidWindowDays)

	// Initialize handlers
	handlers.ConfigurePagination(cfg.DefaultPageSize, cfg.MaxPageSize)
	stockHandler := handlers.NewStockHandler(stockService, inventoryRepo)
	transferHandler := handlers.NewTransferHandler(transferService)
	salesHandler := handlers.NewSalesHandler(salesService)
	historyHandler := handlers.NewHistoryHandler(inventoryRepo, stockService)
	importHandler := handlers.NewImportHandler(stockService)

	// Initialize OpenTelemetry tracing
	var tracerProvider *tracing.TracerProvider
	if cfg.Environment == "production" {
		tracerProvider, err = tracing.InitTracer(tracing.ProductionConfig("inventory-ledger-service"))
	} else {
		tracerProvider, err = tracing.InitTracer(tracing.DefaultConfig("inventory-ledger-service"))
	}
	if err != nil {
		log.Printf("WARNING: Failed to initialize tracing: %v (continuing without tracing)", err)
	} else {
		log.Println("✓ OpenTelemetry tracing initialized")
	}

	// Initialize Prometheus metrics
	metrics := gosharedmw.InitGlobalMetrics("tdholdings", "inventory_ledger_service")
	log.Println("✓ Prometheus metrics initialized")

	// Initialize RBAC middleware
	rbacMiddleware := rbac.NewMiddlewareWithURL(cfg.StaffServiceURL, nil)
	log.Println("✓ RBAC middleware initialized")

	// Background sweeper for expired reservations
	sweeper := cron.New()
	_, err = sweeper.AddFunc("@every 1m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := stockService.ReleaseExpiredReservations(ctx); err != nil {
			logger.WithError(err).Error("Expired reservation sweep failed")
		}
	})
	if err != nil {
		log.Fatal("Failed to schedule reservation sweeper:", err)
	}
	sweeper.Start()
	defer sweeper.Stop()
	log.Println("✓ Reservation sweeper scheduled")

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Add observability middleware (metrics + tracing)
	router.Use(metrics.Middleware())
	router.Use(tracing.GinMiddleware("inventory-ledger-service"))

	// Add CORS middleware
	router.Use(middleware.CORS())

	// Health check endpoints (no auth required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.HealthCheck)
	router.GET("/health/extended", stockHandler.ExtendedHealthCheck)
	router.GET("/metrics", gosharedmw.Handler())

	// Protected API routes
	api := router.Group("/api/v1")

	// Authentication middleware using Istio JWT claims
	// Istio validates JWT and injects x-jwt-claim-* headers
	api.Use(gosharedmw.IstioAuth(gosharedmw.IstioAuthConfig{
		RequireAuth:        true,
		AllowLegacyHeaders: false,
		SkipPaths:          []string{"/health", "/ready", "/metrics"},
	}))
	api.Use(middleware.TenantMiddleware())

	// Stock routes with RBAC
	stock := api.Group("/stock")
	{
		stock.GET("", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), stockHandler.ListStock)
		stock.GET("/level", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), stockHandler.GetStockLevel)
		stock.GET("/availability", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), stockHandler.CheckAvailability)
		stock.GET("/restock", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), stockHandler.GetRestockReport)
		stock.POST("/allocate", rbacMiddleware.RequirePermission(rbac.PermissionInventoryUpdate), stockHandler.AllocateStock)
		stock.POST("/receive", rbacMiddleware.RequirePermission(rbac.PermissionInventoryAdjust), stockHandler.BulkReceive)
		stock.GET("/:id", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), stockHandler.GetStock)
		stock.POST("/:id/adjust", rbacMiddleware.RequirePermission(rbac.PermissionInventoryAdjust), stockHandler.AdjustStock)
		stock.PUT("/:id/reorder-levels", rbacMiddleware.RequirePermission(rbac.PermissionInventoryUpdate), stockHandler.SetReorderLevels)
		stock.GET("/:id/history", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), historyHandler.GetInventoryHistory)
		stock.GET("/:id/integrity", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), historyHandler.CheckIntegrity)

		// Shipment import
		stock.GET("/import/template", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), importHandler.GetShipmentImportTemplate)
		stock.POST("/import", rbacMiddleware.RequirePermission(rbac.PermissionInventoryAdjust), importHandler.ImportShipment)
	}

	// Reservation routes with RBAC
	reservations := api.Group("/reservations")
	{
		reservations.POST("", rbacMiddleware.RequirePermission(rbac.PermissionInventoryAdjust), stockHandler.ReserveStock)
		reservations.GET("/:id", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), stockHandler.GetReservation)
		reservations.POST("/:id/release", rbacMiddleware.RequirePermission(rbac.PermissionInventoryAdjust), stockHandler.ReleaseReservation)
		reservations.POST("/:id/convert", rbacMiddleware.RequirePermission(rbac.PermissionInventoryAdjust), stockHandler.ConvertReservation)
	}

	// Transfer routes with RBAC
	transfers := api.Group("/transfers")
	{
		transfers.POST("", rbacMiddleware.RequirePermission(rbac.PermissionInventoryAdjust), transferHandler.InitiateTransfer)
		transfers.GET("", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), transferHandler.ListTransfers)
		transfers.GET("/:id", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), transferHandler.GetTransfer)
		transfers.POST("/:id/complete", rbacMiddleware.RequirePermission(rbac.PermissionInventoryAdjust), transferHandler.CompleteTransfer)
		transfers.POST("/:id/cancel", rbacMiddleware.RequirePermission(rbac.PermissionInventoryAdjust), transferHandler.CancelTransfer)
		transfers.POST("/:id/reject", rbacMiddleware.RequirePermission(rbac.PermissionInventoryAdjust), transferHandler.RejectTransfer)
	}

	// Sales routes with RBAC
	sales := api.Group("/sales")
	{
		sales.POST("", rbacMiddleware.RequirePermission(rbac.PermissionInventoryAdjust), salesHandler.CreateSale)
		sales.GET("", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), salesHandler.ListSales)
		sales.GET("/:id", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), salesHandler.GetSale)
		sales.POST("/:id/void", rbacMiddleware.RequirePermission(rbac.PermissionInventoryAdjust), salesHandler.VoidSale)
		sales.POST("/:id/return", rbacMiddleware.RequirePermission(rbac.PermissionInventoryAdjust), salesHandler.ProcessReturn)
	}

	// Movement ledger routes with RBAC
	history := api.Group("/history")
	{
		history.GET("", rbacMiddleware.RequirePermission(rbac.PermissionInventoryRead), historyHandler.ListHistory)
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Inventory ledger service starting on port %s", cfg.Port)
		if err := router.Run(":" + cfg.Port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	log.Println("Shutting down inventory-ledger-service...")

	// Shutdown tracer provider
	if tracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		} else {
			log.Println("✓ Tracer provider shut down")
		}
	}
}
