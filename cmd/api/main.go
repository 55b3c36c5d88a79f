//go:generate swag init -g cmd/api/main.go -d ../.. -o ../../api/swagger --outputTypes go --parseInternal

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "retailpos/api/swagger" // swagger docs
	"retailpos/internal/config"
	"retailpos/internal/database"
	"retailpos/internal/handler"
	"retailpos/internal/logger"
	"retailpos/internal/metrics"
	"retailpos/internal/middleware"
	"retailpos/internal/numbering"
	"retailpos/internal/redis"
	"retailpos/internal/repository"
	"retailpos/internal/service"
	"retailpos/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Retail POS API
// @version         1.0
// @description     Sales order transactions, stock and catalog for point-of-sale terminals.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.IsRelease(), cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.IsRelease() && cfg.JWTSecret == config.DefaultJWTSecret {
		log.Fatal("JWT_SECRET must be set in release mode")
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	log.Info("connected to PostgreSQL")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(log.Named("ws"))
	go wsHub.Run(ctx)

	// Order numbers: Redis daily sequence when available, snowflake otherwise
	var (
		numbers    numbering.Generator
		orderCache service.OrderCache
	)
	if cfg.RedisURL != "" {
		rdb, err := redis.Initialize(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("redis unavailable, falling back to snowflake numbering", zap.Error(err))
		} else {
			defer func() { _ = rdb.Close() }()
			numbers = numbering.NewDailySequenceGenerator(rdb, nil)
			orderCache = rdb
			log.Info("connected to Redis")
		}
	}
	if numbers == nil {
		numbers, err = numbering.NewSnowflakeGenerator(cfg.SnowflakeNode)
		if err != nil {
			log.Fatal("order numbering unavailable", zap.Error(err))
		}
	}

	var orderMetrics *metrics.OrderMetrics
	if cfg.PrometheusEnabled {
		orderMetrics = metrics.NewOrderMetrics(prometheus.DefaultRegisterer)
	}

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewSalesOrderRepository(db)
	movementRepo := repository.NewStockMovementRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	partnerRepo := repository.NewPartnerRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	orderService := service.NewOrderService(service.OrderServiceDeps{
		ProductRepo:  productRepo,
		OrderRepo:    orderRepo,
		MovementRepo: movementRepo,
		PaymentRepo:  paymentRepo,
		PartnerRepo:  partnerRepo,
		AuditRepo:    auditRepo,
		TxManager:    txManager,
		Numbers:      numbers,
		Notifier:     wsHub,
		Cache:        orderCache,
		Metrics:      orderMetrics,
		Logger:       log.Named("orders"),
		Options: service.OrderOptions{
			TxTimeout:        cfg.OrderTxTimeout,
			AllowOverpayment: cfg.AllowOverpayment,
			ValidateCustomer: cfg.ValidateCustomer,
			CacheTTL:         cfg.OrderCacheTTL,
		},
	})
	inventoryService := service.NewInventoryService(productRepo, movementRepo, auditRepo, txManager, wsHub, log.Named("inventory"))

	// Initialize Handlers
	salesOrderHandler := handler.NewSalesOrderHandler(orderService)
	inventoryHandler := handler.NewInventoryHandler(inventoryService)

	// Set up Gin Router
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log.Named("http")))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	if cfg.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// WebSocket endpoint
	secret := []byte(cfg.JWTSecret)
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, secret)
	})

	// API Routing
	salesOrderHandler.RegisterRoutes(router.Group(""), secret)
	inventoryHandler.RegisterRoutes(router.Group(""), secret)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
