package server

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"solebid/internal/cache"
	"solebid/internal/carrier"
	"solebid/internal/config"
	custommiddleware "solebid/internal/middleware"
	"solebid/internal/repository"
	"solebid/internal/service"
	"solebid/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *sql.DB
	redis  *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env == "development"))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: 100,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit",
	}, logger))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Initialize repositories
	auctionRepo := repository.NewAuctionRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	shipmentRepo := repository.NewShipmentRepository(db)

	// Auction side
	auctionService := service.NewAuctionService(db, auctionRepo, cfg.Auction, logger)
	auctionHandler := transport.NewAuctionHandler(auctionService, logger)
	auctionHandler.RegisterRoutes(router)

	// Shipping side, only with a ship-from address and at least one carrier
	aggregator, err := carrier.NewAggregator(logger,
		carrier.NewFedEx(cfg.Shipping.FedEx, cfg.Shipping.CarrierTimeout, logger),
		carrier.NewUPS(cfg.Shipping.UPS, cfg.Shipping.CarrierTimeout, logger),
	)
	if !cfg.Shipping.Configured() {
		logger.Warn("Ship-from address not configured, shipping routes disabled")
	} else if err != nil {
		if errors.Is(err, carrier.ErrNoCarriersConfigured) {
			logger.Warn("No shipping carriers configured, shipping routes disabled")
		} else {
			logger.Error("Failed to initialize carrier aggregator", zap.Error(err))
		}
	} else {
		logger.Info("Shipping carriers configured", zap.Any("carriers", aggregator.Carriers()))

		rateCache := cache.NewRedisRateCache(redisClient, cfg.Shipping.RateCacheTTL)
		shippingService := service.NewShippingService(
			aggregator, shipmentRepo, orderRepo, productRepo, rateCache, cfg.Shipping, logger,
		)

		shipmentHandler := transport.NewShipmentHandler(shippingService, cfg.Shipping, logger)
		shipmentHandler.RegisterRoutes(router)

		webhookHandler := transport.NewWebhookHandler(shippingService, logger)
		webhookHandler.RegisterRoutes(router)
	}

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
