package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/collegetransit/booking-service/internal/config"
	"github.com/collegetransit/booking-service/internal/database"
	"github.com/collegetransit/booking-service/internal/handlers"
	"github.com/collegetransit/booking-service/internal/middleware"
	"github.com/collegetransit/booking-service/internal/services"
	"github.com/collegetransit/booking-service/pkg/jwt"
	"github.com/collegetransit/booking-service/pkg/validator"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	playground "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting College Transit booking service")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	loc, err := cfg.Booking.Location()
	if err != nil {
		logger.Fatalf("Failed to load booking time zone: %v", err)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatalf("Invalid REDIS_URL: %v", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		logger.Info("Redis connection established")
	}

	// Initialize repositories
	bookingRepository := database.NewBookingRepository(db)
	busRepository := database.NewBusRepository(db)
	scheduleRepository := database.NewScheduleRepository(db)
	userRepository := database.NewUserRepository(db)

	// Initialize services
	logger.Info("Initializing services...")
	var locker services.SeatLocker = services.NewLocalSeatLocker()
	if cfg.Booking.LockBackend == "redis" {
		locker = services.NewRedisSeatLocker(rdb, cfg.Booking.LockTTL)
	}

	var publisher message.Publisher = services.NewLogPublisher(logger)
	if cfg.Notifications.Publisher == "redis" {
		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: rdb},
			services.NewWatermillLogger(logger),
		)
		if err != nil {
			logger.Fatalf("Failed to create notification publisher: %v", err)
		}
	}
	defer publisher.Close()

	policy := services.BookingPolicy{
		CancellationCutoff: cfg.Booking.CancellationCutoff,
		FullRefundWindow:   cfg.Booking.FullRefundWindow,
		EarlyRefundRate:    cfg.Booking.EarlyRefundRate,
		LateRefundRate:     cfg.Booking.LateRefundRate,
	}

	availabilityService := services.NewSeatAvailabilityService(busRepository, bookingRepository, loc)
	notificationService := services.NewNotificationService(publisher, cfg.Notifications.Topic, logger)
	bookingService := services.NewBookingService(
		bookingRepository,
		availabilityService,
		scheduleRepository,
		userRepository,
		notificationService,
		locker,
		policy,
		logger,
	)
	queryService := services.NewBookingQueryService(bookingRepository, loc, cfg.Booking.DefaultPageSize)
	auditService := services.NewAuditService(db)
	rateLimitService := services.NewRateLimitService(db, services.RateLimitConfig{
		MaxRiderBookings: cfg.Booking.MaxBookingsPerRider,
		RiderWindow:      cfg.Booking.RateLimitWindow,
		MaxIPBookings:    cfg.Booking.MaxBookingsPerIP,
		IPWindow:         cfg.Booking.RateLimitWindow,
	})
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)

	bookingHandler := handlers.NewBookingHandler(
		bookingService,
		queryService,
		availabilityService,
		auditService,
		rateLimitService,
		cfg.Booking.StatsDefaultLookback,
		logger,
	)

	// Custom binding tags used by request models
	if v, ok := binding.Validator.Engine().(*playground.Validate); ok {
		if err := validator.RegisterBindings(v); err != nil {
			logger.Fatalf("Failed to register validators: %v", err)
		}
	}

	// Setup router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(logger))

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", healthCheckHandler(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	bookingHandler.RegisterRoutes(v1, middleware.AuthMiddleware(jwtService, logger))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":          cfg.Server.Port,
			"time_zone":     loc.String(),
			"lock_backend":  cfg.Booking.LockBackend,
			"notifications": cfg.Notifications.Publisher,
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
