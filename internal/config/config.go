package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Redis configuration
	Redis RedisConfig

	// Booking policy configuration
	Booking BookingConfig

	// Notification dispatch configuration
	Notifications NotificationConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration // lifetime of tokens minted by cmd/dev-token
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// RedisConfig holds the Redis connection used for seat locks and event streams
type RedisConfig struct {
	URL string
}

// BookingConfig holds seat-booking policy settings
type BookingConfig struct {
	TimeZone             string        // IANA zone used to bound travel days
	CancellationCutoff   time.Duration // no cancellation once less than this remains
	FullRefundWindow     time.Duration // cancellations earlier than this get EarlyRefundRate
	EarlyRefundRate      float64
	LateRefundRate       float64
	LockBackend          string // "memory" or "redis"
	LockTTL              time.Duration
	DefaultPageSize      int
	StatsDefaultLookback time.Duration
	MaxBookingsPerRider  int // per RateLimitWindow, 0 disables
	MaxBookingsPerIP     int
	RateLimitWindow      time.Duration
}

// NotificationConfig holds booking notification settings
type NotificationConfig struct {
	Publisher string // "log" or "redis"
	Topic     string
}

// Location resolves the configured booking time zone
func (b BookingConfig) Location() (*time.Location, error) {
	return time.LoadLocation(b.TimeZone)
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization", "Idempotency-Key", "X-Correlation-ID"}),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Booking: BookingConfig{
			TimeZone:             getEnv("BOOKING_TIMEZONE", "Asia/Kolkata"),
			CancellationCutoff:   time.Duration(getEnvAsInt("BOOKING_CANCELLATION_CUTOFF_MINUTES", 120)) * time.Minute,
			FullRefundWindow:     time.Duration(getEnvAsInt("BOOKING_EARLY_REFUND_WINDOW_HOURS", 24)) * time.Hour,
			EarlyRefundRate:      getEnvAsFloat("BOOKING_EARLY_REFUND_RATE", 0.8),
			LateRefundRate:       getEnvAsFloat("BOOKING_LATE_REFUND_RATE", 0.5),
			LockBackend:          getEnv("SEAT_LOCK_BACKEND", "memory"),
			LockTTL:              time.Duration(getEnvAsInt("SEAT_LOCK_TTL_SECONDS", 10)) * time.Second,
			DefaultPageSize:      getEnvAsInt("BOOKING_DEFAULT_PAGE_SIZE", 10),
			StatsDefaultLookback: time.Duration(getEnvAsInt("BOOKING_STATS_LOOKBACK_DAYS", 30)) * 24 * time.Hour,
			MaxBookingsPerRider:  getEnvAsInt("BOOKING_RATE_LIMIT_PER_RIDER", 10),
			MaxBookingsPerIP:     getEnvAsInt("BOOKING_RATE_LIMIT_PER_IP", 50),
			RateLimitWindow:      time.Duration(getEnvAsInt("BOOKING_RATE_LIMIT_WINDOW_MINUTES", 60)) * time.Minute,
		},
		Notifications: NotificationConfig{
			Publisher: getEnv("NOTIFICATION_PUBLISHER", "log"),
			Topic:     getEnv("NOTIFICATION_TOPIC", "booking-notifications"),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if _, err := c.Booking.Location(); err != nil {
		return fmt.Errorf("invalid BOOKING_TIMEZONE %q: %w", c.Booking.TimeZone, err)
	}

	if c.Booking.EarlyRefundRate < 0 || c.Booking.EarlyRefundRate > 1 ||
		c.Booking.LateRefundRate < 0 || c.Booking.LateRefundRate > 1 {
		return fmt.Errorf("refund rates must be between 0 and 1")
	}

	if c.Booking.MaxBookingsPerRider < 0 || c.Booking.MaxBookingsPerIP < 0 {
		return fmt.Errorf("booking rate limits must not be negative")
	}

	switch c.Booking.LockBackend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required when SEAT_LOCK_BACKEND=redis")
		}
	default:
		return fmt.Errorf("invalid seat lock backend: %s (must be 'memory' or 'redis')", c.Booking.LockBackend)
	}

	switch c.Notifications.Publisher {
	case "log":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required when NOTIFICATION_PUBLISHER=redis")
		}
	default:
		return fmt.Errorf("invalid notification publisher: %s (must be 'log' or 'redis')", c.Notifications.Publisher)
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %g", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
