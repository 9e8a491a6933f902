package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port      string
	Env       string
	JWTSecret string
	JWTTTL    time.Duration
	CORSHosts []string

	DB          DatabaseConfig
	Cache       CacheConfig
	Redis       RedisConfig
	S3          S3Config
	Kafka       KafkaConfig
	Shop        ShopConfig
	Fulfillment FulfillmentConfig
	Worker      WorkerConfig
}

// DatabaseConfig contains connection parameters for PostgreSQL or SQLite.
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SSLMode    string
	SQLitePath string
}

// CacheConfig selects the catalog cache backend.
type CacheConfig struct {
	Type string // redis or memory
	TTL  time.Duration
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// S3Config contains receipt storage configuration.
type S3Config struct {
	Region          string
	Bucket          string
	Endpoint        string
	PublicBaseURL   string
	AccessKeyID     string
	SecretAccessKey string
}

// KafkaConfig contains outbound order event settings. Publishing is disabled
// when Brokers is empty.
type KafkaConfig struct {
	Brokers     []string
	OrdersTopic string
}

// ShopConfig contains storefront pricing and upload rules.
type ShopConfig struct {
	Currency          string
	SharedPriceFactor decimal.Decimal
	ReceiptMaxBytes   int64
}

// FulfillmentConfig tunes the allocator.
type FulfillmentConfig struct {
	MaxAttempts int
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	DeliveryRetryInterval  time.Duration
	StockReconcileInterval time.Duration
	PendingExpiryInterval  time.Duration
	PendingOrderTTL        time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Missing .env is fine: production relies on real environment variables.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.CORSHosts = splitList(getEnv("CORS_ALLOWED_HOSTS", ""))

	// Database
	cfg.DB = DatabaseConfig{
		Driver:     strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
		Host:       getEnv("DB_HOST", ""),
		Port:       getEnv("DB_PORT", "5432"),
		User:       getEnv("DB_USER", ""),
		Password:   getEnv("DB_PASSWORD", ""),
		Name:       getEnv("DB_NAME", ""),
		SSLMode:    getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "./data/onhand.db"),
	}

	// Cache
	cfg.Cache = CacheConfig{
		Type: strings.ToLower(getEnv("CACHE_TYPE", "memory")),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// S3 (receipts bucket)
	cfg.S3 = S3Config{
		Region:          getEnv("S3_REGION", "ap-southeast-1"),
		Bucket:          getEnv("S3_BUCKET", "receipts"),
		Endpoint:        getEnv("S3_ENDPOINT", ""),
		PublicBaseURL:   getEnv("S3_PUBLIC_BASE_URL", ""),
		AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}

	// Kafka
	cfg.Kafka = KafkaConfig{
		Brokers:     splitList(getEnv("KAFKA_BROKERS", "")),
		OrdersTopic: getEnv("KAFKA_TOPIC_ORDERS", "onhand.orders"),
	}

	// Shop
	factor, err := decimal.NewFromString(getEnv("SHARED_PRICE_FACTOR", "0.60"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHARED_PRICE_FACTOR: %w", err)
	}
	if !factor.IsPositive() || factor.GreaterThan(decimal.NewFromInt(1)) {
		return nil, errors.New("SHARED_PRICE_FACTOR must be within (0, 1]")
	}
	cfg.Shop = ShopConfig{
		Currency:          getEnv("CURRENCY", "PHP"),
		SharedPriceFactor: factor,
		ReceiptMaxBytes:   int64(getEnvInt("RECEIPT_MAX_BYTES", 5<<20)),
	}

	cfg.Fulfillment = FulfillmentConfig{
		MaxAttempts: getEnvInt("FULFILL_MAX_ATTEMPTS", 5),
	}
	if cfg.Fulfillment.MaxAttempts < 1 {
		cfg.Fulfillment.MaxAttempts = 1
	}

	// Durations
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", "24h"); err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	if cfg.Cache.TTL, err = parseDurationEnv("CACHE_TTL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	if cfg.Worker.DeliveryRetryInterval, err = parseDurationEnv("DELIVERY_RETRY_INTERVAL", "1m"); err != nil {
		return nil, fmt.Errorf("invalid DELIVERY_RETRY_INTERVAL: %w", err)
	}
	if cfg.Worker.StockReconcileInterval, err = parseDurationEnv("STOCK_RECONCILE_INTERVAL", "10m"); err != nil {
		return nil, fmt.Errorf("invalid STOCK_RECONCILE_INTERVAL: %w", err)
	}
	if cfg.Worker.PendingExpiryInterval, err = parseDurationEnv("PENDING_EXPIRY_INTERVAL", "15m"); err != nil {
		return nil, fmt.Errorf("invalid PENDING_EXPIRY_INTERVAL: %w", err)
	}
	if cfg.Worker.PendingOrderTTL, err = parseDurationEnv("PENDING_ORDER_TTL", "72h"); err != nil {
		return nil, fmt.Errorf("invalid PENDING_ORDER_TTL: %w", err)
	}

	switch cfg.DB.Driver {
	case DriverPostgres:
		if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
			return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
		}
	case DriverSQLite:
		if cfg.DB.SQLitePath == "" {
			return nil, errors.New("SQLITE_PATH must be set when DB_DRIVER=sqlite")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (use postgres or sqlite)", cfg.DB.Driver)
	}

	if cfg.Cache.Type != "redis" && cfg.Cache.Type != "memory" {
		return nil, fmt.Errorf("unsupported CACHE_TYPE %q (use redis or memory)", cfg.Cache.Type)
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set for authentication")
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}

// splitList splits a comma separated value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
