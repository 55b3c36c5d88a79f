package config

import (
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret is the development fallback; release mode refuses to start with it
const DefaultJWTSecret = "default_super_secret_key"

// Config holds every runtime setting read from the environment
type Config struct {
	Port        string
	GinMode     string
	LogLevel    string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	CORSOrigins []string

	// Order engine
	OrderTxTimeout   time.Duration
	SnowflakeNode    int64
	AllowOverpayment bool
	ValidateCustomer bool
	OrderCacheTTL    time.Duration

	PrometheusEnabled bool
}

// Load reads configs/.env (if present) and then the process environment
func Load() *Config {
	_ = godotenv.Load("configs/.env")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: databaseURL(),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   getEnv("JWT_SECRET", DefaultJWTSecret),
		CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),

		OrderTxTimeout:   getEnvAsDuration("ORDER_TX_TIMEOUT", 10*time.Second),
		SnowflakeNode:    int64(getEnvAsInt("SNOWFLAKE_NODE", 1)),
		AllowOverpayment: getEnvAsBool("ALLOW_OVERPAYMENT", true),
		ValidateCustomer: getEnvAsBool("VALIDATE_CUSTOMER", false),
		OrderCacheTTL:    getEnvAsDuration("ORDER_CACHE_TTL", 10*time.Minute),

		PrometheusEnabled: getEnvAsBool("PROMETHEUS_ENABLED", true),
	}
}

// IsRelease reports whether gin runs in release mode
func (c *Config) IsRelease() bool {
	return c.GinMode == "release"
}

// databaseURL prefers DATABASE_URL, otherwise assembles a DSN from the DB_* variables
func databaseURL() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}

	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "postgres")
	dbPassword := getEnv("DB_PASSWORD", "postgres")
	dbName := getEnv("DB_NAME", "postgres")
	dbSslMode := getEnv("DB_SSLMODE", "disable")

	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(dbUser, dbPassword),
		Host:     net.JoinHostPort(dbHost, dbPort),
		Path:     "/" + dbName,
		RawQuery: url.Values{"sslmode": {dbSslMode}}.Encode(),
	}
	return dsn.String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
