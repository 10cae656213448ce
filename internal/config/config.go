package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	SMTP     SMTPConfig
	JWT      JWTConfig
	OptOut   OptOutConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	Password string
}

// SMTPConfig holds outbound mail configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// JWTConfig holds operator token configuration
type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// OptOutConfig holds the removal workflow policy knobs
type OptOutConfig struct {
	PublicBaseURL       string
	AdminEmail          string
	TokenTTL            time.Duration
	RateLimitMax        int64
	RateLimitWindow     time.Duration
	DuplicatePendingMax int64
	NotifyTimeout       time.Duration
	DigestInterval      time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "obit_optout"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "noreply@localhost"),
			FromName: getEnv("SMTP_FROM_NAME", "Obituary Opt-Out"),
			TLS:      getEnvAsBool("SMTP_TLS", true),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "change-this-in-production"),
			Expiry: getEnvAsDuration("JWT_EXPIRY", 12*time.Hour),
		},
		OptOut: OptOutConfig{
			PublicBaseURL:       getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
			AdminEmail:          getEnv("ADMIN_EMAIL", "admin@localhost"),
			TokenTTL:            getEnvAsDuration("OPTOUT_TOKEN_TTL", 48*time.Hour),
			RateLimitMax:        int64(getEnvAsInt("OPTOUT_RATE_LIMIT_MAX", 5)),
			RateLimitWindow:     getEnvAsDuration("OPTOUT_RATE_LIMIT_WINDOW", time.Hour),
			DuplicatePendingMax: int64(getEnvAsInt("OPTOUT_DUPLICATE_PENDING_MAX", 2)),
			NotifyTimeout:       getEnvAsDuration("OPTOUT_NOTIFY_TIMEOUT", 10*time.Second),
			DigestInterval:      getEnvAsDuration("OPTOUT_DIGEST_INTERVAL", 6*time.Hour),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
