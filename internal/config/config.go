package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Discord   DiscordConfig
	Lifecycle LifecycleConfig
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

	// AutoMigrate applies pending goose migrations when the server starts.
	AutoMigrate bool
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// RedisConfig holds Redis configuration. An empty URL disables the
// cross-instance event fan-out and the idempotency middleware.
type RedisConfig struct {
	URL      string
	Password string
}

// Enabled reports whether a Redis URL was configured.
func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// DiscordConfig holds the outbound webhook settings
type DiscordConfig struct {
	WebhookURL     string
	WebhookTimeout time.Duration
	BindingCodeTTL time.Duration
}

// LifecycleConfig tunes key/invite lifecycle processing
type LifecycleConfig struct {
	// SweepInterval of 0 disables the background expiry sweep.
	SweepInterval       time.Duration
	DispatcherQueueSize int
	CodeMaxAttempts     int
	InviteExpiryDays    int
	QuotaPeriod         time.Duration
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
			DBName:   getEnv("DB_NAME", "keygate"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret:        getEnv("JWT_SECRET", "change-this-in-production"),
			AccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
		},
		Discord: DiscordConfig{
			WebhookURL:     getEnv("DISCORD_WEBHOOK_URL", ""),
			WebhookTimeout: getEnvAsDuration("DISCORD_WEBHOOK_TIMEOUT", 5*time.Second),
			BindingCodeTTL: getEnvAsDuration("DISCORD_BINDING_CODE_TTL", 15*time.Minute),
		},
		Lifecycle: LifecycleConfig{
			SweepInterval:       getEnvAsDuration("KEY_EXPIRY_SWEEP_INTERVAL", 0),
			DispatcherQueueSize: getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			CodeMaxAttempts:     getEnvAsInt("CODE_MAX_ATTEMPTS", 5),
			InviteExpiryDays:    getEnvAsInt("INVITE_EXPIRY_DAYS", 7),
			QuotaPeriod:         getEnvAsDuration("INVITE_QUOTA_PERIOD", 30*24*time.Hour),
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
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
