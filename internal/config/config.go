package config

import (
	"fmt"
	"time"

	"skillswap-backend/pkg/env"
)

// Config holds all configuration for the realtime service
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Call     CallConfig
	Log      LogConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Environment    string // development, staging, production
	AllowedOrigins []string
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// JWTConfig holds session token configuration
type JWTConfig struct {
	Secret        string
	SessionExpiry time.Duration
}

// CallConfig holds call signaling configuration
type CallConfig struct {
	// RingTimeout bounds how long a Ringing session waits for accept/reject
	// before it is torn down. Zero disables the timeout.
	RingTimeout time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           env.GetInt("SERVER_PORT", 8080),
			Environment:    env.GetString("ENVIRONMENT", "development"),
			AllowedOrigins: []string{env.GetString("ALLOWED_ORIGIN", "http://localhost:3000")},
		},
		Postgres: PostgresConfig{
			Host:     env.GetString("POSTGRES_HOST", "localhost"),
			Port:     env.GetInt("POSTGRES_PORT", 5432),
			User:     env.GetString("POSTGRES_USER", "skillswap"),
			Password: env.GetStringFromFile("POSTGRES_PASSWORD", ""),
			Database: env.GetString("POSTGRES_DATABASE", "skillswap_db"),
			SSLMode:  env.GetString("POSTGRES_SSLMODE", "disable"),
			MaxConns: env.GetInt("POSTGRES_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Host:     env.GetString("REDIS_HOST", "localhost"),
			Port:     env.GetInt("REDIS_PORT", 6379),
			Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
			DB:       env.GetInt("REDIS_DB", 0),
			PoolSize: env.GetInt("REDIS_POOL_SIZE", 10),
			Timeout:  env.GetDuration("REDIS_TIMEOUT", 5*time.Second),
		},
		JWT: JWTConfig{
			Secret:        env.GetStringFromFile("JWT_SECRET", ""),
			SessionExpiry: env.GetDuration("SESSION_EXPIRY", 24*time.Hour),
		},
		Call: CallConfig{
			RingTimeout: env.GetDuration("CALL_RING_TIMEOUT", 60*time.Second),
		},
		Log: LogConfig{
			Level:  env.GetString("LOG_LEVEL", "info"),
			Format: env.GetString("LOG_FORMAT", "json"),
		},
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	return cfg, nil
}
