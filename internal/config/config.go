package config

import (
	"fmt"
	"time"

	"orgchat-backend/pkg/constants"
	"orgchat-backend/pkg/env"
)

// Config holds all configuration for the signal service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Log      LogConfig
	Call     CallConfig
	Presence PresenceConfig
	Push     PushConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port        int
	Environment string // development, staging, production
	ServiceName string
}

// DatabaseConfig holds PostgreSQL configuration (read-only directory lookups)
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
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

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string // debug, info, warn, error
	Format   string // json, text
	Output   string // stdout, file
	FilePath string
}

// CallConfig holds call-state lifecycle configuration
type CallConfig struct {
	StateTTL   time.Duration // active-call record expiry
	PendingTTL time.Duration // unanswered invite expiry (missed call)
}

// PresenceConfig holds presence lifecycle configuration
type PresenceConfig struct {
	TTL               time.Duration
	HeartbeatInterval time.Duration
}

// PushConfig holds push notification configuration
type PushConfig struct {
	Provider string // mock, fcm, apns
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        env.GetInt("PORT", 8084),
			Environment: env.GetString("ENV", "development"),
			ServiceName: env.GetString("SERVICE_NAME", "signal-service"),
		},
		Database: DatabaseConfig{
			Host:     env.GetString("DB_HOST", "localhost"),
			Port:     env.GetInt("DB_PORT", 5432),
			User:     env.GetString("DB_USER", "orgchat"),
			Password: env.GetStringFromFile("DB_PASSWORD", ""),
			Database: env.GetString("DB_NAME", "orgchat"),
			SSLMode:  env.GetString("DB_SSL_MODE", "disable"),
			MaxConns: env.GetInt("DB_MAX_CONNS", 25),
			MinConns: env.GetInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     env.GetString("REDIS_HOST", "localhost"),
			Port:     env.GetInt("REDIS_PORT", 6379),
			Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
			DB:       env.GetInt("REDIS_DB", 0),
			PoolSize: env.GetInt("REDIS_POOL_SIZE", 10),
			Timeout:  time.Duration(env.GetInt("REDIS_TIMEOUT", 5)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:             env.GetStringFromFile("JWT_SECRET", ""),
			AccessTokenExpiry:  time.Duration(env.GetInt("JWT_ACCESS_EXPIRY", 15)) * time.Minute,
			RefreshTokenExpiry: time.Duration(env.GetInt("JWT_REFRESH_EXPIRY", 720)) * time.Hour,
		},
		Log: LogConfig{
			Level:    env.GetString("LOG_LEVEL", "info"),
			Format:   env.GetString("LOG_FORMAT", "json"),
			Output:   env.GetString("LOG_OUTPUT", "stdout"),
			FilePath: env.GetString("LOG_FILE_PATH", "/logs/app.log"),
		},
		Call: CallConfig{
			StateTTL:   env.GetDuration("CALL_STATE_TTL", constants.CallStateTTL),
			PendingTTL: env.GetDuration("CALL_PENDING_TTL", constants.PendingCallTTL),
		},
		Presence: PresenceConfig{
			TTL:               env.GetDuration("PRESENCE_TTL", constants.PresenceTTL),
			HeartbeatInterval: env.GetDuration("PRESENCE_HEARTBEAT_INTERVAL", constants.PresenceHeartbeatInterval),
		},
		Push: PushConfig{
			Provider: env.GetString("PUSH_PROVIDER", "mock"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Server.Environment == "production" && c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.Server.Environment == "production" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	// A heartbeat must land before the flag expires
	if c.Presence.HeartbeatInterval >= c.Presence.TTL {
		return fmt.Errorf("presence heartbeat interval (%s) must be shorter than presence TTL (%s)",
			c.Presence.HeartbeatInterval, c.Presence.TTL)
	}
	return nil
}
