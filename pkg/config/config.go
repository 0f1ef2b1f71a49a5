package config

import (
	"fmt"
	"os"
	"time"

	"nutritrack-signaling/pkg/env"
)

// Presence backends
const (
	PresenceBackendMemory = "memory"
	PresenceBackendRedis  = "redis"
)

// Config holds all configuration for the signaling service
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	Presence  PresenceConfig
	WebSocket WebSocketConfig
	Push      PushConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port              int
	Environment       string // development, staging, production
	ServiceName       string
	AllowedOrigins    []string
	RequestTimeout    time.Duration
	RateLimitRequests int // per user or client IP and window, 0 disables
	RateLimitWindow   time.Duration
}

// DatabaseConfig holds CockroachDB configuration
type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Database      string
	SSLMode       string
	MaxConns      int
	MinConns      int
	RunMigrations bool
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

// JWTConfig holds JWT configuration. An empty secret disables authentication.
type JWTConfig struct {
	Secret   string
	Audience string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string // debug, info, warn, error
	Format   string // json, text
	Output   string // stdout, file
	FilePath string
}

// PresenceConfig selects the presence registry backend
type PresenceConfig struct {
	Backend string // memory, redis
	NodeID  string
	TTL     time.Duration
	Shards  int
}

// WebSocketConfig holds gateway limits
type WebSocketConfig struct {
	MaxConnections int
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
	SendBuffer     int
	EventsPerSec   float64
	EventBurst     int
}

// PushConfig holds push provider configuration
type PushConfig struct {
	Provider                string // mock, firebase, apns
	FirebaseProjectID       string
	FirebaseCredentialsPath string
	APNsKeyPath             string
	APNsKeyID               string
	APNsTeamID              string
	APNsCertPath            string
	APNsCertPassword        string
	APNsBundleID            string
	APNsProduction          bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        env.GetInt("PORT", 8083),
			Environment: env.GetString("ENV", "development"),
			ServiceName: env.GetString("SERVICE_NAME", "signaling-service"),
			AllowedOrigins: env.GetSlice("CORS_ALLOWED_ORIGINS", []string{
				"http://localhost:3000",
				"http://127.0.0.1:3000",
			}),
			RequestTimeout:    env.GetDuration("HTTP_REQUEST_TIMEOUT", 15*time.Second),
			RateLimitRequests: env.GetInt("RATE_LIMIT_REQUESTS", 120),
			RateLimitWindow:   env.GetDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Database: DatabaseConfig{
			Host:          env.GetString("DB_HOST", "localhost"),
			Port:          env.GetInt("DB_PORT", 26257),
			User:          env.GetString("DB_USER", "root"),
			Password:      env.GetStringFromFile("DB_PASSWORD", ""),
			Database:      env.GetString("DB_NAME", "nutritrack"),
			SSLMode:       env.GetString("DB_SSL_MODE", "disable"),
			MaxConns:      env.GetInt("DB_MAX_CONNS", 25),
			MinConns:      env.GetInt("DB_MIN_CONNS", 5),
			RunMigrations: env.GetBool("DB_RUN_MIGRATIONS", true),
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
			Secret:   env.GetStringFromFile("JWT_SECRET", ""),
			Audience: env.GetString("JWT_AUDIENCE", "nutritrack-api"),
		},
		Log: LogConfig{
			Level:    env.GetString("LOG_LEVEL", "info"),
			Format:   env.GetString("LOG_FORMAT", "json"),
			Output:   env.GetString("LOG_OUTPUT", "stdout"),
			FilePath: env.GetString("LOG_FILE_PATH", "/logs/signaling.log"),
		},
		Presence: PresenceConfig{
			Backend: env.GetString("PRESENCE_BACKEND", PresenceBackendMemory),
			NodeID:  env.GetString("NODE_ID", defaultNodeID()),
			TTL:     env.GetDuration("PRESENCE_TTL", 5*time.Minute),
			Shards:  env.GetInt("PRESENCE_SHARDS", 32),
		},
		WebSocket: WebSocketConfig{
			MaxConnections: env.GetInt("WS_MAX_SIGNALING_CONNECTIONS", 1000),
			PingInterval:   env.GetDuration("WS_PING_INTERVAL", 54*time.Second),
			WriteTimeout:   env.GetDuration("WS_WRITE_TIMEOUT", 10*time.Second),
			MaxMessageSize: int64(env.GetInt("WS_MAX_MESSAGE_SIZE", 64*1024)),
			SendBuffer:     env.GetInt("WS_SEND_BUFFER", 256),
			EventsPerSec:   env.GetFloat("WS_EVENTS_PER_SEC", 50),
			EventBurst:     env.GetInt("WS_EVENT_BURST", 100),
		},
		Push: PushConfig{
			Provider:                env.GetString("PUSH_PROVIDER", "mock"),
			FirebaseProjectID:       env.GetStringFromFile("FIREBASE_PROJECT_ID", ""),
			FirebaseCredentialsPath: env.GetString("FIREBASE_CREDENTIALS_PATH",
				env.GetString("GOOGLE_APPLICATION_CREDENTIALS", "")),
			APNsKeyPath:             env.GetString("APNS_KEY_PATH", ""),
			APNsKeyID:               env.GetString("APNS_KEY_ID", ""),
			APNsTeamID:              env.GetString("APNS_TEAM_ID", ""),
			APNsCertPath:            env.GetString("APNS_CERT_PATH", ""),
			APNsCertPassword:        env.GetStringFromFile("APNS_CERT_PASSWORD", ""),
			APNsBundleID:            env.GetString("APNS_BUNDLE_ID", ""),
			APNsProduction:          env.GetBool("APNS_PRODUCTION", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether ENV=production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.JWT.Secret == "" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.Push.Provider == "mock" {
			return fmt.Errorf("PUSH_PROVIDER=mock is not allowed in production")
		}
	}
	if c.JWT.Secret != "" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	switch c.Push.Provider {
	case "mock", "firebase", "apns":
	default:
		return fmt.Errorf("unknown PUSH_PROVIDER %q", c.Push.Provider)
	}

	switch c.Presence.Backend {
	case PresenceBackendMemory, PresenceBackendRedis:
	default:
		return fmt.Errorf("unknown PRESENCE_BACKEND %q", c.Presence.Backend)
	}
	if c.Presence.NodeID == "" {
		return fmt.Errorf("NODE_ID must not be empty")
	}
	if c.Presence.Shards <= 0 {
		return fmt.Errorf("PRESENCE_SHARDS must be positive")
	}

	if c.WebSocket.MaxConnections <= 0 {
		return fmt.Errorf("WS_MAX_SIGNALING_CONNECTIONS must be positive")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("WS_SEND_BUFFER must be positive")
	}
	if c.WebSocket.EventsPerSec <= 0 || c.WebSocket.EventBurst <= 0 {
		return fmt.Errorf("WS_EVENTS_PER_SEC and WS_EVENT_BURST must be positive")
	}

	return nil
}

func defaultNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "signaling-0"
	}
	return host
}
