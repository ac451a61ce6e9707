package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port          string `env:"PORT,           default=8080"`
	Env           string `env:"ENV,            default=development"`
	LogLevel      string `env:"LOG_LEVEL,      default=info"`
	GatewaySecret string `env:"GATEWAY_SECRET"`

	Upstream UpstreamConfig
	Session  SessionConfig
	Redis    RedisConfig
	Mongo    MongoConfig
	Export   ExportConfig
}

type UpstreamConfig struct {
	URL             string        `env:"UPSTREAM_URL"`
	LoginTimeout    time.Duration `env:"UPSTREAM_LOGIN_TIMEOUT,   default=30s"`
	RequestTimeout  time.Duration `env:"UPSTREAM_REQUEST_TIMEOUT, default=10s"`
	ForceLogoutWait time.Duration `env:"UPSTREAM_FORCE_WAIT,      default=2s"`
}

// SessionConfig holds the lifecycle policy constants. Tests compress these to
// milliseconds; production defaults match the backend's 30-minute window.
type SessionConfig struct {
	IdleTimeout         time.Duration `env:"SESSION_IDLE_TIMEOUT,      default=30m"`
	ValidateInterval    time.Duration `env:"SESSION_VALIDATE_INTERVAL, default=30s"`
	IdleCheckInterval   time.Duration `env:"SESSION_IDLE_CHECK,        default=60s"`
	GraceWindow         time.Duration `env:"SESSION_GRACE_WINDOW,      default=5m"`
	RenewalInterval     time.Duration `env:"SESSION_RENEWAL_INTERVAL,  default=10m"`
	HeartbeatInterval   time.Duration `env:"SESSION_HEARTBEAT,         default=5m"`
	ActivityDebounce    time.Duration `env:"SESSION_ACTIVITY_DEBOUNCE, default=10s"`
	LogoutNotifyTimeout time.Duration `env:"SESSION_LOGOUT_NOTIFY,     default=3s"`
	TokenTTL            time.Duration `env:"SESSION_TOKEN_TTL,         default=8h"`
	ActivityLogCap      int           `env:"SESSION_ACTIVITY_CAP,      default=50"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=evac_gateway"`
}

// ExportConfig enables archival of generated CSV exports to an S3-compatible
// bucket. Disabled unless an endpoint is configured.
type ExportConfig struct {
	Endpoint  string `env:"EXPORT_S3_ENDPOINT"`
	AccessKey string `env:"EXPORT_S3_ACCESS_KEY"`
	SecretKey string `env:"EXPORT_S3_SECRET_KEY"`
	Bucket    string `env:"EXPORT_S3_BUCKET, default=evac-exports"`
	Region    string `env:"EXPORT_S3_REGION"`
	UseSSL    bool   `env:"EXPORT_S3_SSL,    default=true"`
}

func (e ExportConfig) Enabled() bool { return e.Endpoint != "" }

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Upstream.URL == "" {
		return nil, fmt.Errorf("config: UPSTREAM_URL is required")
	}
	if cfg.GatewaySecret == "" {
		return nil, fmt.Errorf("config: GATEWAY_SECRET is required")
	}
	return &cfg, nil
}
