package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/weiawesome/sync-party/internal/auth"
	"github.com/weiawesome/sync-party/internal/chat"
	"github.com/weiawesome/sync-party/internal/hub"
	pkgconfig "github.com/weiawesome/sync-party/pkg/config"
	"github.com/weiawesome/sync-party/pkg/database"
	pkglog "github.com/weiawesome/sync-party/pkg/log"
	"github.com/weiawesome/sync-party/pkg/middleware"
	"github.com/weiawesome/sync-party/pkg/pubsub"
	"github.com/weiawesome/sync-party/pkg/storage"
)

// EnvPrefix namespaces automatic environment overrides.
const EnvPrefix = "SYNCPARTY"

type Config struct {
	Server    ServerConfig
	Database  database.Config
	Session   SessionConfig
	Storage   storage.Config
	PubSub    pubsub.Config `mapstructure:"pubsub"`
	Chat      chat.Config
	WebSocket hub.Config `mapstructure:"websocket"`
	Media     MediaConfig
	RateLimit middleware.RateLimitConfig `mapstructure:"ratelimit"`
	Log       pkglog.Config

	v *viper.Viper
}

type ServerConfig struct {
	Host string
	Port int
	// InstanceID tags relayed chat messages. Empty generates one at start.
	InstanceID      string        `mapstructure:"instance_id"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	SecureCookie    bool          `mapstructure:"secure_cookie"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type SessionConfig struct {
	Store      string // memory, redis
	Secret     string
	Issuer     string
	TTL        time.Duration
	BcryptCost int              `mapstructure:"bcrypt_cost"`
	Redis      auth.RedisConfig `mapstructure:"redis"`
	// CleanupSchedule sweeps expired in-memory sessions.
	CleanupSchedule string `mapstructure:"cleanup_schedule"`
}

type MediaConfig struct {
	MaxUploadBytes    int64         `mapstructure:"max_upload_bytes"`
	OrphanGrace       time.Duration `mapstructure:"orphan_grace"`
	ReconcileSchedule string        `mapstructure:"reconcile_schedule"`
}

// Load reads the server configuration. path may be empty to search the
// default locations.
func Load(path string) (*Config, error) {
	v, err := pkgconfig.Load(pkgconfig.Options{
		Path:      path,
		Name:      "config",
		EnvPrefix: EnvPrefix,
	})
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.instance_id", "")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.secure_cookie", false)
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "sync_party")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.file_path", "./data/sync-party.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("session.store", "memory")
	v.SetDefault("session.secret", "")
	v.SetDefault("session.issuer", "sync-party")
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.bcrypt_cost", 10)
	v.SetDefault("session.cleanup_schedule", "@every 5m")
	v.SetDefault("session.redis.address", "localhost:6379")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.redis.key_prefix", "party:session:")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local.base_path", "./data/files")
	v.SetDefault("storage.local.url_prefix", "/files")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.s3.use_path_style", true)
	v.SetDefault("storage.s3.public_url", "")

	v.SetDefault("pubsub.driver", "none")
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.password", "")
	v.SetDefault("pubsub.redis.db", 0)
	v.SetDefault("pubsub.redis.pool_size", 10)
	v.SetDefault("pubsub.redis.read_timeout", "3s")
	v.SetDefault("pubsub.redis.write_timeout", "3s")
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "sync-party")
	v.SetDefault("pubsub.kafka.partitions", 4)

	v.SetDefault("chat.history_limit", 1000)
	v.SetDefault("chat.max_message_length", chat.DefaultMaxMessageLength)

	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.send_buffer", 256)

	v.SetDefault("media.max_upload_bytes", 512<<20)
	v.SetDefault("media.orphan_grace", "1h")
	v.SetDefault("media.reconcile_schedule", "@every 15m")

	v.SetDefault("ratelimit.requests_per_second", 1)
	v.SetDefault("ratelimit.burst", 5)
	v.SetDefault("ratelimit.idle_ttl", "10m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "party-server")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.instance_id", "INSTANCE_ID")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("session.secret", "SESSION_SECRET")
	v.BindEnv("session.redis.address", "REDIS_ADDRESS")
	v.BindEnv("session.redis.password", "REDIS_PASSWORD")
	v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	v.BindEnv("pubsub.redis.address", "REDIS_ADDRESS")
	v.BindEnv("pubsub.redis.password", "REDIS_PASSWORD")
	v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("storage.s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.s3.region", "S3_REGION")
	v.BindEnv("storage.s3.bucket", "S3_BUCKET")
	v.BindEnv("storage.s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("storage.s3.public_url", "S3_PUBLIC_URL")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.v = v
	return &cfg, nil
}

// Watch calls fn with the re-read configuration whenever the config file
// changes. Invalid edits are logged and skipped. It reports false when the
// configuration came from defaults and environment only.
func (c *Config) Watch(fn func(*Config)) bool {
	if c.v == nil {
		return false
	}
	return pkgconfig.Watch(c.v, func(e fsnotify.Event) {
		l := pkglog.L()
		var next Config
		if err := c.v.Unmarshal(&next); err != nil {
			l.Error().Err(err).Str("file", e.Name).Msg("failed to decode changed config")
			return
		}
		if err := next.Validate(); err != nil {
			l.Error().Err(err).Str("file", e.Name).Msg("ignoring invalid config change")
			return
		}
		next.v = c.v
		fn(&next)
	})
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	// An empty secret means a random per-process key, which other
	// instances cannot verify.
	switch {
	case c.Session.Secret == "" && (c.Session.Store == "redis" || c.PubSub.Enabled()):
		errs = append(errs, errors.New("session.secret is required when sessions are shared"))
	case c.Session.Secret != "" && len(c.Session.Secret) < 32:
		errs = append(errs, errors.New("session.secret must be at least 32 characters"))
	}
	switch c.Session.Store {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unsupported session.store: %q", c.Session.Store))
	}
	switch c.PubSub.Driver {
	case "", "none", "memory", "redis", "kafka":
	default:
		errs = append(errs, fmt.Errorf("unsupported pubsub.driver: %q", c.PubSub.Driver))
	}
	if c.Storage.Driver == "s3" && c.Storage.S3.Bucket == "" {
		errs = append(errs, errors.New("storage.s3.bucket is required for the s3 driver"))
	}
	return errors.Join(errs...)
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
