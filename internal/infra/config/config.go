package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App      AppSettings      `mapstructure:"app"`
	Chat     ChatSettings     `mapstructure:"chat"`
	Admin    AdminSettings    `mapstructure:"admin"`
	Postgres PostgresSettings `mapstructure:"postgres"`
	Redis    RedisSettings    `mapstructure:"redis"`
	Kafka    KafkaSettings    `mapstructure:"kafka"`
	Auth     AuthSettings     `mapstructure:"auth"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// ChatSettings configures the persistent-connection listener and the
// per-session protocol limits.
type ChatSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	MaxPayload        int           `mapstructure:"max_payload"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	HeartbeatGrace    int           `mapstructure:"heartbeat_grace"`
	WriteQueueSize    int           `mapstructure:"write_queue_size"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

// AdminSettings configures the HTTP sidecar serving health checks and metrics.
type AdminSettings struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the Redis connection plus the key prefixes and
// bounds for the offline queue, token denylist and presence records.
type RedisSettings struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	DB             int           `mapstructure:"db"`
	Password       string        `mapstructure:"password"`
	TLSEnabled     bool          `mapstructure:"tls_enabled"`
	QueuePrefix    string        `mapstructure:"queue_prefix"`
	QueueMaxDepth  int64         `mapstructure:"queue_max_depth"`
	QueueTTL       time.Duration `mapstructure:"queue_ttl"`
	DenylistPrefix string        `mapstructure:"denylist_prefix"`
	PresencePrefix string        `mapstructure:"presence_prefix"`
	PresenceTTL    time.Duration `mapstructure:"presence_ttl"`
}

// KafkaSettings configures the lifecycle event producer.
type KafkaSettings struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// AuthSettings configures session token minting.
type AuthSettings struct {
	TokenSecret string        `mapstructure:"token_secret"`
	TokenIssuer string        `mapstructure:"token_issuer"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("CHAT")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"chat.host",
		"chat.port",
		"chat.max_payload",
		"chat.heartbeat_interval",
		"chat.heartbeat_grace",
		"chat.write_queue_size",
		"chat.write_timeout",
		"admin.host",
		"admin.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.queue_prefix",
		"redis.queue_max_depth",
		"redis.queue_ttl",
		"redis.denylist_prefix",
		"redis.presence_prefix",
		"redis.presence_ttl",
		"kafka.enabled",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"auth.token_secret",
		"auth.token_issuer",
		"auth.token_ttl",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "socket-chat")
	v.SetDefault("app.env", "development")

	v.SetDefault("chat.host", "0.0.0.0")
	v.SetDefault("chat.port", 9000)
	v.SetDefault("chat.max_payload", 256*1024)
	v.SetDefault("chat.heartbeat_interval", "30s")
	v.SetDefault("chat.heartbeat_grace", 3)
	v.SetDefault("chat.write_queue_size", 64)
	v.SetDefault("chat.write_timeout", "10s")

	v.SetDefault("admin.host", "0.0.0.0")
	v.SetDefault("admin.port", 8080)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "chat")
	v.SetDefault("postgres.password", "chat_password")
	v.SetDefault("postgres.database", "chat")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.queue_prefix", "chat:offline")
	v.SetDefault("redis.queue_max_depth", 1000)
	v.SetDefault("redis.queue_ttl", "168h")
	v.SetDefault("redis.denylist_prefix", "chat:denylist")
	v.SetDefault("redis.presence_prefix", "chat:presence")
	v.SetDefault("redis.presence_ttl", "5m")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "chat")
	v.SetDefault("kafka.async", true)

	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.token_issuer", "socket-chat")
	v.SetDefault("auth.token_ttl", "24h")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "CHAT_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
