package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
	Session   SessionConfig   `mapstructure:"session"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type StorageConfig struct {
	Type           string        `mapstructure:"type"` // memory, disk, sqlite, mysql, redis
	DataDir        string        `mapstructure:"data_dir"`
	CacheSize      int           `mapstructure:"cache_size"`
	DSN            string        `mapstructure:"dsn"`
	BackupInterval time.Duration `mapstructure:"backup_interval"`
	Redis          RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"` // 0 keeps keys forever
}

type EngineConfig struct {
	DelayPerChar    time.Duration `mapstructure:"delay_per_char"`
	MinDelay        time.Duration `mapstructure:"min_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"`
	RandomSeed      uint64        `mapstructure:"random_seed"` // 0 seeds from the clock
	SuggestionCount int           `mapstructure:"suggestion_count"`
}

type KnowledgeConfig struct {
	Path string `mapstructure:"path"` // empty uses the embedded knowledge base
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

var cfg *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept"})
	v.SetDefault("cors.exposed_headers", []string{"Content-Length"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 43200)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.cleanup_interval", time.Hour)

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.cache_size", 100)
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.backup_interval", 0)
	v.SetDefault("storage.redis.addr", "127.0.0.1:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.prefix", "chat")
	v.SetDefault("storage.redis.ttl", 0)

	v.SetDefault("engine.delay_per_char", 15*time.Millisecond)
	v.SetDefault("engine.min_delay", 500*time.Millisecond)
	v.SetDefault("engine.max_delay", 2500*time.Millisecond)
	v.SetDefault("engine.random_seed", 0)
	v.SetDefault("engine.suggestion_count", 3)

	v.SetDefault("knowledge.path", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads configPath (YAML) over the defaults. An empty path uses the
// defaults alone. Environment variables prefixed CHAT_ override both, e.g.
// CHAT_SERVER_PORT or CHAT_STORAGE_TYPE.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	cfg = c
	return c, nil
}

func Get() *Config {
	return cfg
}

var ErrInvalidConfig = errors.New("invalid config")

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	switch c.Storage.Type {
	case "memory", "disk", "sqlite", "mysql", "redis":
	default:
		return fmt.Errorf("%w: unknown storage.type %q", ErrInvalidConfig, c.Storage.Type)
	}
	if c.Storage.Type == "mysql" && c.Storage.DSN == "" {
		return fmt.Errorf("%w: storage.dsn is required for mysql", ErrInvalidConfig)
	}
	if c.Storage.Redis.TTL < 0 {
		return fmt.Errorf("%w: storage.redis.ttl must not be negative", ErrInvalidConfig)
	}
	if c.Engine.MinDelay < 0 || c.Engine.MaxDelay < c.Engine.MinDelay {
		return fmt.Errorf("%w: engine delays must satisfy 0 <= min_delay <= max_delay", ErrInvalidConfig)
	}
	if c.Engine.SuggestionCount <= 0 {
		return fmt.Errorf("%w: engine.suggestion_count must be positive", ErrInvalidConfig)
	}
	return nil
}
