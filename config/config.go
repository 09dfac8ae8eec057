package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Quote providers.
const (
	QuoteProviderLocal  = "local"
	QuoteProviderRemote = "remote"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Fare     FareConfig     `mapstructure:"fare"`
	Quote    QuoteConfig    `mapstructure:"quote"`
	Matching MatchingConfig `mapstructure:"matching"`
	Events   EventsConfig   `mapstructure:"events"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Lock     LockConfig     `mapstructure:"lock"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // memory, redis, postgres
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

type WalletConfig struct {
	OpeningBalance int64 `mapstructure:"opening_balance"`
}

type FareConfig struct {
	Timezone string `mapstructure:"timezone"` // IANA zone used for the surge hour
}

// Location resolves the fare timezone, falling back to UTC.
func (f FareConfig) Location() *time.Location {
	if f.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type QuoteConfig struct {
	Provider    string        `mapstructure:"provider"` // local, remote
	RemoteURL   string        `mapstructure:"remote_url"`
	InsightsURL string        `mapstructure:"insights_url"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	TTL         time.Duration `mapstructure:"ttl"`
}

type MatchingConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

type EventsConfig struct {
	Buffer  int    `mapstructure:"buffer"`
	Channel string `mapstructure:"channel"`
}

type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Secret  string        `mapstructure:"secret"` // HMAC key for X-Dispatch-Signature
	Timeout time.Duration `mapstructure:"timeout"`
}

type LockConfig struct {
	TTL  time.Duration `mapstructure:"ttl"`
	Wait time.Duration `mapstructure:"wait"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: DISPATCH_.
// Nested keys use underscore: DISPATCH_STORAGE_DRIVER, DISPATCH_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// DISPATCH_DATABASE_HOST -> database.host
	v.SetEnvPrefix("DISPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The file is optional; env vars can suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "courier_dispatch")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrate", true)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "courier-dispatch")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("wallet.opening_balance", 5000)
	v.SetDefault("fare.timezone", "Africa/Lagos")
	v.SetDefault("quote.provider", QuoteProviderLocal)
	v.SetDefault("quote.remote_url", "")
	v.SetDefault("quote.insights_url", "")
	v.SetDefault("quote.api_key", "")
	v.SetDefault("quote.timeout", "5s")
	v.SetDefault("quote.max_retries", 2)
	v.SetDefault("quote.ttl", "15m")
	v.SetDefault("matching.delay", "0s")
	v.SetDefault("events.buffer", 64)
	v.SetDefault("events.channel", "dispatch:events")
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("lock.ttl", "10s")
	v.SetDefault("lock.wait", "5s")
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverRedis, DriverPostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Quote.Provider {
	case QuoteProviderLocal:
	case QuoteProviderRemote:
		if c.Quote.RemoteURL == "" {
			return fmt.Errorf("quote.remote_url is required for the remote provider")
		}
	default:
		return fmt.Errorf("unknown quote provider %q", c.Quote.Provider)
	}
	if c.Wallet.OpeningBalance < 0 {
		return fmt.Errorf("wallet.opening_balance must not be negative")
	}
	if c.Lock.TTL < time.Second {
		return fmt.Errorf("lock.ttl must be at least 1s")
	}
	if c.Lock.Wait <= 0 {
		return fmt.Errorf("lock.wait must be positive")
	}
	if c.Matching.Delay < 0 {
		return fmt.Errorf("matching.delay must not be negative")
	}
	return nil
}

// UsesRedis reports whether a redis client is needed.
func (c *Config) UsesRedis() bool {
	return c.Storage.Driver == DriverRedis || c.Redis.Enabled
}
