package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	NewRelic    NewRelicConfig
	DriverAPI   DriverAPIConfig
	Cache       CacheConfig
	Prefetch    PrefetchConfig
	Stats       StatsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the key/value connection string used by lib/pq.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as golang-migrate expects.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// DriverAPIConfig holds the remote driver analytics API settings.
type DriverAPIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// CacheConfig holds driver cache settings.
type CacheConfig struct {
	Capacity int
	TTL      time.Duration
	// SnapshotFile switches the durable snapshot from Redis to a local file.
	SnapshotFile string
}

// PrefetchConfig holds the look-ahead window settings.
type PrefetchConfig struct {
	InitialBatch     int
	TopUpBatch       int
	LowWaterMark     int
	PriorityCount    int
	AvgTimePerDriver time.Duration
}

// StatsConfig holds dashboard statistics settings.
type StatsConfig struct {
	Timezone string
}

// Location resolves the configured timezone, falling back to UTC.
func (c StatsConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load loads configuration from environment variables and an optional app.env file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	setDefaults(v)
	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
			CORSOrigins:  parseList(v.GetString("SERVER_CORS_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		NewRelic: NewRelicConfig{
			AppName:    v.GetString("NEW_RELIC_APP_NAME"),
			LicenseKey: v.GetString("NEW_RELIC_LICENSE_KEY"),
			Enabled:    v.GetBool("NEW_RELIC_ENABLED"),
		},
		DriverAPI: DriverAPIConfig{
			BaseURL: strings.TrimRight(v.GetString("DRIVER_API_URL"), "/"),
			Timeout: v.GetDuration("DRIVER_API_TIMEOUT"),
		},
		Cache: CacheConfig{
			Capacity:     v.GetInt("DRIVER_CACHE_CAPACITY"),
			TTL:          v.GetDuration("DRIVER_CACHE_TTL"),
			SnapshotFile: v.GetString("DRIVER_CACHE_SNAPSHOT_FILE"),
		},
		Prefetch: PrefetchConfig{
			InitialBatch:     v.GetInt("PREFETCH_INITIAL_BATCH"),
			TopUpBatch:       v.GetInt("PREFETCH_TOPUP_BATCH"),
			LowWaterMark:     v.GetInt("PREFETCH_LOW_WATER_MARK"),
			PriorityCount:    v.GetInt("PREFETCH_PRIORITY_COUNT"),
			AvgTimePerDriver: v.GetDuration("PREFETCH_AVG_TIME_PER_DRIVER"),
		},
		Stats: StatsConfig{
			Timezone: v.GetString("STATS_TIMEZONE"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_READ_TIMEOUT", 10*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER_CORS_ORIGINS", "*")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sagt_crm")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("NEW_RELIC_APP_NAME", "sagt-crm")
	v.SetDefault("NEW_RELIC_ENABLED", false)
	v.SetDefault("DRIVER_API_TIMEOUT", 10*time.Second)
	v.SetDefault("DRIVER_CACHE_CAPACITY", 100)
	v.SetDefault("DRIVER_CACHE_TTL", 5*time.Minute)
	v.SetDefault("PREFETCH_INITIAL_BATCH", 20)
	v.SetDefault("PREFETCH_TOPUP_BATCH", 10)
	v.SetDefault("PREFETCH_LOW_WATER_MARK", 5)
	v.SetDefault("PREFETCH_PRIORITY_COUNT", 3)
	v.SetDefault("PREFETCH_AVG_TIME_PER_DRIVER", 2*time.Minute)
	v.SetDefault("STATS_TIMEZONE", "UTC")
}

func validate(cfg *Config) error {
	if cfg.DriverAPI.BaseURL == "" {
		return fmt.Errorf("DRIVER_API_URL is required")
	}
	if cfg.Cache.Capacity <= 0 {
		return fmt.Errorf("DRIVER_CACHE_CAPACITY must be positive")
	}
	if cfg.Prefetch.AvgTimePerDriver <= 0 {
		return fmt.Errorf("PREFETCH_AVG_TIME_PER_DRIVER must be positive")
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
