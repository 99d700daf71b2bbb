package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Feed     FeedConfig     `mapstructure:"feed"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Session  SessionConfig  `mapstructure:"session"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// FeedConfig selects and tunes the tick source
type FeedConfig struct {
	Mode               string        `mapstructure:"mode"` // http or websocket
	URL                string        `mapstructure:"url"`
	Interval           time.Duration `mapstructure:"interval"`
	Timeout            time.Duration `mapstructure:"timeout"`
	RetryMaxElapsed    time.Duration `mapstructure:"retry_max_elapsed"`
	RateLimit          float64       `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	RateBurst          int           `mapstructure:"rate_burst"`
	BreakerMaxFailures uint32        `mapstructure:"breaker_max_failures"`
	BreakerCooldown    time.Duration `mapstructure:"breaker_cooldown"`
	QueueSize          int           `mapstructure:"queue_size"`
}

// AnalysisConfig holds the analysis pipeline parameters
type AnalysisConfig struct {
	Asset             string        `mapstructure:"asset"`
	WindowCapacity    int           `mapstructure:"window_capacity"`
	StructureLookback int           `mapstructure:"structure_lookback"`
	SwingRadius       int           `mapstructure:"swing_radius"`
	MaxSwings         int           `mapstructure:"max_swings"`
	ATRPeriod         int           `mapstructure:"atr_period"`
	FastATRPeriod     int           `mapstructure:"fast_atr_period"`
	HighVolRatio      float64       `mapstructure:"high_vol_ratio"`
	TrendRatio        float64       `mapstructure:"trend_ratio"`
	AlertMinTicks     int           `mapstructure:"alert_min_ticks"`
	VolumeLookback    int           `mapstructure:"volume_lookback"`
	VolumeSpike       float64       `mapstructure:"volume_spike"`
	ExpansionMultiple float64       `mapstructure:"expansion_multiple"`
	Cooldown          time.Duration `mapstructure:"cooldown"`
}

// SessionConfig holds monitoring session behavior
type SessionConfig struct {
	Autostart          bool `mapstructure:"autostart"`
	HistorySize        int  `mapstructure:"history_size"`
	ChartPoints        int  `mapstructure:"chart_points"`
	CheckpointInterval int  `mapstructure:"checkpoint_interval"` // cycles between checkpoints
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// RedisConfig holds the alert publisher configuration
type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Addr         string `mapstructure:"addr"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	Channel      string `mapstructure:"channel"`
	HistoryKey   string `mapstructure:"history_key"`
	HistoryLimit int    `mapstructure:"history_limit"`
}

// StorageConfig holds checkpoint and alert journal persistence
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	DBPath    string `mapstructure:"db_path"`
	MaxAlerts int    `mapstructure:"max_alerts"`
}

// HTTPConfig holds the display API configuration
type HTTPConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path skips the file and uses defaults plus environment.
// Variables from a .env file in the working directory are loaded first
// when one exists; variables already set in the environment win.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TICKWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Feed defaults
	v.SetDefault("feed.mode", "http")
	v.SetDefault("feed.url", "http://127.0.0.1:9000/tick")
	v.SetDefault("feed.interval", "5s")
	v.SetDefault("feed.timeout", "3s")
	v.SetDefault("feed.retry_max_elapsed", "2s")
	v.SetDefault("feed.rate_limit", 0.0) // 0 = unlimited
	v.SetDefault("feed.rate_burst", 1)
	v.SetDefault("feed.breaker_max_failures", 5)
	v.SetDefault("feed.breaker_cooldown", "30s")
	v.SetDefault("feed.queue_size", 256)

	// Analysis defaults
	v.SetDefault("analysis.asset", "BTC-USD")
	v.SetDefault("analysis.window_capacity", 100)
	v.SetDefault("analysis.structure_lookback", 20)
	v.SetDefault("analysis.swing_radius", 2)
	v.SetDefault("analysis.max_swings", 3)
	v.SetDefault("analysis.atr_period", 14)
	v.SetDefault("analysis.fast_atr_period", 5)
	v.SetDefault("analysis.high_vol_ratio", 0.015)
	v.SetDefault("analysis.trend_ratio", 0.01)
	v.SetDefault("analysis.alert_min_ticks", 30)
	v.SetDefault("analysis.volume_lookback", 20)
	v.SetDefault("analysis.volume_spike", 1.5)
	v.SetDefault("analysis.expansion_multiple", 1.8)
	v.SetDefault("analysis.cooldown", "30s")

	// Session defaults
	v.SetDefault("session.autostart", true)
	v.SetDefault("session.history_size", 20)
	v.SetDefault("session.chart_points", 50)
	v.SetDefault("session.checkpoint_interval", 12)

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "tickwatch:alerts")
	v.SetDefault("redis.history_key", "tickwatch:alerts:history")
	v.SetDefault("redis.history_limit", 100)

	// Storage defaults
	v.SetDefault("storage.enabled", true)
	v.SetDefault("storage.db_path", "") // empty = $TMPDIR/tickwatch/data.db
	v.SetDefault("storage.max_alerts", 1000)

	// HTTP defaults
	v.SetDefault("http.enabled", true)
	v.SetDefault("http.addr", "127.0.0.1:8080")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Feed config
	switch c.Feed.Mode {
	case "http", "websocket":
	default:
		return fmt.Errorf("feed.mode must be one of: http, websocket")
	}
	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	if c.Feed.Interval < 100*time.Millisecond {
		return fmt.Errorf("feed.interval must be at least 100ms")
	}
	if c.Feed.Timeout <= 0 {
		return fmt.Errorf("feed.timeout must be positive")
	}
	if c.Feed.RetryMaxElapsed < 0 {
		return fmt.Errorf("feed.retry_max_elapsed must not be negative")
	}
	if c.Feed.RateLimit < 0 {
		return fmt.Errorf("feed.rate_limit must not be negative")
	}
	if c.Feed.RateLimit > 0 && c.Feed.RateBurst < 1 {
		return fmt.Errorf("feed.rate_burst must be at least 1 when rate_limit is set")
	}
	if c.Feed.BreakerMaxFailures < 1 {
		return fmt.Errorf("feed.breaker_max_failures must be at least 1")
	}
	if c.Feed.Mode == "websocket" && c.Feed.QueueSize < 1 {
		return fmt.Errorf("feed.queue_size must be at least 1")
	}

	// Validate Analysis config
	a := c.Analysis
	if a.Asset == "" {
		return fmt.Errorf("analysis.asset is required")
	}
	if a.SwingRadius < 1 {
		return fmt.Errorf("analysis.swing_radius must be at least 1")
	}
	if a.StructureLookback < 2*a.SwingRadius+1 {
		return fmt.Errorf("analysis.structure_lookback must be at least 2*swing_radius+1")
	}
	if a.MaxSwings < 2 {
		return fmt.Errorf("analysis.max_swings must be at least 2")
	}
	if a.ATRPeriod < 1 || a.FastATRPeriod < 1 {
		return fmt.Errorf("analysis.atr_period and analysis.fast_atr_period must be at least 1")
	}
	if a.AlertMinTicks < 1 {
		return fmt.Errorf("analysis.alert_min_ticks must be at least 1")
	}
	if a.WindowCapacity < a.AlertMinTicks || a.WindowCapacity < a.StructureLookback || a.WindowCapacity <= a.ATRPeriod {
		return fmt.Errorf("analysis.window_capacity must cover alert_min_ticks, structure_lookback and atr_period+1")
	}
	if a.HighVolRatio <= 0 || a.TrendRatio <= 0 {
		return fmt.Errorf("analysis.high_vol_ratio and analysis.trend_ratio must be positive")
	}
	if a.VolumeLookback < 1 {
		return fmt.Errorf("analysis.volume_lookback must be at least 1")
	}
	if a.VolumeSpike <= 0 || a.ExpansionMultiple <= 0 {
		return fmt.Errorf("analysis.volume_spike and analysis.expansion_multiple must be positive")
	}
	if a.Cooldown < 0 {
		return fmt.Errorf("analysis.cooldown must not be negative")
	}

	// Validate Session config
	if c.Session.HistorySize < 1 {
		return fmt.Errorf("session.history_size must be at least 1")
	}
	if c.Session.ChartPoints < 1 {
		return fmt.Errorf("session.chart_points must be at least 1")
	}
	if c.Session.CheckpointInterval < 1 {
		return fmt.Errorf("session.checkpoint_interval must be at least 1")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if c.Telegram.MaxRetries < 1 {
			return fmt.Errorf("telegram.max_retries must be at least 1")
		}
	}

	// Validate Redis config
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when redis is enabled")
		}
		if c.Redis.HistoryLimit < 1 {
			return fmt.Errorf("redis.history_limit must be at least 1")
		}
	}

	// Validate Storage config
	if c.Storage.Enabled && c.Storage.MaxAlerts < 1 {
		return fmt.Errorf("storage.max_alerts must be at least 1")
	}

	// Validate HTTP config
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required when http is enabled")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
