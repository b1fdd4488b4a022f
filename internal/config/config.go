// Package config loads and validates the radar's YAML configuration.
// Invalid configuration is rejected here, before any cycle starts; nothing
// downstream re-validates thresholds mid-batch.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/azusa152/Folio/internal/logging"
)

// TelegramConfig configures the notification channel. When disabled, alerts
// go to the log notifier instead.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled" default:"false"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	// Polling enables the long-poll command loop (/scan, /watches, ...).
	Polling bool `yaml:"polling" default:"false"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"false"`
	Listen  string `yaml:"listen" default:":9090"`
}

// StoreConfig locates the watch/instrument store and an optional seed file
// upserted at startup.
type StoreConfig struct {
	Path     string `yaml:"path" default:"data/radar.db"`
	SeedFile string `yaml:"seed_file"`
}

// RecorderConfig configures the audit recorder.
type RecorderConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"data/radar_audit.db"`
}

// RedisConfig is the optional shared cache layer under the in-process
// caches. Disabled by default; correctness holds without it.
type RedisConfig struct {
	Enabled    bool   `yaml:"enabled" default:"false"`
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db" default:"0" validate:"min=0"`
	TTLSeconds int    `yaml:"ttl_seconds" default:"300" validate:"min=1"`
}

// CacheConfig sizes the per-kind result caches. A TTL of zero disables that
// cache: every call computes.
type CacheConfig struct {
	MaxEntries           int         `yaml:"max_entries" default:"200" validate:"min=1"`
	SnapshotTTLSeconds   int         `yaml:"snapshot_ttl_seconds" default:"300" validate:"min=0"`
	MarginTTLSeconds     int         `yaml:"margin_ttl_seconds" default:"3600" validate:"min=0"`
	HistoryTTLSeconds    int         `yaml:"history_ttl_seconds" default:"300" validate:"min=0"`
	SweepIntervalSeconds int         `yaml:"sweep_interval_seconds" default:"60" validate:"min=0"`
	Redis                RedisConfig `yaml:"redis"`
}

// FetchConfig selects and tunes the market-data provider.
type FetchConfig struct {
	Provider       string `yaml:"provider" default:"yahoo" validate:"oneof=yahoo rest mock"`
	TimeoutSeconds int    `yaml:"timeout_seconds" default:"15" validate:"min=1"`
	// BaseURL and APIKey apply to the "rest" provider only.
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Proxy   string `yaml:"proxy"`
}

// ScanConfig drives the equity scan cycle.
type ScanConfig struct {
	Cron        string `yaml:"cron" default:"0 0 22 * * 1-5"`
	RunOnStart  bool   `yaml:"run_on_start" default:"false"`
	Concurrency int    `yaml:"concurrency" default:"4" validate:"min=1"`
	HistoryDays int    `yaml:"history_days" default:"365" validate:"min=2"`
	MinHistory  int    `yaml:"min_history" default:"60" validate:"min=2"`
}

// IndicatorConfig parameterizes the indicator library.
type IndicatorConfig struct {
	RSIPeriod int `yaml:"rsi_period" default:"14" validate:"min=2"`
	LongMA    int `yaml:"long_ma" default:"200" validate:"min=2"`
	ShortMA   int `yaml:"short_ma" default:"60" validate:"min=2"`
	// RelaxedLongMA averages over min(len, window) points when history is
	// short. This changes the indicator's meaning, so it is opt-in.
	RelaxedLongMA bool `yaml:"relaxed_long_ma" default:"false"`
}

// StrategyConfig holds the classification thresholds.
type StrategyConfig struct {
	RSIOversold    float64 `yaml:"rsi_oversold" default:"30"`
	RSIOverbought  float64 `yaml:"rsi_overbought" default:"70"`
	BiasOverheated float64 `yaml:"bias_overheated" default:"20"`
	CautionBreadth float64 `yaml:"caution_breadth" default:"0.5"`
}

// FXConfig drives the currency-watch alert cycle and the swing digest.
type FXConfig struct {
	AlertCron       string  `yaml:"alert_cron" default:"0 0 9 * * *"`
	SummaryCron     string  `yaml:"summary_cron" default:"0 0 8 * * 1"`
	SummaryEnabled  bool    `yaml:"summary_enabled" default:"true"`
	TolerancePct    float64 `yaml:"tolerance_pct" default:"2.0"`
	DailySpikePct   float64 `yaml:"daily_spike_pct" default:"1.0"`
	SwingPct        float64 `yaml:"swing_pct" default:"3.0"`
	TrendPct        float64 `yaml:"trend_pct" default:"5.0"`
	ShortWindowDays int     `yaml:"short_window_days" default:"7" validate:"min=2"`
	LongWindowDays  int     `yaml:"long_window_days" default:"30" validate:"min=2"`
	HistoryDays     int     `yaml:"history_days" default:"90" validate:"min=2"`
}

// Config is the full daemon configuration.
type Config struct {
	Log        logging.Config  `yaml:"log"`
	Telegram   TelegramConfig  `yaml:"telegram"`
	Metrics    MetricsConfig   `yaml:"metrics"`
	Store      StoreConfig     `yaml:"store"`
	Recorder   RecorderConfig  `yaml:"recorder"`
	Cache      CacheConfig     `yaml:"cache"`
	Fetch      FetchConfig     `yaml:"fetch"`
	Scan       ScanConfig      `yaml:"scan"`
	Indicators IndicatorConfig `yaml:"indicators"`
	Strategy   StrategyConfig  `yaml:"strategy"`
	FX         FXConfig        `yaml:"fx"`
}

var validate = validator.New()

// Load reads the YAML file at path, applies defaults, environment overrides
// for secrets, and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	// Secrets come from the environment in deployments.
	if v := os.Getenv("RADAR_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("RADAR_TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("RADAR_REDIS_ADDR"); v != "" {
		cfg.Cache.Redis.Addr = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate applies the struct tags plus the conditional requirements the
// tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Cache.Redis.Enabled && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required when redis is enabled")
	}
	if c.Fetch.Provider == "rest" && c.Fetch.BaseURL == "" {
		return fmt.Errorf("fetch.base_url is required for the rest provider")
	}
	if c.Indicators.ShortMA >= c.Indicators.LongMA {
		return fmt.Errorf("indicators.short_ma (%d) must be below indicators.long_ma (%d)",
			c.Indicators.ShortMA, c.Indicators.LongMA)
	}
	if c.Strategy.RSIOversold <= 0 || c.Strategy.RSIOverbought <= c.Strategy.RSIOversold || c.Strategy.RSIOverbought > 100 {
		return fmt.Errorf("strategy rsi thresholds must satisfy 0 < oversold < overbought <= 100")
	}
	if c.Strategy.CautionBreadth < 0 || c.Strategy.CautionBreadth > 1 {
		return fmt.Errorf("strategy.caution_breadth must be in [0, 1]")
	}
	return nil
}

// FetchTimeout returns the per-fetch deadline as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}
