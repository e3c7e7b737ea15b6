package config

import (
	"fmt"
	"os"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	API struct {
		CMCKey      string `yaml:"cmc_key"`
		ChartImgKey string `yaml:"chart_img_key"`
	} `yaml:"api"`
	Scan struct {
		MinVolume          float64  `yaml:"min_volume"`
		MinGain7d          float64  `yaml:"min_gain_7d"`
		MinGain30d         float64  `yaml:"min_gain_30d"`
		UniformityMinScore float64  `yaml:"uniformity_min_score"`
		UniformityPeriod   int      `yaml:"uniformity_period"`
		TargetExchanges    []string `yaml:"target_exchanges"`
		QuoteLimit         int      `yaml:"quote_limit"`
	} `yaml:"scan"`
	Cache struct {
		PriceTTL   string `yaml:"price_ttl"`
		ListingTTL string `yaml:"listing_ttl"`
		MappingTTL string `yaml:"mapping_ttl"`
	} `yaml:"cache"`
	Schedule struct {
		ScanCron     string `yaml:"scan_cron"`
		ListingsCron string `yaml:"listings_cron"`
	} `yaml:"schedule"`
	Retry struct {
		MaxAttempts int     `yaml:"max_attempts"`
		Delay       string  `yaml:"delay"`
		Backoff     float64 `yaml:"backoff"`
	} `yaml:"retry"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	MetricsFile string `yaml:"metrics_file"`
	Proxy       string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
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

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("CMC_API_KEY"); v != "" {
		cfg.API.CMCKey = v
	}
	if v := os.Getenv("CHART_IMG_API_KEY"); v != "" {
		cfg.API.ChartImgKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("MIN_VOLUME"); v != "" {
		var vol float64
		if _, err := fmt.Sscanf(v, "%f", &vol); err == nil {
			cfg.Scan.MinVolume = vol
		}
	}
	if v := os.Getenv("SCAN_CRON"); v != "" {
		cfg.Schedule.ScanCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}

	// Defaults
	if cfg.Scan.MinVolume == 0 {
		cfg.Scan.MinVolume = 1000000
	}
	if cfg.Scan.MinGain7d == 0 {
		cfg.Scan.MinGain7d = 7
	}
	if cfg.Scan.MinGain30d == 0 {
		cfg.Scan.MinGain30d = 30
	}
	if cfg.Scan.UniformityMinScore == 0 {
		cfg.Scan.UniformityMinScore = 45
	}
	if cfg.Scan.UniformityPeriod == 0 {
		cfg.Scan.UniformityPeriod = 30
	}
	if len(cfg.Scan.TargetExchanges) == 0 {
		cfg.Scan.TargetExchanges = []string{"coinbase", "kraken", "mexc"}
	}
	if cfg.Scan.QuoteLimit == 0 {
		cfg.Scan.QuoteLimit = 5000
	}
	if cfg.Cache.PriceTTL == "" {
		cfg.Cache.PriceTTL = "6h"
	}
	if cfg.Cache.ListingTTL == "" {
		cfg.Cache.ListingTTL = "1d"
	}
	if cfg.Cache.MappingTTL == "" {
		cfg.Cache.MappingTTL = "7d"
	}
	if cfg.Schedule.ScanCron == "" {
		cfg.Schedule.ScanCron = "0 0 */6 * * *"
	}
	if cfg.Schedule.ListingsCron == "" {
		cfg.Schedule.ListingsCron = "0 30 2 * * *"
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.Delay == "" {
		cfg.Retry.Delay = "2s"
	}
	if cfg.Retry.Backoff == 0 {
		cfg.Retry.Backoff = 2
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/trendspotter.db"
	}
	if cfg.MetricsFile == "" {
		cfg.MetricsFile = "data/metrics.json"
	}

	return cfg, nil
}

// Validate checks that all required fields are set and parseable.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	if c.Scan.MinVolume < 0 {
		return fmt.Errorf("scan.min_volume must not be negative")
	}
	if c.Scan.UniformityPeriod < 2 {
		return fmt.Errorf("scan.uniformity_period must be at least 2")
	}
	if c.Scan.UniformityMinScore < 0 || c.Scan.UniformityMinScore > 100 {
		return fmt.Errorf("scan.uniformity_min_score must be within 0-100")
	}
	if _, err := str2duration.ParseDuration(c.Cache.PriceTTL); err != nil {
		return fmt.Errorf("cache.price_ttl: %w", err)
	}
	if _, err := str2duration.ParseDuration(c.Cache.ListingTTL); err != nil {
		return fmt.Errorf("cache.listing_ttl: %w", err)
	}
	if _, err := str2duration.ParseDuration(c.Cache.MappingTTL); err != nil {
		return fmt.Errorf("cache.mapping_ttl: %w", err)
	}
	if _, err := str2duration.ParseDuration(c.Retry.Delay); err != nil {
		return fmt.Errorf("retry.delay: %w", err)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	return nil
}

// PriceTTL returns the parsed price cache lifetime.
func (c *Config) PriceTTL() time.Duration {
	d, _ := str2duration.ParseDuration(c.Cache.PriceTTL)
	return d
}

// ListingTTL returns the parsed exchange listing lifetime.
func (c *Config) ListingTTL() time.Duration {
	d, _ := str2duration.ParseDuration(c.Cache.ListingTTL)
	return d
}

// MappingTTL returns the parsed symbol mapping lifetime.
func (c *Config) MappingTTL() time.Duration {
	d, _ := str2duration.ParseDuration(c.Cache.MappingTTL)
	return d
}

// RetryDelay returns the parsed base delay between retry attempts.
func (c *Config) RetryDelay() time.Duration {
	d, _ := str2duration.ParseDuration(c.Retry.Delay)
	return d
}
