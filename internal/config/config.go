package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Export   ExportConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

type ScraperConfig struct {
	BaseURL      string
	DelayMin     time.Duration
	DelayMax     time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
	Timeout      time.Duration
	Workers      int
	MaxPages     int
	PerPageLimit int
	UserAgents   []string
}

type DatabaseConfig struct {
	URL     string
	Enabled bool
}

type RedisConfig struct {
	Addr     string
	Enabled  bool
	FetchTTL time.Duration
}

type ExportConfig struct {
	OutputDir string
	Formats   []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from a .env file when present and from the
// environment otherwise. Every knob has a default so the scraper runs
// with no configuration at all.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Missing .env is fine, production configures via environment.
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_READ_TIMEOUT", "30s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	viper.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "10s")
	viper.SetDefault("SERVER_CORS_ORIGINS", "*")

	viper.SetDefault("SCRAPER_BASE_URL", "https://www.alibaba.com")
	viper.SetDefault("SCRAPER_DELAY_MIN", "2s")
	viper.SetDefault("SCRAPER_DELAY_MAX", "5s")
	viper.SetDefault("SCRAPER_MAX_RETRIES", 3)
	viper.SetDefault("SCRAPER_RETRY_DELAY", "2s")
	viper.SetDefault("SCRAPER_TIMEOUT", "30s")
	viper.SetDefault("SCRAPER_WORKERS", 4)
	viper.SetDefault("SCRAPER_MAX_PAGES", 10)
	viper.SetDefault("SCRAPER_PER_PAGE_LIMIT", 20)
	viper.SetDefault("SCRAPER_USER_AGENTS", strings.Join(defaultUserAgents(), ","))

	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_FETCH_TTL", "48h")

	viper.SetDefault("EXPORT_OUTPUT_DIR", "data")
	viper.SetDefault("EXPORT_FORMATS", "csv,json")

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")

	cfg := &Config{
		Server: ServerConfig{
			Port:            viper.GetString("SERVER_PORT"),
			Host:            viper.GetString("SERVER_HOST"),
			ReadTimeout:     viper.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    viper.GetDuration("SERVER_WRITE_TIMEOUT"),
			ShutdownTimeout: viper.GetDuration("SERVER_SHUTDOWN_TIMEOUT"),
			CORSOrigins:     splitList(viper.GetString("SERVER_CORS_ORIGINS")),
		},
		Scraper: ScraperConfig{
			BaseURL:      viper.GetString("SCRAPER_BASE_URL"),
			DelayMin:     viper.GetDuration("SCRAPER_DELAY_MIN"),
			DelayMax:     viper.GetDuration("SCRAPER_DELAY_MAX"),
			MaxRetries:   viper.GetInt("SCRAPER_MAX_RETRIES"),
			RetryDelay:   viper.GetDuration("SCRAPER_RETRY_DELAY"),
			Timeout:      viper.GetDuration("SCRAPER_TIMEOUT"),
			Workers:      viper.GetInt("SCRAPER_WORKERS"),
			MaxPages:     viper.GetInt("SCRAPER_MAX_PAGES"),
			PerPageLimit: viper.GetInt("SCRAPER_PER_PAGE_LIMIT"),
			UserAgents:   splitList(viper.GetString("SCRAPER_USER_AGENTS")),
		},
		Database: DatabaseConfig{
			URL:     viper.GetString("DATABASE_URL"),
			Enabled: viper.GetString("DATABASE_URL") != "",
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Enabled:  viper.GetString("REDIS_ADDR") != "",
			FetchTTL: viper.GetDuration("REDIS_FETCH_TTL"),
		},
		Export: ExportConfig{
			OutputDir: viper.GetString("EXPORT_OUTPUT_DIR"),
			Formats:   splitList(viper.GetString("EXPORT_FORMATS")),
		},
		Logging: LoggingConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.Workers < 1 {
		return fmt.Errorf("SCRAPER_WORKERS must be at least 1")
	}
	if c.Scraper.DelayMin > c.Scraper.DelayMax {
		return fmt.Errorf("SCRAPER_DELAY_MIN cannot be greater than SCRAPER_DELAY_MAX")
	}
	if c.Scraper.MaxRetries < 0 {
		return fmt.Errorf("SCRAPER_MAX_RETRIES cannot be negative")
	}
	if len(c.Scraper.UserAgents) == 0 {
		return fmt.Errorf("SCRAPER_USER_AGENTS must contain at least one entry")
	}
	if c.Scraper.MaxPages < 1 {
		return fmt.Errorf("SCRAPER_MAX_PAGES must be at least 1")
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func defaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}
