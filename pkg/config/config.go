package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by LoadFromEnv
const EnvPrefix = "LOFTERSCRAPER_"

// Config holds all configuration options for the crawler
type Config struct {
	// Target site addressing
	Site SiteConfig `yaml:"site" json:"site"`

	// Page discovery and harvesting
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Image download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Document cache
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Client-side request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SiteConfig describes how blog addresses are built
type SiteConfig struct {
	Scheme     string `yaml:"scheme" json:"scheme"`
	BaseDomain string `yaml:"base_domain" json:"base_domain"`
	UserAgent  string `yaml:"user_agent" json:"user_agent"`
}

// CrawlConfig holds page-range discovery settings
type CrawlConfig struct {
	StartPage    int           `yaml:"start_page" json:"start_page"`
	EndPage      int           `yaml:"end_page" json:"end_page"`
	MaxPages     int           `yaml:"max_pages" json:"max_pages"`
	SeedSpan     int           `yaml:"seed_span" json:"seed_span"`
	PageCeiling  int           `yaml:"page_ceiling" json:"page_ceiling"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
}

// DownloadConfig holds download orchestration settings
type DownloadConfig struct {
	Directory         string        `yaml:"directory" json:"directory"`
	Workers           int           `yaml:"workers" json:"workers"`
	Replace           bool          `yaml:"replace" json:"replace"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	RetryRounds       int           `yaml:"retry_rounds" json:"retry_rounds"`
	TimeoutMultiplier float64       `yaml:"timeout_multiplier" json:"timeout_multiplier"`
	MaxTimeout        time.Duration `yaml:"max_timeout" json:"max_timeout"`
	RoundPause        time.Duration `yaml:"round_pause" json:"round_pause"`
	SaveFailed        bool          `yaml:"save_failed" json:"save_failed"`
	FailedDir         string        `yaml:"failed_dir" json:"failed_dir"`
}

// CacheConfig holds document cache settings
type CacheConfig struct {
	Capacity int `yaml:"capacity" json:"capacity"`
}

// RateLimitConfig holds request pacing configuration. Zero disables pacing.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst" json:"burst"`
}

// MetricsConfig holds the metrics listener address
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Scheme:     "http",
			BaseDomain: "lofter.com",
			UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/68.0.3440.106 Safari/537.36",
		},
		Crawl: CrawlConfig{
			StartPage:    1,
			EndPage:      0, // 0 means discover
			MaxPages:     0, // 0 means no bound
			SeedSpan:     32,
			PageCeiling:  65536,
			FetchTimeout: 8 * time.Second,
		},
		Download: DownloadConfig{
			Directory:         "",
			Workers:           8,
			Replace:           false,
			Timeout:           8 * time.Second,
			RetryRounds:       1,
			TimeoutMultiplier: 3,
			MaxTimeout:        5 * time.Minute,
			RoundPause:        0,
			SaveFailed:        true,
			FailedDir:         ".",
		},
		Cache: CacheConfig{
			Capacity: 16,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 0,
			Burst:             1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv(EnvPrefix + "BASE_DOMAIN"); v != "" {
		c.Site.BaseDomain = v
	}
	if v := os.Getenv(EnvPrefix + "SCHEME"); v != "" {
		c.Site.Scheme = v
	}
	if v := os.Getenv(EnvPrefix + "USER_AGENT"); v != "" {
		c.Site.UserAgent = v
	}
	if v := os.Getenv(EnvPrefix + "OUTPUT_DIR"); v != "" {
		c.Download.Directory = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv(EnvPrefix + "METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}

	intVars := map[string]*int{
		"WORKERS":        &c.Download.Workers,
		"RETRY_ROUNDS":   &c.Download.RetryRounds,
		"CACHE_CAPACITY": &c.Cache.Capacity,
		"MAX_PAGES":      &c.Crawl.MaxPages,
	}
	for name, dst := range intVars {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			continue
		}
		*dst = n
	}

	if v := os.Getenv(EnvPrefix + "TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err))
		} else {
			c.Download.Timeout = d
			c.Crawl.FetchTimeout = d
		}
	}

	if v := os.Getenv(EnvPrefix + "REPLACE"); v != "" {
		c.Download.Replace = strings.ToLower(v) == "true"
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		"lofterscraper.yaml",
		".lofterscraper.yaml",
		".lofterscraper.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "lofterscraper", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".lofterscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Site.BaseDomain == "" {
		errs = append(errs, errors.New("site base domain is required"))
	}
	if c.Site.Scheme != "http" && c.Site.Scheme != "https" {
		errs = append(errs, errors.New("site scheme must be http or https"))
	}

	if c.Crawl.StartPage < 1 {
		errs = append(errs, errors.New("start page must be at least 1"))
	}
	if c.Crawl.EndPage < 0 {
		errs = append(errs, errors.New("end page cannot be negative"))
	}
	if c.Crawl.EndPage > 0 && c.Crawl.EndPage < c.Crawl.StartPage {
		errs = append(errs, errors.New("end page must not be before start page"))
	}
	if c.Crawl.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}
	if c.Crawl.SeedSpan < 1 {
		errs = append(errs, errors.New("seed span must be positive"))
	}
	if c.Crawl.PageCeiling < c.Crawl.StartPage {
		errs = append(errs, errors.New("page ceiling must not be below start page"))
	}
	if c.Crawl.FetchTimeout <= 0 {
		errs = append(errs, errors.New("fetch timeout must be positive"))
	}

	if c.Download.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.RetryRounds < 0 {
		errs = append(errs, errors.New("retry rounds cannot be negative"))
	}
	if c.Download.TimeoutMultiplier < 1 {
		errs = append(errs, errors.New("timeout multiplier must be at least 1"))
	}
	if c.Download.MaxTimeout < c.Download.Timeout {
		errs = append(errs, errors.New("max timeout must not be below the base timeout"))
	}
	if c.Download.RoundPause < 0 {
		errs = append(errs, errors.New("round pause cannot be negative"))
	}

	if c.Cache.Capacity <= 0 {
		errs = append(errs, errors.New("cache capacity must be positive"))
	}

	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("requests per second cannot be negative"))
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("burst must be positive when rate limiting is enabled"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in flags are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["max-pages"].(int); ok {
		c.Crawl.MaxPages = v
	}
	if v, ok := flags["start"].(int); ok {
		c.Crawl.StartPage = v
	}
	if v, ok := flags["end"].(int); ok {
		c.Crawl.EndPage = v
	}
	if v, ok := flags["dir"].(string); ok && v != "" {
		c.Download.Directory = v
	}
	if v, ok := flags["workers"].(int); ok {
		c.Download.Workers = v
	}
	if v, ok := flags["replace"].(bool); ok {
		c.Download.Replace = v
	}
	if v, ok := flags["timeout"].(time.Duration); ok {
		c.Download.Timeout = v
		c.Crawl.FetchTimeout = v
		if c.Download.MaxTimeout < v {
			c.Download.MaxTimeout = v
		}
	}
	if v, ok := flags["cache-size"].(int); ok {
		c.Cache.Capacity = v
	}
	if v, ok := flags["retry-rounds"].(int); ok {
		c.Download.RetryRounds = v
	}
	if v, ok := flags["save-failed"].(bool); ok {
		c.Download.SaveFailed = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["metrics-addr"].(string); ok && v != "" {
		c.Metrics.Addr = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".lofterscraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
