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

// Config holds all configuration options for the metadata crawler
type Config struct {
	// Flickr API access
	Flickr FlickrConfig `yaml:"flickr" json:"flickr"`

	// Where institution stores live
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Crawl bounds and pacing
	Crawl CrawlConfig `yaml:"crawl" json:"crawl"`

	// Client-side request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Transport retry policy
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Prometheus listener
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// FlickrConfig holds Flickr API configuration
type FlickrConfig struct {
	APIKey    string        `yaml:"api_key" json:"api_key"`
	APISecret string        `yaml:"api_secret" json:"api_secret"`
	Account   string        `yaml:"account" json:"account"`
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
}

// StorageConfig holds the metadata directory
type StorageConfig struct {
	MetadataDir string `yaml:"metadata_dir" json:"metadata_dir"`
}

// CrawlConfig holds the downloader bounds
type CrawlConfig struct {
	PageSize           int           `yaml:"page_size" json:"page_size"`
	MaxPages           int           `yaml:"max_pages" json:"max_pages"`
	EmptyPageThreshold int           `yaml:"empty_page_threshold" json:"empty_page_threshold"`
	RateLimitCooldown  time.Duration `yaml:"rate_limit_cooldown" json:"rate_limit_cooldown"`
	PageDelay          time.Duration `yaml:"page_delay" json:"page_delay"`
	PlanPreview        int           `yaml:"plan_preview" json:"plan_preview"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	Burst             int `yaml:"burst" json:"burst"`
}

// RetryConfig holds transport retry configuration
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	OnComplete       bool   `yaml:"on_complete" json:"on_complete"`
	OnError          bool   `yaml:"on_error" json:"on_error"`
	OnRateLimit      bool   `yaml:"on_rate_limit" json:"on_rate_limit"`
	NotificationType string `yaml:"notification_type" json:"notification_type"`
}

// MetricsConfig holds the Prometheus listener settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Flickr: FlickrConfig{
			BaseURL:   "https://api.flickr.com/services/rest/",
			Timeout:   30 * time.Second,
			UserAgent: "flico/1.0",
		},
		Storage: StorageConfig{
			MetadataDir: "./metadata",
		},
		Crawl: CrawlConfig{
			PageSize:           500,
			MaxPages:           10000,
			EmptyPageThreshold: 1000,
			RateLimitCooldown:  60 * time.Second,
			PageDelay:          0,
			PlanPreview:        10,
		},
		RateLimit: RateLimitConfig{
			// Flickr allows 3600 calls per key per hour
			RequestsPerMinute: 60,
			Burst:             5,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
		},
		Notifications: NotificationConfig{
			Enabled:          true,
			OnComplete:       true,
			OnError:          true,
			OnRateLimit:      false,
			NotificationType: "terminal",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9464",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	// Flickr credentials, accepted under both the conventional and prefixed names
	if key := firstEnv("FLICO_API_KEY", "FLICKR_API_KEY"); key != "" {
		c.Flickr.APIKey = key
	}
	if secret := firstEnv("FLICO_API_SECRET", "FLICKR_API_SECRET"); secret != "" {
		c.Flickr.APISecret = secret
	}
	if account := os.Getenv("FLICO_ACCOUNT"); account != "" {
		c.Flickr.Account = account
	}
	if baseURL := os.Getenv("FLICO_BASE_URL"); baseURL != "" {
		c.Flickr.BaseURL = baseURL
	}

	if dir := os.Getenv("FLICO_METADATA_DIR"); dir != "" {
		c.Storage.MetadataDir = dir
	}

	errs = append(errs,
		envInt("FLICO_PAGE_SIZE", &c.Crawl.PageSize),
		envInt("FLICO_MAX_PAGES", &c.Crawl.MaxPages),
		envInt("FLICO_EMPTY_PAGE_THRESHOLD", &c.Crawl.EmptyPageThreshold),
		envInt("FLICO_REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute),
		envDuration("FLICO_RATE_LIMIT_COOLDOWN", &c.Crawl.RateLimitCooldown),
		envDuration("FLICO_PAGE_DELAY", &c.Crawl.PageDelay),
	)

	if notifEnabled := os.Getenv("FLICO_NOTIFICATIONS_ENABLED"); notifEnabled != "" {
		c.Notifications.Enabled = strings.ToLower(notifEnabled) == "true"
	}
	if metricsAddr := os.Getenv("FLICO_METRICS_ADDRESS"); metricsAddr != "" {
		c.Metrics.Enabled = true
		c.Metrics.Address = metricsAddr
	}

	if logLevel := os.Getenv("FLICO_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("FLICO_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return errors.Join(errs...)
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func envInt(name string, target *int) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", name, raw)
	}
	*target = val
	return nil
}

func envDuration(name string, target *time.Duration) error {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", name, raw)
	}
	*target = val
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = FindConfigFile()
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

// DefaultConfigPath is where `flico config init` writes.
func DefaultConfigPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "flico", "config.yaml")
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	locations := []string{
		".flico.yaml",
		".flico.yml",
		DefaultConfigPath(),
		filepath.Join(os.Getenv("HOME"), ".config", "flico", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".flico.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. Credentials are checked
// separately by ValidateCredentials so that commands which never call the
// API can run without them.
func (c *Config) Validate() error {
	var errs []error

	if c.Flickr.Timeout <= 0 {
		errs = append(errs, errors.New("flickr timeout must be positive"))
	}
	if c.Flickr.BaseURL == "" {
		errs = append(errs, errors.New("flickr base URL is required"))
	}

	if c.Storage.MetadataDir == "" {
		errs = append(errs, errors.New("metadata directory is required"))
	}

	if c.Crawl.PageSize <= 0 || c.Crawl.PageSize > 500 {
		errs = append(errs, errors.New("page size must be between 1 and 500"))
	}
	if c.Crawl.MaxPages <= 0 {
		errs = append(errs, errors.New("max pages must be positive"))
	}
	if c.Crawl.EmptyPageThreshold <= 0 {
		errs = append(errs, errors.New("empty page threshold must be positive"))
	}
	if c.Crawl.RateLimitCooldown < 0 {
		errs = append(errs, errors.New("rate limit cooldown cannot be negative"))
	}
	if c.Crawl.PageDelay < 0 {
		errs = append(errs, errors.New("page delay cannot be negative"))
	}
	if c.Crawl.PlanPreview < 0 {
		errs = append(errs, errors.New("plan preview cannot be negative"))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("burst must be positive"))
	}

	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, errors.New("retry max attempts must be positive"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		errs = append(errs, errors.New("metrics address is required when metrics are enabled"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	validNotifTypes := map[string]bool{
		"terminal": true, "desktop": true, "none": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.NotificationType)] {
		errs = append(errs, errors.New("invalid notification type"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ValidateCredentials checks that an API key is available
func (c *Config) ValidateCredentials() error {
	if c.Flickr.APIKey == "" {
		return errors.New("Flickr API key is required (set FLICKR_API_KEY or run 'flico auth login')")
	}
	return nil
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

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Zero values are ignored so unset flags never override other sources.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if key, ok := flags["api-key"].(string); ok && key != "" {
		c.Flickr.APIKey = key
	}
	if account, ok := flags["account"].(string); ok && account != "" {
		c.Flickr.Account = account
	}
	if dir, ok := flags["metadata-dir"].(string); ok && dir != "" {
		c.Storage.MetadataDir = dir
	}
	if size, ok := flags["page-size"].(int); ok && size > 0 {
		c.Crawl.PageSize = size
	}
	if maxPages, ok := flags["max-pages"].(int); ok && maxPages > 0 {
		c.Crawl.MaxPages = maxPages
	}
	if threshold, ok := flags["empty-page-threshold"].(int); ok && threshold > 0 {
		c.Crawl.EmptyPageThreshold = threshold
	}
	if cooldown, ok := flags["cooldown"].(time.Duration); ok && cooldown > 0 {
		c.Crawl.RateLimitCooldown = cooldown
	}
	if preview, ok := flags["top"].(int); ok && preview > 0 {
		c.Crawl.PlanPreview = preview
	}
	if addr, ok := flags["metrics-addr"].(string); ok && addr != "" {
		c.Metrics.Enabled = true
		c.Metrics.Address = addr
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".flico.env"))

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
