package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://api.flickr.com/services/rest/", cfg.Flickr.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Flickr.Timeout)
	assert.Equal(t, "./metadata", cfg.Storage.MetadataDir)

	assert.Equal(t, 500, cfg.Crawl.PageSize)
	assert.Equal(t, 10000, cfg.Crawl.MaxPages)
	assert.Equal(t, 1000, cfg.Crawl.EmptyPageThreshold)
	assert.Equal(t, 60*time.Second, cfg.Crawl.RateLimitCooldown)
	assert.Equal(t, time.Duration(0), cfg.Crawl.PageDelay)
	assert.Equal(t, 10, cfg.Crawl.PlanPreview)

	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
	assert.Error(t, cfg.ValidateCredentials())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FLICKR_API_KEY", "env-key")
	t.Setenv("FLICKR_API_SECRET", "env-secret")
	t.Setenv("FLICO_METADATA_DIR", "/tmp/flico-metadata")
	t.Setenv("FLICO_PAGE_SIZE", "250")
	t.Setenv("FLICO_MAX_PAGES", "20")
	t.Setenv("FLICO_RATE_LIMIT_COOLDOWN", "90s")
	t.Setenv("FLICO_NOTIFICATIONS_ENABLED", "false")
	t.Setenv("FLICO_METRICS_ADDRESS", ":9999")
	t.Setenv("FLICO_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "env-key", cfg.Flickr.APIKey)
	assert.Equal(t, "env-secret", cfg.Flickr.APISecret)
	assert.Equal(t, "/tmp/flico-metadata", cfg.Storage.MetadataDir)
	assert.Equal(t, 250, cfg.Crawl.PageSize)
	assert.Equal(t, 20, cfg.Crawl.MaxPages)
	assert.Equal(t, 90*time.Second, cfg.Crawl.RateLimitCooldown)
	assert.False(t, cfg.Notifications.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9999", cfg.Metrics.Address)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.NoError(t, cfg.ValidateCredentials())
}

func TestLoadFromEnvPrefixedKeyWins(t *testing.T) {
	t.Setenv("FLICKR_API_KEY", "plain")
	t.Setenv("FLICO_API_KEY", "prefixed")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, "prefixed", cfg.Flickr.APIKey)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("FLICO_PAGE_SIZE", "lots")
	t.Setenv("FLICO_PAGE_DELAY", "soon")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FLICO_PAGE_SIZE")
	assert.Contains(t, err.Error(), "FLICO_PAGE_DELAY")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
flickr:
  api_key: file-key
  timeout: 10s
storage:
  metadata_dir: /data/commons
crawl:
  page_size: 100
  empty_page_threshold: 5
  rate_limit_cooldown: 2m
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "file-key", cfg.Flickr.APIKey)
	assert.Equal(t, 10*time.Second, cfg.Flickr.Timeout)
	assert.Equal(t, "/data/commons", cfg.Storage.MetadataDir)
	assert.Equal(t, 100, cfg.Crawl.PageSize)
	assert.Equal(t, 5, cfg.Crawl.EmptyPageThreshold)
	assert.Equal(t, 2*time.Minute, cfg.Crawl.RateLimitCooldown)
	assert.Equal(t, 10000, cfg.Crawl.MaxPages, "unset keys keep defaults")
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("crawl: [not, a, map"), 0644))
	assert.Error(t, cfg.LoadFromFile(bad))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"empty metadata dir", func(c *Config) { c.Storage.MetadataDir = "" }},
		{"page size too large", func(c *Config) { c.Crawl.PageSize = 501 }},
		{"zero max pages", func(c *Config) { c.Crawl.MaxPages = 0 }},
		{"zero empty page threshold", func(c *Config) { c.Crawl.EmptyPageThreshold = 0 }},
		{"negative cooldown", func(c *Config) { c.Crawl.RateLimitCooldown = -time.Second }},
		{"zero burst", func(c *Config) { c.RateLimit.Burst = 0 }},
		{"zero retry attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"metrics without address", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Address = "" }},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"invalid notification type", func(c *Config) { c.Notifications.NotificationType = "email" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Crawl.MaxPages = 0
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max pages")
	assert.Contains(t, err.Error(), "log level")
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"api-key":              "flag-key",
		"metadata-dir":         "/flag/metadata",
		"page-size":            50,
		"max-pages":            3,
		"empty-page-threshold": 2,
		"cooldown":             5 * time.Second,
		"top":                  25,
		"metrics-addr":         ":9100",
		"log-level":            "error",
	})

	assert.Equal(t, "flag-key", cfg.Flickr.APIKey)
	assert.Equal(t, "/flag/metadata", cfg.Storage.MetadataDir)
	assert.Equal(t, 50, cfg.Crawl.PageSize)
	assert.Equal(t, 3, cfg.Crawl.MaxPages)
	assert.Equal(t, 2, cfg.Crawl.EmptyPageThreshold)
	assert.Equal(t, 5*time.Second, cfg.Crawl.RateLimitCooldown)
	assert.Equal(t, 25, cfg.Crawl.PlanPreview)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestMergeCommandLineFlagsIgnoresZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"metadata-dir": "",
		"page-size":    0,
	})
	assert.Equal(t, "./metadata", cfg.Storage.MetadataDir)
	assert.Equal(t, 500, cfg.Crawl.PageSize)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Flickr.APIKey = "saved-key"
	cfg.Crawl.EmptyPageThreshold = 42
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "saved-key", loaded.Flickr.APIKey)
	assert.Equal(t, 42, loaded.Crawl.EmptyPageThreshold)
	assert.Equal(t, cfg.Crawl.RateLimitCooldown, loaded.Crawl.RateLimitCooldown)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawl:\n  page_size: 100\n  max_pages: 7\n"), 0644))

	t.Setenv("FLICO_PAGE_SIZE", "200")

	cfg, err := Load(path, map[string]interface{}{"max-pages": 9})
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.Crawl.PageSize, "env overrides file")
	assert.Equal(t, 9, cfg.Crawl.MaxPages, "flags override file")
}

func TestLoadFailsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawl:\n  page_size: 9000\n"), 0644))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestConfigSerialization(t *testing.T) {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	assert.Contains(t, string(data), "metadata_dir:")
	assert.Contains(t, string(data), "empty_page_threshold:")
	assert.Contains(t, string(data), "rate_limit_cooldown:")
}
