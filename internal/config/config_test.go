package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "evidenca.sqlite3", cfg.Database.Path)
	assert.Equal(t, 5000, cfg.Database.BusyTimeout)
	assert.Equal(t, "E", cfg.Inventory.StockColumn)
	assert.Equal(t, 300*time.Millisecond, cfg.UI.FlashDuration)
	assert.Equal(t, []string{"Laptops", "Tablets", "Smartphones", "Desktops"}, cfg.Devices.Categories)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "evidenca.yaml", `
database:
  path: /var/lib/evidenca/data.db
logging:
  level: debug
  format: json
devices:
  categories: [Laptops, Monitors]
ui:
  flash_duration: 0s
timezone: UTC
identity:
  actor: it@x.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/evidenca/data.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, []string{"Laptops", "Monitors"}, cfg.Devices.Categories)
	assert.Zero(t, cfg.UI.FlashDuration)
	assert.Equal(t, "it@x.com", cfg.Identity.Actor)
	assert.Equal(t, "IT_Storage", cfg.Inventory.Category, "unset keys keep their defaults")

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EVIDENCA_DB_PATH", "/tmp/override.db")
	t.Setenv("EVIDENCA_LOG_LEVEL", "error")
	t.Setenv("EVIDENCA_ACTOR", "env@x.com")
	t.Setenv("EVIDENCA_TIMEZONE", "UTC")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, "env@x.com", cfg.Identity.Actor)
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"missing path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad column", func(c *Config) { c.Inventory.StockColumn = "5" }, "inventory.stock_column"},
		{"same columns", func(c *Config) { c.Inventory.HistoryColumn = "e" }, "must differ"},
		{"no devices", func(c *Config) { c.Devices.Categories = nil }, "at least one"},
		{"clashing device category", func(c *Config) { c.Devices.Categories = []string{"audit log"} }, "clashes"},
		{"flash too long", func(c *Config) { c.UI.FlashDuration = time.Minute }, "flash_duration"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), "error %q should mention %q", err, tt.want)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "database: [unterminated"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "EVIDENCA_TEST_DOTENV=from-file\nEVIDENCA_TEST_KEEP=from-file\n")
	t.Setenv("EVIDENCA_TEST_KEEP", "from-env")
	t.Setenv("EVIDENCA_TEST_DOTENV", "")
	os.Unsetenv("EVIDENCA_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("EVIDENCA_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("EVIDENCA_TEST_KEEP"), "the environment wins over .env")

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}
