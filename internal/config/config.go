// Package config loads evidenca's YAML configuration, applies environment
// overrides and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete configuration.
type Config struct {
	Database      DatabaseConfig      `yaml:"database"`
	Logging       LoggingConfig       `yaml:"logging"`
	Inventory     InventoryConfig     `yaml:"inventory"`
	Devices       DevicesConfig       `yaml:"devices"`
	Audit         AuditConfig         `yaml:"audit"`
	DeviceHistory DeviceHistoryConfig `yaml:"device_history"`
	UI            UIConfig            `yaml:"ui"`
	Identity      IdentityConfig      `yaml:"identity"`
	Timezone      string              `yaml:"timezone"`
}

// DatabaseConfig configures the SQLite file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
	// BusyTimeout is in milliseconds.
	BusyTimeout int `yaml:"busy_timeout"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	Output string `yaml:"output"` // stdout, stderr
	File   string `yaml:"file"`   // optional tee
}

// InventoryConfig names the inventory category and its columns.
type InventoryConfig struct {
	Category      string `yaml:"category"`
	StockColumn   string `yaml:"stock_column"`
	NameColumn    string `yaml:"name_column"`
	HistoryColumn string `yaml:"history_column"`
}

// DevicesConfig lists the device categories.
type DevicesConfig struct {
	Categories []string `yaml:"categories"`
}

// AuditConfig names the audit trail category.
type AuditConfig struct {
	Category string `yaml:"category"`
}

// DeviceHistoryConfig names the device history category.
type DeviceHistoryConfig struct {
	Category string `yaml:"category"`
}

// UIConfig configures presentation.
type UIConfig struct {
	FlashDuration time.Duration `yaml:"flash_duration"`
}

// IdentityConfig configures the default actor.
type IdentityConfig struct {
	Actor string `yaml:"actor"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "evidenca.sqlite3",
			BusyTimeout: 5000,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
			Output: "stdout",
		},
		Inventory: InventoryConfig{
			Category:      "IT_Storage",
			StockColumn:   "E",
			NameColumn:    "D",
			HistoryColumn: "I",
		},
		Devices: DevicesConfig{
			Categories: []string{"Laptops", "Tablets", "Smartphones", "Desktops"},
		},
		Audit:         AuditConfig{Category: "Audit Log"},
		DeviceHistory: DeviceHistoryConfig{Category: "Device History Log"},
		UI:            UIConfig{FlashDuration: 300 * time.Millisecond},
		Timezone:      "Local",
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from a .env file. Variables already set in the
// environment win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies EVIDENCA_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EVIDENCA_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("EVIDENCA_BUSY_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.BusyTimeout = n
		}
	}
	if v := os.Getenv("EVIDENCA_ACTOR"); v != "" {
		cfg.Identity.Actor = v
	}
	if v := os.Getenv("EVIDENCA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EVIDENCA_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("EVIDENCA_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
}

var columnPattern = regexp.MustCompile(`^[A-Za-z]{1,3}$`)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.BusyTimeout < 0 {
		errs = append(errs, "database.busy_timeout must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q is not text or json", c.Logging.Format))
	}
	switch strings.ToLower(c.Logging.Output) {
	case "stdout", "stderr":
	default:
		errs = append(errs, fmt.Sprintf("logging.output %q is not stdout or stderr", c.Logging.Output))
	}

	if c.Inventory.Category == "" {
		errs = append(errs, "inventory.category is required")
	}
	for name, col := range map[string]string{
		"inventory.stock_column":   c.Inventory.StockColumn,
		"inventory.name_column":    c.Inventory.NameColumn,
		"inventory.history_column": c.Inventory.HistoryColumn,
	} {
		if !columnPattern.MatchString(col) {
			errs = append(errs, fmt.Sprintf("%s %q is not a column name", name, col))
		}
	}
	if strings.EqualFold(c.Inventory.StockColumn, c.Inventory.HistoryColumn) {
		errs = append(errs, "inventory.stock_column and inventory.history_column must differ")
	}

	if len(c.Devices.Categories) == 0 {
		errs = append(errs, "devices.categories must list at least one category")
	}
	seen := map[string]string{
		strings.ToLower(c.Inventory.Category):     "inventory.category",
		strings.ToLower(c.Audit.Category):         "audit.category",
		strings.ToLower(c.DeviceHistory.Category): "device_history.category",
	}
	if len(seen) != 3 {
		errs = append(errs, "inventory, audit and device_history categories must be distinct")
	}
	for _, cat := range c.Devices.Categories {
		key := strings.ToLower(strings.TrimSpace(cat))
		if key == "" {
			errs = append(errs, "devices.categories must not contain empty names")
			continue
		}
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Sprintf("device category %q clashes with %s", cat, prev))
			continue
		}
		seen[key] = "devices.categories"
	}
	if c.Audit.Category == "" || c.DeviceHistory.Category == "" {
		errs = append(errs, "audit.category and device_history.category are required")
	}

	if c.UI.FlashDuration < 0 || c.UI.FlashDuration > 5*time.Second {
		errs = append(errs, "ui.flash_duration must be between 0 and 5s")
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("timezone %q: %v", c.Timezone, err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Location returns the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
