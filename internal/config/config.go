package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Database  DatabaseConfig  `yaml:"database"`
	Telemt    TelemtConfig    `yaml:"telemt"`
	Security  SecurityConfig  `yaml:"security"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// BotConfig contains Telegram bot settings
type BotConfig struct {
	Token          string  `yaml:"token"`
	AdminIDs       []int64 `yaml:"admin_ids"`
	UsersPageSize  int     `yaml:"users_page_size"`
	SupportContact string  `yaml:"support_contact"`
}

// DatabaseConfig selects the ledger backend
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path"`   // sqlite file
	URL    string `yaml:"url"`    // postgres connection string
}

// TelemtConfig points at the proxy's config file and systemd unit
type TelemtConfig struct {
	ConfigPath    string `yaml:"config_path"`
	ServiceName   string `yaml:"service_name"`
	SystemctlPath string `yaml:"systemctl_path"`
}

// SecurityConfig bounds what admins may issue
type SecurityConfig struct {
	DefaultTokenDays       int64 `yaml:"default_token_days"`
	MaxTokenDays           int64 `yaml:"max_token_days"`
	AllowAutoApproveTokens bool  `yaml:"allow_auto_approve_tokens"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings; an empty schedule disables the job
type SchedulerConfig struct {
	Reconcile     string `yaml:"reconcile"`
	PendingDigest string `yaml:"pending_digest"`
}

// HTTPConfig enables the status endpoint when Listen is set
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies env overrides and defaults, then validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	if val := os.Getenv("TELEGRAM_BOT_TOKEN"); val != "" {
		c.Bot.Token = val
	}
	if val := os.Getenv("ADMIN_IDS"); val != "" {
		c.Bot.AdminIDs = nil
		for _, part := range strings.Split(val, ",") {
			if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
				c.Bot.AdminIDs = append(c.Bot.AdminIDs, id)
			}
		}
	}

	// Database
	if val := os.Getenv("DB_DRIVER"); val != "" {
		c.Database.Driver = val
	}
	if val := os.Getenv("DB_PATH"); val != "" {
		c.Database.Path = val
	}
	if val := os.Getenv("DB_URL"); val != "" {
		c.Database.URL = val
	}

	// Telemt
	if val := os.Getenv("TELEMT_CONFIG_PATH"); val != "" {
		c.Telemt.ConfigPath = val
	}
	if val := os.Getenv("TELEMT_SERVICE"); val != "" {
		c.Telemt.ServiceName = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if val := os.Getenv("HTTP_LISTEN"); val != "" {
		c.HTTP.Listen = val
	}
}

func (c *Config) applyDefaults() {
	if c.Bot.UsersPageSize <= 0 {
		c.Bot.UsersPageSize = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "/var/lib/telemt-admin/telemt-admin.db"
	}
	if c.Telemt.ConfigPath == "" {
		c.Telemt.ConfigPath = "/etc/telemt.toml"
	}
	if c.Telemt.ServiceName == "" {
		c.Telemt.ServiceName = "telemt.service"
	}
	if c.Security.DefaultTokenDays == 0 {
		c.Security.DefaultTokenDays = 7
	}
	if c.Security.MaxTokenDays == 0 {
		c.Security.MaxTokenDays = 365
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return fmt.Errorf("bot token is required")
	}
	if len(c.Bot.AdminIDs) == 0 {
		return fmt.Errorf("at least one admin id is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database url is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}

	if c.Security.MaxTokenDays < 1 {
		return fmt.Errorf("max_token_days must be at least 1")
	}
	if c.Security.DefaultTokenDays < 1 || c.Security.DefaultTokenDays > c.Security.MaxTokenDays {
		return fmt.Errorf("default_token_days must be between 1 and %d", c.Security.MaxTokenDays)
	}
	return nil
}

// IsAdmin reports whether the Telegram user id is a configured admin
func (c *Config) IsAdmin(id int64) bool {
	return slices.Contains(c.Bot.AdminIDs, id)
}
