// Package config handles application configuration and mode detection
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Mode string `yaml:"mode"` // development, production

	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Plans    PlansConfig    `yaml:"plans"`
}

// ServerConfig represents server-specific configuration
type ServerConfig struct {
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	Branding BrandingConfig `yaml:"branding"`
}

// BrandingConfig represents branding configuration
type BrandingConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// DatabaseConfig selects the backing store (sqlite default)
type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	Path     string `yaml:"path"` // sqlite file path
}

// PlansConfig holds subscription plan pricing; hot-reloadable via the
// config watcher so price changes do not need a restart
type PlansConfig struct {
	PlusMonthlyCents int `yaml:"plus_monthly_cents"`
	ProMonthlyCents  int `yaml:"pro_monthly_cents"`
	TrialDays        int `yaml:"trial_days"`
}

// LoadConfig loads configuration from server.yml with defaults
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Mode: "production",
		Server: ServerConfig{
			Host: "",
			Port: 8080,
			Branding: BrandingConfig{
				Title:       "Tunecast",
				Description: "Music distribution for independent artists",
			},
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: "tunecast.db",
		},
		Plans: PlansConfig{
			PlusMonthlyCents: 499,
			ProMonthlyCents:  999,
			TrialDays:        14,
		},
	}

	configPath := findConfigFile()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return cfg, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// ConfigFilePath returns the server.yml path in use, empty if none
func ConfigFilePath() string {
	return findConfigFile()
}

// findConfigFile searches for server.yml in common locations
func findConfigFile() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	searchPaths := []string{
		filepath.Join(cwd, "server.yml"),
		filepath.Join(cwd, "../server.yml"),
		"/etc/tunecast/server.yml",
		"/opt/tunecast/server.yml",
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

func applyEnvOverrides(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if host := os.Getenv("HOST"); host != "" {
		cfg.Server.Host = host
	}
	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		cfg.Database.Type = dbType
	}
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DB_PORT"); dbPort != "" {
		if p, err := strconv.Atoi(dbPort); err == nil {
			cfg.Database.Port = p
		}
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.Database.Name = dbName
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		cfg.Database.Username = dbUser
	}
	if dbPass := os.Getenv("DB_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}
}

// OpenAIKey returns the LLM API key; empty means fallback heuristics
func OpenAIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// CronSecret guards the cron-style HTTP endpoints
func CronSecret() string {
	return os.Getenv("CRON_SECRET")
}

// BillingWebhookSecret verifies billing webhook signatures
func BillingWebhookSecret() string {
	return os.Getenv("BILLING_WEBHOOK_SECRET")
}
