package config

import (
	"fmt"
	"os"
	"strings"
)

// Mode represents the application execution mode
type Mode string

const (
	// ModeDevelopment is for local development (relaxed security, verbose logging)
	ModeDevelopment Mode = "development"
	// ModeProduction is for production deployment
	ModeProduction Mode = "production"
)

// DetectMode determines the application mode from config and environment.
// Priority: 1. Config file, 2. Environment variable, 3. Default (production)
func DetectMode(configMode string) Mode {
	if m, ok := parseMode(configMode); ok {
		return m
	}

	envMode := os.Getenv("MODE")
	if envMode == "" {
		envMode = os.Getenv("APP_MODE")
	}
	if envMode == "" {
		envMode = os.Getenv("ENVIRONMENT")
	}
	if m, ok := parseMode(envMode); ok {
		return m
	}

	// Default to production for safety
	return ModeProduction
}

func parseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "development", "dev":
		return ModeDevelopment, true
	case "production", "prod":
		return ModeProduction, true
	}
	return "", false
}

// String returns a human-readable representation of the mode
func (m Mode) String() string {
	return string(m)
}

// Validate checks if the mode is valid
func (m Mode) Validate() error {
	if m != ModeDevelopment && m != ModeProduction {
		return fmt.Errorf("invalid mode: %s (must be 'development' or 'production')", m)
	}
	return nil
}

// IsTruthy interprets common boolean environment values
func IsTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on", "enabled":
		return true
	}
	return false
}
