package config

import (
	"errors"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no API key configured")

// APIKeyEnv returns the vendor environment variable for a provider kind.
func APIKeyEnv(kind string) string {
	if strings.EqualFold(kind, "openai") {
		return "OPENAI_API_KEY"
	}
	return "ANTHROPIC_API_KEY"
}

// GetAPIKey returns the API key for the configured provider.
// It checks in order: vendor environment variable, config file.
func GetAPIKey(cfg *Config) (string, error) {
	kind := ""
	if cfg != nil {
		kind = cfg.Provider.Kind
	}
	if key := os.Getenv(APIKeyEnv(kind)); key != "" {
		return key, nil
	}

	if cfg != nil && cfg.Provider.APIKey != "" {
		// Expand any remaining env var references
		key := os.ExpandEnv(cfg.Provider.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, nil
		}
	}

	return "", ErrNoAPIKey
}

// ValidateAPIKey performs basic validation on an API key.
// It checks format but does not verify the key with the vendor.
func ValidateAPIKey(kind, key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	prefix := "sk-ant-"
	if strings.EqualFold(kind, "openai") {
		prefix = "sk-"
	}
	if !strings.HasPrefix(key, prefix) {
		return errors.New("invalid API key format: expected '" + prefix + "' prefix")
	}

	// Keys should be reasonably long
	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	kind := ""
	if cfg != nil {
		kind = cfg.Provider.Kind
	}
	if os.Getenv(APIKeyEnv(kind)) != "" {
		return KeySourceEnv
	}

	if cfg != nil && cfg.Provider.APIKey != "" {
		key := os.ExpandEnv(cfg.Provider.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return KeySourceConfig
		}
	}

	return KeySourceNone
}
