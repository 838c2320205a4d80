// Package config handles configuration loading and management for nodetree.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ProjectConfigName is the per-project override file, searched upward from
// the working directory.
const ProjectConfigName = ".nodetree.yaml"

// ErrUnknownKey is returned for a key nodetree does not define.
var ErrUnknownKey = errors.New("unknown config key")

// Config holds all configuration for nodetree.
type Config struct {
	Provider  ProviderConfig  `mapstructure:"provider"`
	Store     StoreConfig     `mapstructure:"store"`
	Round     RoundConfig     `mapstructure:"round"`
	RAG       RAGConfig       `mapstructure:"rag"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ProviderConfig selects and tunes the generation provider.
type ProviderConfig struct {
	// Kind is anthropic or openai.
	Kind        string   `mapstructure:"kind" validate:"oneof=anthropic openai"`
	Model       string   `mapstructure:"model"`
	APIKey      string   `mapstructure:"api_key"`
	BaseURL     string   `mapstructure:"base_url" validate:"omitempty,url"`
	Temperature *float64 `mapstructure:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int      `mapstructure:"max_tokens" validate:"gte=0"`
	// Bedrock routes Anthropic calls through AWS Bedrock.
	Bedrock    bool   `mapstructure:"bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
	Burst     int     `mapstructure:"burst" validate:"gte=0"`
	Breaker   bool    `mapstructure:"breaker"`
}

// StoreConfig selects the node store.
type StoreConfig struct {
	Driver     string `mapstructure:"driver" validate:"oneof=sqlite sqlite3 badger mongo"`
	Path       string `mapstructure:"path"`
	URI        string `mapstructure:"uri" validate:"required_if=Driver mongo"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// RoundConfig holds solve round settings.
type RoundConfig struct {
	MaxConcurrent   int           `mapstructure:"max_concurrent" validate:"gte=1,lte=100"`
	SolveTimeout    time.Duration `mapstructure:"solve_timeout" validate:"gte=0"`
	Language        string        `mapstructure:"language"`
	SolutionExcerpt int           `mapstructure:"solution_excerpt" validate:"gte=0"`
	StreamMode      string        `mapstructure:"stream_mode" validate:"oneof=stream batch"`
	Breakdown       bool          `mapstructure:"breakdown"`
}

// RAGConfig enables retrieval of research documents.
type RAGConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	WeaviateURL string `mapstructure:"weaviate_url" validate:"required_if=Enabled true"`
	Class       string `mapstructure:"class"`
	TopK        int    `mapstructure:"top_k" validate:"gte=1"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// TelemetryConfig controls tracing.
type TelemetryConfig struct {
	// Trace is none or stdout.
	Trace string `mapstructure:"trace" validate:"oneof=none stdout"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, OPENAI_API_KEY, NODETREE_*)
// 2. Project config (.nodetree.yaml in current directory or parent)
// 3. User config (~/.config/nodetree/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return decode(v)
}

// Settings returns every effective key and value, sorted by key, with API
// keys masked.
func Settings() ([][2]string, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	keys := Keys()
	out := make([][2]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, [2]string{k, display(k, v.Get(k))})
	}
	return out, nil
}

// Lookup returns the effective value of one key.
func Lookup(key string) (string, error) {
	v, err := newViper()
	if err != nil {
		return "", err
	}
	key = strings.ToLower(key)
	if !IsKnownKey(key) {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return display(key, v.Get(key)), nil
}

// SetValue writes one key to the user config file, keeping the other keys
// already stored there.
func SetValue(key, value string) error {
	key = strings.ToLower(key)
	if !IsKnownKey(key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)
	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading user config: %w", err)
		}
	}
	v.Set(key, value)

	// Validate the merged result before persisting it.
	check := viper.New()
	setDefaults(check)
	if err := check.MergeConfigMap(v.AllSettings()); err != nil {
		return fmt.Errorf("merging config: %w", err)
	}
	if _, err := decode(check); err != nil {
		return err
	}

	return v.WriteConfigAs(configPath)
}

// optionalKeys are keys without a default value.
var optionalKeys = []string{"provider.temperature"}

// Keys returns every configuration key, sorted.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	keys := append(v.AllKeys(), optionalKeys...)
	sort.Strings(keys)
	return keys
}

// IsKnownKey reports whether key is a configuration key.
func IsKnownKey(key string) bool {
	key = strings.ToLower(key)
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	v.SetEnvPrefix("NODETREE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// temperature has no default, so AutomaticEnv alone never sees it.
	_ = v.BindEnv("provider.temperature")

	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Provider.APIKey = expandEnv(cfg.Provider.APIKey)
	cfg.Provider.Kind = strings.ToLower(cfg.Provider.Kind)
	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("provider.kind", d.Provider.Kind)
	v.SetDefault("provider.model", d.Provider.Model)
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.max_tokens", d.Provider.MaxTokens)
	v.SetDefault("provider.bedrock", false)
	v.SetDefault("provider.aws_region", "")
	v.SetDefault("provider.aws_profile", "")
	v.SetDefault("provider.rate_limit", d.Provider.RateLimit)
	v.SetDefault("provider.burst", d.Provider.Burst)
	v.SetDefault("provider.breaker", d.Provider.Breaker)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", "")
	v.SetDefault("store.uri", "")
	v.SetDefault("store.database", d.Store.Database)
	v.SetDefault("store.collection", d.Store.Collection)

	v.SetDefault("round.max_concurrent", d.Round.MaxConcurrent)
	v.SetDefault("round.solve_timeout", d.Round.SolveTimeout.String())
	v.SetDefault("round.language", d.Round.Language)
	v.SetDefault("round.solution_excerpt", d.Round.SolutionExcerpt)
	v.SetDefault("round.stream_mode", d.Round.StreamMode)
	v.SetDefault("round.breakdown", d.Round.Breakdown)

	v.SetDefault("rag.enabled", false)
	v.SetDefault("rag.weaviate_url", "")
	v.SetDefault("rag.class", d.RAG.Class)
	v.SetDefault("rag.top_k", d.RAG.TopK)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("telemetry.trace", d.Telemetry.Trace)
}

// getUserConfigDir returns the XDG config directory for nodetree.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "nodetree")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "nodetree")
	}
	return filepath.Join(home, ".config", "nodetree")
}

// findProjectConfig searches for .nodetree.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

func display(key string, value any) string {
	s := fmt.Sprint(value)
	if value == nil {
		s = ""
	}
	if strings.HasSuffix(key, "api_key") {
		return MaskAPIKey(expandEnv(s))
	}
	return s
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Kind:      "anthropic",
			MaxTokens: 4096,
			Burst:     1,
			Breaker:   true,
		},
		Store: StoreConfig{
			Driver:     "sqlite",
			Database:   "nodetree",
			Collection: "nodes",
		},
		Round: RoundConfig{
			MaxConcurrent:   10,
			SolveTimeout:    2 * time.Minute,
			Language:        "English",
			SolutionExcerpt: 1000,
			StreamMode:      "stream",
			Breakdown:       true,
		},
		RAG: RAGConfig{
			Class: "ResearchDocument",
			TopK:  2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Trace: "none",
		},
	}
}
