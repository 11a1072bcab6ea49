package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	DatabaseURL string
	AI          AIConfig
	Agent       AgentConfig
	LogLevel    string
}

type AIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

type AgentConfig struct {
	Explain    bool
	ReadOnly   bool
	SampleRows int
}

const (
	DefaultDatabaseURL = "sqlite:///example.db"
	DefaultModel       = "gpt-3.5-turbo"
)

func Default() Config {
	return Config{
		DatabaseURL: DefaultDatabaseURL,
		AI: AIConfig{
			Model:       DefaultModel,
			Temperature: 0.7,
			Timeout:     60 * time.Second,
		},
		Agent: AgentConfig{
			Explain:    true,
			ReadOnly:   false,
			SampleRows: 3,
		},
		LogLevel: "warn",
	}
}

// LoadFromEnv reads envFile (usually ".env") into the process environment
// and then loads from it. A missing file is not an error; variables already
// set in the environment win over the file.
func LoadFromEnv(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return Load(os.LookupEnv)
}

// Load applies the environment to the defaults.
func Load(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := Default()

	if err := applyString(lookup, "DATABASE_URL", &cfg.DatabaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "OPENAI_API_KEY", &cfg.AI.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "OPENAI_BASE_URL", &cfg.AI.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_MODEL", &cfg.AI.Model); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "SQLAGENT_TEMPERATURE", &cfg.AI.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SQLAGENT_TIMEOUT", &cfg.AI.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLAGENT_EXPLAIN", &cfg.Agent.Explain); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SQLAGENT_READ_ONLY", &cfg.Agent.ReadOnly); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SQLAGENT_SAMPLE_ROWS", &cfg.Agent.SampleRows); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SQLAGENT_LOG_LEVEL", &cfg.LogLevel); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the merged configuration. Load only rejects values it
// cannot parse, so call Validate once flags have been applied.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("database url is required")
	}
	if strings.TrimSpace(c.AI.Model) == "" {
		return fmt.Errorf("model is required")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", c.AI.Temperature)
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.AI.Timeout)
	}
	if c.Agent.SampleRows < 0 {
		return fmt.Errorf("sample rows must not be negative, got %d", c.Agent.SampleRows)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return nil
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	// plain numbers are seconds
	if secs, err := strconv.Atoi(raw); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}
