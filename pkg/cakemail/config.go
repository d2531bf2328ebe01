package cakemail

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/caarlos0/env/v10"
	"golang.org/x/text/language"
)

// Config contains all configuration options for the content parser
type Config struct {
	// CacheMaxSize is the maximum number of parsed templates to cache. 0 disables caching.
	CacheMaxSize int `env:"CAKEMAIL_CACHE_MAX_SIZE" envDefault:"100"`
	// CacheTTL is the time-to-live for cached templates. 0 means no expiration.
	CacheTTL time.Duration `env:"CAKEMAIL_CACHE_TTL" envDefault:"0s"`
	// LogLevel controls the verbosity of logging (debug, info, warn, error, off)
	LogLevel string `env:"CAKEMAIL_LOG_LEVEL" envDefault:"info"`
	// LogFormat selects the log encoding (console, json)
	LogFormat string `env:"CAKEMAIL_LOG_FORMAT" envDefault:"console"`
	// Culture is the BCP 47 tag used for number separators, currency and date names
	Culture string `env:"CAKEMAIL_CULTURE" envDefault:"en-US"`
	// DateFormat is the pattern for date merge fields without an explicit format
	DateFormat string `env:"CAKEMAIL_DATE_FORMAT" envDefault:"yyyy-MM-dd HH:mm:ss"`
}

var (
	globalConfig      *Config
	globalConfigMutex sync.RWMutex
	configOnce        sync.Once
)

func loadGlobalConfig() {
	configOnce.Do(func() {
		config, err := ConfigFromEnvironment()
		if err != nil || config.Validate() != nil {
			config = DefaultConfig()
		}
		globalConfigMutex.Lock()
		if globalConfig == nil {
			globalConfig = config
		}
		globalConfigMutex.Unlock()
	})
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		CacheMaxSize: 100,
		CacheTTL:     0,
		LogLevel:     "info",
		LogFormat:    "console",
		Culture:      "en-US",
		DateFormat:   defaultDateFormat,
	}
}

// ConfigFromEnvironment creates a configuration from CAKEMAIL_* environment variables
func ConfigFromEnvironment() (*Config, error) {
	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

// LoadConfig reads the environment and validates the result
func LoadConfig() (*Config, error) {
	config, err := ConfigFromEnvironment()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// NewConfigWithDefaults creates a new configuration with defaults applied to unset fields
func NewConfigWithDefaults(overrides *Config) *Config {
	defaults := DefaultConfig()

	if overrides == nil {
		return defaults
	}

	config := *overrides

	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}

	if config.LogFormat == "" {
		config.LogFormat = defaults.LogFormat
	}

	if config.Culture == "" {
		config.Culture = defaults.Culture
	}

	if config.DateFormat == "" {
		config.DateFormat = defaults.DateFormat
	}

	return &config
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.CacheMaxSize < 0 {
		return errors.New("cache max size cannot be negative")
	}

	if c.CacheTTL < 0 {
		return errors.New("cache TTL cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"off":   true,
	}

	if !validLogLevels[c.LogLevel] {
		return errors.New("invalid log level: " + c.LogLevel)
	}

	if c.LogFormat != "console" && c.LogFormat != "json" {
		return errors.New("invalid log format: " + c.LogFormat)
	}

	if _, err := language.Parse(c.Culture); err != nil {
		return fmt.Errorf("invalid culture %q: %w", c.Culture, err)
	}

	if c.DateFormat == "" {
		return errors.New("date format cannot be empty")
	}

	return nil
}

// GetGlobalConfig returns the global configuration
func GetGlobalConfig() *Config {
	loadGlobalConfig()

	globalConfigMutex.RLock()
	defer globalConfigMutex.RUnlock()

	if globalConfig == nil {
		return DefaultConfig()
	}

	// Return a copy to prevent modification
	configCopy := *globalConfig
	return &configCopy
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config *Config) {
	loadGlobalConfig()

	globalConfigMutex.Lock()
	globalConfig = config
	globalConfigMutex.Unlock()

	// Update logger based on new config (outside the lock to avoid deadlock)
	UpdateLoggerFromConfig()
}
