// Package config loads service configuration from the environment.
package config

import (
	"fmt"

	"github.com/joeshaw/envdecode"
)

// Channel creation modes.
const (
	CreationModePublic  = "public"
	CreationModePrivate = "private"
)

// Config holds everything the process reads from the environment. The
// admin token and the public feed URL are the only required settings;
// leaving DatabaseURL empty runs the service on the in-memory store.
type Config struct {
	Port                int    `env:"PORT,default=8765"`
	AuthToken           string `env:"AUTH_TOKEN,required"`
	FeedURL             string `env:"FEED_URL,required"`
	FeedTitle           string `env:"FEED_TITLE,default=Agent2RSS"`
	FeedDescription     string `env:"FEED_DESCRIPTION,default=Aggregated channel feed"`
	FeedLanguage        string `env:"FEED_LANGUAGE,default=zh-CN"`
	DatabaseURL         string `env:"DATABASE_URL,default="`
	LogLevel            string `env:"LOG_LEVEL,default=info"`
	ChannelCreationMode string `env:"CHANNEL_CREATION_MODE,default=public"`
	ThemesFile          string `env:"THEMES_FILE,default=themes.yaml"`
	DefaultTheme        string `env:"DEFAULT_THEME,default=github"`
	SummaryLength       int    `env:"SUMMARY_LENGTH,default=150"`
	RateLimitPerSecond  int    `env:"RATE_LIMIT_RPS,default=10"`
	RateLimitBurst      int    `env:"RATE_LIMIT_BURST,default=20"`
}

// Load decodes and validates the configuration.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field and enum constraints.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	switch c.ChannelCreationMode {
	case CreationModePublic, CreationModePrivate:
	default:
		return fmt.Errorf("CHANNEL_CREATION_MODE %q must be public or private", c.ChannelCreationMode)
	}
	if c.SummaryLength <= 0 {
		return fmt.Errorf("SUMMARY_LENGTH must be positive")
	}
	return nil
}
