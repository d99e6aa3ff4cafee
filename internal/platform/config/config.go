// Package config loads process configuration from the environment and the
// world definition (settings, users, entities) from a YAML file.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds process level settings.
type Config struct {
	Addr      string `env:"TOKENPROFILE_ADDR" envDefault:":8080"`
	DBPath    string `env:"TOKENPROFILE_DB" envDefault:"data/tokenprofile.db"`
	WorldPath string `env:"TOKENPROFILE_WORLD" envDefault:"world.yaml"`

	LogLevel        string `env:"TOKENPROFILE_LOG_LEVEL" envDefault:"info"`
	LogDev          bool   `env:"TOKENPROFILE_LOG_DEV"`
	DebugVisibility bool   `env:"TOKENPROFILE_DEBUG_VISIBILITY"`
	TraceStdout     bool   `env:"TOKENPROFILE_TRACE_STDOUT"`

	// Flag documents kept in the read cache
	CacheSize int `env:"TOKENPROFILE_CACHE_SIZE" envDefault:"512"`

	// Channel buffer sizes
	BroadcastBuffer  int `env:"TOKENPROFILE_BROADCAST_BUFFER" envDefault:"256"`
	ClientSendBuffer int `env:"TOKENPROFILE_CLIENT_SEND_BUFFER" envDefault:"64"`

	// Rate limiting
	MaxMessagesPerSecond int `env:"TOKENPROFILE_MAX_MESSAGES_PER_SECOND" envDefault:"100"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.CacheSize < 0 || cfg.BroadcastBuffer < 0 || cfg.ClientSendBuffer < 0 {
		return Config{}, fmt.Errorf("parse env: negative buffer size")
	}
	return cfg, nil
}
