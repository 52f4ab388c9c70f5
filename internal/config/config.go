// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure.
type Config struct {
	Log         LogConfig         `toml:"log"`
	Database    DatabaseConfig    `toml:"database"`
	Storage     StorageConfig     `toml:"storage"`
	Fetch       FetchConfig       `toml:"fetch"`
	Downloaders DownloadersConfig `toml:"downloaders"`
	Tools       ToolsConfig       `toml:"tools"`
	Matching    MatchingConfig    `toml:"matching"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type StorageConfig struct {
	Root       string  `toml:"root"`
	MinFreeGiB float64 `toml:"min_free_gib"`
}

type FetchConfig struct {
	MaxRetries        int `toml:"max_retries"`
	RetryDelaySecs    int `toml:"retry_delay_secs"`
	StallTimeoutSecs  int `toml:"stall_timeout_secs"`
	DirectTimeoutSecs int `toml:"direct_timeout_secs"`
	Concurrency       int `toml:"concurrency"`
}

// RetryDelay returns the fixed inter-retry delay.
func (f FetchConfig) RetryDelay() time.Duration {
	return time.Duration(f.RetryDelaySecs) * time.Second
}

// StallTimeout returns the no-progress threshold for segmented downloads.
func (f FetchConfig) StallTimeout() time.Duration {
	return time.Duration(f.StallTimeoutSecs) * time.Second
}

// DirectTimeout returns the dial/response-header timeout for the direct
// strategy. The body read is not bounded by it.
func (f FetchConfig) DirectTimeout() time.Duration {
	return time.Duration(f.DirectTimeoutSecs) * time.Second
}

type DownloadersConfig struct {
	// Plain selects the strategy for non-adaptive URLs: "direct" or "aria2".
	Plain string      `toml:"plain"`
	HLS   HLSConfig   `toml:"hls"`
	Aria2 Aria2Config `toml:"aria2"`
}

type HLSConfig struct {
	Binary              string `toml:"binary"`
	Retries             int    `toml:"retries"`
	ConcurrentFragments int    `toml:"concurrent_fragments"`
	SocketTimeoutSecs   int    `toml:"socket_timeout_secs"`
	ThrottledRate       string `toml:"throttled_rate"`
}

type Aria2Config struct {
	Binary         string `toml:"binary"`
	MaxConnections int    `toml:"max_connections"`
	Splits         int    `toml:"splits"`
	MinSplitSize   string `toml:"min_split_size"`
	Retries        int    `toml:"retries"`
}

type ToolsConfig struct {
	Hasher string `toml:"hasher"`
	Prober string `toml:"prober"`
}

type MatchingConfig struct {
	MaxDistance          int     `toml:"max_distance"`
	MaxDurationDeltaSecs float64 `toml:"max_duration_delta_secs"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Substitute environment variables
	content := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Apply defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/grabarr.db"
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = "./data/media"
	}
	if cfg.Storage.MinFreeGiB == 0 {
		cfg.Storage.MinFreeGiB = 50
	}
	if cfg.Fetch.MaxRetries == 0 {
		cfg.Fetch.MaxRetries = 2
	}
	if cfg.Fetch.RetryDelaySecs == 0 {
		cfg.Fetch.RetryDelaySecs = 30
	}
	if cfg.Fetch.StallTimeoutSecs == 0 {
		cfg.Fetch.StallTimeoutSecs = 180
	}
	if cfg.Fetch.DirectTimeoutSecs == 0 {
		cfg.Fetch.DirectTimeoutSecs = 600
	}
	if cfg.Fetch.Concurrency == 0 {
		cfg.Fetch.Concurrency = 2
	}
	if cfg.Downloaders.Plain == "" {
		cfg.Downloaders.Plain = "direct"
	}
	if cfg.Matching.MaxDistance == 0 {
		cfg.Matching.MaxDistance = 16
	}
	if cfg.Matching.MaxDurationDeltaSecs == 0 {
		cfg.Matching.MaxDurationDeltaSecs = 60
	}

	if cfg.Downloaders.Plain != "direct" && cfg.Downloaders.Plain != "aria2" {
		return nil, fmt.Errorf("downloaders.plain must be %q or %q, got %q", "direct", "aria2", cfg.Downloaders.Plain)
	}

	return &cfg, nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1] // Strip ${ and }
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match // Leave unchanged if not found
	})
}
