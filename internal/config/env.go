package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Env is the process configuration read from DROPLET_* environment variables.
type Env struct {
	// LogLevel is a zerolog level name: trace, debug, info, warn or error.
	LogLevel string `split_words:"true" default:"info"`

	// LogFormat selects human readable "console" output or "json" lines.
	LogFormat string `split_words:"true" default:"console"`

	// Workers bounds the frame worker pool. Zero uses GOMAXPROCS.
	Workers int `default:"0"`

	// Params is an optional YAML parameter file applied on top of the defaults.
	Params string

	// Prefix is the frame file name prefix.
	Prefix string `default:"w1a"`

	// CacheSize bounds the number of cached backgrounds.
	CacheSize int `split_words:"true" default:"8"`
}

// ParseEnv reads the environment.
func ParseEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process("droplet", &env); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w. See DROPLET_LOG_LEVEL, DROPLET_LOG_FORMAT, DROPLET_WORKERS, DROPLET_PARAMS, DROPLET_PREFIX and DROPLET_CACHE_SIZE", err)
	}
	if env.Workers < 0 {
		return nil, fmt.Errorf("%w: DROPLET_WORKERS must not be negative", ErrConfiguration)
	}
	if env.CacheSize < 1 {
		return nil, fmt.Errorf("%w: DROPLET_CACHE_SIZE must be at least 1", ErrConfiguration)
	}
	return &env, nil
}
