package main

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"

	puberrors "github.com/symkit/chunkpub/errors"
)

// Config is the CLI configuration, loaded from an optional TOML file and
// overridden by environment variables and flags, in that order.
type Config struct {
	// URL is the API root, for example "https://example.invalid/api/0".
	URL string `toml:"url"`

	// Organization is the organization slug.
	Organization string `toml:"org"`

	// Project is the project slug, required for debug file uploads.
	Project string `toml:"project"`

	// Token is the bearer token. Prefer the CHUNKPUB_TOKEN environment
	// variable over putting tokens in config files.
	Token string `toml:"token"`

	// MaxRounds bounds assemble rounds per run; zero keeps the default.
	MaxRounds int `toml:"max_rounds"`

	// MaxAttempts bounds attempts per HTTP call; zero keeps the default.
	MaxAttempts int `toml:"max_attempts"`
}

// envOverrides maps environment variables onto config fields.
var envOverrides = []struct {
	name  string
	apply func(*Config, string)
}{
	{"CHUNKPUB_URL", func(c *Config, v string) { c.URL = v }},
	{"CHUNKPUB_ORG", func(c *Config, v string) { c.Organization = v }},
	{"CHUNKPUB_PROJECT", func(c *Config, v string) { c.Project = v }},
	{"CHUNKPUB_TOKEN", func(c *Config, v string) { c.Token = v }},
	{"CHUNKPUB_MAX_ROUNDS", func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRounds = n
		}
	}},
	{"CHUNKPUB_MAX_ATTEMPTS", func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxAttempts = n
		}
	}},
}

// loadConfig reads the config file when path is non-empty, then applies
// environment overrides. A missing default config file is not an error.
func loadConfig(path string, required bool) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			if !os.IsNotExist(err) || required {
				return nil, puberrors.NewError("loadConfig", err).WithMessage(path)
			}
		}
	}
	for _, env := range envOverrides {
		if v := os.Getenv(env.name); v != "" {
			env.apply(cfg, v)
		}
	}
	return cfg, nil
}
