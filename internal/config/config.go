// Package config handles credsync configuration loading and validation.
package config

import (
	"fmt"

	"credsync/internal/buildvars"
)

// Fallback defaults used when nothing was injected at build time.
const (
	fallbackRemote = "aw-remote-ext.buildremote.example.io"
	fallbackHelper = "aspect-credential-helper"
)

// Config is the root configuration structure for credsync.
type Config struct {
	// Remote is the remote cache DNS name the credential is scoped to.
	Remote string `yaml:"remote" mapstructure:"remote"`

	// CredentialHelper is the credential helper executable name.
	CredentialHelper string `yaml:"credential_helper" mapstructure:"credential_helper"`

	// SSHArgs are extra arguments passed to every ssh invocation.
	SSHArgs []string `yaml:"ssh_args" mapstructure:"ssh_args"`

	// Logging settings.
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console, auto).
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultConfig returns the defaults, with remote and helper taken from
// build-time variables when those were injected.
func DefaultConfig() *Config {
	return &Config{
		Remote:           buildvars.RemoteOrDefault(fallbackRemote),
		CredentialHelper: buildvars.CredentialHelperOrDefault(fallbackHelper),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Remote == "" {
		return fmt.Errorf("remote must not be empty")
	}
	if c.CredentialHelper == "" {
		return fmt.Errorf("credential_helper must not be empty")
	}
	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid logging level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "auto", "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %q", c.Logging.Format)
	}
	return nil
}
