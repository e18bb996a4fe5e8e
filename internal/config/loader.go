package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Load loads configuration with precedence:
// defaults < config file < CREDSYNC_* env vars.
// Flag overrides are applied by the CLI afterwards.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		// The config file is optional; only fail when one was named.
		if l.configFile != "" {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Viper's Unmarshal doesn't merge automatic env vars, so apply them
	// explicitly. Get consults env > file > defaults.
	l.applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	v.SetDefault("remote", cfg.Remote)
	v.SetDefault("credential_helper", cfg.CredentialHelper)
	v.SetDefault("ssh_args", cfg.SSHArgs)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetEnvPrefix("CREDSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func (l *Loader) applyEnvOverrides(cfg *Config) {
	v := l.v
	cfg.Remote = v.GetString("remote")
	cfg.CredentialHelper = v.GetString("credential_helper")
	cfg.Logging.Level = v.GetString("logging.level")
	cfg.Logging.Format = v.GetString("logging.format")
	if args := v.GetStringSlice("ssh_args"); len(args) > 0 {
		cfg.SSHArgs = args
	}
}

func (l *Loader) loadConfigFile() error {
	v := l.v
	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		return v.ReadInConfig()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(home, ".config", "credsync"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}
