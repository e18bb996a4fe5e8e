package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.NotEmpty(t, cfg.Remote)
	assert.NotEmpty(t, cfg.CredentialHelper)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty remote",
			mutate:  func(c *Config) { c.Remote = "" },
			wantErr: "remote",
		},
		{
			name:    "empty helper",
			mutate:  func(c *Config) { c.CredentialHelper = "" },
			wantErr: "credential_helper",
		},
		{
			name:    "bad level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging level",
		},
		{
			name:    "bad format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoader_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
remote: cache.internal.example.com
credential_helper: acme-helper
ssh_args:
  - "-4"
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	loader := NewLoader()
	loader.SetConfigFile(path)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "cache.internal.example.com", cfg.Remote)
	assert.Equal(t, "acme-helper", cfg.CredentialHelper)
	assert.Equal(t, []string{"-4"}, cfg.SSHArgs)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "auto", cfg.Logging.Format)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("remote: from-file.example.com\n"), 0o600))
	t.Setenv("CREDSYNC_REMOTE", "from-env.example.com")
	t.Setenv("CREDSYNC_CREDENTIAL_HELPER", "env-helper")

	loader := NewLoader()
	loader.SetConfigFile(path)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env.example.com", cfg.Remote)
	assert.Equal(t, "env-helper", cfg.CredentialHelper)
}

func TestLoader_MissingExplicitFile(t *testing.T) {
	loader := NewLoader()
	loader.SetConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := loader.Load()
	require.Error(t, err)
}

func TestLoader_MissingDefaultFileIsFine(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Remote, cfg.Remote)
}
