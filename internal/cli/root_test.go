package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credsync/internal/config"
)

func TestRootFlags_CreateSocketValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "default", args: nil, want: "infer"},
		{name: "bare flag means true", args: []string{"--create-socket"}, want: "true"},
		{name: "explicit false", args: []string{"--create-socket=false"}, want: "false"},
		{name: "explicit infer", args: []string{"--create-socket=infer"}, want: "infer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd("test")
			require.NoError(t, cmd.ParseFlags(tt.args))
			got, err := cmd.Flags().GetString("create-socket")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRootFlags_RepeatableSSHArg(t *testing.T) {
	cmd := newRootCmd("test")
	require.NoError(t, cmd.ParseFlags([]string{"-A", "-p 23", "--ssh-arg", "-4"}))
	got, err := cmd.Flags().GetStringArray("ssh-arg")
	require.NoError(t, err)
	assert.Equal(t, []string{"-p 23", "-4"}, got)
}

func TestRootFlags_DefaultsComeFromConfig(t *testing.T) {
	defaults := config.DefaultConfig()
	cmd := newRootCmd("test")

	remote, err := cmd.Flags().GetString("remote")
	require.NoError(t, err)
	assert.Equal(t, defaults.Remote, remote)

	helper, err := cmd.Flags().GetString("credential-helper")
	require.NoError(t, err)
	assert.Equal(t, defaults.CredentialHelper, helper)
}
