// Package cli implements the credsync command line interface.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"credsync/internal/config"
	"credsync/internal/keychain"
	"credsync/internal/logging"
	"credsync/internal/refresh"
	"credsync/internal/sshmux"
)

const defaultHost = "devbox"

// Execute runs the credsync command.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

type rootFlags struct {
	remote         string
	helper         string
	force          bool
	forceLocal     bool
	forceRemote    bool
	sessionKeyring bool
	createSocket   string
	noCreateSocket bool
	sshArgs        []string
	logLevel       string
	logFormat      string
	configFile     string
}

func newRootCmd(version string) *cobra.Command {
	defaults := config.DefaultConfig()
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "credsync [host]",
		Short: "Sync a remote-build credential into a devbox kernel keyring",
		Long: `credsync checks whether the local and remote copies of your remote-build
credential are still valid, re-authenticates through the credential helper
when they are not, and pushes the fresh secret into the kernel keyring on
the remote host. All remote commands share one multiplexed ssh connection.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, args []string) error {
			host := defaultHost
			if len(args) == 1 {
				host = args[0]
			}
			return run(cmd, flags, host)
		},
	}

	cmd.Flags().StringVar(&flags.remote, "remote", defaults.Remote, "remote cache DNS name")
	cmd.Flags().StringVar(&flags.helper, "credential-helper", defaults.CredentialHelper, "credential helper executable name")
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "force re-login and push even if credentials are still valid")
	cmd.Flags().BoolVar(&flags.forceLocal, "force-local", false, "force re-login even if the local credential is still valid")
	cmd.Flags().BoolVar(&flags.forceRemote, "force-remote", false, "force a push even if the remote credential is still valid")
	cmd.Flags().BoolVarP(&flags.sessionKeyring, "session-keyring", "s", false, "use the session (rather than user) keyring on the remote host")
	cmd.Flags().StringVarP(&flags.createSocket, "create-socket", "c", "infer", "create a temporary ssh control socket (true, false, infer)")
	cmd.Flags().Lookup("create-socket").NoOptDefVal = "true"
	cmd.Flags().BoolVarP(&flags.noCreateSocket, "no-create-socket", "C", false, "do not create a temporary ssh control socket")
	cmd.Flags().StringArrayVarP(&flags.sshArgs, "ssh-arg", "A", nil, "additional ssh argument (repeatable: --ssh-arg='-p 23' --ssh-arg='-4')")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "override logging level (debug, info, warn, error)")
	cmd.Flags().StringVar(&flags.logFormat, "log-format", "", "override logging format (json, console)")
	cmd.Flags().StringVar(&flags.configFile, "config", "", "config file (default is $HOME/.config/credsync/config.yaml)")
	cmd.MarkFlagsMutuallyExclusive("create-socket", "no-create-socket")

	return cmd
}

func run(cmd *cobra.Command, flags *rootFlags, host string) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	policy := sshmux.SocketPolicyReuse
	if !flags.noCreateSocket {
		policy, err = sshmux.ParseSocketPolicy(flags.createSocket)
		if err != nil {
			return err
		}
	}
	ownSocket := sshmux.NewPolicyResolver().Resolve(ctx, policy, host)

	session, err := sshmux.NewSession(ctx, sshmux.SessionConfig{
		Host:      host,
		SSHArgs:   cfg.SSHArgs,
		OwnSocket: ownSocket,
	})
	if err != nil {
		return fmt.Errorf("failed setting up ssh session: %w", err)
	}
	defer session.Cleanup()

	result, err := refresh.New(session, refresh.Options{
		Helper:         cfg.CredentialHelper,
		Remote:         cfg.Remote,
		ForceLocal:     flags.force || flags.forceLocal,
		ForceRemote:    flags.force || flags.forceRemote,
		SessionKeyring: flags.sessionKeyring,
		Keychain:       keychain.System(),
	}).Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !result.Pushed {
		fmt.Fprintln(out, "Credential refresh not needed. Have a nice day.")
		return nil
	}
	fmt.Fprintf(out, "Credentials synced to %s. Have a nice day.\n", host)
	return nil
}

// loadConfig loads file + env configuration and layers changed flags on
// top, so precedence ends up defaults < file < env < flags.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	loader := config.NewLoader()
	if flags.configFile != "" {
		loader.SetConfigFile(flags.configFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("remote") {
		cfg.Remote = flags.remote
	}
	if cmd.Flags().Changed("credential-helper") {
		cfg.CredentialHelper = flags.helper
	}
	cfg.SSHArgs = append(cfg.SSHArgs, flags.sshArgs...)
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Logging.Format = flags.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
