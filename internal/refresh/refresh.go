// Package refresh orchestrates credential freshness: it probes the local
// and remote credential helpers concurrently, re-authenticates when needed,
// and pushes the resulting secret into the remote kernel keyring.
package refresh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"credsync/internal/keychain"
	"credsync/internal/logging"
)

const (
	// credentialService is the keychain service name and the realm suffix
	// of the remote key name.
	credentialService = "AspectWorkflows"

	// keyNamePrefix matches the naming scheme of the keyring library that
	// reads the key back on the remote host.
	keyNamePrefix = "keyring-rs"
)

// Commander builds remote command invocations against an established ssh
// session. Satisfied by *sshmux.Session.
type Commander interface {
	Command(ctx context.Context, remoteCommand string) *exec.Cmd
	Host() string
}

// Options configures an Orchestrator. All fields are read-only after New;
// the concurrent probes share nothing else.
type Options struct {
	// Helper is the credential helper executable name.
	Helper string

	// Remote is the remote cache DNS name the credential is scoped to.
	Remote string

	// ForceLocal skips the local probe and re-authenticates
	// unconditionally.
	ForceLocal bool

	// ForceRemote skips the remote probe and pushes unconditionally.
	ForceRemote bool

	// SessionKeyring targets the session-scoped kernel keyring instead of
	// the user-persistent one.
	SessionKeyring bool

	// Keychain is the local secret store.
	Keychain keychain.Store

	// Stdout and Stderr carry the interactive login flow's output
	// (default os.Stdout/os.Stderr).
	Stdout io.Writer
	Stderr io.Writer
}

// Result describes what a successful run did.
type Result struct {
	// LoggedIn is true when the helper's login flow ran.
	LoggedIn bool

	// Pushed is true when the credential was written to the remote
	// keyring. False means nothing was stale.
	Pushed bool
}

// Orchestrator runs the freshness checks and the push for one invocation.
type Orchestrator struct {
	session     Commander
	opts        Options
	loginAdvice *regexp.Regexp
	stdout      io.Writer
	stderr      io.Writer
}

// New creates an orchestrator against an established session.
func New(session Commander, opts Options) *Orchestrator {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Orchestrator{
		session: session,
		opts:    opts,
		loginAdvice: regexp.MustCompile(
			`(?is)please\s+run.*` + regexp.QuoteMeta(opts.Helper) + `\s+login`),
		stdout: stdout,
		stderr: stderr,
	}
}

// Run executes the whole refresh: concurrent local and remote probes, a
// login when the local credential is stale, then a keychain fetch and a
// remote push when either side needs it. After a push the remote probe runs
// once more; a still-stale result fails with ErrStillStale instead of
// looping.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	var (
		loggedIn    bool
		remoteStale bool
		localErr    error
		remoteErr   error
	)
	// No shared cancellation between the two paths: a fast remote failure
	// must not kill an in-flight login or show up as a synthetic local
	// error.
	var g errgroup.Group
	g.Go(func() error {
		loggedIn, localErr = o.refreshLocal(ctx)
		return localErr
	})
	g.Go(func() error {
		remoteStale, remoteErr = o.checkRemote(ctx)
		return remoteErr
	})
	_ = g.Wait()
	// Local misconfiguration is usually the root cause, so a genuine
	// local error outranks a concurrently discovered remote one.
	if localErr != nil {
		return Result{}, localErr
	}
	if remoteErr != nil {
		return Result{}, remoteErr
	}

	if !loggedIn && !remoteStale {
		logging.Debug().Msg("local and remote credentials are fresh")
		return Result{}, nil
	}

	credential, err := o.opts.Keychain.Get(credentialService, o.opts.Remote)
	if err != nil {
		return Result{LoggedIn: loggedIn}, err
	}
	if err := o.push(ctx, credential); err != nil {
		return Result{LoggedIn: loggedIn}, err
	}

	stale, err := o.remoteNeedsLogin(ctx)
	if err != nil {
		return Result{LoggedIn: loggedIn, Pushed: true}, fmt.Errorf("verifying pushed credential: %w", err)
	}
	if stale {
		return Result{LoggedIn: loggedIn, Pushed: true}, ErrStillStale
	}
	return Result{LoggedIn: loggedIn, Pushed: true}, nil
}

// refreshLocal probes the local helper and, when the credential is stale,
// drives the login flow. Reports whether a login ran.
func (o *Orchestrator) refreshLocal(ctx context.Context) (bool, error) {
	stale := o.opts.ForceLocal
	if !stale {
		var err error
		stale, err = o.needsLogin(ctx, exec.CommandContext(ctx, o.opts.Helper, "get"))
		if err != nil {
			return false, err
		}
	}
	if !stale {
		return false, nil
	}
	return true, o.runLogin(ctx)
}

func (o *Orchestrator) checkRemote(ctx context.Context) (bool, error) {
	if o.opts.ForceRemote {
		return true, nil
	}
	return o.remoteNeedsLogin(ctx)
}

// remoteNeedsLogin probes the helper on the remote host through the same
// session later used for the push, so no second connection is set up.
func (o *Orchestrator) remoteNeedsLogin(ctx context.Context) (bool, error) {
	return o.needsLogin(ctx, o.session.Command(ctx, o.opts.Helper+" get"))
}

// needsLogin runs a helper "get" probe. Exit 0 means the credential is
// valid. A non-zero exit whose stderr advises running `<helper> login`
// means stale; anything else is a HelperProtocolError and must not be
// mistaken for "needs login".
func (o *Orchestrator) needsLogin(ctx context.Context, cmd *exec.Cmd) (bool, error) {
	// os/exec pumps a non-file Stdin from its own goroutine, so this write
	// makes progress independently of stderr draining and a full pipe on
	// either side cannot wedge the probe.
	cmd.Stdin = strings.NewReader(fmt.Sprintf("{\"uri\":\"https://%s\"}\n", o.opts.Remote))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return false, fmt.Errorf("run %s get: %w", o.opts.Helper, err)
	}
	if o.loginAdvice.Match(stderr.Bytes()) {
		return true, nil
	}
	return false, &HelperProtocolError{
		Helper:   o.opts.Helper,
		ExitCode: exitErr.ExitCode(),
		Stderr:   stderr.Bytes(),
	}
}

// runLogin spawns the helper's interactive login with empty stdin. Its
// output goes straight to the user; browser-based flows print URLs there.
func (o *Orchestrator) runLogin(ctx context.Context) error {
	logging.Info().Str("helper", o.opts.Helper).Str("remote", o.opts.Remote).Msg("running credential helper login")
	cmd := exec.CommandContext(ctx, o.opts.Helper, "login", o.opts.Remote)
	cmd.Stdout = o.stdout
	cmd.Stderr = o.stderr
	if err := cmd.Run(); err != nil {
		return &LoginError{
			Helper:   o.opts.Helper,
			Remote:   o.opts.Remote,
			ExitCode: exitCode(err),
			Err:      err,
		}
	}
	return nil
}

// push writes the credential into the remote kernel keyring via keyctl,
// streaming the secret over the remote command's stdin so it never touches
// a command line or the logs.
func (o *Orchestrator) push(ctx context.Context, credential string) error {
	keyName := fmt.Sprintf("%s:%s@%s", keyNamePrefix, o.opts.Remote, credentialService)
	selector := "@u"
	if o.opts.SessionKeyring {
		selector = "@s"
	}

	cmd := o.session.Command(ctx, strings.Join([]string{"keyctl", "padd", "user", keyName, selector}, " "))
	cmd.Stdin = strings.NewReader(credential)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &RemoteSyncError{
			Host:     o.session.Host(),
			ExitCode: exitCode(err),
			Stderr:   stderr.Bytes(),
			Err:      err,
		}
	}
	logging.Debug().Str("host", o.session.Host()).Str("key", keyName).Msg("credential pushed to remote keyring")
	return nil
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
