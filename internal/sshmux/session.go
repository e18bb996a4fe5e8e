// Package sshmux drives the system ssh binary as a batched command
// multiplexer. A Session passes a restrictive option set suitable for
// non-interactive use and, when the host does not multiplex on its own,
// stands up a temporary control master so that subsequent commands skip
// connection setup.
package sshmux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"

	"credsync/internal/logging"
)

// restrictedOptions is the option set passed to every batch invocation,
// mirroring what scp passes when it drives ssh.
var restrictedOptions = []string{
	"-oPermitLocalCommand=no",
	"-oClearAllForwardings=yes",
	"-oRemoteCommand=none",
	"-oForwardAgent=no",
	"-oBatchMode=yes",
}

// ConnectionError reports a failed control master setup or connectivity
// check, carrying whatever ssh printed on stderr.
type ConnectionError struct {
	Host     string
	ExitCode int
	Stderr   []byte
	Err      error
}

func (e *ConnectionError) Error() string {
	msg := fmt.Sprintf("ssh %s failed (exit=%d)", e.Host, e.ExitCode)
	if detail := strings.TrimSpace(string(e.Stderr)); detail != "" {
		msg += ": " + logging.Redact(detail)
	}
	return msg
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SessionConfig configures how a Session is established.
type SessionConfig struct {
	// Host is the ssh destination.
	Host string

	// SSHArgs are extra client arguments prepended to every invocation.
	SSHArgs []string

	// OwnSocket, when true, makes the session create a private control
	// socket and stand up its own control master.
	OwnSocket bool

	// Binary overrides the ssh binary path (defaults to "ssh").
	Binary string
}

// Session wraps one host and builds every remote command for the process
// lifetime against the same connection.
type Session struct {
	host   string
	args   []string
	binary string
	socket *ControlSocket
	closed bool
}

// NewSession establishes the session, blocking until the control master is
// reachable. When the session owns its socket, the bootstrap run starts the
// master; otherwise a plain `ssh <host> true` validates connectivity, which
// also lets a ControlMaster=auto host spin up its own unrestricted master
// rather than one carrying our batch-only options.
func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if cfg.Host == "" {
		return nil, errors.New("ssh host is required")
	}
	s := &Session{
		host:   cfg.Host,
		args:   slices.Clone(cfg.SSHArgs),
		binary: cfg.Binary,
	}
	if s.binary == "" {
		s.binary = "ssh"
	}

	args := slices.Clone(s.args)
	if cfg.OwnSocket {
		socket, err := NewControlSocket("credsync-")
		if err != nil {
			return nil, err
		}
		s.socket = socket
		args = append(args, "-xMTS", socket.Path(), "-oControlPersist=yes")
		args = append(args, restrictedOptions...)
	}
	args = append(args, "--", s.host, "true")

	cmd := exec.CommandContext(ctx, s.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		s.socket.Destroy()
		s.socket = nil
		return nil, &ConnectionError{
			Host:     s.host,
			ExitCode: exitCode(err),
			Stderr:   stderr.Bytes(),
			Err:      err,
		}
	}
	return s, nil
}

// Host returns the ssh destination the session was established against.
func (s *Session) Host() string {
	return s.host
}

// OwnsSocket reports whether the session stood up its own control master.
func (s *Session) OwnsSocket() bool {
	return s.socket != nil
}

// Command builds a remote command invocation against the session. The
// caller attaches stdio and runs it. Valid any number of times while the
// session is active; after Cleanup the control master is gone and calls
// are invalid, so they are flagged in the log.
func (s *Session) Command(ctx context.Context, remoteCommand string) *exec.Cmd {
	if s.closed {
		logging.Warn().Str("host", s.host).Msg("remote command built on closed ssh session")
	}
	args := slices.Clone(s.args)
	if s.socket != nil {
		args = append(args, "-S", s.socket.Path())
	}
	args = append(args, "-xT")
	args = append(args, restrictedOptions...)
	args = append(args, "--", s.host, remoteCommand)
	return exec.CommandContext(ctx, s.binary, args...)
}

// Cleanup tears the session down: the control master is told to exit and
// the socket directory is removed. Idempotent, and never fails: teardown
// problems are logged as warnings so they cannot override the primary
// result of the run. Callers defer it right after NewSession so it runs on
// every exit path exactly once.
func (s *Session) Cleanup() {
	if s == nil || s.closed {
		return
	}
	s.closed = true
	if s.socket == nil {
		return
	}

	args := slices.Clone(s.args)
	args = append(args, "-S", s.socket.Path(), "-Oexit", "--", s.host)
	cmd := exec.Command(s.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		logging.Warn().
			Err(err).
			Str("host", s.host).
			Str("stderr", logging.Redact(strings.TrimSpace(stderr.String()))).
			Msg("failed to stop ssh control master")
	}
	s.socket.Destroy()
	s.socket = nil
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
