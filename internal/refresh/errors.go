package refresh

import (
	"errors"
	"fmt"
	"strings"

	"credsync/internal/logging"
)

// ErrStillStale reports that the remote probe still considered the
// credential stale after a successful push. The run fails rather than
// looping; a forced retry is the operator's call.
var ErrStillStale = errors.New("remote credential still reported stale after push; retry with --force")

// HelperProtocolError reports a credential-helper "get" failure that did
// not look like a login prompt. Those must surface verbatim instead of
// being mistaken for "needs login".
type HelperProtocolError struct {
	Helper   string
	ExitCode int
	Stderr   []byte
}

func (e *HelperProtocolError) Error() string {
	msg := fmt.Sprintf("%s get failed (exit=%d)", e.Helper, e.ExitCode)
	if detail := strings.TrimSpace(string(e.Stderr)); detail != "" {
		msg += ": " + logging.Redact(detail)
	}
	return msg
}

// LoginError reports a failed credential-helper login.
type LoginError struct {
	Helper   string
	Remote   string
	ExitCode int
	Err      error
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("%s login %s failed (exit=%d)", e.Helper, e.Remote, e.ExitCode)
}

func (e *LoginError) Unwrap() error { return e.Err }

// RemoteSyncError reports a failed keyctl push on the remote host.
type RemoteSyncError struct {
	Host     string
	ExitCode int
	Stderr   []byte
	Err      error
}

func (e *RemoteSyncError) Error() string {
	msg := fmt.Sprintf("ssh %s keyctl padd failed (exit=%d)", e.Host, e.ExitCode)
	if detail := strings.TrimSpace(string(e.Stderr)); detail != "" {
		msg += ": " + logging.Redact(detail)
	}
	return msg
}

func (e *RemoteSyncError) Unwrap() error { return e.Err }
