package sshmux

import (
	"fmt"
	"os"
	"path/filepath"

	"credsync/internal/logging"
)

// ControlSocket owns a private temporary directory holding the control
// socket file that ssh creates. The directory is 0700 so other users cannot
// reach the socket.
type ControlSocket struct {
	dir  string
	path string
}

// NewControlSocket allocates the socket directory with the given name prefix.
func NewControlSocket(prefix string) (*ControlSocket, error) {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return nil, fmt.Errorf("create control socket directory: %w", err)
	}
	return &ControlSocket{
		dir:  dir,
		path: filepath.Join(dir, "sock"),
	}, nil
}

// Path returns the socket path inside the owned directory. The socket file
// itself is created by ssh when the control master starts.
func (s *ControlSocket) Path() string {
	return s.path
}

// Destroy removes the owning directory and everything in it. Calling it
// again, or on a socket that was never created, is a no-op.
func (s *ControlSocket) Destroy() {
	if s == nil || s.dir == "" {
		return
	}
	if err := os.RemoveAll(s.dir); err != nil {
		logging.Warn().Err(err).Str("dir", s.dir).Msg("failed to remove control socket directory")
	}
	s.dir = ""
	s.path = ""
}
