package sshmux

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestNewControlSocket(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	socket, err := NewControlSocket("credsync-test-")
	if err != nil {
		t.Fatalf("NewControlSocket failed: %v", err)
	}
	defer socket.Destroy()

	dir := filepath.Dir(socket.Path())
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("socket directory missing: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("expected %s to be a directory", dir)
	}
	if runtime.GOOS != "windows" {
		if mode := info.Mode().Perm(); mode != 0o700 {
			t.Fatalf("expected mode 0700, got %o", mode)
		}
	}
	if base := filepath.Base(socket.Path()); base != "sock" {
		t.Fatalf("expected socket path to end in sock, got %q", base)
	}
}

func TestControlSocketDestroyIdempotent(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	socket, err := NewControlSocket("credsync-test-")
	if err != nil {
		t.Fatalf("NewControlSocket failed: %v", err)
	}
	dir := filepath.Dir(socket.Path())

	socket.Destroy()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected socket directory to be removed, stat err: %v", err)
	}

	// A second destroy, and one on a nil socket, must be no-ops.
	socket.Destroy()
	var nilSocket *ControlSocket
	nilSocket.Destroy()
}
