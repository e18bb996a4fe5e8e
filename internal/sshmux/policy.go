package sshmux

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"credsync/internal/logging"
)

// SocketPolicy controls whether a session creates its own control socket.
type SocketPolicy int

const (
	// SocketPolicyInfer inspects the host's effective ssh configuration.
	SocketPolicyInfer SocketPolicy = iota

	// SocketPolicyCreate always creates a private control socket.
	SocketPolicyCreate

	// SocketPolicyReuse never creates one, relying on the host's own
	// multiplexing configuration.
	SocketPolicyReuse
)

// ParseSocketPolicy parses a --create-socket value. Boolean spellings follow
// the usual truthy/falsy forms so `--create-socket=yes` works the way flag
// packages accept booleans.
func ParseSocketPolicy(value string) (SocketPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "infer":
		return SocketPolicyInfer, nil
	case "y", "yes", "t", "true", "on", "1":
		return SocketPolicyCreate, nil
	case "n", "no", "f", "false", "off", "0":
		return SocketPolicyReuse, nil
	default:
		return SocketPolicyInfer, fmt.Errorf("invalid create-socket value: %q", value)
	}
}

func (p SocketPolicy) String() string {
	switch p {
	case SocketPolicyCreate:
		return "create"
	case SocketPolicyReuse:
		return "reuse"
	default:
		return "infer"
	}
}

// PolicyResolver turns a SocketPolicy into the resolved own-socket decision
// for one host.
type PolicyResolver struct {
	binary string
}

// NewPolicyResolver creates a resolver that queries the system ssh binary.
func NewPolicyResolver() *PolicyResolver {
	return &PolicyResolver{binary: "ssh"}
}

// SetBinary overrides the ssh binary path.
func (r *PolicyResolver) SetBinary(path string) {
	if path != "" {
		r.binary = path
	}
}

// Resolve reports whether a private control socket should be created.
// For SocketPolicyInfer it dumps the host's effective configuration with
// `ssh -G` and reuses the host's own multiplexing only when that declares
// it. A failed query resolves to true: an unneeded socket is cheap, and a
// broken configuration will resurface on the real connection anyway.
func (r *PolicyResolver) Resolve(ctx context.Context, policy SocketPolicy, host string) bool {
	switch policy {
	case SocketPolicyCreate:
		return true
	case SocketPolicyReuse:
		return false
	}

	dump, err := r.hostConfig(ctx, host)
	if err != nil {
		logging.Debug().Err(err).Str("host", host).Msg("ssh config query failed, creating private socket")
		return true
	}
	return !declaresOwnMultiplexing(dump)
}

// hostConfig returns the output of `ssh -G <host>`: the effective client
// configuration, one lowercase "key value" pair per line.
func (r *PolicyResolver) hostConfig(ctx context.Context, host string) (string, error) {
	cmd := exec.CommandContext(ctx, r.binary, "-G", host)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ssh -G %s: %w (%s)", host, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// declaresOwnMultiplexing reports whether an `ssh -G` dump shows the host
// managing its own control master. Both ControlMaster=auto and a
// ControlPersist setting are required; without persistence the auto master
// dies with the first connection and later commands would reconnect.
func declaresOwnMultiplexing(configDump string) bool {
	var master, persist bool
	for _, line := range strings.Split(configDump, "\n") {
		line = strings.TrimSpace(line)
		if line == "controlmaster auto" {
			master = true
		}
		if strings.HasPrefix(line, "controlpersist") {
			persist = true
		}
	}
	return master && persist
}
