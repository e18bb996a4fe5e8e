// Package buildvars contains variables injected at build time.
package buildvars

// Remote is the default remote cache DNS name, set at link time via
// `-ldflags -X credsync/internal/buildvars.Remote=...`. Empty for local
// development builds.
var Remote string

// CredentialHelper is the default credential helper executable name, set at
// link time like Remote.
var CredentialHelper string

// RemoteOrDefault returns Remote if set, otherwise the provided default.
func RemoteOrDefault(def string) string {
	if len(Remote) > 0 {
		return Remote
	}
	return def
}

// CredentialHelperOrDefault returns CredentialHelper if set, otherwise the
// provided default.
func CredentialHelperOrDefault(def string) string {
	if len(CredentialHelper) > 0 {
		return CredentialHelper
	}
	return def
}
