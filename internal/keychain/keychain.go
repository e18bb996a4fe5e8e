// Package keychain adapts the local OS secret store, addressed by
// (service, account) pairs.
package keychain

import (
	"fmt"

	keyring "github.com/zalando/go-keyring"
)

// Error reports a failed keychain operation, naming which credential was
// involved. The secret itself never appears in the message.
type Error struct {
	Op      string
	Service string
	Account string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("keychain %s %s/%s: %v", e.Op, e.Service, e.Account, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Store is the read/write interface to a secret store.
type Store interface {
	// Get returns the secret stored under (service, account).
	Get(service, account string) (string, error)

	// Set stores the secret under (service, account).
	Set(service, account, secret string) error
}

type systemStore struct{}

// System returns the OS keychain.
func System() Store {
	return systemStore{}
}

func (systemStore) Get(service, account string) (string, error) {
	secret, err := keyring.Get(service, account)
	if err != nil {
		return "", &Error{Op: "get", Service: service, Account: account, Err: err}
	}
	return secret, nil
}

func (systemStore) Set(service, account, secret string) error {
	if err := keyring.Set(service, account, secret); err != nil {
		return &Error{Op: "set", Service: service, Account: account, Err: err}
	}
	return nil
}
