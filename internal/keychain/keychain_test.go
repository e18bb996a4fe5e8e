package keychain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	keyring "github.com/zalando/go-keyring"
)

func TestSystemStoreRoundTrip(t *testing.T) {
	keyring.MockInit()
	store := System()

	require.NoError(t, store.Set("AspectWorkflows", "x.example.com", "secret123"))
	secret, err := store.Get("AspectWorkflows", "x.example.com")
	require.NoError(t, err)
	assert.Equal(t, "secret123", secret)
}

func TestSystemStoreGetMissing(t *testing.T) {
	keyring.MockInit()
	store := System()

	_, err := store.Get("AspectWorkflows", "absent.example.com")
	var kcErr *Error
	require.ErrorAs(t, err, &kcErr)
	assert.Equal(t, "get", kcErr.Op)
	assert.Equal(t, "AspectWorkflows", kcErr.Service)
	assert.Equal(t, "absent.example.com", kcErr.Account)
	assert.True(t, errors.Is(err, keyring.ErrNotFound))
}
