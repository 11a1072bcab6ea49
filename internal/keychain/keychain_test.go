package keychain

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadDelete(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring(nil))

	_, err := s.LoadAPIKey()
	require.ErrorIs(t, err, ErrNoAPIKey)

	require.NoError(t, s.SaveAPIKey("  sk-abc123  "))
	key, err := s.LoadAPIKey()
	require.NoError(t, err)
	assert.Equal(t, "sk-abc123", key)

	require.NoError(t, s.SaveAPIKey("sk-replaced"))
	key, err = s.LoadAPIKey()
	require.NoError(t, err)
	assert.Equal(t, "sk-replaced", key)

	require.NoError(t, s.DeleteAPIKey())
	_, err = s.LoadAPIKey()
	require.ErrorIs(t, err, ErrNoAPIKey)

	// second delete is a no-op
	require.NoError(t, s.DeleteAPIKey())
}

func TestSaveRejectsEmpty(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring(nil))
	require.Error(t, s.SaveAPIKey("   "))
}

func TestLoadEmptyItem(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring([]keyring.Item{{Key: KeyAPIKey}}))
	_, err := s.LoadAPIKey()
	require.ErrorIs(t, err, ErrNoAPIKey)
}

type brokenRing struct {
	keyring.ArrayKeyring
}

var errLocked = errors.New("keychain locked")

func (brokenRing) Get(string) (keyring.Item, error) { return keyring.Item{}, errLocked }
func (brokenRing) Remove(string) error { return errLocked }

func TestBackendErrorsPassThrough(t *testing.T) {
	s := NewStore(&brokenRing{})

	_, err := s.LoadAPIKey()
	require.ErrorIs(t, err, errLocked)
	require.ErrorIs(t, s.DeleteAPIKey(), errLocked)
}
