// Package keychain keeps the OpenAI API key in the OS credential store so it
// does not have to live in a shell profile or a .env file.
package keychain

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

// ServiceName identifies our namespace in the credential store.
const ServiceName = "sqlagent"

// KeyAPIKey is the item holding the OpenAI API key.
const KeyAPIKey = "openai_api_key"

// ErrNoAPIKey is returned when no key has been stored.
var ErrNoAPIKey = errors.New("no API key stored in the keychain")

// Store is a thread-safe wrapper around a keyring.
type Store struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// Open opens the native credential store of the platform. The encrypted
// file backend is never used.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: ServiceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.WinCredBackend,
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.PassBackend,
		},
		KeychainTrustApplication: true,
		WinCredPrefix:            ServiceName,
		PassPrefix:               ServiceName,
	})
	if err != nil {
		if errors.Is(err, keyring.ErrNoAvailImpl) {
			return nil, fmt.Errorf("no secure credential store available on this system: %w", err)
		}
		return nil, err
	}
	return NewStore(ring), nil
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

func (s *Store) SaveAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("API key is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ring.Set(keyring.Item{
		Key:   KeyAPIKey,
		Data:  []byte(key),
		Label: "sqlagent OpenAI API key",
	})
}

func (s *Store) LoadAPIKey() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, err := s.ring.Get(KeyAPIKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNoAPIKey
		}
		return "", err
	}
	if len(it.Data) == 0 {
		return "", ErrNoAPIKey
	}
	return string(it.Data), nil
}

// DeleteAPIKey removes the stored key. Deleting a missing key is not an error.
func (s *Store) DeleteAPIKey() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ring.Remove(KeyAPIKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}
