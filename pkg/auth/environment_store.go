package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads a single account from FLICO_API_KEY or
// FLICKR_API_KEY (and the matching secret). It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func envKeyPair() (string, string) {
	key := firstEnv("FLICO_API_KEY", "FLICKR_API_KEY")
	secret := firstEnv("FLICO_API_SECRET", "FLICKR_API_SECRET")
	return key, secret
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// EnvironmentAccountName names the account read from the environment
const EnvironmentAccountName = "environment"

// Retrieve returns the environment account for an empty name or
// EnvironmentAccountName.
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	if name != "" && name != EnvironmentAccountName {
		return nil, ErrCredentialsNotFound
	}

	key, secret := envKeyPair()
	if key == "" {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Name:         EnvironmentAccountName,
		APIKey:       key,
		APISecret:    secret,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}
