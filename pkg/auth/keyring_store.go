package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "flico"
	keyringPrefix  = "flickr_"
	// keyringIndex lists the saved account names, since the keychain
	// cannot be enumerated.
	keyringIndex = "accounts"
	keyringProbe = "availability"
)

// keyringRecord is the value stored per account; the account name is the
// keychain entry's user field.
type keyringRecord struct {
	APIKey       string `json:"api_key"`
	APISecret    string `json:"api_secret,omitempty"`
	LastModified int64  `json:"last_modified"`
}

// KeyringStore keeps each Flickr key pair as an entry in the system keychain
type KeyringStore struct{}

// NewKeyringStore returns a keyring store, or an error when the keychain
// does not accept writes.
func NewKeyringStore() (*KeyringStore, error) {
	if err := keyring.Set(keyringService, keyringProbe, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, keyringProbe)

	return &KeyringStore{}, nil
}

// Store saves the key pair and records the name in the index
func (k *KeyringStore) Store(account *Account) error {
	if err := ValidateAccount(account); err != nil {
		return err
	}

	record := keyringRecord{APIKey: account.APIKey, APISecret: account.APISecret}
	if !account.LastModified.IsZero() {
		record.LastModified = account.LastModified.UnixNano()
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	if err := keyring.Set(keyringService, keyringPrefix+account.Name, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	names, err := k.names()
	if err != nil {
		return err
	}
	if _, ok := names[account.Name]; ok {
		return nil
	}
	names[account.Name] = struct{}{}
	return k.saveNames(names)
}

// Retrieve returns the key pair saved under name
func (k *KeyringStore) Retrieve(name string) (*Account, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(keyringService, keyringPrefix+name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var record keyringRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return record.account(name), nil
}

// List returns the indexed accounts ordered by name. Index entries whose
// key pair has gone missing are skipped.
func (k *KeyringStore) List() ([]*Account, error) {
	names, err := k.names()
	if err != nil {
		return nil, err
	}

	accounts := make([]*Account, 0, len(names))
	for name := range names {
		account, err := k.Retrieve(name)
		if errors.Is(err, ErrCredentialsNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })
	return accounts, nil
}

// Delete removes the key pair and its index entry
func (k *KeyringStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}

	err := keyring.Delete(keyringService, keyringPrefix+name)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrCredentialsNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	names, err := k.names()
	if err != nil {
		return err
	}
	delete(names, name)
	return k.saveNames(names)
}

// Exists reports whether a key pair is saved under name
func (k *KeyringStore) Exists(name string) bool {
	if name == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+name)
	return err == nil
}

func (k *KeyringStore) names() (map[string]struct{}, error) {
	names := make(map[string]struct{})

	data, err := keyring.Get(keyringService, keyringIndex)
	if errors.Is(err, keyring.ErrNotFound) {
		return names, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}

	var list []string
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, fmt.Errorf("failed to parse keyring index: %w", err)
	}
	for _, name := range list {
		names[name] = struct{}{}
	}
	return names, nil
}

func (k *KeyringStore) saveNames(names map[string]struct{}) error {
	if len(names) == 0 {
		err := keyring.Delete(keyringService, keyringIndex)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to clear keyring index: %w", err)
		}
		return nil
	}

	list := make([]string, 0, len(names))
	for name := range names {
		list = append(list, name)
	}
	sort.Strings(list)

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to marshal keyring index: %w", err)
	}
	if err := keyring.Set(keyringService, keyringIndex, string(data)); err != nil {
		return fmt.Errorf("failed to write keyring index: %w", err)
	}
	return nil
}

func (r keyringRecord) account(name string) *Account {
	account := &Account{Name: name, APIKey: r.APIKey, APISecret: r.APISecret}
	if r.LastModified != 0 {
		account.LastModified = time.Unix(0, r.LastModified)
	}
	return account
}
