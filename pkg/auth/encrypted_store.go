package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	vaultFormat  = "flico-credentials"
	vaultVersion = 1

	saltSize      = 32
	keySize       = 32
	kdfIterations = 100000

	passphraseEnv      = "FLICO_PASSPHRASE"
	passphraseFileName = ".passphrase"
)

// ErrUnsupportedVault is returned for a credentials file written in a
// format or version this build cannot read.
var ErrUnsupportedVault = errors.New("unsupported credentials file")

// vaultFile is the on-disk layout. Everything but Payload is readable
// without the passphrase; the header fields are bound to the ciphertext as
// additional data, so editing them breaks decryption.
type vaultFile struct {
	Format     string    `json:"format"`
	Version    int       `json:"version"`
	Salt       string    `json:"salt"`
	Iterations int       `json:"iterations"`
	Payload    string    `json:"payload"`
	Modified   time.Time `json:"modified"`
}

// vaultPayload is the decrypted content of a vaultFile
type vaultPayload struct {
	Accounts map[string]vaultEntry `json:"accounts"`
}

// vaultEntry is one Flickr key pair, keyed by account name in vaultPayload
type vaultEntry struct {
	APIKey       string    `json:"api_key"`
	APISecret    string    `json:"api_secret,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

func (v vaultEntry) account(name string) *Account {
	return &Account{
		Name:         name,
		APIKey:       v.APIKey,
		APISecret:    v.APISecret,
		LastModified: v.LastModified,
	}
}

// vault is a decrypted credentials file held in memory between load and save
type vault struct {
	salt       []byte
	iterations int
	entries    map[string]vaultEntry
}

// EncryptedFileStore keeps Flickr key pairs in a single AES-GCM encrypted
// file. The encryption key is derived with PBKDF2 from FLICO_PASSPHRASE, or
// from a random passphrase saved beside the file on first use.
type EncryptedFileStore struct {
	path       string
	passphrase string
	mu         sync.Mutex
}

// NewEncryptedFileStore opens the store at path. The file itself is only
// created by the first Store.
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	passphrase, err := loadPassphrase(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}

	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

// Store adds or replaces the key pair saved under account.Name
func (e *EncryptedFileStore) Store(account *Account) error {
	if err := ValidateAccount(account); err != nil {
		return err
	}

	return e.update(func(v *vault) error {
		v.entries[account.Name] = vaultEntry{
			APIKey:       account.APIKey,
			APISecret:    account.APISecret,
			LastModified: account.LastModified,
		}
		return nil
	})
}

// Retrieve returns the key pair saved under name
func (e *EncryptedFileStore) Retrieve(name string) (*Account, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.load()
	if err != nil {
		return nil, err
	}
	entry, ok := v.entries[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return entry.account(name), nil
}

// List returns every saved account ordered by name
func (e *EncryptedFileStore) List() ([]*Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.load()
	if err != nil {
		return nil, err
	}

	accounts := make([]*Account, 0, len(v.entries))
	for name, entry := range v.entries {
		accounts = append(accounts, entry.account(name))
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })
	return accounts, nil
}

// Delete removes the account saved under name. Removing the last account
// removes the file.
func (e *EncryptedFileStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}

	return e.update(func(v *vault) error {
		if _, ok := v.entries[name]; !ok {
			return ErrCredentialsNotFound
		}
		delete(v.entries, name)
		return nil
	})
}

// Exists reports whether an account is saved under name
func (e *EncryptedFileStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}

// update loads the vault, applies fn and writes the result back. A vault
// that cannot be decrypted is never overwritten.
func (e *EncryptedFileStore) update(fn func(*vault) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.load()
	if err != nil {
		return err
	}
	if err := fn(v); err != nil {
		return err
	}

	if len(v.entries) == 0 {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove credentials file: %w", err)
		}
		return nil
	}
	return e.save(v)
}

func (e *EncryptedFileStore) load() (*vault, error) {
	content, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return &vault{iterations: kdfIterations, entries: make(map[string]vaultEntry)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var file vaultFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if file.Format != vaultFormat || file.Version != vaultVersion {
		return nil, fmt.Errorf("%w: format %q version %d", ErrUnsupportedVault, file.Format, file.Version)
	}
	if file.Iterations <= 0 {
		return nil, fmt.Errorf("%w: iterations %d", ErrUnsupportedVault, file.Iterations)
	}

	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(file.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	plaintext, err := open(deriveKey(e.passphrase, salt, file.Iterations), sealed, vaultHeader(file.Iterations))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	var payload vaultPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	if payload.Accounts == nil {
		payload.Accounts = make(map[string]vaultEntry)
	}

	return &vault{salt: salt, iterations: file.Iterations, entries: payload.Accounts}, nil
}

func (e *EncryptedFileStore) save(v *vault) error {
	if v.salt == nil {
		v.salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, v.salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plaintext, err := json.Marshal(vaultPayload{Accounts: v.entries})
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	sealed, err := seal(deriveKey(e.passphrase, v.salt, v.iterations), plaintext, vaultHeader(v.iterations))
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	content, err := json.MarshalIndent(vaultFile{
		Format:     vaultFormat,
		Version:    vaultVersion,
		Salt:       base64.StdEncoding.EncodeToString(v.salt),
		Iterations: v.iterations,
		Payload:    base64.StdEncoding.EncodeToString(sealed),
		Modified:   time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials file: %w", err)
	}

	tempFile := e.path + ".tmp"
	if err := os.WriteFile(tempFile, content, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := os.Rename(tempFile, e.path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}

// loadPassphrase returns FLICO_PASSPHRASE when set. Otherwise it reads the
// passphrase file in dir, creating it with a random value the first time.
func loadPassphrase(dir string) (string, error) {
	if pass := os.Getenv(passphraseEnv); pass != "" {
		return pass, nil
	}

	path := filepath.Join(dir, passphraseFileName)
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(b)

	if err := os.WriteFile(path, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

func deriveKey(passphrase string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
}

func vaultHeader(iterations int) []byte {
	return []byte(vaultFormat + "/" + strconv.Itoa(vaultVersion) + "/" + strconv.Itoa(iterations))
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// seal encrypts plaintext and prepends the random nonce
func seal(key, plaintext, additional []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, additional), nil
}

func open(key, sealed, additional []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, additional)
}
