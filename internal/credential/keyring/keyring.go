// Package keyring stores the encryption key that protects the forge
// credential store.
//
// Keys are kept in the system keychain when one is available (macOS
// Keychain, Windows Credential Manager, libsecret/kwallet/pass on Linux).
// On headless machines the package falls back to a 0600 file at
// ~/.forge/encryption.key.
//
// Key creation is serialized through a file lock at ~/.forge/key.lock so
// two forge processes racing on first run cannot end up with different
// keys. The file backend refuses to read a key file whose permissions
// have been loosened past 0600.
package keyring

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// ServiceName is the default keyring service identifier.
	// Override with FORGE_KEYRING_SERVICE for test isolation.
	ServiceName = "forge"
	// AccountName is the keyring account identifier.
	AccountName = "encryption-key"
	// KeySize is the required encryption key size in bytes.
	KeySize = 32
)

// ErrInsecurePermissions is returned when the key file has overly
// permissive permissions.
var ErrInsecurePermissions = errors.New("key file has insecure permissions")

// ErrNoHomeDirectory is returned when the home directory cannot be determined.
var ErrNoHomeDirectory = errors.New("could not determine home directory for secure key storage")

func serviceName() string {
	if name := os.Getenv("FORGE_KEYRING_SERVICE"); name != "" {
		return name
	}
	return ServiceName
}

func encodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

func decodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid key encoding: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid key length: expected %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// Backend defines the interface for key storage.
type Backend interface {
	Get() ([]byte, error)
	Set(key []byte) error
	Delete() error
	Name() string
}

type keychainBackend struct{}

func (k *keychainBackend) Get() ([]byte, error) {
	encoded, err := keyring.Get(serviceName(), AccountName)
	if err != nil {
		return nil, fmt.Errorf("keychain get: %w", err)
	}
	return decodeKey(encoded)
}

func (k *keychainBackend) Set(key []byte) error {
	// Another process may have created a key since our Get. Never
	// overwrite an existing key.
	service := serviceName()
	if _, err := keyring.Get(service, AccountName); err == nil {
		return nil
	}
	if err := keyring.Set(service, AccountName, encodeKey(key)); err != nil {
		return fmt.Errorf("keychain set: %w", err)
	}
	return nil
}

func (k *keychainBackend) Delete() error {
	if err := keyring.Delete(serviceName(), AccountName); err != nil {
		return fmt.Errorf("keychain delete: %w", err)
	}
	return nil
}

func (k *keychainBackend) Name() string {
	return "system keychain"
}

type fileBackend struct {
	path string
}

func (f *fileBackend) Get() ([]byte, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return nil, fmt.Errorf("%w: %s has permissions %04o (expected 0600).\n"+
			"  The key may have been exposed. To fix:\n"+
			"  1. chmod 600 %s\n"+
			"  2. Consider re-authenticating: forge auth",
			ErrInsecurePermissions, f.path, perm, f.path)
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	// Tolerate trailing newlines from manual editing.
	return decodeKey(strings.TrimSpace(string(data)))
}

func (f *fileBackend) Set(key []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}

	lockPath := f.path + ".lock"
	lf, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("creating lock file: %w", err)
	}
	defer lf.Close()
	defer os.Remove(lockPath)

	unlock, err := lockFile(lf)
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}
	defer unlock()

	// A key written while we waited for the lock wins; the caller
	// re-reads after Set.
	if _, err := os.Stat(f.path); err == nil {
		return nil
	}

	if err := os.WriteFile(f.path, []byte(encodeKey(key)), 0600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

func (f *fileBackend) Delete() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting key file: %w", err)
	}
	return nil
}

func (f *fileBackend) Name() string {
	return "file (" + f.path + ")"
}

// DefaultKeyFilePath returns the absolute path of the fallback key file.
// Fails rather than falling back to a temp directory, which may be
// world-readable or cleared on reboot.
func DefaultKeyFilePath() (string, error) {
	filename := "encryption.key"
	if name := os.Getenv("FORGE_KEYRING_SERVICE"); name != "" {
		filename = name + ".key"
	}

	home, err := os.UserHomeDir()
	if err != nil {
		if envHome := os.Getenv("HOME"); envHome != "" {
			return filepath.Join(envHome, ".forge", filename), nil
		}
		return "", fmt.Errorf("%w: set $HOME environment variable or ensure user home is configured", ErrNoHomeDirectory)
	}
	return filepath.Join(home, ".forge", filename), nil
}

func generateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating random key: %w", err)
	}
	return key, nil
}

func globalLockPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		if envHome := os.Getenv("HOME"); envHome != "" {
			home = envHome
		} else {
			home = os.TempDir()
		}
	}
	return filepath.Join(home, ".forge", "key.lock")
}

// withGlobalKeyLock executes fn while holding the global key lock,
// serializing key creation across keychain and file backends.
func withGlobalKeyLock(fn func() ([]byte, error)) ([]byte, error) {
	lockPath := globalLockPath()

	if err := os.MkdirAll(filepath.Dir(lockPath), 0700); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	lf, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating global key lock file: %w", err)
	}
	defer lf.Close()

	unlock, err := lockFile(lf)
	if err != nil {
		return nil, fmt.Errorf("acquiring global key lock: %w", err)
	}
	defer unlock()

	return fn()
}

func getOrCreateKeyWithBackends(primary, fallback Backend) ([]byte, error) {
	if key, err := primary.Get(); err == nil {
		return key, nil
	}
	if key, err := fallback.Get(); err == nil {
		return key, nil
	}

	key, err := generateKey()
	if err != nil {
		return nil, err
	}

	primaryErr := primary.Set(key)
	if primaryErr == nil {
		// Re-read so we return the key that actually won the race.
		storedKey, getErr := primary.Get()
		if getErr != nil {
			return nil, fmt.Errorf("failed to verify stored encryption key in %s: %w", primary.Name(), getErr)
		}
		return storedKey, nil
	}

	slog.Info("system keychain unavailable, using file-based key storage",
		"fallback", fallback.Name())
	if fallbackErr := fallback.Set(key); fallbackErr != nil {
		return nil, fmt.Errorf("storing encryption key failed.\n"+
			"  Keychain (%s): %v\n"+
			"  File (%s): %v\n"+
			"Remediation: Ensure ~/.forge is writable and check system keychain access settings",
			primary.Name(), primaryErr, fallback.Name(), fallbackErr)
	}

	storedKey, err := fallback.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to verify stored encryption key: %w", err)
	}
	return storedKey, nil
}

// GetOrCreateKey retrieves the encryption key from keychain or file,
// generating a new one if needed.
func GetOrCreateKey() ([]byte, error) {
	return withGlobalKeyLock(func() ([]byte, error) {
		keyFilePath, err := DefaultKeyFilePath()
		if err != nil {
			return nil, err
		}
		return getOrCreateKeyWithBackends(&keychainBackend{}, &fileBackend{path: keyFilePath})
	})
}

// DeleteKey removes the encryption key from all storage backends.
// Used by tests and reset tooling; one backend succeeding is enough.
func DeleteKey() error {
	keyFilePath, err := DefaultKeyFilePath()
	if err != nil {
		slog.Debug("could not determine key file path for deletion", "error", err)
		keyFilePath = ""
	}
	primaryErr := (&keychainBackend{}).Delete()
	fallbackErr := (&fileBackend{path: keyFilePath}).Delete()

	if primaryErr != nil && fallbackErr != nil {
		return fmt.Errorf("deleting key from all backends: %w",
			errors.Join(
				fmt.Errorf("keychain: %w", primaryErr),
				fmt.Errorf("file: %w", fallbackErr),
			))
	}
	return nil
}
