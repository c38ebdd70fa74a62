// Package keystore persists derived record keys under the user config
// directory. One key per patient account, written at registration, read
// whenever a record is sealed or opened, never transmitted anywhere.
package keystore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrNoKey indicates no record key is stored for the account.
var ErrNoKey = errors.New("no record key stored")

// Store reads and writes per-account key files.
type Store struct {
	dir string
}

// New returns a Store rooted at dir; empty dir selects the default
// per-user config location.
func New(dir string) *Store {
	if dir == "" {
		dir = defaultDir()
	}
	return &Store{dir: dir}
}

func defaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "medchain")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "medchain")
}

// path hashes the account so addresses never appear as file names.
func (s *Store) path(account string) string {
	sum := sha256.Sum256([]byte(account))
	return filepath.Join(s.dir, "record-"+hex.EncodeToString(sum[:8])+".key")
}

// Save writes the key for account with owner-only permissions.
func (s *Store) Save(account string, key []byte) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path(account), key, 0o600)
}

// Load returns the stored key for account or ErrNoKey.
func (s *Store) Load(account string) ([]byte, error) {
	b, err := os.ReadFile(s.path(account))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoKey
	}
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, ErrNoKey
	}
	return b, nil
}
