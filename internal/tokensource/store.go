package tokensource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

// ErrNotFound reports that no API key is present in the backing store.
var ErrNotFound = errors.New("tokensource: no API key stored")

// Store persists a single API key. Writing an empty key clears the store.
type Store interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, key string) error
}

// KeyringStore keeps the key in the OS credential manager.
type KeyringStore struct {
	service string
	user    string
}

func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service, user: "api-key"}
}

func (s *KeyringStore) Read(ctx context.Context) (string, error) {
	key, err := keyring.Get(s.service, s.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read keyring: %w", err)
	}
	return key, nil
}

func (s *KeyringStore) Write(ctx context.Context, key string) error {
	if key == "" {
		if err := keyring.Delete(s.service, s.user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("clear keyring: %w", err)
		}
		return nil
	}
	if err := keyring.Set(s.service, s.user, key); err != nil {
		return fmt.Errorf("write keyring: %w", err)
	}
	return nil
}

// EnvStore reads the key from a process environment variable. It is
// read-only so `auth login` fails loudly instead of writing somewhere the
// environment would shadow.
type EnvStore struct {
	name string
}

func NewEnvStore(name string) *EnvStore {
	return &EnvStore{name: name}
}

func (s *EnvStore) Read(ctx context.Context) (string, error) {
	key := strings.TrimSpace(os.Getenv(s.name))
	if key == "" {
		return "", ErrNotFound
	}
	return key, nil
}

func (s *EnvStore) Write(ctx context.Context, key string) error {
	return fmt.Errorf("environment storage is read-only, set %s instead", s.name)
}

// FileStore keeps the key in a file readable only by the owner.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Read(ctx context.Context) (string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.path, err)
	}
	key := strings.TrimSpace(string(raw))
	if key == "" {
		return "", ErrNotFound
	}
	return key, nil
}

func (s *FileStore) Write(ctx context.Context, key string) error {
	if key == "" {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", s.path, err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credential directory: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(key+"\n"), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}
