package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// rename is replaced in tests to interrupt Save before the swap.
var rename = os.Rename

// ErrNotAuthorized is returned by Load when no value was ever saved for the
// key, i.e. the interactive authorization flow has not been run.
var ErrNotAuthorized = errors.New("not authorized, run 'deckshot auth'")

// Store reads and writes credential files in one directory.
// Store is safe for concurrent use.
type Store struct {
	mu  sync.Mutex
	dir string
}

// New returns a Store rooted at dir. The directory is created lazily on
// the first Save.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory holding the credential files.
func (s *Store) Dir() string { return s.dir }

// Save atomically replaces the value stored under key.
func (s *Store) Save(key, value string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("credentials: create dir: %w", err)
	}

	tmp := filepath.Join(s.dir, "."+key+"."+uuid.NewString()+".tmp")
	if err := writeSynced(tmp, []byte(value)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("credentials: write %s: %w", key, err)
	}
	if err := rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("credentials: replace %s: %w", key, err)
	}
	return syncDir(s.dir)
}

// Load returns the trimmed value stored under key. A missing file yields an
// error wrapping ErrNotAuthorized.
func (s *Store) Load(key string) (string, error) {
	path, err := s.path(key)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("credentials: load %s: %w", key, ErrNotAuthorized)
	}
	if err != nil {
		return "", fmt.Errorf("credentials: load %s: %w", key, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Store) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("credentials: invalid key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// syncDir flushes the rename to disk. Not every platform supports fsync on
// a directory, so failures there are ignored.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return nil
	}
	defer d.Close()
	_ = d.Sync()
	return nil
}
