package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	verrors "github.com/odvcencio/vulnpilot/pkg/errors"
)

// FileStore keeps every slot in one private JSON document. The file is
// re-read on every access so concurrent CLI invocations see each other's
// writes.
type FileStore struct {
	slots
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created lazily.
func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, verrors.New(verrors.ErrCodeConfigInvalid, "token store path cannot be empty")
	}
	store := &FileStore{path: path}
	store.slots = slots{b: store}
	return store, nil
}

// Path returns the backing file.
func (f *FileStore) Path() string {
	return f.path
}

// loadLocked reads the document. A missing file is an empty session; an
// unreadable or damaged one is an error so callers never overwrite it
// unknowingly.
func (f *FileStore) loadLocked() (map[string]string, error) {
	entries := make(map[string]string)
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return entries, nil
		}
		return nil, verrors.Wrap(err, verrors.ErrCodeStorageRead, "read token store").WithContext("path", f.path)
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, verrors.Wrap(err, verrors.ErrCodeStorageCorrupt, "token store is not valid JSON").
			WithContext("path", f.path).
			WithRemediation("run 'vulnpilot logout' to reset the session file")
	}
	return entries, nil
}

func (f *FileStore) persistLocked(entries map[string]string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return verrors.Wrap(err, verrors.ErrCodeStorageWrite, "create token store directory")
	}
	if len(entries) == 0 {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return verrors.Wrap(err, verrors.ErrCodeStorageWrite, "remove token store")
		}
		return nil
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return verrors.Wrap(err, verrors.ErrCodeStorageWrite, "encode token store")
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return verrors.Wrap(err, verrors.ErrCodeStorageWrite, "create temp token store")
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		cleanup()
		return verrors.Wrap(err, verrors.ErrCodeStorageWrite, "chmod temp token store")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return verrors.Wrap(err, verrors.ErrCodeStorageWrite, "write temp token store")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return verrors.Wrap(err, verrors.ErrCodeStorageWrite, "close temp token store")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		cleanup()
		return verrors.Wrap(err, verrors.ErrCodeStorageWrite, fmt.Sprintf("replace %s", f.path))
	}
	return nil
}

func (f *FileStore) get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.loadLocked()
	if err != nil {
		return "", false, err
	}
	v, ok := entries[key]
	return v, ok, nil
}

func (f *FileStore) put(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.loadLocked()
	if err != nil {
		return err
	}
	entries[key] = value
	return f.persistLocked(entries)
}

// remove drops keys. A damaged document is discarded as a whole, since
// every slot is invalidated together anyway.
func (f *FileStore) remove(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, err := f.loadLocked()
	if verrors.IsCode(err, verrors.ErrCodeStorageCorrupt) {
		return f.persistLocked(nil)
	}
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := entries[k]; ok {
			delete(entries, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.persistLocked(entries)
}

func (f *FileStore) close() error { return nil }
