package file

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/custodia-labs/accesskeeper/internal/core/ports/driven"
	"github.com/custodia-labs/accesskeeper/internal/emitter"
	"github.com/custodia-labs/accesskeeper/internal/logger"
)

// Ensure SecretStore implements the interface.
var _ driven.SecretStore = (*SecretStore)(nil)

// KeySize is the required encryption key length in bytes.
const KeySize = chacha20poly1305.KeySize

// SecretStore stores all key/value pairs as a single encrypted JSON object.
// The file is sealed with ChaCha20-Poly1305 (random nonce prepended) and
// written with 0600 permissions via an atomic rename, so concurrent readers
// never observe a torn file.
//
// A directory watcher detects rewrites by other processes and emits change
// events for every key whose value differs from the last known snapshot.
type SecretStore struct {
	path string
	aead cipherAEAD

	mu     sync.Mutex
	values map[string]string

	changes   *emitter.Emitter[driven.ChangeEvent]
	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// cipherAEAD is the sealed-box subset of cipher.AEAD the store uses.
type cipherAEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
}

// NewSecretStore opens (or creates) the encrypted store at path. The key must
// be KeySize bytes. The parent directory is created with 0700 permissions.
// Callers must Close the store to stop the file watcher.
func NewSecretStore(path string, key []byte) (*SecretStore, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("initialising cipher: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating secrets directory: %w", err)
	}

	s := &SecretStore{
		path:    path,
		aead:    aead,
		values:  make(map[string]string),
		changes: emitter.New[driven.ChangeEvent](),
		done:    make(chan struct{}),
	}

	loaded, err := s.readFile()
	if err != nil {
		return nil, err
	}
	s.values = loaded

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	// Watch the directory, not the file: atomic renames replace the inode.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching secrets directory: %w", err)
	}
	s.watcher = watcher
	go s.watch()

	return s, nil
}

// Get reads the value under key.
func (s *SecretStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok, nil
}

// Store writes value under key and persists the sealed file.
func (s *SecretStore) Store(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	err := s.writeFileLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	go s.changes.Emit(driven.ChangeEvent{Key: key})
	return nil
}

// Delete removes key and persists the sealed file. Deleting an absent key is
// not an error and emits nothing.
func (s *SecretStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	_, existed := s.values[key]
	if !existed {
		s.mu.Unlock()
		return nil
	}
	delete(s.values, key)
	err := s.writeFileLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	go s.changes.Emit(driven.ChangeEvent{Key: key})
	return nil
}

// Subscribe registers a callback for change events.
func (s *SecretStore) Subscribe(fn func(driven.ChangeEvent)) (cancel func()) {
	return s.changes.Subscribe(fn)
}

// Close stops the watcher and releases the emitter. Idempotent.
func (s *SecretStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.watcher.Close()
		s.changes.Close()
	})
	return err
}

// Path returns the location of the sealed file.
func (s *SecretStore) Path() string {
	return s.path
}

// watch reloads the store whenever another process rewrites the file and
// emits change events for keys whose values differ from the snapshot.
func (s *SecretStore) watch() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			s.reload()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("secret store watcher: %v", err)
		}
	}
}

// reload re-reads the sealed file and emits one event per changed key.
// Read failures are logged and skipped: our own atomic writes never produce
// torn files, and a foreign writer's next event retries the reload.
func (s *SecretStore) reload() {
	loaded, err := s.readFile()
	if err != nil {
		logger.Warn("secret store reload: %v", err)
		return
	}

	s.mu.Lock()
	changed := make([]string, 0)
	for key, value := range loaded {
		if previous, ok := s.values[key]; !ok || previous != value {
			changed = append(changed, key)
		}
	}
	for key := range s.values {
		if _, ok := loaded[key]; !ok {
			changed = append(changed, key)
		}
	}
	s.values = loaded
	s.mu.Unlock()

	for _, key := range changed {
		s.changes.Emit(driven.ChangeEvent{Key: key})
	}
}

// readFile loads and decrypts the sealed file. A missing file is an empty
// store.
func (s *SecretStore) readFile() (map[string]string, error) {
	sealed, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}

	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("secrets file %s is truncated", s.path)
	}
	plaintext, err := s.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting secrets file: %w", err)
	}

	values := make(map[string]string)
	if err := json.Unmarshal(plaintext, &values); err != nil {
		return nil, fmt.Errorf("decoding secrets file: %w", err)
	}
	return values, nil
}

// writeFileLocked seals the current values and atomically replaces the file.
// Caller must hold s.mu.
func (s *SecretStore) writeFileLocked() error {
	plaintext, err := json.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encoding secrets: %w", err)
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, plaintext, nil)

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0600); err != nil {
		return fmt.Errorf("writing secrets file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing secrets file: %w", err)
	}
	return nil
}
