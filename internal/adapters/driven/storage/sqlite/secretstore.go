package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/accesskeeper/internal/core/ports/driven"
	"github.com/custodia-labs/accesskeeper/internal/emitter"
	"github.com/custodia-labs/accesskeeper/internal/logger"
)

// Ensure SecretStore implements the interface.
var _ driven.SecretStore = (*SecretStore)(nil)

// defaultPollInterval is how often the store diffs the table against its
// snapshot when the caller does not choose an interval.
const defaultPollInterval = 2 * time.Second

// SecretStore persists key/value pairs in a SQLite table. The database is
// opened in WAL mode so multiple processes can share it; a polling goroutine
// detects their writes and emits change events for every key whose value
// differs from the last known snapshot.
type SecretStore struct {
	db   *sql.DB
	path string

	mu       sync.Mutex
	snapshot map[string]string

	changes   *emitter.Emitter[driven.ChangeEvent]
	done      chan struct{}
	closeOnce sync.Once
}

// NewSecretStore creates a SQLite secret store in the specified data
// directory. If dataDir is empty, defaults to ~/.accesskeeper/data.
// A pollInterval of zero or less selects the default. Callers must Close
// the store to stop the poller.
func NewSecretStore(dataDir string, pollInterval time.Duration) (*SecretStore, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".accesskeeper", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "secrets.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS secrets (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating secrets table: %w", err)
	}

	s := &SecretStore{
		db:      db,
		path:    dbPath,
		changes: emitter.New[driven.ChangeEvent](),
		done:    make(chan struct{}),
	}

	snapshot, err := s.readAll(context.Background())
	if err != nil {
		db.Close()
		return nil, err
	}
	s.snapshot = snapshot

	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	go s.poll(pollInterval)

	return s, nil
}

// Get reads the value under key.
func (s *SecretStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM secrets WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading secret: %w", err)
	}
	return value, true, nil
}

// Store writes value under key.
func (s *SecretStore) Store(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO secrets (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("saving secret: %w", err)
	}

	s.snapshot[key] = value
	go s.changes.Emit(driven.ChangeEvent{Key: key})
	return nil
}

// Delete removes key. Deleting an absent key is not an error and emits
// nothing.
func (s *SecretStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, "DELETE FROM secrets WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("deleting secret: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting secret: %w", err)
	}
	if affected == 0 {
		return nil
	}

	delete(s.snapshot, key)
	go s.changes.Emit(driven.ChangeEvent{Key: key})
	return nil
}

// Subscribe registers a callback for change events.
func (s *SecretStore) Subscribe(fn func(driven.ChangeEvent)) (cancel func()) {
	return s.changes.Subscribe(fn)
}

// Close stops the poller and closes the database connection. Idempotent.
func (s *SecretStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.changes.Close()
		err = s.db.Close()
	})
	return err
}

// Path returns the database file path.
func (s *SecretStore) Path() string {
	return s.path
}

// poll periodically diffs the table against the snapshot and emits one event
// per key another process changed. Local writes update the snapshot inline,
// so they never show up as poller diffs.
func (s *SecretStore) poll(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.sync(); err != nil {
				logger.Warn("secret store poll: %v", err)
			}
		}
	}
}

// sync reloads the table and emits events for keys that diverged from the
// snapshot.
func (s *SecretStore) sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.readAll(context.Background())
	if err != nil {
		return err
	}

	changed := make([]string, 0)
	for key, value := range loaded {
		if previous, ok := s.snapshot[key]; !ok || previous != value {
			changed = append(changed, key)
		}
	}
	for key := range s.snapshot {
		if _, ok := loaded[key]; !ok {
			changed = append(changed, key)
		}
	}
	s.snapshot = loaded

	for _, key := range changed {
		go s.changes.Emit(driven.ChangeEvent{Key: key})
	}
	return nil
}

// readAll loads the full table into a map.
func (s *SecretStore) readAll(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM secrets")
	if err != nil {
		return nil, fmt.Errorf("querying secrets: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning secret: %w", err)
		}
		values[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating secrets: %w", err)
	}

	return values, nil
}
