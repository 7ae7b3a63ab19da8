package file

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/accesskeeper/internal/core/ports/driven"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, KeySize)
}

func newTestStore(t *testing.T) *SecretStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.bin")
	store, err := NewSecretStore(path, testKey())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSecretStore_RejectsBadKeyLength(t *testing.T) {
	_, err := NewSecretStore(filepath.Join(t.TempDir(), "secrets.bin"), []byte("short"))

	require.Error(t, err)
}

func TestSecretStore_GetMissingKey(t *testing.T) {
	store := newTestStore(t)

	_, ok, err := store.Get(context.Background(), "absent")

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSecretStore_StoreAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, "accounts-microsoft", `["a"]`))

	value, ok, err := store.Get(ctx, "accounts-microsoft")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `["a"]`, value)
}

func TestSecretStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.bin")
	ctx := context.Background()

	first, err := NewSecretStore(path, testKey())
	require.NoError(t, err)
	require.NoError(t, first.Store(ctx, "k", "v"))
	require.NoError(t, first.Close())

	second, err := NewSecretStore(path, testKey())
	require.NoError(t, err)
	defer second.Close()

	value, ok, err := second.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", value)
}

func TestSecretStore_WrongKeyFailsToOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.bin")
	ctx := context.Background()

	first, err := NewSecretStore(path, testKey())
	require.NoError(t, err)
	require.NoError(t, first.Store(ctx, "k", "v"))
	require.NoError(t, first.Close())

	_, err = NewSecretStore(path, bytes.Repeat([]byte{0x43}, KeySize))

	require.Error(t, err)
}

func TestSecretStore_FilePermissions(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Store(context.Background(), "k", "v"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSecretStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Store(ctx, "k", "v"))

	require.NoError(t, store.Delete(ctx, "k"))

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSecretStore_DeleteAbsentKeyIsNoOp(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Delete(context.Background(), "absent"))
}

func TestSecretStore_EmitsOnLocalChanges(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var mu sync.Mutex
	var events []driven.ChangeEvent
	cancel := store.Subscribe(func(e driven.ChangeEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	defer cancel()

	require.NoError(t, store.Store(ctx, "k", "v"))
	require.NoError(t, store.Delete(ctx, "k"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestSecretStore_DetectsOutOfBandRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.bin")
	ctx := context.Background()

	watcher, err := NewSecretStore(path, testKey())
	require.NoError(t, err)
	defer watcher.Close()

	writer, err := NewSecretStore(path, testKey())
	require.NoError(t, err)
	defer writer.Close()

	var mu sync.Mutex
	var keys []string
	cancel := watcher.Subscribe(func(e driven.ChangeEvent) {
		mu.Lock()
		keys = append(keys, e.Key)
		mu.Unlock()
	})
	defer cancel()

	require.NoError(t, writer.Store(ctx, "accounts-microsoft", `["a"]`))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, k := range keys {
			if k == "accounts-microsoft" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	value, ok, err := watcher.Get(ctx, "accounts-microsoft")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `["a"]`, value)
}

func TestSecretStore_Close_StopsEventsAndIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.bin")
	store, err := NewSecretStore(path, testKey())
	require.NoError(t, err)

	var fired atomic.Int32
	store.Subscribe(func(driven.ChangeEvent) { fired.Add(1) })

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, fired.Load())
}
