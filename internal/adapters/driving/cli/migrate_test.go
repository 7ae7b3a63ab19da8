package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/accesskeeper/internal/adapters/driven/storage/sqlite"
)

const (
	testCurrentKey = "accounts-microsoft"
	testLegacyKey  = "accounts-microsoft-client-1-common"
)

func TestMigrateCmd_NothingStored(t *testing.T) {
	confDir, _ := writeTestConfig(t)

	out, err := execute(t, "migrate", "--config", confDir)

	require.NoError(t, err)
	assert.Contains(t, out, "nothing to migrate")
}

func TestMigrateCmd_CopiesLegacyForward(t *testing.T) {
	confDir, dataDir := writeTestConfig(t)
	ctx := context.Background()

	seed, err := sqlite.NewSecretStore(dataDir, time.Minute)
	require.NoError(t, err)
	require.NoError(t, seed.Store(ctx, testLegacyKey, `["alice"]`))
	require.NoError(t, seed.Close())

	out, err := execute(t, "migrate", "--config", confDir)

	require.NoError(t, err)
	assert.Contains(t, out, "Migrated 1 account(s)")

	check, err := sqlite.NewSecretStore(dataDir, time.Minute)
	require.NoError(t, err)
	defer check.Close()

	current, ok, err := check.Get(ctx, testCurrentKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `["alice"]`, current)

	// The legacy value stays for older installations.
	legacy, ok, err := check.Get(ctx, testLegacyKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `["alice"]`, legacy)
}

func TestMigrateCmd_CurrentAlreadyPopulated(t *testing.T) {
	confDir, dataDir := writeTestConfig(t)
	ctx := context.Background()

	seed, err := sqlite.NewSecretStore(dataDir, time.Minute)
	require.NoError(t, err)
	require.NoError(t, seed.Store(ctx, testCurrentKey, `["alice","bob"]`))
	require.NoError(t, seed.Close())

	out, err := execute(t, "migrate", "--config", confDir)

	require.NoError(t, err)
	assert.Contains(t, out, "already holds 2 account(s)")
}
