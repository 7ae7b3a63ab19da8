// Package cli implements the accesskeeper command-line interface.
package cli

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/accesskeeper/internal/adapters/driven/config/file"
	storagefile "github.com/custodia-labs/accesskeeper/internal/adapters/driven/storage/file"
	"github.com/custodia-labs/accesskeeper/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/accesskeeper/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/accesskeeper/internal/core/domain"
	"github.com/custodia-labs/accesskeeper/internal/core/ports/driven"
	"github.com/custodia-labs/accesskeeper/internal/core/services"
	"github.com/custodia-labs/accesskeeper/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	configDir string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "accesskeeper",
	Short: "Manage per-provider account allow-lists",
	Long: `Accesskeeper maintains the allow-list of account identifiers permitted
to use each identity provider. Allow-lists are stored in an encrypted
secret store under both the current and the legacy key layout.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "",
		"config directory (default ~/.accesskeeper)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// env holds the wired storage stack for a single command invocation.
type env struct {
	config   driven.ConfigStore
	store    driven.SecretStore
	scope    domain.IdentityScope
	ledger   *services.AccessLedger
	registry *services.AccessRegistry
	cleanup  func()
}

// buildEnv wires a secret store, ledger, and registry from configuration.
// The caller must run cleanup when done.
func buildEnv() (*env, error) {
	config, err := configfile.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	scope := domain.IdentityScope{
		CloudName: config.GetString("scope.cloud"),
		ClientID:  config.GetString("scope.client_id"),
		Authority: config.GetString("scope.authority"),
	}
	if err := scope.Validate(); err != nil {
		return nil, fmt.Errorf("incomplete scope in %s: %w", config.Path(), err)
	}

	store, closeStore, err := buildSecretStore(config)
	if err != nil {
		return nil, err
	}

	ledger := services.NewAccessLedger(scope, store)
	registry := services.NewAccessRegistry(ledger)

	return &env{
		config:   config,
		store:    store,
		scope:    scope,
		ledger:   ledger,
		registry: registry,
		cleanup: func() {
			registry.Close()
			ledger.Close()
			closeStore()
		},
	}, nil
}

// buildSecretStore selects the backend named by storage.backend. Supported
// values are "sqlite" (the default), "file", and "memory".
func buildSecretStore(config driven.ConfigStore) (driven.SecretStore, func(), error) {
	backend := config.GetString("storage.backend")
	if backend == "" {
		backend = "sqlite"
	}
	logger.Debug("using %s secret store backend", backend)

	switch backend {
	case "sqlite":
		store, err := sqlite.NewSecretStore(config.GetString("storage.path"), 2*time.Second)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite secret store: %w", err)
		}
		return store, func() { store.Close() }, nil

	case "file":
		path := config.GetString("storage.path")
		if path == "" {
			return nil, nil, fmt.Errorf("storage.path must be set for the file backend")
		}
		key, err := hex.DecodeString(config.GetString("storage.encryption_key"))
		if err != nil {
			return nil, nil, fmt.Errorf("storage.encryption_key must be hex-encoded: %w", err)
		}
		store, err := storagefile.NewSecretStore(path, key)
		if err != nil {
			return nil, nil, fmt.Errorf("opening file secret store: %w", err)
		}
		return store, func() { store.Close() }, nil

	case "memory":
		store := memory.NewSecretStore()
		return store, func() { store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
