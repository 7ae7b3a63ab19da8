package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy a legacy-key allow-list forward to the current key",
	Long: `Read the allow-list, copying it forward from the legacy key layout to
the current key if the current key is absent. The legacy value is left in
place so older installations sharing the store keep working.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	e, err := buildEnv()
	if err != nil {
		return err
	}
	defer e.cleanup()

	ctx := cmd.Context()

	_, currentBefore, err := e.store.Get(ctx, e.scope.CurrentKey())
	if err != nil {
		return fmt.Errorf("checking current key: %w", err)
	}

	// Reading through the ledger performs the forward migration.
	list, ok, err := e.ledger.Get(ctx)
	if err != nil {
		return fmt.Errorf("reading allow-list: %w", err)
	}
	if !ok {
		cmd.Println("No allow-list stored under either key; nothing to migrate.")
		return nil
	}

	if currentBefore {
		cmd.Printf("Current key already holds %d account(s); nothing to migrate.\n", len(list))
		return nil
	}

	_, currentAfter, err := e.store.Get(ctx, e.scope.CurrentKey())
	if err != nil {
		return fmt.Errorf("checking current key: %w", err)
	}
	if !currentAfter {
		return fmt.Errorf("forward migration did not populate %s", e.scope.CurrentKey())
	}

	cmd.Printf("Migrated %d account(s) from %s to %s.\n",
		len(list), e.scope.LegacyKey(), e.scope.CurrentKey())
	return nil
}
