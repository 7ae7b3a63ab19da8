package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the allow-list for the configured provider scope",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	e, err := buildEnv()
	if err != nil {
		return err
	}
	defer e.cleanup()

	ctx := cmd.Context()
	if err := e.registry.Initialize(ctx); err != nil {
		return fmt.Errorf("loading allow-list: %w", err)
	}

	cmd.Println("Provider Scope")
	cmd.Println("==============")
	cmd.Printf("  Cloud:     %s\n", e.scope.CloudName)
	cmd.Printf("  Client ID: %s\n", e.scope.ClientID)
	cmd.Printf("  Authority: %s\n", e.scope.Authority)
	cmd.Println()

	cmd.Println("Storage")
	cmd.Println("=======")
	cmd.Printf("  Config:      %s\n", e.config.Path())
	cmd.Printf("  Current key: %s\n", e.scope.CurrentKey())
	cmd.Printf("  Legacy key:  %s", e.scope.LegacyKey())

	_, legacyPresent, err := e.store.Get(ctx, e.scope.LegacyKey())
	if err != nil {
		return fmt.Errorf("checking legacy key: %w", err)
	}
	if legacyPresent {
		cmd.Println(" (present)")
	} else {
		cmd.Println(" (absent)")
	}
	cmd.Println()

	accounts := e.registry.Accounts()
	cmd.Println("Allowed Accounts")
	cmd.Println("================")
	if len(accounts) == 0 {
		cmd.Println("  (none)")
		return nil
	}
	for _, account := range accounts {
		cmd.Printf("  %s\n", account)
	}
	return nil
}
