package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deusflow/bizfeed/internal/app"
	"github.com/deusflow/bizfeed/internal/logger"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired cache entries",
	RunE:  runPurge,
}

func runPurge(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.Purge(cmd.Context())
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired entries\n", n)
	return nil
}
