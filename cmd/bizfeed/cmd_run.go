package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deusflow/bizfeed/internal/app"
	"github.com/deusflow/bizfeed/internal/config"
	"github.com/deusflow/bizfeed/internal/logger"
)

var runFlags struct {
	keywords string
	limit    int
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once and print the result as JSON",
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.keywords, "keywords", "", "comma-separated keywords (default: preset list)")
	f.IntVar(&runFlags.limit, "limit", 0, "articles per keyword (default: pipeline.limitPerKeyword)")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(cmd.Context(), cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Run(cmd.Context(), config.SplitKeywords(runFlags.keywords), runFlags.limit)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
