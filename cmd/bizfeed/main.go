// bizfeed collects small-business news for a set of keywords.
//
// Usage:
//
//	bizfeed run   [--keywords=カフェ,美容室] [--limit=10]
//	bizfeed serve  [--port=8080] [--keywords=カフェ] [--limit=10] [--interval=1h]
//	bizfeed cached --keyword=カフェ [--date=2024-05-01]
//	bizfeed purge
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deusflow/bizfeed/internal/config"
	"github.com/deusflow/bizfeed/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
}

var rootCmd = &cobra.Command{
	Use:   "bizfeed",
	Short: "Fetch, score and rank small-business news by keyword",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.configPath, "config", os.Getenv("BIZFEED_CONFIG"), "YAML config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(cachedCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.Version = version
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(rootFlags.configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
