// Package main provides the ocldev CLI: convert, validate, import,
// export, and checksum operations against an Open Concept Lab API.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/openconceptlab/ocldev/internal/config"
	"github.com/openconceptlab/ocldev/internal/logging"
)

// cfg is loaded once before any command runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ocldev",
	Short: "Work with OCL terminology resources",
	Long: `ocldev converts, validates, imports, and exports Open Concept Lab
resources.

Configuration comes from environment variables (or a .env file):
  OCL_API_URL        API root, e.g. https://api.openconceptlab.org
  OCL_API_TOKEN      API token for authenticated operations
  LOG_LEVEL          debug, info, warn, or error

Examples:
  ocldev convert concepts.csv -o concepts.json
  ocldev validate concepts.json
  ocldev import concepts.json --queue my-queue
  ocldev export /orgs/MyOrg/sources/MySource/v1.0/ --to-import
  ocldev checksum concept.json --smart`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load .env file if it exists (Overload overwrites existing env vars)
		if err := godotenv.Overload(); err == nil {
			slog.Info("loaded .env file (overwriting existing env vars)")
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
		slog.Debug("configuration loaded", "config", cfg.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(checksumCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}

// outputWriter opens the --output target, defaulting to stdout. The
// returned closer is a no-op for stdout.
func outputWriter(path string) (*os.File, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, f.Close, nil
}
