// Package cli provides the lexcorpus command line interface.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// version is set at build time.
var version = "dev"

var rootFlags struct {
	config        string
	rawRoot       string
	processedRoot string
	workers       int
	verbose       bool
	logFile       string
	catalog       string
}

var rootCmd = &cobra.Command{
	Use:   "lexcorpus",
	Short: "Version and normalise a legal and tax document corpus",
	Long: `lexcorpus snapshots the raw tree written by connectors into immutable,
content-addressed corpus versions, then normalises every document into
citation-ready JSONL records and chunks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&rootFlags.config, "config", "c", "", "config file (.toml, .yaml)")
	pf.StringVar(&rootFlags.rawRoot, "raw-root", "", "raw tree written by connectors")
	pf.StringVar(&rootFlags.processedRoot, "processed-root", "", "directory holding published versions")
	pf.IntVar(&rootFlags.workers, "workers", 0, "concurrent document tasks (0 = one per CPU)")
	pf.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "log every document")
	pf.StringVar(&rootFlags.logFile, "log-file", "", "also write JSON logs to this file")
	pf.StringVar(&rootFlags.catalog, "catalog", "", "SQLite catalog of versions and runs")
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
