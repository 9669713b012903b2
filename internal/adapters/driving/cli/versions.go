package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errDrift is returned by verify when the raw tree changed.
var errDrift = errors.New("raw tree differs from version")

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List published corpus versions",
	Args:  cobra.NoArgs,
	RunE:  runVersions,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <version-id>",
	Short: "Compare the raw tree with a published version",
	Long: `Re-hashes the raw tree and reports files added, removed or modified since
the version was published. Exits non-zero when the tree drifted.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent pipeline runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs to show")
	rootCmd.AddCommand(versionsCmd, verifyCmd, historyCmd)
}

func runVersions(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	versions, err := s.svc.Versions.Versions(cmd.Context())
	if err != nil {
		return fmt.Errorf("list versions: %w", err)
	}
	renderVersions(cmd.OutOrStdout(), versions)
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	drift, err := s.svc.Versions.Verify(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("verify %s: %w", args[0], err)
	}
	renderDrift(cmd.OutOrStdout(), drift)
	if !drift.Clean() {
		return errDrift
	}
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.svc.Versions.History(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	renderHistory(cmd.OutOrStdout(), runs)
	return nil
}
