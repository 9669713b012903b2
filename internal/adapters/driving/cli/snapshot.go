package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Publish a corpus version without normalising",
	Long: `Hashes the raw tree and publishes a corpus version. When the raw tree is
unchanged since the latest version, that version is reused.`,
	Args: cobra.NoArgs,
	RunE: runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	v, reused, err := s.svc.Pipeline.Snapshot(cmd.Context())
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if reused {
		cmd.Printf("%s (unchanged)\n", v.ID)
		return nil
	}
	cmd.Printf("%s (%d files, %d sources)\n", v.ID, len(v.FileHashes), len(v.Sources))
	return nil
}
