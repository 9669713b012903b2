package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driving"
)

// errSourcesFailed is returned by --strict runs with failed sources.
var errSourcesFailed = errors.New("one or more sources failed")

var pipelineFlags struct {
	maxChars int
	overlap  int
	rate     float64
}

var ingestFlags struct {
	sources     []string
	retryFailed bool
	strict      bool
	force       bool
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Snapshot the raw tree and normalise every source",
	Long: `Snapshots the raw tree into a corpus version, reusing the latest version
when nothing changed, then normalises each selected source into
<processed_root>/<version>/normalized/<source>.jsonl.

When the corpus is unchanged but the chunk settings differ from the
version's latest run, the command refuses to rewrite the outputs unless
--force is given.

Interrupting the command stops dispatching documents, lets in-flight
documents finish and records the run as aborted.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	addPipelineFlags(ingestCmd)
	ingestCmd.Flags().StringSliceVarP(&ingestFlags.sources, "source", "s", nil, "only normalise these sources")
	ingestCmd.Flags().BoolVar(&ingestFlags.retryFailed, "retry-failed", false, "only re-run sources that failed in the latest run")
	ingestCmd.Flags().BoolVar(&ingestFlags.strict, "strict", false, "exit non-zero when any source failed")
	ingestCmd.Flags().BoolVar(&ingestFlags.force, "force", false, "rewrite outputs of an unchanged corpus even if chunk settings changed")
	rootCmd.AddCommand(ingestCmd)
}

func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&pipelineFlags.maxChars, "max-chars", 0, "chunk size in characters (0 = one record per line)")
	cmd.Flags().IntVar(&pipelineFlags.overlap, "overlap", 0, "characters repeated between consecutive chunks")
	cmd.Flags().Float64Var(&pipelineFlags.rate, "rate", 0, "documents dispatched per second (0 = unlimited)")
}

func runIngest(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := driving.RunOptions{
		Sources:     ingestFlags.sources,
		RetryFailed: ingestFlags.retryFailed,
		Force:       ingestFlags.force,
	}
	return ingestOnce(ctx, cmd, s, opts, ingestFlags.strict)
}

// ingestOnce runs the pipeline and prints its summary. The recorder is
// cleared first so a long-lived session only keeps the current run.
func ingestOnce(ctx context.Context, cmd *cobra.Command, s *session, opts driving.RunOptions, strict bool) error {
	if s.svc.Recorder != nil {
		s.svc.Recorder.Reset()
	}
	m, err := s.svc.Pipeline.Run(ctx, opts)
	if m != nil {
		renderRun(cmd.OutOrStdout(), m, warnings(s.svc, m.RunID))
	}
	if errors.Is(err, domain.ErrSettingsChanged) {
		return fmt.Errorf("ingest: %w (rerun with --force to rewrite the outputs)", err)
	}
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if strict && anySourceFailed(m) {
		return errSourcesFailed
	}
	return nil
}

func anySourceFailed(m *domain.RunManifest) bool {
	for _, r := range m.PerSourceStatus {
		if r.Status == domain.StatusFailed || r.Status == domain.StatusAborted {
			return true
		}
	}
	return false
}

// warnings returns the non-fatal warnings recorded during run runID.
func warnings(svc *Services, runID string) []string {
	if svc.Recorder == nil {
		return nil
	}
	var out []string
	for _, e := range svc.Recorder.Events() {
		if e.Kind != domain.EventWarning || e.RunID != runID {
			continue
		}
		msg := e.Message
		if e.Err != nil {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		}
		out = append(out, msg)
	}
	return out
}
