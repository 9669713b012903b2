package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/custodia-labs/lexcorpus/internal/adapters/driven/rawtree"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driving"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run ingestion whenever the raw tree changes",
	Long: `Runs ingest once, then watches the raw tree and runs it again after
changes settle for the debounce period. Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	addPipelineFlags(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "quiet period before re-running")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	if s.svc.Watcher == nil {
		return errors.New("watching not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	changes, err := s.svc.Watcher.Watch(ctx)
	if err != nil {
		return err
	}

	runOnce := func() {
		if err := ingestOnce(ctx, cmd, s, driving.RunOptions{}, false); err != nil && ctx.Err() == nil {
			s.log.Error("ingest failed", zap.Error(err))
		}
	}

	runOnce()
	s.log.Info("watching raw tree", zap.String("raw_root", s.cfg.RawRoot), zap.Duration("debounce", watchDebounce))
	for range debounce(ctx, changes, watchDebounce) {
		runOnce()
	}
	return nil
}

// debounce emits once after changes stop arriving for wait. The returned
// channel closes when ctx ends or changes closes.
func debounce(ctx context.Context, changes <-chan rawtree.Change, wait time.Duration) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		defer close(out)

		timer := time.NewTimer(wait)
		timer.Stop()
		pending := false

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				timer.Reset(wait)
				pending = true
			case <-timer.C:
				if !pending {
					continue
				}
				pending = false
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
