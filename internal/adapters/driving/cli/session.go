package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/custodia-labs/lexcorpus/internal/adapters/driven/config/file"
	"github.com/custodia-labs/lexcorpus/internal/adapters/driven/rawtree"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driving"
	"github.com/custodia-labs/lexcorpus/internal/logger"
)

// Services are the collaborators a command needs. Close releases them.
type Services struct {
	Pipeline driving.Pipeline
	Versions driving.VersionCatalog
	Watcher  Watcher
	Recorder *logger.Recorder
	Close    func() error
}

// Watcher reports raw tree changes.
type Watcher interface {
	Watch(ctx context.Context) (<-chan rawtree.Change, error)
}

// Builder wires services from a validated configuration.
type Builder func(cfg file.Config, log *zap.Logger) (*Services, error)

var builder Builder

// SetBuilder installs the function that wires services.
func SetBuilder(b Builder) {
	builder = b
}

// session is the per-command runtime: configuration, logger and services.
type session struct {
	cfg file.Config
	log *zap.Logger
	svc *Services
}

func openSession(cmd *cobra.Command) (*session, error) {
	if builder == nil {
		return nil, errors.New("services not configured")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Options{
		Verbose: cfg.Log.Verbose,
		File:    cfg.Log.File,
		Console: cmd.ErrOrStderr(),
	})
	svc, err := builder(cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("initialise: %w", err)
	}
	return &session{cfg: cfg, log: log, svc: svc}, nil
}

func (s *session) Close() {
	if s.svc.Close != nil {
		if err := s.svc.Close(); err != nil {
			s.log.Warn("close services", zap.Error(err))
		}
	}
	_ = s.log.Sync()
}

// loadConfig reads the config file, if any, then applies flags the user
// set explicitly.
func loadConfig(cmd *cobra.Command) (file.Config, error) {
	cfg := file.Default()
	if rootFlags.config != "" {
		loaded, err := file.Load(rootFlags.config)
		if err != nil {
			return file.Config{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("raw-root") {
		cfg.RawRoot = rootFlags.rawRoot
	}
	if flags.Changed("processed-root") {
		cfg.ProcessedRoot = rootFlags.processedRoot
	}
	if flags.Changed("workers") {
		cfg.Workers = rootFlags.workers
	}
	if flags.Changed("verbose") {
		cfg.Log.Verbose = rootFlags.verbose
	}
	if flags.Changed("log-file") {
		cfg.Log.File = rootFlags.logFile
	}
	if flags.Changed("catalog") {
		cfg.Catalog.Path = rootFlags.catalog
	}
	if flags.Changed("max-chars") {
		cfg.Chunking.MaxChars = pipelineFlags.maxChars
	}
	if flags.Changed("overlap") {
		cfg.Chunking.OverlapChars = pipelineFlags.overlap
	}
	if flags.Changed("rate") {
		cfg.RateLimit.DocumentsPerSecond = pipelineFlags.rate
	}

	if err := cfg.Validate(); err != nil {
		return file.Config{}, err
	}
	return cfg, nil
}
