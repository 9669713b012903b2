package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/custodia-labs/lexcorpus/internal/adapters/driven/config/file"
	"github.com/custodia-labs/lexcorpus/internal/adapters/driven/rawtree"
	"github.com/custodia-labs/lexcorpus/internal/adapters/driven/storage/filesystem"
	"github.com/custodia-labs/lexcorpus/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/lexcorpus/internal/adapters/driving/cli"
	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
	"github.com/custodia-labs/lexcorpus/internal/core/services"
	"github.com/custodia-labs/lexcorpus/internal/extractors/archive"
	"github.com/custodia-labs/lexcorpus/internal/extractors/docx"
	"github.com/custodia-labs/lexcorpus/internal/extractors/html"
	"github.com/custodia-labs/lexcorpus/internal/extractors/jsonrecords"
	"github.com/custodia-labs/lexcorpus/internal/extractors/markdown"
	"github.com/custodia-labs/lexcorpus/internal/extractors/pdf"
	"github.com/custodia-labs/lexcorpus/internal/extractors/plaintext"
	"github.com/custodia-labs/lexcorpus/internal/extractors/tabular"
	"github.com/custodia-labs/lexcorpus/internal/extractors/xml"
	"github.com/custodia-labs/lexcorpus/internal/logger"
	"github.com/custodia-labs/lexcorpus/internal/postprocessors"
)

// build wires the adapters behind the CLI from a validated configuration.
func build(cfg file.Config, log *zap.Logger) (*cli.Services, error) {
	scanner := rawtree.New(cfg.RawRoot)

	store, err := filesystem.NewStore(cfg.ProcessedRoot)
	if err != nil {
		return nil, fmt.Errorf("open version store: %w", err)
	}

	var catalog driven.Catalog
	closeFn := func() error { return nil }
	if cfg.Catalog.Path != "" {
		db, err := sqlite.NewStore(cfg.Catalog.Path)
		if err != nil {
			return nil, fmt.Errorf("open catalog: %w", err)
		}
		catalog = db.Catalog()
		closeFn = db.Close
		log.Debug("catalog opened", zap.String("path", db.Path()))
	}

	guard, err := services.NewPIIGuard(cfg.PII.FieldNames, piiPatterns(cfg.PII.Patterns))
	if err != nil {
		_ = closeFn()
		return nil, err
	}

	chunks, err := chunkPipeline(cfg.Chunking)
	if err != nil {
		_ = closeFn()
		return nil, err
	}

	if err := pdf.New(pdf.WithCommand(cfg.PDF.Command)).Available(); err != nil {
		log.Warn("PDF documents will fail extraction",
			zap.String("command", cfg.PDF.Command),
			zap.String("install", pdf.InstallInstructions()))
	}

	recorder := &logger.Recorder{}
	versions := services.NewVersionManager(scanner, store, catalog, nil)
	orchestrator := services.NewOrchestrator(
		services.PipelineConfig{
			Workers:            cfg.Workers,
			Allow:              cfg.Sources.Allow,
			Deny:               cfg.Sources.Deny,
			Expected:           cfg.Sources.Expected,
			DocumentsPerSecond: cfg.RateLimit.DocumentsPerSecond,
			Chunking: domain.ChunkSettings{
				MaxChars:     cfg.Chunking.MaxChars,
				OverlapChars: cfg.Chunking.OverlapChars,
			},
		},
		services.OrchestratorDeps{
			Scanner:    scanner,
			Versions:   versions,
			Store:      store,
			Normaliser: services.NewNormaliser(newExtractorRegistry(cfg.PDF.Command), guard),
			Chunks:     chunks,
			Catalog:    catalog,
			Events:     logger.Tee(logger.NewSink(log), recorder),
		},
	)

	return &cli.Services{
		Pipeline: orchestrator,
		Versions: versions,
		Watcher:  scanner,
		Recorder: recorder,
		Close:    closeFn,
	}, nil
}

// newExtractorRegistry registers one extractor per supported format.
func newExtractorRegistry(pdfCommand string) *services.ExtractorRegistry {
	registry := services.NewExtractorRegistry()
	registry.Register(plaintext.New())
	registry.Register(markdown.New())
	registry.Register(html.New())
	registry.Register(xml.New())
	registry.Register(pdf.New(pdf.WithCommand(pdfCommand)))
	registry.Register(docx.New())
	registry.Register(tabular.New())
	registry.Register(jsonrecords.New())
	registry.Register(archive.New(registry))
	return registry
}

// chunkPipeline returns nil when chunking is disabled, so records are
// written one per line.
func chunkPipeline(cfg file.ChunkingConfig) (driven.PostProcessorPipeline, error) {
	if cfg.MaxChars == 0 {
		return nil, nil
	}
	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	p, err := registry.BuildPipeline(postprocessors.DefaultSteps(cfg.MaxChars, cfg.OverlapChars)...)
	if err != nil {
		return nil, fmt.Errorf("build chunk pipeline: %w", err)
	}
	return p, nil
}

func piiPatterns(in []file.PIIPatternConfig) []services.PIIPattern {
	if in == nil {
		return nil
	}
	out := make([]services.PIIPattern, len(in))
	for i, p := range in {
		out[i] = services.PIIPattern{Name: p.Name, Expr: p.Expr}
	}
	return out
}
