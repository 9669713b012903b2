package file

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

// Defaults applied before a file is decoded.
const (
	DefaultRawRoot       = "data_fiscale/raw"
	DefaultProcessedRoot = "data_fiscale/processed"
	DefaultMaxChars      = 1500
	DefaultPDFCommand    = "pdftotext"
)

// Config is the complete pipeline configuration.
type Config struct {
	RawRoot       string          `toml:"raw_root" yaml:"raw_root" validate:"required"`
	ProcessedRoot string          `toml:"processed_root" yaml:"processed_root" validate:"required,nefield=RawRoot"`
	Workers       int             `toml:"workers" yaml:"workers" validate:"gte=0,lte=256"`
	Chunking      ChunkingConfig  `toml:"chunking" yaml:"chunking"`
	Sources       SourcesConfig   `toml:"sources" yaml:"sources"`
	PII           PIIConfig       `toml:"pii" yaml:"pii"`
	PDF           PDFConfig       `toml:"pdf" yaml:"pdf"`
	RateLimit     RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
	Catalog       CatalogConfig   `toml:"catalog" yaml:"catalog"`
	Log           LogConfig       `toml:"log" yaml:"log"`
}

// ChunkingConfig sizes chunks in code points. MaxChars 0 disables chunking.
type ChunkingConfig struct {
	MaxChars     int `toml:"max_chars" yaml:"max_chars" validate:"gte=0"`
	OverlapChars int `toml:"overlap_chars" yaml:"overlap_chars" validate:"gte=0"`
}

// SourcesConfig filters sources by name.
type SourcesConfig struct {
	Allow    []string `toml:"allow" yaml:"allow" validate:"dive,sourcename"`
	Deny     []string `toml:"deny" yaml:"deny" validate:"dive,sourcename"`
	Expected []string `toml:"expected" yaml:"expected" validate:"dive,sourcename"`
}

// PIIConfig overrides the guard rules. Nil lists keep the defaults; an
// explicitly empty list disables that check.
type PIIConfig struct {
	FieldNames []string           `toml:"field_names" yaml:"field_names" validate:"dive,required"`
	Patterns   []PIIPatternConfig `toml:"patterns" yaml:"patterns" validate:"dive"`
}

// PIIPatternConfig is one named detection expression.
type PIIPatternConfig struct {
	Name string `toml:"name" yaml:"name" validate:"required"`
	Expr string `toml:"expr" yaml:"expr" validate:"required,regexp"`
}

// PDFConfig configures the external text extractor.
type PDFConfig struct {
	Command string `toml:"command" yaml:"command" validate:"required"`
}

// RateLimitConfig throttles document dispatch. Zero means unlimited.
type RateLimitConfig struct {
	DocumentsPerSecond float64 `toml:"documents_per_second" yaml:"documents_per_second" validate:"gte=0"`
}

// CatalogConfig locates the run catalog. An empty path disables it.
type CatalogConfig struct {
	Path string `toml:"path" yaml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	File    string `toml:"file" yaml:"file"`
	Verbose bool   `toml:"verbose" yaml:"verbose"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		RawRoot:       DefaultRawRoot,
		ProcessedRoot: DefaultProcessedRoot,
		Chunking:      ChunkingConfig{MaxChars: DefaultMaxChars},
		PDF:           PDFConfig{Command: DefaultPDFCommand},
	}
}

// Load reads a TOML (.toml) or YAML (.yaml, .yml) file over the defaults,
// resolves relative paths against the file's directory and validates the
// result. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := decode(path, data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", filepath.Base(path), err)
	}

	cfg.resolvePaths(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(cfg)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err := dec.Decode(cfg)
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("unsupported config extension %q: %w", filepath.Ext(path), domain.ErrInvalidInput)
	}
}

// resolvePaths makes relative filesystem paths relative to base.
func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.RawRoot, &c.ProcessedRoot, &c.Catalog.Path, &c.Log.File} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}
