// Package pdf provides an Extractor for PDF documents. Text extraction is
// delegated to the poppler pdftotext tool, run through an injectable
// CommandRunner so tests never need the binary.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"strconv"
	"strings"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// DefaultCommand is the extraction tool looked up on PATH.
const DefaultCommand = "pdftotext"

const (
	maxTitleLength = 200
	headerWindow   = 1024
)

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = fmt.Errorf("%w: pdftotext (install poppler)", domain.ErrToolNotFound)

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Extractor handles PDF documents.
type Extractor struct {
	command string
	runner  CommandRunner
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCommand sets the pdftotext binary name or path.
func WithCommand(command string) Option {
	return func(e *Extractor) {
		if command != "" {
			e.command = command
		}
	}
}

// WithRunner replaces the command runner.
func WithRunner(runner CommandRunner) Option {
	return func(e *Extractor) {
		e.runner = runner
	}
}

// New creates a new PDF extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{command: DefaultCommand, runner: execRunner{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewWithRunner creates a PDF extractor with a custom command runner.
func NewWithRunner(runner CommandRunner) *Extractor {
	return New(WithRunner(runner))
}

// Formats returns the formats this extractor handles.
func (e *Extractor) Formats() []domain.Format {
	return []domain.Format{domain.FormatPDF}
}

// Available reports whether the configured tool can be found.
func (e *Extractor) Available() error {
	if _, err := exec.LookPath(e.command); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// CheckAvailable reports whether pdftotext is on PATH.
func CheckAvailable() error {
	return New().Available()
}

// InstallInstructions returns instructions for installing pdftotext.
func InstallInstructions() string {
	return `pdftotext is required for PDF extraction.

Install poppler:
  macOS:         brew install poppler
  Debian/Ubuntu: apt install poppler-utils
  Fedora:        dnf install poppler-utils`
}

// Extract writes the PDF to a temporary file and runs pdftotext on it.
// Pages are separated by form feeds in the tool output; they become
// paragraph breaks in the text.
func (e *Extractor) Extract(ctx context.Context, in driven.ExtractInput) (*driven.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	header := in.Content[:min(len(in.Content), headerWindow)]
	if !bytes.Contains(header, []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: missing %%PDF- header", domain.ErrMalformedDocument)
	}

	tmp, err := os.CreateTemp("", "lexcorpus-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(in.Content); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	out, err := e.runner.Run(ctx, e.command, "-layout", "-enc", "UTF-8", "-q", tmpPath, "-")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrPDFToolNotFound
		}
		return nil, fmt.Errorf("%s: %w", e.command, err)
	}

	raw := strings.ToValidUTF8(string(out), "\uFFFD")
	pages := countPages(raw)
	text := cleanText(strings.ReplaceAll(raw, "\f", "\n\n"))

	metadata := map[string]string{
		"title": extractTitle(text, in.Path),
		"pages": strconv.Itoa(pages),
	}

	return &driven.Extraction{
		Parts: []driven.Part{{Text: text, Metadata: metadata}},
	}, nil
}

// countPages counts form-feed separated pages.
func countPages(out string) int {
	if strings.TrimSpace(out) == "" {
		return 0
	}
	pages := strings.Count(out, "\f")
	if !strings.HasSuffix(out, "\f") {
		pages++
	}
	return pages
}

// cleanText trims trailing spaces left by layout mode and collapses runs
// of blank lines.
func cleanText(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			blank++
			if blank > 1 {
				continue
			}
			line = ""
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// extractTitle returns the first short non-empty line or the file name.
func extractTitle(content, uri string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > maxTitleLength {
			continue
		}
		return line
	}

	filename := path.Base(uri)
	filename = strings.TrimSuffix(filename, path.Ext(filename))
	filename = strings.ReplaceAll(filename, "_", " ")
	return strings.ReplaceAll(filename, "-", " ")
}
