package filesystem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

// OpenOutput starts <version>/normalized/<source>.jsonl. Lines are written
// to <source>.jsonl.tmp until Commit renames it.
func (s *Store) OpenOutput(_ context.Context, versionID, source string) (driven.OutputWriter, error) {
	dir, err := s.publishedDir(versionID)
	if err != nil {
		return nil, err
	}
	if source == "" || source != filepath.Base(source) || strings.HasPrefix(source, ".") {
		return nil, fmt.Errorf("source %q: %w", source, domain.ErrInvalidInput)
	}

	final := filepath.Join(dir, NormalizedDir, source+OutputExt)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return nil, err
	}
	tmp := final + tempExt
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	return &outputWriter{file: f, buf: bufio.NewWriterSize(f, 1<<20), tmp: tmp, final: final}, nil
}

// outputWriter implements driven.OutputWriter.
type outputWriter struct {
	file   *os.File
	buf    *bufio.Writer
	tmp    string
	final  string
	closed bool
}

var _ driven.OutputWriter = (*outputWriter)(nil)

var errOutputClosed = errors.New("output already closed")

func (w *outputWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errOutputClosed
	}
	return w.buf.Write(p)
}

// Commit flushes, syncs and renames the output into place.
func (w *outputWriter) Commit() error {
	if w.closed {
		return errOutputClosed
	}
	w.closed = true

	err := w.buf.Flush()
	if err == nil {
		err = w.file.Sync()
	}
	if closeErr := w.file.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(w.tmp, w.final)
	}
	if err != nil {
		_ = os.Remove(w.tmp)
		return fmt.Errorf("commit %s: %w", filepath.Base(w.final), err)
	}
	return fsyncDir(filepath.Dir(w.final))
}

// Abort discards the output. The previous committed output, if any, is
// left untouched.
func (w *outputWriter) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_ = w.file.Close()
	if err := os.Remove(w.tmp); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (w *outputWriter) Path() string {
	return w.final
}
