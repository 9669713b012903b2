package rawtree

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/lexcorpus/internal/contenthash"
	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

// Ensure Scanner implements the interface.
var _ driven.RawScanner = (*Scanner)(nil)

// Scanner implements driven.RawScanner over a local directory.
type Scanner struct {
	root string
}

// New creates a scanner for the raw root.
func New(root string) *Scanner {
	return &Scanner{root: filepath.Clean(root)}
}

// Root returns the raw root directory.
func (s *Scanner) Root() string {
	return s.root
}

// Scan walks the raw tree and hashes every visible regular file.
func (s *Scanner) Scan(ctx context.Context) ([]domain.RawFile, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, fmt.Errorf("raw root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("raw root %s is not a directory: %w", s.root, domain.ErrInvalidInput)
	}

	var files []domain.RawFile
	err = filepath.WalkDir(s.root, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return walkErr
		}
		if p == s.root {
			return nil
		}
		if isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		source, rel, ok := s.split(p)
		if !ok {
			// Files directly below the raw root belong to no source.
			return nil
		}

		f, err := s.describe(p, source, rel)
		if err != nil {
			return &domain.ConnectorError{Source: source, Path: rel, Err: err}
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.applySidecars(ctx, files); err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].Source != files[j].Source {
			return files[i].Source < files[j].Source
		}
		return files[i].RelativePath < files[j].RelativePath
	})
	return files, nil
}

// ReadFile returns the current bytes of a raw file.
func (s *Scanner) ReadFile(ctx context.Context, f domain.RawFile) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.localPath(f.Source, f.RelativePath)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// split returns the source and the slash-separated path below it.
func (s *Scanner) split(p string) (source, rel string, ok bool) {
	r, err := filepath.Rel(s.root, p)
	if err != nil {
		return "", "", false
	}
	source, rel, ok = strings.Cut(filepath.ToSlash(r), "/")
	if !ok || source == "" || rel == "" {
		return "", "", false
	}
	return source, rel, true
}

func (s *Scanner) localPath(source, rel string) (string, error) {
	clean := path.Clean(rel)
	if source == "" || strings.Contains(source, "/") || clean == "." ||
		strings.HasPrefix(clean, "../") || clean == ".." || path.IsAbs(clean) {
		return "", fmt.Errorf("raw path %s/%s: %w", source, rel, domain.ErrInvalidInput)
	}
	return filepath.Join(s.root, source, filepath.FromSlash(clean)), nil
}

func (s *Scanner) describe(p, source, rel string) (domain.RawFile, error) {
	fh, err := os.Open(p)
	if err != nil {
		return domain.RawFile{}, err
	}
	defer fh.Close()

	info, err := fh.Stat()
	if err != nil {
		return domain.RawFile{}, err
	}
	digest, err := contenthash.HashBytes(fh)
	if err != nil {
		return domain.RawFile{}, err
	}

	return domain.RawFile{
		Source:       source,
		RelativePath: rel,
		Format:       domain.DetectFormat(rel),
		ByteHash:     digest.Hex(),
		Size:         info.Size(),
		RetrievedAt:  info.ModTime().UTC(),
		Sidecar:      isSidecar(rel),
	}, nil
}

// isHidden reports whether a path contains a segment starting with a dot.
// "." and ".." are not hidden.
func isHidden(p string) bool {
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}
