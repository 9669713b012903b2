// Package archive provides an Extractor for bundles of documents: zip,
// tar, and tar streams compressed with gzip, zstd or lz4. Every member is
// dispatched back through the extractor registry by its detected format.
// Nested archives are not expanded.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// DefaultMaxMemberSize caps the decompressed size of a single member.
const DefaultMaxMemberSize = 256 << 20

// Metadata keys added to every part.
const (
	MemberKey  = "archive_member"
	SkippedKey = "archive_skipped"
)

var (
	zipMagic      = []byte("PK\x03\x04")
	emptyZipMagic = []byte("PK\x05\x06")
	gzipMagic     = []byte{0x1f, 0x8b}
	zstdMagic     = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic      = []byte{0x04, 0x22, 0x4d, 0x18}
	tarMagic      = []byte("ustar")
)

// errMemberTooLarge marks members above the size cap.
var errMemberTooLarge = errors.New("archive member exceeds size limit")

// Dispatcher extracts a member by format. The extractor registry
// satisfies it.
type Dispatcher interface {
	Extract(ctx context.Context, in driven.ExtractInput) (*driven.Extraction, error)
}

// Extractor handles archive documents.
type Extractor struct {
	dispatcher    Dispatcher
	maxMemberSize int64
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxMemberSize overrides DefaultMaxMemberSize.
func WithMaxMemberSize(n int64) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxMemberSize = n
		}
	}
}

// New creates an archive extractor that dispatches members to dispatcher.
func New(dispatcher Dispatcher, opts ...Option) *Extractor {
	e := &Extractor{dispatcher: dispatcher, maxMemberSize: DefaultMaxMemberSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Formats returns the formats this extractor handles.
func (e *Extractor) Formats() []domain.Format {
	return []domain.Format{domain.FormatArchive}
}

// collector gathers member parts and failure counts.
type collector struct {
	parts   []driven.Part
	skipped int
}

// Extract detects the container from its magic bytes and extracts each member.
func (e *Extractor) Extract(ctx context.Context, in driven.ExtractInput) (*driven.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := &collector{}
	var err error
	switch {
	case bytes.HasPrefix(in.Content, zipMagic), bytes.HasPrefix(in.Content, emptyZipMagic):
		err = e.readZip(ctx, in.Content, c)
	case bytes.HasPrefix(in.Content, gzipMagic):
		var zr *gzip.Reader
		if zr, err = gzip.NewReader(bytes.NewReader(in.Content)); err == nil {
			err = e.readTar(ctx, zr, c)
			zr.Close()
		}
	case bytes.HasPrefix(in.Content, zstdMagic):
		var zr *zstd.Decoder
		if zr, err = zstd.NewReader(bytes.NewReader(in.Content)); err == nil {
			err = e.readTar(ctx, zr, c)
			zr.Close()
		}
	case bytes.HasPrefix(in.Content, lz4Magic):
		err = e.readTar(ctx, lz4.NewReader(bytes.NewReader(in.Content)), c)
	case isTar(in.Content):
		err = e.readTar(ctx, bytes.NewReader(in.Content), c)
	default:
		return nil, fmt.Errorf("%w: unrecognised archive container", domain.ErrMalformedDocument)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if len(c.parts) == 0 {
			return nil, fmt.Errorf("%w: %w", domain.ErrMalformedDocument, err)
		}
		// A stream broken after some members keeps what was read.
		c.skipped++
	}

	if len(c.parts) == 0 {
		if c.skipped > 0 {
			return nil, fmt.Errorf("%w: no extractable members (%d skipped)", domain.ErrMalformedDocument, c.skipped)
		}
		return nil, fmt.Errorf("%w: no supported members", domain.ErrEmptyText)
	}

	if c.skipped > 0 {
		for _, p := range c.parts {
			p.Metadata[SkippedKey] = strconv.Itoa(c.skipped)
		}
	}
	return &driven.Extraction{Parts: c.parts, Skipped: c.skipped}, nil
}

func isTar(content []byte) bool {
	return len(content) >= 262 && bytes.Equal(content[257:262], tarMagic)
}

func (e *Extractor) readZip(ctx context.Context, content []byte, c *collector) error {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return err
	}

	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if file.FileInfo().IsDir() {
			continue
		}
		name, ok := memberName(file.Name)
		if !ok {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			c.skipped++
			continue
		}
		data, err := e.readMember(rc)
		rc.Close()
		if err != nil {
			c.skipped++
			continue
		}
		if err := e.extractMember(ctx, name, data, c); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extractor) readTar(ctx context.Context, r io.Reader, c *collector) error {
	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if !hdr.FileInfo().Mode().IsRegular() {
			continue
		}
		name, ok := memberName(hdr.Name)
		if !ok {
			continue
		}

		data, err := e.readMember(tr)
		if errors.Is(err, errMemberTooLarge) {
			c.skipped++
			continue
		}
		if err != nil {
			return err
		}
		if err := e.extractMember(ctx, name, data, c); err != nil {
			return err
		}
	}
}

func (e *Extractor) readMember(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, e.maxMemberSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > e.maxMemberSize {
		return nil, errMemberTooLarge
	}
	return data, nil
}

// extractMember dispatches one member. Unsupported formats and nested
// archives are ignored; extraction failures are counted as skipped.
// Only cancellation is returned as an error.
func (e *Extractor) extractMember(ctx context.Context, name string, data []byte, c *collector) error {
	format := domain.DetectFormat(name)
	if format == domain.FormatUnknown || format == domain.FormatArchive {
		return nil
	}

	result, err := e.dispatcher.Extract(ctx, driven.ExtractInput{
		Path:    name,
		Format:  format,
		Content: data,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.skipped++
		return nil
	}

	c.skipped += result.Skipped
	for _, p := range result.Parts {
		key := name
		if p.Key != "" {
			key = name + "#" + p.Key
		}
		metadata := make(map[string]string, len(p.Metadata)+2)
		for k, v := range p.Metadata {
			metadata[k] = v
		}
		metadata[MemberKey] = name
		metadata["member_format"] = string(format)
		c.parts = append(c.parts, driven.Part{Key: key, Text: p.Text, Metadata: metadata})
	}
	return nil
}

// memberName cleans a member path and rejects hidden and resource-fork entries.
func memberName(raw string) (string, bool) {
	name := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(raw, "\\", "/")), "/")
	if name == "" || name == "." {
		return "", false
	}
	for _, segment := range strings.Split(name, "/") {
		if strings.HasPrefix(segment, ".") || segment == "__MACOSX" {
			return "", false
		}
	}
	return name, true
}
