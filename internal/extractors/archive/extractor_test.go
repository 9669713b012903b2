package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

// fakeDispatcher returns member content as text. XML members whose content
// starts with "bad" fail; CSV members yield two parts.
type fakeDispatcher struct {
	calls []string
}

func (f *fakeDispatcher) Extract(_ context.Context, in driven.ExtractInput) (*driven.Extraction, error) {
	f.calls = append(f.calls, in.Path)
	text := string(in.Content)
	switch {
	case strings.HasPrefix(text, "bad"):
		return nil, domain.NewExtractionError(in.Format, domain.ErrMalformedDocument)
	case in.Format == domain.FormatCSV:
		return &driven.Extraction{Parts: []driven.Part{
			{Key: "row-1", Text: "r1", Metadata: map[string]string{"row": "1"}},
			{Key: "row-2", Text: "r2", Metadata: map[string]string{"row": "2"}},
		}}, nil
	}
	return &driven.Extraction{Parts: []driven.Part{{Text: text, Metadata: map[string]string{"title": in.Path}}}}, nil
}

type member struct {
	name    string
	content string
}

var members = []member{
	{name: "articles/a.xml", content: "article A"},
	{name: "articles/b.txt", content: "article B"},
	{name: "image.png", content: "binary"},
	{name: ".hidden.txt", content: "hidden"},
	{name: "__MACOSX/articles/._a.xml", content: "fork"},
	{name: "nested.zip", content: "PK"},
}

func buildZip(t *testing.T, files []member) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range files {
		w, err := zw.Create(m.name)
		require.NoError(t, err)
		_, err = io.WriteString(w, m.content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeTar(t *testing.T, w io.Writer, files []member) {
	t.Helper()
	tw := tar.NewWriter(w)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "articles/", Typeflag: tar.TypeDir, Mode: 0o755}))
	for _, m := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     m.name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(m.content)),
		}))
		_, err := io.WriteString(tw, m.content)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
}

func buildTar(t *testing.T, files []member) []byte {
	var buf bytes.Buffer
	writeTar(t, &buf, files)
	return buf.Bytes()
}

func buildTarGz(t *testing.T, files []member) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	writeTar(t, zw, files)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func buildTarZst(t *testing.T, files []member) []byte {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	writeTar(t, zw, files)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func buildTarLz4(t *testing.T, files []member) []byte {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	writeTar(t, zw, files)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestNew(t *testing.T) {
	extractor := New(&fakeDispatcher{})
	require.NotNil(t, extractor)
	assert.Equal(t, []domain.Format{domain.FormatArchive}, extractor.Formats())
	assert.Equal(t, int64(DefaultMaxMemberSize), extractor.maxMemberSize)
}

func TestExtract_Containers(t *testing.T) {
	tests := []struct {
		name  string
		build func(*testing.T, []member) []byte
	}{
		{name: "zip", build: buildZip},
		{name: "tar", build: buildTar},
		{name: "tar.gz", build: buildTarGz},
		{name: "tar.zst", build: buildTarZst},
		{name: "tar.lz4", build: buildTarLz4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dispatcher := &fakeDispatcher{}
			result, err := New(dispatcher).Extract(context.Background(), driven.ExtractInput{
				Path:    "bundle",
				Format:  domain.FormatArchive,
				Content: tc.build(t, members),
			})
			require.NoError(t, err)

			assert.Equal(t, []string{"articles/a.xml", "articles/b.txt"}, dispatcher.calls)
			require.Len(t, result.Parts, 2)
			assert.Equal(t, 0, result.Skipped)

			assert.Equal(t, "articles/a.xml", result.Parts[0].Key)
			assert.Equal(t, "article A", result.Parts[0].Text)
			assert.Equal(t, "articles/a.xml", result.Parts[0].Metadata[MemberKey])
			assert.Equal(t, "xml", result.Parts[0].Metadata["member_format"])
			assert.NotContains(t, result.Parts[0].Metadata, SkippedKey)
		})
	}
}

func TestExtract_MultiPartMember(t *testing.T) {
	content := buildZip(t, []member{{name: "taux.csv", content: "x"}})

	result, err := New(&fakeDispatcher{}).Extract(context.Background(), driven.ExtractInput{
		Format:  domain.FormatArchive,
		Content: content,
	})
	require.NoError(t, err)
	require.Len(t, result.Parts, 2)
	assert.Equal(t, "taux.csv#row-1", result.Parts[0].Key)
	assert.Equal(t, "taux.csv#row-2", result.Parts[1].Key)
}

func TestExtract_SkipsFailedMembers(t *testing.T) {
	content := buildTarGz(t, []member{
		{name: "ok.xml", content: "fine"},
		{name: "broken.xml", content: "bad member"},
	})

	result, err := New(&fakeDispatcher{}).Extract(context.Background(), driven.ExtractInput{
		Format:  domain.FormatArchive,
		Content: content,
	})
	require.NoError(t, err)
	require.Len(t, result.Parts, 1)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, "1", result.Parts[0].Metadata[SkippedKey])
}

func TestExtract_AllMembersFail(t *testing.T) {
	content := buildZip(t, []member{{name: "broken.xml", content: "bad"}})

	_, err := New(&fakeDispatcher{}).Extract(context.Background(), driven.ExtractInput{
		Format:  domain.FormatArchive,
		Content: content,
	})
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)
}

func TestExtract_NoSupportedMembers(t *testing.T) {
	content := buildZip(t, []member{{name: "photo.jpg", content: "x"}})

	_, err := New(&fakeDispatcher{}).Extract(context.Background(), driven.ExtractInput{
		Format:  domain.FormatArchive,
		Content: content,
	})
	assert.ErrorIs(t, err, domain.ErrEmptyText)
}

func TestExtract_MemberTooLarge(t *testing.T) {
	content := buildTar(t, []member{
		{name: "small.txt", content: "ok"},
		{name: "large.txt", content: strings.Repeat("x", 64)},
	})

	result, err := New(&fakeDispatcher{}, WithMaxMemberSize(16)).Extract(context.Background(), driven.ExtractInput{
		Format:  domain.FormatArchive,
		Content: content,
	})
	require.NoError(t, err)
	require.Len(t, result.Parts, 1)
	assert.Equal(t, 1, result.Skipped)
}

func TestExtract_Unrecognised(t *testing.T) {
	_, err := New(&fakeDispatcher{}).Extract(context.Background(), driven.ExtractInput{
		Format:  domain.FormatArchive,
		Content: []byte("not an archive"),
	})
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)
}

func TestExtract_TruncatedGzip(t *testing.T) {
	content := buildTarGz(t, members)
	truncated := content[:len(content)/2]

	result, err := New(&fakeDispatcher{}).Extract(context.Background(), driven.ExtractInput{
		Format:  domain.FormatArchive,
		Content: truncated,
	})
	if err == nil {
		// Members decoded before the break are kept; the break counts as skipped.
		assert.Positive(t, result.Skipped)
		return
	}
	assert.ErrorIs(t, err, domain.ErrMalformedDocument)
}

func TestExtract_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&fakeDispatcher{}).Extract(ctx, driven.ExtractInput{
		Format:  domain.FormatArchive,
		Content: buildZip(t, members),
	})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestMemberName(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
		ok       bool
	}{
		{raw: "a/b.xml", expected: "a/b.xml", ok: true},
		{raw: "./a/b.xml", expected: "a/b.xml", ok: true},
		{raw: "../../etc/passwd", expected: "etc/passwd", ok: true},
		{raw: `dir\file.txt`, expected: "dir/file.txt", ok: true},
		{raw: "a/.git/config", ok: false},
		{raw: "__MACOSX/x", ok: false},
		{raw: "/", ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			name, ok := memberName(tc.raw)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.expected, name)
			}
		})
	}
}
