// Package markdown provides an Extractor for Markdown documents. The
// document is parsed with goldmark and its AST is flattened to text with
// one blank line between blocks.
package markdown

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// The parser configuration never changes; Parse creates per-call state.
var (
	parserInstance goldmark.Markdown
	parserOnce     sync.Once
)

func parser() goldmark.Markdown {
	parserOnce.Do(func() {
		parserInstance = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return parserInstance
}

// Extractor handles Markdown documents.
type Extractor struct{}

// New creates a new Markdown extractor.
func New() *Extractor {
	return &Extractor{}
}

// Formats returns the formats this extractor handles.
func (e *Extractor) Formats() []domain.Format {
	return []domain.Format{domain.FormatMarkdown}
}

// Extract flattens the Markdown AST to text.
func (e *Extractor) Extract(ctx context.Context, in driven.ExtractInput) (*driven.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source := []byte(strings.ToValidUTF8(string(in.Content), "\uFFFD"))
	document := parser().Parser().Parse(text.NewReader(source))

	f := &flattener{source: source}
	if err := ast.Walk(document, f.walk); err != nil {
		return nil, err
	}

	title := f.title
	if title == "" {
		title = titleFromPath(in.Path)
	}

	return &driven.Extraction{
		Parts: []driven.Part{{
			Text:     f.text(),
			Metadata: map[string]string{"title": title},
		}},
	}, nil
}

// flattener accumulates text while walking the AST.
type flattener struct {
	source []byte
	out    strings.Builder

	title     string
	inTitle   bool
	titleText strings.Builder
}

func (f *flattener) write(s string) {
	f.out.WriteString(s)
	if f.inTitle {
		f.titleText.WriteString(s)
	}
}

func (f *flattener) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if node.Level == 1 && f.title == "" {
			if entering {
				f.inTitle = true
			} else {
				f.inTitle = false
				f.title = strings.TrimSpace(f.titleText.String())
			}
		}
	case *ast.Text:
		if entering {
			f.write(string(node.Segment.Value(f.source)))
			switch {
			case node.HardLineBreak():
				f.write("\n")
			case node.SoftLineBreak():
				f.write(" ")
			}
		}
		return ast.WalkContinue, nil
	case *ast.String:
		if entering {
			f.write(string(node.Value))
		}
		return ast.WalkContinue, nil
	case *ast.AutoLink:
		if entering {
			f.write(string(node.Label(f.source)))
		}
		return ast.WalkSkipChildren, nil
	case *ast.CodeBlock, *ast.FencedCodeBlock:
		if entering {
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				f.write(string(seg.Value(f.source)))
			}
		}
	case *ast.RawHTML, *ast.HTMLBlock, *ast.Image:
		return ast.WalkSkipChildren, nil
	case *extast.TableCell:
		if !entering {
			f.write(" ")
		}
		return ast.WalkContinue, nil
	case *extast.TableRow, *extast.TableHeader:
		if !entering {
			f.write("\n")
		}
		return ast.WalkContinue, nil
	}

	if !entering && n.Type() == ast.TypeBlock {
		f.write("\n\n")
	}
	return ast.WalkContinue, nil
}

// text trims lines and collapses blank-line runs.
func (f *flattener) text() string {
	lines := strings.Split(f.out.String(), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func titleFromPath(uri string) string {
	filename := path.Base(uri)
	filename = strings.TrimSuffix(filename, path.Ext(filename))
	filename = strings.ReplaceAll(filename, "_", " ")
	return strings.ReplaceAll(filename, "-", " ")
}
