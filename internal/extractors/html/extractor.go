package html

import (
	"context"
	"html"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles HTML documents.
type Extractor struct{}

// New creates a new HTML extractor.
func New() *Extractor {
	return &Extractor{}
}

// Formats returns the formats this extractor handles.
func (e *Extractor) Formats() []domain.Format {
	return []domain.Format{domain.FormatHTML}
}

// Extract converts an HTML document to text.
func (e *Extractor) Extract(ctx context.Context, in driven.ExtractInput) (*driven.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw := decode(in.Content)

	metadata := map[string]string{
		"title": extractHTMLTitle(raw, in.Path),
	}
	if m := langAttr.FindStringSubmatch(raw); len(m) > 1 {
		metadata["lang"] = strings.ToLower(m[1])
	}

	return &driven.Extraction{
		Parts: []driven.Part{{Text: StripHTML(raw), Metadata: metadata}},
	}, nil
}

// decode transcodes legacy encodings (declared in a meta tag or sniffed)
// to UTF-8.
func decode(content []byte) string {
	enc, _, _ := charset.DetermineEncoding(content, "text/html")
	decoded, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		return strings.ToValidUTF8(string(content), "\uFFFD")
	}
	return string(decoded)
}

// Pre-compiled regular expressions for HTML parsing performance.
var (
	titleTag          = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	h1Tag             = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	langAttr          = regexp.MustCompile(`(?is)<html[^>]*\slang="([^"]+)"`)
	scriptTag         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag       = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag           = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag            = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	htmlComments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockElements     = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)>`)
	openBlockElements = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article)(\s[^>]*)?>`)
	brTags            = regexp.MustCompile(`(?i)<br\s*/?>`)
	hrTags            = regexp.MustCompile(`(?i)<hr\s*/?>`)
	cellTags          = regexp.MustCompile(`(?i)</t[dh]>`)
	allTags           = regexp.MustCompile(`<[^>]+>`)
	multiSpaces       = regexp.MustCompile(`[ \t\x{00A0}]+`)
	multiNewlines     = regexp.MustCompile(`\n{3,}`)
)

// extractHTMLTitle extracts a title from <title>, then <h1>, then the file name.
func extractHTMLTitle(content, uri string) string {
	for _, re := range []*regexp.Regexp{titleTag, h1Tag} {
		matches := re.FindStringSubmatch(content)
		if len(matches) > 1 {
			title := allTags.ReplaceAllString(matches[1], "")
			title = strings.TrimSpace(multiSpaces.ReplaceAllString(html.UnescapeString(title), " "))
			if title != "" {
				return title
			}
		}
	}

	filename := path.Base(uri)
	filename = strings.TrimSuffix(filename, path.Ext(filename))
	filename = strings.ReplaceAll(filename, "_", " ")
	return strings.ReplaceAll(filename, "-", " ")
}

// StripHTML removes HTML tags and extracts readable text content.
// Block elements become paragraph breaks, <br> becomes a line break.
func StripHTML(content string) string {
	// Remove script, style, noscript, head, and svg tags entirely
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = noscriptTag.ReplaceAllString(content, "")
	content = headTag.ReplaceAllString(content, "")
	content = svgTag.ReplaceAllString(content, "")
	content = htmlComments.ReplaceAllString(content, "")

	content = openBlockElements.ReplaceAllString(content, "\n\n")
	content = blockElements.ReplaceAllString(content, "\n\n")
	content = brTags.ReplaceAllString(content, "\n")
	content = hrTags.ReplaceAllString(content, "\n\n")
	content = cellTags.ReplaceAllString(content, " ")

	content = allTags.ReplaceAllString(content, "")
	content = html.UnescapeString(content)

	// Collapse multiple spaces (but preserve newlines)
	content = multiSpaces.ReplaceAllString(content, " ")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	content = strings.Join(lines, "\n")

	content = multiNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
