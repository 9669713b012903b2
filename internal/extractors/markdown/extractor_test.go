package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

func extract(t *testing.T, path, content string) driven.Part {
	t.Helper()
	result, err := New().Extract(context.Background(), driven.ExtractInput{
		Path:    path,
		Format:  domain.FormatMarkdown,
		Content: []byte(content),
	})
	require.NoError(t, err)
	require.Len(t, result.Parts, 1)
	return result.Parts[0]
}

func TestNew(t *testing.T) {
	assert.Equal(t, []domain.Format{domain.FormatMarkdown}, New().Formats())
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "heading and paragraphs",
			content:  "# Guide fiscal\n\nPremier **alinéa** du texte\nsur deux lignes.\n\nSecond alinéa.",
			expected: "Guide fiscal\n\nPremier alinéa du texte sur deux lignes.\n\nSecond alinéa.",
		},
		{
			name:     "links keep their text",
			content:  "Voir [l'article 197](https://legifrance.gouv.fr/a197).",
			expected: "Voir l'article 197.",
		},
		{
			name:     "list items become blocks",
			content:  "- un\n- deux",
			expected: "un\n\ndeux",
		},
		{
			name:     "images and raw html dropped",
			content:  "Texte ![schema](s.png) <span>x</span>",
			expected: "Texte  x",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, extract(t, "doc.md", tc.content).Text)
		})
	}
}

func TestExtract_Title(t *testing.T) {
	assert.Equal(t, "Guide fiscal", extract(t, "a.md", "intro\n\n# Guide *fiscal*\n\n# Autre").Metadata["title"])
	assert.Equal(t, "mon guide", extract(t, "docs/mon_guide.md", "pas de titre").Metadata["title"])
}
