package services

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

// PIIPattern is a named regular expression matched against record text
// and metadata values.
type PIIPattern struct {
	Name string
	Expr string
}

// DefaultPIIFieldNames are metadata field names that identify a taxpayer.
// A metadata key is forbidden when one of them appears among its words
// ("nom_contribuable", "Adresse du contribuable") or, for names of at least
// minPrefixMatch letters, starts the key ("adressepostale", "telephonefixe").
var DefaultPIIFieldNames = []string{
	"nom", "prenom", "name", "firstname", "lastname",
	"adresse", "address", "email", "courriel", "telephone", "phone",
	"nir", "numerofiscal", "spi", "taxpayerid", "iban",
}

// DefaultPIIPatterns detect direct identifiers in free text.
var DefaultPIIPatterns = []PIIPattern{
	{Name: "email", Expr: `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`},
	{Name: "iban_fr", Expr: `\bFR\d{2}(?: ?[0-9A-Z]{4}){5} ?[0-9A-Z]{3}\b`},
	{Name: "nir", Expr: `\b[12] ?\d{2} ?(?:0[1-9]|1[0-2]|[2-9]\d) ?(?:\d{2}|2[AB]) ?\d{3} ?\d{3} ?\d{2}\b`},
	{Name: "numero_fiscal", Expr: `\b[0-3]\d{12}\b`},
}

// FieldNameRule is the rule name reported for a forbidden metadata field.
const FieldNameRule = "pii_field"

// minPrefixMatch is the shortest field name also matched as a key prefix.
// Shorter names ("nom", "nir", "spi") would catch "nomenclature" or "spirale".
const minPrefixMatch = 5

// fieldRule is one forbidden field name split into words.
type fieldRule struct {
	words  []string
	joined string
}

// matches reports whether key words contain the rule's words in sequence,
// or whether the joined key starts with the joined rule.
func (r fieldRule) matches(words []string) bool {
	for i := 0; i+len(r.words) <= len(words); i++ {
		if slices.Equal(words[i:i+len(r.words)], r.words) {
			return true
		}
	}
	return len(r.joined) >= minPrefixMatch && strings.HasPrefix(strings.Join(words, ""), r.joined)
}

type compiledPattern struct {
	name string
	re   *regexp.Regexp
}

// PIIGuard rejects records carrying re-identifying content. It never
// redacts: a match rejects the whole record.
type PIIGuard struct {
	fields   []fieldRule
	patterns []compiledPattern
}

// NewPIIGuard compiles the field names and patterns. Nil slices select
// the defaults; empty non-nil slices disable that check.
func NewPIIGuard(fieldNames []string, patterns []PIIPattern) (*PIIGuard, error) {
	if fieldNames == nil {
		fieldNames = DefaultPIIFieldNames
	}
	if patterns == nil {
		patterns = DefaultPIIPatterns
	}

	g := &PIIGuard{}
	for _, name := range fieldNames {
		if words := FieldWords(name); len(words) > 0 {
			g.fields = append(g.fields, fieldRule{words: words, joined: strings.Join(words, "")})
		}
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p.Expr)
		if err != nil {
			return nil, fmt.Errorf("%w: pii pattern %q: %w", domain.ErrInvalidInput, p.Name, err)
		}
		g.patterns = append(g.patterns, compiledPattern{name: p.Name, re: re})
	}
	return g, nil
}

// Check inspects metadata field names, then metadata values, then the text.
// Metadata keys are visited in sorted order so the reported rule is stable.
func (g *PIIGuard) Check(path string, rec *domain.NormalizedRecord) error {
	keys := make([]string, 0, len(rec.Metadata))
	for k := range rec.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		if strings.TrimSpace(rec.Metadata[k]) != "" && g.forbiddenField(k) {
			return &domain.ValidationError{Path: path, DocID: rec.DocID, Rule: FieldNameRule, Field: k}
		}
	}
	for _, k := range keys {
		for _, p := range g.patterns {
			if p.re.MatchString(rec.Metadata[k]) {
				return &domain.ValidationError{Path: path, DocID: rec.DocID, Rule: p.name, Field: k}
			}
		}
	}
	for _, p := range g.patterns {
		if p.re.MatchString(rec.Text) {
			return &domain.ValidationError{Path: path, DocID: rec.DocID, Rule: p.name}
		}
	}
	return nil
}

func (g *PIIGuard) forbiddenField(key string) bool {
	words := FieldWords(key)
	for _, rule := range g.fields {
		if rule.matches(words) {
			return true
		}
	}
	return false
}

// FieldWords splits a metadata key into comparable words: the part after
// the last ":" (so "column:Prénom" gives "prenom"), cut at spaces,
// punctuation and camelCase humps, lower-cased, without accents.
func FieldWords(key string) []string {
	if i := strings.LastIndex(key, ":"); i >= 0 {
		key = key[i+1:]
	}
	key = norm.NFD.String(key)

	var (
		words []string
		word  []rune
		prev  rune
	)
	flush := func() {
		if len(word) > 0 {
			words = append(words, string(word))
			word = word[:0]
		}
	}
	for _, r := range key {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		default:
			if unicode.IsUpper(r) && unicode.IsLower(prev) {
				flush()
			}
			word = append(word, unicode.ToLower(r))
		}
		prev = r
	}
	flush()
	return words
}

// FieldKey is the metadata key with its words joined: "Numero_Fiscal"
// gives "numerofiscal".
func FieldKey(key string) string {
	return strings.Join(FieldWords(key), "")
}
