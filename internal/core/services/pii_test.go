package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
)

func TestFieldKey(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{key: "nom", expected: "nom"},
		{key: "column:Prénom", expected: "prenom"},
		{key: "Numero_Fiscal", expected: "numerofiscal"},
		{key: "taxpayer-id", expected: "taxpayerid"},
		{key: "a:b:Adresse Postale", expected: "adressepostale"},
		{key: "title", expected: "title"},
	}

	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			assert.Equal(t, tc.expected, FieldKey(tc.key))
		})
	}
}

func TestFieldWords(t *testing.T) {
	tests := []struct {
		key      string
		expected []string
	}{
		{key: "column:Adresse du contribuable", expected: []string{"adresse", "du", "contribuable"}},
		{key: "nom_contribuable", expected: []string{"nom", "contribuable"}},
		{key: "numeroFiscal-Déclarant", expected: []string{"numero", "fiscal", "declarant"}},
		{key: "IBAN", expected: []string{"iban"}},
		{key: "__", expected: nil},
	}

	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			assert.Equal(t, tc.expected, FieldWords(tc.key))
		})
	}
}

func TestPIIGuard_FieldNameVariants(t *testing.T) {
	guard, err := NewPIIGuard(nil, nil)
	require.NoError(t, err)

	tests := []struct {
		column    string
		forbidden bool
	}{
		{column: "adresse", forbidden: true},
		{column: "adresse_postale", forbidden: true},
		{column: "Adresse du contribuable", forbidden: true},
		{column: "AdressePostale", forbidden: true},
		{column: "nom_contribuable", forbidden: true},
		{column: "Nom de naissance", forbidden: true},
		{column: "telephone_fixe", forbidden: true},
		{column: "Téléphone portable", forbidden: true},
		{column: "numero_fiscal_declarant", forbidden: true},
		{column: "first_name", forbidden: true},
		{column: "email-pro", forbidden: true},
		{column: "nomenclature", forbidden: false},
		{column: "spirale", forbidden: false},
		{column: "libelle", forbidden: false},
		{column: "taux_normal", forbidden: false},
	}

	for _, tc := range tests {
		t.Run(tc.column, func(t *testing.T) {
			rec := &domain.NormalizedRecord{
				DocID:    "stats/contribuables.csv#row-1",
				Text:     "code: A1 | valeur: 12 rue de la Paix 75002 Paris",
				Metadata: map[string]string{"column:" + tc.column: "12 rue de la Paix 75002 Paris"},
			}
			err := guard.Check("stats/contribuables.csv", rec)
			if !tc.forbidden {
				assert.NoError(t, err)
				return
			}
			var valErr *domain.ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, FieldNameRule, valErr.Rule)
			assert.Equal(t, "column:"+tc.column, valErr.Field)
		})
	}
}

func TestPIIGuard_Check(t *testing.T) {
	guard, err := NewPIIGuard(nil, nil)
	require.NoError(t, err)

	tests := []struct {
		name          string
		text          string
		metadata      map[string]string
		expectedRule  string
		expectedField string
	}{
		{
			name:     "clean record",
			text:     "Le taux de l'impôt est fixé à 11 %.",
			metadata: map[string]string{"title": "Barème", "column:taux": "11"},
		},
		{
			name:          "forbidden field name",
			text:          "ligne",
			metadata:      map[string]string{"column:Nom": "Dupont"},
			expectedRule:  FieldNameRule,
			expectedField: "column:Nom",
		},
		{
			name:     "forbidden field name with empty value passes",
			text:     "ligne",
			metadata: map[string]string{"column:nom": "  "},
		},
		{
			name:          "email in metadata value",
			text:          "ligne",
			metadata:      map[string]string{"contact": "jean.dupont@example.fr"},
			expectedRule:  "email",
			expectedField: "contact",
		},
		{
			name:         "email in text",
			text:         "Écrire à jean.dupont@example.fr pour toute question.",
			expectedRule: "email",
		},
		{
			name:         "french iban",
			text:         "Virement sur FR76 3000 6000 0112 3456 7890 189.",
			expectedRule: "iban_fr",
		},
		{
			name:         "nir",
			text:         "NIR 1 85 05 78 006 084 36",
			expectedRule: "nir",
		},
		{
			name:         "numero fiscal",
			text:         "Identifiant 1234567890123 déclaré",
			expectedRule: "numero_fiscal",
		},
		{
			name: "legal identifiers are not numero fiscal",
			text: "Article LEGIARTI000006308740 du code",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &domain.NormalizedRecord{DocID: "doc-1", Text: tc.text, Metadata: tc.metadata}
			err := guard.Check("src/file.csv", rec)
			if tc.expectedRule == "" {
				assert.NoError(t, err)
				return
			}

			var valErr *domain.ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tc.expectedRule, valErr.Rule)
			assert.Equal(t, tc.expectedField, valErr.Field)
			assert.Equal(t, "doc-1", valErr.DocID)
			assert.Equal(t, "src/file.csv", valErr.Path)
			assert.ErrorIs(t, err, domain.ErrPIIDetected)
		})
	}
}

func TestNewPIIGuard_Custom(t *testing.T) {
	guard, err := NewPIIGuard([]string{"secret"}, []PIIPattern{})
	require.NoError(t, err)

	assert.NoError(t, guard.Check("p", &domain.NormalizedRecord{
		Text:     "jean.dupont@example.fr",
		Metadata: map[string]string{"nom": "Dupont"},
	}), "defaults replaced by custom lists")

	assert.Error(t, guard.Check("p", &domain.NormalizedRecord{
		Metadata: map[string]string{"Secret": "x"},
	}))
	assert.Error(t, guard.Check("p", &domain.NormalizedRecord{
		Metadata: map[string]string{"column:secret_defense": "x"},
	}), "configured names match as words")
}

func TestNewPIIGuard_InvalidPattern(t *testing.T) {
	_, err := NewPIIGuard(nil, []PIIPattern{{Name: "bad", Expr: "("}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
