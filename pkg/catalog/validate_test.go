package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

func TestValidateType(t *testing.T) {
	require.NoError(t, ValidateType(invoice()))
}

func TestValidateField(t *testing.T) {
	tests := []struct {
		name  string
		field string
		f     models.TypeField
		key   string
	}{
		{"reserved", "udate", models.TypeField{Type: "text"}, apperrors.KeyReservedName},
		{"bad name", "Total", models.TypeField{Type: "text"}, apperrors.KeyInvalidName},
		{"empty kind", "total", models.TypeField{}, apperrors.KeyInvalidFieldType},
		{"reference array", "tags", models.TypeField{Type: "tag[]"}, apperrors.KeyInvalidFieldType},
		{"bad reference name", "owner", models.TypeField{Type: "Some Type"}, apperrors.KeyInvalidFieldType},
		{"range on text", "note", models.TypeField{Type: "text", Min: models.StringPtr("a")}, apperrors.KeyInvalidValue},
		{"unparseable bound", "amount", models.TypeField{Type: "int32", Max: models.StringPtr("lots")}, apperrors.KeyInvalidValue},
		{"scale above precision", "amount", models.TypeField{Type: "numeric", Precision: models.IntPtr(4), Scale: models.IntPtr(6)}, apperrors.KeyInvalidValue},
		{"zero length", "code", models.TypeField{Type: "string", Length: models.IntPtr(0)}, apperrors.KeyInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateField(tt.field, tt.f)
			require.ErrorIs(t, err, apperrors.ErrValidation)
			key, _, _ := apperrors.KeyOf(err)
			assert.Equal(t, tt.key, key)
		})
	}

	assert.NoError(t, ValidateField("due", models.TypeField{Type: "date", Min: models.StringPtr("2020-01-01"), Max: models.StringPtr("today")}))
	assert.NoError(t, ValidateField("owner", models.TypeField{Type: "customer"}))
}

func TestValidateIndex(t *testing.T) {
	typ := invoice()
	tests := []struct {
		name  string
		index string
		idx   models.TypeIndex
		kind  error
		key   string
	}{
		{"empty fields", "i", models.TypeIndex{Mode: models.IndexPlain}, apperrors.ErrValidation, apperrors.KeyEmptyIndexFields},
		{"unknown mode", "i", models.TypeIndex{Mode: "hash", Fields: []string{"note"}}, apperrors.ErrValidation, apperrors.KeyInvalidValue},
		{"duplicate field", "i", models.TypeIndex{Mode: models.IndexPlain, Fields: []string{"note", "note"}}, apperrors.ErrValidation, apperrors.KeyDuplicateField},
		{"missing field", "i", models.TypeIndex{Mode: models.IndexPlain, Fields: []string{"missing"}}, apperrors.ErrNotFound, apperrors.KeyFieldNotFound},
		{"full-text on numeric", "i", models.TypeIndex{Mode: models.IndexFullText, Fields: []string{"amount"}}, apperrors.ErrValidation, apperrors.KeyInvalidFieldType},
		{"full-text on implicit", "i", models.TypeIndex{Mode: models.IndexFullText, Fields: []string{"id"}}, apperrors.ErrValidation, apperrors.KeyInvalidFieldType},
		{"plain on composite", "i", models.TypeIndex{Mode: models.IndexPlain, Fields: []string{"scan"}}, apperrors.ErrValidation, apperrors.KeyInvalidFieldType},
		{"physical name too long", "an_index_name_long_enough_to_overflow_the_identifier_limit_x", models.TypeIndex{Mode: models.IndexPlain, Fields: []string{"note"}}, apperrors.ErrValidation, apperrors.KeyInvalidName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIndex(typ, tt.index, tt.idx)
			require.ErrorIs(t, err, tt.kind)
			key, _, _ := apperrors.KeyOf(err)
			assert.Equal(t, tt.key, key)
		})
	}
}
