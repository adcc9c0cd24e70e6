package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
)

func TestExtractParameters(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		want     []string
	}{
		{"none", "total * 2 AS doubled", nil},
		{"single", "total > {{min}}", []string{"min"}},
		{"deduplicated in order", "total > {{min}} AND total < {{max}} OR total = {{min}}", []string{"min", "max"}},
		{"underscore names", "{{_a}} + {{b_2}}", []string{"_a", "b_2"}},
		{"invalid names ignored", "{{1abc}} {{a-b}} {{ x }}", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractParameters(tt.fragment))
		})
	}
}

func TestFindParametersInStringLiterals(t *testing.T) {
	assert.Equal(t, []string{"name"}, FindParametersInStringLiterals("SELECT 'Hello {{name}}'"))
	assert.Empty(t, FindParametersInStringLiterals("name = {{name}}"))
	assert.Empty(t, FindParametersInStringLiterals("'it''s' || {{name}}"))
}

func TestBuilder_Fragment(t *testing.T) {
	b := NewBuilder()
	b.Write("WHERE x = ").Param("first").Write(" AND ")

	err := b.Fragment("total > {{min}} OR total = {{min}} OR label = {{label}}",
		map[string]any{"min": 10, "label": "a"})
	require.NoError(t, err)
	assert.Equal(t, "WHERE x = $1 AND total > $2 OR total = $2 OR label = $3", b.String())
	assert.Equal(t, []any{"first", 10, "a"}, b.Args())
}

func TestBuilder_FragmentErrors(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		values   map[string]any
	}{
		{"missing value", "total > {{min}}", nil},
		{"unused value", "total > 0", map[string]any{"min": 1}},
		{"placeholder in literal", "label = '{{min}}'", map[string]any{"min": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewBuilder().Fragment(tt.fragment, tt.values)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}
