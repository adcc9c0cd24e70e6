package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettings_TypeSettingsMergesLimits(t *testing.T) {
	s := &Settings{
		Pagination: LimitSettings{Default: 50, Max: 500},
		Types: map[string]TypeSettings{
			"invoice": {Name: "number", Limit: LimitSettings{Default: 10}},
		},
	}

	inv := s.TypeSettings("invoice")
	assert.Equal(t, LimitSettings{Default: 10, Min: DefaultMin, Max: 500}, inv.Limit)
	assert.Equal(t, "number", inv.NameExpression())

	other := s.TypeSettings("customer")
	assert.Equal(t, LimitSettings{Default: 50, Min: DefaultMin, Max: 500}, other.Limit)
	assert.Equal(t, ColumnID, other.NameExpression())
}

func TestSettings_ZeroValueUsesDefaults(t *testing.T) {
	s := &Settings{}
	assert.Equal(t, LimitSettings{Default: DefaultLimit, Min: DefaultMin, Max: DefaultMax}, s.TypeSettings("x").Limit)
}
