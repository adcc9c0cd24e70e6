package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlterResult_Empty(t *testing.T) {
	r := NewAlterResult("invoice")
	assert.False(t, r.IsAltered())
	assert.Equal(t, "not altered", r.Summary())
	assert.Equal(t, "invoice: not altered", r.String())
}

func TestAlterResult_RenameCountsAsAltered(t *testing.T) {
	r := NewAlterResult("invoice")
	r.RenamedFields["amount"] = "total"
	r.DroppedIndexes = append(r.DroppedIndexes, "by_amount")

	assert.True(t, r.IsAltered())
	assert.Equal(t, "altered", r.Summary())
	assert.Contains(t, r.String(), "renamed fields: amount -> total")
	assert.Contains(t, r.String(), "dropped indexes: by_amount")
}
