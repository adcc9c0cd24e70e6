package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoiceType() *Type {
	return NewType("invoice").
		WithField("number", TypeField{Type: "string", Length: IntPtr(32), NotNull: true}).
		WithField("amount", TypeField{Type: "numeric", Precision: IntPtr(12), Scale: IntPtr(2), NotNull: true, Min: StringPtr("0"), Max: StringPtr("100000")}).
		WithField("customer", TypeField{Type: "customer"}).
		WithIndex("number", TypeIndex{Mode: IndexUnique, Fields: []string{"number"}}).
		WithIndex("search", TypeIndex{Mode: IndexFullText, Fields: []string{"number", "customer"}})
}

func TestType_FieldNamesKeepDeclarationOrder(t *testing.T) {
	typ := invoiceType()
	assert.Equal(t, []string{"number", "amount", "customer"}, typ.FieldNames())
	assert.Equal(t, []string{"number", "search"}, typ.IndexNames())
}

func TestType_IndexesWithField(t *testing.T) {
	typ := invoiceType()
	assert.Equal(t, []string{"number", "search"}, typ.IndexesWithField("number"))
	assert.Equal(t, []string{"search"}, typ.IndexesWithField("customer"))
	assert.Empty(t, typ.IndexesWithField("amount"))
}

func TestType_FullTextIndexes(t *testing.T) {
	indexes := invoiceType().FullTextIndexes()
	require.Len(t, indexes, 1)
	assert.Equal(t, []string{"number", "customer"}, indexes[0].Fields)
}

func TestType_CloneIsDeep(t *testing.T) {
	orig := invoiceType()
	clone := orig.Clone()

	f, _ := clone.Field("amount")
	*f.Max = "5"
	idx, _ := clone.Index("search")
	idx.Fields[0] = "changed"

	origField, _ := orig.Field("amount")
	assert.Equal(t, "100000", *origField.Max)
	origIdx, _ := orig.Index("search")
	assert.Equal(t, "number", origIdx.Fields[0])
}

func TestTypeField_SameStructure(t *testing.T) {
	base := TypeField{Type: "string", Length: IntPtr(10)}

	tests := []struct {
		name  string
		other TypeField
		want  bool
	}{
		{"identical", TypeField{Type: "string", Length: IntPtr(10)}, true},
		{"rename marker ignored", TypeField{Type: "string", Length: IntPtr(10), OldName: "x"}, true},
		{"kind", TypeField{Type: "text"}, false},
		{"length", TypeField{Type: "string", Length: IntPtr(20)}, false},
		{"length removed", TypeField{Type: "string"}, false},
		{"not null", TypeField{Type: "string", Length: IntPtr(10), NotNull: true}, false},
		{"range", TypeField{Type: "string", Length: IntPtr(10), Min: StringPtr("a")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.SameStructure(tt.other))
		})
	}
}

func TestTypeIndex_SameStructure(t *testing.T) {
	a := TypeIndex{Mode: IndexPlain, Fields: []string{"a", "b"}}
	assert.True(t, a.SameStructure(TypeIndex{Mode: IndexPlain, Fields: []string{"a", "b"}, OldName: "old"}))
	assert.False(t, a.SameStructure(TypeIndex{Mode: IndexUnique, Fields: []string{"a", "b"}}))
	assert.False(t, a.SameStructure(TypeIndex{Mode: IndexPlain, Fields: []string{"b", "a"}}))
	assert.False(t, a.SameStructure(TypeIndex{Mode: IndexPlain, Fields: []string{"a"}}))
}

func TestIsImplicitColumn(t *testing.T) {
	for _, name := range []string{"id", "cdate", "udate", "backup"} {
		assert.True(t, IsImplicitColumn(name), name)
	}
	assert.False(t, IsImplicitColumn("amount"))
}
