package models

import (
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Implicit columns present on every type's table.
const (
	ColumnID     = "id"
	ColumnCreate = "cdate"
	ColumnUpdate = "udate"
	ColumnBackup = "backup"
)

// IsImplicitColumn reports whether name is one of the columns every type carries.
func IsImplicitColumn(name string) bool {
	switch name {
	case ColumnID, ColumnCreate, ColumnUpdate, ColumnBackup:
		return true
	}
	return false
}

// FieldMap holds field descriptors in declaration order.
type FieldMap = orderedmap.OrderedMap[string, TypeField]

// IndexMap holds index descriptors in declaration order.
type IndexMap = orderedmap.OrderedMap[string, TypeIndex]

// Type is a user-defined entity mapped 1:1 to a table.
type Type struct {
	Name    string    `json:"name"`
	Fields  *FieldMap `json:"fields"`
	Indexes *IndexMap `json:"indexes"`
	Create  time.Time `json:"create"`
	Alter   time.Time `json:"alter"`
}

// NewType returns an empty type definition.
func NewType(name string) *Type {
	return &Type{
		Name:    name,
		Fields:  orderedmap.New[string, TypeField](),
		Indexes: orderedmap.New[string, TypeIndex](),
	}
}

// WithField appends (or replaces) a field and returns the type for chaining.
func (t *Type) WithField(name string, field TypeField) *Type {
	t.ensure()
	t.Fields.Set(name, field)
	return t
}

// WithIndex appends (or replaces) an index and returns the type for chaining.
func (t *Type) WithIndex(name string, index TypeIndex) *Type {
	t.ensure()
	t.Indexes.Set(name, index)
	return t
}

// Field returns the named field descriptor.
func (t *Type) Field(name string) (TypeField, bool) {
	if t.Fields == nil {
		return TypeField{}, false
	}
	return t.Fields.Get(name)
}

// Index returns the named index descriptor.
func (t *Type) Index(name string) (TypeIndex, bool) {
	if t.Indexes == nil {
		return TypeIndex{}, false
	}
	return t.Indexes.Get(name)
}

// FieldNames returns the field names in declaration order.
func (t *Type) FieldNames() []string {
	if t.Fields == nil {
		return nil
	}
	names := make([]string, 0, t.Fields.Len())
	for pair := t.Fields.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// IndexNames returns the index names in declaration order.
func (t *Type) IndexNames() []string {
	if t.Indexes == nil {
		return nil
	}
	names := make([]string, 0, t.Indexes.Len())
	for pair := t.Indexes.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// IndexesWithField returns the names of the indexes that include field.
func (t *Type) IndexesWithField(field string) []string {
	var names []string
	if t.Indexes == nil {
		return names
	}
	for pair := t.Indexes.Oldest(); pair != nil; pair = pair.Next() {
		for _, f := range pair.Value.Fields {
			if f == field {
				names = append(names, pair.Key)
				break
			}
		}
	}
	return names
}

// FullTextIndexes returns the full-text indexes of the type.
func (t *Type) FullTextIndexes() []TypeIndex {
	var indexes []TypeIndex
	if t.Indexes == nil {
		return indexes
	}
	for pair := t.Indexes.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Mode == IndexFullText {
			indexes = append(indexes, pair.Value)
		}
	}
	return indexes
}

// Clone returns a deep copy of the type.
func (t *Type) Clone() *Type {
	c := NewType(t.Name)
	c.Create = t.Create
	c.Alter = t.Alter
	if t.Fields != nil {
		for pair := t.Fields.Oldest(); pair != nil; pair = pair.Next() {
			c.Fields.Set(pair.Key, pair.Value.clone())
		}
	}
	if t.Indexes != nil {
		for pair := t.Indexes.Oldest(); pair != nil; pair = pair.Next() {
			idx := pair.Value
			idx.Fields = append([]string(nil), idx.Fields...)
			c.Indexes.Set(pair.Key, idx)
		}
	}
	return c
}

func (t *Type) ensure() {
	if t.Fields == nil {
		t.Fields = orderedmap.New[string, TypeField]()
	}
	if t.Indexes == nil {
		t.Indexes = orderedmap.New[string, TypeIndex]()
	}
}

// TypeField describes one column's logical type.
// Type is either a kind from the field catalog or the name of a referenced type.
type TypeField struct {
	Type      string  `json:"type"`
	Length    *int    `json:"length,omitempty"`
	Precision *int    `json:"precision,omitempty"`
	Scale     *int    `json:"scale,omitempty"`
	NotNull   bool    `json:"not_null"`
	Min       *string `json:"min,omitempty"`
	Max       *string `json:"max,omitempty"`
	OldName   string  `json:"old_name,omitempty"`
}

// SameStructure reports whether two descriptors map to the same column definition.
// OldName is a rename marker and does not take part in the comparison.
func (f TypeField) SameStructure(o TypeField) bool {
	return f.Type == o.Type &&
		equalInt(f.Length, o.Length) &&
		equalInt(f.Precision, o.Precision) &&
		equalInt(f.Scale, o.Scale) &&
		f.NotNull == o.NotNull &&
		equalString(f.Min, o.Min) &&
		equalString(f.Max, o.Max)
}

func (f TypeField) clone() TypeField {
	c := f
	c.Length = copyInt(f.Length)
	c.Precision = copyInt(f.Precision)
	c.Scale = copyInt(f.Scale)
	c.Min = copyString(f.Min)
	c.Max = copyString(f.Max)
	return c
}

// IndexMode is the kind of a secondary index.
type IndexMode string

const (
	IndexPlain    IndexMode = "index"
	IndexUnique   IndexMode = "unique"
	IndexFullText IndexMode = "fulltext"
)

// Valid reports whether m is a known mode.
func (m IndexMode) Valid() bool {
	switch m {
	case IndexPlain, IndexUnique, IndexFullText:
		return true
	}
	return false
}

// TypeIndex describes one secondary index.
type TypeIndex struct {
	Mode    IndexMode `json:"mode"`
	Fields  []string  `json:"fields"`
	OldName string    `json:"old_name,omitempty"`
}

// SameStructure reports whether two indexes have the same mode and field list.
func (i TypeIndex) SameStructure(o TypeIndex) bool {
	if i.Mode != o.Mode || len(i.Fields) != len(o.Fields) {
		return false
	}
	for n := range i.Fields {
		if i.Fields[n] != o.Fields[n] {
			return false
		}
	}
	return true
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// StringPtr returns a pointer to v.
func StringPtr(v string) *string {
	return &v
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
