// Package transfer reads and writes the export file format: a msgpack stream
// of type definitions, each followed by the objects exported with it.
package transfer

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/ekaya-typestore/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-typestore/pkg/kinds"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

// Format identifies export files; Version is bumped on incompatible changes.
const (
	Format  = "typestore"
	Version = 1
)

const (
	tagType   = "type"
	tagObject = "object"
	tagEnd    = "end"
)

type header struct {
	Format  string `json:"format"`
	Version int    `json:"version"`
}

// record is one frame of the stream. Exactly one payload is set, matching Tag.
type record struct {
	Tag    string     `json:"tag"`
	Type   *typeDoc   `json:"type,omitempty"`
	Object *objectDoc `json:"object,omitempty"`
}

type namedField struct {
	Name  string           `json:"name"`
	Field models.TypeField `json:"field"`
}

type namedIndex struct {
	Name  string           `json:"name"`
	Index models.TypeIndex `json:"index"`
}

// typeDoc keeps fields and indexes as lists so their order survives.
type typeDoc struct {
	Name    string       `json:"name"`
	Fields  []namedField `json:"fields"`
	Indexes []namedIndex `json:"indexes,omitempty"`
	Create  time.Time    `json:"create"`
	Alter   time.Time    `json:"alter"`
	Objects bool         `json:"objects"`
}

type objectDoc struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Create time.Time      `json:"create"`
	Update time.Time      `json:"update"`
	Backup bool           `json:"backup,omitempty"`
	Fields map[string]any `json:"fields"`
}

func newTypeDoc(t *models.Type, objects bool) *typeDoc {
	doc := &typeDoc{Name: t.Name, Create: t.Create, Alter: t.Alter, Objects: objects}
	for _, name := range t.FieldNames() {
		f, _ := t.Field(name)
		doc.Fields = append(doc.Fields, namedField{Name: name, Field: f})
	}
	for _, name := range t.IndexNames() {
		idx, _ := t.Index(name)
		doc.Indexes = append(doc.Indexes, namedIndex{Name: name, Index: idx})
	}
	return doc
}

func (d *typeDoc) toType() *models.Type {
	t := models.NewType(d.Name)
	t.Create = d.Create.UTC()
	t.Alter = d.Alter.UTC()
	for _, f := range d.Fields {
		t.WithField(f.Name, f.Field)
	}
	for _, idx := range d.Indexes {
		t.WithIndex(idx.Name, idx.Index)
	}
	return t
}

func newObjectDoc(t *models.Type, obj *models.Object) *objectDoc {
	doc := &objectDoc{
		Type:   obj.Type,
		ID:     obj.ID,
		Create: obj.Create,
		Update: obj.Update,
		Backup: obj.Backup,
		Fields: make(map[string]any, len(obj.Fields)),
	}
	for name, v := range obj.Fields {
		var k *kinds.Kind
		if f, ok := t.Field(name); ok {
			k, _ = kinds.Lookup(f.Type)
		}
		doc.Fields[name] = encodeValue(k, v)
	}
	return doc
}

// toObject coerces every wire value back into the normalized form of its field.
func (d *objectDoc) toObject(t *models.Type) (*models.Object, error) {
	obj := &models.Object{
		Type:   d.Type,
		ID:     d.ID,
		Create: d.Create.UTC(),
		Update: d.Update.UTC(),
		Backup: d.Backup,
		Fields: make(map[string]any, len(d.Fields)),
	}
	for name, v := range d.Fields {
		f, ok := t.Field(name)
		if !ok || v == nil {
			obj.Fields[name] = v
			continue
		}
		k, ok := kinds.Lookup(f.Type)
		if !ok {
			id, _ := jsonutil.FlexibleString(v)
			obj.Fields[name] = id
			continue
		}
		n, err := k.Coerce(v)
		if err != nil {
			return nil, err
		}
		obj.Fields[name] = n
	}
	return obj, nil
}

// encodeValue maps a normalized value onto a msgpack-friendly form that the
// kind's Coerce accepts back. k is nil for references and unknown fields.
func encodeValue(k *kinds.Kind, v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case *models.ObjectRef:
		return v.ID
	case decimal.Decimal:
		return v.String()
	case time.Duration:
		return time.Time{}.Add(v).Format("15:04:05.999999")
	case json.RawMessage:
		return string(v)
	case *models.File:
		m := map[string]any{
			kinds.AttrName:        v.Name,
			kinds.AttrContent:     v.Content,
			kinds.AttrContentType: v.ContentType,
		}
		if v.Thumbnail != nil {
			m[kinds.AttrThumbnail] = v.Thumbnail
		}
		if v.Text != "" {
			m[kinds.AttrText] = v.Text
		}
		return m
	case []any:
		var elem *kinds.Kind
		if k != nil {
			elem = k.Elem
		}
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = encodeValue(elem, item)
		}
		return out
	}
	return v
}
