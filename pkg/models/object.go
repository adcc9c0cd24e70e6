package models

import "time"

// RedactedPassword replaces stored password hashes in generic projections.
const RedactedPassword = "********"

// Object is one row of a type.
type Object struct {
	Type   string         `json:"type"`
	ID     string         `json:"id"`
	Create time.Time      `json:"create"`
	Update time.Time      `json:"update"`
	Backup bool           `json:"backup"`
	Fields map[string]any `json:"fields"`
}

// NewObject returns an object of the given type with an empty field map.
func NewObject(typeName, id string) *Object {
	return &Object{
		Type:   typeName,
		ID:     id,
		Fields: make(map[string]any),
	}
}

// Set assigns a field value and returns the object for chaining.
func (o *Object) Set(field string, value any) *Object {
	if o.Fields == nil {
		o.Fields = make(map[string]any)
	}
	o.Fields[field] = value
	return o
}

// ObjectRef is the projection of a reference field: the referenced identifier
// plus its display name resolved through the referenced type's name expression.
type ObjectRef struct {
	ID   string `json:"id" msgpack:"id"`
	Name string `json:"name,omitempty" msgpack:"name,omitempty"`
}

// File is the value of a composite binary field (file, image, document, audio, video).
// Thumbnail is only kept for images and Text only for documents.
type File struct {
	Name        string `json:"name" msgpack:"name"`
	Content     []byte `json:"content,omitempty" msgpack:"content,omitempty"`
	ContentType string `json:"content_type" msgpack:"content_type"`
	Thumbnail   []byte `json:"thumbnail,omitempty" msgpack:"thumbnail,omitempty"`
	Text        string `json:"text,omitempty" msgpack:"text,omitempty"`
}

// PasswordValue is the write-side value of a password field.
type PasswordValue struct {
	Current string `json:"current,omitempty"`
	New     string `json:"new"`
	Confirm string `json:"confirm"`
}

// Objects is one page of a search.
type Objects struct {
	Type   string    `json:"type"`
	Items  []*Object `json:"items"`
	Count  int64     `json:"count"`
	Offset int       `json:"offset"`
	Limit  int       `json:"limit"`
}

// Tuples is one page of a custom-fragment search.
type Tuples struct {
	Items  []Tuple `json:"items"`
	Count  int64   `json:"count"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
}
