package models

// TypePolicy decides what import does when a type already exists.
type TypePolicy string

const (
	TypeAbort  TypePolicy = "abort"
	TypeIgnore TypePolicy = "ignore"
	TypeAlter  TypePolicy = "alter"
)

// ObjectPolicy decides what import does when an object already exists.
type ObjectPolicy string

const (
	ObjectAbort  ObjectPolicy = "abort"
	ObjectIgnore ObjectPolicy = "ignore"
	ObjectUpdate ObjectPolicy = "update"
)

// ParseTypePolicy validates a type conflict policy name.
func ParseTypePolicy(s string) (TypePolicy, bool) {
	switch p := TypePolicy(s); p {
	case TypeAbort, TypeIgnore, TypeAlter:
		return p, true
	}
	return "", false
}

// ParseObjectPolicy validates an object conflict policy name.
func ParseObjectPolicy(s string) (ObjectPolicy, bool) {
	switch p := ObjectPolicy(s); p {
	case ObjectAbort, ObjectIgnore, ObjectUpdate:
		return p, true
	}
	return "", false
}

// ObjectStream is a forward-only sequence of objects. Close must be called on
// every exit path; it releases the backing cursor.
type ObjectStream interface {
	Next() bool
	Object() *Object
	Err() error
	Close() error
}

// TypeStream is a forward-only sequence of type definitions, each optionally
// paired with the stream of its objects.
type TypeStream interface {
	Next() bool
	Type() *Type
	// Objects returns the objects of the current type, or nil when the stream carries none.
	Objects() ObjectStream
	Err() error
	Close() error
}

// ImportResult counts what an import did.
type ImportResult struct {
	CreatedTypes   []string         `json:"created_types,omitempty"`
	AlteredTypes   []string         `json:"altered_types,omitempty"`
	IgnoredTypes   []string         `json:"ignored_types,omitempty"`
	Alterations    []*AlterResult   `json:"alterations,omitempty"`
	InsertedCount  int64            `json:"inserted_count"`
	UpdatedCount   int64            `json:"updated_count"`
	IgnoredCount   int64            `json:"ignored_count"`
	ObjectsPerType map[string]int64 `json:"objects_per_type,omitempty"`
}

// NewImportResult returns an empty result.
func NewImportResult() *ImportResult {
	return &ImportResult{ObjectsPerType: make(map[string]int64)}
}

// SliceObjectStream serves objects from memory.
type SliceObjectStream struct {
	objects []*Object
	pos     int
}

// NewSliceObjectStream returns a stream over objects.
func NewSliceObjectStream(objects ...*Object) *SliceObjectStream {
	return &SliceObjectStream{objects: objects, pos: -1}
}

func (s *SliceObjectStream) Next() bool {
	if s.pos+1 >= len(s.objects) {
		s.pos = len(s.objects)
		return false
	}
	s.pos++
	return true
}

func (s *SliceObjectStream) Object() *Object {
	if s.pos < 0 || s.pos >= len(s.objects) {
		return nil
	}
	return s.objects[s.pos]
}

func (s *SliceObjectStream) Err() error   { return nil }
func (s *SliceObjectStream) Close() error { return nil }

// TypeEntry pairs a type with its objects for SliceTypeStream.
type TypeEntry struct {
	Type    *Type
	Objects []*Object
}

// SliceTypeStream serves types and their objects from memory.
type SliceTypeStream struct {
	entries []TypeEntry
	pos     int
}

// NewSliceTypeStream returns a stream over entries.
func NewSliceTypeStream(entries ...TypeEntry) *SliceTypeStream {
	return &SliceTypeStream{entries: entries, pos: -1}
}

func (s *SliceTypeStream) Next() bool {
	if s.pos+1 >= len(s.entries) {
		s.pos = len(s.entries)
		return false
	}
	s.pos++
	return true
}

func (s *SliceTypeStream) Type() *Type {
	if s.pos < 0 || s.pos >= len(s.entries) {
		return nil
	}
	return s.entries[s.pos].Type
}

func (s *SliceTypeStream) Objects() ObjectStream {
	if s.pos < 0 || s.pos >= len(s.entries) || s.entries[s.pos].Objects == nil {
		return nil
	}
	return NewSliceObjectStream(s.entries[s.pos].Objects...)
}

func (s *SliceTypeStream) Err() error   { return nil }
func (s *SliceTypeStream) Close() error { return nil }
