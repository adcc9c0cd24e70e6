// Package kinds is the closed catalog of field kinds. Each kind carries its SQL
// column type, the conversion of untyped input into a normalized Go value, the
// conversion between normalized values and pgx driver values, default parsing,
// SQL literal rendering and, for ranged kinds, ordering.
//
// Normalized values are what objects carry in memory:
//
//	binary           []byte
//	boolean          bool
//	text-like        string
//	json             json.RawMessage
//	int16/32/64      int16/int32/int64
//	float32/64       float32/float64
//	numeric          decimal.Decimal
//	date, datetime*  time.Time
//	time             time.Duration since midnight
//	uuid, inet       string
//	arrays           []any of element values
//	composites       *models.File
//
// Field kinds missing from the catalog name another type and denote a reference.
package kinds

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

// Category groups kinds by storage shape.
type Category int

const (
	Scalar Category = iota
	Array
	Composite
)

var (
	// ErrInvalidValue is wrapped by every conversion failure.
	ErrInvalidValue = errors.New("invalid value")
	// ErrOutOfRange is wrapped by range and length check failures.
	ErrOutOfRange = errors.New("out of range")
)

// ValueError reports a value a kind could not accept.
type ValueError struct {
	Kind  string
	Value any
	Err   error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Kind, e.Value, e.Err)
}

func (e *ValueError) Unwrap() []error {
	if errors.Is(e.Err, ErrOutOfRange) {
		return []error{e.Err}
	}
	return []error{ErrInvalidValue, e.Err}
}

// Kind is one variant of the catalog.
type Kind struct {
	Name     string
	Category Category
	// Elem is the element kind of an array kind.
	Elem *Kind
	// Ranged kinds accept min/max bounds.
	Ranged bool
	// Sized kinds are length-checked against TypeField.Length.
	Sized bool
	// Text kinds may take part in full-text indexes and pattern filters without a cast.
	Text bool

	sqlType    func(f models.TypeField) string
	coerce     func(v any) (any, error)
	parse      func(s string) (any, error)
	toDriver   func(v any) any
	fromDriver func(v any) (any, error)
	literal    func(v any) string
	compare    func(a, b any) int
	sliceOf    func(vals []any) any
}

// Primitive kind names.
const (
	Binary     = "binary"
	Boolean    = "boolean"
	Char       = "char"
	String     = "string"
	Text       = "text"
	HTML       = "html"
	XML        = "xml"
	JSON       = "json"
	Int16      = "int16"
	Int32      = "int32"
	Int64      = "int64"
	Float32    = "float32"
	Float64    = "float64"
	Numeric    = "numeric"
	Date       = "date"
	Time       = "time"
	DateTime   = "datetime"
	DateTimeTZ = "datetimetz"
	UUID       = "uuid"
	Password   = "password"
	Email      = "email"
	URL        = "url"
	Tel        = "tel"
	Color      = "color"
	Inet       = "inet"
	TimeZone   = "timezone"

	File     = "file"
	Image    = "image"
	Document = "document"
	Audio    = "audio"
	Video    = "video"
)

// ArraySuffix marks array kinds.
const ArraySuffix = "[]"

var catalog = map[string]*Kind{}

func register(k *Kind) {
	catalog[k.Name] = k
}

func init() {
	for _, k := range scalarKinds() {
		register(k)
	}
	for _, k := range compositeKinds() {
		register(k)
	}
	for _, k := range scalarKinds() {
		if k.Name == Password {
			continue
		}
		register(arrayOf(catalog[k.Name]))
	}
}

// Lookup returns the kind named name.
func Lookup(name string) (*Kind, bool) {
	k, ok := catalog[name]
	return k, ok
}

// IsPrimitive reports whether name is a catalog kind rather than a reference.
func IsPrimitive(name string) bool {
	_, ok := catalog[name]
	return ok
}

// IsReference reports whether a field of this kind references another type.
func IsReference(name string) bool {
	return !IsPrimitive(name)
}

// IsComposite reports whether name is a composite binary kind.
func IsComposite(name string) bool {
	k, ok := catalog[name]
	return ok && k.Category == Composite
}

// Names returns every catalog kind, sorted.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SQLType renders the column type for a field of this kind.
func (k *Kind) SQLType(f models.TypeField) string {
	return k.sqlType(f)
}

// Coerce converts untyped input into the kind's normalized value. Nil stays nil.
func (k *Kind) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	out, err := k.coerce(v)
	if err != nil {
		return nil, k.wrap(v, err)
	}
	return out, nil
}

// Parse converts a textual default into a normalized value.
func (k *Kind) Parse(s string) (any, error) {
	parse := k.parse
	if parse == nil {
		parse = func(s string) (any, error) { return k.coerce(s) }
	}
	out, err := parse(s)
	if err != nil {
		return nil, k.wrap(s, err)
	}
	return out, nil
}

// ToDriver converts a normalized value into a pgx query argument.
func (k *Kind) ToDriver(v any) any {
	if v == nil || k.toDriver == nil {
		return v
	}
	return k.toDriver(v)
}

// FromDriver normalizes a value scanned by pgx.
func (k *Kind) FromDriver(v any) (any, error) {
	if v == nil || k.fromDriver == nil {
		return v, nil
	}
	out, err := k.fromDriver(v)
	if err != nil {
		return nil, k.wrap(v, err)
	}
	return out, nil
}

// Literal renders a normalized value as an SQL literal.
func (k *Kind) Literal(v any) string {
	if v == nil {
		return "NULL"
	}
	return k.literal(v)
}

// Compare orders two normalized values of a ranged kind.
func (k *Kind) Compare(a, b any) int {
	return k.compare(a, b)
}

// CheckRange verifies a normalized value lies within the optional textual bounds.
func (k *Kind) CheckRange(v any, min, max *string) error {
	if v == nil || !k.Ranged || (min == nil && max == nil) {
		return nil
	}
	if k.Category == Array {
		for _, item := range v.([]any) {
			if err := k.Elem.CheckRange(item, min, max); err != nil {
				return err
			}
		}
		return nil
	}
	if min != nil {
		lo, err := k.Parse(*min)
		if err != nil {
			return err
		}
		if k.compare(v, lo) < 0 {
			return k.wrap(v, fmt.Errorf("%w: below %s", ErrOutOfRange, *min))
		}
	}
	if max != nil {
		hi, err := k.Parse(*max)
		if err != nil {
			return err
		}
		if k.compare(v, hi) > 0 {
			return k.wrap(v, fmt.Errorf("%w: above %s", ErrOutOfRange, *max))
		}
	}
	return nil
}

// CheckLength verifies a text value fits the field's declared length.
func (k *Kind) CheckLength(v any, f models.TypeField) error {
	if v == nil || !k.Sized || f.Length == nil {
		return nil
	}
	if k.Category == Array {
		for _, item := range v.([]any) {
			if err := k.Elem.CheckLength(item, f); err != nil {
				return err
			}
		}
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	if n := len([]rune(s)); n > *f.Length {
		return k.wrap(v, fmt.Errorf("%w: length %d exceeds %d", ErrOutOfRange, n, *f.Length))
	}
	return nil
}

func (k *Kind) wrap(v any, err error) error {
	var ve *ValueError
	if errors.As(err, &ve) {
		return err
	}
	return &ValueError{Kind: k.Name, Value: v, Err: err}
}

// ElemName strips the array suffix from name.
func ElemName(name string) (string, bool) {
	return strings.CutSuffix(name, ArraySuffix)
}
