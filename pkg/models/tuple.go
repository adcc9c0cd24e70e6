package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Tuple is a generic row projection: column names in result order mapped to
// normalized values.
type Tuple struct {
	columns *orderedmap.OrderedMap[string, any]
}

// NewTuple returns an empty tuple.
func NewTuple() Tuple {
	return Tuple{columns: orderedmap.New[string, any]()}
}

// Set appends or replaces a column value.
func (t Tuple) Set(column string, value any) {
	t.columns.Set(column, value)
}

// Get returns the value of a column and whether it is present.
func (t Tuple) Get(column string) (any, bool) {
	if t.columns == nil {
		return nil, false
	}
	return t.columns.Get(column)
}

// Value returns the value of a column, or nil.
func (t Tuple) Value(column string) any {
	v, _ := t.Get(column)
	return v
}

// Columns returns the column names in result order.
func (t Tuple) Columns() []string {
	if t.columns == nil {
		return nil
	}
	names := make([]string, 0, t.columns.Len())
	for pair := t.columns.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Len returns the number of columns.
func (t Tuple) Len() int {
	if t.columns == nil {
		return 0
	}
	return t.columns.Len()
}

// IsNull reports whether the column is absent or null.
func (t Tuple) IsNull(column string) bool {
	return t.Value(column) == nil
}

func (t Tuple) String(column string) (string, error) {
	switch v := t.Value(column).(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", columnTypeError(column, "string", v)
	}
}

func (t Tuple) Int64(column string) (int64, error) {
	switch v := t.Value(column).(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int:
		return int64(v), nil
	case decimal.Decimal:
		return v.IntPart(), nil
	default:
		return 0, columnTypeError(column, "int64", v)
	}
}

func (t Tuple) Float64(column string) (float64, error) {
	switch v := t.Value(column).(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case decimal.Decimal:
		return v.InexactFloat64(), nil
	default:
		return 0, columnTypeError(column, "float64", v)
	}
}

func (t Tuple) Decimal(column string) (decimal.Decimal, error) {
	switch v := t.Value(column).(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return v, nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		return decimal.NewFromString(v)
	default:
		return decimal.Zero, columnTypeError(column, "decimal", v)
	}
}

func (t Tuple) Bool(column string) (bool, error) {
	switch v := t.Value(column).(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	default:
		return false, columnTypeError(column, "bool", v)
	}
}

func (t Tuple) Time(column string) (time.Time, error) {
	switch v := t.Value(column).(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	default:
		return time.Time{}, columnTypeError(column, "time", v)
	}
}

func (t Tuple) Bytes(column string) ([]byte, error) {
	switch v := t.Value(column).(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, columnTypeError(column, "bytes", v)
	}
}

// MarshalJSON renders the tuple as an object, keeping column order.
func (t Tuple) MarshalJSON() ([]byte, error) {
	if t.columns == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(t.columns)
}

// DecodeTuples maps every tuple through decode, stopping at the first error.
func DecodeTuples[T any](tuples []Tuple, decode func(Tuple) (T, error)) ([]T, error) {
	out := make([]T, 0, len(tuples))
	for i, t := range tuples {
		v, err := decode(t)
		if err != nil {
			return nil, fmt.Errorf("failed to decode row %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func columnTypeError(column, want string, got any) error {
	return fmt.Errorf("column %q: cannot read %T as %s", column, got, want)
}
