package kinds

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

func arrayOf(elem *Kind) *Kind {
	k := &Kind{
		Name:     elem.Name + ArraySuffix,
		Category: Array,
		Elem:     elem,
		Ranged:   elem.Ranged,
		Sized:    elem.Sized,
		sqlType:  func(f models.TypeField) string { return elem.sqlType(f) + "[]" },
	}
	k.coerce = func(v any) (any, error) {
		items, err := toSlice(v)
		if err != nil {
			return nil, err
		}
		return mapElements(items, elem.Coerce)
	}
	k.fromDriver = func(v any) (any, error) {
		items, err := toSlice(v)
		if err != nil {
			return nil, err
		}
		return mapElements(items, elem.FromDriver)
	}
	k.toDriver = func(v any) any {
		return elem.sliceOf(v.([]any))
	}
	k.literal = func(v any) string {
		items := v.([]any)
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = elem.Literal(item)
		}
		return "ARRAY[" + strings.Join(parts, ",") + "]::" + elem.sqlType(models.TypeField{}) + "[]"
	}
	return k
}

func mapElements(items []any, conv func(any) (any, error)) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		v, err := conv(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// toSlice accepts []any, any typed slice, or the JSON text of an array.
func toSlice(v any) ([]any, error) {
	switch v := v.(type) {
	case []any:
		return v, nil
	case []byte:
		return nil, fmt.Errorf("cannot convert bytes to array")
	case json.RawMessage:
		return unmarshalArray(v)
	case string:
		return unmarshalArray([]byte(v))
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("cannot convert %T to array", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		e := rv.Index(i)
		if e.Kind() == reflect.Pointer {
			if e.IsNil() {
				continue
			}
			e = e.Elem()
		}
		out[i] = e.Interface()
	}
	return out, nil
}

func unmarshalArray(data []byte) ([]any, error) {
	var items []any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("not a JSON array: %w", err)
	}
	return items, nil
}
