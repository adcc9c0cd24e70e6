package transfer

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

// Writer encodes types and objects onto an export stream. Objects must follow
// the type they belong to; Close writes the end marker.
type Writer struct {
	enc   *msgpack.Encoder
	types map[string]*models.Type
}

// NewWriter writes the stream header to w.
func NewWriter(w io.Writer) (*Writer, error) {
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(header{Format: Format, Version: Version}); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return &Writer{enc: enc, types: make(map[string]*models.Type)}, nil
}

// WriteType writes a type definition. withObjects tells readers that objects
// of the type follow.
func (w *Writer) WriteType(t *models.Type, withObjects bool) error {
	w.types[t.Name] = t
	if err := w.enc.Encode(record{Tag: tagType, Type: newTypeDoc(t, withObjects)}); err != nil {
		return fmt.Errorf("failed to write type %s: %w", t.Name, err)
	}
	return nil
}

// WriteObject writes an object of a type already written.
func (w *Writer) WriteObject(obj *models.Object) error {
	t, ok := w.types[obj.Type]
	if !ok {
		return fmt.Errorf("object %s of type %s written before its type", obj.ID, obj.Type)
	}
	if err := w.enc.Encode(record{Tag: tagObject, Object: newObjectDoc(t, obj)}); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", obj.Type, obj.ID, err)
	}
	return nil
}

// Close writes the end marker. It does not close the underlying writer.
func (w *Writer) Close() error {
	if err := w.enc.Encode(record{Tag: tagEnd}); err != nil {
		return fmt.Errorf("failed to write end marker: %w", err)
	}
	return nil
}

// CopyTypes writes every type of stream with its objects and returns how
// many of each were written.
func (w *Writer) CopyTypes(stream models.TypeStream) (types, objects int64, err error) {
	for stream.Next() {
		t := stream.Type()
		objs := stream.Objects()
		if err := w.WriteType(t, objs != nil); err != nil {
			return types, objects, err
		}
		types++
		if objs == nil {
			continue
		}
		n, err := w.CopyObjects(objs)
		objects += n
		if err != nil {
			return types, objects, err
		}
	}
	return types, objects, stream.Err()
}

// CopyObjects writes every object of stream and closes it.
func (w *Writer) CopyObjects(stream models.ObjectStream) (n int64, err error) {
	defer func() {
		if cerr := stream.Close(); err == nil {
			err = cerr
		}
	}()
	for stream.Next() {
		if err := w.WriteObject(stream.Object()); err != nil {
			return n, err
		}
		n++
	}
	return n, stream.Err()
}
