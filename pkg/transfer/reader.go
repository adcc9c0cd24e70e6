package transfer

import (
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

// Reader decodes an export stream. It is a models.TypeStream: each type comes
// with the stream of its objects, and objects left unread are skipped when
// the reader advances. AllObjects reads the same stream as a flat sequence of
// objects instead; a Reader must be consumed one way only.
type Reader struct {
	dec     *msgpack.Decoder
	types   map[string]*models.Type
	pending *record

	cur     *models.Type
	objects *objectReader
	done    bool
	err     error
}

var _ models.TypeStream = (*Reader)(nil)

// NewReader reads and checks the stream header.
func NewReader(r io.Reader) (*Reader, error) {
	dec := msgpack.NewDecoder(r)
	dec.SetCustomStructTag("json")
	dec.UseLooseInterfaceDecoding(true)

	var h header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if h.Format != Format {
		return nil, fmt.Errorf("not a %s export stream", Format)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("unsupported export version %d", h.Version)
	}
	return &Reader{dec: dec, types: make(map[string]*models.Type)}, nil
}

func (r *Reader) read() (*record, error) {
	if rec := r.pending; rec != nil {
		r.pending = nil
		return rec, nil
	}
	var rec record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("export stream ends without end marker")
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	switch rec.Tag {
	case tagType:
		if rec.Type == nil {
			return nil, fmt.Errorf("type record without definition")
		}
		r.types[rec.Type.Name] = rec.Type.toType()
	case tagObject:
		if rec.Object == nil {
			return nil, fmt.Errorf("object record without object")
		}
	case tagEnd:
	default:
		return nil, fmt.Errorf("unknown record %q", rec.Tag)
	}
	return &rec, nil
}

func (r *Reader) object(doc *objectDoc) (*models.Object, error) {
	t, ok := r.types[doc.Type]
	if !ok {
		return nil, fmt.Errorf("object %s of type %s precedes its type", doc.ID, doc.Type)
	}
	obj, err := doc.toObject(t)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s %s: %w", doc.Type, doc.ID, err)
	}
	return obj, nil
}

func (r *Reader) Next() bool {
	if r.done || r.err != nil {
		return false
	}
	if r.objects != nil {
		r.objects.closed = true
		r.objects = nil
	}
	for {
		rec, err := r.read()
		if err != nil {
			r.err = err
			return false
		}
		switch rec.Tag {
		case tagEnd:
			r.done = true
			r.cur = nil
			return false
		case tagType:
			r.cur = r.types[rec.Type.Name]
			if rec.Type.Objects {
				r.objects = &objectReader{r: r, typeName: r.cur.Name}
			}
			return true
		}
		// Objects of the previous type the caller did not read.
	}
}

func (r *Reader) Type() *models.Type {
	return r.cur
}

func (r *Reader) Objects() models.ObjectStream {
	if r.objects == nil {
		return nil
	}
	return r.objects
}

func (r *Reader) Err() error {
	return r.err
}

// Close stops reading. It does not close the underlying reader.
func (r *Reader) Close() error {
	r.done = true
	return nil
}

// AllObjects returns every object of the stream in order, whatever its type.
func (r *Reader) AllObjects() models.ObjectStream {
	return &objectReader{r: r}
}

// objectReader streams object records until the next type record, or across
// type records when typeName is empty.
type objectReader struct {
	r        *Reader
	typeName string
	cur      *models.Object
	closed   bool
	err      error
}

func (o *objectReader) Next() bool {
	if o.closed || o.err != nil {
		return false
	}
	for {
		rec, err := o.r.read()
		if err != nil {
			o.err = err
			return false
		}
		switch rec.Tag {
		case tagObject:
			obj, err := o.r.object(rec.Object)
			if err != nil {
				o.err = err
				return false
			}
			if o.typeName != "" && obj.Type != o.typeName {
				o.err = fmt.Errorf("object %s of type %s inside the objects of %s", obj.ID, obj.Type, o.typeName)
				return false
			}
			o.cur = obj
			return true
		case tagType:
			if o.typeName == "" {
				continue
			}
		}
		o.r.pending = rec
		o.closed = true
		o.cur = nil
		return false
	}
}

func (o *objectReader) Object() *models.Object {
	return o.cur
}

func (o *objectReader) Err() error {
	return o.err
}

func (o *objectReader) Close() error {
	o.closed = true
	return nil
}
