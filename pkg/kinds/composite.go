package kinds

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/lib/pq"

	"github.com/ekaya-inc/ekaya-typestore/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

// CompositeTypePrefix prefixes the SQL composite type of every composite kind.
const CompositeTypePrefix = "typestore_"

// Composite attribute names.
const (
	AttrName        = "name"
	AttrContent     = "content"
	AttrContentType = "content_type"
	AttrThumbnail   = "thumbnail"
	AttrText        = "text"
)

func compositeKinds() []*Kind {
	names := []string{File, Image, Document, Audio, Video}
	out := make([]*Kind, 0, len(names))
	for _, name := range names {
		k := &Kind{
			Name:     name,
			Category: Composite,
			sqlType:  fixed(CompositeTypePrefix + name),
		}
		k.coerce = func(v any) (any, error) { return coerceFile(k, v) }
		k.parse = func(s string) (any, error) { return parseFile(k, s) }
		k.literal = func(v any) string { return compositeLiteral(k, v.(*models.File)) }
		out = append(out, k)
	}
	return out
}

// Attributes lists the composite type's attributes in declaration order.
func (k *Kind) Attributes() []string {
	attrs := []string{AttrName, AttrContent, AttrContentType}
	if extra := k.SecondaryAttribute(); extra != "" {
		attrs = append(attrs, extra)
	}
	return attrs
}

// SecondaryAttribute is the extra artifact of a composite kind: thumbnail for
// images, extracted text for documents, nothing otherwise.
func (k *Kind) SecondaryAttribute() string {
	switch k.Name {
	case Image:
		return AttrThumbnail
	case Document:
		return AttrText
	}
	return ""
}

// CompositeArgs returns the query arguments for ROW(...) in attribute order.
func (k *Kind) CompositeArgs(f *models.File) []any {
	args := []any{f.Name, f.Content, f.ContentType}
	switch k.SecondaryAttribute() {
	case AttrThumbnail:
		args = append(args, f.Thumbnail)
	case AttrText:
		args = append(args, f.Text)
	}
	return args
}

// AttributeSQLType is the SQL type of one composite attribute.
func AttributeSQLType(attr string) string {
	switch attr {
	case AttrContent, AttrThumbnail:
		return "bytea"
	}
	return "text"
}

// DetectContentType sniffs the media type of content, without parameters.
func DetectContentType(content []byte) string {
	mt := mimetype.Detect(content).String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

// ContentTypeAllowed reports whether contentType matches one of allowed,
// ignoring parameters. An empty allow-list accepts everything.
func ContentTypeAllowed(contentType string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	return mimetype.EqualsAny(contentType, allowed...)
}

func coerceFile(k *Kind, v any) (any, error) {
	var f models.File
	switch v := v.(type) {
	case *models.File:
		if v == nil {
			return nil, nil
		}
		f = *v
	case models.File:
		f = v
	case []byte:
		f = models.File{Content: v}
	case map[string]any:
		var err error
		if f, err = fileFromMap(v); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("cannot convert %T to %s", v, k.Name)
	}
	completeFile(k, &f)
	return &f, nil
}

func fileFromMap(m map[string]any) (models.File, error) {
	var f models.File
	for key, raw := range m {
		if raw == nil {
			continue
		}
		switch key {
		case AttrName, AttrContentType, AttrText:
			s, ok := jsonutil.FlexibleString(raw)
			if !ok {
				return f, fmt.Errorf("%s must be text", key)
			}
			switch key {
			case AttrName:
				f.Name = s
			case AttrContentType:
				f.ContentType = s
			default:
				f.Text = s
			}
		case AttrContent, AttrThumbnail:
			b, err := coerceBytes(raw)
			if err != nil {
				return f, fmt.Errorf("%s: %w", key, err)
			}
			if key == AttrContent {
				f.Content = b.([]byte)
			} else {
				f.Thumbnail = b.([]byte)
			}
		}
	}
	return f, nil
}

func completeFile(k *Kind, f *models.File) {
	if f.ContentType == "" && len(f.Content) > 0 {
		f.ContentType = DetectContentType(f.Content)
	}
	switch k.SecondaryAttribute() {
	case AttrText:
		f.Thumbnail = nil
		if f.Text == "" && strings.HasPrefix(f.ContentType, "text/") {
			f.Text = string(f.Content)
		}
	case AttrThumbnail:
		f.Text = ""
	default:
		f.Thumbnail = nil
		f.Text = ""
	}
}

func parseFile(k *Kind, s string) (any, error) {
	path, ok := strings.CutPrefix(s, FilePrefix)
	if !ok {
		return nil, fmt.Errorf("%s defaults must be %s<path>", k.Name, FilePrefix)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f := &models.File{Name: filepath.Base(path), Content: content}
	completeFile(k, f)
	return f, nil
}

func compositeLiteral(k *Kind, f *models.File) string {
	parts := []string{pq.QuoteLiteral(f.Name), `'\x` + hex.EncodeToString(f.Content) + `'::bytea`, pq.QuoteLiteral(f.ContentType)}
	switch k.SecondaryAttribute() {
	case AttrThumbnail:
		parts = append(parts, `'\x`+hex.EncodeToString(f.Thumbnail)+`'::bytea`)
	case AttrText:
		parts = append(parts, pq.QuoteLiteral(f.Text))
	}
	return "ROW(" + strings.Join(parts, ",") + ")::" + CompositeTypePrefix + k.Name
}
