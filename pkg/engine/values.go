package engine

import (
	"errors"
	"strings"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/catalog"
	"github.com/ekaya-inc/ekaya-typestore/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-typestore/pkg/kinds"
	"github.com/ekaya-inc/ekaya-typestore/pkg/metacache"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
	"github.com/ekaya-inc/ekaya-typestore/pkg/sql"
)

// normalize converts a caller value of field into its normalized form and
// checks it against the field's range, length and allowed content types.
// Password fields are handled by the password rules instead.
func normalize(entry *metacache.Entry, field string, f models.TypeField, v any) (any, error) {
	typeName := entry.Type.Name
	if v == nil {
		return nil, nil
	}

	k, ok := kinds.Lookup(f.Type)
	if !ok {
		id, ok := referenceID(v)
		if !ok {
			return nil, apperrors.Validation(apperrors.KeyInvalidValue, typeName, field, v)
		}
		if id == "" {
			return nil, nil
		}
		return id, nil
	}

	n, err := k.Coerce(v)
	if err != nil {
		return nil, valueError(typeName, field, v, err)
	}
	if n == nil {
		return nil, nil
	}
	if err := k.CheckRange(n, f.Min, f.Max); err != nil {
		return nil, valueError(typeName, field, v, err)
	}
	if err := k.CheckLength(n, f); err != nil {
		return nil, valueError(typeName, field, v, err)
	}
	if file, ok := n.(*models.File); ok {
		if !kinds.ContentTypeAllowed(file.ContentType, entry.ContentTypes[field]) {
			return nil, apperrors.Validation(apperrors.KeyInvalidContentType, typeName, field, file.ContentType)
		}
	}
	return n, nil
}

func valueError(typeName, field string, v any, err error) error {
	if errors.Is(err, kinds.ErrOutOfRange) {
		return apperrors.Validation(apperrors.KeyOutOfRange, typeName, field, v)
	}
	return apperrors.Validation(apperrors.KeyInvalidValue, typeName, field, v)
}

// referenceID extracts the referenced identifier from the accepted shapes of
// a reference value: a bare identifier, an ObjectRef or a map with an "id".
func referenceID(v any) (string, bool) {
	switch v := v.(type) {
	case *models.ObjectRef:
		if v == nil {
			return "", true
		}
		return v.ID, true
	case models.ObjectRef:
		return v.ID, true
	case map[string]any:
		raw, ok := v["id"]
		if !ok || raw == nil {
			return "", true
		}
		return jsonutil.FlexibleString(raw)
	}
	return jsonutil.FlexibleString(v)
}

// valueExpr binds a normalized value into b and returns the SQL expression
// writing it to a column of field's kind.
func valueExpr(b *sql.Builder, f models.TypeField, v any) string {
	if v == nil {
		return "NULL"
	}
	k, ok := kinds.Lookup(f.Type)
	if !ok {
		return b.Placeholder(v)
	}
	if file, ok := v.(*models.File); ok {
		args := k.CompositeArgs(file)
		attrs := k.Attributes()
		parts := make([]string, len(args))
		for i, arg := range args {
			parts[i] = b.Placeholder(arg) + "::" + kinds.AttributeSQLType(attrs[i])
		}
		return "ROW(" + strings.Join(parts, ", ") + ")::" + k.SQLType(f)
	}
	return b.Placeholder(k.ToDriver(v))
}

// validID checks a caller supplied identifier.
func validID(typeName, id string) error {
	if id == "" {
		return apperrors.Validation(apperrors.KeyEmptyField, typeName, models.ColumnID)
	}
	if len(id) > catalog.IDLength {
		return apperrors.Validation(apperrors.KeyOutOfRange, typeName, models.ColumnID, id)
	}
	return nil
}
