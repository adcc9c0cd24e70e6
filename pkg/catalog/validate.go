package catalog

import (
	"strings"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/kinds"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
	"github.com/ekaya-inc/ekaya-typestore/pkg/sql"
)

// ValidateType checks a complete type definition before any statement runs.
func ValidateType(t *models.Type) error {
	if err := sql.ValidateName(t.Name); err != nil {
		return err
	}
	if t.Fields != nil {
		for pair := t.Fields.Oldest(); pair != nil; pair = pair.Next() {
			if err := ValidateField(pair.Key, pair.Value); err != nil {
				return err
			}
		}
	}
	if t.Indexes != nil {
		for pair := t.Indexes.Oldest(); pair != nil; pair = pair.Next() {
			if err := ValidateIndex(t, pair.Key, pair.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateField checks one field descriptor.
func ValidateField(name string, f models.TypeField) error {
	if err := sql.ValidateName(name); err != nil {
		return err
	}
	if models.IsImplicitColumn(name) {
		return apperrors.Validation(apperrors.KeyReservedName, name)
	}
	if f.Type == "" {
		return apperrors.Validation(apperrors.KeyInvalidFieldType, name, f.Type)
	}

	k, ok := kinds.Lookup(f.Type)
	if !ok {
		// A reference names another type.
		if strings.HasSuffix(f.Type, kinds.ArraySuffix) || sql.ValidateName(f.Type) != nil {
			return apperrors.Validation(apperrors.KeyInvalidFieldType, name, f.Type)
		}
		if f.Min != nil || f.Max != nil {
			return apperrors.Validation(apperrors.KeyInvalidValue, name, "range on reference field")
		}
		return nil
	}

	if f.Min != nil || f.Max != nil {
		if !k.Ranged {
			return apperrors.Validation(apperrors.KeyInvalidValue, name, "range on "+k.Name+" field")
		}
		for _, bound := range []*string{f.Min, f.Max} {
			if bound == nil {
				continue
			}
			if _, err := k.Parse(*bound); err != nil {
				return apperrors.Validation(apperrors.KeyInvalidValue, name, *bound)
			}
		}
	}
	if f.Length != nil && *f.Length <= 0 {
		return apperrors.Validation(apperrors.KeyInvalidValue, name, *f.Length)
	}
	if f.Precision != nil && (*f.Precision <= 0 || *f.Precision > 1000) {
		return apperrors.Validation(apperrors.KeyInvalidValue, name, *f.Precision)
	}
	if f.Scale != nil && (*f.Scale < 0 || (f.Precision != nil && *f.Scale > *f.Precision)) {
		return apperrors.Validation(apperrors.KeyInvalidValue, name, *f.Scale)
	}
	return nil
}

// ValidateIndex checks one index descriptor against the fields of t.
func ValidateIndex(t *models.Type, name string, idx models.TypeIndex) error {
	if err := sql.ValidateName(name); err != nil {
		return err
	}
	if err := sql.ValidateName(IndexName(t.Name, name)); err != nil {
		return apperrors.Validation(apperrors.KeyInvalidName, name)
	}
	if !idx.Mode.Valid() {
		return apperrors.Validation(apperrors.KeyInvalidValue, name, string(idx.Mode))
	}
	if len(idx.Fields) == 0 {
		return apperrors.Validation(apperrors.KeyEmptyIndexFields, name)
	}

	seen := make(map[string]bool, len(idx.Fields))
	for _, field := range idx.Fields {
		if seen[field] {
			return apperrors.Validation(apperrors.KeyDuplicateField, name, field)
		}
		seen[field] = true

		if models.IsImplicitColumn(field) {
			if idx.Mode == models.IndexFullText {
				return apperrors.Validation(apperrors.KeyInvalidFieldType, name, field)
			}
			continue
		}
		f, ok := t.Field(field)
		if !ok {
			return apperrors.NotFound(apperrors.KeyFieldNotFound, t.Name, field)
		}
		k, primitive := kinds.Lookup(f.Type)
		switch {
		case idx.Mode == models.IndexFullText:
			if !primitive || !(k.Text && k.Category == kinds.Scalar || k.Name == kinds.Document) || k.Name == kinds.Password {
				return apperrors.Validation(apperrors.KeyInvalidFieldType, name, field)
			}
		case primitive && k.Category == kinds.Composite:
			return apperrors.Validation(apperrors.KeyInvalidFieldType, name, field)
		}
	}
	return nil
}
