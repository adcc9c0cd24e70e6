package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
	"github.com/ekaya-inc/ekaya-typestore/pkg/kinds"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

// Reference edges are read from the live foreign-key constraints.
const referencesQuery = `
	SELECT rc.relname AS referenced, cc.relname AS referencing, a.attname AS field
	FROM pg_constraint con
	JOIN pg_class cc ON cc.oid = con.conrelid
	JOIN pg_class rc ON rc.oid = con.confrelid
	JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = con.conkey[1]
	WHERE con.contype = 'f'
	  AND cc.relnamespace = current_schema()::regnamespace
`

// GetUpTypeReferences lists the fields of other types referencing typeName.
func (c *Catalog) GetUpTypeReferences(ctx context.Context, s *database.Session, typeName string) ([]models.TypeReference, error) {
	if _, err := c.Type(ctx, s, typeName); err != nil {
		return nil, err
	}
	return c.references(ctx, s, " AND rc.relname = $1", typeName)
}

// GetDownTypeReferences lists the reference fields of typeName.
func (c *Catalog) GetDownTypeReferences(ctx context.Context, s *database.Session, typeName string) ([]models.TypeReference, error) {
	if _, err := c.Type(ctx, s, typeName); err != nil {
		return nil, err
	}
	return c.references(ctx, s, " AND cc.relname = $1", typeName)
}

// GetTypeReferences lists every reference edge of the schema.
func (c *Catalog) GetTypeReferences(ctx context.Context, s *database.Session) ([]models.TypeReference, error) {
	return c.references(ctx, s, "")
}

func (c *Catalog) references(ctx context.Context, s *database.Session, where string, args ...any) ([]models.TypeReference, error) {
	rows, err := s.Tx.Query(ctx, referencesQuery+where+" ORDER BY cc.relname, a.attname", args...)
	if err != nil {
		return nil, fmt.Errorf("query type references: %w", apperrors.FromBackend(err))
	}
	refs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TypeReference, error) {
		var r models.TypeReference
		err := row.Scan(&r.ReferencedType, &r.ReferencingType, &r.ReferencingField)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan type references: %w", apperrors.FromBackend(err))
	}
	return refs, nil
}

// ReferenceFields returns the reference fields of a type with the type each names.
func ReferenceFields(t *models.Type) map[string]string {
	refs := make(map[string]string)
	for pair := t.Fields.Oldest(); pair != nil; pair = pair.Next() {
		if kinds.IsReference(pair.Value.Type) {
			refs[pair.Key] = pair.Value.Type
		}
	}
	return refs
}
