package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
	"github.com/ekaya-inc/ekaya-typestore/pkg/kinds"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
	"github.com/ekaya-inc/ekaya-typestore/pkg/sql"
)

// attribute reads one attribute of a composite field. wants restricts the
// field's kind; empty accepts every composite kind.
func (e *Engine) attribute(ctx context.Context, s *database.Session, typeName, id, field, attr, wants string) (any, error) {
	t, err := e.catalog.Type(ctx, s, typeName)
	if err != nil {
		return nil, err
	}
	f, ok := t.Field(field)
	if !ok {
		return nil, apperrors.NotFound(apperrors.KeyFieldNotFound, typeName, field)
	}
	if !kinds.IsComposite(f.Type) || (wants != "" && f.Type != wants) {
		return nil, apperrors.Validation(apperrors.KeyInvalidFieldType, typeName, field)
	}

	query := "SELECT (" + sql.Ident(field) + ")." + sql.Ident(attr) + " FROM " + sql.Ident(typeName) + ` WHERE "id" = $1`
	e.logStatement(query, []any{id}, nil)
	rows, err := s.Tx.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s.%s: %w", typeName, field, apperrors.FromBackend(err))
	}
	v, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (any, error) {
		values, err := row.Values()
		if err != nil {
			return nil, err
		}
		return values[0], nil
	})
	if isNoRows(err) {
		return nil, apperrors.NotFound(apperrors.KeyObjectNotFound, typeName, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s.%s: %w", typeName, field, apperrors.FromBackend(err))
	}
	return v, nil
}

// GetFieldContent returns the content bytes of a composite field, nil when empty.
func (e *Engine) GetFieldContent(ctx context.Context, typeName, id, field string) (content []byte, err error) {
	defer track("get_field_content", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	v, err := e.attribute(ctx, s, typeName, id, field, kinds.AttrContent, "")
	if err != nil {
		return nil, err
	}
	content, _ = v.([]byte)
	return content, nil
}

// GetFieldContentType returns the media type of a composite field.
func (e *Engine) GetFieldContentType(ctx context.Context, typeName, id, field string) (contentType string, err error) {
	defer track("get_field_content_type", &err)()
	s, err := session(ctx)
	if err != nil {
		return "", err
	}
	v, err := e.attribute(ctx, s, typeName, id, field, kinds.AttrContentType, "")
	if err != nil {
		return "", err
	}
	contentType, _ = v.(string)
	return contentType, nil
}

// GetImageThumbnail returns the thumbnail of an image field.
func (e *Engine) GetImageThumbnail(ctx context.Context, typeName, id, field string) (thumbnail []byte, err error) {
	defer track("get_image_thumbnail", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	v, err := e.attribute(ctx, s, typeName, id, field, kinds.AttrThumbnail, kinds.Image)
	if err != nil {
		return nil, err
	}
	thumbnail, _ = v.([]byte)
	return thumbnail, nil
}

// GetDocumentText returns the extracted text of a document field.
func (e *Engine) GetDocumentText(ctx context.Context, typeName, id, field string) (text string, err error) {
	defer track("get_document_text", &err)()
	s, err := session(ctx)
	if err != nil {
		return "", err
	}
	v, err := e.attribute(ctx, s, typeName, id, field, kinds.AttrText, kinds.Document)
	if err != nil {
		return "", err
	}
	text, _ = v.(string)
	return text, nil
}

// GetUpReferences lists every object pointing at the given object, ordered
// by referencing type, field and identifier.
func (e *Engine) GetUpReferences(ctx context.Context, typeName, id string) (refs []models.Reference, err error) {
	defer track("get_up_references", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := e.catalog.GetUpTypeReferences(ctx, s, typeName)
	if err != nil {
		return nil, err
	}
	refs = []models.Reference{}
	if len(edges) == 0 {
		return refs, nil
	}

	b := sql.NewBuilder()
	idParam := b.Placeholder(id)
	branches := make([]string, len(edges))
	for i, edge := range edges {
		branches[i] = "SELECT " + b.Placeholder(edge.ReferencingType) + "::text AS type, " +
			`"id", ` + b.Placeholder(edge.ReferencingField) + "::text AS field FROM " +
			sql.Ident(edge.ReferencingType) + " WHERE " + sql.Ident(edge.ReferencingField) + " = " + idParam
	}
	query := strings.Join(branches, " UNION ALL ") + " ORDER BY 1, 3, 2"
	e.logStatement(query, b.Args(), nil)

	rows, err := s.Tx.Query(ctx, query, b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to read references to %s %s: %w", typeName, id, apperrors.FromBackend(err))
	}
	refs, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Reference, error) {
		var r models.Reference
		err := row.Scan(&r.ReferencingType, &r.ReferencingID, &r.ReferencingField)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read references to %s %s: %w", typeName, id, apperrors.FromBackend(err))
	}
	return refs, nil
}
