package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/audit"
	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
	"github.com/ekaya-inc/ekaya-typestore/pkg/kinds"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
	"github.com/ekaya-inc/ekaya-typestore/pkg/sql"
)

// prepare loads the type and builds the statements of a search.
func (e *Engine) prepare(ctx context.Context, s *database.Session, typeName string, q models.Query, ids []string, fragment string, params map[string]any) (*sql.Select, models.TypeSettings, error) {
	t, err := e.catalog.Type(ctx, s, typeName)
	if err != nil {
		return nil, models.TypeSettings{}, err
	}
	ts := e.settings.TypeSettings(typeName)
	sel, err := sql.NewSelect(sql.Search{
		Type:     t,
		Query:    q,
		Settings: ts,
		Names: func(ref string) string {
			return e.settings.TypeSettings(ref).NameExpression()
		},
		Fragment:       fragment,
		FragmentParams: params,
		IDs:            ids,
	})
	if err != nil {
		return nil, models.TypeSettings{}, err
	}
	return sel, ts, nil
}

func (e *Engine) count(ctx context.Context, s *database.Session, sel *sql.Select) (int64, error) {
	if sel.Empty() {
		return 0, nil
	}
	query, args := sel.Count()
	e.logStatement(query, args, nil)
	var n int64
	if err := s.Tx.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count: %w", apperrors.FromBackend(err))
	}
	return n, nil
}

// Count returns the number of objects matching q.
func (e *Engine) Count(ctx context.Context, typeName string, q models.Query) (n int64, err error) {
	defer track("count", &err)()
	s, err := session(ctx)
	if err != nil {
		return 0, err
	}
	sel, _, err := e.prepare(ctx, s, typeName, q, nil, "", nil)
	if err != nil {
		return 0, err
	}
	return e.count(ctx, s, sel)
}

// Select returns one page of the objects matching q together with the total
// count and the effective offset and limit.
func (e *Engine) Select(ctx context.Context, typeName string, q models.Query) (result *models.Objects, err error) {
	defer track("select", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	sel, ts, err := e.prepare(ctx, s, typeName, q, nil, "", nil)
	if err != nil {
		return nil, err
	}

	result = &models.Objects{Type: typeName, Items: []*models.Object{}}
	if result.Count, err = e.count(ctx, s, sel); err != nil {
		return nil, err
	}
	result.Offset, result.Limit = sql.Clamp(result.Count, q.Offset, q.Limit, ts.Limit)
	if result.Count == 0 {
		return result, nil
	}

	query, args, err := sel.Page(result.Offset, result.Limit)
	if err != nil {
		return nil, err
	}
	e.logStatement(query, args, nil)
	rows, err := s.Tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", typeName, apperrors.FromBackend(err))
	}
	defer rows.Close()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s row: %w", typeName, apperrors.FromBackend(err))
		}
		obj, err := decodeObject(typeName, sel.Columns(), values)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", typeName, apperrors.FromBackend(err))
	}
	return result, nil
}

// Get returns one object. The projection flags of q apply; its filters,
// order and pagination are ignored.
func (e *Engine) Get(ctx context.Context, typeName, id string, q models.Query) (obj *models.Object, err error) {
	defer track("get", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	q.Filters, q.Search, q.Order = nil, "", nil
	sel, _, err := e.prepare(ctx, s, typeName, q, []string{id}, "", nil)
	if err != nil {
		return nil, err
	}
	query, args, err := sel.Page(0, models.NoLimit)
	if err != nil {
		return nil, err
	}
	e.logStatement(query, args, nil)
	rows, err := s.Tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", typeName, id, apperrors.FromBackend(err))
	}
	values, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) ([]any, error) {
		return row.Values()
	})
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NotFound(apperrors.KeyObjectNotFound, typeName, id)
		}
		return nil, fmt.Errorf("failed to get %s %s: %w", typeName, id, apperrors.FromBackend(err))
	}
	return decodeObject(typeName, sel.Columns(), values)
}

// SelectCustom runs a caller projection over the type with the filters,
// search, static filter, ordering and pagination of q. The fragment may use
// {{name}} placeholders bound from params.
func (e *Engine) SelectCustom(ctx context.Context, typeName, fragment string, params map[string]any, q models.Query) (result *models.Tuples, err error) {
	defer track("select_custom", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	if fragment == "" {
		return nil, apperrors.Validation(apperrors.KeyEmptyField, typeName, "fragment")
	}
	for name, v := range params {
		if r := sql.CheckParameterForInjection(0, v); r != nil {
			e.auditor.LogInjectionAttempt(ctx, audit.InjectionDetails{
				Operation:   "select_custom",
				Target:      typeName,
				Param:       name,
				ParamValue:  r.Value,
				Fingerprint: r.Fingerprint,
			})
			return nil, apperrors.Validation(apperrors.KeySuspiciousParameter, name, r.Fingerprint)
		}
	}
	sel, ts, err := e.prepare(ctx, s, typeName, q, nil, fragment, params)
	if err != nil {
		return nil, err
	}

	result = &models.Tuples{Items: []models.Tuple{}}
	if result.Count, err = e.count(ctx, s, sel); err != nil {
		return nil, err
	}
	result.Offset, result.Limit = sql.Clamp(result.Count, q.Offset, q.Limit, ts.Limit)
	if result.Count == 0 {
		return result, nil
	}
	query, args, err := sel.Page(result.Offset, result.Limit)
	if err != nil {
		return nil, err
	}
	if result.Items, err = e.queryTuples(ctx, s, query, args); err != nil {
		return nil, err
	}
	return result, nil
}

// decodeObject builds an object from one row of a generated projection.
func decodeObject(typeName string, columns []sql.Column, values []any) (*models.Object, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("row of %s has %d values for %d columns", typeName, len(values), len(columns))
	}
	obj := models.NewObject(typeName, "")
	var files map[string]*models.File
	present := make(map[string]bool)

	for i, col := range columns {
		v := values[i]
		switch col.Role {
		case sql.RoleID:
			obj.ID, _ = v.(string)
		case sql.RoleCreate:
			obj.Create = utc(v)
		case sql.RoleUpdate:
			obj.Update = utc(v)
		case sql.RoleBackup:
			obj.Backup, _ = v.(bool)

		case sql.RoleValue:
			if col.Kind == nil {
				obj.Fields[col.Field] = v
				continue
			}
			n, err := col.Kind.FromDriver(v)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s.%s: %w", typeName, col.Field, err)
			}
			obj.Fields[col.Field] = n

		case sql.RoleRefID:
			if v == nil {
				obj.Fields[col.Field] = nil
				continue
			}
			id, _ := v.(string)
			obj.Fields[col.Field] = &models.ObjectRef{ID: id}
		case sql.RoleRefName:
			if ref, ok := obj.Fields[col.Field].(*models.ObjectRef); ok && v != nil {
				ref.Name, _ = v.(string)
			}

		case sql.RoleSize:
			if v == nil {
				obj.Fields[col.Field] = nil
				continue
			}
			size, err := kindOf(kinds.Int64).FromDriver(v)
			if err != nil {
				return nil, fmt.Errorf("failed to read size of %s.%s: %w", typeName, col.Field, err)
			}
			obj.Fields[col.Field] = size

		case sql.RoleAttribute:
			if files == nil {
				files = make(map[string]*models.File)
			}
			f, ok := files[col.Field]
			if !ok {
				f = &models.File{}
				files[col.Field] = f
			}
			if v == nil {
				continue
			}
			present[col.Field] = true
			switch col.Attr {
			case kinds.AttrName:
				f.Name, _ = v.(string)
			case kinds.AttrContent:
				f.Content, _ = v.([]byte)
			case kinds.AttrContentType:
				f.ContentType, _ = v.(string)
			case kinds.AttrThumbnail:
				f.Thumbnail, _ = v.([]byte)
			case kinds.AttrText:
				f.Text, _ = v.(string)
			}

		case sql.RolePreview:
			obj.Fields[col.Field+"_preview"] = v
		}
	}

	for field, f := range files {
		if present[field] {
			obj.Fields[field] = f
		} else {
			obj.Fields[field] = nil
		}
	}
	return obj, nil
}

func kindOf(name string) *kinds.Kind {
	k, _ := kinds.Lookup(name)
	return k
}

func utc(v any) time.Time {
	t, _ := v.(time.Time)
	return t.UTC()
}
