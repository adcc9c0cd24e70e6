package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/catalog"
	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
	"github.com/ekaya-inc/ekaya-typestore/pkg/metrics"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
	"github.com/ekaya-inc/ekaya-typestore/pkg/sql"
)

// exportQuery projects objects the way import expects them back: whole
// composite values, password hashes and bare reference identifiers.
func exportQuery() models.Query {
	return models.Query{
		Materialize:      true,
		IncludePasswords: true,
		RawReferences:    true,
	}
}

// typeStream exports types one at a time, each with a cursor over its objects.
type typeStream struct {
	e        *Engine
	ctx      context.Context
	s        *database.Session
	names    []string
	pos      int
	objects  bool
	cur      *models.Type
	curObjs  models.ObjectStream
	err      error
	finished bool
}

var _ models.TypeStream = (*typeStream)(nil)

// ExportTypes streams the named types, or every type when names is empty.
// With includeObjects each type carries a cursor over its objects, which is
// closed when the stream advances.
func (e *Engine) ExportTypes(ctx context.Context, names []string, includeObjects bool) (stream models.TypeStream, err error) {
	defer track("export_types", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		if names, err = e.catalog.GetTypeNames(ctx, s); err != nil {
			return nil, err
		}
	}
	return &typeStream{e: e, ctx: ctx, s: s, names: names, pos: -1, objects: includeObjects}, nil
}

// ExportObjects streams the listed objects of a type, or all of them when
// ids is empty.
func (e *Engine) ExportObjects(ctx context.Context, typeName string, ids ...string) (stream models.ObjectStream, err error) {
	defer track("export_objects", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	return e.openStream(ctx, s, typeName, exportQuery(), ids)
}

func (t *typeStream) Next() bool {
	if t.err != nil || t.finished {
		return false
	}
	if err := t.closeObjects(); err != nil {
		t.err = err
		return false
	}
	t.pos++
	if t.pos >= len(t.names) {
		t.cur = nil
		t.finished = true
		return false
	}

	typ, err := t.e.catalog.GetType(t.ctx, t.s, t.names[t.pos])
	if err != nil {
		t.err = err
		return false
	}
	t.cur = typ
	if t.objects {
		if t.curObjs, err = t.e.openStream(t.ctx, t.s, typ.Name, exportQuery(), nil); err != nil {
			t.err = err
			return false
		}
	}
	return true
}

func (t *typeStream) closeObjects() error {
	if t.curObjs == nil {
		return nil
	}
	err := t.curObjs.Close()
	t.curObjs = nil
	return err
}

func (t *typeStream) Type() *models.Type {
	return t.cur
}

func (t *typeStream) Objects() models.ObjectStream {
	return t.curObjs
}

func (t *typeStream) Err() error {
	return t.err
}

func (t *typeStream) Close() error {
	t.finished = true
	return t.closeObjects()
}

// ImportTypes creates or reconciles every type of stream, then applies its
// objects. The whole import runs in one deferred-constraint window and is
// undone entirely when any step or the final reference check fails.
func (e *Engine) ImportTypes(ctx context.Context, stream models.TypeStream, typePolicy models.TypePolicy, objectPolicy models.ObjectPolicy) (result *models.ImportResult, err error) {
	defer track("import_types", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := models.ParseTypePolicy(string(typePolicy)); !ok {
		return nil, apperrors.Validation(apperrors.KeyInvalidValue, "type_policy", string(typePolicy))
	}
	if _, ok := models.ParseObjectPolicy(string(objectPolicy)); !ok {
		return nil, apperrors.Validation(apperrors.KeyInvalidValue, "object_policy", string(objectPolicy))
	}
	defer stream.Close()

	result = models.NewImportResult()
	err = e.importWindow(ctx, s, func(ctx context.Context, imported map[string][]string) error {
		for stream.Next() {
			if err := e.importType(ctx, s, stream.Type(), typePolicy, result); err != nil {
				return err
			}
			if objects := stream.Objects(); objects != nil {
				if err := e.importObjects(ctx, s, objects, objectPolicy, result, imported); err != nil {
					return err
				}
			}
		}
		return stream.Err()
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("Imported types",
		zap.Strings("created", result.CreatedTypes),
		zap.Strings("altered", result.AlteredTypes),
		zap.Strings("ignored", result.IgnoredTypes),
		zap.Int64("inserted", result.InsertedCount),
		zap.Int64("updated", result.UpdatedCount))
	return result, nil
}

// ImportObjects applies a stream of objects of existing types.
func (e *Engine) ImportObjects(ctx context.Context, stream models.ObjectStream, objectPolicy models.ObjectPolicy) (result *models.ImportResult, err error) {
	defer track("import_objects", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := models.ParseObjectPolicy(string(objectPolicy)); !ok {
		return nil, apperrors.Validation(apperrors.KeyInvalidValue, "object_policy", string(objectPolicy))
	}

	result = models.NewImportResult()
	err = e.importWindow(ctx, s, func(ctx context.Context, imported map[string][]string) error {
		return e.importObjects(ctx, s, stream, objectPolicy, result, imported)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("Imported objects",
		zap.Int64("inserted", result.InsertedCount),
		zap.Int64("updated", result.UpdatedCount),
		zap.Int64("ignored", result.IgnoredCount))
	return result, nil
}

// importWindow runs fn in import mode inside a savepoint. Reference
// constraints are deferred until the end; a failure rolls back everything fn
// did and restores immediate constraints.
func (e *Engine) importWindow(ctx context.Context, s *database.Session, fn func(ctx context.Context, imported map[string][]string) error) error {
	imported := make(map[string][]string)
	err := s.Savepoint(ctx, func(ctx context.Context) error {
		if err := s.BeginImport(ctx); err != nil {
			return err
		}
		if err := fn(ctx, imported); err != nil {
			return err
		}
		if err := e.sweep(ctx, s, imported); err != nil {
			return err
		}
		if err := s.EndImport(ctx); err != nil {
			return apperrors.FromBackend(err)
		}
		return nil
	})
	if err != nil {
		s.AbortImport()
		if _, rerr := s.Tx.Exec(ctx, "SET CONSTRAINTS ALL IMMEDIATE"); rerr != nil {
			e.logger.Warn("Failed to restore immediate constraints after import", zap.Error(rerr))
		}
		return err
	}
	return nil
}

func (e *Engine) importType(ctx context.Context, s *database.Session, t *models.Type, policy models.TypePolicy, result *models.ImportResult) error {
	exists, err := e.catalog.ExistsType(ctx, s, t.Name)
	if err != nil {
		return err
	}
	if !exists {
		if _, err := e.catalog.CreateType(ctx, s, t); err != nil {
			return err
		}
		result.CreatedTypes = append(result.CreatedTypes, t.Name)
		return nil
	}

	switch policy {
	case models.TypeIgnore:
		result.IgnoredTypes = append(result.IgnoredTypes, t.Name)
	case models.TypeAlter:
		altered, err := e.catalog.AlterType(ctx, s, t.Name, t, nil)
		if err != nil {
			return err
		}
		if altered.IsAltered() {
			result.AlteredTypes = append(result.AlteredTypes, t.Name)
			result.Alterations = append(result.Alterations, altered)
		}
	default:
		return apperrors.AlreadyExists(apperrors.KeyTypeAlreadyExists, t.Name)
	}
	return nil
}

func (e *Engine) importObjects(ctx context.Context, s *database.Session, objects models.ObjectStream, policy models.ObjectPolicy, result *models.ImportResult, imported map[string][]string) error {
	defer objects.Close()
	for objects.Next() {
		obj := objects.Object()
		exists := false
		if obj.ID != "" {
			var err error
			if exists, err = e.objectExists(ctx, s, obj.Type, obj.ID); err != nil {
				return err
			}
		}

		switch {
		case !exists:
			if _, err := e.insert(ctx, s, obj); err != nil {
				return err
			}
			result.InsertedCount++
			metrics.ImportedObjects.WithLabelValues("inserted").Inc()
		case policy == models.ObjectIgnore:
			result.IgnoredCount++
			metrics.ImportedObjects.WithLabelValues("ignored").Inc()
			continue
		case policy == models.ObjectUpdate:
			if _, err := e.update(ctx, s, obj, nil); err != nil {
				return err
			}
			result.UpdatedCount++
			metrics.ImportedObjects.WithLabelValues("updated").Inc()
		default:
			return apperrors.AlreadyExists(apperrors.KeyObjectAlreadyExists, obj.Type, obj.ID)
		}
		imported[obj.Type] = append(imported[obj.Type], obj.ID)
		result.ObjectsPerType[obj.Type]++
	}
	return objects.Err()
}

func (e *Engine) objectExists(ctx context.Context, s *database.Session, typeName, id string) (bool, error) {
	if _, err := e.catalog.Entry(ctx, s, typeName); err != nil {
		return false, err
	}
	var exists bool
	query := "SELECT EXISTS (SELECT 1 FROM " + sql.Ident(typeName) + ` WHERE "id" = $1)`
	if err := s.Tx.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to look up %s %s: %w", typeName, id, apperrors.FromBackend(err))
	}
	return exists, nil
}

// sweep looks for the first imported object whose reference points at no
// object, with one query over every reference field of the imported types.
func (e *Engine) sweep(ctx context.Context, s *database.Session, imported map[string][]string) error {
	typeNames := make([]string, 0, len(imported))
	for name := range imported {
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)

	b := sql.NewBuilder()
	var branches []string
	for _, typeName := range typeNames {
		t, err := e.catalog.Type(ctx, s, typeName)
		if err != nil {
			return err
		}
		refs := catalog.ReferenceFields(t)
		if len(refs) == 0 {
			continue
		}
		fields := make([]string, 0, len(refs))
		for field := range refs {
			fields = append(fields, field)
		}
		sort.Strings(fields)

		ids := b.Placeholder(imported[typeName])
		for _, field := range fields {
			col := "o." + sql.Ident(field)
			branches = append(branches, "SELECT "+b.Placeholder(typeName)+"::text, o.\"id\", "+b.Placeholder(field)+"::text, "+col+"::text"+
				" FROM "+sql.Ident(typeName)+" AS o WHERE o.\"id\" = ANY("+ids+") AND "+col+" IS NOT NULL"+
				" AND NOT EXISTS (SELECT 1 FROM "+sql.Ident(refs[field])+" AS r WHERE r.\"id\" = "+col+")")
		}
	}
	if len(branches) == 0 {
		return nil
	}

	query := strings.Join(branches, " UNION ALL ") + " LIMIT 1"
	e.logStatement(query, b.Args(), nil)
	var typeName, id, field, value string
	err := s.Tx.QueryRow(ctx, query, b.Args()...).Scan(&typeName, &id, &field, &value)
	if isNoRows(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check imported references: %w", apperrors.FromBackend(err))
	}
	return apperrors.Integrity(apperrors.KeyMissingReference, typeName, id, field, value)
}
