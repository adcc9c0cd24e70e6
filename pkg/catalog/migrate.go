package catalog

import (
	"context"
	"fmt"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
	"github.com/ekaya-inc/ekaya-typestore/pkg/kinds"
	"github.com/ekaya-inc/ekaya-typestore/pkg/logging"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
	"github.com/ekaya-inc/ekaya-typestore/pkg/sql"
)

// migration applies statements to one type and tracks its working definition.
type migration struct {
	c       *Catalog
	s       *database.Session
	t       *models.Type
	changed bool
}

// begin disables the metadata cache for the session and loads the current
// definition straight from the schema.
func (c *Catalog) begin(ctx context.Context, s *database.Session, name string) (*migration, error) {
	s.MarkSchemaChanged()
	t, err := c.load(ctx, s, name)
	if err != nil {
		return nil, err
	}
	return &migration{c: c, s: s, t: t}, nil
}

func (c *Catalog) exec(ctx context.Context, s *database.Session, statements ...string) error {
	for _, stmt := range statements {
		c.logger.Debug("Executing schema statement", zap.String("sql", logging.TruncateString(stmt, logging.MaxQueryLogLength)))
		if _, err := s.Tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", apperrors.FromBackend(err))
		}
	}
	return nil
}

func (m *migration) exec(ctx context.Context, statements ...string) error {
	m.changed = true
	return m.c.exec(ctx, m.s, statements...)
}

func (m *migration) exists(ctx context.Context, query string) (bool, error) {
	var found bool
	if err := m.s.Tx.QueryRow(ctx, query).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", m.t.Name, apperrors.FromBackend(err))
	}
	return found, nil
}

func (m *migration) hasRows(ctx context.Context) (bool, error) {
	return m.exists(ctx, "SELECT EXISTS (SELECT 1 FROM "+ident(m.t.Name)+")")
}

func (m *migration) hasNulls(ctx context.Context, field string) (bool, error) {
	return m.exists(ctx, "SELECT EXISTS (SELECT 1 FROM "+ident(m.t.Name)+" WHERE "+ident(field)+" IS NULL)")
}

// addForeignKey creates the constraint of a reference field. During an import
// the referenced type may arrive later in the stream, so the statement waits
// for the end of the import.
func (m *migration) addForeignKey(ctx context.Context, field, referenced string) error {
	stmt := addForeignKeySQL(m.t.Name, field, referenced)
	if m.s.Importing() {
		m.s.Defer(stmt)
		m.changed = true
		return nil
	}
	return m.exec(ctx, stmt)
}

// finish records the alteration date once if anything changed.
func (m *migration) finish(ctx context.Context) (time.Time, error) {
	if !m.changed {
		return m.t.Alter, nil
	}
	at := now()
	if !at.After(m.t.Alter) {
		at = m.t.Alter.Add(time.Microsecond)
	}
	if err := m.c.exec(ctx, m.s, tableCommentSQL(m.t.Name, tableComment{Create: m.t.Create, Alter: at})); err != nil {
		return time.Time{}, err
	}
	m.t.Alter = at
	return at, nil
}

func (m *migration) addField(ctx context.Context, name string, f models.TypeField) error {
	f.OldName = ""
	if err := ValidateField(name, f); err != nil {
		return err
	}
	if _, ok := m.t.Field(name); ok {
		return apperrors.AlreadyExists(apperrors.KeyFieldAlreadyExists, m.t.Name, name)
	}
	if f.NotNull {
		nonEmpty, err := m.hasRows(ctx)
		if err != nil {
			return err
		}
		if nonEmpty {
			return apperrors.Validation(apperrors.KeyNotNullOnNonEmptyType, m.t.Name, name)
		}
	}

	if err := m.exec(ctx,
		"ALTER TABLE "+ident(m.t.Name)+" ADD COLUMN "+columnDef(name, f),
		columnCommentSQL(m.t.Name, name, f),
	); err != nil {
		return err
	}
	if kinds.IsReference(f.Type) {
		if err := m.addForeignKey(ctx, name, f.Type); err != nil {
			return err
		}
	}
	m.t.WithField(name, f)
	return nil
}

func (m *migration) alterField(ctx context.Context, name string, f models.TypeField) (bool, error) {
	f.OldName = ""
	cur, ok := m.t.Field(name)
	if !ok {
		return false, apperrors.NotFound(apperrors.KeyFieldNotFound, m.t.Name, name)
	}
	if cur.SameStructure(f) {
		return false, nil
	}
	if err := ValidateField(name, f); err != nil {
		return false, err
	}

	next := m.t.Clone()
	next.Fields.Set(name, f)
	for _, index := range next.IndexesWithField(name) {
		idx, _ := next.Index(index)
		if err := ValidateIndex(next, index, idx); err != nil {
			return false, err
		}
	}

	kindChanged := cur.Type != f.Type
	if kindChanged && kinds.IsReference(cur.Type) {
		if err := m.exec(ctx, dropForeignKeySQL(m.t.Name, name)); err != nil {
			return false, err
		}
	}
	if columnType(cur) != columnType(f) {
		if err := m.exec(ctx, alterColumnTypeSQL(m.t.Name, name, f)); err != nil {
			return false, err
		}
	}
	if cur.NotNull != f.NotNull {
		if f.NotNull {
			nulls, err := m.hasNulls(ctx, name)
			if err != nil {
				return false, err
			}
			if nulls {
				return false, apperrors.Validation(apperrors.KeyNullValuesExist, m.t.Name, name)
			}
		}
		if err := m.exec(ctx, setNotNullSQL(m.t.Name, name, f.NotNull)); err != nil {
			return false, err
		}
	}
	if err := m.exec(ctx, columnCommentSQL(m.t.Name, name, f)); err != nil {
		return false, err
	}
	if kindChanged && kinds.IsReference(f.Type) {
		if err := m.addForeignKey(ctx, name, f.Type); err != nil {
			return false, err
		}
	}

	m.t.Fields.Set(name, f)
	return true, nil
}

func (m *migration) renameField(ctx context.Context, name, newName string) error {
	if err := ValidateField(newName, models.TypeField{Type: kinds.Text}); err != nil {
		return err
	}
	f, ok := m.t.Field(name)
	if !ok {
		return apperrors.NotFound(apperrors.KeyFieldNotFound, m.t.Name, name)
	}
	if _, ok := m.t.Field(newName); ok {
		return apperrors.AlreadyExists(apperrors.KeyFieldAlreadyExists, m.t.Name, newName)
	}

	if err := m.exec(ctx, "ALTER TABLE "+ident(m.t.Name)+" RENAME COLUMN "+ident(name)+" TO "+ident(newName)); err != nil {
		return err
	}
	if kinds.IsReference(f.Type) && !m.s.Importing() {
		if err := m.exec(ctx, "ALTER TABLE "+ident(m.t.Name)+" RENAME CONSTRAINT "+
			ident(ForeignKeyName(m.t.Name, name))+" TO "+ident(ForeignKeyName(m.t.Name, newName))); err != nil {
			return err
		}
	}
	m.t.Fields = renameKey(m.t.Fields, name, newName)

	for _, index := range m.t.IndexesWithField(name) {
		idx, _ := m.t.Index(index)
		fields := make([]string, len(idx.Fields))
		for i, field := range idx.Fields {
			if field == name {
				field = newName
			}
			fields[i] = field
		}
		idx.Fields = fields
		if err := m.exec(ctx, indexCommentSQL(m.t.Name, index, idx)); err != nil {
			return err
		}
		m.t.Indexes.Set(index, idx)
	}
	return nil
}

func (m *migration) dropField(ctx context.Context, name string) error {
	if _, ok := m.t.Field(name); !ok {
		return apperrors.NotFound(apperrors.KeyFieldNotFound, m.t.Name, name)
	}
	if indexes := m.t.IndexesWithField(name); len(indexes) > 0 {
		return apperrors.Validation(apperrors.KeyFieldInIndex, m.t.Name, name, indexes[0])
	}
	if err := m.exec(ctx, "ALTER TABLE "+ident(m.t.Name)+" DROP COLUMN "+ident(name)); err != nil {
		return err
	}
	m.t.Fields.Delete(name)
	return nil
}

func (m *migration) addIndex(ctx context.Context, name string, idx models.TypeIndex) error {
	idx.OldName = ""
	if err := ValidateIndex(m.t, name, idx); err != nil {
		return err
	}
	if _, ok := m.t.Index(name); ok {
		return apperrors.AlreadyExists(apperrors.KeyIndexAlreadyExists, m.t.Name, name)
	}
	if err := m.exec(ctx, createIndexSQL(m.t, name, idx), indexCommentSQL(m.t.Name, name, idx)); err != nil {
		return err
	}
	m.t.WithIndex(name, idx)
	return nil
}

func (m *migration) alterIndex(ctx context.Context, name string, idx models.TypeIndex) (bool, error) {
	idx.OldName = ""
	cur, ok := m.t.Index(name)
	if !ok {
		return false, apperrors.NotFound(apperrors.KeyIndexNotFound, m.t.Name, name)
	}
	if cur.SameStructure(idx) {
		return false, nil
	}
	if err := ValidateIndex(m.t, name, idx); err != nil {
		return false, err
	}
	if err := m.exec(ctx,
		dropIndexSQL(m.t.Name, name),
		createIndexSQL(m.t, name, idx),
		indexCommentSQL(m.t.Name, name, idx),
	); err != nil {
		return false, err
	}
	m.t.Indexes.Set(name, idx)
	return true, nil
}

func (m *migration) renameIndex(ctx context.Context, name, newName string) error {
	if err := sql.ValidateName(newName); err != nil {
		return err
	}
	if err := sql.ValidateName(IndexName(m.t.Name, newName)); err != nil {
		return apperrors.Validation(apperrors.KeyInvalidName, newName)
	}
	if _, ok := m.t.Index(name); !ok {
		return apperrors.NotFound(apperrors.KeyIndexNotFound, m.t.Name, name)
	}
	if _, ok := m.t.Index(newName); ok {
		return apperrors.AlreadyExists(apperrors.KeyIndexAlreadyExists, m.t.Name, newName)
	}
	if err := m.exec(ctx, "ALTER INDEX "+ident(IndexName(m.t.Name, name))+" RENAME TO "+ident(IndexName(m.t.Name, newName))); err != nil {
		return err
	}
	m.t.Indexes = renameKey(m.t.Indexes, name, newName)
	return nil
}

func (m *migration) dropIndex(ctx context.Context, name string) error {
	if _, ok := m.t.Index(name); !ok {
		return apperrors.NotFound(apperrors.KeyIndexNotFound, m.t.Name, name)
	}
	if err := m.exec(ctx, dropIndexSQL(m.t.Name, name)); err != nil {
		return err
	}
	m.t.Indexes.Delete(name)
	return nil
}

// renameKey returns a copy of om with one key renamed in place.
func renameKey[V any](om *orderedmap.OrderedMap[string, V], name, newName string) *orderedmap.OrderedMap[string, V] {
	out := orderedmap.New[string, V]()
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		key := pair.Key
		if key == name {
			key = newName
		}
		out.Set(key, pair.Value)
	}
	return out
}

// CreateType creates the table of a new type with its grants, metadata,
// reference constraints and indexes, and returns its alteration date.
func (c *Catalog) CreateType(ctx context.Context, s *database.Session, t *models.Type) (alter time.Time, err error) {
	err = s.Savepoint(ctx, func(ctx context.Context) error {
		alter, err = c.createType(ctx, s, t)
		return err
	})
	if err != nil {
		return time.Time{}, err
	}
	return alter, nil
}

func (c *Catalog) createType(ctx context.Context, s *database.Session, t *models.Type) (time.Time, error) {
	if err := ValidateType(t); err != nil {
		return time.Time{}, err
	}
	s.MarkSchemaChanged()
	if !s.Importing() {
		if _, err := c.load(ctx, s, t.Name); err == nil {
			return time.Time{}, apperrors.AlreadyExists(apperrors.KeyTypeAlreadyExists, t.Name)
		} else if apperrors.KindOf(err) != apperrors.KindNotFound {
			return time.Time{}, err
		}
	}

	created := t.Clone()
	if !s.Importing() || created.Create.IsZero() {
		created.Create = now()
		created.Alter = created.Create
	}

	statements := []string{createTableSQL(created)}
	statements = append(statements, grantSQL(created.Name)...)
	statements = append(statements, tableCommentSQL(created.Name, tableComment{Create: created.Create, Alter: created.Alter}))
	for pair := created.Fields.Oldest(); pair != nil; pair = pair.Next() {
		statements = append(statements, columnCommentSQL(created.Name, pair.Key, pair.Value))
	}
	for pair := created.Indexes.Oldest(); pair != nil; pair = pair.Next() {
		statements = append(statements,
			createIndexSQL(created, pair.Key, pair.Value),
			indexCommentSQL(created.Name, pair.Key, pair.Value))
	}
	if err := c.exec(ctx, s, statements...); err != nil {
		return time.Time{}, err
	}

	m := &migration{c: c, s: s, t: created}
	for pair := created.Fields.Oldest(); pair != nil; pair = pair.Next() {
		if kinds.IsReference(pair.Value.Type) {
			if err := m.addForeignKey(ctx, pair.Key, pair.Value.Type); err != nil {
				return time.Time{}, err
			}
		}
	}

	c.logger.Info("Created type",
		zap.String("type", created.Name),
		zap.Int("fields", created.Fields.Len()),
		zap.Int("indexes", created.Indexes.Len()))
	return created.Alter, nil
}

// DropType drops the tables of the named types in one statement, so types
// referencing each other can be dropped together.
func (c *Catalog) DropType(ctx context.Context, s *database.Session, names ...string) error {
	return s.Savepoint(ctx, func(ctx context.Context) error {
		return c.dropType(ctx, s, names)
	})
}

func (c *Catalog) dropType(ctx context.Context, s *database.Session, names []string) error {
	if len(names) == 0 {
		return apperrors.Validation(apperrors.KeyEmptyName)
	}
	s.MarkSchemaChanged()
	quoted := make([]string, len(names))
	for i, name := range names {
		if !s.Importing() {
			if _, err := c.load(ctx, s, name); err != nil {
				return err
			}
		}
		quoted[i] = ident(name)
	}
	stmt := "DROP TABLE " + quoted[0]
	for _, q := range quoted[1:] {
		stmt += ", " + q
	}
	if err := c.exec(ctx, s, stmt); err != nil {
		return err
	}
	c.logger.Info("Dropped types", zap.Strings("types", names))
	return nil
}

// RenameType renames a type with its physical indexes and constraints, and
// rewrites the kind of every field referencing it.
func (c *Catalog) RenameType(ctx context.Context, s *database.Session, name, newName string) (alter time.Time, err error) {
	err = s.Savepoint(ctx, func(ctx context.Context) error {
		alter, err = c.renameType(ctx, s, name, newName)
		return err
	})
	if err != nil {
		return time.Time{}, err
	}
	return alter, nil
}

func (c *Catalog) renameType(ctx context.Context, s *database.Session, name, newName string) (time.Time, error) {
	if err := sql.ValidateName(newName); err != nil {
		return time.Time{}, err
	}
	m, err := c.begin(ctx, s, name)
	if err != nil {
		return time.Time{}, err
	}
	if _, err := c.load(ctx, s, newName); err == nil {
		return time.Time{}, apperrors.AlreadyExists(apperrors.KeyTypeAlreadyExists, newName)
	}

	statements := []string{
		"ALTER TABLE " + ident(name) + " RENAME TO " + ident(newName),
		"ALTER TABLE " + ident(newName) + " RENAME CONSTRAINT " + ident(PrimaryKeyName(name)) + " TO " + ident(PrimaryKeyName(newName)),
	}
	for _, index := range m.t.IndexNames() {
		statements = append(statements, "ALTER INDEX "+ident(IndexName(name, index))+" RENAME TO "+ident(IndexName(newName, index)))
	}
	for pair := m.t.Fields.Oldest(); pair != nil; pair = pair.Next() {
		if kinds.IsReference(pair.Value.Type) && !s.Importing() {
			statements = append(statements, "ALTER TABLE "+ident(newName)+" RENAME CONSTRAINT "+
				ident(ForeignKeyName(name, pair.Key))+" TO "+ident(ForeignKeyName(newName, pair.Key)))
		}
	}
	if err := m.exec(ctx, statements...); err != nil {
		return time.Time{}, err
	}
	m.t.Name = newName

	touched, err := c.rippleRename(ctx, s, name, newName)
	if err != nil {
		return time.Time{}, err
	}
	for _, other := range touched {
		if other == newName {
			continue
		}
		om, err := c.begin(ctx, s, other)
		if err != nil {
			return time.Time{}, err
		}
		om.changed = true
		if _, err := om.finish(ctx); err != nil {
			return time.Time{}, err
		}
	}

	alter, err := m.finish(ctx)
	if err != nil {
		return time.Time{}, err
	}
	c.logger.Info("Renamed type", zap.String("type", name), zap.String("new_name", newName))
	return alter, nil
}

// rippleRename rewrites the recorded kind of every column referencing the
// old type name and returns the types it touched.
func (c *Catalog) rippleRename(ctx context.Context, s *database.Session, name, newName string) ([]string, error) {
	const query = `
		SELECT c.relname, a.attname, a.attnotnull, col_description(c.oid, a.attnum)
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		WHERE c.relnamespace = current_schema()::regnamespace
		  AND c.relkind = 'r'
		  AND a.attnum > 0
		  AND NOT a.attisdropped
		  AND CASE WHEN col_description(c.oid, a.attnum) LIKE '{"type"%'
		      THEN col_description(c.oid, a.attnum)::jsonb ->> 'type'
		  END = $1
		ORDER BY c.relname, a.attnum
	`
	rows, err := s.Tx.Query(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("query references to %s: %w", name, apperrors.FromBackend(err))
	}

	type column struct {
		table, name string
		field       models.TypeField
	}
	var columns []column
	for rows.Next() {
		var (
			col     column
			notNull bool
			comment *string
		)
		if err := rows.Scan(&col.table, &col.name, &notNull, &comment); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan reference to %s: %w", name, err)
		}
		var cc columnComment
		if err := parseComment(comment, &cc); err != nil {
			continue
		}
		cc.Type = newName
		col.field = cc.field(notNull)
		columns = append(columns, col)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate references to %s: %w", name, apperrors.FromBackend(err))
	}

	var touched []string
	seen := make(map[string]bool)
	for _, col := range columns {
		if err := c.exec(ctx, s, columnCommentSQL(col.table, col.name, col.field)); err != nil {
			return nil, err
		}
		if !seen[col.table] {
			seen[col.table] = true
			touched = append(touched, col.table)
		}
	}
	return touched, nil
}

// AddField adds a field to a type.
func (c *Catalog) AddField(ctx context.Context, s *database.Session, typeName, field string, f models.TypeField) (time.Time, error) {
	return c.apply(ctx, s, typeName, func(m *migration) error {
		return m.addField(ctx, field, f)
	})
}

// AlterField changes the kind, parameters, nullability or range of a field.
func (c *Catalog) AlterField(ctx context.Context, s *database.Session, typeName, field string, f models.TypeField) (time.Time, error) {
	return c.apply(ctx, s, typeName, func(m *migration) error {
		_, err := m.alterField(ctx, field, f)
		return err
	})
}

// RenameField renames a field.
func (c *Catalog) RenameField(ctx context.Context, s *database.Session, typeName, field, newName string) (time.Time, error) {
	return c.apply(ctx, s, typeName, func(m *migration) error {
		return m.renameField(ctx, field, newName)
	})
}

// DropField drops a field that takes part in no index.
func (c *Catalog) DropField(ctx context.Context, s *database.Session, typeName, field string) (time.Time, error) {
	return c.apply(ctx, s, typeName, func(m *migration) error {
		return m.dropField(ctx, field)
	})
}

// AddIndex adds an index to a type.
func (c *Catalog) AddIndex(ctx context.Context, s *database.Session, typeName, index string, idx models.TypeIndex) (time.Time, error) {
	return c.apply(ctx, s, typeName, func(m *migration) error {
		return m.addIndex(ctx, index, idx)
	})
}

// AlterIndex rebuilds an index whose mode or fields changed.
func (c *Catalog) AlterIndex(ctx context.Context, s *database.Session, typeName, index string, idx models.TypeIndex) (time.Time, error) {
	return c.apply(ctx, s, typeName, func(m *migration) error {
		_, err := m.alterIndex(ctx, index, idx)
		return err
	})
}

// RenameIndex renames an index.
func (c *Catalog) RenameIndex(ctx context.Context, s *database.Session, typeName, index, newName string) (time.Time, error) {
	return c.apply(ctx, s, typeName, func(m *migration) error {
		return m.renameIndex(ctx, index, newName)
	})
}

// DropIndex drops an index.
func (c *Catalog) DropIndex(ctx context.Context, s *database.Session, typeName, index string) (time.Time, error) {
	return c.apply(ctx, s, typeName, func(m *migration) error {
		return m.dropIndex(ctx, index)
	})
}

func (c *Catalog) apply(ctx context.Context, s *database.Session, typeName string, fn func(m *migration) error) (alter time.Time, err error) {
	err = s.Savepoint(ctx, func(ctx context.Context) error {
		m, err := c.begin(ctx, s, typeName)
		if err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
		alter, err = m.finish(ctx)
		return err
	})
	if err != nil {
		return time.Time{}, err
	}
	return alter, nil
}
