package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
	"github.com/ekaya-inc/ekaya-typestore/pkg/kinds"
	"github.com/ekaya-inc/ekaya-typestore/pkg/metacache"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
	"github.com/ekaya-inc/ekaya-typestore/pkg/sql"
)

// nextUpdate advances the update date even when the clock has not moved
// since the previous write.
const nextUpdate = `greatest(clock_timestamp(), "udate" + interval '1 microsecond')`

// Insert validates and stores a new object. A missing identifier is generated.
// On success obj carries its identifier and dates; the update date is returned.
func (e *Engine) Insert(ctx context.Context, obj *models.Object) (update time.Time, err error) {
	defer track("insert", &err)()
	s, err := session(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return e.insert(ctx, s, obj)
}

func (e *Engine) insert(ctx context.Context, s *database.Session, obj *models.Object) (time.Time, error) {
	entry, err := e.catalog.Entry(ctx, s, obj.Type)
	if err != nil {
		return time.Time{}, err
	}
	t := entry.Type
	if err := checkFieldNames(t, obj.Fields); err != nil {
		return time.Time{}, err
	}
	if obj.ID == "" {
		obj.ID = uuid.NewString()
	} else if err := validID(t.Name, obj.ID); err != nil {
		return time.Time{}, err
	}

	ts := e.settings.TypeSettings(t.Name)
	w := newWriteSet()
	w.bind(models.ColumnID, obj.ID)

	keepDates := s.Importing() && !obj.Create.IsZero()
	if keepDates {
		w.bind(models.ColumnCreate, obj.Create)
		if obj.Update.IsZero() {
			obj.Update = obj.Create
		}
		w.bind(models.ColumnUpdate, obj.Update)
	} else {
		w.expr(models.ColumnCreate, "clock.ts")
		w.expr(models.ColumnUpdate, "clock.ts")
	}
	w.bind(models.ColumnBackup, obj.Backup)

	for pair := t.Fields.Oldest(); pair != nil; pair = pair.Next() {
		name, f := pair.Key, pair.Value
		v, supplied := obj.Fields[name]
		if supplied && v == nil && f.NotNull {
			return time.Time{}, apperrors.Validation(apperrors.KeyNullField, t.Name, name)
		}
		if !supplied && !isPassword(f) {
			if v, err = fieldDefault(t.Name, name, f, ts); err != nil {
				return time.Time{}, err
			}
		}

		if isPassword(f) {
			hash, err := e.passwordValue(s, t.Name, name, v, nil)
			if err != nil {
				return time.Time{}, err
			}
			if hash == nil && f.NotNull {
				return time.Time{}, apperrors.Validation(apperrors.KeyEmptyField, t.Name, name)
			}
			if hash != nil {
				w.hidden(name, *hash)
			}
			continue
		}

		n, err := normalize(entry, name, f, v)
		if err != nil {
			return time.Time{}, err
		}
		if n == nil {
			if f.NotNull {
				return time.Time{}, apperrors.Validation(apperrors.KeyEmptyField, t.Name, name)
			}
			continue
		}
		w.value(name, f, n)
	}

	query := "INSERT INTO " + sql.Ident(t.Name) + " (" + strings.Join(w.columns, ", ") + ") SELECT " + strings.Join(w.exprs, ", ")
	if !keepDates {
		query += " FROM (SELECT clock_timestamp() AS ts) AS clock"
	}
	query += ` RETURNING "cdate", "udate"`
	args := w.b.Args()
	e.logStatement(query, args, w.secret)

	var cdate, udate time.Time
	err = s.Savepoint(ctx, func(ctx context.Context) error {
		return s.Tx.QueryRow(ctx, query, args...).Scan(&cdate, &udate)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, apperrors.Integrity(apperrors.KeyUnexpectedRowCount, t.Name, obj.ID, 0)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to insert %s %s: %w", t.Name, obj.ID, apperrors.FromBackend(err))
	}

	obj.Create = cdate.UTC()
	obj.Update = udate.UTC()
	return obj.Update, nil
}

// Update writes the fields present in obj. When expected is set it must equal
// the stored update date. The new update date is returned.
func (e *Engine) Update(ctx context.Context, obj *models.Object, expected *time.Time) (update time.Time, err error) {
	defer track("update", &err)()
	s, err := session(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return e.update(ctx, s, obj, expected)
}

// UpdateField writes one field of an object.
func (e *Engine) UpdateField(ctx context.Context, typeName, id, field string, value any) (update time.Time, err error) {
	defer track("update_field", &err)()
	s, err := session(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return e.update(ctx, s, models.NewObject(typeName, id).Set(field, value), nil)
}

func (e *Engine) update(ctx context.Context, s *database.Session, obj *models.Object, expected *time.Time) (time.Time, error) {
	entry, err := e.catalog.Entry(ctx, s, obj.Type)
	if err != nil {
		return time.Time{}, err
	}
	t := entry.Type
	if err := validID(t.Name, obj.ID); err != nil {
		return time.Time{}, err
	}
	if err := checkFieldNames(t, obj.Fields); err != nil {
		return time.Time{}, err
	}

	if !s.Importing() {
		var current time.Time
		err := s.Tx.QueryRow(ctx, "SELECT \"udate\" FROM "+sql.Ident(t.Name)+" WHERE \"id\" = $1 FOR UPDATE", obj.ID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, apperrors.NotFound(apperrors.KeyObjectNotFound, t.Name, obj.ID)
		}
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to lock %s %s: %w", t.Name, obj.ID, apperrors.FromBackend(err))
		}
		if expected != nil && !expected.Equal(current) {
			return time.Time{}, apperrors.Conflict(apperrors.KeyOutdatedObject, t.Name, obj.ID, current.Format(time.RFC3339Nano))
		}
	}

	w := newWriteSet()
	if err := e.assignFields(ctx, s, entry, obj, w); err != nil {
		return time.Time{}, err
	}
	if s.Importing() {
		if !obj.Create.IsZero() {
			w.bind(models.ColumnCreate, obj.Create)
		}
		if !obj.Update.IsZero() {
			w.bind(models.ColumnUpdate, obj.Update)
		} else {
			w.expr(models.ColumnUpdate, nextUpdate)
		}
		w.bind(models.ColumnBackup, obj.Backup)
	} else {
		w.expr(models.ColumnUpdate, nextUpdate)
	}

	query := "UPDATE " + sql.Ident(t.Name) + " SET " + w.assignments() + ` WHERE "id" = ` + w.b.Placeholder(obj.ID)
	if expected != nil {
		query += ` AND "udate" = ` + w.b.Placeholder(*expected)
	}
	query += ` RETURNING "udate"`
	args := w.b.Args()
	e.logStatement(query, args, w.secret)

	var udate time.Time
	err = s.Savepoint(ctx, func(ctx context.Context) error {
		return s.Tx.QueryRow(ctx, query, args...).Scan(&udate)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		if expected != nil {
			return time.Time{}, apperrors.Conflict(apperrors.KeyOutdatedObject, t.Name, obj.ID)
		}
		return time.Time{}, apperrors.NotFound(apperrors.KeyObjectNotFound, t.Name, obj.ID)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to update %s %s: %w", t.Name, obj.ID, apperrors.FromBackend(err))
	}
	obj.Update = udate.UTC()
	return obj.Update, nil
}

// assignFields validates the supplied fields of obj in declaration order and
// adds their assignments to w.
func (e *Engine) assignFields(ctx context.Context, s *database.Session, entry *metacache.Entry, obj *models.Object, w *writeSet) error {
	t := entry.Type
	for pair := t.Fields.Oldest(); pair != nil; pair = pair.Next() {
		name, f := pair.Key, pair.Value
		v, supplied := obj.Fields[name]
		if !supplied {
			continue
		}
		if v == nil && f.NotNull {
			return apperrors.Validation(apperrors.KeyNullField, t.Name, name)
		}

		if isPassword(f) {
			var current *string
			if !s.Importing() {
				var err error
				if current, err = e.storedPassword(ctx, s, t.Name, obj.ID, name); err != nil {
					return err
				}
			}
			hash, err := e.passwordValue(s, t.Name, name, v, current)
			if err != nil {
				return err
			}
			if hash == nil {
				if f.NotNull {
					return apperrors.Validation(apperrors.KeyEmptyField, t.Name, name)
				}
				w.expr(name, "NULL")
				continue
			}
			w.hidden(name, *hash)
			continue
		}

		n, err := normalize(entry, name, f, v)
		if err != nil {
			return err
		}
		if n == nil && f.NotNull {
			return apperrors.Validation(apperrors.KeyEmptyField, t.Name, name)
		}
		w.value(name, f, n)
	}
	return nil
}

// UpdateID renames an object. An empty newID is generated. References follow
// through their ON UPDATE CASCADE constraints.
func (e *Engine) UpdateID(ctx context.Context, typeName, id, newID string) (assigned string, err error) {
	defer track("update_id", &err)()
	s, err := session(ctx)
	if err != nil {
		return "", err
	}
	if _, err := e.catalog.Entry(ctx, s, typeName); err != nil {
		return "", err
	}
	if newID == "" {
		newID = uuid.NewString()
	} else if err := validID(typeName, newID); err != nil {
		return "", err
	}

	query := "UPDATE " + sql.Ident(typeName) + ` SET "id" = $1, "udate" = ` + nextUpdate + ` WHERE "id" = $2`
	var affected int64
	err = s.Savepoint(ctx, func(ctx context.Context) error {
		tag, err := s.Tx.Exec(ctx, query, newID, id)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to rename %s %s: %w", typeName, id, apperrors.FromBackend(err))
	}
	switch affected {
	case 1:
	case 0:
		return "", apperrors.NotFound(apperrors.KeyObjectNotFound, typeName, id)
	default:
		return "", apperrors.Integrity(apperrors.KeyUnexpectedRowCount, typeName, id, affected)
	}
	e.logger.Debug("Renamed object", zap.String("type", typeName), zap.String("id", id), zap.String("new_id", newID))
	return newID, nil
}

// Delete removes the listed objects and returns how many existed.
func (e *Engine) Delete(ctx context.Context, typeName string, ids ...string) (deleted int64, err error) {
	defer track("delete", &err)()
	s, err := session(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, apperrors.Validation(apperrors.KeyEmptyIDList, typeName)
	}
	if _, err := e.catalog.Entry(ctx, s, typeName); err != nil {
		return 0, err
	}

	query := "DELETE FROM " + sql.Ident(typeName) + ` WHERE "id" = ANY($1)`
	err = s.Savepoint(ctx, func(ctx context.Context) error {
		tag, err := s.Tx.Exec(ctx, query, ids)
		deleted = tag.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", typeName, apperrors.FromBackend(err))
	}
	return deleted, nil
}

// GetFieldsDefaults returns the value each field of a new object would
// receive when the caller leaves it out.
func (e *Engine) GetFieldsDefaults(ctx context.Context, typeName string) (defaults map[string]any, err error) {
	defer track("get_fields_defaults", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	t, err := e.catalog.Type(ctx, s, typeName)
	if err != nil {
		return nil, err
	}
	ts := e.settings.TypeSettings(typeName)
	defaults = make(map[string]any)
	for pair := t.Fields.Oldest(); pair != nil; pair = pair.Next() {
		if isPassword(pair.Value) {
			continue
		}
		v, err := fieldDefault(typeName, pair.Key, pair.Value, ts)
		if err != nil {
			return nil, err
		}
		if v != nil {
			defaults[pair.Key] = v
		}
	}
	return defaults, nil
}

// fieldDefault parses the configured default of a field. Binary kinds load
// "file:<path>" defaults from disk.
func fieldDefault(typeName, name string, f models.TypeField, ts models.TypeSettings) (any, error) {
	def := ts.Field(name).Default
	if def == nil {
		return nil, nil
	}
	k, ok := kinds.Lookup(f.Type)
	if !ok {
		return *def, nil
	}
	v, err := k.Parse(*def)
	if err != nil {
		return nil, apperrors.Validation(apperrors.KeyInvalidValue, typeName, name, *def)
	}
	return v, nil
}

// checkFieldNames rejects values for implicit columns and unknown fields.
func checkFieldNames(t *models.Type, fields map[string]any) error {
	for name := range fields {
		if models.IsImplicitColumn(name) {
			return apperrors.Validation(apperrors.KeyReservedName, name)
		}
		if _, ok := t.Field(name); !ok {
			return apperrors.NotFound(apperrors.KeyFieldNotFound, t.Name, name)
		}
	}
	return nil
}
