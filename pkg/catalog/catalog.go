// Package catalog keeps the type definitions: it reads them back from the
// live schema, caches them per session and applies migrations.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
	"github.com/ekaya-inc/ekaya-typestore/pkg/metacache"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

// Catalog reads and migrates type definitions within a session.
type Catalog struct {
	settings models.SettingsProvider
	logger   *zap.Logger
}

// New creates a catalog. Settings supply the per-field content-type
// allow-lists cached with each type; nil means no restrictions.
func New(settings models.SettingsProvider, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings == nil {
		settings = &models.Settings{}
	}
	return &Catalog{settings: settings, logger: logger.Named("catalog")}
}

// Entry returns the cached metadata of a type, loading it on a miss.
// The returned type is shared and must not be modified.
func (c *Catalog) Entry(ctx context.Context, s *database.Session, name string) (*metacache.Entry, error) {
	return s.Cache.Load(name, func() (*metacache.Entry, error) {
		t, err := c.load(ctx, s, name)
		if err != nil {
			return nil, err
		}
		entry := &metacache.Entry{Type: t, ContentTypes: make(map[string][]string)}
		ts := c.settings.TypeSettings(name)
		for _, field := range t.FieldNames() {
			if allowed := ts.Field(field).ContentTypes; len(allowed) > 0 {
				entry.ContentTypes[field] = allowed
			}
		}
		return entry, nil
	})
}

// Type returns the shared, cached definition of a type.
func (c *Catalog) Type(ctx context.Context, s *database.Session, name string) (*models.Type, error) {
	entry, err := c.Entry(ctx, s, name)
	if err != nil {
		return nil, err
	}
	return entry.Type, nil
}

// GetType returns a copy of a type definition the caller may modify.
func (c *Catalog) GetType(ctx context.Context, s *database.Session, name string) (*models.Type, error) {
	t, err := c.Type(ctx, s, name)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// GetTypes returns the named types, or every type when names is empty.
func (c *Catalog) GetTypes(ctx context.Context, s *database.Session, names ...string) ([]*models.Type, error) {
	if len(names) == 0 {
		var err error
		if names, err = c.GetTypeNames(ctx, s); err != nil {
			return nil, err
		}
	}
	types := make([]*models.Type, 0, len(names))
	for _, name := range names {
		t, err := c.GetType(ctx, s, name)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// GetTypeNames lists every type in the current schema, sorted by name.
func (c *Catalog) GetTypeNames(ctx context.Context, s *database.Session) ([]string, error) {
	const query = `
		SELECT c.relname
		FROM pg_class c
		WHERE c.relnamespace = current_schema()::regnamespace
		  AND c.relkind = 'r'
		  AND obj_description(c.oid, 'pg_class') LIKE '{"create"%'
		ORDER BY c.relname
	`
	rows, err := s.Tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query type names: %w", apperrors.FromBackend(err))
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan type names: %w", apperrors.FromBackend(err))
	}
	return names, nil
}

// ExistsType reports whether a type exists, reading through the cache.
func (c *Catalog) ExistsType(ctx context.Context, s *database.Session, name string) (bool, error) {
	_, err := c.Type(ctx, s, name)
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// GetTypeAlterDate returns the alteration timestamp of a type.
func (c *Catalog) GetTypeAlterDate(ctx context.Context, s *database.Session, name string) (time.Time, error) {
	t, err := c.Type(ctx, s, name)
	if err != nil {
		return time.Time{}, err
	}
	return t.Alter, nil
}

func (c *Catalog) load(ctx context.Context, s *database.Session, name string) (*models.Type, error) {
	const tableQuery = `
		SELECT c.oid, obj_description(c.oid, 'pg_class')
		FROM pg_class c
		WHERE c.relnamespace = current_schema()::regnamespace
		  AND c.relkind = 'r'
		  AND c.relname = $1
	`
	var (
		oid     uint32
		comment *string
	)
	if err := s.Tx.QueryRow(ctx, tableQuery, name).Scan(&oid, &comment); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(apperrors.KeyTypeNotFound, name)
		}
		return nil, fmt.Errorf("query type %s: %w", name, apperrors.FromBackend(err))
	}

	var tc tableComment
	if err := parseComment(comment, &tc); err != nil {
		return nil, apperrors.NotFound(apperrors.KeyTypeNotFound, name)
	}
	t := models.NewType(name)
	t.Create = tc.Create.UTC()
	t.Alter = tc.Alter.UTC()

	if err := c.loadFields(ctx, s, oid, t); err != nil {
		return nil, err
	}
	if err := c.loadIndexes(ctx, s, oid, t); err != nil {
		return nil, err
	}

	c.logger.Debug("Loaded type metadata",
		zap.String("type", name),
		zap.Int("fields", t.Fields.Len()),
		zap.Int("indexes", t.Indexes.Len()))
	return t, nil
}

func (c *Catalog) loadFields(ctx context.Context, s *database.Session, oid uint32, t *models.Type) error {
	const query = `
		SELECT a.attname, a.attnotnull, col_description(a.attrelid, a.attnum)
		FROM pg_attribute a
		WHERE a.attrelid = $1
		  AND a.attnum > 0
		  AND NOT a.attisdropped
		ORDER BY a.attnum
	`
	rows, err := s.Tx.Query(ctx, query, oid)
	if err != nil {
		return fmt.Errorf("query fields of %s: %w", t.Name, apperrors.FromBackend(err))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name    string
			notNull bool
			comment *string
		)
		if err := rows.Scan(&name, &notNull, &comment); err != nil {
			return fmt.Errorf("scan field of %s: %w", t.Name, err)
		}
		if models.IsImplicitColumn(name) {
			continue
		}
		var cc columnComment
		if err := parseComment(comment, &cc); err != nil {
			return fmt.Errorf("field %s.%s: %w", t.Name, name, err)
		}
		t.WithField(name, cc.field(notNull))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate fields of %s: %w", t.Name, apperrors.FromBackend(err))
	}
	return nil
}

func (c *Catalog) loadIndexes(ctx context.Context, s *database.Session, oid uint32, t *models.Type) error {
	const query = `
		SELECT ci.relname, obj_description(ci.oid, 'pg_class')
		FROM pg_index i
		JOIN pg_class ci ON ci.oid = i.indexrelid
		WHERE i.indrelid = $1
		  AND NOT i.indisprimary
		ORDER BY ci.oid
	`
	rows, err := s.Tx.Query(ctx, query, oid)
	if err != nil {
		return fmt.Errorf("query indexes of %s: %w", t.Name, apperrors.FromBackend(err))
	}
	defer rows.Close()

	prefix := IndexName(t.Name, "")
	for rows.Next() {
		var (
			physical string
			comment  *string
		)
		if err := rows.Scan(&physical, &comment); err != nil {
			return fmt.Errorf("scan index of %s: %w", t.Name, err)
		}
		var ic indexComment
		if len(physical) <= len(prefix) || physical[:len(prefix)] != prefix || parseComment(comment, &ic) != nil {
			// Indexes created outside the catalog are not part of the type.
			continue
		}
		t.WithIndex(physical[len(prefix):], models.TypeIndex{Mode: ic.Mode, Fields: ic.Fields})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate indexes of %s: %w", t.Name, apperrors.FromBackend(err))
	}
	return nil
}
