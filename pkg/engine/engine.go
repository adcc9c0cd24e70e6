// Package engine runs generic object operations against the types kept by the
// catalog: CRUD with validation, searches and cursors, composite accessors,
// export and import, and a raw SQL escape hatch. Every operation works inside
// the session found in its context.
package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/audit"
	"github.com/ekaya-inc/ekaya-typestore/pkg/catalog"
	"github.com/ekaya-inc/ekaya-typestore/pkg/crypto"
	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
	"github.com/ekaya-inc/ekaya-typestore/pkg/metrics"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
	"github.com/ekaya-inc/ekaya-typestore/pkg/node"
)

// Engine is the PostgreSQL implementation of the generic operation contract.
type Engine struct {
	catalog  *catalog.Catalog
	settings models.SettingsProvider
	hasher   *crypto.PasswordHasher
	auditor  *audit.SecurityAuditor
	logger   *zap.Logger
}

var _ node.Node = (*Engine)(nil)

// New creates an engine over cat. A nil hasher uses the default argon2id cost.
func New(cat *catalog.Catalog, settings models.SettingsProvider, hasher *crypto.PasswordHasher, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings == nil {
		settings = &models.Settings{}
	}
	if hasher == nil {
		hasher = crypto.NewPasswordHasher(crypto.DefaultHasherConfig)
	}
	return &Engine{
		catalog:  cat,
		settings: settings,
		hasher:   hasher,
		auditor:  audit.NewSecurityAuditor(logger),
		logger:   logger.Named("engine"),
	}
}

// Catalog returns the catalog the engine reads type definitions from.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

func session(ctx context.Context) (*database.Session, error) {
	s, ok := database.GetSession(ctx)
	if !ok {
		return nil, apperrors.New(apperrors.KindBackend, apperrors.KeyNoSession)
	}
	return s, nil
}

func track(operation string, errp *error) func() {
	return metrics.Track(operation, errp, func(err error) string {
		return string(apperrors.KindOf(err))
	})
}

// ============================================================================
// Types
// ============================================================================

func (e *Engine) GetTypeNames(ctx context.Context) (names []string, err error) {
	defer track("get_type_names", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	return e.catalog.GetTypeNames(ctx, s)
}

func (e *Engine) GetType(ctx context.Context, name string) (t *models.Type, err error) {
	defer track("get_type", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	return e.catalog.GetType(ctx, s, name)
}

func (e *Engine) GetTypes(ctx context.Context, names ...string) (types []*models.Type, err error) {
	defer track("get_types", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	return e.catalog.GetTypes(ctx, s, names...)
}

func (e *Engine) ExistsType(ctx context.Context, name string) (exists bool, err error) {
	defer track("exists_type", &err)()
	s, err := session(ctx)
	if err != nil {
		return false, err
	}
	return e.catalog.ExistsType(ctx, s, name)
}

func (e *Engine) GetTypeAlterDate(ctx context.Context, name string) (alter time.Time, err error) {
	defer track("get_type_alter_date", &err)()
	s, err := session(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return e.catalog.GetTypeAlterDate(ctx, s, name)
}

func (e *Engine) CreateType(ctx context.Context, t *models.Type) (alter time.Time, err error) {
	defer track("create_type", &err)()
	s, err := session(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return e.catalog.CreateType(ctx, s, t)
}

func (e *Engine) AlterType(ctx context.Context, name string, target *models.Type, expected *time.Time) (result *models.AlterResult, err error) {
	defer track("alter_type", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	return e.catalog.AlterType(ctx, s, name, target, expected)
}

func (e *Engine) RenameType(ctx context.Context, name, newName string) (alter time.Time, err error) {
	defer track("rename_type", &err)()
	s, err := session(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return e.catalog.RenameType(ctx, s, name, newName)
}

func (e *Engine) DropType(ctx context.Context, names ...string) (err error) {
	defer track("drop_type", &err)()
	s, err := session(ctx)
	if err != nil {
		return err
	}
	return e.catalog.DropType(ctx, s, names...)
}

func (e *Engine) AddField(ctx context.Context, typeName, field string, f models.TypeField) (alter time.Time, err error) {
	defer track("add_field", &err)()
	s, err := session(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return e.catalog.AddField(ctx, s, typeName, field, f)
}

func (e *Engine) AlterField(ctx context.Context, typeName, field string, f models.TypeField) (alter time.Time, err error) {
	defer track("alter_field", &err)()
	s, err := session(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return e.catalog.AlterField(ctx, s, typeName, field, f)
}

func (e *Engine) RenameField(ctx context.Context, typeName, field, newName string) (alter time.Time, err error) {
	defer track("rename_field", &err)()
	s, err := session(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return e.catalog.RenameField(ctx, s, typeName, field, newName)
}

func (e *Engine) DropField(ctx context.Context, typeName, field string) (alter time.Time, err error) {
	defer track("drop_field", &err)()
	s, err := session(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return e.catalog.DropField(ctx, s, typeName, field)
}

func (e *Engine) AddIndex(ctx context.Context, typeName, index string, idx models.TypeIndex) (alter time.Time, err error) {
	defer track("add_index", &err)()
	s, err := session(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return e.catalog.AddIndex(ctx, s, typeName, index, idx)
}

func (e *Engine) AlterIndex(ctx context.Context, typeName, index string, idx models.TypeIndex) (alter time.Time, err error) {
	defer track("alter_index", &err)()
	s, err := session(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return e.catalog.AlterIndex(ctx, s, typeName, index, idx)
}

func (e *Engine) RenameIndex(ctx context.Context, typeName, index, newName string) (alter time.Time, err error) {
	defer track("rename_index", &err)()
	s, err := session(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return e.catalog.RenameIndex(ctx, s, typeName, index, newName)
}

func (e *Engine) DropIndex(ctx context.Context, typeName, index string) (alter time.Time, err error) {
	defer track("drop_index", &err)()
	s, err := session(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return e.catalog.DropIndex(ctx, s, typeName, index)
}

func (e *Engine) GetUpTypeReferences(ctx context.Context, typeName string) (refs []models.TypeReference, err error) {
	defer track("get_up_type_references", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	return e.catalog.GetUpTypeReferences(ctx, s, typeName)
}

func (e *Engine) GetDownTypeReferences(ctx context.Context, typeName string) (refs []models.TypeReference, err error) {
	defer track("get_down_type_references", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	return e.catalog.GetDownTypeReferences(ctx, s, typeName)
}

func (e *Engine) GetTypeReferences(ctx context.Context) (refs []models.TypeReference, err error) {
	defer track("get_type_references", &err)()
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	return e.catalog.GetTypeReferences(ctx, s)
}

// ExecuteAction runs a named type-specific action. The generic engine knows
// none; controllers provide them.
func (e *Engine) ExecuteAction(ctx context.Context, typeName, action string, params map[string]any) (any, error) {
	return nil, apperrors.NotFound(apperrors.KeyActionNotFound, typeName, action)
}
