// Package node defines the operation contract shared by the generic engine
// and type-specific extensions, and the decorators that dispatch between them.
package node

import (
	"context"
	"time"

	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

// Node is the full set of type and object operations. Every method works in
// the session carried by ctx.
type Node interface {
	// Types
	GetTypeNames(ctx context.Context) ([]string, error)
	GetType(ctx context.Context, name string) (*models.Type, error)
	GetTypes(ctx context.Context, names ...string) ([]*models.Type, error)
	ExistsType(ctx context.Context, name string) (bool, error)
	GetTypeAlterDate(ctx context.Context, name string) (time.Time, error)
	CreateType(ctx context.Context, t *models.Type) (time.Time, error)
	AlterType(ctx context.Context, name string, target *models.Type, expected *time.Time) (*models.AlterResult, error)
	RenameType(ctx context.Context, name, newName string) (time.Time, error)
	DropType(ctx context.Context, names ...string) error
	AddField(ctx context.Context, typeName, field string, f models.TypeField) (time.Time, error)
	AlterField(ctx context.Context, typeName, field string, f models.TypeField) (time.Time, error)
	RenameField(ctx context.Context, typeName, field, newName string) (time.Time, error)
	DropField(ctx context.Context, typeName, field string) (time.Time, error)
	AddIndex(ctx context.Context, typeName, index string, idx models.TypeIndex) (time.Time, error)
	AlterIndex(ctx context.Context, typeName, index string, idx models.TypeIndex) (time.Time, error)
	RenameIndex(ctx context.Context, typeName, index, newName string) (time.Time, error)
	DropIndex(ctx context.Context, typeName, index string) (time.Time, error)
	GetUpTypeReferences(ctx context.Context, typeName string) ([]models.TypeReference, error)
	GetDownTypeReferences(ctx context.Context, typeName string) ([]models.TypeReference, error)
	GetTypeReferences(ctx context.Context) ([]models.TypeReference, error)

	// Objects
	Get(ctx context.Context, typeName, id string, q models.Query) (*models.Object, error)
	Select(ctx context.Context, typeName string, q models.Query) (*models.Objects, error)
	SelectCustom(ctx context.Context, typeName, fragment string, params map[string]any, q models.Query) (*models.Tuples, error)
	SelectStream(ctx context.Context, typeName string, q models.Query) (models.ObjectStream, error)
	Count(ctx context.Context, typeName string, q models.Query) (int64, error)
	Insert(ctx context.Context, obj *models.Object) (time.Time, error)
	Update(ctx context.Context, obj *models.Object, expected *time.Time) (time.Time, error)
	UpdateField(ctx context.Context, typeName, id, field string, value any) (time.Time, error)
	UpdatePassword(ctx context.Context, typeName, id, field string, pv models.PasswordValue) (time.Time, error)
	PasswordMatch(ctx context.Context, typeName, id, field, password string) (bool, error)
	UpdateID(ctx context.Context, typeName, id, newID string) (string, error)
	Delete(ctx context.Context, typeName string, ids ...string) (int64, error)
	GetFieldsDefaults(ctx context.Context, typeName string) (map[string]any, error)
	GetFieldContent(ctx context.Context, typeName, id, field string) ([]byte, error)
	GetFieldContentType(ctx context.Context, typeName, id, field string) (string, error)
	GetImageThumbnail(ctx context.Context, typeName, id, field string) ([]byte, error)
	GetDocumentText(ctx context.Context, typeName, id, field string) (string, error)
	GetUpReferences(ctx context.Context, typeName, id string) ([]models.Reference, error)
	ExecuteAction(ctx context.Context, typeName, action string, params map[string]any) (any, error)

	// Transfer
	ExportTypes(ctx context.Context, names []string, includeObjects bool) (models.TypeStream, error)
	ExportObjects(ctx context.Context, typeName string, ids ...string) (models.ObjectStream, error)
	ImportTypes(ctx context.Context, stream models.TypeStream, typePolicy models.TypePolicy, objectPolicy models.ObjectPolicy) (*models.ImportResult, error)
	ImportObjects(ctx context.Context, stream models.ObjectStream, objectPolicy models.ObjectPolicy) (*models.ImportResult, error)

	// Escape hatch
	Execute(ctx context.Context, statement string, params ...any) (int64, error)
	Query(ctx context.Context, statement string, params ...any) ([]models.Tuple, error)
}
