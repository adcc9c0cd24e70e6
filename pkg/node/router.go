package node

import (
	"context"
	"sync"
	"time"

	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

// Router forwards each operation to the controller registered for the type it
// concerns, or to the base node when none is. Operations that span types go to
// the base node unless every named type shares one controller.
type Router struct {
	base Node

	mu          sync.RWMutex
	controllers map[string]Node
}

var _ Node = (*Router)(nil)

// NewRouter returns a router with no controllers in front of base.
func NewRouter(base Node) *Router {
	return &Router{base: base, controllers: make(map[string]Node)}
}

// Register makes controller handle every operation on typeName.
func (r *Router) Register(typeName string, controller Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controllers[typeName] = controller
}

// Controller returns the node handling typeName.
func (r *Router) Controller(typeName string) Node {
	return r.route(typeName)
}

func (r *Router) route(typeName string) Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.controllers[typeName]; ok {
		return c
	}
	return r.base
}

func (r *Router) routeAll(typeNames []string) Node {
	if len(typeNames) == 0 {
		return r.base
	}
	target := r.route(typeNames[0])
	for _, name := range typeNames[1:] {
		if r.route(name) != target {
			return r.base
		}
	}
	return target
}

func (r *Router) GetTypeNames(ctx context.Context) ([]string, error) {
	return r.base.GetTypeNames(ctx)
}

func (r *Router) GetType(ctx context.Context, name string) (*models.Type, error) {
	return r.route(name).GetType(ctx, name)
}

func (r *Router) GetTypes(ctx context.Context, names ...string) ([]*models.Type, error) {
	return r.routeAll(names).GetTypes(ctx, names...)
}

func (r *Router) ExistsType(ctx context.Context, name string) (bool, error) {
	return r.route(name).ExistsType(ctx, name)
}

func (r *Router) GetTypeAlterDate(ctx context.Context, name string) (time.Time, error) {
	return r.route(name).GetTypeAlterDate(ctx, name)
}

func (r *Router) CreateType(ctx context.Context, t *models.Type) (time.Time, error) {
	return r.route(t.Name).CreateType(ctx, t)
}

func (r *Router) AlterType(ctx context.Context, name string, target *models.Type, expected *time.Time) (*models.AlterResult, error) {
	return r.route(name).AlterType(ctx, name, target, expected)
}

func (r *Router) RenameType(ctx context.Context, name, newName string) (time.Time, error) {
	return r.route(name).RenameType(ctx, name, newName)
}

func (r *Router) DropType(ctx context.Context, names ...string) error {
	return r.routeAll(names).DropType(ctx, names...)
}

func (r *Router) AddField(ctx context.Context, typeName, field string, f models.TypeField) (time.Time, error) {
	return r.route(typeName).AddField(ctx, typeName, field, f)
}

func (r *Router) AlterField(ctx context.Context, typeName, field string, f models.TypeField) (time.Time, error) {
	return r.route(typeName).AlterField(ctx, typeName, field, f)
}

func (r *Router) RenameField(ctx context.Context, typeName, field, newName string) (time.Time, error) {
	return r.route(typeName).RenameField(ctx, typeName, field, newName)
}

func (r *Router) DropField(ctx context.Context, typeName, field string) (time.Time, error) {
	return r.route(typeName).DropField(ctx, typeName, field)
}

func (r *Router) AddIndex(ctx context.Context, typeName, index string, idx models.TypeIndex) (time.Time, error) {
	return r.route(typeName).AddIndex(ctx, typeName, index, idx)
}

func (r *Router) AlterIndex(ctx context.Context, typeName, index string, idx models.TypeIndex) (time.Time, error) {
	return r.route(typeName).AlterIndex(ctx, typeName, index, idx)
}

func (r *Router) RenameIndex(ctx context.Context, typeName, index, newName string) (time.Time, error) {
	return r.route(typeName).RenameIndex(ctx, typeName, index, newName)
}

func (r *Router) DropIndex(ctx context.Context, typeName, index string) (time.Time, error) {
	return r.route(typeName).DropIndex(ctx, typeName, index)
}

func (r *Router) GetUpTypeReferences(ctx context.Context, typeName string) ([]models.TypeReference, error) {
	return r.route(typeName).GetUpTypeReferences(ctx, typeName)
}

func (r *Router) GetDownTypeReferences(ctx context.Context, typeName string) ([]models.TypeReference, error) {
	return r.route(typeName).GetDownTypeReferences(ctx, typeName)
}

func (r *Router) GetTypeReferences(ctx context.Context) ([]models.TypeReference, error) {
	return r.base.GetTypeReferences(ctx)
}

func (r *Router) Get(ctx context.Context, typeName, id string, q models.Query) (*models.Object, error) {
	return r.route(typeName).Get(ctx, typeName, id, q)
}

func (r *Router) Select(ctx context.Context, typeName string, q models.Query) (*models.Objects, error) {
	return r.route(typeName).Select(ctx, typeName, q)
}

func (r *Router) SelectCustom(ctx context.Context, typeName, fragment string, params map[string]any, q models.Query) (*models.Tuples, error) {
	return r.route(typeName).SelectCustom(ctx, typeName, fragment, params, q)
}

func (r *Router) SelectStream(ctx context.Context, typeName string, q models.Query) (models.ObjectStream, error) {
	return r.route(typeName).SelectStream(ctx, typeName, q)
}

func (r *Router) Count(ctx context.Context, typeName string, q models.Query) (int64, error) {
	return r.route(typeName).Count(ctx, typeName, q)
}

func (r *Router) Insert(ctx context.Context, obj *models.Object) (time.Time, error) {
	return r.route(obj.Type).Insert(ctx, obj)
}

func (r *Router) Update(ctx context.Context, obj *models.Object, expected *time.Time) (time.Time, error) {
	return r.route(obj.Type).Update(ctx, obj, expected)
}

func (r *Router) UpdateField(ctx context.Context, typeName, id, field string, value any) (time.Time, error) {
	return r.route(typeName).UpdateField(ctx, typeName, id, field, value)
}

func (r *Router) UpdatePassword(ctx context.Context, typeName, id, field string, pv models.PasswordValue) (time.Time, error) {
	return r.route(typeName).UpdatePassword(ctx, typeName, id, field, pv)
}

func (r *Router) PasswordMatch(ctx context.Context, typeName, id, field, password string) (bool, error) {
	return r.route(typeName).PasswordMatch(ctx, typeName, id, field, password)
}

func (r *Router) UpdateID(ctx context.Context, typeName, id, newID string) (string, error) {
	return r.route(typeName).UpdateID(ctx, typeName, id, newID)
}

func (r *Router) Delete(ctx context.Context, typeName string, ids ...string) (int64, error) {
	return r.route(typeName).Delete(ctx, typeName, ids...)
}

func (r *Router) GetFieldsDefaults(ctx context.Context, typeName string) (map[string]any, error) {
	return r.route(typeName).GetFieldsDefaults(ctx, typeName)
}

func (r *Router) GetFieldContent(ctx context.Context, typeName, id, field string) ([]byte, error) {
	return r.route(typeName).GetFieldContent(ctx, typeName, id, field)
}

func (r *Router) GetFieldContentType(ctx context.Context, typeName, id, field string) (string, error) {
	return r.route(typeName).GetFieldContentType(ctx, typeName, id, field)
}

func (r *Router) GetImageThumbnail(ctx context.Context, typeName, id, field string) ([]byte, error) {
	return r.route(typeName).GetImageThumbnail(ctx, typeName, id, field)
}

func (r *Router) GetDocumentText(ctx context.Context, typeName, id, field string) (string, error) {
	return r.route(typeName).GetDocumentText(ctx, typeName, id, field)
}

func (r *Router) GetUpReferences(ctx context.Context, typeName, id string) ([]models.Reference, error) {
	return r.route(typeName).GetUpReferences(ctx, typeName, id)
}

func (r *Router) ExecuteAction(ctx context.Context, typeName, action string, params map[string]any) (any, error) {
	return r.route(typeName).ExecuteAction(ctx, typeName, action, params)
}

func (r *Router) ExportTypes(ctx context.Context, names []string, includeObjects bool) (models.TypeStream, error) {
	return r.base.ExportTypes(ctx, names, includeObjects)
}

func (r *Router) ExportObjects(ctx context.Context, typeName string, ids ...string) (models.ObjectStream, error) {
	return r.route(typeName).ExportObjects(ctx, typeName, ids...)
}

func (r *Router) ImportTypes(ctx context.Context, stream models.TypeStream, typePolicy models.TypePolicy, objectPolicy models.ObjectPolicy) (*models.ImportResult, error) {
	return r.base.ImportTypes(ctx, stream, typePolicy, objectPolicy)
}

func (r *Router) ImportObjects(ctx context.Context, stream models.ObjectStream, objectPolicy models.ObjectPolicy) (*models.ImportResult, error) {
	return r.base.ImportObjects(ctx, stream, objectPolicy)
}

func (r *Router) Execute(ctx context.Context, statement string, params ...any) (int64, error) {
	return r.base.Execute(ctx, statement, params...)
}

func (r *Router) Query(ctx context.Context, statement string, params ...any) ([]models.Tuple, error) {
	return r.base.Query(ctx, statement, params...)
}
