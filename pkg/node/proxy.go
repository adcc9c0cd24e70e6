package node

import (
	"context"
	"time"

	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

// Proxy is the view of the whole system handed to the controller of one type.
// Operations on that type come back to the controller itself; operations on
// any other type go to next, normally the Router, so their own controllers
// apply. A controller reaches the generic behavior of its own type through its
// embedded base node instead, which keeps it from dispatching into itself.
type Proxy struct {
	self  string
	owner Node
	next  Node
}

var _ Node = (*Proxy)(nil)

// NewProxy returns the proxy of the controller owner, which handles typeName.
func NewProxy(typeName string, owner, next Node) *Proxy {
	return &Proxy{self: typeName, owner: owner, next: next}
}

func (p *Proxy) route(typeName string) Node {
	if typeName == p.self {
		return p.owner
	}
	return p.next
}

func (p *Proxy) routeAll(typeNames []string) Node {
	for _, name := range typeNames {
		if name != p.self {
			return p.next
		}
	}
	if len(typeNames) == 0 {
		return p.next
	}
	return p.owner
}

func (p *Proxy) GetTypeNames(ctx context.Context) ([]string, error) {
	return p.next.GetTypeNames(ctx)
}

func (p *Proxy) GetType(ctx context.Context, name string) (*models.Type, error) {
	return p.route(name).GetType(ctx, name)
}

func (p *Proxy) GetTypes(ctx context.Context, names ...string) ([]*models.Type, error) {
	return p.routeAll(names).GetTypes(ctx, names...)
}

func (p *Proxy) ExistsType(ctx context.Context, name string) (bool, error) {
	return p.route(name).ExistsType(ctx, name)
}

func (p *Proxy) GetTypeAlterDate(ctx context.Context, name string) (time.Time, error) {
	return p.route(name).GetTypeAlterDate(ctx, name)
}

func (p *Proxy) CreateType(ctx context.Context, t *models.Type) (time.Time, error) {
	return p.route(t.Name).CreateType(ctx, t)
}

func (p *Proxy) AlterType(ctx context.Context, name string, target *models.Type, expected *time.Time) (*models.AlterResult, error) {
	return p.route(name).AlterType(ctx, name, target, expected)
}

func (p *Proxy) RenameType(ctx context.Context, name, newName string) (time.Time, error) {
	return p.route(name).RenameType(ctx, name, newName)
}

func (p *Proxy) DropType(ctx context.Context, names ...string) error {
	return p.routeAll(names).DropType(ctx, names...)
}

func (p *Proxy) AddField(ctx context.Context, typeName, field string, f models.TypeField) (time.Time, error) {
	return p.route(typeName).AddField(ctx, typeName, field, f)
}

func (p *Proxy) AlterField(ctx context.Context, typeName, field string, f models.TypeField) (time.Time, error) {
	return p.route(typeName).AlterField(ctx, typeName, field, f)
}

func (p *Proxy) RenameField(ctx context.Context, typeName, field, newName string) (time.Time, error) {
	return p.route(typeName).RenameField(ctx, typeName, field, newName)
}

func (p *Proxy) DropField(ctx context.Context, typeName, field string) (time.Time, error) {
	return p.route(typeName).DropField(ctx, typeName, field)
}

func (p *Proxy) AddIndex(ctx context.Context, typeName, index string, idx models.TypeIndex) (time.Time, error) {
	return p.route(typeName).AddIndex(ctx, typeName, index, idx)
}

func (p *Proxy) AlterIndex(ctx context.Context, typeName, index string, idx models.TypeIndex) (time.Time, error) {
	return p.route(typeName).AlterIndex(ctx, typeName, index, idx)
}

func (p *Proxy) RenameIndex(ctx context.Context, typeName, index, newName string) (time.Time, error) {
	return p.route(typeName).RenameIndex(ctx, typeName, index, newName)
}

func (p *Proxy) DropIndex(ctx context.Context, typeName, index string) (time.Time, error) {
	return p.route(typeName).DropIndex(ctx, typeName, index)
}

func (p *Proxy) GetUpTypeReferences(ctx context.Context, typeName string) ([]models.TypeReference, error) {
	return p.route(typeName).GetUpTypeReferences(ctx, typeName)
}

func (p *Proxy) GetDownTypeReferences(ctx context.Context, typeName string) ([]models.TypeReference, error) {
	return p.route(typeName).GetDownTypeReferences(ctx, typeName)
}

func (p *Proxy) GetTypeReferences(ctx context.Context) ([]models.TypeReference, error) {
	return p.next.GetTypeReferences(ctx)
}

func (p *Proxy) Get(ctx context.Context, typeName, id string, q models.Query) (*models.Object, error) {
	return p.route(typeName).Get(ctx, typeName, id, q)
}

func (p *Proxy) Select(ctx context.Context, typeName string, q models.Query) (*models.Objects, error) {
	return p.route(typeName).Select(ctx, typeName, q)
}

func (p *Proxy) SelectCustom(ctx context.Context, typeName, fragment string, params map[string]any, q models.Query) (*models.Tuples, error) {
	return p.route(typeName).SelectCustom(ctx, typeName, fragment, params, q)
}

func (p *Proxy) SelectStream(ctx context.Context, typeName string, q models.Query) (models.ObjectStream, error) {
	return p.route(typeName).SelectStream(ctx, typeName, q)
}

func (p *Proxy) Count(ctx context.Context, typeName string, q models.Query) (int64, error) {
	return p.route(typeName).Count(ctx, typeName, q)
}

func (p *Proxy) Insert(ctx context.Context, obj *models.Object) (time.Time, error) {
	return p.route(obj.Type).Insert(ctx, obj)
}

func (p *Proxy) Update(ctx context.Context, obj *models.Object, expected *time.Time) (time.Time, error) {
	return p.route(obj.Type).Update(ctx, obj, expected)
}

func (p *Proxy) UpdateField(ctx context.Context, typeName, id, field string, value any) (time.Time, error) {
	return p.route(typeName).UpdateField(ctx, typeName, id, field, value)
}

func (p *Proxy) UpdatePassword(ctx context.Context, typeName, id, field string, pv models.PasswordValue) (time.Time, error) {
	return p.route(typeName).UpdatePassword(ctx, typeName, id, field, pv)
}

func (p *Proxy) PasswordMatch(ctx context.Context, typeName, id, field, password string) (bool, error) {
	return p.route(typeName).PasswordMatch(ctx, typeName, id, field, password)
}

func (p *Proxy) UpdateID(ctx context.Context, typeName, id, newID string) (string, error) {
	return p.route(typeName).UpdateID(ctx, typeName, id, newID)
}

func (p *Proxy) Delete(ctx context.Context, typeName string, ids ...string) (int64, error) {
	return p.route(typeName).Delete(ctx, typeName, ids...)
}

func (p *Proxy) GetFieldsDefaults(ctx context.Context, typeName string) (map[string]any, error) {
	return p.route(typeName).GetFieldsDefaults(ctx, typeName)
}

func (p *Proxy) GetFieldContent(ctx context.Context, typeName, id, field string) ([]byte, error) {
	return p.route(typeName).GetFieldContent(ctx, typeName, id, field)
}

func (p *Proxy) GetFieldContentType(ctx context.Context, typeName, id, field string) (string, error) {
	return p.route(typeName).GetFieldContentType(ctx, typeName, id, field)
}

func (p *Proxy) GetImageThumbnail(ctx context.Context, typeName, id, field string) ([]byte, error) {
	return p.route(typeName).GetImageThumbnail(ctx, typeName, id, field)
}

func (p *Proxy) GetDocumentText(ctx context.Context, typeName, id, field string) (string, error) {
	return p.route(typeName).GetDocumentText(ctx, typeName, id, field)
}

func (p *Proxy) GetUpReferences(ctx context.Context, typeName, id string) ([]models.Reference, error) {
	return p.route(typeName).GetUpReferences(ctx, typeName, id)
}

func (p *Proxy) ExecuteAction(ctx context.Context, typeName, action string, params map[string]any) (any, error) {
	return p.route(typeName).ExecuteAction(ctx, typeName, action, params)
}

func (p *Proxy) ExportTypes(ctx context.Context, names []string, includeObjects bool) (models.TypeStream, error) {
	return p.next.ExportTypes(ctx, names, includeObjects)
}

func (p *Proxy) ExportObjects(ctx context.Context, typeName string, ids ...string) (models.ObjectStream, error) {
	return p.route(typeName).ExportObjects(ctx, typeName, ids...)
}

func (p *Proxy) ImportTypes(ctx context.Context, stream models.TypeStream, typePolicy models.TypePolicy, objectPolicy models.ObjectPolicy) (*models.ImportResult, error) {
	return p.next.ImportTypes(ctx, stream, typePolicy, objectPolicy)
}

func (p *Proxy) ImportObjects(ctx context.Context, stream models.ObjectStream, objectPolicy models.ObjectPolicy) (*models.ImportResult, error) {
	return p.next.ImportObjects(ctx, stream, objectPolicy)
}

func (p *Proxy) Execute(ctx context.Context, statement string, params ...any) (int64, error) {
	return p.next.Execute(ctx, statement, params...)
}

func (p *Proxy) Query(ctx context.Context, statement string, params ...any) ([]models.Tuple, error) {
	return p.next.Query(ctx, statement, params...)
}
