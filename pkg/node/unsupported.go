package node

import (
	"context"
	"time"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

// Unsupported declines every operation with a not-implemented error. Backends
// embed it and override what they serve.
type Unsupported struct{}

var _ Node = Unsupported{}

func (Unsupported) GetTypeNames(context.Context) ([]string, error) {
	return nil, apperrors.NotImplemented("get_type_names")
}

func (Unsupported) GetType(context.Context, string) (*models.Type, error) {
	return nil, apperrors.NotImplemented("get_type")
}

func (Unsupported) GetTypes(context.Context, ...string) ([]*models.Type, error) {
	return nil, apperrors.NotImplemented("get_types")
}

func (Unsupported) ExistsType(context.Context, string) (bool, error) {
	return false, apperrors.NotImplemented("exists_type")
}

func (Unsupported) GetTypeAlterDate(context.Context, string) (time.Time, error) {
	return time.Time{}, apperrors.NotImplemented("get_type_alter_date")
}

func (Unsupported) CreateType(context.Context, *models.Type) (time.Time, error) {
	return time.Time{}, apperrors.NotImplemented("create_type")
}

func (Unsupported) AlterType(context.Context, string, *models.Type, *time.Time) (*models.AlterResult, error) {
	return nil, apperrors.NotImplemented("alter_type")
}

func (Unsupported) RenameType(context.Context, string, string) (time.Time, error) {
	return time.Time{}, apperrors.NotImplemented("rename_type")
}

func (Unsupported) DropType(context.Context, ...string) error {
	return apperrors.NotImplemented("drop_type")
}

func (Unsupported) AddField(context.Context, string, string, models.TypeField) (time.Time, error) {
	return time.Time{}, apperrors.NotImplemented("add_field")
}

func (Unsupported) AlterField(context.Context, string, string, models.TypeField) (time.Time, error) {
	return time.Time{}, apperrors.NotImplemented("alter_field")
}

func (Unsupported) RenameField(context.Context, string, string, string) (time.Time, error) {
	return time.Time{}, apperrors.NotImplemented("rename_field")
}

func (Unsupported) DropField(context.Context, string, string) (time.Time, error) {
	return time.Time{}, apperrors.NotImplemented("drop_field")
}

func (Unsupported) AddIndex(context.Context, string, string, models.TypeIndex) (time.Time, error) {
	return time.Time{}, apperrors.NotImplemented("add_index")
}

func (Unsupported) AlterIndex(context.Context, string, string, models.TypeIndex) (time.Time, error) {
	return time.Time{}, apperrors.NotImplemented("alter_index")
}

func (Unsupported) RenameIndex(context.Context, string, string, string) (time.Time, error) {
	return time.Time{}, apperrors.NotImplemented("rename_index")
}

func (Unsupported) DropIndex(context.Context, string, string) (time.Time, error) {
	return time.Time{}, apperrors.NotImplemented("drop_index")
}

func (Unsupported) GetUpTypeReferences(context.Context, string) ([]models.TypeReference, error) {
	return nil, apperrors.NotImplemented("get_up_type_references")
}

func (Unsupported) GetDownTypeReferences(context.Context, string) ([]models.TypeReference, error) {
	return nil, apperrors.NotImplemented("get_down_type_references")
}

func (Unsupported) GetTypeReferences(context.Context) ([]models.TypeReference, error) {
	return nil, apperrors.NotImplemented("get_type_references")
}

func (Unsupported) Get(context.Context, string, string, models.Query) (*models.Object, error) {
	return nil, apperrors.NotImplemented("get")
}

func (Unsupported) Select(context.Context, string, models.Query) (*models.Objects, error) {
	return nil, apperrors.NotImplemented("select")
}

func (Unsupported) SelectCustom(context.Context, string, string, map[string]any, models.Query) (*models.Tuples, error) {
	return nil, apperrors.NotImplemented("select_custom")
}

func (Unsupported) SelectStream(context.Context, string, models.Query) (models.ObjectStream, error) {
	return nil, apperrors.NotImplemented("select_stream")
}

func (Unsupported) Count(context.Context, string, models.Query) (int64, error) {
	return 0, apperrors.NotImplemented("count")
}

func (Unsupported) Insert(context.Context, *models.Object) (time.Time, error) {
	return time.Time{}, apperrors.NotImplemented("insert")
}

func (Unsupported) Update(context.Context, *models.Object, *time.Time) (time.Time, error) {
	return time.Time{}, apperrors.NotImplemented("update")
}

func (Unsupported) UpdateField(context.Context, string, string, string, any) (time.Time, error) {
	return time.Time{}, apperrors.NotImplemented("update_field")
}

func (Unsupported) UpdatePassword(context.Context, string, string, string, models.PasswordValue) (time.Time, error) {
	return time.Time{}, apperrors.NotImplemented("update_password")
}

func (Unsupported) PasswordMatch(context.Context, string, string, string, string) (bool, error) {
	return false, apperrors.NotImplemented("password_match")
}

func (Unsupported) UpdateID(context.Context, string, string, string) (string, error) {
	return "", apperrors.NotImplemented("update_id")
}

func (Unsupported) Delete(context.Context, string, ...string) (int64, error) {
	return 0, apperrors.NotImplemented("delete")
}

func (Unsupported) GetFieldsDefaults(context.Context, string) (map[string]any, error) {
	return nil, apperrors.NotImplemented("get_fields_defaults")
}

func (Unsupported) GetFieldContent(context.Context, string, string, string) ([]byte, error) {
	return nil, apperrors.NotImplemented("get_field_content")
}

func (Unsupported) GetFieldContentType(context.Context, string, string, string) (string, error) {
	return "", apperrors.NotImplemented("get_field_content_type")
}

func (Unsupported) GetImageThumbnail(context.Context, string, string, string) ([]byte, error) {
	return nil, apperrors.NotImplemented("get_image_thumbnail")
}

func (Unsupported) GetDocumentText(context.Context, string, string, string) (string, error) {
	return "", apperrors.NotImplemented("get_document_text")
}

func (Unsupported) GetUpReferences(context.Context, string, string) ([]models.Reference, error) {
	return nil, apperrors.NotImplemented("get_up_references")
}

func (Unsupported) ExecuteAction(context.Context, string, string, map[string]any) (any, error) {
	return nil, apperrors.NotImplemented("execute_action")
}

func (Unsupported) ExportTypes(context.Context, []string, bool) (models.TypeStream, error) {
	return nil, apperrors.NotImplemented("export_types")
}

func (Unsupported) ExportObjects(context.Context, string, ...string) (models.ObjectStream, error) {
	return nil, apperrors.NotImplemented("export_objects")
}

func (Unsupported) ImportTypes(context.Context, models.TypeStream, models.TypePolicy, models.ObjectPolicy) (*models.ImportResult, error) {
	return nil, apperrors.NotImplemented("import_types")
}

func (Unsupported) ImportObjects(context.Context, models.ObjectStream, models.ObjectPolicy) (*models.ImportResult, error) {
	return nil, apperrors.NotImplemented("import_objects")
}

func (Unsupported) Execute(context.Context, string, ...any) (int64, error) {
	return 0, apperrors.NotImplemented("execute")
}

func (Unsupported) Query(context.Context, string, ...any) ([]models.Tuple, error) {
	return nil, apperrors.NotImplemented("query")
}
