package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

func actions(steps []step) []string {
	names := map[action]string{
		renameFieldAction:  "rename_field",
		renameIndexAction:  "rename_index",
		alterFieldAction:   "alter_field",
		addFieldAction:     "add_field",
		dropIndexAction:    "drop_index",
		releaseIndexAction: "release_index",
		alterIndexAction:   "alter_index",
		addIndexAction:     "add_index",
		dropFieldAction:    "drop_field",
	}
	out := make([]string, len(steps))
	for i, st := range steps {
		out[i] = names[st.action] + ":" + st.name
	}
	return out
}

func TestPlanAlter_SameShapeIsNoop(t *testing.T) {
	assert.Empty(t, planAlter(invoice(), invoice()))
}

func TestPlanAlter_RenameField(t *testing.T) {
	target := models.NewType("invoice").
		WithField("total", models.TypeField{Type: "numeric", NotNull: true, Precision: models.IntPtr(10), Scale: models.IntPtr(2),
			Min: models.StringPtr("0"), Max: models.StringPtr("100000"), OldName: "amount"}).
		WithField("customer", models.TypeField{Type: "customer"}).
		WithField("note", models.TypeField{Type: "text"}).
		WithField("scan", models.TypeField{Type: "document"}).
		WithIndex("by_customer", models.TypeIndex{Mode: models.IndexPlain, Fields: []string{"customer", "cdate"}}).
		WithIndex("search", models.TypeIndex{Mode: models.IndexFullText, Fields: []string{"note", "scan"}})

	steps := planAlter(invoice(), target)
	assert.Equal(t, []string{"rename_field:amount"}, actions(steps))
	assert.Equal(t, "total", steps[0].newName)

	// Once renamed, the marker no longer matches and the plan is empty.
	renamed := target.Clone()
	renamed.Fields.Set("total", models.TypeField{Type: "numeric", NotNull: true, Precision: models.IntPtr(10), Scale: models.IntPtr(2),
		Min: models.StringPtr("0"), Max: models.StringPtr("100000")})
	assert.Empty(t, planAlter(renamed, target))
}

func TestPlanAlter_Ordering(t *testing.T) {
	target := models.NewType("invoice").
		WithField("amount", models.TypeField{Type: "numeric"}).
		WithField("client", models.TypeField{Type: "customer", OldName: "customer"}).
		WithField("scan", models.TypeField{Type: "document"}).
		WithField("paid", models.TypeField{Type: "boolean"}).
		WithIndex("by_client", models.TypeIndex{Mode: models.IndexPlain, Fields: []string{"client"}, OldName: "by_customer"}).
		WithIndex("by_paid", models.TypeIndex{Mode: models.IndexPlain, Fields: []string{"paid"}})

	assert.Equal(t, []string{
		"rename_field:customer",
		"rename_index:by_customer",
		"drop_index:search",
		"release_index:by_client",
		"alter_field:amount",
		"add_field:paid",
		"alter_index:by_client",
		"add_index:by_paid",
		"drop_field:note",
	}, actions(planAlter(invoice(), target)))
}

func TestPlanAlter_IndexesLeaveBeforeFieldChanges(t *testing.T) {
	current := models.NewType("memo").
		WithField("note", models.TypeField{Type: "text"}).
		WithField("title", models.TypeField{Type: "text"}).
		WithIndex("search", models.TypeIndex{Mode: models.IndexFullText, Fields: []string{"note", "title"}}).
		WithIndex("by_note", models.TypeIndex{Mode: models.IndexPlain, Fields: []string{"note"}})

	t.Run("dropped index", func(t *testing.T) {
		target := models.NewType("memo").
			WithField("note", models.TypeField{Type: "int32"}).
			WithField("title", models.TypeField{Type: "text"}).
			WithIndex("by_note", models.TypeIndex{Mode: models.IndexPlain, Fields: []string{"note"}})

		assert.Equal(t, []string{"drop_index:search", "alter_field:note"}, actions(planAlter(current, target)))
	})

	t.Run("index no longer on the field", func(t *testing.T) {
		target := models.NewType("memo").
			WithField("note", models.TypeField{Type: "int32"}).
			WithField("title", models.TypeField{Type: "text"}).
			WithIndex("search", models.TypeIndex{Mode: models.IndexFullText, Fields: []string{"title"}}).
			WithIndex("by_note", models.TypeIndex{Mode: models.IndexPlain, Fields: []string{"note"}})

		assert.Equal(t, []string{"release_index:search", "alter_field:note", "alter_index:search"},
			actions(planAlter(current, target)))
	})
}

func TestPlanAlter_RenamedIndexFollowsFieldRename(t *testing.T) {
	target := invoice()
	target.Fields = renameKey(target.Fields, "customer", "client")
	target.Fields.Set("client", models.TypeField{Type: "customer", OldName: "customer"})
	target.Indexes.Set("by_customer", models.TypeIndex{Mode: models.IndexPlain, Fields: []string{"client", "cdate"}})

	assert.Equal(t, []string{"rename_field:customer"}, actions(planAlter(invoice(), target)))
}

func TestPlanAlter_OldNameIgnoredWhenBothExist(t *testing.T) {
	target := invoice()
	target.Fields.Set("note", models.TypeField{Type: "text", OldName: "amount"})
	assert.Empty(t, planAlter(invoice(), target))
}
