package catalog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/database"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
	"github.com/ekaya-inc/ekaya-typestore/pkg/sql"
)

type action int

const (
	renameFieldAction action = iota
	renameIndexAction
	dropIndexAction
	releaseIndexAction
	alterFieldAction
	addFieldAction
	alterIndexAction
	addIndexAction
	dropFieldAction
)

type step struct {
	action  action
	name    string
	newName string
	field   models.TypeField
	index   models.TypeIndex
}

// planAlter lists the steps turning current into target. Renames come first.
// Dropped indexes go next, and changed indexes are released until their
// rebuild, so field changes are checked against the indexes that remain.
// Field changes and additions follow, then index rebuilds and additions, and
// field drops last so no field leaves while an index still uses it.
func planAlter(current, target *models.Type) []step {
	var steps []step

	fields := make(map[string]bool)
	for _, name := range current.FieldNames() {
		fields[name] = true
	}
	indexes := make(map[string]bool)
	for _, name := range current.IndexNames() {
		indexes[name] = true
	}

	targetFields := target.FieldNames()
	targetIndexes := target.IndexNames()
	inTarget := func(names []string, name string) bool {
		for _, n := range names {
			if n == name {
				return true
			}
		}
		return false
	}

	for _, name := range targetFields {
		f, _ := target.Field(name)
		if f.OldName == "" || f.OldName == name || !fields[f.OldName] || fields[name] || inTarget(targetFields, f.OldName) {
			continue
		}
		steps = append(steps, step{action: renameFieldAction, name: f.OldName, newName: name})
		delete(fields, f.OldName)
		fields[name] = true
	}
	for _, name := range targetIndexes {
		idx, _ := target.Index(name)
		if idx.OldName == "" || idx.OldName == name || !indexes[idx.OldName] || indexes[name] || inTarget(targetIndexes, idx.OldName) {
			continue
		}
		steps = append(steps, step{action: renameIndexAction, name: idx.OldName, newName: name})
		delete(indexes, idx.OldName)
		indexes[name] = true
	}

	renamedFrom := make(map[string]string)
	indexRenamedFrom := make(map[string]string)
	for _, st := range steps {
		if st.action == renameFieldAction {
			renamedFrom[st.newName] = st.name
		} else {
			indexRenamedFrom[st.newName] = st.name
		}
	}
	currentField := func(name string) (models.TypeField, bool) {
		if old, ok := renamedFrom[name]; ok {
			name = old
		}
		return current.Field(name)
	}
	currentIndex := func(name string) (models.TypeIndex, bool) {
		if old, ok := indexRenamedFrom[name]; ok {
			name = old
		}
		return current.Index(name)
	}

	for _, name := range current.IndexNames() {
		if indexes[name] && !inTarget(targetIndexes, name) {
			steps = append(steps, step{action: dropIndexAction, name: name})
		}
	}
	var rebuilds []step
	for _, name := range targetIndexes {
		idx, _ := target.Index(name)
		if indexes[name] {
			cur, _ := currentIndex(name)
			if renamed := renameFields(cur, renamedFrom); !renamed.SameStructure(idx) {
				steps = append(steps, step{action: releaseIndexAction, name: name})
				rebuilds = append(rebuilds, step{action: alterIndexAction, name: name, index: idx})
			}
		}
	}
	for _, name := range targetFields {
		f, _ := target.Field(name)
		if fields[name] {
			if cur, _ := currentField(name); !cur.SameStructure(f) {
				steps = append(steps, step{action: alterFieldAction, name: name, field: f})
			}
		}
	}
	for _, name := range targetFields {
		if !fields[name] {
			f, _ := target.Field(name)
			steps = append(steps, step{action: addFieldAction, name: name, field: f})
		}
	}
	steps = append(steps, rebuilds...)
	for _, name := range targetIndexes {
		if !indexes[name] {
			idx, _ := target.Index(name)
			steps = append(steps, step{action: addIndexAction, name: name, index: idx})
		}
	}
	for _, name := range current.FieldNames() {
		if fields[name] && !inTarget(targetFields, name) {
			steps = append(steps, step{action: dropFieldAction, name: name})
		}
	}
	return steps
}

// renameFields applies field renames to an index's field list, as the
// rename step does to the stored index.
func renameFields(idx models.TypeIndex, renamedFrom map[string]string) models.TypeIndex {
	newName := make(map[string]string, len(renamedFrom))
	for n, old := range renamedFrom {
		newName[old] = n
	}
	out := idx
	out.Fields = make([]string, len(idx.Fields))
	for i, f := range idx.Fields {
		if n, ok := newName[f]; ok {
			f = n
		}
		out.Fields[i] = f
	}
	return out
}

// AlterType turns a type into the target shape and reports every change. When
// expected is set it must equal the type's current alteration date. Applying
// the same target twice changes nothing the second time. A failing step
// undoes the steps before it.
func (c *Catalog) AlterType(ctx context.Context, s *database.Session, name string, target *models.Type, expected *time.Time) (result *models.AlterResult, err error) {
	err = s.Savepoint(ctx, func(ctx context.Context) error {
		result, err = c.alterType(ctx, s, name, target, expected)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Catalog) alterType(ctx context.Context, s *database.Session, name string, target *models.Type, expected *time.Time) (*models.AlterResult, error) {
	m, err := c.begin(ctx, s, name)
	if err != nil {
		return nil, err
	}
	if expected != nil && !expected.Equal(m.t.Alter) {
		return nil, apperrors.Conflict(apperrors.KeyOutdatedType, name, m.t.Alter.Format(time.RFC3339Nano))
	}
	if err := validateTarget(target); err != nil {
		return nil, err
	}

	steps := planAlter(m.t, target)

	result := models.NewAlterResult(name)
	for _, st := range steps {
		if err := m.apply(ctx, st, result); err != nil {
			return nil, err
		}
	}

	if result.AlterDate, err = m.finish(ctx); err != nil {
		return nil, err
	}
	if result.IsAltered() {
		c.logger.Info("Altered type", zap.String("type", name), zap.String("changes", result.String()))
	}
	return result, nil
}

func (m *migration) apply(ctx context.Context, st step, result *models.AlterResult) error {
	switch st.action {
	case renameFieldAction:
		if err := m.renameField(ctx, st.name, st.newName); err != nil {
			return err
		}
		result.RenamedFields[st.name] = st.newName
	case renameIndexAction:
		if err := m.renameIndex(ctx, st.name, st.newName); err != nil {
			return err
		}
		result.RenamedIndexes[st.name] = st.newName
	case alterFieldAction:
		altered, err := m.alterField(ctx, st.name, st.field)
		if err != nil {
			return err
		}
		if altered {
			result.AlteredFields = append(result.AlteredFields, st.name)
		}
	case addFieldAction:
		if err := m.addField(ctx, st.name, st.field); err != nil {
			return err
		}
		result.AddedFields = append(result.AddedFields, st.name)
	case dropIndexAction:
		if err := m.dropIndex(ctx, st.name); err != nil {
			return err
		}
		result.DroppedIndexes = append(result.DroppedIndexes, st.name)
	case releaseIndexAction:
		return m.dropIndex(ctx, st.name)
	case alterIndexAction:
		// The released index comes back in its new shape.
		if err := m.addIndex(ctx, st.name, st.index); err != nil {
			return err
		}
		result.AlteredIndexes = append(result.AlteredIndexes, st.name)
	case addIndexAction:
		if err := m.addIndex(ctx, st.name, st.index); err != nil {
			return err
		}
		result.AddedIndexes = append(result.AddedIndexes, st.name)
	case dropFieldAction:
		if err := m.dropField(ctx, st.name); err != nil {
			return err
		}
		result.DroppedFields = append(result.DroppedFields, st.name)
	}
	return nil
}

// validateTarget checks the names and field descriptors of a target shape.
// Indexes are checked as they are applied, against the fields present then.
func validateTarget(t *models.Type) error {
	for _, name := range t.FieldNames() {
		f, _ := t.Field(name)
		if err := ValidateField(name, f); err != nil {
			return err
		}
	}
	for _, name := range t.IndexNames() {
		if err := sql.ValidateName(name); err != nil {
			return err
		}
	}
	return nil
}
