package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-typestore/pkg/kinds"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

// TextSearchConfig is the text search configuration of full-text indexes and queries.
const TextSearchConfig = "simple"

// Role tells the reader of a result row what a projected column holds.
type Role int

const (
	RoleID Role = iota
	RoleCreate
	RoleUpdate
	RoleBackup
	// RoleValue is a field value to normalize through Kind.FromDriver. A nil
	// Kind marks a raw reference identifier.
	RoleValue
	// RoleSize is the byte length of a composite field's content.
	RoleSize
	// RoleAttribute is one attribute of a materialized composite field.
	RoleAttribute
	// RolePreview is the bounded text preview of a document field.
	RolePreview
	RoleRefID
	RoleRefName
)

// Column describes one projected column, in projection order.
type Column struct {
	Field string
	Kind  *kinds.Kind
	Role  Role
	Attr  string
}

// Search is the input of a select over one type.
type Search struct {
	Type     *models.Type
	Query    models.Query
	Settings models.TypeSettings
	// Names returns the display-name expression of a referenced type.
	Names func(typeName string) string
	// Fragment, when set, replaces the generated projection. It may reference
	// the type's columns qualified by the type name, the {{name}} placeholders
	// are bound from FragmentParams.
	Fragment       string
	FragmentParams map[string]any
	// IDs restricts the search to the listed identifiers.
	IDs []string
}

type join struct {
	alias string
	field string
	typ   string
}

// Select is a prepared search: count and page statements share one predicate.
type Select struct {
	search  Search
	table   string
	cond    *Builder
	where   string
	order   string
	project []string
	columns []Column
	joins   []join
	byField map[string]string
	empty   bool
}

// NewSelect validates a search and prepares its statements.
func NewSelect(s Search) (*Select, error) {
	if s.Names == nil {
		s.Names = func(string) string { return models.ColumnID }
	}
	sel := &Select{
		search:  s,
		table:   Ident(s.Type.Name),
		cond:    NewBuilder(),
		byField: make(map[string]string),
	}
	if err := sel.buildWhere(); err != nil {
		return nil, err
	}
	if err := sel.buildOrder(); err != nil {
		return nil, err
	}
	if s.Fragment == "" {
		if err := sel.buildProjection(); err != nil {
			return nil, err
		}
	}
	return sel, nil
}

// Empty reports a search that cannot match: full-text search on a type without full-text index.
func (s *Select) Empty() bool {
	return s.empty
}

// Columns describes the generated projection. It is nil in fragment mode.
func (s *Select) Columns() []Column {
	return s.columns
}

// Count returns the statement counting the matching rows.
func (s *Select) Count() (string, []any) {
	return "SELECT count(*) FROM " + s.from() + s.where, s.cond.Args()
}

// Page returns the statement selecting one page. A limit of models.NoLimit
// selects every row from offset.
func (s *Select) Page(offset, limit int) (string, []any, error) {
	b := s.cond.Fork()
	b.Write("SELECT ")
	if s.search.Fragment != "" {
		if err := b.Fragment(s.search.Fragment, s.search.FragmentParams); err != nil {
			return "", nil, err
		}
	} else {
		b.Write(strings.Join(s.project, ", "))
	}
	b.Write(" FROM ", s.from(), s.where, " ORDER BY ", s.order)
	if limit != models.NoLimit {
		b.Write(" LIMIT ").Param(limit)
	}
	if offset > 0 {
		b.Write(" OFFSET ").Param(offset)
	}
	return b.String(), b.Args(), nil
}

func (s *Select) from() string {
	var sb strings.Builder
	sb.WriteString(s.table)
	for _, j := range s.joins {
		fmt.Fprintf(&sb, " LEFT JOIN (SELECT %s AS _ref_id, (%s)::text AS _ref_name FROM %s) AS %s ON %s._ref_id = %s",
			Ident(models.ColumnID), s.search.Names(j.typ), Ident(j.typ), j.alias, j.alias, s.col(j.field))
	}
	return sb.String()
}

func (s *Select) col(field string) string {
	return s.table + "." + Ident(field)
}

// refName registers a join resolving the display name of reference field and
// returns the name column.
func (s *Select) refName(field, typ string) string {
	alias, ok := s.byField[field]
	if !ok {
		alias = "r" + strconv.Itoa(len(s.joins)+1)
		s.byField[field] = alias
		s.joins = append(s.joins, join{alias: alias, field: field, typ: typ})
	}
	return alias + "._ref_name"
}

// fieldInfo resolves the kind of a field or implicit column. A nil kind with
// a non-empty reference names the referenced type.
func fieldInfo(t *models.Type, name string) (*kinds.Kind, string, error) {
	var kindName string
	switch name {
	case models.ColumnID:
		kindName = kinds.String
	case models.ColumnCreate, models.ColumnUpdate:
		kindName = kinds.DateTimeTZ
	case models.ColumnBackup:
		kindName = kinds.Boolean
	default:
		f, ok := t.Field(name)
		if !ok {
			return nil, "", apperrors.NotFound(apperrors.KeyFieldNotFound, t.Name, name)
		}
		kindName = f.Type
	}
	if k, ok := kinds.Lookup(kindName); ok {
		return k, "", nil
	}
	return nil, kindName, nil
}

func (s *Select) buildWhere() error {
	q := s.search.Query
	var conds []string

	if len(s.search.IDs) > 0 {
		conds = append(conds, s.col(models.ColumnID)+" = ANY("+s.cond.Placeholder(s.search.IDs)+")")
	}
	for _, f := range q.Filters {
		c, err := s.filter(f)
		if err != nil {
			return err
		}
		conds = append(conds, c)
	}

	if search := strings.TrimSpace(q.Search); search != "" {
		indexes := s.search.Type.FullTextIndexes()
		if len(indexes) == 0 {
			s.empty = true
		} else {
			p := s.cond.Placeholder(search)
			terms := make([]string, len(indexes))
			for i, idx := range indexes {
				terms[i] = FullTextExpression(s.search.Type, s.table, idx.Fields) +
					" @@ plainto_tsquery('" + TextSearchConfig + "', " + p + ")"
			}
			conds = append(conds, "("+strings.Join(terms, " OR ")+")")
		}
	}

	if filter := strings.TrimSpace(s.search.Settings.Filter); filter != "" {
		conds = append(conds, "("+filter+")")
	}

	if len(conds) > 0 {
		s.where = " WHERE " + strings.Join(conds, " AND ")
	}
	return nil
}

func (s *Select) filter(f models.Filter) (string, error) {
	if !f.Comparison.Valid() {
		return "", apperrors.Validation(apperrors.KeyInvalidValue, f.Field, string(f.Comparison))
	}
	k, ref, err := fieldInfo(s.search.Type, f.Field)
	if err != nil {
		return "", err
	}
	col := s.col(f.Field)

	var c string
	switch {
	case f.Value == nil:
		switch f.Comparison {
		case models.Equal:
			c = col + " IS NULL"
		case models.NotEqual:
			c = col + " IS NOT NULL"
		default:
			return "", apperrors.Validation(apperrors.KeyInvalidValue, f.Field, "null")
		}

	case f.Comparison.IsPattern():
		text, ok := jsonutil.FlexibleString(f.Value)
		if !ok {
			return "", apperrors.Validation(apperrors.KeyInvalidValue, f.Field, f.Value)
		}
		target := col + "::text"
		switch {
		case ref != "" && !s.search.Query.RawReferences:
			target = s.refName(f.Field, ref)
		case k != nil && k.Category == kinds.Composite:
			target = "(" + col + ")." + Ident(kinds.AttrName)
		case k != nil && k.Name == kinds.Password:
			return "", apperrors.Validation(apperrors.KeyInvalidValue, f.Field, string(f.Comparison))
		}
		op := " ILIKE "
		if f.Comparison == models.NotContains {
			op = " NOT ILIKE "
		}
		c = target + op + s.cond.Placeholder(pattern(f.Comparison, text))

	default:
		var v any
		switch {
		case ref != "":
			id, ok := jsonutil.FlexibleString(f.Value)
			if !ok {
				return "", apperrors.Validation(apperrors.KeyInvalidValue, f.Field, f.Value)
			}
			v = id
		case k.Category == kinds.Composite, k.Name == kinds.Password:
			return "", apperrors.Validation(apperrors.KeyInvalidValue, f.Field, string(f.Comparison))
		default:
			n, err := k.Coerce(f.Value)
			if err != nil {
				return "", apperrors.Validation(apperrors.KeyInvalidValue, f.Field, f.Value)
			}
			v = k.ToDriver(n)
		}
		op := string(f.Comparison)
		if f.Comparison == models.NotEqual {
			op = "<>"
		}
		c = col + " " + op + " " + s.cond.Placeholder(v)
	}

	if f.Exclude {
		c = "NOT (" + c + ")"
	}
	return c, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func pattern(c models.Comparison, text string) string {
	text = likeEscaper.Replace(text)
	switch c {
	case models.StartsWith:
		return text + "%"
	case models.EndsWith:
		return "%" + text
	}
	return "%" + text + "%"
}

func (s *Select) buildOrder() error {
	q := s.search.Query
	var terms []string
	last := ""
	for _, o := range q.Order {
		dir := "ASC"
		switch o.Direction {
		case models.Asc, "":
		case models.Desc:
			dir = "DESC"
		default:
			return apperrors.Validation(apperrors.KeyInvalidValue, o.Field, string(o.Direction))
		}

		var expr string
		if custom, ok := s.search.Settings.Order[o.Field]; ok && custom != "" {
			expr = custom
		} else {
			k, ref, err := fieldInfo(s.search.Type, o.Field)
			if err != nil {
				return err
			}
			switch {
			case ref != "" && !q.RawReferences:
				expr = s.refName(o.Field, ref)
			case k != nil && k.Category == kinds.Composite:
				expr = "(" + s.col(o.Field) + ")." + Ident(kinds.AttrName)
			default:
				expr = s.col(o.Field)
			}
		}
		terms = append(terms, expr+" "+dir)
		last = o.Field
	}
	if last != models.ColumnID {
		terms = append(terms, s.col(models.ColumnID)+" ASC")
	}
	s.order = strings.Join(terms, ", ")
	return nil
}

func (s *Select) add(expr string, c Column) {
	s.project = append(s.project, expr+" AS c"+strconv.Itoa(len(s.columns)))
	s.columns = append(s.columns, c)
}

func (s *Select) buildProjection() error {
	q := s.search.Query
	t := s.search.Type

	s.add(s.col(models.ColumnID), Column{Field: models.ColumnID, Role: RoleID})
	s.add(s.col(models.ColumnCreate), Column{Field: models.ColumnCreate, Role: RoleCreate})
	s.add(s.col(models.ColumnUpdate), Column{Field: models.ColumnUpdate, Role: RoleUpdate})
	s.add(s.col(models.ColumnBackup), Column{Field: models.ColumnBackup, Role: RoleBackup})

	fields := q.Fields
	if len(fields) == 0 {
		fields = t.FieldNames()
	}
	for _, name := range fields {
		if models.IsImplicitColumn(name) {
			continue
		}
		k, ref, err := fieldInfo(t, name)
		if err != nil {
			return err
		}
		col := s.col(name)

		switch {
		case ref != "":
			if q.RawReferences {
				s.add(col, Column{Field: name, Role: RoleValue})
				continue
			}
			s.add(col, Column{Field: name, Role: RoleRefID})
			s.add(s.refName(name, ref), Column{Field: name, Role: RoleRefName})

		case k.Category == kinds.Composite:
			if q.Materialize {
				for _, attr := range k.Attributes() {
					s.add("("+col+")."+Ident(attr), Column{Field: name, Kind: k, Role: RoleAttribute, Attr: attr})
				}
			} else {
				s.add("octet_length(("+col+")."+Ident(kinds.AttrContent)+")", Column{Field: name, Kind: k, Role: RoleSize})
			}
			if k.Name == kinds.Document && q.DocumentPreview > 0 {
				n := q.DocumentPreview
				if configured := s.search.Settings.Field(name).PreviewLength; configured > 0 {
					n = configured
				}
				s.add("left(("+col+")."+Ident(kinds.AttrText)+", "+strconv.Itoa(n)+")", Column{Field: name, Kind: k, Role: RolePreview})
			}

		case k.Name == kinds.Password && !q.IncludePasswords:
			s.add("CASE WHEN "+col+" IS NULL THEN NULL ELSE '"+models.RedactedPassword+"' END", Column{Field: name, Kind: k, Role: RoleValue})

		default:
			s.add(col, Column{Field: name, Kind: k, Role: RoleValue})
		}
	}
	return nil
}

// FullTextExpression renders the tsvector of a full-text index over fields.
// Columns are qualified by qualifier unless it is empty.
func FullTextExpression(t *models.Type, qualifier string, fields []string) string {
	parts := make([]string, len(fields))
	for i, name := range fields {
		col := Ident(name)
		if qualifier != "" {
			col = qualifier + "." + col
		}
		if f, ok := t.Field(name); ok && f.Type == kinds.Document {
			col = "(" + col + ")." + Ident(kinds.AttrText)
		}
		parts[i] = "coalesce(" + col + ", '')"
	}
	return "to_tsvector('" + TextSearchConfig + "', " + strings.Join(parts, " || ' ' || ") + ")"
}
