package catalog

import (
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-typestore/pkg/kinds"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
	"github.com/ekaya-inc/ekaya-typestore/pkg/sql"
)

// Roles granted on every type table.
const (
	ReadRole  = "typestore_read"
	WriteRole = "typestore_write"
)

// IDLength is the length of the identifier column and of reference columns.
const IDLength = 128

func ident(name string) string {
	return sql.Ident(name)
}

// IndexName is the physical name of a type's index.
func IndexName(typeName, index string) string {
	return typeName + "_" + index
}

// ForeignKeyName is the physical name of a reference field's constraint.
func ForeignKeyName(typeName, field string) string {
	return typeName + "_" + field + "_fkey"
}

// PrimaryKeyName is the physical name of a type's primary key.
func PrimaryKeyName(typeName string) string {
	return typeName + "_pkey"
}

func columnType(f models.TypeField) string {
	if k, ok := kinds.Lookup(f.Type); ok {
		return k.SQLType(f)
	}
	return referenceType
}

var referenceType = "varchar(" + strconv.Itoa(IDLength) + ")"

func columnDef(name string, f models.TypeField) string {
	def := ident(name) + " " + columnType(f)
	if f.NotNull {
		def += " NOT NULL"
	}
	return def
}

func createTableSQL(t *models.Type) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(ident(t.Name))
	sb.WriteString(" (")
	sb.WriteString(ident(models.ColumnID) + " " + referenceType + " PRIMARY KEY, ")
	sb.WriteString(ident(models.ColumnCreate) + " timestamptz NOT NULL, ")
	sb.WriteString(ident(models.ColumnUpdate) + " timestamptz NOT NULL, ")
	sb.WriteString(ident(models.ColumnBackup) + " boolean NOT NULL DEFAULT false")
	for pair := t.Fields.Oldest(); pair != nil; pair = pair.Next() {
		sb.WriteString(", ")
		sb.WriteString(columnDef(pair.Key, pair.Value))
	}
	sb.WriteString(")")
	return sb.String()
}

func grantSQL(typeName string) []string {
	return []string{
		"GRANT SELECT ON " + ident(typeName) + " TO " + ident(ReadRole),
		"GRANT SELECT, INSERT, UPDATE, DELETE ON " + ident(typeName) + " TO " + ident(WriteRole),
	}
}

func tableCommentSQL(typeName string, c tableComment) string {
	return "COMMENT ON TABLE " + ident(typeName) + " IS " + commentLiteral(c)
}

func columnCommentSQL(typeName, field string, f models.TypeField) string {
	return "COMMENT ON COLUMN " + ident(typeName) + "." + ident(field) + " IS " + commentLiteral(columnCommentOf(f))
}

func indexCommentSQL(typeName, index string, idx models.TypeIndex) string {
	return "COMMENT ON INDEX " + ident(IndexName(typeName, index)) + " IS " +
		commentLiteral(indexComment{Mode: idx.Mode, Fields: idx.Fields})
}

func createIndexSQL(t *models.Type, index string, idx models.TypeIndex) string {
	var sb strings.Builder
	sb.WriteString("CREATE ")
	if idx.Mode == models.IndexUnique {
		sb.WriteString("UNIQUE ")
	}
	sb.WriteString("INDEX ")
	sb.WriteString(ident(IndexName(t.Name, index)))
	sb.WriteString(" ON ")
	sb.WriteString(ident(t.Name))
	if idx.Mode == models.IndexFullText {
		sb.WriteString(" USING gin (")
		sb.WriteString(sql.FullTextExpression(t, "", idx.Fields))
		sb.WriteString(")")
		return sb.String()
	}
	sb.WriteString(" (")
	for i, f := range idx.Fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(ident(f))
	}
	sb.WriteString(")")
	return sb.String()
}

func dropIndexSQL(typeName, index string) string {
	return "DROP INDEX " + ident(IndexName(typeName, index))
}

func addForeignKeySQL(typeName, field, referenced string) string {
	return "ALTER TABLE " + ident(typeName) +
		" ADD CONSTRAINT " + ident(ForeignKeyName(typeName, field)) +
		" FOREIGN KEY (" + ident(field) + ") REFERENCES " + ident(referenced) + " (" + ident(models.ColumnID) + ")" +
		" ON UPDATE CASCADE DEFERRABLE INITIALLY IMMEDIATE"
}

func dropForeignKeySQL(typeName, field string) string {
	return "ALTER TABLE " + ident(typeName) + " DROP CONSTRAINT IF EXISTS " + ident(ForeignKeyName(typeName, field))
}

func alterColumnTypeSQL(typeName, field string, f models.TypeField) string {
	t := columnType(f)
	return "ALTER TABLE " + ident(typeName) + " ALTER COLUMN " + ident(field) +
		" TYPE " + t + " USING " + ident(field) + "::" + t
}

func setNotNullSQL(typeName, field string, notNull bool) string {
	action := " DROP NOT NULL"
	if notNull {
		action = " SET NOT NULL"
	}
	return "ALTER TABLE " + ident(typeName) + " ALTER COLUMN " + ident(field) + action
}
