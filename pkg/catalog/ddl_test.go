package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

func invoice() *models.Type {
	return models.NewType("invoice").
		WithField("amount", models.TypeField{Type: "numeric", NotNull: true, Precision: models.IntPtr(10), Scale: models.IntPtr(2),
			Min: models.StringPtr("0"), Max: models.StringPtr("100000")}).
		WithField("customer", models.TypeField{Type: "customer"}).
		WithField("note", models.TypeField{Type: "text"}).
		WithField("scan", models.TypeField{Type: "document"}).
		WithIndex("by_customer", models.TypeIndex{Mode: models.IndexPlain, Fields: []string{"customer", "cdate"}}).
		WithIndex("search", models.TypeIndex{Mode: models.IndexFullText, Fields: []string{"note", "scan"}})
}

func TestCreateTableSQL(t *testing.T) {
	assert.Equal(t,
		`CREATE TABLE "invoice" ("id" varchar(128) PRIMARY KEY, "cdate" timestamptz NOT NULL, "udate" timestamptz NOT NULL, `+
			`"backup" boolean NOT NULL DEFAULT false, "amount" numeric(10,2) NOT NULL, "customer" varchar(128), "note" text, "scan" typestore_document)`,
		createTableSQL(invoice()))
}

func TestIndexSQL(t *testing.T) {
	typ := invoice()
	idx, _ := typ.Index("by_customer")
	assert.Equal(t, `CREATE INDEX "invoice_by_customer" ON "invoice" ("customer", "cdate")`, createIndexSQL(typ, "by_customer", idx))

	idx, _ = typ.Index("search")
	assert.Equal(t,
		`CREATE INDEX "invoice_search" ON "invoice" USING gin (to_tsvector('simple', coalesce("note", '') || ' ' || coalesce(("scan")."text", '')))`,
		createIndexSQL(typ, "search", idx))

	assert.Equal(t, `CREATE UNIQUE INDEX "invoice_u" ON "invoice" ("note")`,
		createIndexSQL(typ, "u", models.TypeIndex{Mode: models.IndexUnique, Fields: []string{"note"}}))
	assert.Equal(t, `DROP INDEX "invoice_u"`, dropIndexSQL("invoice", "u"))
}

func TestCommentSQL(t *testing.T) {
	f, _ := invoice().Field("amount")
	assert.Equal(t,
		`COMMENT ON COLUMN "invoice"."amount" IS '{"type":"numeric","precision":10,"scale":2,"min":"0","max":"100000"}'`,
		columnCommentSQL("invoice", "amount", f))

	assert.Equal(t,
		`COMMENT ON INDEX "invoice_u" IS '{"mode":"unique","fields":["note"]}'`,
		indexCommentSQL("invoice", "u", models.TypeIndex{Mode: models.IndexUnique, Fields: []string{"note"}}))

	assert.Equal(t,
		`COMMENT ON COLUMN "invoice"."note" IS '{"type":"it''s"}'`,
		columnCommentSQL("invoice", "note", models.TypeField{Type: "it's"}))
}

func TestForeignKeySQL(t *testing.T) {
	assert.Equal(t,
		`ALTER TABLE "invoice" ADD CONSTRAINT "invoice_customer_fkey" FOREIGN KEY ("customer") REFERENCES "customer" ("id") ON UPDATE CASCADE DEFERRABLE INITIALLY IMMEDIATE`,
		addForeignKeySQL("invoice", "customer", "customer"))
	assert.Equal(t, `ALTER TABLE "invoice" DROP CONSTRAINT IF EXISTS "invoice_customer_fkey"`, dropForeignKeySQL("invoice", "customer"))
}

func TestAlterColumnSQL(t *testing.T) {
	assert.Equal(t, `ALTER TABLE "invoice" ALTER COLUMN "note" TYPE varchar(40) USING "note"::varchar(40)`,
		alterColumnTypeSQL("invoice", "note", models.TypeField{Type: "string", Length: models.IntPtr(40)}))
	assert.Equal(t, `ALTER TABLE "invoice" ALTER COLUMN "note" SET NOT NULL`, setNotNullSQL("invoice", "note", true))
	assert.Equal(t, `ALTER TABLE "invoice" ALTER COLUMN "note" DROP NOT NULL`, setNotNullSQL("invoice", "note", false))
}

func TestGrantSQL(t *testing.T) {
	assert.Equal(t, []string{
		`GRANT SELECT ON "invoice" TO "typestore_read"`,
		`GRANT SELECT, INSERT, UPDATE, DELETE ON "invoice" TO "typestore_write"`,
	}, grantSQL("invoice"))
}
