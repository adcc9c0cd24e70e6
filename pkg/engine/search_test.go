package engine

import (
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-typestore/pkg/kinds"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
	"github.com/ekaya-inc/ekaya-typestore/pkg/sql"
)

func implicitColumns() []sql.Column {
	return []sql.Column{
		{Field: models.ColumnID, Role: sql.RoleID},
		{Field: models.ColumnCreate, Role: sql.RoleCreate},
		{Field: models.ColumnUpdate, Role: sql.RoleUpdate},
		{Field: models.ColumnBackup, Role: sql.RoleBackup},
	}
}

func TestDecodeObject(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	updated := created.Add(time.Hour)

	columns := append(implicitColumns(),
		sql.Column{Field: "amount", Kind: kindOf(kinds.Numeric), Role: sql.RoleValue},
		sql.Column{Field: "customer", Role: sql.RoleRefID},
		sql.Column{Field: "customer", Role: sql.RoleRefName},
		sql.Column{Field: "scan", Role: sql.RoleSize},
		sql.Column{Field: "contract", Role: sql.RoleAttribute, Attr: kinds.AttrName},
		sql.Column{Field: "contract", Role: sql.RoleAttribute, Attr: kinds.AttrContentType},
		sql.Column{Field: "contract", Role: sql.RolePreview},
		sql.Column{Field: "photo", Role: sql.RoleAttribute, Attr: kinds.AttrName},
		sql.Column{Field: "photo", Role: sql.RoleAttribute, Attr: kinds.AttrContentType},
	)
	values := []any{
		"i-1", created, updated, false,
		pgtype.Numeric{Int: big.NewInt(25050), Exp: -2, Valid: true},
		"c-1", "ACME",
		int64(2048),
		"contract.pdf", "application/pdf", "Terms and",
		nil, nil,
	}

	obj, err := decodeObject("invoice", columns, values)
	require.NoError(t, err)

	assert.Equal(t, "invoice", obj.Type)
	assert.Equal(t, "i-1", obj.ID)
	assert.Equal(t, time.UTC, obj.Create.Location())
	assert.True(t, created.Equal(obj.Create))
	assert.True(t, updated.Equal(obj.Update))
	assert.False(t, obj.Backup)

	amount, ok := obj.Fields["amount"].(decimal.Decimal)
	require.True(t, ok)
	assert.Equal(t, "250.5", amount.String())

	assert.Equal(t, &models.ObjectRef{ID: "c-1", Name: "ACME"}, obj.Fields["customer"])
	assert.Equal(t, int64(2048), obj.Fields["scan"])
	assert.Equal(t, &models.File{Name: "contract.pdf", ContentType: "application/pdf"}, obj.Fields["contract"])
	assert.Equal(t, "Terms and", obj.Fields["contract_preview"])

	photo, present := obj.Fields["photo"]
	assert.True(t, present)
	assert.Nil(t, photo)
}

func TestDecodeObject_NullReference(t *testing.T) {
	columns := []sql.Column{
		{Field: models.ColumnID, Role: sql.RoleID},
		{Field: "customer", Role: sql.RoleRefID},
		{Field: "customer", Role: sql.RoleRefName},
		{Field: "scan", Role: sql.RoleSize},
	}
	obj, err := decodeObject("invoice", columns, []any{"i-1", nil, nil, nil})
	require.NoError(t, err)

	assert.Nil(t, obj.Fields["customer"])
	assert.Nil(t, obj.Fields["scan"])
}

func TestDecodeObject_ColumnMismatch(t *testing.T) {
	_, err := decodeObject("invoice", implicitColumns(), []any{"i-1"})
	assert.Error(t, err)
}
