package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-typestore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-typestore/pkg/metacache"
	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
	"github.com/ekaya-inc/ekaya-typestore/pkg/sql"
)

func invoiceEntry() *metacache.Entry {
	t := models.NewType("invoice").
		WithField("customer", models.TypeField{Type: "customer"}).
		WithField("amount", models.TypeField{Type: "numeric", Precision: models.IntPtr(10), Scale: models.IntPtr(2), Min: models.StringPtr("0")}).
		WithField("code", models.TypeField{Type: "string", Length: models.IntPtr(4)}).
		WithField("scan", models.TypeField{Type: "image"})
	return &metacache.Entry{Type: t, ContentTypes: map[string][]string{"scan": {"image/png"}}}
}

func field(t *testing.T, entry *metacache.Entry, name string) models.TypeField {
	t.Helper()
	f, ok := entry.Type.Field(name)
	require.True(t, ok, name)
	return f
}

func TestNormalize(t *testing.T) {
	entry := invoiceEntry()

	tests := []struct {
		name  string
		field string
		value any
		want  any
		key   string
	}{
		{name: "numeric from string", field: "amount", value: "250.50", want: decimal.RequireFromString("250.5")},
		{name: "numeric below min", field: "amount", value: -5, key: apperrors.KeyOutOfRange},
		{name: "numeric garbage", field: "amount", value: "lots", key: apperrors.KeyInvalidValue},
		{name: "string too long", field: "code", value: "ABCDE", key: apperrors.KeyOutOfRange},
		{name: "string fits", field: "code", value: "ABCD", want: "ABCD"},
		{name: "null stays null", field: "amount", value: nil, want: nil},
		{name: "reference by id", field: "customer", value: "c1", want: "c1"},
		{name: "reference by ref", field: "customer", value: &models.ObjectRef{ID: "c2", Name: "ACME"}, want: "c2"},
		{name: "reference by map", field: "customer", value: map[string]any{"id": "c3"}, want: "c3"},
		{name: "empty reference", field: "customer", value: map[string]any{}, want: nil},
		{name: "reference of wrong shape", field: "customer", value: []string{"c1"}, key: apperrors.KeyInvalidValue},
		{name: "content type refused", field: "scan", value: &models.File{Name: "a.txt", Content: []byte("hi"), ContentType: "text/plain"}, key: apperrors.KeyInvalidContentType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalize(entry, tt.field, field(t, entry, tt.field), tt.value)
			if tt.key != "" {
				require.Error(t, err)
				key, _, ok := apperrors.KeyOf(err)
				require.True(t, ok)
				assert.Equal(t, tt.key, key)
				return
			}
			require.NoError(t, err)
			if d, ok := tt.want.(decimal.Decimal); ok {
				require.IsType(t, decimal.Decimal{}, got)
				assert.True(t, d.Equal(got.(decimal.Decimal)), "got %v", got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_AllowedImage(t *testing.T) {
	entry := invoiceEntry()
	png := &models.File{Name: "scan.png", Content: []byte{0x89, 'P', 'N', 'G'}, ContentType: "image/png"}

	got, err := normalize(entry, "scan", field(t, entry, "scan"), png)
	require.NoError(t, err)
	file, ok := got.(*models.File)
	require.True(t, ok)
	assert.Equal(t, "scan.png", file.Name)
}

func TestValueExpr(t *testing.T) {
	entry := invoiceEntry()

	t.Run("null", func(t *testing.T) {
		b := sql.NewBuilder()
		assert.Equal(t, "NULL", valueExpr(b, field(t, entry, "amount"), nil))
		assert.Empty(t, b.Args())
	})

	t.Run("scalar", func(t *testing.T) {
		b := sql.NewBuilder()
		assert.Equal(t, "$1", valueExpr(b, field(t, entry, "code"), "ABCD"))
		assert.Equal(t, []any{"ABCD"}, b.Args())
	})

	t.Run("reference", func(t *testing.T) {
		b := sql.NewBuilder()
		assert.Equal(t, "$1", valueExpr(b, field(t, entry, "customer"), "c1"))
		assert.Equal(t, []any{"c1"}, b.Args())
	})

	t.Run("composite", func(t *testing.T) {
		b := sql.NewBuilder()
		file := &models.File{Name: "scan.png", Content: []byte{1}, ContentType: "image/png", Thumbnail: []byte{2}}
		expr := valueExpr(b, field(t, entry, "scan"), file)
		assert.Equal(t, "ROW($1::text, $2::bytea, $3::text, $4::bytea)::typestore_image", expr)
		assert.Equal(t, []any{"scan.png", []byte{1}, "image/png", []byte{2}}, b.Args())
	})
}

func TestValidID(t *testing.T) {
	assert.NoError(t, validID("invoice", "i-1"))

	key, _, _ := apperrors.KeyOf(validID("invoice", ""))
	assert.Equal(t, apperrors.KeyEmptyField, key)

	long := make([]byte, 129)
	for i := range long {
		long[i] = 'x'
	}
	key, _, _ = apperrors.KeyOf(validID("invoice", string(long)))
	assert.Equal(t, apperrors.KeyOutOfRange, key)
}

func TestWriteSet(t *testing.T) {
	w := newWriteSet()
	w.bind("id", "i-1")
	w.hidden("secret", "$argon2id$hash")
	w.expr("udate", "clock_timestamp()")

	assert.Equal(t, `"id" = $1, "secret" = $2, "udate" = clock_timestamp()`, w.assignments())
	assert.Equal(t, map[int]bool{1: true}, w.secret)
	assert.Equal(t, []any{"i-1", "$argon2id$hash"}, w.b.Args())
}
