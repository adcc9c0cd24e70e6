package kinds

import (
	"encoding/json"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-typestore/pkg/models"
)

func mustKind(t *testing.T, name string) *Kind {
	t.Helper()
	k, ok := Lookup(name)
	require.True(t, ok, "kind %s", name)
	return k
}

func TestCatalog(t *testing.T) {
	assert.True(t, IsPrimitive("numeric"))
	assert.True(t, IsPrimitive("int32[]"))
	assert.False(t, IsPrimitive("password[]"))
	assert.True(t, IsReference("customer"))
	assert.True(t, IsComposite("image"))
	assert.False(t, IsComposite("binary"))

	// 26 scalars, 25 arrays (no password[]), 5 composites
	assert.Len(t, Names(), 56)
}

func TestSQLType(t *testing.T) {
	tests := []struct {
		kind  string
		field models.TypeField
		want  string
	}{
		{"string", models.TypeField{}, "varchar"},
		{"string", models.TypeField{Length: models.IntPtr(40)}, "varchar(40)"},
		{"char", models.TypeField{}, "char(1)"},
		{"email", models.TypeField{}, "varchar(254)"},
		{"numeric", models.TypeField{Precision: models.IntPtr(12), Scale: models.IntPtr(2)}, "numeric(12,2)"},
		{"numeric", models.TypeField{Precision: models.IntPtr(5)}, "numeric(5)"},
		{"numeric", models.TypeField{}, "numeric"},
		{"datetimetz", models.TypeField{}, "timestamptz"},
		{"int64[]", models.TypeField{}, "bigint[]"},
		{"string[]", models.TypeField{Length: models.IntPtr(8)}, "varchar(8)[]"},
		{"document", models.TypeField{}, "typestore_document"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			assert.Equal(t, tt.want, mustKind(t, tt.kind).SQLType(tt.field))
		})
	}
}

func TestCoerce_Integers(t *testing.T) {
	k := mustKind(t, Int16)

	v, err := k.Coerce(float64(12))
	require.NoError(t, err)
	assert.Equal(t, int16(12), v)

	_, err = k.Coerce(int64(40000))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = k.Coerce("twelve")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidValue)

	v, err = k.Coerce(nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestNumeric_DriverRoundTrip(t *testing.T) {
	k := mustKind(t, Numeric)

	v, err := k.Coerce(250.5)
	require.NoError(t, err)
	d := v.(decimal.Decimal)
	assert.True(t, d.Equal(decimal.RequireFromString("250.50")))

	driver := k.ToDriver(d)
	n, ok := driver.(pgtype.Numeric)
	require.True(t, ok)
	assert.True(t, n.Valid)

	back, err := k.FromDriver(n)
	require.NoError(t, err)
	assert.True(t, back.(decimal.Decimal).Equal(d))

	_, err = k.FromDriver(pgtype.Numeric{NaN: true, Valid: true})
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestCheckRange(t *testing.T) {
	k := mustKind(t, Numeric)
	lo, hi := models.StringPtr("0"), models.StringPtr("100000")

	neg, _ := k.Coerce(-5)
	err := k.CheckRange(neg, lo, hi)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfRange)

	ok, _ := k.Coerce("250.50")
	assert.NoError(t, k.CheckRange(ok, lo, hi))
	assert.NoError(t, k.CheckRange(nil, lo, hi))

	dates := mustKind(t, "date[]")
	v, err := dates.Coerce([]any{"2024-01-01", "2031-01-01"})
	require.NoError(t, err)
	assert.ErrorIs(t, dates.CheckRange(v, nil, models.StringPtr("2030-12-31")), ErrOutOfRange)
}

func TestCheckLength(t *testing.T) {
	k := mustKind(t, String)
	f := models.TypeField{Type: String, Length: models.IntPtr(3)}
	assert.NoError(t, k.CheckLength("äöü", f))
	assert.ErrorIs(t, k.CheckLength("abcd", f), ErrOutOfRange)
	assert.NoError(t, k.CheckLength("abcd", models.TypeField{Type: String}))
}

func TestCoerce_Times(t *testing.T) {
	date, err := mustKind(t, Date).Coerce("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), date)

	tz, err := mustKind(t, DateTimeTZ).Coerce("2024-02-29T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC), tz)

	wall, err := mustKind(t, DateTime).Coerce("2024-02-29T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 10, 0, 0, 0, time.UTC), wall)

	tod := mustKind(t, Time)
	v, err := tod.Coerce("13:30")
	require.NoError(t, err)
	assert.Equal(t, 13*time.Hour+30*time.Minute, v)
	assert.Equal(t, pgtype.Time{Microseconds: (13*time.Hour + 30*time.Minute).Microseconds(), Valid: true}, tod.ToDriver(v))
	assert.Equal(t, "'13:30:00'::time", tod.Literal(v))

	now, err := mustKind(t, DateTimeTZ).Parse("now")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), now.(time.Time), time.Minute)
}

func TestCoerce_UUIDAndInet(t *testing.T) {
	u := mustKind(t, UUID)
	v, err := u.Coerce("6BA7B810-9DAD-11D1-80B4-00C04FD430C8")
	require.NoError(t, err)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", v)
	raw := u.ToDriver(v).([16]byte)
	back, err := u.FromDriver(raw)
	require.NoError(t, err)
	assert.Equal(t, v, back)

	in := mustKind(t, Inet)
	v, err = in.Coerce("10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("10.0.0.1/32"), in.ToDriver(v))
	back, err = in.FromDriver(netip.MustParsePrefix("10.0.0.0/8"))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/8", back)
}

func TestCoerce_TextChecks(t *testing.T) {
	_, err := mustKind(t, Email).Coerce("not-an-address")
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = mustKind(t, Color).Coerce("#12345G")
	assert.ErrorIs(t, err, ErrInvalidValue)
	v, err := mustKind(t, TimeZone).Coerce("Europe/Paris")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", v)
	v, err = mustKind(t, String).Coerce(42.0)
	require.NoError(t, err)
	assert.Equal(t, "42", v)
}

func TestCoerce_JSON(t *testing.T) {
	k := mustKind(t, JSON)
	v, err := k.Coerce(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(v.(json.RawMessage)))

	v, err = k.Coerce(`[1,2]`)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`[1,2]`), v)

	v, err = k.FromDriver("plain")
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`"plain"`), v)
}

func TestArrays(t *testing.T) {
	k := mustKind(t, "int32[]")
	v, err := k.Coerce(`[1, 2, null]`)
	require.NoError(t, err)
	assert.Equal(t, []any{int32(1), int32(2), nil}, v)

	driver := k.ToDriver(v).([]*int32)
	require.Len(t, driver, 3)
	assert.Equal(t, int32(2), *driver[1])
	assert.Nil(t, driver[2])

	back, err := k.FromDriver([]any{int32(5)})
	require.NoError(t, err)
	assert.Equal(t, []any{int32(5)}, back)

	_, err = k.Coerce([]string{"1", "x"})
	assert.ErrorIs(t, err, ErrInvalidValue)

	assert.Equal(t, "ARRAY[1,2,NULL]::integer[]", k.Literal(v))

	nums := mustKind(t, "numeric[]")
	nv, err := nums.Coerce([]any{"1.5"})
	require.NoError(t, err)
	assert.IsType(t, []*pgtype.Numeric{}, nums.ToDriver(nv))
}

func TestComposite(t *testing.T) {
	doc := mustKind(t, Document)
	assert.Equal(t, []string{"name", "content", "content_type", "text"}, doc.Attributes())

	v, err := doc.Coerce(map[string]any{"name": "note.txt", "content": []byte("hello world")})
	require.NoError(t, err)
	f := v.(*models.File)
	assert.Equal(t, "text/plain", f.ContentType)
	assert.Equal(t, "hello world", f.Text)
	assert.Len(t, doc.CompositeArgs(f), 4)

	img := mustKind(t, Image)
	v, err = img.Coerce(&models.File{Name: "a.png", Content: []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, Text: "dropped"})
	require.NoError(t, err)
	f = v.(*models.File)
	assert.Equal(t, "image/png", f.ContentType)
	assert.Empty(t, f.Text)

	assert.True(t, ContentTypeAllowed("text/plain; charset=utf-8", []string{"text/plain"}))
	assert.False(t, ContentTypeAllowed("image/png", []string{"application/pdf"}))
	assert.True(t, ContentTypeAllowed("image/png", nil))
}

func TestParse_FileDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logo.txt")
	require.NoError(t, os.WriteFile(path, []byte("logo"), 0o600))

	v, err := mustKind(t, File).Parse(FilePrefix + path)
	require.NoError(t, err)
	f := v.(*models.File)
	assert.Equal(t, "logo.txt", f.Name)
	assert.Equal(t, []byte("logo"), f.Content)

	v, err = mustKind(t, Binary).Parse(FilePrefix + path)
	require.NoError(t, err)
	assert.Equal(t, []byte("logo"), v)

	_, err = mustKind(t, File).Parse("inline")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, "'it''s'", mustKind(t, Text).Literal("it's"))
	assert.Equal(t, `'\x0102'::bytea`, mustKind(t, Binary).Literal([]byte{1, 2}))
	assert.Equal(t, "TRUE", mustKind(t, Boolean).Literal(true))
	assert.Equal(t, "NULL", mustKind(t, Int64).Literal(nil))
	assert.Equal(t, "'2024-01-02'::date", mustKind(t, Date).Literal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
}
