package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTuple_TypedGetters(t *testing.T) {
	tu := NewTuple()
	tu.Set("id", "inv-1")
	tu.Set("amount", decimal.RequireFromString("250.50"))
	tu.Set("lines", int32(3))
	tu.Set("paid", true)
	tu.Set("note", nil)

	id, err := tu.String("id")
	require.NoError(t, err)
	assert.Equal(t, "inv-1", id)

	amount, err := tu.Decimal("amount")
	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.RequireFromString("250.5")))

	lines, err := tu.Int64("lines")
	require.NoError(t, err)
	assert.Equal(t, int64(3), lines)

	paid, err := tu.Bool("paid")
	require.NoError(t, err)
	assert.True(t, paid)

	assert.True(t, tu.IsNull("note"))
	assert.True(t, tu.IsNull("missing"))

	_, err = tu.Bool("id")
	assert.Error(t, err)
}

func TestTuple_MarshalJSONKeepsOrder(t *testing.T) {
	tu := NewTuple()
	tu.Set("b", 1)
	tu.Set("a", 2)
	data, err := json.Marshal(tu)
	require.NoError(t, err)
	assert.Equal(t, `{"b":1,"a":2}`, string(data))
	assert.Equal(t, []string{"b", "a"}, tu.Columns())
}

func TestDecodeTuples(t *testing.T) {
	rows := []Tuple{NewTuple(), NewTuple()}
	rows[0].Set("n", int64(1))
	rows[1].Set("n", int64(2))

	got, err := DecodeTuples(rows, func(tu Tuple) (int64, error) { return tu.Int64("n") })
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, got)

	_, err = DecodeTuples(rows, func(Tuple) (int, error) { return 0, errors.New("boom") })
	assert.ErrorContains(t, err, "row 0")
}
