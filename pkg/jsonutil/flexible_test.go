package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name  string
		input json.RawMessage
		want  string
	}{
		{name: "string value", input: json.RawMessage(`"hello"`), want: "hello"},
		{name: "integer value", input: json.RawMessage(`42`), want: "42"},
		{name: "float value", input: json.RawMessage(`3.14`), want: "3.14"},
		{name: "boolean true", input: json.RawMessage(`true`), want: "true"},
		{name: "null value", input: json.RawMessage(`null`), want: ""},
		{name: "nil raw message", input: nil, want: ""},
		{name: "large integer preserves precision", input: json.RawMessage(`9007199254740993`), want: "9007199254740993"},
		{name: "nested object falls back to raw string", input: json.RawMessage(`{"key":"value"}`), want: `{"key":"value"}`},
		{name: "negative integer", input: json.RawMessage(`-7`), want: "-7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FlexibleStringValue(tt.input))
		})
	}
}

func TestFlexibleString(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
		ok    bool
	}{
		{name: "string", input: "abc", want: "abc", ok: true},
		{name: "float keeps decimals", input: 250.5, want: "250.5", ok: true},
		{name: "integral float", input: float64(3), want: "3", ok: true},
		{name: "int32", input: int32(-4), want: "-4", ok: true},
		{name: "json number", input: json.Number("12.000"), want: "12.000", ok: true},
		{name: "bool", input: false, want: "false", ok: true},
		{name: "map is not scalar", input: map[string]any{}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FlexibleString(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlexibleInt64(t *testing.T) {
	n, err := FlexibleInt64(float64(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	n, err = FlexibleInt64(" 17 ")
	require.NoError(t, err)
	assert.Equal(t, int64(17), n)

	n, err = FlexibleInt64(json.Number("-9"))
	require.NoError(t, err)
	assert.Equal(t, int64(-9), n)

	_, err = FlexibleInt64(1.5)
	assert.Error(t, err)

	_, err = FlexibleInt64(uint64(1 << 63))
	assert.Error(t, err)

	_, err = FlexibleInt64(true)
	assert.Error(t, err)
}

func TestFlexibleFloat64(t *testing.T) {
	f, err := FlexibleFloat64("2.5")
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	f, err = FlexibleFloat64(int16(7))
	require.NoError(t, err)
	assert.Equal(t, 7.0, f)

	_, err = FlexibleFloat64("abc")
	assert.Error(t, err)
}

func TestFlexibleBool(t *testing.T) {
	tests := []struct {
		input   any
		want    bool
		wantErr bool
	}{
		{input: true, want: true},
		{input: "false", want: false},
		{input: "1", want: true},
		{input: float64(0), want: false},
		{input: int64(1), want: true},
		{input: int64(2), wantErr: true},
		{input: "yes", wantErr: true},
	}

	for _, tt := range tests {
		got, err := FlexibleBool(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.input)
			continue
		}
		require.NoError(t, err, "%v", tt.input)
		assert.Equal(t, tt.want, got, "%v", tt.input)
	}
}
