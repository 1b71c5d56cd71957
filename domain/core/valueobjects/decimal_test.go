package valueobjects

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimal_ExactAddition(t *testing.T) {
	sum, err := MustDecimal("0.1").Add(MustDecimal("0.2"))

	require.NoError(t, err)
	assert.Equal(t, "0.3", sum.String())
	assert.True(t, sum.Equal(MustDecimal("0.30")))
}

func TestDecimal_Fixed(t *testing.T) {
	third, err := MustDecimal("1").Quo(MustDecimal("3"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		value  Decimal
		places int
		want   string
	}{
		{"one third", third, 10, "0.3333333333"},
		{"round half up", MustDecimal("2.345"), 2, "2.35"},
		{"negative half up", MustDecimal("-2.345"), 2, "-2.35"},
		{"pads zeros", MustDecimal("5"), 2, "5.00"},
		{"large integer", MustDecimal("12345678901234567890"), 2, "12345678901234567890.00"},
		{"positive exponent", MustDecimal("1.2E+5"), 1, "120000.0"},
		{"zero", Zero, 3, "0.000"},
		{"negative places clamp", MustDecimal("7.6"), -1, "8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.Fixed(tt.places))
		})
	}
}

func TestDecimal_String(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.500", "1.5"},
		{"100", "100"},
		{"1E+2", "100"},
		{"-0", "0"},
		{"0.000", "0"},
		{"  42 ", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MustDecimal(tt.in).String())
		})
	}
}

func TestDecimal_NonFiniteBecomesZero(t *testing.T) {
	assert.True(t, NewDecimalFromFloat(math.NaN()).IsZero())
	assert.True(t, NewDecimalFromFloat(math.Inf(1)).IsZero())
	assert.True(t, NewDecimalFromFloat(math.Inf(-1)).IsZero())

	nan, err := NewDecimalFromString("NaN")
	require.NoError(t, err)
	assert.True(t, nan.IsZero())

	inf, err := NewDecimalFromString("-Infinity")
	require.NoError(t, err)
	assert.True(t, inf.IsZero())
}

func TestDecimal_FromFloatIsShortestRepresentation(t *testing.T) {
	assert.Equal(t, "0.1", NewDecimalFromFloat(0.1).String())
	assert.Equal(t, "-3.25", NewDecimalFromFloat(-3.25).String())
}

func TestDecimal_ParseErrors(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "1.2.3"} {
		_, err := NewDecimalFromString(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestDecimal_QuoByZero(t *testing.T) {
	_, err := MustDecimal("1").Quo(Zero)
	assert.Error(t, err)
}

func TestDecimal_ZeroValue(t *testing.T) {
	var d Decimal

	assert.True(t, d.IsZero())
	assert.Equal(t, "0", d.String())
	sum, err := d.Add(MustDecimal("2"))
	require.NoError(t, err)
	assert.Equal(t, "2", sum.String())
}

func TestDecimal_Cmp(t *testing.T) {
	assert.Equal(t, -1, MustDecimal("1").Cmp(MustDecimal("1.01")))
	assert.Equal(t, 0, MustDecimal("1.0").Cmp(MustDecimal("1")))
	assert.Equal(t, 1, MustDecimal("-1").Cmp(MustDecimal("-2")))
	assert.Equal(t, "3.5", MustDecimal("-3.5").Abs().String())
}

func TestDecimal_JSON(t *testing.T) {
	type payload struct {
		Value Decimal `json:"value"`
	}

	out, err := json.Marshal(payload{Value: MustDecimal("0.30")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":"0.3"}`, string(out))

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"string", `{"value":"12.50"}`, "12.5"},
		{"number", `{"value":0.1}`, "0.1"},
		{"null", `{"value":null}`, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			require.NoError(t, json.Unmarshal([]byte(tt.in), &p))
			assert.Equal(t, tt.want, p.Value.String())
		})
	}

	var p payload
	assert.Error(t, json.Unmarshal([]byte(`{"value":"ten"}`), &p))
}
