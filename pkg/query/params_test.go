package query

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParam_MarshalJSON(t *testing.T) {
	ts := time.Date(2025, 3, 14, 15, 9, 26, 535000000, time.UTC)
	params := []Param{
		Text("x"),
		Bool(true),
		Int(-42),
		Decimal(decimal.RequireFromString("12345678901234567890.000000000001")),
		Timestamp(ts),
	}

	out, err := json.Marshal(params)
	require.NoError(t, err)
	assert.Equal(t, `["x",true,-42,12345678901234567890.000000000001,"2025-03-14T15:09:26.535Z"]`, string(out))
}

func TestParam_Zero(t *testing.T) {
	_, err := json.Marshal([]Param{{}})
	assert.True(t, errors.Is(err, ErrInvalidParam))
	assert.Equal(t, "<invalid>", Param{}.String())
}

func TestParseParam(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	cases := []struct {
		In       string
		Expected Param
	}{
		{"x", Text("x")},
		{"text:42", Text("42")},
		{"text:", Text("")},
		{"a:b", Text("a:b")},
		{"true", Bool(true)},
		{"false", Bool(false)},
		{"bool:1", Bool(true)},
		{"TRUE", Text("TRUE")},
		{"1", Int(1)},
		{"-7", Int(-7)},
		{"int:+3", Int(3)},
		{"3.14", Decimal(decimal.RequireFromString("3.14"))},
		{"99999999999999999999", Decimal(decimal.RequireFromString("99999999999999999999"))},
		{"-99999999999999999999", Decimal(decimal.RequireFromString("-99999999999999999999"))},
		{"decimal:10", Decimal(decimal.RequireFromString("10"))},
		{"1e5", Text("1e5")},
		{"2024-01-02T03:04:05Z", Timestamp(ts)},
		{"timestamp:2024-01-02T03:04:05Z", Timestamp(ts)},
	}

	for _, c := range cases {
		actual, err := ParseParam(c.In)
		require.NoError(t, err, c.In)
		assert.Equal(t, c.Expected.Type(), actual.Type(), c.In)
		assert.Equal(t, c.Expected.String(), actual.String(), c.In)
	}
}

func TestParseParam_BigInteger(t *testing.T) {
	p, err := ParseParam("99999999999999999999")
	require.NoError(t, err)
	assert.Equal(t, DecimalType, p.Type())

	out, err := p.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "99999999999999999999", string(out))
}

func TestParseParam_Invalid(t *testing.T) {
	for _, in := range []string{"bool:maybe", "int:1.5", "decimal:abc", "timestamp:yesterday"} {
		_, err := ParseParam(in)
		assert.ErrorIs(t, err, ErrInvalidParam, in)
	}
}

func TestParseParams(t *testing.T) {
	params, err := ParseParams([]string{"1", "x", "true"})
	require.NoError(t, err)
	assert.Equal(t, []Param{Int(1), Text("x"), Bool(true)}, params)

	_, err = ParseParams([]string{"1", "int:x"})
	assert.ErrorIs(t, err, ErrInvalidParam)
}
