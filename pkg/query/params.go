package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidParam indicates a parameter that cannot be sent to the service.
var ErrInvalidParam = errors.New("invalid query parameter")

// ParamType is the scalar type of a Param.
type ParamType string

const (
	TextType      ParamType = "text"
	BoolType      ParamType = "bool"
	IntType       ParamType = "int"
	DecimalType   ParamType = "decimal"
	TimestampType ParamType = "timestamp"
)

// Param is a single positional query parameter. Its type is one of the
// ParamType constants; the zero Param is invalid.
type Param struct {
	typ   ParamType
	value interface{}
}

// Text, Bool, Int, Decimal and Timestamp build a Param of the matching type.
func Text(s string) Param { return Param{TextType, s} }

func Bool(b bool) Param { return Param{BoolType, b} }

func Int(i int64) Param { return Param{IntType, i} }

func Decimal(d decimal.Decimal) Param { return Param{DecimalType, d} }

func Timestamp(t time.Time) Param { return Param{TimestampType, t} }

// Type returns the type of p. It is empty for the zero Param.
func (p Param) Type() ParamType { return p.typ }

// Value returns the Go value of p: a string, bool, int64, decimal.Decimal or
// time.Time.
func (p Param) Value() interface{} { return p.value }

func (p Param) String() string {
	switch p.typ {
	case DecimalType:
		return string(p.typ) + ":" + p.value.(decimal.Decimal).String()
	case TimestampType:
		return string(p.typ) + ":" + p.value.(time.Time).Format(time.RFC3339Nano)
	case "":
		return "<invalid>"
	}
	return fmt.Sprintf("%s:%v", p.typ, p.value)
}

// MarshalJSON encodes decimals as JSON numbers carrying every digit and
// timestamps as RFC 3339 strings.
func (p Param) MarshalJSON() ([]byte, error) {
	switch p.typ {
	case TextType, BoolType, IntType:
		return json.Marshal(p.value)
	case DecimalType:
		return []byte(p.value.(decimal.Decimal).String()), nil
	case TimestampType:
		return json.Marshal(p.value.(time.Time).Format(time.RFC3339Nano))
	}
	return nil, ErrInvalidParam
}

// decimalLiteral also matches plain integers, which only reach it when they
// overflow int64.
var decimalLiteral = regexp.MustCompile(`^[-+]?([0-9]+(\.[0-9]*)?|\.[0-9]+)$`)

// ParseParam parses the command line form of a parameter, `type:value`, where
// type is one of the ParamType names. Without a known type prefix the type is
// inferred from the value: true/false, integer and decimal literals and RFC
// 3339 timestamps get their own type, anything else is text.
func ParseParam(s string) (Param, error) {
	if i := strings.Index(s, ":"); i > 0 {
		v := s[i+1:]
		switch ParamType(s[:i]) {
		case TextType:
			return Text(v), nil
		case BoolType:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return Param{}, fmt.Errorf("%w: %s", ErrInvalidParam, err)
			}
			return Bool(b), nil
		case IntType:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return Param{}, fmt.Errorf("%w: %s", ErrInvalidParam, err)
			}
			return Int(n), nil
		case DecimalType:
			d, err := decimal.NewFromString(v)
			if err != nil {
				return Param{}, fmt.Errorf("%w: %s", ErrInvalidParam, err)
			}
			return Decimal(d), nil
		case TimestampType:
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return Param{}, fmt.Errorf("%w: %s", ErrInvalidParam, err)
			}
			return Timestamp(t), nil
		}
	}

	switch s {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(n), nil
	}
	if decimalLiteral.MatchString(s) {
		if d, err := decimal.NewFromString(s); err == nil {
			return Decimal(d), nil
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Timestamp(t), nil
	}
	return Text(s), nil
}

// ParseParams parses every element of args with ParseParam.
func ParseParams(args []string) ([]Param, error) {
	params := make([]Param, 0, len(args))
	for _, a := range args {
		p, err := ParseParam(a)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", a, err)
		}
		params = append(params, p)
	}
	return params, nil
}
