package cakemail

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt16
	KindInt32
	KindInt64
	KindDecimal
	KindFloat32
	KindFloat64
	KindTime
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindDecimal:
		return "decimal"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindTime:
		return "time"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Value is a field value of one of the supported kinds. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	i    int64
	f    float64
	dec  decimal.Decimal
	t    time.Time
}

// Data maps field names to values. Entries may be Values or plain Go values;
// plain values are normalised with ValueOf when they are read.
type Data map[string]any

func NullValue() Value                     { return Value{} }
func StringValue(s string) Value           { return Value{kind: KindString, str: s} }
func Int16Value(n int16) Value             { return Value{kind: KindInt16, i: int64(n)} }
func Int32Value(n int32) Value             { return Value{kind: KindInt32, i: int64(n)} }
func Int64Value(n int64) Value             { return Value{kind: KindInt64, i: n} }
func DecimalValue(d decimal.Decimal) Value { return Value{kind: KindDecimal, dec: d} }
func Float32Value(f float32) Value         { return Value{kind: KindFloat32, f: float64(f)} }
func Float64Value(f float64) Value         { return Value{kind: KindFloat64, f: f} }
func TimeValue(t time.Time) Value          { return Value{kind: KindTime, t: t} }

// OtherValue wraps a value outside the enumerated kinds by its display text.
func OtherValue(text string) Value { return Value{kind: KindOther, str: text} }

// ValueOf converts a Go value into a Value.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return NullValue()
	case Value:
		return x
	case *Value:
		if x == nil {
			return NullValue()
		}
		return *x
	case string:
		return StringValue(x)
	case int8:
		return Int16Value(int16(x))
	case int16:
		return Int16Value(x)
	case int32:
		return Int32Value(x)
	case int64:
		return Int64Value(x)
	case int:
		return Int64Value(int64(x))
	case uint8:
		return Int32Value(int32(x))
	case uint16:
		return Int32Value(int32(x))
	case uint32:
		return Int64Value(int64(x))
	case uint:
		return unsignedValue(uint64(x))
	case uint64:
		return unsignedValue(x)
	case float32:
		return Float32Value(x)
	case float64:
		return Float64Value(x)
	case decimal.Decimal:
		return DecimalValue(x)
	case *decimal.Decimal:
		if x == nil {
			return NullValue()
		}
		return DecimalValue(*x)
	case time.Time:
		return TimeValue(x)
	case *time.Time:
		if x == nil {
			return NullValue()
		}
		return TimeValue(*x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return Int64Value(n)
		}
		if f, err := x.Float64(); err == nil {
			return Float64Value(f)
		}
		return StringValue(x.String())
	case bool:
		// Matches the capitalised rendering CakeMail templates were written against.
		if x {
			return OtherValue("True")
		}
		return OtherValue("False")
	default:
		s, err := cast.ToStringE(x)
		if err != nil {
			s = fmt.Sprint(x)
		}
		return OtherValue(s)
	}
}

func unsignedValue(n uint64) Value {
	if n <= math.MaxInt64 {
		return Int64Value(int64(n))
	}
	return DecimalValue(decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0))
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsNumeric reports whether v holds an integer, decimal or floating-point number.
func (v Value) IsNumeric() bool {
	switch v.kind {
	case KindInt16, KindInt32, KindInt64, KindDecimal, KindFloat32, KindFloat64:
		return true
	}
	return false
}

func (v Value) isInteger() bool {
	return v.kind == KindInt16 || v.kind == KindInt32 || v.kind == KindInt64
}

// intBits returns the storage width of an integer value.
func (v Value) intBits() int {
	switch v.kind {
	case KindInt16:
		return 16
	case KindInt32:
		return 32
	default:
		return 64
	}
}

// Time returns the time held by v and whether v is a time value.
func (v Value) Time() (time.Time, bool) { return v.t, v.kind == KindTime }

// Interface returns v as a plain Go value.
func (v Value) Interface() any {
	switch v.kind {
	case KindString, KindOther:
		return v.str
	case KindInt16:
		return int16(v.i)
	case KindInt32:
		return int32(v.i)
	case KindInt64:
		return v.i
	case KindDecimal:
		return v.dec
	case KindFloat32:
		return float32(v.f)
	case KindFloat64:
		return v.f
	case KindTime:
		return v.t
	default:
		return nil
	}
}

// String returns the default text of v using the invariant en-US culture.
func (v Value) String() string {
	return v.text(invariantCulture())
}

// text renders v the way a merge field with no format does.
func (v Value) text(c *culture) string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString, KindOther:
		return v.str
	case KindInt16, KindInt32, KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindDecimal:
		return c.localizeDecimalPoint(v.dec.String())
	case KindFloat32:
		return c.localizeDecimalPoint(formatShortestFloat(v.f, 32))
	case KindFloat64:
		return c.localizeDecimalPoint(formatShortestFloat(v.f, 64))
	case KindTime:
		return formatDate(v.t, "G", c)
	}
	return ""
}

// formatShortestFloat renders the shortest round-tripping form, switching to
// exponent notation (1E+15, 1E-05) outside [1e-5, 1e15).
func formatShortestFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if f == 0 || (abs >= 1e-5 && abs < 1e15) {
		return strconv.FormatFloat(f, 'f', -1, bits)
	}
	s := strconv.FormatFloat(f, 'E', -1, bits)
	mantissa, exp, _ := strings.Cut(s, "E")
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	if len(digits) < 2 {
		digits = strings.Repeat("0", 2-len(digits)) + digits
	}
	return mantissa + "E" + sign + digits
}

// lookup returns the non-null value stored under name.
func (d Data) lookup(name string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	raw, ok := d[name]
	if !ok {
		return Value{}, false
	}
	v := ValueOf(raw)
	if v.IsNull() {
		return Value{}, false
	}
	return v, true
}
