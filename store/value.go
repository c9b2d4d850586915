package store

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// Kind identifies which scalar a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindBinary
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindBinary:
		return "binary"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is an immutable scalar stored under a key.
//
// Numbers are held as canonical decimal text so integers survive a round
// trip through media that store numbers as strings (DynamoDB "N").
// The zero Value is Null.
type Value struct {
	kind Kind
	str  string
	b    bool
	bin  []byte
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns a number value.
func Int(n int64) Value { return Value{kind: KindNumber, str: strconv.FormatInt(n, 10)} }

// Uint returns a number value.
func Uint(n uint64) Value { return Value{kind: KindNumber, str: strconv.FormatUint(n, 10)} }

// Float returns a number value. NaN and infinities have no decimal form and
// are coerced to their string representation.
func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return String(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return Value{kind: KindNumber, str: canonicalFloat(f)}
}

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Binary returns a binary value. The slice is copied.
func Binary(p []byte) Value {
	return Value{kind: KindBinary, bin: bytes.Clone(p)}
}

// NumberText parses decimal text read back from a medium into a number value.
func NumberText(s string) (Value, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(n), nil
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return Uint(n), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("invalid number %q", s)
	}
	return Value{kind: KindNumber, str: canonicalFloat(f)}, nil
}

// Of converts an arbitrary Go value into a Value.
//
// nil, strings, booleans, integers, finite floats and byte slices map onto
// their kind. Anything else is coerced to its fmt.Sprint form; the original
// type is not recoverable on read.
func Of(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case *Value:
		if x == nil {
			return Null()
		}
		return *x
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case int:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint:
		return Uint(uint64(x))
	case uint8:
		return Uint(uint64(x))
	case uint16:
		return Uint(uint64(x))
	case uint32:
		return Uint(uint64(x))
	case uint64:
		return Uint(x)
	case float32:
		return Float(float64(x))
	case float64:
		return Float(x)
	case []byte:
		return Binary(x)
	default:
		return String(fmt.Sprint(x))
	}
}

// Kind reports the kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// NumberString returns the canonical decimal text of a number value.
func (v Value) NumberString() (string, bool) {
	return v.str, v.kind == KindNumber
}

// AsInt returns the number as an int64 when it is integral and in range.
func (v Value) AsInt() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	n, err := strconv.ParseInt(v.str, 10, 64)
	return n, err == nil
}

// AsFloat returns the number as a float64.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.str, 64)
	return f, err == nil
}

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsBinary returns a copy of the binary payload.
func (v Value) AsBinary() ([]byte, bool) {
	if v.kind != KindBinary {
		return nil, false
	}
	return bytes.Clone(v.bin), true
}

// Interface returns the payload as a plain Go value: nil, string, int64,
// float64, bool or []byte.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		if n, ok := v.AsInt(); ok {
			return n
		}
		f, _ := v.AsFloat()
		return f
	case KindBool:
		return v.b
	case KindBinary:
		return bytes.Clone(v.bin)
	default:
		return nil
	}
}

// Equal reports whether v and o hold the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindBinary:
		return bytes.Equal(v.bin, o.bin)
	default:
		return v.str == o.str
	}
}

// String renders the value for logs and for lossy string coercion.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindBinary:
		return fmt.Sprintf("%x", v.bin)
	default:
		return v.str
	}
}

func canonicalFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
