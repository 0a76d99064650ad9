package formstate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags the dynamic type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// Value is a field value: a string, a number, a boolean or null. The zero
// Value is null.
type Value struct {
	kind Kind
	s    string
	n    float64
	b    bool
}

// Null returns the null value.
func Null() Value { return Value{} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Number wraps a number.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// FromAny converts decoded JSON/YAML scalars into a Value. Composite values
// are stringified since fields only ever hold scalars.
func FromAny(v any) Value {
	switch typed := v.(type) {
	case nil:
		return Null()
	case Value:
		return typed
	case string:
		return String(typed)
	case bool:
		return Bool(typed)
	case float64:
		return Number(typed)
	case float32:
		return Number(float64(typed))
	case int:
		return Number(float64(typed))
	case int64:
		return Number(float64(typed))
	case int32:
		return Number(float64(typed))
	case uint:
		return Number(float64(typed))
	case uint64:
		return Number(float64(typed))
	case json.Number:
		if f, err := typed.Float64(); err == nil {
			return Number(f)
		}
		return String(typed.String())
	case []string:
		return String(strings.Join(typed, ","))
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			parts = append(parts, FromAny(item).Text())
		}
		return String(strings.Join(parts, ","))
	default:
		return String(fmt.Sprint(v))
	}
}

// Kind returns the dynamic type.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Blank reports whether the value is null or a whitespace-only string.
func (v Value) Blank() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return strings.TrimSpace(v.s) == ""
	default:
		return false
	}
}

// Text stringifies the value the way it is shown and compared. Null is "".
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return formatNumber(v.n)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Bool returns the boolean and whether the value holds one.
func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Number returns the value as a number. Numeric strings convert.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.n, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Any returns the raw Go value: string, float64, bool or nil.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return v.n
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == o.s
	case KindNumber:
		return v.n == o.n
	case KindBool:
		return v.b == o.b
	default:
		return true
	}
}

func (v Value) GoString() string {
	if v.kind == KindString {
		return strconv.Quote(v.s)
	}
	if v.kind == KindNull {
		return "null"
	}
	return v.Text()
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Null()
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("formstate: decode value: %w", err)
	}
	*v = FromAny(raw)
	return nil
}

func formatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// Entry is the envelope every stored value lives in. A key with an Entry
// holding Null is present-but-empty; a key without an Entry was never set.
type Entry struct {
	Value Value `json:"value"`
}

// Wrap builds an Entry.
func Wrap(v Value) Entry { return Entry{Value: v} }
