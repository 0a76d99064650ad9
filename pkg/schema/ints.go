package schema

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Int is an optional integer that accepts JSON numbers and numeric strings.
// Backends are inconsistent about quoting limits such as maxLength, so values
// that fail to parse decode as unset rather than failing the whole screen.
type Int struct {
	n  int
	ok bool
}

// IntOf returns a set Int.
func IntOf(n int) Int {
	return Int{n: n, ok: true}
}

// Get returns the value and whether it was set.
func (i Int) Get() (int, bool) {
	return i.n, i.ok
}

// Valid reports whether the value was set.
func (i Int) Valid() bool {
	return i.ok
}

// Or returns the value, or def when unset.
func (i Int) Or(def int) int {
	if !i.ok {
		return def
	}
	return i.n
}

// IsZero lets `omitzero` drop unset values when encoding.
func (i Int) IsZero() bool {
	return !i.ok
}

func (i Int) MarshalJSON() ([]byte, error) {
	if !i.ok {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(i.n)), nil
}

func (i *Int) UnmarshalJSON(data []byte) error {
	*i = Int{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
		*i = parseInt(raw)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	*i = IntOf(int(f))
	return nil
}

func parseInt(raw string) Int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Int{}
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return IntOf(n)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return IntOf(int(f))
	}
	return Int{}
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
