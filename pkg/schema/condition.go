package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Logical group operators.
const (
	LogicAnd = "AND"
	LogicOr  = "OR"
)

// Condition is either a single comparison (Field, Operator, Value) or a group
// of nested conditions joined by Operator (AND or OR).
type Condition struct {
	Field      string      `json:"field,omitempty"`
	Operator   string      `json:"operator"`
	Value      any         `json:"value,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
}

// IsGroup reports whether the condition combines nested conditions.
func (c Condition) IsGroup() bool {
	return len(c.Conditions) > 0
}

// Empty reports whether the condition carries nothing to evaluate.
func (c Condition) Empty() bool {
	return c.Field == "" && len(c.Conditions) == 0
}

// Refs returns every field id the condition reads, in declaration order.
func (c Condition) Refs() []string {
	if !c.IsGroup() {
		if c.Field == "" {
			return nil
		}
		return []string{c.Field}
	}
	var out []string
	for _, child := range c.Conditions {
		out = append(out, child.Refs()...)
	}
	return out
}

// UnmarshalJSON accepts a single condition object, a group object carrying a
// "conditions" array, or a bare array which is read as an AND group. Entries
// that cannot be evaluated decode as an empty condition.
func (c *Condition) UnmarshalJSON(data []byte) error {
	*c = Condition{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '[':
		var list []Condition
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("schema: decode condition list: %w", err)
		}
		*c = group(LogicAnd, list)
		return nil
	case '{':
	default:
		return fmt.Errorf("schema: condition must be an object or array")
	}

	var raw struct {
		Field      string          `json:"field"`
		Operator   string          `json:"operator"`
		Value      json.RawMessage `json:"value"`
		Conditions []Condition     `json:"conditions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("schema: decode condition: %w", err)
	}

	if raw.Conditions != nil {
		logic := upper(raw.Operator)
		if logic != LogicOr {
			logic = LogicAnd
		}
		*c = group(logic, raw.Conditions)
		return nil
	}

	if raw.Field == "" || raw.Operator == "" {
		return nil
	}
	op := upper(raw.Operator)
	var value any
	if len(raw.Value) > 0 && !bytes.Equal(raw.Value, []byte("null")) {
		if err := json.Unmarshal(raw.Value, &value); err != nil {
			return fmt.Errorf("schema: decode condition value: %w", err)
		}
	}
	if value == nil && !valueless(op) {
		return nil
	}
	*c = Condition{Field: raw.Field, Operator: op, Value: value}
	return nil
}

func group(logic string, list []Condition) Condition {
	kept := make([]Condition, 0, len(list))
	for _, child := range list {
		if !child.Empty() {
			kept = append(kept, child)
		}
	}
	if len(kept) == 0 {
		return Condition{}
	}
	return Condition{Operator: logic, Conditions: kept}
}

func valueless(op string) bool {
	return op == "EXISTS" || op == "NOT_EXISTS"
}

// condition returns nil for empty conditions so callers can treat absence
// uniformly.
func condition(c *Condition) *Condition {
	if c == nil || c.Empty() {
		return nil
	}
	return c
}
