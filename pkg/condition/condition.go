// Package condition evaluates the dependency conditions attached to fields
// (enabledWhen, visibleWhen, requiredWhen) and the submit gating conditions of
// a screen layout against the current form values.
//
// Supported operators:
//   - EQUALS / ==, NOT_EQUALS / !=
//   - IN, NOT_IN (expected list or comma separated string)
//   - EXISTS, NOT_EXISTS
//   - GREATER_THAN / >, LESS_THAN / <
//
// Unknown operators evaluate to true. NOT_EQUALS and NOT_IN are false while
// the referenced value is blank, so dependants stay disabled until the
// dependency holds a value. A stored value containing commas is read as a
// multi-select: EQUALS means "contains" and IN means "any selected".
package condition

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formflow/pkg/formstate"
	"github.com/goliatone/go-formflow/pkg/schema"
)

// Operators.
const (
	OpEquals      = "EQUALS"
	OpNotEquals   = "NOT_EQUALS"
	OpIn          = "IN"
	OpNotIn       = "NOT_IN"
	OpExists      = "EXISTS"
	OpNotExists   = "NOT_EXISTS"
	OpGreaterThan = "GREATER_THAN"
	OpLessThan    = "LESS_THAN"
)

var aliases = map[string]string{
	"==": OpEquals,
	"!=": OpNotEquals,
	">":  OpGreaterThan,
	"<":  OpLessThan,
}

// Values is the read side of the form store.
type Values interface {
	Get(key string) formstate.Value
}

// Resolver maps a referenced field id to its store key for an instance.
// *schema.Index implements it.
type Resolver interface {
	Resolve(id string, instance int) schema.Key
}

// Evaluator evaluates conditions for one screen.
type Evaluator struct {
	resolver Resolver
}

// New returns an evaluator resolving field references through r. A nil
// resolver keys every reference by its plain id or id#instance.
func New(r Resolver) *Evaluator {
	return &Evaluator{resolver: r}
}

// Eval returns true for a nil condition.
func (e *Evaluator) Eval(c *schema.Condition, values Values, instance int) bool {
	if c == nil || c.Empty() {
		return true
	}
	return e.eval(*c, values, instance)
}

func (e *Evaluator) eval(c schema.Condition, values Values, instance int) bool {
	if c.IsGroup() {
		if strings.EqualFold(c.Operator, schema.LogicOr) {
			for _, child := range c.Conditions {
				if e.eval(child, values, instance) {
					return true
				}
			}
			return false
		}
		for _, child := range c.Conditions {
			if !e.eval(child, values, instance) {
				return false
			}
		}
		return true
	}
	return compare(normalizeOp(c.Operator), values.Get(e.key(c.Field, instance)), c.Value)
}

func (e *Evaluator) key(id string, instance int) string {
	if e.resolver == nil {
		return schema.FieldKey(id, instance).String()
	}
	return e.resolver.Resolve(id, instance).String()
}

func normalizeOp(op string) string {
	op = strings.ToUpper(strings.TrimSpace(op))
	if alias, ok := aliases[op]; ok {
		return alias
	}
	return op
}

func compare(op string, actual formstate.Value, expected any) bool {
	text := strings.TrimSpace(actual.Text())
	selections := splitList(text)
	multi := strings.Contains(text, ",")

	switch op {
	case OpEquals:
		return equals(actual, text, selections, multi, expected)
	case OpNotEquals:
		if text == "" {
			return false
		}
		return !equals(actual, text, selections, multi, expected)
	case OpIn:
		return in(text, selections, multi, expected)
	case OpNotIn:
		if text == "" {
			return false
		}
		list, ok := expectedList(expected)
		if !ok {
			return true
		}
		return !matchAny(text, selections, multi, list)
	case OpExists:
		return text != ""
	case OpNotExists:
		return text == ""
	case OpGreaterThan, OpLessThan:
		a, ok := actual.Number()
		if !ok {
			return false
		}
		b, ok := formstate.FromAny(expected).Number()
		if !ok {
			return false
		}
		if op == OpGreaterThan {
			return a > b
		}
		return a < b
	default:
		return true
	}
}

func equals(actual formstate.Value, text string, selections []string, multi bool, expected any) bool {
	switch exp := expected.(type) {
	case bool:
		b, ok := actual.Bool()
		return ok && b == exp
	case string:
		want := strings.TrimSpace(exp)
		if multi {
			return containsFold(selections, want)
		}
		return strings.EqualFold(text, want)
	default:
		want := formstate.FromAny(expected).Text()
		if multi {
			for _, s := range selections {
				if s == want {
					return true
				}
			}
			return false
		}
		return text == want
	}
}

func in(text string, selections []string, multi bool, expected any) bool {
	list, ok := expectedList(expected)
	if !ok {
		return false
	}
	return matchAny(text, selections, multi, list)
}

func matchAny(text string, selections []string, multi bool, list []string) bool {
	if multi {
		for _, s := range selections {
			if containsFold(list, s) {
				return true
			}
		}
		return false
	}
	return containsFold(list, text)
}

func expectedList(expected any) ([]string, bool) {
	switch exp := expected.(type) {
	case []any:
		out := make([]string, 0, len(exp))
		for _, item := range exp {
			if item == nil {
				continue
			}
			out = append(out, strings.TrimSpace(formstate.FromAny(item).Text()))
		}
		return out, true
	case []string:
		out := make([]string, 0, len(exp))
		for _, item := range exp {
			out = append(out, strings.TrimSpace(item))
		}
		return out, true
	case string:
		parts := strings.Split(exp, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, true
	default:
		return nil, false
	}
}

func splitList(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func containsFold(list []string, want string) bool {
	for _, item := range list {
		if strings.EqualFold(item, want) {
			return true
		}
	}
	return false
}

// Describe renders a condition for logs and CLI output.
func Describe(c *schema.Condition) string {
	if c == nil || c.Empty() {
		return "always"
	}
	if c.IsGroup() {
		parts := make([]string, 0, len(c.Conditions))
		for i := range c.Conditions {
			parts = append(parts, Describe(&c.Conditions[i]))
		}
		return "(" + strings.Join(parts, " "+strings.ToUpper(c.Operator)+" ") + ")"
	}
	if c.Value == nil {
		return fmt.Sprintf("%s %s", c.Field, normalizeOp(c.Operator))
	}
	return fmt.Sprintf("%s %s %v", c.Field, normalizeOp(c.Operator), c.Value)
}
