package condition

import (
	"strings"

	"github.com/goliatone/go-formflow/pkg/formstate"
	"github.com/goliatone/go-formflow/pkg/schema"
)

// AllValid reports whether the form currently passes field validation. It is
// supplied by the validation pipeline and evaluated lazily.
type AllValid func() bool

// Submit evaluates one layout enableSubmitWhen condition. Unknown types pass.
func Submit(c schema.SubmitCondition, values Values, allValid AllValid) bool {
	switch strings.ToUpper(strings.TrimSpace(c.Type)) {
	case schema.SubmitAllFieldsValid:
		return allValid == nil || allValid()
	case schema.SubmitFieldEquals:
		if c.Field == "" {
			return true
		}
		actual := values.Get(c.Field)
		switch exp := c.Value.(type) {
		case bool:
			b, ok := actual.Bool()
			return ok && b == exp
		case string:
			return !actual.IsNull() && strings.EqualFold(actual.Text(), exp)
		default:
			return actual.Equal(formstate.FromAny(c.Value))
		}
	default:
		return true
	}
}

// SubmitAll evaluates every gating condition in order and stops at the first
// failure.
func SubmitAll(conds []schema.SubmitCondition, values Values, allValid AllValid) bool {
	for _, c := range conds {
		if !Submit(c, values, allValid) {
			return false
		}
	}
	return true
}
