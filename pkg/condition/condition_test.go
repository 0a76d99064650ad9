package condition

import (
	"testing"

	"github.com/goliatone/go-formflow/pkg/formstate"
	"github.com/goliatone/go-formflow/pkg/schema"
)

type mapValues map[string]formstate.Value

func (m mapValues) Get(key string) formstate.Value { return m[key] }

func cond(field, op string, value any) *schema.Condition {
	return &schema.Condition{Field: field, Operator: op, Value: value}
}

func TestEvalOperators(t *testing.T) {
	t.Parallel()

	values := mapValues{
		"kind":    formstate.String(" Individual "),
		"agree":   formstate.Bool(true),
		"age":     formstate.Number(30),
		"docs":    formstate.String("PAN, Passport"),
		"blank":   formstate.String(""),
		"numeric": formstate.String("12"),
	}

	cases := []struct {
		name string
		c    *schema.Condition
		want bool
	}{
		{"nil condition", nil, true},
		{"equals case insensitive", cond("kind", "EQUALS", "individual"), true},
		{"equals alias", cond("kind", "==", "business"), false},
		{"equals bool identity", cond("agree", "EQUALS", true), true},
		{"equals bool rejects string", cond("kind", "EQUALS", true), false},
		{"equals number", cond("age", "EQUALS", float64(30)), true},
		{"equals multi contains", cond("docs", "EQUALS", "passport"), true},
		{"not equals", cond("kind", "NOT_EQUALS", "business"), true},
		{"not equals blank is false", cond("blank", "NOT_EQUALS", "None"), false},
		{"not equals blank vs blank is false", cond("missing", "!=", ""), false},
		{"not equals multi", cond("docs", "NOT_EQUALS", "PAN"), false},
		{"in list", cond("kind", "IN", []any{"Business", "individual"}), true},
		{"in comma string", cond("kind", "IN", "Voter Id,Individual"), true},
		{"in miss", cond("kind", "IN", "A,B"), false},
		{"in multi any", cond("docs", "IN", []any{"passport"}), true},
		{"in unsupported expected", cond("kind", "IN", float64(1)), false},
		{"not in", cond("kind", "NOT_IN", "A,B"), true},
		{"not in hit", cond("kind", "NOT_IN", []any{"INDIVIDUAL"}), false},
		{"not in blank is false", cond("missing", "NOT_IN", "A"), false},
		{"exists", cond("kind", "EXISTS", nil), true},
		{"exists blank", cond("blank", "EXISTS", nil), false},
		{"not exists", cond("missing", "NOT_EXISTS", nil), true},
		{"greater than", cond("age", "GREATER_THAN", "18"), true},
		{"less than string value", cond("numeric", "<", float64(10)), false},
		{"greater than non numeric", cond("kind", ">", float64(1)), false},
		{"unknown operator fails open", cond("kind", "MATCHES", "x"), true},
	}

	eval := New(nil)
	for _, tc := range cases {
		if got := eval.Eval(tc.c, values, schema.NoInstance); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestEvalGroups(t *testing.T) {
	t.Parallel()

	values := mapValues{"a": formstate.String("x"), "b": formstate.String("")}
	eval := New(nil)

	and := &schema.Condition{Operator: "AND", Conditions: []schema.Condition{
		*cond("a", "EXISTS", nil), *cond("b", "EXISTS", nil),
	}}
	if eval.Eval(and, values, schema.NoInstance) {
		t.Fatalf("expected AND group to fail")
	}

	or := &schema.Condition{Operator: "OR", Conditions: and.Conditions}
	if !eval.Eval(or, values, schema.NoInstance) {
		t.Fatalf("expected OR group to pass")
	}

	unknown := &schema.Condition{Operator: "XOR", Conditions: and.Conditions}
	if eval.Eval(unknown, values, schema.NoInstance) {
		t.Fatalf("expected unknown group operator to behave as AND")
	}
}

func TestEvalResolvesInstanceKeys(t *testing.T) {
	t.Parallel()

	screen, err := schema.Decode([]byte(`{
		"screenId": "s",
		"sections": [
			{"id": "main", "fields": [{"id": "loan_type", "type": "TEXT"}]},
			{"id": "members", "repeatable": true, "fields": [{"id": "relation", "type": "TEXT"}]}
		]
	}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	eval := New(schema.NewIndex(screen))
	values := mapValues{
		"loan_type":  formstate.String("HOME"),
		"relation#1": formstate.String("Spouse"),
	}

	if !eval.Eval(cond("relation", "EQUALS", "spouse"), values, 1) {
		t.Fatalf("expected instance 1 to resolve relation#1")
	}
	if eval.Eval(cond("relation", "EQUALS", "spouse"), values, 0) {
		t.Fatalf("expected instance 0 to resolve relation#0")
	}
	if !eval.Eval(cond("loan_type", "EQUALS", "home"), values, 1) {
		t.Fatalf("expected non repeatable reference to resolve to the plain key")
	}
}

func TestSubmitConditions(t *testing.T) {
	t.Parallel()

	values := mapValues{"agree": formstate.Bool(true), "status": formstate.String("verified")}

	cases := []struct {
		name     string
		c        schema.SubmitCondition
		allValid bool
		want     bool
	}{
		{"all valid", schema.SubmitCondition{Type: "ALL_FIELDS_VALID"}, true, true},
		{"not all valid", schema.SubmitCondition{Type: "ALL_FIELDS_VALID"}, false, false},
		{"field equals bool", schema.SubmitCondition{Type: "FIELD_EQUALS", Field: "agree", Value: true}, true, true},
		{"field equals string fold", schema.SubmitCondition{Type: "FIELD_EQUALS", Field: "status", Value: "VERIFIED"}, true, true},
		{"field equals missing", schema.SubmitCondition{Type: "FIELD_EQUALS", Field: "missing", Value: "x"}, true, false},
		{"field equals without field", schema.SubmitCondition{Type: "FIELD_EQUALS"}, true, true},
		{"unknown type passes", schema.SubmitCondition{Type: "CAPTCHA_SOLVED"}, false, true},
	}
	for _, tc := range cases {
		allValid := tc.allValid
		if got := Submit(tc.c, values, func() bool { return allValid }); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}

	if SubmitAll([]schema.SubmitCondition{{Type: "FIELD_EQUALS", Field: "agree", Value: false}}, values, nil) {
		t.Fatalf("expected SubmitAll to fail")
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	c := &schema.Condition{Operator: "OR", Conditions: []schema.Condition{
		*cond("a", "==", "x"), *cond("b", "EXISTS", nil),
	}}
	if got := Describe(c); got != "(a EQUALS x OR b EXISTS)" {
		t.Fatalf("unexpected description %q", got)
	}
}
