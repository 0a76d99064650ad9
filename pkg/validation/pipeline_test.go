package validation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/formstate"
	"github.com/goliatone/go-formflow/pkg/schema"
)

const applicantScreen = `{
	"screenId": "applicant",
	"sections": [
		{
			"id": "identity",
			"fields": [
				{"id": "full_name", "type": "TEXT", "label": "Full Name", "required": true, "maxLength": 10},
				{"id": "pan_number", "type": "TEXT", "label": "PAN", "required": true,
					"validation": {"regex": "^[A-Z]{5}[0-9]{4}[A-Z]{1}$", "errorMessage": "Enter a valid PAN"}},
				{"id": "secondary_id_type", "type": "DROPDOWN", "label": "Secondary Id Type"},
				{"id": "secondary_id_number", "type": "TEXT", "label": "Secondary Id Number", "required": true,
					"enabledWhen": {"field": "secondary_id_type", "operator": "NOT_EQUALS", "value": "None"}},
				{"id": "income", "type": "NUMBER", "label": "Income", "min": 1000, "max": "50000"},
				{"id": "amount", "type": "NUMBER", "label": "Amount", "max": 100, "maxLength": 3},
				{"id": "languages", "type": "DROPDOWN", "label": "Languages", "selectionMode": "MULTIPLE", "minSelections": 2, "maxSelections": 3},
				{"id": "nickname", "type": "TEXT", "label": "Nickname", "min": 3},
				{"id": "spouse", "type": "TEXT", "label": "Spouse", "requiredWhen": {"field": "married", "operator": "EQUALS", "value": true}},
				{"id": "married", "type": "BOOLEAN", "label": "Married"}
			]
		},
		{
			"id": "addresses",
			"repeatable": true,
			"minInstances": 1,
			"maxInstances": 2,
			"fields": [{"id": "line1", "type": "TEXT", "label": "Address", "required": true}]
		},
		{
			"id": "kyc",
			"fields": [{"id": "aadhaar", "type": "VERIFIED_INPUT", "label": "Aadhaar"}]
		}
	],
	"validations": {"rules": [
		{"type": "REQUIRES_VERIFICATION", "fieldId": "aadhaar", "executionTarget": "FRONTEND"},
		{"type": "REQUIRES_VERIFICATION", "fieldId": "full_name", "executionTarget": "BACKEND"}
	]}
}`

type fakeState struct {
	values    map[string]formstate.Value
	instances map[string]int
}

func (s fakeState) Get(key string) formstate.Value { return s.values[key] }

func (s fakeState) Instances(id string) int { return s.instances[id] }

func (s fakeState) KeysWithPrefix(id string) []string {
	var out []string
	for key := range s.values {
		if strings.HasPrefix(key, id) {
			out = append(out, key)
		}
	}
	return out
}

type recordingLogger struct{ lines []string }

func (l *recordingLogger) Printf(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func newPipeline(t *testing.T, payload string, opts ...Option) (*Pipeline, *schema.Index) {
	t.Helper()
	screen, err := schema.Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	ix := schema.NewIndex(screen)
	return New(ix, opts...), ix
}

func field(t *testing.T, ix *schema.Index, id string) *schema.Field {
	t.Helper()
	ref, ok := ix.Field(id)
	if !ok {
		t.Fatalf("unknown field %s", id)
	}
	return ref.Field
}

func TestFieldChecks(t *testing.T) {
	t.Parallel()

	p, ix := newPipeline(t, applicantScreen)
	empty := fakeState{values: map[string]formstate.Value{}}

	cases := []struct {
		name  string
		field string
		value formstate.Value
		state fakeState
		want  string
	}{
		{"required blank", "full_name", formstate.String("  "), empty, "Full Name is required"},
		{"required null", "full_name", formstate.Null(), empty, "Full Name is required"},
		{"max length", "full_name", formstate.String("Ada Lovelace King"), empty, "Full Name must be at most 10 characters"},
		{"pan passes", "pan_number", formstate.String("ABCDE1234F"), empty, ""},
		{"pan is case sensitive", "pan_number", formstate.String("abcde1234f"), empty, "Enter a valid PAN"},
		{"pan must fully match", "pan_number", formstate.String("ABCDE1234FX"), empty, "Enter a valid PAN"},
		{"number digits", "income", formstate.String("12a"), empty, "Income must be a number"},
		{"number min", "income", formstate.String("999"), empty, "Income must be at least 1000"},
		{"number max", "income", formstate.String("60000"), empty, "Income must be at most 50000"},
		{"range wins over digit count", "amount", formstate.String("99999"), empty, "Amount must be at most 100"},
		{"number stored as number", "income", formstate.Number(2000), empty, ""},
		{"optional blank", "income", formstate.String(""), empty, ""},
		{"selections min", "languages", formstate.String("EN"), empty, "Select at least 2 options"},
		{"selections max", "languages", formstate.String("EN,HI,TA,TE"), empty, "Select at most 3 options"},
		{"selections ok", "languages", formstate.String("EN, HI"), empty, ""},
		{"min characters", "nickname", formstate.String("Al"), empty, "Nickname must be at least 3 characters"},
		{"required when false", "spouse", formstate.Null(), fakeState{values: map[string]formstate.Value{"married": formstate.Bool(false)}}, ""},
		{"required when true", "spouse", formstate.Null(), fakeState{values: map[string]formstate.Value{"married": formstate.Bool(true)}}, "Spouse is required"},
	}
	for _, tc := range cases {
		if got := p.Field(field(t, ix, tc.field), tc.value, tc.state, schema.NoInstance); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestDisabledFieldNeverErrors(t *testing.T) {
	t.Parallel()

	p, ix := newPipeline(t, applicantScreen)
	f := field(t, ix, "secondary_id_number")

	for _, typ := range []formstate.Value{formstate.Null(), formstate.String("None")} {
		state := fakeState{values: map[string]formstate.Value{"secondary_id_type": typ}}
		if p.Enabled(f, state, schema.NoInstance) {
			t.Fatalf("expected field disabled for %#v", typ)
		}
		if got := p.Field(f, formstate.Null(), state, schema.NoInstance); got != "" {
			t.Fatalf("expected no error for disabled field, got %q", got)
		}
	}

	state := fakeState{values: map[string]formstate.Value{"secondary_id_type": formstate.String("Passport")}}
	if got := p.Field(f, formstate.Null(), state, schema.NoInstance); got != "Secondary Id Number is required" {
		t.Fatalf("expected required error once enabled, got %q", got)
	}
}

func TestHiddenFieldIsStillValidated(t *testing.T) {
	t.Parallel()

	p, ix := newPipeline(t, `{"screenId": "s", "sections": [{"id": "a", "fields": [
		{"id": "toggle", "type": "DROPDOWN", "label": "Toggle"},
		{"id": "detail", "type": "TEXT", "label": "Detail", "required": true,
			"visibleWhen": {"field": "toggle", "operator": "EQUALS", "value": "show"}}
	]}]}`)

	state := fakeState{values: map[string]formstate.Value{}}
	f := field(t, ix, "detail")
	if p.Visible(f, state, schema.NoInstance) {
		t.Fatalf("expected detail hidden while toggle is unset")
	}
	if got := p.Field(f, formstate.Null(), state, schema.NoInstance); got != "Detail is required" {
		t.Fatalf("expected hidden field to be validated, got %q", got)
	}

	res := p.Submit(state)
	if diff := cmp.Diff(map[string]string{"detail": "Detail is required"}, res.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidRegexIsSkippedAndLogged(t *testing.T) {
	t.Parallel()

	logger := &recordingLogger{}
	p, ix := newPipeline(t, `{"screenId": "s", "sections": [{"id": "a", "fields": [
		{"id": "code", "type": "TEXT", "label": "Code", "validation": {"regex": "([", "errorMessage": "bad"}}
	]}]}`, WithLogger(logger))

	f := field(t, ix, "code")
	for i := 0; i < 2; i++ {
		if got := p.Field(f, formstate.String("anything"), fakeState{}, schema.NoInstance); got != "" {
			t.Fatalf("expected invalid regex to be skipped, got %q", got)
		}
	}
	if len(logger.lines) != 1 {
		t.Fatalf("expected a single log line, got %v", logger.lines)
	}
}

func TestSubmitAggregatesInTraversalOrder(t *testing.T) {
	t.Parallel()

	p, _ := newPipeline(t, applicantScreen)
	state := fakeState{
		values: map[string]formstate.Value{
			"pan_number": formstate.String("abcde1234f"),
			"line1#0":    formstate.String("12 Main St"),
		},
		instances: map[string]int{"addresses": 2},
	}

	res := p.Submit(state)
	want := map[string]string{
		"full_name":  "Full Name is required",
		"pan_number": "Enter a valid PAN",
		"line1#1":    "Address is required",
	}
	if diff := cmp.Diff(want, res.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if res.First != "full_name" {
		t.Fatalf("expected first error full_name, got %q", res.First)
	}
	if res.Stage != StageField {
		t.Fatalf("expected field stage, got %v", res.Stage)
	}
}

func TestSubmitRunsFormRulesOnlyAfterFieldsPass(t *testing.T) {
	t.Parallel()

	p, _ := newPipeline(t, applicantScreen)
	values := map[string]formstate.Value{
		"full_name":  formstate.String("Ada"),
		"pan_number": formstate.String("ABCDE1234F"),
		"line1#0":    formstate.String("12 Main St"),
	}
	state := fakeState{values: values, instances: map[string]int{"addresses": 1}}

	res := p.Submit(state)
	want := map[string]string{"aadhaar": "Aadhaar must be verified"}
	if diff := cmp.Diff(want, res.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if res.Stage != StageForm || res.First != "aadhaar" {
		t.Fatalf("unexpected result %+v", res)
	}

	values["aadhaar"] = formstate.String("123412341234")
	values["aadhaar_verified"] = formstate.Bool(true)
	if res := p.Submit(state); !res.OK() {
		t.Fatalf("expected submit to pass, got %+v", res.Errors)
	}
	if !p.AllValid(state) {
		t.Fatalf("expected AllValid")
	}
}

func TestFormRuleAcceptsInstanceVerification(t *testing.T) {
	t.Parallel()

	p, _ := newPipeline(t, `{"screenId": "s", "sections": [
		{"id": "members", "repeatable": true, "fields": [{"id": "phone", "type": "VERIFIED_INPUT", "label": "Phone"}]}
	], "validations": [{"type": "REQUIRES_VERIFICATION", "fieldId": "phone", "executionTarget": "client", "message": "Verify a phone"}]}`)

	state := fakeState{values: map[string]formstate.Value{}, instances: map[string]int{"members": 2}}
	res := p.FormRules(state)
	if diff := cmp.Diff(map[string]string{"phone#0": "Verify a phone"}, res.Errors); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}

	state.values["phone#1_verified"] = formstate.Bool(true)
	if res := p.FormRules(state); !res.OK() {
		t.Fatalf("expected any verified instance to satisfy the rule, got %+v", res.Errors)
	}
}
