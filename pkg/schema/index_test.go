package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

const nestedScreen = `{
	"screenId": "applicant",
	"sections": [
		{"id": "personal", "fields": [{"id": "name", "type": "TEXT", "label": "Name"}]},
		{
			"id": "members",
			"repeatable": true,
			"minInstances": 1,
			"maxInstances": 3,
			"fields": [{"id": "member_name", "type": "TEXT", "label": "Member"}],
			"subSections": [
				{"id": "member_contact", "fields": [{"id": "member_phone", "type": "TEXT", "label": "Phone"}]},
				{"id": "member_docs", "repeatable": true, "fields": [{"id": "doc_no", "type": "TEXT"}]}
			]
		},
		{"id": "extra", "fields": [{"id": "name", "type": "TEXT", "label": "Duplicate"}]}
	]
}`

func mustDecode(t *testing.T, payload string) *Screen {
	t.Helper()
	screen, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	return screen
}

func TestIndexResolvesFirstDeclaration(t *testing.T) {
	t.Parallel()

	ix := NewIndex(mustDecode(t, nestedScreen))

	ref, ok := ix.Field("name")
	if !ok {
		t.Fatalf("expected name to be indexed")
	}
	if ref.Section.ID != "personal" || ref.InRepeatable() {
		t.Fatalf("expected first declaration from personal, got %q", ref.Section.ID)
	}
	if got := ix.Label("name"); got != "Name" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := ix.Label("doc_no"); got != "doc_no" {
		t.Fatalf("expected id fallback label, got %q", got)
	}

	phone, _ := ix.Field("member_phone")
	if phone.Repeatable != "members" {
		t.Fatalf("expected member_phone to inherit members context, got %q", phone.Repeatable)
	}
	doc, _ := ix.Field("doc_no")
	if doc.Repeatable != "member_docs" {
		t.Fatalf("expected innermost repeatable context, got %q", doc.Repeatable)
	}
}

func TestIndexResolve(t *testing.T) {
	t.Parallel()

	ix := NewIndex(mustDecode(t, nestedScreen))

	cases := []struct {
		id       string
		instance int
		want     string
	}{
		{"name", NoInstance, "name"},
		{"name", 2, "name"},
		{"member_name", 1, "member_name#1"},
		{"member_phone", 0, "member_phone#0"},
		{"unknown", 4, "unknown#4"},
		{"member_name", NoInstance, "member_name"},
	}
	for _, tc := range cases {
		if got := ix.Resolve(tc.id, tc.instance).String(); got != tc.want {
			t.Fatalf("Resolve(%q, %d) = %q, want %q", tc.id, tc.instance, got, tc.want)
		}
	}
}

func TestIndexDescendantsAndRepeatables(t *testing.T) {
	t.Parallel()

	ix := NewIndex(mustDecode(t, nestedScreen))

	var ids []string
	for _, f := range ix.Descendants("members") {
		ids = append(ids, f.ID)
	}
	if diff := cmp.Diff([]string{"member_name", "member_phone"}, ids); diff != "" {
		t.Fatalf("descendants mismatch (-want +got):\n%s", diff)
	}

	var reps []string
	for _, s := range ix.Repeatables() {
		reps = append(reps, s.ID)
	}
	if diff := cmp.Diff([]string{"members", "member_docs"}, reps); diff != "" {
		t.Fatalf("repeatables mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkVisitsLiveInstancesInOrder(t *testing.T) {
	t.Parallel()

	screen := mustDecode(t, nestedScreen)
	counts := map[string]int{"members": 2, "member_docs": 1}

	var keys []string
	Walk(screen.Sections, func(id string) int { return counts[id] }, func(v Visit) bool {
		keys = append(keys, v.Key.String())
		return true
	})

	want := []string{
		"name",
		"member_name#0", "member_phone#0",
		"member_name#1", "member_phone#1",
		"doc_no#0",
		"name",
	}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Fatalf("walk order mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkStopsEarly(t *testing.T) {
	t.Parallel()

	screen := mustDecode(t, nestedScreen)
	visits := 0
	Walk(screen.Sections, func(string) int { return 1 }, func(Visit) bool {
		visits++
		return visits < 2
	})
	if visits != 2 {
		t.Fatalf("expected walk to stop after 2 visits, got %d", visits)
	}
}

func TestParseKey(t *testing.T) {
	t.Parallel()

	cases := map[string]Key{
		"pan":   PlainKey("pan"),
		"pan#3": FieldKey("pan", 3),
		"a#b":   PlainKey("a#b"),
		"#1":    PlainKey("#1"),
		"x#0#2": FieldKey("x#0", 2),
	}
	for raw, want := range cases {
		if got := ParseKey(raw); got != want {
			t.Fatalf("ParseKey(%q) = %+v, want %+v", raw, got, want)
		}
	}

	if got := FieldKey("pan", 0).Verified(); got != "pan#0_verified" {
		t.Fatalf("unexpected verified key %q", got)
	}
	base, ok := IsVerifiedKey("pan#0_verified")
	if !ok || base != "pan#0" {
		t.Fatalf("IsVerifiedKey = %q %v", base, ok)
	}
}

func TestLintReportsStructuralIssues(t *testing.T) {
	t.Parallel()

	screen := mustDecode(t, `{
		"screenId": "s",
		"sections": [
			{"id": "a", "repeatable": true, "minInstances": 3, "maxInstances": 1, "fields": [
				{"id": "x", "type": "TEXT", "validation": {"regex": "[", "errorMessage": "bad"}},
				{"id": "y", "type": "TEXT", "enabledWhen": {"field": "ghost", "operator": "EXISTS"}},
				{"id": "", "type": "TEXT"}
			]},
			{"id": "a", "fields": []}
		]
	}`)

	result := Lint(screen)
	if result.Valid {
		t.Fatalf("expected lint issues")
	}
	messages := map[string]bool{}
	for _, issue := range result.Issues {
		messages[issue.Message] = true
	}
	for _, want := range []string{
		"duplicate section id",
		"maxInstances is below minInstances",
		`condition references unknown field "ghost"`,
		`failed "required" constraint`,
	} {
		if !messages[want] {
			t.Fatalf("expected issue %q in %+v", want, result.Issues)
		}
	}
}

func TestLintAcceptsCleanScreen(t *testing.T) {
	t.Parallel()

	result := Lint(mustDecode(t, nestedScreen))
	if !result.Valid {
		t.Fatalf("expected clean screen, got %+v", result.Issues)
	}
}
