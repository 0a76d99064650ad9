package schema

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeWrappedUILayoutString(t *testing.T) {
	t.Parallel()

	screen, err := Decode([]byte(`{
		"screenId": "basic",
		"title": "Basic",
		"ui": {
			"layout": "FORM",
			"sections": [{"sectionId": "main", "title": "Main", "fields": []}],
			"actions": [{"type": "submit", "api": "/api/basic", "method": "POST"}]
		}
	}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}

	want := Layout{Type: "FORM", SubmitButtonText: "Submit", AllowBackNavigation: true}
	if diff := cmp.Diff(want, screen.Layout); diff != "" {
		t.Fatalf("layout mismatch (-want +got):\n%s", diff)
	}
	if got := screen.Sections[0].ID; got != "main" {
		t.Fatalf("expected sectionId alias to populate id, got %q", got)
	}
	if !screen.Sections[0].Expanded {
		t.Fatalf("expected sections to default to expanded")
	}
	if got := screen.Sections[0].MinInstances; got != 1 {
		t.Fatalf("expected minInstances default 1, got %d", got)
	}
	if got := screen.Actions[0].ID; got != "submit" {
		t.Fatalf("expected legacy action type as id, got %q", got)
	}
}

func TestDecodeLayoutObjectKeepsExplicitValues(t *testing.T) {
	t.Parallel()

	screen, err := Decode([]byte(`{
		"screenId": "s",
		"layout": {
			"type": "FORM",
			"submitButtonText": "Continue",
			"allowBackNavigation": false,
			"enableSubmitWhen": [{"type": "FIELD_EQUALS", "field": "agree", "value": true}]
		},
		"sections": []
	}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if screen.Layout.AllowBackNavigation {
		t.Fatalf("expected allowBackNavigation false")
	}
	if screen.Layout.SubmitButtonText != "Continue" {
		t.Fatalf("unexpected submit text %q", screen.Layout.SubmitButtonText)
	}
	want := []SubmitCondition{{Type: "FIELD_EQUALS", Field: "agree", Value: true}}
	if diff := cmp.Diff(want, screen.Layout.EnableSubmitWhen); diff != "" {
		t.Fatalf("enableSubmitWhen mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeFieldLeniency(t *testing.T) {
	t.Parallel()

	screen, err := Decode([]byte(`{
		"screenId": "s",
		"sections": [{
			"id": "main",
			"fields": [{
				"id": "pan",
				"type": "TEXT",
				"label": "PAN",
				"maxLength": "10",
				"min": 2,
				"max": "not-a-number",
				"enabledWhen": {},
				"visibleWhen": {"field": "kind", "operator": "equals", "value": "ind"}
			}]
		}]
	}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	f := screen.Sections[0].Fields[0]
	if n, ok := f.MaxLength.Get(); !ok || n != 10 {
		t.Fatalf("expected maxLength 10 from string, got %d %v", n, ok)
	}
	if n, ok := f.Min.Get(); !ok || n != 2 {
		t.Fatalf("expected min 2, got %d %v", n, ok)
	}
	if f.Max.Valid() {
		t.Fatalf("expected unparsable max to decode as unset")
	}
	if f.EnabledWhen != nil {
		t.Fatalf("expected empty enabledWhen to decode as nil")
	}
	want := &Condition{Field: "kind", Operator: "EQUALS", Value: "ind"}
	if diff := cmp.Diff(want, f.VisibleWhen); diff != "" {
		t.Fatalf("visibleWhen mismatch (-want +got):\n%s", diff)
	}
	if f.SelectionMode != SelectionSingle {
		t.Fatalf("expected default selection mode, got %q", f.SelectionMode)
	}
}

func TestDecodeConditionGroupsAndLists(t *testing.T) {
	t.Parallel()

	var group Condition
	if err := group.UnmarshalJSON([]byte(`{
		"operator": "or",
		"conditions": [
			{"field": "a", "operator": "EXISTS"},
			{"field": "b", "operator": "EQUALS"},
			{"field": "c", "operator": "IN", "value": ["x", "y"]}
		]
	}`)); err != nil {
		t.Fatalf("UnmarshalJSON returned error: %v", err)
	}
	want := Condition{
		Operator: LogicOr,
		Conditions: []Condition{
			{Field: "a", Operator: "EXISTS"},
			{Field: "c", Operator: "IN", Value: []any{"x", "y"}},
		},
	}
	if diff := cmp.Diff(want, group); diff != "" {
		t.Fatalf("group mismatch (-want +got):\n%s", diff)
	}

	var list Condition
	if err := list.UnmarshalJSON([]byte(`[{"field": "a", "operator": "EQUALS", "value": "1"}]`)); err != nil {
		t.Fatalf("UnmarshalJSON returned error: %v", err)
	}
	if list.Operator != LogicAnd || len(list.Conditions) != 1 {
		t.Fatalf("expected list to decode as AND group, got %+v", list)
	}
	if diff := cmp.Diff([]string{"a"}, list.Refs()); diff != "" {
		t.Fatalf("refs mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeDataSourceAliases(t *testing.T) {
	t.Parallel()

	screen, err := Decode([]byte(`{
		"screenId": "s",
		"sections": [{
			"id": "main",
			"fields": [
				{"id": "state", "type": "DROPDOWN", "label": "State", "dataSource": {"type": "master_data", "masterDataKey": "STATES"}},
				{"id": "kind", "type": "RADIO", "label": "Kind", "dataSource": {"type": "STATIC_JSON", "staticData": [{"value": "i", "label": "Individual"}, {"value": "b", "label": "Business"}]}},
				{"id": "city", "type": "DROPDOWN", "label": "City", "dataSource": {"type": "API", "apiEndpoint": "/cities", "dependsOn": "state", "paramKey": "state"}}
			]
		}]
	}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	fields := screen.Sections[0].Fields
	if ds := fields[0].DataSource; !ds.IsMaster() || ds.Key != "STATES" {
		t.Fatalf("unexpected master data source %+v", ds)
	}
	if diff := cmp.Diff([]string{"Individual", "Business"}, fields[1].DataSource.Values); diff != "" {
		t.Fatalf("static values mismatch (-want +got):\n%s", diff)
	}
	if ds := fields[2].DataSource; ds.Endpoint != "/cities" || ds.DependsOn != "state" {
		t.Fatalf("unexpected api data source %+v", ds)
	}
}

func TestDecodeVerifiedInputNestedConfig(t *testing.T) {
	t.Parallel()

	screen, err := Decode([]byte(`{
		"screenId": "s",
		"sections": [{
			"id": "main",
			"fields": [{
				"id": "phone",
				"type": "VERIFIED_INPUT",
				"label": "Phone",
				"verifiedInputConfig": {
					"input": {"dataType": "NUMBER", "min": "10", "max": "10"},
					"verification": {
						"mode": "otp",
						"messages": {"failure": "Bad Client Details"},
						"showDialog": true,
						"otp": {
							"channel": "MOBILE",
							"otpLength": "6",
							"consent": {"title": "User Agreement", "message": "Terms &amp; Conditions <b>apply</b>"},
							"api": {
								"sendOtp": {"endpoint": "/api/otp/send", "method": "POST"},
								"verifyOtp": {"endpoint": "/api/otp/verify", "method": "GET"}
							}
						}
					}
				}
			}]
		}]
	}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	cfg := screen.Sections[0].Fields[0].VerifiedInput
	if cfg == nil || cfg.OTP == nil {
		t.Fatalf("expected verified input otp config, got %+v", cfg)
	}
	if cfg.Mode != "OTP" || !cfg.ShowDialog || cfg.Messages.Failure != "Bad Client Details" {
		t.Fatalf("unexpected verification block %+v", cfg)
	}
	if n, _ := cfg.OTP.Length.Get(); n != 6 {
		t.Fatalf("expected otp length 6, got %d", n)
	}
	if !cfg.OTP.SendCode.Configured() || cfg.OTP.VerifyCode.URL != "/api/otp/verify" {
		t.Fatalf("expected otp endpoints from api block, got %+v", cfg.OTP)
	}
	if got := cfg.OTP.Consent.Message; got != "Terms & Conditions apply" {
		t.Fatalf("expected sanitised consent message, got %q", got)
	}
}

func TestDecodeFoldsTopLevelSubSections(t *testing.T) {
	t.Parallel()

	screen, err := Decode([]byte(`{
		"screenId": "s",
		"sections": [
			{"id": "child", "parentSectionId": "root", "fields": []},
			{"id": "root", "fields": []},
			{"id": "grandchild", "subSectionOf": "child", "fields": []}
		]
	}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if len(screen.Sections) != 1 || screen.Sections[0].ID != "root" {
		t.Fatalf("expected single root section, got %+v", screen.Sections)
	}
	child := screen.Sections[0].SubSections
	if len(child) != 1 || child[0].ID != "child" {
		t.Fatalf("expected child under root, got %+v", child)
	}
	if len(child[0].SubSections) != 1 || child[0].SubSections[0].ID != "grandchild" {
		t.Fatalf("expected grandchild under child, got %+v", child[0].SubSections)
	}
}

func TestDecodeRejectsSectionCycles(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{
		"screenId": "s",
		"sections": [
			{"id": "a", "subSectionOf": "b", "fields": []},
			{"id": "b", "subSectionOf": "a", "fields": []}
		]
	}`))
	if err == nil {
		t.Fatalf("expected cycle error")
	}

	_, err = Decode([]byte(`{"screenId": "s", "sections": [{"id": "a", "subSectionOf": "missing"}]}`))
	if err == nil {
		t.Fatalf("expected unknown parent error")
	}
}

func TestDecodeValidationsShapes(t *testing.T) {
	t.Parallel()

	wrapped, err := Decode([]byte(`{"screenId": "s", "sections": [], "validations": {"rules": [{"type": "REQUIRES_VERIFICATION", "fieldId": "pan", "executionTarget": "FRONTEND"}]}}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	bare, err := Decode([]byte(`{"screenId": "s", "sections": [], "validations": [{"type": "REQUIRES_VERIFICATION", "fieldId": "pan", "executionTarget": "FRONTEND"}]}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if diff := cmp.Diff(wrapped.Validations, bare.Validations); diff != "" {
		t.Fatalf("validation shapes differ (-wrapped +bare):\n%s", diff)
	}
	if !bare.Validations[0].ClientSide() {
		t.Fatalf("expected FRONTEND rule to be client side")
	}
}

func TestDecodeModalHeader(t *testing.T) {
	t.Parallel()

	screen, err := Decode([]byte(`{
		"screenId": "s",
		"sections": [],
		"modals": [{"modalId": "otp", "type": "OTP", "header": {"title": "Verify", "icon": "phone"}, "otp": {"length": 4}}]
	}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	want := Modal{ModalID: "otp", Type: "OTP", Title: "Verify", Icon: "phone", CodeLength: 4}
	if diff := cmp.Diff(want, screen.Modals[0]); diff != "" {
		t.Fatalf("modal mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeYAMLMatchesJSON(t *testing.T) {
	t.Parallel()

	fromYAML, err := DecodeYAML([]byte(`
screenId: s
layout: FORM
sections:
  - id: main
    title: Main
    fields:
      - id: name
        type: TEXT
        label: Name
        required: true
        maxLength: 20
`))
	if err != nil {
		t.Fatalf("DecodeYAML returned error: %v", err)
	}
	fromJSON, err := Decode([]byte(`{"screenId":"s","layout":"FORM","sections":[{"id":"main","title":"Main","fields":[{"id":"name","type":"TEXT","label":"Name","required":true,"maxLength":20}]}]}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if diff := cmp.Diff(fromJSON, fromYAML, cmp.AllowUnexported(Int{})); diff != "" {
		t.Fatalf("yaml and json screens differ (-json +yaml):\n%s", diff)
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	t.Parallel()

	if _, err := Decode([]byte("  ")); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
}
