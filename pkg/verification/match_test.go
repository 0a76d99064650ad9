package verification

import (
	"testing"

	"github.com/goliatone/go-formflow/pkg/schema"
)

func TestMatchesJSON(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cond *schema.SuccessCondition
		body string
		want bool
	}{
		{name: "nil condition", cond: nil, body: `not json`, want: true},
		{name: "nested bool", cond: &schema.SuccessCondition{Field: "data.valid", Equals: true}, body: `{"data":{"valid":true}}`, want: true},
		{name: "bool mismatch", cond: &schema.SuccessCondition{Field: "data.valid", Equals: true}, body: `{"data":{"valid":false}}`, want: false},
		{name: "string bool", cond: &schema.SuccessCondition{Field: "ok", Equals: true}, body: `{"ok":"true"}`, want: true},
		{name: "string fold", cond: &schema.SuccessCondition{Field: "status", Equals: "SUCCESS"}, body: `{"status":"success"}`, want: true},
		{name: "number", cond: &schema.SuccessCondition{Field: "code", Equals: float64(200)}, body: `{"code":200}`, want: true},
		{name: "array index", cond: &schema.SuccessCondition{Field: "items.1.ok", Equals: true}, body: `{"items":[{"ok":false},{"ok":true}]}`, want: true},
		{name: "missing path", cond: &schema.SuccessCondition{Field: "data.valid", Equals: true}, body: `{}`, want: false},
		{name: "invalid payload", cond: &schema.SuccessCondition{Field: "ok", Equals: true}, body: `[]`, want: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := MatchesJSON(tc.cond, []byte(tc.body)); got != tc.want {
				t.Fatalf("MatchesJSON = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRenderMapping(t *testing.T) {
	t.Parallel()

	got := RenderMapping(`{"pan":"{{panValue}}","raw":"{{pan}}","v":"{{value}}"}`, "pan", `AB"C`)
	want := `{"pan":"AB\"C","raw":"AB\"C","v":"AB\"C"}`
	if got != want {
		t.Fatalf("RenderMapping = %s, want %s", got, want)
	}

	if got := RenderMapping("", "pan", "X1"); got != `{"pan":"X1"}` {
		t.Fatalf("default body = %s", got)
	}
}

func TestShouldTrigger(t *testing.T) {
	t.Parallel()

	complete := &schema.Field{
		ID:           "mobile",
		MaxLength:    schema.IntOf(10),
		Verification: &schema.Verification{Enabled: true, Trigger: "ON_COMPLETE", ModalID: "otp"},
	}
	if ShouldTrigger(complete, "98765", false) {
		t.Fatalf("expected partial value not to trigger")
	}
	if !ShouldTrigger(complete, "9876543210", false) {
		t.Fatalf("expected full length value to trigger")
	}
	if ShouldTrigger(complete, "9876543210", true) {
		t.Fatalf("expected ON_COMPLETE to ignore blur")
	}

	blur := &schema.Field{ID: "email", Verification: &schema.Verification{Enabled: true, Trigger: "ON_BLUR", ModalID: "otp"}}
	if ShouldTrigger(blur, "a@b.c", false) || !ShouldTrigger(blur, "a@b.c", true) {
		t.Fatalf("expected ON_BLUR to trigger on blur only")
	}

	disabled := &schema.Field{ID: "x", Verification: &schema.Verification{Enabled: false, Trigger: "ON_BLUR", ModalID: "otp"}}
	if ShouldTrigger(disabled, "v", true) {
		t.Fatalf("expected disabled verification not to trigger")
	}
}

func TestConfigFor(t *testing.T) {
	t.Parallel()

	f := &schema.Field{
		ID:   "mobile",
		Type: schema.FieldTypeVerifiedInput,
		VerifiedInput: &schema.VerifiedInputConfig{
			OTP: &schema.OTPConfig{
				Consent:    &schema.Consent{Title: "Consent"},
				SendCode:   &schema.Endpoint{URL: "/otp/send"},
				VerifyCode: &schema.Endpoint{URL: "/otp/verify"},
			},
		},
	}
	cfg, ok := ConfigFor(f)
	if !ok || cfg.Mode != ModeOTP || !cfg.Consent || !cfg.SendCode || !cfg.VerifyCode {
		t.Fatalf("unexpected config %+v", cfg)
	}

	if _, ok := ConfigFor(&schema.Field{ID: "t", Type: schema.FieldTypeText}); ok {
		t.Fatalf("expected plain text field to have no config")
	}
}
