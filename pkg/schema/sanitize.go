package schema

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// SanitizeText strips markup from backend supplied display text. Entities
// are unescaped again so plain text such as "Terms & Conditions" survives.
func SanitizeText(raw string) string {
	if raw == "" || !strings.ContainsAny(raw, "<>&") {
		return raw
	}
	return strings.TrimSpace(html.UnescapeString(textSanitizer().Sanitize(raw)))
}

func textSanitizer() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}

func sanitizeScreen(s *Screen) {
	s.Title = SanitizeText(s.Title)
	s.Layout.SubmitButtonText = SanitizeText(s.Layout.SubmitButtonText)
	for i := range s.Sections {
		sanitizeSection(&s.Sections[i])
	}
	for i := range s.Actions {
		a := &s.Actions[i]
		a.Label = SanitizeText(a.Label)
		a.SuccessMessage = SanitizeText(a.SuccessMessage)
		a.FailureMessage = SanitizeText(a.FailureMessage)
	}
	for i := range s.Modals {
		m := &s.Modals[i]
		m.Title = SanitizeText(m.Title)
		m.ConsentText = SanitizeText(m.ConsentText)
		for j := range m.Actions {
			m.Actions[j].Label = SanitizeText(m.Actions[j].Label)
		}
	}
	for i := range s.Validations {
		s.Validations[i].Message = SanitizeText(s.Validations[i].Message)
	}
}

func sanitizeSection(s *Section) {
	s.Title = SanitizeText(s.Title)
	s.AddButtonText = SanitizeText(s.AddButtonText)
	s.RemoveButtonText = SanitizeText(s.RemoveButtonText)
	s.InstanceLabel = SanitizeText(s.InstanceLabel)
	for i := range s.Fields {
		sanitizeField(&s.Fields[i])
	}
	for i := range s.SubSections {
		sanitizeSection(&s.SubSections[i])
	}
}

func sanitizeField(f *Field) {
	f.Label = SanitizeText(f.Label)
	f.Placeholder = SanitizeText(f.Placeholder)
	if f.Validation != nil {
		f.Validation.ErrorMessage = SanitizeText(f.Validation.ErrorMessage)
	}
	if cfg := f.VerifiedInput; cfg != nil {
		cfg.Messages = sanitizeMessages(cfg.Messages)
		if cfg.OTP != nil && cfg.OTP.Consent != nil {
			c := *cfg.OTP.Consent
			c.Title = SanitizeText(c.Title)
			c.SubTitle = SanitizeText(c.SubTitle)
			c.Message = SanitizeText(c.Message)
			c.PositiveButtonText = SanitizeText(c.PositiveButtonText)
			c.NegativeButtonText = SanitizeText(c.NegativeButtonText)
			cfg.OTP.Consent = &c
		}
	}
	if cfg := f.APIVerification; cfg != nil {
		cfg.Messages = sanitizeMessages(cfg.Messages)
	}
}

func sanitizeMessages(m Messages) Messages {
	return Messages{Success: SanitizeText(m.Success), Failure: SanitizeText(m.Failure)}
}
