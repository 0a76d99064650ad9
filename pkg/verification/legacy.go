package verification

import (
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-formflow/pkg/schema"
)

// Legacy returns the legacy modal verification block when it is enabled.
func Legacy(f *schema.Field) (*schema.Verification, bool) {
	if f == nil || f.Verification == nil || !f.Verification.Enabled {
		return nil, false
	}
	return f.Verification, true
}

// ShouldTrigger reports whether an edit (blur false) or a blur (blur true)
// opens the legacy verification modal. ON_COMPLETE fires once the value
// reaches maxLength, or on any non-blank value when no maxLength is set.
// ON_BLUR fires on blur with a non-blank value.
func ShouldTrigger(f *schema.Field, value string, blur bool) bool {
	v, ok := Legacy(f)
	if !ok || v.ModalID == "" {
		return false
	}
	value = strings.TrimSpace(value)
	switch strings.ToUpper(v.Trigger) {
	case schema.TriggerOnBlur:
		return blur && value != ""
	case schema.TriggerOnComplete, "":
		if blur {
			return false
		}
		if n, ok := f.MaxLength.Get(); ok && n > 0 {
			return utf8.RuneCountInString(value) == n
		}
		return value != ""
	default:
		return false
	}
}
