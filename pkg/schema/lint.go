package schema

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Issue is a structural problem found in a decoded screen.
type Issue struct {
	Path    string `json:"path,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// LintResult collects the outcome of Lint.
type LintResult struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
}

var (
	structValidatorOnce sync.Once
	structValidator     *validator.Validate
)

func screenValidator() *validator.Validate {
	structValidatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		structValidator = v
	})
	return structValidator
}

// Lint checks a decoded screen for problems the engine tolerates at runtime
// but authors should fix: missing ids, duplicate section ids, inverted
// instance bounds, invalid regexes and dangling references.
func Lint(screen *Screen) LintResult {
	result := LintResult{Valid: true}
	if screen == nil {
		result.Valid = false
		result.Issues = []Issue{{Message: "screen is nil"}}
		return result
	}

	if err := screenValidator().Struct(screen); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				result.Issues = append(result.Issues, Issue{
					Path:    strings.TrimPrefix(fe.Namespace(), "Screen."),
					Field:   fe.Field(),
					Message: fmt.Sprintf("failed %q constraint", fe.Tag()),
				})
			}
		} else {
			result.Issues = append(result.Issues, Issue{Message: err.Error()})
		}
	}

	ix := NewIndex(screen)
	seen := map[string]bool{}
	var visit func(list []Section, path string)
	visit = func(list []Section, path string) {
		for i := range list {
			s := &list[i]
			p := fmt.Sprintf("%s[%d]", path, i)
			if s.ID != "" && seen[s.ID] {
				result.Issues = append(result.Issues, Issue{Path: p, Field: s.ID, Message: "duplicate section id"})
			}
			seen[s.ID] = true
			if max, ok := s.MaxInstances.Get(); ok && s.Repeatable && max < s.MinInstances {
				result.Issues = append(result.Issues, Issue{Path: p, Field: s.ID, Message: "maxInstances is below minInstances"})
			}
			for j := range s.Fields {
				lintField(&result, ix, screen, &s.Fields[j], fmt.Sprintf("%s.fields[%d]", p, j))
			}
			visit(s.SubSections, p+".subSections")
		}
	}
	visit(screen.Sections, "sections")

	for i, rule := range screen.Validations {
		if rule.FieldID == "" {
			continue
		}
		if _, ok := ix.Field(rule.FieldID); !ok {
			result.Issues = append(result.Issues, Issue{
				Path:    fmt.Sprintf("validations[%d]", i),
				Field:   rule.FieldID,
				Message: "rule references unknown field",
			})
		}
	}

	result.Valid = len(result.Issues) == 0
	return result
}

func lintField(result *LintResult, ix *Index, screen *Screen, f *Field, path string) {
	if f.Validation != nil && f.Validation.Regex != "" {
		if _, err := regexp.Compile(f.Validation.Regex); err != nil {
			result.Issues = append(result.Issues, Issue{Path: path + ".validation.regex", Field: f.ID, Message: err.Error()})
		}
	}
	conds := []struct {
		name string
		cond *Condition
	}{{"enabledWhen", f.EnabledWhen}, {"visibleWhen", f.VisibleWhen}, {"requiredWhen", f.RequiredWhen}}
	for _, c := range conds {
		if c.cond == nil {
			continue
		}
		for _, ref := range c.cond.Refs() {
			if _, ok := ix.Field(ref); !ok {
				result.Issues = append(result.Issues, Issue{Path: path + "." + c.name, Field: f.ID, Message: fmt.Sprintf("condition references unknown field %q", ref)})
			}
		}
	}
	if v := f.Verification; v != nil && v.Enabled && v.ModalID != "" {
		found := false
		for _, m := range screen.Modals {
			if m.ModalID == v.ModalID {
				found = true
				break
			}
		}
		if !found {
			result.Issues = append(result.Issues, Issue{Path: path + ".verification.modalId", Field: f.ID, Message: fmt.Sprintf("unknown modal %q", v.ModalID)})
		}
	}
	if f.Type == FieldTypeVerifiedInput && f.VerifiedInput == nil {
		result.Issues = append(result.Issues, Issue{Path: path, Field: f.ID, Message: "verified input without verifiedInputConfig"})
	}
	if f.Type == FieldTypeAPIVerification && (f.APIVerification == nil || f.APIVerification.Endpoint == "") {
		result.Issues = append(result.Issues, Issue{Path: path, Field: f.ID, Message: "api verification without endpoint"})
	}
}
