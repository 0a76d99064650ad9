// Package validation runs the two stage validation of a screen: field-level
// checks over every live field occurrence, then the form-level rules marked
// for client execution. Form rules never run while a field error exists.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/goliatone/go-formflow/pkg/condition"
	"github.com/goliatone/go-formflow/pkg/formstate"
	"github.com/goliatone/go-formflow/pkg/schema"
)

// Logger receives non-fatal diagnostics such as invalid regexes.
type Logger interface {
	Printf(format string, args ...any)
}

// State is the read side of the store the pipeline needs.
type State interface {
	Get(key string) formstate.Value
	Instances(sectionID string) int
	KeysWithPrefix(id string) []string
}

// Stage identifies which stage produced a Result.
type Stage int

const (
	StageNone Stage = iota
	StageField
	StageForm
)

// Result is an ordered error set.
type Result struct {
	Errors map[string]string
	// First is the key of the first error in traversal order.
	First string
	Stage Stage
}

// OK reports whether no error was found.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the diagnostics logger.
func WithLogger(l Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithEvaluator overrides the condition evaluator.
func WithEvaluator(e *condition.Evaluator) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.eval = e
		}
	}
}

// Pipeline validates one screen.
type Pipeline struct {
	index  *schema.Index
	eval   *condition.Evaluator
	logger Logger

	mu      sync.Mutex
	regexes map[string]*regexp.Regexp
}

// New builds a pipeline for the indexed screen.
func New(ix *schema.Index, opts ...Option) *Pipeline {
	p := &Pipeline{
		index:   ix,
		eval:    condition.New(ix),
		regexes: map[string]*regexp.Regexp{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Evaluator returns the condition evaluator in use.
func (p *Pipeline) Evaluator() *condition.Evaluator {
	return p.eval
}

// Enabled evaluates enabledWhen; fields without one are enabled.
func (p *Pipeline) Enabled(f *schema.Field, values condition.Values, instance int) bool {
	return p.eval.Eval(f.EnabledWhen, values, instance)
}

// Visible evaluates visibleWhen; fields without one are visible.
func (p *Pipeline) Visible(f *schema.Field, values condition.Values, instance int) bool {
	return p.eval.Eval(f.VisibleWhen, values, instance)
}

// Required evaluates requiredWhen when present, else the static flag.
func (p *Pipeline) Required(f *schema.Field, values condition.Values, instance int) bool {
	if f.RequiredWhen != nil {
		return p.eval.Eval(f.RequiredWhen, values, instance)
	}
	return f.Required
}

// Field validates one field occurrence and returns its error message, or ""
// when the value passes. Disabled fields never error; visibility does not
// exempt a field.
func (p *Pipeline) Field(f *schema.Field, value formstate.Value, values condition.Values, instance int) string {
	if !p.Enabled(f, values, instance) {
		return ""
	}
	label := f.Label
	if label == "" {
		label = f.ID
	}

	if value.Blank() {
		if p.Required(f, values, instance) {
			return label + " is required"
		}
		return ""
	}
	text := value.Text()

	if v := f.Validation; v != nil && v.Regex != "" {
		if re := p.regex(f.ID, v.Regex); re != nil && !re.MatchString(text) {
			if v.ErrorMessage != "" {
				return v.ErrorMessage
			}
			return label + " is invalid"
		}
	}

	if f.Type == schema.FieldTypeNumber {
		return numberCheck(label, f, text)
	}

	if f.Multiple() {
		if msg := selectionCheck(label, f, text); msg != "" {
			return msg
		}
		return ""
	}

	return lengthCheck(label, f, text)
}

func numberCheck(label string, f *schema.Field, text string) string {
	text = strings.TrimSpace(text)
	if !allDigits(text) {
		return label + " must be a number"
	}
	n, ok := formstate.String(text).Number()
	if !ok {
		return label + " must be a valid number"
	}
	if min, ok := f.Min.Get(); ok && n < float64(min) {
		return fmt.Sprintf("%s must be at least %d", label, min)
	}
	if max, ok := f.Max.Get(); ok && n > float64(max) {
		return fmt.Sprintf("%s must be at most %d", label, max)
	}
	if max, ok := f.MaxLength.Get(); ok && utf8.RuneCountInString(text) > max {
		return fmt.Sprintf("%s must be at most %d digits", label, max)
	}
	return ""
}

func selectionCheck(label string, f *schema.Field, text string) string {
	selected := lo.Compact(lo.Map(strings.Split(text, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
	if min, ok := f.MinSelections.Get(); ok && len(selected) < min {
		return fmt.Sprintf("Select at least %d %s", min, plural(min, "option"))
	}
	if max, ok := f.MaxSelections.Get(); ok && len(selected) > max {
		return fmt.Sprintf("Select at most %d %s", max, plural(max, "option"))
	}
	return ""
}

func lengthCheck(label string, f *schema.Field, text string) string {
	n := utf8.RuneCountInString(text)
	if max, ok := f.MaxLength.Get(); ok && n > max {
		return fmt.Sprintf("%s must be at most %d characters", label, max)
	}
	if min, ok := f.Min.Get(); ok && n < min {
		return fmt.Sprintf("%s must be at least %d characters", label, min)
	}
	if max, ok := f.Max.Get(); ok && n > max {
		return fmt.Sprintf("%s must be at most %d characters", label, max)
	}
	return ""
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// regex compiles and caches the anchored pattern. Invalid patterns are
// logged once and skipped.
func (p *Pipeline) regex(fieldID, pattern string) *regexp.Regexp {
	p.mu.Lock()
	defer p.mu.Unlock()
	if re, ok := p.regexes[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		re = nil
		if p.logger != nil {
			p.logger.Printf("validation: field %s: skipping invalid regex %q: %v", fieldID, pattern, err)
		}
	}
	p.regexes[pattern] = re
	return re
}

// Fields runs field-level validation over every live field occurrence in
// traversal order.
func (p *Pipeline) Fields(state State) Result {
	res := Result{Errors: map[string]string{}, Stage: StageField}
	screen := p.index.Screen()
	if screen == nil {
		return res
	}
	schema.Walk(screen.Sections, state.Instances, func(v schema.Visit) bool {
		key := v.Key.String()
		if msg := p.Field(v.Field, state.Get(key), state, v.Instance); msg != "" {
			res.Errors[key] = msg
			if res.First == "" {
				res.First = key
			}
		}
		return true
	})
	if res.OK() {
		res.Stage = StageNone
	}
	return res
}

// AllValid reports whether every live field passes field-level validation.
func (p *Pipeline) AllValid(state State) bool {
	screen := p.index.Screen()
	if screen == nil {
		return false
	}
	valid := true
	schema.Walk(screen.Sections, state.Instances, func(v schema.Visit) bool {
		if p.Field(v.Field, state.Get(v.Key.String()), state, v.Instance) != "" {
			valid = false
		}
		return valid
	})
	return valid
}

// FormRules runs the client side form-level rules.
func (p *Pipeline) FormRules(state State) Result {
	res := Result{Errors: map[string]string{}, Stage: StageForm}
	screen := p.index.Screen()
	if screen == nil {
		return res
	}
	for _, rule := range screen.Validations {
		if !rule.ClientSide() || rule.FieldID == "" {
			continue
		}
		switch strings.ToUpper(rule.Type) {
		case schema.RuleRequiresVerification:
			if p.anyVerified(state, rule.FieldID) {
				continue
			}
			msg := rule.Message
			if msg == "" {
				msg = p.index.Label(rule.FieldID) + " must be verified"
			}
			key := p.ruleKey(state, rule.FieldID)
			if _, exists := res.Errors[key]; !exists {
				res.Errors[key] = msg
			}
			if res.First == "" {
				res.First = key
			}
		default:
			if p.logger != nil {
				p.logger.Printf("validation: skipping unknown form rule type %q", rule.Type)
			}
		}
	}
	if res.OK() {
		res.Stage = StageNone
	}
	return res
}

func (p *Pipeline) anyVerified(state State, fieldID string) bool {
	for _, key := range state.KeysWithPrefix(fieldID) {
		base, ok := schema.IsVerifiedKey(key)
		if !ok || schema.ParseKey(base).ID != fieldID {
			continue
		}
		if b, _ := state.Get(key).Bool(); b {
			return true
		}
	}
	return false
}

// ruleKey places a form rule error on the first live instance of a field in
// a repeatable section so it renders next to an input.
func (p *Pipeline) ruleKey(state State, fieldID string) string {
	ref, ok := p.index.Field(fieldID)
	if !ok || !ref.InRepeatable() || state.Instances(ref.Repeatable) == 0 {
		return fieldID
	}
	return schema.FieldKey(fieldID, 0).String()
}

// Submit runs field validation and, only when it passes, the form rules.
func (p *Pipeline) Submit(state State) Result {
	if res := p.Fields(state); !res.OK() {
		return res
	}
	return p.FormRules(state)
}
