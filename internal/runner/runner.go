// Package runner walks a form flow in the terminal: it prompts for every
// live field of the current screen, drives verification, and submits or
// navigates back until the backend ends the flow.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formflow/internal/prompt"
	"github.com/goliatone/go-formflow/pkg/engine"
	"github.com/goliatone/go-formflow/pkg/formstate"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/verification"
)

// DefaultMaxAttempts bounds how often a single prompt is repeated.
const DefaultMaxAttempts = 3

const backChoice = "Go back"

// ErrTooManyAttempts is returned when a field keeps failing validation.
var ErrTooManyAttempts = errors.New("runner: too many invalid attempts")

// Result summarises a run.
type Result struct {
	Screens   []string
	Completed bool
	Exited    bool
	Message   string
}

// Runner binds an engine to a prompt driver.
type Runner struct {
	engine      *engine.Engine
	driver      prompt.Driver
	maxAttempts int
}

// Option configures the runner.
type Option func(*Runner)

// WithMaxAttempts bounds the retries of a single prompt.
func WithMaxAttempts(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// New returns a runner driving e through d.
func New(e *engine.Engine, d prompt.Driver, opts ...Option) *Runner {
	r := &Runner{engine: e, driver: d, maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Run starts the flow and walks it to completion or exit.
func (r *Runner) Run(ctx context.Context, flow engine.FlowContext) (Result, error) {
	var res Result
	if err := r.engine.Start(ctx, flow); err != nil {
		r.notice(ctx, r.engine.View().Message)
		return res, err
	}

	for {
		view := r.engine.View()
		if view.Completed {
			res.Completed = true
			res.Message = view.Message
			r.notice(ctx, firstNonEmpty(view.Message, "Flow complete"))
			return res, nil
		}
		res.Screens = append(res.Screens, view.ScreenID)
		if err := r.info(ctx, "== "+firstNonEmpty(view.Screen.Title, view.ScreenID)+" =="); err != nil {
			return res, err
		}

		out, err := r.screen(ctx)
		if err != nil {
			return res, err
		}
		if out.Exit {
			res.Exited = true
			return res, nil
		}
	}
}

// screen fills and submits the current screen, or navigates back.
func (r *Runner) screen(ctx context.Context) (engine.Outcome, error) {
	answered := map[string]bool{}
	declined := map[string]bool{}
	failures := 0

	for {
		if err := r.fill(ctx, answered, declined); err != nil {
			return engine.Outcome{}, err
		}

		view := r.engine.View()
		if view.CanGoBack {
			submitText := firstNonEmpty(view.Screen.Layout.SubmitButtonText, schema.DefaultSubmitButtonText)
			idx, err := r.driver.Select(ctx, prompt.SelectConfig{
				Message: "Next step",
				Options: []string{submitText, backChoice},
			})
			if err != nil {
				return engine.Outcome{}, err
			}
			if idx == 1 {
				return r.engine.Back()
			}
		}

		out, err := r.engine.Submit(ctx)
		switch {
		case err == nil:
			if msg := r.engine.View().Message; msg != "" {
				r.notice(ctx, msg)
			}
			return out, nil
		case errors.Is(err, engine.ErrValidationFailed):
			view := r.engine.View()
			r.notice(ctx, view.Message)
			for _, fv := range view.Fields {
				if msg, ok := view.Errors[fv.Key]; ok {
					r.notice(ctx, fmt.Sprintf("  %s: %s", label(fv), msg))
					delete(answered, fv.Key)
				}
			}
			r.engine.ClearFirstError()
		case errors.Is(err, engine.ErrSubmitDisabled):
			r.notice(ctx, "Submit is not available yet; review the form.")
			clear(answered)
		case errors.Is(err, engine.ErrFlowContextMissing):
			return out, err
		default:
			r.notice(ctx, firstNonEmpty(r.engine.View().Message, err.Error()))
			again, cerr := r.driver.Confirm(ctx, prompt.ConfirmConfig{Message: "Try again?", Default: true})
			if cerr != nil {
				return out, cerr
			}
			if !again {
				return out, err
			}
		}

		failures++
		if failures > r.maxAttempts {
			return out, fmt.Errorf("runner: screen %s: %w", out.ScreenID, ErrTooManyAttempts)
		}
	}
}

// fill prompts for every visible, enabled field not answered yet. The view
// is rebuilt after each answer since values drive which fields are live.
func (r *Runner) fill(ctx context.Context, answered, declined map[string]bool) error {
	for {
		view := r.engine.View()
		next, ok := nextField(view, answered)
		if !ok {
			added, err := r.offerInstances(ctx, view, declined)
			if err != nil || !added {
				return err
			}
			continue
		}
		answered[next.Key] = true
		if err := r.ask(ctx, next); err != nil {
			return err
		}
	}
}

func nextField(view engine.View, answered map[string]bool) (engine.FieldView, bool) {
	for _, fv := range view.Fields {
		if !fv.Visible || !fv.Enabled || fv.Field.ReadOnly || answered[fv.Key] {
			continue
		}
		return fv, true
	}
	return engine.FieldView{}, false
}

// offerInstances asks whether to add another instance of each repeatable
// section that can still grow. It reports whether an instance was added.
func (r *Runner) offerInstances(ctx context.Context, view engine.View, declined map[string]bool) (bool, error) {
	var visit func(list []schema.Section) (bool, error)
	visit = func(list []schema.Section) (bool, error) {
		for i := range list {
			s := &list[i]
			if s.Repeatable && !declined[s.ID] && r.engine.CanAddInstance(s.ID) {
				text := firstNonEmpty(s.AddButtonText, "Add "+firstNonEmpty(s.Title, s.ID))
				yes, err := r.driver.Confirm(ctx, prompt.ConfirmConfig{Message: text + "?"})
				if err != nil {
					return false, err
				}
				if !yes {
					declined[s.ID] = true
					continue
				}
				if _, err := r.engine.AddInstance(s.ID); err != nil {
					return false, err
				}
				return true, nil
			}
			if added, err := visit(s.SubSections); err != nil || added {
				return added, err
			}
		}
		return false, nil
	}
	if view.Screen == nil {
		return false, nil
	}
	return visit(view.Screen.Sections)
}

// ask prompts for one field until it passes field validation, then runs any
// verification or legacy modal it triggers.
func (r *Runner) ask(ctx context.Context, fv engine.FieldView) error {
	for attempt := 1; ; attempt++ {
		value, err := r.value(ctx, fv)
		if err != nil {
			return err
		}
		if _, err := r.engine.UpdateField(fv.Key, value); err != nil {
			return err
		}
		msg, err := r.engine.BlurField(fv.Key)
		if err != nil {
			return err
		}
		if msg == "" {
			break
		}
		r.notice(ctx, "  "+msg)
		if attempt >= r.maxAttempts {
			return fmt.Errorf("runner: %s: %w", fv.Key, ErrTooManyAttempts)
		}
	}

	if err := r.modal(ctx); err != nil {
		return err
	}
	if _, ok := verification.ConfigFor(fv.Field); ok && !r.engine.Value(fv.Key).Blank() {
		return r.verify(ctx, fv)
	}
	return nil
}

// value prompts for a field according to its type.
func (r *Runner) value(ctx context.Context, fv engine.FieldView) (formstate.Value, error) {
	f := fv.Field
	msg := label(fv)
	if fv.Required {
		msg += " *"
	}
	current := fv.Value.Text()

	switch f.Type {
	case schema.FieldTypeBoolean:
		b, _ := fv.Value.Bool()
		yes, err := r.driver.Confirm(ctx, prompt.ConfirmConfig{Message: msg, Default: b})
		return formstate.Bool(yes), err
	case schema.FieldTypeDropdown, schema.FieldTypeRadio:
		options, err := r.engine.Options(ctx, fv.Key)
		if err != nil {
			return formstate.Null(), err
		}
		if len(options) == 0 {
			break
		}
		if f.Multiple() {
			cfg := prompt.SelectConfig{Message: msg, Options: options, Defaults: prompt.IndicesOf(options, splitList(current))}
			idx, err := r.driver.MultiSelect(ctx, cfg)
			if err != nil {
				return formstate.Null(), err
			}
			picked := make([]string, 0, len(idx))
			for _, i := range idx {
				picked = append(picked, options[i])
			}
			return formstate.String(strings.Join(picked, ",")), nil
		}
		idx, err := r.driver.Select(ctx, prompt.SelectConfig{Message: msg, Options: options, DefaultIndex: prompt.IndexOf(options, current)})
		if err != nil {
			return formstate.Null(), err
		}
		if idx < 0 || idx >= len(options) {
			return formstate.Null(), nil
		}
		return formstate.String(options[idx]), nil
	case schema.FieldTypeTextArea:
		text, err := r.driver.TextArea(ctx, prompt.TextAreaConfig{Message: msg, Default: current, Help: f.Placeholder})
		return formstate.String(text), err
	case schema.FieldTypeNumber:
		text, err := r.driver.Input(ctx, prompt.InputConfig{Message: msg, Default: current, Help: f.Placeholder})
		if err != nil {
			return formstate.Null(), err
		}
		text = strings.TrimSpace(text)
		if n, err := strconv.ParseFloat(text, 64); err == nil && text != "" {
			return formstate.Number(n), nil
		}
		return formstate.String(text), nil
	}

	text, err := r.driver.Input(ctx, prompt.InputConfig{Message: msg, Default: current, Help: f.Placeholder})
	return formstate.String(text), err
}

// verify walks the verification lifecycle of fv until it settles.
func (r *Runner) verify(ctx context.Context, fv engine.FieldView) error {
	key := fv.Key
	state, err := r.engine.Verify(ctx, key)
	codes := 0
	for {
		switch {
		case errors.Is(err, engine.ErrValidationFailed):
			r.notice(ctx, "  "+r.engine.View().Errors[key])
			return nil
		case errors.Is(err, engine.ErrStaleResult):
			return nil
		case err != nil:
			return err
		}
		r.dialog(ctx)

		switch state {
		case verification.Verified:
			r.notice(ctx, "  "+label(fv)+" verified")
			return nil
		case verification.ConsentPending:
			yes, cerr := r.driver.Confirm(ctx, prompt.ConfirmConfig{Message: consentText(fv.Field), Default: true})
			if cerr != nil {
				return cerr
			}
			if !yes {
				_, err = r.engine.DeclineConsent(key)
				return err
			}
			state, err = r.engine.AcceptConsent(ctx, key)
		case verification.ChallengePending:
			if codes >= r.maxAttempts {
				_, err = r.engine.DismissChallenge(key)
				return err
			}
			codes++
			if msg := r.engine.View().Errors[key]; msg != "" && codes > 1 {
				r.notice(ctx, "  "+msg)
			}
			code, cerr := r.driver.Input(ctx, prompt.InputConfig{Message: "Code sent to " + r.engine.Value(key).Text()})
			if cerr != nil {
				return cerr
			}
			state, err = r.engine.SubmitCode(ctx, key, code)
			if errors.Is(err, engine.ErrValidationFailed) {
				state, err = verification.ChallengePending, nil
			}
		default:
			if msg := r.engine.View().Errors[key]; msg != "" {
				r.notice(ctx, "  "+msg)
			}
			return nil
		}
	}
}

// modal handles a legacy verification modal opened by the last edit.
func (r *Runner) modal(ctx context.Context) error {
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		m, ok := r.engine.ActiveModal()
		if !ok {
			return nil
		}
		if m.Error != "" {
			r.notice(ctx, "  "+m.Error)
		}
		title := firstNonEmpty(m.Spec.Title, m.ModalID)
		var code string
		if strings.EqualFold(m.Spec.Type, "CONSENT") {
			yes, err := r.driver.Confirm(ctx, prompt.ConfirmConfig{Message: firstNonEmpty(m.Spec.ConsentText, title)})
			if err != nil {
				return err
			}
			if !yes {
				r.engine.CloseModal()
				return nil
			}
		} else {
			var err error
			code, err = r.driver.Input(ctx, prompt.InputConfig{Message: title})
			if err != nil {
				return err
			}
		}
		if err := r.engine.SubmitModal(ctx, "", code); err != nil && !errors.Is(err, engine.ErrNoModal) {
			return err
		}
	}
	r.engine.CloseModal()
	return nil
}

func (r *Runner) dialog(ctx context.Context) {
	if d, ok := r.engine.Dialog(); ok {
		r.notice(ctx, "  "+d.Message)
		r.engine.DismissDialog()
	}
}

func (r *Runner) info(ctx context.Context, msg string) error {
	return r.driver.Info(ctx, msg)
}

// notice prints best effort; a failed write must not abort the flow.
func (r *Runner) notice(ctx context.Context, msg string) {
	if strings.TrimSpace(msg) == "" {
		return
	}
	_ = r.driver.Info(ctx, msg)
}

func label(fv engine.FieldView) string {
	text := firstNonEmpty(fv.Field.Label, fv.Field.ID)
	if fv.InstanceLabel != "" {
		text = fv.InstanceLabel + " / " + text
	}
	return text
}

func consentText(f *schema.Field) string {
	if vi := f.VerifiedInput; vi != nil && vi.OTP != nil && vi.OTP.Consent != nil {
		c := vi.OTP.Consent
		return firstNonEmpty(c.Message, c.Title, "Send a verification code?")
	}
	return "Send a verification code?"
}

func splitList(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
