package engine

import (
	"github.com/goliatone/go-formflow/pkg/formstate"
	"github.com/goliatone/go-formflow/pkg/repeatable"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/verification"
)

// FieldView is one live field occurrence with its evaluated state.
type FieldView struct {
	Key      string
	Field    *schema.Field
	Section  *schema.Section
	Instance int
	// InstanceLabel is set for occurrences inside a repeatable instance.
	InstanceLabel string
	Value         formstate.Value
	Error         string
	Enabled       bool
	Visible       bool
	Required      bool
	Verified      bool
	Verification  verification.State
	Options       []string
}

// View is a consistent copy of what a presentation layer needs to draw the
// current screen.
type View struct {
	ScreenID      string
	Screen        *schema.Screen
	Flow          FlowContext
	Fields        []FieldView
	Values        map[string]any
	Errors        map[string]string
	Instances     map[string]int
	FirstError    string
	Message       string
	Loading       bool
	Submitting    bool
	SubmitEnabled bool
	CanGoBack     bool
	Completed     bool
	Modal         *Modal
	Dialog        *Dialog
}

// View captures the current screen state. Fields are listed in traversal
// order, instances of repeatable sections included.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := View{
		Flow:       e.flow,
		Values:     e.store.Raw(),
		Errors:     e.store.Errors(),
		Instances:  e.store.InstanceCounts(),
		FirstError: e.store.FirstError(),
		Message:    e.store.Message(),
		Loading:    e.store.Loading(),
		Submitting: e.store.Submitting(),
		Completed:  e.completed,
	}
	cur := e.current
	if cur == nil || e.completed {
		return v
	}
	v.ScreenID = cur.id
	v.Screen = cur.schema
	v.SubmitEnabled = e.submitEnabled()
	v.CanGoBack = cur.schema.Layout.AllowBackNavigation && e.stack.CanGoBack()
	if cur.modal != nil {
		m := *cur.modal
		v.Modal = &m
	}
	if cur.dialog != nil {
		d := *cur.dialog
		v.Dialog = &d
	}
	schema.Walk(cur.schema.Sections, e.store.Instances, func(visit schema.Visit) bool {
		v.Fields = append(v.Fields, e.fieldView(cur, visit))
		return true
	})
	return v
}

func (e *Engine) fieldView(cur *screen, visit schema.Visit) FieldView {
	key := visit.Key.String()
	f := visit.Field
	fv := FieldView{
		Key:          key,
		Field:        f,
		Section:      visit.Section,
		Instance:     visit.Instance,
		Value:        e.store.Get(key),
		Error:        e.store.Error(key),
		Enabled:      cur.pipeline.Enabled(f, e.store, visit.Instance),
		Visible:      cur.pipeline.Visible(f, e.store, visit.Instance),
		Required:     cur.pipeline.Required(f, e.store, visit.Instance),
		Verified:     e.store.Verified(key),
		Verification: e.verificationState(key),
	}
	if visit.Instance >= 0 {
		if ref, ok := cur.index.Field(f.ID); ok {
			if sec, ok := cur.index.Section(ref.Repeatable); ok {
				fv.InstanceLabel = repeatable.Label(sec.Section, visit.Instance)
			}
		}
	}
	if opts, ok := e.store.Options(f.ID); ok {
		fv.Options = opts
	}
	return fv
}
