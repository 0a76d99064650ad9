package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-formflow/pkg/navigation"
	"github.com/goliatone/go-formflow/pkg/validation"
)

// Outcome reports where a submit or back navigation left the flow.
type Outcome struct {
	ScreenID string
	// Completed is set when the backend ended the flow.
	Completed bool
	// Exit is set when back navigation has no screen to return to; the
	// caller should leave the flow.
	Exit bool
}

// Submit validates the screen and, when it passes, sends the unwrapped form
// data to the backend and installs the returned screen. Field errors abort
// before form rules run; any validation error aborts before the network.
// On transport failure the store is left untouched apart from the notice.
func (e *Engine) Submit(ctx context.Context) (Outcome, error) {
	e.mu.Lock()
	cur := e.current
	switch {
	case e.completed:
		e.mu.Unlock()
		return Outcome{Completed: true}, ErrFlowComplete
	case cur == nil:
		e.mu.Unlock()
		return Outcome{}, ErrNoScreen
	case e.store.Submitting():
		e.mu.Unlock()
		return Outcome{ScreenID: cur.id}, ErrSubmitInFlight
	}
	if strings.TrimSpace(e.flow.FlowID) == "" || strings.TrimSpace(e.flow.ProductCode) == "" {
		e.store.SetMessage(MessageFlowContext)
		e.mu.Unlock()
		return Outcome{ScreenID: cur.id}, ErrFlowContextMissing
	}

	res := cur.pipeline.Submit(e.store)
	if !res.OK() {
		e.store.ReplaceErrors(res.Errors, res.First)
		e.store.SetMessage(MessageCorrectFields)
		e.mu.Unlock()
		return Outcome{ScreenID: cur.id}, fmt.Errorf("%w: %s", ErrValidationFailed, stageName(res.Stage))
	}
	if !cur.submitEnabled(e) {
		e.mu.Unlock()
		return Outcome{ScreenID: cur.id}, ErrSubmitDisabled
	}

	e.store.ReplaceErrors(nil, "")
	e.store.SetMessage("")
	e.store.SetSubmitting(true)
	snap := e.store.Snapshot()
	req := e.request(cur.id, e.store.Raw())
	gen := e.generation
	e.mu.Unlock()

	resp, masters, err := e.fetch(ctx, req)

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		e.logf("engine: discarding submit result for %s", cur.id)
		return Outcome{ScreenID: e.currentID()}, ErrStaleResult
	}
	e.store.SetSubmitting(false)
	if err != nil {
		e.store.SetMessage(failureMessage(cur))
		return Outcome{ScreenID: cur.id}, err
	}

	e.stack.UpdateTop(snap)
	if resp.Screen == nil {
		e.completed = true
		e.store.SetMessage(resp.Message)
		return Outcome{Completed: true}, nil
	}
	e.install(resp.NextScreenID, resp.Screen, masters, nil)
	e.stack.Push(navigation.Entry{ScreenID: e.current.id, Screen: resp.Screen})
	if resp.Message != "" {
		e.store.SetMessage(resp.Message)
	} else if msg := successMessage(cur); msg != "" {
		e.store.SetMessage(msg)
	}
	return Outcome{ScreenID: e.current.id}, nil
}

// Back returns to the previous screen, restoring exactly the state it was
// left in without calling the backend. After completion it reopens the last
// submitted screen instead. With fewer than two screens on the stack the
// outcome asks the caller to exit the flow.
func (e *Engine) Back() (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.current
	if cur == nil {
		return Outcome{}, ErrNoScreen
	}
	if !cur.schema.Layout.AllowBackNavigation {
		return Outcome{ScreenID: cur.id}, ErrBackNotAllowed
	}
	if e.completed {
		top, ok := e.stack.Top()
		if !ok {
			return Outcome{ScreenID: cur.id, Exit: true}, nil
		}
		snap := top.Snapshot
		e.install(top.ScreenID, top.Screen, nil, &snap)
		e.completed = false
		return Outcome{ScreenID: top.ScreenID}, nil
	}
	if !e.stack.CanGoBack() {
		return Outcome{ScreenID: cur.id, Exit: true}, nil
	}
	e.stack.Pop()
	top, _ := e.stack.Top()
	snap := top.Snapshot
	e.install(top.ScreenID, top.Screen, nil, &snap)
	e.completed = false
	return Outcome{ScreenID: top.ScreenID}, nil
}

// CanGoBack reports whether Back would return to a previous screen.
func (e *Engine) CanGoBack() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil && e.current.schema.Layout.AllowBackNavigation && (e.completed || e.stack.CanGoBack())
}

// History lists the screen ids on the navigation stack, oldest first.
func (e *Engine) History() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stack.ScreenIDs()
}

func (e *Engine) currentID() string {
	if e.current == nil {
		return ""
	}
	return e.current.id
}

func failureMessage(cur *screen) string {
	for _, a := range cur.schema.Actions {
		if a.FailureMessage != "" {
			return a.FailureMessage
		}
	}
	return MessageSubmitFailed
}

func successMessage(cur *screen) string {
	for _, a := range cur.schema.Actions {
		if a.SuccessMessage != "" {
			return a.SuccessMessage
		}
	}
	return ""
}

func stageName(s validation.Stage) string {
	if s == validation.StageForm {
		return "form rules"
	}
	return "fields"
}
