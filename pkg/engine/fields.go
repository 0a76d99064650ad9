package engine

import (
	"context"

	"github.com/goliatone/go-formflow/pkg/condition"
	"github.com/goliatone/go-formflow/pkg/formstate"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/verification"
)

// UpdateField stores value under key. A change clears the field error,
// resets its verification in the same step and clears every dependent
// field that the change disabled. It reports whether the value changed.
func (e *Engine) UpdateField(key string, value formstate.Value) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, ref, k, err := e.field(key)
	if err != nil {
		return false, err
	}
	before := e.enabledSet(cur)
	if !e.store.Update(k.String(), value) {
		return false, nil
	}
	e.resetMachine(cur, k.String())
	e.clearDisabled(cur, before)

	if verification.ShouldTrigger(ref.Field, value.Text(), false) {
		e.openModal(cur, ref, k)
	}
	return true, nil
}

// BlurField validates a field after it lost focus and stores or clears its
// error. Repeated calls without an edit yield the same error.
func (e *Engine) BlurField(key string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, ref, k, err := e.field(key)
	if err != nil {
		return "", err
	}
	msg := cur.pipeline.Field(ref.Field, e.store.Get(k.String()), e.store, k.Index)
	e.store.SetError(k.String(), msg)
	if msg == "" && verification.ShouldTrigger(ref.Field, e.store.Get(k.String()).Text(), true) {
		e.openModal(cur, ref, k)
	}
	return msg, nil
}

// FieldEnabled evaluates enabledWhen for the field occurrence under key.
func (e *Engine) FieldEnabled(key string) (bool, error) {
	return e.fieldCheck(key, func(cur *screen, f *schema.Field, instance int) bool {
		return cur.pipeline.Enabled(f, e.store, instance)
	})
}

// FieldVisible evaluates visibleWhen for the field occurrence under key.
func (e *Engine) FieldVisible(key string) (bool, error) {
	return e.fieldCheck(key, func(cur *screen, f *schema.Field, instance int) bool {
		return cur.pipeline.Visible(f, e.store, instance)
	})
}

// FieldRequired evaluates requiredWhen, or the static flag.
func (e *Engine) FieldRequired(key string) (bool, error) {
	return e.fieldCheck(key, func(cur *screen, f *schema.Field, instance int) bool {
		return cur.pipeline.Required(f, e.store, instance)
	})
}

func (e *Engine) fieldCheck(key string, fn func(*screen, *schema.Field, int) bool) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur, ref, k, err := e.field(key)
	if err != nil {
		return false, err
	}
	return fn(cur, ref.Field, k.Index), nil
}

// Value returns the value stored under key.
func (e *Engine) Value(key string) formstate.Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Get(key)
}

// Verified reports the verified flag of key.
func (e *Engine) Verified(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Verified(key)
}

// SubmitEnabled evaluates the layout gating conditions.
func (e *Engine) SubmitEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submitEnabled()
}

func (e *Engine) submitEnabled() bool {
	cur := e.current
	if cur == nil || e.completed || e.store.Submitting() || e.store.Loading() {
		return false
	}
	return cur.submitEnabled(e)
}

func (s *screen) submitEnabled(e *Engine) bool {
	allValid := func() bool {
		return len(e.store.Errors()) == 0 && s.pipeline.AllValid(e.store)
	}
	return condition.SubmitAll(s.schema.Layout.EnableSubmitWhen, e.store, allValid)
}

// Options returns the option list of the field under key. INLINE and MASTER
// sources were resolved at load; API sources are loaded on first use and
// cached per dependency value. Lookup failures degrade to an empty list.
func (e *Engine) Options(ctx context.Context, key string) ([]string, error) {
	e.mu.Lock()
	cur, ref, k, err := e.field(key)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	ds := ref.Field.DataSource
	if ds == nil {
		e.mu.Unlock()
		return nil, nil
	}
	if ds.Type != schema.DataSourceAPI {
		opts, _ := e.store.Options(ref.Field.ID)
		e.mu.Unlock()
		return opts, nil
	}

	req := OptionRequest{FieldID: ref.Field.ID, Endpoint: ds.Endpoint, Method: ds.Method, ParamKey: ds.ParamKey}
	if ds.DependsOn != "" {
		req.ParamValue = e.store.Get(cur.index.Resolve(ds.DependsOn, k.Index).String()).Text()
		if req.ParamValue == "" {
			e.mu.Unlock()
			return []string{}, nil
		}
	}
	cacheKey := ref.Field.ID + "\x00" + req.ParamValue
	if opts, ok := cur.lazy[cacheKey]; ok {
		e.mu.Unlock()
		return append([]string(nil), opts...), nil
	}
	if e.optionLoader == nil {
		e.mu.Unlock()
		return []string{}, nil
	}
	gen := e.generation
	e.mu.Unlock()

	opts, err := e.optionLoader.LoadOptions(ctx, req)
	if err != nil {
		e.logf("engine: options for %s: %v", ref.Field.ID, err)
		opts = []string{}
	}
	if opts == nil {
		opts = []string{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		return nil, ErrStaleResult
	}
	cur.lazy[cacheKey] = opts
	return append([]string(nil), opts...), nil
}

// enabledSet records which occurrences with an enabledWhen condition are
// currently enabled.
func (e *Engine) enabledSet(cur *screen) map[string]bool {
	out := map[string]bool{}
	schema.Walk(cur.schema.Sections, e.store.Instances, func(v schema.Visit) bool {
		if v.Field.EnabledWhen != nil && cur.pipeline.Enabled(v.Field, e.store, v.Instance) {
			out[v.Key.String()] = true
		}
		return true
	})
	return out
}

// clearDisabled clears the value and error of every occurrence that went
// from enabled to disabled. Clearing can disable further fields, so it runs
// until nothing changes, bounded by the number of fields.
func (e *Engine) clearDisabled(cur *screen, before map[string]bool) {
	for rounds := len(cur.index.FieldIDs()) + 1; len(before) > 0 && rounds > 0; rounds-- {
		after := e.enabledSet(cur)
		cleared := false
		for key := range before {
			if after[key] {
				continue
			}
			e.store.Clear(key)
			e.resetMachine(cur, key)
			cleared = true
		}
		if !cleared {
			return
		}
		before = after
	}
}

func (e *Engine) resetMachine(cur *screen, key string) {
	if m, ok := cur.machines[key]; ok {
		_, _ = m.Advance(verification.Event{Kind: verification.EventReset})
	}
	if cur.modal != nil && cur.modal.Key == key {
		cur.modal = nil
	}
}
