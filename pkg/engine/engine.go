// Package engine drives a flow of backend-delivered form screens. It owns the
// form store and the navigation stack, installs fetched screens, evaluates
// field conditions, validates and submits, manages repeatable instances and
// runs the per-field verification state machines.
//
// All methods are safe for concurrent use. The engine lock is released
// around every network call; results that return after the screen changed
// (a new screen, back navigation, a restart) are discarded with
// ErrStaleResult instead of being applied to the wrong state.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/goliatone/go-formflow/pkg/formstate"
	"github.com/goliatone/go-formflow/pkg/masterdata"
	"github.com/goliatone/go-formflow/pkg/navigation"
	"github.com/goliatone/go-formflow/pkg/repeatable"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/validation"
	"github.com/goliatone/go-formflow/pkg/verification"
)

// Engine runs one flow at a time.
type Engine struct {
	backend        Backend
	verifier       Verifier
	masterSource   MasterData
	masterOpts     []masterdata.Option
	master         *masterdata.Resolver
	optionLoader   OptionLoader
	logger         Logger
	defaultPartner string
	applicationID  string

	mu         sync.Mutex
	flow       FlowContext
	store      *formstate.Store
	stack      navigation.Stack
	current    *screen
	generation uint64
	completed  bool
}

// screen is the per-install state derived from a schema.
type screen struct {
	id       string
	schema   *schema.Screen
	index    *schema.Index
	pipeline *validation.Pipeline
	repeat   *repeatable.Manager
	machines map[string]*verification.Machine
	lazy     map[string][]string
	modal    *Modal
	dialog   *Dialog
}

// New returns an engine fetching screens from backend.
func New(backend Backend, opts ...Option) *Engine {
	e := &Engine{
		backend:        backend,
		defaultPartner: DefaultPartnerCode,
		store:          formstate.New(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(e)
	}
	resolverOpts := append([]masterdata.Option{masterdata.WithLogger(e.logger)}, e.masterOpts...)
	e.master = masterdata.NewResolver(e.masterSource, resolverOpts...)
	return e
}

// Start begins a fresh flow: the navigation stack is cleared and the first
// screen is fetched and installed. A flow id is required.
func (e *Engine) Start(ctx context.Context, flow FlowContext) error {
	e.mu.Lock()
	if strings.TrimSpace(flow.FlowID) == "" {
		e.store.SetMessage(MessageFlowContext)
		e.mu.Unlock()
		return ErrFlowContextMissing
	}
	if flow.ApplicationID == "" {
		flow.ApplicationID = e.applicationID
	}
	if flow.ApplicationID == "" {
		flow.ApplicationID = uuid.NewString()
	}
	e.flow = flow
	e.stack.Clear()
	e.store.Reset()
	e.current = nil
	e.completed = false
	e.generation++
	gen := e.generation
	e.store.SetLoading(true)
	req := e.request("", nil)
	e.mu.Unlock()

	resp, masters, err := e.fetch(ctx, req)

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		e.logf("engine: discarding first screen of a restarted flow")
		return ErrStaleResult
	}
	e.store.SetLoading(false)
	if err != nil {
		e.store.SetMessage(MessageLoadFailed)
		return err
	}
	if resp.Screen == nil {
		e.completed = true
		e.store.SetMessage(resp.Message)
		return nil
	}
	e.install(resp.NextScreenID, resp.Screen, masters, nil)
	e.stack.Push(navigation.Entry{ScreenID: e.current.id, Screen: resp.Screen})
	return nil
}

// fetch calls the backend and resolves the master data of the returned
// screen. It must be called without the lock.
func (e *Engine) fetch(ctx context.Context, req NextScreenRequest) (NextScreenResponse, map[string][]string, error) {
	if e.backend == nil {
		return NextScreenResponse{}, nil, fmt.Errorf("engine: next screen: no backend configured")
	}
	resp, err := e.backend.NextScreen(ctx, req)
	if err != nil {
		return NextScreenResponse{}, nil, fmt.Errorf("engine: next screen: %w", err)
	}
	if resp.Screen == nil {
		return resp, nil, nil
	}
	ix := schema.NewIndex(resp.Screen)
	fields := make([]*schema.Field, 0, len(ix.FieldIDs()))
	for _, id := range ix.FieldIDs() {
		ref, _ := ix.Field(id)
		fields = append(fields, ref.Field)
	}
	return resp, e.master.Resolve(ctx, masterdata.Keys(fields)), nil
}

// request builds a next-screen request from the current flow context.
func (e *Engine) request(current string, data map[string]any) NextScreenRequest {
	flow := e.flow
	if flow.PartnerCode == "" {
		flow.PartnerCode = e.defaultPartner
	}
	if data == nil {
		data = map[string]any{}
	}
	return NextScreenRequest{CurrentScreenID: current, Flow: flow, FormData: data}
}

// install replaces the store with the initial state of s: instance
// baselines, hidden defaults, inline values and resolved option lists, then
// restore merged over them when present. Callers hold the lock.
func (e *Engine) install(id string, s *schema.Screen, masters map[string][]string, restore *formstate.Snapshot) {
	if id == "" {
		id = s.ScreenID
	}
	ix := schema.NewIndex(s)
	cur := &screen{
		id:       id,
		schema:   s,
		index:    ix,
		pipeline: validation.New(ix, validation.WithLogger(e.logger)),
		repeat:   repeatable.New(ix),
		machines: map[string]*verification.Machine{},
		lazy:     map[string][]string{},
	}

	e.store.Reset()
	e.store.SetResetPolicy(cur.resetPolicy)
	cur.repeat.Init(e.store)

	for _, h := range s.HiddenFields {
		e.store.Seed(h.ID, hiddenDefault(h))
	}
	schema.Walk(s.Sections, e.store.Instances, func(v schema.Visit) bool {
		if v.Field.Value != nil {
			e.store.Seed(v.Key.String(), formstate.FromAny(v.Field.Value))
		}
		return true
	})
	for _, fid := range ix.FieldIDs() {
		ref, _ := ix.Field(fid)
		ds := ref.Field.DataSource
		switch {
		case ds == nil:
		case ds.IsInline():
			e.store.SetOptions(fid, ds.Values)
		case ds.IsMaster() && masters != nil:
			e.store.SetOptions(fid, masters[strings.TrimSpace(ds.Key)])
		}
	}
	if restore != nil {
		e.store.Restore(*restore)
	}

	e.flow = e.flow.Merge(ScreenContext(s))
	e.generation++
	e.current = cur
}

func hiddenDefault(h schema.HiddenField) formstate.Value {
	if h.DefaultValue != nil {
		return formstate.FromAny(h.DefaultValue)
	}
	switch strings.ToUpper(h.Type) {
	case string(schema.FieldTypeBoolean):
		return formstate.Bool(false)
	case string(schema.FieldTypeNumber):
		return formstate.Number(0)
	default:
		return formstate.String("")
	}
}

// resetPolicy names the flags that fall back to false when the value under
// key changes.
func (s *screen) resetPolicy(key string) []string {
	ref, ok := s.index.Field(schema.ParseKey(key).ID)
	if !ok {
		return nil
	}
	var flags []string
	if ref.Field.Verifiable() {
		flags = append(flags, schema.VerifiedKey(key))
	}
	if status := ref.Field.StatusField(); status != "" {
		flags = append(flags, status)
	}
	return flags
}

// field resolves a store key to its field.
func (e *Engine) field(key string) (*screen, schema.FieldRef, schema.Key, error) {
	if e.completed {
		return nil, schema.FieldRef{}, schema.Key{}, ErrFlowComplete
	}
	cur := e.current
	if cur == nil {
		return nil, schema.FieldRef{}, schema.Key{}, ErrNoScreen
	}
	k := schema.ParseKey(key)
	ref, ok := cur.index.Field(k.ID)
	if !ok {
		return nil, schema.FieldRef{}, schema.Key{}, fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	if ref.InRepeatable() && !k.Indexed() {
		k = schema.FieldKey(k.ID, 0)
	}
	if !ref.InRepeatable() {
		k = schema.PlainKey(k.ID)
	}
	return cur, ref, k, nil
}

// Flow returns the current flow context.
func (e *Engine) Flow() FlowContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flow
}

// Completed reports whether the backend ended the flow.
func (e *Engine) Completed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.completed
}

// ClearFirstError forgets the focus target once the caller has scrolled
// to it.
func (e *Engine) ClearFirstError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.ClearFirstError()
}

// DismissMessage clears the screen-level notice.
func (e *Engine) DismissMessage() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.SetMessage("")
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}
