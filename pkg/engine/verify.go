package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-formflow/pkg/formstate"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/pkg/verification"
)

// Dialog is a verification outcome the schema asked to surface on its own,
// in addition to the field error.
type Dialog struct {
	Key     string
	Success bool
	Message string
}

// Modal is an open legacy verification modal.
type Modal struct {
	ModalID string
	Key     string
	FieldID string
	Spec    schema.Modal
	Error   string
}

// Verify starts verification of the field under key. The field is
// validated first; on failure its error is set and no call is made. The
// returned state tells the caller what to present next: consent, the code
// challenge, or the final outcome.
func (e *Engine) Verify(ctx context.Context, key string) (verification.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, ref, k, m, err := e.machineFor(key)
	if err != nil {
		return verification.Unverified, err
	}
	value := e.store.Get(k.String())
	msg := cur.pipeline.Field(ref.Field, value, e.store, k.Index)
	if msg == "" && value.Blank() {
		msg = cur.index.Label(ref.Field.ID) + " is required"
	}
	if msg != "" {
		e.store.SetError(k.String(), msg)
		return m.State(), ErrValidationFailed
	}
	eff, err := m.Advance(verification.Event{Kind: verification.EventStart})
	if err != nil {
		return m.State(), fmt.Errorf("engine: verify %s: %w", k, err)
	}
	return e.run(ctx, cur, ref, k, m, eff)
}

// AcceptConsent continues a verification waiting for consent.
func (e *Engine) AcceptConsent(ctx context.Context, key string) (verification.State, error) {
	return e.advance(ctx, key, verification.Event{Kind: verification.EventConsentAccepted})
}

// DeclineConsent abandons a verification waiting for consent.
func (e *Engine) DeclineConsent(key string) (verification.State, error) {
	return e.advance(context.Background(), key, verification.Event{Kind: verification.EventConsentDeclined})
}

// SubmitCode submits the code entered in the challenge step. A rejected
// code keeps the challenge open.
func (e *Engine) SubmitCode(ctx context.Context, key, code string) (verification.State, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return e.VerificationState(key), ErrValidationFailed
	}
	return e.advance(ctx, key, verification.Event{Kind: verification.EventCodeSubmitted, Code: code})
}

// DismissChallenge closes the code challenge without verifying.
func (e *Engine) DismissChallenge(key string) (verification.State, error) {
	return e.advance(context.Background(), key, verification.Event{Kind: verification.EventDismiss})
}

// VerificationState returns the lifecycle state of the field under key.
// Fields that carry a verified flag from a restore report Verified.
func (e *Engine) VerificationState(key string) verification.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.verificationState(key)
}

func (e *Engine) verificationState(key string) verification.State {
	cur := e.current
	if cur == nil {
		return verification.Unverified
	}
	if m, ok := cur.machines[key]; ok && m.State() != verification.Unverified {
		return m.State()
	}
	if e.store.Verified(key) {
		return verification.Verified
	}
	return verification.Unverified
}

func (e *Engine) advance(ctx context.Context, key string, ev verification.Event) (verification.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, ref, k, m, err := e.machineFor(key)
	if err != nil {
		return verification.Unverified, err
	}
	eff, err := m.Advance(ev)
	if err != nil {
		return m.State(), fmt.Errorf("engine: verify %s: %w", k, err)
	}
	return e.run(ctx, cur, ref, k, m, eff)
}

func (e *Engine) machineFor(key string) (*screen, schema.FieldRef, schema.Key, *verification.Machine, error) {
	cur, ref, k, err := e.field(key)
	if err != nil {
		return nil, ref, k, nil, err
	}
	cfg, ok := verification.ConfigFor(ref.Field)
	if !ok {
		return nil, ref, k, nil, fmt.Errorf("%w: %s", ErrNotVerifiable, key)
	}
	m, ok := cur.machines[k.String()]
	if !ok {
		m = verification.NewMachine(cfg)
		cur.machines[k.String()] = m
	}
	return cur, ref, k, m, nil
}

// run performs effects until one needs the caller. Callers hold the lock;
// it is released around each network call.
func (e *Engine) run(ctx context.Context, cur *screen, ref schema.FieldRef, k schema.Key, m *verification.Machine, eff verification.Effect) (verification.State, error) {
	key := k.String()
	for {
		switch eff.Kind {
		case verification.EffectNone, verification.EffectShowConsent, verification.EffectShowChallenge:
			return m.State(), nil
		case verification.EffectMarkVerified:
			e.store.SetVerified(key, true)
			if eff.Dialog {
				cur.dialog = &Dialog{Key: key, Success: true, Message: eff.Message}
			}
			return m.State(), nil
		case verification.EffectFail:
			e.store.SetError(key, eff.Message)
			if eff.Dialog {
				cur.dialog = &Dialog{Key: key, Message: eff.Message}
			}
			return m.State(), nil
		}

		ev, err := e.call(ctx, cur, ref, k, eff)
		if err != nil {
			return m.State(), err
		}
		if cur.machines[key] != m {
			e.logf("engine: discarding verification result for retired %s", key)
			return m.State(), ErrStaleResult
		}
		next, err := m.Advance(ev)
		if errors.Is(err, verification.ErrStale) {
			e.logf("engine: discarding verification result for edited %s", key)
			return m.State(), ErrStaleResult
		}
		if err != nil {
			return m.State(), fmt.Errorf("engine: verify %s: %w", key, err)
		}
		eff = next
	}
}

// call performs the network side of eff and maps the outcome to an event.
func (e *Engine) call(ctx context.Context, cur *screen, ref schema.FieldRef, k schema.Key, eff verification.Effect) (verification.Event, error) {
	key := k.String()
	f := ref.Field
	value := e.store.Get(key).Text()

	var (
		okKind, failKind verification.EventKind
		match            *schema.SuccessCondition
		do               func() (CallResult, error)
	)
	switch eff.Kind {
	case verification.EffectSendCode, verification.EffectVerifyCode:
		otp := &schema.OTPConfig{}
		if f.VerifiedInput != nil && f.VerifiedInput.OTP != nil {
			otp = f.VerifiedInput.OTP
		}
		req := CodeRequest{FieldID: f.ID, Key: key, Target: value, Channel: otp.Channel, Code: eff.Code}
		if eff.Kind == verification.EffectSendCode {
			okKind, failKind = verification.EventCodeSent, verification.EventSendFailed
			req.Endpoint = endpointOf(otp.SendCode)
			do = func() (CallResult, error) { return e.verifier.SendCode(ctx, req) }
		} else {
			okKind, failKind = verification.EventCodeAccepted, verification.EventCodeRejected
			req.Endpoint = endpointOf(otp.VerifyCode)
			do = func() (CallResult, error) { return e.verifier.VerifyCode(ctx, req) }
		}
	case verification.EffectCallAPI:
		okKind, failKind = verification.EventAPIPassed, verification.EventAPIFailed
		req := CallRequest{FieldID: f.ID, Key: key, Value: value}
		if api := f.APIVerification; api != nil {
			req.Endpoint = schema.Endpoint{URL: api.Endpoint, Method: api.Method}
			req.Body = verification.RenderMapping(api.RequestMapping, f.ID, value)
			match = api.SuccessMatch
		} else if vi := f.VerifiedInput; vi != nil {
			req.Endpoint = endpointOf(vi.API)
			req.Body = verification.RenderMapping("", f.ID, value)
			match = vi.SuccessMatch
		}
		do = func() (CallResult, error) { return e.verifier.Call(ctx, req) }
	default:
		return verification.Event{}, fmt.Errorf("engine: verify %s: unexpected effect %d", key, eff.Kind)
	}

	ev := verification.Event{Kind: failKind, Epoch: eff.Epoch}
	if e.verifier == nil {
		e.logf("engine: verify %s: no verifier configured", key)
		return ev, nil
	}

	gen := e.generation
	e.mu.Unlock()
	res, err := do()
	e.mu.Lock()

	if gen != e.generation || e.current != cur {
		e.logf("engine: discarding verification result for %s from a previous screen", key)
		return verification.Event{}, ErrStaleResult
	}
	switch {
	case err != nil:
		e.logf("engine: verify %s: %v", key, err)
		ev.Message = res.Message
	case !res.OK:
		ev.Message = res.Message
	case eff.Kind == verification.EffectCallAPI && match != nil && !verification.MatchesJSON(match, res.Body):
		ev.Message = res.Message
	default:
		ev.Kind = okKind
	}
	return ev, nil
}

func endpointOf(ep *schema.Endpoint) schema.Endpoint {
	if ep == nil {
		return schema.Endpoint{}
	}
	return *ep
}

// Dialog returns the pending standalone verification outcome.
func (e *Engine) Dialog() (Dialog, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || e.current.dialog == nil {
		return Dialog{}, false
	}
	return *e.current.dialog, true
}

// DismissDialog clears the pending dialog.
func (e *Engine) DismissDialog() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil {
		e.current.dialog = nil
	}
}

// ActiveModal returns the open legacy modal.
func (e *Engine) ActiveModal() (Modal, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil || e.current.modal == nil {
		return Modal{}, false
	}
	return *e.current.modal, true
}

// CloseModal dismisses the open legacy modal.
func (e *Engine) CloseModal() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil {
		e.current.modal = nil
	}
}

func (e *Engine) openModal(cur *screen, ref schema.FieldRef, k schema.Key) {
	id := ref.Field.Verification.ModalID
	for _, m := range cur.schema.Modals {
		if m.ModalID == id {
			cur.modal = &Modal{ModalID: id, Key: k.String(), FieldID: ref.Field.ID, Spec: m}
			return
		}
	}
	e.logf("engine: field %s references unknown modal %q", ref.Field.ID, id)
}

// SubmitModal runs an action of the open legacy modal. An empty actionType
// picks the first action that calls an API or updates a field. On success
// the action's onSuccess field update is applied; a failure is kept on the
// modal for display.
func (e *Engine) SubmitModal(ctx context.Context, actionType, code string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.current
	if cur == nil || cur.modal == nil {
		return ErrNoModal
	}
	modal := cur.modal
	action, ok := pickAction(modal.Spec.Actions, actionType)
	if !ok {
		cur.modal = nil
		return nil
	}

	if action.API != "" {
		payload := map[string]string{modal.FieldID: e.store.Get(modal.Key).Text()}
		if code = strings.TrimSpace(code); code != "" {
			payload["otp"] = code
		}
		body, _ := json.Marshal(payload)
		req := CallRequest{
			Endpoint: schema.Endpoint{URL: action.API},
			FieldID:  modal.FieldID,
			Key:      modal.Key,
			Value:    payload[modal.FieldID],
			Body:     string(body),
		}
		if e.verifier == nil {
			modal.Error = verification.DefaultFailureMessage
			return nil
		}
		gen := e.generation
		e.mu.Unlock()
		res, err := e.verifier.Call(ctx, req)
		e.mu.Lock()
		if gen != e.generation || cur.modal != modal {
			return ErrStaleResult
		}
		if err != nil || !res.OK {
			if err != nil {
				e.logf("engine: modal %s: %v", modal.ModalID, err)
			}
			modal.Error = res.Message
			if modal.Error == "" {
				modal.Error = verification.DefaultFailureMessage
			}
			return nil
		}
	}

	if s := action.OnSuccess; s != nil {
		if s.UpdateField != "" {
			e.store.SetFlag(s.UpdateField, formstate.FromAny(s.Value))
		}
		if !s.CloseModal {
			modal.Error = ""
			return nil
		}
	}
	cur.modal = nil
	return nil
}

func pickAction(actions []schema.ModalAction, actionType string) (schema.ModalAction, bool) {
	actionType = strings.TrimSpace(actionType)
	for _, a := range actions {
		if actionType == "" && (a.API != "" || a.OnSuccess != nil) {
			return a, true
		}
		if actionType != "" && strings.EqualFold(a.Type, actionType) {
			return a, true
		}
	}
	return schema.ModalAction{}, false
}
