// Package verification models the per-field verification lifecycle as an
// explicit state machine. The engine feeds it events (user actions and the
// results of network calls) through Advance and performs the returned
// effect; the machine itself never performs I/O.
//
//	Unverified -> ConsentPending -> Sending -> ChallengePending -> VerifyingCode -> Verified
//	Unverified -> CallingAPI -> Verified
//
// Failures return to Unverified with an error, except a rejected code which
// keeps the challenge open for retry. Reset bumps the epoch so results of
// calls issued for an earlier value are rejected as stale.
package verification

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an event does not apply to the
	// current state.
	ErrInvalidTransition = errors.New("verification: invalid transition")
	// ErrStale is returned for results issued under an older epoch.
	ErrStale = errors.New("verification: stale result")
	// ErrNotConfigured is returned when a field has nothing to call.
	ErrNotConfigured = errors.New("verification: not configured")
)

// DefaultFailureMessage is used when the schema declares none.
const DefaultFailureMessage = "Verification failed"

// State is a lifecycle position.
type State int

const (
	Unverified State = iota
	ConsentPending
	Sending
	ChallengePending
	VerifyingCode
	CallingAPI
	Verified
)

func (s State) String() string {
	switch s {
	case ConsentPending:
		return "consent_pending"
	case Sending:
		return "sending"
	case ChallengePending:
		return "challenge_pending"
	case VerifyingCode:
		return "verifying_code"
	case CallingAPI:
		return "calling_api"
	case Verified:
		return "verified"
	default:
		return "unverified"
	}
}

// Busy reports whether a network call is outstanding.
func (s State) Busy() bool {
	return s == Sending || s == VerifyingCode || s == CallingAPI
}

// EventKind enumerates inputs.
type EventKind int

const (
	EventStart EventKind = iota
	EventConsentAccepted
	EventConsentDeclined
	EventCodeSent
	EventSendFailed
	EventCodeSubmitted
	EventCodeAccepted
	EventCodeRejected
	EventAPIPassed
	EventAPIFailed
	EventDismiss
	EventReset
)

func (k EventKind) String() string {
	names := [...]string{
		"start", "consent_accepted", "consent_declined", "code_sent", "send_failed",
		"code_submitted", "code_accepted", "code_rejected", "api_passed", "api_failed",
		"dismiss", "reset",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is one input. Result events must carry the epoch of the effect that
// issued the call.
type Event struct {
	Kind    EventKind
	Code    string
	Message string
	Epoch   uint64
}

// EffectKind enumerates what the engine must do next.
type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectShowConsent
	EffectSendCode
	EffectShowChallenge
	EffectVerifyCode
	EffectCallAPI
	EffectMarkVerified
	EffectFail
)

// Effect is the instruction returned by Advance.
type Effect struct {
	Kind    EffectKind
	Code    string
	Message string
	Epoch   uint64
	// Dialog asks the caller to also surface the message as a standalone
	// result.
	Dialog bool
}

// Mode selects the sub-flow.
type Mode int

const (
	ModeOTP Mode = iota
	ModeAPI
)

// Config is the static description of a field's verification.
type Config struct {
	Mode           Mode
	Consent        bool
	SendCode       bool
	VerifyCode     bool
	API            bool
	SuccessMessage string
	FailureMessage string
	Dialog         bool
}

// failure picks the configured message, then the transport message.
func (c Config) failure(msg string) string {
	if c.FailureMessage != "" {
		return c.FailureMessage
	}
	if msg != "" {
		return msg
	}
	return DefaultFailureMessage
}

// Machine is the lifecycle of one field occurrence.
type Machine struct {
	cfg   Config
	state State
	epoch uint64
	err   string
}

// NewMachine returns an Unverified machine.
func NewMachine(cfg Config) *Machine {
	return &Machine{cfg: cfg}
}

// Config returns the machine configuration.
func (m *Machine) Config() Config { return m.cfg }

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Epoch returns the current epoch.
func (m *Machine) Epoch() uint64 { return m.epoch }

// Err returns the last failure message.
func (m *Machine) Err() string { return m.err }

// Advance applies ev and returns the effect to perform.
func (m *Machine) Advance(ev Event) (Effect, error) {
	if ev.Kind == EventReset {
		m.epoch++
		m.state = Unverified
		m.err = ""
		return Effect{Epoch: m.epoch}, nil
	}
	if isResult(ev.Kind) && ev.Epoch != m.epoch {
		return Effect{}, ErrStale
	}

	switch m.state {
	case Unverified, Verified:
		if ev.Kind == EventStart {
			return m.start()
		}
	case ConsentPending:
		switch ev.Kind {
		case EventConsentAccepted:
			return m.afterConsent(), nil
		case EventConsentDeclined:
			m.state = Unverified
			return m.effect(EffectNone), nil
		}
	case Sending:
		switch ev.Kind {
		case EventCodeSent:
			m.state = ChallengePending
			return m.effect(EffectShowChallenge), nil
		case EventSendFailed:
			return m.fail(Unverified, ev.Message), nil
		}
	case ChallengePending:
		switch ev.Kind {
		case EventCodeSubmitted:
			if !m.cfg.VerifyCode {
				return m.succeed(), nil
			}
			m.state = VerifyingCode
			eff := m.effect(EffectVerifyCode)
			eff.Code = ev.Code
			return eff, nil
		case EventDismiss:
			m.state = Unverified
			return m.effect(EffectNone), nil
		}
	case VerifyingCode:
		switch ev.Kind {
		case EventCodeAccepted:
			return m.succeed(), nil
		case EventCodeRejected:
			return m.fail(ChallengePending, ev.Message), nil
		}
	case CallingAPI:
		switch ev.Kind {
		case EventAPIPassed:
			return m.succeed(), nil
		case EventAPIFailed:
			return m.fail(Unverified, ev.Message), nil
		}
	}
	return Effect{}, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, ev.Kind, m.state)
}

func (m *Machine) start() (Effect, error) {
	m.err = ""
	if m.cfg.Mode == ModeAPI {
		if !m.cfg.API {
			return Effect{}, ErrNotConfigured
		}
		m.state = CallingAPI
		return m.effect(EffectCallAPI), nil
	}
	if m.cfg.Consent {
		m.state = ConsentPending
		return m.effect(EffectShowConsent), nil
	}
	return m.afterConsent(), nil
}

func (m *Machine) afterConsent() Effect {
	switch {
	case !m.cfg.SendCode && !m.cfg.VerifyCode:
		return m.succeed()
	case m.cfg.SendCode:
		m.state = Sending
		return m.effect(EffectSendCode)
	default:
		m.state = ChallengePending
		return m.effect(EffectShowChallenge)
	}
}

func (m *Machine) succeed() Effect {
	m.state = Verified
	m.err = ""
	eff := m.effect(EffectMarkVerified)
	eff.Message = m.cfg.SuccessMessage
	eff.Dialog = m.cfg.Dialog && m.cfg.SuccessMessage != ""
	return eff
}

func (m *Machine) fail(next State, msg string) Effect {
	m.state = next
	m.err = m.cfg.failure(msg)
	eff := m.effect(EffectFail)
	eff.Message = m.err
	eff.Dialog = m.cfg.Dialog
	return eff
}

func (m *Machine) effect(kind EffectKind) Effect {
	return Effect{Kind: kind, Epoch: m.epoch}
}

func isResult(k EventKind) bool {
	switch k {
	case EventCodeSent, EventSendFailed, EventCodeAccepted, EventCodeRejected, EventAPIPassed, EventAPIFailed:
		return true
	default:
		return false
	}
}
