package engine

import "errors"

var (
	// ErrFlowContextMissing is returned when the flow id, or the product
	// code on submit, is unknown. It is an integration error and is never
	// retried.
	ErrFlowContextMissing = errors.New("engine: flow context missing")
	// ErrSubmitInFlight rejects a submit while another one is pending.
	ErrSubmitInFlight = errors.New("engine: submit already in flight")
	// ErrNoScreen is returned before a screen has been installed.
	ErrNoScreen = errors.New("engine: no screen loaded")
	// ErrStaleResult reports a network result discarded because the screen
	// or the field value changed while the call was pending.
	ErrStaleResult = errors.New("engine: stale result discarded")
	// ErrBackNotAllowed is returned for screens that disable back navigation.
	ErrBackNotAllowed = errors.New("engine: back navigation not allowed")
	// ErrUnknownField is returned for keys that name no field of the screen.
	ErrUnknownField = errors.New("engine: unknown field")
	// ErrUnknownSection is returned for ids that name no repeatable section.
	ErrUnknownSection = errors.New("engine: unknown section")
	// ErrValidationFailed is returned when field or form validation fails.
	// The errors are in the store.
	ErrValidationFailed = errors.New("engine: validation failed")
	// ErrSubmitDisabled is returned when the layout gating conditions fail.
	ErrSubmitDisabled = errors.New("engine: submit disabled")
	// ErrNotVerifiable is returned for verification actions on plain fields.
	ErrNotVerifiable = errors.New("engine: field is not verifiable")
	// ErrNoModal is returned when no legacy modal is open.
	ErrNoModal = errors.New("engine: no modal open")
	// ErrFlowComplete is returned for actions after the backend ended the flow.
	ErrFlowComplete = errors.New("engine: flow complete")
)

// Screen-level notices.
const (
	MessageCorrectFields = "Please correct highlighted fields"
	MessageFlowContext   = "Flow context missing. Please restart the application."
	MessageSubmitFailed  = "Something went wrong. Please try again."
	MessageLoadFailed    = "Unable to load the screen. Please try again."
)
