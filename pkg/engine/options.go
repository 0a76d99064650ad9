package engine

import (
	"github.com/goliatone/go-formflow/pkg/masterdata"
)

// Logger receives non-fatal diagnostics. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, args ...any)
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger reports degraded lookups, invalid regexes and stale results.
func WithLogger(l Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithVerifier sets the collaborator for verification calls.
func WithVerifier(v Verifier) Option {
	return func(e *Engine) {
		e.verifier = v
	}
}

// WithMasterData resolves MASTER data sources through src.
func WithMasterData(src MasterData, opts ...masterdata.Option) Option {
	return func(e *Engine) {
		e.masterSource = src
		e.masterOpts = append(e.masterOpts, opts...)
	}
}

// WithOptionLoader resolves API data sources on demand.
func WithOptionLoader(l OptionLoader) Option {
	return func(e *Engine) {
		e.optionLoader = l
	}
}

// WithDefaultPartnerCode overrides DefaultPartnerCode.
func WithDefaultPartnerCode(code string) Option {
	return func(e *Engine) {
		if code != "" {
			e.defaultPartner = code
		}
	}
}

// WithApplicationID fixes the application id instead of generating one per
// flow.
func WithApplicationID(id string) Option {
	return func(e *Engine) {
		e.applicationID = id
	}
}
