// Package formstate holds the mutable state of one form screen: enveloped
// field values, field errors, repeatable instance counts, verification flags,
// option lists and the loading/submitting flags.
//
// A Store is not safe for concurrent use; the engine serialises access.
package formstate

import (
	"maps"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/goliatone/go-formflow/pkg/schema"
)

// ResetPolicy returns the flag keys that must be reset to false whenever the
// value stored under key changes: the `<key>_verified` flag of verifiable
// fields and any legacy status field.
type ResetPolicy func(key string) []string

// Option configures a Store.
type Option func(*Store)

// WithResetPolicy installs the policy applied by Update and Clear.
func WithResetPolicy(policy ResetPolicy) Option {
	return func(s *Store) {
		s.reset = policy
	}
}

// Store is the single source of truth for a screen. Every mutation goes
// through one of its methods so the value-change/verification-reset
// invariant holds in one place.
type Store struct {
	values     map[string]Entry
	errors     map[string]string
	instances  map[string]int
	options    map[string][]string
	verifiedAt map[string]Value
	firstError string
	message    string
	loading    bool
	submitting bool
	reset      ResetPolicy
}

// New builds an empty store.
func New(opts ...Option) *Store {
	s := &Store{}
	s.Reset()
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Reset drops all state except the reset policy.
func (s *Store) Reset() {
	s.values = map[string]Entry{}
	s.errors = map[string]string{}
	s.instances = map[string]int{}
	s.options = map[string][]string{}
	s.verifiedAt = map[string]Value{}
	s.firstError = ""
	s.message = ""
	s.loading = false
	s.submitting = false
}

// SetResetPolicy swaps the reset policy, typically once per installed screen.
func (s *Store) SetResetPolicy(policy ResetPolicy) {
	s.reset = policy
}

// Lookup returns the entry stored under key.
func (s *Store) Lookup(key string) (Entry, bool) {
	e, ok := s.values[key]
	return e, ok
}

// Get returns the unwrapped value under key, or Null when absent.
func (s *Store) Get(key string) Value {
	return s.values[key].Value
}

// Has reports whether key holds an entry.
func (s *Store) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Seed stores a value without applying the reset policy. Used while
// installing a screen.
func (s *Store) Seed(key string, v Value) {
	s.values[key] = Wrap(v)
}

// Update stores v under key. When the value changes, the error under key is
// cleared and every flag named by the reset policy is set to false in the
// same step. It reports whether the stored value changed.
func (s *Store) Update(key string, v Value) bool {
	prev, had := s.values[key]
	if had && prev.Value.Equal(v) {
		return false
	}
	s.values[key] = Wrap(v)
	delete(s.errors, key)
	s.resetFlags(key)
	return true
}

// Clear removes the value and error under key, resetting its flags.
func (s *Store) Clear(key string) {
	_, had := s.values[key]
	delete(s.values, key)
	delete(s.errors, key)
	if had {
		s.resetFlags(key)
	}
}

func (s *Store) resetFlags(key string) {
	delete(s.verifiedAt, key)
	if s.reset == nil {
		return
	}
	for _, flag := range s.reset(key) {
		if flag == "" {
			continue
		}
		s.values[flag] = Wrap(Bool(false))
		if base, ok := schema.IsVerifiedKey(flag); ok {
			delete(s.verifiedAt, base)
		}
	}
}

// SetVerified writes the `<key>_verified` flag. A true flag remembers the
// value it was granted for so Restore can drop it if the value differs.
func (s *Store) SetVerified(key string, verified bool) {
	s.values[schema.VerifiedKey(key)] = Wrap(Bool(verified))
	if verified {
		s.verifiedAt[key] = s.Get(key)
		delete(s.errors, key)
		return
	}
	delete(s.verifiedAt, key)
}

// Verified reports the `<key>_verified` flag.
func (s *Store) Verified(key string) bool {
	b, _ := s.Get(schema.VerifiedKey(key)).Bool()
	return b
}

// SetFlag stores a status value such as a legacy statusField without
// triggering any reset.
func (s *Store) SetFlag(key string, v Value) {
	s.values[key] = Wrap(v)
}

// Error returns the error message under key.
func (s *Store) Error(key string) string {
	return s.errors[key]
}

// SetError records a field error.
func (s *Store) SetError(key, message string) {
	if message == "" {
		delete(s.errors, key)
		return
	}
	s.errors[key] = message
}

// ClearError removes the error under key.
func (s *Store) ClearError(key string) {
	delete(s.errors, key)
}

// ReplaceErrors swaps the whole error map and the first-error key.
func (s *Store) ReplaceErrors(errs map[string]string, first string) {
	s.errors = maps.Clone(errs)
	if s.errors == nil {
		s.errors = map[string]string{}
	}
	s.firstError = first
}

// Errors returns a copy of the error map.
func (s *Store) Errors() map[string]string {
	return maps.Clone(s.errors)
}

// FirstError returns the key focus should move to after a failed submit.
func (s *Store) FirstError() string {
	return s.firstError
}

// ClearFirstError forgets the focus target once the caller has scrolled.
func (s *Store) ClearFirstError() {
	s.firstError = ""
}

// Instances returns the live instance count of a repeatable section.
func (s *Store) Instances(sectionID string) int {
	return s.instances[sectionID]
}

// SetInstances stores an instance count.
func (s *Store) SetInstances(sectionID string, n int) {
	if n < 0 {
		n = 0
	}
	s.instances[sectionID] = n
}

// InstanceCounts returns a copy of all instance counts.
func (s *Store) InstanceCounts() map[string]int {
	return maps.Clone(s.instances)
}

// Purge removes the values, errors and verified flags of the given keys.
func (s *Store) Purge(keys ...string) {
	for _, key := range keys {
		delete(s.values, key)
		delete(s.errors, key)
		delete(s.values, schema.VerifiedKey(key))
		delete(s.verifiedAt, key)
		if s.firstError == key {
			s.firstError = ""
		}
	}
}

// SetOptions stores the resolved option list of a field.
func (s *Store) SetOptions(fieldID string, options []string) {
	s.options[fieldID] = slices.Clone(options)
}

// Options returns the option list of a field and whether one was resolved.
func (s *Store) Options(fieldID string) ([]string, bool) {
	opts, ok := s.options[fieldID]
	return slices.Clone(opts), ok
}

// SetMessage stores a screen-level notice.
func (s *Store) SetMessage(msg string) { s.message = msg }

// Message returns the screen-level notice.
func (s *Store) Message() string { return s.message }

// SetLoading toggles the loading flag.
func (s *Store) SetLoading(v bool) { s.loading = v }

// Loading reports the loading flag.
func (s *Store) Loading() bool { return s.loading }

// SetSubmitting toggles the submitting flag.
func (s *Store) SetSubmitting(v bool) { s.submitting = v }

// Submitting reports the submitting flag.
func (s *Store) Submitting() bool { return s.submitting }

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	keys := lo.Keys(s.values)
	slices.Sort(keys)
	return keys
}

// KeysWithPrefix returns stored keys for id: the plain id, its composite
// instance keys and their verified flags.
func (s *Store) KeysWithPrefix(id string) []string {
	return lo.Filter(s.Keys(), func(key string, _ int) bool {
		if key == id || strings.HasPrefix(key, id+schema.KeySeparator) {
			return true
		}
		base, ok := schema.IsVerifiedKey(key)
		return ok && (base == id || strings.HasPrefix(base, id+schema.KeySeparator))
	})
}

// Raw unwraps every entry into a plain map, the shape sent to the backend.
func (s *Store) Raw() map[string]any {
	return lo.MapValues(s.values, func(e Entry, _ string) any {
		return e.Value.Any()
	})
}
