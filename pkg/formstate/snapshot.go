package formstate

import (
	"maps"

	"github.com/samber/lo"

	"github.com/goliatone/go-formflow/pkg/schema"
)

// Snapshot is a copy of everything needed to show a screen again exactly as
// it was left: values with their verified flags, errors, instance counts and
// the option lists resolved for it.
type Snapshot struct {
	Values     map[string]Entry    `json:"values"`
	Errors     map[string]string   `json:"errors,omitempty"`
	Instances  map[string]int      `json:"instances,omitempty"`
	VerifiedAt map[string]Value    `json:"verifiedAt,omitempty"`
	Options    map[string][]string `json:"options,omitempty"`
}

// Empty reports whether the snapshot carries no values.
func (s Snapshot) Empty() bool {
	return len(s.Values) == 0 && len(s.Instances) == 0
}

// Raw unwraps the snapshot values.
func (s Snapshot) Raw() map[string]any {
	return lo.MapValues(s.Values, func(e Entry, _ string) any {
		return e.Value.Any()
	})
}

// Snapshot copies the current state.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Values:     maps.Clone(s.values),
		Errors:     maps.Clone(s.errors),
		Instances:  maps.Clone(s.instances),
		VerifiedAt: maps.Clone(s.verifiedAt),
		Options:    maps.Clone(s.options),
	}
}

// Restore merges a snapshot over the current (freshly seeded) state: snapshot
// values win key by key, errors and instance counts are taken from the
// snapshot. Option lists resolved for the fresh state win over captured ones.
// A verified flag survives only if the value it was granted for is
// the value being restored.
func (s *Store) Restore(snap Snapshot) {
	for key, entry := range snap.Values {
		s.values[key] = entry
	}
	s.errors = maps.Clone(snap.Errors)
	if s.errors == nil {
		s.errors = map[string]string{}
	}
	for id, n := range snap.Instances {
		s.instances[id] = n
	}
	for id, opts := range snap.Options {
		if _, resolved := s.options[id]; !resolved {
			s.options[id] = opts
		}
	}
	s.verifiedAt = maps.Clone(snap.VerifiedAt)
	if s.verifiedAt == nil {
		s.verifiedAt = map[string]Value{}
	}
	s.firstError = ""

	for key, entry := range snap.Values {
		base, ok := schema.IsVerifiedKey(key)
		if !ok {
			continue
		}
		verified, isBool := entry.Value.Bool()
		if !isBool || !verified {
			continue
		}
		granted, known := s.verifiedAt[base]
		if !known || !granted.Equal(s.Get(base)) {
			s.values[key] = Wrap(Bool(false))
			delete(s.verifiedAt, base)
		}
	}
}
