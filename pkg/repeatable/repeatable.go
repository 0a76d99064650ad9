// Package repeatable manages the instance counts of repeatable sections and
// purges the state of retired instances.
package repeatable

import (
	"strconv"
	"strings"

	"github.com/goliatone/go-formflow/pkg/schema"
)

// Store is the part of the form store the manager mutates.
type Store interface {
	Instances(sectionID string) int
	SetInstances(sectionID string, n int)
	Purge(keys ...string)
}

// Manager applies instance bounds for one screen.
type Manager struct {
	index *schema.Index
}

// New returns a manager for the indexed screen.
func New(ix *schema.Index) *Manager {
	return &Manager{index: ix}
}

// Init sets every repeatable section, nested ones included, to its
// minInstances.
func (m *Manager) Init(store Store) {
	for _, s := range m.index.Repeatables() {
		store.SetInstances(s.ID, s.MinInstances)
	}
}

// CanAdd reports whether another instance fits under maxInstances.
func (m *Manager) CanAdd(store Store, sectionID string) bool {
	s, ok := m.section(sectionID)
	if !ok {
		return false
	}
	max, bounded := s.MaxInstances.Get()
	return !bounded || store.Instances(sectionID) < max
}

// CanRemove reports whether the count is above minInstances.
func (m *Manager) CanRemove(store Store, sectionID string) bool {
	s, ok := m.section(sectionID)
	if !ok {
		return false
	}
	return store.Instances(sectionID) > s.MinInstances
}

// Add appends an instance. It is a no-op at maxInstances and reports whether
// the count changed. New instances start without stored values.
func (m *Manager) Add(store Store, sectionID string) bool {
	if !m.CanAdd(store, sectionID) {
		return false
	}
	store.SetInstances(sectionID, store.Instances(sectionID)+1)
	return true
}

// Remove retires the highest-index instance. It is a no-op at minInstances.
// Values, errors and verified flags of the retired index are purged for the
// fields of the section and of its non-repeatable descendants; lower indices
// are untouched.
func (m *Manager) Remove(store Store, sectionID string) bool {
	if !m.CanRemove(store, sectionID) {
		return false
	}
	last := store.Instances(sectionID) - 1
	store.SetInstances(sectionID, last)
	store.Purge(m.Keys(sectionID, last)...)
	return true
}

// Keys lists the composite keys owned by one instance of a section.
func (m *Manager) Keys(sectionID string, index int) []string {
	fields := m.index.Descendants(sectionID)
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, schema.FieldKey(f.ID, index).String())
	}
	return keys
}

// Label renders the instanceLabel template for a zero-based index. The
// {{index}} placeholder is 1-based; without a template the section title is
// followed by the number.
func (m *Manager) Label(sectionID string, index int) string {
	s, ok := m.section(sectionID)
	if !ok {
		return ""
	}
	return Label(s, index)
}

// Label renders an instance label for s.
func Label(s *schema.Section, index int) string {
	n := strconv.Itoa(index + 1)
	if s.InstanceLabel == "" {
		if s.Title == "" {
			return n
		}
		return s.Title + " " + n
	}
	if strings.Contains(s.InstanceLabel, "{{index}}") {
		return strings.ReplaceAll(s.InstanceLabel, "{{index}}", n)
	}
	return s.InstanceLabel + " " + n
}

func (m *Manager) section(id string) (*schema.Section, bool) {
	ref, ok := m.index.Section(id)
	if !ok || !ref.Section.Repeatable {
		return nil, false
	}
	return ref.Section, true
}
