// Package navigation keeps the screens a flow has shown so back navigation
// can restore each one exactly as it was left, independent of any backend
// session state.
package navigation

import (
	"github.com/goliatone/go-formflow/pkg/formstate"
	"github.com/goliatone/go-formflow/pkg/schema"
)

// Entry is one shown screen with the state captured for it.
type Entry struct {
	ScreenID string
	Screen   *schema.Screen
	Snapshot formstate.Snapshot
}

// Stack is a LIFO of entries. The zero value is empty and ready to use.
type Stack struct {
	entries []Entry
}

// Push adds an entry on top.
func (s *Stack) Push(e Entry) {
	s.entries = append(s.entries, e)
}

// Pop removes and returns the top entry.
func (s *Stack) Pop() (Entry, bool) {
	if len(s.entries) == 0 {
		return Entry{}, false
	}
	top := s.entries[len(s.entries)-1]
	s.entries[len(s.entries)-1] = Entry{}
	s.entries = s.entries[:len(s.entries)-1]
	return top, true
}

// Top returns the top entry without removing it.
func (s *Stack) Top() (Entry, bool) {
	if len(s.entries) == 0 {
		return Entry{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// UpdateTop replaces the snapshot of the top entry, capturing the state a
// screen is left in before the next one is pushed.
func (s *Stack) UpdateTop(snap formstate.Snapshot) bool {
	if len(s.entries) == 0 {
		return false
	}
	s.entries[len(s.entries)-1].Snapshot = snap
	return true
}

// Len returns the number of entries.
func (s *Stack) Len() int {
	return len(s.entries)
}

// CanGoBack reports whether popping leaves a screen to return to.
func (s *Stack) CanGoBack() bool {
	return len(s.entries) >= 2
}

// Clear drops every entry. Only starting a fresh flow clears the stack.
func (s *Stack) Clear() {
	clear(s.entries)
	s.entries = s.entries[:0]
}

// ScreenIDs lists the screen ids bottom to top.
func (s *Stack) ScreenIDs() []string {
	ids := make([]string, len(s.entries))
	for i, e := range s.entries {
		ids[i] = e.ScreenID
	}
	return ids
}
