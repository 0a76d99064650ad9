package engine

import "fmt"

// AddInstance appends an instance to a repeatable section. It is a no-op at
// maxInstances and reports whether the count changed.
func (e *Engine) AddInstance(sectionID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur, err := e.repeatableSection(sectionID)
	if err != nil {
		return false, err
	}
	return cur.repeat.Add(e.store, sectionID), nil
}

// RemoveInstance retires the highest-index instance and purges its state.
// It is a no-op at minInstances.
func (e *Engine) RemoveInstance(sectionID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur, err := e.repeatableSection(sectionID)
	if err != nil {
		return false, err
	}
	last := e.store.Instances(sectionID) - 1
	if !cur.repeat.Remove(e.store, sectionID) {
		return false, nil
	}
	for _, key := range cur.repeat.Keys(sectionID, last) {
		e.resetMachine(cur, key)
		delete(cur.machines, key)
		if cur.dialog != nil && cur.dialog.Key == key {
			cur.dialog = nil
		}
	}
	return true, nil
}

// Instances returns the live instance count of a section.
func (e *Engine) Instances(sectionID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Instances(sectionID)
}

// CanAddInstance reports whether AddInstance would add.
func (e *Engine) CanAddInstance(sectionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur, err := e.repeatableSection(sectionID)
	return err == nil && cur.repeat.CanAdd(e.store, sectionID)
}

// CanRemoveInstance reports whether RemoveInstance would remove.
func (e *Engine) CanRemoveInstance(sectionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur, err := e.repeatableSection(sectionID)
	return err == nil && cur.repeat.CanRemove(e.store, sectionID)
}

// InstanceLabel renders the label of a zero-based instance.
func (e *Engine) InstanceLabel(sectionID string, index int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur, err := e.repeatableSection(sectionID)
	if err != nil {
		return "", err
	}
	return cur.repeat.Label(sectionID, index), nil
}

func (e *Engine) repeatableSection(id string) (*screen, error) {
	if e.completed {
		return nil, ErrFlowComplete
	}
	cur := e.current
	if cur == nil {
		return nil, ErrNoScreen
	}
	ref, ok := cur.index.Section(id)
	if !ok || !ref.Section.Repeatable {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSection, id)
	}
	return cur, nil
}
