package schema

// Visit is one field occurrence produced by Walk.
type Visit struct {
	Section  *Section
	Field    *Field
	Instance int
	Key      Key
}

// InstanceCounter reports the live instance count of a repeatable section.
type InstanceCounter func(sectionID string) int

// Walk visits every live field occurrence depth first. For a repeatable
// section each instance is visited in index order together with its
// non-repeatable sub-sections; nested repeatable sub-sections follow once
// all instances are done. Returning false from fn stops the walk.
func Walk(sections []Section, count InstanceCounter, fn func(Visit) bool) {
	w := walker{count: count, fn: fn}
	for i := range sections {
		if !w.section(&sections[i], NoInstance) {
			return
		}
	}
}

type walker struct {
	count InstanceCounter
	fn    func(Visit) bool
}

func (w walker) section(s *Section, inherited int) bool {
	if !s.Repeatable {
		if !w.fields(s, inherited) {
			return false
		}
		for i := range s.SubSections {
			if !w.section(&s.SubSections[i], inherited) {
				return false
			}
		}
		return true
	}

	n := 0
	if w.count != nil {
		n = w.count(s.ID)
	}
	for idx := 0; idx < n; idx++ {
		if !w.fields(s, idx) {
			return false
		}
		for i := range s.SubSections {
			if s.SubSections[i].Repeatable {
				continue
			}
			if !w.section(&s.SubSections[i], idx) {
				return false
			}
		}
	}
	for i := range s.SubSections {
		if !s.SubSections[i].Repeatable {
			continue
		}
		if !w.section(&s.SubSections[i], NoInstance) {
			return false
		}
	}
	return true
}

func (w walker) fields(s *Section, instance int) bool {
	for i := range s.Fields {
		f := &s.Fields[i]
		if !w.fn(Visit{Section: s, Field: f, Instance: instance, Key: FieldKey(f.ID, instance)}) {
			return false
		}
	}
	return true
}
