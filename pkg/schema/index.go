package schema

// FieldRef locates a field in the section tree.
type FieldRef struct {
	Field   *Field
	Section *Section
	// Repeatable is the id of the nearest repeatable section enclosing the
	// field, itself included, or empty outside any repeatable context.
	Repeatable string
}

// InRepeatable reports whether values of the field are keyed per instance.
func (r FieldRef) InRepeatable() bool {
	return r.Repeatable != ""
}

// SectionRef locates a section in the tree.
type SectionRef struct {
	Section *Section
	Parent  string
	// Repeatable is the nearest repeatable section id, the section included.
	Repeatable string
}

// Index is the flat id lookup built once per screen load. Lookups resolve to
// the first declaration when ids repeat across sections.
type Index struct {
	screen   *Screen
	fields   map[string]FieldRef
	order    []string
	sections map[string]SectionRef
	children map[string][]string
}

// NewIndex walks the screen's section tree. The screen must not be mutated
// afterwards.
func NewIndex(screen *Screen) *Index {
	ix := &Index{
		screen:   screen,
		fields:   map[string]FieldRef{},
		sections: map[string]SectionRef{},
		children: map[string][]string{},
	}
	if screen == nil {
		return ix
	}
	var visit func(list []Section, parent, repeatable string)
	visit = func(list []Section, parent, repeatable string) {
		for i := range list {
			s := &list[i]
			rep := repeatable
			if s.Repeatable {
				rep = s.ID
			}
			if _, dup := ix.sections[s.ID]; !dup {
				ix.sections[s.ID] = SectionRef{Section: s, Parent: parent, Repeatable: rep}
				ix.children[parent] = append(ix.children[parent], s.ID)
			}
			for j := range s.Fields {
				f := &s.Fields[j]
				if _, dup := ix.fields[f.ID]; dup {
					continue
				}
				ix.fields[f.ID] = FieldRef{Field: f, Section: s, Repeatable: rep}
				ix.order = append(ix.order, f.ID)
			}
			visit(s.SubSections, s.ID, rep)
		}
	}
	visit(screen.Sections, "", "")
	return ix
}

// Screen returns the indexed screen.
func (ix *Index) Screen() *Screen {
	return ix.screen
}

// Field looks up a field by id.
func (ix *Index) Field(id string) (FieldRef, bool) {
	ref, ok := ix.fields[id]
	return ref, ok
}

// Section looks up a section by id.
func (ix *Index) Section(id string) (SectionRef, bool) {
	ref, ok := ix.sections[id]
	return ref, ok
}

// FieldIDs returns field ids in declaration order.
func (ix *Index) FieldIDs() []string {
	return append([]string(nil), ix.order...)
}

// Label returns the field label, falling back to the id.
func (ix *Index) Label(id string) string {
	if ref, ok := ix.fields[id]; ok && ref.Field.Label != "" {
		return ref.Field.Label
	}
	return id
}

// Resolve maps a field id referenced from the given instance context to its
// store key. Fields in a repeatable context, and unknown fields, take the
// instance index; other fields resolve to their plain id.
func (ix *Index) Resolve(id string, instance int) Key {
	if instance < 0 {
		return PlainKey(id)
	}
	ref, ok := ix.fields[id]
	if ok && !ref.InRepeatable() {
		return PlainKey(id)
	}
	return FieldKey(id, instance)
}

// Repeatables returns every repeatable section in tree order.
func (ix *Index) Repeatables() []*Section {
	var out []*Section
	var visit func(parent string)
	visit = func(parent string) {
		for _, id := range ix.children[parent] {
			ref := ix.sections[id]
			if ref.Section.Repeatable {
				out = append(out, ref.Section)
			}
			visit(id)
		}
	}
	visit("")
	return out
}

// Descendants returns the fields owned by the section and by its
// non-repeatable descendants, which share the section's instance index.
func (ix *Index) Descendants(sectionID string) []*Field {
	ref, ok := ix.sections[sectionID]
	if !ok {
		return nil
	}
	var out []*Field
	var visit func(s *Section)
	visit = func(s *Section) {
		for i := range s.Fields {
			out = append(out, &s.Fields[i])
		}
		for i := range s.SubSections {
			if !s.SubSections[i].Repeatable {
				visit(&s.SubSections[i])
			}
		}
	}
	visit(ref.Section)
	return out
}
