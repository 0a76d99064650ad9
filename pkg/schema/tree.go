package schema

import (
	"fmt"
	"sort"
	"strings"
)

// foldSubSections moves top-level sections that declare a parent into that
// parent's SubSections so the tree has a single representation. Sections
// nested in the payload already are left where they are.
func foldSubSections(sections []Section) ([]Section, error) {
	if len(sections) == 0 {
		return sections, nil
	}

	known := map[string]bool{}
	var collect func([]Section)
	collect = func(list []Section) {
		for _, s := range list {
			known[s.ID] = true
			collect(s.SubSections)
		}
	}
	collect(sections)

	var roots []Section
	pending := map[string][]Section{}
	for _, s := range sections {
		parent := s.SubSectionOf
		if parent == "" || parent == s.ID {
			roots = append(roots, s)
			continue
		}
		if !known[parent] {
			return nil, fmt.Errorf("schema: section %q references unknown parent %q", s.ID, parent)
		}
		pending[parent] = append(pending[parent], s)
	}
	if len(pending) == 0 {
		return sections, nil
	}

	var attach func(list []Section) []Section
	attach = func(list []Section) []Section {
		if len(list) == 0 {
			return list
		}
		out := make([]Section, len(list))
		for i, s := range list {
			if children, ok := pending[s.ID]; ok {
				delete(pending, s.ID)
				s.SubSections = append(append([]Section(nil), s.SubSections...), children...)
			}
			s.SubSections = attach(s.SubSections)
			out[i] = s
		}
		return out
	}
	roots = attach(roots)

	if len(pending) > 0 {
		ids := make([]string, 0, len(pending))
		for parent, children := range pending {
			for _, child := range children {
				ids = append(ids, child.ID+"->"+parent)
			}
		}
		sort.Strings(ids)
		return nil, fmt.Errorf("schema: section parent cycle: %s", strings.Join(ids, ", "))
	}
	return roots, nil
}
