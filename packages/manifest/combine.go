package manifest

import (
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
)

// ErrDuplicateGroup is returned when more than one manifest declares the
// same group.
var ErrDuplicateGroup = errors.New("group declared in more than one manifest")

// Set is the manifests of one run, planned together so group dependencies
// may cross files.
type Set struct {
	Manifests []*Manifest
	owners    map[descriptor.GroupID]*Manifest
}

// Combine collects ms into a Set, dropping repeats. Group IDs must be
// unique across the set.
func Combine(ms ...*Manifest) (*Set, error) {
	s := &Set{owners: make(map[descriptor.GroupID]*Manifest)}
	seen := make(map[*Manifest]bool, len(ms))
	for _, m := range ms {
		if seen[m] {
			continue
		}
		seen[m] = true
		s.Manifests = append(s.Manifests, m)
		for _, g := range m.Groups {
			id := descriptor.GroupID(g.ID)
			if other, ok := s.owners[id]; ok {
				return nil, fmt.Errorf("%w: %q in %s and %s", ErrDuplicateGroup, g.ID, other.DisplayName(), m.DisplayName())
			}
			s.owners[id] = m
		}
	}
	return s, nil
}

// Descriptors returns the descriptors of every manifest, in manifest order
// then declaration order.
func (s *Set) Descriptors() ([]descriptor.GroupDescriptor, []descriptor.TestDescriptor) {
	var groups []descriptor.GroupDescriptor
	var tests []descriptor.TestDescriptor
	for _, m := range s.Manifests {
		g, t := m.Descriptors()
		groups = append(groups, g...)
		tests = append(tests, t...)
	}
	return groups, tests
}

// Owner returns the manifest declaring group id.
func (s *Set) Owner(id descriptor.GroupID) (*Manifest, bool) {
	m, ok := s.owners[id]
	return m, ok
}
