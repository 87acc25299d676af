package orderer

import (
	"fmt"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
)

// ReferenceKind tells which kind of declaration a Reference comes from.
type ReferenceKind string

const (
	MethodReference ReferenceKind = "method"
	GroupReference  ReferenceKind = "group"
)

// Reference is a declared dependency edge.
type Reference struct {
	Kind ReferenceKind
	// From is the qualified test name or the group ID declaring the edge.
	From string
	// Target is the declared test name or group ID.
	Target string
	// Skipped is set when a method reference targets a skipped test; such a
	// reference resolves for ordering but can never be satisfied.
	Skipped bool
}

func (r Reference) String() string {
	if r.Skipped {
		return fmt.Sprintf("%s dependency %s -> %s targets a skipped test", r.Kind, r.From, r.Target)
	}
	return fmt.Sprintf("%s dependency %s -> %s does not match any discovered %s", r.Kind, r.From, r.Target, r.Kind)
}

// Unresolved lists declared dependencies that can never be satisfied: group
// dependencies naming no discovered group, method dependencies naming no
// test of the same group, and method dependencies on skipped tests.
func Unresolved(groups []descriptor.GroupDescriptor, tests []descriptor.TestDescriptor) []Reference {
	var refs []Reference

	knownGroups := make(map[descriptor.GroupID]bool, len(groups))
	for _, g := range groups {
		knownGroups[g.ID] = true
	}
	for _, g := range groups {
		for _, dep := range g.DependsOn {
			if !knownGroups[dep] {
				refs = append(refs, Reference{Kind: GroupReference, From: string(g.ID), Target: string(dep)})
			}
		}
	}

	byName := make(map[string]descriptor.TestDescriptor, len(tests))
	for _, t := range tests {
		if _, exists := byName[t.QualifiedName()]; !exists {
			byName[t.QualifiedName()] = t
		}
	}
	for _, t := range tests {
		if t.Skipped() {
			continue
		}
		for _, dep := range t.DependsOn {
			target, ok := byName[descriptor.Qualify(t.Group, dep)]
			switch {
			case !ok:
				refs = append(refs, Reference{Kind: MethodReference, From: t.QualifiedName(), Target: dep})
			case target.Skipped():
				refs = append(refs, Reference{Kind: MethodReference, From: t.QualifiedName(), Target: dep, Skipped: true})
			}
		}
	}

	return refs
}

// UnresolvedError aggregates every unresolved reference of a plan.
type UnresolvedError struct {
	References []Reference
}

func (e *UnresolvedError) Error() string {
	msg := fmt.Sprintf("%s: %d reference(s)", ErrUnresolved, len(e.References))
	for _, r := range e.References {
		msg += "\n  " + r.String()
	}
	return msg
}

func (e *UnresolvedError) Unwrap() error {
	return ErrUnresolved
}
