package descriptor

import "strings"

// DefaultPriority is the priority of a test without an explicit priority.
const DefaultPriority = 0

// GroupID is the stable, fully-qualified identifier of a test group.
type GroupID string

func (id GroupID) String() string {
	return string(id)
}

// Node is anything that can be placed in a dependency order.
type Node interface {
	// Key identifies the node within the set being ordered.
	Key() string
	// Dependencies returns the keys this node declares it depends on.
	Dependencies() []string
}

// Prioritized is implemented by nodes carrying an explicit priority.
type Prioritized interface {
	Priority() int
}

// Skippable is implemented by nodes that may be excluded from a run.
type Skippable interface {
	Skipped() bool
}

// TestDescriptor describes a single discovered test.
type TestDescriptor struct {
	Group GroupID
	Name  string
	// DependsOn lists test names in the same group that must pass first.
	// All entries must be satisfied.
	DependsOn []string
	// PriorityValue is nil when the test is untagged.
	PriorityValue *int
	// Skip holds the skip reason; a non-empty reason marks the test skipped.
	Skip string
}

// NewTest creates a test descriptor in the given group.
func NewTest(group GroupID, name string, dependsOn ...string) TestDescriptor {
	return TestDescriptor{
		Group:     group,
		Name:      name,
		DependsOn: cleanNames(dependsOn),
	}
}

// WithPriority returns a copy of t tagged with an explicit priority.
func (t TestDescriptor) WithPriority(p int) TestDescriptor {
	t.PriorityValue = &p
	return t
}

// WithSkip returns a copy of t marked as skipped for the given reason.
func (t TestDescriptor) WithSkip(reason string) TestDescriptor {
	t.Skip = reason
	return t
}

func (t TestDescriptor) Key() string {
	return t.Name
}

// Dependencies returns a copy of the declared method dependencies.
func (t TestDescriptor) Dependencies() []string {
	return append([]string(nil), t.DependsOn...)
}

// Priority returns the explicit priority, or DefaultPriority when untagged.
func (t TestDescriptor) Priority() int {
	if t.PriorityValue == nil {
		return DefaultPriority
	}
	return *t.PriorityValue
}

// HasPriority reports whether the test carries an explicit priority.
func (t TestDescriptor) HasPriority() bool {
	return t.PriorityValue != nil
}

func (t TestDescriptor) Skipped() bool {
	return t.Skip != ""
}

// QualifiedName returns "group.test".
func (t TestDescriptor) QualifiedName() string {
	return Qualify(t.Group, t.Name)
}

// GroupDescriptor describes a discovered test group.
type GroupDescriptor struct {
	ID GroupID
	// DisplayName is for humans only and never used for identity.
	DisplayName string
	DependsOn   []GroupID
}

// NewGroup creates a group descriptor.
func NewGroup(id GroupID, dependsOn ...GroupID) GroupDescriptor {
	deps := make([]GroupID, 0, len(dependsOn))
	for _, d := range dependsOn {
		if strings.TrimSpace(string(d)) == "" {
			continue
		}
		deps = append(deps, d)
	}
	return GroupDescriptor{ID: id, DependsOn: deps}
}

func (g GroupDescriptor) Key() string {
	return string(g.ID)
}

func (g GroupDescriptor) Dependencies() []string {
	deps := make([]string, len(g.DependsOn))
	for i, d := range g.DependsOn {
		deps[i] = string(d)
	}
	return deps
}

// Name returns the display name, falling back to the ID.
func (g GroupDescriptor) Name() string {
	if g.DisplayName != "" {
		return g.DisplayName
	}
	return string(g.ID)
}

// Qualify joins a group and test name as "group.test".
func Qualify(group GroupID, test string) string {
	return string(group) + "." + test
}

// Runnable returns the tests that are not skipped, preserving order.
func Runnable(tests []TestDescriptor) []TestDescriptor {
	runnable := make([]TestDescriptor, 0, len(tests))
	for _, t := range tests {
		if !t.Skipped() {
			runnable = append(runnable, t)
		}
	}
	return runnable
}

// InGroup returns the tests belonging to group, preserving order.
func InGroup(tests []TestDescriptor, group GroupID) []TestDescriptor {
	var members []TestDescriptor
	for _, t := range tests {
		if t.Group == group {
			members = append(members, t)
		}
	}
	return members
}

// cleanNames drops empty dependency names, which can never be resolved.
func cleanNames(names []string) []string {
	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		cleaned = append(cleaned, n)
	}
	return cleaned
}
