package guard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
)

var (
	// ErrUnmetTestDependency matches a DependencyError with at least one
	// incomplete method dependency.
	ErrUnmetTestDependency = errors.New("unmet test dependency")
	// ErrUnmetGroupDependency matches a DependencyError with at least one
	// incomplete group dependency.
	ErrUnmetGroupDependency = errors.New("unmet group dependency")
)

// DependencyError lists every dependency that had not completed when a test
// was about to run.
type DependencyError struct {
	// Test is the qualified name of the blocked test.
	Test        string
	UnmetGroups []descriptor.GroupID
	// UnmetTests holds qualified "group.test" names.
	UnmetTests []string
}

func (e *DependencyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "test %q has unmet dependencies:", e.Test)
	for _, g := range e.UnmetGroups {
		fmt.Fprintf(&b, "\n  test group %q must complete first", g)
	}
	for _, t := range e.UnmetTests {
		fmt.Fprintf(&b, "\n  test case %q must complete first", t)
	}
	return b.String()
}

// Unwrap exposes the sentinels matching the kinds of unmet dependencies.
func (e *DependencyError) Unwrap() []error {
	var errs []error
	if len(e.UnmetGroups) > 0 {
		errs = append(errs, ErrUnmetGroupDependency)
	}
	if len(e.UnmetTests) > 0 {
		errs = append(errs, ErrUnmetTestDependency)
	}
	return errs
}

// Unmet returns every unmet dependency, groups first.
func (e *DependencyError) Unmet() []string {
	unmet := make([]string, 0, len(e.UnmetGroups)+len(e.UnmetTests))
	for _, g := range e.UnmetGroups {
		unmet = append(unmet, string(g))
	}
	return append(unmet, e.UnmetTests...)
}
