package orderer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
)

var (
	// ErrCycle indicates declared dependencies form a cycle.
	ErrCycle = errors.New("dependency cycle detected")
	// ErrUnresolved indicates a declared dependency names nothing discovered.
	ErrUnresolved = errors.New("unresolved dependency")
)

// CycleError names the nodes forming a dependency cycle. The first and last
// entries of Path are the same node.
type CycleError struct {
	Kind string
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrCycle, e.Kind, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// DetectCycle returns the first dependency cycle found among nodes, or nil.
// Dependencies naming unknown nodes are ignored.
func DetectCycle[N descriptor.Node](nodes []N) []string {
	byKey := make(map[string]N, len(nodes))
	for _, n := range nodes {
		if _, exists := byKey[n.Key()]; !exists {
			byKey[n.Key()] = n
		}
	}

	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	parent := make(map[string]string)

	var dfs func(key string) []string
	dfs = func(key string) []string {
		visited[key] = true
		onStack[key] = true

		for _, dep := range byKey[key].Dependencies() {
			if _, ok := byKey[dep]; !ok {
				continue
			}
			if !visited[dep] {
				parent[dep] = key
				if cycle := dfs(dep); cycle != nil {
					return cycle
				}
			} else if onStack[dep] {
				cycle := []string{dep}
				for current := key; current != dep; current = parent[current] {
					cycle = append([]string{current}, cycle...)
				}
				return append([]string{dep}, cycle...)
			}
		}

		onStack[key] = false
		return nil
	}

	for _, n := range nodes {
		if !visited[n.Key()] {
			if cycle := dfs(n.Key()); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TestCycle reports the first method-dependency cycle among tests, using
// qualified "group.test" names in the returned path.
func TestCycle(tests []descriptor.TestDescriptor) []string {
	nodes := make([]testNode, len(tests))
	for i, t := range tests {
		nodes[i] = testNode{t}
	}
	return DetectCycle(nodes)
}

// GroupCycle reports the first group-dependency cycle, or nil.
func GroupCycle(groups []descriptor.GroupDescriptor) []string {
	return DetectCycle(groups)
}
