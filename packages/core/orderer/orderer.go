package orderer

import (
	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
)

// Order returns nodes arranged so that every node follows the nodes it
// depends on, whenever the dependency is part of nodes.
//
// Nodes are visited in discovery order; each visit first emits the node's
// dependencies, then the node itself. A node is emitted at most once.
// Dependencies that name no node are ignored. Cycles do not fail: a
// dependency already being visited is skipped, which yields a best-effort
// order. When several nodes share a key, the first one wins.
func Order[N descriptor.Node](nodes []N) []N {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if _, exists := index[n.Key()]; !exists {
			index[n.Key()] = i
		}
	}

	ordered := make([]N, 0, len(nodes))
	visited := make([]bool, len(nodes))

	var visit func(i int)
	visit = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true

		for _, dep := range nodes[i].Dependencies() {
			if j, ok := index[dep]; ok {
				visit(j)
			}
		}

		ordered = append(ordered, nodes[i])
	}

	for i := range nodes {
		visit(i)
	}

	return ordered
}

// testNode scopes a test's method dependencies to its own group so that
// tests of different groups sharing a name never satisfy each other.
type testNode struct {
	descriptor.TestDescriptor
}

func (n testNode) Key() string {
	return n.QualifiedName()
}

func (n testNode) Dependencies() []string {
	deps := make([]string, len(n.DependsOn))
	for i, d := range n.DependsOn {
		deps[i] = descriptor.Qualify(n.Group, d)
	}
	return deps
}

// Tests orders test descriptors by their declared method dependencies.
// Dependencies resolve by test name within the test's own group.
func Tests(tests []descriptor.TestDescriptor) []descriptor.TestDescriptor {
	nodes := make([]testNode, len(tests))
	for i, t := range tests {
		nodes[i] = testNode{t}
	}

	ordered := Order(nodes)

	result := make([]descriptor.TestDescriptor, len(ordered))
	for i, n := range ordered {
		result[i] = n.TestDescriptor
	}
	return result
}

// Groups orders group descriptors by their declared group dependencies,
// resolved by GroupID.
func Groups(groups []descriptor.GroupDescriptor) []descriptor.GroupDescriptor {
	return Order(groups)
}

// Levels splits an already ordered slice of groups into consecutive batches
// where every group only depends on groups of earlier batches. Dependencies
// that are unknown, or that appear later in the slice (cycle back-edges),
// are ignored.
func Levels(ordered []descriptor.GroupDescriptor) [][]descriptor.GroupDescriptor {
	position := make(map[descriptor.GroupID]int, len(ordered))
	for i, g := range ordered {
		if _, exists := position[g.ID]; !exists {
			position[g.ID] = i
		}
	}

	level := make([]int, len(ordered))
	maxLevel := -1
	for i, g := range ordered {
		for _, dep := range g.DependsOn {
			j, ok := position[dep]
			if !ok || j >= i {
				continue
			}
			if level[j]+1 > level[i] {
				level[i] = level[j] + 1
			}
		}
		if level[i] > maxLevel {
			maxLevel = level[i]
		}
	}

	batches := make([][]descriptor.GroupDescriptor, maxLevel+1)
	for i, g := range ordered {
		batches[level[i]] = append(batches[level[i]], g)
	}
	return batches
}
