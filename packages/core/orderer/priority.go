package orderer

import (
	"cmp"
	"slices"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
)

// ByPriority returns tests sorted by ascending priority. Untagged tests have
// priority 0. Tests with equal priority keep their discovery order.
func ByPriority(tests []descriptor.TestDescriptor) []descriptor.TestDescriptor {
	sorted := slices.Clone(tests)
	slices.SortStableFunc(sorted, func(a, b descriptor.TestDescriptor) int {
		return cmp.Compare(a.Priority(), b.Priority())
	})
	return sorted
}
