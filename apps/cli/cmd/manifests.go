package cmd

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
	"github.com/abdul-hamid-achik/depspec/packages/core/orderer"
	"github.com/abdul-hamid-achik/depspec/packages/manifest"
)

// loadManifests loads every file and passes each load failure to report.
// The manifests that loaded are returned in file order.
func loadManifests(files []string, report func(file string, err error)) []*manifest.Manifest {
	manifests := make([]*manifest.Manifest, 0, len(files))
	for _, file := range files {
		m, err := manifest.Load(file)
		if err != nil {
			report(file, err)
			continue
		}
		manifests = append(manifests, m)
	}
	return manifests
}

// buildPlan orders the tests of every manifest of set as one plan.
func buildPlan(set *manifest.Set, strategy orderer.Strategy, strict bool) (*orderer.Plan, error) {
	groups, tests := set.Descriptors()
	return orderer.Build(groups, tests, orderer.Options{
		Strategy: strategy,
		Strict:   strict,
		Logger:   logger,
	})
}

// planSource names the manifests a plan was built from.
func planSource(set *manifest.Set) string {
	paths := make([]string, len(set.Manifests))
	for i, m := range set.Manifests {
		paths[i] = m.Path
	}
	return strings.Join(paths, ", ")
}

// ownerOf returns the manifest declaring key, which is either a group ID or
// a qualified test name of plan.
func ownerOf(set *manifest.Set, plan *orderer.Plan, key string) (*manifest.Manifest, bool) {
	if m, ok := set.Owner(descriptor.GroupID(key)); ok {
		return m, true
	}
	for _, gp := range plan.Groups {
		for _, td := range gp.Inventory {
			if td.QualifiedName() == key {
				return set.Owner(td.Group)
			}
		}
	}
	return nil, false
}

func loadError(file string, err error) error {
	return fmt.Errorf("loading manifest %s: %w", file, err)
}
