package runner

import (
	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
	"github.com/abdul-hamid-achik/depspec/packages/core/orderer"
	"github.com/abdul-hamid-achik/depspec/packages/manifest"
)

// selection returns the qualified names of tests selected by the name and
// tag filters, or nil when no filter is set. Selected tests pull in their
// method dependencies and every test of the groups they depend on, so a
// filtered run can still satisfy the guard.
func (r *Runner) selection(set *manifest.Set, plan *orderer.Plan) map[string]bool {
	if r.config.NameFilter == "" && len(r.config.TagsFilter) == 0 {
		return nil
	}

	selected := make(map[string]bool)
	var queue []descriptor.TestDescriptor

	add := func(td descriptor.TestDescriptor) {
		if !selected[td.QualifiedName()] {
			selected[td.QualifiedName()] = true
			queue = append(queue, td)
		}
	}

	groupsAdded := make(map[descriptor.GroupID]bool)
	addGroup := func(id descriptor.GroupID) {
		if groupsAdded[id] {
			return
		}
		groupsAdded[id] = true
		if gp, ok := plan.Group(id); ok {
			for _, td := range gp.Inventory {
				add(td)
			}
		}
	}

	for _, gp := range plan.Groups {
		for _, td := range gp.Inventory {
			if r.matches(set, td) {
				add(td)
			}
		}
	}

	for len(queue) > 0 {
		td := queue[0]
		queue = queue[1:]

		gp, ok := plan.Group(td.Group)
		if !ok {
			continue
		}
		for _, dep := range gp.Group.DependsOn {
			addGroup(dep)
		}
		for _, dep := range td.DependsOn {
			for _, candidate := range gp.Inventory {
				if candidate.Name == dep {
					add(candidate)
					break
				}
			}
		}
	}

	return selected
}

func (r *Runner) matches(set *manifest.Set, td descriptor.TestDescriptor) bool {
	if r.config.NameFilter != "" {
		if !matchesPattern(td.Name, r.config.NameFilter) && !matchesPattern(td.QualifiedName(), r.config.NameFilter) {
			return false
		}
	}

	if len(r.config.TagsFilter) > 0 {
		m, ok := set.Owner(td.Group)
		if !ok {
			return false
		}
		decl, _ := m.Test(td.Group, td.Name)
		if !hasAnyTag(decl.Tags, r.config.TagsFilter) {
			return false
		}
	}

	return true
}

func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	if pattern[0] == '*' && pattern[len(pattern)-1] == '*' && len(pattern) > 1 {
		substr := pattern[1 : len(pattern)-1]
		for i := 0; i <= len(name)-len(substr); i++ {
			if name[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	}

	if pattern[0] == '*' {
		suffix := pattern[1:]
		return len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix
	}

	if pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(name) >= len(prefix) && name[:len(prefix)] == prefix
	}

	return name == pattern
}

func hasAnyTag(tags []string, filters []string) bool {
	for _, filter := range filters {
		for _, tag := range tags {
			if tag == filter {
				return true
			}
		}
	}
	return false
}
