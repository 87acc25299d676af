package orderer

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
	"go.uber.org/zap"
)

// Strategy selects how tests are ordered.
type Strategy string

const (
	// StrategyDependency orders groups and tests by declared dependencies.
	StrategyDependency Strategy = "dependency"
	// StrategyPriority orders tests by priority and keeps groups in
	// discovery order. Declared dependencies are neither ordered nor
	// enforced, so a test may run before a test it names.
	StrategyPriority Strategy = "priority"
)

// ParseStrategy converts a configuration value into a Strategy. An empty
// value selects StrategyDependency.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyDependency:
		return StrategyDependency, nil
	case StrategyPriority:
		return StrategyPriority, nil
	default:
		return "", fmt.Errorf("unknown ordering strategy %q (use dependency or priority)", s)
	}
}

// Options configures Build.
type Options struct {
	Strategy Strategy
	// Strict turns cycles and unresolved references into errors instead of
	// a best-effort order.
	Strict bool
	Logger *zap.Logger
}

// GroupPlan is one group with its tests in execution order. Skipped tests
// stay in the plan so hosts can report them.
type GroupPlan struct {
	Group descriptor.GroupDescriptor
	Tests []descriptor.TestDescriptor
	// Inventory is every discovered test of the group in discovery order.
	Inventory []descriptor.TestDescriptor
}

// Plan is the complete execution order of a run.
type Plan struct {
	Strategy   Strategy
	Groups     []GroupPlan
	Unresolved []Reference
	// Cycles holds every cycle that was tolerated in best-effort mode.
	Cycles [][]string
}

// Len returns the number of planned tests.
func (p *Plan) Len() int {
	n := 0
	for _, g := range p.Groups {
		n += len(g.Tests)
	}
	return n
}

// Tests returns every planned test in execution order.
func (p *Plan) Tests() []descriptor.TestDescriptor {
	tests := make([]descriptor.TestDescriptor, 0, p.Len())
	for _, g := range p.Groups {
		tests = append(tests, g.Tests...)
	}
	return tests
}

// Group returns the plan entry for id.
func (p *Plan) Group(id descriptor.GroupID) (GroupPlan, bool) {
	for _, g := range p.Groups {
		if g.Group.ID == id {
			return g, true
		}
	}
	return GroupPlan{}, false
}

// GroupDescriptors returns the planned groups in execution order.
func (p *Plan) GroupDescriptors() []descriptor.GroupDescriptor {
	groups := make([]descriptor.GroupDescriptor, len(p.Groups))
	for i, g := range p.Groups {
		groups[i] = g.Group
	}
	return groups
}

// Gate returns the descriptors a guard checks before td of gp runs. Under
// StrategyPriority they carry no dependencies.
func (p *Plan) Gate(gp GroupPlan, td descriptor.TestDescriptor) (descriptor.TestDescriptor, descriptor.GroupDescriptor) {
	if p.Strategy != StrategyPriority {
		return td, gp.Group
	}
	td.DependsOn = nil
	group := gp.Group
	group.DependsOn = nil
	return td, group
}

// Build orders groups, then the tests of every group, using the selected
// strategy. Tests whose group was not declared get an implicit group
// without dependencies, placed after the declared groups in order of first
// appearance.
func Build(groups []descriptor.GroupDescriptor, tests []descriptor.TestDescriptor, opts Options) (*Plan, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyDependency
	}

	groups = withImplicitGroups(groups, tests)

	plan := &Plan{Strategy: opts.Strategy}

	if opts.Strategy == StrategyDependency {
		plan.Unresolved = Unresolved(groups, tests)
		for _, ref := range plan.Unresolved {
			logger.Warn("plan.unresolved",
				zap.String("kind", string(ref.Kind)),
				zap.String("from", ref.From),
				zap.String("target", ref.Target),
				zap.Bool("skipped", ref.Skipped),
			)
		}
		if opts.Strict && len(plan.Unresolved) > 0 {
			return nil, &UnresolvedError{References: plan.Unresolved}
		}

		if cycle := GroupCycle(groups); cycle != nil {
			if opts.Strict {
				return nil, &CycleError{Kind: "group", Path: cycle}
			}
			plan.Cycles = append(plan.Cycles, cycle)
			logger.Warn("plan.cycle", zap.String("kind", "group"), zap.Strings("path", cycle))
		}

		groups = Groups(groups)
	}

	for _, g := range groups {
		inventory := descriptor.InGroup(tests, g.ID)

		var ordered []descriptor.TestDescriptor
		switch opts.Strategy {
		case StrategyPriority:
			ordered = ByPriority(inventory)
		default:
			if cycle := TestCycle(inventory); cycle != nil {
				if opts.Strict {
					return nil, &CycleError{Kind: "test", Path: cycle}
				}
				plan.Cycles = append(plan.Cycles, cycle)
				logger.Warn("plan.cycle", zap.String("kind", "test"), zap.Strings("path", cycle))
			}
			ordered = Tests(inventory)
		}

		plan.Groups = append(plan.Groups, GroupPlan{
			Group:     g,
			Tests:     ordered,
			Inventory: inventory,
		})
	}

	logger.Debug("plan.built",
		zap.String("strategy", string(plan.Strategy)),
		zap.Int("groups", len(plan.Groups)),
		zap.Int("tests", plan.Len()),
	)

	return plan, nil
}

func withImplicitGroups(groups []descriptor.GroupDescriptor, tests []descriptor.TestDescriptor) []descriptor.GroupDescriptor {
	known := make(map[descriptor.GroupID]bool, len(groups))
	all := make([]descriptor.GroupDescriptor, 0, len(groups))
	for _, g := range groups {
		if known[g.ID] {
			continue
		}
		known[g.ID] = true
		all = append(all, g)
	}
	for _, t := range tests {
		if !known[t.Group] {
			known[t.Group] = true
			all = append(all, descriptor.NewGroup(t.Group))
		}
	}
	return all
}
