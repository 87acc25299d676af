package suite

import (
	"fmt"
	"sync"
	"testing"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
	"github.com/abdul-hamid-achik/depspec/packages/core/guard"
	"github.com/abdul-hamid-achik/depspec/packages/core/ledger"
	"github.com/abdul-hamid-achik/depspec/packages/core/orderer"
	"go.uber.org/zap"
)

// Suite is a set of test groups run in dependency order.
type Suite struct {
	strategy orderer.Strategy
	strict   bool
	ledger   *ledger.Ledger
	logger   *zap.Logger

	mu     sync.Mutex
	groups []*Group
}

// Group is a test group of a Suite.
type Group struct {
	suite *Suite
	desc  descriptor.GroupDescriptor
	cases []testCase
}

type testCase struct {
	desc descriptor.TestDescriptor
	fn   func(t *testing.T)
}

// New creates an empty suite.
func New(opts ...Option) *Suite {
	s := &Suite{
		strategy: orderer.StrategyDependency,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ledger == nil {
		s.ledger = ledger.New(ledger.WithLogger(s.logger))
	}
	return s
}

// Ledger returns the run-wide ledger of the suite.
func (s *Suite) Ledger() *ledger.Ledger {
	return s.ledger
}

// Group returns the group with the given ID, creating it on first use.
// Options are only applied when the group is created.
func (s *Suite) Group(id string, opts ...GroupOption) *Group {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.groups {
		if string(g.desc.ID) == id {
			return g
		}
	}

	desc := descriptor.NewGroup(descriptor.GroupID(id))
	for _, opt := range opts {
		opt(&desc)
	}
	g := &Group{suite: s, desc: desc}
	s.groups = append(s.groups, g)
	return g
}

// Test adds a test to the group. It panics when the name is empty or
// already used in the group.
func (g *Group) Test(name string, fn func(t *testing.T), opts ...TestOption) *Group {
	if name == "" {
		panic("suite: empty test name")
	}

	g.suite.mu.Lock()
	defer g.suite.mu.Unlock()

	for _, c := range g.cases {
		if c.desc.Name == name {
			panic(fmt.Sprintf("suite: test %q registered twice in group %q", name, g.desc.ID))
		}
	}

	desc := descriptor.NewTest(g.desc.ID, name)
	for _, opt := range opts {
		opt(&desc)
	}
	g.cases = append(g.cases, testCase{desc: desc, fn: fn})
	return g
}

// ID returns the group ID.
func (g *Group) ID() descriptor.GroupID {
	return g.desc.ID
}

func (s *Suite) snapshot() ([]descriptor.GroupDescriptor, []descriptor.TestDescriptor, map[string]func(*testing.T)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make([]descriptor.GroupDescriptor, 0, len(s.groups))
	var tests []descriptor.TestDescriptor
	bodies := make(map[string]func(*testing.T))

	for _, g := range s.groups {
		groups = append(groups, g.desc)
		for _, c := range g.cases {
			tests = append(tests, c.desc)
			bodies[c.desc.QualifiedName()] = c.fn
		}
	}
	return groups, tests, bodies
}

// Run plans the suite and runs every group as a subtest of t. Group
// subtests run sequentially in plan order, and so do the tests inside each
// group. The returned report holds the outcome of every planned test.
func (s *Suite) Run(t *testing.T) *Report {
	t.Helper()

	report := &Report{}

	groups, tests, bodies := s.snapshot()
	plan, err := orderer.Build(groups, tests, orderer.Options{
		Strategy: s.strategy,
		Strict:   s.strict,
		Logger:   s.logger,
	})
	if err != nil {
		t.Fatalf("planning suite: %v", err)
		return report
	}
	report.Plan = plan

	g := guard.New(s.ledger, guard.WithLogger(s.logger))

	for _, gp := range plan.Groups {
		gp := gp
		scope := ledger.New(
			ledger.WithRunID(s.ledger.RunID()),
			ledger.WithScope(string(gp.Group.ID)),
			ledger.WithLogger(s.logger),
		)
		scoped := g.Scoped(scope)

		t.Run(string(gp.Group.ID), func(t *testing.T) {
			for _, td := range gp.Tests {
				td := td
				body := bodies[td.QualifiedName()]
				t.Run(td.Name, func(t *testing.T) {
					runCase(t, scoped, plan, gp, td, body, report)
				})
			}
		})
	}

	return report
}

func runCase(t *testing.T, g *guard.Guard, plan *orderer.Plan, gp orderer.GroupPlan, td descriptor.TestDescriptor, body func(*testing.T), report *Report) {
	t.Helper()

	if td.Skipped() {
		report.add(td, guard.Skipped, nil)
		t.Skip(td.Skip)
	}

	gated, group := plan.Gate(gp, td)
	token, err := g.Enter(gated, group, gp.Inventory)
	if err != nil {
		report.add(td, guard.Failed, err)
		t.Fatal(err)
	}

	completed := false
	defer func() {
		if r := recover(); r != nil {
			token.Exit(guard.Errored)
			report.add(td, guard.Errored, fmt.Errorf("panic: %v", r))
			panic(r)
		}

		outcome := outcomeOf(t, completed)
		token.Exit(outcome)
		report.add(td, outcome, nil)
	}()

	if body != nil {
		body(t)
	}
	completed = true
}

// outcomeOf derives the outcome of a finished test body. A body that
// stopped early through runtime.Goexit without failing or skipping (for
// example a t.FailNow in a helper goroutine) is inconclusive.
func outcomeOf(t *testing.T, completed bool) guard.Outcome {
	switch {
	case t.Failed():
		return guard.Failed
	case t.Skipped():
		return guard.Skipped
	case !completed:
		return guard.Inconclusive
	default:
		return guard.Passed
	}
}
