package suite

import (
	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
	"github.com/abdul-hamid-achik/depspec/packages/core/ledger"
	"github.com/abdul-hamid-achik/depspec/packages/core/orderer"
	"go.uber.org/zap"
)

// Option configures a Suite.
type Option func(*Suite)

// Strategy selects the ordering strategy. The default is dependency order.
func Strategy(s orderer.Strategy) Option {
	return func(su *Suite) {
		su.strategy = s
	}
}

// Strict makes cycles and unresolved references fail the suite before any
// test runs.
func Strict() Option {
	return func(su *Suite) {
		su.strict = true
	}
}

// WithLedger shares a run-wide ledger between suites, so that groups in one
// suite can depend on groups completed by another.
func WithLedger(l *ledger.Ledger) Option {
	return func(su *Suite) {
		if l != nil {
			su.ledger = l
		}
	}
}

// WithLogger sets the logger used by the planner, ledgers and guard.
func WithLogger(logger *zap.Logger) Option {
	return func(su *Suite) {
		if logger != nil {
			su.logger = logger
		}
	}
}

// GroupOption configures a Group.
type GroupOption func(*descriptor.GroupDescriptor)

// DependsOnGroup declares groups that must be complete before any test of
// the group may run.
func DependsOnGroup(ids ...string) GroupOption {
	return func(g *descriptor.GroupDescriptor) {
		for _, id := range ids {
			if id != "" {
				g.DependsOn = append(g.DependsOn, descriptor.GroupID(id))
			}
		}
	}
}

// Named sets the display name of a group.
func Named(name string) GroupOption {
	return func(g *descriptor.GroupDescriptor) {
		g.DisplayName = name
	}
}

// TestOption configures a test.
type TestOption func(*descriptor.TestDescriptor)

// DependsOn declares tests of the same group that must pass first.
func DependsOn(names ...string) TestOption {
	return func(t *descriptor.TestDescriptor) {
		for _, n := range names {
			if n != "" {
				t.DependsOn = append(t.DependsOn, n)
			}
		}
	}
}

// Priority sets the priority used by the priority strategy. Lower runs
// first.
func Priority(p int) TestOption {
	return func(t *descriptor.TestDescriptor) {
		*t = t.WithPriority(p)
	}
}

// Skip marks the test as skipped with a reason.
func Skip(reason string) TestOption {
	return func(t *descriptor.TestDescriptor) {
		*t = t.WithSkip(reason)
	}
}
