package guard

import (
	"slices"
	"sync"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
	"github.com/abdul-hamid-achik/depspec/packages/core/ledger"
	"go.uber.org/zap"
)

// Guard checks and records test completion against one run-wide ledger and
// any number of narrower scoped ledgers.
type Guard struct {
	global *ledger.Ledger
	scopes []*ledger.Ledger
	logger *zap.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithScope adds a narrower ledger, typically one per group. Method
// dependencies must be complete in every scope; group dependencies are only
// checked against the global ledger.
func WithScope(l *ledger.Ledger) Option {
	return func(g *Guard) {
		if l != nil {
			g.scopes = append(g.scopes, l)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates a guard over the run-wide ledger.
func New(global *ledger.Ledger, opts ...Option) *Guard {
	g := &Guard{
		global: global,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Scoped returns a guard sharing this guard's ledgers plus l.
func (g *Guard) Scoped(l *ledger.Ledger) *Guard {
	scoped := &Guard{
		global: g.global,
		scopes: slices.Clone(g.scopes),
		logger: g.logger,
	}
	if l != nil {
		scoped.scopes = append(scoped.scopes, l)
	}
	return scoped
}

// Ledger returns the run-wide ledger.
func (g *Guard) Ledger() *ledger.Ledger {
	return g.global
}

func (g *Guard) ledgers() []*ledger.Ledger {
	return append([]*ledger.Ledger{g.global}, g.scopes...)
}

// Token is held by a test that passed Enter. Exit must be called once the
// test finished.
type Token struct {
	guard *Guard
	test  descriptor.TestDescriptor
	once  sync.Once
}

// Enter registers the group's inventory, then verifies every declared group
// and method dependency of test. When any dependency is unmet it returns a
// *DependencyError naming all of them and a nil token; the test body must
// not run.
func (g *Guard) Enter(test descriptor.TestDescriptor, group descriptor.GroupDescriptor, inventory []descriptor.TestDescriptor) (*Token, error) {
	logger := g.logger.With(zap.String("test", test.QualifiedName()))

	for _, l := range g.ledgers() {
		l.RegisterGroup(group.ID, inventory)
	}

	depErr := &DependencyError{Test: test.QualifiedName()}

	for _, dep := range group.DependsOn {
		if !g.global.IsGroupComplete(dep) && !slices.Contains(depErr.UnmetGroups, dep) {
			depErr.UnmetGroups = append(depErr.UnmetGroups, dep)
		}
	}

	for _, dep := range test.DependsOn {
		qualified := descriptor.Qualify(test.Group, dep)
		if slices.Contains(depErr.UnmetTests, qualified) {
			continue
		}
		for _, l := range g.ledgers() {
			if !l.IsTestComplete(test.Group, dep) {
				depErr.UnmetTests = append(depErr.UnmetTests, qualified)
				break
			}
		}
	}

	if len(depErr.UnmetGroups) > 0 || len(depErr.UnmetTests) > 0 {
		logger.Debug("guard.blocked", zap.Strings("unmet", depErr.Unmet()))
		return nil, depErr
	}

	logger.Debug("guard.enter")
	return &Token{guard: g, test: test}, nil
}

// Exit records the outcome of the test. Only Passed marks the test complete;
// any other outcome leaves it incomplete for the rest of the run. Calls
// after the first are ignored. It reports whether the test was marked
// complete by this call.
func (t *Token) Exit(outcome Outcome) bool {
	marked := false
	t.once.Do(func() {
		logger := t.guard.logger.With(
			zap.String("test", t.test.QualifiedName()),
			zap.Stringer("outcome", outcome),
		)
		if outcome != Passed {
			logger.Debug("guard.exit")
			return
		}
		for _, l := range t.guard.ledgers() {
			if l.MarkComplete(t.test.Group, t.test.Name) {
				marked = true
			}
		}
		logger.Debug("guard.exit", zap.Bool("marked", marked))
	})
	return marked
}

// Run wraps body with Enter and Exit. When Enter fails the body is not
// called and Run returns Failed with the *DependencyError. A panic in body
// is recorded as Errored before it propagates. A body that stops through
// runtime.Goexit is recorded as Inconclusive.
func (g *Guard) Run(test descriptor.TestDescriptor, group descriptor.GroupDescriptor, inventory []descriptor.TestDescriptor, body func() Outcome) (outcome Outcome, err error) {
	token, err := g.Enter(test, group, inventory)
	if err != nil {
		return Failed, err
	}

	completed := false
	defer func() {
		if r := recover(); r != nil {
			token.Exit(Errored)
			panic(r)
		}
		if !completed {
			token.Exit(Inconclusive)
			return
		}
		token.Exit(outcome)
	}()

	outcome = body()
	completed = true
	return outcome, nil
}
