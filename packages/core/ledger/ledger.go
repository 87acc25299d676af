package ledger

import (
	"sort"
	"sync"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TestRecord is the completion state of one test.
type TestRecord struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// GroupRecord is the inventory of runnable tests registered for a group.
type GroupRecord struct {
	Name  descriptor.GroupID
	Tests map[string]*TestRecord
	// order keeps registration order for snapshots.
	order []string
}

// Ledger is the run-scoped completion store.
type Ledger struct {
	mu     sync.Mutex
	runID  string
	scope  string
	groups map[descriptor.GroupID]*GroupRecord
	logger *zap.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithRunID sets the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(l *Ledger) {
		l.runID = id
	}
}

// WithScope names the ledger, e.g. "global" or a group ID for a narrower,
// per-group ledger.
func WithScope(scope string) Option {
	return func(l *Ledger) {
		l.scope = scope
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates an empty ledger for a single run.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		runID:  uuid.New().String(),
		scope:  "global",
		groups: make(map[descriptor.GroupID]*GroupRecord),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(zap.String("run_id", l.runID), zap.String("scope", l.scope))
	return l
}

// RunID returns the identifier of the run this ledger belongs to.
func (l *Ledger) RunID() string {
	return l.runID
}

// Scope returns the ledger's scope name.
func (l *Ledger) Scope() string {
	return l.scope
}

// RegisterGroup ensures a record exists for group and that every runnable
// test in tests has an entry. Skipped tests are never registered, and tests
// belonging to other groups are ignored. Calling it again never resets a
// completed test.
func (l *Ledger) RegisterGroup(group descriptor.GroupID, tests []descriptor.TestDescriptor) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, exists := l.groups[group]
	if !exists {
		record = &GroupRecord{
			Name:  group,
			Tests: make(map[string]*TestRecord),
		}
		l.groups[group] = record
		l.logger.Debug("ledger.register_group", zap.String("group", string(group)))
	}

	for _, t := range tests {
		if t.Group != group || t.Skipped() {
			continue
		}
		if _, known := record.Tests[t.Name]; known {
			continue
		}
		record.Tests[t.Name] = &TestRecord{Name: t.Name}
		record.order = append(record.order, t.Name)
	}
}

// MarkComplete flags a test as completed. Unknown groups or tests are
// ignored. It reports whether the test transitioned to complete.
func (l *Ledger) MarkComplete(group descriptor.GroupID, test string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.groups[group]
	if !ok {
		return false
	}
	t, ok := record.Tests[test]
	if !ok || t.Completed {
		return false
	}

	t.Completed = true
	l.logger.Debug("ledger.mark_complete", zap.String("group", string(group)), zap.String("test", test))
	return true
}

// IsTestComplete reports whether the test is registered and completed.
func (l *Ledger) IsTestComplete(group descriptor.GroupID, test string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.groups[group]
	if !ok {
		return false
	}
	t, ok := record.Tests[test]
	return ok && t.Completed
}

// IsGroupComplete reports whether the group is registered, has at least one
// runnable test, and every registered test completed. An unknown or empty
// group is never complete.
func (l *Ledger) IsGroupComplete(group descriptor.GroupID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.groups[group]
	if !ok || len(record.Tests) == 0 {
		return false
	}
	for _, t := range record.Tests {
		if !t.Completed {
			return false
		}
	}
	return true
}

// IsGroupRegistered reports whether the group has been registered.
func (l *Ledger) IsGroupRegistered(group descriptor.GroupID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.groups[group]
	return ok
}

// GroupSnapshot is a copy of a group record taken at one point in time.
type GroupSnapshot struct {
	Name  descriptor.GroupID `json:"name"`
	Tests []TestRecord       `json:"tests"`
}

// Complete reports whether the snapshot has tests and all of them completed.
func (s GroupSnapshot) Complete() bool {
	if len(s.Tests) == 0 {
		return false
	}
	for _, t := range s.Tests {
		if !t.Completed {
			return false
		}
	}
	return true
}

// Snapshot returns a deep copy of every group record, sorted by group name.
// Tests keep their registration order.
func (l *Ledger) Snapshot() []GroupSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshots := make([]GroupSnapshot, 0, len(l.groups))
	for _, record := range l.groups {
		s := GroupSnapshot{
			Name:  record.Name,
			Tests: make([]TestRecord, 0, len(record.order)),
		}
		for _, name := range record.order {
			s.Tests = append(s.Tests, *record.Tests[name])
		}
		snapshots = append(snapshots, s)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Name < snapshots[j].Name
	})
	return snapshots
}
