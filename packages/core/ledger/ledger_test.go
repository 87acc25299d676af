package ledger

import (
	"fmt"
	"sync"
	"testing"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func inventory(group descriptor.GroupID, names ...string) []descriptor.TestDescriptor {
	tests := make([]descriptor.TestDescriptor, len(names))
	for i, n := range names {
		tests[i] = descriptor.NewTest(group, n)
	}
	return tests
}

func TestNew(t *testing.T) {
	t.Run("generates run id", func(t *testing.T) {
		a := New()
		b := New()
		assert.NotEmpty(t, a.RunID())
		assert.NotEqual(t, a.RunID(), b.RunID())
		assert.Equal(t, "global", a.Scope())
	})

	t.Run("with options", func(t *testing.T) {
		l := New(WithRunID("run-1"), WithScope("acme.Cart"), WithLogger(nil))
		assert.Equal(t, "run-1", l.RunID())
		assert.Equal(t, "acme.Cart", l.Scope())
	})
}

func TestLedger_RegisterGroup(t *testing.T) {
	l := New()
	tests := append(inventory("g", "A", "B"), descriptor.NewTest("g", "S").WithSkip("later"))
	l.RegisterGroup("g", tests)

	require.True(t, l.IsGroupRegistered("g"))
	snap := l.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, []TestRecord{{Name: "A"}, {Name: "B"}}, snap[0].Tests, "skipped tests are never registered")
}

func TestLedger_RegisterGroup_IgnoresOtherGroups(t *testing.T) {
	l := New()
	l.RegisterGroup("g", append(inventory("g", "A"), inventory("other", "B")...))

	snap := l.Snapshot()
	require.Len(t, snap, 1)
	assert.Len(t, snap[0].Tests, 1)
	assert.False(t, l.IsGroupRegistered("other"))
}

func TestLedger_RegisterGroup_Idempotent(t *testing.T) {
	l := New()
	l.RegisterGroup("g", inventory("g", "A", "B"))
	require.True(t, l.MarkComplete("g", "A"))

	l.RegisterGroup("g", inventory("g", "A", "B"))
	assert.True(t, l.IsTestComplete("g", "A"), "re-registering must not reset a completed test")
	assert.False(t, l.IsTestComplete("g", "B"))
}

func TestLedger_RegisterGroup_OnlyGrows(t *testing.T) {
	l := New()
	l.RegisterGroup("g", inventory("g", "A"))
	l.MarkComplete("g", "A")
	assert.True(t, l.IsGroupComplete("g"))

	l.RegisterGroup("g", inventory("g", "B"))
	assert.False(t, l.IsGroupComplete("g"), "newly discovered tests keep the group incomplete")

	l.RegisterGroup("g", nil)
	snap := l.Snapshot()
	assert.Len(t, snap[0].Tests, 2)
}

func TestLedger_MarkComplete(t *testing.T) {
	l := New()
	l.RegisterGroup("g", inventory("g", "A"))

	assert.False(t, l.MarkComplete("unknown", "A"), "unknown group is a no-op")
	assert.False(t, l.MarkComplete("g", "unknown"), "unknown test is a no-op")
	assert.True(t, l.MarkComplete("g", "A"))
	assert.False(t, l.MarkComplete("g", "A"), "second completion does not transition")
	assert.True(t, l.IsTestComplete("g", "A"))
}

func TestLedger_IsTestComplete_Unknown(t *testing.T) {
	l := New()
	assert.False(t, l.IsTestComplete("g", "A"))

	l.RegisterGroup("g", inventory("g", "A"))
	assert.False(t, l.IsTestComplete("g", "B"))
}

func TestLedger_SkippedTestNeverComplete(t *testing.T) {
	l := New()
	l.RegisterGroup("g", []descriptor.TestDescriptor{descriptor.NewTest("g", "S").WithSkip("off")})

	assert.False(t, l.MarkComplete("g", "S"))
	assert.False(t, l.IsTestComplete("g", "S"))
}

func TestLedger_IsGroupComplete(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(l *Ledger)
		expected bool
	}{
		{
			name:     "unregistered group",
			setup:    func(l *Ledger) {},
			expected: false,
		},
		{
			name: "registered without runnable tests",
			setup: func(l *Ledger) {
				l.RegisterGroup("g", []descriptor.TestDescriptor{descriptor.NewTest("g", "S").WithSkip("x")})
			},
			expected: false,
		},
		{
			name: "partially complete",
			setup: func(l *Ledger) {
				l.RegisterGroup("g", inventory("g", "A", "B"))
				l.MarkComplete("g", "A")
			},
			expected: false,
		},
		{
			name: "fully complete",
			setup: func(l *Ledger) {
				l.RegisterGroup("g", inventory("g", "A", "B"))
				l.MarkComplete("g", "A")
				l.MarkComplete("g", "B")
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New()
			tt.setup(l)
			assert.Equal(t, tt.expected, l.IsGroupComplete("g"))
		})
	}
}

func TestLedger_Snapshot(t *testing.T) {
	l := New()
	l.RegisterGroup("b", inventory("b", "Z", "Y"))
	l.RegisterGroup("a", inventory("a", "X"))
	l.MarkComplete("a", "X")

	snap := l.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, descriptor.GroupID("a"), snap[0].Name)
	assert.True(t, snap[0].Complete())
	assert.Equal(t, []TestRecord{{Name: "Z"}, {Name: "Y"}}, snap[1].Tests)
	assert.False(t, snap[1].Complete())

	snap[1].Tests[0].Completed = true
	assert.False(t, l.IsTestComplete("b", "Z"), "snapshots are copies")

	assert.False(t, GroupSnapshot{}.Complete())
}

func TestLedger_LogsTransitions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(WithLogger(zap.New(core)), WithRunID("r1"))

	l.RegisterGroup("g", inventory("g", "A"))
	l.MarkComplete("g", "A")
	l.MarkComplete("g", "A")

	entries := logs.FilterMessage("ledger.mark_complete").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "r1", entries[0].ContextMap()["run_id"])
	assert.Equal(t, "A", entries[0].ContextMap()["test"])
}

func TestLedger_ConcurrentAccess(t *testing.T) {
	l := New()
	const groups = 8
	const perGroup = 25

	var wg sync.WaitGroup
	for g := 0; g < groups; g++ {
		group := descriptor.GroupID(fmt.Sprintf("g%d", g))
		names := make([]string, perGroup)
		for i := range names {
			names[i] = fmt.Sprintf("t%d", i)
		}
		tests := inventory(group, names...)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, test := range tests {
				l.RegisterGroup(group, tests)
				assert.False(t, l.IsTestComplete(group, test.Name))
				assert.True(t, l.MarkComplete(group, test.Name))
				assert.True(t, l.IsTestComplete(group, test.Name))
			}
		}()
	}
	wg.Wait()

	for g := 0; g < groups; g++ {
		assert.True(t, l.IsGroupComplete(descriptor.GroupID(fmt.Sprintf("g%d", g))))
	}
}
