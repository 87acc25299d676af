package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestDescriptor_Priority(t *testing.T) {
	t.Run("untagged defaults to zero", func(t *testing.T) {
		d := NewTest("g", "A")
		assert.Equal(t, 0, d.Priority())
		assert.False(t, d.HasPriority())
	})

	t.Run("explicit priority", func(t *testing.T) {
		d := NewTest("g", "A").WithPriority(-5)
		assert.Equal(t, -5, d.Priority())
		assert.True(t, d.HasPriority())
	})

	t.Run("explicit zero is still tagged", func(t *testing.T) {
		d := NewTest("g", "A").WithPriority(0)
		assert.Equal(t, 0, d.Priority())
		assert.True(t, d.HasPriority())
	})
}

func TestTestDescriptor_Dependencies(t *testing.T) {
	d := NewTest("g", "T3", "T1", "", "T2")
	assert.Equal(t, []string{"T1", "T2"}, d.Dependencies())

	deps := d.Dependencies()
	deps[0] = "changed"
	assert.Equal(t, []string{"T1", "T2"}, d.Dependencies(), "returned slice must be a copy")
}

func TestTestDescriptor_Skipped(t *testing.T) {
	assert.False(t, NewTest("g", "A").Skipped())
	assert.True(t, NewTest("g", "A").WithSkip("flaky").Skipped())
}

func TestTestDescriptor_QualifiedName(t *testing.T) {
	assert.Equal(t, "acme.Cart.Add", NewTest("acme.Cart", "Add").QualifiedName())
}

func TestGroupDescriptor(t *testing.T) {
	g := NewGroup("acme.Cart", "acme.Users", "", "acme.Auth")
	assert.Equal(t, "acme.Cart", g.Key())
	assert.Equal(t, []string{"acme.Users", "acme.Auth"}, g.Dependencies())
	assert.Equal(t, "acme.Cart", g.Name())

	g.DisplayName = "Cart tests"
	assert.Equal(t, "Cart tests", g.Name())
	assert.Equal(t, "acme.Cart", g.Key(), "identity never comes from the display name")
}

func TestRunnableAndInGroup(t *testing.T) {
	tests := []TestDescriptor{
		NewTest("a", "1"),
		NewTest("b", "2"),
		NewTest("a", "3").WithSkip("nope"),
		NewTest("a", "4"),
	}

	inA := InGroup(tests, "a")
	assert.Len(t, inA, 3)

	runnable := Runnable(inA)
	var names []string
	for _, r := range runnable {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"1", "4"}, names)
}

func TestDescriptorsSatisfyViews(t *testing.T) {
	var _ Node = TestDescriptor{}
	var _ Prioritized = TestDescriptor{}
	var _ Skippable = TestDescriptor{}
	var _ Node = GroupDescriptor{}
}
