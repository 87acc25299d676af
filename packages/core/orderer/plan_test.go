package orderer

import (
	"errors"
	"testing"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampleSuite() ([]descriptor.GroupDescriptor, []descriptor.TestDescriptor) {
	groups := []descriptor.GroupDescriptor{
		descriptor.NewGroup("Tests2", "Tests3"),
		descriptor.NewGroup("Tests1"),
		descriptor.NewGroup("Tests3"),
	}
	tests := []descriptor.TestDescriptor{
		descriptor.NewTest("Tests1", "Test2", "Test1").WithPriority(1),
		descriptor.NewTest("Tests1", "Test1").WithPriority(2),
		descriptor.NewTest("Tests2", "Test1"),
		descriptor.NewTest("Tests3", "Test1"),
		descriptor.NewTest("Tests3", "TestC").WithSkip("Skipping this test."),
	}
	return groups, tests
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyDependency, s)

	s, err = ParseStrategy(" Priority ")
	require.NoError(t, err)
	assert.Equal(t, StrategyPriority, s)

	_, err = ParseStrategy("random")
	assert.Error(t, err)
}

func TestBuild_Dependency(t *testing.T) {
	groups, tests := sampleSuite()

	plan, err := Build(groups, tests, Options{})
	require.NoError(t, err)

	assert.Equal(t, StrategyDependency, plan.Strategy)
	assert.Equal(t, []string{"Tests3", "Tests2", "Tests1"}, groupIDs(plan.GroupDescriptors()))

	g1, ok := plan.Group("Tests1")
	require.True(t, ok)
	assert.Equal(t, []string{"Test1", "Test2"}, names(g1.Tests))
	assert.Len(t, g1.Inventory, 2)

	g3, ok := plan.Group("Tests3")
	require.True(t, ok)
	assert.Equal(t, []string{"Test1", "TestC"}, names(g3.Tests), "skipped tests stay in the plan")

	assert.Equal(t, 5, plan.Len())
	assert.Len(t, plan.Tests(), 5)
	assert.Empty(t, plan.Unresolved)
	assert.Empty(t, plan.Cycles)
}

func TestBuild_Priority(t *testing.T) {
	groups, tests := sampleSuite()

	plan, err := Build(groups, tests, Options{Strategy: StrategyPriority})
	require.NoError(t, err)

	assert.Equal(t, []string{"Tests2", "Tests1", "Tests3"}, groupIDs(plan.GroupDescriptors()),
		"priority strategy keeps groups in discovery order")

	g1, _ := plan.Group("Tests1")
	assert.Equal(t, []string{"Test2", "Test1"}, names(g1.Tests), "dependencies are not consulted")
}

func TestPlan_Gate(t *testing.T) {
	groups := []descriptor.GroupDescriptor{
		descriptor.NewGroup("A"),
		descriptor.NewGroup("B", "A"),
	}
	tests := []descriptor.TestDescriptor{
		descriptor.NewTest("A", "T"),
		descriptor.NewTest("B", "T1", "T2"),
		descriptor.NewTest("B", "T2"),
	}

	t.Run("dependency strategy keeps declared edges", func(t *testing.T) {
		plan, err := Build(groups, tests, Options{})
		require.NoError(t, err)

		gp, _ := plan.Group("B")
		td, group := plan.Gate(gp, tests[1])
		assert.Equal(t, []string{"T2"}, td.DependsOn)
		assert.Equal(t, []descriptor.GroupID{"A"}, group.DependsOn)
	})

	t.Run("priority strategy drops every edge", func(t *testing.T) {
		plan, err := Build(groups, tests, Options{Strategy: StrategyPriority})
		require.NoError(t, err)

		gp, _ := plan.Group("B")
		td, group := plan.Gate(gp, tests[1])
		assert.Empty(t, td.DependsOn)
		assert.Empty(t, group.DependsOn)
		assert.Equal(t, "B.T1", td.QualifiedName())
		assert.Equal(t, []string{"T2"}, tests[1].DependsOn, "input descriptor is unchanged")
		assert.Equal(t, []descriptor.GroupID{"A"}, gp.Group.DependsOn)
	})
}

func TestBuild_ImplicitGroups(t *testing.T) {
	tests := []descriptor.TestDescriptor{
		descriptor.NewTest("b", "1"),
		descriptor.NewTest("a", "1"),
		descriptor.NewTest("b", "2"),
	}

	plan, err := Build([]descriptor.GroupDescriptor{descriptor.NewGroup("a")}, tests, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, groupIDs(plan.GroupDescriptors()))

	_, ok := plan.Group("missing")
	assert.False(t, ok)
}

func TestBuild_BestEffortCycles(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	groups := []descriptor.GroupDescriptor{
		descriptor.NewGroup("a", "b"),
		descriptor.NewGroup("b", "a"),
	}
	tests := []descriptor.TestDescriptor{
		descriptor.NewTest("a", "X", "Y"),
		descriptor.NewTest("a", "Y", "X"),
	}

	plan, err := Build(groups, tests, Options{Logger: zap.New(core)})
	require.NoError(t, err)
	assert.Len(t, plan.Cycles, 2)
	assert.Equal(t, 2, logs.FilterMessage("plan.cycle").Len())
	assert.Equal(t, 2, plan.Len())
}

func TestBuild_Strict(t *testing.T) {
	t.Run("group cycle", func(t *testing.T) {
		groups := []descriptor.GroupDescriptor{
			descriptor.NewGroup("a", "b"),
			descriptor.NewGroup("b", "a"),
		}
		_, err := Build(groups, nil, Options{Strict: true})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCycle))

		var cycleErr *CycleError
		require.True(t, errors.As(err, &cycleErr))
		assert.Equal(t, "group", cycleErr.Kind)
	})

	t.Run("test cycle", func(t *testing.T) {
		tests := []descriptor.TestDescriptor{
			descriptor.NewTest("a", "X", "Y"),
			descriptor.NewTest("a", "Y", "X"),
		}
		_, err := Build(nil, tests, Options{Strict: true})
		var cycleErr *CycleError
		require.True(t, errors.As(err, &cycleErr))
		assert.Equal(t, []string{"a.X", "a.Y", "a.X"}, cycleErr.Path)
	})

	t.Run("unresolved reference", func(t *testing.T) {
		groups := []descriptor.GroupDescriptor{descriptor.NewGroup("a", "ghost")}
		_, err := Build(groups, nil, Options{Strict: true})
		assert.True(t, errors.Is(err, ErrUnresolved))
	})

	t.Run("priority strategy skips dependency checks", func(t *testing.T) {
		groups := []descriptor.GroupDescriptor{descriptor.NewGroup("a", "ghost")}
		_, err := Build(groups, nil, Options{Strict: true, Strategy: StrategyPriority})
		assert.NoError(t, err)
	})
}

func TestBuild_WarnsOnUnresolved(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	tests := []descriptor.TestDescriptor{
		descriptor.NewTest("g", "A", "Nope"),
	}
	plan, err := Build(nil, tests, Options{Logger: zap.New(core)})
	require.NoError(t, err)
	require.Len(t, plan.Unresolved, 1)

	entries := logs.FilterMessage("plan.unresolved").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Nope", entries[0].ContextMap()["target"])
}
