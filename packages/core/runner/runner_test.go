package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/depspec/packages/core/guard"
	"github.com/abdul-hamid-achik/depspec/packages/core/ledger"
	"github.com/abdul-hamid-achik/depspec/packages/core/orderer"
	"github.com/abdul-hamid-achik/depspec/packages/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runManifest(t *testing.T, cfg *Config, content string) (*RunResult, string) {
	t.Helper()
	dir := t.TempDir()
	path := writeManifest(t, dir, "suite.yaml", content)

	result, err := NewRunner(cfg).RunFile(context.Background(), path)
	require.NoError(t, err)
	return result, dir
}

func names(results []*TestResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.QualifiedName()
	}
	return out
}

func groupIDs(plan *orderer.Plan) []string {
	out := make([]string, len(plan.Groups))
	for i, gp := range plan.Groups {
		out[i] = string(gp.Group.ID)
	}
	return out
}

func TestRun_DependencyOrder(t *testing.T) {
	result, dir := runManifest(t, nil, `
groups:
  - id: A
    tests:
      - name: Test1
        run: echo Test1 >> order.log
        dependsOn: [Test2]
      - name: Test2
        run: echo Test2 >> order.log
        dependsOn: [Test3]
      - name: Test3
        run: echo Test3 >> order.log
`)

	assert.True(t, result.Success())
	assert.Equal(t, 3, result.Passed)
	assert.Equal(t, []string{"A.Test3", "A.Test2", "A.Test1"}, names(result.Results))

	data, err := os.ReadFile(filepath.Join(dir, "order.log"))
	require.NoError(t, err)
	assert.Equal(t, "Test3\nTest2\nTest1\n", string(data))

	require.Len(t, result.Ledger, 1)
	assert.True(t, result.Ledger[0].Complete())
	assert.Equal(t, int64(3), result.Stats.Count)
}

func TestRun_FailedTestBlocksDependents(t *testing.T) {
	result, _ := runManifest(t, nil, `
groups:
  - id: A
    tests:
      - name: Test3
        run: exit 3
      - name: Test2
        run: "true"
        dependsOn: [Test3]
      - name: Test1
        run: "true"
        dependsOn: [Test2]
`)

	assert.False(t, result.Success())
	require.Len(t, result.Results, 3)

	first := result.Results[0]
	assert.Equal(t, guard.Failed, first.Outcome)
	assert.Equal(t, 3, first.ExitCode)
	assert.False(t, first.Blocked)

	for _, res := range result.Results[1:] {
		assert.True(t, res.Blocked, res.Name)
		assert.True(t, errors.Is(res.Error, guard.ErrUnmetTestDependency), res.Name)
	}
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.Blocked)
	assert.Equal(t, int64(1), result.Stats.Count, "blocked tests are not timed")
}

func TestRun_FailedGroupBlocksDependentGroup(t *testing.T) {
	result, _ := runManifest(t, nil, `
groups:
  - id: B
    dependsOn: [A]
    tests:
      - name: T
        run: "true"
  - id: A
    tests:
      - name: T
        run: "false"
`)

	assert.Equal(t, []string{"A.T", "B.T"}, names(result.Results))
	blocked := result.Results[1]
	assert.True(t, blocked.Blocked)
	assert.True(t, errors.Is(blocked.Error, guard.ErrUnmetGroupDependency))
	assert.Contains(t, blocked.Error.Error(), `test group "A" must complete first`)
}

func TestRun_SkipAndMissingCommand(t *testing.T) {
	result, _ := runManifest(t, nil, `
groups:
  - id: A
    tests:
      - name: Legacy
        skip: flaky upstream
      - name: Placeholder
      - name: Real
        run: "true"
`)

	require.Len(t, result.Results, 3)
	assert.Equal(t, guard.Skipped, result.Results[0].Outcome)
	assert.Equal(t, "flaky upstream", result.Results[0].SkipReason)
	assert.Equal(t, guard.Inconclusive, result.Results[1].Outcome)
	assert.Equal(t, guard.Passed, result.Results[2].Outcome)
	assert.Equal(t, 2, result.Skipped)
	assert.True(t, result.Success())
	assert.False(t, result.Ledger[0].Complete(), "inconclusive tests never complete")
}

func TestRun_BlankCommandIsInconclusive(t *testing.T) {
	result, _ := runManifest(t, nil, `
groups:
  - id: g
    tests:
      - name: A
        run: "   "
      - name: B
        run: "true"
        dependsOn: [A]
`)

	require.Len(t, result.Results, 2)
	assert.Equal(t, guard.Inconclusive, result.Results[0].Outcome)
	assert.Equal(t, "no run command", result.Results[0].SkipReason)
	assert.True(t, result.Results[1].Blocked)
	assert.Equal(t, 1, result.Blocked)
}

func TestRun_Timeout(t *testing.T) {
	result, _ := runManifest(t, nil, `
groups:
  - id: A
    tests:
      - name: Slow
        run: sleep 5
        timeout: 100ms
`)

	require.Len(t, result.Results, 1)
	res := result.Results[0]
	assert.Equal(t, guard.Errored, res.Outcome)
	require.Error(t, res.Error)
	assert.Contains(t, res.Error.Error(), "timed out")
	assert.Less(t, res.Duration, 4*time.Second)
}

func TestRun_Bail(t *testing.T) {
	result, _ := runManifest(t, &Config{Bail: true}, `
groups:
  - id: A
    tests:
      - name: Broken
        run: "false"
      - name: Next
        run: "true"
  - id: B
    tests:
      - name: T
        run: "true"
`)

	assert.Equal(t, []string{"A.Broken"}, names(result.Results))
}

func TestRun_NameFilterPullsDependencies(t *testing.T) {
	result, _ := runManifest(t, &Config{NameFilter: "Add"}, `
groups:
  - id: Users
    tests:
      - name: Create
        run: "true"
  - id: Cart
    dependsOn: [Users]
    tests:
      - name: Add
        run: "true"
        dependsOn: [Open]
      - name: Open
        run: "true"
      - name: Remove
        run: "true"
`)

	byName := map[string]*TestResult{}
	for _, r := range result.Results {
		byName[r.QualifiedName()] = r
	}

	assert.Equal(t, guard.Passed, byName["Users.Create"].Outcome)
	assert.Equal(t, guard.Passed, byName["Cart.Open"].Outcome)
	assert.Equal(t, guard.Passed, byName["Cart.Add"].Outcome)
	assert.Equal(t, guard.Skipped, byName["Cart.Remove"].Outcome)
	assert.Equal(t, "filtered out", byName["Cart.Remove"].SkipReason)
	assert.True(t, result.Success())
}

func TestRun_TagsFilter(t *testing.T) {
	result, _ := runManifest(t, &Config{TagsFilter: []string{"smoke"}}, `
groups:
  - id: A
    tests:
      - name: Fast
        run: "true"
        tags: [smoke]
      - name: Full
        run: "true"
`)

	assert.Equal(t, guard.Passed, result.Results[0].Outcome)
	assert.Equal(t, guard.Skipped, result.Results[1].Outcome)
}

func TestRun_EnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GREETING=hello\n"), 0644))
	path := writeManifest(t, dir, "suite.yaml", `
groups:
  - id: A
    tests:
      - name: T
        run: test "$GREETING" = hello && test "$DEPSPEC_GROUP" = A && test "$DEPSPEC_TEST" = T && test "$EXTRA" = 1
`)

	r := NewRunner(&Config{EnvFile: ".env", Env: map[string]string{"EXTRA": "1"}})
	result, err := r.RunFile(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, result.Success(), result.Results[0].Output)
}

func TestRun_MissingEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "suite.yaml", "groups: []")

	_, err := NewRunner(&Config{EnvFile: "missing.env"}).RunFile(context.Background(), path)
	assert.ErrorIs(t, err, ErrEnvFile)
}

func TestRun_RateLimit(t *testing.T) {
	start := time.Now()
	result, _ := runManifest(t, &Config{Rate: 20}, `
groups:
  - id: g
    tests:
      - name: a
        run: "true"
      - name: b
        run: "true"
      - name: c
        run: "true"
`)
	assert.Equal(t, 3, result.Passed)
	// The first start is free; the other two wait 50ms each.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRun_RateLimitDeadline(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "suite.yaml", `
groups:
  - id: g
    tests:
      - name: a
        run: "true"
      - name: b
        run: "true"
`)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The second start would wait far past the deadline, so Wait fails fast.
	result, err := NewRunner(&Config{Rate: 0.001}).RunFile(ctx, path)
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	assert.Equal(t, guard.Passed, result.Results[0].Outcome)
	assert.Equal(t, guard.Inconclusive, result.Results[1].Outcome)
	assert.ErrorContains(t, result.Results[1].Error, "rate limiter")
}

func TestRun_Parallel(t *testing.T) {
	result, _ := runManifest(t, &Config{Parallel: true, Concurrency: 2}, `
groups:
  - id: C
    dependsOn: [A, B]
    tests:
      - name: T
        run: "true"
  - id: A
    tests:
      - name: T
        run: sleep 0.1
  - id: B
    tests:
      - name: T
        run: sleep 0.1
`)

	assert.True(t, result.Success())
	assert.Equal(t, []string{"A.T", "B.T", "C.T"}, names(result.Results))
	assert.Equal(t, int64(3), result.Stats.Count)
}

func TestRun_ParallelBail(t *testing.T) {
	result, _ := runManifest(t, &Config{Parallel: true, Bail: true}, `
groups:
  - id: A
    tests:
      - name: T
        run: "false"
  - id: B
    dependsOn: [A]
    tests:
      - name: T
        run: "true"
`)

	assert.Equal(t, []string{"A.T"}, names(result.Results))
	assert.False(t, result.Success())
}

func TestRun_StrictCycle(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "suite.yaml", `
groups:
  - id: A
    tests:
      - name: Test1
        run: "true"
        dependsOn: [Test2]
      - name: Test2
        run: "true"
        dependsOn: [Test1]
`)

	_, err := NewRunner(&Config{Strict: true}).RunFile(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, orderer.ErrCycle))
}

func TestRun_PriorityStrategy(t *testing.T) {
	result, _ := runManifest(t, &Config{Strategy: orderer.StrategyPriority}, `
groups:
  - id: A
    tests:
      - name: Test1
        run: "true"
        priority: -1
      - name: Test2
        run: "true"
      - name: Test3
        run: "true"
        priority: 1
      - name: Test4
        run: "true"
        priority: -1
`)

	assert.Equal(t, []string{"A.Test1", "A.Test4", "A.Test2", "A.Test3"}, names(result.Results))
}

func TestRun_PriorityStrategyIgnoresDependencies(t *testing.T) {
	result, _ := runManifest(t, &Config{Strategy: orderer.StrategyPriority}, `
groups:
  - id: B
    dependsOn: [A]
    tests:
      - name: T
        run: "true"
  - id: A
    tests:
      - name: Late
        run: "true"
        priority: 1
      - name: Early
        run: "true"
        dependsOn: [Late]
`)

	assert.Equal(t, []string{"B.T", "A.Early", "A.Late"}, names(result.Results))
	assert.True(t, result.Success())
	assert.Zero(t, result.Blocked)
}

func TestRun_Hooks(t *testing.T) {
	t.Run("before and after", func(t *testing.T) {
		result, dir := runManifest(t, nil, `
groups:
  - id: A
    before: [touch ready]
    after: [rm ready, "-false", "false"]
    tests:
      - name: T
        run: test -f ready
`)

		assert.True(t, result.Success())
		require.Len(t, result.HookErrors, 1)
		assert.Contains(t, result.HookErrors[0].Error(), "after hook failed")
		assert.NoFileExists(t, filepath.Join(dir, "ready"))
	})

	t.Run("failing before hook errors the group", func(t *testing.T) {
		result, _ := runManifest(t, nil, `
groups:
  - id: A
    before: ["exit 1"]
    tests:
      - name: T
        run: "true"
`)

		require.Len(t, result.Results, 1)
		assert.Equal(t, guard.Errored, result.Results[0].Outcome)
		assert.Contains(t, result.Results[0].Error.Error(), "before hook failed")
	})
}

func TestRun_SharedLedgerAcrossManifests(t *testing.T) {
	dir := t.TempDir()
	first := writeManifest(t, dir, "first.yaml", `
groups:
  - id: Users
    tests:
      - name: Create
        run: "true"
`)
	second := writeManifest(t, dir, "second.yaml", `
groups:
  - id: Cart
    dependsOn: [Users]
    tests:
      - name: Open
        run: "true"
`)

	shared := ledger.New()
	r := NewRunner(&Config{Ledger: shared})

	_, err := r.RunFile(context.Background(), first)
	require.NoError(t, err)
	result, err := r.RunFile(context.Background(), second)
	require.NoError(t, err)

	assert.True(t, result.Success())
	assert.Equal(t, shared.RunID(), result.RunID)
	assert.Same(t, shared, r.Ledger())
}

func TestRunAll_GroupDependencyAcrossManifests(t *testing.T) {
	dir := t.TempDir()
	checkoutPath := writeManifest(t, dir, "a.yaml", `
groups:
  - id: app.Checkout
    dependsOn: [app.Users]
    tests:
      - name: Pay
        run: test -f user
`)
	usersPath := writeManifest(t, dir, "b.yaml", `
groups:
  - id: app.Users
    tests:
      - name: Create
        run: touch user
`)

	load := func() []*manifest.Manifest {
		checkout, err := manifest.Load(checkoutPath)
		require.NoError(t, err)
		users, err := manifest.Load(usersPath)
		require.NoError(t, err)
		return []*manifest.Manifest{checkout, users}
	}

	for _, strict := range []bool{false, true} {
		t.Run(fmt.Sprintf("strict=%v", strict), func(t *testing.T) {
			require.NoError(t, os.RemoveAll(filepath.Join(dir, "user")))

			results, err := NewRunner(&Config{Strict: strict}).RunAll(context.Background(), load()...)
			require.NoError(t, err)
			require.Len(t, results, 2)

			checkout, users := results[0], results[1]
			assert.Equal(t, checkoutPath, checkout.File)
			assert.True(t, checkout.Success(), "dependent group in the first file runs after its dependency")
			assert.Equal(t, 1, checkout.Passed)
			assert.Equal(t, 1, users.Passed)
			assert.Same(t, checkout.Plan, users.Plan)
			assert.Equal(t, []string{"app.Users", "app.Checkout"}, groupIDs(checkout.Plan))
		})
	}
}

func TestRunAll_DuplicateGroupAcrossManifests(t *testing.T) {
	first := &manifest.Manifest{Path: "a.yaml", Groups: []manifest.Group{{ID: "A"}}}
	second := &manifest.Manifest{Path: "b.yaml", Groups: []manifest.Group{{ID: "A"}}}

	results, err := NewRunner(nil).RunAll(context.Background(), first, second)
	assert.Nil(t, results)
	assert.ErrorIs(t, err, manifest.ErrDuplicateGroup)
}

func TestRun_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "suite.yaml", `
groups:
  - id: A
    tests:
      - name: T
        run: "true"
`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewRunner(nil).RunFile(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Empty(t, result.Results)
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    bool
	}{
		{"CreateUser", "", true},
		{"CreateUser", "*", true},
		{"CreateUser", "CreateUser", true},
		{"CreateUser", "Create*", true},
		{"CreateUser", "*User", true},
		{"CreateUser", "*eat*", true},
		{"CreateUser", "Delete*", false},
		{"CreateUser", "*Admin", false},
		{"CreateUser", "*xyz*", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesPattern(tt.name, tt.pattern))
		})
	}
}

func TestDurationRecorder(t *testing.T) {
	rec := newDurationRecorder()
	assert.Equal(t, Stats{}, rec.Stats())

	rec.Record(10 * time.Millisecond)
	rec.Record(20 * time.Millisecond)
	rec.Record(0)

	stats := rec.Stats()
	assert.Equal(t, int64(3), stats.Count)
	assert.Equal(t, time.Microsecond, stats.Min)
	assert.InDelta(t, float64(20*time.Millisecond), float64(stats.Max), float64(100*time.Microsecond))
}
