package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
	"github.com/abdul-hamid-achik/depspec/packages/core/env"
	"github.com/abdul-hamid-achik/depspec/packages/core/guard"
	"github.com/abdul-hamid-achik/depspec/packages/core/ledger"
	"github.com/abdul-hamid-achik/depspec/packages/core/orderer"
	"github.com/abdul-hamid-achik/depspec/packages/manifest"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// DefaultConcurrency is the default number of concurrent groups in parallel mode
	DefaultConcurrency = 4
	// DefaultShell runs test commands
	DefaultShell = "sh"
)

var (
	// ErrEnvFile wraps failures to read the configured env file.
	ErrEnvFile = errors.New("loading env file")

	// errBail stops a parallel level after the first failure.
	errBail = errors.New("bail")
)

type Runner struct {
	config  *Config
	ledger  *ledger.Ledger
	logger  *zap.Logger
	limiter *rate.Limiter
}

type Config struct {
	Strategy orderer.Strategy
	Strict   bool
	Bail     bool
	// NameFilter matches test names or qualified names; "*" globs at either
	// end are supported.
	NameFilter  string
	TagsFilter  []string
	Parallel    bool
	Concurrency int
	// Timeout applies to every test and hook without its own timeout.
	Timeout time.Duration
	Shell   string
	// EnvFile is a .env file loaded into every command. Relative paths are
	// resolved against the manifest directory.
	EnvFile string
	Env     map[string]string
	Logger  *zap.Logger
	// Ledger is shared by every manifest run by this runner. A fresh one is
	// created when nil.
	Ledger *ledger.Ledger
	// Rate caps how many test commands start per second across all groups.
	// Zero means unlimited.
	Rate float64
}

func NewRunner(cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	l := cfg.Ledger
	if l == nil {
		l = ledger.New(ledger.WithLogger(logger))
	}

	r := &Runner{
		config: cfg,
		ledger: l,
		logger: logger,
	}
	if cfg.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	return r
}

// Ledger returns the run-wide completion ledger.
func (r *Runner) Ledger() *ledger.Ledger {
	return r.ledger
}

type RunResult struct {
	File      string
	Name      string
	RunID     string
	StartedAt time.Time
	Plan      *orderer.Plan
	Results   []*TestResult
	Duration  time.Duration
	Passed    int
	Failed    int
	Errored   int
	Blocked   int
	Skipped   int
	Stats     Stats
	// HookErrors holds failures of after hooks, which do not fail tests.
	HookErrors []error
	Ledger     []ledger.GroupSnapshot
}

// Success reports whether no test failed, errored or was blocked.
func (r *RunResult) Success() bool {
	return r.Failed == 0 && r.Errored == 0 && r.Blocked == 0
}

// Total returns the number of reported tests.
func (r *RunResult) Total() int {
	return len(r.Results)
}

func (r *RunResult) add(res *TestResult) {
	r.Results = append(r.Results, res)
	switch {
	case res.Blocked:
		r.Blocked++
	case res.Outcome == guard.Passed:
		r.Passed++
	case res.Outcome == guard.Failed:
		r.Failed++
	case res.Outcome == guard.Errored:
		r.Errored++
	default:
		r.Skipped++
	}
}

type TestResult struct {
	Group      descriptor.GroupID
	Name       string
	Command    string
	Outcome    guard.Outcome
	SkipReason string
	// Blocked is set when the guard refused to run the test.
	Blocked  bool
	Duration time.Duration
	Output   string
	ExitCode int
	Error    error
}

// QualifiedName returns "group.name".
func (t *TestResult) QualifiedName() string {
	return descriptor.Qualify(t.Group, t.Name)
}

// Passed reports whether the test passed.
func (t *TestResult) Passed() bool {
	return t.Outcome == guard.Passed
}

// RunFile loads a manifest and runs it.
func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}
	return r.Run(ctx, m)
}

// Run plans and executes every test of m. A planning error (strict mode)
// or an unreadable env file is returned before any test runs. When ctx is
// canceled the partial result is returned with ctx.Err().
func (r *Runner) Run(ctx context.Context, m *manifest.Manifest) (*RunResult, error) {
	results, err := r.RunAll(ctx, m)
	if len(results) == 0 {
		return nil, err
	}
	return results[0], err
}

// Plan orders the tests of every manifest as one plan.
func (r *Runner) Plan(set *manifest.Set) (*orderer.Plan, error) {
	groups, tests := set.Descriptors()
	return orderer.Build(groups, tests, orderer.Options{
		Strategy: r.config.Strategy,
		Strict:   r.config.Strict,
		Logger:   r.logger,
	})
}

// RunAll plans the manifests together, so a group may depend on a group of
// another manifest, and executes the plan. One result is returned per
// manifest in the order given; each is counted only over its own groups and
// shares the plan of the whole run. Errors follow Run.
func (r *Runner) RunAll(ctx context.Context, ms ...*manifest.Manifest) ([]*RunResult, error) {
	start := time.Now()

	set, err := manifest.Combine(ms...)
	if err != nil {
		return nil, err
	}
	plan, err := r.Plan(set)
	if err != nil {
		return nil, err
	}

	ex := &execution{
		runner:    r,
		set:       set,
		plan:      plan,
		guard:     guard.New(r.ledger, guard.WithLogger(r.logger)),
		selected:  r.selection(set, plan),
		environs:  make(map[*manifest.Manifest][]string, len(ms)),
		results:   make(map[*manifest.Manifest]*RunResult, len(ms)),
		recorders: make(map[*manifest.Manifest]*durationRecorder, len(ms)),
		start:     start,
	}

	results := make([]*RunResult, 0, len(set.Manifests))
	for _, m := range set.Manifests {
		environ, err := r.environment(m)
		if err != nil {
			return nil, err
		}
		ex.environs[m] = environ
		ex.recorders[m] = newDurationRecorder()
		result := &RunResult{
			File:      m.Path,
			Name:      m.DisplayName(),
			RunID:     r.ledger.RunID(),
			StartedAt: start,
			Plan:      plan,
		}
		ex.results[m] = result
		results = append(results, result)
	}

	r.logger.Info("run.start",
		zap.String("run_id", r.ledger.RunID()),
		zap.Int("manifests", len(results)),
		zap.Int("groups", len(plan.Groups)),
		zap.Int("tests", plan.Len()),
		zap.Bool("parallel", r.config.Parallel),
	)

	if r.config.Parallel {
		ex.runParallel(ctx)
	} else {
		ex.runSequential(ctx)
	}

	snapshot := r.ledger.Snapshot()
	for _, m := range set.Manifests {
		result := ex.results[m]
		if result.Duration == 0 {
			result.Duration = time.Since(start)
		}
		result.Stats = ex.recorders[m].Stats()
		result.Ledger = snapshot

		r.logger.Info("run.finish",
			zap.String("run_id", result.RunID),
			zap.String("manifest", result.Name),
			zap.Int("passed", result.Passed),
			zap.Int("failed", result.Failed),
			zap.Int("errored", result.Errored),
			zap.Int("blocked", result.Blocked),
			zap.Int("skipped", result.Skipped),
			zap.Duration("duration", result.Duration),
		)
	}

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (r *Runner) environment(m *manifest.Manifest) ([]string, error) {
	vars := make(map[string]string)

	if r.config.EnvFile != "" {
		path := r.config.EnvFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.Dir(), path)
		}
		fileVars, err := env.LoadDotEnv(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEnvFile, err)
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}

	environ := env.Merge(os.Environ(), vars)
	for k, v := range r.config.Env {
		environ = append(environ, k+"="+v)
	}
	return environ, nil
}

// execution is the state of one run over a set of manifests.
type execution struct {
	runner    *Runner
	set       *manifest.Set
	plan      *orderer.Plan
	guard     *guard.Guard
	selected  map[string]bool
	environs  map[*manifest.Manifest][]string
	results   map[*manifest.Manifest]*RunResult
	recorders map[*manifest.Manifest]*durationRecorder
	start     time.Time
}

// groupRun collects the outcome of one group.
type groupRun struct {
	manifest  *manifest.Manifest
	results   []*TestResult
	hookError error
	failed    bool
}

func (e *execution) runSequential(ctx context.Context) {
	for _, gp := range e.plan.Groups {
		if ctx.Err() != nil {
			return
		}
		gr := e.runGroup(ctx, gp)
		e.collect(gr)
		if gr.failed && e.runner.config.Bail {
			return
		}
	}
}

func (e *execution) runParallel(ctx context.Context) {
	concurrency := e.runner.config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	for _, level := range orderer.Levels(e.plan.GroupDescriptors()) {
		if ctx.Err() != nil {
			return
		}

		runs := make([]*groupRun, len(level))
		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(concurrency)

		for i, g := range level {
			i := i
			gp, _ := e.plan.Group(g.ID)
			eg.Go(func() error {
				if egCtx.Err() != nil {
					return nil
				}
				runs[i] = e.runGroup(egCtx, gp)
				if runs[i].failed && e.runner.config.Bail {
					return errBail
				}
				return nil
			})
		}

		err := eg.Wait()

		for _, gr := range runs {
			if gr != nil {
				e.collect(gr)
			}
		}

		if errors.Is(err, errBail) {
			return
		}
	}
}

// collect adds gr to the result of its manifest. The manifest's duration
// runs until its last group was collected.
func (e *execution) collect(gr *groupRun) {
	result := e.results[gr.manifest]
	result.Duration = time.Since(e.start)
	for _, res := range gr.results {
		result.add(res)
	}
	if gr.hookError != nil {
		result.HookErrors = append(result.HookErrors, gr.hookError)
	}
}

// runGroup runs the tests of one group in plan order. Each group gets a
// scoped ledger next to the run-wide one.
func (e *execution) runGroup(ctx context.Context, gp orderer.GroupPlan) *groupRun {
	r := e.runner
	m, _ := e.set.Owner(gp.Group.ID)
	gr := &groupRun{manifest: m}
	decl, _ := m.Group(gp.Group.ID)
	dir := m.Dir()
	environ := e.environs[m]

	scope := ledger.New(
		ledger.WithRunID(r.ledger.RunID()),
		ledger.WithScope(string(gp.Group.ID)),
		ledger.WithLogger(r.logger),
	)
	g := e.guard.Scoped(scope)
	groupEnv := append(environ[:len(environ):len(environ)],
		"DEPSPEC_RUN_ID="+r.ledger.RunID(),
		"DEPSPEC_GROUP="+string(gp.Group.ID),
	)

	var hookErr error
	if e.groupSelected(gp) && len(decl.Before) > 0 {
		hookErr = r.executeBeforeHooks(ctx, decl.Before, dir, groupEnv)
		if hookErr != nil {
			r.logger.Warn("runner.before_hook_failed",
				zap.String("group", string(gp.Group.ID)),
				zap.Error(hookErr),
			)
		}
	}

	for _, td := range gp.Tests {
		if ctx.Err() != nil {
			break
		}

		res := e.runTest(ctx, g, m, gp, td, groupEnv, hookErr)
		gr.results = append(gr.results, res)

		if res.Blocked || res.Outcome == guard.Failed || res.Outcome == guard.Errored {
			gr.failed = true
			if r.config.Bail {
				break
			}
		}
	}

	if e.groupSelected(gp) && len(decl.After) > 0 {
		// After hooks run even when the run was canceled.
		if err := r.executeAfterHooks(context.WithoutCancel(ctx), decl.After, dir, groupEnv); err != nil {
			r.logger.Warn("runner.after_hook_failed",
				zap.String("group", string(gp.Group.ID)),
				zap.Error(err),
			)
			gr.hookError = fmt.Errorf("group %s: %w", gp.Group.ID, err)
		}
	}

	return gr
}

func (e *execution) groupSelected(gp orderer.GroupPlan) bool {
	if e.selected == nil {
		return true
	}
	for _, td := range gp.Tests {
		if e.selected[td.QualifiedName()] && !td.Skipped() {
			return true
		}
	}
	return false
}

func (e *execution) runTest(ctx context.Context, g *guard.Guard, m *manifest.Manifest, gp orderer.GroupPlan, td descriptor.TestDescriptor, groupEnv []string, hookErr error) *TestResult {
	r := e.runner
	decl, _ := m.Test(td.Group, td.Name)
	res := &TestResult{
		Group:   td.Group,
		Name:    td.Name,
		Command: decl.Run,
	}
	logger := r.logger.With(zap.String("test", td.QualifiedName()))

	switch {
	case td.Skipped():
		res.Outcome = guard.Skipped
		res.SkipReason = td.Skip
		return res
	case e.selected != nil && !e.selected[td.QualifiedName()]:
		res.Outcome = guard.Skipped
		res.SkipReason = "filtered out"
		return res
	case hookErr != nil:
		res.Outcome = guard.Errored
		res.Error = hookErr
		return res
	}

	gated, group := e.plan.Gate(gp, td)
	token, err := g.Enter(gated, group, gp.Inventory)
	if err != nil {
		res.Outcome = guard.Failed
		res.Blocked = true
		res.Error = err
		logger.Info("runner.blocked", zap.Error(err))
		return res
	}

	if strings.TrimSpace(decl.Run) == "" {
		res.Outcome = guard.Inconclusive
		res.SkipReason = "no run command"
		token.Exit(res.Outcome)
		return res
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			res.Outcome = guard.Inconclusive
			res.Error = fmt.Errorf("waiting for rate limiter: %w", err)
			token.Exit(res.Outcome)
			return res
		}
	}

	timeout := r.config.Timeout
	if d, _ := decl.TimeoutDuration(); d > 0 {
		timeout = d
	}

	testEnv := append(groupEnv[:len(groupEnv):len(groupEnv)], "DEPSPEC_TEST="+td.Name)
	shellRes := r.executeShellCommand(ctx, decl.Run, m.Dir(), testEnv, timeout)

	res.Duration = shellRes.Duration
	res.Output = shellRes.Output
	res.ExitCode = shellRes.ExitCode
	res.Error = shellRes.Error

	switch {
	case shellRes.Passed:
		res.Outcome = guard.Passed
	case shellRes.Canceled:
		res.Outcome = guard.Inconclusive
	case shellRes.TimedOut || shellRes.ExitCode < 0:
		res.Outcome = guard.Errored
	default:
		res.Outcome = guard.Failed
	}

	if !shellRes.Canceled {
		e.recorders[m].Record(res.Duration)
	}
	token.Exit(res.Outcome)

	logger.Debug("runner.test",
		zap.Stringer("outcome", res.Outcome),
		zap.Duration("duration", res.Duration),
	)
	return res
}
