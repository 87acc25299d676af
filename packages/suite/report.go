package suite

import (
	"sync"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
	"github.com/abdul-hamid-achik/depspec/packages/core/guard"
	"github.com/abdul-hamid-achik/depspec/packages/core/orderer"
)

// CaseResult is the recorded outcome of one test.
type CaseResult struct {
	Group   descriptor.GroupID
	Name    string
	Outcome guard.Outcome
	// Err is the dependency error of a blocked test or the recovered
	// panic of an errored one.
	Err error
}

// Report collects the outcomes of a suite run in execution order.
type Report struct {
	// Plan is nil when planning failed.
	Plan *orderer.Plan

	mu      sync.Mutex
	results []CaseResult
}

func (r *Report) add(td descriptor.TestDescriptor, outcome guard.Outcome, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, CaseResult{
		Group:   td.Group,
		Name:    td.Name,
		Outcome: outcome,
		Err:     err,
	})
}

// Results returns a copy of all recorded results.
func (r *Report) Results() []CaseResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CaseResult, len(r.results))
	copy(out, r.results)
	return out
}

// Result returns the recorded result of a test.
func (r *Report) Result(group, name string) (CaseResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.results {
		if string(res.Group) == group && res.Name == name {
			return res, true
		}
	}
	return CaseResult{}, false
}

// Order returns the qualified names of executed tests in execution order.
func (r *Report) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.results))
	for i, res := range r.results {
		names[i] = descriptor.Qualify(res.Group, res.Name)
	}
	return names
}
