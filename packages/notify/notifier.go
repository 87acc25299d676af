// Package notify posts run summaries to chat webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/depspec/packages/core/guard"
	"github.com/abdul-hamid-achik/depspec/packages/core/runner"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when tests fail or are blocked
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when every test passes
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends failures plus the first success after a failure
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn validates a policy name. An empty value selects NotifyFailure.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch on := NotifyOn(strings.ToLower(strings.TrimSpace(s))); on {
	case "":
		return NotifyFailure, nil
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return on, nil
	default:
		return "", fmt.Errorf("unknown notify policy %q (use always, failure, success or recovery)", s)
	}
}

// maxListed bounds the failing tests included in one message.
const maxListed = 10

// RunSummary is the notification payload for one pass over all manifests.
type RunSummary struct {
	Files      int           `json:"files"`
	Total      int           `json:"total"`
	Passed     int           `json:"passed"`
	Failed     int           `json:"failed"`
	Errored    int           `json:"errored"`
	Blocked    int           `json:"blocked"`
	Skipped    int           `json:"skipped"`
	Duration   time.Duration `json:"duration"`
	RunID      string        `json:"runId,omitempty"`
	Failures   []Failure     `json:"failures,omitempty"`
	IsRecovery bool          `json:"isRecovery,omitempty"`
}

// Failure describes one test that did not pass.
type Failure struct {
	Name    string   `json:"name"`
	File    string   `json:"file"`
	Outcome string   `json:"outcome"`
	Unmet   []string `json:"unmet,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Success reports whether nothing failed, errored or was blocked.
func (s *RunSummary) Success() bool {
	return s.Failed == 0 && s.Errored == 0 && s.Blocked == 0
}

// Problems is the number of tests that failed, errored or were blocked.
func (s *RunSummary) Problems() int {
	return s.Failed + s.Errored + s.Blocked
}

// Summarize folds run results into one summary. Only the first maxListed
// failures are kept.
func Summarize(results []*runner.RunResult, duration time.Duration) *RunSummary {
	s := &RunSummary{Files: len(results), Duration: duration}
	for _, r := range results {
		if s.RunID == "" {
			s.RunID = r.RunID
		}
		s.Total += r.Total()
		s.Passed += r.Passed
		s.Failed += r.Failed
		s.Errored += r.Errored
		s.Blocked += r.Blocked
		s.Skipped += r.Skipped

		for _, t := range r.Results {
			if len(s.Failures) >= maxListed {
				break
			}
			if !t.Blocked && t.Outcome != guard.Failed && t.Outcome != guard.Errored {
				continue
			}
			f := Failure{Name: t.QualifiedName(), File: r.File, Outcome: t.Outcome.String()}
			var depErr *guard.DependencyError
			if errors.As(t.Error, &depErr) {
				f.Outcome = "blocked"
				f.Unmet = depErr.Unmet()
			} else if t.Error != nil {
				f.Error = firstLine(t.Error.Error())
			}
			s.Failures = append(s.Failures, f)
		}
	}
	return s
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// title is the one-line headline shared by every notifier.
func (s *RunSummary) title() string {
	switch {
	case !s.Success():
		return fmt.Sprintf("%d test(s) did not pass", s.Problems())
	case s.IsRecovery:
		return "Tests recovered"
	default:
		return "All tests passed"
	}
}

// line renders f as "name (file): detail".
func (f Failure) line() string {
	text := f.Name
	if f.File != "" {
		text += " (" + f.File + ")"
	}
	switch {
	case len(f.Unmet) > 0:
		text += ": blocked by " + strings.Join(f.Unmet, ", ")
	case f.Error != "":
		text += ": " + f.Error
	}
	return text
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about test results
	Notify(ctx context.Context, summary *RunSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager manages multiple notifiers
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true, // Assume success initially
	}
}

// AddNotifier adds a notifier to the manager
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Len returns the number of registered notifiers.
func (m *Manager) Len() int {
	return len(m.notifiers)
}

// Notify sends summary to every notifier when the policy asks for it. The
// errors of all failing notifiers are joined.
func (m *Manager) Notify(ctx context.Context, summary *RunSummary) error {
	success := summary.Success()

	var shouldNotify bool
	switch m.notifyOn {
	case NotifyAlways:
		shouldNotify = true
	case NotifyFailure:
		shouldNotify = !success
	case NotifySuccess:
		shouldNotify = success
	case NotifyRecovery:
		summary.IsRecovery = success && !m.lastState
		shouldNotify = summary.IsRecovery || !success
	}

	m.lastState = success

	if !shouldNotify {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
