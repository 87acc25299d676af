package guard

import "strings"

// Outcome is the result a host reports for a finished test.
type Outcome int

const (
	Passed Outcome = iota
	Failed
	Errored
	Skipped
	Inconclusive
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Errored:
		return "errored"
	case Skipped:
		return "skipped"
	case Inconclusive:
		return "inconclusive"
	default:
		return "unknown"
	}
}

// ParseOutcome converts the String form back into an Outcome.
func ParseOutcome(s string) (Outcome, bool) {
	for o := Passed; o <= Inconclusive; o++ {
		if strings.EqualFold(o.String(), s) {
			return o, true
		}
	}
	return Inconclusive, false
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}
