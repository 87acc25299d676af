package output

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
	"github.com/abdul-hamid-achik/depspec/packages/core/guard"
	"github.com/abdul-hamid-achik/depspec/packages/core/runner"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite represents one test group
type JUnitTestSuite struct {
	XMLName    xml.Name         `xml:"testsuite"`
	Name       string           `xml:"name,attr"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	File       string           `xml:"file,attr,omitempty"`
	Properties *JUnitProperties `xml:"properties,omitempty"`
	TestCases  []JUnitTestCase  `xml:"testcase"`
}

// JUnitProperties holds suite properties
type JUnitProperties struct {
	Properties []JUnitProperty `xml:"property"`
}

// JUnitProperty is a name/value pair
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// JUnitTestCase represents a single test case
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

// JUnitFailure represents a test failure
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitError represents a test error
type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitSkipped represents a skipped test
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter formats test results as JUnit XML
type JUnitFormatter struct {
	writer     io.Writer
	testSuites []JUnitTestSuite
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer:     os.Stdout,
		testSuites: make([]JUnitTestSuite, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

// FormatResult adds one testsuite per group, in execution order.
func (f *JUnitFormatter) FormatResult(result *runner.RunResult) {
	timestamp := time.Now().Format(time.RFC3339)
	index := make(map[descriptor.GroupID]int)
	var suites []JUnitTestSuite

	for _, r := range result.Results {
		i, ok := index[r.Group]
		if !ok {
			i = len(suites)
			index[r.Group] = i
			suites = append(suites, JUnitTestSuite{
				Name:      string(r.Group),
				Timestamp: timestamp,
				File:      result.File,
				Properties: &JUnitProperties{Properties: []JUnitProperty{
					{Name: "runId", Value: result.RunID},
				}},
			})
		}
		suite := &suites[i]

		tc := JUnitTestCase{
			Name:      r.Name,
			ClassName: string(r.Group),
			Time:      r.Duration.Seconds(),
		}
		suite.Tests++
		suite.Time += r.Duration.Seconds()

		switch {
		case r.Blocked:
			suite.Failures++
			var unmet []string
			var depErr *guard.DependencyError
			if errors.As(r.Error, &depErr) {
				unmet = depErr.Unmet()
			}
			tc.Failure = &JUnitFailure{
				Message: "unmet dependencies",
				Type:    "DependencyError",
				Content: strings.Join(unmet, "\n"),
			}
		case r.Outcome == guard.Skipped || r.Outcome == guard.Inconclusive:
			suite.Skipped++
			tc.Skipped = &JUnitSkipped{
				Message: r.SkipReason,
			}
		case r.Outcome == guard.Errored:
			suite.Errors++
			tc.Error = &JUnitError{
				Message: firstLine(r.Error),
				Type:    "Error",
				Content: r.Output,
			}
		case r.Outcome == guard.Failed:
			suite.Failures++
			tc.Failure = &JUnitFailure{
				Message: fmt.Sprintf("command exited with status %d", r.ExitCode),
				Type:    "CommandFailure",
				Content: r.Output,
			}
		default:
			tc.SystemOut = r.Output
		}

		suite.TestCases = append(suite.TestCases, tc)
	}

	f.testSuites = append(f.testSuites, suites...)
}

func (f *JUnitFormatter) FormatError(err error) {
	// Errors are included in individual test cases
}

func (f *JUnitFormatter) FormatHeader(version string) {
	// No header needed for JUnit XML
}

// Flush writes the accumulated JUnit XML output
func (f *JUnitFormatter) Flush(totalDuration time.Duration) error {
	var totalTests, totalFailures, totalErrors, totalSkipped int
	for _, suite := range f.testSuites {
		totalTests += suite.Tests
		totalFailures += suite.Failures
		totalErrors += suite.Errors
		totalSkipped += suite.Skipped
	}

	suites := JUnitTestSuites{
		Name:       "depspec",
		Tests:      totalTests,
		Failures:   totalFailures,
		Errors:     totalErrors,
		Skipped:    totalSkipped,
		Time:       totalDuration.Seconds(),
		Timestamp:  time.Now().Format(time.RFC3339),
		TestSuites: f.testSuites,
	}

	fmt.Fprintf(f.writer, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	return encoder.Encode(suites)
}
