package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a manifest file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Manifest is a parsed suite file.
type Manifest struct {
	// Path is the file the manifest was loaded from, if any.
	Path   string  `json:"-" yaml:"-"`
	Name   string  `json:"name,omitempty" yaml:"name,omitempty"`
	Groups []Group `json:"groups" yaml:"groups"`
}

// Group is a test group declaration.
type Group struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name,omitempty" yaml:"name,omitempty"`
	DependsOn []string `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	// Before and After are shell hooks run once around the group's tests.
	// A command prefixed with "-" may fail without consequences.
	Before []string `json:"before,omitempty" yaml:"before,omitempty"`
	After  []string `json:"after,omitempty" yaml:"after,omitempty"`
	Tests  []Test   `json:"tests,omitempty" yaml:"tests,omitempty"`
}

// Test is a single test declaration.
type Test struct {
	Name string `json:"name" yaml:"name"`
	// Run is the shell command executed by the runner.
	Run       string   `json:"run,omitempty" yaml:"run,omitempty"`
	DependsOn []string `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	Priority  *int     `json:"priority,omitempty" yaml:"priority,omitempty"`
	Skip      string   `json:"skip,omitempty" yaml:"skip,omitempty"`
	Timeout   string   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Tags      []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// TimeoutDuration parses Timeout, returning 0 when it is unset.
func (t Test) TimeoutDuration() (time.Duration, error) {
	if t.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(t.Timeout)
	if err != nil {
		return 0, fmt.Errorf("test %q: invalid timeout %q: %w", t.Name, t.Timeout, err)
	}
	return d, nil
}

// FormatFromPath guesses the manifest format from a file extension.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Load reads, parses and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	m, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// Parse decodes and validates a manifest.
func Parse(data []byte, format Format) (*Manifest, error) {
	doc, err := decodeDocument(data, format)
	if err != nil {
		return nil, err
	}

	if err := validateSchema(doc); err != nil {
		return nil, err
	}

	// Round-trip through JSON so YAML and JSON share one decoding path.
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalizing manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(normalized, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func decodeDocument(data []byte, format Format) (any, error) {
	var doc any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing JSON manifest: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing YAML manifest: %w", err)
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("manifest is empty")
	}
	return doc, nil
}

// Validate performs semantic checks the schema cannot express.
func (m *Manifest) Validate() error {
	var issues []string

	groupIDs := make(map[string]bool, len(m.Groups))
	for gi, g := range m.Groups {
		if strings.TrimSpace(g.ID) == "" {
			issues = append(issues, fmt.Sprintf("groups[%d]: id is required", gi))
			continue
		}
		if groupIDs[g.ID] {
			issues = append(issues, fmt.Sprintf("group %q is declared more than once", g.ID))
		}
		groupIDs[g.ID] = true

		testNames := make(map[string]bool, len(g.Tests))
		for ti, t := range g.Tests {
			if strings.TrimSpace(t.Name) == "" {
				issues = append(issues, fmt.Sprintf("group %q: tests[%d]: name is required", g.ID, ti))
				continue
			}
			if testNames[t.Name] {
				issues = append(issues, fmt.Sprintf("group %q: test %q is declared more than once", g.ID, t.Name))
			}
			testNames[t.Name] = true

			if _, err := t.TimeoutDuration(); err != nil {
				issues = append(issues, fmt.Sprintf("group %q: %v", g.ID, err))
			}
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// Descriptors converts the manifest into group and test descriptors, both
// in declaration order.
func (m *Manifest) Descriptors() ([]descriptor.GroupDescriptor, []descriptor.TestDescriptor) {
	groups := make([]descriptor.GroupDescriptor, 0, len(m.Groups))
	var tests []descriptor.TestDescriptor

	for _, g := range m.Groups {
		deps := make([]descriptor.GroupID, len(g.DependsOn))
		for i, d := range g.DependsOn {
			deps[i] = descriptor.GroupID(d)
		}
		gd := descriptor.NewGroup(descriptor.GroupID(g.ID), deps...)
		gd.DisplayName = g.Name
		groups = append(groups, gd)

		for _, t := range g.Tests {
			td := descriptor.NewTest(gd.ID, t.Name, t.DependsOn...)
			if t.Priority != nil {
				td = td.WithPriority(*t.Priority)
			}
			if t.Skip != "" {
				td = td.WithSkip(t.Skip)
			}
			tests = append(tests, td)
		}
	}

	return groups, tests
}

// Test returns the declaration of a test.
func (m *Manifest) Test(group descriptor.GroupID, name string) (Test, bool) {
	for _, g := range m.Groups {
		if g.ID != string(group) {
			continue
		}
		for _, t := range g.Tests {
			if t.Name == name {
				return t, true
			}
		}
	}
	return Test{}, false
}

// Group returns the declaration of a group.
func (m *Manifest) Group(id descriptor.GroupID) (Group, bool) {
	for _, g := range m.Groups {
		if g.ID == string(id) {
			return g, true
		}
	}
	return Group{}, false
}

// Dir returns the directory test commands run in.
func (m *Manifest) Dir() string {
	if m.Path == "" {
		return "."
	}
	return filepath.Dir(m.Path)
}

// DisplayName returns the manifest name, falling back to the file name.
func (m *Manifest) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	if m.Path != "" {
		return filepath.Base(m.Path)
	}
	return "suite"
}
