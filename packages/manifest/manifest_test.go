package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checkoutYAML = `
name: checkout
groups:
  - id: acme.UserTests
    name: Users
    tests:
      - name: Create
        run: ./scripts/create-user.sh
  - id: acme.CartTests
    dependsOn: [acme.UserTests]
    tests:
      - name: Add
        run: "true"
        dependsOn: [Open]
        priority: 2
        timeout: 5s
      - name: Open
        run: "true"
      - name: Legacy
        skip: "flaky upstream"
`

func TestParse_YAML(t *testing.T) {
	m, err := Parse([]byte(checkoutYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "checkout", m.Name)
	require.Len(t, m.Groups, 2)
	assert.Equal(t, "acme.UserTests", m.Groups[0].ID)
	assert.Equal(t, "Users", m.Groups[0].Name)
	assert.Equal(t, []string{"acme.UserTests"}, m.Groups[1].DependsOn)

	add := m.Groups[1].Tests[0]
	assert.Equal(t, "Add", add.Name)
	require.NotNil(t, add.Priority)
	assert.Equal(t, 2, *add.Priority)
	d, err := add.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)
}

func TestParse_JSON(t *testing.T) {
	data := `{"groups": [{"id": "A", "tests": [{"name": "T1", "run": "true", "priority": -1}]}]}`

	m, err := Parse([]byte(data), FormatJSON)
	require.NoError(t, err)
	require.Len(t, m.Groups, 1)
	require.NotNil(t, m.Groups[0].Tests[0].Priority)
	assert.Equal(t, -1, *m.Groups[0].Tests[0].Priority)
}

func TestParse_SchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		contain string
	}{
		{"missing groups", `name: x`, "groups"},
		{"unknown property", "groups: []\nextra: 1", "extra"},
		{"missing group id", "groups:\n  - name: nope", "id"},
		{"priority not integer", "groups:\n  - id: A\n    tests:\n      - name: T\n        priority: high", "priority"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), FormatYAML)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, err.Error(), tt.contain)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse([]byte(""), FormatYAML)
	assert.Error(t, err)
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("groups: [\n"), FormatYAML)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing YAML manifest")
}

func TestValidate_Semantic(t *testing.T) {
	m := &Manifest{Groups: []Group{
		{ID: "A", Tests: []Test{{Name: "T1"}, {Name: "T1"}, {Name: "T2", Timeout: "soon"}}},
		{ID: "A"},
	}}

	err := m.Validate()
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Issues, 3)
	assert.Contains(t, err.Error(), `test "T1" is declared more than once`)
	assert.Contains(t, err.Error(), `group "A" is declared more than once`)
	assert.Contains(t, err.Error(), "invalid timeout")
}

func TestDescriptors(t *testing.T) {
	m, err := Parse([]byte(checkoutYAML), FormatYAML)
	require.NoError(t, err)

	groups, tests := m.Descriptors()

	require.Len(t, groups, 2)
	assert.Equal(t, descriptor.GroupID("acme.UserTests"), groups[0].ID)
	assert.Equal(t, "Users", groups[0].Name())
	assert.Equal(t, []descriptor.GroupID{"acme.UserTests"}, groups[1].DependsOn)

	require.Len(t, tests, 4)
	names := make([]string, len(tests))
	for i, td := range tests {
		names[i] = td.QualifiedName()
	}
	assert.Equal(t, []string{
		"acme.UserTests.Create",
		"acme.CartTests.Add",
		"acme.CartTests.Open",
		"acme.CartTests.Legacy",
	}, names)

	assert.Equal(t, 2, tests[1].Priority())
	assert.Equal(t, []string{"Open"}, tests[1].Dependencies())
	assert.False(t, tests[2].HasPriority())
	assert.True(t, tests[3].Skipped())
}

func TestManifest_Test(t *testing.T) {
	m, err := Parse([]byte(checkoutYAML), FormatYAML)
	require.NoError(t, err)

	tc, ok := m.Test("acme.UserTests", "Create")
	require.True(t, ok)
	assert.Equal(t, "./scripts/create-user.sh", tc.Run)

	_, ok = m.Test("acme.UserTests", "Missing")
	assert.False(t, ok)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(checkoutYAML), 0644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, m.Path)
	assert.Equal(t, dir, m.Dir())
	assert.Equal(t, "checkout", m.DisplayName())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestDisplayName_Fallback(t *testing.T) {
	assert.Equal(t, "suite", (&Manifest{}).DisplayName())
	assert.Equal(t, "api.yaml", (&Manifest{Path: "/tmp/api.yaml"}).DisplayName())
	assert.Equal(t, ".", (&Manifest{}).Dir())
}

func TestSchema(t *testing.T) {
	assert.Contains(t, Schema(), `"dependsOn"`)
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	write := func(rel string) string {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("groups: []"), 0644))
		return p
	}

	a := write("a.yaml")
	b := write("nested/b.json")
	write("nested/notes.txt")
	write(".depspec.yaml")
	write(".git/config.yml")

	files, err := Collect([]string{dir})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b}, files)

	files, err = Collect([]string{a})
	require.NoError(t, err)
	assert.Equal(t, []string{a}, files)

	_, err = Collect([]string{filepath.Join(dir, "nope")})
	assert.Error(t, err)
}

func TestIsManifestFile(t *testing.T) {
	assert.True(t, IsManifestFile("suite.yml"))
	assert.True(t, IsManifestFile("dir/suite.JSON"))
	assert.False(t, IsManifestFile("depspec.json"))
	assert.False(t, IsManifestFile("main.go"))
}
