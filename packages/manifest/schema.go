package manifest

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON string

var schemaLoader = gojsonschema.NewStringLoader(schemaJSON)

// ValidationError lists every problem found in a manifest.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "invalid manifest:\n  " + strings.Join(e.Issues, "\n  ")
}

// Schema returns the JSON schema manifests are validated against.
func Schema() string {
	return schemaJSON
}

func validateSchema(doc any) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return &ValidationError{Issues: issues}
}
