package tools

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// ValidationError lists the schema violations of a tool request's arguments.
type ValidationError struct {
	Tool       string
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid arguments for " + e.Tool + ": " + strings.Join(e.Violations, "; ")
}

// ValidateArguments checks args against the definition's parameter schema.
// Empty arguments are treated as an empty object.
func ValidateArguments(def *ToolDefinition, args json.RawMessage) error {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage("{}")
	}
	if !json.Valid(args) {
		return &ValidationError{Tool: def.Name, Violations: []string{"arguments are not valid JSON"}}
	}

	schema, err := def.SchemaJSON()
	if err != nil {
		return err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(args),
	)
	if err != nil {
		return errors.Wrapf(err, "could not validate arguments for %s", def.Name)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, e.String())
	}
	return &ValidationError{Tool: def.Name, Violations: violations}
}
