package tools

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// ToolDefinition describes an operation the model may request. Definitions
// are built once at startup and shared read-only by all runs.
type ToolDefinition struct {
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description" yaml:"description"`
	Parameters  *jsonschema.Schema `json:"parameters" yaml:"-"`
	Tags        []string           `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// NewToolDefinition creates a definition whose parameter schema is reflected
// from the argument struct T. Struct fields without omitempty are required;
// enums and descriptions come from jsonschema tags.
func NewToolDefinition[T any](name, description string, tags ...string) (*ToolDefinition, error) {
	if name == "" {
		return nil, errors.New("tool name cannot be empty")
	}
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return nil, errors.Errorf("tool %s: argument type must be a struct", name)
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, errors.Errorf("tool %s: argument type must be a struct, got %s", name, t.Kind())
	}

	return &ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  reflectSchema(reflect.New(t).Elem().Interface()),
		Tags:        tags,
	}, nil
}

// MustNewToolDefinition is NewToolDefinition for static catalogs.
func MustNewToolDefinition[T any](name, description string, tags ...string) ToolDefinition {
	def, err := NewToolDefinition[T](name, description, tags...)
	if err != nil {
		panic(err)
	}
	return *def
}

func reflectSchema(v interface{}) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		// Expand definitions inline instead of using $refs
		DoNotReference: true,
		Anonymous:      true,
	}
	schema := reflector.Reflect(v)
	// backends reject or ignore meta keywords, drop them so that every
	// dialect sees the same document
	schema.Version = ""
	schema.ID = ""

	if schema.Type == "" && schema.Ref == "" {
		schema.Type = "object"
	}
	return schema
}

// NewToolDefinitionFromSchema builds a definition from a raw JSON schema
// document, as found in YAML catalogs.
func NewToolDefinitionFromSchema(name, description string, schema json.RawMessage) (*ToolDefinition, error) {
	if name == "" {
		return nil, errors.New("tool name cannot be empty")
	}
	params := &jsonschema.Schema{Type: "object"}
	if len(schema) > 0 {
		params = &jsonschema.Schema{}
		if err := json.Unmarshal(schema, params); err != nil {
			return nil, errors.Wrapf(err, "tool %s: invalid parameter schema", name)
		}
		if params.Type == "" {
			params.Type = "object"
		}
	}
	if params.Type != "object" {
		return nil, errors.Errorf("tool %s: parameter schema must describe an object, got %q", name, params.Type)
	}
	return &ToolDefinition{Name: name, Description: description, Parameters: params}, nil
}

// SchemaJSON returns the parameter schema as JSON. Every provider dialect is
// derived from these bytes, so the conversion neither adds nor drops
// keywords.
func (d ToolDefinition) SchemaJSON() (json.RawMessage, error) {
	if d.Parameters == nil {
		return json.RawMessage(`{"type":"object","properties":{}}`), nil
	}
	b, err := json.Marshal(d.Parameters)
	if err != nil {
		return nil, errors.Wrapf(err, "tool %s: could not marshal parameters", d.Name)
	}
	return b, nil
}

// SchemaMap returns the parameter schema as a generic map.
func (d ToolDefinition) SchemaMap() (map[string]interface{}, error) {
	b, err := d.SchemaJSON()
	if err != nil {
		return nil, err
	}
	var ret map[string]interface{}
	if err := json.Unmarshal(b, &ret); err != nil {
		return nil, errors.Wrapf(err, "tool %s: parameters are not an object", d.Name)
	}
	return ret, nil
}
