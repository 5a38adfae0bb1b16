package tools

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type yamlToolDefinition struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Tags        []string               `yaml:"tags"`
	Parameters  map[string]interface{} `yaml:"parameters"`
}

// LoadDefinitionsYAML reads a list of tool definitions:
//
//	- name: get_prayer_requests
//	  description: List open prayer requests.
//	  parameters:
//	    type: object
//	    properties:
//	      limit: {type: integer}
func LoadDefinitionsYAML(r io.Reader) ([]ToolDefinition, error) {
	var raw []yamlToolDefinition
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not decode tool definitions")
	}

	ret := make([]ToolDefinition, 0, len(raw))
	for i, d := range raw {
		var schema json.RawMessage
		if d.Parameters != nil {
			b, err := json.Marshal(d.Parameters)
			if err != nil {
				return nil, errors.Wrapf(err, "tool %d (%s): parameters are not JSON compatible", i, d.Name)
			}
			schema = b
		}
		def, err := NewToolDefinitionFromSchema(d.Name, d.Description, schema)
		if err != nil {
			return nil, errors.Wrapf(err, "tool %d", i)
		}
		def.Tags = d.Tags
		ret = append(ret, *def)
	}
	return ret, nil
}

// WriteDefinitionsYAML writes definitions in the format read by LoadDefinitionsYAML.
func WriteDefinitionsYAML(w io.Writer, defs []ToolDefinition) error {
	out := make([]yamlToolDefinition, 0, len(defs))
	for _, def := range defs {
		params, err := def.SchemaMap()
		if err != nil {
			return err
		}
		out = append(out, yamlToolDefinition{
			Name:        def.Name,
			Description: def.Description,
			Tags:        def.Tags,
			Parameters:  params,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}
