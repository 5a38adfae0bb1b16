package tools

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchArgs struct {
	Query  string `json:"query,omitempty" jsonschema_description:"Search term (name, email, or phone)"`
	Status string `json:"status,omitempty" jsonschema:"enum=ACTIVE,enum=INACTIVE,enum=ALL"`
	Limit  int    `json:"limit,omitempty"`
}

type lookupArgs struct {
	MemberID string   `json:"memberId"`
	Tags     []string `json:"tags,omitempty"`
}

func TestNewToolDefinition_ReflectsSchema(t *testing.T) {
	def, err := NewToolDefinition[lookupArgs]("get_member_details", "Get a member")
	require.NoError(t, err)

	m, err := def.SchemaMap()
	require.NoError(t, err)

	assert.Equal(t, "object", m["type"])
	assert.NotContains(t, m, "$schema")
	assert.NotContains(t, m, "$id")
	assert.Equal(t, []interface{}{"memberId"}, m["required"])

	props := m["properties"].(map[string]interface{})
	tags := props["tags"].(map[string]interface{})
	assert.Equal(t, "array", tags["type"])
	assert.Equal(t, map[string]interface{}{"type": "string"}, tags["items"])
}

func TestNewToolDefinition_EnumsAndDescriptions(t *testing.T) {
	def, err := NewToolDefinition[searchArgs]("search_members", "Search members")
	require.NoError(t, err)

	m, err := def.SchemaMap()
	require.NoError(t, err)
	props := m["properties"].(map[string]interface{})

	status := props["status"].(map[string]interface{})
	assert.Equal(t, []interface{}{"ACTIVE", "INACTIVE", "ALL"}, status["enum"])

	query := props["query"].(map[string]interface{})
	assert.Equal(t, "Search term (name, email, or phone)", query["description"])

	assert.NotContains(t, m, "required")
}

func TestNewToolDefinition_RejectsNonStruct(t *testing.T) {
	_, err := NewToolDefinition[string]("bad", "bad")
	assert.Error(t, err)

	_, err = NewToolDefinition[searchArgs]("", "no name")
	assert.Error(t, err)
}

func TestSchemaJSON_IsDeterministic(t *testing.T) {
	def := MustNewToolDefinition[searchArgs]("search_members", "Search members")

	first, err := def.SchemaJSON()
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := def.SchemaJSON()
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
	// property order follows the struct
	s := string(first)
	assert.Less(t, strings.Index(s, `"query"`), strings.Index(s, `"status"`))
	assert.Less(t, strings.Index(s, `"status"`), strings.Index(s, `"limit"`))
}

func TestNewToolDefinitionFromSchema(t *testing.T) {
	def, err := NewToolDefinitionFromSchema("get_prayer_requests", "List prayer requests",
		json.RawMessage(`{"type":"object","properties":{"limit":{"type":"integer","description":"max"}},"required":["limit"]}`))
	require.NoError(t, err)

	m, err := def.SchemaMap()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"limit"}, m["required"])

	_, err = NewToolDefinitionFromSchema("x", "x", json.RawMessage(`{"type":"string"}`))
	assert.Error(t, err)

	def, err = NewToolDefinitionFromSchema("y", "y", nil)
	require.NoError(t, err)
	assert.Equal(t, "object", def.Parameters.Type)
}

func TestLoadDefinitionsYAML(t *testing.T) {
	in := `
- name: get_prayer_requests
  description: List open prayer requests.
  tags: [care]
  parameters:
    type: object
    properties:
      limit:
        type: integer
        description: Max results
`
	defs, err := LoadDefinitionsYAML(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "get_prayer_requests", defs[0].Name)
	assert.Equal(t, []string{"care"}, defs[0].Tags)

	var out strings.Builder
	require.NoError(t, WriteDefinitionsYAML(&out, defs))
	again, err := LoadDefinitionsYAML(strings.NewReader(out.String()))
	require.NoError(t, err)
	a, _ := defs[0].SchemaJSON()
	b, _ := again[0].SchemaJSON()
	assert.JSONEq(t, string(a), string(b))
}

func TestValidateForProvider(t *testing.T) {
	defs := []ToolDefinition{
		MustNewToolDefinition[searchArgs]("search_members", "Search"),
		MustNewToolDefinition[lookupArgs]("get_member_details", "Lookup"),
	}
	assert.NoError(t, ValidateForProvider(defs, OpenAILimits))
	assert.NoError(t, ValidateForProvider(defs, ClaudeLimits))

	err := ValidateForProvider(defs, ProviderLimits{Provider: "tiny", MaxToolsPerRequest: 1})
	var le *LimitError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "tiny", le.Provider)

	long := MustNewToolDefinition[searchArgs](strings.Repeat("a", 65), "long")
	assert.Error(t, ValidateForProvider([]ToolDefinition{long}, OpenAILimits))

	bad := MustNewToolDefinition[searchArgs]("has space", "bad")
	assert.Error(t, ValidateForProvider([]ToolDefinition{bad}, OllamaLimits))

	assert.Error(t, ValidateForProvider(defs, ProviderLimits{Provider: "small", MaxTotalSizeBytes: 10}))
}
