package conversation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessages_StringContent(t *testing.T) {
	conv, err := DecodeMessages(json.RawMessage(`[{"role":"user","content":"How many active members?"}]`))
	require.NoError(t, err)
	require.Len(t, conv, 1)
	assert.Equal(t, RoleUser, conv[0].Role)
	assert.Equal(t, "How many active members?", conv[0].Text)
}

func TestDecodeMessages_ContentBlocks(t *testing.T) {
	raw := `[
		{"role":"user","content":"find john"},
		{"role":"assistant","content":[
			{"type":"text","text":"Let me look."},
			{"type":"tool_use","id":"toolu_1","name":"search_members","input":{"query":"john"}}
		]},
		{"role":"user","content":[
			{"type":"tool_result","tool_use_id":"toolu_1","content":"{\"success\":true,\"count\":1}"}
		]}
	]`
	conv, err := DecodeMessages(json.RawMessage(raw))
	require.NoError(t, err)
	require.Len(t, conv, 3)

	assert.Equal(t, "Let me look.", conv[1].Text)
	require.Len(t, conv[1].ToolRequests, 1)
	assert.Equal(t, "search_members", conv[1].ToolRequests[0].Name)
	assert.JSONEq(t, `{"query":"john"}`, string(conv[1].ToolRequests[0].Arguments))

	require.Len(t, conv[2].ToolResults, 1)
	assert.Equal(t, "toolu_1", conv[2].ToolResults[0].RequestID)
	// JSON held in a string is unwrapped
	assert.JSONEq(t, `{"success":true,"count":1}`, string(conv[2].ToolResults[0].Payload))
}

func TestDecodeMessages_KeepsAssistantBlockOrder(t *testing.T) {
	raw := `[
		{"role":"user","content":"add the offering"},
		{"role":"assistant","content":[
			{"type":"text","text":"Recording it."},
			{"type":"tool_use","id":"toolu_1","name":"record_offering","input":{"amount":50}},
			{"type":"text","text":"Then the summary."},
			{"type":"tool_use","id":"toolu_2","name":"get_dashboard_summary"}
		]},
		{"role":"user","content":[
			{"type":"tool_result","tool_use_id":"toolu_1","content":"{}"},
			{"type":"tool_result","tool_use_id":"toolu_2","content":"{}"},
			{"type":"text","text":"thanks"}
		]}
	]`
	conv, err := DecodeMessages(json.RawMessage(raw))
	require.NoError(t, err)
	require.Len(t, conv, 3)

	segs := conv[1].Segments
	require.Len(t, segs, 4)
	assert.Equal(t, "Recording it.", segs[0].Text)
	require.NotNil(t, segs[1].ToolRequest)
	assert.Equal(t, "toolu_1", segs[1].ToolRequest.ID)
	assert.Equal(t, "Then the summary.", segs[2].Text)
	require.NotNil(t, segs[3].ToolRequest)
	assert.JSONEq(t, `{}`, string(segs[3].ToolRequest.Arguments))
	assert.Equal(t, "Recording it.Then the summary.", conv[1].Text)

	assert.Len(t, conv[2].ToolResults, 2)
	assert.Equal(t, "thanks", conv[2].Text)
	assert.Empty(t, conv[2].Segments)
}

func TestDecodeMessages_OpenAIToolMessagesAreMerged(t *testing.T) {
	raw := `[
		{"role":"user","content":"hi"},
		{"role":"assistant","content":null,"tool_calls":[
			{"id":"call_a","type":"function","function":{"name":"get_departments","arguments":""}},
			{"id":"call_b","type":"function","function":{"name":"get_dashboard_summary","arguments":"{\"period\":\"week\"}"}}
		]},
		{"role":"tool","tool_call_id":"call_a","content":"{\"departments\":[]}"},
		{"role":"tool","tool_call_id":"call_b","content":"plain text"}
	]`
	conv, err := DecodeMessages(json.RawMessage(raw))
	require.NoError(t, err)
	require.Len(t, conv, 3)
	assert.Equal(t, RoleTool, conv[2].Role)
	require.Len(t, conv[2].ToolResults, 2)
	assert.JSONEq(t, `{}`, string(conv[1].ToolRequests[0].Arguments))
	assert.JSONEq(t, `"plain text"`, string(conv[2].ToolResults[1].Payload))
}

func TestDecodeMessages_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":            `[]`,
		"null":             `null`,
		"not an array":     `{"role":"user"}`,
		"bad role":         `[{"role":"system","content":"x"}]`,
		"unanswered tools": `[{"role":"assistant","content":[{"type":"tool_use","id":"a","name":"x","input":{}}]}]`,
		"orphan result":    `[{"role":"user","content":[{"type":"tool_result","tool_use_id":"a","content":"{}"}]}]`,
		"tool_use in user": `[{"role":"user","content":[{"type":"tool_use","id":"a","name":"x"}]}]`,
		"unknown block":    `[{"role":"user","content":[{"type":"image"}]}]`,
		"tool without id":  `[{"role":"tool","content":"x"}]`,
	}
	for name, raw := range cases {
		name, raw := name, raw
		t.Run(name, func(t *testing.T) {
			_, err := DecodeMessages(json.RawMessage(raw))
			assert.Error(t, err)
		})
	}
}

func TestConversationAppendDoesNotAlias(t *testing.T) {
	base := Conversation{NewUserTurn("one")}
	a := base.Append(NewUserTurn("two"))
	b := base.Append(NewUserTurn("three"))

	assert.Len(t, base, 1)
	assert.Equal(t, "two", a[1].Text)
	assert.Equal(t, "three", b[1].Text)
}

func TestConversationClone(t *testing.T) {
	orig := Conversation{NewAssistantTurn("", []ToolRequest{{ID: "1", Name: "x", Arguments: json.RawMessage(`{"a":1}`)}})}
	c := orig.Clone()
	c[0].ToolRequests[0].Arguments[5] = '2'
	assert.JSONEq(t, `{"a":1}`, string(orig[0].ToolRequests[0].Arguments))
}
