package openai

import (
	"encoding/json"
	"testing"

	go_openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/shepherd/pkg/conversation"
	"github.com/go-go-golems/shepherd/pkg/inference/tools"
)

func intPtr(i int) *int {
	return &i
}

func TestToolCallMerger(t *testing.T) {
	tcm := NewToolCallMerger()
	tcm.AddToolCalls([]go_openai.ToolCall{
		{Index: intPtr(1), ID: "call_2", Type: go_openai.ToolTypeFunction, Function: go_openai.FunctionCall{Name: "get_member_statistics"}},
		{Index: intPtr(0), ID: "call_1", Type: go_openai.ToolTypeFunction, Function: go_openai.FunctionCall{Name: "search_", Arguments: `{"sta`}},
	})
	tcm.AddToolCalls([]go_openai.ToolCall{
		{Index: intPtr(0), Function: go_openai.FunctionCall{Name: "members", Arguments: `tus":"ACTIVE"}`}},
		{Index: intPtr(1), Function: go_openai.FunctionCall{Arguments: `{}`}},
	})

	calls := tcm.GetToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "search_members", calls[0].Function.Name)
	assert.Equal(t, `{"status":"ACTIVE"}`, calls[0].Function.Arguments)
	assert.Equal(t, "call_2", calls[1].ID)
	assert.Equal(t, `{}`, calls[1].Function.Arguments)
}

func TestToolCallMerger_WithoutIndex(t *testing.T) {
	tcm := NewToolCallMerger()
	tcm.AddToolCalls([]go_openai.ToolCall{
		{ID: "call_a", Function: go_openai.FunctionCall{Name: "a", Arguments: `{}`}},
		{ID: "call_b", Function: go_openai.FunctionCall{Name: "b", Arguments: `{"x":1}`}},
	})
	calls := tcm.GetToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "a", calls[0].Function.Name)
	assert.Equal(t, "b", calls[1].Function.Name)
}

func TestMessagesFromConversation(t *testing.T) {
	conv := conversation.Conversation{
		conversation.NewUserTurn("How many active members?"),
		conversation.NewAssistantTurn("", []conversation.ToolRequest{
			{ID: "call_1", Name: "search_members", Arguments: json.RawMessage(`{"status":"ACTIVE"}`)},
			{ID: "call_2", Name: "get_member_statistics"},
		}),
		conversation.NewToolResultsTurn(conversation.RoleTool, []conversation.ToolResult{
			{RequestID: "call_1", Payload: json.RawMessage(`{"count":142}`)},
			{RequestID: "call_2", Payload: json.RawMessage(`{"error":"boom"}`), IsError: true},
		}),
	}

	msgs := messagesFromConversation("Be helpful.", conv)
	require.Len(t, msgs, 5)
	assert.Equal(t, go_openai.ChatMessageRoleSystem, msgs[0].Role)
	assert.Equal(t, "Be helpful.", msgs[0].Content)
	assert.Equal(t, go_openai.ChatMessageRoleUser, msgs[1].Role)

	require.Len(t, msgs[2].ToolCalls, 2)
	assert.Equal(t, `{"status":"ACTIVE"}`, msgs[2].ToolCalls[0].Function.Arguments)
	assert.Equal(t, `{}`, msgs[2].ToolCalls[1].Function.Arguments)

	assert.Equal(t, go_openai.ChatMessageRoleTool, msgs[3].Role)
	assert.Equal(t, "call_1", msgs[3].ToolCallID)
	assert.Equal(t, `{"count":142}`, msgs[3].Content)
	assert.Equal(t, "call_2", msgs[4].ToolCallID)
}

func TestMessagesFromConversation_UserRoleResults(t *testing.T) {
	// transcripts recorded against Claude carry results in user turns
	conv := conversation.Conversation{
		conversation.NewUserTurn("hi"),
		conversation.NewAssistantTurn("", []conversation.ToolRequest{{ID: "toolu_1", Name: "a"}}),
		conversation.NewToolResultsTurn(conversation.RoleUser, []conversation.ToolResult{
			{RequestID: "toolu_1", Payload: json.RawMessage(`{}`)},
		}),
	}
	msgs := messagesFromConversation("", conv)
	require.Len(t, msgs, 3)
	assert.Equal(t, go_openai.ChatMessageRoleTool, msgs[2].Role)
}

type recordArgs struct {
	MemberID string  `json:"memberId"`
	Amount   float64 `json:"amount"`
}

func TestToolsFromDefinitions(t *testing.T) {
	def := tools.MustNewToolDefinition[recordArgs]("record_donation", "Record a donation")
	converted, err := ToolsFromDefinitions([]tools.ToolDefinition{def})
	require.NoError(t, err)
	require.Len(t, converted, 1)
	assert.Equal(t, go_openai.ToolTypeFunction, converted[0].Type)
	assert.Equal(t, "record_donation", converted[0].Function.Name)

	// the dialect carries the canonical schema unchanged
	canonical, err := def.SchemaJSON()
	require.NoError(t, err)
	b, err := json.Marshal(converted[0].Function.Parameters)
	require.NoError(t, err)
	assert.JSONEq(t, string(canonical), string(b))
}

func TestCompletionFromMessage(t *testing.T) {
	c, err := completionFromMessage(Name, "", []go_openai.ToolCall{
		{Function: go_openai.FunctionCall{Name: "get_analytics_overview"}},
	})
	require.NoError(t, err)
	require.Len(t, c.ToolRequests, 1)
	assert.NotEmpty(t, c.ToolRequests[0].ID)
	assert.Equal(t, "{}", string(c.ToolRequests[0].Arguments))

	_, err = completionFromMessage(Name, "", []go_openai.ToolCall{
		{ID: "call_1", Function: go_openai.FunctionCall{Name: "x", Arguments: `{"a":`}},
	})
	require.Error(t, err)
}
