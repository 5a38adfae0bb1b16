package openai

import (
	"encoding/json"
	"sort"

	"github.com/lithammer/shortuuid/v3"
	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/shepherd/pkg/conversation"
	"github.com/go-go-golems/shepherd/pkg/inference/engine"
	"github.com/go-go-golems/shepherd/pkg/inference/tools"
	"github.com/go-go-golems/shepherd/pkg/steps/ai/settings"
)

// ToolCallMerger accumulates streamed tool call fragments. Fragments carry
// the index of the call they belong to; name and arguments are
// concatenated per index.
type ToolCallMerger struct {
	toolCalls map[int]go_openai.ToolCall
	last      int
}

func NewToolCallMerger() *ToolCallMerger {
	return &ToolCallMerger{
		toolCalls: make(map[int]go_openai.ToolCall),
		last:      -1,
	}
}

func (tcm *ToolCallMerger) AddToolCalls(toolCalls []go_openai.ToolCall) {
	for _, call := range toolCalls {
		index := tcm.indexFor(call)
		if existing, found := tcm.toolCalls[index]; found {
			if existing.ID == "" {
				existing.ID = call.ID
			}
			existing.Function.Name += call.Function.Name
			existing.Function.Arguments += call.Function.Arguments
			tcm.toolCalls[index] = existing
		} else {
			tcm.toolCalls[index] = call
		}
		tcm.last = index
	}
}

// indexFor resolves the slot of a fragment. Some compatible servers omit
// the index and send each call whole; those are keyed by id.
func (tcm *ToolCallMerger) indexFor(call go_openai.ToolCall) int {
	if call.Index != nil {
		return *call.Index
	}
	if call.ID == "" {
		if tcm.last < 0 {
			return 0
		}
		return tcm.last
	}
	maxIndex := -1
	for i, existing := range tcm.toolCalls {
		if existing.ID == call.ID {
			return i
		}
		if i > maxIndex {
			maxIndex = i
		}
	}
	return maxIndex + 1
}

// GetToolCalls returns the merged calls ordered by index.
func (tcm *ToolCallMerger) GetToolCalls() []go_openai.ToolCall {
	indexes := make([]int, 0, len(tcm.toolCalls))
	for i := range tcm.toolCalls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	result := make([]go_openai.ToolCall, 0, len(indexes))
	for _, i := range indexes {
		result = append(result, tcm.toolCalls[i])
	}
	return result
}

// messagesFromConversation converts the transcript to chat messages. The
// system prompt goes first; tool results become one tool message each.
func messagesFromConversation(systemPrompt string, c conversation.Conversation) []go_openai.ChatCompletionMessage {
	msgs := make([]go_openai.ChatCompletionMessage, 0, len(c)+1)
	if systemPrompt != "" {
		msgs = append(msgs, go_openai.ChatCompletionMessage{
			Role:    go_openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}

	for _, t := range c {
		switch {
		case t.HasToolResults():
			for _, r := range t.ToolResults {
				msgs = append(msgs, go_openai.ChatCompletionMessage{
					Role:       go_openai.ChatMessageRoleTool,
					Content:    string(r.Payload),
					ToolCallID: r.RequestID,
				})
			}
			// a user turn may carry text next to its tool results
			if t.Text != "" {
				msgs = append(msgs, go_openai.ChatCompletionMessage{
					Role:    go_openai.ChatMessageRoleUser,
					Content: t.Text,
				})
			}

		case t.Role == conversation.RoleAssistant:
			msg := go_openai.ChatCompletionMessage{
				Role:    go_openai.ChatMessageRoleAssistant,
				Content: t.Text,
			}
			for _, req := range t.ToolRequests {
				args := string(req.Arguments)
				if args == "" {
					args = "{}"
				}
				msg.ToolCalls = append(msg.ToolCalls, go_openai.ToolCall{
					ID:   req.ID,
					Type: go_openai.ToolTypeFunction,
					Function: go_openai.FunctionCall{
						Name:      req.Name,
						Arguments: args,
					},
				})
			}
			msgs = append(msgs, msg)

		default:
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:    go_openai.ChatMessageRoleUser,
				Content: t.Text,
			})
		}
	}
	return msgs
}

// ToolsFromDefinitions converts tool definitions to function tools.
func ToolsFromDefinitions(defs []tools.ToolDefinition) ([]go_openai.Tool, error) {
	ret := make([]go_openai.Tool, 0, len(defs))
	for _, def := range defs {
		schema, err := def.SchemaJSON()
		if err != nil {
			return nil, errors.Wrapf(err, "tool %s", def.Name)
		}
		ret = append(ret, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: &go_openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  schema,
			},
		})
	}
	return ret, nil
}

// MakeCompletionRequest builds a chat completion request for model.
func MakeCompletionRequest(s *settings.Settings, model string, req engine.Request) (*go_openai.ChatCompletionRequest, error) {
	if s == nil {
		return nil, errors.New("no openai settings")
	}
	openaiTools, err := ToolsFromDefinitions(req.Tools)
	if err != nil {
		return nil, err
	}

	maxTokens := s.MaxTokens
	if maxTokens <= 0 {
		maxTokens = settings.DefaultMaxTokens
	}

	ret := &go_openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messagesFromConversation(req.SystemPrompt, req.Conversation),
		MaxTokens: maxTokens,
	}
	if len(openaiTools) > 0 {
		ret.Tools = openaiTools
	}
	if s.Temperature != nil {
		ret.Temperature = float32(*s.Temperature)
	}
	return ret, nil
}

// completionFromMessage normalizes the final assistant message.
func completionFromMessage(provider string, text string, calls []go_openai.ToolCall) (*engine.Completion, error) {
	var requests []conversation.ToolRequest
	for i, call := range calls {
		if call.ID == "" {
			call.ID = "call_" + shortuuid.New()
			calls[i].ID = call.ID
		}
		if call.Function.Name == "" {
			return nil, engine.NewAdapterError(provider, engine.ErrorKindMalformed,
				errors.Errorf("tool call %d has no function name", i))
		}
		args, err := engine.NormalizeArguments(provider, call.Function.Name, call.Function.Arguments)
		if err != nil {
			return nil, err
		}
		requests = append(requests, conversation.ToolRequest{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}

	raw, err := json.Marshal(go_openai.ChatCompletionMessage{
		Role:      go_openai.ChatMessageRoleAssistant,
		Content:   text,
		ToolCalls: calls,
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal assistant message")
	}

	return &engine.Completion{
		Text:         text,
		ToolRequests: requests,
		StopReason:   engine.StopReasonFor(requests),
		Raw:          raw,
	}, nil
}
