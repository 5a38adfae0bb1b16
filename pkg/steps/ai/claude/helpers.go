package claude

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/go-go-golems/shepherd/pkg/conversation"
	"github.com/go-go-golems/shepherd/pkg/inference/engine"
	"github.com/go-go-golems/shepherd/pkg/inference/tools"
	"github.com/go-go-golems/shepherd/pkg/steps/ai/claude/api"
	"github.com/go-go-golems/shepherd/pkg/steps/ai/settings"
)

// turnToClaudeMessage converts a turn to a Claude API message. Tool results
// are carried by a user message regardless of the turn's role.
func turnToClaudeMessage(t conversation.Turn) api.Message {
	switch {
	case t.HasToolResults():
		msg := api.Message{Role: string(conversation.RoleUser)}
		for _, r := range t.ToolResults {
			msg.Content = append(msg.Content, api.NewToolResultContent(r.RequestID, string(r.Payload), r.IsError))
		}
		// tool_result blocks must come first in the message
		if t.Text != "" {
			msg.Content = append(msg.Content, api.NewTextContent(t.Text))
		}
		return msg

	case t.Role == conversation.RoleAssistant && len(t.Segments) > 0:
		msg := api.Message{Role: string(conversation.RoleAssistant)}
		for _, seg := range t.Segments {
			switch {
			case seg.ToolRequest != nil:
				req := seg.ToolRequest
				msg.Content = append(msg.Content, api.NewToolUseContent(req.ID, req.Name, req.Arguments))
			case seg.Text != "":
				msg.Content = append(msg.Content, api.NewTextContent(seg.Text))
			}
		}
		return msg

	case t.Role == conversation.RoleAssistant:
		msg := api.Message{Role: string(conversation.RoleAssistant)}
		if t.Text != "" {
			msg.Content = append(msg.Content, api.NewTextContent(t.Text))
		}
		for _, req := range t.ToolRequests {
			msg.Content = append(msg.Content, api.NewToolUseContent(req.ID, req.Name, req.Arguments))
		}
		return msg

	default:
		msg := api.Message{Role: string(conversation.RoleUser)}
		// the API rejects empty text blocks
		if t.Text != "" {
			msg.Content = append(msg.Content, api.NewTextContent(t.Text))
		}
		return msg
	}
}

// messagesFromConversation converts the transcript, merging consecutive
// messages of the same role since the Messages API requires alternation.
func messagesFromConversation(c conversation.Conversation) []api.Message {
	msgs := make([]api.Message, 0, len(c))
	for _, t := range c {
		m := turnToClaudeMessage(t)
		if len(m.Content) == 0 {
			continue
		}
		if n := len(msgs); n > 0 && msgs[n-1].Role == m.Role {
			msgs[n-1].Content = append(msgs[n-1].Content, m.Content...)
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs
}

// ToolsFromDefinitions converts tool definitions to Claude's tool format.
func ToolsFromDefinitions(defs []tools.ToolDefinition) ([]api.Tool, error) {
	ret := make([]api.Tool, 0, len(defs))
	for _, def := range defs {
		schema, err := def.SchemaJSON()
		if err != nil {
			return nil, errors.Wrapf(err, "tool %s", def.Name)
		}
		ret = append(ret, api.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema,
		})
	}
	return ret, nil
}

// MakeMessageRequest builds a Claude MessageRequest from settings and an
// engine request.
func MakeMessageRequest(s *settings.Settings, req engine.Request) (*api.MessageRequest, error) {
	if s == nil {
		return nil, errors.New("no claude settings")
	}
	claudeTools, err := ToolsFromDefinitions(req.Tools)
	if err != nil {
		return nil, err
	}

	maxTokens := s.MaxTokens
	if maxTokens <= 0 {
		maxTokens = settings.DefaultMaxTokens
	}

	return &api.MessageRequest{
		Model:       s.ModelFor(settings.ProviderClaude),
		Messages:    messagesFromConversation(req.Conversation),
		MaxTokens:   maxTokens,
		System:      req.SystemPrompt,
		Temperature: s.Temperature,
		Tools:       claudeTools,
	}, nil
}

// completionFromResponse normalizes a reconstructed or non-streamed answer.
func completionFromResponse(resp *api.MessageResponse) (*engine.Completion, error) {
	var requests []conversation.ToolRequest
	var segments []conversation.Segment
	for _, block := range resp.Content {
		switch block.Type {
		case api.ContentTypeText:
			if block.Text != "" {
				segments = append(segments, conversation.Segment{Text: block.Text})
			}
		case api.ContentTypeToolUse:
			args, err := engine.NormalizeArguments(Name, block.Name, string(block.Input))
			if err != nil {
				return nil, err
			}
			req := conversation.ToolRequest{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
			}
			requests = append(requests, req)
			segments = append(segments, conversation.Segment{ToolRequest: &req})
		}
	}

	raw, err := json.Marshal(resp.Content)
	if err != nil {
		return nil, errors.Wrap(err, "could not marshal claude content")
	}

	return &engine.Completion{
		Text:         resp.FullText(),
		ToolRequests: requests,
		Segments:     segments,
		StopReason:   engine.StopReasonFor(requests),
		Raw:          raw,
	}, nil
}
