package claude

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-go-golems/shepherd/pkg/steps/ai/claude/api"
)

// ContentBlockMerger reconstructs a message from the events of a streaming
// Messages API answer.
//
// Text blocks accumulate text_delta fragments; tool_use blocks accumulate
// input_json_delta fragments, which only form valid JSON once the block is
// stopped. Blocks are keyed by their index, so the reconstructed content
// keeps the order in which the model produced it.
type ContentBlockMerger struct {
	response *api.MessageResponse
	blocks   map[int]*blockState
	stopped  bool
	error    *api.Error
}

type blockState struct {
	block   api.ContentBlock
	partial strings.Builder
	done    bool
}

func NewContentBlockMerger() *ContentBlockMerger {
	return &ContentBlockMerger{
		blocks: make(map[int]*blockState),
	}
}

// Add processes one event and returns the text delta it carries, if any.
func (cbm *ContentBlockMerger) Add(event api.StreamingEvent) (string, error) {
	switch event.Type {
	case api.PingType:
		return "", nil

	case api.MessageStartType:
		if event.Message == nil {
			return "", errors.New("message_start event must have a message")
		}
		cbm.response = event.Message
		cbm.response.Content = nil
		return "", nil

	case api.MessageDeltaType:
		if cbm.response == nil {
			return "", errors.New("message_delta event before message_start")
		}
		if event.Delta != nil {
			if event.Delta.StopReason != "" {
				cbm.response.StopReason = event.Delta.StopReason
			}
			if event.Delta.StopSequence != "" {
				cbm.response.StopSequence = event.Delta.StopSequence
			}
		}
		if event.Usage != nil {
			// usage in message_delta is cumulative for the output
			cbm.response.Usage.OutputTokens = event.Usage.OutputTokens
		}
		return "", nil

	case api.MessageStopType:
		if cbm.response == nil {
			return "", errors.New("message_stop event before message_start")
		}
		cbm.stopped = true
		return "", nil

	case api.ContentBlockStartType:
		if cbm.response == nil {
			return "", errors.New("content_block_start event before message_start")
		}
		if event.ContentBlock == nil {
			return "", errors.New("content_block_start event must have a content block")
		}
		if event.Index < 0 {
			return "", errors.Errorf("content_block_start event has a negative index %d", event.Index)
		}
		if _, exists := cbm.blocks[event.Index]; exists {
			return "", errors.Errorf("content block %d started twice", event.Index)
		}
		cbm.blocks[event.Index] = &blockState{block: *event.ContentBlock}
		// a text block may start with text already
		return event.ContentBlock.Text, nil

	case api.ContentBlockDeltaType:
		if event.Delta == nil {
			return "", errors.New("content_block_delta event must have a delta")
		}
		bs, exists := cbm.blocks[event.Index]
		if !exists {
			return "", errors.Errorf("content_block_delta for unknown block %d", event.Index)
		}
		switch event.Delta.Type {
		case api.TextDeltaType:
			bs.block.Text += event.Delta.Text
			return event.Delta.Text, nil
		case api.InputJSONDeltaType:
			bs.partial.WriteString(event.Delta.PartialJSON)
		}
		return "", nil

	case api.ContentBlockStopType:
		bs, exists := cbm.blocks[event.Index]
		if !exists {
			return "", errors.Errorf("content_block_stop for unknown block %d", event.Index)
		}
		if bs.block.Type == api.ContentTypeToolUse {
			input := strings.TrimSpace(bs.partial.String())
			switch {
			case input != "":
				if !json.Valid([]byte(input)) {
					return "", errors.Errorf("tool_use block %d (%s): input is not valid JSON", event.Index, bs.block.Name)
				}
				bs.block.Input = json.RawMessage(input)
			case len(bs.block.Input) == 0 || string(bs.block.Input) == "null":
				bs.block.Input = json.RawMessage("{}")
			}
		}
		bs.done = true
		return "", nil

	case api.ErrorType:
		if event.Error == nil {
			return "", errors.New("error event must have an error")
		}
		cbm.error = event.Error
		return "", nil

	default:
		// unknown event types are ignored
		return "", nil
	}
}

// Error returns the error event received in the stream, if any.
func (cbm *ContentBlockMerger) Error() *api.Error {
	return cbm.error
}

// Stopped reports whether message_stop was received.
func (cbm *ContentBlockMerger) Stopped() bool {
	return cbm.stopped
}

// Response returns the reconstructed message with its content blocks in
// index order.
func (cbm *ContentBlockMerger) Response() (*api.MessageResponse, error) {
	if cbm.response == nil {
		return nil, errors.New("stream ended before message_start")
	}
	if !cbm.stopped {
		return nil, errors.New("stream ended before message_stop")
	}

	indexes := make([]int, 0, len(cbm.blocks))
	for i := range cbm.blocks {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	ret := *cbm.response
	ret.Content = make([]api.ContentBlock, 0, len(indexes))
	for _, i := range indexes {
		bs := cbm.blocks[i]
		if !bs.done {
			return nil, errors.Errorf("content block %d was never stopped", i)
		}
		switch bs.block.Type {
		case api.ContentTypeText:
			if bs.block.Text == "" {
				continue
			}
		case api.ContentTypeToolUse:
		default:
			// thinking and other block types are not replayed
			continue
		}
		ret.Content = append(ret.Content, bs.block)
	}
	return &ret, nil
}
