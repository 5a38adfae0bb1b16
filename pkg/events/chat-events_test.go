package events

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventPayloads(t *testing.T) {
	meta := EventMetadata{RunID: "run-1", Iteration: 2}

	testCases := []struct {
		name     string
		event    Event
		expected string
	}{
		{
			name:     "text",
			event:    NewTextEvent(meta, "You have 142"),
			expected: `{"type":"text","content":"You have 142"}`,
		},
		{
			name: "tool start",
			event: NewToolsStartedEvent(meta, []ToolRef{
				{Name: "search_members", ID: "toolu_1"},
				{Name: "get_departments", ID: "toolu_2"},
			}),
			expected: `{"type":"tool_start","tools":[{"name":"search_members","id":"toolu_1"},{"name":"get_departments","id":"toolu_2"}]}`,
		},
		{
			name:     "tool complete hides the request id",
			event:    NewToolCompletedEvent(meta, "toolu_1", "search_members", false),
			expected: `{"type":"tool_complete","name":"search_members","success":false}`,
		},
		{
			name:     "done",
			event:    NewDoneEvent(meta),
			expected: `{"type":"done"}`,
		},
		{
			name:     "error",
			event:    NewErrorEvent(meta, errors.New("maximum iterations reached (10): the model kept requesting tools")),
			expected: `{"type":"error","message":"maximum iterations reached (10): the model kept requesting tools"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := tc.event.Payload()
			require.NoError(t, err)
			assert.JSONEq(t, tc.expected, string(b))
			assert.Equal(t, meta, tc.event.Metadata())

			decoded, err := NewEventFromJson(b)
			require.NoError(t, err)
			assert.Equal(t, tc.event.Type(), decoded.Type())
			again, err := decoded.Payload()
			require.NoError(t, err)
			assert.JSONEq(t, tc.expected, string(again))
		})
	}
}

func TestNewEventFromJson_Errors(t *testing.T) {
	_, err := NewEventFromJson([]byte(`{"type":"partial"}`))
	assert.Error(t, err)

	_, err = NewEventFromJson([]byte(`not json`))
	assert.Error(t, err)
}

func TestToolsStartedEvent_EmptyListIsArray(t *testing.T) {
	b, err := NewToolsStartedEvent(EventMetadata{}, nil).Payload()
	require.NoError(t, err)
	assert.True(t, bytes.Contains(b, []byte(`"tools":[]`)), string(b))
}
