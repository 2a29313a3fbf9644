package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_JSONRoundTripsClosedPartSet(t *testing.T) {
	conv := Conversation{
		NewUserContent("Will it rain in Trivandrum today?"),
		{
			Role: RoleAssistant,
			Parts: []Part{
				TextPart{Text: "checking"},
				FunctionCallPart{FunctionCall: FunctionCall{ID: "call_1", Name: "get_weather", Arguments: `{"query":"Trivandrum"}`}},
			},
		},
		NewToolResultContent(FunctionResponse{ID: "call_1", Name: "get_weather", Error: "boom"}),
	}

	data, err := json.Marshal(conv)
	require.NoError(t, err)

	var decoded Conversation
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 3)

	assert.Equal(t, "Will it rain in Trivandrum today?", decoded[0].Text())
	assert.Equal(t, "checking", decoded[1].Text())
	calls := decoded[1].FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, conv[1].FunctionCalls()[0], calls[0])

	results := decoded[2].FunctionResponses()
	require.Len(t, results, 1)
	assert.Equal(t, "call_1", results[0].ID)
	assert.True(t, results[0].IsError())
	assert.NoError(t, decoded.Validate())
}

func TestContent_UnmarshalRejectsUnknownPart(t *testing.T) {
	var c Content
	err := json.Unmarshal([]byte(`{"role":"user","parts":[{"type":"image"}]}`), &c)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"role":"assistant","parts":[{"type":"function_call"}]}`), &c)
	assert.Error(t, err)
}
