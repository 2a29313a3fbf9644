package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversation_PendingCalls(t *testing.T) {
	conv := Conversation{
		NewUserContent("weather in Berlin and Paris?"),
		NewToolCallContent(
			FunctionCall{ID: "a", Name: "get_weather"},
			FunctionCall{ID: "b", Name: "get_weather"},
		),
		NewToolResultContent(FunctionResponse{ID: "a", Name: "get_weather"}),
	}

	pending := conv.PendingCalls()
	require.Len(t, pending, 1)
	assert.Equal(t, "b", pending[0].ID)

	conv = append(conv, NewToolResultContent(FunctionResponse{ID: "b", Name: "get_weather"}))
	assert.Empty(t, conv.PendingCalls())

	assert.Empty(t, Conversation{NewUserContent("hi")}.PendingCalls())
	assert.Empty(t, Conversation{}.PendingCalls())
}

func TestConversation_Validate(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		conv := Conversation{
			NewSystemContent("sys"),
			NewUserContent("q"),
			NewToolCallContent(FunctionCall{ID: "1", Name: "x"}, FunctionCall{ID: "2", Name: "x"}),
			NewToolResultContent(FunctionResponse{ID: "1", Name: "x"}),
			NewToolResultContent(FunctionResponse{ID: "2", Name: "x"}),
			NewAssistantContent("answer"),
		}
		assert.NoError(t, conv.Validate())
	})

	t.Run("missing result", func(t *testing.T) {
		conv := Conversation{
			NewUserContent("q"),
			NewToolCallContent(FunctionCall{ID: "1", Name: "x"}),
			NewUserContent("again"),
		}
		assert.ErrorIs(t, conv.Validate(), ErrUnansweredCall)
	})

	t.Run("trailing call", func(t *testing.T) {
		conv := Conversation{NewToolCallContent(FunctionCall{ID: "1", Name: "x"})}
		assert.ErrorIs(t, conv.Validate(), ErrUnansweredCall)
	})

	t.Run("duplicate result", func(t *testing.T) {
		conv := Conversation{
			NewToolCallContent(FunctionCall{ID: "1", Name: "x"}),
			NewToolResultContent(FunctionResponse{ID: "1", Name: "x"}),
			NewToolResultContent(FunctionResponse{ID: "1", Name: "x"}),
		}
		assert.ErrorIs(t, conv.Validate(), ErrUnansweredCall)
	})

	t.Run("orphan result", func(t *testing.T) {
		conv := Conversation{
			NewUserContent("q"),
			NewToolResultContent(FunctionResponse{ID: "1", Name: "x"}),
		}
		assert.Error(t, conv.Validate())
	})
}

func TestConversation_CloneAndLast(t *testing.T) {
	conv := Conversation{NewUserContent("a")}
	clone := conv.Clone()
	clone = append(clone, NewAssistantContent("b"))

	last, ok := clone.Last()
	require.True(t, ok)
	assert.Equal(t, "b", last.Text())
	assert.Len(t, conv, 1)

	_, ok = Conversation{}.Last()
	assert.False(t, ok)
}
