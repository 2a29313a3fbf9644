package testutil

import (
	"github.com/hupe1980/toolagent/core"
)

// ConversationBuilder provides a fluent helper for constructing conversations
// in tests.
// Example:
//
//	conv := NewConversationBuilder().User("rain?").Call("c1", "get_weather", `{"query":"Kochi"}`).Build()
//
// Consecutive Call invocations are grouped into one assistant message, as
// are consecutive Result invocations into one tool message each.
type ConversationBuilder struct {
	msgs    core.Conversation
	pending []core.FunctionCall
}

// NewConversationBuilder creates an empty builder.
func NewConversationBuilder() *ConversationBuilder { return &ConversationBuilder{} }

func (b *ConversationBuilder) flush() {
	if len(b.pending) == 0 {
		return
	}
	b.msgs = append(b.msgs, core.NewToolCallContent(b.pending...))
	b.pending = nil
}

// System appends a system message (chainable).
func (b *ConversationBuilder) System(t string) *ConversationBuilder {
	b.flush()
	b.msgs = append(b.msgs, core.NewSystemContent(t))
	return b
}

// User appends a user message (chainable).
func (b *ConversationBuilder) User(t string) *ConversationBuilder {
	b.flush()
	b.msgs = append(b.msgs, core.NewUserContent(t))
	return b
}

// Assistant appends a plain assistant answer (chainable).
func (b *ConversationBuilder) Assistant(t string) *ConversationBuilder {
	b.flush()
	b.msgs = append(b.msgs, core.NewAssistantContent(t))
	return b
}

// Call adds a tool call to the current assistant message (chainable).
func (b *ConversationBuilder) Call(id, name, args string) *ConversationBuilder {
	b.pending = append(b.pending, core.FunctionCall{ID: id, Name: name, Arguments: args})
	return b
}

// Result appends a tool result message. A non-nil err marks it failed
// (chainable).
func (b *ConversationBuilder) Result(id, name string, result any, err error) *ConversationBuilder {
	b.flush()
	fr := core.FunctionResponse{ID: id, Name: name, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	b.msgs = append(b.msgs, core.NewToolResultContent(fr))
	return b
}

// Build returns the conversation.
func (b *ConversationBuilder) Build() core.Conversation {
	b.flush()
	return b.msgs.Clone()
}
