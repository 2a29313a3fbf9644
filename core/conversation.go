package core

import (
	"errors"
	"fmt"
)

// ErrUnansweredCall is returned by Conversation.Validate when a tool-call
// request is not followed by its result before the next non-tool message.
var ErrUnansweredCall = errors.New("tool call without matching result")

// Conversation is the ordered message buffer submitted to a model.
type Conversation []Content

// Clone returns a shallow copy safe to append to independently.
func (c Conversation) Clone() Conversation {
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

// Last returns the final message and false if the conversation is empty.
func (c Conversation) Last() (Content, bool) {
	if len(c) == 0 {
		return Content{}, false
	}
	return c[len(c)-1], true
}

// PendingCalls returns the tool calls of the latest assistant message that
// have not been answered by a tool result yet.
func (c Conversation) PendingCalls() []FunctionCall {
	answered := map[string]bool{}
	for i := len(c) - 1; i >= 0; i-- {
		msg := c[i]
		switch msg.Role {
		case RoleTool:
			for _, fr := range msg.FunctionResponses() {
				answered[fr.ID] = true
			}
		case RoleAssistant:
			var pending []FunctionCall
			for _, fc := range msg.FunctionCalls() {
				if !answered[fc.ID] {
					pending = append(pending, fc)
				}
			}
			return pending
		default:
			return nil
		}
	}
	return nil
}

// Validate checks that every tool call is answered by exactly one result
// carrying the same id before the next non-tool message.
func (c Conversation) Validate() error {
	var open map[string]int
	closeBatch := func(at int) error {
		for id, n := range open {
			if n != 1 {
				return fmt.Errorf("message %d: call %q has %d results: %w", at, id, n, ErrUnansweredCall)
			}
		}
		open = nil
		return nil
	}

	for i, msg := range c {
		if msg.Role == RoleTool {
			for _, fr := range msg.FunctionResponses() {
				if _, ok := open[fr.ID]; !ok {
					return fmt.Errorf("message %d: result %q has no matching call", i, fr.ID)
				}
				open[fr.ID]++
			}
			continue
		}
		if err := closeBatch(i); err != nil {
			return err
		}
		if msg.Role == RoleAssistant && msg.HasFunctionCalls() {
			open = map[string]int{}
			for _, fc := range msg.FunctionCalls() {
				open[fc.ID] = 0
			}
		}
	}
	return closeBatch(len(c))
}
