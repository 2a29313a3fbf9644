package core

import (
	"time"

	"github.com/google/uuid"
)

// Event is the unit emitted by the loop for every committed message and, when
// streaming is enabled, for partial model output. After emission it should be
// treated as immutable. It captures:
//   - Correlation (RunID, ID, Author, Step)
//   - Conversational content
//   - Streaming / completion flags
//   - High precision UTC timestamp
type Event struct {
	ID           string    `json:"id"`
	RunID        string    `json:"run_id"`
	Author       string    `json:"author"`
	Step         int       `json:"step"`
	Timestamp    time.Time `json:"timestamp"`
	Content      *Content  `json:"content,omitempty"`
	Partial      bool      `json:"partial,omitempty"`
	TurnComplete bool      `json:"turn_complete,omitempty"`
}

// NewEvent creates a bare event authored by 'author' bound to a run.
func NewEvent(runID, author string) Event {
	return Event{
		ID:        NewID(),
		RunID:     runID,
		Author:    author,
		Timestamp: time.Now().UTC(),
	}
}

// NewContentEvent creates an event carrying a copy of the given content.
func NewContentEvent(runID, author string, step int, c Content) Event {
	e := NewEvent(runID, author)
	e.Step = step
	e.Content = &c
	return e
}

// NewID generates a new unique identifier for events, runs and threads.
func NewID() string { return uuid.NewString() }

// FunctionCalls returns any FunctionCall parts contained within the event
// content preserving their original order.
func (e Event) FunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}
	return e.Content.FunctionCalls()
}

// FunctionResponses returns any FunctionResponse parts contained within the
// event content preserving their original order.
func (e Event) FunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}
	return e.Content.FunctionResponses()
}

// IsFinalResponse reports whether the event carries a complete assistant
// answer without pending tool calls.
func (e Event) IsFinalResponse() bool {
	return e.Content != nil &&
		e.Content.Role == RoleAssistant &&
		!e.Partial &&
		!e.Content.HasFunctionCalls()
}

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
