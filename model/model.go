package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/toolagent/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by the loop.
type Request struct {
	Contents core.Conversation `json:"contents"` // Ordered conversation including system messages
	Tools    []ToolDefinition  `json:"tools,omitempty"`
	Stream   bool              `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"` // Indicates if this is a partial response
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "gemini", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the loop to drive generation.
//
// Generate emits zero or more partial responses followed by exactly one final
// (Partial == false) response on the first channel, or a single error on the
// second. Both channels are closed by the implementation when it is done.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrNoFinalResponse is returned by Collect when a model closes its stream
// without emitting a final response.
var ErrNoFinalResponse = errors.New("model produced no final response")

// Collect drains a Generate call, forwarding partial chunks to onPartial (if
// non-nil) and returning the final response.
func Collect(ctx context.Context, m Model, req Request, onPartial func(Response)) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		final    Response
		hasFinal bool
	)
	for resp := range respCh {
		if resp.Partial {
			if onPartial != nil {
				onPartial(resp)
			}
			continue
		}
		final = resp
		hasFinal = true
	}

	if err, ok := <-errCh; ok && err != nil {
		return Response{}, err
	}
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	if !hasFinal {
		return Response{}, ErrNoFinalResponse
	}
	if final.Content.Role == "" {
		final.Content.Role = core.RoleAssistant
	}
	return final, nil
}

// ScriptFunc computes the next assistant turn from the request.
type ScriptFunc func(req Request) (core.Content, error)

// ScriptedModel is a deterministic in-memory Model useful for tests & examples.
// It replays a fixed list of turns (the last one repeats once exhausted) or
// delegates to a ScriptFunc. Every request is recorded.
type ScriptedModel struct {
	info  Info
	turns []core.Content
	fn    ScriptFunc

	mu       sync.Mutex
	requests []Request
}

// NewScriptedModel constructs a ScriptedModel replaying the given turns.
func NewScriptedModel(turns ...core.Content) *ScriptedModel {
	return &ScriptedModel{
		info:  Info{Name: "scripted", Provider: "mock", SupportsTools: true},
		turns: turns,
	}
}

// NewScriptedModelFunc constructs a ScriptedModel computing turns with fn.
func NewScriptedModelFunc(fn ScriptFunc) *ScriptedModel {
	return &ScriptedModel{
		info: Info{Name: "scripted", Provider: "mock", SupportsTools: true},
		fn:   fn,
	}
}

// Requests returns a copy of the requests received so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *ScriptedModel) next(req Request) (core.Content, error) {
	m.mu.Lock()
	idx := len(m.requests)
	req.Contents = req.Contents.Clone()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.fn != nil {
		return m.fn(req)
	}
	if len(m.turns) == 0 {
		return core.Content{}, fmt.Errorf("scripted model: no turns configured")
	}
	if idx >= len(m.turns) {
		idx = len(m.turns) - 1
	}
	return m.turns[idx], nil
}

// Generate implements Model; emits one partial chunk per text part when
// streaming and then the final response.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}

		turn, err := m.next(req)
		if err != nil {
			errCh <- err
			return
		}

		if req.Stream {
			for _, p := range turn.Parts {
				tp, ok := p.(core.TextPart)
				if !ok {
					continue
				}
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Content: core.NewAssistantContent(tp.Text)}:
				}
			}
		}

		finish := "stop"
		if turn.HasFunctionCalls() {
			finish = "tool_calls"
		}
		if turn.Role == "" {
			turn.Role = core.RoleAssistant
		}
		respCh <- Response{ID: core.NewID(), Content: turn, FinishReason: finish}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *ScriptedModel) Info() Info { return m.info }

// ResultText renders a tool result as the text payload providers send back to
// the model. Errors become {"error": "..."} objects, strings pass through and
// everything else is JSON encoded.
func ResultText(fr core.FunctionResponse) string {
	if fr.IsError() {
		b, _ := json.Marshal(map[string]string{"error": fr.Error})
		return string(b)
	}
	switch v := fr.Response.(type) {
	case nil:
		return "null"
	case string:
		return v
	case []byte:
		return string(v)
	case json.RawMessage:
		return string(v)
	}
	b, err := json.Marshal(fr.Response)
	if err != nil {
		return fmt.Sprintf("%v", fr.Response)
	}
	return string(b)
}
