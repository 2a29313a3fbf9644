// Package gemini adapts the Google Gemini API (google.golang.org/genai) to
// model.Model.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/model"
)

// DefaultModel is the Gemini model used when Options.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// Options configures the Gemini model adapter.
type Options struct {
	// Model should not start with "models/".
	Model           string
	APIKey          string
	BaseURL         string
	Temperature     *float32
	MaxOutputTokens int32
}

// Model wraps genai.Client behind the generic model.Model interface.
type Model struct {
	client *genai.Client
	opts   Options
}

var _ model.Model = (*Model)(nil)

// NewModel creates a Gemini API client. An empty APIKey lets the SDK read
// GEMINI_API_KEY / GOOGLE_API_KEY from the environment.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := Options{Model: DefaultModel}
	for _, fn := range optFns {
		fn(&opts)
	}

	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Model{client: client, opts: opts}, nil
}

// NewModelFromClient creates a new Gemini model from an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{Model: DefaultModel}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		cfg, contents := m.convRequest(req)
		if len(contents) == 0 {
			errCh <- errors.New("no contents")
			return
		}

		if !req.Stream {
			resp, err := m.client.Models.GenerateContent(ctx, m.opts.Model, contents, cfg)
			if err != nil {
				errCh <- fmt.Errorf("gemini api error: %w", err)
				return
			}
			final, err := toResponse(resp)
			if err != nil {
				errCh <- err
				return
			}
			out <- final
			return
		}

		var (
			text  strings.Builder
			calls []core.Part
			last  *genai.GenerateContentResponse
		)
		for chunk, err := range m.client.Models.GenerateContentStream(ctx, m.opts.Model, contents, cfg) {
			if err != nil {
				errCh <- fmt.Errorf("gemini streaming error: %w", err)
				return
			}
			last = chunk
			if len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil {
				continue
			}
			for _, p := range chunk.Candidates[0].Content.Parts {
				switch {
				case p.FunctionCall != nil:
					calls = append(calls, convFunctionCall(p.FunctionCall))
				case p.Text != "" && !p.Thought:
					text.WriteString(p.Text)
					out <- model.Response{Partial: true, Content: core.NewAssistantContent(p.Text)}
				}
			}
		}
		if last == nil {
			errCh <- model.ErrNoFinalResponse
			return
		}

		parts := make([]core.Part, 0, len(calls)+1)
		if text.Len() > 0 {
			parts = append(parts, core.TextPart{Text: text.String()})
		}
		parts = append(parts, calls...)
		final := model.Response{
			ID:           last.ResponseID,
			Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
			FinishReason: finishReason(last, len(calls) > 0),
			Usage:        convUsage(last.UsageMetadata),
		}
		out <- final
	}()

	return out, errCh
}

func (m *Model) convRequest(req model.Request) (*genai.GenerateContentConfig, []*genai.Content) {
	cfg := &genai.GenerateContentConfig{
		Temperature: m.opts.Temperature,
	}
	if m.opts.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = m.opts.MaxOutputTokens
	}

	var system []*genai.Part
	for _, c := range req.Contents {
		if c.Role == core.RoleSystem {
			system = append(system, genai.NewPartFromText(c.Text()))
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: system}
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Function.Name,
				Description:          t.Function.Description,
				ParametersJsonSchema: t.Function.Parameters,
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	return cfg, convContents(req.Contents)
}

// convContents maps the conversation to Gemini contents. Consecutive messages
// that land on the same role are merged, so parallel tool results form one
// user turn.
func convContents(conv core.Conversation) []*genai.Content {
	var (
		contents []*genai.Content
		last     *genai.Content
	)
	for _, c := range conv {
		var (
			role  string
			parts []*genai.Part
		)
		switch c.Role {
		case core.RoleSystem:
			continue
		case core.RoleAssistant:
			role = "model"
			if text := c.Text(); text != "" {
				parts = append(parts, genai.NewPartFromText(text))
			}
			for _, fc := range c.FunctionCalls() {
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					Name: fc.Name,
					Args: decodeArgs(fc.Arguments),
				}})
			}
		case core.RoleTool:
			role = "user"
			for _, fr := range c.FunctionResponses() {
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					Name:     fr.Name,
					Response: responseMap(fr),
				}})
			}
		default:
			role = "user"
			if text := c.Text(); text != "" {
				parts = append(parts, genai.NewPartFromText(text))
			}
		}
		if len(parts) == 0 {
			continue
		}
		if last != nil && last.Role == role {
			last.Parts = append(last.Parts, parts...)
			continue
		}
		last = &genai.Content{Role: role, Parts: parts}
		contents = append(contents, last)
	}
	return contents
}

func decodeArgs(args string) map[string]any {
	out := map[string]any{}
	if args == "" {
		return out
	}
	if err := json.Unmarshal([]byte(args), &out); err != nil {
		return map[string]any{"text": args}
	}
	return out
}

// responseMap shapes a tool result the way Gemini expects: an object with
// "output" on success or "error" on failure.
func responseMap(fr core.FunctionResponse) map[string]any {
	if fr.IsError() {
		return map[string]any{"error": fr.Error}
	}
	var decoded any
	if err := json.Unmarshal([]byte(model.ResultText(fr)), &decoded); err == nil {
		if obj, ok := decoded.(map[string]any); ok {
			return obj
		}
		return map[string]any{"output": decoded}
	}
	return map[string]any{"output": model.ResultText(fr)}
}

func convFunctionCall(fc *genai.FunctionCall) core.Part {
	id := fc.ID
	if id == "" {
		id = "call_" + core.NewID()
	}
	args, _ := json.Marshal(fc.Args)
	if fc.Args == nil {
		args = []byte("{}")
	}
	return core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: fc.Name, Arguments: string(args)}}
}

func toResponse(resp *genai.GenerateContentResponse) (model.Response, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return model.Response{}, errors.New("no candidates returned")
	}
	var (
		text  strings.Builder
		calls []core.Part
	)
	for _, p := range resp.Candidates[0].Content.Parts {
		switch {
		case p.FunctionCall != nil:
			calls = append(calls, convFunctionCall(p.FunctionCall))
		case p.Text != "" && !p.Thought:
			text.WriteString(p.Text)
		}
	}
	parts := make([]core.Part, 0, len(calls)+1)
	if text.Len() > 0 {
		parts = append(parts, core.TextPart{Text: text.String()})
	}
	parts = append(parts, calls...)
	return model.Response{
		ID:           resp.ResponseID,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: finishReason(resp, len(calls) > 0),
		Usage:        convUsage(resp.UsageMetadata),
	}, nil
}

func finishReason(resp *genai.GenerateContentResponse, hasCalls bool) string {
	if hasCalls {
		return "tool_calls"
	}
	if len(resp.Candidates) == 0 {
		return "stop"
	}
	switch resp.Candidates[0].FinishReason {
	case genai.FinishReasonMaxTokens:
		return "length"
	case genai.FinishReasonSafety:
		return "content_filter"
	default:
		return "stop"
	}
}

func convUsage(usage *genai.GenerateContentResponseUsageMetadata) *model.TokenUsage {
	if usage == nil {
		return nil
	}
	return &model.TokenUsage{
		PromptTokens:     int(usage.PromptTokenCount),
		CompletionTokens: int(usage.CandidatesTokenCount),
		TotalTokens:      int(usage.TotalTokenCount),
	}
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "gemini",
		SupportsTools: true,
	}
}
