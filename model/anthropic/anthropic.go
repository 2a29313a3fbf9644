// Package anthropic adapts the Anthropic Messages API to model.Model.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/tidwall/gjson"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/internal/util"
	"github.com/hupe1980/toolagent/model"
)

// DefaultModel is the Claude model used when Options.Model is empty.
const DefaultModel = "claude-sonnet-4-20250514"

// Options configures the Anthropic model adapter.
type Options struct {
	Model       string
	Temperature *float64
	// MaxTokens is required by the API; defaults to 4096.
	MaxTokens int64
	APIKey    string
	BaseURL   string
	// RequestOptions are passed through to the SDK client.
	RequestOptions []option.RequestOption
}

// Model is a model.Model backed by the official anthropic-sdk-go client.
type Model struct {
	client *anthropic.Client
	opts   Options
}

var _ model.Model = (*Model)(nil)

// NewModel creates a model with its own client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := newOptions(optFns)

	clientOpts := append([]option.RequestOption{}, opts.RequestOptions...)
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient wraps an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	return &Model{client: client, opts: newOptions(optFns)}
}

func newOptions(optFns []func(o *Options)) Options {
	opts := Options{Model: DefaultModel, MaxTokens: 4096}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "anthropic", SupportsTools: true}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		var (
			msg *anthropic.Message
			err error
		)
		params := m.params(req)
		if req.Stream {
			msg, err = m.stream(ctx, params, out)
		} else if msg, err = m.client.Messages.New(ctx, params); err != nil {
			err = fmt.Errorf("anthropic api error: %w", err)
		}
		if err != nil {
			errCh <- err
			return
		}
		out <- fromMessage(msg)
	}()

	return out, errCh
}

func (m *Model) stream(ctx context.Context, params anthropic.MessageNewParams, out chan<- model.Response) (*anthropic.Message, error) {
	stream := m.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	msg := &anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return nil, fmt.Errorf("anthropic stream accumulate: %w", err)
		}

		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
			select {
			case out <- model.Response{Partial: true, Content: core.NewAssistantContent(text.Text)}:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic streaming error: %w", err)
	}
	return msg, nil
}

func (m *Model) params(req model.Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.opts.Model),
		MaxTokens: m.opts.MaxTokens,
		Messages:  toMessages(req.Contents),
		System:    systemBlocks(req.Contents),
	}
	if m.opts.Temperature != nil {
		params.Temperature = anthropic.Float(*m.opts.Temperature)
	}
	for _, def := range req.Tools {
		params.Tools = append(params.Tools, toolParam(def))
	}
	return params
}

// fromMessage maps a complete message onto a final response. A tool_use stop
// reason is reported as "tool_calls".
func fromMessage(msg *anthropic.Message) model.Response {
	content := core.Content{Role: core.RoleAssistant}
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			if b.Text != "" {
				content.Parts = append(content.Parts, core.TextPart{Text: b.Text})
			}
		case anthropic.ToolUseBlock:
			args := "{}"
			if len(b.Input) > 0 {
				args = string(b.Input)
			}
			content.Parts = append(content.Parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: args,
			}})
		}
	}

	finish := string(msg.StopReason)
	switch msg.StopReason {
	case "":
		finish = "stop"
	case anthropic.StopReasonToolUse:
		finish = "tool_calls"
	}

	in, outTok := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return model.Response{
		ID:           msg.ID,
		Content:      content,
		FinishReason: finish,
		Usage:        &model.TokenUsage{PromptTokens: in, CompletionTokens: outTok, TotalTokens: in + outTok},
	}
}

// toMessages maps the conversation onto alternating user/assistant turns.
// System messages travel separately. Tool results become tool_result blocks,
// and consecutive results share one user turn so it answers every tool_use of
// the preceding assistant turn.
func toMessages(conv core.Conversation) []anthropic.MessageParam {
	var (
		msgs    []anthropic.MessageParam
		results []anthropic.ContentBlockParamUnion
	)
	flushResults := func() {
		if len(results) > 0 {
			msgs = append(msgs, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, c := range conv {
		switch c.Role {
		case core.RoleSystem:
		case core.RoleTool:
			for _, fr := range c.FunctionResponses() {
				results = append(results, anthropic.NewToolResultBlock(fr.ID, model.ResultText(fr), fr.IsError()))
			}
		case core.RoleAssistant:
			flushResults()
			if blocks := assistantBlocks(c); len(blocks) > 0 {
				msgs = append(msgs, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			flushResults()
			if text := c.Text(); text != "" {
				msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
			}
		}
	}
	flushResults()
	return msgs
}

func assistantBlocks(c core.Content) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion
	for _, p := range c.Parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(part.Text))
			}
		case core.FunctionCallPart:
			fc := part.FunctionCall
			var input any = map[string]any{}
			if fc.Arguments != "" && gjson.Valid(fc.Arguments) {
				input = json.RawMessage(fc.Arguments)
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(fc.ID, input, fc.Name))
		}
	}
	return blocks
}

func systemBlocks(conv core.Conversation) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, c := range conv {
		if c.Role != core.RoleSystem {
			continue
		}
		if text := c.Text(); text != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: text})
		}
	}
	return blocks
}

func toolParam(def model.ToolDefinition) anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}
	if params := def.Function.Parameters; params != nil {
		schema.Properties = params["properties"]
		schema.Required = util.StringList(params["required"])
	}

	tp := anthropic.ToolParam{Name: def.Function.Name, InputSchema: schema}
	if def.Function.Description != "" {
		tp.Description = anthropic.String(def.Function.Description)
	}
	return anthropic.ToolUnionParam{OfTool: &tp}
}
