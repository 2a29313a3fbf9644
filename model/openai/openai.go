// Package openai adapts the OpenAI Chat Completions API (or any compatible
// gateway reachable through BaseURL) to model.Model, including streaming and
// tool calling.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/model"
)

// DefaultModel is the chat model used when Options.Model is empty.
const DefaultModel = "o4-mini"

// Options configure the OpenAI model adapter.
type Options struct {
	Model   string
	APIKey  string
	BaseURL string
	// Temperature is only sent when set; reasoning models reject it.
	Temperature         *float64
	MaxCompletionTokens int64
	// RequestOptions are passed through to the SDK client.
	RequestOptions []option.RequestOption
}

// Model is a model.Model backed by the official openai-go client.
type Model struct {
	client *openai.Client
	opts   Options
}

var _ model.Model = (*Model)(nil)

// NewModel creates a model with its own client. An empty APIKey or BaseURL
// leaves the SDK's OPENAI_* environment handling in place.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := newOptions(optFns)

	clientOpts := append([]option.RequestOption{}, opts.RequestOptions...)
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient wraps an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	return &Model{client: client, opts: newOptions(optFns)}
}

func newOptions(optFns []func(o *Options)) Options {
	opts := Options{Model: DefaultModel, MaxCompletionTokens: 4096}
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "openai", SupportsTools: true}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)

		var (
			resp model.Response
			err  error
		)
		params := m.params(req)
		if req.Stream {
			resp, err = m.stream(ctx, params, out)
		} else {
			resp, err = m.complete(ctx, params)
		}
		if err != nil {
			errCh <- err
			return
		}
		out <- resp
	}()
	return out, errCh
}

func (m *Model) complete(ctx context.Context, params openai.ChatCompletionNewParams) (model.Response, error) {
	cc, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return model.Response{}, fmt.Errorf("openai api error: %w", err)
	}
	return fromCompletion(cc)
}

// stream forwards text deltas as partial responses and folds every chunk into
// an accumulator; the accumulated completion becomes the final response.
func (m *Model) stream(ctx context.Context, params openai.ChatCompletionNewParams, out chan<- model.Response) (model.Response, error) {
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}

	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		for _, ch := range chunk.Choices {
			if ch.Delta.Content == "" {
				continue
			}
			select {
			case out <- model.Response{Partial: true, Content: core.NewAssistantContent(ch.Delta.Content)}:
			case <-ctx.Done():
				return model.Response{}, ctx.Err()
			}
		}
	}
	if err := stream.Err(); err != nil {
		return model.Response{}, fmt.Errorf("openai streaming error: %w", err)
	}
	return fromCompletion(&acc.ChatCompletion)
}

func fromCompletion(cc *openai.ChatCompletion) (model.Response, error) {
	if len(cc.Choices) == 0 {
		return model.Response{}, errors.New("openai: no choices returned")
	}
	choice := cc.Choices[0]

	msg := core.Content{Role: core.RoleAssistant}
	if choice.Message.Content != "" {
		msg.Parts = append(msg.Parts, core.TextPart{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		msg.Parts = append(msg.Parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}})
	}

	resp := model.Response{ID: cc.ID, Content: msg, FinishReason: choice.FinishReason}
	if u := cc.Usage; u.TotalTokens > 0 {
		resp.Usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokens),
			CompletionTokens: int(u.CompletionTokens),
			TotalTokens:      int(u.TotalTokens),
		}
	}
	return resp, nil
}

func (m *Model) params(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    m.opts.Model,
		Messages: toMessages(req.Contents),
	}
	if m.opts.Temperature != nil {
		params.Temperature = openai.Float(*m.opts.Temperature)
	}
	if m.opts.MaxCompletionTokens > 0 {
		params.MaxCompletionTokens = openai.Int(m.opts.MaxCompletionTokens)
	}
	for _, def := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        def.Function.Name,
				Description: openai.String(def.Function.Description),
				Parameters:  def.Function.Parameters,
			},
		})
	}
	return params
}

// toMessages maps the conversation onto chat messages. A tool message holding
// several results expands into one "tool" message per result, so every result
// stays directly behind the assistant turn that requested it.
func toMessages(conv core.Conversation) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(conv))
	for _, c := range conv {
		text := c.Text()
		switch c.Role {
		case core.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(text))
		case core.RoleAssistant:
			msgs = append(msgs, assistantMessage(c, text))
		case core.RoleTool:
			for _, fr := range c.FunctionResponses() {
				msgs = append(msgs, openai.ToolMessage(model.ResultText(fr), fr.ID))
			}
		default:
			if c.Role == core.RoleUser || text != "" {
				msgs = append(msgs, openai.UserMessage(text))
			}
		}
	}
	return msgs
}

func assistantMessage(c core.Content, text string) openai.ChatCompletionMessageParamUnion {
	calls := c.FunctionCalls()
	if len(calls) == 0 {
		return openai.AssistantMessage(text)
	}

	msg := openai.ChatCompletionAssistantMessageParam{}
	if text != "" {
		msg.Content.OfString = openai.String(text)
	}
	for _, fc := range calls {
		args := fc.Arguments
		if args == "" {
			args = "{}"
		}
		msg.ToolCalls = append(msg.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:       fc.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{Name: fc.Name, Arguments: args},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &msg}
}
