package agent

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/flow"
	"github.com/hupe1980/toolagent/logging"
	"github.com/hupe1980/toolagent/model"
	"github.com/hupe1980/toolagent/tool"
)

// DefaultSystemPrompt instructs the model when to use the web search and
// weather tools.
const DefaultSystemPrompt = "You are an AI assistant with access to tools. " +
	"If the user asks about current events, facts, or knowledge you may not know, " +
	"always use the `search_web` tool to find reliable information. " +
	"For weather-related queries, prefer the `get_weather` tool."

// ReactSystemPrompt is the prompt of the prebuilt react agent.
const ReactSystemPrompt = `Act as a helpful assistant.
Use the tools at your disposal to perform tasks as needed.
    - get_weather: whenever user asks get the weather of a place.
    - search_web: whenever user asks for information on current events or if you don't know the answer.
Use the tools only if you don't know the answer.`

// Options configures an Agent.
type Options struct {
	Instruction Instruction
	Tools       []tool.Tool
	// Vars are template variables available to the instruction in addition
	// to .name and .date.
	Vars        map[string]any
	MaxSteps    int
	MaxParallel int
	Stream      bool
	Logger      logging.Logger
	// MeterProvider is handed to the loop; nil uses the global provider.
	MeterProvider metric.MeterProvider
	OnEvent       func(core.Event)
}

// Agent answers questions with a model and a fixed tool catalog.
type Agent struct {
	name        string
	model       model.Model
	catalog     *tool.Catalog
	instruction Instruction
	vars        map[string]any
	loop        *flow.Loop
	logger      logging.Logger
}

// New creates an agent named name. Tool names must be unique.
func New(name string, m model.Model, optFns ...func(o *Options)) (*Agent, error) {
	opts := Options{
		MaxSteps: flow.DefaultMaxSteps,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if m == nil {
		return nil, fmt.Errorf("agent %q: model is required", name)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	catalog, err := tool.NewCatalog(opts.Tools...)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", name, err)
	}

	loop := flow.New(m, catalog, func(o *flow.Options) {
		o.MaxSteps = opts.MaxSteps
		o.MaxParallel = opts.MaxParallel
		o.Stream = opts.Stream
		o.Author = name
		o.Logger = opts.Logger
		o.MeterProvider = opts.MeterProvider
		o.OnEvent = opts.OnEvent
	})

	return &Agent{
		name:        name,
		model:       m,
		catalog:     catalog,
		instruction: opts.Instruction,
		vars:        opts.Vars,
		loop:        loop,
		logger:      opts.Logger,
	}, nil
}

// NewReactAgent returns the prebuilt react agent over tools. An empty prompt
// selects ReactSystemPrompt.
func NewReactAgent(m model.Model, tools []tool.Tool, prompt string) (*Agent, error) {
	if prompt == "" {
		prompt = ReactSystemPrompt
	}
	return New("react_agent", m, func(o *Options) {
		o.Instruction = NewInstructionFromText(prompt)
		o.Tools = tools
	})
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// Catalog returns the tools offered to the model.
func (a *Agent) Catalog() *tool.Catalog { return a.catalog }

// Loop returns the underlying loop.
func (a *Agent) Loop() *flow.Loop { return a.loop }

func (a *Agent) templateVars() map[string]any {
	vars := make(map[string]any, len(a.vars)+2)
	vars["name"] = a.name
	vars["date"] = time.Now().Format("2006-01-02")
	for k, v := range a.vars {
		vars[k] = v
	}
	return vars
}

// SystemMessage resolves the instruction into a system message. ok is false
// when the agent has no instruction or it renders empty.
func (a *Agent) SystemMessage(ctx context.Context) (msg core.Content, ok bool, err error) {
	if a.instruction.IsZero() {
		return core.Content{}, false, nil
	}
	text, err := a.instruction.Resolve(ctx, a.templateVars())
	if err != nil {
		return core.Content{}, false, fmt.Errorf("agent %q: resolve instruction: %w", a.name, err)
	}
	if text == "" {
		return core.Content{}, false, nil
	}
	return core.NewSystemContent(text), true, nil
}

// Conversation builds the initial [system?, user] conversation for text.
func (a *Agent) Conversation(ctx context.Context, text string) (core.Conversation, error) {
	conv := make(core.Conversation, 0, 2)
	sys, ok, err := a.SystemMessage(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		conv = append(conv, sys)
	}
	return append(conv, core.NewUserContent(text)), nil
}

// Ask answers a single question without persistence.
func (a *Agent) Ask(ctx context.Context, text string, optFns ...func(o *flow.RunOptions)) (*flow.Result, error) {
	conv, err := a.Conversation(ctx, text)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("agent.ask", "agent", a.name, "messages", len(conv))
	return a.loop.Run(ctx, conv, optFns...)
}

// Run continues conv. A system message is prepended when conv has none and
// the agent has an instruction.
func (a *Agent) Run(ctx context.Context, conv core.Conversation, optFns ...func(o *flow.RunOptions)) (*flow.Result, error) {
	if len(conv) == 0 || conv[0].Role != core.RoleSystem {
		sys, ok, err := a.SystemMessage(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			conv = append(core.Conversation{sys}, conv...)
		}
	}
	return a.loop.Run(ctx, conv, optFns...)
}
