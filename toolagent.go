// Package toolagent wires a model client, a fixed tool catalog and an optional
// thread store into a tool-calling assistant. Everything is constructed
// explicitly from a config.Config; there are no package level singletons.
//
// Typical use:
//
//	cfg, _ := config.Load("")
//	ta, err := toolagent.New(ctx, cfg)
//	if err != nil { ... }
//	defer ta.Close()
//	res, err := ta.Ask(ctx, "What is the current weather in Trivandrum today")
//	fmt.Println(res.Final.Text())
package toolagent

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/hupe1980/toolagent/agent"
	"github.com/hupe1980/toolagent/config"
	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/flow"
	"github.com/hupe1980/toolagent/logging"
	"github.com/hupe1980/toolagent/model"
	"github.com/hupe1980/toolagent/model/anthropic"
	"github.com/hupe1980/toolagent/model/gemini"
	"github.com/hupe1980/toolagent/model/openai"
	"github.com/hupe1980/toolagent/runner"
	"github.com/hupe1980/toolagent/session"
	"github.com/hupe1980/toolagent/tool"
	"github.com/hupe1980/toolagent/tool/mcp"
	"github.com/hupe1980/toolagent/tool/search"
	"github.com/hupe1980/toolagent/tool/weather"
	"github.com/hupe1980/toolagent/tool/wikipedia"
)

// Options overrides collaborators that New would otherwise build from the
// configuration.
type Options struct {
	// Model replaces the provider client; config validation is skipped.
	Model model.Model
	// Store replaces the store opened from cfg.Store.
	Store core.ThreadStore
	// ExtraTools are appended to the configured tools.
	ExtraTools    []tool.Tool
	Logger        logging.Logger
	MeterProvider metric.MeterProvider
	// OnEvent observes every committed message (and stream chunk).
	OnEvent func(core.Event)
}

// ToolAgent is the assembled assistant.
type ToolAgent struct {
	cfg    *config.Config
	model  model.Model
	agent  *agent.Agent
	runner *runner.Runner
	store  core.ThreadStore
	mcp    []*mcp.Client
	logger logging.Logger
	opts   Options
}

// New builds the model client, the tool catalog and the thread store from cfg.
func New(ctx context.Context, cfg *config.Config, optFns ...func(o *Options)) (*ToolAgent, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if cfg == nil {
		cfg = config.Default()
	}

	ta := &ToolAgent{cfg: cfg, logger: opts.Logger, model: opts.Model, opts: opts}

	if ta.model == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		m, err := NewModel(ctx, cfg)
		if err != nil {
			return nil, err
		}
		ta.model = m
	}

	tools := BuildTools(cfg)
	for _, spec := range cfg.MCP {
		client, err := mcp.Connect(ctx, spec)
		if err != nil {
			_ = ta.Close()
			return nil, fmt.Errorf("connect mcp %q: %w", spec, err)
		}
		ta.mcp = append(ta.mcp, client)
		remote, err := client.Tools(ctx)
		if err != nil {
			_ = ta.Close()
			return nil, fmt.Errorf("list mcp tools %q: %w", spec, err)
		}
		ta.logger.Info("mcp.connected", "transport", spec, "tools", len(remote))
		tools = append(tools, remote...)
	}
	tools = append(tools, opts.ExtraTools...)

	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = agent.DefaultSystemPrompt
	}
	a, err := agent.New("assistant", ta.model, func(o *agent.Options) {
		o.Instruction = agent.NewInstructionFromText(prompt)
		o.Tools = tools
		o.MaxSteps = cfg.MaxSteps
		o.MaxParallel = cfg.MaxParallel
		o.Stream = cfg.Stream
		o.Logger = opts.Logger
		o.MeterProvider = opts.MeterProvider
		o.OnEvent = opts.OnEvent
	})
	if err != nil {
		_ = ta.Close()
		return nil, err
	}
	ta.agent = a
	return ta, nil
}

// NewModel constructs the provider client selected by cfg, wrapped with
// retry/backoff when cfg.MaxRetries > 0.
func NewModel(ctx context.Context, cfg *config.Config) (model.Model, error) {
	var m model.Model
	switch cfg.Provider {
	case config.ProviderOpenAI:
		m = openai.NewModel(func(o *openai.Options) {
			o.APIKey = cfg.Keys.OpenAI
			o.BaseURL = cfg.BaseURL
			o.Temperature = cfg.Temperature
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		})
	case config.ProviderAnthropic:
		m = anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = cfg.Keys.Anthropic
			o.BaseURL = cfg.BaseURL
			o.Temperature = cfg.Temperature
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		})
	case config.ProviderGemini:
		gm, err := gemini.NewModel(ctx, func(o *gemini.Options) {
			o.APIKey = cfg.Keys.Gemini
			o.BaseURL = cfg.BaseURL
			if cfg.Temperature != nil {
				t := float32(*cfg.Temperature)
				o.Temperature = &t
			}
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		})
		if err != nil {
			return nil, err
		}
		m = gm
	default:
		return nil, &config.Error{Field: "provider", Message: fmt.Sprintf("unsupported provider %q", cfg.Provider)}
	}

	if cfg.MaxRetries > 0 {
		m = model.WithRetry(m, func(o *model.RetryOptions) { o.MaxRetries = cfg.MaxRetries })
	}
	return m, nil
}

// BuildTools returns the built-in tools enabled in cfg, in catalog order.
func BuildTools(cfg *config.Config) []tool.Tool {
	var tools []tool.Tool
	for _, name := range cfg.Tools.Enabled {
		switch name {
		case config.ToolSearch:
			tools = append(tools, search.New(func(o *search.Options) {
				o.APIKey = cfg.Keys.Tavily
				if cfg.Tools.SearchBaseURL != "" {
					o.BaseURL = cfg.Tools.SearchBaseURL
				}
				if cfg.Tools.SearchMaxResults > 0 {
					o.MaxResults = cfg.Tools.SearchMaxResults
				}
				if cfg.Tools.SearchDepth != "" {
					o.SearchDepth = cfg.Tools.SearchDepth
				}
			}))
		case config.ToolWeather:
			tools = append(tools, weather.New(func(o *weather.Options) {
				o.APIKey = cfg.Keys.Weather
				if cfg.Tools.WeatherBaseURL != "" {
					o.BaseURL = cfg.Tools.WeatherBaseURL
				}
			}))
		case config.ToolWikipedia:
			tools = append(tools, wikipedia.New())
		}
	}
	return tools
}

// Agent returns the assembled agent.
func (t *ToolAgent) Agent() *agent.Agent { return t.agent }

// Catalog returns the tools offered to the model.
func (t *ToolAgent) Catalog() *tool.Catalog { return t.agent.Catalog() }

// Ask answers question without persistence, looping until the model stops
// requesting tools.
func (t *ToolAgent) Ask(ctx context.Context, question string) (*flow.Result, error) {
	return t.agent.Ask(ctx, question)
}

// AskOnce answers with a single tool round: the model may request tools once,
// then must answer from their results.
func (t *ToolAgent) AskOnce(ctx context.Context, question string) (*flow.Result, error) {
	conv, err := t.agent.Conversation(ctx, question)
	if err != nil {
		return nil, err
	}
	return flow.RunOnce(ctx, t.model, t.agent.Catalog(), conv, func(o *flow.Options) {
		o.Logger = t.logger
		o.MeterProvider = t.opts.MeterProvider
		o.OnEvent = t.opts.OnEvent
		o.MaxParallel = t.cfg.MaxParallel
	})
}

// Chat answers text on a persisted thread. The store is opened on first use.
func (t *ToolAgent) Chat(ctx context.Context, threadID, text string) (*flow.Result, error) {
	r, err := t.Runner()
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, threadID, text)
}

// Store returns the thread store, opening it from the configuration on first
// use.
func (t *ToolAgent) Store() (core.ThreadStore, error) {
	if t.store != nil {
		return t.store, nil
	}
	if t.opts.Store != nil {
		t.store = t.opts.Store
		return t.store, nil
	}
	ttl, err := t.cfg.TTL()
	if err != nil {
		return nil, &config.Error{Field: "store_ttl", Message: err.Error()}
	}
	store, err := session.Open(t.cfg.Store, func(o *session.OpenOptions) {
		o.Logger = t.logger
		o.TTL = ttl
	})
	if err != nil {
		return nil, err
	}
	t.store = store
	return store, nil
}

// Runner returns the thread runner, creating it on first use.
func (t *ToolAgent) Runner() (*runner.Runner, error) {
	if t.runner != nil {
		return t.runner, nil
	}
	store, err := t.Store()
	if err != nil {
		return nil, err
	}
	t.runner = runner.New(t.agent, func(o *runner.Options) {
		o.Store = store
		o.Logger = t.logger
	})
	return t.runner, nil
}

// Close releases MCP sessions and the thread store.
func (t *ToolAgent) Close() error {
	var errs []error
	for _, c := range t.mcp {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	t.mcp = nil
	if t.store != nil && t.opts.Store == nil {
		if err := t.store.Close(); err != nil {
			errs = append(errs, err)
		}
		t.store = nil
	}
	return errors.Join(errs...)
}
