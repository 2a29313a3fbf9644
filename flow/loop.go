package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/logging"
	"github.com/hupe1980/toolagent/model"
	"github.com/hupe1980/toolagent/tool"
)

// DefaultMaxSteps bounds the number of model calls per run.
const DefaultMaxSteps = 25

// ErrModel wraps failures reported by the model client.
var ErrModel = errors.New("model call failed")

// ErrEmptyConversation is returned when Run receives no messages.
var ErrEmptyConversation = errors.New("conversation is empty")

// Options configures a Loop.
type Options struct {
	// MaxSteps caps model calls per run; 0 means unlimited.
	MaxSteps int
	// MaxToolRounds caps how many times tools are executed per run; once
	// reached, the next submission offers no tools so the model must answer.
	// 0 means unlimited.
	MaxToolRounds int
	// MaxParallel bounds concurrent tool executions within one step.
	MaxParallel int
	// Stream requests partial model output, forwarded through OnEvent.
	Stream bool
	// Author names the assistant in emitted events.
	Author string
	Logger logging.Logger
	// MeterProvider defaults to the global OpenTelemetry provider.
	MeterProvider metric.MeterProvider
	// Executor overrides the default parallel executor.
	Executor FunctionExecutor
	// OnEvent observes every committed message and partial chunk.
	OnEvent func(core.Event)
	// OnCommit is called with the messages appended by each step, before the
	// next model call. A returned error aborts the run.
	OnCommit func(ctx context.Context, msgs []core.Content) error
}

// RunOptions carries per-run identifiers and hooks.
type RunOptions struct {
	RunID    string
	ThreadID string
	// OnCommit runs after Options.OnCommit for this run only.
	OnCommit func(ctx context.Context, msgs []core.Content) error
}

// Result is the outcome of a completed run.
type Result struct {
	RunID string
	// Final is the terminating assistant message (no tool calls).
	Final core.Content
	// Messages holds everything the run appended, Final included.
	Messages core.Conversation
	// Steps is the number of model calls made.
	Steps int
}

// Loop drives the tool-calling cycle: submit the conversation, execute any
// requested tools, append their results and resubmit until the model answers
// without tool calls.
type Loop struct {
	model   model.Model
	catalog *tool.Catalog
	opts    Options
	exec    FunctionExecutor
	metrics *loopMetrics
}

// New constructs a Loop over model and catalog. A nil catalog offers no tools.
func New(m model.Model, catalog *tool.Catalog, optFns ...func(o *Options)) *Loop {
	opts := Options{
		MaxSteps: DefaultMaxSteps,
		Author:   "assistant",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	metrics, err := newLoopMetrics(opts.MeterProvider)
	if err != nil {
		opts.Logger.Warn("loop.metrics.disabled", "error", err.Error())
		metrics = nil
	}

	exec := opts.Executor
	if exec == nil {
		exec = NewParallelFunctionExecutor(FunctionExecutorConfig{
			MaxParallel: opts.MaxParallel,
			Logger:      opts.Logger,
			Metrics:     metrics,
		})
	}

	return &Loop{
		model:   m,
		catalog: catalog,
		opts:    opts,
		exec:    exec,
		metrics: metrics,
	}
}

// Catalog returns the tools offered to the model.
func (l *Loop) Catalog() *tool.Catalog { return l.catalog }

// Model returns the underlying model client.
func (l *Loop) Model() model.Model { return l.model }

// Run executes the loop on conv. The input slice is never modified.
//
// If conv ends with an assistant message whose tool calls are unanswered, the
// calls are executed before the first model submission.
func (l *Loop) Run(ctx context.Context, conv core.Conversation, optFns ...func(o *RunOptions)) (*Result, error) {
	ro := RunOptions{}
	for _, fn := range optFns {
		fn(&ro)
	}
	if ro.RunID == "" {
		ro.RunID = core.NewID()
	}
	if len(conv) == 0 {
		return nil, ErrEmptyConversation
	}

	r := &run{
		loop:     l,
		info:     RunInfo{RunID: ro.RunID, ThreadID: ro.ThreadID},
		conv:     conv.Clone(),
		limiter:  core.NewStepLimiter(l.opts.MaxSteps),
		onCommit: ro.OnCommit,
		log:      logging.With(l.opts.Logger, "run_id", ro.RunID),
	}
	return r.execute(ctx)
}

type run struct {
	loop      *Loop
	info      RunInfo
	conv      core.Conversation
	added     core.Conversation
	limiter   *core.StepLimiter
	toolCalls int
	rounds    int
	onCommit  func(ctx context.Context, msgs []core.Content) error
	log       logging.Logger
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	start := time.Now()
	r.log.Info("loop.run.start", "thread_id", r.info.ThreadID, "messages", len(r.conv))

	res, err := r.cycle(ctx)

	args := []any{
		"steps", r.limiter.Count(),
		"tool_calls", r.toolCalls,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		r.log.Error("loop.run.failed", append(args, "error", err.Error())...)
		return nil, err
	}
	r.log.Info("loop.run.complete", args...)
	return res, nil
}

func (r *run) cycle(ctx context.Context) (*Result, error) {
	if pending := r.conv.PendingCalls(); len(pending) > 0 {
		if err := r.executeCalls(ctx, 0, pending); err != nil {
			return nil, err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.limiter.Increment(); err != nil {
			return nil, err
		}
		step := r.limiter.Count()

		resp, err := r.callModel(ctx, step)
		if err != nil {
			return nil, err
		}

		msg := resp.Content
		msg.Role = core.RoleAssistant
		calls := msg.FunctionCalls()

		if len(calls) == 0 {
			if err := r.commit(ctx, step, msg); err != nil {
				return nil, err
			}
			return &Result{
				RunID:    r.info.RunID,
				Final:    msg,
				Messages: r.added,
				Steps:    step,
			}, nil
		}

		if r.toolsExhausted() {
			return nil, fmt.Errorf("%w: tool calls requested after %d tool rounds", core.ErrMaxIterations, r.rounds)
		}

		msg = ensureCallIDs(msg)
		if err := r.commit(ctx, step, msg); err != nil {
			return nil, err
		}
		if err := r.executeCalls(ctx, step, msg.FunctionCalls()); err != nil {
			return nil, err
		}
	}
}

func (r *run) toolsExhausted() bool {
	return r.loop.opts.MaxToolRounds > 0 && r.rounds >= r.loop.opts.MaxToolRounds
}

func (r *run) callModel(ctx context.Context, step int) (model.Response, error) {
	l := r.loop
	info := l.model.Info()
	req := model.Request{
		Contents: r.conv,
		Stream:   l.opts.Stream,
	}
	if !r.toolsExhausted() {
		req.Tools = l.catalog.Definitions()
	}

	r.log.Debug("loop.step.start", "step", step, "messages", len(r.conv), "tools", len(req.Tools))

	var onPartial func(model.Response)
	if l.opts.OnEvent != nil {
		onPartial = func(p model.Response) {
			ev := core.NewContentEvent(r.info.RunID, l.opts.Author, step, p.Content)
			ev.Partial = true
			l.opts.OnEvent(ev)
		}
	}

	start := time.Now()
	resp, err := model.Collect(ctx, l.model, req, onPartial)
	l.metrics.recordModelCall(ctx, info.Provider, info.Name, err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.Response{}, ctxErr
		}
		r.log.Error("llm.call.failed", "model", info.Name, "error", err.Error())
		return model.Response{}, fmt.Errorf("%w: %s: %w", ErrModel, info.Name, err)
	}

	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	r.log.Debug("llm.call.completed",
		"model", info.Name,
		"step", step,
		"token_count", tokens,
		"tool_calls", len(resp.Content.FunctionCalls()),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (r *run) executeCalls(ctx context.Context, step int, calls []core.FunctionCall) error {
	results := r.loop.exec.Execute(ctx, r.info, r.loop.catalog, calls)
	r.toolCalls += len(calls)
	r.rounds++

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(results) != len(calls) {
		return fmt.Errorf("executor returned %d results for %d calls", len(results), len(calls))
	}

	msgs := make([]core.Content, 0, len(results))
	for i, res := range results {
		// Results always answer the call at the same position.
		res.ID = calls[i].ID
		res.Name = calls[i].Name
		msgs = append(msgs, core.NewToolResultContent(res))
	}
	return r.commit(ctx, step, msgs...)
}

// commit appends msgs to the conversation, persists them through OnCommit
// and emits one event per message.
func (r *run) commit(ctx context.Context, step int, msgs ...core.Content) error {
	l := r.loop
	for _, hook := range []func(context.Context, []core.Content) error{l.opts.OnCommit, r.onCommit} {
		if hook == nil {
			continue
		}
		if err := hook(ctx, msgs); err != nil {
			return fmt.Errorf("commit step %d: %w", step, err)
		}
	}
	r.conv = append(r.conv, msgs...)
	r.added = append(r.added, msgs...)

	if l.opts.OnEvent != nil {
		for _, m := range msgs {
			author := l.opts.Author
			if m.Role == core.RoleTool {
				author = "tool"
			}
			ev := core.NewContentEvent(r.info.RunID, author, step, m)
			ev.TurnComplete = m.Role == core.RoleAssistant && !m.HasFunctionCalls()
			l.opts.OnEvent(ev)
		}
	}
	return nil
}

// ensureCallIDs assigns ids to tool calls the provider left blank or
// duplicated so that every result correlates with exactly one call.
func ensureCallIDs(c core.Content) core.Content {
	seen := map[string]bool{}
	parts := make([]core.Part, len(c.Parts))
	for i, p := range c.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok {
			if fc.FunctionCall.ID == "" || seen[fc.FunctionCall.ID] {
				fc.FunctionCall.ID = "call_" + core.NewID()
				p = fc
			}
			seen[fc.FunctionCall.ID] = true
		}
		parts[i] = p
	}
	c.Parts = parts
	return c
}
