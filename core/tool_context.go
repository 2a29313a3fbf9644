package core

import (
	"context"

	"github.com/hupe1980/toolagent/logging"
)

// ToolContext provides the constrained surface handed to tool implementations
// for a single invocation: cancellation, correlation identifiers and a logger
// that tags every entry with them.
type ToolContext struct {
	ctx            context.Context
	runID          string
	threadID       string
	functionCallID string
	toolName       string
	logger         logging.Logger
}

// ToolContextOptions configures a ToolContext.
type ToolContextOptions struct {
	RunID    string
	ThreadID string
	ToolName string
	Logger   logging.Logger
}

// NewToolContext constructs a tool context bound to ctx and a unique
// functionCallID.
func NewToolContext(ctx context.Context, functionCallID string, optFns ...func(o *ToolContextOptions)) *ToolContext {
	opts := ToolContextOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	attrs := []any{"fc_id", functionCallID}
	if opts.ToolName != "" {
		attrs = append(attrs, "tool", opts.ToolName)
	}
	if opts.RunID != "" {
		attrs = append(attrs, "run_id", opts.RunID)
	}
	if opts.ThreadID != "" {
		attrs = append(attrs, "thread_id", opts.ThreadID)
	}

	return &ToolContext{
		ctx:            ctx,
		runID:          opts.RunID,
		threadID:       opts.ThreadID,
		functionCallID: functionCallID,
		toolName:       opts.ToolName,
		logger:         logging.With(opts.Logger, attrs...),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// RunID returns the loop run ID associated with the tool invocation.
func (tc *ToolContext) RunID() string { return tc.runID }

// ThreadID returns the persisted thread ID, empty for ephemeral runs.
func (tc *ToolContext) ThreadID() string { return tc.threadID }

// FunctionCallID returns the correlation id of the originating tool call.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// ToolName returns the name of the tool being invoked.
func (tc *ToolContext) ToolName() string { return tc.toolName }

// Logger returns a logger scoped to this invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }
