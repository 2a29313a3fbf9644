package flow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/logging"
	"github.com/hupe1980/toolagent/tool"
)

// FunctionExecutor executes a batch of tool calls and returns exactly one
// result per call, in the order the calls were requested. Implementations
// must never panic and must turn every failure into an error result.
type FunctionExecutor interface {
	Execute(ctx context.Context, run RunInfo, catalog *tool.Catalog, calls []core.FunctionCall) []core.FunctionResponse
}

// RunInfo carries correlation identifiers handed to tools.
type RunInfo struct {
	RunID    string
	ThreadID string
}

// FunctionExecutorConfig configures the default parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // 0 or <1 => no explicit limit (len(calls))
	LogStartEvents bool // log a start line per function
	Logger         logging.Logger
	Metrics        *loopMetrics
}

// parallelFunctionExecutor is the default implementation.
type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor constructs a new executor with the given config.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	if cfg.Logger == nil {
		cfg.Logger = logging.NoOpLogger{}
	}
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(
	ctx context.Context,
	run RunInfo,
	catalog *tool.Catalog,
	calls []core.FunctionCall,
) []core.FunctionResponse {
	n := len(calls)
	if n == 0 {
		return nil
	}

	results := make([]core.FunctionResponse, n)

	// Fast path: single call, execute inline.
	if n == 1 {
		results[0] = e.executeSingle(ctx, run, catalog, calls[0])
		return results
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = e.executeSingle(ctx, run, catalog, fc)
		}(i, calls[i])
	}

	wg.Wait()

	e.cfg.Logger.Debug(
		"tool.batch.complete",
		"run_id", run.RunID,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results
}

func (e *parallelFunctionExecutor) executeSingle(
	ctx context.Context,
	run RunInfo,
	catalog *tool.Catalog,
	fc core.FunctionCall,
) core.FunctionResponse {
	log := logging.With(e.cfg.Logger, "run_id", run.RunID, "tool", fc.Name, "fc_id", fc.ID)
	if e.cfg.LogStartEvents {
		log.Info("tool.call.start")
	}

	start := time.Now()
	var (
		result any
		err    error
	)
	if cerr := ctx.Err(); cerr != nil {
		err = cerr
	} else {
		func() { // panic safety
			defer func() {
				if r := recover(); r != nil {
					err = panicError(fc.Name, r)
					log.Error("tool.call.panic", "recover", r)
				}
			}()
			result, err = executeTool(ctx, run, catalog, fc, e.cfg.Logger)
		}()
	}
	dur := time.Since(start)

	log.Info("tool.call.executed", "duration_ms", dur.Milliseconds(), "error", err != nil)
	e.cfg.Metrics.recordTool(ctx, fc.Name, dur, err)

	resp := core.FunctionResponse{ID: fc.ID, Name: fc.Name, Response: result}
	if err != nil {
		resp.Response = nil
		resp.Error = err.Error()
	}
	return resp
}

// panicError converts a recovered panic value to a tool error.
func panicError(name string, r any) error {
	return &tool.ToolError{
		Tool:    name,
		Message: fmt.Sprintf("panic recovered: %v", r),
		Code:    tool.CodePanic,
		Details: string(debug.Stack()),
	}
}

// executeTool centralizes tool lookup, argument decoding and invocation.
func executeTool(
	ctx context.Context,
	run RunInfo,
	catalog *tool.Catalog,
	fc core.FunctionCall,
	logger logging.Logger,
) (any, error) {
	impl, ok := catalog.Lookup(fc.Name)
	if !ok {
		return nil, tool.NewToolError(fc.Name, fmt.Sprintf("unknown tool %q", fc.Name), tool.CodeUnknownTool)
	}

	args, err := tool.DecodeArguments(fc.Arguments)
	if err != nil {
		return nil, &tool.ToolError{
			Tool:    fc.Name,
			Message: fmt.Sprintf("failed to decode arguments: %v", err),
			Code:    tool.CodeInvalidArguments,
		}
	}

	toolCtx := core.NewToolContext(ctx, fc.ID, func(o *core.ToolContextOptions) {
		o.RunID = run.RunID
		o.ThreadID = run.ThreadID
		o.ToolName = fc.Name
		o.Logger = logger
	})
	return impl.Call(toolCtx, args)
}

// errorCode extracts the ToolError code, if any.
func errorCode(err error) string {
	var te *tool.ToolError
	if errors.As(err, &te) {
		return te.Code
	}
	return tool.CodeExecution
}
