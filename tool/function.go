package tool

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/internal/util"
)

// ToolFunc is the implementation behind a FunctionTool. It receives
// arguments that already passed schema validation.
type ToolFunc func(toolCtx *core.ToolContext, args map[string]any) (any, error)

// FunctionTool pairs a descriptor (name, description, JSON schema) with a
// ToolFunc. It holds no mutable state and is safe for concurrent calls.
//
// Failures reach the caller as *ToolError:
//
//	VALIDATION_ERROR  arguments do not match the schema
//	EXECUTION_ERROR   the function returned a plain error
//	(any code)        the function returned a *ToolError itself
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          ToolFunc
}

// NewFunctionTool builds a tool from an explicit schema.
//
//	weather := NewFunctionTool("get_weather", "Current weather for a location",
//	  map[string]any{
//	    "type":       "object",
//	    "properties": map[string]any{"query": map[string]any{"type": "string"}},
//	    "required":   []string{"query"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return lookup(tc.Context(), args["query"].(string))
//	  })
//
// Prefer NewTypedTool when the arguments map onto a Go struct.
func NewFunctionTool(name, description string, parameters map[string]any, fn ToolFunc) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// Name returns the tool name the model uses in tool calls.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the text shown to the model.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema of the arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Validate checks args against the schema.
func (t *FunctionTool) Validate(args map[string]any) error {
	if err := util.ValidateParameters(args, t.parameters); err != nil {
		return &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}
	return nil
}

// Call validates args and runs the function.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	var fields []any
	if toolCtx.ToolName() == "" {
		fields = append(fields, "tool", t.name)
	}
	start := time.Now()
	logger.Debug("tool.call.start", fields...)

	if err := t.Validate(args); err != nil {
		logger.Warn("tool.call.validation_failed", append(fields, "error", err.Error())...)
		return nil, err
	}

	result, err := t.fn(toolCtx, args)
	fields = append(fields, "duration_ms", time.Since(start).Milliseconds())
	if err == nil {
		logger.Info("tool.call.success", fields...)
		return result, nil
	}

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		toolErr = &ToolError{Tool: t.name, Message: err.Error(), Code: CodeExecution}
	}
	logger.Error("tool.call.error", append(fields, "code", toolErr.Code, "error", toolErr.Message)...)
	return nil, toolErr
}
