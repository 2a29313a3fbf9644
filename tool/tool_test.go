package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolagent/core"
)

func newToolContext(id string) *core.ToolContext {
	return core.NewToolContext(context.Background(), id)
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		a := args["a"].(float64)
		b := args["b"].(float64)
		return a + b, nil
	})

	result, err := sumTool.Call(newToolContext("fc1"), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		"required": []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})
	_, err := tTool.Call(newToolContext("fc2"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	_, err := execTool.Call(newToolContext("fc3"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "boom", toolErr.Message)
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	custom := NewToolError("custom", "rate limited", "RATE_LIMIT")
	tl := NewFunctionTool("custom", "", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, custom
	})
	_, err := tl.Call(newToolContext("fc4"), map[string]any{})
	assert.Same(t, custom, err)
}

// -------------------- Typed tools --------------------

type weatherArgs struct {
	Query string `json:"query" jsonschema:"city to look up"`
	Days  int    `json:"days,omitempty"`
}

func TestNewTypedTool(t *testing.T) {
	tl, err := NewTypedTool("get_weather", "weather", func(_ *core.ToolContext, args weatherArgs) (string, error) {
		return args.Query, nil
	})
	require.NoError(t, err)

	params := tl.Parameters()
	assert.Equal(t, "object", params["type"])
	props := params["properties"].(map[string]any)
	query := props["query"].(map[string]any)
	assert.Equal(t, "string", query["type"])
	assert.Equal(t, "city to look up", query["description"])
	assert.Equal(t, []any{"query"}, params["required"])

	out, err := tl.Call(newToolContext("fc"), map[string]any{"query": "Trivandrum"})
	require.NoError(t, err)
	assert.Equal(t, "Trivandrum", out)

	_, err = tl.Call(newToolContext("fc"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestNewTypedTool_DecodeFailure(t *testing.T) {
	tl := MustNewTypedTool("get_weather", "weather", func(_ *core.ToolContext, args weatherArgs) (string, error) {
		return args.Query, nil
	})
	_, err := tl.Call(newToolContext("fc"), map[string]any{"query": "Kochi", "days": 1.5})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Contains(t, []string{CodeInvalidArguments, CodeValidation}, toolErr.Code)
}

// -------------------- Arguments --------------------

func TestDecodeArguments(t *testing.T) {
	args, err := DecodeArguments("")
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = DecodeArguments(`{"query": "Kochi"}`)
	require.NoError(t, err)
	assert.Equal(t, "Kochi", args["query"])

	args, err = DecodeArguments(`{"query": "Kochi"`)
	require.NoError(t, err)
	assert.Equal(t, "Kochi", args["query"])

	_, err = DecodeArguments(`["not", "an", "object"]`)
	assert.Error(t, err)
}

// -------------------- Catalog --------------------

func echoTool(name string) Tool {
	return NewFunctionTool(name, "echo", nil, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args, nil
	})
}

func TestCatalog(t *testing.T) {
	c, err := NewCatalog(echoTool("search_web"), echoTool("get_weather"))
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"search_web", "get_weather"}, c.Names())
	assert.Equal(t, []string{"get_weather", "search_web"}, c.SortedNames())

	tl, ok := c.Lookup("get_weather")
	require.True(t, ok)
	assert.Equal(t, "get_weather", tl.Name())

	_, ok = c.Lookup("missing")
	assert.False(t, ok)

	defs := c.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "search_web", defs[0].Function.Name)
	assert.Equal(t, "object", defs[0].Function.Parameters["type"])
}

func TestCatalog_RejectsDuplicates(t *testing.T) {
	_, err := NewCatalog(echoTool("a"), echoTool("a"))
	assert.Error(t, err)

	_, err = NewCatalog(echoTool(""))
	assert.Error(t, err)

	c := MustNewCatalog(echoTool("a"))
	_, err = c.Merge(echoTool("a"))
	assert.Error(t, err)

	merged, err := c.Merge(echoTool("b"))
	require.NoError(t, err)
	assert.Equal(t, 2, merged.Len())
	assert.Equal(t, 1, c.Len())
}

func TestNilCatalog(t *testing.T) {
	var c *Catalog
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.Definitions())
	_, ok := c.Lookup("x")
	assert.False(t, ok)
}

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")
}
