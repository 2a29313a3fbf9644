package tool

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/hupe1980/toolagent/core"
)

// NewTypedTool builds a FunctionTool whose parameter schema is derived from
// the struct type T. Arguments are decoded into T before fn runs. Field
// descriptions come from `jsonschema:"..."` tags.
//
// Example:
//
//	type WeatherArgs struct {
//	  Query string `json:"query" jsonschema:"City name to look up"`
//	}
//
//	weather, err := NewTypedTool("get_weather", "Current weather for a city",
//	  func(tc *core.ToolContext, args WeatherArgs) (any, error) { ... })
func NewTypedTool[T any, R any](
	name, description string,
	fn func(toolCtx *core.ToolContext, args T) (R, error),
) (*FunctionTool, error) {
	params, err := SchemaFor[T]()
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}

	return NewFunctionTool(name, description, params, func(tc *core.ToolContext, raw map[string]any) (any, error) {
		var args T
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, NewToolError(name, err.Error(), CodeInvalidArguments)
		}
		if err := json.Unmarshal(b, &args); err != nil {
			return nil, NewToolError(name, fmt.Sprintf("decode arguments: %v", err), CodeInvalidArguments)
		}
		res, err := fn(tc, args)
		if err != nil {
			return nil, err
		}
		return res, nil
	}), nil
}

// MustNewTypedTool is like NewTypedTool but panics on schema errors.
func MustNewTypedTool[T any, R any](
	name, description string,
	fn func(toolCtx *core.ToolContext, args T) (R, error),
) *FunctionTool {
	t, err := NewTypedTool(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}

// SchemaFor infers the JSON schema of T as a plain map, the shape model
// providers consume.
func SchemaFor[T any]() (map[string]any, error) {
	schema, err := jsonschema.For[T](&jsonschema.ForOptions{})
	if err != nil {
		return nil, fmt.Errorf("infer schema: %w", err)
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return out, nil
}
