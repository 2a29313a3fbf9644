package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		"required": []any{"x"},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"x": 5}, schema))

	err := ValidateParameters(map[string]any{}, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "x", vErr.Field)

	err = ValidateParameters(map[string]any{"x": "not-int"}, schema)
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "expected type integer")
}

func TestValidateParameters_StringRequired(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"query": map[string]any{"type": "string"}},
		"required":   []string{"query"},
	}
	assert.Error(t, ValidateParameters(map[string]any{}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"query": "Kochi"}, schema))
}

func TestValidateParameters_EnumAndBounds(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"search_depth": map[string]any{"type": "string", "enum": []any{"basic", "advanced"}},
			"max_results":  map[string]any{"type": "integer", "minimum": 1, "maximum": 20},
		},
	}

	assert.NoError(t, ValidateParameters(map[string]any{"search_depth": "basic", "max_results": float64(5)}, schema))

	var vErr *ValidationError
	require.ErrorAs(t, ValidateParameters(map[string]any{"search_depth": "deep"}, schema), &vErr)
	assert.Equal(t, "search_depth", vErr.Field)
	assert.Contains(t, vErr.Message, "not one of")

	require.ErrorAs(t, ValidateParameters(map[string]any{"max_results": 21}, schema), &vErr)
	assert.Contains(t, vErr.Message, "above maximum")

	require.ErrorAs(t, ValidateParameters(map[string]any{"max_results": 0}, schema), &vErr)
	assert.Contains(t, vErr.Message, "below minimum")

	require.ErrorAs(t, ValidateParameters(map[string]any{"max_results": 2.5}, schema), &vErr)
	assert.Contains(t, vErr.Message, "expected type integer")
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("no markers <b>", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers <b>", out)

	out, err = RenderTemplate(`Hello {{ .name | upper }} & {{ default "friend" .missing }}`, map[string]any{"name": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "Hello ADA & friend", out)

	out, err = RenderTemplate(`{{ join ", " .tools }}`, map[string]any{"tools": []string{"search_web", "get_weather"}})
	require.NoError(t, err)
	assert.Equal(t, "search_web, get_weather", out)

	out, err = RenderTemplate(`{{ today }}`, nil)
	require.NoError(t, err)
	assert.Len(t, out, len("2006-01-02"))

	_, err = RenderTemplate("{{ .broken", nil)
	assert.ErrorContains(t, err, "instruction template")
}

func TestStringList(t *testing.T) {
	assert.Equal(t, []string{"query"}, StringList([]any{"query", 3}))
	assert.Equal(t, []string{"a"}, StringList([]string{"a"}))
	assert.Nil(t, StringList(nil))
}
