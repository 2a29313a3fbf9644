package mcp

import (
	"context"
	"encoding/json"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/tool"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "weather-server", Version: "test"}, nil)
	server.AddTool(&mcpsdk.Tool{
		Name:        "get_forecast",
		Description: "Forecast for a city",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"city": map[string]any{"type": "string"}},
			"required":   []any{"city"},
		},
	}, func(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var payload map[string]string
		if err := json.Unmarshal(req.Params.Arguments, &payload); err != nil {
			return nil, err
		}
		if payload["city"] == "Atlantis" {
			return &mcpsdk.CallToolResult{
				IsError: true,
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "unknown city"}},
			}, nil
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "sunny in " + payload["city"]}},
		}, nil
	})

	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	ctx, cancel := context.WithCancel(context.Background())
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client, err := ConnectTransport(ctx, clientTransport)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
		_ = serverSession.Close()
		cancel()
	})
	return client
}

func TestClient_ToolsAndCall(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	tools, err := client.Tools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)

	forecast := tools[0]
	assert.Equal(t, "get_forecast", forecast.Name())
	assert.Equal(t, "Forecast for a city", forecast.Description())
	assert.Equal(t, "object", forecast.Parameters()["type"])

	out, err := forecast.Call(core.NewToolContext(ctx, "c1"), map[string]any{"city": "Kochi"})
	require.NoError(t, err)
	assert.Equal(t, "sunny in Kochi", out)

	_, err = forecast.Call(core.NewToolContext(ctx, "c2"), map[string]any{"city": "Atlantis"})
	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeExecution, toolErr.Code)
	assert.Equal(t, "unknown city", toolErr.Message)
}

func TestParseTransport(t *testing.T) {
	ctx := context.Background()

	tr, err := ParseTransport(ctx, "stdio://weather-server --port 0")
	require.NoError(t, err)
	cmd, ok := tr.(*mcpsdk.CommandTransport)
	require.True(t, ok)
	assert.Equal(t, []string{"weather-server", "--port", "0"}, cmd.Command.Args)

	tr, err = ParseTransport(ctx, "https://mcp.example.com/mcp")
	require.NoError(t, err)
	assert.Equal(t, "https://mcp.example.com/mcp", tr.(*mcpsdk.StreamableClientTransport).Endpoint)

	tr, err = ParseTransport(ctx, "sse://mcp.example.com/sse")
	require.NoError(t, err)
	assert.Equal(t, "https://mcp.example.com/sse", tr.(*mcpsdk.SSEClientTransport).Endpoint)

	tr, err = ParseTransport(ctx, "npx server")
	require.NoError(t, err)
	assert.IsType(t, &mcpsdk.CommandTransport{}, tr)

	_, err = ParseTransport(ctx, "  ")
	assert.Error(t, err)

	_, err = ParseTransport(ctx, "sse://ftp://x")
	assert.Error(t, err)
}

func TestSchemaMap(t *testing.T) {
	m, err := schemaMap(nil)
	require.NoError(t, err)
	assert.Equal(t, "object", m["type"])

	m, err = schemaMap(json.RawMessage(`{"type":"object","required":["x"]}`))
	require.NoError(t, err)
	assert.Equal(t, []any{"x"}, m["required"])
}
