// Package mcp exposes tools served by a separate Model Context Protocol
// process as tool.Tool values.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os/exec"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/tool"
)

// Options configures the MCP client.
type Options struct {
	// Name and Version identify this client during the handshake.
	Name    string
	Version string
}

// Client is a connected MCP session.
type Client struct {
	session *mcpsdk.ClientSession
}

// Connect dials the server described by spec:
//
//	stdio://<command> [args...]   spawn a child process speaking stdio
//	http(s)://host/path           streamable HTTP transport
//	sse://host/path               legacy SSE transport (https unless a scheme is given)
//
// A spec without a scheme is treated as a stdio command.
func Connect(ctx context.Context, spec string, optFns ...func(o *Options)) (*Client, error) {
	transport, err := ParseTransport(ctx, spec)
	if err != nil {
		return nil, err
	}
	return ConnectTransport(ctx, transport, optFns...)
}

// ConnectTransport establishes a session over an existing transport.
func ConnectTransport(ctx context.Context, transport mcpsdk.Transport, optFns ...func(o *Options)) (*Client, error) {
	opts := Options{Name: "toolagent", Version: "dev"}
	for _, fn := range optFns {
		fn(&opts)
	}
	impl := mcpsdk.NewClient(&mcpsdk.Implementation{Name: opts.Name, Version: opts.Version}, nil)
	session, err := impl.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp connect: %w", err)
	}
	return &Client{session: session}, nil
}

// ParseTransport builds the SDK transport for a spec string.
func ParseTransport(ctx context.Context, spec string) (mcpsdk.Transport, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("mcp: transport spec is empty")
	}
	lowered := strings.ToLower(spec)

	switch {
	case strings.HasPrefix(lowered, "stdio://"):
		return stdioTransport(ctx, spec[len("stdio://"):])
	case strings.HasPrefix(lowered, "sse://"):
		target := spec[len("sse://"):]
		if !strings.Contains(target, "://") {
			target = "https://" + target
		}
		endpoint, err := normalizeHTTPURL(target)
		if err != nil {
			return nil, fmt.Errorf("mcp: invalid SSE endpoint: %w", err)
		}
		return &mcpsdk.SSEClientTransport{Endpoint: endpoint}, nil
	case strings.HasPrefix(lowered, "http://"), strings.HasPrefix(lowered, "https://"):
		endpoint, err := normalizeHTTPURL(spec)
		if err != nil {
			return nil, fmt.Errorf("mcp: invalid HTTP endpoint: %w", err)
		}
		return &mcpsdk.StreamableClientTransport{Endpoint: endpoint}, nil
	}
	return stdioTransport(ctx, spec)
}

func stdioTransport(ctx context.Context, cmdSpec string) (mcpsdk.Transport, error) {
	parts := strings.Fields(cmdSpec)
	if len(parts) == 0 {
		return nil, errors.New("mcp: stdio command is empty")
	}
	// #nosec G204 -- the command comes from operator configuration
	command := exec.CommandContext(ctx, parts[0], parts[1:]...)
	return &mcpsdk.CommandTransport{Command: command}, nil
}

func normalizeHTTPURL(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", errors.New("missing host")
	}
	parsed.Scheme = scheme
	return parsed.String(), nil
}

// Tools lists the server's tools and wraps each one.
func (c *Client) Tools(ctx context.Context) ([]tool.Tool, error) {
	var out []tool.Tool
	for t, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("mcp list tools: %w", err)
		}
		schema, err := schemaMap(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("mcp tool %s: %w", t.Name, err)
		}
		out = append(out, &remoteTool{
			session:     c.session,
			name:        t.Name,
			description: t.Description,
			parameters:  schema,
		})
	}
	return out, nil
}

// Close terminates the session (and a spawned child process).
func (c *Client) Close() error {
	if c == nil || c.session == nil {
		return nil
	}
	return c.session.Close()
}

func schemaMap(schema any) (map[string]any, error) {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	if m, ok := schema.(map[string]any); ok {
		return m, nil
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// remoteTool forwards calls to an MCP server.
type remoteTool struct {
	session     *mcpsdk.ClientSession
	name        string
	description string
	parameters  map[string]any
}

func (t *remoteTool) Name() string               { return t.name }
func (t *remoteTool) Description() string        { return t.description }
func (t *remoteTool) Parameters() map[string]any { return t.parameters }

func (t *remoteTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	tc.Logger().Debug("mcp.call.start", "tool", t.name, "fc_id", tc.FunctionCallID())

	res, err := t.session.CallTool(tc.Context(), &mcpsdk.CallToolParams{Name: t.name, Arguments: args})
	if err != nil {
		return nil, &tool.ToolError{Tool: t.name, Message: err.Error(), Code: tool.CodeExecution}
	}

	text := resultText(res)
	if res.IsError {
		return nil, &tool.ToolError{Tool: t.name, Message: text, Code: tool.CodeExecution}
	}
	if text == "" && res.StructuredContent != nil {
		return res.StructuredContent, nil
	}
	return text, nil
}

func resultText(res *mcpsdk.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
