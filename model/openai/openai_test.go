package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/model"
)

func TestBuildMessages_ToolResultsFollowCalls(t *testing.T) {
	conv := core.Conversation{
		core.NewSystemContent("be helpful"),
		core.NewUserContent("weather in Kochi and Trivandrum?"),
		core.NewToolCallContent(
			core.FunctionCall{ID: "c1", Name: "get_weather", Arguments: `{"query":"Kochi"}`},
			core.FunctionCall{ID: "c2", Name: "get_weather", Arguments: `{"query":"Trivandrum"}`},
		),
		core.NewToolResultContent(core.FunctionResponse{ID: "c1", Name: "get_weather", Response: map[string]any{"temp_c": 30}}),
		core.NewToolResultContent(core.FunctionResponse{ID: "c2", Name: "get_weather", Error: "timeout"}),
	}

	raw, err := json.Marshal(toMessages(conv))
	require.NoError(t, err)
	msgs := gjson.ParseBytes(raw).Array()

	require.Len(t, msgs, 5)
	assert.Equal(t, "system", msgs[0].Get("role").String())
	assert.Equal(t, "assistant", msgs[2].Get("role").String())
	assert.Equal(t, "c1", msgs[2].Get("tool_calls.0.id").String())
	assert.Equal(t, "c2", msgs[2].Get("tool_calls.1.id").String())
	assert.Equal(t, "tool", msgs[3].Get("role").String())
	assert.Equal(t, "c1", msgs[3].Get("tool_call_id").String())
	assert.Equal(t, `{"temp_c":30}`, msgs[3].Get("content").String())
	assert.Equal(t, "c2", msgs[4].Get("tool_call_id").String())
	assert.Equal(t, `{"error":"timeout"}`, msgs[4].Get("content").String())
}

func TestModel_GenerateStreaming(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"o4-mini","choices":[{"index":0,"delta":{"role":"assistant","content":"Checking "}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"o4-mini","choices":[{"index":0,"delta":{"content":"weather"}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"o4-mini","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"get_weather","arguments":"{\"query\":"}}]}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"o4-mini","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"Kochi\"}"}}]}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"o4-mini","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		}
		for _, c := range chunks {
			_, _ = io.WriteString(w, "data: "+c+"\n\n")
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/v1/"
		o.RequestOptions = []option.RequestOption{option.WithMaxRetries(0)}
	})

	var partials []string
	resp, err := model.Collect(context.Background(), m, model.Request{
		Contents: core.Conversation{core.NewUserContent("weather in Kochi?")},
		Stream:   true,
	}, func(p model.Response) { partials = append(partials, p.Content.Text()) })
	require.NoError(t, err)

	assert.Equal(t, []string{"Checking ", "weather"}, partials)
	assert.Equal(t, "Checking weather", resp.Content.Text())
	assert.Equal(t, "tool_calls", resp.FinishReason)
	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_a", calls[0].ID)
	assert.JSONEq(t, `{"query":"Kochi"}`, calls[0].Arguments)

	req := gjson.ParseBytes(body)
	assert.True(t, req.Get("stream").Bool())
	assert.True(t, req.Get("stream_options.include_usage").Bool())
}

func TestModel_GenerateNonStreaming(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "o4-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "get_weather", "arguments": "{\"query\":\"Trivandrum\"}"}}]
				}
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	}))
	defer srv.Close()

	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.BaseURL = srv.URL + "/v1/"
		o.RequestOptions = []option.RequestOption{option.WithMaxRetries(0)}
	})

	resp, err := model.Collect(context.Background(), m, model.Request{
		Contents: core.Conversation{core.NewUserContent("weather in Trivandrum?")},
		Tools: []model.ToolDefinition{{Type: "function", Function: model.FunctionDefinition{
			Name:       "get_weather",
			Parameters: map[string]any{"type": "object"},
		}}},
	}, nil)
	require.NoError(t, err)

	calls := resp.Content.FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.JSONEq(t, `{"query":"Trivandrum"}`, calls[0].Arguments)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	req := gjson.ParseBytes(body)
	assert.Equal(t, DefaultModel, req.Get("model").String())
	assert.False(t, req.Get("temperature").Exists())
	assert.Equal(t, "get_weather", req.Get("tools.0.function.name").String())
}

func TestModel_Info(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test"; o.Model = "gpt-4o" })
	assert.Equal(t, model.Info{Name: "gpt-4o", Provider: "openai", SupportsTools: true}, m.Info())
}
