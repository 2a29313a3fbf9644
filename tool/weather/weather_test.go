package weather

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/model"
)

const trivandrum = `{
  "location": {"name": "Thiruvananthapuram", "region": "Kerala", "country": "India"},
  "current": {"temp_c": 29.2, "condition": {"text": "Partly cloudy"}, "humidity": 79}
}`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/current.json", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("q") {
		case "Trivandrum":
			_, _ = io.WriteString(w, trivandrum)
		case "broken":
			_, _ = io.WriteString(w, "<html>")
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"code":1006,"message":"No matching location found."}}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Current(t *testing.T) {
	srv := newServer(t)
	c := NewClient(func(o *Options) { o.APIKey = "secret"; o.BaseURL = srv.URL + "/" })

	data, err := c.Current(context.Background(), "Trivandrum")
	require.NoError(t, err)
	loc := data["location"].(map[string]any)
	assert.Equal(t, "Thiruvananthapuram", loc["name"])
}

func TestClient_NotFoundLiteral(t *testing.T) {
	srv := newServer(t)
	c := NewClient(func(o *Options) { o.APIKey = "secret"; o.BaseURL = srv.URL })

	data, err := c.Current(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"error": "Weather Data Not Found"}, data)
	assert.Equal(t, `{"error":"Weather Data Not Found"}`, model.ResultText(core.FunctionResponse{Response: data}))
}

func TestClient_InvalidBody(t *testing.T) {
	srv := newServer(t)
	c := NewClient(func(o *Options) { o.APIKey = "secret"; o.BaseURL = srv.URL })

	_, err := c.Current(context.Background(), "broken")
	assert.Error(t, err)
}

func TestClient_TransportError(t *testing.T) {
	srv := newServer(t)
	base := srv.URL
	srv.Close()

	c := NewClient(func(o *Options) { o.BaseURL = base })
	_, err := c.Current(context.Background(), "Trivandrum")
	assert.Error(t, err)
}

func TestTool(t *testing.T) {
	srv := newServer(t)
	wt := New(func(o *Options) { o.APIKey = "secret"; o.BaseURL = srv.URL })

	assert.Equal(t, Name, wt.Name())
	assert.Equal(t, []any{"query"}, wt.Parameters()["required"])

	out, err := wt.Call(core.NewToolContext(context.Background(), "call-1"), map[string]any{"query": "Trivandrum"})
	require.NoError(t, err)
	assert.Contains(t, out.(map[string]any), "current")
}
