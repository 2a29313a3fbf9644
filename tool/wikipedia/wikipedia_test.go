package wikipedia

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolagent/core"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/w/api.php", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		q := r.URL.Query()
		switch {
		case q.Get("list") == "search" && q.Get("srsearch") == "nothing":
			_, _ = io.WriteString(w, `{"query":{"search":[]}}`)
		case q.Get("list") == "search":
			assert.Equal(t, "3", q.Get("srlimit"))
			_, _ = io.WriteString(w, `{"query":{"search":[{"title":"Kerala"},{"title":"Empty"}]}}`)
		case q.Get("titles") == "Kerala":
			_, _ = io.WriteString(w, `{"query":{"pages":{"1":{"title":"Kerala","extract":"Kerala is a state in India."}}}}`)
		default:
			_, _ = io.WriteString(w, `{"query":{"pages":{"-1":{"missing":""}}}}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Lookup(t *testing.T) {
	srv := newServer(t)
	c := NewClient(func(o *Options) { o.BaseURL = srv.URL })

	out, err := c.Lookup(context.Background(), "Kerala")
	require.NoError(t, err)
	assert.Equal(t, "Page: Kerala\nSummary: Kerala is a state in India.", out)
}

func TestClient_LookupNoResults(t *testing.T) {
	srv := newServer(t)
	c := NewClient(func(o *Options) { o.BaseURL = srv.URL })

	out, err := c.Lookup(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Equal(t, NoResults, out)
}

func TestClient_LookupTruncates(t *testing.T) {
	srv := newServer(t)
	c := NewClient(func(o *Options) { o.BaseURL = srv.URL; o.MaxChars = 12 })

	out, err := c.Lookup(context.Background(), "Kerala")
	require.NoError(t, err)
	assert.Equal(t, "Page: Kerala", out)
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"error":{"code":"badvalue","info":"Unrecognized value"}}`)
	}))
	defer srv.Close()

	_, err := NewClient(func(o *Options) { o.BaseURL = srv.URL }).Search(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Unrecognized value"))
}

func TestTool(t *testing.T) {
	srv := newServer(t)
	wt := New(func(o *Options) { o.BaseURL = srv.URL })
	assert.Equal(t, Name, wt.Name())

	out, err := wt.Call(core.NewToolContext(context.Background(), "c1"), map[string]any{"query": "Kerala"})
	require.NoError(t, err)
	assert.Contains(t, out, "Summary: Kerala is a state")
}
