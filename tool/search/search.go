// Package search provides the search_web tool backed by the Tavily search
// API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/tool"
)

const (
	// Name is the tool name exposed to the model.
	Name = "search_web"

	// DefaultBaseURL is the Tavily API root.
	DefaultBaseURL = "https://api.tavily.com"
)

// Options configures the search client.
type Options struct {
	APIKey      string
	BaseURL     string
	MaxResults  int
	SearchDepth string
	// MaxChars bounds the combined content of all results, roughly four
	// characters per token.
	MaxChars   int
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Result is a single search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Response is what the tool hands back to the model.
type Response struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer,omitempty"`
	Results []Result `json:"results"`
}

// Args are the arguments the model supplies.
type Args struct {
	Query       string `json:"query" jsonschema:"Search query"`
	MaxResults  int    `json:"max_results,omitempty" jsonschema:"Number of results to return (1-20)"`
	SearchDepth string `json:"search_depth,omitempty" jsonschema:"basic or advanced"`
}

// MaxResultsLimit is the largest result count a single search may request.
const MaxResultsLimit = 20

// SearchOptions overrides the client defaults for one search.
type SearchOptions struct {
	MaxResults  int
	SearchDepth string
}

// Client talks to the Tavily search endpoint.
type Client struct {
	opts Options
}

// NewClient returns a search client with Tavily defaults (two results,
// advanced depth, ~1000 tokens of content).
func NewClient(optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL:     DefaultBaseURL,
		MaxResults:  2,
		SearchDepth: "advanced",
		MaxChars:    4000,
		Timeout:     30 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Client{opts: opts}
}

type searchRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

// Search runs query and returns the trimmed results.
func (c *Client) Search(ctx context.Context, query string, optFns ...func(o *SearchOptions)) (*Response, error) {
	so := SearchOptions{MaxResults: c.opts.MaxResults, SearchDepth: c.opts.SearchDepth}
	for _, fn := range optFns {
		fn(&so)
	}
	if so.MaxResults > MaxResultsLimit {
		so.MaxResults = MaxResultsLimit
	}
	switch so.SearchDepth {
	case "basic", "advanced":
	default:
		return nil, fmt.Errorf("search: unsupported search_depth %q", so.SearchDepth)
	}

	payload, err := json.Marshal(searchRequest{
		APIKey:      c.opts.APIKey,
		Query:       query,
		MaxResults:  so.MaxResults,
		SearchDepth: so.SearchDepth,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("search read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "detail.error").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, fmt.Errorf("search: status %d: %s", resp.StatusCode, msg)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("search: invalid response body")
	}

	parsed := gjson.ParseBytes(body)
	out := &Response{
		Query:   query,
		Answer:  parsed.Get("answer").String(),
		Results: []Result{},
	}
	parsed.Get("results").ForEach(func(_, r gjson.Result) bool {
		out.Results = append(out.Results, Result{
			Title:   r.Get("title").String(),
			URL:     r.Get("url").String(),
			Content: r.Get("content").String(),
			Score:   r.Get("score").Float(),
		})
		return so.MaxResults <= 0 || len(out.Results) < so.MaxResults
	})

	truncate(out.Results, c.opts.MaxChars)
	return out, nil
}

// truncate shortens result contents in order so that their combined length
// stays within budget characters. A budget <= 0 disables truncation.
func truncate(results []Result, budget int) {
	if budget <= 0 {
		return
	}
	for i := range results {
		r := []rune(results[i].Content)
		if len(r) > budget {
			results[i].Content = string(r[:budget])
			budget = 0
			continue
		}
		budget -= len(r)
	}
}

// New returns the search_web tool.
func New(optFns ...func(o *Options)) tool.Tool {
	c := NewClient(optFns...)
	return tool.MustNewTypedTool(Name,
		"Search the web for a given query to provide further information",
		func(tc *core.ToolContext, args Args) (*Response, error) {
			tc.Logger().Debug("search.query", "query", args.Query, "max_results", args.MaxResults, "search_depth", args.SearchDepth)
			return c.Search(tc.Context(), args.Query, func(o *SearchOptions) {
				if args.MaxResults > 0 {
					o.MaxResults = args.MaxResults
				}
				if args.SearchDepth != "" {
					o.SearchDepth = args.SearchDepth
				}
			})
		})
}
