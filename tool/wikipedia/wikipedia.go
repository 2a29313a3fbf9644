// Package wikipedia provides a Wikipedia lookup tool built on the MediaWiki
// action API.
package wikipedia

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/tool"
)

const (
	// Name is the tool name exposed to the model.
	Name = "wikipedia"

	// DefaultBaseURL is the English Wikipedia root.
	DefaultBaseURL = "https://en.wikipedia.org"

	// NoResults is returned when the search yields nothing usable.
	NoResults = "No good Wikipedia Search Result was found"
)

// Options configures the Wikipedia client.
type Options struct {
	BaseURL   string
	TopK      int
	MaxChars  int
	UserAgent string
	// HTTPClient defaults to a client with Timeout.
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Args are the arguments the model supplies.
type Args struct {
	Query string `json:"query" jsonschema:"Search query"`
}

// Client queries the MediaWiki API.
type Client struct {
	opts Options
}

// NewClient returns a Wikipedia client.
func NewClient(optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL:   DefaultBaseURL,
		TopK:      3,
		MaxChars:  4000,
		UserAgent: "toolagent/1.0 (https://github.com/hupe1980/toolagent)",
		Timeout:   15 * time.Second,
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

func (c *Client) get(ctx context.Context, params url.Values) (gjson.Result, error) {
	params.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.BaseURL+"/w/api.php?"+params.Encode(), nil)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("wikipedia request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("wikipedia read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("wikipedia: status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("wikipedia: invalid response body")
	}
	parsed := gjson.ParseBytes(body)
	if e := parsed.Get("error.info"); e.Exists() {
		return gjson.Result{}, fmt.Errorf("wikipedia: %s", e.String())
	}
	return parsed, nil
}

// Search returns the titles of the best matching pages.
func (c *Client) Search(ctx context.Context, query string) ([]string, error) {
	res, err := c.get(ctx, url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {fmt.Sprint(c.opts.TopK)},
	})
	if err != nil {
		return nil, err
	}
	var titles []string
	res.Get("query.search.#.title").ForEach(func(_, v gjson.Result) bool {
		titles = append(titles, v.String())
		return true
	})
	return titles, nil
}

// Summary returns the plain-text introduction of a page.
func (c *Client) Summary(ctx context.Context, title string) (string, error) {
	res, err := c.get(ctx, url.Values{
		"action":      {"query"},
		"prop":        {"extracts"},
		"exintro":     {"1"},
		"explaintext": {"1"},
		"redirects":   {"1"},
		"titles":      {title},
	})
	if err != nil {
		return "", err
	}
	var extract string
	res.Get("query.pages").ForEach(func(_, page gjson.Result) bool {
		extract = page.Get("extract").String()
		return extract == ""
	})
	return strings.TrimSpace(extract), nil
}

// Lookup searches and renders "Page: ...\nSummary: ..." blocks for the top
// pages, capped at MaxChars.
func (c *Client) Lookup(ctx context.Context, query string) (string, error) {
	titles, err := c.Search(ctx, query)
	if err != nil {
		return "", err
	}

	var blocks []string
	for _, title := range titles {
		summary, err := c.Summary(ctx, title)
		if err != nil {
			return "", err
		}
		if summary == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("Page: %s\nSummary: %s", title, summary))
	}
	if len(blocks) == 0 {
		return NoResults, nil
	}

	out := strings.Join(blocks, "\n\n")
	if r := []rune(out); c.opts.MaxChars > 0 && len(r) > c.opts.MaxChars {
		out = string(r[:c.opts.MaxChars])
	}
	return out, nil
}

// New returns the wikipedia tool.
func New(optFns ...func(o *Options)) tool.Tool {
	c := NewClient(optFns...)
	return tool.MustNewTypedTool(Name,
		"A wrapper around Wikipedia. Useful for when you need to answer general questions about "+
			"people, places, companies, facts, historical events, or other subjects. Input should be a search query.",
		func(tc *core.ToolContext, args Args) (string, error) {
			return c.Lookup(tc.Context(), args.Query)
		})
}
