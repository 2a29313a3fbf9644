// Package weather provides the get_weather tool backed by WeatherAPI
// (weatherapi.com).
package weather

import (
	"context"
	"encoding/json"
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
	Name = "get_weather"

	// DefaultBaseURL is the WeatherAPI endpoint root.
	DefaultBaseURL = "http://api.weatherapi.com"

	// NotFoundMessage is returned when the provider has no data for a location.
	NotFoundMessage = "Weather Data Not Found"
)

// Options configures the weather client.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client queries the current-weather endpoint.
type Client struct {
	opts Options
}

// Args are the arguments the model supplies.
type Args struct {
	Query string `json:"query" jsonschema:"Location to look up, e.g. a city name"`
}

// NewClient returns a weather client.
func NewClient(optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL: DefaultBaseURL,
		Timeout: 15 * time.Second,
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

// Current returns the provider payload for query when it describes a known
// location, otherwise {"error": "Weather Data Not Found"}. Transport failures
// and undecodable bodies are returned as errors.
func (c *Client) Current(ctx context.Context, query string) (map[string]any, error) {
	q := url.Values{}
	q.Set("key", c.opts.APIKey)
	q.Set("q", query)
	endpoint := c.opts.BaseURL + "/v1/current.json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("weather read: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("weather: invalid response (status %d)", resp.StatusCode)
	}
	if !gjson.GetBytes(body, "location").Exists() {
		return NotFound(), nil
	}

	data := map[string]any{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("weather decode: %w", err)
	}
	return data, nil
}

// NotFound is the result returned for unknown locations.
func NotFound() map[string]any {
	return map[string]any{"error": NotFoundMessage}
}

// New returns the get_weather tool.
func New(optFns ...func(o *Options)) tool.Tool {
	c := NewClient(optFns...)
	return tool.MustNewTypedTool(Name,
		"Get current weather for a given location using WeatherAPI",
		func(tc *core.ToolContext, args Args) (map[string]any, error) {
			tc.Logger().Debug("weather.lookup", "query", args.Query)
			return c.Current(tc.Context(), args.Query)
		})
}
