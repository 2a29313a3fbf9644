// Package config loads toolagent settings from an optional YAML file and
// environment variables. Environment variables win over the file so that
// credentials never need to be written to disk.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/hupe1980/toolagent/logging"
)

// Supported model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Tool names accepted in tools.enabled.
const (
	ToolSearch    = "search_web"
	ToolWeather   = "get_weather"
	ToolWikipedia = "wikipedia"
)

// Config is the resolved configuration.
type Config struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	Temperature *float64 `yaml:"temperature"`
	MaxRetries  uint64   `yaml:"max_retries"`
	Stream      bool     `yaml:"stream"`

	// SystemPrompt overrides the default assistant prompt.
	SystemPrompt string `yaml:"system_prompt"`
	MaxSteps     int    `yaml:"max_steps"`
	MaxParallel  int    `yaml:"max_parallel"`

	// Store is a session URL (memory://, badger:///dir, redis://...).
	Store    string `yaml:"store"`
	StoreTTL string `yaml:"store_ttl"`

	Keys  Keys        `yaml:"keys"`
	Tools ToolsConfig `yaml:"tools"`
	// MCP lists tool server transports (stdio://cmd, http(s)://..., sse://...).
	MCP []string  `yaml:"mcp"`
	Log LogConfig `yaml:"log"`
}

// Keys holds provider and tool credentials.
type Keys struct {
	OpenAI    string `yaml:"openai"`
	Anthropic string `yaml:"anthropic"`
	Gemini    string `yaml:"gemini"`
	Weather   string `yaml:"weather"`
	Tavily    string `yaml:"tavily"`
}

// ToolsConfig selects and tunes the built-in tools.
type ToolsConfig struct {
	Enabled          []string `yaml:"enabled"`
	WeatherBaseURL   string   `yaml:"weather_base_url"`
	SearchBaseURL    string   `yaml:"search_base_url"`
	SearchMaxResults int      `yaml:"search_max_results"`
	SearchDepth      string   `yaml:"search_depth"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Error reports an invalid or missing setting.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Default returns the baseline configuration: OpenAI o4-mini with web search
// and weather tools and an in-memory thread store.
func Default() *Config {
	return &Config{
		Provider: ProviderOpenAI,
		MaxSteps: 25,
		Store:    "memory://",
		Tools: ToolsConfig{
			Enabled: []string{ToolSearch, ToolWeather},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (if non-empty) and applies environment overrides.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string, names ...string) {
		for _, name := range names {
			if v, ok := lookup(name); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	str(&c.Keys.OpenAI, "OPENAI_API_KEY")
	str(&c.Keys.Anthropic, "ANTHROPIC_API_KEY")
	str(&c.Keys.Gemini, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	str(&c.Keys.Weather, "WEATHER_API_KEY")
	str(&c.Keys.Tavily, "TAVILY_API_KEY")
	str(&c.Provider, "TOOLAGENT_PROVIDER")
	str(&c.Model, "TOOLAGENT_MODEL")
	str(&c.BaseURL, "TOOLAGENT_BASE_URL")
	str(&c.Store, "TOOLAGENT_STORE")
	str(&c.Log.Level, "TOOLAGENT_LOG_LEVEL")

	if v, ok := lookup("TOOLAGENT_MAX_STEPS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &Error{Field: "TOOLAGENT_MAX_STEPS", Message: fmt.Sprintf("not an integer: %q", v)}
		}
		c.MaxSteps = n
	}
	return nil
}

// ProviderKey returns the credential of the selected provider.
func (c *Config) ProviderKey() string {
	switch c.Provider {
	case ProviderOpenAI:
		return c.Keys.OpenAI
	case ProviderAnthropic:
		return c.Keys.Anthropic
	case ProviderGemini:
		return c.Keys.Gemini
	default:
		return ""
	}
}

// ToolEnabled reports whether name is listed in tools.enabled.
func (c *Config) ToolEnabled(name string) bool {
	for _, t := range c.Tools.Enabled {
		if t == name {
			return true
		}
	}
	return false
}

// TTL parses StoreTTL; empty means no expiry.
func (c *Config) TTL() (time.Duration, error) {
	if c.StoreTTL == "" {
		return 0, nil
	}
	return time.ParseDuration(c.StoreTTL)
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (logging.LogLevel, error) {
	return logging.ParseLevel(c.Log.Level)
}

var envNames = map[string]string{
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderGemini:    "GEMINI_API_KEY",
}

// Validate fails fast on the first missing credential or invalid setting.
// Tool credentials are only required for enabled tools.
func (c *Config) Validate() error {
	env, ok := envNames[c.Provider]
	if !ok {
		return &Error{Field: "provider", Message: fmt.Sprintf("unsupported provider %q (want openai, anthropic or gemini)", c.Provider)}
	}
	if c.ProviderKey() == "" {
		return &Error{Field: "keys." + c.Provider, Message: "please set " + env}
	}
	if c.MaxSteps < 0 {
		return &Error{Field: "max_steps", Message: "must not be negative"}
	}
	if c.MaxParallel < 0 {
		return &Error{Field: "max_parallel", Message: "must not be negative"}
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return &Error{Field: "temperature", Message: "must be between 0 and 2"}
	}

	for _, name := range c.Tools.Enabled {
		switch name {
		case ToolSearch:
			if c.Keys.Tavily == "" {
				return &Error{Field: "keys.tavily", Message: "please set TAVILY_API_KEY or disable " + ToolSearch}
			}
		case ToolWeather:
			if c.Keys.Weather == "" {
				return &Error{Field: "keys.weather", Message: "please set WEATHER_API_KEY or disable " + ToolWeather}
			}
		case ToolWikipedia:
		default:
			return &Error{Field: "tools.enabled", Message: fmt.Sprintf("unknown tool %q", name)}
		}
	}

	if _, err := c.TTL(); err != nil {
		return &Error{Field: "store_ttl", Message: err.Error()}
	}
	if _, err := c.LogLevel(); err != nil {
		return &Error{Field: "log.level", Message: err.Error()}
	}
	if f := strings.ToLower(c.Log.Format); f != "" && f != "text" && f != "json" {
		return &Error{Field: "log.format", Message: fmt.Sprintf("unsupported format %q", c.Log.Format)}
	}
	return nil
}

// IsConfigError reports whether err is a *Error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}
