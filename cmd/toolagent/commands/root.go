package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"

	"github.com/hupe1980/toolagent"
	"github.com/hupe1980/toolagent/config"
	"github.com/hupe1980/toolagent/internal/pretty"
	"github.com/hupe1980/toolagent/internal/telemetry"
	"github.com/hupe1980/toolagent/logging"
	"github.com/hupe1980/toolagent/model"
)

var (
	// Global flags
	configPath  string
	verbose     bool
	logFormat   string
	metricsAddr string

	// Set by the root pre-run.
	globalConfig  *config.Config
	logger        logging.Logger = logging.NoOpLogger{}
	meterProvider metric.MeterProvider
	stopMetrics   func(context.Context) error
)

// newModel builds the provider client for cfg. Tests replace it.
var newModel = func(ctx context.Context, cfg *config.Config) (model.Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return toolagent.NewModel(ctx, cfg)
}

var rootCmd = &cobra.Command{
	Use:   "toolagent",
	Short: "Tool-calling assistant with web search and weather tools",
	Long: `toolagent - an LLM assistant that can call tools.

The model decides when to call search_web or get_weather; tool results are
fed back until it answers in plain text.

Configuration is read from an optional YAML file (--config) and the
environment (OPENAI_API_KEY, WEATHER_API_KEY, TAVILY_API_KEY, ...).

Examples:
  toolagent ask "What is the current weather in Trivandrum today"
  toolagent ask --thread 1 "Will it rain in Trivandrum today?"
  toolagent chat --toolkit wikipedia
  toolagent threads list`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		return teardown()
	},
}

// Execute runs the root command.
func Execute() error {
	defer func() { _ = teardown() }()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	globalConfig = cfg

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	switch {
	case verbose:
		level = logging.LogLevelDebug
	case level < logging.LogLevelWarn:
		level = logging.LogLevelWarn
	}
	logger = logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    cmd.ErrOrStderr(),
		Component: "cli",
	})

	if metricsAddr != "" {
		prom, err := telemetry.NewPrometheus()
		if err != nil {
			return err
		}
		stop, err := prom.Serve(metricsAddr, logger)
		if err != nil {
			return err
		}
		meterProvider = prom.Provider
		stopMetrics = stop
	}
	return nil
}

func teardown() error {
	if stopMetrics == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := stopMetrics(ctx)
	stopMetrics = nil
	meterProvider = nil
	return err
}

// GetConfig returns the configuration loaded by the root command.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return globalConfig, nil
}

// openAgent assembles a ToolAgent from the global configuration. Events are
// rendered by p when it is non-nil.
func openAgent(cmd *cobra.Command, p *pretty.Printer, mutate func(cfg *config.Config)) (*toolagent.ToolAgent, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		c := *cfg
		mutate(&c)
		cfg = &c
	}

	ctx := cmd.Context()
	m, err := newModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return toolagent.New(ctx, cfg, func(o *toolagent.Options) {
		o.Model = m
		o.Logger = logger
		o.MeterProvider = meterProvider
		if p != nil {
			o.OnEvent = p.Event
		}
	})
}

// newPrinter returns a printer writing to the command's stdout.
func newPrinter(cmd *cobra.Command, partials bool) *pretty.Printer {
	return pretty.New(cmd.OutOrStdout(), func(o *pretty.Options) {
		o.Partials = partials
	})
}
