package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/toolagent/config"
	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/model"
)

// runCmd executes the root command with args and stdin, returning the
// captured output and an exit code.
func runCmd(t *testing.T, stdin string, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer
	rootCmd.SetOut(&outBuf)
	rootCmd.SetErr(&errBuf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())

	stdout = outBuf.String()
	stderr = errBuf.String()
	if err != nil {
		exitCode = 1
		stderr += "Error: " + err.Error() + "\n"
	}

	resetFlags(rootCmd)
	globalConfig = nil
	return
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
			return
		}
		_ = f.Value.Set(f.DefValue)
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// writeTestYAML writes a YAML file to a temp dir and returns its path.
func writeTestYAML(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// setupTestEnv points the weather tool at a fake server, stores threads in a
// temporary badger directory and replaces the model with a scripted one.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	for _, name := range []string{"OPENAI_API_KEY", "WEATHER_API_KEY", "TAVILY_API_KEY", "TOOLAGENT_STORE", "TOOLAGENT_PROVIDER", "TOOLAGENT_LOG_LEVEL"} {
		t.Setenv(name, "")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "Trivandrum" {
			_, _ = io.WriteString(w, `{"error":{"code":1006,"message":"No matching location found."}}`)
			return
		}
		_, _ = io.WriteString(w, `{"location":{"name":"Thiruvananthapuram"},"current":{"temp_c":30.1}}`)
	}))
	t.Cleanup(srv.Close)

	old := newModel
	newModel = func(context.Context, *config.Config) (model.Model, error) {
		return model.NewScriptedModelFunc(func(req model.Request) (core.Content, error) {
			last, _ := req.Contents.Last()
			if last.Role == core.RoleUser {
				return core.NewToolCallContent(core.FunctionCall{ID: core.NewID(), Name: "get_weather", Arguments: `{"query":"Trivandrum"}`}), nil
			}
			return core.NewAssistantContent("It is 30.1C in Trivandrum."), nil
		}), nil
	}
	t.Cleanup(func() { newModel = old })

	return writeTestYAML(t, "toolagent.yaml", fmt.Sprintf(`provider: openai
store: badger://%s
keys:
  openai: sk-test
  weather: w
  tavily: t
tools:
  weather_base_url: %s
`, t.TempDir(), srv.URL))
}

func TestAsk(t *testing.T) {
	cfg := setupTestEnv(t)

	stdout, stderr, code := runCmd(t, "", "--config", cfg, "ask", "What is the current weather in Trivandrum today")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Final Answer: It is 30.1C in Trivandrum.")
}

func TestAskTrace(t *testing.T) {
	cfg := setupTestEnv(t)

	stdout, stderr, code := runCmd(t, "", "--config", cfg, "ask", "--trace", "Will it rain in Trivandrum today?")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Tool Calls:")
	assert.Contains(t, stdout, "Tool Message")
	assert.Contains(t, stdout, "Thiruvananthapuram")
	assert.NotContains(t, stdout, "Final Answer:")
}

func TestAskOnce(t *testing.T) {
	cfg := setupTestEnv(t)

	stdout, stderr, code := runCmd(t, "", "--config", cfg, "ask", "--once", "Weather in Trivandrum?")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Final Answer:")

	_, stderr, code = runCmd(t, "", "--config", cfg, "ask", "--once", "--thread", "x", "hi")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--once")
}

func TestAskMissingKey(t *testing.T) {
	setupTestEnv(t)
	newModel = func(ctx context.Context, cfg *config.Config) (model.Model, error) {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("unexpected")
	}

	_, stderr, code := runCmd(t, "", "ask", "hello")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "config:")
}

func TestChat(t *testing.T) {
	cfg := setupTestEnv(t)

	stdout, stderr, code := runCmd(t, "Will it rain in Trivandrum today?\n\nquit\nnever sent\n", "--config", cfg, "chat", "--thread", "weather1")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Assistant: It is 30.1C in Trivandrum.")
	assert.Contains(t, stdout, "Goodbye!")
	assert.Equal(t, 1, strings.Count(stdout, "Assistant:"))

	stdout, stderr, code = runCmd(t, "", "--config", cfg, "threads", "list")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "weather1")
	assert.Contains(t, stdout, "4")
}

func TestChatEOF(t *testing.T) {
	cfg := setupTestEnv(t)

	stdout, stderr, code := runCmd(t, "hello", "--config", cfg, "chat")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Assistant:")
	assert.NotContains(t, stdout, "Goodbye!")
}

func TestChatToolkit(t *testing.T) {
	cfg := setupTestEnv(t)

	// Without get_weather the scripted call comes back as an error result.
	stdout, stderr, code := runCmd(t, "q?\nexit\n", "--config", cfg, "chat", "--toolkit", "wikipedia", "--trace")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "UNKNOWN_TOOL")
	assert.Contains(t, stdout, "Goodbye!")
}

func TestIsQuit(t *testing.T) {
	for _, s := range []string{"quit", "EXIT", "q", "Q"} {
		assert.True(t, isQuit(s), s)
	}
	assert.False(t, isQuit("question"))
}

func TestDemo(t *testing.T) {
	cfg := setupTestEnv(t)

	stdout, stderr, code := runCmd(t, "", "--config", cfg, "demo")
	require.Equal(t, 0, code, stderr)
	for _, q := range demoQueries {
		assert.Contains(t, stdout, "--- Query: "+q+" ---")
	}
	assert.Equal(t, 3, strings.Count(stdout, "Executed tool get_weather"))
	assert.Equal(t, 3, strings.Count(stdout, "Final Answer:"))
}

func TestThreads(t *testing.T) {
	cfg := setupTestEnv(t)

	stdout, _, code := runCmd(t, "", "--config", cfg, "threads", "list")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "No threads.")

	_, stderr, code := runCmd(t, "", "--config", cfg, "ask", "--thread", "t1", "Will it rain in Trivandrum today?")
	require.Equal(t, 0, code, stderr)

	stdout, stderr, code = runCmd(t, "", "--config", cfg, "threads", "show", "t1")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Human Message")
	assert.Contains(t, stdout, "Will it rain in Trivandrum today?")
	assert.Contains(t, stdout, "Name: get_weather")

	_, _, code = runCmd(t, "", "--config", cfg, "threads", "show", "missing")
	assert.Equal(t, 1, code)

	stdout, stderr, code = runCmd(t, "", "--config", cfg, "threads", "delete", "t1")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Deleted t1")

	_, stderr, code = runCmd(t, "", "--config", cfg, "threads", "delete", "t1")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "t1")
}

func TestMetricsAddr(t *testing.T) {
	cfg := setupTestEnv(t)

	_, stderr, code := runCmd(t, "", "--config", cfg, "--metrics-addr", "127.0.0.1:0", "ask", "Trivandrum?")
	require.Equal(t, 0, code, stderr)
	assert.Nil(t, stopMetrics)
}
