package commands

import (
	"bufio"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hupe1980/toolagent/config"
)

var (
	chatThread  string
	chatToolkit []string
	chatMCP     []string
	chatTrace   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat",
	Long: `Start an interactive chat. Every line is sent to the assistant; the
conversation is kept on a thread so follow-up questions have context.

Type quit, exit or q to leave.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatThread, "thread", "t", "", "thread ID (default: new random thread)")
	chatCmd.Flags().StringSliceVar(&chatToolkit, "toolkit", nil, "tools to offer instead of the configured ones (search_web, get_weather, wikipedia)")
	chatCmd.Flags().StringArrayVar(&chatMCP, "mcp", nil, "MCP tool server transport (repeatable)")
	chatCmd.Flags().BoolVar(&chatTrace, "trace", false, "print every message")

	rootCmd.AddCommand(chatCmd)
}

func isQuit(line string) bool {
	switch strings.ToLower(line) {
	case "quit", "exit", "q":
		return true
	}
	return false
}

func runChat(cmd *cobra.Command, _ []string) error {
	p := newPrinter(cmd, true)
	if !chatTrace {
		p = nil
	}
	ta, err := openAgent(cmd, p, func(cfg *config.Config) {
		if len(chatToolkit) > 0 {
			cfg.Tools.Enabled = slices.Clone(chatToolkit)
		}
		if len(chatMCP) > 0 {
			cfg.MCP = append(slices.Clone(cfg.MCP), chatMCP...)
		}
	})
	if err != nil {
		return err
	}
	defer ta.Close()

	thread := chatThread
	if thread == "" {
		thread = uuid.NewString()
	}
	logger.Debug("chat.start", "thread_id", thread, "tools", ta.Catalog().Len())

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "User: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isQuit(line) {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		res, err := ta.Chat(ctx, thread, line)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			continue
		}
		if !chatTrace {
			fmt.Fprintln(out, "Assistant:", res.Final.Text())
		}
	}
	return scanner.Err()
}
