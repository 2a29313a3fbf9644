package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/internal/pretty"
)

// demoQueries exercise the weather tool, the search tool and a question the
// model can answer on its own.
var demoQueries = []string{
	"What is the current weather in Trivandrum today",
	"Can you tell me about Kerala situation today",
	"Why is the sky blue?",
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the demo queries",
	Long: `Run three sample queries with a single tool round each, printing every
executed tool and the final answer.`,
	Args: cobra.NoArgs,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	p := pretty.New(out, func(o *pretty.Options) { o.MaxResultChars = 500 })

	ta, err := openAgent(cmd, nil, nil)
	if err != nil {
		return err
	}
	defer ta.Close()

	for _, q := range demoQueries {
		fmt.Fprintf(out, "\n--- Query: %s ---\n", q)
		res, err := ta.AskOnce(cmd.Context(), q)
		if err != nil {
			return fmt.Errorf("query %q: %w", q, err)
		}
		for _, msg := range res.Messages {
			if msg.Role != core.RoleTool {
				continue
			}
			for _, fr := range msg.FunctionResponses() {
				p.Executed(fr)
			}
		}
		p.Final(res.Final)
	}
	return nil
}
