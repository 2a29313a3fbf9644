package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/toolagent/flow"
)

var (
	askThread string
	askOnce   bool
	askTrace  bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question",
	Long: `Answer a single question, calling tools as the model requests them.

With --thread the exchange is stored and later questions on the same thread
see the earlier messages. With --once the model gets a single tool round and
must answer from those results.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askThread, "thread", "t", "", "persist the exchange on this thread")
	askCmd.Flags().BoolVar(&askOnce, "once", false, "allow a single tool round")
	askCmd.Flags().BoolVar(&askTrace, "trace", false, "print every message")

	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if askOnce && askThread != "" {
		return fmt.Errorf("--once cannot be combined with --thread")
	}
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question is empty")
	}

	p := newPrinter(cmd, askTrace)
	if !askTrace {
		p = nil
	}
	ta, err := openAgent(cmd, p, nil)
	if err != nil {
		return err
	}
	defer ta.Close()

	ctx := cmd.Context()
	var res *flow.Result
	switch {
	case askThread != "":
		res, err = ta.Chat(ctx, askThread, question)
	case askOnce:
		res, err = ta.AskOnce(ctx, question)
	default:
		res, err = ta.Ask(ctx, question)
	}
	if err != nil {
		return err
	}
	if !askTrace {
		newPrinter(cmd, false).Final(res.Final)
	}
	return nil
}
