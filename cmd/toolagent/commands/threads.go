package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/toolagent/core"
	"github.com/hupe1980/toolagent/session"
)

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "Manage persisted threads",
	Long: `Inspect the thread store configured by store (or TOOLAGENT_STORE).

The default memory:// store does not outlive the process; use
badger:///path or redis://host:6379/0 to keep threads between runs.`,
}

var threadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List threads, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		infos, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No threads.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tMESSAGES\tUPDATED")
		for _, info := range infos {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", info.ID, info.Messages, info.Updated.Local().Format(time.RFC3339))
		}
		return tw.Flush()
	},
}

var threadsShowCmd = &cobra.Command{
	Use:   "show <thread-id>",
	Short: "Print the messages of a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := session.ValidateThreadID(args[0]); err != nil {
			return err
		}
		if !threadExists(cmd, store, args[0]) {
			return fmt.Errorf("%w: %s", core.ErrThreadNotFound, args[0])
		}
		th, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		p := newPrinter(cmd, false)
		for _, msg := range th.Messages {
			p.Message(msg)
		}
		return nil
	},
}

var threadsDeleteCmd = &cobra.Command{
	Use:   "delete <thread-id>...",
	Short: "Delete threads",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		var errs []error
		for _, id := range args {
			if err := store.Delete(cmd.Context(), id); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", id, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
		}
		return errors.Join(errs...)
	},
}

func init() {
	threadsCmd.AddCommand(threadsListCmd, threadsShowCmd, threadsDeleteCmd)
	rootCmd.AddCommand(threadsCmd)
}

// threadExists reports whether id is listed. Load would create it.
func threadExists(cmd *cobra.Command, store core.ThreadStore, id string) bool {
	infos, err := store.List(cmd.Context())
	if err != nil {
		return false
	}
	for _, info := range infos {
		if info.ID == id {
			return true
		}
	}
	return false
}

// openStore opens the configured thread store without building a model.
func openStore() (core.ThreadStore, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}
	ttl, err := cfg.TTL()
	if err != nil {
		return nil, err
	}
	return session.Open(cfg.Store, func(o *session.OpenOptions) {
		o.Logger = logger
		o.TTL = ttl
	})
}
