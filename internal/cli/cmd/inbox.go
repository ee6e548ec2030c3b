package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/berrythewa/inspiration-daemon/internal/storage"
)

func newInboxCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Browse captured content in the local inbox",
	}
	cmd.AddCommand(newInboxListCmd(o))
	return cmd
}

func newInboxListCmd(o *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List captured events, newest last",
		Long: `List captured events, newest last.

The inbox database is locked while the daemon runs; stop it first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.load(); err != nil {
				return err
			}
			inbox, err := storage.OpenInbox(storage.InboxConfig{
				DBPath: o.cfg.Inbox.Path,
				Logger: o.logger.Named("inbox"),
			})
			if err != nil {
				return fmt.Errorf("%w (is the daemon running?)", err)
			}
			defer inbox.Close()

			events, err := inbox.List(limit)
			if err != nil {
				return err
			}
			if o.useJSON {
				return printJSON(cmd.OutOrStdout(), events)
			}
			if len(events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Inbox is empty")
				return nil
			}
			for _, ev := range events {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s  %s\n",
					ev.CapturedAt.Local().Format("2006-01-02 15:04:05"),
					ev.Source,
					oneLine(ev.Text, 70))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show (0 for all)")
	return cmd
}
