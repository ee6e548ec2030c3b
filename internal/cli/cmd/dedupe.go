package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/berrythewa/inspiration-daemon/internal/dedupe"
)

func newDedupeCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Inspect the clipboard dedupe cache",
		Long: `Inspect the clipboard dedupe cache on disk.

These commands read the cache file directly and only prune writes to it.
A running daemon keeps its own copy in memory and rewrites the file on its
next capture.`,
	}

	cmd.AddCommand(
		newDedupeCheckCmd(o),
		newDedupeStatsCmd(o),
		newDedupePruneCmd(o),
	)
	return cmd
}

func (o *rootOptions) openDedupe() (*dedupe.Store, error) {
	if err := o.load(); err != nil {
		return nil, err
	}
	c := o.cfg.Dedupe
	return dedupe.Open(c.Path, c.TTL, c.Enabled,
		dedupe.WithoutCompaction(),
		dedupe.WithLogger(o.logger.Named("dedupe"))), nil
}

func newDedupeCheckCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [text]",
		Short: "Check whether text would be skipped as a duplicate",
		Long:  "Check whether text would be skipped as a duplicate. With no argument the text is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(raw)
			}

			store, err := o.openDedupe()
			if err != nil {
				return err
			}
			d := store.Check(text)
			if o.useJSON {
				return printJSON(cmd.OutOrStdout(), d)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Fingerprint: %s\n", d.Fingerprint)
			switch {
			case d.IsDuplicate:
				fmt.Fprintf(w, "Duplicate:   yes (seen %ds ago)\n", *d.AgeSeconds)
			case d.AgeSeconds != nil:
				fmt.Fprintf(w, "Duplicate:   no (last seen %ds ago, expired)\n", *d.AgeSeconds)
			default:
				fmt.Fprintln(w, "Duplicate:   no")
			}
			return nil
		},
	}
}

func newDedupeStatsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dedupe cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := o.openDedupe()
			if err != nil {
				return err
			}
			st := store.Stats()
			if o.useJSON {
				return printJSON(cmd.OutOrStdout(), st)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Path:    %s\n", st.Path)
			fmt.Fprintf(w, "Enabled: %t\n", st.Enabled)
			fmt.Fprintf(w, "Entries: %d\n", st.Entries)
			fmt.Fprintf(w, "TTL:     %ds\n", st.TTLSeconds)
			return nil
		},
	}
}

func newDedupePruneCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove expired entries from the dedupe cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := o.openDedupe()
			if err != nil {
				return err
			}
			n, err := store.Prune()
			if err != nil {
				return fmt.Errorf("failed to prune dedupe cache: %w", err)
			}
			if o.useJSON {
				return printJSON(cmd.OutOrStdout(), map[string]int{"removed": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries\n", n)
			return nil
		},
	}
}
