package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/berrythewa/inspiration-daemon/internal/app"
	"github.com/berrythewa/inspiration-daemon/internal/ipc"
)

// send issues one request to the running daemon.
func (o *rootOptions) send(req *ipc.Request) (*ipc.Response, error) {
	if err := o.load(); err != nil {
		return nil, err
	}
	resp, err := ipc.SendRequest(o.cfg.IPC.SocketPath, req)
	if err != nil {
		return nil, err
	}
	return resp, resp.Err()
}

func newStatusCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := o.send(&ipc.Request{Command: ipc.CmdStatus})
			if err != nil {
				return err
			}
			var st app.Status
			if err := resp.DecodeData(&st); err != nil {
				return err
			}
			if o.useJSON {
				return printJSON(cmd.OutOrStdout(), st)
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func printStatus(w io.Writer, st app.Status) {
	hk := st.Hotkeys
	fmt.Fprintf(w, "Hotkeys:    %s (alive: %t, restarts: %d, uptime: %ds)\n", hk.Phase, hk.Alive, hk.RestartCount, hk.UptimeSeconds)
	fmt.Fprintf(w, "Combos:     %s\n", strings.Join(hk.Combos, ", "))
	if hk.LastTriggerSecondsAgo != nil {
		fmt.Fprintf(w, "Triggered:  %ds ago\n", *hk.LastTriggerSecondsAgo)
	} else {
		fmt.Fprintln(w, "Triggered:  never")
	}
	if hk.LastActivitySecondsAgo != nil {
		fmt.Fprintf(w, "Keyboard:   active %ds ago\n", *hk.LastActivitySecondsAgo)
	}
	fmt.Fprintf(w, "Clipboard:  %s\n", onOff(st.ClipboardEnabled))
	fmt.Fprintf(w, "Dedupe:     %s, %d entries, ttl %ds\n", onOff(st.Dedupe.Enabled), st.Dedupe.Entries, st.Dedupe.TTLSeconds)
	if st.InboxCount != nil {
		fmt.Fprintf(w, "Inbox:      %d events\n", *st.InboxCount)
	}
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func newHistoryCmd(o *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent clipboard captures from the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := o.send(&ipc.Request{
				Command: ipc.CmdHistory,
				Args:    map[string]interface{}{"limit": limit},
			})
			if err != nil {
				return err
			}
			var data struct {
				Items []string `json:"items"`
			}
			if err := resp.DecodeData(&data); err != nil {
				return err
			}
			if o.useJSON {
				return printJSON(cmd.OutOrStdout(), data.Items)
			}
			if len(data.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No clipboard history yet")
				return nil
			}
			for i, item := range data.Items {
				fmt.Fprintf(cmd.OutOrStdout(), "%3d  %s\n", i+1, oneLine(item, 80))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}

func newToggleCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Turn clipboard monitoring on or off",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := o.send(&ipc.Request{Command: ipc.CmdToggle})
			if err != nil {
				return err
			}
			var data struct {
				Enabled bool `json:"enabled"`
			}
			if err := resp.DecodeData(&data); err != nil {
				return err
			}
			if o.useJSON {
				return printJSON(cmd.OutOrStdout(), data)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Clipboard monitoring %s\n", onOff(data.Enabled))
			return nil
		},
	}
}

// oneLine flattens text for tabular output.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-3]) + "..."
	}
	return s
}
