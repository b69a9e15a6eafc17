package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/intake-cli/internal/model"
	"github.com/sells-group/intake-cli/internal/store"
)

var (
	messagesAll   bool
	messagesLimit int
)

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Inspect stored messages",
}

var messagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unprocessed messages (or all with --all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter := store.UnprocessedFilter(messagesLimit)
		if messagesAll {
			filter = store.MessageFilter{Limit: messagesLimit}
		}
		msgs, err := st.ListMessages(ctx, filter)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tRECEIVED\tFROM\tSUBJECT\tPROCESSED\tATTEMPTS")
		for _, m := range msgs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%d\n",
				m.ID, m.ReceivedAt.Format("2006-01-02 15:04"), m.From.Email, m.Subject, m.Processed, m.RoutingAttempts)
		}
		return w.Flush()
	},
}

var messagesAuditCmd = &cobra.Command{
	Use:   "audit <id>",
	Short: "Print a message's audit trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		trail, err := st.ListAudit(ctx, args[0])
		if err != nil {
			return err
		}
		if trail == nil {
			trail = model.AuditTrail{}
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(trail)
	},
}

func init() {
	messagesListCmd.Flags().BoolVar(&messagesAll, "all", false, "include processed messages")
	messagesListCmd.Flags().IntVar(&messagesLimit, "limit", 50, "max messages to list")
	messagesCmd.AddCommand(messagesListCmd, messagesAuditCmd)
	rootCmd.AddCommand(messagesCmd)
}
