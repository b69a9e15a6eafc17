package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/intake-cli/internal/settings"
)

var settingsScope string

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and write routing setting overrides",
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List overridable setting keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range settings.Keys() {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the override stored for a key in --scope",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		raw, err := settings.NewProvider(st, cfg).Get(ctx, settingsScope, args[0])
		if err != nil {
			return err
		}
		if raw == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "(not set)")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <json-value>",
	Short: "Store an override for a key in --scope",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return settings.NewProvider(st, cfg).Set(ctx, settingsScope, args[0], json.RawMessage(args[1]))
	},
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved settings for --scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		resolved, err := settings.NewProvider(st, cfg).Resolve(ctx, settingsScope)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resolved)
	},
}

func init() {
	settingsCmd.PersistentFlags().StringVar(&settingsScope, "scope", settings.GlobalScope, "user id, or global")
	settingsCmd.AddCommand(settingsKeysCmd, settingsGetCmd, settingsSetCmd, settingsShowCmd)
	rootCmd.AddCommand(settingsCmd)
}
