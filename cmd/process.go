package main

import (
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	processID    string
	processUser  string
	processLimit int
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process unprocessed messages, or one message with --id",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if processLimit > 0 {
			cfg.Batch.Limit = processLimit
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		if processID != "" {
			msg, err := env.Store.GetMessage(ctx, processID)
			if err != nil {
				return eris.Wrap(err, "load message")
			}
			routed, err := env.Pipeline.ProcessMessage(ctx, msg, processUser)
			if err != nil {
				return eris.Wrapf(err, "process message %s", processID)
			}
			trail, err := env.Store.ListAudit(ctx, processID)
			if err != nil {
				return eris.Wrap(err, "load audit trail")
			}
			return enc.Encode(map[string]any{"id": processID, "routed": routed, "audit": trail})
		}

		result, err := env.Pipeline.ProcessUnprocessed(ctx, processUser)
		if result != nil {
			zap.L().Info("batch complete",
				zap.Int("processed", result.Processed),
				zap.Int("skipped", result.Skipped),
				zap.Int("errors", result.Errors),
			)
		}
		if err != nil {
			return eris.Wrap(err, "process batch")
		}
		return enc.Encode(result)
	},
}

func init() {
	processCmd.Flags().StringVar(&processID, "id", "", "process a single message by id")
	processCmd.Flags().StringVar(&processUser, "user", "", "acting user id (default from config)")
	processCmd.Flags().IntVar(&processLimit, "limit", 0, "max messages per batch (default from config)")
	rootCmd.AddCommand(processCmd)
}
