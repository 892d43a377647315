package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/asreview/prior/internal/config"
	"github.com/asreview/prior/internal/outbox"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Deliver queued decisions to the API",
	Long: `Deliver decisions that 'prior screen' queued in .prior/outbox.db but could
not send yet. Decisions are sent oldest first; delivery stops at the first
failure that may succeed on a later attempt.`,
	GroupID: "screening",
	RunE:    runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	addClientFlags(syncCmd.Flags())
	syncCmd.Flags().Duration("timeout", 30*time.Second, "Give up after this long")
}

func runSync(cmd *cobra.Command, args []string) error {
	dir := getBaseDir()
	path := config.StatePath(dir, outboxFile)
	if !fileExists(path) {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to sync")
		return nil
	}

	cfg, err := resolveSettings(cmd.Flags(), dir)
	if err != nil {
		return err
	}

	queue, err := outbox.Open(path)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}
	defer queue.Close()

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	n, flushErr := outbox.NewDispatcher(queue, newClient(cfg)).Flush(ctx)

	stats, err := queue.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("outbox stats: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Delivered %d decision(s) to %s; %d pending, %d rejected\n",
		n, cfg.APIBase, stats.Pending, stats.Rejected)

	if flushErr != nil {
		return fmt.Errorf("sync stopped: %w", flushErr)
	}
	return nil
}
