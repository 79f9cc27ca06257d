package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mmdatafocus/taxsales_validator/ledgersync"
	"github.com/mmdatafocus/taxsales_validator/workflow"
	"github.com/spf13/cobra"
)

var (
	syncFlags    runFlags
	syncDryRun   bool
	syncConfirm  string
	syncOverride bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile, then copy the tax report into the ledger sales register",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(syncFlags.source) == "" {
			fmt.Fprintln(os.Stderr, "--source is required")
			os.Exit(1)
		}
		if !syncDryRun && strings.TrimSpace(syncConfirm) != "SYNC" {
			fmt.Fprintln(os.Stderr, "set --confirm=SYNC to proceed when --dry-run=false")
			os.Exit(1)
		}
		period, err := syncFlags.resolvePeriod(time.Now())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.pipeline(ctx, &syncFlags)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		p.Syncer = ledgersync.NewSyncer(a.ledgerStore(ctx), nil, ledgersync.Options{
			DryRun:             syncDryRun,
			Override:           syncOverride,
			AmountTolerancePct: a.cfg.Sync.AmountTolerancePct,
			ChunkSize:          a.cfg.Sync.BatchSize,
			Timeout:            a.cfg.Sync.Timeout,
			AuditRuns:          a.cfg.Sync.AuditRuns,
			Progress: func(e ledgersync.ProgressEvent) {
				fmt.Fprintf(w, "  chunk %d/%d: %d/%d records\n", e.Chunk, e.Chunks, e.Done, e.Total)
			},
		}, a.logger)
		p.Publisher = a.publisher(ctx)

		out, err := p.Run(ctx, workflow.Input{SourcePath: syncFlags.source, Period: period})
		if err != nil {
			return err
		}
		printOutcome(cmd, out)
		fmt.Fprint(w, out.Sync.Summary())
		return out.Sync.Err()
	},
}

func init() {
	syncFlags.register(syncCmd)
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", true, "Estimate inserts and updates without writing")
	syncCmd.Flags().StringVar(&syncConfirm, "confirm", "", "Type SYNC to proceed when --dry-run=false")
	syncCmd.Flags().BoolVar(&syncOverride, "override", false, "Sync even with discrepancies or amount differences above the tolerance")
}
