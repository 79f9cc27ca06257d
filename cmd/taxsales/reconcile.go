package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mmdatafocus/taxsales_validator/workflow"
	"github.com/spf13/cobra"
)

var reconcileFlags runFlags

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare a SIAT sales report with the inventory invoices and write the Excel report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(reconcileFlags.source) == "" {
			fmt.Fprintln(os.Stderr, "--source is required")
			os.Exit(1)
		}
		period, err := reconcileFlags.resolvePeriod(time.Now())
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

		p, err := a.pipeline(ctx, &reconcileFlags)
		if err != nil {
			return err
		}
		out, err := p.Run(ctx, workflow.Input{SourcePath: reconcileFlags.source, Period: period})
		if err != nil {
			return err
		}
		printOutcome(cmd, out)
		return nil
	},
}

func init() {
	reconcileFlags.register(reconcileCmd)
}

func printOutcome(cmd *cobra.Command, out *workflow.Outcome) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s, period %s\n", out.RunId, out.Period)
	fmt.Fprintln(w, out.Decode.String())
	fmt.Fprint(w, out.Stats.Summary())
	if out.ReportPath != "" {
		fmt.Fprintf(w, "Report: %s\n", out.ReportPath)
	}
	if out.ArchivedAs != "" {
		fmt.Fprintf(w, "Archived as: %s\n", out.ArchivedAs)
	}
}
