// taxsales reconciles the sales invoices reported to the tax authority (SIAT)
// with the invoices recorded by the inventory system and, when the numbers
// agree, copies the tax report into the accounting sales register.
//
// Usage:
//
//	go run ./cmd/taxsales decode 4AB3...E1
//	go run ./cmd/taxsales reconcile --source=siat_2025_09.zip --period=2025-09
//	go run ./cmd/taxsales reconcile --source=siat.csv --inventory-file=facturas.csv
//
// Sync is a dry run unless explicitly confirmed:
//
//	go run ./cmd/taxsales sync --source=siat.zip --period=2025-09
//	go run ./cmd/taxsales sync --source=siat.zip --period=2025-09 \
//	  --dry-run=false --confirm=SYNC
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "taxsales",
	Short:         "Reconcile SIAT sales reports with inventory and sync them to the ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional YAML file with reconcile, sync and report settings")
	rootCmd.AddCommand(decodeCmd, reconcileCmd, syncCmd, migrateCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
