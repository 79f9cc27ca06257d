package main

import (
	"fmt"

	"github.com/mmdatafocus/taxsales_validator/models"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the sales register tables in the ledger database",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.cfg.IsLedgerConfigured() {
			return fmt.Errorf("ledger database is not configured: set SAS_DB_HOST, SAS_DB_NAME, SAS_DB_USER and SAS_DB_PASSWORD")
		}
		db, err := a.openDB(cmd.Context(), a.cfg.Ledger)
		if err != nil {
			return err
		}
		if err := models.MigrateTable(db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ledger tables are up to date")
		return nil
	},
}
