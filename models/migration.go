package models

import "gorm.io/gorm"

// MigrateTable creates or updates the ledger tables this tool writes to.
// Production ledgers already carry sales_registers; this is used for fresh
// databases and integration tests.
func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&SalesRegister{},
		&SyncRun{},
	)
}
