package config

import (
	"os"
	"strings"
)

// SyncRunAuditEnabled writes a sales_register_sync_runs row after every real sync.
//
// Set via env:
// - SYNC_RUN_AUDIT=true
func SyncRunAuditEnabled(def bool) bool {
	return flagFromEnv("SYNC_RUN_AUDIT", def)
}

// CompareCustomerNameEnabled includes the customer name in the customer category.
// Names are compared after collapsing whitespace and upper-casing.
//
// Set via env:
// - RECONCILE_COMPARE_CUSTOMER_NAME=false
func CompareCustomerNameEnabled(def bool) bool {
	return flagFromEnv("RECONCILE_COMPARE_CUSTOMER_NAME", def)
}

func flagFromEnv(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return def
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}
