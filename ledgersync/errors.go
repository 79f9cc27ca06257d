package ledgersync

import "errors"

var (
	ErrBlocked    = errors.New("ledger sync blocked")
	ErrRolledBack = errors.New("ledger sync rolled back")
)

type BlockReason string

const (
	BlockStoreNotConfigured BlockReason = "store_not_configured"
	BlockStoreUnreachable   BlockReason = "store_unreachable"
	BlockDiscrepancies      BlockReason = "discrepancies"
	BlockAmountTolerance    BlockReason = "amount_tolerance"
)
