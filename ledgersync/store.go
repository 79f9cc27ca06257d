package ledgersync

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/taxsales_validator/models"
)

type UpsertCounts struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

func (c UpsertCounts) Add(o UpsertCounts) UpsertCounts {
	return UpsertCounts{Inserted: c.Inserted + o.Inserted, Updated: c.Updated + o.Updated}
}

// Tx is the write path of one open ledger transaction.
type Tx interface {
	// Upsert inserts records whose authorization code is absent and updates the
	// rest. It stops at the first failing row and returns a *RowWriteError.
	Upsert(ctx context.Context, records []models.SalesRegister) (UpsertCounts, error)
}

// Store is the accounting ledger as seen by the syncer.
type Store interface {
	TestConnection(ctx context.Context) error
	// ProbeExisting returns which of keys already exist. Read-only.
	ProbeExisting(ctx context.Context, keys []string) (map[string]struct{}, error)
	// WithinTransaction commits iff fn returns nil and rolls back otherwise.
	WithinTransaction(ctx context.Context, fn func(tx Tx) error) error
}

// RunRecorder is implemented by stores that keep an audit trail of real syncs.
type RunRecorder interface {
	RecordRun(ctx context.Context, result *SyncResult) error
}

// RowWriteError identifies the record that made a transaction fail.
// Index is relative to the slice handed to Tx.Upsert.
type RowWriteError struct {
	Index int
	Key   string
	Err   error
}

func (e *RowWriteError) Error() string {
	return fmt.Sprintf("write %s (index %d): %v", e.Key, e.Index, e.Err)
}

func (e *RowWriteError) Unwrap() error {
	return e.Err
}
