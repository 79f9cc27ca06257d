package ledgersync

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/taxsales_validator/salesmap"
)

type Mode string

const (
	ModeDryRun Mode = "dry_run"
	ModeReal   Mode = "real"
)

type State string

const (
	StateIdle                 State = "idle"
	StatePrerequisitesChecked State = "prerequisites_checked"
	StateBlocked              State = "blocked"
	StateMapping              State = "mapping"
	StateSyncing              State = "syncing"
	StateCommitted            State = "committed"
	StateRolledBack           State = "rolled_back"
	StateSimulated            State = "simulated"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	switch s {
	case StateBlocked, StateCommitted, StateRolledBack, StateSimulated:
		return true
	}
	return false
}

// SyncResult is the outcome of one Sync call.
// For a dry run Inserted and Updated are the estimates obtained by probing.
type SyncResult struct {
	RunId  string `json:"run_id"`
	Period string `json:"period,omitempty"`
	Mode   Mode   `json:"mode"`
	State  State  `json:"state"`

	Attempted int `json:"attempted"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`

	BlockReason BlockReason `json:"block_reason,omitempty"`
	BlockDetail string      `json:"block_detail,omitempty"`

	// FailedRow is the 1-based source row that aborted the transaction, 0 if none.
	FailedRow int    `json:"failed_row,omitempty"`
	FailedKey string `json:"failed_key,omitempty"`
	Cause     error  `json:"-"`

	Mapping     salesmap.Report `json:"mapping"`
	Transitions []State         `json:"transitions"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Success is true for a committed run or a completed simulation.
func (r *SyncResult) Success() bool {
	return r.State == StateCommitted || r.State == StateSimulated
}

// Err returns nil on success, otherwise an error matching ErrBlocked or ErrRolledBack.
func (r *SyncResult) Err() error {
	switch r.State {
	case StateBlocked:
		return fmt.Errorf("%w: %s: %s", ErrBlocked, r.BlockReason, r.BlockDetail)
	case StateRolledBack:
		if r.Cause != nil {
			return fmt.Errorf("%w: %w", ErrRolledBack, r.Cause)
		}
		return ErrRolledBack
	}
	return nil
}

func (r *SyncResult) Summary() string {
	var b strings.Builder
	line := strings.Repeat("=", 72)
	fmt.Fprintln(&b, line)
	if r.Mode == ModeDryRun {
		fmt.Fprintln(&b, "LEDGER SYNC (DRY RUN)")
	} else {
		fmt.Fprintln(&b, "LEDGER SYNC")
	}
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "Run:               %s\n", r.RunId)
	if r.Period != "" {
		fmt.Fprintf(&b, "Period:            %s\n", r.Period)
	}
	fmt.Fprintf(&b, "State:             %s\n", r.State)

	switch r.State {
	case StateBlocked:
		fmt.Fprintf(&b, "Blocked by:        %s\n", r.BlockReason)
		fmt.Fprintf(&b, "Detail:            %s\n", r.BlockDetail)
		fmt.Fprintln(&b, "No records were written.")
	default:
		fmt.Fprintf(&b, "Rows mapped:       %d of %d\n", r.Mapping.Succeeded, r.Mapping.Total)
		if n := r.Mapping.Failed(); n > 0 {
			fmt.Fprintf(&b, "Rows skipped:      %d\n", n)
			for i, f := range r.Mapping.Failures {
				if i == 10 {
					fmt.Fprintf(&b, "  ... %d more\n", n-i)
					break
				}
				fmt.Fprintf(&b, "  %s\n", f)
			}
		}
		fmt.Fprintf(&b, "Records attempted: %d\n", r.Attempted)
		switch r.State {
		case StateSimulated:
			fmt.Fprintf(&b, "Would insert:      %d\n", r.Inserted)
			fmt.Fprintf(&b, "Would update:      %d\n", r.Updated)
			fmt.Fprintln(&b, "No records were written.")
		case StateCommitted:
			fmt.Fprintf(&b, "Inserted:          %d\n", r.Inserted)
			fmt.Fprintf(&b, "Updated:           %d\n", r.Updated)
		case StateRolledBack:
			if r.FailedKey != "" {
				fmt.Fprintf(&b, "Failed at:         row %d (%s)\n", r.FailedRow, r.FailedKey)
			}
			if r.Cause != nil {
				fmt.Fprintf(&b, "Cause:             %v\n", r.Cause)
			}
			fmt.Fprintln(&b, "Transaction rolled back, no records were written.")
		}
	}
	fmt.Fprintf(&b, "Duration:          %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprint(&b, line)
	return b.String()
}
