package models

import "time"

const (
	SyncRunStatusCommitted  = "committed"
	SyncRunStatusRolledBack = "rolled_back"
)

// SyncRun is the audit row written after a real ledger sync attempt.
// It is stored outside the sync transaction so rolled back attempts stay visible.
type SyncRun struct {
	ID           uint      `gorm:"primary_key" json:"id"`
	RunId        string    `gorm:"size:36;uniqueIndex;not null" json:"run_id"`
	Period       string    `gorm:"size:20;index" json:"period"`
	Status       string    `gorm:"size:20;not null" json:"status"`
	Attempted    int       `json:"attempted"`
	Inserted     int       `json:"inserted"`
	Updated      int       `json:"updated"`
	MappingFails int       `json:"mapping_fails"`
	FailedRow    *int      `json:"failed_row"`
	FailedKey    string    `gorm:"size:64" json:"failed_key"`
	ErrorMessage string    `gorm:"type:text" json:"error_message"`
	StatsJSON    []byte    `gorm:"type:json" json:"stats"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (SyncRun) TableName() string {
	return "sales_register_sync_runs"
}
