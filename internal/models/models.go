package models

import (
	"time"

	"gorm.io/gorm"
)

// BatchRow is the persisted current state of one batch. The row id IS the
// ledger-allocated batch id; ids are assigned by the ledger counter, never
// by the database.
type BatchRow struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Manufacturer    string    `gorm:"not null" json:"manufacturer"`
	Composition     string    `gorm:"not null" json:"composition"`
	OriginTimestamp time.Time `gorm:"not null" json:"origin_timestamp"`
	CurrentOwner    string    `gorm:"not null;index" json:"current_owner"`
	CurrentStage    int       `gorm:"not null" json:"current_stage"`
	LastUpdate      time.Time `gorm:"not null" json:"last_update"`
	IsActive        bool      `gorm:"not null" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name
func (BatchRow) TableName() string {
	return "batches"
}

// BatchEventRow is one audit-trail record. The unique index on
// (batch_id, sequence) makes the append-only invariant structural: a second
// write to the same sequence fails at the database, it can never overwrite.
// Indexed flips to true once the record has reached Elasticsearch.
type BatchEventRow struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	BatchID   uint64    `gorm:"not null;uniqueIndex:idx_batch_events_batch_sequence,priority:1" json:"batch_id"`
	Sequence  int       `gorm:"not null;uniqueIndex:idx_batch_events_batch_sequence,priority:2" json:"sequence"`
	Stage     int       `gorm:"not null" json:"stage"`
	Owner     string    `gorm:"not null" json:"owner"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
	Metadata  string    `json:"metadata"`
	Indexed   bool      `gorm:"not null;default:false;index" json:"indexed"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName overrides the table name
func (BatchEventRow) TableName() string {
	return "batch_events"
}

// LedgerStateID is the fixed primary key of the singleton state row.
const LedgerStateID = 1

// LedgerStateRow is the scalar half of the persisted ledger: the two
// privileged identities, the pause flag and the batch counter. Exactly one
// row (id = LedgerStateID) ever exists.
type LedgerStateRow struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Admin        string    `gorm:"not null" json:"admin"`
	Oracle       string    `json:"oracle"`
	Paused       bool      `gorm:"not null" json:"paused"`
	BatchCounter uint64    `gorm:"not null" json:"batch_counter"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name
func (LedgerStateRow) TableName() string {
	return "ledger_state"
}

// SetupModels runs the database migrations
func SetupModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&BatchRow{},
		&BatchEventRow{},
		&LedgerStateRow{},
	)
}
