package ledger

import "time"

// BatchID identifies a tracked batch. Ids are allocated sequentially
// starting at 1 and are never reused or skipped, even across failed
// creation attempts.
type BatchID uint64

// Batch is the current state of one tracked production batch.
// Manufacturer, Composition and OriginTimestamp are fixed at creation;
// everything else changes only through ledger operations.
type Batch struct {
	ID              BatchID   `json:"batch_id"`
	Manufacturer    Principal `json:"manufacturer"`
	Composition     string    `json:"composition"`
	OriginTimestamp time.Time `json:"origin_timestamp"`
	CurrentOwner    Principal `json:"current_owner"`
	CurrentStage    Stage     `json:"current_stage"`
	LastUpdate      time.Time `json:"last_update"`
	IsActive        bool      `json:"is_active"`
}
