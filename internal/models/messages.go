package models

import "time"

// Command types accepted on the command queue.
const (
	CommandCreateBatch       = "CreateBatch"
	CommandUpdateBatchStatus = "UpdateBatchStatus"
	CommandTransferBatch     = "TransferBatch"
	CommandDeactivateBatch   = "DeactivateBatch"
)

// BatchCommand is the envelope the worker consumes from the command queue.
// The oracle integration and other collaborators push these instead of
// calling the HTTP API directly. CommandID doubles as the idempotency key.
type BatchCommand struct {
	CommandID   string `json:"command_id" validate:"required,uuid4"`
	Type        string `json:"type" validate:"required,oneof=CreateBatch UpdateBatchStatus TransferBatch DeactivateBatch"`
	Principal   string `json:"principal" validate:"required,max=128"`
	BatchID     uint64 `json:"batch_id,omitempty"`
	Composition string `json:"composition,omitempty" validate:"max=256"`
	Owner       string `json:"owner,omitempty" validate:"max=128"`
	NewOwner    string `json:"new_owner,omitempty" validate:"max=128"`
	Stage       *int   `json:"stage,omitempty"`
	Metadata    string `json:"metadata,omitempty" validate:"max=256"`
}

// Event types published after a committed mutation.
const (
	EventBatchCreated       = "BatchCreated"
	EventBatchStatusUpdated = "BatchStatusUpdated"
	EventBatchTransferred   = "BatchTransferred"
	EventBatchDeactivated   = "BatchDeactivated"
)

// BatchEventMessage is the outbound notification for downstream systems
// (compliance verification, incentive processing). Sequence is nil for
// deactivation, which appends no audit record.
type BatchEventMessage struct {
	EventType string    `json:"event_type"`
	BatchID   uint64    `json:"batch_id"`
	Sequence  *int      `json:"sequence,omitempty"`
	Stage     string    `json:"stage"`
	Owner     string    `json:"owner"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  string    `json:"metadata,omitempty"`
}
