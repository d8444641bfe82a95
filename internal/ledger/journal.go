package ledger

import "context"

// Op identifies the mutating operation that produced a change set.
type Op string

const (
	OpCreateBatch     Op = "CreateBatch"
	OpUpdateStatus    Op = "UpdateBatchStatus"
	OpTransferBatch   Op = "TransferBatch"
	OpDeactivateBatch Op = "DeactivateBatch"
	OpTransferAdmin   Op = "TransferAdmin"
	OpSetOracle       Op = "SetOracle"
	OpSetPaused       Op = "SetPaused"
)

// State is the scalar half of the persisted ledger: the two privileged
// identities, the circuit breaker and the batch id counter.
type State struct {
	Admin        Principal `json:"admin"`
	Oracle       Principal `json:"oracle"`
	Paused       bool      `json:"paused"`
	BatchCounter uint64    `json:"batch_counter"`
}

// ChangeSet is the complete effect of one accepted mutating operation: the
// batch after the mutation (nil for configuration-only operations), the
// history record the operation appended (nil when it appends none) together
// with the sequence that record consumed, and the scalar state afterwards.
type ChangeSet struct {
	Op       Op
	Batch    *Batch
	Sequence int // -1 when Record is nil
	Record   *HistoryRecord
	State    State
}

// Journal persists accepted change sets. Commit must be atomic: either the
// whole change set becomes durable or none of it does. The ledger applies a
// change set to memory only after Commit returns nil, so a failing journal
// leaves both the durable and the in-memory state untouched.
type Journal interface {
	Commit(ctx context.Context, cs ChangeSet) error
}

// Snapshot carries everything needed to rebuild a ledger from the journal's
// backing store at boot.
type Snapshot struct {
	State   State
	Batches []Batch
	History map[BatchID][]HistoryRecord
}
