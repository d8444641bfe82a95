package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Metadata the ledger writes on the records it appends itself.
const (
	creationMetadata = "Batch created"
	transferMetadata = "Ownership transferred"
)

// Ledger is the batch registry and its append-only audit trail behind the
// access guard. Every operation runs as one atomic unit behind a single
// mutex: guard checks first, then the journal commit, then the in-memory
// apply. A failed operation leaves no trace anywhere.
type Ledger struct {
	mu      sync.Mutex
	guard   *AccessGuard
	batches map[BatchID]Batch
	history *historyLog
	counter uint64
	journal Journal
	now     func() time.Time
}

// New creates an empty ledger governed by admin. A nil journal keeps the
// ledger volatile; state then lives only in memory.
func New(admin Principal, journal Journal) (*Ledger, error) {
	if admin.IsZero() {
		return nil, ErrZeroAddress
	}
	return &Ledger{
		guard:   NewAccessGuard(admin),
		batches: make(map[BatchID]Batch),
		history: newHistoryLog(),
		journal: journal,
		now:     time.Now,
	}, nil
}

// Restore rebuilds a ledger from a snapshot loaded out of the journal's
// backing store. The snapshot is validated against the ledger's structural
// invariants; a snapshot that violates them is corrupt and is refused
// rather than repaired.
func Restore(snap Snapshot, journal Journal) (*Ledger, error) {
	if snap.State.Admin.IsZero() {
		return nil, errors.New("restore: snapshot has no admin principal")
	}

	l := &Ledger{
		guard: &AccessGuard{
			admin:  snap.State.Admin,
			oracle: snap.State.Oracle,
			paused: snap.State.Paused,
		},
		batches: make(map[BatchID]Batch, len(snap.Batches)),
		history: newHistoryLog(),
		counter: snap.State.BatchCounter,
		journal: journal,
		now:     time.Now,
	}

	for _, b := range snap.Batches {
		if b.ID == 0 || uint64(b.ID) > l.counter {
			return nil, errors.Errorf("restore: batch %d outside allocated id range 1..%d", b.ID, l.counter)
		}
		if !b.CurrentStage.Valid() {
			return nil, errors.Errorf("restore: batch %d carries unknown stage %d", b.ID, b.CurrentStage)
		}
		if _, dup := l.batches[b.ID]; dup {
			return nil, errors.Errorf("restore: duplicate batch %d", b.ID)
		}
		l.batches[b.ID] = b
	}

	for id, recs := range snap.History {
		if _, ok := l.batches[id]; !ok {
			return nil, errors.Errorf("restore: history for unknown batch %d", id)
		}
		l.history.records[id] = append([]HistoryRecord(nil), recs...)
	}

	for id := range l.batches {
		if l.history.nextIndex(id) == 0 {
			return nil, errors.Errorf("restore: batch %d has no creation record", id)
		}
	}

	return l, nil
}

// TransferAdmin hands the admin capability to newAdmin. Admin only; the
// absent identity is rejected.
func (l *Ledger) TransferAdmin(ctx context.Context, caller, newAdmin Principal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.guard.IsAdmin(caller) {
		return ErrNotAuthorized
	}
	if newAdmin.IsZero() {
		return ErrZeroAddress
	}

	next := l.state()
	next.Admin = newAdmin
	if err := l.commit(ctx, ChangeSet{Op: OpTransferAdmin, Sequence: -1, State: next}); err != nil {
		return err
	}

	l.guard.setAdmin(newAdmin)
	return nil
}

// SetOracle designates the identity authorized to push stage updates for
// off-chain data feeds. Admin only; the absent identity is rejected.
func (l *Ledger) SetOracle(ctx context.Context, caller, newOracle Principal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.guard.IsAdmin(caller) {
		return ErrNotAuthorized
	}
	if newOracle.IsZero() {
		return ErrZeroAddress
	}

	next := l.state()
	next.Oracle = newOracle
	if err := l.commit(ctx, ChangeSet{Op: OpSetOracle, Sequence: -1, State: next}); err != nil {
		return err
	}

	l.guard.setOracle(newOracle)
	return nil
}

// SetPaused engages or releases the circuit breaker and returns the new
// flag. While paused every mutating batch operation except DeactivateBatch
// is rejected with ErrPaused.
func (l *Ledger) SetPaused(ctx context.Context, caller Principal, flag bool) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.guard.IsAdmin(caller) {
		return l.guard.Paused(), ErrNotAuthorized
	}

	next := l.state()
	next.Paused = flag
	if err := l.commit(ctx, ChangeSet{Op: OpSetPaused, Sequence: -1, State: next}); err != nil {
		return l.guard.Paused(), err
	}

	l.guard.setPaused(flag)
	return flag, nil
}

// CreateBatch registers a new batch owned by owner, with caller recorded as
// its manufacturer, and writes the sequence-0 creation record atomically
// with it. Returns the allocated id.
func (l *Ledger) CreateBatch(ctx context.Context, caller Principal, composition string, owner Principal) (BatchID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.guard.CanMutate() {
		return 0, ErrPaused
	}
	if owner.IsZero() {
		return 0, ErrZeroAddress
	}

	id := BatchID(l.counter + 1)
	if _, exists := l.batches[id]; exists {
		return 0, ErrAlreadyExists
	}

	now := l.now().UTC()
	batch := Batch{
		ID:              id,
		Manufacturer:    caller,
		Composition:     composition,
		OriginTimestamp: now,
		CurrentOwner:    owner,
		CurrentStage:    StageCreated,
		LastUpdate:      now,
		IsActive:        true,
	}
	rec := HistoryRecord{Stage: StageCreated, Owner: owner, Timestamp: now, Metadata: creationMetadata}
	seq := l.history.nextIndex(id)

	next := l.state()
	next.BatchCounter = l.counter + 1
	cs := ChangeSet{Op: OpCreateBatch, Batch: &batch, Sequence: seq, Record: &rec, State: next}
	if err := l.commit(ctx, cs); err != nil {
		return 0, err
	}

	l.batches[id] = batch
	l.history.append(id, rec)
	l.counter++
	return id, nil
}

// UpdateBatchStatus moves the batch to newStage and appends an audit record
// at the batch's next sequence; the consumed sequence is returned. Moving to
// StageRejected ends the batch's mutability. The owner of record is not
// changed by this operation. Authorized for the current owner and the
// oracle.
func (l *Ledger) UpdateBatchStatus(ctx context.Context, caller Principal, id BatchID, newStage Stage, metadata string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !newStage.Valid() {
		return 0, ErrInvalidStage
	}
	if !l.guard.CanMutate() {
		return 0, ErrPaused
	}
	batch, ok := l.batches[id]
	if !ok || !batch.IsActive {
		return 0, ErrInvalidBatch
	}
	if !l.guard.CanAuthorizeUpdate(caller, batch.CurrentOwner) {
		return 0, ErrNotAuthorized
	}

	now := l.now().UTC()
	batch.CurrentStage = newStage
	batch.LastUpdate = now
	batch.IsActive = newStage != StageRejected
	rec := HistoryRecord{Stage: newStage, Owner: batch.CurrentOwner, Timestamp: now, Metadata: metadata}
	seq := l.history.nextIndex(id)

	cs := ChangeSet{Op: OpUpdateStatus, Batch: &batch, Sequence: seq, Record: &rec, State: l.state()}
	if err := l.commit(ctx, cs); err != nil {
		return 0, err
	}

	l.batches[id] = batch
	l.history.append(id, rec)
	return seq, nil
}

// TransferBatch hands ownership of the batch to newOwner and appends an
// audit record carrying the unchanged stage; the consumed sequence is
// returned. Only the current owner may transfer; the oracle may not.
func (l *Ledger) TransferBatch(ctx context.Context, caller Principal, id BatchID, newOwner Principal) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.guard.CanMutate() {
		return 0, ErrPaused
	}
	if newOwner.IsZero() {
		return 0, ErrZeroAddress
	}
	batch, ok := l.batches[id]
	if !ok || !batch.IsActive {
		return 0, ErrInvalidBatch
	}
	if caller != batch.CurrentOwner {
		return 0, ErrNotAuthorized
	}

	now := l.now().UTC()
	batch.CurrentOwner = newOwner
	batch.LastUpdate = now
	rec := HistoryRecord{Stage: batch.CurrentStage, Owner: newOwner, Timestamp: now, Metadata: transferMetadata}
	seq := l.history.nextIndex(id)

	cs := ChangeSet{Op: OpTransferBatch, Batch: &batch, Sequence: seq, Record: &rec, State: l.state()}
	if err := l.commit(ctx, cs); err != nil {
		return 0, err
	}

	l.batches[id] = batch
	l.history.append(id, rec)
	return seq, nil
}

// DeactivateBatch irreversibly ends a batch's mutability. Admin only.
// Deactivation works even while the ledger is paused, so an admin can halt
// a batch mid-outage, and it appends no history record.
func (l *Ledger) DeactivateBatch(ctx context.Context, caller Principal, id BatchID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.guard.IsAdmin(caller) {
		return ErrNotAuthorized
	}
	batch, ok := l.batches[id]
	if !ok || !batch.IsActive {
		return ErrInvalidBatch
	}

	batch.IsActive = false
	batch.LastUpdate = l.now().UTC()

	cs := ChangeSet{Op: OpDeactivateBatch, Batch: &batch, Sequence: -1, State: l.state()}
	if err := l.commit(ctx, cs); err != nil {
		return err
	}

	l.batches[id] = batch
	return nil
}

// GetBatch returns the current state of the batch. Inactive batches remain
// readable; only unknown ids fail.
func (l *Ledger) GetBatch(id BatchID) (Batch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch, ok := l.batches[id]
	if !ok {
		return Batch{}, ErrInvalidBatch
	}
	return batch, nil
}

// GetBatchHistory returns the audit record stored at (id, index).
func (l *Ledger) GetBatchHistory(id BatchID, index int) (HistoryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.history.get(id, index)
}

// BatchHistory returns the batch's full audit trail, oldest first.
func (l *Ledger) BatchHistory(id BatchID) ([]HistoryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.batches[id]; !ok {
		return nil, ErrInvalidBatch
	}
	return l.history.all(id), nil
}

// BatchCounter returns the id most recently allocated; the next created
// batch receives BatchCounter()+1.
func (l *Ledger) BatchCounter() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.counter
}

// Admin returns the current admin identity.
func (l *Ledger) Admin() Principal {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.guard.Admin()
}

// Oracle returns the current oracle identity.
func (l *Ledger) Oracle() Principal {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.guard.Oracle()
}

// IsPaused reports whether the circuit breaker is engaged.
func (l *Ledger) IsPaused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.guard.Paused()
}

func (l *Ledger) state() State {
	return State{
		Admin:        l.guard.Admin(),
		Oracle:       l.guard.Oracle(),
		Paused:       l.guard.Paused(),
		BatchCounter: l.counter,
	}
}

func (l *Ledger) commit(ctx context.Context, cs ChangeSet) error {
	if l.journal == nil {
		return nil
	}
	if err := l.journal.Commit(ctx, cs); err != nil {
		return errors.Wrap(err, "journal commit")
	}
	return nil
}
