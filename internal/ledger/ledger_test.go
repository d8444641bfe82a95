package ledger

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const (
	admin    = Principal("chem-admin")
	plant    = Principal("acme-plant-7")
	owner1   = Principal("dist-west")
	owner2   = Principal("retail-east")
	oracle1  = Principal("feed-oracle")
	outsider = Principal("mallory")
)

// fakeClock hands out a controllable time so tests can pin timestamps.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

// memJournal records every committed change set and can be told to fail the
// next commit, for exercising the atomic-abort path.
type memJournal struct {
	changes  []ChangeSet
	failWith error
}

func (j *memJournal) Commit(_ context.Context, cs ChangeSet) error {
	if j.failWith != nil {
		return j.failWith
	}
	j.changes = append(j.changes, cs)
	return nil
}

// snapshot folds the recorded change-set stream into a Snapshot the way the
// boot-time loader folds the journal tables, verifying sequence contiguity
// along the way.
func (j *memJournal) snapshot(t *testing.T) Snapshot {
	t.Helper()

	snap := Snapshot{History: make(map[BatchID][]HistoryRecord)}
	batches := make(map[BatchID]Batch)
	for _, cs := range j.changes {
		if cs.Batch != nil {
			batches[cs.Batch.ID] = *cs.Batch
		}
		if cs.Record != nil {
			require.Equal(t, len(snap.History[cs.Batch.ID]), cs.Sequence,
				"journal stream must consume sequences contiguously")
			snap.History[cs.Batch.ID] = append(snap.History[cs.Batch.ID], *cs.Record)
		}
		snap.State = cs.State
	}

	ids := make([]BatchID, 0, len(batches))
	for id := range batches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, k int) bool { return ids[i] < ids[k] })
	for _, id := range ids {
		snap.Batches = append(snap.Batches, batches[id])
	}
	return snap
}

func newTestLedger(t *testing.T) (*Ledger, *fakeClock) {
	t.Helper()

	l, err := New(admin, nil)
	require.NoError(t, err)
	clock := newFakeClock()
	l.now = clock.Now
	return l, clock
}

func TestNewRejectsAbsentAdmin(t *testing.T) {
	_, err := New(Principal(""), nil)
	require.ErrorIs(t, err, ErrZeroAddress)
}

func TestNewAdminServesAsInitialOracle(t *testing.T) {
	l, _ := newTestLedger(t)
	require.Equal(t, admin, l.Admin())
	require.Equal(t, admin, l.Oracle())
	require.False(t, l.IsPaused())
	require.EqualValues(t, 0, l.BatchCounter())
}

// Scenario: a fresh ledger hands out id 1 and records the creation event at
// sequence 0.
func TestCreateBatch(t *testing.T) {
	l, clock := newTestLedger(t)
	ctx := context.Background()

	id, err := l.CreateBatch(ctx, plant, "X", owner1)
	require.NoError(t, err)
	require.Equal(t, BatchID(1), id)
	require.EqualValues(t, 1, l.BatchCounter())

	b, err := l.GetBatch(1)
	require.NoError(t, err)
	require.Equal(t, BatchID(1), b.ID)
	require.Equal(t, plant, b.Manufacturer)
	require.Equal(t, "X", b.Composition)
	require.Equal(t, owner1, b.CurrentOwner)
	require.Equal(t, StageCreated, b.CurrentStage)
	require.True(t, b.IsActive)
	require.Equal(t, clock.Now(), b.OriginTimestamp)
	require.Equal(t, clock.Now(), b.LastUpdate)

	rec, err := l.GetBatchHistory(1, 0)
	require.NoError(t, err)
	require.Equal(t, StageCreated, rec.Stage)
	require.Equal(t, owner1, rec.Owner)
	require.Equal(t, "Batch created", rec.Metadata)
	require.Equal(t, clock.Now(), rec.Timestamp)
}

func TestCreateBatchAssignsSequentialIDs(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	for want := BatchID(1); want <= 5; want++ {
		id, err := l.CreateBatch(ctx, plant, "lot", owner1)
		require.NoError(t, err)
		require.Equal(t, want, id)
	}
	require.EqualValues(t, 5, l.BatchCounter())
}

func TestCreateBatchRejectsAbsentOwner(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.CreateBatch(context.Background(), plant, "X", Principal(""))
	require.ErrorIs(t, err, ErrZeroAddress)
	require.EqualValues(t, 0, l.BatchCounter())
}

func TestIDsNeverReusedAcrossFailedAttempts(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	id, err := l.CreateBatch(ctx, plant, "a", owner1)
	require.NoError(t, err)
	require.Equal(t, BatchID(1), id)

	_, err = l.SetPaused(ctx, admin, true)
	require.NoError(t, err)
	_, err = l.CreateBatch(ctx, plant, "b", owner1)
	require.ErrorIs(t, err, ErrPaused)
	_, err = l.CreateBatch(ctx, plant, "c", Principal(""))
	require.ErrorIs(t, err, ErrPaused)

	_, err = l.SetPaused(ctx, admin, false)
	require.NoError(t, err)
	id, err = l.CreateBatch(ctx, plant, "d", owner1)
	require.NoError(t, err)
	require.Equal(t, BatchID(2), id, "failed attempts must not consume ids")
}

// Scenario B from the ops runbook: the owner advances the stage and the
// update lands at history index 1 with the owner of record unchanged.
func TestUpdateBatchStatus(t *testing.T) {
	l, clock := newTestLedger(t)
	ctx := context.Background()

	_, err := l.CreateBatch(ctx, plant, "X", owner1)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	seq, err := l.UpdateBatchStatus(ctx, owner1, 1, StageProcessed, "done")
	require.NoError(t, err)
	require.Equal(t, 1, seq)

	b, err := l.GetBatch(1)
	require.NoError(t, err)
	require.Equal(t, StageProcessed, b.CurrentStage)
	require.Equal(t, owner1, b.CurrentOwner)
	require.True(t, b.IsActive)
	require.Equal(t, clock.Now(), b.LastUpdate)

	rec, err := l.GetBatchHistory(1, 1)
	require.NoError(t, err)
	require.Equal(t, StageProcessed, rec.Stage)
	require.Equal(t, owner1, rec.Owner)
	require.Equal(t, "done", rec.Metadata)
}

func TestUpdateBatchStatusRejectsUnknownStage(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.CreateBatch(ctx, plant, "X", owner1)
	require.NoError(t, err)

	for _, stage := range []Stage{-1, 5, 42} {
		_, err := l.UpdateBatchStatus(ctx, owner1, 1, stage, "x")
		require.ErrorIs(t, err, ErrInvalidStage)
	}

	// Stage validity is a shape check: it wins over the pause switch and
	// over caller identity.
	_, err = l.SetPaused(ctx, admin, true)
	require.NoError(t, err)
	_, err = l.UpdateBatchStatus(ctx, outsider, 1, 9, "x")
	require.ErrorIs(t, err, ErrInvalidStage)
}

func TestUpdateBatchStatusAuthorization(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.CreateBatch(ctx, plant, "X", owner1)
	require.NoError(t, err)

	// Scenario D: a caller that is neither owner nor oracle is refused and
	// the batch is untouched.
	_, err = l.UpdateBatchStatus(ctx, outsider, 1, StageShipped, "x")
	require.ErrorIs(t, err, ErrNotAuthorized)

	b, err := l.GetBatch(1)
	require.NoError(t, err)
	require.Equal(t, StageCreated, b.CurrentStage)
	_, err = l.GetBatchHistory(1, 1)
	require.ErrorIs(t, err, ErrInvalidBatch)

	// The manufacturer holds no standing capability either once ownership
	// lies elsewhere.
	_, err = l.UpdateBatchStatus(ctx, plant, 1, StageShipped, "x")
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestUpdateBatchStatusUnknownBatch(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.UpdateBatchStatus(context.Background(), owner1, 7, StageShipped, "x")
	require.ErrorIs(t, err, ErrInvalidBatch)
}

func TestStateMachineImposesNoForwardOrdering(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.CreateBatch(ctx, plant, "X", owner1)
	require.NoError(t, err)

	// Delivered straight from created, then back to processed: any valid
	// stage is reachable from any non-terminal stage in one step.
	_, err = l.UpdateBatchStatus(ctx, owner1, 1, StageDelivered, "skip ahead")
	require.NoError(t, err)
	_, err = l.UpdateBatchStatus(ctx, owner1, 1, StageProcessed, "walk back")
	require.NoError(t, err)

	b, err := l.GetBatch(1)
	require.NoError(t, err)
	require.Equal(t, StageProcessed, b.CurrentStage)
}

// Scenario C: transfer appends its own record instead of overwriting the
// previous update.
func TestTransferBatch(t *testing.T) {
	l, clock := newTestLedger(t)
	ctx := context.Background()

	_, err := l.CreateBatch(ctx, plant, "X", owner1)
	require.NoError(t, err)
	_, err = l.UpdateBatchStatus(ctx, owner1, 1, StageProcessed, "done")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	seq, err := l.TransferBatch(ctx, owner1, 1, owner2)
	require.NoError(t, err)
	require.Equal(t, 2, seq)

	b, err := l.GetBatch(1)
	require.NoError(t, err)
	require.Equal(t, owner2, b.CurrentOwner)
	require.Equal(t, StageProcessed, b.CurrentStage, "transfer must not touch the stage")
	require.Equal(t, clock.Now(), b.LastUpdate)

	rec, err := l.GetBatchHistory(1, 2)
	require.NoError(t, err)
	require.Equal(t, StageProcessed, rec.Stage)
	require.Equal(t, owner2, rec.Owner)
	require.Equal(t, "Ownership transferred", rec.Metadata)

	// Index 1 still holds the earlier update.
	rec, err = l.GetBatchHistory(1, 1)
	require.NoError(t, err)
	require.Equal(t, "done", rec.Metadata)
	require.Equal(t, owner1, rec.Owner)
}

func TestTransferBatchGuards(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.CreateBatch(ctx, plant, "X", owner1)
	require.NoError(t, err)
	require.NoError(t, l.SetOracle(ctx, admin, oracle1))

	_, err = l.TransferBatch(ctx, owner1, 1, Principal(""))
	require.ErrorIs(t, err, ErrZeroAddress)

	_, err = l.TransferBatch(ctx, owner1, 9, owner2)
	require.ErrorIs(t, err, ErrInvalidBatch)

	// The oracle may push stage updates but never move ownership.
	_, err = l.TransferBatch(ctx, oracle1, 1, owner2)
	require.ErrorIs(t, err, ErrNotAuthorized)
	_, err = l.TransferBatch(ctx, admin, 1, owner2)
	require.ErrorIs(t, err, ErrNotAuthorized)

	b, err := l.GetBatch(1)
	require.NoError(t, err)
	require.Equal(t, owner1, b.CurrentOwner)
}

// Scenario E: a designated oracle can reject a batch, and rejection is
// terminal.
func TestOracleRejectionIsTerminal(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.CreateBatch(ctx, plant, "X", owner1)
	require.NoError(t, err)
	require.NoError(t, l.SetOracle(ctx, admin, oracle1))

	seq, err := l.UpdateBatchStatus(ctx, oracle1, 1, StageRejected, "bad")
	require.NoError(t, err)
	require.Equal(t, 1, seq)

	b, err := l.GetBatch(1)
	require.NoError(t, err)
	require.False(t, b.IsActive)
	require.Equal(t, StageRejected, b.CurrentStage)

	_, err = l.UpdateBatchStatus(ctx, owner1, 1, StageProcessed, "retry")
	require.ErrorIs(t, err, ErrInvalidBatch)
	_, err = l.TransferBatch(ctx, owner1, 1, owner2)
	require.ErrorIs(t, err, ErrInvalidBatch)
	require.ErrorIs(t, l.DeactivateBatch(ctx, admin, 1), ErrInvalidBatch)

	// The trail is still fully readable after termination.
	recs, err := l.BatchHistory(1)
	require.NoError(t, err)
	require.Len(t, recs, 2)
}

func TestDeactivateBatch(t *testing.T) {
	l, clock := newTestLedger(t)
	ctx := context.Background()

	_, err := l.CreateBatch(ctx, plant, "X", owner1)
	require.NoError(t, err)

	require.ErrorIs(t, l.DeactivateBatch(ctx, owner1, 1), ErrNotAuthorized)
	require.ErrorIs(t, l.DeactivateBatch(ctx, admin, 9), ErrInvalidBatch)

	clock.Advance(time.Minute)
	require.NoError(t, l.DeactivateBatch(ctx, admin, 1))

	b, err := l.GetBatch(1)
	require.NoError(t, err)
	require.False(t, b.IsActive)
	require.Equal(t, StageCreated, b.CurrentStage)
	require.Equal(t, clock.Now(), b.LastUpdate)

	// Deactivation appends nothing: only the creation record exists.
	recs, err := l.BatchHistory(1)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	// Irreversible: the batch never mutates again.
	require.ErrorIs(t, l.DeactivateBatch(ctx, admin, 1), ErrInvalidBatch)
	_, err = l.UpdateBatchStatus(ctx, owner1, 1, StageShipped, "x")
	require.ErrorIs(t, err, ErrInvalidBatch)
	_, err = l.TransferBatch(ctx, owner1, 1, owner2)
	require.ErrorIs(t, err, ErrInvalidBatch)
}

func TestPauseBlocksMutationsButNotDeactivation(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.CreateBatch(ctx, plant, "X", owner1)
	require.NoError(t, err)

	flag, err := l.SetPaused(ctx, admin, true)
	require.NoError(t, err)
	require.True(t, flag)
	require.True(t, l.IsPaused())

	_, err = l.CreateBatch(ctx, plant, "Y", owner1)
	require.ErrorIs(t, err, ErrPaused)
	_, err = l.UpdateBatchStatus(ctx, owner1, 1, StageShipped, "x")
	require.ErrorIs(t, err, ErrPaused)
	_, err = l.TransferBatch(ctx, owner1, 1, owner2)
	require.ErrorIs(t, err, ErrPaused)

	// The pause switch wins over existence: a probe for an unknown batch
	// learns nothing while paused.
	_, err = l.UpdateBatchStatus(ctx, owner1, 99, StageShipped, "x")
	require.ErrorIs(t, err, ErrPaused)
	_, err = l.TransferBatch(ctx, owner1, 99, owner2)
	require.ErrorIs(t, err, ErrPaused)

	// An admin can still halt a batch mid-outage.
	require.NoError(t, l.DeactivateBatch(ctx, admin, 1))

	flag, err = l.SetPaused(ctx, admin, false)
	require.NoError(t, err)
	require.False(t, flag)

	id, err := l.CreateBatch(ctx, plant, "Y", owner1)
	require.NoError(t, err)
	require.Equal(t, BatchID(2), id)
}

func TestSetPausedRequiresAdmin(t *testing.T) {
	l, _ := newTestLedger(t)

	flag, err := l.SetPaused(context.Background(), outsider, true)
	require.ErrorIs(t, err, ErrNotAuthorized)
	require.False(t, flag)
	require.False(t, l.IsPaused())
}

func TestTransferAdmin(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	require.ErrorIs(t, l.TransferAdmin(ctx, outsider, outsider), ErrNotAuthorized)
	require.ErrorIs(t, l.TransferAdmin(ctx, admin, Principal("")), ErrZeroAddress)

	next := Principal("chem-admin-2")
	require.NoError(t, l.TransferAdmin(ctx, admin, next))
	require.Equal(t, next, l.Admin())

	// The old admin has no residual capability.
	_, err := l.SetPaused(ctx, admin, true)
	require.ErrorIs(t, err, ErrNotAuthorized)
	_, err = l.SetPaused(ctx, next, true)
	require.NoError(t, err)
}

func TestSetOracle(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	require.ErrorIs(t, l.SetOracle(ctx, outsider, oracle1), ErrNotAuthorized)
	require.ErrorIs(t, l.SetOracle(ctx, admin, Principal("")), ErrZeroAddress)

	require.NoError(t, l.SetOracle(ctx, admin, oracle1))
	require.Equal(t, oracle1, l.Oracle())

	// Designating a dedicated oracle strips the admin's initial feed role.
	_, err := l.CreateBatch(ctx, plant, "X", owner1)
	require.NoError(t, err)
	_, err = l.UpdateBatchStatus(ctx, admin, 1, StageProcessed, "x")
	require.ErrorIs(t, err, ErrNotAuthorized)
	_, err = l.UpdateBatchStatus(ctx, oracle1, 1, StageProcessed, "x")
	require.NoError(t, err)
}

// Regression: k updates must land on k distinct indices, all independently
// retrievable afterwards. An earlier prototype collapsed every
// post-creation event onto index 1, losing all but the latest update.
func TestHistoryIndicesSurviveRepeatedUpdates(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.CreateBatch(ctx, plant, "X", owner1)
	require.NoError(t, err)

	const k = 7
	stages := []Stage{StageProcessed, StageShipped, StageDelivered}
	for i := 1; i <= k; i++ {
		_, err := l.UpdateBatchStatus(ctx, owner1, 1, stages[i%len(stages)], fmt.Sprintf("update %d", i))
		require.NoError(t, err)
	}

	recs, err := l.BatchHistory(1)
	require.NoError(t, err)
	require.Len(t, recs, k+1)

	for i := 1; i <= k; i++ {
		rec, err := l.GetBatchHistory(1, i)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("update %d", i), rec.Metadata)
	}

	_, err = l.GetBatchHistory(1, k+1)
	require.ErrorIs(t, err, ErrInvalidBatch)
	_, err = l.GetBatchHistory(1, -1)
	require.ErrorIs(t, err, ErrInvalidBatch)
}

func TestBatchHistoryUnknownBatch(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.BatchHistory(3)
	require.ErrorIs(t, err, ErrInvalidBatch)
	_, err = l.GetBatchHistory(3, 0)
	require.ErrorIs(t, err, ErrInvalidBatch)
}

// A failing journal must abort the operation before any in-memory effect.
func TestJournalFailureLeavesNoTrace(t *testing.T) {
	journal := &memJournal{}
	l, err := New(admin, journal)
	require.NoError(t, err)
	clock := newFakeClock()
	l.now = clock.Now
	ctx := context.Background()

	journal.failWith = errors.New("connection reset")
	_, err = l.CreateBatch(ctx, plant, "X", owner1)
	require.Error(t, err)
	require.Equal(t, 0, CodeOf(err), "infrastructure failures carry no domain code")
	require.EqualValues(t, 0, l.BatchCounter())
	_, err = l.GetBatch(1)
	require.ErrorIs(t, err, ErrInvalidBatch)

	journal.failWith = nil
	id, err := l.CreateBatch(ctx, plant, "X", owner1)
	require.NoError(t, err)
	require.Equal(t, BatchID(1), id)

	journal.failWith = errors.New("connection reset")
	_, err = l.UpdateBatchStatus(ctx, owner1, 1, StageShipped, "x")
	require.Error(t, err)

	b, err := l.GetBatch(1)
	require.NoError(t, err)
	require.Equal(t, StageCreated, b.CurrentStage, "aborted update must not apply")
	recs, err := l.BatchHistory(1)
	require.NoError(t, err)
	require.Len(t, recs, 1, "aborted update must not append history")

	journal.failWith = errors.New("connection reset")
	_, err = l.SetPaused(ctx, admin, true)
	require.Error(t, err)
	require.False(t, l.IsPaused())
}

// Folding the journal's change-set stream back into a ledger must reproduce
// the live one exactly; this is the boot-time restore path.
func TestRestoreRoundTrip(t *testing.T) {
	journal := &memJournal{}
	l, err := New(admin, journal)
	require.NoError(t, err)
	clock := newFakeClock()
	l.now = clock.Now
	ctx := context.Background()

	_, err = l.CreateBatch(ctx, plant, "solvent blend 12", owner1)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = l.CreateBatch(ctx, plant, "catalyst 9", owner2)
	require.NoError(t, err)
	require.NoError(t, l.SetOracle(ctx, admin, oracle1))
	clock.Advance(time.Minute)
	_, err = l.UpdateBatchStatus(ctx, owner1, 1, StageProcessed, "qc passed")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = l.TransferBatch(ctx, owner1, 1, owner2)
	require.NoError(t, err)
	_, err = l.UpdateBatchStatus(ctx, oracle1, 2, StageRejected, "contaminated")
	require.NoError(t, err)
	require.NoError(t, l.DeactivateBatch(ctx, admin, 1))

	restored, err := Restore(journal.snapshot(t), journal)
	require.NoError(t, err)

	require.Equal(t, l.Admin(), restored.Admin())
	require.Equal(t, l.Oracle(), restored.Oracle())
	require.Equal(t, l.IsPaused(), restored.IsPaused())
	require.Equal(t, l.BatchCounter(), restored.BatchCounter())

	for id := BatchID(1); id <= 2; id++ {
		want, err := l.GetBatch(id)
		require.NoError(t, err)
		got, err := restored.GetBatch(id)
		require.NoError(t, err)
		require.Equal(t, want, got)

		wantRecs, err := l.BatchHistory(id)
		require.NoError(t, err)
		gotRecs, err := restored.BatchHistory(id)
		require.NoError(t, err)
		require.Equal(t, wantRecs, gotRecs)
	}

	// The restored ledger continues the id sequence instead of restarting.
	id, err := restored.CreateBatch(ctx, plant, "resin 4", owner1)
	require.NoError(t, err)
	require.Equal(t, BatchID(3), id)
}

func TestRestoreRejectsCorruptSnapshots(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	batch := func(id BatchID, stage Stage) Batch {
		return Batch{
			ID: id, Manufacturer: plant, Composition: "X",
			OriginTimestamp: now, CurrentOwner: owner1,
			CurrentStage: stage, LastUpdate: now, IsActive: true,
		}
	}
	creation := []HistoryRecord{{Stage: StageCreated, Owner: owner1, Timestamp: now, Metadata: "Batch created"}}

	cases := []struct {
		name string
		snap Snapshot
	}{
		{"missing admin", Snapshot{State: State{BatchCounter: 0}}},
		{"batch id zero", Snapshot{
			State:   State{Admin: admin, BatchCounter: 1},
			Batches: []Batch{batch(0, StageCreated)},
		}},
		{"batch beyond counter", Snapshot{
			State:   State{Admin: admin, BatchCounter: 1},
			Batches: []Batch{batch(2, StageCreated)},
		}},
		{"unknown stage", Snapshot{
			State:   State{Admin: admin, BatchCounter: 1},
			Batches: []Batch{batch(1, Stage(9))},
		}},
		{"duplicate batch", Snapshot{
			State:   State{Admin: admin, BatchCounter: 2},
			Batches: []Batch{batch(1, StageCreated), batch(1, StageCreated)},
		}},
		{"history without batch", Snapshot{
			State:   State{Admin: admin, BatchCounter: 1},
			Batches: []Batch{batch(1, StageCreated)},
			History: map[BatchID][]HistoryRecord{1: creation, 2: creation},
		}},
		{"batch without creation record", Snapshot{
			State:   State{Admin: admin, BatchCounter: 1},
			Batches: []Batch{batch(1, StageCreated)},
			History: map[BatchID][]HistoryRecord{},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Restore(tc.snap, nil)
			require.Error(t, err)
		})
	}
}
