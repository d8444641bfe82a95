package repositories

import (
	"context"

	"example.com/chemtrack/services/ledger/internal/ledger"
	"example.com/chemtrack/services/ledger/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormJournal persists ledger change sets to PostgreSQL. It implements
// ledger.Journal: one database transaction per change set, so the batch row,
// the audit record and the scalar state commit together or not at all.
type GormJournal struct {
	db *gorm.DB
}

// NewGormJournal creates a journal on top of db
func NewGormJournal(db *gorm.DB) *GormJournal {
	return &GormJournal{db: db}
}

// Commit writes the full change set in a single transaction. The unique
// (batch_id, sequence) index on batch_events rejects any attempt to write a
// sequence twice, so a corrupted in-memory counter can never silently
// overwrite the audit trail.
func (j *GormJournal) Commit(ctx context.Context, cs ledger.ChangeSet) error {
	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if cs.Batch != nil {
			row := batchToRow(*cs.Batch)
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
				return errors.Wrap(err, "failed to upsert batch row")
			}
		}

		if cs.Record != nil {
			ev := models.BatchEventRow{
				BatchID:   uint64(cs.Batch.ID),
				Sequence:  cs.Sequence,
				Stage:     int(cs.Record.Stage),
				Owner:     cs.Record.Owner.String(),
				Timestamp: cs.Record.Timestamp,
				Metadata:  cs.Record.Metadata,
			}
			if err := tx.Create(&ev).Error; err != nil {
				return errors.Wrap(err, "failed to append audit record")
			}
		}

		state := models.LedgerStateRow{
			ID:           models.LedgerStateID,
			Admin:        cs.State.Admin.String(),
			Oracle:       cs.State.Oracle.String(),
			Paused:       cs.State.Paused,
			BatchCounter: cs.State.BatchCounter,
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&state).Error; err != nil {
			return errors.Wrap(err, "failed to save ledger state")
		}

		log.Debug().
			Str("op", string(cs.Op)).
			Int("sequence", cs.Sequence).
			Msg("Change set committed")
		return nil
	})
}

// LoadSnapshot reads the full persisted ledger for boot-time restore. The
// second return value is false when the database carries no ledger state
// yet, i.e. this is the first bring-up.
func (j *GormJournal) LoadSnapshot(ctx context.Context) (ledger.Snapshot, bool, error) {
	var state models.LedgerStateRow
	err := j.db.WithContext(ctx).First(&state, "id = ?", models.LedgerStateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.Snapshot{}, false, nil
	}
	if err != nil {
		return ledger.Snapshot{}, false, errors.Wrap(err, "failed to load ledger state")
	}

	var batchRows []models.BatchRow
	if err := j.db.WithContext(ctx).Order("id ASC").Find(&batchRows).Error; err != nil {
		return ledger.Snapshot{}, false, errors.Wrap(err, "failed to load batches")
	}

	var eventRows []models.BatchEventRow
	if err := j.db.WithContext(ctx).Order("batch_id ASC, sequence ASC").Find(&eventRows).Error; err != nil {
		return ledger.Snapshot{}, false, errors.Wrap(err, "failed to load audit records")
	}

	snap := ledger.Snapshot{
		State: ledger.State{
			Admin:        ledger.Principal(state.Admin),
			Oracle:       ledger.Principal(state.Oracle),
			Paused:       state.Paused,
			BatchCounter: state.BatchCounter,
		},
		Batches: make([]ledger.Batch, 0, len(batchRows)),
		History: make(map[ledger.BatchID][]ledger.HistoryRecord),
	}
	for _, row := range batchRows {
		snap.Batches = append(snap.Batches, rowToBatch(row))
	}
	for _, ev := range eventRows {
		id := ledger.BatchID(ev.BatchID)
		if ev.Sequence != len(snap.History[id]) {
			return ledger.Snapshot{}, false, errors.Errorf(
				"audit trail for batch %d has a gap at sequence %d", ev.BatchID, ev.Sequence)
		}
		snap.History[id] = append(snap.History[id], ledger.HistoryRecord{
			Stage:     ledger.Stage(ev.Stage),
			Owner:     ledger.Principal(ev.Owner),
			Timestamp: ev.Timestamp,
			Metadata:  ev.Metadata,
		})
	}

	return snap, true, nil
}

// UnindexedEvents returns audit records not yet projected into
// Elasticsearch, oldest first.
func (j *GormJournal) UnindexedEvents(ctx context.Context, limit int) ([]models.BatchEventRow, error) {
	var rows []models.BatchEventRow
	err := j.db.WithContext(ctx).
		Where("indexed = ?", false).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to load unindexed audit records")
	}
	return rows, nil
}

// MarkEventIndexed flags the (batchID, sequence) record as projected.
func (j *GormJournal) MarkEventIndexed(ctx context.Context, batchID uint64, sequence int) error {
	err := j.db.WithContext(ctx).
		Model(&models.BatchEventRow{}).
		Where("batch_id = ? AND sequence = ?", batchID, sequence).
		Update("indexed", true).Error
	return errors.Wrap(err, "failed to mark audit record as indexed")
}

func batchToRow(b ledger.Batch) models.BatchRow {
	return models.BatchRow{
		ID:              uint64(b.ID),
		Manufacturer:    b.Manufacturer.String(),
		Composition:     b.Composition,
		OriginTimestamp: b.OriginTimestamp,
		CurrentOwner:    b.CurrentOwner.String(),
		CurrentStage:    int(b.CurrentStage),
		LastUpdate:      b.LastUpdate,
		IsActive:        b.IsActive,
	}
}

func rowToBatch(row models.BatchRow) ledger.Batch {
	return ledger.Batch{
		ID:              ledger.BatchID(row.ID),
		Manufacturer:    ledger.Principal(row.Manufacturer),
		Composition:     row.Composition,
		OriginTimestamp: row.OriginTimestamp,
		CurrentOwner:    ledger.Principal(row.CurrentOwner),
		CurrentStage:    ledger.Stage(row.CurrentStage),
		LastUpdate:      row.LastUpdate,
		IsActive:        row.IsActive,
	}
}
