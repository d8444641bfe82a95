package services

import (
	"context"
	"encoding/json"

	"example.com/chemtrack/services/ledger/internal/cache"
	"example.com/chemtrack/services/ledger/internal/ledger"
	"example.com/chemtrack/services/ledger/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ProcessCommandMessage handles one command from the queue. Malformed or
// invalid envelopes are dropped with a log entry (redelivering a poison
// message cannot fix it); domain rejections propagate so the bus processor
// can settle the message per the ledger's error contract.
func (s *LedgerService) ProcessCommandMessage(ctx context.Context, body []byte) error {
	var cmd models.BatchCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		log.Error().Err(err).Msg("Dropping malformed command message")
		if s.metrics != nil {
			s.metrics.IncrementCounter("commands.malformed")
		}
		return nil
	}

	if err := s.validate.Struct(&cmd); err != nil {
		log.Error().Err(err).Str("command_id", cmd.CommandID).Str("type", cmd.Type).
			Msg("Dropping invalid command message")
		if s.metrics != nil {
			s.metrics.IncrementCounter("commands.invalid")
		}
		return nil
	}

	// Claim the command id before executing so a redelivered duplicate is
	// skipped instead of re-applied.
	dedupeKey := cache.CommandDedupeKey(cmd.CommandID)
	if s.cache != nil {
		ok, err := s.cache.AcquireOnce(ctx, dedupeKey, s.dedupeTTL)
		if err != nil {
			return errors.Wrap(err, "command dedupe check failed")
		}
		if !ok {
			log.Info().Str("command_id", cmd.CommandID).Msg("Skipping duplicate command")
			if s.metrics != nil {
				s.metrics.IncrementCounter("commands.duplicate")
			}
			return nil
		}
	}

	err := s.executeCommand(ctx, cmd)
	if err != nil && s.cache != nil {
		// A command that did not commit must stay claimable: the pause
		// breaker clears and the message comes back around.
		var rejection *ledger.Error
		if !errors.As(err, &rejection) || rejection.Transient() {
			if delErr := s.cache.Delete(ctx, dedupeKey); delErr != nil {
				log.Warn().Err(delErr).Str("command_id", cmd.CommandID).Msg("Failed to release dedupe claim")
			}
		}
	}
	return err
}

func (s *LedgerService) executeCommand(ctx context.Context, cmd models.BatchCommand) error {
	caller := ledger.Principal(cmd.Principal)

	switch cmd.Type {
	case models.CommandCreateBatch:
		id, err := s.CreateBatch(ctx, caller, cmd.Composition, ledger.Principal(cmd.Owner))
		if err != nil {
			return err
		}
		log.Info().Str("command_id", cmd.CommandID).Uint64("batch_id", uint64(id)).Msg("Batch created from command")
		return nil

	case models.CommandUpdateBatchStatus:
		if cmd.Stage == nil {
			return ledger.ErrInvalidStage
		}
		return s.UpdateBatchStatus(ctx, caller, ledger.BatchID(cmd.BatchID), ledger.Stage(*cmd.Stage), cmd.Metadata)

	case models.CommandTransferBatch:
		return s.TransferBatch(ctx, caller, ledger.BatchID(cmd.BatchID), ledger.Principal(cmd.NewOwner))

	case models.CommandDeactivateBatch:
		return s.DeactivateBatch(ctx, caller, ledger.BatchID(cmd.BatchID))

	default:
		// Unreachable behind struct validation; kept for direct callers.
		log.Error().Str("type", cmd.Type).Msg("Dropping command of unknown type")
		return nil
	}
}

// ReindexUnindexedEvents sweeps audit records whose search projection never
// completed and retries them. Runs from the worker's cron as the fallback
// for post-commit indexing failures.
func (s *LedgerService) ReindexUnindexedEvents(ctx context.Context, limit int) error {
	if s.store == nil || s.search == nil {
		return nil
	}

	rows, err := s.store.UnindexedEvents(ctx, limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	log.Info().Int("count", len(rows)).Msg("Reindexing audit records")
	for _, row := range rows {
		rec := ledger.HistoryRecord{
			Stage:     ledger.Stage(row.Stage),
			Owner:     ledger.Principal(row.Owner),
			Timestamp: row.Timestamp,
			Metadata:  row.Metadata,
		}
		if err := s.search.IndexBatchEvent(ctx, row.BatchID, row.Sequence, rec); err != nil {
			log.Warn().Err(err).Uint64("batch_id", row.BatchID).Int("sequence", row.Sequence).
				Msg("Reindex attempt failed")
			continue
		}
		if err := s.store.MarkEventIndexed(ctx, row.BatchID, row.Sequence); err != nil {
			log.Warn().Err(err).Uint64("batch_id", row.BatchID).Int("sequence", row.Sequence).
				Msg("Failed to mark audit record as indexed")
		}
	}
	return nil
}
