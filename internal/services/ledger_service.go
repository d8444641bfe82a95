package services

import (
	"context"
	"time"

	"example.com/chemtrack/services/ledger/internal/cache"
	"example.com/chemtrack/services/ledger/internal/ledger"
	"example.com/chemtrack/services/ledger/internal/metrics"
	"example.com/chemtrack/services/ledger/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const batchCacheTTL = 5 * time.Minute

// EventPublisher publishes committed-mutation events for downstream
// collaborators.
type EventPublisher interface {
	SendMessage(ctx context.Context, body interface{}) error
}

// EventIndex projects audit records into the search index and serves
// queries over them.
type EventIndex interface {
	IndexBatchEvent(ctx context.Context, batchID uint64, sequence int, rec ledger.HistoryRecord) error
	SearchBatchEvents(ctx context.Context, query map[string]interface{}) ([]map[string]interface{}, error)
}

// Cache is the best-effort read cache and command dedupe store.
type Cache interface {
	Get(ctx context.Context, key string, value interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	AcquireOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// EventStore exposes the journal's read side used by the reindex fallback.
type EventStore interface {
	UnindexedEvents(ctx context.Context, limit int) ([]models.BatchEventRow, error)
	MarkEventIndexed(ctx context.Context, batchID uint64, sequence int) error
}

// LedgerService wraps the core ledger with the surrounding infrastructure:
// cache invalidation, search projection, event publishing and metrics. The
// core alone decides whether an operation commits; everything here runs
// after the fact and is best-effort.
type LedgerService struct {
	core      *ledger.Ledger
	store     EventStore
	cache     Cache
	search    EventIndex
	publisher EventPublisher
	metrics   *metrics.Metrics
	validate  *validator.Validate
	dedupeTTL time.Duration
}

// NewLedgerService creates the service. store, cache, search and publisher
// may each be nil; the service then skips that concern.
func NewLedgerService(
	core *ledger.Ledger,
	store EventStore,
	c Cache,
	search EventIndex,
	publisher EventPublisher,
	m *metrics.Metrics,
	dedupeTTL time.Duration,
) *LedgerService {
	return &LedgerService{
		core:      core,
		store:     store,
		cache:     c,
		search:    search,
		publisher: publisher,
		metrics:   m,
		validate:  validator.New(),
		dedupeTTL: dedupeTTL,
	}
}

// CreateBatch registers a new batch and fans out the creation record.
func (s *LedgerService) CreateBatch(ctx context.Context, caller ledger.Principal, composition string, owner ledger.Principal) (ledger.BatchID, error) {
	start := time.Now()
	id, err := s.core.CreateBatch(ctx, caller, composition, owner)
	s.observe("create_batch", start, err)
	if err != nil {
		return 0, err
	}

	rec, recErr := s.core.GetBatchHistory(id, 0)
	if recErr == nil {
		s.fanOut(ctx, models.EventBatchCreated, id, intPtr(0), &rec)
	}
	return id, nil
}

// UpdateBatchStatus moves a batch to a new stage.
func (s *LedgerService) UpdateBatchStatus(ctx context.Context, caller ledger.Principal, id ledger.BatchID, newStage ledger.Stage, metadata string) error {
	start := time.Now()
	seq, err := s.core.UpdateBatchStatus(ctx, caller, id, newStage, metadata)
	s.observe("update_batch_status", start, err)
	if err != nil {
		return err
	}

	rec, recErr := s.core.GetBatchHistory(id, seq)
	if recErr == nil {
		s.fanOut(ctx, models.EventBatchStatusUpdated, id, &seq, &rec)
	}
	return nil
}

// TransferBatch hands ownership of a batch to a new owner.
func (s *LedgerService) TransferBatch(ctx context.Context, caller ledger.Principal, id ledger.BatchID, newOwner ledger.Principal) error {
	start := time.Now()
	seq, err := s.core.TransferBatch(ctx, caller, id, newOwner)
	s.observe("transfer_batch", start, err)
	if err != nil {
		return err
	}

	rec, recErr := s.core.GetBatchHistory(id, seq)
	if recErr == nil {
		s.fanOut(ctx, models.EventBatchTransferred, id, &seq, &rec)
	}
	return nil
}

// DeactivateBatch irreversibly ends a batch's mutability. No audit record
// is appended, so only the invalidation and the outbound event fan out.
func (s *LedgerService) DeactivateBatch(ctx context.Context, caller ledger.Principal, id ledger.BatchID) error {
	start := time.Now()
	err := s.core.DeactivateBatch(ctx, caller, id)
	s.observe("deactivate_batch", start, err)
	if err != nil {
		return err
	}

	s.fanOut(ctx, models.EventBatchDeactivated, id, nil, nil)
	return nil
}

// TransferAdmin hands the admin capability to a new principal.
func (s *LedgerService) TransferAdmin(ctx context.Context, caller, newAdmin ledger.Principal) error {
	start := time.Now()
	err := s.core.TransferAdmin(ctx, caller, newAdmin)
	s.observe("transfer_admin", start, err)
	return err
}

// SetOracle designates the off-chain feed identity.
func (s *LedgerService) SetOracle(ctx context.Context, caller, newOracle ledger.Principal) error {
	start := time.Now()
	err := s.core.SetOracle(ctx, caller, newOracle)
	s.observe("set_oracle", start, err)
	return err
}

// SetPaused flips the circuit breaker and returns the new flag.
func (s *LedgerService) SetPaused(ctx context.Context, caller ledger.Principal, flag bool) (bool, error) {
	start := time.Now()
	paused, err := s.core.SetPaused(ctx, caller, flag)
	s.observe("set_paused", start, err)
	return paused, err
}

// GetBatch returns the current state of a batch, through the read cache
// when one is configured.
func (s *LedgerService) GetBatch(ctx context.Context, id ledger.BatchID) (ledger.Batch, error) {
	if s.cache != nil {
		var cached ledger.Batch
		if err := s.cache.Get(ctx, cache.BatchCacheKey(uint64(id)), &cached); err == nil {
			return cached, nil
		}
	}

	batch, err := s.core.GetBatch(id)
	if err != nil {
		return ledger.Batch{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.BatchCacheKey(uint64(id)), batch, batchCacheTTL); err != nil {
			log.Warn().Err(err).Uint64("batch_id", uint64(id)).Msg("Failed to cache batch")
		}
	}
	return batch, nil
}

// GetBatchHistory returns the audit record at (id, index).
func (s *LedgerService) GetBatchHistory(id ledger.BatchID, index int) (ledger.HistoryRecord, error) {
	return s.core.GetBatchHistory(id, index)
}

// BatchHistory returns the full audit trail of a batch, oldest first.
func (s *LedgerService) BatchHistory(id ledger.BatchID) ([]ledger.HistoryRecord, error) {
	return s.core.BatchHistory(id)
}

// BatchCounter returns the most recently allocated batch id.
func (s *LedgerService) BatchCounter() uint64 {
	return s.core.BatchCounter()
}

// Admin returns the current admin identity.
func (s *LedgerService) Admin() ledger.Principal {
	return s.core.Admin()
}

// Oracle returns the current oracle identity.
func (s *LedgerService) Oracle() ledger.Principal {
	return s.core.Oracle()
}

// IsPaused reports whether the circuit breaker is engaged.
func (s *LedgerService) IsPaused() bool {
	return s.core.IsPaused()
}

// SearchEvents runs a raw query against the audit-trail search index.
func (s *LedgerService) SearchEvents(ctx context.Context, query map[string]interface{}) ([]map[string]interface{}, error) {
	if s.search == nil {
		return nil, nil
	}
	return s.search.SearchBatchEvents(ctx, query)
}

// fanOut runs the best-effort post-commit work: cache invalidation, the
// outbound event and the search projection. None of it can undo the commit,
// so failures are logged and the reindex fallback sweeps up projection gaps.
func (s *LedgerService) fanOut(ctx context.Context, eventType string, id ledger.BatchID, seq *int, rec *ledger.HistoryRecord) {
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cache.BatchCacheKey(uint64(id))); err != nil {
			log.Warn().Err(err).Uint64("batch_id", uint64(id)).Msg("Failed to invalidate batch cache")
		}
	}

	batch, err := s.core.GetBatch(id)
	if err != nil {
		log.Error().Err(err).Uint64("batch_id", uint64(id)).Msg("Committed batch not readable")
		return
	}

	if s.publisher != nil {
		msg := models.BatchEventMessage{
			EventType: eventType,
			BatchID:   uint64(id),
			Sequence:  seq,
			Stage:     batch.CurrentStage.String(),
			Owner:     batch.CurrentOwner.String(),
			Timestamp: batch.LastUpdate,
		}
		if rec != nil {
			msg.Metadata = rec.Metadata
		}
		if err := s.publisher.SendMessage(ctx, msg); err != nil {
			log.Error().Err(err).Str("event_type", eventType).Uint64("batch_id", uint64(id)).Msg("Failed to publish event")
			if s.metrics != nil {
				s.metrics.IncrementCounter("events.publish_failed")
			}
		}
	}

	if s.search != nil && rec != nil && seq != nil {
		if err := s.search.IndexBatchEvent(ctx, uint64(id), *seq, *rec); err != nil {
			log.Warn().Err(err).Uint64("batch_id", uint64(id)).Int("sequence", *seq).
				Msg("Failed to index audit record, reindex job will retry")
			if s.metrics != nil {
				s.metrics.IncrementCounter("events.index_failed")
			}
			return
		}
		if s.store != nil {
			if err := s.store.MarkEventIndexed(ctx, uint64(id), *seq); err != nil {
				log.Warn().Err(err).Uint64("batch_id", uint64(id)).Int("sequence", *seq).
					Msg("Failed to mark audit record as indexed")
			}
		}
	}
}

func (s *LedgerService) observe(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordTimer("ledger."+op, time.Since(start))
	if err != nil {
		s.metrics.IncrementCounter("ledger." + op + ".rejected")
		return
	}
	s.metrics.IncrementCounter("ledger." + op + ".ok")
}

func intPtr(v int) *int {
	return &v
}
