package ledger

import "time"

// HistoryRecord is one immutable audit-trail entry: the stage and owner of
// record at the moment an accepted mutation touched the batch.
type HistoryRecord struct {
	Stage     Stage     `json:"stage"`
	Owner     Principal `json:"owner"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  string    `json:"metadata"`
}

// historyLog is the append-only audit trail, one record slice per batch.
// The slice index is the sequence number: records are only ever appended,
// so for every batch the stored indices are exactly 0..len-1 and no record
// can be overwritten.
type historyLog struct {
	records map[BatchID][]HistoryRecord
}

func newHistoryLog() *historyLog {
	return &historyLog{records: make(map[BatchID][]HistoryRecord)}
}

// nextIndex returns the sequence the next append for id will consume.
// Immediately after creation this is 1: index 0 belongs to the creation
// record.
func (h *historyLog) nextIndex(id BatchID) int {
	return len(h.records[id])
}

// append stores rec at the next sequence for id and returns that sequence.
func (h *historyLog) append(id BatchID, rec HistoryRecord) int {
	seq := len(h.records[id])
	h.records[id] = append(h.records[id], rec)
	return seq
}

// get returns the record stored at (id, index).
func (h *historyLog) get(id BatchID, index int) (HistoryRecord, error) {
	recs := h.records[id]
	if index < 0 || index >= len(recs) {
		return HistoryRecord{}, ErrInvalidBatch
	}
	return recs[index], nil
}

// all returns a copy of the full trail for id, oldest first.
func (h *historyLog) all(id BatchID) []HistoryRecord {
	recs := h.records[id]
	out := make([]HistoryRecord, len(recs))
	copy(out, recs)
	return out
}
