package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/curvemarket/internal/domain"
)

// EventStore is an in-memory implementation of domain.EventStore. Records
// are kept ordered by sequence number.
type EventStore struct {
	mu      sync.RWMutex
	records []domain.EventRecord
	seqs    map[uint64]bool
}

// NewEventStore creates an empty event store.
func NewEventStore() *EventStore {
	return &EventStore{seqs: make(map[uint64]bool)}
}

// Append adds records. The whole batch fails if any sequence number is
// already stored.
func (s *EventStore) Append(_ context.Context, records []domain.EventRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[uint64]bool, len(records))
	for _, r := range records {
		if s.seqs[r.Seq] || batch[r.Seq] {
			return fmt.Errorf("memory: event %d: %w", r.Seq, domain.ErrAlreadyExists)
		}
		batch[r.Seq] = true
	}

	now := time.Now().UTC()
	for _, r := range records {
		r.Payload = append([]byte(nil), r.Payload...)
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		s.records = append(s.records, r)
		s.seqs[r.Seq] = true
	}
	sort.Slice(s.records, func(i, j int) bool { return s.records[i].Seq < s.records[j].Seq })
	return nil
}

// ListSince returns up to limit records with Seq > afterSeq. A non-positive
// limit returns everything.
func (s *EventStore) ListSince(_ context.Context, afterSeq uint64, limit int) ([]domain.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := sort.Search(len(s.records), func(i int) bool { return s.records[i].Seq > afterSeq })
	end := len(s.records)
	if limit > 0 && i+limit < end {
		end = i + limit
	}
	return append([]domain.EventRecord(nil), s.records[i:end]...), nil
}

// ListBefore returns every record created before the given time.
func (s *EventStore) ListBefore(_ context.Context, before time.Time) ([]domain.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.EventRecord
	for _, r := range s.records {
		if r.CreatedAt.Before(before) {
			out = append(out, r)
		}
	}
	return out, nil
}

// LastSeq returns the highest stored sequence number, or 0.
func (s *EventStore) LastSeq(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return 0, nil
	}
	return s.records[len(s.records)-1].Seq, nil
}

// Compile-time interface check.
var _ domain.EventStore = (*EventStore)(nil)
