package store

import (
	"context"
	"iter"
	"sort"
	"sync"
	"time"

	"migration-cost/decision/pricing"
)

// MemoryStore keeps records in process. Each dimension holds its versions
// sorted by effective date, newest last.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[pricing.PriceDimension][]pricing.PriceRecord
	audits   []LoadAudit
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		versions: make(map[pricing.PriceDimension][]pricing.PriceRecord),
	}
}

// BulkUpsert stages the whole sequence before touching shared state, so a
// cancelled load leaves the previous contents intact.
func (s *MemoryStore) BulkUpsert(ctx context.Context, records iter.Seq[pricing.PriceRecord]) (int, error) {
	staged := make([]pricing.PriceRecord, 0, 1024)
	for rec := range records {
		if len(staged)%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		staged = append(staged, rec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range staged {
		s.upsertLocked(rec)
	}
	return len(staged), nil
}

func (s *MemoryStore) upsertLocked(rec pricing.PriceRecord) {
	list := s.versions[rec.Dimension]
	i := sort.Search(len(list), func(i int) bool {
		return !list[i].EffectiveDate.Before(rec.EffectiveDate)
	})
	if i < len(list) && list[i].EffectiveDate.Equal(rec.EffectiveDate) {
		list[i] = rec
		return
	}
	list = append(list, pricing.PriceRecord{})
	copy(list[i+1:], list[i:])
	list[i] = rec
	s.versions[rec.Dimension] = list
}

func (s *MemoryStore) Lookup(ctx context.Context, dim pricing.PriceDimension) (*pricing.PriceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.versions[dim]
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	rec := list[len(list)-1]
	return &rec, nil
}

func (s *MemoryStore) RecordLoad(_ context.Context, audit LoadAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if audit.StartedAt.IsZero() {
		audit.StartedAt = time.Now().UTC()
	}
	s.audits = append(s.audits, audit)
	return nil
}

// Audits returns a copy of the recorded load audits, oldest first.
func (s *MemoryStore) Audits() []LoadAudit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LoadAudit, len(s.audits))
	copy(out, s.audits)
	return out
}

// Len is the number of stored rows across all versions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, list := range s.versions {
		n += len(list)
	}
	return n
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
