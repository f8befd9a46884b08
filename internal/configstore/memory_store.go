package configstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/matthewbaird/leasefin/internal/finconfig"
	"github.com/matthewbaird/leasefin/internal/types"
)

type assignmentKey struct {
	tenantID, unitID int64
}

// MemoryStore implements Store in memory.
// Intended for demos and testing.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[assignmentKey]Record
	now     func() time.Time
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[assignmentKey]Record{}, now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, flow finconfig.Flow, p finconfig.Payload, audit types.AuditInfo) (Record, error) {
	if err := checkIdentity(p); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assignmentKey{p.TenantID, p.UnitID}
	if _, exists := s.records[key]; exists {
		return Record{}, ErrAlreadyExists
	}
	rec := newRecord(flow, p, audit, 1, s.now().UTC())
	s.records[key] = rec
	return rec, nil
}

func (s *MemoryStore) Save(_ context.Context, flow finconfig.Flow, p finconfig.Payload, audit types.AuditInfo) (Record, error) {
	if err := checkIdentity(p); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assignmentKey{p.TenantID, p.UnitID}
	now := s.now().UTC()
	rec, exists := s.records[key]
	if !exists {
		rec = Record{TenantID: p.TenantID, UnitID: p.UnitID, CreatedAt: now}
	}
	rec.Flow = flow
	rec.Revision++
	rec.Payload = p
	rec.UpdatedAt = now
	rec.UpdatedBy = audit.Actor
	rec.Source = audit.Source
	rec.CorrelationID = derefString(audit.CorrelationID)
	s.records[key] = rec
	return rec, nil
}

func (s *MemoryStore) Get(_ context.Context, tenantID, unitID int64) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[assignmentKey{tenantID, unitID}]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) List(_ context.Context, opts ListOptions) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Record
	for _, rec := range s.records {
		if opts.TenantID != 0 && rec.TenantID != opts.TenantID {
			continue
		}
		if opts.UnitID != 0 && rec.UnitID != opts.UnitID {
			continue
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if a.TenantID != b.TenantID {
			return a.TenantID < b.TenantID
		}
		return a.UnitID < b.UnitID
	})

	if opts.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[opts.Offset:]
	if limit := opts.limit(); len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}
