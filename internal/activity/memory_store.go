package activity

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/matthewbaird/leasefin/internal/types"
)

// MemoryStore keeps entries in memory, newest first. Writing an entry that
// is already indexed under the same entity is a no-op, as in SQLStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []types.ActivityEntry
	seen    map[entryKey]struct{}
}

type entryKey struct {
	entityType, entityID, eventID string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[entryKey]struct{})}
}

func (s *MemoryStore) WriteEntries(_ context.Context, entries []types.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		k := entryKey{e.IndexedEntityType, e.IndexedEntityID, e.EventID}
		if _, dup := s.seen[k]; dup {
			continue
		}
		s.seen[k] = struct{}{}
		s.entries = append(s.entries, e)
	}
	slices.SortStableFunc(s.entries, newestFirst)
	return nil
}

func newestFirst(a, b types.ActivityEntry) int {
	return b.OccurredAt.Compare(a.OccurredAt)
}

func (s *MemoryStore) QueryByEntity(_ context.Context, entityType, entityID string, opts QueryOptions) ([]types.ActivityEntry, string, int, error) {
	var before time.Time
	if opts.Cursor != "" {
		if t, err := time.Parse(time.RFC3339Nano, opts.Cursor); err == nil {
			before = t
		}
	}

	matched := s.filter(func(e types.ActivityEntry) bool {
		return e.IndexedEntityType == entityType && e.IndexedEntityID == entityID && opts.matches(e)
	})
	total := len(matched)
	if !before.IsZero() {
		// Entries are newest first, so everything past the cursor is a suffix.
		i := 0
		for i < len(matched) && !matched[i].OccurredAt.Before(before) {
			i++
		}
		matched = matched[i:]
	}

	limit := normalizeLimit(opts.Limit)
	var next string
	if len(matched) > limit {
		matched = matched[:limit]
		next = matched[limit-1].OccurredAt.Format(time.RFC3339Nano)
	}
	return matched, next, total, nil
}

func (s *MemoryStore) Search(_ context.Context, query string, opts SearchOptions) ([]types.ActivityEntry, int, error) {
	q := strings.ToLower(query)
	matched := s.filter(func(e types.ActivityEntry) bool {
		return strings.Contains(strings.ToLower(e.Summary), q) && opts.matches(e)
	})
	total := len(matched)
	return matched[:min(len(matched), searchLimit(opts.Limit))], total, nil
}

func (s *MemoryStore) filter(keep func(types.ActivityEntry) bool) []types.ActivityEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.ActivityEntry
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
