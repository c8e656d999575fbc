package newsfeed

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// HistoryStore holds every record seen during the process lifetime, keyed by
// identifier. It is safe for concurrent use.
type HistoryStore struct {
	mu         sync.RWMutex
	records    map[string]NewsRecord
	ids        map[uuid.UUID]string
	order      []string // identifiers in insertion order
	maxRecords int
}

// MergeResult summarizes one Merge call.
type MergeResult struct {
	Inserted int
	Updated  int
	Evicted  int
}

// NewHistoryStore creates an empty store. When maxRecords is positive, the
// earliest-inserted records are evicted once the store grows past it; zero
// or less means unbounded. Records from the batch being merged are never
// evicted, so a single batch larger than the bound is kept whole.
func NewHistoryStore(maxRecords int) *HistoryStore {
	if maxRecords < 0 {
		maxRecords = 0
	}
	return &HistoryStore{
		records:    make(map[string]NewsRecord),
		ids:        make(map[uuid.UUID]string),
		maxRecords: maxRecords,
	}
}

// Merge inserts records whose identifier is new and updates the rest in
// place. Records with an empty identifier are ignored.
func (s *HistoryStore) Merge(records []NewsRecord) MergeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result MergeResult
	touched := make(map[string]struct{}, len(records))
	for _, incoming := range records {
		if incoming.Identifier == "" {
			continue
		}
		touched[incoming.Identifier] = struct{}{}

		existing, ok := s.records[incoming.Identifier]
		if !ok {
			if incoming.ID == uuid.Nil {
				incoming.ID = RecordID(incoming.Identifier)
			}
			s.records[incoming.Identifier] = cloneRecord(incoming)
			s.ids[incoming.ID] = incoming.Identifier
			s.order = append(s.order, incoming.Identifier)
			result.Inserted++
			continue
		}

		s.records[incoming.Identifier] = mergeRecord(existing, cloneRecord(incoming))
		result.Updated++
	}

	result.Evicted = s.evict(touched)
	return result
}

// mergeRecord applies last-write-wins to everything except identity, with
// one exception: a resolved date is never replaced by an unresolved one, and
// a page-scraped date is never replaced by a feed date.
func mergeRecord(existing, incoming NewsRecord) NewsRecord {
	merged := incoming
	merged.ID = existing.ID
	merged.Identifier = existing.Identifier
	merged.FirstSeenAt = existing.FirstSeenAt

	keepDate := existing.IsDated() &&
		(!incoming.IsDated() || (existing.DateOrigin == OriginPage && incoming.DateOrigin != OriginPage))
	if keepDate {
		merged.PublishedAt = existing.PublishedAt
		merged.PublishedDisplay = existing.PublishedDisplay
		merged.DateOrigin = existing.DateOrigin
	}

	return merged
}

// evict drops the oldest insertions beyond maxRecords, skipping identifiers
// in keep. Caller holds the lock.
func (s *HistoryStore) evict(keep map[string]struct{}) int {
	excess := len(s.order) - s.maxRecords
	if s.maxRecords == 0 || excess <= 0 {
		return 0
	}

	evicted := 0
	order := make([]string, 0, len(s.order))
	for _, identifier := range s.order {
		if _, ok := keep[identifier]; ok || evicted == excess {
			order = append(order, identifier)
			continue
		}
		if r, ok := s.records[identifier]; ok {
			delete(s.ids, r.ID)
		}
		delete(s.records, identifier)
		evicted++
	}
	s.order = order
	return evicted
}

// Snapshot returns a copy of all records, newest publication first. Undated
// records come after every dated one; ties keep insertion order.
func (s *HistoryStore) Snapshot() []NewsRecord {
	s.mu.RLock()
	out := make([]NewsRecord, 0, len(s.order))
	for _, identifier := range s.order {
		out = append(out, cloneRecord(s.records[identifier]))
	}
	s.mu.RUnlock()

	SortRecords(out)
	return out
}

// SortRecords orders records newest first with undated records last. The
// sort is stable.
func SortRecords(records []NewsRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, iDated := sortKey(records[i])
		tj, jDated := sortKey(records[j])
		if iDated != jDated {
			return iDated
		}
		return ti.After(tj)
	})
}

// minSortKey stands in for a missing publication time so comparisons never
// see a nil.
var minSortKey = time.Time{}

func sortKey(r NewsRecord) (time.Time, bool) {
	if r.PublishedAt == nil {
		return minSortKey, false
	}
	return *r.PublishedAt, true
}

// Get returns the record stored under identifier.
func (s *HistoryStore) Get(identifier string) (NewsRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[identifier]
	return cloneRecord(r), ok
}

// GetByID returns the record with the given UUID.
func (s *HistoryStore) GetByID(id uuid.UUID) (NewsRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identifier, ok := s.ids[id]
	if !ok {
		return NewsRecord{}, false
	}
	return cloneRecord(s.records[identifier]), true
}

// cloneRecord copies r so the caller does not share its PublishedAt with the
// store.
func cloneRecord(r NewsRecord) NewsRecord {
	if r.PublishedAt != nil {
		t := *r.PublishedAt
		r.PublishedAt = &t
	}
	return r
}

// Len returns the number of records held.
func (s *HistoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
