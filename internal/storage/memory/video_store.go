// Package memory provides an in-memory catalog store for development and
// testing.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/trendtube/ingest/internal/video"
)

// VideoStore keeps records in a map guarded by a RWMutex. It mirrors the
// Postgres store's contract: full-replace upsert, last write wins.
type VideoStore struct {
	mu      sync.RWMutex
	records map[video.ID]video.Record
}

// NewVideoStore constructs a VideoStore.
func NewVideoStore() *VideoStore {
	return &VideoStore{
		records: make(map[video.ID]video.Record),
	}
}

// Upsert stores the record, replacing any prior record for the same ID.
func (s *VideoStore) Upsert(_ context.Context, rec video.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = cloneRecord(rec)
	return nil
}

// Get returns the record for an identifier or video.ErrNotFound.
func (s *VideoStore) Get(_ context.Context, id video.ID) (video.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return video.Record{}, video.ErrNotFound
	}
	return cloneRecord(rec), nil
}

// ExistsByID reports whether a record exists for the identifier.
func (s *VideoStore) ExistsByID(_ context.Context, id video.ID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok, nil
}

// Trending returns up to limit records ordered by view count descending.
func (s *VideoStore) Trending(_ context.Context, limit int) ([]video.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]video.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ViewCount > out[j].ViewCount })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Search matches records whose title contains the query
// (case-insensitive) or whose tags contain it exactly.
func (s *VideoStore) Search(_ context.Context, query string) ([]video.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lowered := strings.ToLower(query)
	var out []video.Record
	for _, rec := range s.records {
		if strings.Contains(strings.ToLower(rec.Title), lowered) || containsTag(rec.Tags, query) {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ViewCount > out[j].ViewCount })
	return out, nil
}

// Len reports the number of stored records.
func (s *VideoStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func cloneRecord(rec video.Record) video.Record {
	cp := rec
	cp.Tags = make([]string, len(rec.Tags))
	copy(cp.Tags, rec.Tags)
	return cp
}
