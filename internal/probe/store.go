package probe

import (
	"context"

	"github.com/trendtube/ingest/internal/video"
)

// Store answers existence checks from the local catalog store directly,
// for deployments where the submission API and the catalog share a
// database.
type Store struct {
	store video.Store
}

// NewStore wraps a video store as a Prober.
func NewStore(store video.Store) *Store {
	return &Store{store: store}
}

// Exists reports whether a record for id is already in the catalog.
func (s *Store) Exists(ctx context.Context, id video.ID) (bool, error) {
	return s.store.ExistsByID(ctx, id)
}
