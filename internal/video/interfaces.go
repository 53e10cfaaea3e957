package video

import (
	"context"
	"time"
)

// Publisher places an identifier onto the durable queue for asynchronous
// processing. Duplicate publishes for the same ID are expected.
type Publisher interface {
	Publish(ctx context.Context, id ID) error
}

// Queue is the consumer side of the broker. Deliveries are at-least-once:
// every Dequeue must be answered with exactly one Ack or Nack, and a Nack
// causes redelivery.
type Queue interface {
	Dequeue(ctx context.Context) (Delivery, error)
	Ack(ctx context.Context, d Delivery) error
	Nack(ctx context.Context, d Delivery) error
}

// Prober performs the best-effort existence check against the catalog.
type Prober interface {
	Exists(ctx context.Context, id ID) (bool, error)
}

// Fetcher retrieves provider metadata for one identifier and normalizes
// it into a Record.
type Fetcher interface {
	Fetch(ctx context.Context, id ID) (Record, error)
}

// Store persists records keyed by ID. Upsert fully replaces any prior
// record for the same key and must be idempotent.
type Store interface {
	Upsert(ctx context.Context, rec Record) error
	Get(ctx context.Context, id ID) (Record, error)
	ExistsByID(ctx context.Context, id ID) (bool, error)
	Trending(ctx context.Context, limit int) ([]Record, error)
	Search(ctx context.Context, query string) ([]Record, error)
}

// Archive stores raw provider payloads and returns a URI.
type Archive interface {
	Put(ctx context.Context, path string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
