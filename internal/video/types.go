// Package video defines core types shared across subsystems.
package video

import (
	"time"
)

// ID is the canonical 11-character YouTube video identifier. It is only
// ever produced by ExtractID, so downstream code can assume the format.
type ID string

// Record is the fully materialized metadata for one video. Records are
// keyed by ID and always written whole; there is no field-level merge.
type Record struct {
	ID           ID        `json:"videoId"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ChannelTitle string    `json:"channelTitle"`
	ViewCount    int64     `json:"viewCount"`
	LikeCount    int64     `json:"likeCount"`
	Tags         []string  `json:"tags"`
	FetchedAt    time.Time `json:"fetchedAt"`
}

// Delivery is one attempt at processing a queued identifier. The broker
// may hand the same identifier out more than once; Attempt counts how many
// times this particular message has been delivered, starting at 1.
type Delivery struct {
	ID      ID
	Attempt int

	// Receipt is an opaque broker token used to ack or requeue the
	// delivery. Its concrete type belongs to the queue implementation.
	Receipt any
}
