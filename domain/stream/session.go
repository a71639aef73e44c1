// Package stream defines the in-memory StreamSession entity owned
// exclusively by the StreamHub.
package stream

import "time"

// TTL is how long a session survives after creation before the sweep
// reclaims it (§3, §4.11).
const TTL = 10 * time.Minute

// ChunkKind discriminates the three messages a subscriber can observe.
type ChunkKind string

const (
	ChunkData  ChunkKind = "chunk"
	ChunkDone  ChunkKind = "done"
	ChunkError ChunkKind = "error"
)

// Chunk is one item delivered to a stream subscriber. Exactly one
// Chunk per session carries Kind != ChunkData, and it is always last
// (I6).
type Chunk struct {
	Kind    ChunkKind
	Content string
}

// Session is the per-task conduit. Queue is unexported and owned by
// streamhub.Hub; this type only carries the bookkeeping fields the
// hub needs to expose for inspection/testing.
type Session struct {
	TaskID         string
	ChunksReceived int
	IsComplete     bool
	FinalResponse  string
	Err            string
	CreatedAt      time.Time
}
