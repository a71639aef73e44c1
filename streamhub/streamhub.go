// Package streamhub implements the per-task bounded chunk queue that
// fans worker stream output in to exactly one subscriber (§4.11).
package streamhub

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/iris-network/coordinator/domain/stream"
	"github.com/iris-network/coordinator/infrastructure/logging"
	"github.com/iris-network/coordinator/infrastructure/metrics"
)

// queueCapacity bounds each session's channel so a stalled subscriber
// cannot grow memory unboundedly; push drops with a warning instead.
const queueCapacity = 256

// entry pairs the bookkeeping Session with its private delivery queue.
type entry struct {
	session stream.Session
	queue   chan stream.Chunk
	mu      sync.Mutex
}

// Hub owns every live StreamSession and its queue.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*entry

	log *logging.Logger
	cr  *cron.Cron
	m   *metrics.Metrics
}

// New constructs a Hub and starts its TTL sweep on the given cron
// schedule (conventionally every 5 minutes, per §4.11). m may be nil.
func New(log *logging.Logger, sweepSchedule string, m *metrics.Metrics) (*Hub, error) {
	h := &Hub{
		sessions: make(map[string]*entry),
		log:      log,
		m:        m,
	}

	h.cr = cron.New()
	if sweepSchedule != "" {
		if _, err := h.cr.AddFunc(sweepSchedule, h.sweep); err != nil {
			return nil, err
		}
		h.cr.Start()
	}
	return h, nil
}

// Stop halts the sweep scheduler; callers should invoke this on
// coordinator shutdown.
func (h *Hub) Stop() {
	if h.cr != nil {
		h.cr.Stop()
	}
}

// Create is idempotent per task_id: a second call for the same task
// returns the existing session.
func (h *Hub) Create(taskID string) stream.Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e, ok := h.sessions[taskID]; ok {
		return e.session
	}

	e := &entry{
		session: stream.Session{TaskID: taskID, CreatedAt: time.Now()},
		queue:   make(chan stream.Chunk, queueCapacity),
	}
	h.sessions[taskID] = e
	return e.session
}

// Push enqueues a data chunk. If the queue is full (subscriber
// stalled), the chunk is dropped and a warning logged — no retroactive
// recovery per §5.
func (h *Hub) Push(taskID, content string) {
	h.mu.Lock()
	e, ok := h.sessions[taskID]
	h.mu.Unlock()
	if !ok {
		h.log.WithFields(map[string]interface{}{"task_id": taskID}).Warn("stream push to unknown session dropped")
		if h.m != nil {
			h.m.RecordStreamDrop()
		}
		return
	}

	select {
	case e.queue <- stream.Chunk{Kind: stream.ChunkData, Content: content}:
		e.mu.Lock()
		e.session.ChunksReceived++
		e.mu.Unlock()
		if h.m != nil {
			h.m.RecordStreamChunk()
		}
	default:
		h.log.WithFields(map[string]interface{}{"task_id": taskID}).Warn("stream queue full, chunk dropped")
		if h.m != nil {
			h.m.RecordStreamDrop()
		}
	}
}

// Complete enqueues the terminal sentinel (I6): exactly one of final
// or errMsg should be non-empty.
func (h *Hub) Complete(taskID, final, errMsg string) {
	h.mu.Lock()
	e, ok := h.sessions[taskID]
	h.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	if e.session.IsComplete {
		e.mu.Unlock()
		return
	}
	e.session.IsComplete = true
	e.session.FinalResponse = final
	e.session.Err = errMsg
	e.mu.Unlock()

	chunk := stream.Chunk{Kind: stream.ChunkDone, Content: final}
	if errMsg != "" {
		chunk = stream.Chunk{Kind: stream.ChunkError, Content: errMsg}
	}
	select {
	case e.queue <- chunk:
	default:
		h.log.WithFields(map[string]interface{}{"task_id": taskID}).Warn("stream queue full, terminal sentinel dropped")
	}
}

// Subscribe returns the receive-only channel a caller drains until the
// done/error sentinel arrives.
func (h *Hub) Subscribe(taskID string) (<-chan stream.Chunk, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.sessions[taskID]
	if !ok {
		return nil, false
	}
	return e.queue, true
}

// sweep removes sessions older than stream.TTL and samples the total
// queue depth left across the surviving sessions.
func (h *Hub) sweep() {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := time.Now().Add(-stream.TTL)
	removed := 0
	depth := 0
	for id, e := range h.sessions {
		e.mu.Lock()
		stale := e.session.CreatedAt.Before(cutoff)
		e.mu.Unlock()
		if stale {
			delete(h.sessions, id)
			removed++
			continue
		}
		depth += len(e.queue)
	}
	if h.m != nil {
		h.m.SetStreamQueueDepth(float64(depth))
	}
	if removed > 0 {
		h.log.WithFields(map[string]interface{}{"removed": removed}).Info("stream session sweep reclaimed sessions")
	}
}
