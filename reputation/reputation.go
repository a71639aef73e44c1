// Package reputation implements the event-driven score engine of §4.8:
// deltas per event kind, weekly decay, and the leaderboard query.
package reputation

import (
	"context"
	"time"

	"github.com/iris-network/coordinator/domain/node"
	"github.com/iris-network/coordinator/infrastructure/logging"
	"github.com/iris-network/coordinator/infrastructure/metrics"
	"github.com/iris-network/coordinator/store"
)

// Reason names why a reputation event fired, persisted alongside the
// delta on the append-only event log.
type Reason string

const (
	ReasonTaskCompleted Reason = "task_completed"
	ReasonFastBonus     Reason = "fast_bonus"
	ReasonTaskTimeout   Reason = "task_timeout"
	ReasonTaskInvalid   Reason = "task_invalid"
	ReasonUptimeHour    Reason = "uptime_hour"
	ReasonBrokenPromise Reason = "broken_promise"
	ReasonWeeklyDecay   Reason = "weekly_decay"
)

const (
	deltaTaskCompleted = 10
	deltaFastBonus     = 5
	deltaTaskTimeout   = -20
	deltaTaskInvalid   = -50
	deltaUptimeHour    = 1
	deltaBrokenPromise = -5

	fastThreshold = 30 * time.Second
	decayFactor   = 0.99
)

// Engine applies reputation deltas and persists the resulting score.
type Engine struct {
	store store.Nodes
	repo  store.ReputationEvents
	log   *logging.Logger
	m     *metrics.Metrics
}

// New constructs an Engine over the given Nodes/ReputationEvents store.
// m may be nil.
func New(nodes store.Nodes, events store.ReputationEvents, log *logging.Logger, m *metrics.Metrics) *Engine {
	return &Engine{store: nodes, repo: events, log: log, m: m}
}

func (e *Engine) apply(ctx context.Context, nodeID string, delta float64, reason Reason, tasksCompletedDelta int) error {
	n, ok, err := e.store.NodeByID(ctx, nodeID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	newRep := node.ClampReputation(n.Reputation + delta)
	now := time.Now()

	if err := e.repo.AppendReputationEvent(ctx, nodeID, delta, string(reason), now); err != nil {
		return err
	}
	if err := e.store.UpdateReputation(ctx, nodeID, newRep, tasksCompletedDelta); err != nil {
		return err
	}

	e.log.LogNodeEvent(ctx, "reputation_changed", nodeID, map[string]interface{}{
		"delta":      delta,
		"reason":     string(reason),
		"reputation": newRep,
	})
	return nil
}

// TaskCompleted records a completed subtask, with the fast bonus if
// execTime is under the 30s threshold (§4.8).
func (e *Engine) TaskCompleted(ctx context.Context, nodeID string, execTime time.Duration) error {
	delta := float64(deltaTaskCompleted)
	if execTime < fastThreshold {
		delta += deltaFastBonus
	}
	return e.apply(ctx, nodeID, delta, ReasonTaskCompleted, 1)
}

// TaskTimeout records a subtask that timed out.
func (e *Engine) TaskTimeout(ctx context.Context, nodeID string) error {
	return e.apply(ctx, nodeID, deltaTaskTimeout, ReasonTaskTimeout, 0)
}

// TaskInvalid records an invalid response or decryption failure.
func (e *Engine) TaskInvalid(ctx context.Context, nodeID string) error {
	return e.apply(ctx, nodeID, deltaTaskInvalid, ReasonTaskInvalid, 0)
}

// UptimeHour credits an hour of sustained connection.
func (e *Engine) UptimeHour(ctx context.Context, nodeID string) error {
	return e.apply(ctx, nodeID, deltaUptimeHour, ReasonUptimeHour, 0)
}

// BrokenPromise penalizes an hour during which a node was registered
// but unreachable for assignment.
func (e *Engine) BrokenPromise(ctx context.Context, nodeID string) error {
	return e.apply(ctx, nodeID, deltaBrokenPromise, ReasonBrokenPromise, 0)
}

// ApplyWeeklyDecay multiplies every node's reputation by decayFactor,
// run on a weekly schedule by the cron job that coordinator.New
// installs; each run is counted in infrastructure/metrics.
func (e *Engine) ApplyWeeklyDecay(ctx context.Context) error {
	nodes, err := e.store.AllNodes(ctx)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		newRep := node.ClampReputation(n.Reputation * decayFactor)
		delta := newRep - n.Reputation
		if err := e.repo.AppendReputationEvent(ctx, n.ID, delta, string(ReasonWeeklyDecay), time.Now()); err != nil {
			return err
		}
		if err := e.store.UpdateReputation(ctx, n.ID, newRep, 0); err != nil {
			return err
		}
	}
	if e.m != nil {
		e.m.RecordReputationDecayRun()
	}
	e.log.WithFields(map[string]interface{}{"node_count": len(nodes)}).Info("weekly reputation decay applied")
	return nil
}

// Leaderboard returns the top limit nodes by reputation descending.
func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]node.Node, error) {
	return e.store.Leaderboard(ctx, limit)
}
