package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/iris-network/coordinator/domain/task"
	"github.com/iris-network/coordinator/infrastructure/resilience"
	"github.com/iris-network/coordinator/protocol"
	"github.com/iris-network/coordinator/registry"
)

// assignWithRetry implements §4.13: up to cfg.MaxRetries attempts to
// select a worker and send TASK_ASSIGN, with exponential backoff
// between empty-candidate-set attempts. A vision requirement with no
// candidates fails immediately rather than retrying (I5).
func (o *Orchestrator) assignWithRetry(
	ctx context.Context,
	taskID string,
	st task.Subtask,
	difficulty task.Difficulty,
	requireVision bool,
	exclude map[string]struct{},
	streaming bool,
) (string, error) {
	for attempt := 0; attempt < o.cfg.MaxRetries; attempt++ {
		nodeID, sent := o.trySelectAndSend(ctx, taskID, st, difficulty, requireVision, exclude, streaming)
		if sent {
			return nodeID, nil
		}
		if requireVision {
			return "", errNoCapableWorker
		}
		if attempt < o.cfg.MaxRetries-1 {
			if o.metrics != nil {
				o.metrics.SubtaskAssignRetries.Inc()
			}
			o.retryBackoff(ctx, attempt)
		}
	}
	return "", errNoCapableWorker
}

// trySelectAndSend makes exactly one Select+send attempt, marking the
// subtask Assigned and bumping load on success. Send failures record a
// CircuitBreaker failure and add the node to exclude so the caller's
// next attempt (if any) picks a different worker.
func (o *Orchestrator) trySelectAndSend(
	ctx context.Context,
	taskID string,
	st task.Subtask,
	difficulty task.Difficulty,
	requireVision bool,
	exclude map[string]struct{},
	streaming bool,
) (string, bool) {
	candidates := o.registry.Select(registry.SelectRequest{
		Difficulty:    difficulty,
		N:             1,
		Exclude:       exclude,
		RequireVision: requireVision,
	})
	if len(candidates) == 0 {
		return "", false
	}
	chosen := candidates[0]

	pub, err := pubKeyFrom(chosen.PublicKey)
	if err != nil {
		o.log.LogCryptoFailure(ctx, "invalid_worker_public_key", err)
		exclude[chosen.ID] = struct{}{}
		return "", false
	}

	encPrompt, err := o.crypto.Seal(pub, []byte(st.Prompt))
	if err != nil {
		o.log.LogCryptoFailure(ctx, "seal_subtask_prompt", err)
		exclude[chosen.ID] = struct{}{}
		return "", false
	}

	timeout := o.cfg.timeoutFor(difficulty)
	payload := protocol.TaskAssignPayload{
		SubtaskID:       st.ID,
		TaskID:          taskID,
		EncPrompt:       encPrompt,
		TimeoutS:        int(timeout.Seconds()),
		EnableStreaming: streaming,
	}

	if err := chosen.Channel.Send(string(protocol.TypeTaskAssign), payload); err != nil {
		cb := o.registry.Breaker(chosen.ID)
		wasOpen := cb.State() == resilience.StateOpen
		cb.RecordFailure()
		if o.metrics != nil && !wasOpen && cb.State() == resilience.StateOpen {
			o.metrics.RecordCircuitBreakerTrip(chosen.ID)
		}
		exclude[chosen.ID] = struct{}{}
		return "", false
	}

	st.NodeID = chosen.ID
	st.Status = task.SubtaskAssigned
	now := time.Now()
	st.AssignedAt = &now
	if err := o.store.UpdateSubtask(ctx, st); err != nil {
		o.log.LogTaskEvent(ctx, "subtask_persist_failed", taskID, map[string]interface{}{"subtask_id": st.ID, "error": err.Error()})
	}
	o.registry.IncrLoad(chosen.ID, 1)

	return chosen.ID, true
}

// pubKeyFrom validates and converts a raw public key byte slice into
// the fixed-size array the crypto package operates on.
func pubKeyFrom(raw []byte) ([32]byte, error) {
	var pub [32]byte
	if len(raw) != 32 {
		return pub, fmt.Errorf("public key must be 32 bytes, got %d", len(raw))
	}
	copy(pub[:], raw)
	return pub, nil
}
