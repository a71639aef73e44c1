package orchestrator

import (
	"context"
	"time"

	ierrors "github.com/iris-network/coordinator/infrastructure/errors"
	"github.com/iris-network/coordinator/protocol"
)

// HandleTaskResult implements on_TASK_RESULT (§4.15): decrypt, adjust
// load/breaker/reputation, and signal the waiter. It persists nothing
// and does not touch the StreamHub itself: the waiting subtask goroutine
// stores the response, and runTask completes the stream session with
// the aggregated final response.
func (o *Orchestrator) HandleTaskResult(ctx context.Context, nodeID string, msg protocol.TaskResultPayload) error {
	cn, ok := o.registry.Connected(nodeID)
	if !ok {
		return ierrors.NotFound("node", nodeID)
	}

	pub, err := pubKeyFrom(cn.PublicKey)
	if err != nil {
		return err
	}

	plaintext, err := o.crypto.Open(pub, msg.EncResponse)
	if err != nil {
		o.log.LogCryptoFailure(ctx, "open_task_result", err)
		o.registry.Breaker(nodeID).RecordFailure()
		if o.reputation != nil {
			_ = o.reputation.TaskInvalid(ctx, nodeID)
		}
		o.signal(msg.SubtaskID, outcome{completed: false})
		return ierrors.DecryptionFailed(err)
	}

	o.registry.IncrLoad(nodeID, -1)
	o.registry.Breaker(nodeID).RecordSuccess()
	if o.reputation != nil {
		_ = o.reputation.TaskCompleted(ctx, nodeID, time.Duration(msg.ExecutionTimeMs)*time.Millisecond)
	}

	o.signal(msg.SubtaskID, outcome{
		completed:       true,
		response:        string(plaintext),
		executionTimeMs: msg.ExecutionTimeMs,
	})

	return nil
}

// HandleTaskStream implements on_TASK_STREAM (§4.15): decrypt and push
// to the StreamHub. Chunks for an unknown/expired session are dropped
// with a warning by Hub.Push itself.
func (o *Orchestrator) HandleTaskStream(ctx context.Context, nodeID string, msg protocol.TaskStreamPayload) error {
	cn, ok := o.registry.Connected(nodeID)
	if !ok {
		return ierrors.NotFound("node", nodeID)
	}

	pub, err := pubKeyFrom(cn.PublicKey)
	if err != nil {
		return err
	}

	plaintext, err := o.crypto.Open(pub, msg.EncChunk)
	if err != nil {
		o.log.LogCryptoFailure(ctx, "open_task_stream_chunk", err)
		return ierrors.DecryptionFailed(err)
	}

	o.streamHub.Push(msg.TaskID, string(plaintext))
	return nil
}

// HandleTaskError implements on_TASK_ERROR (§4.15): persist Failed,
// signal the waiter, CircuitBreaker failure, reputation penalty, and
// terminate any stream session with an error sentinel.
func (o *Orchestrator) HandleTaskError(ctx context.Context, nodeID string, msg protocol.TaskErrorPayload) error {
	o.registry.IncrLoad(nodeID, -1)
	o.registry.Breaker(nodeID).RecordFailure()
	if o.reputation != nil {
		switch msg.ErrorCode {
		case "INVALID_RESPONSE", "DECRYPTION_FAILED":
			_ = o.reputation.TaskInvalid(ctx, nodeID)
		default:
			_ = o.reputation.TaskTimeout(ctx, nodeID)
		}
	}

	o.signal(msg.SubtaskID, outcome{completed: false})
	o.streamHub.Complete(msg.TaskID, "", msg.ErrorMessage)

	o.log.LogTaskEvent(ctx, "task_error_received", msg.TaskID, map[string]interface{}{
		"subtask_id": msg.SubtaskID,
		"node_id":    nodeID,
		"error_code": msg.ErrorCode,
	})
	return nil
}
