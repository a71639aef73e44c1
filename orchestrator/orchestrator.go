// Package orchestrator implements the TaskOrchestrator: the full task
// lifecycle from submission through assignment, awaiting, reassignment,
// and finalization (§4.12-§4.15).
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iris-network/coordinator/aggregator"
	"github.com/iris-network/coordinator/classifier"
	icrypto "github.com/iris-network/coordinator/infrastructure/crypto"
	ierrors "github.com/iris-network/coordinator/infrastructure/errors"
	"github.com/iris-network/coordinator/infrastructure/logging"
	"github.com/iris-network/coordinator/infrastructure/metrics"
	"github.com/iris-network/coordinator/infrastructure/resilience"

	"github.com/iris-network/coordinator/divider"
	"github.com/iris-network/coordinator/domain/task"
	"github.com/iris-network/coordinator/registry"
	"github.com/iris-network/coordinator/reputation"
	"github.com/iris-network/coordinator/store"
	"github.com/iris-network/coordinator/streamhub"
)

// Config tunes retry/backoff and per-difficulty timeouts (§4.13).
type Config struct {
	MaxRetries      int
	RetryBase       time.Duration
	TimeoutSimple   time.Duration
	TimeoutComplex  time.Duration
	TimeoutAdvanced time.Duration
}

func (c Config) timeoutFor(d task.Difficulty) time.Duration {
	switch d {
	case task.DifficultyComplex:
		return c.TimeoutComplex
	case task.DifficultyAdvanced:
		return c.TimeoutAdvanced
	default:
		return c.TimeoutSimple
	}
}

// outcome is delivered to a waiting subtask goroutine by the message
// handlers in handlers.go.
type outcome struct {
	completed       bool
	response        string
	executionTimeMs int64
}

// Orchestrator wires together every collaborator named in §2 to drive
// a Task from submission to terminal status.
type Orchestrator struct {
	cfg Config

	store         store.Store
	registry      *registry.Registry
	classifier    classifier.Classifier
	streamHub     *streamhub.Hub
	reputation    *reputation.Engine
	crypto        *icrypto.KeyPair
	pdfSummarizer PDFSummarizer
	log           *logging.Logger
	metrics       *metrics.Metrics

	mu      sync.Mutex
	waiters map[string]chan outcome // subtask_id -> completion signal
}

// New constructs an Orchestrator. pdfSummarizer may be nil to skip PDF
// enrichment; c may be nil to use the always-available lexical
// classifier only.
func New(
	cfg Config,
	st store.Store,
	reg *registry.Registry,
	c classifier.Classifier,
	hub *streamhub.Hub,
	rep *reputation.Engine,
	kp *icrypto.KeyPair,
	pdfSummarizer PDFSummarizer,
	log *logging.Logger,
	m *metrics.Metrics,
) *Orchestrator {
	return &Orchestrator{
		cfg:           cfg,
		store:         st,
		registry:      reg,
		classifier:    c,
		streamHub:     hub,
		reputation:    rep,
		crypto:        kp,
		pdfSummarizer: pdfSummarizer,
		log:           log,
		metrics:       m,
		waiters:       make(map[string]chan outcome),
	}
}

// CreateTaskRequest is the input to CreateTask (§4.12, §6's submit).
type CreateTaskRequest struct {
	PrincipalID string
	Prompt      string
	Files       []task.File
	Mode        task.Mode
	Difficulty  *task.Difficulty // nil means "classify"
	Streaming   bool
}

// CreateTaskResult mirrors §6's submit() response shape.
type CreateTaskResult struct {
	TaskID        string
	Status        task.Status
	SubtasksTotal int
	CreatedAt     time.Time
}

// CreateTask implements §4.12: it persists the Task synchronously and
// runs the rest of the lifecycle in the background, returning as soon
// as the Task row (and, if streaming, its StreamSession) exist.
func (o *Orchestrator) CreateTask(ctx context.Context, req CreateTaskRequest) (CreateTaskResult, error) {
	pre := o.preprocessFiles(ctx, req.Prompt, req.Files)

	now := time.Now()
	t := task.Task{
		ID:             uuid.New().String(),
		PrincipalID:    req.PrincipalID,
		Mode:           req.Mode,
		OriginalPrompt: req.Prompt,
		HasFiles:       len(req.Files) > 0,
		Streaming:      req.Streaming,
		CreatedAt:      now,
	}

	difficulty := task.DifficultySimple
	if req.Difficulty != nil {
		difficulty = *req.Difficulty
	}
	if pre.forceAdvanced {
		difficulty = task.DifficultyAdvanced
	}
	t.Difficulty = difficulty

	if pre.failMessage != "" {
		t.Status = task.StatusFailed
		t.FinalResponse = pre.failMessage
		completedAt := now
		t.CompletedAt = &completedAt
		if err := o.store.CreateTask(ctx, t); err != nil {
			return CreateTaskResult{}, err
		}
		if req.Streaming {
			o.streamHub.Create(t.ID)
			o.streamHub.Complete(t.ID, "", pre.failMessage)
		}
		return CreateTaskResult{TaskID: t.ID, Status: t.Status, CreatedAt: now}, nil
	}

	t.Status = task.StatusPending
	if err := o.store.CreateTask(ctx, t); err != nil {
		return CreateTaskResult{}, err
	}
	if req.Streaming {
		o.streamHub.Create(t.ID)
	}
	if o.metrics != nil {
		o.metrics.RecordTaskSubmitted(string(req.Mode))
	}

	go o.runTask(context.Background(), t, pre, req.Difficulty != nil)

	return CreateTaskResult{TaskID: t.ID, Status: t.Status, CreatedAt: now}, nil
}

// runTask drives §4.12 step 3: classify, divide, assign, await,
// aggregate, finalize. It recovers from panics so a single task's
// background failure never brings down the coordinator (§7).
func (o *Orchestrator) runTask(ctx context.Context, t task.Task, pre preprocessResult, explicitDifficulty bool) {
	defer func() {
		if r := recover(); r != nil {
			o.log.LogTaskEvent(ctx, "task_panicked", t.ID, map[string]interface{}{"recover": r})
			_ = o.store.UpdateTaskStatus(ctx, t.ID, task.StatusFailed, "internal error", ptrTime(time.Now()))
			if t.Streaming {
				o.streamHub.Complete(t.ID, "", "internal error")
			}
		}
	}()

	start := time.Now()
	ctx = logging.WithTaskID(ctx, t.ID)

	if err := o.store.UpdateTaskStatus(ctx, t.ID, task.StatusProcessing, "", nil); err != nil {
		o.log.LogTaskEvent(ctx, "task_status_update_failed", t.ID, map[string]interface{}{"error": err.Error()})
		return
	}

	prompts := divider.Divide(pre.enrichedPrompt, t.Mode)

	var explicit *task.Difficulty
	if explicitDifficulty {
		d := t.Difficulty
		explicit = &d
	}
	difficulty := t.Difficulty
	if !pre.forceAdvanced {
		difficulty = classifier.Classify(ctx, o.classifier, pre.enrichedPrompt, explicit)
	}

	subtasks := make([]task.Subtask, len(prompts))
	for i, p := range prompts {
		subtasks[i] = task.Subtask{
			ID:     uuid.New().String(),
			TaskID: t.ID,
			Prompt: p,
			Status: task.SubtaskPending,
		}
	}
	if err := o.store.CreateSubtasks(ctx, subtasks); err != nil {
		o.log.LogTaskEvent(ctx, "subtask_persist_failed", t.ID, map[string]interface{}{"error": err.Error()})
		return
	}

	var wg sync.WaitGroup
	results := make([]task.Subtask, len(subtasks))
	for i, st := range subtasks {
		wg.Add(1)
		go func(i int, st task.Subtask) {
			defer wg.Done()
			results[i] = o.orchestrateSubtask(ctx, t, st, difficulty, pre.requireVision)
		}(i, st)
	}
	wg.Wait()

	completed := make([]task.Subtask, 0, len(results))
	for _, st := range results {
		if st.Status == task.SubtaskCompleted {
			completed = append(completed, st)
		}
	}

	finalResponse := aggregator.Aggregate(t.Mode, t.OriginalPrompt, completed)

	status := task.StatusFailed
	switch {
	case len(completed) == len(results) && len(results) > 0:
		status = task.StatusCompleted
	case len(completed) > 0:
		status = task.StatusPartial
	}

	completedAt := time.Now()
	if err := o.store.UpdateTaskStatus(ctx, t.ID, status, finalResponse, &completedAt); err != nil {
		o.log.LogTaskEvent(ctx, "task_finalize_failed", t.ID, map[string]interface{}{"error": err.Error()})
	}
	if t.Streaming {
		if status == task.StatusFailed {
			o.streamHub.Complete(t.ID, "", "task failed")
		} else {
			o.streamHub.Complete(t.ID, finalResponse, "")
		}
	}
	if o.metrics != nil {
		o.metrics.RecordTaskTerminal(string(t.Mode), string(difficulty), string(status), time.Since(start))
	}
	o.log.LogTaskEvent(ctx, "task_finalized", t.ID, map[string]interface{}{"status": string(status)})
}

// orchestrateSubtask implements §4.13/§4.14 for a single subtask:
// assignment with retry, await with one reassignment on timeout.
func (o *Orchestrator) orchestrateSubtask(ctx context.Context, t task.Task, st task.Subtask, difficulty task.Difficulty, requireVision bool) task.Subtask {
	exclude := make(map[string]struct{})

	nodeID, assignErr := o.assignWithRetry(ctx, t.ID, st, difficulty, requireVision, exclude, t.Streaming)
	if assignErr != nil {
		return o.markSubtaskFailed(ctx, st)
	}

	timeout := o.cfg.timeoutFor(difficulty)
	st.NodeID = nodeID
	result, timedOut := o.awaitOutcome(ctx, st.ID, timeout)
	if timedOut {
		o.registry.Breaker(nodeID).RecordFailure()
		o.registry.IncrLoad(nodeID, -1)

		exclude[nodeID] = struct{}{}
		reassignTimeout := timeout / 2
		if reassignTimeout < 30*time.Second {
			reassignTimeout = 30 * time.Second
		}

		newNodeID, sent := o.trySelectAndSend(ctx, t.ID, st, difficulty, requireVision, exclude, t.Streaming)
		if sent {
			st.NodeID = newNodeID
			result, timedOut = o.awaitOutcome(ctx, st.ID, reassignTimeout)
		}
		if timedOut || !sent {
			return o.markSubtaskTimeout(ctx, st)
		}
	}

	if !result.completed {
		return o.markSubtaskFailed(ctx, st)
	}

	st.Response = result.response
	st.ExecutionTimeMs = result.executionTimeMs
	st.Status = task.SubtaskCompleted
	now := time.Now()
	st.CompletedAt = &now
	if err := o.store.UpdateSubtask(ctx, st); err != nil {
		o.log.LogTaskEvent(ctx, "subtask_persist_failed", t.ID, map[string]interface{}{"subtask_id": st.ID, "error": err.Error()})
	}
	return st
}

func (o *Orchestrator) markSubtaskFailed(ctx context.Context, st task.Subtask) task.Subtask {
	st.Status = task.SubtaskFailed
	now := time.Now()
	st.CompletedAt = &now
	_ = o.store.UpdateSubtask(ctx, st)
	return st
}

func (o *Orchestrator) markSubtaskTimeout(ctx context.Context, st task.Subtask) task.Subtask {
	st.Status = task.SubtaskTimeout
	now := time.Now()
	st.CompletedAt = &now
	_ = o.store.UpdateSubtask(ctx, st)
	if o.metrics != nil {
		o.metrics.SubtaskTimeouts.Inc()
	}
	return st
}

// awaitOutcome blocks on subtaskID's completion signal for at most
// timeout, returning (zero outcome, true) on expiry.
func (o *Orchestrator) awaitOutcome(ctx context.Context, subtaskID string, timeout time.Duration) (outcome, bool) {
	ch := o.registerWaiter(subtaskID)
	defer o.removeWaiter(subtaskID)

	select {
	case result := <-ch:
		return result, false
	case <-time.After(timeout):
		return outcome{}, true
	case <-ctx.Done():
		return outcome{}, true
	}
}

func (o *Orchestrator) registerWaiter(subtaskID string) chan outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	ch := make(chan outcome, 1)
	o.waiters[subtaskID] = ch
	return ch
}

func (o *Orchestrator) removeWaiter(subtaskID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.waiters, subtaskID)
}

func (o *Orchestrator) signal(subtaskID string, result outcome) {
	o.mu.Lock()
	ch, ok := o.waiters[subtaskID]
	o.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- result:
	default:
	}
}

// retryBackoff implements §4.13's RETRY_BASE * 2^attempt using the
// shared resilience package's formula, without reusing Retry itself
// since each attempt here is a Select+send, not a single fallible call.
func (o *Orchestrator) retryBackoff(ctx context.Context, attempt int) {
	cfg := resilience.AssignmentRetryConfig(o.cfg.RetryBase, o.cfg.MaxRetries)
	delay := cfg.InitialDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
			break
		}
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}

var errNoCapableWorker = ierrors.NoCapableWorker("no online worker matched the request")

func ptrTime(t time.Time) *time.Time { return &t }
