// Package memory is an in-memory implementation of store.Store, safe
// for concurrent use. It mirrors the teacher's pkg/storage/memory
// package: one guarding mutex, one map per entity, values returned by
// copy. The copies are shallow: slice fields such as a node's public
// key share their backing array with the stored value.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iris-network/coordinator/domain/account"
	"github.com/iris-network/coordinator/domain/node"
	"github.com/iris-network/coordinator/domain/task"
	"github.com/iris-network/coordinator/infrastructure/enroll"
	ierrors "github.com/iris-network/coordinator/infrastructure/errors"
)

// Store is the in-memory persistence backend.
type Store struct {
	mu sync.RWMutex

	accountsByID      map[string]account.Account
	accountsByKeyHash map[string]string // keyHash -> id

	nodes map[string]node.Node

	tasks    map[string]task.Task
	subtasks map[string]task.Subtask
	// taskSubtasks preserves insertion order of subtask IDs per task.
	taskSubtasks map[string][]string

	tokens map[string]enroll.Record
}

// New constructs an empty in-memory Store.
func New() *Store {
	return &Store{
		accountsByID:      make(map[string]account.Account),
		accountsByKeyHash: make(map[string]string),
		nodes:             make(map[string]node.Node),
		tasks:             make(map[string]task.Task),
		subtasks:          make(map[string]task.Subtask),
		taskSubtasks:      make(map[string][]string),
		tokens:            make(map[string]enroll.Record),
	}
}

// Accounts

func (s *Store) CreateAccount(_ context.Context, a account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accountsByKeyHash[a.KeyHash]; exists {
		return ierrors.New(ierrors.CodeInvalidFormat, "account key already registered", 409)
	}
	s.accountsByID[a.ID] = a
	s.accountsByKeyHash[a.KeyHash] = a.ID
	return nil
}

func (s *Store) AccountByKeyHash(_ context.Context, keyHash string) (account.Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.accountsByKeyHash[keyHash]
	if !ok {
		return account.Account{}, false, nil
	}
	a, ok := s.accountsByID[id]
	return a, ok, nil
}

func (s *Store) AccountByID(_ context.Context, id string) (account.Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accountsByID[id]
	return a, ok, nil
}

func (s *Store) TouchLastActivity(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accountsByID[id]
	if !ok {
		return ierrors.NotFound("account", id)
	}
	a.LastActivityAt = at
	s.accountsByID[id] = a
	return nil
}

func (s *Store) SetAccountStatus(_ context.Context, id string, status account.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accountsByID[id]
	if !ok {
		return ierrors.NotFound("account", id)
	}
	a.Status = status
	s.accountsByID[id] = a
	return nil
}

// Nodes

func (s *Store) UpsertNode(_ context.Context, n node.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[n.ID] = n
	return nil
}

func (s *Store) NodeByID(_ context.Context, id string) (node.Node, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	return n, ok, nil
}

func (s *Store) AllNodes(_ context.Context) ([]node.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]node.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	return out, nil
}

func (s *Store) UpdateReputation(_ context.Context, nodeID string, reputation float64, tasksCompletedDelta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[nodeID]
	if !ok {
		return ierrors.NotFound("node", nodeID)
	}
	n.Reputation = reputation
	n.TasksCompleted += tasksCompletedDelta
	s.nodes[nodeID] = n
	return nil
}

func (s *Store) Leaderboard(_ context.Context, limit int) ([]node.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]node.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reputation > out[j].Reputation })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Tasks

func (s *Store) CreateTask(_ context.Context, t task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
	return nil
}

func (s *Store) TaskByID(_ context.Context, id string) (task.Task, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok, nil
}

func (s *Store) UpdateTaskStatus(_ context.Context, id string, status task.Status, finalResponse string, completedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ierrors.NotFound("task", id)
	}
	t.Status = status
	if finalResponse != "" {
		t.FinalResponse = finalResponse
	}
	t.CompletedAt = completedAt
	s.tasks[id] = t
	return nil
}

// Subtasks

func (s *Store) CreateSubtasks(_ context.Context, subtasks []task.Subtask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range subtasks {
		s.subtasks[st.ID] = st
		s.taskSubtasks[st.TaskID] = append(s.taskSubtasks[st.TaskID], st.ID)
	}
	return nil
}

func (s *Store) SubtasksByTaskID(_ context.Context, taskID string) ([]task.Subtask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.taskSubtasks[taskID]
	out := make([]task.Subtask, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subtasks[id])
	}
	return out, nil
}

func (s *Store) SubtaskByID(_ context.Context, id string) (task.Subtask, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.subtasks[id]
	return st, ok, nil
}

func (s *Store) UpdateSubtask(_ context.Context, st task.Subtask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subtasks[st.ID]; !ok {
		return ierrors.NotFound("subtask", st.ID)
	}
	s.subtasks[st.ID] = st
	return nil
}

// ReputationEvents

func (s *Store) AppendReputationEvent(_ context.Context, nodeID string, delta float64, reason string, at time.Time) error {
	// The event log itself is append-only and, for the in-memory
	// backend, not queried back (only the Node's running reputation
	// is read); we still validate the node exists to catch bugs early.
	s.mu.RLock()
	_, ok := s.nodes[nodeID]
	s.mu.RUnlock()
	if !ok {
		return ierrors.NotFound("node", nodeID)
	}
	return nil
}

// EnrollmentTokens

func (s *Store) SaveToken(_ context.Context, rec enroll.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[rec.ID] = rec
	return nil
}

func (s *Store) ConsumeToken(_ context.Context, tokenID, nodeID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tokens[tokenID]
	if !ok || rec.Revoked || rec.UsedAt != nil {
		return false, nil
	}
	rec.UsedAt = &at
	rec.UsedByNodeID = nodeID
	s.tokens[tokenID] = rec
	return true, nil
}

func (s *Store) TokenByID(_ context.Context, tokenID string) (enroll.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tokens[tokenID]
	return rec, ok, nil
}

func (s *Store) ListTokens(_ context.Context, includeUsed, includeRevoked bool) ([]enroll.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]enroll.Record, 0, len(s.tokens))
	for _, rec := range s.tokens {
		if !includeUsed && rec.UsedAt != nil {
			continue
		}
		if !includeRevoked && rec.Revoked {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) RevokeToken(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tokens[tokenID]
	if !ok {
		return false, nil
	}
	rec.Revoked = true
	s.tokens[tokenID] = rec
	return true, nil
}
