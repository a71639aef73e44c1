// Package store defines the coordinator's narrow persistence
// interfaces (§2.3). Any embedded KV/SQL engine can satisfy them; the
// in-memory implementation under store/memory is authoritative for
// tests and small deployments.
package store

import (
	"context"
	"time"

	"github.com/iris-network/coordinator/domain/account"
	"github.com/iris-network/coordinator/domain/node"
	"github.com/iris-network/coordinator/domain/task"
	"github.com/iris-network/coordinator/infrastructure/enroll"
)

// Accounts persists Account rows.
type Accounts interface {
	CreateAccount(ctx context.Context, a account.Account) error
	AccountByKeyHash(ctx context.Context, keyHash string) (account.Account, bool, error)
	AccountByID(ctx context.Context, id string) (account.Account, bool, error)
	TouchLastActivity(ctx context.Context, id string, at time.Time) error
	SetAccountStatus(ctx context.Context, id string, status account.Status) error
}

// Nodes persists Node rows (not ConnectedNode runtime state, which the
// registry owns exclusively in memory).
type Nodes interface {
	UpsertNode(ctx context.Context, n node.Node) error
	NodeByID(ctx context.Context, id string) (node.Node, bool, error)
	AllNodes(ctx context.Context) ([]node.Node, error)
	UpdateReputation(ctx context.Context, nodeID string, reputation float64, tasksCompletedDelta int) error
	Leaderboard(ctx context.Context, limit int) ([]node.Node, error)
}

// Tasks persists Task rows.
type Tasks interface {
	CreateTask(ctx context.Context, t task.Task) error
	TaskByID(ctx context.Context, id string) (task.Task, bool, error)
	UpdateTaskStatus(ctx context.Context, id string, status task.Status, finalResponse string, completedAt *time.Time) error
}

// Subtasks persists Subtask rows.
type Subtasks interface {
	CreateSubtasks(ctx context.Context, subtasks []task.Subtask) error
	SubtasksByTaskID(ctx context.Context, taskID string) ([]task.Subtask, error)
	SubtaskByID(ctx context.Context, id string) (task.Subtask, bool, error)
	UpdateSubtask(ctx context.Context, s task.Subtask) error
}

// ReputationEvents persists the append-only reputation event log.
type ReputationEvents interface {
	AppendReputationEvent(ctx context.Context, nodeID string, delta float64, reason string, at time.Time) error
}

// EnrollmentTokens persists minted enrollment tokens and their
// single-use consumption state.
type EnrollmentTokens interface {
	SaveToken(ctx context.Context, rec enroll.Record) error
	ConsumeToken(ctx context.Context, tokenID, nodeID string, at time.Time) (bool, error)
	TokenByID(ctx context.Context, tokenID string) (enroll.Record, bool, error)
	ListTokens(ctx context.Context, includeUsed, includeRevoked bool) ([]enroll.Record, error)
	RevokeToken(ctx context.Context, tokenID string) (bool, error)
}

// Store is the full persistence surface the coordinator depends on.
type Store interface {
	Accounts
	Nodes
	Tasks
	Subtasks
	ReputationEvents
	EnrollmentTokens
}
