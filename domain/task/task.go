// Package task defines the Task and Subtask entities, their modes and
// lifecycle statuses.
package task

import "time"

// Mode selects how a prompt is divided and later aggregated.
type Mode string

const (
	ModeSubtasks  Mode = "subtasks"
	ModeConsensus Mode = "consensus"
	ModeContext   Mode = "context"
)

// Difficulty classifies a prompt (or an explicit caller override) into
// a worker-timeout and tier-matching bucket.
type Difficulty string

const (
	DifficultySimple   Difficulty = "simple"
	DifficultyComplex  Difficulty = "complex"
	DifficultyAdvanced Difficulty = "advanced"
)

// Status is a Task's lifecycle state. Transitions are strictly
// forward: Pending -> Processing -> (Completed | Failed | Partial).
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusPartial    Status = "partial"
)

// SubtaskStatus is a Subtask's lifecycle state. Terminal statuses are
// monotone; Response is populated iff Completed.
type SubtaskStatus string

const (
	SubtaskPending   SubtaskStatus = "pending"
	SubtaskAssigned  SubtaskStatus = "assigned"
	SubtaskCompleted SubtaskStatus = "completed"
	SubtaskFailed    SubtaskStatus = "failed"
	SubtaskTimeout   SubtaskStatus = "timeout"
)

// IsTerminal reports whether s is one of the terminal Subtask statuses.
func (s SubtaskStatus) IsTerminal() bool {
	switch s {
	case SubtaskCompleted, SubtaskFailed, SubtaskTimeout:
		return true
	default:
		return false
	}
}

// File is a client-attached input. PDFs are summarized before
// dividing; images are retained and force vision-capable routing.
type File struct {
	Name string
	Kind FileKind
	Data []byte
}

// FileKind discriminates the two file categories the orchestrator
// treats specially.
type FileKind string

const (
	FileKindPDF   FileKind = "pdf"
	FileKindImage FileKind = "image"
	FileKindOther FileKind = "other"
)

// Task is the persisted record of a client's inference request.
type Task struct {
	ID             string
	PrincipalID    string
	Mode           Mode
	Difficulty     Difficulty
	OriginalPrompt string
	FinalResponse  string
	Status         Status
	HasFiles       bool
	Streaming      bool
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// Subtask is one independent unit of work derived from a Task.
type Subtask struct {
	ID               string
	TaskID           string
	NodeID           string
	Prompt           string
	Response         string
	Status           SubtaskStatus
	AssignedAt       *time.Time
	CompletedAt      *time.Time
	ExecutionTimeMs  int64
}
