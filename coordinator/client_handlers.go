package coordinator

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iris-network/coordinator/domain/stream"
	"github.com/iris-network/coordinator/domain/task"
	ierrors "github.com/iris-network/coordinator/infrastructure/errors"
	"github.com/iris-network/coordinator/infrastructure/httputil"
	"github.com/iris-network/coordinator/orchestrator"
)

// principalHeader carries the caller's opaque principal id; the core
// does not authenticate it, it only checks it matches the task's owner
// on every subsequent read (§6, §7).
const principalHeader = "X-Principal-ID"

// submitFileRequest is the wire shape of one attached file on submit.
type submitFileRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Data string `json:"data"` // base64
}

type submitRequest struct {
	Prompt     string              `json:"prompt"`
	Files      []submitFileRequest `json:"files,omitempty"`
	Mode       string              `json:"mode"`
	Difficulty string              `json:"difficulty,omitempty"`
	Streaming  bool                `json:"streaming,omitempty"`
}

type submitResponse struct {
	TaskID        string `json:"task_id"`
	Status        string `json:"status"`
	SubtasksTotal int    `json:"subtasks_total"`
	CreatedAt     string `json:"created_at"`
}

// handleSubmitTask implements §6's submit().
func (c *Coordinator) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	principalID := r.Header.Get(principalHeader)
	if principalID == "" {
		httputil.WriteError(w, r, ierrors.Unauthorized("missing "+principalHeader))
		return
	}

	var req submitRequest
	if err := httputil.ParseJSONBody(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if req.Prompt == "" {
		httputil.WriteError(w, r, ierrors.InvalidFormat("prompt", "must not be empty"))
		return
	}

	mode := task.Mode(req.Mode)
	switch mode {
	case task.ModeSubtasks, task.ModeConsensus, task.ModeContext:
	default:
		httputil.WriteError(w, r, ierrors.InvalidFormat("mode", fmt.Sprintf("unknown mode %q", req.Mode)))
		return
	}

	var difficulty *task.Difficulty
	if req.Difficulty != "" {
		d := task.Difficulty(req.Difficulty)
		switch d {
		case task.DifficultySimple, task.DifficultyComplex, task.DifficultyAdvanced:
			difficulty = &d
		default:
			httputil.WriteError(w, r, ierrors.InvalidFormat("difficulty", fmt.Sprintf("unknown difficulty %q", req.Difficulty)))
			return
		}
	}

	files := make([]task.File, 0, len(req.Files))
	for _, f := range req.Files {
		data, err := base64.StdEncoding.DecodeString(f.Data)
		if err != nil {
			httputil.WriteError(w, r, ierrors.InvalidFormat("files.data", "must be base64"))
			return
		}
		kind := task.FileKindOther
		switch f.Kind {
		case string(task.FileKindPDF):
			kind = task.FileKindPDF
		case string(task.FileKindImage):
			kind = task.FileKindImage
		}
		files = append(files, task.File{Name: f.Name, Kind: kind, Data: data})
	}

	result, err := c.orch.CreateTask(r.Context(), orchestrator.CreateTaskRequest{
		PrincipalID: principalID,
		Prompt:      req.Prompt,
		Files:       files,
		Mode:        mode,
		Difficulty:  difficulty,
		Streaming:   req.Streaming,
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, submitResponse{
		TaskID:        result.TaskID,
		Status:        string(result.Status),
		SubtasksTotal: result.SubtasksTotal,
		CreatedAt:     result.CreatedAt.Format(rfc3339Milli),
	})
}

const rfc3339Milli = "2006-01-02T15:04:05.000Z07:00"

type getTaskResponse struct {
	Status            string  `json:"status"`
	FinalResponse     string  `json:"final_response,omitempty"`
	SubtasksCompleted int     `json:"subtasks_completed"`
	SubtasksTotal     int     `json:"subtasks_total"`
	CreatedAt         string  `json:"created_at"`
	CompletedAt       *string `json:"completed_at,omitempty"`
}

// handleGetTask implements §6's get_task(), rejecting principal
// mismatches with Forbidden.
func (c *Coordinator) handleGetTask(w http.ResponseWriter, r *http.Request) {
	principalID := r.Header.Get(principalHeader)
	taskID := mux.Vars(r)["task_id"]

	t, ok, err := c.store.TaskByID(r.Context(), taskID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if !ok {
		httputil.WriteError(w, r, ierrors.NotFound("task", taskID))
		return
	}
	if t.PrincipalID != principalID {
		httputil.WriteError(w, r, ierrors.Forbidden("principal does not own this task"))
		return
	}

	subtasks, err := c.store.SubtasksByTaskID(r.Context(), taskID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	completed := 0
	for _, st := range subtasks {
		if st.Status == task.SubtaskCompleted {
			completed++
		}
	}

	resp := getTaskResponse{
		Status:            string(t.Status),
		FinalResponse:     t.FinalResponse,
		SubtasksCompleted: completed,
		SubtasksTotal:     len(subtasks),
		CreatedAt:         t.CreatedAt.Format(rfc3339Milli),
	}
	if t.CompletedAt != nil {
		formatted := t.CompletedAt.Format(rfc3339Milli)
		resp.CompletedAt = &formatted
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleSubscribeStream implements §6's subscribe_stream() as a
// server-sent-events feed, ending at the done/error terminal sentinel
// (I6).
func (c *Coordinator) handleSubscribeStream(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]

	ch, ok := c.streamHub.Subscribe(taskID)
	if !ok {
		httputil.WriteError(w, r, ierrors.NotFound("stream session", taskID))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, r, ierrors.Internal("streaming unsupported by this response writer", nil))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, open := <-ch:
			if !open {
				return
			}
			body, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", chunk.Kind, body)
			flusher.Flush()
			if chunk.Kind != stream.ChunkData {
				return
			}
		}
	}
}
