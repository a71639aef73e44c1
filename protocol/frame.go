// Package protocol defines the worker-facing framed wire protocol
// (§4.2, §6): frame types, typed payloads, and a JSON codec.
package protocol

import (
	"encoding/json"
	"time"
)

// Type is one of the frame types exchanged between a worker and the
// coordinator.
type Type string

const (
	TypeNodeRegister Type = "NODE_REGISTER"
	TypeRegisterAck  Type = "REGISTER_ACK"
	TypeHeartbeat    Type = "HEARTBEAT"
	TypeHeartbeatAck Type = "HEARTBEAT_ACK"
	TypeTaskAssign   Type = "TASK_ASSIGN"
	TypeTaskResult   Type = "TASK_RESULT"
	TypeTaskError    Type = "TASK_ERROR"
	TypeTaskStream   Type = "TASK_STREAM"
	TypeDisconnect   Type = "DISCONNECT"
	TypeError        Type = "ERROR"
)

// Frame is the envelope every message is wrapped in: {type, payload,
// ts, signature?}.
type Frame struct {
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"ts"`
	Signature string          `json:"signature,omitempty"`
}

// Encode marshals a typed payload into a Frame ready to send.
func Encode(frameType Type, payload interface{}) (Frame, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: frameType, Payload: body, Timestamp: time.Now()}, nil
}

// Decode unmarshals a Frame's payload into dst.
func Decode(f Frame, dst interface{}) error {
	return json.Unmarshal(f.Payload, dst)
}

// NodeRegisterPayload (W->C): a worker's registration request.
type NodeRegisterPayload struct {
	NodeID          string  `json:"node_id"`
	AccountKey      string  `json:"account_key,omitempty"`
	EnrollmentToken string  `json:"enrollment_token,omitempty"`
	PublicKey       string  `json:"public_key"` // base64
	ModelName       string  `json:"model_name"`
	MaxContext      int     `json:"max_context"`
	VRAMGB          float64 `json:"vram_gb"`
	GPUName         string  `json:"gpu_name"`
	ModelParamsB    float64 `json:"model_params_b"`
	Quant           string  `json:"quant"`
	TokensPerSecond float64 `json:"tokens_per_second"`
	SupportsVision  bool    `json:"supports_vision"`
}

// RegisterAckPayload (C->W).
type RegisterAckPayload struct {
	Success           bool   `json:"success"`
	CoordinatorPublic string `json:"coordinator_public_key,omitempty"`
	Message           string `json:"message,omitempty"`
}

// HeartbeatPayload (W->C).
type HeartbeatPayload struct {
	CurrentLoad     int       `json:"current_load"`
	UptimeS         int64     `json:"uptime_s"`
	SentAt          time.Time `json:"sent_at"`
	TokensPerSecond float64   `json:"tokens_per_second,omitempty"`
}

// HeartbeatAckPayload (C->W) carries no fields.
type HeartbeatAckPayload struct{}

// FilePayload is an attached file carried on TASK_ASSIGN.
type FilePayload struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Data string `json:"data"` // base64
}

// TaskAssignPayload (C->W).
type TaskAssignPayload struct {
	SubtaskID       string        `json:"subtask_id"`
	TaskID          string        `json:"task_id"`
	EncPrompt       string        `json:"enc_prompt"`
	TimeoutS        int           `json:"timeout_s"`
	EnableStreaming bool          `json:"enable_streaming"`
	Files           []FilePayload `json:"files,omitempty"`
}

// TaskStreamPayload (W->C).
type TaskStreamPayload struct {
	SubtaskID  string `json:"subtask_id"`
	TaskID     string `json:"task_id"`
	EncChunk   string `json:"enc_chunk"`
	ChunkIndex int    `json:"chunk_index"`
}

// TaskResultPayload (W->C).
type TaskResultPayload struct {
	SubtaskID       string `json:"subtask_id"`
	TaskID          string `json:"task_id"`
	EncResponse     string `json:"enc_response"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
}

// TaskErrorPayload (W->C).
type TaskErrorPayload struct {
	SubtaskID    string `json:"subtask_id"`
	TaskID       string `json:"task_id"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// DisconnectPayload (C->W): sent on graceful server shutdown.
type DisconnectPayload struct {
	Reason string `json:"reason,omitempty"`
}

// ErrorPayload is a generic protocol-level error frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
