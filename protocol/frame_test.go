package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := HeartbeatPayload{CurrentLoad: 3, UptimeS: 120, TokensPerSecond: 42.5}

	frame, err := Encode(TypeHeartbeat, payload)
	require.NoError(t, err)
	assert.Equal(t, TypeHeartbeat, frame.Type)
	assert.False(t, frame.Timestamp.IsZero())

	var decoded HeartbeatPayload
	require.NoError(t, Decode(frame, &decoded))
	assert.Equal(t, payload, decoded)
}

func TestEncodeRejectsUnmarshalableValue(t *testing.T) {
	_, err := Encode(TypeHeartbeat, make(chan int))
	assert.Error(t, err)
}

func TestDecodeRejectsMismatchedPayload(t *testing.T) {
	frame, err := Encode(TypeTaskResult, TaskResultPayload{SubtaskID: "s1"})
	require.NoError(t, err)

	var dst struct {
		SubtaskID int `json:"subtask_id"`
	}
	assert.Error(t, Decode(frame, &dst))
}
