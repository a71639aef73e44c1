package protocol

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds how long a single frame write may block before the
// connection is considered dead.
const writeWait = 10 * time.Second

// Conn wraps a gorilla/websocket connection as a framed, thread-safe
// send surface, implementing domain/node.Channel. Reads are not
// serialized here: a single reader goroutine per connection is assumed
// by the caller, matching §5's "one connection handler per worker".
type Conn struct {
	ws       *websocket.Conn
	remoteID string

	writeMu sync.Mutex
	closed  bool
}

// NewConn wraps an established websocket connection for nodeID.
func NewConn(ws *websocket.Conn, nodeID string) *Conn {
	return &Conn{ws: ws, remoteID: nodeID}
}

// RemoteID returns the node_id this connection authenticated as.
func (c *Conn) RemoteID() string { return c.remoteID }

// Send encodes payload as a frame of the given type and writes it as a
// single text message, serialized against concurrent writers.
func (c *Conn) Send(frameType string, payload any) error {
	frame, err := Encode(Type(frameType), payload)
	if err != nil {
		return fmt.Errorf("encode frame %s: %w", frameType, err)
	}

	body, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame %s: %w", frameType, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return fmt.Errorf("connection to %s is closed", c.remoteID)
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, body)
}

// ReadFrame blocks for the next frame, decoding the envelope only; the
// caller is responsible for Decode-ing the typed payload.
func (c *Conn) ReadFrame() (Frame, error) {
	_, body, err := c.ws.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	var frame Frame
	if err := json.Unmarshal(body, &frame); err != nil {
		return Frame{}, fmt.Errorf("unmarshal frame: %w", err)
	}
	return frame, nil
}

// Close closes the underlying websocket connection.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ws.Close()
}
