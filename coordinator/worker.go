package coordinator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iris-network/coordinator/infrastructure/logging"
	"github.com/iris-network/coordinator/protocol"
	"github.com/iris-network/coordinator/registry"
)

// upgrader accepts any origin: the worker surface is not a browser
// client and carries its own account-key/enrollment-token
// authentication in the first frame.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWorkerSocket upgrades the connection and runs one worker's
// entire lifetime: authenticate via NODE_REGISTER, then dispatch every
// subsequent frame until the socket closes (§4.4, §5 — one connection
// handler goroutine per worker).
func (c *Coordinator) handleWorkerSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.WithFields(map[string]interface{}{"error": err.Error()}).Warn("worker websocket upgrade failed")
		return
	}
	defer ws.Close()

	ctx := r.Context()

	nodeID, conn, ok := c.registerWorker(ctx, ws)
	if !ok {
		return
	}
	defer c.registry.Disconnect(ctx, nodeID)
	ctx = logging.WithNodeID(ctx, nodeID)

	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			return
		}
		c.dispatchWorkerFrame(ctx, nodeID, frame)
	}
}

// registerWorker reads and authenticates the mandatory first
// NODE_REGISTER frame, replying REGISTER_ACK. Returns ok=false if the
// connection should be torn down (auth failure or malformed frame).
func (c *Coordinator) registerWorker(ctx context.Context, ws *websocket.Conn) (string, *protocol.Conn, bool) {
	_, body, err := ws.ReadMessage()
	if err != nil {
		return "", nil, false
	}
	var frame protocol.Frame
	if err := json.Unmarshal(body, &frame); err != nil {
		return "", nil, false
	}
	if frame.Type != protocol.TypeNodeRegister {
		_ = writeRaw(ws, protocol.TypeError, protocol.ErrorPayload{Code: "PROTOCOL", Message: "expected NODE_REGISTER"})
		return "", nil, false
	}

	var payload protocol.NodeRegisterPayload
	if err := protocol.Decode(frame, &payload); err != nil {
		_ = writeRaw(ws, protocol.TypeRegisterAck, protocol.RegisterAckPayload{Success: false, Message: "malformed registration payload"})
		return "", nil, false
	}

	accountID, authErr := c.authenticateNode(ctx, payload)
	if authErr != nil {
		_ = writeRaw(ws, protocol.TypeRegisterAck, protocol.RegisterAckPayload{Success: false, Message: authErr.Error()})
		return "", nil, false
	}

	pub, err := base64.StdEncoding.DecodeString(payload.PublicKey)
	if err != nil {
		_ = writeRaw(ws, protocol.TypeRegisterAck, protocol.RegisterAckPayload{Success: false, Message: "invalid public_key encoding"})
		return "", nil, false
	}

	conn := protocol.NewConn(ws, payload.NodeID)
	_, err = c.registry.Register(ctx, registry.Registration{
		NodeID:          payload.NodeID,
		AccountID:       accountID,
		PublicKey:       pub,
		ModelName:       payload.ModelName,
		MaxContext:      payload.MaxContext,
		VRAMGB:          payload.VRAMGB,
		GPUName:         payload.GPUName,
		ModelParamsB:    payload.ModelParamsB,
		Quant:           payload.Quant,
		TokensPerSecond: payload.TokensPerSecond,
		SupportsVision:  payload.SupportsVision,
	}, conn)
	if err != nil {
		_ = writeRaw(ws, protocol.TypeRegisterAck, protocol.RegisterAckPayload{Success: false, Message: "registration failed"})
		return "", nil, false
	}

	ack := protocol.RegisterAckPayload{
		Success:           true,
		CoordinatorPublic: base64.StdEncoding.EncodeToString(c.crypto.Public[:]),
	}
	if err := conn.Send(string(protocol.TypeRegisterAck), ack); err != nil {
		return "", nil, false
	}
	return payload.NodeID, conn, true
}

// authenticateNode implements §4.4 step 1: an account_key must verify
// to an active account; absent that, a presented enrollment token must
// be valid and unused. Neither present (or both invalid) is rejected.
func (c *Coordinator) authenticateNode(ctx context.Context, payload protocol.NodeRegisterPayload) (accountID string, err error) {
	if payload.AccountKey != "" {
		acct, verr := c.accounts.Verify(ctx, payload.AccountKey)
		if verr != nil {
			return "", verr
		}
		return acct.ID, nil
	}

	if payload.EnrollmentToken != "" && c.enroll != nil {
		tokenPayload, perr := c.enroll.Parse(payload.EnrollmentToken)
		if perr != nil {
			return "", perr
		}
		rec, found, serr := c.store.TokenByID(ctx, tokenPayload.ID)
		if serr != nil {
			return "", serr
		}
		if !found || rec.Revoked || rec.UsedAt != nil {
			return "", errInvalidToken
		}
		consumed, cerr := c.store.ConsumeToken(ctx, tokenPayload.ID, payload.NodeID, time.Now())
		if cerr != nil {
			return "", cerr
		}
		if !consumed {
			return "", errInvalidToken
		}
		return "", nil
	}

	return "", errNoCredentials
}

type protocolAuthError string

func (e protocolAuthError) Error() string { return string(e) }

var (
	errNoCredentials = protocolAuthError("no account_key or enrollment_token presented")
	errInvalidToken  = protocolAuthError("enrollment token is invalid, used, or revoked")
)

// dispatchWorkerFrame routes one post-registration frame to the
// collaborator that owns its semantics (§4.15, §4.4's heartbeat).
func (c *Coordinator) dispatchWorkerFrame(ctx context.Context, nodeID string, frame protocol.Frame) {
	switch frame.Type {
	case protocol.TypeHeartbeat:
		var hb protocol.HeartbeatPayload
		if err := protocol.Decode(frame, &hb); err != nil {
			return
		}
		if err := c.registry.Heartbeat(ctx, registry.Heartbeat{
			NodeID:          nodeID,
			CurrentLoad:     hb.CurrentLoad,
			SentAt:          hb.SentAt,
			TokensPerSecond: hb.TokensPerSecond,
		}); err == nil {
			if c.metrics != nil {
				c.metrics.NodeHeartbeatsTotal.Inc()
			}
			if cn, ok := c.registry.Connected(nodeID); ok {
				_ = cn.Channel.Send(string(protocol.TypeHeartbeatAck), protocol.HeartbeatAckPayload{})
			}
		}

	case protocol.TypeTaskResult:
		var msg protocol.TaskResultPayload
		if err := protocol.Decode(frame, &msg); err != nil {
			return
		}
		_ = c.orch.HandleTaskResult(ctx, nodeID, msg)

	case protocol.TypeTaskStream:
		var msg protocol.TaskStreamPayload
		if err := protocol.Decode(frame, &msg); err != nil {
			return
		}
		_ = c.orch.HandleTaskStream(ctx, nodeID, msg)

	case protocol.TypeTaskError:
		var msg protocol.TaskErrorPayload
		if err := protocol.Decode(frame, &msg); err != nil {
			return
		}
		_ = c.orch.HandleTaskError(ctx, nodeID, msg)

	case protocol.TypeDisconnect:
		return

	default:
		c.log.WithFields(map[string]interface{}{"node_id": nodeID, "frame_type": string(frame.Type)}).Warn("unhandled worker frame type")
	}
}

func writeRaw(ws *websocket.Conn, frameType protocol.Type, payload interface{}) error {
	frame, err := protocol.Encode(frameType, payload)
	if err != nil {
		return err
	}
	body, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return ws.WriteMessage(websocket.TextMessage, body)
}
