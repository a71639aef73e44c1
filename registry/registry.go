// Package registry implements the NodeRegistry: connected-worker
// tracking, liveness, tier scoring at registration, and SED+P2C worker
// selection (§4.4-§4.6).
package registry

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/iris-network/coordinator/domain/node"
	"github.com/iris-network/coordinator/domain/task"
	ierrors "github.com/iris-network/coordinator/infrastructure/errors"
	"github.com/iris-network/coordinator/infrastructure/logging"
	"github.com/iris-network/coordinator/infrastructure/metrics"
	"github.com/iris-network/coordinator/infrastructure/resilience"
	"github.com/iris-network/coordinator/store"
)

const onlineWindow = 90 * time.Second

// tierDifficultyMatrix is §4.6's M[tier, difficulty].
var tierDifficultyMatrix = map[node.Tier]map[task.Difficulty]float64{
	node.TierBasic:    {task.DifficultySimple: 1.0, task.DifficultyComplex: 0.6, task.DifficultyAdvanced: 0.2},
	node.TierStandard: {task.DifficultySimple: 0.8, task.DifficultyComplex: 1.0, task.DifficultyAdvanced: 0.7},
	node.TierPremium:  {task.DifficultySimple: 0.5, task.DifficultyComplex: 0.9, task.DifficultyAdvanced: 1.0},
}

// Registration is the input to Register, gathered from a NODE_REGISTER
// frame plus the authentication decision already made by the caller.
type Registration struct {
	NodeID          string
	AccountID       string // empty if registered via enrollment token
	PublicKey       []byte
	ModelName       string
	MaxContext      int
	VRAMGB          float64
	GPUName         string
	ModelParamsB    float64
	Quant           string
	TokensPerSecond float64
	SupportsVision  bool
}

// Heartbeat is the input to the Heartbeat operation.
type Heartbeat struct {
	NodeID          string
	CurrentLoad     int
	SentAt          time.Time
	TokensPerSecond float64 // 0 means "not provided"
}

// SelectRequest parameterizes worker selection (§4.6).
type SelectRequest struct {
	Difficulty    task.Difficulty
	N             int
	Exclude       map[string]struct{}
	RequireVision bool
}

// Registry tracks every ConnectedNode and its CircuitBreaker, and
// serializes state transitions per node_id.
type Registry struct {
	mu sync.Mutex

	conns    map[string]*node.ConnectedNode
	breakers map[string]*resilience.CircuitBreaker

	store store.Nodes
	log   *logging.Logger
	m     *metrics.Metrics
}

// New constructs an empty Registry backed by the given persistence. m
// may be nil, in which case every metrics call is a no-op.
func New(store store.Nodes, log *logging.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		conns:    make(map[string]*node.ConnectedNode),
		breakers: make(map[string]*resilience.CircuitBreaker),
		store:    store,
		log:      log,
		m:        m,
	}
}

// newBreaker builds a CircuitBreaker whose Open->HalfOpen->Closed
// recovery is reported on r.m.
func (r *Registry) newBreaker() *resilience.CircuitBreaker {
	cfg := resilience.DefaultConfig()
	cfg.OnStateChange = breakerOnStateChange(r.m)
	return resilience.New(cfg)
}

// breakerOnStateChange reports a half_open->closed transition as a
// circuit breaker recovery. Trips are recorded by the orchestrator at
// the send-failure call site, which already knows the node_id label.
func breakerOnStateChange(m *metrics.Metrics) func(from, to resilience.State) {
	return func(from, to resilience.State) {
		if to == resilience.StateClosed && m != nil {
			m.RecordCircuitBreakerRecovery()
		}
	}
}

// Register upserts a Node row from reg's capabilities, computes its
// tier, and attaches (or replaces) its live channel (§4.4 steps 2-4).
func (r *Registry) Register(ctx context.Context, reg Registration, channel node.Channel) (node.Node, error) {
	_, tier := node.ScoreTier(node.Capabilities{
		VRAMGB:          reg.VRAMGB,
		ModelParamsB:    reg.ModelParamsB,
		TokensPerSecond: reg.TokensPerSecond,
	})

	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, hadNode, err := r.store.NodeByID(ctx, reg.NodeID)
	if err != nil {
		return node.Node{}, err
	}

	n := node.Node{
		ID:              reg.NodeID,
		AccountID:       reg.AccountID,
		PublicKey:       reg.PublicKey,
		ModelName:       reg.ModelName,
		MaxContext:      reg.MaxContext,
		VRAMGB:          reg.VRAMGB,
		GPUName:         reg.GPUName,
		ModelParamsB:    reg.ModelParamsB,
		Quant:           reg.Quant,
		TokensPerSecond: reg.TokensPerSecond,
		Tier:            tier,
		SupportsVision:  reg.SupportsVision,
		Reputation:      node.MinReputation,
		CreatedAt:       now,
		LastSeenAt:      now,
	}
	if hadNode {
		n.Reputation = existing.Reputation
		n.TasksCompleted = existing.TasksCompleted
		n.CreatedAt = existing.CreatedAt
	}

	if err := r.store.UpsertNode(ctx, n); err != nil {
		return node.Node{}, err
	}

	if cn, reconnect := r.conns[reg.NodeID]; reconnect {
		cn.Node = n
		cn.Channel = channel
		cn.LastHeartbeat = now
		r.log.LogNodeEvent(ctx, "node_reconnected", reg.NodeID, nil)
	} else {
		r.conns[reg.NodeID] = &node.ConnectedNode{
			Node:          n,
			Channel:       channel,
			LastHeartbeat: now,
		}
		r.log.LogNodeEvent(ctx, "node_registered", reg.NodeID, map[string]interface{}{"tier": string(tier)})
		if r.m != nil {
			r.m.RecordNodeConnected(string(tier))
		}
	}
	if _, ok := r.breakers[reg.NodeID]; !ok {
		r.breakers[reg.NodeID] = r.newBreaker()
	}

	return n, nil
}

// Heartbeat updates load, latency EMA, and optionally tps for a
// connected node (§4.4).
func (r *Registry) Heartbeat(ctx context.Context, hb Heartbeat) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cn, ok := r.conns[hb.NodeID]
	if !ok {
		return ierrors.NotFound("node", hb.NodeID)
	}

	now := time.Now()
	cn.LastHeartbeat = now
	cn.CurrentLoad = hb.CurrentLoad

	latency := float64(now.Sub(hb.SentAt).Milliseconds())
	if latency < 0 {
		latency = 0
	}
	ema := 0.3*latency + 0.7*cn.LatencyMsEMA
	if ema < 0 {
		ema = 0
	}
	if ema > 5000 {
		ema = 5000
	}
	cn.LatencyMsEMA = ema

	if hb.TokensPerSecond > 0 {
		cn.TokensPerSecond = hb.TokensPerSecond
	}

	return nil
}

// Disconnect removes a node's live connection, implementing the
// channel-loss/DISCONNECT branch of §4.4's lifecycle.
func (r *Registry) Disconnect(ctx context.Context, nodeID string) {
	r.mu.Lock()
	cn, ok := r.conns[nodeID]
	delete(r.conns, nodeID)
	r.mu.Unlock()

	if ok && r.m != nil {
		r.m.RecordNodeDisconnected(string(cn.Tier))
	}
	r.log.LogNodeEvent(ctx, "node_disconnected", nodeID, nil)
}

// DisconnectAll sends a DISCONNECT frame to every connected worker and
// clears the connection table, used on graceful coordinator shutdown
// (§5). Send failures are logged and otherwise ignored: the process is
// going down regardless.
func (r *Registry) DisconnectAll(ctx context.Context) {
	r.mu.Lock()
	conns := make([]*node.ConnectedNode, 0, len(r.conns))
	for _, cn := range r.conns {
		conns = append(conns, cn)
	}
	r.conns = make(map[string]*node.ConnectedNode)
	r.mu.Unlock()

	if r.m != nil {
		for _, cn := range conns {
			r.m.RecordNodeDisconnected(string(cn.Tier))
		}
	}

	for _, cn := range conns {
		if err := cn.Channel.Send("DISCONNECT", struct {
			Reason string `json:"reason,omitempty"`
		}{Reason: "coordinator shutting down"}); err != nil {
			r.log.LogNodeEvent(ctx, "disconnect_send_failed", cn.ID, map[string]interface{}{"error": err.Error()})
		}
		_ = cn.Channel.Close()
	}
}

// Breaker returns the CircuitBreaker guarding nodeID, creating one if
// this is the first reference (e.g. during assignment retry bookkeeping
// after a connection has already been removed).
func (r *Registry) Breaker(nodeID string) *resilience.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[nodeID]
	if !ok {
		cb = r.newBreaker()
		r.breakers[nodeID] = cb
	}
	return cb
}

// IncrLoad adjusts a connected node's current_load counter by delta
// (negative to decrease, clamped at zero), used around assignment and
// completion.
func (r *Registry) IncrLoad(nodeID string, delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cn, ok := r.conns[nodeID]; ok {
		cn.CurrentLoad += delta
		if cn.CurrentLoad < 0 {
			cn.CurrentLoad = 0
		}
	}
}

// Connected returns a snapshot copy of a ConnectedNode, or false if not
// currently connected.
func (r *Registry) Connected(nodeID string) (node.ConnectedNode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cn, ok := r.conns[nodeID]
	if !ok {
		return node.ConnectedNode{}, false
	}
	return *cn, true
}

// Select implements §4.6: candidate filtering then Power-of-Two-Choices
// scoring, up to n picks without replacement.
func (r *Registry) Select(req SelectRequest) []node.ConnectedNode {
	r.mu.Lock()
	now := time.Now()
	candidates := make([]node.ConnectedNode, 0, len(r.conns))
	for id, cn := range r.conns {
		if _, excluded := req.Exclude[id]; excluded {
			continue
		}
		if !cn.IsOnline(now) {
			continue
		}
		if req.RequireVision && !cn.SupportsVision {
			continue
		}
		if cb, ok := r.breakers[id]; ok && !cb.IsAvailable() {
			continue
		}
		candidates = append(candidates, *cn)
	}
	r.mu.Unlock()

	if len(candidates) == 0 {
		return nil
	}

	maxRep := 0.0
	for _, c := range candidates {
		if c.Reputation > maxRep {
			maxRep = c.Reputation
		}
	}
	if maxRep == 0 {
		maxRep = node.MinReputation
	}

	n := req.N
	if n <= 0 || n > len(candidates) {
		n = len(candidates)
	}

	picked := make([]node.ConnectedNode, 0, n)
	pool := candidates
	for i := 0; i < n && len(pool) > 0; i++ {
		idx, rest := powerOfTwoChoices(pool, req.Difficulty, maxRep)
		picked = append(picked, pool[idx])
		pool = rest
	}
	return picked
}

// AnyVisionCapable reports whether at least one online, non-open-breaker
// node currently supports vision, used by the orchestrator to fail a
// vision task immediately per I5 rather than retrying forever.
func (r *Registry) AnyVisionCapable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for id, cn := range r.conns {
		if !cn.IsOnline(now) || !cn.SupportsVision {
			continue
		}
		if cb, ok := r.breakers[id]; ok && !cb.IsAvailable() {
			continue
		}
		return true
	}
	return false
}

// powerOfTwoChoices samples one or two distinct candidates from pool,
// scores them, and returns the winner's index in pool plus pool with
// the winner removed.
func powerOfTwoChoices(pool []node.ConnectedNode, difficulty task.Difficulty, maxRep float64) (int, []node.ConnectedNode) {
	if len(pool) == 1 {
		return 0, pool[:0]
	}

	i := randIntn(len(pool))
	j := randIntn(len(pool) - 1)
	if j >= i {
		j++
	}

	si := score(pool[i], difficulty, maxRep)
	sj := score(pool[j], difficulty, maxRep)

	winner := i
	if sj > si {
		winner = j
	}

	rest := make([]node.ConnectedNode, 0, len(pool)-1)
	for idx, c := range pool {
		if idx != winner {
			rest = append(rest, c)
		}
	}
	return winner, rest
}

// score computes §4.6's weighted SED+P2C score.
func score(cn node.ConnectedNode, difficulty task.Difficulty, maxRep float64) float64 {
	tps := cn.TokensPerSecond
	if tps < 1 {
		tps = 1
	}
	delay := 0.40 * (1.0 / (1.0 + float64(cn.CurrentLoad)/tps))

	reputation := 0.0
	if maxRep > 0 {
		reputation = 0.30 * cn.Reputation / maxRep
	}

	tierMatch := 0.20 * tierDifficultyMatrix[cn.Tier][difficulty]

	explore := 0.10 * randFloat()

	return delay + reputation + tierMatch + explore
}

func randIntn(n int) int {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func randFloat() float64 {
	v, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		return 0.5
	}
	return float64(v.Int64()) / float64(int64(1)<<53)
}

// ErrNoCandidates names the "empty candidate set" condition. Nothing in
// this module returns it (the orchestrator reports its own
// NoCapableWorker error); Select itself returns a nil slice rather than
// an error since an empty set is a normal outcome, not a fault.
var ErrNoCandidates = fmt.Errorf("no capable worker available")
