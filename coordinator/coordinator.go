// Package coordinator wires every collaborator named in spec.md §2
// into a single runnable process: the client submission surface, the
// worker-facing websocket endpoint, and the periodic jobs (stream
// sweep, reputation decay) that keep state bounded.
package coordinator

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"

	"github.com/iris-network/coordinator/accountgate"
	"github.com/iris-network/coordinator/classifier"
	icrypto "github.com/iris-network/coordinator/infrastructure/crypto"
	"github.com/iris-network/coordinator/infrastructure/enroll"
	"github.com/iris-network/coordinator/infrastructure/logging"
	"github.com/iris-network/coordinator/infrastructure/metrics"
	"github.com/iris-network/coordinator/orchestrator"
	"github.com/iris-network/coordinator/registry"
	"github.com/iris-network/coordinator/reputation"
	"github.com/iris-network/coordinator/store"
	"github.com/iris-network/coordinator/streamhub"
)

// Config gathers the tunables each wired collaborator needs. Callers
// typically build this from infrastructure/config.Config.
type Config struct {
	Orchestrator    orchestrator.Config
	StreamSweepCron string
	DecayCron       string
	EnrollSecret    []byte
}

// Coordinator is the root object: it owns every collaborator and
// exposes the HTTP router the caller's server listens with.
type Coordinator struct {
	cfg Config

	store      store.Store
	accounts   *accountgate.Gate
	registry   *registry.Registry
	reputation *reputation.Engine
	streamHub  *streamhub.Hub
	orch       *orchestrator.Orchestrator
	crypto     *icrypto.KeyPair
	enroll     *enroll.Issuer

	log     *logging.Logger
	metrics *metrics.Metrics

	router  *mux.Router
	decayCr *cron.Cron
}

// New constructs a Coordinator over an already-open Store and keypair,
// wiring the registry, reputation engine, StreamHub, and orchestrator
// on top of it, and builds the HTTP router. externalClassifier may be
// nil, in which case the orchestrator falls back to the always
// -available lexical classifier (classifier.Classify's documented
// behavior when its Classifier argument is nil).
func New(
	cfg Config,
	st store.Store,
	kp *icrypto.KeyPair,
	externalClassifier classifier.Classifier,
	log *logging.Logger,
	m *metrics.Metrics,
) (*Coordinator, error) {
	hub, err := streamhub.New(log, cfg.StreamSweepCron, m)
	if err != nil {
		return nil, err
	}

	reg := registry.New(st, log, m)
	rep := reputation.New(st, st, log, m)
	gate := accountgate.New(st, log)

	var issuer *enroll.Issuer
	if len(cfg.EnrollSecret) > 0 {
		issuer = enroll.NewIssuer(cfg.EnrollSecret)
	}

	c := &Coordinator{
		cfg:        cfg,
		store:      st,
		accounts:   gate,
		registry:   reg,
		reputation: rep,
		streamHub:  hub,
		crypto:     kp,
		enroll:     issuer,
		log:        log,
		metrics:    m,
	}

	c.orch = orchestrator.New(cfg.Orchestrator, st, reg, externalClassifier, hub, rep, kp, nil, log, m)
	c.router = c.newRouter()

	if cfg.DecayCron != "" {
		c.decayCr = cron.New()
		if _, err := c.decayCr.AddFunc(cfg.DecayCron, c.runWeeklyDecay); err != nil {
			return nil, err
		}
		c.decayCr.Start()
	}

	return c, nil
}

func (c *Coordinator) runWeeklyDecay() {
	if err := c.reputation.ApplyWeeklyDecay(context.Background()); err != nil {
		c.log.WithFields(map[string]interface{}{"error": err.Error()}).Error("weekly reputation decay failed")
	}
}

// Router returns the HTTP handler serving both the client submission
// surface and the admin surface.
func (c *Coordinator) Router() http.Handler { return c.router }

// WorkerHandler returns the websocket upgrade handler workers dial.
func (c *Coordinator) WorkerHandler() http.HandlerFunc { return c.handleWorkerSocket }

// Shutdown stops the background schedulers and disconnects every
// connected worker, sending each a DISCONNECT frame first (§5). The
// HTTP server itself is stopped by the caller (cmd/coordinator), which
// owns the *http.Server.
func (c *Coordinator) Shutdown(ctx context.Context) {
	if c.decayCr != nil {
		c.decayCr.Stop()
	}
	c.streamHub.Stop()
	c.registry.DisconnectAll(ctx)
}
