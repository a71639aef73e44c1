package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	icrypto "github.com/iris-network/coordinator/infrastructure/crypto"
	"github.com/iris-network/coordinator/infrastructure/logging"
	"github.com/iris-network/coordinator/infrastructure/metrics"
	"github.com/iris-network/coordinator/orchestrator"
	"github.com/iris-network/coordinator/store/memory"
)

// newTestCoordinator wires a Coordinator over an in-memory store with
// an isolated Prometheus registry, so each test can assert against its
// own router without colliding with other packages' default-registerer
// metrics.
func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()

	st := memory.New()
	log := logging.New("test", "error", "json")
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	kp, err := icrypto.GenerateKeyPair()
	require.NoError(t, err)

	c, err := New(Config{
		Orchestrator: orchestrator.Config{
			MaxRetries:      2,
			RetryBase:       10 * time.Millisecond,
			TimeoutSimple:   2 * time.Second,
			TimeoutComplex:  2 * time.Second,
			TimeoutAdvanced: 2 * time.Second,
		},
		EnrollSecret: []byte("test-secret"),
	}, st, kp, nil, log, m)
	require.NoError(t, err)
	t.Cleanup(func() { c.Shutdown(context.Background()) })

	return c
}
