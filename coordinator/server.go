package coordinator

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iris-network/coordinator/infrastructure/middleware"
)

// newRouter builds the HTTP router serving the client submission
// surface, the operator admin surface, and worker websocket upgrade,
// mirroring the teacher's router.Use(...)-then-register-routes shape.
func (c *Coordinator) newRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Recovery(c.log))
	router.Use(middleware.Logging(c.log, c.metrics))

	router.HandleFunc("/healthz", c.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/v1/tasks", c.handleSubmitTask).Methods(http.MethodPost)
	router.HandleFunc("/v1/tasks/{task_id}", c.handleGetTask).Methods(http.MethodGet)
	router.HandleFunc("/v1/tasks/{task_id}/stream", c.handleSubscribeStream).Methods(http.MethodGet)

	router.HandleFunc("/v1/worker/ws", c.handleWorkerSocket).Methods(http.MethodGet)

	admin := router.PathPrefix("/v1/admin").Subrouter()
	admin.HandleFunc("/accounts", c.handleGenerateAccount).Methods(http.MethodPost)
	admin.HandleFunc("/enrollment-tokens", c.handleMintToken).Methods(http.MethodPost)
	admin.HandleFunc("/enrollment-tokens", c.handleListTokens).Methods(http.MethodGet)
	admin.HandleFunc("/enrollment-tokens/{token_id}", c.handleRevokeToken).Methods(http.MethodDelete)
	admin.HandleFunc("/leaderboard", c.handleLeaderboard).Methods(http.MethodGet)
	admin.HandleFunc("/tiers/recalculate", c.handleRecalcTiers).Methods(http.MethodPost)

	return router
}

func (c *Coordinator) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
