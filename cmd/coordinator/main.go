// Package main is the coordinator process entry point: it loads
// configuration, wires every collaborator, and serves both the client
// submission surface and the worker websocket endpoint until a
// shutdown signal arrives.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iris-network/coordinator/classifier"
	"github.com/iris-network/coordinator/coordinator"
	"github.com/iris-network/coordinator/infrastructure/classifierclient"
	"github.com/iris-network/coordinator/infrastructure/config"
	icrypto "github.com/iris-network/coordinator/infrastructure/crypto"
	"github.com/iris-network/coordinator/infrastructure/logging"
	"github.com/iris-network/coordinator/infrastructure/metrics"
	"github.com/iris-network/coordinator/orchestrator"
	"github.com/iris-network/coordinator/store/memory"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New("coordinator", cfg.Logging.Level, cfg.Logging.Format)

	kp, err := icrypto.LoadOrGenerateKeyPair(cfg.Crypto.KeypairPath)
	if err != nil {
		logger.WithFields(map[string]interface{}{"error": err.Error()}).Fatal("load or generate coordinator keypair")
	}

	st := memory.New()
	m := metrics.New()

	var extClassifier classifier.Classifier
	if cfg.Classifier.Endpoint != "" {
		extClassifier = classifier.NewExternal(classifierclient.New(cfg.Classifier.Endpoint, cfg.Classifier.APIKey, cfg.Classifier.Timeout))
	}

	coord, err := coordinator.New(coordinator.Config{
		Orchestrator: orchestrator.Config{
			MaxRetries:      cfg.Orchestrator.MaxRetries,
			RetryBase:       cfg.Orchestrator.RetryBase,
			TimeoutSimple:   cfg.Orchestrator.TimeoutSimple,
			TimeoutComplex:  cfg.Orchestrator.TimeoutComplex,
			TimeoutAdvanced: cfg.Orchestrator.TimeoutAdvanced,
		},
		StreamSweepCron: cfg.Orchestrator.StreamSweepCron,
		DecayCron:       cfg.Orchestrator.DecayWeeklyCron,
		EnrollSecret:    []byte(cfg.Enroll.TokenSecret),
	}, st, kp, extClassifier, logger, m)
	if err != nil {
		logger.WithFields(map[string]interface{}{"error": err.Error()}).Fatal("wire coordinator")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           coord.Router(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      0, // streaming responses (subscribe_stream) may run indefinitely
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.WithFields(map[string]interface{}{"addr": addr}).Info("coordinator listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithFields(map[string]interface{}{"error": err.Error()}).Fatal("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	coord.Shutdown(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(map[string]interface{}{"error": err.Error()}).Warn("graceful shutdown error")
	}
}
